package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nerdneilsfield/manga-translator-go/internal/config"
	"github.com/nerdneilsfield/manga-translator-go/internal/logger"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers/groq"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers/stats"
	"github.com/nerdneilsfield/manga-translator-go/pkg/translator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// 命令行标志变量
	cfgFile       string
	sourceLang    string
	targetLang    string
	modelID       string
	retention     bool
	debugMode     bool
	listLanguages bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mangatrans [flags] input_file [output_file]",
		Short: "mangatrans 是漫画翻译流水线的LLM翻译后端",
		Long: `mangatrans 通过 Groq 的聊天补全接口翻译漫画文本片段。
输入文件每行一个片段（行内可以带 <|n|> 位置标记），译文按相同顺序输出。

语言使用流水线的短代码（JPN、ENG、CHS 等），--list-languages 查看完整列表。`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		Args: func(cmd *cobra.Command, args []string) error {
			if listLanguages {
				return nil
			}
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("accepts 1 or 2 arg(s), received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if listLanguages {
				printLanguages()
				return nil
			}
			return runTranslate(args)
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径（默认搜索 ~/.mangatrans.yaml）")
	rootCmd.Flags().StringVarP(&sourceLang, "source", "s", "", "源语言代码（默认 JPN）")
	rootCmd.Flags().StringVarP(&targetLang, "target", "t", "", "目标语言代码（默认 ENG）")
	rootCmd.Flags().StringVarP(&modelID, "model", "m", "", "模型标识（默认读取 GROQ_MODEL）")
	rootCmd.Flags().BoolVar(&retention, "retention", false, "跨片段保留会话历史")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "输出调试日志")
	rootCmd.Flags().BoolVar(&listLanguages, "list-languages", false, "列出支持的语言代码")

	return rootCmd
}

// runTranslate 执行批量翻译
func runTranslate(args []string) error {
	log := logger.NewLogger(debugMode)
	defer func() {
		_ = log.Sync()
	}()
	wrapped := logger.WrapZap(log)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// 命令行标志覆盖配置文件
	if sourceLang != "" {
		cfg.SourceLang = sourceLang
	}
	if targetLang != "" {
		cfg.TargetLang = targetLang
	}
	if modelID != "" {
		cfg.Groq.Model = modelID
	}
	if retention {
		cfg.ContextRetention = true
	}

	fragments, err := readFragments(args[0])
	if err != nil {
		return err
	}
	if len(fragments) == 0 {
		return fmt.Errorf("输入文件没有可翻译的片段")
	}

	backend, err := groq.New(cfg.BuildGroqConfig(), wrapped)
	if err != nil {
		return err
	}
	if settings := cfg.ProviderSettings(); settings != nil {
		if err := backend.SetSettings(settings); err != nil {
			return err
		}
	}
	if err := providers.Register(backend.GetName(), backend); err != nil {
		log.Debug("注册后端失败", zap.Error(err))
	}

	statsManager := stats.NewManager()
	t := translator.New(backend, wrapped, statsManager)

	log.Info("开始翻译",
		zap.String("source", cfg.SourceLang),
		zap.String("target", cfg.TargetLang),
		zap.Int("fragments", len(fragments)),
	)

	results, err := t.Translate(context.Background(), cfg.SourceLang, cfg.TargetLang, fragments)
	if err != nil {
		return fmt.Errorf("翻译失败: %w", err)
	}

	if err := writeResults(args, results); err != nil {
		return err
	}

	printSummary(backend, statsManager.Get(backend.GetName()))
	return nil
}

// readFragments 读取输入片段，每行一个，"-" 表示标准输入
func readFragments(path string) ([]string, error) {
	var data []byte
	var err error

	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("读取输入失败: %w", err)
	}

	var fragments []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fragments = append(fragments, line)
	}
	return fragments, nil
}

// writeResults 输出译文，每行一条
func writeResults(args []string, results []string) error {
	output := strings.Join(results, "\n") + "\n"

	if len(args) < 2 || args[1] == "-" {
		_, err := os.Stdout.WriteString(output)
		return err
	}

	if err := os.WriteFile(args[1], []byte(output), 0o644); err != nil {
		return fmt.Errorf("写入输出失败: %w", err)
	}
	return nil
}

// printLanguages 打印支持的语言表
func printLanguages() {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Code", "Language"})
	for _, lang := range translator.Languages {
		tw.AppendRow(table.Row{lang.Code, lang.Name})
	}
	tw.Render()
}

// printSummary 打印本次运行的用量统计
func printSummary(backend *groq.ChatTranslator, s stats.ProviderStats) {
	title := color.New(color.FgCyan, color.Bold)
	title.Println("翻译完成")

	fmt.Printf("  请求数:     %d (失败 %d, 恢复 %d)\n", s.Requests, s.Failures, s.Recoveries)
	fmt.Printf("  令牌用量:   %d (最近一次 %d)\n", backend.TokenCount(), backend.TokenCountLast())
	if s.Requests > 0 {
		fmt.Printf("  平均耗时:   %s\n", s.TotalLatency/time.Duration(s.Requests))
	}
}
