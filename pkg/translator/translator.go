package translator

import (
	"context"
	"time"

	"github.com/nerdneilsfield/manga-translator-go/internal/logger"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers/stats"
	"go.uber.org/zap"
)

// Translator 批量翻译循环。按顺序把每个片段交给后端翻译，
// 不做并发扇出，也不跨片段合批。
type Translator struct {
	provider providers.TranslationProvider
	log      logger.Logger
	stats    *stats.Manager
}

// New 创建批量翻译器。statsManager 可以为 nil。
func New(provider providers.TranslationProvider, log logger.Logger, statsManager *stats.Manager) *Translator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Translator{
		provider: provider,
		log:      log,
		stats:    statsManager,
	}
}

// Translate 翻译一组有序片段，返回等长同序的译文列表。
// 解析结果缺少 "translated" 键的片段得到空字符串而不是错误；
// 网络层和API层的错误中止批次并向调用方传播。
func (t *Translator) Translate(ctx context.Context, fromCode, toCode string, fragments []string) ([]string, error) {
	sourceName := LanguageName(fromCode)
	targetName := LanguageName(toCode)

	results := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		start := time.Now()

		resp, err := t.provider.Translate(ctx, &providers.ProviderRequest{
			Fragment:       fragment,
			SourceLanguage: sourceName,
			TargetLanguage: targetName,
		})
		if err != nil {
			t.record(stats.RequestResult{Latency: time.Since(start)})
			return nil, err
		}

		t.record(stats.RequestResult{
			Success:     true,
			Recovered:   resp.Recovered,
			TokensIn:    resp.TokensIn,
			TokensOut:   resp.TokensOut,
			TokensTotal: resp.TokensTotal,
			Latency:     time.Since(start),
		})

		results = append(results, resp.Text)
	}

	if reporter, ok := t.provider.(providers.UsageReporter); ok {
		t.log.Info("本次使用令牌数",
			zap.Int("last", reporter.TokenCountLast()),
			zap.Int("total", reporter.TokenCount()),
		)
	}

	return results, nil
}

// record 记录单次请求统计
func (t *Translator) record(result stats.RequestResult) {
	if t.stats != nil {
		t.stats.Record(t.provider.GetName(), result)
	}
}
