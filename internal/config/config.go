package config

import (
	"fmt"
	"time"

	"github.com/nerdneilsfield/manga-translator-go/pkg/providers"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers/groq"
	"github.com/spf13/viper"
)

// GlossaryEntry 配置文件中的术语表条目
type GlossaryEntry struct {
	Source string `mapstructure:"source"`
	Target string `mapstructure:"target"`
}

// GroqConfig Groq后端的配置段
type GroqConfig struct {
	Model             string  `mapstructure:"model"`
	BaseURL           string  `mapstructure:"base_url"`
	Key               string  `mapstructure:"key"`
	Temperature       float64 `mapstructure:"temperature"`
	TopP              float64 `mapstructure:"top_p"`
	TokenBudget       int     `mapstructure:"token_budget"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	CheckKey          bool    `mapstructure:"check_key"`
}

// Config 保存翻译后端的所有配置
type Config struct {
	SourceLang string `mapstructure:"source_lang"`
	TargetLang string `mapstructure:"target_lang"`

	Groq GroqConfig `mapstructure:"groq"`

	// ContextRetention 是否跨片段保留会话历史
	ContextRetention bool `mapstructure:"context_retention"`

	// ContextLength 保留历史的最大消息条数
	ContextLength int `mapstructure:"context_length"`

	Glossary           []GlossaryEntry `mapstructure:"glossary"`
	ChatSystemTemplate string          `mapstructure:"chat_system_template"`
	ChatSample         []string        `mapstructure:"chat_sample"`

	// Settings 注入后端的两级键查找配置（"groq.<key>" 优先于 "<key>"）
	Settings map[string]interface{} `mapstructure:"settings"`

	Debug bool `mapstructure:"debug"`
}

// Load 加载配置。configPath 为空时在家目录和当前目录搜索
// .mangatrans.yaml；找不到配置文件时返回默认配置。
// CONTEXT_RETENTION、CONTEXT_LENGTH、GROQ_API_KEY、GROQ_MODEL
// 环境变量可覆盖对应设置。
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
		v.SetConfigName(".mangatrans")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		// 搜索路径下没有配置文件时使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 写入默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("source_lang", "JPN")
	v.SetDefault("target_lang", "ENG")
	v.SetDefault("context_retention", false)
	v.SetDefault("context_length", 20)
	v.SetDefault("groq.temperature", 0.2)
	v.SetDefault("groq.top_p", 0.92)
	v.SetDefault("groq.token_budget", 8192)
	v.SetDefault("groq.requests_per_minute", 200)
	v.SetDefault("groq.timeout_seconds", 40)
	v.SetDefault("groq.max_attempts", 5)
	v.SetDefault("groq.check_key", true)
}

// bindEnv 绑定上游流水线使用的环境变量
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("context_retention", "CONTEXT_RETENTION")
	_ = v.BindEnv("context_length", "CONTEXT_LENGTH")
	_ = v.BindEnv("groq.key", "GROQ_API_KEY")
	_ = v.BindEnv("groq.model", "GROQ_MODEL")
}

// BuildGroqConfig 把文件配置转换为后端配置
func (c *Config) BuildGroqConfig() groq.Config {
	cfg := groq.DefaultConfig()

	if c.Groq.Key != "" {
		cfg.APIKey = c.Groq.Key
	}
	if c.Groq.BaseURL != "" {
		cfg.APIEndpoint = c.Groq.BaseURL
	}
	if c.Groq.Model != "" {
		cfg.Model = c.Groq.Model
	}
	if c.Groq.Temperature > 0 {
		cfg.Temperature = float32(c.Groq.Temperature)
	}
	if c.Groq.TopP > 0 {
		cfg.TopP = float32(c.Groq.TopP)
	}
	if c.Groq.TokenBudget > 0 {
		cfg.TokenBudget = c.Groq.TokenBudget
	}
	if c.Groq.RequestsPerMinute > 0 {
		cfg.RequestsPerMinute = c.Groq.RequestsPerMinute
	}
	if c.Groq.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.Groq.TimeoutSeconds) * time.Second
	}
	if c.Groq.MaxAttempts > 0 {
		cfg.RetryConfig.MaxAttempts = c.Groq.MaxAttempts
	}
	cfg.CheckKey = c.Groq.CheckKey

	cfg.RetainContext = c.ContextRetention
	if c.ContextLength > 0 {
		cfg.MaxContext = c.ContextLength
	}

	if len(c.Glossary) > 0 {
		terms := make([]groq.GlossaryTerm, 0, len(c.Glossary))
		for _, entry := range c.Glossary {
			terms = append(terms, groq.GlossaryTerm{Source: entry.Source, Target: entry.Target})
		}
		cfg.Glossary = terms
	}
	if c.ChatSystemTemplate != "" {
		cfg.SystemTemplate = c.ChatSystemTemplate
	}
	if len(c.ChatSample) >= 2 {
		cfg.ChatSample = c.ChatSample
	}

	return cfg
}

// ProviderSettings 返回注入后端的配置对象
func (c *Config) ProviderSettings() providers.Settings {
	if len(c.Settings) == 0 {
		return nil
	}
	return providers.Settings(c.Settings)
}
