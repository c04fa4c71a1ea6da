package providers

import (
	"context"
	"time"
)

// BaseConfig 后端基础配置
type BaseConfig struct {
	// API配置
	APIKey      string `json:"api_key,omitempty"`
	APIEndpoint string `json:"api_endpoint,omitempty"`

	// 单次请求超时
	Timeout time.Duration `json:"timeout"`

	// 出站速率限制（每分钟请求数，0表示不限制）
	RequestsPerMinute int `json:"requests_per_minute"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout:           40 * time.Second,
		RequestsPerMinute: 200,
		Headers:           make(map[string]string),
	}
}

// TranslationProvider 翻译后端基础接口
type TranslationProvider interface {
	// Translate 翻译单个文本片段
	Translate(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)

	// GetName 获取后端名称
	GetName() string
}

// Provider 后端接口（扩展 TranslationProvider）
type Provider interface {
	TranslationProvider

	// GetCapabilities 获取后端能力
	GetCapabilities() Capabilities
}

// UsageReporter 报告实例生命周期内的令牌用量
type UsageReporter interface {
	// TokenCount 累计令牌数
	TokenCount() int

	// TokenCountLast 最近一次请求的令牌数
	TokenCountLast() int
}

// Capabilities 后端能力
type Capabilities struct {
	// 支持的语言
	SupportedLanguages []Language `json:"supported_languages"`

	// 是否需要API密钥
	RequiresAPIKey bool `json:"requires_api_key"`

	// 速率限制
	RateLimit *RateLimit `json:"rate_limit,omitempty"`
}

// Language 语言信息
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RateLimit 速率限制
type RateLimit struct {
	RequestsPerMinute int `json:"requests_per_minute"`
}

// 错误代码
const (
	ErrCodeMissingCredential = "missing_credential"
	ErrCodeConfig            = "config_error"
	ErrCodeRateLimit         = "rate_limit"
	ErrCodeServerError       = "server_error"
	ErrCodeTimeout           = "timeout"
)

// Error 后端错误
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// IsRetryable 判断错误是否可重试
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeTimeout, ErrCodeServerError:
		return true
	default:
		return false
	}
}

// NewError 创建后端错误
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// ProviderRequest 后端请求。Fragment 是调用方提供的一段源文本，
// 可能带有 <|n|> 行标记，后端将其视为不透明字符串原样传递。
type ProviderRequest struct {
	Fragment       string `json:"fragment"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

// ProviderResponse 后端响应
type ProviderResponse struct {
	// Text 译文。解析结果缺少 "translated" 键时为空字符串。
	Text string `json:"text"`

	// 本次请求的令牌用量（上游未报告时为0）
	TokensIn    int `json:"tokens_in,omitempty"`
	TokensOut   int `json:"tokens_out,omitempty"`
	TokensTotal int `json:"tokens_total,omitempty"`

	// Recovered 标记译文经过了非严格JSON恢复
	Recovered bool `json:"recovered,omitempty"`
}
