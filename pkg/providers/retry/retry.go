package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config 重试配置
type Config struct {
	// 最大尝试次数（含首次请求）
	MaxAttempts int `json:"max_attempts"`

	// 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay"`

	// 最大延迟时间
	MaxDelay time.Duration `json:"max_delay"`

	// 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor"`
}

// DefaultConfig 返回默认重试配置
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ErrorType 错误类型枚举
type ErrorType int

const (
	ErrorTypeNone          ErrorType = iota
	ErrorTypeNetwork                 // 网络瞬时错误
	ErrorTypeRetryableHTTP           // 可重试的HTTP错误（429/5xx）
	ErrorTypePermanent               // 永久性错误
)

// Retrier 对出站聊天补全调用做有界指数退避重试
type Retrier struct {
	config Config
}

// New 创建重试器
func New(config Config) *Retrier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Retrier{config: config}
}

// Func 可重试的调用
type Func func() error

// Do 执行带重试的调用。仅对瞬时网络错误和 429/5xx 重试，
// 客户端错误立即返回。
func (r *Retrier) Do(ctx context.Context, fn Func) error {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if Classify(err) == ErrorTypePermanent {
			return err
		}
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	return lastErr
}

// Classify 分类错误
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeNone
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypePermanent
	}

	// API错误按状态码分类
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return ErrorTypeRetryableHTTP
		case apiErr.HTTPStatusCode >= 500:
			return ErrorTypeRetryableHTTP
		default:
			return ErrorTypePermanent
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500:
			return ErrorTypeRetryableHTTP
		case reqErr.HTTPStatusCode >= 400:
			return ErrorTypePermanent
		}
	}

	if isNetworkError(err) {
		return ErrorTypeNetwork
	}

	return ErrorTypePermanent
}

// isNetworkError 判断是否为瞬时网络错误
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isNetworkError(urlErr.Err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"connection timed out",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"broken pipe",
		"i/o timeout",
		"unexpected eof",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// delay 计算第 attempt 次失败后的退避延迟
func (r *Retrier) delay(attempt int) time.Duration {
	delay := r.config.InitialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	factor := r.config.BackoffFactor
	if factor <= 1.0 {
		factor = 2.0
	}

	if attempt > 0 {
		delay = time.Duration(float64(delay) * math.Pow(factor, float64(attempt)))
	}

	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	return delay
}
