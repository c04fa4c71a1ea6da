package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerdneilsfield/manga-translator-go/internal/logger"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatRequest 镜像出站请求体，用于在模拟服务器里检查
type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
}

// chatResponse 模拟服务器返回的响应体
func chatResponse(content string, totalTokens int) map[string]interface{} {
	resp := map[string]interface{}{
		"id":      "test-id",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
	if totalTokens > 0 {
		resp["usage"] = map[string]int{
			"prompt_tokens":     totalTokens - 5,
			"completion_tokens": 5,
			"total_tokens":      totalTokens,
		}
	}
	return resp
}

// newTestServer 创建模拟聊天补全服务器，handler 返回响应内容和令牌数
func newTestServer(t *testing.T, handler func(req chatRequest, n int) (string, int, int)) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-api-key" {
			t.Errorf("unexpected auth header: %s", auth)
		}

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		n := int(calls.Add(1))
		content, totalTokens, status := handler(req, n)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"message": "rate limited", "type": "rate_limit"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse(content, totalTokens))
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

// newTestConfig 测试用配置
func newTestConfig(endpoint string) Config {
	return Config{
		BaseConfig: providers.BaseConfig{
			APIKey:            "test-api-key",
			APIEndpoint:       endpoint,
			Timeout:           5 * time.Second,
			RequestsPerMinute: 0, // 测试中不限速
		},
		Model:       "test-model",
		Temperature: 0.2,
		TopP:        0.92,
		TokenBudget: 8192,
		MaxContext:  20,
		CheckKey:    true,
		Glossary:    DefaultGlossary(),
		RetryConfig: retry.Config{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, BackoffFactor: 2.0},
	}
}

func TestNewMissingCredential(t *testing.T) {
	cfg := newTestConfig("http://localhost:1")
	cfg.APIKey = ""

	_, err := New(cfg, logger.NewNop())
	require.Error(t, err)

	var provErr *providers.Error
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, providers.ErrCodeMissingCredential, provErr.Code)
}

func TestNewSkipsCredentialCheck(t *testing.T) {
	cfg := newTestConfig("http://localhost:1")
	cfg.APIKey = ""
	cfg.CheckKey = false

	_, err := New(cfg, logger.NewNop())
	assert.NoError(t, err)
}

func TestNewRejectsUnknownTemplatePlaceholder(t *testing.T) {
	cfg := newTestConfig("http://localhost:1")
	cfg.SystemTemplate = "Translate into {{.ToLang}} with {{.Nonexistent}}."

	_, err := New(cfg, logger.NewNop())
	assert.Error(t, err)
}

func TestTranslateRoundTrip(t *testing.T) {
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		return `{"translated": "Hello"}`, 15, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	resp, err := tr.Translate(context.Background(), &providers.ProviderRequest{
		Fragment:       "こんにちは",
		TargetLanguage: "English",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello", resp.Text)
	assert.False(t, resp.Recovered)
	assert.Equal(t, 15, resp.TokensTotal)
}

func TestTranslateMessageComposition(t *testing.T) {
	var captured chatRequest
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		captured = req
		return `{"translated": "Hi"}`, 10, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	_, err = tr.Translate(context.Background(), &providers.ProviderRequest{
		Fragment:       "こんにちは",
		TargetLanguage: "English",
	})
	require.NoError(t, err)

	// [系统消息] + 种子示例对话 + [新用户消息]
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "あの子: THAT KID")
	assert.Contains(t, captured.Messages[0].Content, "Japanese-to-English")
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Equal(t, "user", captured.Messages[3].Role)
	assert.Contains(t, captured.Messages[3].Content, `{"untranslated": "こんにちは"}`)

	// 采样参数与令牌预算的一半
	assert.Equal(t, 8192/2, captured.MaxTokens)
	assert.InDelta(t, 0.2, captured.Temperature, 1e-6)
	assert.InDelta(t, 0.92, captured.TopP, 1e-6)
}

func TestTranslateRecoversFromChattyResponse(t *testing.T) {
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		return `Here you go: {"translated": "hi"} thanks`, 10, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	resp, err := tr.Translate(context.Background(), &providers.ProviderRequest{
		Fragment:       "やあ",
		TargetLanguage: "English",
	})
	require.NoError(t, err)

	assert.Equal(t, "hi", resp.Text)
	assert.True(t, resp.Recovered)
}

func TestTranslateMissingKeyYieldsEmpty(t *testing.T) {
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		return `{"other": "value"}`, 10, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	resp, err := tr.Translate(context.Background(), &providers.ProviderRequest{
		Fragment:       "テスト",
		TargetLanguage: "English",
	})
	require.NoError(t, err)

	assert.Equal(t, "", resp.Text)
}

func TestTranslateAccumulatesTokenUsage(t *testing.T) {
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		return `{"translated": "ok"}`, 15, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := tr.Translate(context.Background(), &providers.ProviderRequest{
			Fragment:       "テスト",
			TargetLanguage: "English",
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 45, tr.TokenCount())
	assert.Equal(t, 15, tr.TokenCountLast())
}

func TestTranslateToleratesAbsentUsage(t *testing.T) {
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		if n == 1 {
			return `{"translated": "first"}`, 15, http.StatusOK
		}
		// 第二次调用不报告用量
		return `{"translated": "second"}`, 0, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := tr.Translate(context.Background(), &providers.ProviderRequest{
			Fragment:       "テスト",
			TargetLanguage: "English",
		})
		require.NoError(t, err)
	}

	// 缺失用量的调用不改变任何计数器
	assert.Equal(t, 15, tr.TokenCount())
	assert.Equal(t, 15, tr.TokenCountLast())
}

func TestTranslateRetentionBound(t *testing.T) {
	var lastMessages int
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		lastMessages = len(req.Messages)
		return `{"translated": "ok"}`, 10, http.StatusOK
	})

	cfg := newTestConfig(server.URL)
	cfg.RetainContext = true
	cfg.MaxContext = 4

	tr, err := New(cfg, logger.NewNop())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := tr.Translate(context.Background(), &providers.ProviderRequest{
			Fragment:       "テスト",
			TargetLanguage: "English",
		})
		require.NoError(t, err)
	}

	// 历史不超过上限，出站消息为 系统消息 + 截断后的上下文
	assert.Equal(t, 4, tr.HistoryLen())
	assert.Equal(t, 5, lastMessages)
}

func TestTranslateWithoutRetention(t *testing.T) {
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		return `{"translated": "ok"}`, 10, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := tr.Translate(context.Background(), &providers.ProviderRequest{
			Fragment:       "テスト",
			TargetLanguage: "English",
		})
		require.NoError(t, err)
	}

	// 不保留历史时，消息列表每次都从种子示例重建
	assert.Equal(t, 2, tr.HistoryLen())
}

func TestTranslateRetriesOnRateLimit(t *testing.T) {
	server, calls := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		if n == 1 {
			return "", 0, http.StatusTooManyRequests
		}
		return `{"translated": "ok"}`, 10, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	resp, err := tr.Translate(context.Background(), &providers.ProviderRequest{
		Fragment:       "テスト",
		TargetLanguage: "English",
	})
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int64(2), calls.Load())
}

func TestTranslatePropagatesPermanentAPIError(t *testing.T) {
	server, calls := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		return "", 0, http.StatusUnauthorized
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	_, err = tr.Translate(context.Background(), &providers.ProviderRequest{
		Fragment:       "テスト",
		TargetLanguage: "English",
	})
	require.Error(t, err)

	// 客户端错误不重试
	assert.Equal(t, int64(1), calls.Load())
}

func TestSetSettingsOverrides(t *testing.T) {
	var captured chatRequest
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		captured = req
		return `{"translated": "ok"}`, 10, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	// 作用域键优先于全局键
	require.NoError(t, tr.SetSettings(providers.Settings{
		"temperature":      0.9,
		"groq.temperature": 0.5,
		"groq.top_p":       0.8,
	}))

	_, err = tr.Translate(context.Background(), &providers.ProviderRequest{
		Fragment:       "テスト",
		TargetLanguage: "English",
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, captured.Temperature, 1e-6)
	assert.InDelta(t, 0.8, captured.TopP, 1e-6)
}

func TestSetSettingsRejectsBadTemplate(t *testing.T) {
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		return `{"translated": "ok"}`, 10, http.StatusOK
	})

	tr, err := New(newTestConfig(server.URL), logger.NewNop())
	require.NoError(t, err)

	err = tr.SetSettings(providers.Settings{
		"groq.chat_system_template": "Hello {{.Unknown}}",
	})
	assert.Error(t, err)
}

func TestTranslateHonorsRateLimiterCancellation(t *testing.T) {
	server, _ := newTestServer(t, func(req chatRequest, n int) (string, int, int) {
		return `{"translated": "ok"}`, 10, http.StatusOK
	})

	cfg := newTestConfig(server.URL)
	cfg.RequestsPerMinute = 1 // 第二次调用需等待约一分钟

	tr, err := New(cfg, logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = tr.Translate(ctx, &providers.ProviderRequest{Fragment: "a", TargetLanguage: "English"})
	require.NoError(t, err)

	_, err = tr.Translate(ctx, &providers.ProviderRequest{Fragment: "b", TargetLanguage: "English"})
	assert.Error(t, err)
}
