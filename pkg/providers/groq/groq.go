package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/nerdneilsfield/manga-translator-go/internal/logger"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers"
	"github.com/nerdneilsfield/manga-translator-go/pkg/providers/retry"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	providerName       = "groq"
	defaultAPIEndpoint = "https://api.groq.com/openai/v1"
	defaultModel       = "moonshotai/kimi-k2-instruct"

	// defaultTokenBudget 单次请求的令牌预算，输出上限为其一半
	defaultTokenBudget = 8192

	// defaultMaxContext 会话历史的最大消息条数
	defaultMaxContext = 20

	defaultTemperature float32 = 0.2
	defaultTopP        float32 = 0.92
)

// Config Groq后端配置
type Config struct {
	providers.BaseConfig

	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`

	// TokenBudget 令牌预算；出站请求的 max_tokens 为其一半
	TokenBudget int `json:"token_budget"`

	// RetainContext 是否跨片段保留会话历史
	RetainContext bool `json:"retain_context"`

	// MaxContext 保留历史的最大消息条数
	MaxContext int `json:"max_context"`

	// CheckKey 为真时，构造阶段缺少API密钥直接报错
	CheckKey bool `json:"check_key"`

	Glossary       []GlossaryTerm `json:"glossary,omitempty"`
	SystemTemplate string         `json:"system_template,omitempty"`
	ChatSample     []string       `json:"chat_sample,omitempty"`

	RetryConfig retry.Config `json:"retry_config"`
}

// DefaultConfig 返回默认配置。API密钥与模型可被
// GROQ_API_KEY / GROQ_MODEL 环境变量覆盖。
func DefaultConfig() Config {
	base := providers.DefaultConfig()
	base.APIEndpoint = defaultAPIEndpoint
	base.APIKey = os.Getenv("GROQ_API_KEY")

	model := os.Getenv("GROQ_MODEL")
	if model == "" {
		model = defaultModel
	}

	return Config{
		BaseConfig:     base,
		Model:          model,
		Temperature:    defaultTemperature,
		TopP:           defaultTopP,
		TokenBudget:    defaultTokenBudget,
		MaxContext:     defaultMaxContext,
		CheckKey:       true,
		Glossary:       DefaultGlossary(),
		SystemTemplate: defaultSystemTemplate,
		ChatSample:     DefaultChatSample(),
		RetryConfig:    retry.DefaultConfig(),
	}
}

// statusRoundTripper 记录最近一次请求的状态码
type statusRoundTripper struct {
	base http.RoundTripper
	code *int
}

func (s *statusRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.base.RoundTrip(req)
	if err == nil && resp != nil && s.code != nil {
		*s.code = resp.StatusCode
	}
	return resp, err
}

// ChatTranslator 通过 Groq 的 OpenAI 兼容聊天补全接口翻译漫画文本片段。
// 每个片段发起一次请求，维护可选的滚动会话历史，并从可能不是合法JSON的
// 模型输出中尽力提取译文。实例内的状态只在顺序的批量循环中变更，无需加锁。
type ChatTranslator struct {
	config   Config
	client   *openai.Client
	limiter  *rate.Limiter
	retrier  *retry.Retrier
	log      logger.Logger
	settings providers.Settings

	systemTmpl *template.Template
	history    *conversationHistory

	tokenCount     int
	tokenCountLast int
	lastStatusCode int
}

var (
	_ providers.Provider      = (*ChatTranslator)(nil)
	_ providers.UsageReporter = (*ChatTranslator)(nil)
)

// New 创建Groq翻译后端
func New(config Config, log logger.Logger) (*ChatTranslator, error) {
	if log == nil {
		log = logger.NewNop()
	}

	if config.APIKey == "" && config.CheckKey {
		return nil, providers.NewError(providers.ErrCodeMissingCredential,
			"missing credential: please set the GROQ_API_KEY environment variable")
	}

	if config.APIEndpoint == "" {
		config.APIEndpoint = defaultAPIEndpoint
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.TokenBudget <= 0 {
		config.TokenBudget = defaultTokenBudget
	}
	if config.MaxContext <= 0 {
		config.MaxContext = defaultMaxContext
	}
	if len(config.ChatSample) == 0 {
		config.ChatSample = DefaultChatSample()
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}

	// 模板引用未知占位符属于配置错误，构造阶段直接失败
	systemTmpl, err := parseSystemTemplate(config.SystemTemplate)
	if err != nil {
		return nil, err
	}

	t := &ChatTranslator{
		config:     config,
		retrier:    retry.New(config.RetryConfig),
		log:        log,
		systemTmpl: systemTmpl,
		history:    newConversationHistory(config.ChatSample, config.MaxContext),
	}

	httpClient := &http.Client{
		Timeout:   config.Timeout,
		Transport: &statusRoundTripper{base: http.DefaultTransport, code: &t.lastStatusCode},
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(config.APIEndpoint, "/")
	clientConfig.HTTPClient = httpClient
	t.client = openai.NewClientWithConfig(clientConfig)

	if config.RequestsPerMinute > 0 {
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	} else {
		t.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	return t, nil
}

// SetSettings 注入可选配置对象（两级键查找，见 providers.Settings）。
// 系统提示词模板在这里重新解析，引用未知占位符同样视为致命配置错误。
func (t *ChatTranslator) SetSettings(s providers.Settings) error {
	t.settings = s

	tmplText := s.LookupString(providerName, "chat_system_template", t.config.SystemTemplate)
	systemTmpl, err := parseSystemTemplate(tmplText)
	if err != nil {
		return err
	}
	t.systemTmpl = systemTmpl

	// 历史尚未保留真实对话时，示例对话的覆盖值可以安全生效
	if sample := s.LookupStrings(providerName, "chat_sample", t.config.ChatSample); t.history.atSeed() {
		t.history.seed(sample)
	}

	return nil
}

// GetName 获取后端名称
func (t *ChatTranslator) GetName() string {
	return providerName
}

// GetCapabilities 获取后端能力
func (t *ChatTranslator) GetCapabilities() providers.Capabilities {
	return providers.Capabilities{
		SupportedLanguages: []providers.Language{
			{Code: "ENG", Name: "English"},
			{Code: "CHS", Name: "Simplified Chinese"},
			{Code: "JPN", Name: "Japanese"},
			{Code: "KOR", Name: "Korean"},
			// 完整列表见 translator.Languages
		},
		RequiresAPIKey: true,
		RateLimit: &providers.RateLimit{
			RequestsPerMinute: t.config.RequestsPerMinute,
		},
	}
}

// TokenCount 实例生命周期内的累计令牌数
func (t *ChatTranslator) TokenCount() int {
	return t.tokenCount
}

// TokenCountLast 最近一次请求的令牌数
func (t *ChatTranslator) TokenCountLast() int {
	return t.tokenCountLast
}

// HistoryLen 当前保留的历史消息条数
func (t *ChatTranslator) HistoryLen() int {
	return t.history.len()
}

// temperature 解析生效的采样温度
func (t *ChatTranslator) temperature() float32 {
	return float32(t.settings.LookupFloat(providerName, "temperature", float64(t.config.Temperature)))
}

// topP 解析生效的核采样概率
func (t *ChatTranslator) topP() float32 {
	return float32(t.settings.LookupFloat(providerName, "top_p", float64(t.config.TopP)))
}

// buildMessages 组装出站消息序列：[系统消息] + 截断后的历史 + [新用户消息]
func (t *ChatTranslator) buildMessages(systemContent, userContent string) []openai.ChatCompletionMessage {
	current := t.history.snapshot()
	current = append(current, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userContent,
	})
	if len(current) > t.config.MaxContext {
		current = current[len(current)-t.config.MaxContext:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(current)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemContent,
	})
	return append(messages, current...)
}

// Translate 翻译单个片段。网络层和API层的错误会向调用方传播；
// 模型输出不是合法JSON时总是在本地恢复，不作为错误返回。
func (t *ChatTranslator) Translate(ctx context.Context, req *providers.ProviderRequest) (*providers.ProviderResponse, error) {
	requestID := uuid.New().String()

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	toLang := req.TargetLanguage
	if toLang == "" {
		toLang = "English"
	}

	systemContent, err := renderSystemPrompt(t.systemTmpl, toLang, t.config.Glossary)
	if err != nil {
		return nil, providers.NewError(providers.ErrCodeConfig, err.Error())
	}

	userContent := userPrompt(toLang, req.Fragment)
	messages := t.buildMessages(systemContent, userContent)

	chatReq := openai.ChatCompletionRequest{
		Model:       t.config.Model,
		Messages:    messages,
		MaxTokens:   t.config.TokenBudget / 2,
		Temperature: t.temperature(),
		TopP:        t.topP(),
	}

	callCtx := ctx
	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	t.log.Debug("发送聊天补全请求",
		zap.String("request_id", requestID),
		zap.String("model", t.config.Model),
		zap.Int("messages", len(messages)),
		zap.Int("max_tokens", chatReq.MaxTokens),
	)

	var resp openai.ChatCompletionResponse
	err = t.retrier.Do(callCtx, func() error {
		r, callErr := t.client.CreateChatCompletion(callCtx, chatReq)
		if callErr != nil {
			return callErr
		}
		resp = r
		return nil
	})
	if err != nil {
		t.log.Error("聊天补全请求失败",
			zap.String("request_id", requestID),
			zap.Int("status_code", t.lastStatusCode),
			zap.Error(err),
		)
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("groq 返回空结果")
	}

	// 累计令牌用量；上游未报告用量时跳过更新
	if resp.Usage.TotalTokens > 0 {
		t.tokenCount += resp.Usage.TotalTokens
		t.tokenCountLast = resp.Usage.TotalTokens
	}

	raw := resp.Choices[0].Message.Content
	result, recovered := parseTranslation(raw, t.log)

	if t.config.RetainContext {
		serialized, marshalErr := json.Marshal(result)
		if marshalErr == nil {
			t.history.append(
				openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userContent},
				openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: string(serialized)},
			)
		}
	}

	t.log.Debug("聊天补全请求完成",
		zap.String("request_id", requestID),
		zap.Int("status_code", t.lastStatusCode),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Bool("recovered", recovered),
	)

	return &providers.ProviderResponse{
		Text:        result["translated"],
		TokensIn:    resp.Usage.PromptTokens,
		TokensOut:   resp.Usage.CompletionTokens,
		TokensTotal: resp.Usage.TotalTokens,
		Recovered:   recovered,
	}, nil
}
