package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"narrative-server/internal/model"
)

const (
	// Gemini предоставляет OpenAI-совместимый эндпоинт — используем его
	// через тот же клиент, что и остальные провайдеры.
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultModel   = "gemini-2.5-flash"

	defaultTimeoutSeconds = 120
	defaultMaxRetries     = 3

	// tiktoken даёт лишь оценку для не-OpenAI моделей, но для метрик
	// порядка величины этого достаточно.
	tokenEncoding = "cl100k_base"
)

// Config содержит конфигурацию клиента генерации.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    int // секунды, на одну попытку
	MaxRetries int // количество ПОВТОРОВ: 3 ретрая = 4 попытки
}

// Options — параметры одного запроса генерации.
type Options struct {
	Temperature float32 // [0, 2]
	MaxTokens   int
}

// Client — клиент внешнего эндпоинта генерации текста. Stateless между
// вызовами; единственная восстановительная логика — ретраи при rate limit
// с задержкой, извлечённой из ошибки самого провайдера.
type Client struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger
	encoder    *tiktoken.Tiktoken

	// Переопределяется в тестах, чтобы не спать по-настоящему.
	sleep func(ctx context.Context, d time.Duration) error
}

// New создает клиент генерации. APIKey обязателен.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("AI API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeoutSeconds
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	encoder, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		// Метрики токенов деградируют, генерация работает.
		logger.Warn("Failed to initialize token encoder, prompt token metrics disabled", zap.Error(err))
		encoder = nil
	}

	return &Client{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		timeout:    time.Duration(cfg.Timeout) * time.Second,
		maxRetries: cfg.MaxRetries,
		logger:     logger.Named("AIClient"),
		encoder:    encoder,
		sleep:      sleepCtx,
	}, nil
}

// GenerateJSON выполняет запрос и возвращает распарсенный JSON-объект.
// При нестрогом ответе провайдера применяется цепочка стратегий извлечения.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, opts Options) (json.RawMessage, error) {
	text, err := c.generate(ctx, systemPrompt, userPrompt, opts, true)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		c.logger.Error("AI response is not parseable JSON",
			zap.Int("responseLength", len(text)),
			zap.String("responseHead", head(text, 500)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
	}

	return raw, nil
}

// GenerateText выполняет запрос и возвращает сырой текст ответа.
func (c *Client) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, opts, false)
}

func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt string, opts Options, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	c.observePromptTokens(systemPrompt, userPrompt)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		content, err := c.doRequest(ctx, req)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if !isRateLimitError(err) {
			// Не rate limit — не ретраим, сразу классифицируем.
			if isAuthError(err) {
				c.logger.Error("AI provider rejected credentials", zap.Error(err))
				return "", fmt.Errorf("%w: %v", model.ErrInvalidAPIKey, err)
			}
			c.logger.Error("AI generation failed", zap.Int("attempt", attempt+1), zap.Error(err))
			return "", fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
		}

		delaySeconds := extractRetryDelaySeconds(err)
		if attempt >= c.maxRetries {
			// Бюджет ретраев исчерпан — отдаём наверх ошибку квоты
			// с последней подсказкой о времени ожидания.
			c.logger.Error("AI quota exhausted after retries",
				zap.Int("attempts", attempt+1),
				zap.Int("retryAfterSeconds", delaySeconds),
				zap.Error(err))
			return "", &model.QuotaExceededError{RetryAfterSeconds: delaySeconds, Err: err}
		}

		c.logger.Warn("AI rate limit hit, waiting before retry",
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", c.maxRetries+1),
			zap.Int("delaySeconds", delaySeconds))
		aiRetriesTotal.WithLabelValues(c.model).Inc()

		if err := c.sleep(ctx, time.Duration(delaySeconds)*time.Second); err != nil {
			return "", fmt.Errorf("%w: %v", model.ErrGenerationFailed, err)
		}
	}

	// Сюда не попадаем: цикл всегда завершается return'ом выше.
	return "", &model.QuotaExceededError{RetryAfterSeconds: extractRetryDelaySeconds(lastErr), Err: lastErr}
}

// doRequest выполняет одну попытку с собственным таймаутом и метриками.
func (c *Client) doRequest(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	aiRequestDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())

	if err != nil {
		if isRateLimitError(err) {
			aiRequestsTotal.WithLabelValues(c.model, "rate_limited").Inc()
		} else {
			aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		}
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", errors.New("empty response from AI API: no choices returned")
	}

	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	if resp.Usage.CompletionTokens > 0 {
		aiCompletionTokens.WithLabelValues(c.model).Observe(float64(resp.Usage.CompletionTokens))
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) observePromptTokens(systemPrompt, userPrompt string) {
	if c.encoder == nil {
		return
	}
	count := len(c.encoder.Encode(systemPrompt, nil, nil)) + len(c.encoder.Encode(userPrompt, nil, nil))
	aiPromptTokens.WithLabelValues(c.model).Observe(float64(count))
}

// sleepCtx спит с учётом отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
