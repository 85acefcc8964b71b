package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/normgate/internal/domain"
	"github.com/kailas-cloud/normgate/internal/domain/answer"
	"github.com/kailas-cloud/normgate/internal/metrics"
)

// DefaultSystemPrompt frames answers about Argentine legislation.
const DefaultSystemPrompt = "Respondés preguntas sobre normativa argentina. " +
	"Usá solo el contexto provisto cuando exista y citá la norma por su nombre."

// Answerer answers questions through an OpenAI-compatible chat API.
type Answerer struct {
	client       *openai.Client
	model        string
	systemPrompt string
	logger       *zap.Logger
}

// Config holds the answer provider settings.
type Config struct {
	APIKey       string
	BaseURL      string // empty = OpenAI default
	Model        string
	SystemPrompt string
	Logger       *zap.Logger
}

// NewAnswerer creates an OpenAI-compatible answer provider.
func NewAnswerer(cfg *Config) *Answerer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	return &Answerer{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		systemPrompt: prompt,
		logger:       cfg.Logger,
	}
}

// Answer sends the question and its grounding context as one chat completion.
func (a *Answerer) Answer(ctx context.Context, q answer.Question) (answer.Answer, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: a.systemPrompt},
	}
	if passages := q.Context(); len(passages) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Contexto:\n" + strings.Join(passages, "\n\n"),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: q.Text(),
	})

	start := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: messages,
	})

	duration := time.Since(start)

	if err != nil {
		metrics.AnswerRequestsTotal.WithLabelValues(a.model, "error").Inc()
		a.logger.Warn("Answer request failed",
			zap.String("model", a.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return answer.Answer{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.AnswerRequestsTotal.WithLabelValues(a.model, "error").Inc()
		return answer.Answer{}, fmt.Errorf("empty answer response: %w", domain.ErrAnswerProviderError)
	}

	metrics.AnswerRequestsTotal.WithLabelValues(a.model, "success").Inc()
	a.logger.Debug("Answer request completed",
		zap.String("model", a.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	model := resp.Model
	if model == "" {
		model = a.model
	}
	return answer.Answer{Text: resp.Choices[0].Message.Content, Model: model}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (a *Answerer) HealthCheck(ctx context.Context) error {
	if _, err := a.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrAnswerProviderError for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrAnswerProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("answer API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("answer API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("answer API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("answer request: %w", errors.Join(wrap, err))
	}
	return fmt.Errorf("answer request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
