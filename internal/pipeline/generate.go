package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/voicerelay/gateway/internal/metrics"
)

// ChatGenerator produces replies from any OpenAI-compatible chat completions
// backend (Groq by default). One client is shared by all sessions.
type ChatGenerator struct {
	client       openai.Client
	model        string
	systemPrompt string
	maxTokens    int64
	temperature  float64
}

// NewChatGenerator creates a generator against baseURL with the given model.
func NewChatGenerator(apiKey, baseURL, model, systemPrompt string, maxTokens int, temperature float64, httpClient *http.Client) *ChatGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &ChatGenerator{
		client:       openai.NewClient(opts...),
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    int64(maxTokens),
		temperature:  temperature,
	}
}

// Generate requests one chat completion. Failures are reported as
// *GenerationError carrying the backend HTTP status when available, so the
// orchestrator can substitute the fallback reply.
func (c *ChatGenerator) Generate(ctx context.Context, message string) (string, error) {
	start := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(message),
		},
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			metrics.Errors.WithLabelValues("generation", "status").Inc()
			return "", &GenerationError{Status: apierr.StatusCode, Message: apierr.Message}
		}
		metrics.Errors.WithLabelValues("generation", "http").Inc()
		return "", &GenerationError{Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Message: "no choices in response"}
	}

	metrics.StageDuration.WithLabelValues("generation").Observe(time.Since(start).Seconds())
	return resp.Choices[0].Message.Content, nil
}
