package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIGateway implements Gateway against any OpenAI-compatible API.
type OpenAIGateway struct {
	client *openai.Client
	model  string
	hasKey bool
	logger *slog.Logger
}

// NewOpenAIGateway builds a gateway. A missing API key is not an error here;
// every Complete call will fail with ErrMissingCredential instead.
func NewOpenAIGateway(cfg OpenAIConfig, logger *slog.Logger) *OpenAIGateway {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIGateway{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		hasKey: cfg.APIKey != "",
		logger: logger,
	}
}

// Complete sends one non-streaming chat completion and returns its text.
func (g *OpenAIGateway) Complete(ctx context.Context, req Request) (string, error) {
	if !g.hasKey {
		return "", ErrMissingCredential
	}

	// go-openai omits a zero temperature, which the server would read as its
	// own default rather than greedy decoding.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserText},
		},
		MaxTokens:   req.MaxOutputTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}

	g.logger.Debug("Chat completion finished",
		"model", g.model,
		"finish_reason", resp.Choices[0].FinishReason,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return text, nil
}

var _ Gateway = (*OpenAIGateway)(nil)
