// Package llm is the chat-completion gateway used for every piece of
// feedback, plus the prompt templates that feed it.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrMissingCredential means no API key is configured. It is reported at
	// call time so a misconfigured deployment still serves requests.
	ErrMissingCredential = errors.New("llm: api key not configured")
	// ErrEmptyResponse means the model answered with no usable text.
	ErrEmptyResponse = errors.New("llm: model returned an empty response")
)

// Request is one chat completion with a fixed system prompt.
type Request struct {
	SystemPrompt    string
	UserText        string
	MaxOutputTokens int
	Temperature     float32
}

// Gateway performs blocking chat completions.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f GatewayFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
