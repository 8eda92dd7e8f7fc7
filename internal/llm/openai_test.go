package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, content string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		choices := []map[string]any{}
		if content != "<no-choices>" {
			choices = append(choices, map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "test-model",
			"choices": choices,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGatewayComplete(t *testing.T) {
	t.Parallel()

	var captured capturedRequest
	srv := newChatServer(t, "  Slow down a little.  ", &captured)
	gw := NewOpenAIGateway(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "test-model"}, nil)

	got, err := gw.Complete(context.Background(), Request{
		SystemPrompt:    "system",
		UserText:        "transcript",
		MaxOutputTokens: 150,
		Temperature:     0.7,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Slow down a little." {
		t.Fatalf("unexpected text %q", got)
	}
	if captured.Model != "test-model" || captured.MaxTokens != 150 {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Content != "transcript" {
		t.Fatalf("unexpected messages: %+v", captured.Messages)
	}
}

func TestOpenAIGatewayEmptyResponse(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"   ", "<no-choices>"} {
		srv := newChatServer(t, content, nil)
		gw := NewOpenAIGateway(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "m"}, nil)
		if _, err := gw.Complete(context.Background(), Request{UserText: "x"}); !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("expected ErrEmptyResponse for %q, got %v", content, err)
		}
	}
}

func TestOpenAIGatewayMissingCredential(t *testing.T) {
	t.Parallel()

	gw := NewOpenAIGateway(OpenAIConfig{BaseURL: "http://127.0.0.1:1/v1", Model: "m"}, nil)
	if _, err := gw.Complete(context.Background(), Request{UserText: "x"}); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestOpenAIGatewayUpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom","type":"server_error"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := NewOpenAIGateway(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "m"}, nil)
	_, err := gw.Complete(context.Background(), Request{UserText: "x"})
	if err == nil {
		t.Fatal("expected upstream error")
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrMissingCredential) {
		t.Fatalf("upstream failure misclassified: %v", err)
	}
}
