package coach

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ashureev/convo-coach/internal/domain"
	"github.com/ashureev/convo-coach/internal/llm"
)

// Fallback strings surfaced to the caller when the model cannot answer.
const (
	FallbackFailed = "Error: could not generate feedback from the language model."
	FallbackEmpty  = "The model returned an empty response."
)

// OutcomeKind classifies one gateway call.
type OutcomeKind string

const (
	OutcomeOK     OutcomeKind = "ok"
	OutcomeEmpty  OutcomeKind = "empty"
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the typed result of a gateway call. Gateway errors never
// travel past this point.
type Outcome struct {
	Kind OutcomeKind
	Text string
	Err  error
}

// OK reports whether the call produced usable text.
func (o Outcome) OK() bool { return o.Kind == OutcomeOK }

// Message returns the text to show a user: the model output on success,
// otherwise the matching fallback string.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeOK:
		return o.Text
	case OutcomeEmpty:
		return FallbackEmpty
	default:
		return FallbackFailed
	}
}

// complete calls the gateway and folds the result into an Outcome.
func (s *Service) complete(ctx context.Context, action domain.ActionKind, req llm.Request) Outcome {
	start := time.Now()
	text, err := s.gateway.Complete(ctx, req)
	text = strings.TrimSpace(text)

	var out Outcome
	switch {
	case err == nil && text != "":
		out = Outcome{Kind: OutcomeOK, Text: text}
	case err == nil, errors.Is(err, llm.ErrEmptyResponse):
		out = Outcome{Kind: OutcomeEmpty, Err: err}
	default:
		out = Outcome{Kind: OutcomeFailed, Err: err}
	}

	s.metrics.ObserveGatewayCall(string(action), string(out.Kind), time.Since(start))
	if out.Kind == OutcomeFailed {
		s.logger.Error("Model call failed", "action", action, "error", err)
	} else if out.Kind == OutcomeEmpty {
		s.logger.Warn("Model returned empty response", "action", action)
	}
	return out
}

// shortAnswer treats results under five characters as "nothing to report".
func shortAnswer(o Outcome) bool {
	return !o.OK() || len(o.Text) < 5
}

// logAttrs is a small helper for consistent session log fields.
func logAttrs(key domain.SessionKey) []any {
	return []any{"user_id", key.UserID, "session_id", key.SessionID}
}
