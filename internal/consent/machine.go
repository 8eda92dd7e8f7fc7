// Package consent implements the per-user consent state machine that gates
// every model call: waiting -> given -> ended.
package consent

import (
	"strings"

	"github.com/ashureev/convo-coach/internal/domain"
)

// ConfirmationMessage is returned when consent is first detected.
const ConfirmationMessage = "Consent confirmed. Conversation analysis beginning."

// Default phrase sets. Matching is case-insensitive substring containment.
var (
	DefaultConsentPhrases = []string{"i agree", "i consent", "let's begin", "start analysis"}
	DefaultEndPhrases     = []string{"goodbye", "talk to you later", "end conversation", "that's all"}
)

// Action is what the caller must do after a transition.
type Action int

const (
	// ActionNone: the conversation already ended, nothing happens.
	ActionNone Action = iota
	// ActionAwaitConsent: report that consent has not been given yet.
	ActionAwaitConsent
	// ActionConfirm: emit ConfirmationMessage without calling the model.
	ActionConfirm
	// ActionSummarize: run the full-transcript summary and clear cooldowns.
	ActionSummarize
	// ActionLiveFeedback: consult the cooldown gate for a live nudge.
	ActionLiveFeedback
)

func (a Action) String() string {
	switch a {
	case ActionAwaitConsent:
		return "await_consent"
	case ActionConfirm:
		return "confirm"
	case ActionSummarize:
		return "summarize"
	case ActionLiveFeedback:
		return "live_feedback"
	default:
		return "none"
	}
}

// Machine holds the closed phrase sets that drive transitions.
type Machine struct {
	consentPhrases []string
	endPhrases     []string
}

// NewMachine builds a machine from explicit phrase sets. Phrases are
// lower-cased once here.
func NewMachine(consentPhrases, endPhrases []string) *Machine {
	return &Machine{
		consentPhrases: lowerAll(consentPhrases),
		endPhrases:     lowerAll(endPhrases),
	}
}

// Default returns a machine using the default phrase sets.
func Default() *Machine {
	return NewMachine(DefaultConsentPhrases, DefaultEndPhrases)
}

// Transition returns the next state and the action for the joined request
// text. Ended is terminal: only deleting the stored state leaves it.
func (m *Machine) Transition(state domain.ConsentState, text string) (domain.ConsentState, Action) {
	lowered := strings.ToLower(text)

	switch state {
	case domain.ConsentEnded:
		return domain.ConsentEnded, ActionNone
	case domain.ConsentGiven:
		if containsAny(lowered, m.endPhrases) {
			return domain.ConsentEnded, ActionSummarize
		}
		return domain.ConsentGiven, ActionLiveFeedback
	default:
		if containsAny(lowered, m.consentPhrases) {
			return domain.ConsentGiven, ActionConfirm
		}
		return domain.ConsentWaiting, ActionAwaitConsent
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(p)))
	}
	return out
}
