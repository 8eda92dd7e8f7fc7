package consent

import (
	"testing"

	"github.com/ashureev/convo-coach/internal/domain"
)

func TestTransitions(t *testing.T) {
	t.Parallel()

	m := Default()
	tests := []struct {
		name      string
		state     domain.ConsentState
		text      string
		wantState domain.ConsentState
		wantAct   Action
	}{
		{"waiting without consent", domain.ConsentWaiting, "hello there", domain.ConsentWaiting, ActionAwaitConsent},
		{"waiting with consent", domain.ConsentWaiting, "Sure, I Consent to this", domain.ConsentGiven, ActionConfirm},
		{"waiting ignores end phrase", domain.ConsentWaiting, "goodbye", domain.ConsentWaiting, ActionAwaitConsent},
		{"unknown state treated as waiting", "", "let's begin", domain.ConsentGiven, ActionConfirm},
		{"given live", domain.ConsentGiven, "so how was your weekend", domain.ConsentGiven, ActionLiveFeedback},
		{"given end", domain.ConsentGiven, "OK, GOODBYE everyone", domain.ConsentEnded, ActionSummarize},
		{"given consent again", domain.ConsentGiven, "i agree", domain.ConsentGiven, ActionLiveFeedback},
		{"ended stays ended", domain.ConsentEnded, "i consent", domain.ConsentEnded, ActionNone},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotState, gotAct := m.Transition(tt.state, tt.text)
			if gotState != tt.wantState || gotAct != tt.wantAct {
				t.Fatalf("Transition(%q, %q) = (%q, %s), want (%q, %s)",
					tt.state, tt.text, gotState, gotAct, tt.wantState, tt.wantAct)
			}
		})
	}
}

func TestEndedIsMonotonic(t *testing.T) {
	t.Parallel()

	m := Default()
	inputs := []string{"", "i agree", "i consent", "let's begin", "start analysis", "goodbye", "anything"}
	for _, in := range inputs {
		if got, act := m.Transition(domain.ConsentEnded, in); got != domain.ConsentEnded || act != ActionNone {
			t.Fatalf("ended state moved to %q (%s) on %q", got, act, in)
		}
	}
}

func TestCustomPhrasesAreCaseInsensitive(t *testing.T) {
	t.Parallel()

	m := NewMachine([]string{"  Go Ahead "}, []string{"WRAP UP"})
	if got, _ := m.Transition(domain.ConsentWaiting, "ok go ahead"); got != domain.ConsentGiven {
		t.Fatalf("expected custom consent phrase to match, got %q", got)
	}
	if got, _ := m.Transition(domain.ConsentGiven, "let's wrap up"); got != domain.ConsentEnded {
		t.Fatalf("expected custom end phrase to match, got %q", got)
	}
}
