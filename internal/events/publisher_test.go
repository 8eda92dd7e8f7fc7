package events

import (
	"context"
	"testing"
)

func TestSubject(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"user123":   "coach.updates.user123",
		"a.b":       "coach.updates.a_b",
		"wild*card": "coach.updates.wild_card",
		"x > y":     "coach.updates.x___y",
		"":          "coach.updates._",
	}
	for in, want := range tests {
		if got := Subject("coach.updates", in); got != want {
			t.Errorf("Subject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNoopPublisher(t *testing.T) {
	t.Parallel()

	var p Publisher = Noop{}
	if err := p.Publish(context.Background(), Event{UserID: "u"}); err != nil {
		t.Fatalf("noop publish failed: %v", err)
	}
	p.Close()
}
