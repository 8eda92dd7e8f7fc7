package trigger

import (
	"testing"

	"github.com/ashureev/convo-coach/internal/domain"
)

func kinds(ds []Decision) []domain.ActionKind {
	out := make([]domain.ActionKind, len(ds))
	for i, d := range ds {
		out[i] = d.Kind
	}
	return out
}

func TestBooksDue(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	tests := []struct {
		n    int
		want bool
	}{
		{n: 0, want: false},
		{n: 9, want: false},
		{n: 10, want: false},
		{n: 11, want: false},
		{n: 15, want: false},
		{n: 20, want: true},
		{n: 30, want: true},
		{n: 31, want: false},
	}
	for _, tt := range tests {
		if got := th.BooksDue(tt.n); got != tt.want {
			t.Errorf("BooksDue(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestEvaluateThresholds(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	tests := []struct {
		n    int
		want []domain.ActionKind
	}{
		{n: 3, want: nil},
		{n: 4, want: []domain.ActionKind{domain.ActionInsight}},
		{n: 5, want: []domain.ActionKind{domain.ActionInsight}},
		{n: 6, want: []domain.ActionKind{domain.ActionMisinformation, domain.ActionInsight}},
		{n: 20, want: []domain.ActionKind{domain.ActionMisinformation, domain.ActionInsight, domain.ActionBooks}},
	}
	for _, tt := range tests {
		got := kinds(th.Evaluate(tt.n))
		if len(got) != len(tt.want) {
			t.Errorf("Evaluate(%d) = %v, want %v", tt.n, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Evaluate(%d) = %v, want %v", tt.n, got, tt.want)
				break
			}
		}
	}
}

func TestEvaluateWindows(t *testing.T) {
	t.Parallel()

	for _, d := range DefaultThresholds().Evaluate(20) {
		var want int
		switch d.Kind {
		case domain.ActionMisinformation:
			want = 10
		case domain.ActionInsight:
			want = 15
		case domain.ActionBooks:
			want = 0
		}
		if d.Window != want {
			t.Errorf("%s window = %d, want %d", d.Kind, d.Window, want)
		}
	}
}

func TestPriorityFor(t *testing.T) {
	t.Parallel()

	if PriorityFor(domain.ActionMisinformation) != domain.PriorityHigh {
		t.Fatal("misinformation updates must be high priority")
	}
	if PriorityFor(domain.ActionInsight) != domain.PriorityNormal || PriorityFor(domain.ActionBooks) != domain.PriorityNormal {
		t.Fatal("insight and book updates must be normal priority")
	}
}
