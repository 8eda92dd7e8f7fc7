// Package trigger decides which model actions a request should run.
package trigger

import (
	"github.com/ashureev/convo-coach/internal/domain"
)

// Thresholds tunes when each buffered-transcript action becomes eligible.
// A MinSegments value is exclusive: the buffer must be strictly longer.
type Thresholds struct {
	MisinfoMinSegments int
	MisinfoWindow      int
	InsightMinSegments int
	InsightWindow      int
	BooksMinSegments   int
	BooksEvery         int
	// BooksWindow of zero hands the whole buffer to the books check.
	BooksWindow int
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MisinfoMinSegments: 5,
		MisinfoWindow:      10,
		InsightMinSegments: 3,
		InsightWindow:      15,
		BooksMinSegments:   10,
		BooksEvery:         10,
		BooksWindow:        0,
	}
}

// Decision is one action to run and how many recent segments it sees.
// A Window of zero or less means the whole buffer.
type Decision struct {
	Kind   domain.ActionKind
	Window int
}

// Evaluate returns the actions eligible for a buffer of length n, in the
// order they should run. Rules are independent; several may fire together.
func (t Thresholds) Evaluate(n int) []Decision {
	var out []Decision
	if t.MisinformationDue(n) {
		out = append(out, Decision{Kind: domain.ActionMisinformation, Window: t.MisinfoWindow})
	}
	if t.InsightDue(n) {
		out = append(out, Decision{Kind: domain.ActionInsight, Window: t.InsightWindow})
	}
	if t.BooksDue(n) {
		out = append(out, Decision{Kind: domain.ActionBooks, Window: t.BooksWindow})
	}
	return out
}

// MisinformationDue reports whether the misinformation check should run.
func (t Thresholds) MisinformationDue(n int) bool {
	return n > t.MisinfoMinSegments
}

// InsightDue reports whether a conversational insight should be requested.
func (t Thresholds) InsightDue(n int) bool {
	return n > t.InsightMinSegments
}

// BooksDue reports whether n sits exactly on a book-check boundary. A batch
// that jumps over a multiple skips that check.
func (t Thresholds) BooksDue(n int) bool {
	if t.BooksEvery <= 0 {
		return false
	}
	return n > t.BooksMinSegments && n%t.BooksEvery == 0
}

// PriorityFor returns the fixed priority label for an update kind.
func PriorityFor(kind domain.ActionKind) domain.Priority {
	if kind == domain.ActionMisinformation {
		return domain.PriorityHigh
	}
	return domain.PriorityNormal
}
