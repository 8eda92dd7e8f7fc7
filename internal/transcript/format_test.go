package transcript

import (
	"testing"

	"github.com/ashureev/convo-coach/internal/domain"
)

func TestFormatSegments(t *testing.T) {
	t.Parallel()

	got := FormatSegments([]domain.TranscriptSegment{
		{Text: "  Hello there ", IsUser: true, Start: 0, End: 3.5},
		{Text: "Hi!", SpeakerID: 2, Start: 3661, End: 3662.9},
	})
	want := "[00:00:00 - 00:00:03] User: Hello there\n\n[01:01:01 - 01:01:02] Speaker 2: Hi!"
	if got != want {
		t.Fatalf("unexpected rendering:\n got: %q\nwant: %q", got, want)
	}
}

func TestJoinTextAndLastEnd(t *testing.T) {
	t.Parallel()

	in := []domain.TranscriptSegment{{Text: "I", End: 1}, {Text: "Consent", End: 2.5}}
	if got := JoinText(in); got != "I Consent" {
		t.Fatalf("unexpected joined text %q", got)
	}
	if got := LastEnd(in); got != 2.5 {
		t.Fatalf("expected last end 2.5, got %v", got)
	}
	if got := LastEnd(nil); got != 0 {
		t.Fatalf("expected 0 for empty window, got %v", got)
	}
}
