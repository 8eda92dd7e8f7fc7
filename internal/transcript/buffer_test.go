package transcript

import (
	"reflect"
	"testing"
	"time"

	"github.com/ashureev/convo-coach/internal/clock"
	"github.com/ashureev/convo-coach/internal/domain"
)

func seg(text string, start, end float64) domain.TranscriptSegment {
	return domain.TranscriptSegment{Text: text, SpeakerLabel: "User", SpeakerID: 1, IsUser: true, Start: start, End: end}
}

func segs(n int, offset float64) []domain.TranscriptSegment {
	out := make([]domain.TranscriptSegment, n)
	for i := range out {
		start := offset + float64(i)
		out[i] = seg("line", start, start+0.5)
	}
	return out
}

func TestAppendIsAssociative(t *testing.T) {
	t.Parallel()

	a := segs(3, 0)
	b := segs(4, 10)
	key := domain.SessionKey{UserID: "u1", SessionID: "s1"}

	split := NewStore(nil)
	split.Append(key, a)
	gotSplit := split.Append(key, b)

	joined := NewStore(nil)
	gotJoined := joined.Append(key, append(append([]domain.TranscriptSegment{}, a...), b...))

	if !reflect.DeepEqual(gotSplit, gotJoined) {
		t.Fatalf("split append %v differs from joined append %v", gotSplit, gotJoined)
	}
	if len(gotSplit) != 7 {
		t.Fatalf("expected 7 segments, got %d", len(gotSplit))
	}
}

func TestAppendKeepsDuplicates(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	key := domain.SessionKey{UserID: "u1", SessionID: "s1"}
	batch := []domain.TranscriptSegment{seg("hello", 0, 1)}

	s.Append(key, batch)
	got := s.Append(key, batch)
	if len(got) != 2 {
		t.Fatalf("expected duplicate resend to produce 2 entries, got %d", len(got))
	}
}

func TestAppendReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	key := domain.SessionKey{UserID: "u1", SessionID: "s1"}
	got := s.Append(key, []domain.TranscriptSegment{seg("original", 0, 1)})
	got[0].Text = "mutated"

	if snap := s.Snapshot(key); snap[0].Text != "original" {
		t.Fatalf("buffer was mutated through returned slice: %q", snap[0].Text)
	}
}

func TestClearAllExcept(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	keep := domain.SessionKey{UserID: "u1", SessionID: "keep"}
	s.Append(keep, segs(2, 0))
	s.Append(domain.SessionKey{UserID: "u1", SessionID: "old-1"}, segs(1, 0))
	s.Append(domain.SessionKey{UserID: "u1", SessionID: "old-2"}, segs(1, 0))
	other := domain.SessionKey{UserID: "u2", SessionID: "old-1"}
	s.Append(other, segs(1, 0))

	if removed := s.ClearAllExcept("u1", "keep"); removed != 2 {
		t.Fatalf("expected 2 buffers removed, got %d", removed)
	}
	if removed := s.ClearAllExcept("u1", "keep"); removed != 0 {
		t.Fatalf("expected second call to be a no-op, removed %d", removed)
	}
	if s.Len(keep) != 2 {
		t.Fatalf("kept buffer lost segments: %d", s.Len(keep))
	}
	if s.Len(other) != 1 {
		t.Fatal("buffer of another user must not be touched")
	}
	if s.Count() != 2 {
		t.Fatalf("expected 2 live buffers, got %d", s.Count())
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	key := domain.SessionKey{UserID: "u1", SessionID: "s1"}
	s.Append(key, segs(3, 0))

	if !s.Remove(key) {
		t.Fatal("expected Remove to report an existing buffer")
	}
	if s.Remove(key) {
		t.Fatal("expected second Remove to report nothing removed")
	}
	if s.Snapshot(key) != nil {
		t.Fatal("expected nil snapshot after remove")
	}
}

func TestTrimPrefixKeepsLaterSegments(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	key := domain.SessionKey{UserID: "u1", SessionID: "s1"}
	evaluated := s.Append(key, segs(6, 0))
	late := seg("late", 100, 101)
	s.Append(key, []domain.TranscriptSegment{late})

	if left := s.TrimPrefix(key, evaluated); left != 1 {
		t.Fatalf("expected 1 segment left, got %d", left)
	}
	if got := s.Snapshot(key); len(got) != 1 || got[0] != late {
		t.Fatalf("expected only the late segment to remain, got %v", got)
	}
}

func TestTrimPrefixRemovesEmptyBuffer(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	key := domain.SessionKey{UserID: "u1", SessionID: "s1"}
	evaluated := s.Append(key, segs(6, 0))

	if left := s.TrimPrefix(key, evaluated); left != 0 {
		t.Fatalf("expected empty buffer, got %d segments", left)
	}
	if s.Count() != 0 {
		t.Fatalf("expected buffer deleted, %d remain", s.Count())
	}
}

func TestTrimPrefixIgnoresReplacedBuffer(t *testing.T) {
	t.Parallel()

	s := NewStore(nil)
	key := domain.SessionKey{UserID: "u1", SessionID: "s1"}
	evaluated := s.Append(key, segs(3, 0))
	s.Remove(key)
	s.Append(key, segs(4, 50))

	if left := s.TrimPrefix(key, evaluated); left != 4 {
		t.Fatalf("expected the new buffer untouched, got %d segments", left)
	}
	if left := s.TrimPrefix(domain.SessionKey{UserID: "u9", SessionID: "s9"}, evaluated); left != 0 {
		t.Fatalf("expected 0 for a missing buffer, got %d", left)
	}
}

func TestRecentWindow(t *testing.T) {
	t.Parallel()

	all := segs(12, 0)
	tests := []struct {
		n    int
		want int
	}{
		{n: 10, want: 10},
		{n: 12, want: 12},
		{n: 15, want: 12},
		{n: 0, want: 0},
	}
	for _, tt := range tests {
		got := RecentWindow(all, tt.n)
		if len(got) != tt.want {
			t.Errorf("RecentWindow(12, %d) returned %d segments, want %d", tt.n, len(got), tt.want)
		}
		if tt.want > 0 && got[len(got)-1] != all[len(all)-1] {
			t.Errorf("RecentWindow(12, %d) does not end with the newest segment", tt.n)
		}
	}
}

func TestEvictIdle(t *testing.T) {
	t.Parallel()

	c := clock.Fake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s := NewStore(c)
	stale := domain.SessionKey{UserID: "u1", SessionID: "stale"}
	fresh := domain.SessionKey{UserID: "u2", SessionID: "fresh"}

	s.Append(stale, segs(1, 0))
	c.Advance(20 * time.Minute)
	s.Append(fresh, segs(1, 0))
	c.Advance(15 * time.Minute)

	var seen []domain.SessionKey
	if n := sweepIdle(s, 30*time.Minute, func(k domain.SessionKey) { seen = append(seen, k) }); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if len(seen) != 1 || seen[0] != stale {
		t.Fatalf("expected stale buffer evicted, got %v", seen)
	}
	if s.Len(fresh) != 1 {
		t.Fatal("fresh buffer must survive the sweep")
	}
}
