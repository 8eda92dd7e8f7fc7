package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/convo-coach/internal/clock"
	"github.com/ashureev/convo-coach/internal/domain"
)

func newStores(t *testing.T) map[string]SessionStore {
	t.Helper()

	c := clock.Fake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "coach.db"), c)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]SessionStore{
		"memory": NewMemory(c),
		"sqlite": sqlite,
	}
}

func TestSessionStoreContract(t *testing.T) {
	t.Parallel()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := s.Get(ctx, "u1")
			if err != nil || got != nil {
				t.Fatalf("expected missing session, got %v err=%v", got, err)
			}

			created, err := s.GetOrCreate(ctx, "u1")
			if err != nil {
				t.Fatalf("GetOrCreate failed: %v", err)
			}
			if created.State != domain.ConsentWaiting {
				t.Fatalf("expected default state waiting, got %q", created.State)
			}
			if len(created.LastFired) != 0 {
				t.Fatalf("expected no cooldown entries, got %v", created.LastFired)
			}

			fired := time.Date(2024, 3, 1, 9, 0, 1, 500_000_000, time.UTC)
			created.State = domain.ConsentGiven
			created.MarkFired(domain.ActionLiveNudge, fired)
			if err := s.Put(ctx, created); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			again, err := s.GetOrCreate(ctx, "u1")
			if err != nil {
				t.Fatalf("GetOrCreate failed: %v", err)
			}
			if again.State != domain.ConsentGiven {
				t.Fatalf("GetOrCreate must not reset existing state, got %q", again.State)
			}
			last, ok := again.LastFiredAt(domain.ActionLiveNudge)
			if !ok || !last.Equal(fired) {
				t.Fatalf("expected cooldown %v with sub-second precision, got %v ok=%v", fired, last, ok)
			}

			if err := s.Delete(ctx, "u1"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := s.Delete(ctx, "u1"); err != nil {
				t.Fatalf("deleting a missing session must not fail: %v", err)
			}
			fresh, err := s.GetOrCreate(ctx, "u1")
			if err != nil {
				t.Fatalf("GetOrCreate failed: %v", err)
			}
			if fresh.State != domain.ConsentWaiting {
				t.Fatalf("expected fresh waiting state after delete, got %q", fresh.State)
			}
		})
	}
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	t.Parallel()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got, err := s.GetOrCreate(ctx, "u2")
			if err != nil {
				t.Fatalf("GetOrCreate failed: %v", err)
			}
			got.State = domain.ConsentEnded
			got.MarkFired(domain.ActionLiveNudge, time.Now())

			stored, err := s.Get(ctx, "u2")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if stored.State != domain.ConsentWaiting || len(stored.LastFired) != 0 {
				t.Fatalf("store mutated without Put: %+v", stored)
			}
		})
	}
}

func TestSQLiteCleanupExpired(t *testing.T) {
	t.Parallel()

	c := clock.Fake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	s, err := NewSQLite(filepath.Join(t.TempDir(), "coach.db"), c)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	if _, err := s.GetOrCreate(ctx, "old"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	c.Advance(48 * time.Hour)
	if _, err := s.GetOrCreate(ctx, "new"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	deleted, err := s.CleanupExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 expired session deleted, got %d", deleted)
	}
	if got, _ := s.Get(ctx, "new"); got == nil {
		t.Fatal("recent session must survive cleanup")
	}
}
