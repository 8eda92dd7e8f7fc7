package shared

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsSQLiteConflictError(t *testing.T) {
	t.Parallel()

	if IsSQLiteConflictError(nil) {
		t.Fatal("nil is not a conflict")
	}
	if !IsSQLiteConflictError(errors.New("exec: SQLITE_BUSY (5)")) {
		t.Fatal("expected SQLITE_BUSY to be a conflict")
	}
	if !IsSQLiteConflictError(errors.New("database is locked")) {
		t.Fatal("expected locked database to be a conflict")
	}
	if IsSQLiteConflictError(errors.New("no such table")) {
		t.Fatal("schema errors are not conflicts")
	}
}

func TestRetryOnConflict(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryOnConflict(context.Background(), "test", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}

	calls = 0
	permanent := errors.New("constraint failed")
	err = RetryOnConflict(context.Background(), "test", 3, time.Millisecond, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected single attempt for non-conflict error, got %d calls err=%v", calls, err)
	}
}
