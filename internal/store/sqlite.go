package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/convo-coach/internal/clock"
	"github.com/ashureev/convo-coach/internal/domain"
	"github.com/ashureev/convo-coach/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	conflictRetries   = 3
	conflictBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements SessionStore using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	mu    sync.Mutex // serialises writers to avoid SQLITE_BUSY
	clock clock.Clock
}

// NewSQLite creates a new SQLite-backed session store.
func NewSQLite(dbPath string, c clock.Clock) (*SQLiteStore, error) {
	if c == nil {
		c = clock.Real()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, clock: c}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversation_sessions (
		user_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		last_fired_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_sessions_updated ON conversation_sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Get retrieves the session for a user.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*domain.ConversationSession, error) {
	query := `
		SELECT user_id, state, last_fired_json, created_at, updated_at
		FROM conversation_sessions WHERE user_id = ?`

	var (
		session            domain.ConversationSession
		state, lastFired   string
		createdAt, updated int64
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&session.UserID, &state, &lastFired, &createdAt, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation session: %w", err)
	}

	session.State = domain.ConsentState(state)
	if !session.State.Valid() {
		return nil, fmt.Errorf("conversation session %s has unknown state %q", userID, state)
	}
	session.LastFired, err = decodeLastFired(lastFired)
	if err != nil {
		return nil, fmt.Errorf("decode cooldowns for %s: %w", userID, err)
	}
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updated, 0)

	return &session, nil
}

// GetOrCreate returns the stored session or inserts the default one.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, userID string) (*domain.ConversationSession, error) {
	now := s.clock.Now()
	err := s.write(ctx, "insert conversation session", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO conversation_sessions (user_id, state, last_fired_json, created_at, updated_at)
			VALUES (?, ?, '{}', ?, ?)
			ON CONFLICT(user_id) DO NOTHING`,
			userID, string(domain.ConsentWaiting), now.Unix(), now.Unix(),
		)
		return err
	})
	if err != nil {
		return nil, err
	}

	session, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("conversation session %s vanished after insert", userID)
	}
	return session, nil
}

// Put creates or replaces the session.
func (s *SQLiteStore) Put(ctx context.Context, session *domain.ConversationSession) error {
	lastFired, err := encodeLastFired(session.LastFired)
	if err != nil {
		return fmt.Errorf("encode cooldowns: %w", err)
	}
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	return s.write(ctx, "upsert conversation session", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO conversation_sessions (user_id, state, last_fired_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				state = excluded.state,
				last_fired_json = excluded.last_fired_json,
				updated_at = excluded.updated_at`,
			session.UserID, string(session.State), lastFired,
			createdAt.Unix(), s.clock.Now().Unix(),
		)
		return err
	})
}

// Delete removes the session.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	return s.write(ctx, "delete conversation session", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE user_id = ?`, userID)
		return err
	})
}

// CleanupExpired removes sessions not updated within ttl.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := s.clock.Now().Add(-ttl).Unix()
	var deleted int64
	err := s.write(ctx, "cleanup conversation sessions", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE updated_at < ?`, threshold)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

func (s *SQLiteStore) write(ctx context.Context, op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := shared.RetryOnConflict(ctx, op, conflictRetries, conflictBaseDelay, fn); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Cooldown timestamps are kept with nanosecond precision; second-resolution
// columns would make sub-second cooldowns unreliable.
func encodeLastFired(in map[domain.ActionKind]time.Time) (string, error) {
	raw := make(map[string]int64, len(in))
	for kind, t := range in {
		raw[string(kind)] = t.UnixNano()
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeLastFired(data string) (map[domain.ActionKind]time.Time, error) {
	out := make(map[domain.ActionKind]time.Time)
	if data == "" {
		return out, nil
	}
	var raw map[string]int64
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}
	for kind, ns := range raw {
		out[domain.ActionKind(kind)] = time.Unix(0, ns)
	}
	return out, nil
}

var _ SessionStore = (*SQLiteStore)(nil)
