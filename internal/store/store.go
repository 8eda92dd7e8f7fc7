// Package store provides session-state persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/convo-coach/internal/domain"
)

// SessionStore persists per-user consent and cooldown state.
//
// Implementations return copies: mutating a returned session has no effect
// until it is passed to Put.
type SessionStore interface {
	// Get retrieves the session for a user, or nil if none exists.
	Get(ctx context.Context, userID string) (*domain.ConversationSession, error)

	// GetOrCreate returns the stored session, creating and storing the
	// default one (waiting for consent, no cooldowns) if none exists.
	GetOrCreate(ctx context.Context, userID string) (*domain.ConversationSession, error)

	// Put creates or replaces the session.
	Put(ctx context.Context, session *domain.ConversationSession) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, userID string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
