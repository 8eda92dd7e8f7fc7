package store

import (
	"context"
	"sync"

	"github.com/ashureev/convo-coach/internal/clock"
	"github.com/ashureev/convo-coach/internal/domain"
)

// MemoryStore implements SessionStore with a process-local map. State is
// lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ConversationSession
	clock    clock.Clock
}

// NewMemory creates an empty in-memory session store.
func NewMemory(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryStore{
		sessions: make(map[string]*domain.ConversationSession),
		clock:    c,
	}
}

// Get retrieves the session for a user.
func (m *MemoryStore) Get(_ context.Context, userID string) (*domain.ConversationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.sessions[userID]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

// GetOrCreate returns the stored session or stores a fresh default one.
func (m *MemoryStore) GetOrCreate(_ context.Context, userID string) (*domain.ConversationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		s = domain.NewConversationSession(userID, m.clock.Now())
		m.sessions[userID] = s
	}
	return s.Clone(), nil
}

// Put creates or replaces the session.
func (m *MemoryStore) Put(_ context.Context, session *domain.ConversationSession) error {
	c := session.Clone()
	c.UpdatedAt = m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[c.UserID]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	m.sessions[c.UserID] = c
	return nil
}

// Delete removes the session.
func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

var _ SessionStore = (*MemoryStore)(nil)
