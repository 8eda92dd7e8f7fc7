// Package transcript keeps per-session transcript buffers and renders them
// for prompts.
package transcript

import (
	"sync"
	"time"

	"github.com/ashureev/convo-coach/internal/clock"
	"github.com/ashureev/convo-coach/internal/domain"
)

type buffer struct {
	segments  []domain.TranscriptSegment
	touchedAt time.Time
}

// Store holds transcript buffers keyed by user and session.
// It is safe for concurrent use. Returned slices are copies.
type Store struct {
	mu      sync.RWMutex
	buffers map[string]map[string]*buffer // userID -> sessionID -> buffer
	clock   clock.Clock
}

// NewStore creates an empty buffer store.
func NewStore(c clock.Clock) *Store {
	if c == nil {
		c = clock.Real()
	}
	return &Store{
		buffers: make(map[string]map[string]*buffer),
		clock:   c,
	}
}

// Append adds segments to the buffer for key in the given order and returns
// the full buffer contents. Segments are not deduplicated.
func (s *Store) Append(key domain.SessionKey, segments []domain.TranscriptSegment) []domain.TranscriptSegment {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, ok := s.buffers[key.UserID]
	if !ok {
		sessions = make(map[string]*buffer)
		s.buffers[key.UserID] = sessions
	}
	b, ok := sessions[key.SessionID]
	if !ok {
		b = &buffer{}
		sessions[key.SessionID] = b
	}
	b.segments = append(b.segments, segments...)
	b.touchedAt = s.clock.Now()

	return copySegments(b.segments)
}

// Snapshot returns a copy of the buffer for key, or nil if none exists.
func (s *Store) Snapshot(key domain.SessionKey) []domain.TranscriptSegment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b := s.lookup(key); b != nil {
		return copySegments(b.segments)
	}
	return nil
}

// Len returns the number of segments buffered for key.
func (s *Store) Len(key domain.SessionKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b := s.lookup(key); b != nil {
		return len(b.segments)
	}
	return 0
}

// ClearAllExcept removes every buffer for userID whose session differs from
// keepSessionID and returns how many were removed.
func (s *Store) ClearAllExcept(userID, keepSessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, ok := s.buffers[userID]
	if !ok {
		return 0
	}
	removed := 0
	for sessionID := range sessions {
		if sessionID != keepSessionID {
			delete(sessions, sessionID)
			removed++
		}
	}
	if len(sessions) == 0 {
		delete(s.buffers, userID)
	}
	return removed
}

// Remove deletes the buffer for key. It reports whether a buffer existed.
func (s *Store) Remove(key domain.SessionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, ok := s.buffers[key.UserID]
	if !ok {
		return false
	}
	if _, ok := sessions[key.SessionID]; !ok {
		return false
	}
	delete(sessions, key.SessionID)
	if len(sessions) == 0 {
		delete(s.buffers, key.UserID)
	}
	return true
}

// TrimPrefix drops the evaluated segments from the front of the buffer for
// key, keeping anything appended after them. Nothing is dropped when the
// buffer no longer starts with evaluated. The buffer is deleted once empty.
// It returns how many segments remain.
func (s *Store) TrimPrefix(key domain.SessionKey, evaluated []domain.TranscriptSegment) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.lookup(key)
	if b == nil {
		return 0
	}
	n := len(evaluated)
	if n > len(b.segments) {
		return len(b.segments)
	}
	for i := range evaluated {
		if b.segments[i] != evaluated[i] {
			return len(b.segments)
		}
	}
	if n == len(b.segments) {
		sessions := s.buffers[key.UserID]
		delete(sessions, key.SessionID)
		if len(sessions) == 0 {
			delete(s.buffers, key.UserID)
		}
		return 0
	}
	b.segments = copySegments(b.segments[n:])
	return len(b.segments)
}

// Count returns the number of live buffers across all users.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sessions := range s.buffers {
		n += len(sessions)
	}
	return n
}

// EvictIdle removes buffers that have not been appended to within ttl and
// returns their keys.
func (s *Store) EvictIdle(ttl time.Duration) []domain.SessionKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-ttl)
	var evicted []domain.SessionKey
	for userID, sessions := range s.buffers {
		for sessionID, b := range sessions {
			if b.touchedAt.Before(cutoff) {
				delete(sessions, sessionID)
				evicted = append(evicted, domain.SessionKey{UserID: userID, SessionID: sessionID})
			}
		}
		if len(sessions) == 0 {
			delete(s.buffers, userID)
		}
	}
	return evicted
}

func (s *Store) lookup(key domain.SessionKey) *buffer {
	if sessions, ok := s.buffers[key.UserID]; ok {
		return sessions[key.SessionID]
	}
	return nil
}

// RecentWindow returns the last n segments, or all of them if fewer exist.
func RecentWindow(segments []domain.TranscriptSegment, n int) []domain.TranscriptSegment {
	if n <= 0 {
		return nil
	}
	if n >= len(segments) {
		return segments
	}
	return segments[len(segments)-n:]
}

func copySegments(in []domain.TranscriptSegment) []domain.TranscriptSegment {
	if in == nil {
		return nil
	}
	out := make([]domain.TranscriptSegment, len(in))
	copy(out, in)
	return out
}
