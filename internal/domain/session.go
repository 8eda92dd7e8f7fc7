package domain

import (
	"time"
)

// ConsentState is the per-user consent/session state.
type ConsentState string

const (
	// ConsentWaiting is the initial state: no model calls until consent is heard.
	ConsentWaiting ConsentState = "waiting"
	// ConsentGiven means live feedback is active.
	ConsentGiven ConsentState = "given"
	// ConsentEnded is terminal until the session state is deleted.
	ConsentEnded ConsentState = "ended"
)

// Valid reports whether s is one of the known states.
func (s ConsentState) Valid() bool {
	switch s {
	case ConsentWaiting, ConsentGiven, ConsentEnded:
		return true
	}
	return false
}

// ConversationSession stores consent and cooldown state for a user.
type ConversationSession struct {
	UserID    string
	State     ConsentState
	LastFired map[ActionKind]time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConversationSession returns the default state for a user seen for
// the first time: waiting for consent, no cooldown entries.
func NewConversationSession(userID string, now time.Time) *ConversationSession {
	return &ConversationSession{
		UserID:    userID,
		State:     ConsentWaiting,
		LastFired: make(map[ActionKind]time.Time),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LastFiredAt returns the last time kind fired, if it ever did.
func (s *ConversationSession) LastFiredAt(kind ActionKind) (time.Time, bool) {
	t, ok := s.LastFired[kind]
	return t, ok
}

// MarkFired records that kind fired at t.
func (s *ConversationSession) MarkFired(kind ActionKind, t time.Time) {
	if s.LastFired == nil {
		s.LastFired = make(map[ActionKind]time.Time)
	}
	s.LastFired[kind] = t
}

// ClearCooldowns forgets every recorded firing.
func (s *ConversationSession) ClearCooldowns() {
	s.LastFired = make(map[ActionKind]time.Time)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *ConversationSession) Clone() *ConversationSession {
	c := *s
	c.LastFired = make(map[ActionKind]time.Time, len(s.LastFired))
	for k, v := range s.LastFired {
		c.LastFired[k] = v
	}
	return &c
}
