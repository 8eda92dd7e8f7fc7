package coach

import (
	"time"

	"github.com/ashureev/convo-coach/internal/domain"
)

// Status values returned by the consent flow and gated ingestion.
const (
	StatusWaitingForConsent = "waiting_for_consent"
	StatusInCooldown        = "in_cooldown"
	StatusEnded             = "ended"
	StatusNoSegments        = "no_segments"
)

// SummaryPrefix precedes the end-of-conversation summary.
const SummaryPrefix = "Conversation coach has ended. Read the summary: "

// BooksPrefix precedes the comma-joined list of detected book titles.
const BooksPrefix = "Books mentioned: "

// insightLimit is the longest insight returned before truncation.
const insightLimit = 200

// DefaultFeedbackCooldown is the minimum gap between two nudges for one user.
const DefaultFeedbackCooldown = 7500 * time.Millisecond

// IngestRequest carries a batch of live segments for one session.
type IngestRequest struct {
	UserID    string                     `json:"user_id"`
	SessionID string                     `json:"session_id"`
	Segments  []domain.TranscriptSegment `json:"segments"`
	// Full makes the news checker read the whole buffer with the
	// full-conversation prompt instead of the recent window.
	Full bool `json:"full,omitempty"`
}

// IngestResponse lists the feedback produced for a batch.
type IngestResponse struct {
	Updates       []domain.Update `json:"updates"`
	SessionID     string          `json:"session_id"`
	TotalSegments int             `json:"total_segments"`
	Status        string          `json:"status,omitempty"`
}

// LiveRequest is one request of the consent-gated coaching flow.
type LiveRequest struct {
	UserID    string
	SessionID string
	Segments  []domain.TranscriptSegment
}

// LiveResult is exactly one of a status or a message.
type LiveResult struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewsResult is the outcome of a standalone misinformation check. An empty
// message means nothing concerning was found.
type NewsResult struct {
	Message string `json:"message"`
}

// ConversationState describes a user's live conversation.
type ConversationState struct {
	SessionID       string     `json:"session_id"`
	UserID          string     `json:"user_id"`
	IsActive        bool       `json:"is_active"`
	Consent         string     `json:"consent"`
	TotalSegments   int        `json:"total_segments"`
	LastUpdateSent  *time.Time `json:"last_update_sent"`
	UpdateFrequency float64    `json:"update_frequency"`
}

// EndResult acknowledges an explicit end-conversation call.
type EndResult struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}
