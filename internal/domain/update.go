package domain

// ActionKind names a side-effecting model action.
type ActionKind string

const (
	ActionLiveNudge      ActionKind = "live_nudge"
	ActionSummary        ActionKind = "summary"
	ActionMisinformation ActionKind = "news_check"
	ActionInsight        ActionKind = "insight"
	ActionBooks          ActionKind = "book_recommendation"
)

// Priority labels an update for the client.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Update is one piece of feedback produced while ingesting segments.
type Update struct {
	ID        string     `json:"id"`
	Type      ActionKind `json:"type"`
	Content   string     `json:"content"`
	Priority  Priority   `json:"priority"`
	Timestamp float64    `json:"timestamp"`
}
