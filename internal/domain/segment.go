// Package domain contains core domain types for the conversation coach.
package domain

// TranscriptSegment is one span of transcribed speech. Segments are
// immutable once appended to a buffer.
type TranscriptSegment struct {
	Text         string  `json:"text"`
	SpeakerLabel string  `json:"speaker"`
	SpeakerID    int     `json:"speaker_id"`
	IsUser       bool    `json:"is_user"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
}

// SessionKey identifies one transcript buffer.
type SessionKey struct {
	UserID    string
	SessionID string
}

// String returns the "user:session" form used in logs and map keys.
func (k SessionKey) String() string {
	return k.UserID + ":" + k.SessionID
}
