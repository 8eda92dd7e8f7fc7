package trigger

import (
	"time"

	"github.com/ashureev/convo-coach/internal/domain"
)

// CooldownElapsed reports whether an action last fired at last (if ok) may
// fire again at now. It fires only when strictly more than interval passed.
func CooldownElapsed(last time.Time, ok bool, now time.Time, interval time.Duration) bool {
	if !ok {
		return true
	}
	return now.Sub(last) > interval
}

// TryFire checks the cooldown for kind on session and, when it may fire,
// records now as the new firing time. Callers must hold the session's lock
// so the check and the update happen as one step.
func TryFire(session *domain.ConversationSession, kind domain.ActionKind, now time.Time, interval time.Duration) bool {
	last, ok := session.LastFiredAt(kind)
	if !CooldownElapsed(last, ok, now, interval) {
		return false
	}
	session.MarkFired(kind, now)
	return true
}
