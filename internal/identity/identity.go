// Package identity resolves which user and session a request belongs to.
// There is no authentication: the caller names itself.
package identity

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

const (
	UserHeaderName        = "X-User-ID"
	SessionHeaderName     = "X-Session-ID"
	DefaultSessionIDValue = "default"
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// WithIdentity returns ctx carrying the given user and session IDs.
func WithIdentity(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SanitizeUserID trims id and returns "" if it is not a valid identifier.
func SanitizeUserID(id string) string {
	id = strings.TrimSpace(id)
	if !idPattern.MatchString(id) {
		return ""
	}
	return id
}

// SanitizeSessionID trims id and falls back to the default session.
func SanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !idPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

func userIDFromRequest(r *http.Request) string {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		uid = r.Header.Get(UserHeaderName)
	}
	return SanitizeUserID(uid)
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return SanitizeSessionID(sid)
}

// Middleware injects the caller-supplied user ID (uid query parameter or
// X-User-ID header) and session ID into the request context. Requests
// without a user ID pass through; handlers may still read it from the body.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithIdentity(r.Context(), userIDFromRequest(r), sessionIDFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
