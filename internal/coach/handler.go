package coach

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/convo-coach/internal/api"
	"github.com/ashureev/convo-coach/internal/domain"
	"github.com/ashureev/convo-coach/internal/identity"
	"github.com/ashureev/convo-coach/internal/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// HandlerConfig holds HTTP-level settings.
type HandlerConfig struct {
	MaxRequestBodySize int64
	// OriginPatterns is passed to websocket.Accept; empty allows any origin.
	OriginPatterns []string
}

// Handler serves the coaching HTTP and websocket endpoints.
type Handler struct {
	svc     *Service
	limiter *RateLimiter
	conns   *ConnRegistry
	metrics *metrics.Metrics
	cfg     HandlerConfig
}

// NewHandler creates a new Handler. limiter may be nil to disable rate limiting.
func NewHandler(svc *Service, limiter *RateLimiter, m *metrics.Metrics, cfg HandlerConfig) *Handler {
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = api.DefaultMaxRequestBodySize
	}
	if len(cfg.OriginPatterns) == 0 {
		cfg.OriginPatterns = []string{"*"}
	}
	return &Handler{
		svc:     svc,
		limiter: limiter,
		conns:   NewConnRegistry(),
		metrics: m,
		cfg:     cfg,
	}
}

// RegisterRoutes registers coaching routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/live-updates", h.HandleLiveUpdates)
	r.Post("/news-checker", h.HandleNewsChecker)
	r.Post("/livetranscript", h.HandleLiveTranscript)
	r.Get("/conversation-state/{uid}/{session_id}", h.HandleConversationState)
	r.Post("/end-conversation/{uid}/{session_id}", h.HandleEndConversation)
	r.Get("/ws/live", h.HandleLiveSocket)
}

// Connections exposes the live websocket registry.
func (h *Handler) Connections() *ConnRegistry {
	return h.conns
}

type segmentsBody struct {
	UserID     string                     `json:"user_id"`
	SessionID  string                     `json:"session_id"`
	Segments   []domain.TranscriptSegment `json:"segments"`
	Full       bool                       `json:"full"`
	Transcript *struct {
		Segments []domain.TranscriptSegment `json:"segments"`
	} `json:"transcript,omitempty"`
}

// segments prefers the nested transcript form when present.
func (b segmentsBody) segments() []domain.TranscriptSegment {
	if b.Transcript != nil && len(b.Transcript.Segments) > 0 {
		return b.Transcript.Segments
	}
	return b.Segments
}

// resolve fills user and session IDs from the request context, falling back
// to the body.
func (h *Handler) resolve(r *http.Request, body segmentsBody) (userID, sessionID string) {
	userID = identity.UserIDFromContext(r.Context())
	if userID == "" {
		userID = identity.SanitizeUserID(body.UserID)
	}
	sessionID = identity.SessionIDFromContext(r.Context())
	if strings.TrimSpace(body.SessionID) != "" {
		sessionID = identity.SanitizeSessionID(body.SessionID)
	}
	return userID, sessionID
}

type parsedBody struct {
	userID    string
	sessionID string
	segments  []domain.TranscriptSegment
	full      bool
}

// readBody decodes and validates a request body, writing the error response
// itself when ok is false.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) (parsedBody, bool) {
	var body segmentsBody
	if err := api.DecodeJSON(w, r, h.cfg.MaxRequestBodySize, &body); err != nil {
		api.WriteDecodeError(w, err)
		return parsedBody{}, false
	}

	userID, sessionID := h.resolve(r, body)
	if userID == "" {
		api.Error(w, http.StatusBadRequest, "uid is required")
		return parsedBody{}, false
	}

	if !h.allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return parsedBody{}, false
	}
	return parsedBody{userID: userID, sessionID: sessionID, segments: body.segments(), full: body.Full}, true
}

func (h *Handler) allow(userID string) bool {
	if h.limiter == nil || h.limiter.Allow(userID) {
		return true
	}
	h.metrics.IncRateLimitHit()
	slog.Warn("Rate limit exceeded", "user_id", userID)
	return false
}

// HandleLiveUpdates handles POST /live-updates.
func (h *Handler) HandleLiveUpdates(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Ingest(r.Context(), IngestRequest{UserID: body.userID, SessionID: body.sessionID, Segments: body.segments})
	if err != nil {
		h.storeFailure(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleNewsChecker handles POST /news-checker.
func (h *Handler) HandleNewsChecker(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	api.JSON(w, http.StatusOK, h.svc.CheckNews(r.Context(), IngestRequest{
		UserID:    body.userID,
		SessionID: body.sessionID,
		Segments:  body.segments,
		Full:      body.full,
	}))
}

// HandleLiveTranscript handles POST /livetranscript, the consent-gated flow.
func (h *Handler) HandleLiveTranscript(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	result, err := h.svc.LiveTranscript(r.Context(), LiveRequest{UserID: body.userID, SessionID: body.sessionID, Segments: body.segments})
	if err != nil {
		h.storeFailure(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// HandleConversationState handles GET /conversation-state/{uid}/{session_id}.
func (h *Handler) HandleConversationState(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := pathIdentity(w, r)
	if !ok {
		return
	}

	state, err := h.svc.State(r.Context(), userID, sessionID)
	if err != nil {
		h.storeFailure(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, state)
}

// HandleEndConversation handles POST /end-conversation/{uid}/{session_id}.
func (h *Handler) HandleEndConversation(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := pathIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.svc.EndConversation(r.Context(), userID, sessionID)
	if err != nil {
		h.storeFailure(w, r, err)
		return
	}
	h.conns.CloseSession(userID, sessionID)
	api.JSON(w, http.StatusOK, result)
}

func pathIdentity(w http.ResponseWriter, r *http.Request) (userID, sessionID string, ok bool) {
	userID = identity.SanitizeUserID(chi.URLParam(r, "uid"))
	rawSession := chi.URLParam(r, "session_id")
	sessionID = identity.SanitizeSessionID(rawSession)
	if userID == "" || sessionID != strings.TrimSpace(rawSession) {
		api.Error(w, http.StatusBadRequest, "invalid uid or session_id")
		return "", "", false
	}
	return userID, sessionID, true
}

func (h *Handler) storeFailure(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Session store failure",
		"error", err,
		"path", r.URL.Path,
		"request_id", chiMiddleware.GetReqID(r.Context()),
	)
	api.Error(w, http.StatusServiceUnavailable, "session store unavailable")
}
