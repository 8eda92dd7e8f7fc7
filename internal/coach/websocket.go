package coach

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/convo-coach/internal/domain"
	"github.com/ashureev/convo-coach/internal/identity"
	"github.com/coder/websocket"
)

const wsWriteTimeout = 5 * time.Second

// wsMessage is a client frame on /ws/live.
type wsMessage struct {
	Type     string                     `json:"type"`
	Segments []domain.TranscriptSegment `json:"segments,omitempty"`
}

// wsUpdates is the server reply to a segments frame.
type wsUpdates struct {
	Type string `json:"type"`
	IngestResponse
}

// HandleLiveSocket handles GET /ws/live. Each segments frame is ingested
// exactly like POST /live-updates and answered with an updates frame.
func (h *Handler) HandleLiveSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "uid is required"}`, http.StatusBadRequest)
		return
	}
	slog.Info("Live stream connection request", "user_id", userID, "session_id", sessionID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(h.cfg.MaxRequestBodySize)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.conns.Register(userID, sessionID, ws)
	defer h.conns.Unregister(userID, sessionID, ws)

	h.readLoop(r.Context(), ws, userID, sessionID)
	slog.Info("Live stream ended", "user_id", userID, "session_id", sessionID)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if h.writeJSON(ctx, ws, map[string]string{"type": "error", "error": "invalid message"}) != nil {
				return
			}
			continue
		}

		switch msg.Type {
		case "ping":
			if h.writeJSON(ctx, ws, map[string]string{"type": "pong"}) != nil {
				return
			}

		case "segments":
			if !h.allow(userID) {
				if h.writeJSON(ctx, ws, map[string]string{"type": "error", "error": "rate limit exceeded"}) != nil {
					return
				}
				continue
			}
			resp, err := h.svc.Ingest(ctx, IngestRequest{UserID: userID, SessionID: sessionID, Segments: msg.Segments})
			if err != nil {
				slog.Error("Live stream ingest failed", "error", err, "user_id", userID)
				if h.writeJSON(ctx, ws, map[string]string{"type": "error", "error": "session store unavailable"}) != nil {
					return
				}
				continue
			}
			if h.writeJSON(ctx, ws, wsUpdates{Type: "updates", IngestResponse: resp}) != nil {
				return
			}

		case "end":
			result, err := h.svc.EndConversation(ctx, userID, sessionID)
			if err != nil {
				slog.Error("Live stream end failed", "error", err, "user_id", userID)
				_ = h.writeJSON(ctx, ws, map[string]string{"type": "error", "error": "session store unavailable"})
				return
			}
			_ = h.writeJSON(ctx, ws, map[string]string{"type": "ended", "message": result.Message, "session_id": result.SessionID})
			return

		default:
			if h.writeJSON(ctx, ws, map[string]string{"type": "error", "error": "unknown message type"}) != nil {
				return
			}
		}
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
		return err
	}
	return nil
}
