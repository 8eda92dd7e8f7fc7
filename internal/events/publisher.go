// Package events publishes produced feedback to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Event is one piece of feedback delivered to a user.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Priority  string    `json:"priority,omitempty"`
	Timestamp float64   `json:"timestamp,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Noop discards every event.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Noop) Close() {}

// NATSPublisher publishes events as JSON on <prefix>.<user_id>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher connects to NATS. The connection keeps retrying in the
// background, so a broker that is down at startup does not block the service.
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("convo-coach"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if subjectPrefix == "" {
		subjectPrefix = "coach.updates"
	}
	return &NATSPublisher{nc: nc, prefix: subjectPrefix}, nil
}

// Publish sends ev on the user's subject.
func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, ev.UserID), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		slog.Warn("NATS drain failed", "error", err)
		p.nc.Close()
	}
}

// Subject builds the per-user subject, replacing characters NATS reserves
// for token separators and wildcards.
func Subject(prefix, userID string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, userID)
	if token == "" {
		token = "_"
	}
	return prefix + "." + token
}

var (
	_ Publisher = Noop{}
	_ Publisher = (*NATSPublisher)(nil)
)
