// Package notify publishes run summaries to NATS so downstream automation
// (mirrors, dashboards, chat hooks) can react to finished runs without polling
// the repository.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// RunEvent is the wire payload emitted after each pipeline run.
type RunEvent struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Published  []string  `json:"published,omitempty"`
	Skipped    []string  `json:"skipped,omitempty"`
	Failed     []string  `json:"failed,omitempty"`
}

// Notifier publishes run events. The zero-value Noop keeps notification
// optional.
type Notifier interface {
	PublishRun(ctx context.Context, ev RunEvent) error
	Close()
}

// Noop is the default Notifier: it does nothing.
type Noop struct{}

func (Noop) PublishRun(context.Context, RunEvent) error { return nil }
func (Noop) Close()                                     {}

// NATSNotifier publishes run events to a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server. The connection retries in the background, so
// a broker restart between runs does not lose the notifier.
func Connect(url, subject string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	slog.Info("run notifications enabled", slog.String("subject", subject))
	return &NATSNotifier{conn: conn, subject: subject}, nil
}

func (n *NATSNotifier) PublishRun(ctx context.Context, ev RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode run event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	deadline := 5 * time.Second
	if d, ok := ctx.Deadline(); ok {
		deadline = time.Until(d)
	}
	if err := n.conn.FlushTimeout(deadline); err != nil {
		return fmt.Errorf("flush run event: %w", err)
	}
	return nil
}

func (n *NATSNotifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
