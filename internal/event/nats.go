// Package event publishes exchange events to NATS JetStream.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/RegistryAccord/discovery-go/internal/model"
)

const (
	// StreamName is the JetStream stream holding exchange events.
	StreamName = "DISCOVERY_EXCHANGES"

	subjectPrefix = "discovery.exchanges."
	eventVersion  = "1.0.0"
)

// Publisher publishes exchange events.
type Publisher interface {
	PublishExchange(ctx context.Context, exchange model.Exchange) error
	Close() error
}

// noop is used when NATS is not configured or unreachable.
type noop struct{}

func (n *noop) Close() error { return nil }

func (n *noop) PublishExchange(ctx context.Context, exchange model.Exchange) error {
	return nil
}

// Noop returns a publisher that discards every event.
func Noop() Publisher { return &noop{} }

type natsPub struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewPublisher connects to the NATS server at url. An empty url, or any
// connection failure, yields a no-op publisher.
func NewPublisher(url string) Publisher {
	if url == "" {
		return &noop{}
	}

	nc, err := nats.Connect(url, nats.Name("discoveryctl"))
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	if err := initStream(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return &natsPub{nc: nc, js: js}
}

func initStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(StreamName)
	if err == nil {
		return nil
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{subjectPrefix + ">"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     24 * time.Hour,
		Discard:    nats.DiscardOld,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s stream: %w", StreamName, err)
	}
	return nil
}

// EventEnvelope is the wire shape of every published event.
type EventEnvelope struct {
	Type          string      `json:"type"`
	Version       string      `json:"version"`
	OccurredAt    time.Time   `json:"occurredAt"`
	CorrelationID string      `json:"correlationId"`
	Payload       interface{} `json:"payload"`
}

// Subject returns the subject an exchange is published on: one per
// operation and outcome.
func Subject(e model.Exchange) string {
	outcome := "failed"
	if e.Succeeded() {
		outcome = "completed"
	}
	return subjectPrefix + e.Operation + "." + outcome
}

// Envelope wraps e for publishing.
func Envelope(e model.Exchange) EventEnvelope {
	correlationID := e.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return EventEnvelope{
		Type:          Subject(e),
		Version:       eventVersion,
		OccurredAt:    e.CompletedAt.UTC(),
		CorrelationID: correlationID,
		Payload:       e,
	}
}

func (p *natsPub) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}

// PublishExchange publishes e. The exchange ID is the JetStream message ID,
// so the server drops duplicates inside the stream's window.
func (p *natsPub) PublishExchange(ctx context.Context, e model.Exchange) error {
	b, err := json.Marshal(Envelope(e))
	if err != nil {
		return err
	}
	_, err = p.js.Publish(Subject(e), b, nats.MsgId(e.ID), nats.Context(ctx))
	return err
}
