// Package events publishes audit events to the downstream bus.
//
// Publication is best effort and at most once: the Emitter waits a bounded
// time for the transport's acknowledgement, logs any failure and never
// reports it to the caller.
package events

import (
	"context"

	"github.com/lisan-ai/lisan/pkg/models"
)

// Publisher hands audit events to a transport and waits for its acknowledgement.
type Publisher interface {
	// Name identifies the transport in logs and metrics.
	Name() string
	// Publish delivers event, returning once the transport has acknowledged it.
	Publish(ctx context.Context, event models.AuditEvent) error
	// Close releases transport resources.
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Name returns "none".
func (NoopPublisher) Name() string { return "none" }

// Publish accepts the event and does nothing.
func (NoopPublisher) Publish(context.Context, models.AuditEvent) error { return nil }

// Close releases resources (none).
func (NoopPublisher) Close() error { return nil }
