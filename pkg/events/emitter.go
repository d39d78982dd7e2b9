package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lisan-ai/lisan/pkg/config"
	"github.com/lisan-ai/lisan/pkg/models"
	"github.com/lisan-ai/lisan/pkg/telemetry"
)

// Emitter publishes audit events without ever failing its caller.
type Emitter struct {
	pub        Publisher
	ackTimeout time.Duration
	log        zerolog.Logger
	metrics    *telemetry.Metrics
}

// NewEmitter wraps pub. A nil pub drops every event; a non-positive
// ackTimeout waits only as long as ctx allows.
func NewEmitter(pub Publisher, ackTimeout time.Duration, log zerolog.Logger, metrics *telemetry.Metrics) *Emitter {
	if pub == nil {
		pub = NoopPublisher{}
	}
	return &Emitter{
		pub:        pub,
		ackTimeout: ackTimeout,
		log:        log.With().Str("component", "events").Str("transport", pub.Name()).Logger(),
		metrics:    metrics,
	}
}

// Transport names the underlying publisher.
func (e *Emitter) Transport() string {
	return e.pub.Name()
}

// Emit publishes event and waits for the acknowledgement, at most once.
// Failures, timeouts and publisher panics are logged and counted.
func (e *Emitter) Emit(ctx context.Context, event models.AuditEvent) {
	if e == nil {
		return
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if e.ackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.ackTimeout)
		defer cancel()
	}

	err := e.publish(ctx, event)
	e.metrics.Published(ctx, e.pub.Name(), err)
	if err != nil {
		e.log.Warn().Err(err).
			Str("request_id", event.RequestID).
			Str("event_id", event.EventID).
			Str("status", string(event.Status)).
			Msg("audit event dropped")
		return
	}
	e.log.Debug().
		Str("request_id", event.RequestID).
		Str("event_id", event.EventID).
		Msg("audit event published")
}

func (e *Emitter) publish(ctx context.Context, event models.AuditEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()
	return e.pub.Publish(ctx, event)
}

// Close closes the underlying publisher.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	return e.pub.Close()
}

// NewPublisher builds the publisher selected by cfg.Transport. When the
// transport cannot be reached it logs the failure and returns a NoopPublisher,
// so the service keeps serving requests without audit events.
func NewPublisher(ctx context.Context, cfg config.EventsConfig, log zerolog.Logger) Publisher {
	var (
		pub Publisher
		err error
	)
	switch cfg.Transport {
	case "kafka":
		pub, err = NewKafkaPublisher(ctx, cfg.Brokers, cfg.Topic)
	case "redis":
		pub, err = NewRedisPublisher(ctx, cfg.RedisAddr, cfg.Topic)
	case "sqlite":
		pub, err = OpenJournal(cfg.JournalPath, cfg.RetentionDays)
	default:
		return NoopPublisher{}
	}
	if err != nil {
		log.Warn().Err(err).Str("transport", cfg.Transport).
			Msg("event transport unavailable, audit events disabled")
		return NoopPublisher{}
	}
	log.Info().Str("transport", pub.Name()).Str("topic", cfg.Topic).Msg("event transport ready")
	return pub
}
