package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisan-ai/lisan/pkg/config"
	"github.com/lisan-ai/lisan/pkg/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AuditEvent
	err    error
	block  bool
	panics bool
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(ctx context.Context, ev models.AuditEvent) error {
	if p.panics {
		panic("broker exploded")
	}
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) recorded() []models.AuditEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.AuditEvent(nil), p.events...)
}

func TestEmitFillsIdentity(t *testing.T) {
	pub := &recordingPublisher{}
	e := NewEmitter(pub, time.Second, zerolog.Nop(), nil)

	e.Emit(context.Background(), models.AuditEvent{RequestID: "req-1", Kind: models.KindSummary})

	got := pub.recorded()
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].EventID)
	assert.False(t, got[0].CreatedAt.IsZero())
	assert.Equal(t, "req-1", got[0].RequestID)
}

func TestEmitSwallowsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	e := NewEmitter(pub, time.Second, zerolog.Nop(), nil)

	assert.NotPanics(t, func() {
		e.Emit(context.Background(), models.AuditEvent{RequestID: "req-1"})
	})
}

func TestEmitRecoversPublisherPanic(t *testing.T) {
	e := NewEmitter(&recordingPublisher{panics: true}, time.Second, zerolog.Nop(), nil)
	assert.NotPanics(t, func() {
		e.Emit(context.Background(), models.AuditEvent{RequestID: "req-1"})
	})
}

func TestEmitBoundedByAckTimeout(t *testing.T) {
	e := NewEmitter(&recordingPublisher{block: true}, 50*time.Millisecond, zerolog.Nop(), nil)

	start := time.Now()
	e.Emit(context.Background(), models.AuditEvent{RequestID: "req-1"})
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNilEmitterSafe(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() {
		e.Emit(context.Background(), models.AuditEvent{})
		_ = e.Close()
	})
}

func TestNewEmitterNilPublisher(t *testing.T) {
	e := NewEmitter(nil, 0, zerolog.Nop(), nil)
	assert.Equal(t, "none", e.Transport())
	e.Emit(context.Background(), models.AuditEvent{RequestID: "req-1"})
}

func TestNewPublisherDegradesToNoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tests := []struct {
		name string
		cfg  config.EventsConfig
	}{
		{"none", config.EventsConfig{Transport: "none"}},
		{"kafka unreachable", config.EventsConfig{Transport: "kafka", Brokers: []string{"127.0.0.1:1"}, Topic: "t"}},
		{"redis unreachable", config.EventsConfig{Transport: "redis", RedisAddr: "127.0.0.1:1", Topic: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := NewPublisher(ctx, tt.cfg, zerolog.Nop())
			assert.Equal(t, "none", pub.Name())
		})
	}
}

func TestNewPublisherJournal(t *testing.T) {
	cfg := config.EventsConfig{Transport: "sqlite", JournalPath: t.TempDir() + "/events.db"}
	pub := NewPublisher(context.Background(), cfg, zerolog.Nop())
	t.Cleanup(func() { _ = pub.Close() })
	require.Equal(t, "sqlite", pub.Name())

	e := NewEmitter(pub, time.Second, zerolog.Nop(), nil)
	e.Emit(context.Background(), models.AuditEvent{RequestID: "req-9", Kind: models.KindTranslation, Status: models.StatusCompleted})

	events, err := pub.(*Journal).Query(context.Background(), models.AuditQueryOpts{RequestID: "req-9"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
