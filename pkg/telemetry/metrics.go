package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	requests      metric.Int64Counter
	cacheLookups  metric.Int64Counter
	genDuration   metric.Float64Histogram
	retries       metric.Int64Counter
	published     metric.Int64Counter
	publishFailed metric.Int64Counter
	queueRejected metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.requests, err = meter.Int64Counter("lisan.requests",
		metric.WithDescription("Transform requests by kind and outcome"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter("lisan.cache.lookups",
		metric.WithDescription("Result cache lookups by kind and result"),
		metric.WithUnit("{lookup}")); err != nil {
		return nil, err
	}
	if m.genDuration, err = meter.Float64Histogram("lisan.generate.duration_ms",
		metric.WithDescription("Generation call duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Counter("lisan.retries",
		metric.WithDescription("Background regenerations by kind and outcome"),
		metric.WithUnit("{retry}")); err != nil {
		return nil, err
	}
	if m.published, err = meter.Int64Counter("lisan.events.published",
		metric.WithDescription("Audit events acknowledged by the transport"),
		metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if m.publishFailed, err = meter.Int64Counter("lisan.events.failures",
		metric.WithDescription("Audit events dropped after a transport failure"),
		metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if m.queueRejected, err = meter.Int64Counter("lisan.worker.rejected",
		metric.WithDescription("Background tasks rejected by a full queue"),
		metric.WithUnit("{task}")); err != nil {
		return nil, err
	}
	return &m, nil
}

// Request counts a handled transform request.
func (m *Metrics) Request(ctx context.Context, kind, status string, cacheHit bool) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
		attribute.Bool("cache_hit", cacheHit),
	))
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(ctx context.Context, kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

// Generation records the duration of one generation call.
func (m *Metrics) Generation(ctx context.Context, kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.genDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// Retry counts a finished background regeneration.
func (m *Metrics) Retry(ctx context.Context, kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "completed"
	if !ok {
		outcome = "error"
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// Published counts an audit event outcome for transport.
func (m *Metrics) Published(ctx context.Context, transport string, err error) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("transport", transport))
	if err != nil {
		m.publishFailed.Add(ctx, 1, opt)
		return
	}
	m.published.Add(ctx, 1, opt)
}

// QueueRejected counts a background task refused by the worker pool.
func (m *Metrics) QueueRejected(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.queueRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
