// Package lifecycle drives a transform request from cache lookup through the
// synchronous generation attempt to the background retry, recording every
// transition in the ledger and emitting one audit event per request.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lisan-ai/lisan/pkg/cache"
	"github.com/lisan-ai/lisan/pkg/events"
	"github.com/lisan-ai/lisan/pkg/generate"
	"github.com/lisan-ai/lisan/pkg/ledger"
	"github.com/lisan-ai/lisan/pkg/models"
	"github.com/lisan-ai/lisan/pkg/resilience"
	"github.com/lisan-ai/lisan/pkg/telemetry"
	"github.com/lisan-ai/lisan/pkg/worker"
)

// Deps are the collaborators of a Controller. Adapter and Pool are required.
type Deps struct {
	Translations *cache.Cache[models.TranslationResult]
	Summaries    *cache.Cache[models.SummaryResult]
	Ledger       *ledger.Ledger
	Adapter      *generate.Adapter
	Pool         *worker.Pool
	Emitter      *events.Emitter
	Retry        *resilience.Retry
	Metrics      *telemetry.Metrics
	Log          zerolog.Logger
}

// Controller owns the request lifecycle.
type Controller struct {
	translations *cache.Cache[models.TranslationResult]
	summaries    *cache.Cache[models.SummaryResult]
	ledger       *ledger.Ledger
	adapter      *generate.Adapter
	pool         *worker.Pool
	emitter      *events.Emitter
	retry        *resilience.Retry
	metrics      *telemetry.Metrics
	log          zerolog.Logger
	newID        func() string
}

// New builds a Controller, filling in defaults for optional collaborators.
func New(d Deps) (*Controller, error) {
	if d.Adapter == nil {
		return nil, errors.New("lifecycle: generation adapter is required")
	}
	if d.Pool == nil {
		return nil, errors.New("lifecycle: worker pool is required")
	}
	if d.Translations == nil {
		d.Translations = cache.New[models.TranslationResult](100, time.Hour)
	}
	if d.Summaries == nil {
		d.Summaries = cache.New[models.SummaryResult](100, time.Hour)
	}
	if d.Ledger == nil {
		d.Ledger = ledger.New()
	}
	if d.Retry == nil {
		d.Retry = resilience.NewRetry(resilience.RetryPolicy{})
	}
	return &Controller{
		translations: d.Translations,
		summaries:    d.Summaries,
		ledger:       d.Ledger,
		adapter:      d.Adapter,
		pool:         d.Pool,
		emitter:      d.Emitter,
		retry:        d.Retry,
		metrics:      d.Metrics,
		log:          d.Log.With().Str("component", "lifecycle").Logger(),
		newID:        uuid.NewString,
	}, nil
}

// Translate runs a translation request on behalf of principal.
func (c *Controller) Translate(ctx context.Context, principal string, req models.TranslationRequest) (Outcome[models.TranslationResult], error) {
	req.Normalize()
	if strings.TrimSpace(req.Text) == "" {
		return Outcome[models.TranslationResult]{}, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}

	return run(ctx, c, principal, job[models.TranslationResult]{
		kind:  models.KindTranslation,
		key:   cache.TranslationKey(req),
		input: req,
		cache: c.translations,
		compute: func(ctx context.Context) (models.TranslationResult, error) {
			text, err := c.adapter.Translate(ctx, req.Text, req.Formality)
			if err != nil {
				return models.TranslationResult{}, err
			}
			return models.TranslationResult{Translation: text, Formality: req.Formality}, nil
		},
	})
}

// Summarize runs a summarization request on behalf of principal.
func (c *Controller) Summarize(ctx context.Context, principal string, req models.SummaryRequest) (Outcome[models.SummaryResult], error) {
	req.Normalize()
	if strings.TrimSpace(req.Text) == "" {
		return Outcome[models.SummaryResult]{}, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	if req.MaxLength <= 0 {
		return Outcome[models.SummaryResult]{}, fmt.Errorf("%w: max_length must be positive", ErrInvalidRequest)
	}

	return run(ctx, c, principal, job[models.SummaryResult]{
		kind:  models.KindSummary,
		key:   cache.SummaryKey(req),
		input: req,
		cache: c.summaries,
		compute: func(ctx context.Context) (models.SummaryResult, error) {
			summary, truncated, err := c.adapter.Summarize(ctx, req.Text, req.Style, req.MaxLength, req.BulletPoints)
			if err != nil {
				return models.SummaryResult{}, err
			}
			return models.SummaryResult{
				Summary:      summary,
				Style:        req.Style,
				BulletPoints: req.BulletPoints,
				Length:       utf8.RuneCountInString(summary),
				Truncated:    truncated,
			}, nil
		},
	})
}

// Status returns the ledger record for a request id.
func (c *Controller) Status(id string) (models.RequestRecord, bool) {
	return c.ledger.Get(id)
}

// Stats is a snapshot of controller state for health reporting.
type Stats struct {
	LedgerSize       int               `json:"ledger_size"`
	TranslationCache models.CacheStats `json:"translation_cache"`
	SummaryCache     models.CacheStats `json:"summary_cache"`
	QueueDepth       int               `json:"queue_depth"`
	Workers          worker.Stats      `json:"workers"`
}

// Stats returns current cache, ledger and worker pool counters.
func (c *Controller) Stats() Stats {
	return Stats{
		LedgerSize:       c.ledger.Len(),
		TranslationCache: c.translations.Stats(),
		SummaryCache:     c.summaries.Stats(),
		QueueDepth:       c.pool.Depth(),
		Workers:          c.pool.Stats(),
	}
}

// job describes one transform independently of its result type.
type job[R any] struct {
	kind    models.Kind
	key     string
	input   any
	cache   *cache.Cache[R]
	compute func(ctx context.Context) (R, error)
}

func run[R any](ctx context.Context, c *Controller, principal string, j job[R]) (out Outcome[R], err error) {
	id := c.newID()
	start := time.Now()
	log := c.log.With().Str("request_id", id).Str("kind", string(j.kind)).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("request orchestration panicked")
			c.ledger.Fail(id, j.kind, msgInternal)
			c.metrics.Request(ctx, string(j.kind), string(models.StatusError), false)
			out = Outcome[R]{ID: id, Status: models.StatusError, Error: msgInternal}
			err = &InternalError{RequestID: id, Panic: r}
		}
	}()

	if res, ok := j.cache.Get(j.key); ok {
		c.metrics.CacheLookup(ctx, string(j.kind), true)
		c.complete(log, id, j.kind, res)
		ev := c.event(id, j.kind, j.input, principal, models.StatusCompleted, true, 0, res, "", start)
		c.background(log, j.kind, func(ctx context.Context) { c.emitter.Emit(ctx, ev) })
		c.metrics.Request(ctx, string(j.kind), string(models.StatusCompleted), true)
		return Outcome[R]{ID: id, Status: models.StatusCompleted, Result: &res, CacheHit: true}, nil
	}
	c.metrics.CacheLookup(ctx, string(j.kind), false)

	res, genErr := generateOnce(ctx, c, j)
	if genErr == nil {
		j.cache.Put(j.key, res)
		c.complete(log, id, j.kind, res)
		ev := c.event(id, j.kind, j.input, principal, models.StatusCompleted, false, 1, res, "", start)
		c.background(log, j.kind, func(ctx context.Context) {
			j.cache.Put(j.key, res)
			c.emitter.Emit(ctx, ev)
		})
		c.metrics.Request(ctx, string(j.kind), string(models.StatusCompleted), false)
		return Outcome[R]{ID: id, Status: models.StatusCompleted, Result: &res}, nil
	}

	log.Warn().Err(genErr).Str("failure", string(generate.KindOf(genErr))).
		Msg("generation failed, scheduling background retry")
	c.ledger.Processing(id, j.kind)

	if err := c.pool.Submit(retryTask(c, log, id, principal, j, start)); err != nil {
		msg := msgQueueFull
		if errors.Is(err, worker.ErrClosed) {
			msg = msgShuttingDown
		}
		log.Error().Err(err).Msg("background retry rejected")
		c.ledger.Fail(id, j.kind, msg)
		c.metrics.QueueRejected(ctx, string(j.kind))
		c.metrics.Request(ctx, string(j.kind), string(models.StatusError), false)
		return Outcome[R]{ID: id, Status: models.StatusError, Error: msg}, nil
	}

	c.metrics.Request(ctx, string(j.kind), string(models.StatusProcessing), false)
	return Outcome[R]{ID: id, Status: models.StatusProcessing}, nil
}

// generateOnce makes a single generation call and records its duration.
func generateOnce[R any](ctx context.Context, c *Controller, j job[R]) (R, error) {
	began := time.Now()
	res, err := j.compute(ctx)
	c.metrics.Generation(ctx, string(j.kind), time.Since(began), err)
	return res, err
}

// retryTask regenerates a result in the background under the retry policy and
// resolves the ledger entry either way. The event is emitted regardless.
func retryTask[R any](c *Controller, log zerolog.Logger, id, principal string, j job[R], start time.Time) worker.Task {
	return func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("background retry panicked")
				c.ledger.Fail(id, j.kind, msgInternal)
				c.metrics.Retry(ctx, string(j.kind), false)
			}
		}()

		var (
			res      R
			attempts int
		)
		err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
			attempts = attempt
			r, err := generateOnce(ctx, c, j)
			if err != nil {
				return err
			}
			res = r
			return nil
		})

		var ev models.AuditEvent
		if err != nil {
			log.Error().Err(err).Int("attempts", attempts).Msg("background retry failed")
			c.ledger.Fail(id, j.kind, err.Error())
			c.metrics.Retry(ctx, string(j.kind), false)
			ev = c.event(id, j.kind, j.input, principal, models.StatusError, false, attempts+1, nil, err.Error(), start)
		} else {
			log.Info().Int("attempts", attempts).Msg("background retry completed")
			j.cache.Put(j.key, res)
			c.complete(log, id, j.kind, res)
			c.metrics.Retry(ctx, string(j.kind), true)
			ev = c.event(id, j.kind, j.input, principal, models.StatusCompleted, false, attempts+1, res, "", start)
		}
		c.emitter.Emit(ctx, ev)
	}
}

// background schedules a task whose failure to schedule loses only its audit
// event; the request itself is already resolved.
func (c *Controller) background(log zerolog.Logger, kind models.Kind, t worker.Task) {
	if err := c.pool.Submit(t); err != nil {
		log.Warn().Err(err).Msg("background task dropped")
		c.metrics.QueueRejected(context.Background(), string(kind))
	}
}

func (c *Controller) complete(log zerolog.Logger, id string, kind models.Kind, result any) {
	if err := c.ledger.Complete(id, kind, result); err != nil {
		log.Error().Err(err).Msg("record result")
		c.ledger.Fail(id, kind, err.Error())
	}
}

// event builds the audit record. attempt counts generation calls made for the
// request, 0 for a cache hit.
func (c *Controller) event(id string, kind models.Kind, input any, principal string, status models.Status,
	cacheHit bool, attempt int, result any, errMsg string, start time.Time) models.AuditEvent {
	ev := models.AuditEvent{
		EventID:   uuid.NewString(),
		RequestID: id,
		Kind:      kind,
		Principal: principal,
		Status:    status,
		CacheHit:  cacheHit,
		Attempt:   attempt,
		Error:     errMsg,
		LatencyMs: time.Since(start).Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}
	if raw, err := json.Marshal(input); err == nil {
		ev.Input = raw
	}
	if result != nil {
		if raw, err := json.Marshal(result); err == nil {
			ev.Result = raw
		}
	}
	return ev
}
