package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisan-ai/lisan/pkg/events"
	"github.com/lisan-ai/lisan/pkg/generate"
	"github.com/lisan-ai/lisan/pkg/models"
	"github.com/lisan-ai/lisan/pkg/resilience"
	"github.com/lisan-ai/lisan/pkg/worker"
)

type reply struct {
	out   string
	err   error
	panic bool
}

// scriptedGen answers calls in order; the last reply repeats.
type scriptedGen struct {
	mu      sync.Mutex
	calls   int
	replies []reply
}

func (g *scriptedGen) Generate(_ context.Context, _ string) (string, error) {
	g.mu.Lock()
	i := g.calls
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	g.calls++
	r := g.replies[i]
	g.mu.Unlock()

	if r.panic {
		panic("model exploded")
	}
	return r.out, r.err
}

func (g *scriptedGen) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type chanPublisher struct {
	events chan models.AuditEvent
	err    error
	block  bool
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{events: make(chan models.AuditEvent, 64)}
}

func (p *chanPublisher) Name() string { return "test" }

func (p *chanPublisher) Publish(ctx context.Context, ev models.AuditEvent) error {
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	p.events <- ev
	return p.err
}

func (p *chanPublisher) Close() error { return nil }

func (p *chanPublisher) next(t *testing.T) models.AuditEvent {
	t.Helper()
	select {
	case ev := <-p.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event published")
		return models.AuditEvent{}
	}
}

type harness struct {
	ctrl *Controller
	pool *worker.Pool
	gen  *scriptedGen
	pub  *chanPublisher
}

func newHarness(t *testing.T, gen *scriptedGen, opts ...func(*Deps)) *harness {
	t.Helper()
	pool := worker.New(2, 16, zerolog.Nop())
	pub := newChanPublisher()
	d := Deps{
		Adapter: generate.NewAdapter(gen, time.Second),
		Pool:    pool,
		Emitter: events.NewEmitter(pub, 200*time.Millisecond, zerolog.Nop(), nil),
		Retry:   resilience.NewRetry(resilience.RetryPolicy{MaxAttempts: 1, InitialDelay: -1}),
		Log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(&d)
	}
	ctrl, err := New(d)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Pool.Shutdown(ctx)
		_ = pool.Shutdown(ctx)
	})
	return &harness{ctrl: ctrl, pool: d.Pool, gen: gen, pub: pub}
}

func (h *harness) waitStatus(t *testing.T, id string, want models.Status) models.RequestRecord {
	t.Helper()
	var rec models.RequestRecord
	require.Eventually(t, func() bool {
		var ok bool
		rec, ok = h.ctrl.Status(id)
		return ok && rec.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return rec
}

func TestTranslateCacheIdempotence(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{out: "Here you go: مرحبا   بالعالم (marhaban)"}}}
	h := newHarness(t, gen)
	ctx := context.Background()
	req := models.TranslationRequest{Text: "Hello world", Formality: "formal"}

	first, err := h.ctrl.Translate(ctx, "alice", req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, first.Status)
	assert.False(t, first.CacheHit)
	require.NotNil(t, first.Result)
	assert.Equal(t, "مرحبا بالعالم", first.Result.Translation)
	assert.Equal(t, "formal", first.Result.Formality)

	second, err := h.ctrl.Translate(ctx, "bob", req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, *first.Result, *second.Result)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, gen.Calls(), "cache hit must not call the model")

	rec, ok := h.ctrl.Status(second.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.Equal(t, models.KindTranslation, rec.Kind)
}

func TestTranslateDefaultsFormality(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{out: "مرحبا"}}}
	h := newHarness(t, gen)

	out, err := h.ctrl.Translate(context.Background(), "alice", models.TranslationRequest{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, models.FormalityNeutral, out.Result.Formality)

	again, err := h.ctrl.Translate(context.Background(), "alice", models.TranslationRequest{Text: "hi", Formality: "neutral"})
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
}

func TestSummarizeTruncates(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{out: "one two three four five six seven"}}}
	h := newHarness(t, gen)

	out, err := h.ctrl.Summarize(context.Background(), "alice", models.SummaryRequest{
		Text: "a long document", Style: "technical", MaxLength: 12, BulletPoints: true,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, out.Status)
	assert.Equal(t, "one two...", out.Result.Summary)
	assert.True(t, out.Result.Truncated)
	assert.Equal(t, 10, out.Result.Length)
	assert.Equal(t, "technical", out.Result.Style)
	assert.True(t, out.Result.BulletPoints)
	assert.Equal(t, 1, gen.Calls(), "truncation must not call the model again")
}

func TestSummaryOptionsAreDistinctKeys(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{out: "short"}}}
	h := newHarness(t, gen)
	ctx := context.Background()

	_, err := h.ctrl.Summarize(ctx, "alice", models.SummaryRequest{Text: "doc"})
	require.NoError(t, err)
	out, err := h.ctrl.Summarize(ctx, "alice", models.SummaryRequest{Text: "doc", BulletPoints: true})
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Equal(t, 2, gen.Calls())
}

func TestFailureDegradesToProcessing(t *testing.T) {
	gen := &scriptedGen{replies: []reply{
		{err: errors.New("connection refused")},
		{out: "مرحبا"},
	}}
	h := newHarness(t, gen)
	req := models.TranslationRequest{Text: "hello"}

	out, err := h.ctrl.Translate(context.Background(), "alice", req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, out.Status)
	assert.Nil(t, out.Result)
	assert.Nil(t, out.Response().CacheHit)

	rec := h.waitStatus(t, out.ID, models.StatusCompleted)
	var result models.TranslationResult
	require.NoError(t, json.Unmarshal(rec.Result, &result))
	assert.Equal(t, "مرحبا", result.Translation)

	ev := h.pub.next(t)
	assert.Equal(t, out.ID, ev.RequestID)
	assert.Equal(t, models.StatusCompleted, ev.Status)
	assert.Equal(t, 2, ev.Attempt)

	again, err := h.ctrl.Translate(context.Background(), "alice", req)
	require.NoError(t, err)
	assert.True(t, again.CacheHit, "retry result populates the cache")
}

func TestRetryExhaustedRecordsError(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{err: errors.New("connection refused")}}}
	h := newHarness(t, gen, func(d *Deps) {
		d.Retry = resilience.NewRetry(resilience.RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond})
	})

	out, err := h.ctrl.Summarize(context.Background(), "alice", models.SummaryRequest{Text: "doc"})
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, out.Status)

	rec := h.waitStatus(t, out.ID, models.StatusError)
	assert.Contains(t, rec.Error, "connection refused")
	assert.Equal(t, 3, gen.Calls())

	ev := h.pub.next(t)
	assert.Equal(t, models.StatusError, ev.Status)
	assert.Equal(t, 3, ev.Attempt)
	assert.Contains(t, ev.Error, "connection refused")
}

func TestEmptyOutputIsFailure(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{out: "Sorry, I cannot translate that."}}}
	h := newHarness(t, gen)

	out, err := h.ctrl.Translate(context.Background(), "alice", models.TranslationRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, out.Status)

	rec := h.waitStatus(t, out.ID, models.StatusError)
	assert.Contains(t, rec.Error, string(generate.KindEmpty))
}

func TestQueueFullResolvesAsError(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{err: errors.New("connection refused")}}}
	pool := worker.New(1, 1, zerolog.Nop())
	h := newHarness(t, gen, func(d *Deps) { d.Pool = pool })

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, pool.Submit(func(context.Context) { <-release }))
	require.Eventually(t, func() bool { return pool.Stats().Active == 1 }, time.Second, time.Millisecond)
	require.NoError(t, pool.Submit(func(context.Context) {}))

	out, err := h.ctrl.Translate(context.Background(), "alice", models.TranslationRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, out.Status)
	assert.Equal(t, msgQueueFull, out.Error)

	rec, ok := h.ctrl.Status(out.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusError, rec.Status)

	stats := h.ctrl.Stats()
	assert.GreaterOrEqual(t, stats.Workers.Rejected, int64(1))
	assert.EqualValues(t, 1, stats.Workers.Active)
}

func TestShutdownResolvesAsError(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{err: errors.New("connection refused")}}}
	h := newHarness(t, gen)
	require.NoError(t, h.pool.Shutdown(context.Background()))

	out, err := h.ctrl.Translate(context.Background(), "alice", models.TranslationRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, out.Status)
	assert.Equal(t, msgShuttingDown, out.Error)
}

func TestPanicIsRecovered(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{panic: true}}}
	h := newHarness(t, gen)

	out, err := h.ctrl.Translate(context.Background(), "alice", models.TranslationRequest{Text: "hello"})
	var ie *InternalError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, out.ID, ie.RequestID)
	assert.NotContains(t, err.Error(), "model exploded")

	rec, ok := h.ctrl.Status(out.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusError, rec.Status)
	assert.Equal(t, msgInternal, rec.Error)
}

func TestEmissionIsolation(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{out: "مرحبا"}}}
	h := newHarness(t, gen, func(d *Deps) {
		pub := newChanPublisher()
		pub.block = true
		d.Emitter = events.NewEmitter(pub, 50*time.Millisecond, zerolog.Nop(), nil)
	})

	start := time.Now()
	out, err := h.ctrl.Translate(context.Background(), "alice", models.TranslationRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, out.Status)
	assert.Less(t, time.Since(start), time.Second)

	failing := newChanPublisher()
	failing.err = errors.New("broker down")
	h2 := newHarness(t, gen, func(d *Deps) {
		d.Emitter = events.NewEmitter(failing, time.Second, zerolog.Nop(), nil)
	})
	out, err = h2.ctrl.Translate(context.Background(), "alice", models.TranslationRequest{Text: "bye"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, out.Status)
	failing.next(t)
}

func TestNoEmitterConfigured(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{out: "مرحبا"}}}
	h := newHarness(t, gen, func(d *Deps) { d.Emitter = nil })

	out, err := h.ctrl.Translate(context.Background(), "alice", models.TranslationRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, out.Status)
}

func TestCacheHitEmitsEvent(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{out: "مرحبا"}}}
	h := newHarness(t, gen)
	req := models.TranslationRequest{Text: "hello"}

	_, err := h.ctrl.Translate(context.Background(), "alice", req)
	require.NoError(t, err)
	first := h.pub.next(t)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, first.Attempt)

	out, err := h.ctrl.Translate(context.Background(), "bob", req)
	require.NoError(t, err)
	ev := h.pub.next(t)
	assert.Equal(t, out.ID, ev.RequestID)
	assert.True(t, ev.CacheHit)
	assert.Equal(t, "bob", ev.Principal)
	assert.JSONEq(t, `{"text":"hello","formality":"neutral"}`, string(ev.Input))
}

func TestInvalidRequestsRecordNothing(t *testing.T) {
	gen := &scriptedGen{replies: []reply{{out: "x"}}}
	h := newHarness(t, gen)
	ctx := context.Background()

	_, err := h.ctrl.Translate(ctx, "alice", models.TranslationRequest{Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = h.ctrl.Summarize(ctx, "alice", models.SummaryRequest{Text: "doc", MaxLength: -5})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Equal(t, 0, h.ctrl.Stats().LedgerSize)
	assert.Equal(t, 0, gen.Calls())
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
	_, err = New(Deps{Adapter: generate.NewAdapter(&scriptedGen{replies: []reply{{}}}, 0)})
	assert.Error(t, err)
}
