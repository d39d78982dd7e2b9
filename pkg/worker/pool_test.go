package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	p := New(3, 10, zerolog.Nop())

	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func(context.Context) {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()

	assert.EqualValues(t, 10, n.Load())
	require.NoError(t, p.Shutdown(context.Background()))
	assert.EqualValues(t, 10, p.Stats().Completed)
}

func TestSubmitQueueFull(t *testing.T) {
	p := New(1, 1, zerolog.Nop())
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, p.Submit(func(context.Context) {})) // fills the queue

	err := p.Submit(func(context.Context) {})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.EqualValues(t, 1, p.Stats().Rejected)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestShutdownDrainsQueue(t *testing.T) {
	p := New(1, 5, zerolog.Nop())

	var n atomic.Int64
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(func(context.Context) {
			time.Sleep(time.Millisecond)
			n.Add(1)
		}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.EqualValues(t, 5, n.Load())
	assert.ErrorIs(t, p.Submit(func(context.Context) {}), ErrClosed)
}

func TestShutdownTimeout(t *testing.T) {
	p := New(1, 1, zerolog.Nop())
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, p.Submit(func(context.Context) { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	p := New(1, 2, zerolog.Nop())

	done := make(chan struct{})
	require.NoError(t, p.Submit(func(context.Context) { panic("boom") }))
	require.NoError(t, p.Submit(func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.EqualValues(t, 1, p.Stats().Panics)
}
