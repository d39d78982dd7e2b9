// Package resilience holds the backoff policy used for background regeneration.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy configures attempts and exponential backoff between them.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts. Default: 1
	MaxAttempts int

	// InitialDelay is the wait before the first attempt. Default: 500ms
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts. Default: 10s
	MaxDelay time.Duration

	// Multiplier grows the delay after each attempt. Default: 2.0
	Multiplier float64

	// Jitter randomizes each wait by up to 25% either way.
	Jitter bool

	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error, delay time.Duration)
}

const jitterFactor = 0.25

// Retry runs operations under a RetryPolicy.
type Retry struct {
	policy RetryPolicy
}

// NewRetry applies defaults and returns a Retry.
func NewRetry(policy RetryPolicy) *Retry {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.InitialDelay < 0 {
		policy.InitialDelay = 0
	} else if policy.InitialDelay == 0 {
		policy.InitialDelay = 500 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 10 * time.Second
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 2.0
	}
	return &Retry{policy: policy}
}

// Do waits InitialDelay, then calls op until it succeeds or MaxAttempts is
// reached. op receives the 1-based attempt number. The last error is returned,
// or the context error when ctx ends during a wait.
func (r *Retry) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	if err := wait(ctx, min(r.policy.InitialDelay, r.policy.MaxDelay)); err != nil {
		return err
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, op(ctx, attempt)
	},
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, err, next)
			}
		}),
	)
	return err
}

// backOff yields the waits between attempts. The first wait follows the
// initial delay, so it starts one multiplier step above it.
func (r *Retry) backOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval: min(time.Duration(float64(r.policy.InitialDelay)*r.policy.Multiplier), r.policy.MaxDelay),
		Multiplier:      r.policy.Multiplier,
		MaxInterval:     r.policy.MaxDelay,
	}
	if r.policy.Jitter {
		b.RandomizationFactor = jitterFactor
	}
	b.Reset()
	return b
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
