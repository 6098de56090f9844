package apiclient

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultRandomization   = 0.2
)

// RetryPolicy decides how a logical call is retried.
// The zero value is completed with defaults by the client.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// NewBackOff returns a fresh schedule for each logical call.
	NewBackOff func() backoff.BackOff
	// Retryable reports whether a response status should be retried.
	Retryable func(statusCode int) bool
	// Sleep waits between attempts; it must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries transient statuses three times in total with
// exponential backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		NewBackOff:  ExponentialBackOff(DefaultInitialInterval, DefaultMaxInterval),
		Retryable:   IsTransientStatus,
		Sleep:       SleepContext,
	}
}

// ExponentialBackOff returns a backoff factory doubling from initial up to max.
func ExponentialBackOff(initial, max time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.Multiplier = defaultMultiplier
		b.RandomizationFactor = defaultRandomization
		b.Reset()
		return b
	}
}

// ConstantBackOff returns a backoff factory with a fixed delay.
func ConstantBackOff(d time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// IsTransientStatus reports 429, 500, 502, 503 and 504.
func IsTransientStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.NewBackOff == nil {
		p.NewBackOff = def.NewBackOff
	}
	if p.Retryable == nil {
		p.Retryable = def.Retryable
	}
	if p.Sleep == nil {
		p.Sleep = def.Sleep
	}
	return p
}

// shouldRetry reports whether another attempt is allowed after attempt (1-based).
func (p RetryPolicy) shouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}
