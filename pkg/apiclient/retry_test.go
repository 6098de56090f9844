package apiclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, IsTransientStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 204, 400, 401, 403, 404, 408, 501} {
		assert.False(t, IsTransientStatus(code), "status %d", code)
	}
}

func TestRetryPolicyNormalizeFillsDefaults(t *testing.T) {
	p := RetryPolicy{}.normalize()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	require.NotNil(t, p.NewBackOff)
	require.NotNil(t, p.Retryable)
	require.NotNil(t, p.Sleep)

	custom := RetryPolicy{MaxAttempts: 7}.normalize()
	assert.Equal(t, 7, custom.MaxAttempts)
	assert.True(t, custom.shouldRetry(6))
	assert.False(t, custom.shouldRetry(7))
}

func TestExponentialBackOffStaysWithinJitter(t *testing.T) {
	b := ExponentialBackOff(time.Second, 30*time.Second)()

	first := b.NextBackOff()
	assert.InDelta(t, float64(time.Second), float64(first), float64(200*time.Millisecond))

	second := b.NextBackOff()
	assert.InDelta(t, float64(2*time.Second), float64(second), float64(400*time.Millisecond))
}

func TestConstantBackOff(t *testing.T) {
	b := ConstantBackOff(250 * time.Millisecond)()
	assert.Equal(t, 250*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 250*time.Millisecond, b.NextBackOff())
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
}
