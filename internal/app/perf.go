package app

import (
	"context"
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Latencies are recorded in microseconds, up to one minute.
	latencyMinMicros = 1
	latencyMaxMicros = int64(time.Minute / time.Microsecond)
	latencySigFigs   = 3
)

// LatencySummary condenses a run of timed calls.
type LatencySummary struct {
	Count  int64
	Failed int
	Total  time.Duration
	Min    time.Duration
	P50    time.Duration
	P90    time.Duration
	P99    time.Duration
	Max    time.Duration
	Mean   time.Duration
}

// MeasureLatency runs fn n times sequentially and records every successful
// call in an HdrHistogram. Failed calls are counted but not recorded.
func MeasureLatency(ctx context.Context, n int, fn func(ctx context.Context) error) (LatencySummary, error) {
	if n <= 0 {
		return LatencySummary{}, fmt.Errorf("iterations must be positive, got %d", n)
	}

	hist := hdrhistogram.New(latencyMinMicros, latencyMaxMicros, latencySigFigs)
	var summary LatencySummary
	start := time.Now()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		callStart := time.Now()
		if err := fn(ctx); err != nil {
			summary.Failed++
			continue
		}
		us := time.Since(callStart).Microseconds()
		if us < latencyMinMicros {
			us = latencyMinMicros
		}
		if err := hist.RecordValue(us); err != nil {
			return summary, fmt.Errorf("record latency: %w", err)
		}
	}
	summary.Total = time.Since(start)

	summary.Count = hist.TotalCount()
	if summary.Count == 0 {
		return summary, nil
	}
	summary.Min = micros(hist.Min())
	summary.P50 = micros(hist.ValueAtQuantile(50))
	summary.P90 = micros(hist.ValueAtQuantile(90))
	summary.P99 = micros(hist.ValueAtQuantile(99))
	summary.Max = micros(hist.Max())
	summary.Mean = time.Duration(hist.Mean() * float64(time.Microsecond))
	return summary, nil
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
