package apiclient

import (
	"context"
	"time"
)

// RequestEvent summarizes one logical call once it has finished.
type RequestEvent struct {
	Method     string
	Path       string
	URL        string
	StatusCode int
	Attempts   int
	Elapsed    time.Duration
	RequestID  string
	Err        error
	OccurredAt time.Time
}

// Observer receives an event for every logical call made by a Client.
// ObserveRequest runs on the call path before the call returns, so
// implementations must not block. They must be safe for concurrent use.
type Observer interface {
	ObserveRequest(ctx context.Context, evt RequestEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, evt RequestEvent)

func (f ObserverFunc) ObserveRequest(ctx context.Context, evt RequestEvent) { f(ctx, evt) }
