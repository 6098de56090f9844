package apiclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/samvad-hq/hush-client/pkg/httpclient"
)

// fakeResponse implements httpclient.Response.
type fakeResponse struct {
	status int
	body   []byte
	header http.Header
}

func (f fakeResponse) Body() []byte           { return f.body }
func (f fakeResponse) StatusCode() int        { return f.status }
func (f fakeResponse) Status() string         { return http.StatusText(f.status) }
func (f fakeResponse) Header() http.Header    { return f.header }
func (f fakeResponse) Elapsed() time.Duration { return time.Millisecond }

// fakeTransport records requests and answers through fn.
type fakeTransport struct {
	mu       sync.Mutex
	requests []httpclient.Request
	fn       func(call int, req httpclient.Request) (httpclient.Response, error)
}

func (f *fakeTransport) Do(_ context.Context, req httpclient.Request) (httpclient.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()
	return f.fn(call, req)
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) request(i int) httpclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func jsonResponse(status int, body string) fakeResponse {
	return fakeResponse{
		status: status,
		body:   []byte(body),
		header: http.Header{"Content-Type": []string{"application/json"}},
	}
}

// fakeSleeper records waits without blocking.
type fakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func testPolicy(s *fakeSleeper, attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.Multiplier = 2
			b.RandomizationFactor = 0
			b.MaxInterval = time.Second
			b.Reset()
			return b
		},
		Sleep: s.Sleep,
	}
}

// countingBackOff returns zero waits n times and then backoff.Stop.
type countingBackOff struct {
	left int
}

func (b *countingBackOff) NextBackOff() time.Duration {
	if b.left <= 0 {
		return backoff.Stop
	}
	b.left--
	return 0
}

func (b *countingBackOff) Reset() {}

func stopAfter(n int) func() backoff.BackOff {
	return func() backoff.BackOff { return &countingBackOff{left: n} }
}
