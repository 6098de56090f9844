package httpclient

import (
	"context"
	"net/http"
	"time"
)

// Request describes a single outbound HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	// Body is JSON-encoded by the transport when non-nil.
	Body any
}

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Status() string
	Header() http.Header
	Elapsed() time.Duration
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// A Client performs exactly one attempt per Do; retrying is the caller's concern.
type Client interface {
	Do(ctx context.Context, req Request) (Response, error)
}
