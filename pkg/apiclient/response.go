package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Response is the immutable envelope of a completed call.
type Response struct {
	statusCode int
	status     string
	body       any
	raw        []byte
	header     http.Header
	elapsed    time.Duration
	attempts   int
	requestID  string
}

func newResponse(statusCode int, status string, raw []byte, header http.Header, elapsed time.Duration, attempts int, requestID string) *Response {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &Response{
		statusCode: statusCode,
		status:     status,
		body:       decodeBody(cp),
		raw:        cp,
		header:     header.Clone(),
		elapsed:    elapsed,
		attempts:   attempts,
		requestID:  requestID,
	}
}

// decodeBody returns the parsed JSON value when raw is valid JSON and the text otherwise.
func decodeBody(raw []byte) any {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

func (r *Response) StatusCode() int { return r.statusCode }
func (r *Response) Status() string  { return r.status }

// Body returns the decoded JSON value or the raw text.
func (r *Response) Body() any { return r.body }

// Raw returns a copy of the undecoded body bytes.
func (r *Response) Raw() []byte {
	cp := make([]byte, len(r.raw))
	copy(cp, r.raw)
	return cp
}

// Header returns a copy of the response headers.
func (r *Response) Header() http.Header { return r.header.Clone() }

// Headers flattens the response headers to their first value.
func (r *Response) Headers() map[string]string {
	out := make(map[string]string, len(r.header))
	for k, v := range r.header {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func (r *Response) Elapsed() time.Duration { return r.elapsed }

// ElapsedMS reports the elapsed time of the final attempt in milliseconds.
func (r *Response) ElapsedMS() float64 {
	return float64(r.elapsed) / float64(time.Millisecond)
}

// Attempts is the number of attempts made for this call, including the final one.
func (r *Response) Attempts() int     { return r.attempts }
func (r *Response) RequestID() string { return r.requestID }

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

// Get extracts a value from a JSON body using a gjson path.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
