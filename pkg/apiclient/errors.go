package apiclient

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Sentinel errors matched with errors.Is against *APIError.
var (
	ErrUnauthorized   = errors.New("unauthenticated")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrServer         = errors.New("server error")
	ErrInvalidPayload = errors.New("invalid payload")
)

const maxMessageBytes = 512

// APIError is returned when the server answered with a non-2xx status.
type APIError struct {
	StatusCode int
	Status     string
	// Message is a short human readable reason extracted from the body when possible.
	Message string
	// Body holds the decoded JSON value, or the raw text when the body is not JSON.
	Body      any
	Header    http.Header
	Attempts  int
	RequestID string
}

func (e *APIError) Error() string {
	reason := e.Status
	if reason == "" {
		reason = http.StatusText(e.StatusCode)
	}
	// resty's Status() carries the code too, e.g. "401 Unauthorized".
	reason = strings.TrimSpace(strings.TrimPrefix(reason, fmt.Sprintf("%d", e.StatusCode)))
	msg := fmt.Sprintf("HTTP %d: %s", e.StatusCode, reason)
	if e.Message != "" && e.Message != reason {
		msg += " (" + e.Message + ")"
	}
	return msg
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return target == ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return target == ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return target == ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return target == ErrRateLimited
	case e.StatusCode >= 500 && e.StatusCode < 600:
		return target == ErrServer
	}
	return false
}

// TransportError is returned when no HTTP response could be obtained:
// DNS failures, refused connections, timeouts and cancellation.
type TransportError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

func newAPIError(resp *Response) *APIError {
	return &APIError{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Message:    extractMessage(resp.Header().Get("Content-Type"), resp.Raw()),
		Body:       resp.Body(),
		Header:     resp.Header(),
		Attempts:   resp.Attempts(),
		RequestID:  resp.RequestID(),
	}
}

// extractMessage pulls a short reason out of an error body.
// JSON bodies are probed for the usual fields, HTML pages yield their title.
func extractMessage(contentType string, raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	if gjson.ValidBytes(raw) {
		for _, path := range []string{"error.message", "error", "message", "detail"} {
			if res := gjson.GetBytes(raw, path); res.Exists() && res.Type == gjson.String {
				return truncate(res.String())
			}
		}
		return ""
	}

	if strings.Contains(strings.ToLower(contentType), "html") || bytes.HasPrefix(raw, []byte("<")) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
		if err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				return truncate(title)
			}
			if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
				return truncate(h1)
			}
		}
		return ""
	}

	return truncate(string(raw))
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxMessageBytes {
		return s[:maxMessageBytes]
	}
	return s
}
