package publishers

import (
	"strconv"
	"time"

	"github.com/samvad-hq/hush-client/pkg/apiclient"
)

// Event represents one finished API call as published downstream.
type Event struct {
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code,omitempty"`
	Attempts   int       `json:"attempts"`
	ElapsedMS  float64   `json:"elapsed_ms"`
	RequestID  string    `json:"request_id"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent converts a client request event into its wire form.
func NewEvent(evt apiclient.RequestEvent) Event {
	out := Event{
		Method:     evt.Method,
		Path:       evt.Path,
		URL:        evt.URL,
		StatusCode: evt.StatusCode,
		Attempts:   evt.Attempts,
		ElapsedMS:  float64(evt.Elapsed.Microseconds()) / 1000,
		RequestID:  evt.RequestID,
		OccurredAt: evt.OccurredAt,
	}
	if evt.Err != nil {
		out.Error = evt.Err.Error()
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now().UTC()
	}
	return out
}

// Attributes returns the routing attributes attached to queue and topic messages.
func (e Event) Attributes() map[string]string {
	return map[string]string{
		"method":      e.Method,
		"path":        e.Path,
		"status_code": strconv.Itoa(e.StatusCode),
		"request_id":  e.RequestID,
	}
}
