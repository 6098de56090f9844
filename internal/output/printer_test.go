package output

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/hush-client/pkg/apiclient"
)

func TestPrinterWritesPlainTextWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, true)

	p.Section("Basic Usage")
	p.Success("Health", map[string]any{"status": "ok"})
	p.Failure("Users", errors.New("HTTP 401: Unauthorized"))
	p.KeyValue("p99", "12ms")

	out := buf.String()
	assert.Contains(t, out, "=== Basic Usage ===")
	assert.Contains(t, out, "✓ Health: {\n  \"status\": \"ok\"\n}")
	assert.Contains(t, out, "✗ Users: HTTP 401: Unauthorized")
	assert.Contains(t, out, "  p99: 12ms")
	assert.NotContains(t, out, "\x1b[", "expected no ANSI escapes")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "Hello, World!", FormatValue("Hello, World!"))
	assert.Equal(t, "null", FormatValue(nil))
	assert.Equal(t, "[\n  1,\n  2\n]", FormatValue([]any{1, 2}))
}

func TestPrinterResponseShowsSelectedHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	resp, err := client.CORSPreflight(context.Background(), "/api/users", http.MethodPost)
	require.NoError(t, err)

	var buf bytes.Buffer
	New(&buf, true).Response("Preflight", resp, "access-control-allow-origin")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "● Preflight: 204"), out)
	assert.Contains(t, out, "Access-Control-Allow-Origin: *")
	assert.NotContains(t, out, "Max-Age")
}

func TestIsTerminalNil(t *testing.T) {
	assert.False(t, IsTerminal(nil))
}
