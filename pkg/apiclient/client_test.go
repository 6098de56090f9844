package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/hush-client/pkg/httpclient"
)

func newTestClient(t *testing.T, tr *fakeTransport, policy RetryPolicy, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithTransport(tr)}, opts...)
	c, err := New(Config{BaseURL: "http://api.test/", Retry: policy}, opts...)
	require.NoError(t, err)
	return c
}

func TestHealthCheckAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	got, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "ok"}, got)
}

func TestSuccessReturnsBodyUnchanged(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return jsonResponse(http.StatusOK, `{"users":[{"id":1,"name":"a"}],"total":1}`), nil
	}}
	c := newTestClient(t, tr, RetryPolicy{})

	got, err := c.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"users": []any{map[string]any{"id": float64(1), "name": "a"}},
		"total": float64(1),
	}, got)
	assert.Equal(t, "http://api.test/api/users", tr.request(0).URL)
}

func TestTextBodyIsReturnedAsString(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return fakeResponse{status: http.StatusOK, body: []byte("Hello, guest")}, nil
	}}
	c := newTestClient(t, tr, RetryPolicy{})

	got, err := c.UserInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello, guest", got)
}

func TestDefaultHeadersAndAuthToken(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	}}
	c := newTestClient(t, tr, RetryPolicy{})
	ctx := context.Background()

	_, err := c.HealthCheck(ctx)
	require.NoError(t, err)
	first := tr.request(0).Headers
	assert.Equal(t, "application/json", first["Content-Type"])
	assert.Equal(t, DefaultUserAgent, first["User-Agent"])
	assert.NotEmpty(t, first["X-Request-Id"])
	assert.NotContains(t, first, "Authorization")

	c.SetAuthToken("secret-token-123")
	_, err = c.Users(ctx)
	require.NoError(t, err)
	_, err = c.AdminDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token-123", tr.request(1).Headers["Authorization"])
	assert.Equal(t, "Bearer secret-token-123", tr.request(2).Headers["Authorization"])

	c.SetAuthToken("")
	_, err = c.Users(ctx)
	require.NoError(t, err)
	assert.NotContains(t, tr.request(3).Headers, "Authorization")
}

func TestCallerHeadersOverrideDefaults(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	}}
	c, err := New(Config{
		BaseURL:   "http://api.test",
		AuthToken: "configured-token",
		Headers:   map[string]string{"x-tenant": "acme"},
	}, WithTransport(tr))
	require.NoError(t, err)

	_, err = c.Do(context.Background(), http.MethodGet, "health",
		WithHeader("user-agent", "custom/1.0"),
		WithHeaders(map[string]string{"X-Request-ID": "12345", "X-Custom-Header": "CustomValue"}),
		WithQuery("verbose", "1"),
	)
	require.NoError(t, err)

	req := tr.request(0)
	assert.Equal(t, "http://api.test/health", req.URL)
	assert.Equal(t, "custom/1.0", req.Headers["User-Agent"])
	assert.Equal(t, "12345", req.Headers["X-Request-Id"])
	assert.Equal(t, "CustomValue", req.Headers["X-Custom-Header"])
	assert.Equal(t, "acme", req.Headers["X-Tenant"])
	assert.Equal(t, "Bearer configured-token", req.Headers["Authorization"])
	assert.Equal(t, map[string]string{"verbose": "1"}, req.Query)
}

func TestJSONBodyOnlyForWriteMethods(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return jsonResponse(http.StatusCreated, `{"id":"u1"}`), nil
	}}
	c := newTestClient(t, tr, RetryPolicy{})
	payload := map[string]any{"name": "Zhang San", "email": "zhangsan@example.com"}

	got, err := c.CreateUser(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "u1"}, got)
	assert.Equal(t, http.MethodPost, tr.request(0).Method)
	assert.Equal(t, payload, tr.request(0).Body)

	_, err = c.Do(context.Background(), http.MethodGet, PathUsers, WithJSON(payload))
	require.NoError(t, err)
	assert.Nil(t, tr.request(1).Body)
}

func TestUnauthorizedSurfacesAPIError(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"error":"Missing authorization token"}`), nil
	}}
	s := &fakeSleeper{}
	c := newTestClient(t, tr, testPolicy(s, 3))

	_, err := c.Users(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, map[string]any{"error": "Missing authorization token"}, apiErr.Body)
	assert.Equal(t, "Missing authorization token", apiErr.Message)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, tr.calls(), "401 must not be retried")
	assert.Empty(t, s.waits)
}

func TestTransientStatusRetriedUpToMaxAttempts(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503, 504} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
				return jsonResponse(status, `{"error":"try later"}`), nil
			}}
			s := &fakeSleeper{}
			c := newTestClient(t, tr, testPolicy(s, 4))

			_, err := c.HealthCheck(context.Background())
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, status, apiErr.StatusCode)
			assert.Equal(t, 4, apiErr.Attempts)
			assert.Equal(t, 4, tr.calls())
			assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}, s.waits)
		})
	}
}

func TestDefaultPolicyMakesThreeAttempts(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, `{}`), nil
	}}
	s := &fakeSleeper{}
	c := newTestClient(t, tr, RetryPolicy{Sleep: s.Sleep})

	_, err := c.HealthCheck(context.Background())
	require.ErrorIs(t, err, ErrServer)
	assert.Equal(t, DefaultMaxAttempts, tr.calls())
	assert.Len(t, s.waits, DefaultMaxAttempts-1)
}

func TestRetryThenSuccessKeepsRequestID(t *testing.T) {
	tr := &fakeTransport{fn: func(call int, _ httpclient.Request) (httpclient.Response, error) {
		if call < 3 {
			return jsonResponse(http.StatusBadGateway, `bad gateway`), nil
		}
		return jsonResponse(http.StatusOK, `{"status":"ok"}`), nil
	}}
	s := &fakeSleeper{}
	c := newTestClient(t, tr, testPolicy(s, 3))

	resp, err := c.Do(context.Background(), http.MethodGet, PathHealth)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts())
	assert.Equal(t, "ok", resp.Get("status").String())

	id := tr.request(0).Headers["X-Request-Id"]
	assert.Equal(t, id, tr.request(1).Headers["X-Request-Id"])
	assert.Equal(t, id, tr.request(2).Headers["X-Request-Id"])
	assert.Equal(t, id, resp.RequestID())
}

func TestNetworkFailureRetriedThenTransportError(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return nil, boom
	}}
	s := &fakeSleeper{}
	c := newTestClient(t, tr, testPolicy(s, 3))

	_, err := c.HealthCheck(context.Background())
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, tErr.Attempts)
	assert.Equal(t, 3, tr.calls())
	assert.True(t, IsTransport(err))
	assert.Zero(t, StatusCode(err))
}

func TestConnectionRefusedAgainstClosedServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := &fakeSleeper{}
	c, err := New(Config{BaseURL: url, Timeout: time.Second, Retry: testPolicy(s, 2)})
	require.NoError(t, err)

	_, err = c.HealthCheck(context.Background())
	assert.True(t, IsTransport(err))
	assert.Len(t, s.waits, 1)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTransport{fn: func(call int, _ httpclient.Request) (httpclient.Response, error) {
		if call == 2 {
			cancel()
			return nil, context.Canceled
		}
		return jsonResponse(http.StatusServiceUnavailable, `{}`), nil
	}}
	s := &fakeSleeper{}
	c := newTestClient(t, tr, testPolicy(s, 5))

	_, err := c.HealthCheck(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 2, tr.calls())
}

func TestBackOffStopEndsRetries(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":"slow down"}`), nil
	}}
	s := &fakeSleeper{}
	policy := testPolicy(s, 5)
	policy.NewBackOff = stopAfter(1)
	c := newTestClient(t, tr, policy)

	_, err := c.HealthCheck(context.Background())
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 2, tr.calls())
}

func TestCORSPreflightSendsAccessControlHeaders(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return fakeResponse{status: http.StatusNoContent, header: http.Header{
			"Access-Control-Allow-Origin":  []string{"*"},
			"Access-Control-Allow-Methods": []string{"GET, POST, PUT, DELETE, OPTIONS"},
		}}, nil
	}}
	c := newTestClient(t, tr, RetryPolicy{})

	resp, err := c.CORSPreflight(context.Background(), "/api/users", "post")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, "", resp.Body())
	assert.Equal(t, "*", resp.Headers()["Access-Control-Allow-Origin"])

	req := tr.request(0)
	assert.Equal(t, http.MethodOptions, req.Method)
	assert.Equal(t, "POST", req.Headers["Access-Control-Request-Method"])
	assert.Equal(t, "Content-Type, Authorization", req.Headers["Access-Control-Request-Headers"])
}

func TestConcurrentCallsDoNotShareState(t *testing.T) {
	tr := &fakeTransport{fn: func(_ int, req httpclient.Request) (httpclient.Response, error) {
		switch req.URL {
		case "http://api.test/health":
			return jsonResponse(http.StatusOK, `{"status":"ok"}`), nil
		case "http://api.test/api/users":
			return jsonResponse(http.StatusOK, `{"users":["a","b"]}`), nil
		}
		return jsonResponse(http.StatusNotFound, `{}`), nil
	}}
	c := newTestClient(t, tr, RetryPolicy{})

	const rounds = 50
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, err := c.HealthCheck(context.Background())
			if err != nil || got.(map[string]any)["status"] != "ok" {
				errs <- errors.New("health check returned unexpected result")
			}
		}()
		go func() {
			defer wg.Done()
			got, err := c.Users(context.Background())
			if err != nil || len(got.(map[string]any)["users"].([]any)) != 2 {
				errs <- errors.New("users returned unexpected result")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, rounds*2, tr.calls())
}

func TestObserverReceivesEvent(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return jsonResponse(http.StatusForbidden, `{"error":"Admin access required"}`), nil
	}}
	var got []RequestEvent
	obs := ObserverFunc(func(_ context.Context, evt RequestEvent) { got = append(got, evt) })
	c := newTestClient(t, tr, RetryPolicy{}, WithObserver(obs))

	_, err := c.AdminDashboard(context.Background())
	require.ErrorIs(t, err, ErrForbidden)
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodGet, got[0].Method)
	assert.Equal(t, PathAdminDashboard, got[0].Path)
	assert.Equal(t, http.StatusForbidden, got[0].StatusCode)
	assert.Equal(t, 1, got[0].Attempts)
	assert.Error(t, got[0].Err)
}

func TestPayloadValidationBlocksInvalidUser(t *testing.T) {
	tr := &fakeTransport{fn: func(int, httpclient.Request) (httpclient.Response, error) {
		return jsonResponse(http.StatusCreated, `{}`), nil
	}}
	c := newTestClient(t, tr, RetryPolicy{}, WithPayloadValidation())

	_, err := c.CreateUser(context.Background(), map[string]any{"name": "", "email": "not-an-email"})
	require.ErrorIs(t, err, ErrInvalidPayload)
	assert.Zero(t, tr.calls())

	_, err = c.CreateUser(context.Background(), struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}{"Zhang San", "zhangsan@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, tr.calls())
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "ftp://example.com", "http://"} {
		_, err := New(Config{BaseURL: raw})
		assert.Error(t, err, "base url %q", raw)
	}

	c, err := New(Config{BaseURL: "https://api.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", c.BaseURL())
}
