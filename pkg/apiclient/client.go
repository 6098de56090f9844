package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/samvad-hq/hush-client/pkg/httpclient"
)

const (
	DefaultBaseURL   = "http://localhost:8080"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "HushClient/1.0.0 (Go)"

	headerRequestID = "X-Request-Id"
)

var errBackOffStopped = errors.New("backoff schedule exhausted")

// Config holds the settings fixed at construction time. Only the auth token
// may change afterwards, through SetAuthToken.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	AuthToken string
	UserAgent string
	// Headers are sent with every request and override the built-in defaults.
	Headers map[string]string
	Retry   RetryPolicy
}

// Client is a Hush API client. It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	headers   map[string]string
	policy    RetryPolicy
	transport httpclient.Client
	log       Logger
	observer  Observer
	validate  bool

	mu    sync.RWMutex
	token string
}

// Option configures optional collaborators of the client.
type Option func(*Client)

// WithTransport replaces the resty transport, typically with a mock.
func WithTransport(t httpclient.Client) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log Logger) Option {
	return func(c *Client) {
		c.log = ensureLogger(log)
	}
}

// WithObserver registers a per-call event observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithPayloadValidation makes CreateUser validate its payload before sending.
func WithPayloadValidation() Option {
	return func(c *Client) {
		c.validate = true
	}
}

// New builds a client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	c := &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		headers:   canonicalHeaders(cfg.Headers),
		policy:    cfg.Retry.normalize(),
		log:       noopLogger{},
		token:     cfg.AuthToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = httpclient.NewRestyClient(cfg.Timeout)
	}
	return c, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// SetAuthToken stores the bearer token used by subsequent requests.
// The token is not validated; an empty token removes the Authorization header.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.log.InfoObj("auth token updated", "auth", map[string]any{"token_set": token != ""})
}

// AuthToken returns the current bearer token.
func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// RequestOption customizes a single call made through Do.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers map[string]string
	query   map[string]string
	body    any
}

// WithHeader sets a header on one request, overriding any default.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[http.CanonicalHeaderKey(key)] = value
	}
}

// WithHeaders sets several headers on one request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(o *requestOptions) {
		for k, v := range headers {
			WithHeader(k, v)(o)
		}
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = make(map[string]string)
		}
		o.query[key] = value
	}
}

// WithJSON sets the request body. It is only sent for POST, PUT and PATCH.
func WithJSON(body any) RequestOption {
	return func(o *requestOptions) {
		o.body = body
	}
}

// Do issues method against path, retrying per the client's policy.
// A non-2xx final status yields an *APIError, a missing response a *TransportError.
func (c *Client) Do(ctx context.Context, method, path string, opts ...RequestOption) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	requestID := ro.headers[headerRequestID]
	if requestID == "" {
		requestID = uuid.NewString()
	}

	req := httpclient.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: c.buildHeaders(requestID, ro.headers),
		Query:   ro.query,
	}
	if ro.body != nil && allowsBody(method) {
		req.Body = ro.body
	}

	start := time.Now()
	resp, attempts, err := c.execute(ctx, req, requestID)
	c.report(ctx, req, path, requestID, resp, attempts, time.Since(start), err)
	return resp, err
}

func allowsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// buildHeaders layers defaults, auth, configured headers and per-call overrides.
func (c *Client) buildHeaders(requestID string, overrides map[string]string) map[string]string {
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Accept":        "application/json",
		"User-Agent":    c.userAgent,
		headerRequestID: requestID,
	}
	if token := c.AuthToken(); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	for k, v := range c.headers {
		headers[k] = v
	}
	for k, v := range overrides {
		headers[k] = v
	}
	return headers
}

func canonicalHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}

// execute runs the attempt loop. It returns the number of attempts made.
func (c *Client) execute(ctx context.Context, req httpclient.Request, requestID string) (*Response, int, error) {
	bo := c.policy.NewBackOff()

	for attempt := 1; ; attempt++ {
		attemptStart := time.Now()
		raw, err := c.transport.Do(ctx, req)
		if err != nil {
			tErr := &TransportError{Method: req.Method, URL: req.URL, Attempts: attempt, Err: err}
			if ctxErr := ctx.Err(); ctxErr != nil {
				if !errors.Is(err, ctxErr) {
					tErr.Err = errors.Join(ctxErr, err)
				}
				return nil, attempt, tErr
			}
			if !c.policy.shouldRetry(attempt) {
				return nil, attempt, tErr
			}
			if waitErr := c.wait(ctx, bo, req, attempt, 0, err); waitErr != nil {
				if errors.Is(waitErr, errBackOffStopped) {
					return nil, attempt, tErr
				}
				tErr.Err = waitErr
				return nil, attempt, tErr
			}
			continue
		}

		elapsed := raw.Elapsed()
		if elapsed <= 0 {
			elapsed = time.Since(attemptStart)
		}
		resp := newResponse(raw.StatusCode(), raw.Status(), raw.Body(), raw.Header(), elapsed, attempt, requestID)
		c.log.DebugObj("api attempt finished", "api_attempt", map[string]any{
			"method":      req.Method,
			"url":         req.URL,
			"attempt":     attempt,
			"status_code": resp.StatusCode(),
			"elapsed_ms":  resp.ElapsedMS(),
		})

		if resp.IsSuccess() {
			return resp, attempt, nil
		}
		if !c.policy.Retryable(resp.StatusCode()) || !c.policy.shouldRetry(attempt) {
			return nil, attempt, newAPIError(resp)
		}
		if waitErr := c.wait(ctx, bo, req, attempt, resp.StatusCode(), nil); waitErr != nil {
			if errors.Is(waitErr, errBackOffStopped) {
				return nil, attempt, newAPIError(resp)
			}
			return nil, attempt, &TransportError{Method: req.Method, URL: req.URL, Attempts: attempt, Err: waitErr}
		}
	}
}

// wait sleeps for the next backoff interval. It returns errBackOffStopped
// when the schedule is exhausted, or the context error.
func (c *Client) wait(ctx context.Context, bo backoff.BackOff, req httpclient.Request, attempt, status int, cause error) error {
	next := bo.NextBackOff()
	if next == backoff.Stop {
		return errBackOffStopped
	}

	fields := map[string]any{
		"method":       req.Method,
		"url":          req.URL,
		"attempt":      attempt,
		"max_attempts": c.policy.MaxAttempts,
		"wait_ms":      next.Milliseconds(),
	}
	if status != 0 {
		fields["status_code"] = status
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	c.log.WarnObj("api request retrying", "api_retry", fields)

	return c.policy.Sleep(ctx, next)
}

func (c *Client) report(ctx context.Context, req httpclient.Request, path, requestID string, resp *Response, attempts int, total time.Duration, err error) {
	evt := RequestEvent{
		Method:     req.Method,
		Path:       path,
		URL:        req.URL,
		Attempts:   attempts,
		Elapsed:    total,
		RequestID:  requestID,
		Err:        err,
		OccurredAt: time.Now().UTC(),
	}
	if resp != nil {
		evt.StatusCode = resp.StatusCode()
	} else if code := StatusCode(err); code != 0 {
		evt.StatusCode = code
	}

	fields := map[string]any{
		"method":      evt.Method,
		"path":        evt.Path,
		"status_code": evt.StatusCode,
		"attempts":    evt.Attempts,
		"elapsed_ms":  total.Milliseconds(),
		"request_id":  requestID,
	}
	if err != nil {
		fields["error"] = err.Error()
		c.log.ErrorObj("api request failed", "api_request", fields)
	} else {
		c.log.InfoObj("api request completed", "api_request", fields)
	}

	if c.observer != nil {
		c.observer.ObserveRequest(ctx, evt)
	}
}
