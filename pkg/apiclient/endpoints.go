package apiclient

import (
	"context"
	"net/http"
	"strings"
)

const (
	PathHealth         = "/health"
	PathUser           = "/user"
	PathUsers          = "/api/users"
	PathAdminDashboard = "/admin/dashboard"

	preflightRequestHeaders = "Content-Type, Authorization"
)

// HealthCheck calls GET /health and returns the decoded body.
func (c *Client) HealthCheck(ctx context.Context) (any, error) {
	return c.body(ctx, http.MethodGet, PathHealth)
}

// UserInfo calls GET /user.
func (c *Client) UserInfo(ctx context.Context) (any, error) {
	return c.body(ctx, http.MethodGet, PathUser)
}

// Users calls GET /api/users. The server requires a bearer token.
func (c *Client) Users(ctx context.Context) (any, error) {
	return c.body(ctx, http.MethodGet, PathUsers)
}

// CreateUser posts payload as JSON to /api/users.
func (c *Client) CreateUser(ctx context.Context, payload any) (any, error) {
	if c.validate {
		if err := ValidateUserPayload(payload); err != nil {
			return nil, err
		}
	}
	return c.body(ctx, http.MethodPost, PathUsers, WithJSON(payload))
}

// AdminDashboard calls GET /admin/dashboard. The server requires an admin token.
func (c *Client) AdminDashboard(ctx context.Context) (any, error) {
	return c.body(ctx, http.MethodGet, PathAdminDashboard)
}

// CORSPreflight sends an OPTIONS request for endpoint announcing method.
// The full response is returned so callers can inspect Access-Control-* headers.
func (c *Client) CORSPreflight(ctx context.Context, endpoint, method string) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	return c.Do(ctx, http.MethodOptions, endpoint,
		WithHeader("Access-Control-Request-Method", method),
		WithHeader("Access-Control-Request-Headers", preflightRequestHeaders),
	)
}

func (c *Client) body(ctx context.Context, method, path string, opts ...RequestOption) (any, error) {
	resp, err := c.Do(ctx, method, path, opts...)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
