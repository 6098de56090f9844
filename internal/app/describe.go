package app

import (
	"errors"
	"fmt"

	"github.com/samvad-hq/hush-client/pkg/apiclient"
)

// DescribeError turns a client error into a short operator-facing explanation.
func DescribeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, apiclient.ErrInvalidPayload):
		return fmt.Sprintf("invalid payload: %v", err)
	case apiclient.IsTransport(err):
		return fmt.Sprintf("network error: %v", err)
	case errors.Is(err, apiclient.ErrUnauthorized):
		return "authentication error: provide a valid bearer token"
	case errors.Is(err, apiclient.ErrForbidden):
		return "permission error: access denied"
	case errors.Is(err, apiclient.ErrRateLimited):
		return "rate limited: too many requests, retry later"
	case errors.Is(err, apiclient.ErrServer):
		return fmt.Sprintf("server error: HTTP %d", apiclient.StatusCode(err))
	}
	if code := apiclient.StatusCode(err); code != 0 {
		return fmt.Sprintf("unknown error: HTTP %d", code)
	}
	return fmt.Sprintf("unknown error: %v", err)
}

// errorDetail returns the decoded error body for display, when there is one.
func errorDetail(err error) any {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Body != nil && apiErr.Body != "" {
		return apiErr.Body
	}
	return nil
}
