// Package apiclient is a client for the Hush HTTP API.
//
// A Client wraps a single-attempt transport with default headers, bearer
// token authentication, a timeout and an explicit RetryPolicy. Typed methods
// cover the fixed endpoint set:
//
//	GET     /health           HealthCheck
//	GET     /user             UserInfo
//	GET     /api/users        Users
//	POST    /api/users        CreateUser
//	GET     /admin/dashboard  AdminDashboard
//	OPTIONS <any>             CORSPreflight
//
// Calls block until the request completes, the timeout elapses or ctx is
// cancelled. Failures are either an *APIError (a non-2xx response was
// received) or a *TransportError (no response). Use errors.Is with
// ErrUnauthorized, ErrForbidden, ErrRateLimited or ErrServer to branch on
// status classes.
//
// Example:
//
//	c, err := apiclient.New(apiclient.Config{BaseURL: "http://localhost:8080"})
//	if err != nil {
//	    return err
//	}
//	c.SetAuthToken(token)
//	users, err := c.Users(ctx)
//	if errors.Is(err, apiclient.ErrUnauthorized) {
//	    // refresh the token
//	}
package apiclient
