// Package client is the Go SDK for the APIFarm server.
//
// # Overview
//
// Client wraps the HTTP/JSON API: user registration and login, key
// management for the logged-in user, and the pooled chat completion and
// embedding endpoints, which need no login.
//
// # Configuration
//
// The server base URL comes from the constructor argument or, when that is
// empty, from the API_FARM_SERVER_URL environment variable. With neither
// set, New fails with ErrServerURLNotConfigured.
//
// # Error Handling
//
// Non-2xx responses are returned as *APIError, which matches one of the
// sentinels with errors.Is: ErrUnauthorized (401), ErrNotFound (404),
// ErrBadRequest (400), ErrUnavailable (503 and transport failures) and
// ErrUpstream (502, 504).
package client
