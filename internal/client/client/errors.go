package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrServerURLNotConfigured = errors.New("server URL not configured: set API_FARM_SERVER_URL")
	ErrUnavailable            = errors.New("server unavailable")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNotFound               = errors.New("not found")
	ErrBadRequest             = errors.New("bad request")
	ErrUpstream               = errors.New("upstream failure")
)

// APIError is a non-2xx answer from the server. It matches the sentinel
// for its status class with errors.Is.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrBadRequest
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrUpstream
	default:
		return nil
	}
}
