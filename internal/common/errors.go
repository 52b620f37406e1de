// Package common defines shared constants, helpers and sentinel errors used
// across the APIFarm server and client. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Validation errors (malformed input at the boundary).
	ErrValidation = errors.New("validation error")

	// Identity errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthorized       = errors.New("unauthorized")

	// Ownership errors.
	ErrNotOwned = errors.New("credential not owned by user")

	// Dispatch errors.
	ErrPoolEmpty      = errors.New("no API keys available in the pool")
	ErrAllKeysFailed  = errors.New("all API keys failed")
	ErrStreamDisabled = errors.New("streaming is not supported by the pooled dispatch path")

	// Persistence errors.
	ErrPersistence = errors.New("persistence failure")
)
