// Package upstream holds the per-credential clients used to reach the
// completion service, and the registry that keeps exactly one client per
// unique credential.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zhusq20/APIFarm/internal/cryptox"
)

// Upstream API paths relative to a credential's base URL.
const (
	PathChatCompletions = "/chat/completions"
	PathEmbeddings      = "/embeddings"
)

// maxErrorBody bounds how much of a failed response is kept on StatusError.
const maxErrorBody = 2048

// Handle is a client bound to one (endpoint, credential) pair.
type Handle interface {
	// ID identifies the credential in logs without revealing it.
	ID() string
	Endpoint() string
	// Post sends body as JSON to path and returns the raw 2xx response body.
	Post(ctx context.Context, path string, body []byte) ([]byte, error)
}

// Factory builds the handle for a newly seen credential.
type Factory func(endpoint, secret string) Handle

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// HTTPHandle talks to an OpenAI-compatible endpoint with a bearer key.
type HTTPHandle struct {
	client   *http.Client
	endpoint string
	secret   string
	id       string
}

func NewHTTPHandle(client *http.Client, endpoint, secret string) *HTTPHandle {
	return &HTTPHandle{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		secret:   secret,
		id:       cryptox.Fingerprint(secret),
	}
}

// HTTPFactory returns a Factory producing HTTPHandles that share client.
// Attempt deadlines come from the request context, so client should not
// carry its own Timeout.
func HTTPFactory(client *http.Client) Factory {
	return func(endpoint, secret string) Handle {
		return NewHTTPHandle(client, endpoint, secret)
	}
}

func (h *HTTPHandle) ID() string       { return h.id }
func (h *HTTPHandle) Endpoint() string { return h.endpoint }

func (h *HTTPHandle) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	return io.ReadAll(resp.Body)
}

// Redact shortens a secret for display: the first and last four
// characters survive, everything else is elided.
func Redact(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
