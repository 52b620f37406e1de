package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/zhusq20/APIFarm/internal/common"
	"github.com/zhusq20/APIFarm/internal/flagx"
)

// Client talks to one APIFarm server. It is safe for concurrent use once
// the token is set.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a Client for baseURL, falling back to API_FARM_SERVER_URL.
// token may be empty; it is sent as a bearer credential when present.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = flagx.EnvOr(common.ServerURLEnv, "")
	}
	if baseURL == "" {
		return nil, ErrServerURLNotConfigured
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Token() string { return c.token }

func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Health(ctx context.Context) (int, error) {
	var resp struct {
		Status string `json:"status"`
		Keys   int    `json:"keys"`
	}
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Keys, nil
}

func (c *Client) Register(ctx context.Context, username, password string) (*RegisterResult, error) {
	var out RegisterResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/users/register", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (token, userID string, err error) {
	var out struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/users/login", body, &out); err != nil {
		return "", "", err
	}
	c.token = out.Token
	return out.Token, out.UserID, nil
}

// Logout revokes the client's token on the server and clears it locally.
func (c *Client) Logout(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/logout", nil, &out); err != nil {
		return "", err
	}
	c.token = ""
	return out.Message, nil
}

func (c *Client) AddKey(ctx context.Context, apiKey, baseURL string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	body := map[string]string{"api_key": apiKey, "base_url": baseURL}
	if err := c.do(ctx, http.MethodPost, "/keys", body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) ListKeys(ctx context.Context) ([]string, error) {
	var out struct {
		Keys []string `json:"keys"`
	}
	if err := c.do(ctx, http.MethodGet, "/keys", nil, &out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

func (c *Client) RemoveKey(ctx context.Context, apiKey string) (*RemoveResult, error) {
	var out RemoveResult
	if err := c.do(ctx, http.MethodDelete, "/keys", map[string]string{"api_key": apiKey}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChatCompletions(ctx context.Context, req ChatRequest) (*ChatCompletion, error) {
	req.Stream = false
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/chat/completions", req, &raw); err != nil {
		return nil, err
	}
	return decodeCompletion(raw)
}

// BatchChatCompletions returns one completion per element of
// req.BatchMessages, in the same order.
func (c *Client) BatchChatCompletions(ctx context.Context, req BatchChatRequest) ([]*ChatCompletion, error) {
	var out struct {
		Responses []json.RawMessage `json:"responses"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat/completions/batch", req, &out); err != nil {
		return nil, err
	}

	completions := make([]*ChatCompletion, len(out.Responses))
	for i, raw := range out.Responses {
		cc, err := decodeCompletion(raw)
		if err != nil {
			return nil, fmt.Errorf("response %d: %w", i, err)
		}
		completions[i] = cc
	}
	return completions, nil
}

func (c *Client) Embeddings(ctx context.Context, req EmbeddingsRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/embeddings", req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ReadKeysFile loads keys from a JSON file of the form {"api_keys": [...]}.
func ReadKeysFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f struct {
		APIKeys []string `json:"api_keys"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid JSON in file: %w", err)
	}
	if len(f.APIKeys) == 0 {
		return nil, errors.New("no API keys found in file, expected an 'api_keys' array")
	}
	return f.APIKeys, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}

	if json.Unmarshal(data, &envelope) == nil {
		switch {
		case envelope.Error.Message != "":
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		case envelope.Detail != "":
			apiErr.Message = envelope.Detail
		}
	}
	return apiErr
}
