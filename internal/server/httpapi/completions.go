package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zhusq20/APIFarm/internal/common"
	"github.com/zhusq20/APIFarm/internal/server/dispatch"
	"github.com/zhusq20/APIFarm/internal/server/upstream"
)

// Sampling defaults applied when a request omits a field.
const (
	DefaultTemperature      = 1.0
	DefaultTopP             = 0.95
	DefaultMaxTokens        = 1024
	DefaultBatchConcurrency = 8

	defaultEncodingFormat = "float"
	defaultInputType      = "query"
	defaultTruncate       = "NONE"
)

var errInvalidUpstreamJSON = errors.New("upstream response is not valid JSON")

// Message is one chat message passed to the upstream untouched.
type Message map[string]any

type sampling struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stream      bool     `json:"stream"`
}

func (s sampling) validate() error {
	if s.Stream {
		return common.ErrStreamDisabled
	}
	if s.Model == "" {
		return fmt.Errorf("%w: model is required", common.ErrValidation)
	}
	if s.MaxTokens != nil && *s.MaxTokens < 1 {
		return fmt.Errorf("%w: max_tokens must be positive", common.ErrValidation)
	}
	return nil
}

type chatRequest struct {
	sampling
	Messages []Message `json:"messages"`
}

type batchChatRequest struct {
	sampling
	BatchMessages [][]Message `json:"batch_messages"`
	Concurrency   *int        `json:"concurrency"`
}

type embeddingsRequest struct {
	Model          string          `json:"model"`
	Input          json.RawMessage `json:"input"`
	EncodingFormat string          `json:"encoding_format"`
	InputType      string          `json:"input_type"`
	Truncate       string          `json:"truncate"`
}

// upstreamChatRequest is the body sent to /chat/completions upstream.
type upstreamChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

func (s sampling) upstreamRequest(messages []Message) upstreamChatRequest {
	req := upstreamChatRequest{
		Model:       s.Model,
		Messages:    messages,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		MaxTokens:   DefaultMaxTokens,
	}
	if s.Temperature != nil {
		req.Temperature = *s.Temperature
	}
	if s.TopP != nil {
		req.TopP = *s.TopP
	}
	if s.MaxTokens != nil {
		req.MaxTokens = *s.MaxTokens
	}
	return req
}

// postCall returns a dispatch.Call that posts body to path and accepts
// only a JSON response.
func postCall(path string, body []byte) dispatch.Call {
	return func(ctx context.Context, h upstream.Handle) ([]byte, error) {
		resp, err := h.Post(ctx, path, body)
		if err != nil {
			return nil, err
		}
		if !json.Valid(resp) {
			return nil, errInvalidUpstreamJSON
		}
		return resp, nil
	}
}

func (h *Handler) chatCompletions(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}
	if err := req.validate(); err != nil {
		h.respondServiceError(c, err)
		return
	}
	if len(req.Messages) == 0 {
		respondError(c, http.StatusBadRequest, CodeValidation, "messages must not be empty")
		return
	}

	body, err := json.Marshal(req.upstreamRequest(req.Messages))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	resp, err := h.dispatcher.Dispatch(c.Request.Context(), h.pool.Snapshot(), postCall(upstream.PathChatCompletions, body))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", resp)
}

func (h *Handler) batchChatCompletions(c *gin.Context) {
	var req batchChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}
	if err := req.validate(); err != nil {
		h.respondServiceError(c, err)
		return
	}
	if len(req.BatchMessages) == 0 {
		respondError(c, http.StatusBadRequest, CodeValidation, "batch_messages must not be empty")
		return
	}

	calls := make([]dispatch.Call, len(req.BatchMessages))
	for i, msgs := range req.BatchMessages {
		if len(msgs) == 0 {
			respondError(c, http.StatusBadRequest, CodeValidation, fmt.Sprintf("batch_messages[%d] must not be empty", i))
			return
		}
		body, err := json.Marshal(req.upstreamRequest(msgs))
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		calls[i] = postCall(upstream.PathChatCompletions, body)
	}

	concurrency := DefaultBatchConcurrency
	if req.Concurrency != nil {
		concurrency = *req.Concurrency
	}

	out, err := h.dispatcher.DispatchBatch(c.Request.Context(), h.pool, calls, concurrency)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	responses := make([]json.RawMessage, len(out))
	for i, r := range out {
		responses[i] = r
	}
	c.JSON(http.StatusOK, gin.H{"responses": responses})
}

func (h *Handler) embeddings(c *gin.Context) {
	var req embeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidation, "invalid json")
		return
	}
	if req.Model == "" || len(req.Input) == 0 || string(req.Input) == "null" {
		respondError(c, http.StatusBadRequest, CodeValidation, "model and input are required")
		return
	}
	if req.EncodingFormat == "" {
		req.EncodingFormat = defaultEncodingFormat
	}
	if req.InputType == "" {
		req.InputType = defaultInputType
	}
	if req.Truncate == "" {
		req.Truncate = defaultTruncate
	}

	body, err := json.Marshal(req)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	resp, err := h.dispatcher.Dispatch(c.Request.Context(), h.pool.Snapshot(), postCall(upstream.PathEmbeddings, body))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", resp)
}
