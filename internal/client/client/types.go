package client

import "encoding/json"

// Message is one chat message, sent to the server as-is.
type Message map[string]any

type RegisterResult struct {
	UserID  string `json:"user_id"`
	Created bool   `json:"created"`
	Message string `json:"message"`
}

type RemoveResult struct {
	Message         string `json:"message"`
	RemovedFromPool bool   `json:"removed_from_pool"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type BatchChatRequest struct {
	Model         string      `json:"model"`
	BatchMessages [][]Message `json:"batch_messages"`
	Temperature   float64     `json:"temperature"`
	TopP          float64     `json:"top_p"`
	MaxTokens     int         `json:"max_tokens"`
	Concurrency   int         `json:"concurrency"`
}

type EmbeddingsRequest struct {
	Model          string `json:"model"`
	Input          any    `json:"input"`
	EncodingFormat string `json:"encoding_format,omitempty"`
	InputType      string `json:"input_type,omitempty"`
	Truncate       string `json:"truncate,omitempty"`
}

type Choice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletion is the decoded upstream response. Raw keeps the exact
// bytes for callers that need fields not modelled here.
type ChatCompletion struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Choices []Choice        `json:"choices"`
	Usage   *Usage          `json:"usage,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// Content returns the first choice's message text, or "" when there is none.
func (c *ChatCompletion) Content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Message.Content
}

func decodeCompletion(raw []byte) (*ChatCompletion, error) {
	var cc ChatCompletion
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, err
	}
	cc.Raw = append(json.RawMessage(nil), raw...)
	return &cc, nil
}
