package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ChatClient calls an OpenAI-compatible chat completions endpoint, such as
// OpenRouter.
type ChatClient struct {
	apiKey     string
	baseURL    string
	params     Params
	httpClient *http.Client
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewChatClient(apiKey string, params Params) *ChatClient {
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultMaxTokens
	}
	return &ChatClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultOpenRouterURL,
		params:     params,
		httpClient: newHTTPClient(DefaultTimeout),
	}
}

func (c *ChatClient) WithBaseURL(u string) *ChatClient {
	if u != "" {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
	return c
}

func (c *ChatClient) WithTimeout(d time.Duration) *ChatClient {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

func (c *ChatClient) Model() string { return c.params.Model }

// Complete sends prompt as a single user message and returns the first choice.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.params.Model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: c.params.Temperature,
		MaxTokens:   c.params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Message: errorMessage(body, func(b []byte) string {
			var e chatError
			_ = json.Unmarshal(b, &e)
			return e.Error.Message
		})}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}
