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

// HuggingFaceClient calls the Inference API text-generation task.
type HuggingFaceClient struct {
	token      string
	baseURL    string
	params     Params
	httpClient *http.Client
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

func NewHuggingFaceClient(token string, params Params) *HuggingFaceClient {
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultMaxTokens
	}
	return &HuggingFaceClient{
		token:      strings.TrimSpace(token),
		baseURL:    DefaultHuggingFaceURL,
		params:     params,
		httpClient: newHTTPClient(DefaultTimeout),
	}
}

func (c *HuggingFaceClient) WithBaseURL(u string) *HuggingFaceClient {
	if u != "" {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
	return c
}

func (c *HuggingFaceClient) WithTimeout(d time.Duration) *HuggingFaceClient {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

func (c *HuggingFaceClient) Model() string { return c.params.Model }

func (c *HuggingFaceClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.token == "" {
		return "", ErrNotConfigured
	}

	payload, err := json.Marshal(hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			MaxNewTokens:   c.params.MaxTokens,
			Temperature:    c.params.Temperature,
			ReturnFullText: false,
		},
		Options: hfOptions{WaitForModel: true},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := c.baseURL + "/" + strings.TrimPrefix(c.params.Model, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
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
			var e hfError
			_ = json.Unmarshal(b, &e)
			return e.Error
		})}
	}

	var gens []hfGeneration
	if err := json.Unmarshal(body, &gens); err != nil {
		var single hfGeneration
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		gens = []hfGeneration{single}
	}
	if len(gens) == 0 {
		return "", ErrEmptyReply
	}
	return gens[0].GeneratedText, nil
}
