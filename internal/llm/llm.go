// Package llm talks to hosted text-completion services.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"

	DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models"
	DefaultOpenRouterURL  = "https://openrouter.ai/api/v1"

	DefaultTimeout   = 60 * time.Second
	DefaultMaxTokens = 100

	// MaxResponseSize caps how much of a reply body is read.
	MaxResponseSize = 2 << 20
)

var (
	ErrNotConfigured = errors.New("completion API token not configured")
	ErrEmptyReply    = errors.New("completion service returned no text")
	ErrRateLimited   = errors.New("rate limited by completion service")
	ErrAuthFailed    = errors.New("completion service rejected credentials")
)

// Completer produces a continuation for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Params are the generation settings shared by every provider.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// APIError is a non-2xx answer from a completion service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// readBody reads at most MaxResponseSize bytes of resp.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxResponseSize)
	}
	return body, nil
}

// errorMessage picks a readable message out of an error body.
func errorMessage(body []byte, extract func([]byte) string) string {
	if msg := extract(body); msg != "" {
		return msg
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
