// Package llm is a minimal client for OpenAI-compatible chat completion
// endpoints (Hugging Face router, Groq, OpenAI). Calls are bounded by a
// per-request timeout and guarded by a circuit breaker; nothing is retried.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// maxErrorBody caps how much of a failed response body is kept for logs.
const maxErrorBody = 300

var (
	// ErrEmptyResponse means the service answered 2xx without usable text.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrCircuitOpen means recent calls failed and the breaker is refusing new ones.
	ErrCircuitOpen = errors.New("llm: circuit open")
)

// Credential is a bearer token. It never prints its value.
type Credential string

func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return "[redacted]"
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: API error (status %d)", e.StatusCode)
}

// Config holds client settings.
type Config struct {
	BaseURL   string
	APIKey    Credential
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for /chat/completions.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// ChatResponse is the subset of the completion response we read.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// Client provides chat completion access.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*ChatResponse]
}

// NewClient creates a client. A zero Timeout defaults to 20 seconds.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*ChatResponse](gobreaker.Settings{
			Name:        "llm",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				// 4xx other than 429 are our fault, not the service's.
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
				}
				return err == nil
			},
		}),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// ChatCompletion sends a non-streaming chat completion request.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := c.breaker.Execute(func() (*ChatResponse, error) {
		return c.do(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+string(c.cfg.APIKey))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// Complete sends prompt as a single user message and returns the trimmed
// text of the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.ChatCompletion(ctx, ChatRequest{
		Model:     c.cfg.Model,
		Messages:  []Message{{Role: "user", Content: prompt}},
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
