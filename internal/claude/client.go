package claude

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
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultMaxTokens = 4000
	apiVersion       = "2023-06-01"
)

var (
	// ErrEmptyResponse is returned when the API answers with no content blocks.
	ErrEmptyResponse = errors.New("empty response from claude")
	// ErrMixedCitations is returned when document blocks in one request
	// disagree on whether citations are enabled. The API rejects such requests.
	ErrMixedCitations = errors.New("document blocks mix citation-enabled and citation-disabled documents")
)

// Config configures a Client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	StatsWindow time.Duration
}

// Client calls the Anthropic Messages API.
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	httpClient  *http.Client

	Stats *LLMStats
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		Stats: NewLLMStats(cfg.StatsWindow),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends messages to the Messages API and returns the decoded reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Response, error) {
	if err := checkCitations(messages); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.do(ctx, messages)
	c.Stats.Record(time.Since(start), err)
	return resp, err
}

func (c *Client) do(ctx context.Context, messages []Message) (*Response, error) {
	body, err := json.Marshal(request{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    messages,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	var apiResp Response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Content) == 0 {
		return nil, ErrEmptyResponse
	}
	return &apiResp, nil
}

// checkCitations enforces that every document block in the request shares
// the same citations flag.
func checkCitations(messages []Message) error {
	var seen, enabled bool
	for _, m := range messages {
		for _, b := range m.Content {
			if b.Type != BlockDocument {
				continue
			}
			on := b.Citations != nil && b.Citations.Enabled
			if seen && on != enabled {
				return ErrMixedCitations
			}
			seen, enabled = true, on
		}
	}
	return nil
}

// APIError is a non-200 answer from the Messages API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Message: truncate(strings.TrimSpace(string(body)), 500)}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		e.Type = env.Error.Type
		e.Message = env.Error.Message
	}
	return e
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("claude api status %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("claude api status %d: %s", e.StatusCode, e.Message)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
