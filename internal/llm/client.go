package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Provider is a Completer with a stable name, so a chain can be reordered.
type Provider interface {
	Completer
	Name() string
}

// Client implements Provider against any OpenAI-compatible
// /chat/completions endpoint.
type Client struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

var _ Provider = (*Client)(nil)

// NewClient creates a client for the named provider. Options override the
// provider's defaults.
func NewClient(name string, opts ...Option) (*Client, error) {
	switch name {
	case ProviderOpenAI, ProviderGrok:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	cfg := DefaultConfig(name)
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.APIKey == "" {
		return nil, WrapError(name, ErrNoAPIKey)
	}

	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "llm."+name),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.config.Name
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, p Prompt) (string, error) {
	start := time.Now()

	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    p.Messages(),
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", WrapError(c.Name(), fmt.Errorf("marshal request: %w", err))
	}

	resp, err := c.doWithRetry(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", WrapError(c.Name(), fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", WrapError(c.Name(), ErrEmptyResponse)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", WrapError(c.Name(), ErrEmptyResponse)
	}

	c.logger.Debug("completion",
		"model", c.config.Model,
		"tokens", out.Usage.TotalTokens,
		"finish_reason", out.Choices[0].FinishReason,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (c *Client) doWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(c.Name(), fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(c.Name(), err)
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		apiErr := c.parseError(resp)
		resp.Body.Close()
		if !apiErr.IsRetryable() {
			return nil, apiErr
		}
		lastErr = apiErr
		c.logger.Warn("retrying completion", "attempt", attempt+1, "status", resp.StatusCode)
	}

	return nil, lastErr
}

func (c *Client) parseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
		Provider:   c.Name(),
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		if errResp.Error.Code != nil {
			apiErr.Code = fmt.Sprint(errResp.Error.Code)
		}
	}
	return apiErr
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
