package llm

import (
	"log/slog"
	"time"
)

// Known provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGrok   = "grok"
	ProviderNone   = "none"
)

// Config holds settings for an OpenAI-compatible provider.
type Config struct {
	Name        string
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// Option configures a provider.
type Option func(*Config)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		if url != "" {
			c.BaseURL = url
		}
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel overrides the model.
func WithModel(model string) Option {
	return func(c *Config) {
		if model != "" {
			c.Model = model
		}
	}
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetries sets the retry count and base delay.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = n
		c.RetryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// DefaultConfig returns the defaults for a named provider.
func DefaultConfig(name string) *Config {
	cfg := &Config{
		Name:        name,
		MaxTokens:   150,
		Temperature: 0.7,
		Timeout:     8 * time.Second,
		MaxRetries:  1,
		RetryDelay:  300 * time.Millisecond,
		Logger:      slog.Default(),
	}
	switch name {
	case ProviderGrok:
		cfg.BaseURL = "https://api.x.ai/v1"
		cfg.Model = "grok-beta"
	default:
		cfg.BaseURL = "https://api.openai.com/v1"
		cfg.Model = "gpt-4o"
	}
	return cfg
}
