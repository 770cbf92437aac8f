package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey is returned when a hosted provider has no API key.
	ErrNoAPIKey = errors.New("llm: API key required")

	// ErrProviderUnavailable is returned by the offline provider and by an
	// empty chain.
	ErrProviderUnavailable = errors.New("llm: provider unavailable")

	// ErrUnknownProvider is returned for a provider name that has no
	// implementation.
	ErrUnknownProvider = errors.New("llm: unknown provider")

	// ErrEmptyResponse is returned when the API answered without content.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// APIError is an error response from a completion API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("llm [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("llm [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports an HTTP 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsRetryable reports whether the request may succeed if repeated.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.StatusCode >= 500
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with provider context. A nil err stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError aggregates the failures of every provider in a chain.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "llm chain: no errors recorded"
	case 1:
		return fmt.Sprintf("llm chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("llm chain: all %d providers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every provider error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}
