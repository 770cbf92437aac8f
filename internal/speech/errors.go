package speech

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpeech is returned when audio contained no recognizable words.
	ErrNoSpeech = errors.New("speech: no speech recognized")

	// ErrProviderUnavailable is returned by the offline provider and when a
	// provider is not configured.
	ErrProviderUnavailable = errors.New("speech: provider unavailable")

	// ErrNoAPIKey is returned when a hosted provider has no API key.
	ErrNoAPIKey = errors.New("speech: API key required")
)

// APIError is an error response from a speech API.
type APIError struct {
	StatusCode int
	Message    string
	Provider   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("speech [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may succeed if repeated.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("speech [%s]: %v", e.Provider, e.Err)
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
