package llm

import "context"

// None never answers. It keeps the pipeline running when no completion
// provider is configured; the dialogue layer speaks its apology instead.
type None struct{}

var _ Provider = None{}

// Name returns "none".
func (None) Name() string { return ProviderNone }

// Complete always fails with ErrProviderUnavailable.
func (None) Complete(context.Context, Prompt) (string, error) {
	return "", ErrProviderUnavailable
}

// New builds a named provider. Unknown names fail.
func New(name string, opts ...Option) (Provider, error) {
	if name == ProviderNone {
		return None{}, nil
	}
	return NewClient(name, opts...)
}
