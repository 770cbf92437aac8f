package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Chain tries providers in order until one answers.
type Chain struct {
	mu        sync.RWMutex
	providers []Provider
	logger    *slog.Logger
}

var _ Completer = (*Chain)(nil)

// NewChain creates a chain. At least one provider is required.
func NewChain(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: append([]Provider(nil), providers...),
		logger:    logger.With("component", "llm.chain"),
	}, nil
}

// Complete asks each provider in turn and returns the first answer.
func (c *Chain) Complete(ctx context.Context, p Prompt) (string, error) {
	var errs []error

	for i, prov := range c.snapshot() {
		text, err := prov.Complete(ctx, p)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded", "provider", prov.Name(), "provider_index", i)
			}
			return text, nil
		}

		errs = append(errs, err)
		c.logger.Warn("provider failed, trying next", "provider", prov.Name(), "provider_index", i, "error", err)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", &ChainError{Errors: errs}
}

// Prefer moves the named provider to the front of the chain.
func (c *Chain) Prefer(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.providers {
		if p.Name() != name {
			continue
		}
		if i > 0 {
			reordered := make([]Provider, 0, len(c.providers))
			reordered = append(reordered, p)
			reordered = append(reordered, c.providers[:i]...)
			reordered = append(reordered, c.providers[i+1:]...)
			c.providers = reordered
			c.logger.Info("preferred provider changed", "provider", name)
		}
		return nil
	}
	return fmt.Errorf("%w: %q is not configured", ErrUnknownProvider, name)
}

// Names lists the providers in their current order.
func (c *Chain) Names() []string {
	ps := c.snapshot()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return names
}

func (c *Chain) snapshot() []Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers
}
