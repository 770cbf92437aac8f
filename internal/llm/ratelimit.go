package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited bounds how often the wrapped Completer is called. Callers
// wait for a token and give up when their context ends first.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

var _ Completer = (*RateLimited)(nil)

// NewRateLimited allows perMinute calls per minute with the given burst.
// A non-positive perMinute disables limiting.
func NewRateLimited(next Completer, perMinute float64, burst int) *RateLimited {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Complete waits for a token, then delegates.
func (r *RateLimited) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Complete(ctx, p)
}

// Prefer forwards to the wrapped Completer when it supports reordering.
func (r *RateLimited) Prefer(name string) error {
	if pr, ok := r.next.(interface{ Prefer(string) error }); ok {
		return pr.Prefer(name)
	}
	return ErrUnknownProvider
}
