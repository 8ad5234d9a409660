package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every client and embedder it wraps,
// so one provider account has one request budget.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows rps requests per second with the given burst.
// A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may proceed or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Client wraps c so every completion waits for a token.
func (r *RateLimiter) Client(c Client) Client {
	return ClientFunc(func(ctx context.Context, messages []Message, format *ResponseFormat) (string, error) {
		if err := r.Wait(ctx); err != nil {
			return "", err
		}
		return c.Complete(ctx, messages, format)
	})
}

// Embedder wraps e so every embedding waits for a token.
func (r *RateLimiter) Embedder(e Embedder) Embedder {
	return embedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		if err := r.Wait(ctx); err != nil {
			return nil, err
		}
		return e.Embed(ctx, text)
	})
}

type embedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedderFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }
