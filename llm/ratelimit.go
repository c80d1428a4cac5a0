package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/flowturn/types"
)

// RateLimited wraps a Provider with a token-bucket limiter, so a worker pool
// fanning out over many conversations cannot exceed the upstream quota.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimited creates a rate-limited provider allowing rps requests per
// second with the given burst.
func NewRateLimited(inner Provider, rps float64, burst int, logger *zap.Logger) *RateLimited {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With(zap.String("component", "rate_limited_provider")),
	}
}

// Completion waits for a limiter token, then delegates. A context cancelled
// while waiting surfaces as a RATE_LIMITED error so the caller can tell the
// stall apart from an upstream failure.
func (r *RateLimited) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.Warn("rate limiter wait aborted", zap.Error(err))
		return nil, types.NewError(types.ErrRateLimited, "rate limit wait aborted").
			WithCause(err).WithRetryable(true)
	}
	return r.inner.Completion(ctx, req)
}

// HealthCheck delegates without consuming a limiter token.
func (r *RateLimited) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return r.inner.HealthCheck(ctx)
}

// Name returns the wrapped provider's name.
func (r *RateLimited) Name() string {
	return r.inner.Name()
}
