package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior with exponential backoff and jitter.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the delay before the first retry of an ordinary failure.
	// Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps ordinary backoff. Default: 30s.
	MaxDelay time.Duration

	// RateLimitDelay is the base delay after a rate-limit failure. It grows
	// as RateLimitDelay * 2^attempt and is not capped by MaxDelay.
	// Default: 5s.
	RateLimitDelay time.Duration

	// MaxJitter bounds the uniform random delay added to every sleep.
	// Zero means the default of 1s; negative disables jitter.
	MaxJitter time.Duration

	// ShouldRetry overrides the retry check. If nil, IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with the 1-based attempt
	// that just failed.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the retry policy used for model calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		RateLimitDelay: 5 * time.Second,
		MaxJitter:      time.Second,
	}
}

// Do runs fn until it succeeds, the policy declines to retry or attempts run
// out. Context cancellation stops immediately with the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is like Do but preserves the value of the successful call.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = applyDefaults(p)

	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= p.MaxAttempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(Backoff(attempt, IsRateLimited(lastErr), p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func applyDefaults(p Policy) Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.RateLimitDelay <= 0 {
		p.RateLimitDelay = d.RateLimitDelay
	}
	if p.MaxJitter == 0 {
		p.MaxJitter = d.MaxJitter
	}
	return p
}

// Backoff returns the sleep after the given 0-based failed attempt.
func Backoff(attempt int, rateLimited bool, p Policy) time.Duration {
	factor := math.Pow(2, float64(attempt))

	var delay float64
	if rateLimited {
		delay = float64(p.RateLimitDelay) * factor
	} else {
		delay = math.Min(float64(p.BaseDelay)*factor, float64(p.MaxDelay))
	}

	if p.MaxJitter > 0 {
		delay += rand.Float64() * float64(p.MaxJitter)
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Bool("rate_limited", IsRateLimited(err)),
			zap.Error(err),
		)
	}
}
