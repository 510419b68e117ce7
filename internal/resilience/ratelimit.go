package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds call frequency for one caller.
type RateLimitConfig struct {
	// MinInterval is the minimum spacing between calls. Zero disables it.
	MinInterval time.Duration
	// MaxPerWindow is the maximum number of calls per Window. Zero disables it.
	MaxPerWindow int
	// Window is the rolling window length. Default: 60s.
	Window time.Duration
}

// RateLimiter enforces a minimum inter-call spacing and a maximum call count
// per rolling window. Wait blocks rather than failing.
type RateLimiter struct {
	spacing *rate.Limiter
	max     int
	window  time.Duration

	mu    sync.Mutex
	calls []time.Time

	nowFunc func() time.Time
}

// NewRateLimiter creates a limiter from cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	rl := &RateLimiter{
		max:     cfg.MaxPerWindow,
		window:  cfg.Window,
		nowFunc: time.Now,
	}
	if cfg.MinInterval > 0 {
		rl.spacing = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return rl
}

// Wait blocks until a call is permitted or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.spacing != nil {
		if err := rl.spacing.Wait(ctx); err != nil {
			return eris.Wrap(err, "ratelimit: spacing wait")
		}
	}
	if rl.max <= 0 {
		return nil
	}
	for {
		delay := rl.reserve()
		if delay <= 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return eris.Wrap(ctx.Err(), "ratelimit: window wait")
		case <-timer.C:
		}
	}
}

// reserve records a call and returns zero when the window has room, or the
// time until the oldest call leaves the window.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	cutoff := now.Add(-rl.window)
	kept := rl.calls[:0]
	for _, c := range rl.calls {
		if c.After(cutoff) {
			kept = append(kept, c)
		}
	}
	rl.calls = kept

	if len(rl.calls) < rl.max {
		rl.calls = append(rl.calls, now)
		return 0
	}
	return rl.calls[0].Add(rl.window).Sub(now)
}

// Limiters keeps one RateLimiter per key, created on first use.
type Limiters struct {
	mu       sync.Mutex
	cfg      RateLimitConfig
	per      map[string]RateLimitConfig
	limiters map[string]*RateLimiter
}

// NewLimiters creates a registry where every key uses cfg unless overridden.
func NewLimiters(cfg RateLimitConfig, overrides map[string]RateLimitConfig) *Limiters {
	return &Limiters{
		cfg:      cfg,
		per:      overrides,
		limiters: make(map[string]*RateLimiter),
	}
}

// Get returns the limiter for key.
func (l *Limiters) Get(key string) *RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rl, ok := l.limiters[key]; ok {
		return rl
	}
	cfg := l.cfg
	if o, ok := l.per[key]; ok {
		cfg = o
	}
	rl := NewRateLimiter(cfg)
	l.limiters[key] = rl
	return rl
}

// Wait waits on key's limiter.
func (l *Limiters) Wait(ctx context.Context, key string) error {
	return l.Get(key).Wait(ctx)
}
