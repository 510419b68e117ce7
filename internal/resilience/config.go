package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a Policy. Non-positive values
// keep the defaults, except jitterMs where a negative value disables jitter.
func FromRetryConfig(maxAttempts, baseDelayMs, maxDelayMs, rateLimitDelayMs, jitterMs int) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if baseDelayMs > 0 {
		p.BaseDelay = time.Duration(baseDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		p.MaxDelay = time.Duration(maxDelayMs) * time.Millisecond
	}
	if rateLimitDelayMs > 0 {
		p.RateLimitDelay = time.Duration(rateLimitDelayMs) * time.Millisecond
	}
	switch {
	case jitterMs < 0:
		p.MaxJitter = -1
	case jitterMs > 0:
		p.MaxJitter = time.Duration(jitterMs) * time.Millisecond
	}
	return p
}

// FromCircuitConfig converts config values to a CircuitConfig.
func FromCircuitConfig(failureThreshold, coolDownSecs int) CircuitConfig {
	cfg := DefaultCircuitConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if coolDownSecs > 0 {
		cfg.CoolDown = time.Duration(coolDownSecs) * time.Second
	}
	return cfg
}

// FromRateLimitConfig converts config values to a RateLimitConfig.
func FromRateLimitConfig(minIntervalMs, maxPerMinute int) RateLimitConfig {
	return RateLimitConfig{
		MinInterval:  time.Duration(max(minIntervalMs, 0)) * time.Millisecond,
		MaxPerWindow: max(maxPerMinute, 0),
		Window:       time.Minute,
	}
}
