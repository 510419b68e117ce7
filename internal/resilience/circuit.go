// Package resilience provides retry, rate limiting and per-model circuit
// breaking for remote model calls.
package resilience

import (
	"sort"
	"sync"
	"time"
)

// CircuitState represents the state of one model's circuit.
type CircuitState int

const (
	// CircuitClosed is the normal state: calls flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the failure threshold was reached and the cool-down
	// has not elapsed. Calls are skipped.
	CircuitOpen
	// CircuitHalfOpen means the cool-down elapsed; the next call is a probe.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitConfig controls when a circuit opens and for how long.
type CircuitConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// CoolDown is how long an open circuit skips calls. Default: 5m.
	CoolDown time.Duration

	// OnStateChange is called when a key's circuit changes state.
	OnStateChange func(key string, from, to CircuitState)
}

// DefaultCircuitConfig returns the default breaker settings.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold: 5,
		CoolDown:         5 * time.Minute,
	}
}

// Health is the failure record of one provider+model key.
type Health struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailure         time.Time `json:"last_failure"`
}

// HealthTracker records per-key failures and decides whether a key may be
// called. Entries are created on first failure and deleted on success. It is
// safe for concurrent use; each Router owns its own tracker.
type HealthTracker struct {
	cfg     CircuitConfig
	mu      sync.Mutex
	entries map[string]*Health

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewHealthTracker creates a tracker with the given config.
func NewHealthTracker(cfg CircuitConfig) *HealthTracker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 5 * time.Minute
	}
	return &HealthTracker{
		cfg:     cfg,
		entries: make(map[string]*Health),
		nowFunc: time.Now,
	}
}

// Allow reports whether key may be called now.
func (h *HealthTracker) Allow(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked(key) != CircuitOpen
}

// State returns the circuit state of key.
func (h *HealthTracker) State(key string) CircuitState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked(key)
}

func (h *HealthTracker) stateLocked(key string) CircuitState {
	e, ok := h.entries[key]
	if !ok || e.ConsecutiveFailures < h.cfg.FailureThreshold {
		return CircuitClosed
	}
	if h.nowFunc().Sub(e.LastFailure) >= h.cfg.CoolDown {
		return CircuitHalfOpen
	}
	return CircuitOpen
}

// RecordFailure increments key's consecutive failure count.
func (h *HealthTracker) RecordFailure(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	from := h.stateLocked(key)
	e, ok := h.entries[key]
	if !ok {
		e = &Health{}
		h.entries[key] = e
	}
	e.ConsecutiveFailures++
	e.LastFailure = h.nowFunc()
	h.notify(key, from, h.stateLocked(key))
}

// RecordSuccess clears key's health entry.
func (h *HealthTracker) RecordSuccess(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entries[key]; !ok {
		return
	}
	from := h.stateLocked(key)
	delete(h.entries, key)
	h.notify(key, from, CircuitClosed)
}

// Get returns a copy of key's entry and whether one exists.
func (h *HealthTracker) Get(key string) (Health, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[key]
	if !ok {
		return Health{}, false
	}
	return *e, true
}

// CircuitStatus is one row of a tracker snapshot.
type CircuitStatus struct {
	Key   string       `json:"key"`
	State CircuitState `json:"state"`
	Health
}

// Snapshot returns every tracked key sorted by name.
func (h *HealthTracker) Snapshot() []CircuitStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CircuitStatus, 0, len(h.entries))
	for k, e := range h.entries {
		out = append(out, CircuitStatus{Key: k, State: h.stateLocked(k), Health: *e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (h *HealthTracker) notify(key string, from, to CircuitState) {
	if from != to && h.cfg.OnStateChange != nil {
		h.cfg.OnStateChange(key, from, to)
	}
}
