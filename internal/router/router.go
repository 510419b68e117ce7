// Package router routes model calls across an ordered list of slots per
// task class, with retry, rate limiting and per-slot circuit breaking.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/provider"
	"github.com/sells-group/docintel/internal/resilience"
)

// TaskClass selects a strategy.
type TaskClass string

const (
	// TaskExtraction reads document images or text layers. Vision-capable.
	TaskExtraction TaskClass = "extraction"
	// TaskVerification judges extracted data. Text only.
	TaskVerification TaskClass = "verification"
	// TaskReasoning reviews the rule-based loan assessment. Falls back to the
	// verification strategy when not configured.
	TaskReasoning TaskClass = "reasoning"
)

// Strategy is the ordered slot list of one task class. It is never mutated
// after the Router is built.
type Strategy []provider.Spec

// Request is one routed model call.
type Request struct {
	Task   TaskClass
	Prompt string
	Images []provider.Image
	// Accept, when set, inspects a successful response. A non-nil error
	// rejects the response as a parse failure and the router falls back.
	Accept func(*provider.Response) error
}

// Result is the winning response and its position in the strategy.
type Result struct {
	Response *provider.Response
	Provider string
	Model    string
	// Attempt is the 1-based position of the winning slot in the strategy,
	// counting slots skipped while their circuit was open.
	Attempt int
}

// Attempt records the outcome of one slot.
type Attempt struct {
	Key     string
	Kind    provider.Kind
	Skipped bool
	Err     error
	// Circuit is the slot's circuit state once the attempt was recorded.
	Circuit resilience.CircuitState
	// Failures is the consecutive failure count that opened a skipped slot.
	Failures int
}

// RouteError aggregates every slot failure of one route call.
type RouteError struct {
	Task     TaskClass
	Attempts []Attempt
}

func (e *RouteError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Skipped {
			parts = append(parts, fmt.Sprintf("%s: circuit open after %d failures", a.Key, a.Failures))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", a.Key, a.Err))
	}
	return fmt.Sprintf("router: all %d %s providers failed: %s", len(e.Attempts), e.Task, strings.Join(parts, "; "))
}

// ErrNoStrategy is returned when a task class has no slots.
var ErrNoStrategy = eris.New("router: no strategy configured")

// Config wires a Router.
type Config struct {
	Strategies map[TaskClass]Strategy
	Retry      resilience.Policy
	Circuit    resilience.CircuitConfig
	Limiters   *resilience.Limiters
}

// Router is safe for concurrent use. Each Router owns its health tracker.
type Router struct {
	providers  *provider.Registry
	strategies map[TaskClass]Strategy
	retry      resilience.Policy
	health     *resilience.HealthTracker
	limiters   *resilience.Limiters
}

// New builds a Router. Strategies are copied.
func New(providers *provider.Registry, cfg Config) *Router {
	strategies := make(map[TaskClass]Strategy, len(cfg.Strategies))
	for k, s := range cfg.Strategies {
		strategies[k] = append(Strategy(nil), s...)
	}
	if _, ok := strategies[TaskReasoning]; !ok {
		if v, ok := strategies[TaskVerification]; ok {
			strategies[TaskReasoning] = v
		}
	}
	limiters := cfg.Limiters
	if limiters == nil {
		limiters = resilience.NewLimiters(resilience.RateLimitConfig{}, nil)
	}
	return &Router{
		providers:  providers,
		strategies: strategies,
		retry:      cfg.Retry,
		health:     resilience.NewHealthTracker(cfg.Circuit),
		limiters:   limiters,
	}
}

// Strategy returns a copy of the slots for task.
func (r *Router) Strategy(task TaskClass) Strategy {
	return append(Strategy(nil), r.strategies[task]...)
}

// Circuits returns the health snapshot of every slot that has failed.
func (r *Router) Circuits() []resilience.CircuitStatus {
	return r.health.Snapshot()
}

// Route tries each slot of the task's strategy in order and returns the
// first success. When every slot fails it returns one *RouteError.
func (r *Router) Route(ctx context.Context, req Request) (*Result, error) {
	strategy := r.strategies[req.Task]
	if len(strategy) == 0 {
		return nil, eris.Wrapf(ErrNoStrategy, "task %s", req.Task)
	}

	log := zap.L().With(zap.String("task", string(req.Task)))
	routeErr := &RouteError{Task: req.Task}

	for i, spec := range strategy {
		key := spec.Key()

		if !r.health.Allow(key) {
			h, _ := r.health.Get(key)
			log.Debug("router: circuit open, skipping",
				zap.String("slot", key),
				zap.Int("consecutive_failures", h.ConsecutiveFailures),
				zap.Time("last_failure", h.LastFailure),
			)
			routeErr.Attempts = append(routeErr.Attempts, Attempt{
				Key:      key,
				Skipped:  true,
				Circuit:  resilience.CircuitOpen,
				Failures: h.ConsecutiveFailures,
			})
			continue
		}

		resp, err := r.call(ctx, spec, req)
		if err == nil {
			r.health.RecordSuccess(key)
			return &Result{
				Response: resp,
				Provider: spec.Provider,
				Model:    spec.Model,
				Attempt:  i + 1,
			}, nil
		}

		kind := provider.Classify(err)
		if kind == provider.KindCanceled || ctx.Err() != nil {
			routeErr.Attempts = append(routeErr.Attempts, Attempt{Key: key, Kind: kind, Err: err})
			return nil, routeErr
		}
		// A text-only slot refusing images says nothing about its health.
		if kind != provider.KindVisionUnsupported {
			r.health.RecordFailure(key)
		}
		state := r.health.State(key)
		routeErr.Attempts = append(routeErr.Attempts, Attempt{Key: key, Kind: kind, Err: err, Circuit: state})

		log.Warn("router: slot failed, falling back",
			zap.String("slot", key),
			zap.String("kind", string(kind)),
			zap.String("circuit", string(state)),
			zap.Bool("fallback_worthy", kind.FallbackWorthy()),
			zap.Int("position", i+1),
			zap.Error(err),
		)
	}

	return nil, routeErr
}

func (r *Router) call(ctx context.Context, spec provider.Spec, req Request) (*provider.Response, error) {
	p, err := r.providers.Get(spec.Provider)
	if err != nil {
		return nil, &provider.Error{Provider: spec.Provider, Model: spec.Model, Kind: provider.KindBadRequest, Err: err}
	}

	policy := r.retry
	policy.ShouldRetry = provider.Retryable
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.RetryLogger(spec.Provider, string(req.Task))
	}

	return resilience.DoVal(ctx, policy, func(ctx context.Context) (*provider.Response, error) {
		if err := r.limiters.Wait(ctx, spec.Provider); err != nil {
			return nil, &provider.Error{Provider: spec.Provider, Model: spec.Model, Kind: provider.KindCanceled, Err: err}
		}

		start := time.Now()
		resp, err := p.Invoke(ctx, spec, req.Prompt, req.Images)
		if err != nil {
			return nil, err
		}
		if resp.Duration == 0 {
			resp.Duration = time.Since(start)
		}
		if strings.TrimSpace(resp.Text) == "" {
			return nil, &provider.Error{
				Provider: spec.Provider,
				Model:    spec.Model,
				Kind:     provider.KindEmptyResponse,
				Err:      eris.New("empty response"),
			}
		}
		if req.Accept != nil {
			if err := req.Accept(resp); err != nil {
				return nil, &provider.Error{
					Provider: spec.Provider,
					Model:    spec.Model,
					Kind:     provider.KindParseFailure,
					Err:      err,
				}
			}
		}
		return resp, nil
	})
}
