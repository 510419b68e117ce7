package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/blob"
	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/decision"
	"github.com/sells-group/docintel/internal/intake"
	"github.com/sells-group/docintel/internal/ocr"
	"github.com/sells-group/docintel/internal/pipeline"
	"github.com/sells-group/docintel/internal/provider"
	"github.com/sells-group/docintel/internal/resilience"
	"github.com/sells-group/docintel/internal/router"
	"github.com/sells-group/docintel/internal/schema"
	"github.com/sells-group/docintel/internal/store"
	anthropicpkg "github.com/sells-group/docintel/pkg/anthropic"
	"github.com/sells-group/docintel/pkg/openaicompat"
)

// assessEnv holds everything the assess command needs. Callers should
// defer env.Close().
type assessEnv struct {
	Store  store.Store
	Router *router.Router
	Engine *decision.Engine
	Loader *intake.Loader
}

// Close releases resources held by the environment.
func (e *assessEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildCosts merges configured pricing over the defaults.
func buildCosts(c *config.Config) *cost.Calculator {
	rates := cost.DefaultRates()
	for _, m := range c.Pricing.Models {
		key := m.Model
		if m.Provider != "" {
			key = m.Provider + "/" + m.Model
		}
		rates.Models[key] = cost.ModelRate{
			Input:         m.Input,
			Output:        m.Output,
			CacheWriteMul: m.CacheWriteMul,
			CacheReadMul:  m.CacheReadMul,
		}
	}
	return cost.NewCalculator(rates)
}

// buildRegistry registers every backend that has a key.
func buildRegistry(c *config.Config) *provider.Registry {
	costs := buildCosts(c)
	reg := provider.NewRegistry()

	if p := c.Providers.Anthropic; p.Key != "" {
		reg.Register(provider.NewAnthropic(anthropicpkg.NewClient(p.Key, anthropicpkg.WithBaseURL(p.BaseURL)), costs, ""))
	}
	compat := map[string]config.ProviderConfig{
		"mistral":    c.Providers.Mistral,
		"groq":       c.Providers.Groq,
		"openrouter": c.Providers.OpenRouter,
	}
	for name, p := range compat {
		if p.Key == "" {
			continue
		}
		reg.Register(provider.NewOpenAICompat(name, openaicompat.NewClient(p.Key, p.BaseURL), costs, provider.WithJSONMode()))
	}

	if len(reg.Names()) == 0 {
		zap.L().Warn("no model providers configured; every document will fail extraction")
	}
	return reg
}

func buildRouter(c *config.Config) *router.Router {
	overrides := make(map[string]resilience.RateLimitConfig, len(c.RateLimit.Providers))
	for name, o := range c.RateLimit.Providers {
		overrides[name] = resilience.FromRateLimitConfig(o.MinIntervalMs, o.MaxPerMinute)
	}
	strategies := map[router.TaskClass]router.Strategy{
		router.TaskExtraction:   c.Strategies.Extraction,
		router.TaskVerification: c.Strategies.Verification,
	}
	if len(c.Strategies.Reasoning) > 0 {
		strategies[router.TaskReasoning] = c.Strategies.Reasoning
	}

	return router.New(buildRegistry(c), router.Config{
		Strategies: strategies,
		Retry:      resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.BaseDelayMs, c.Retry.MaxDelayMs, c.Retry.RateLimitDelayMs, c.Retry.JitterMs),
		Circuit:    resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.CoolDownSecs),
		Limiters:   resilience.NewLimiters(resilience.FromRateLimitConfig(c.RateLimit.MinIntervalMs, c.RateLimit.MaxPerMinute), overrides),
	})
}

func buildLoader(c *config.Config) (*intake.Loader, error) {
	ext, err := ocr.NewExtractor(c.OCR, c.Providers.Mistral)
	if err != nil {
		return nil, eris.Wrap(err, "init ocr")
	}
	return intake.NewLoader(c.Fetch, intake.WithOCR(ext)), nil
}

// initAssess wires the store, router, pipelines, and engine.
func initAssess(ctx context.Context) (*assessEnv, error) {
	if err := cfg.Validate("assess"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	env, err := buildAssess(cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return env, nil
}

func buildAssess(c *config.Config, st store.Store) (*assessEnv, error) {
	schemas, err := schema.New()
	if err != nil {
		return nil, eris.Wrap(err, "load schemas")
	}

	rt := buildRouter(c)
	pipelines, err := pipeline.NewAll(pipeline.Deps{
		Router:  rt,
		Schemas: schemas,
		Config:  c.Pipeline,
		Images:  c.Images,
	})
	if err != nil {
		return nil, eris.Wrap(err, "build pipelines")
	}

	loader, err := buildLoader(c)
	if err != nil {
		return nil, err
	}

	opts := []decision.Option{
		decision.WithReasoner(decision.NewReasoner(rt, c.Decision, c.Pipeline.Prompts)),
		decision.WithClock(time.Now),
	}
	if st != nil {
		opts = append(opts, decision.WithStore(st))
	}
	if c.Blob.Dir != "" {
		blobs, err := blob.NewLocal(c.Blob.Dir)
		if err != nil {
			return nil, eris.Wrap(err, "init blob store")
		}
		opts = append(opts, decision.WithBlobStore(blobs))
	}

	return &assessEnv{
		Store:  st,
		Router: rt,
		Engine: decision.NewEngine(pipelines, c.Decision, opts...),
		Loader: loader,
	}, nil
}
