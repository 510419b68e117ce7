// Package cost estimates the USD cost of model calls from token usage.
package cost

import "go.uber.org/zap"

// Rates holds per-model token pricing. Keys are "provider/model" or a bare
// model name; the qualified key wins.
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Usage is the token count of one call.
type Usage struct {
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// Calculator computes costs for model usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	if rates.Models == nil {
		rates.Models = map[string]ModelRate{}
	}
	return &Calculator{rates: rates}
}

// Rate returns the pricing for provider/model.
func (c *Calculator) Rate(provider, model string) (ModelRate, bool) {
	if r, ok := c.rates.Models[provider+"/"+model]; ok {
		return r, true
	}
	r, ok := c.rates.Models[model]
	return r, ok
}

// Model computes the cost of one call. Unknown models cost 0.
func (c *Calculator) Model(provider, model string, u Usage) float64 {
	if c == nil {
		return 0
	}
	rate, ok := c.Rate(provider, model)
	if !ok {
		return 0
	}

	inCost := (float64(u.Input) / 1e6) * rate.Input
	outCost := (float64(u.Output) / 1e6) * rate.Output
	cwCost := (float64(u.CacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// Log logs token usage and estimated cost with structured zap fields.
func Log(provider, model, task string, u Usage, usd float64) {
	zap.L().Debug("cost attribution",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.String("task", task),
		zap.Int64("input_tokens", u.Input),
		zap.Int64("output_tokens", u.Output),
		zap.Int64("cache_write_tokens", u.CacheWrite),
		zap.Int64("cache_read_tokens", u.CacheRead),
		zap.Float64("estimated_cost_usd", usd),
	)
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"anthropic/claude-haiku-4-5-20251001":    {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"anthropic/claude-sonnet-4-5-20250929":   {Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"mistral/pixtral-large-latest":           {Input: 2.00, Output: 6.00},
			"mistral/mistral-small-latest":           {Input: 0.10, Output: 0.30},
			"groq/llama-3.3-70b-versatile":           {Input: 0.59, Output: 0.79},
			"openrouter/google/gemini-2.0-flash-001": {Input: 0.10, Output: 0.40},
		},
	}
}
