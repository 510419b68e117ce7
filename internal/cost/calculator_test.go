package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"haiku":           {Input: 0.80, Output: 4.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"anthropic/haiku": {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
			"pixtral":         {Input: 2.00, Output: 6.00},
		},
	}
}

func TestModel(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name     string
		provider string
		model    string
		usage    Usage
		want     float64
	}{
		{
			name:     "qualified key wins",
			provider: "anthropic", model: "haiku",
			usage: Usage{Input: 1000000, Output: 100000},
			want:  1.00 + 0.50,
		},
		{
			name:     "bare model fallback",
			provider: "openrouter", model: "haiku",
			usage: Usage{Input: 1000000, Output: 100000},
			want:  0.80 + 0.40,
		},
		{
			name:     "cache multipliers",
			provider: "other", model: "haiku",
			usage: Usage{Input: 500000, Output: 50000, CacheWrite: 200000, CacheRead: 300000},
			// 0.40 + 0.20 + 0.20 + 0.024
			want: 0.824,
		},
		{
			name:     "unknown model",
			provider: "groq", model: "llama",
			usage: Usage{Input: 1000000},
			want:  0,
		},
		{
			name:     "zero usage",
			provider: "mistral", model: "pixtral",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.Model(tt.provider, tt.model, tt.usage), 1e-9)
		})
	}
}

func TestNilCalculator(t *testing.T) {
	t.Parallel()
	var calc *Calculator
	assert.Zero(t, calc.Model("anthropic", "haiku", Usage{Input: 1000}))
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())
	_, ok := calc.Rate("anthropic", "claude-sonnet-4-5-20250929")
	assert.True(t, ok)
	assert.Greater(t, calc.Model("mistral", "pixtral-large-latest", Usage{Input: 10000, Output: 2000}), 0.0)
}

func TestNewCalculator_NilMap(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(Rates{})
	assert.Zero(t, calc.Model("a", "b", Usage{Input: 1}))
}
