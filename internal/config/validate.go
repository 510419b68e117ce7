package config

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/provider"
)

// Validate checks the settings required by a command mode: "assess" needs
// a model provider and a usable strategy, "store" only the database.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "assess":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateModels()...)
		errs = append(errs, c.validateThresholds()...)
	case "store":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validateModels() []string {
	var errs []string
	keys := c.ProviderKeys()
	if len(keys) == 0 {
		errs = append(errs, "at least one providers.<name>.key is required")
	}

	check := func(task string, specs []provider.Spec) {
		usable := false
		for _, s := range specs {
			if s.Provider == "" || s.Model == "" {
				errs = append(errs, "strategies."+task+" entries need provider and model")
				continue
			}
			if keys[s.Provider] {
				usable = true
			}
		}
		if len(keys) > 0 && !usable {
			errs = append(errs, "strategies."+task+" has no slot with a configured provider")
		}
	}
	check("extraction", c.Strategies.Extraction)
	check("verification", c.Strategies.Verification)
	if len(c.Strategies.Reasoning) > 0 {
		check("reasoning", c.Strategies.Reasoning)
	}
	return errs
}

func (c *Config) validateThresholds() []string {
	var errs []string
	d := c.Decision
	if d.FOIRFull <= 0 || d.FOIRFull > d.FOIRPartial || d.FOIRPartial > d.FOIRMax {
		errs = append(errs, "decision foir thresholds must satisfy 0 < foir_full <= foir_partial <= foir_max")
	}
	if d.ReviewConfidence < 0 || d.ApproveConfidence > 100 || d.ReviewConfidence > d.ApproveConfidence {
		errs = append(errs, "decision confidences must satisfy 0 <= review_confidence <= approve_confidence <= 100")
	}
	if d.MaxAdjustment < 0 || d.MaxAdjustment > 50 {
		errs = append(errs, "decision.max_adjustment must be between 0 and 50")
	}
	if c.Pipeline.IncomeVariancePct <= 0 {
		errs = append(errs, "pipeline.income_variance_pct must be > 0")
	}
	return errs
}

// ProviderKeys reports which providers have credentials.
func (c *Config) ProviderKeys() map[string]bool {
	keys := make(map[string]bool)
	for name, p := range map[string]ProviderConfig{
		"anthropic":  c.Providers.Anthropic,
		"mistral":    c.Providers.Mistral,
		"groq":       c.Providers.Groq,
		"openrouter": c.Providers.OpenRouter,
	} {
		if p.Key != "" {
			keys[name] = true
		}
	}
	return keys
}
