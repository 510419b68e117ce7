package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/docintel/internal/provider"
)

// Config holds the full application configuration.
type Config struct {
	Providers  ProvidersConfig       `yaml:"providers" mapstructure:"providers"`
	Strategies StrategiesConfig      `yaml:"strategies" mapstructure:"strategies"`
	Retry      RetryConfig           `yaml:"retry" mapstructure:"retry"`
	RateLimit  RateLimitConfig       `yaml:"rate_limit" mapstructure:"rate_limit"`
	Circuit    CircuitConfig         `yaml:"circuit" mapstructure:"circuit"`
	Images     provider.ImageOptions `yaml:"images" mapstructure:"images"`
	Pipeline   PipelineConfig        `yaml:"pipeline" mapstructure:"pipeline"`
	Decision   DecisionConfig        `yaml:"decision" mapstructure:"decision"`
	Store      StoreConfig           `yaml:"store" mapstructure:"store"`
	Blob       BlobConfig            `yaml:"blob" mapstructure:"blob"`
	OCR        OCRConfig             `yaml:"ocr" mapstructure:"ocr"`
	Fetch      FetchConfig           `yaml:"fetch" mapstructure:"fetch"`
	Pricing    PricingConfig         `yaml:"pricing" mapstructure:"pricing"`
	Monitoring MonitoringConfig      `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig             `yaml:"log" mapstructure:"log"`
}

// ProviderConfig holds credentials for one model backend.
type ProviderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ProvidersConfig holds every supported backend. A backend without a key is
// not registered.
type ProvidersConfig struct {
	Anthropic  ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Mistral    ProviderConfig `yaml:"mistral" mapstructure:"mistral"`
	Groq       ProviderConfig `yaml:"groq" mapstructure:"groq"`
	OpenRouter ProviderConfig `yaml:"openrouter" mapstructure:"openrouter"`
}

// StrategiesConfig lists the ordered model slots of each task class.
type StrategiesConfig struct {
	Extraction   []provider.Spec `yaml:"extraction" mapstructure:"extraction"`
	Verification []provider.Spec `yaml:"verification" mapstructure:"verification"`
	// Reasoning falls back to Verification when empty.
	Reasoning []provider.Spec `yaml:"reasoning" mapstructure:"reasoning"`
}

// RetryConfig configures per-slot retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs      int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs       int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	RateLimitDelayMs int `yaml:"rate_limit_delay_ms" mapstructure:"rate_limit_delay_ms"`
	JitterMs         int `yaml:"jitter_ms" mapstructure:"jitter_ms"`
}

// RateLimitConfig configures call spacing per provider.
type RateLimitConfig struct {
	MinIntervalMs int                          `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	MaxPerMinute  int                          `yaml:"max_per_minute" mapstructure:"max_per_minute"`
	Providers     map[string]RateLimitOverride `yaml:"providers" mapstructure:"providers"`
}

// RateLimitOverride replaces the defaults for one provider.
type RateLimitOverride struct {
	MinIntervalMs int `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	MaxPerMinute  int `yaml:"max_per_minute" mapstructure:"max_per_minute"`
}

// CircuitConfig configures the per-slot breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CoolDownSecs     int `yaml:"cool_down_secs" mapstructure:"cool_down_secs"`
}

// PipelineConfig configures document pipelines.
type PipelineConfig struct {
	PayslipTolerancePct    float64           `yaml:"payslip_tolerance_pct" mapstructure:"payslip_tolerance_pct"`
	IncomeVariancePct      float64           `yaml:"income_variance_pct" mapstructure:"income_variance_pct"`
	EMIMatchTolerancePct   float64           `yaml:"emi_match_tolerance_pct" mapstructure:"emi_match_tolerance_pct"`
	StableMonths           int               `yaml:"stable_months" mapstructure:"stable_months"`
	MinAge                 int               `yaml:"min_age" mapstructure:"min_age"`
	MaxAge                 int               `yaml:"max_age" mapstructure:"max_age"`
	AdmissionMaxPastMonths int               `yaml:"admission_max_past_months" mapstructure:"admission_max_past_months"`
	AcademicTolerancePts   float64           `yaml:"academic_tolerance_pts" mapstructure:"academic_tolerance_pts"`
	CGPAMultiplier         float64           `yaml:"cgpa_multiplier" mapstructure:"cgpa_multiplier"`
	RecognizedInstitutions []string          `yaml:"recognized_institutions" mapstructure:"recognized_institutions"`
	InstitutionKeywords    []string          `yaml:"institution_keywords" mapstructure:"institution_keywords"`
	// Prompts overrides the default prompt per document class, or for
	// "verification" and "reasoning".
	Prompts map[string]string `yaml:"prompts" mapstructure:"prompts"`
}

// DecisionConfig configures scoring and decision gates.
type DecisionConfig struct {
	FOIRFull          float64            `yaml:"foir_full" mapstructure:"foir_full"`
	FOIRPartial       float64            `yaml:"foir_partial" mapstructure:"foir_partial"`
	FOIRMax           float64            `yaml:"foir_max" mapstructure:"foir_max"`
	ApproveConfidence float64            `yaml:"approve_confidence" mapstructure:"approve_confidence"`
	ReviewConfidence  float64            `yaml:"review_confidence" mapstructure:"review_confidence"`
	MaxAdjustment     float64            `yaml:"max_adjustment" mapstructure:"max_adjustment"`
	ModelReasoning    bool               `yaml:"model_reasoning" mapstructure:"model_reasoning"`
	InterestRates     map[string]float64 `yaml:"interest_rates" mapstructure:"interest_rates"`
	Weights           WeightsConfig      `yaml:"weights" mapstructure:"weights"`
}

// WeightsConfig holds the eligibility points of each criterion.
type WeightsConfig struct {
	Identity    float64 `yaml:"identity" mapstructure:"identity"`
	Income      float64 `yaml:"income" mapstructure:"income"`
	Tax         float64 `yaml:"tax" mapstructure:"tax"`
	Employment  float64 `yaml:"employment" mapstructure:"employment"`
	FOIR        float64 `yaml:"foir" mapstructure:"foir"`
	Admission   float64 `yaml:"admission" mapstructure:"admission"`
	Institution float64 `yaml:"institution" mapstructure:"institution"`
	Academic    float64 `yaml:"academic" mapstructure:"academic"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BlobConfig configures document storage.
type BlobConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// FetchConfig configures document download from URLs.
type FetchConfig struct {
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBytes     int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxPerMinute int    `yaml:"max_per_minute" mapstructure:"max_per_minute"`
}

// PricingConfig adds or replaces per-model token pricing (USD per million
// tokens). Entries are a list because model names may contain dots.
type PricingConfig struct {
	Models []ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds the pricing of one provider/model pair.
type ModelPricing struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	Model         string  `yaml:"model" mapstructure:"model"`
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// MonitoringConfig configures decision outcome alerting.
type MonitoringConfig struct {
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold    float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	FallbackRateThreshold   float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	IncompleteRateThreshold float64 `yaml:"incomplete_rate_threshold" mapstructure:"incomplete_rate_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultStrategies returns the built-in slot lists.
func DefaultStrategies() StrategiesConfig {
	return StrategiesConfig{
		Extraction: []provider.Spec{
			{Provider: "anthropic", Model: "claude-sonnet-4-5-20250929", Temperature: 0.1, MaxTokens: 4096, Timeout: 60 * time.Second, Vision: true},
			{Provider: "mistral", Model: "pixtral-large-latest", Temperature: 0.1, MaxTokens: 4096, Timeout: 60 * time.Second, Vision: true},
			{Provider: "openrouter", Model: "google/gemini-2.0-flash-001", Temperature: 0.1, MaxTokens: 4096, Timeout: 60 * time.Second, Vision: true},
		},
		Verification: []provider.Spec{
			{Provider: "anthropic", Model: "claude-haiku-4-5-20251001", Temperature: 0, MaxTokens: 2048, Timeout: 30 * time.Second},
			{Provider: "groq", Model: "llama-3.3-70b-versatile", Temperature: 0, MaxTokens: 2048, Timeout: 30 * time.Second},
			{Provider: "mistral", Model: "mistral-small-latest", Temperature: 0, MaxTokens: 2048, Timeout: 30 * time.Second},
		},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOCINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("providers.anthropic.key", "")
	v.SetDefault("providers.anthropic.base_url", "")
	v.SetDefault("providers.mistral.key", "")
	v.SetDefault("providers.mistral.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("providers.groq.key", "")
	v.SetDefault("providers.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("providers.openrouter.key", "")
	v.SetDefault("providers.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("retry.rate_limit_delay_ms", 5000)
	v.SetDefault("retry.jitter_ms", 1000)
	v.SetDefault("rate_limit.min_interval_ms", 200)
	v.SetDefault("rate_limit.max_per_minute", 50)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.cool_down_secs", 300)
	v.SetDefault("images.max_dimension", 2048)
	v.SetDefault("images.max_total_bytes", 4_500_000)
	v.SetDefault("pipeline.payslip_tolerance_pct", 2.0)
	v.SetDefault("pipeline.income_variance_pct", 15.0)
	v.SetDefault("pipeline.emi_match_tolerance_pct", 5.0)
	v.SetDefault("pipeline.stable_months", 12)
	v.SetDefault("pipeline.min_age", 16)
	v.SetDefault("pipeline.max_age", 100)
	v.SetDefault("pipeline.admission_max_past_months", 18)
	v.SetDefault("pipeline.academic_tolerance_pts", 2.0)
	v.SetDefault("pipeline.cgpa_multiplier", 9.5)
	v.SetDefault("decision.foir_full", 40.0)
	v.SetDefault("decision.foir_partial", 50.0)
	v.SetDefault("decision.foir_max", 60.0)
	v.SetDefault("decision.approve_confidence", 75.0)
	v.SetDefault("decision.review_confidence", 50.0)
	v.SetDefault("decision.max_adjustment", 10.0)
	v.SetDefault("decision.model_reasoning", true)
	v.SetDefault("decision.interest_rates", map[string]float64{
		"education": 10.5,
		"personal":  14.0,
		"home":      8.5,
		"vehicle":   9.5,
	})
	v.SetDefault("decision.weights.identity", 25.0)
	v.SetDefault("decision.weights.income", 25.0)
	v.SetDefault("decision.weights.tax", 10.0)
	v.SetDefault("decision.weights.employment", 15.0)
	v.SetDefault("decision.weights.foir", 25.0)
	v.SetDefault("decision.weights.admission", 20.0)
	v.SetDefault("decision.weights.institution", 10.0)
	v.SetDefault("decision.weights.academic", 5.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "docintel.db")
	v.SetDefault("blob.dir", "uploads")
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_bytes", 20<<20)
	v.SetDefault("fetch.user_agent", "docintel/1.0")
	v.SetDefault("fetch.max_per_minute", 30)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.50)
	v.SetDefault("monitoring.incomplete_rate_threshold", 0.40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	defaults := DefaultStrategies()
	if len(cfg.Strategies.Extraction) == 0 {
		cfg.Strategies.Extraction = defaults.Extraction
	}
	if len(cfg.Strategies.Verification) == 0 {
		cfg.Strategies.Verification = defaults.Verification
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
