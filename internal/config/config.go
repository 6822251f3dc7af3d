// Package config provides configuration loading and validation for the pipeline.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/jonathan/benchscope/internal/types"
)

// Config is constructed once at startup and passed into every component constructor.
type Config struct {
	LLM       LLMConfig       `json:"llm" toml:"llm"`
	Cache     CacheConfig     `json:"cache" toml:"cache"`
	Prefilter PrefilterConfig `json:"prefilter" toml:"prefilter"`
	Scoring   ScoringConfig   `json:"scoring" toml:"scoring"`
	Notify    NotifyConfig    `json:"notify" toml:"notify"`
	Storage   StorageConfig   `json:"storage" toml:"storage"`
	Sources   SourcesConfig   `json:"sources" toml:"sources"`
	Log       LogConfig       `json:"log" toml:"log"`
}

// LLMConfig configures the language-model backend
type LLMConfig struct {
	APIKey          string  `json:"api_key,omitempty" toml:"api_key"`
	Model           string  `json:"model" toml:"model" validate:"required"`
	TimeoutSeconds  int     `json:"timeout_seconds" toml:"timeout_seconds" validate:"gt=0"`
	MaxRetries      int     `json:"max_retries" toml:"max_retries" validate:"gte=1,lte=10"`
	MaxOutputTokens int32   `json:"max_output_tokens" toml:"max_output_tokens" validate:"gt=0"`
	Temperature     float32 `json:"temperature" toml:"temperature" validate:"gte=0,lte=1"`
}

// Timeout returns the per-attempt model call timeout
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheConfig configures the scoring cache
type CacheConfig struct {
	// Backend is one of "memory", "redis", "postgres" or "none"
	Backend        string `json:"backend" toml:"backend" validate:"oneof=memory redis postgres none"`
	RedisURL       string `json:"redis_url,omitempty" toml:"redis_url"`
	TTLDays        int    `json:"ttl_days" toml:"ttl_days" validate:"gt=0"`
	TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds" validate:"gt=0"`
	KeyPrefix      string `json:"key_prefix" toml:"key_prefix"`
}

// TTL returns the cache entry lifetime
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// Timeout returns the per-operation cache timeout
func (c CacheConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PrefilterConfig holds the rule prefilter thresholds and keyword lists
type PrefilterConfig struct {
	MinTitleLength           int      `json:"min_title_length" toml:"min_title_length" validate:"gte=0"`
	MinAbstractLength        int      `json:"min_abstract_length" toml:"min_abstract_length" validate:"gte=0"`
	GitHubMinReadmeLength    int      `json:"github_min_readme_length" toml:"github_min_readme_length" validate:"gte=0"`
	Keywords                 []string `json:"keywords" toml:"keywords" validate:"min=1"`
	TitleSimilarityThreshold float64  `json:"title_similarity_threshold" toml:"title_similarity_threshold" validate:"gt=0,lte=1"`
	GitHubMinStars           int      `json:"github_min_stars" toml:"github_min_stars" validate:"gte=0"`
	GitHubMaxAgeDays         int      `json:"github_max_age_days" toml:"github_max_age_days" validate:"gt=0"`
	GitHubRecencyExemptStars int      `json:"github_recency_exempt_stars" toml:"github_recency_exempt_stars" validate:"gte=0"`
	TechReportPatterns       []string `json:"tech_report_patterns" toml:"tech_report_patterns"`
	EvaluationSignals        []string `json:"evaluation_signals" toml:"evaluation_signals"`
	ExcludedDomainKeywords   []string `json:"excluded_domain_keywords" toml:"excluded_domain_keywords"`
	BenchmarkSignals         []string `json:"benchmark_signals" toml:"benchmark_signals"`
}

// ScoringConfig configures the scoring engine
type ScoringConfig struct {
	Concurrency             int           `json:"concurrency" toml:"concurrency" validate:"gte=1,lte=32"`
	AbstractMaxChars        int           `json:"abstract_max_chars" toml:"abstract_max_chars" validate:"gt=0"`
	MinTotalReasoningLength int           `json:"min_total_reasoning_length" toml:"min_total_reasoning_length" validate:"gte=0"`
	MaxSelfHealAttempts     int           `json:"max_self_heal_attempts" toml:"max_self_heal_attempts" validate:"gte=0,lte=5"`
	MaxExtractedMetrics     int           `json:"max_extracted_metrics" toml:"max_extracted_metrics" validate:"gt=0"`
	BackendSignals          []string      `json:"backend_signals" toml:"backend_signals"`
	BackendMinSignalHits    int           `json:"backend_min_signal_hits" toml:"backend_min_signal_hits" validate:"gte=1"`
	Ranking                 types.Ranking `json:"ranking" toml:"ranking"`
}

// NotifyConfig configures tiered notifications
type NotifyConfig struct {
	Enabled            bool    `json:"enabled" toml:"enabled"`
	WebhookURL         string  `json:"webhook_url,omitempty" toml:"webhook_url" validate:"omitempty,url"`
	WebhookSecret      string  `json:"webhook_secret,omitempty" toml:"webhook_secret"`
	TimeoutSeconds     int     `json:"timeout_seconds" toml:"timeout_seconds" validate:"gt=0"`
	MinScore           float64 `json:"min_score" toml:"min_score" validate:"gte=0,lte=10"`
	TopN               int     `json:"top_n" toml:"top_n" validate:"gte=1"`
	PerSourcePicks     bool    `json:"per_source_picks" toml:"per_source_picks"`
	LowPickEnabled     bool    `json:"low_pick_enabled" toml:"low_pick_enabled"`
	LowPickPerSource   int     `json:"low_pick_per_source" toml:"low_pick_per_source" validate:"gte=0"`
	LowPickMaxAgeDays  int     `json:"low_pick_max_age_days" toml:"low_pick_max_age_days" validate:"gte=0"`
	LowPickMinScore    float64 `json:"low_pick_min_score" toml:"low_pick_min_score" validate:"gte=0,lte=10"`
	LowPickMinRelevant float64 `json:"low_pick_min_relevance" toml:"low_pick_min_relevance" validate:"gte=0,lte=10"`
	SendDelayMillis    int     `json:"send_delay_millis" toml:"send_delay_millis" validate:"gte=0"`
	TableURL           string  `json:"table_url,omitempty" toml:"table_url"`
}

// Timeout returns the webhook request timeout
func (c NotifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SendDelay returns the pause between consecutive high-priority cards
func (c NotifyConfig) SendDelay() time.Duration {
	return time.Duration(c.SendDelayMillis) * time.Millisecond
}

// StorageConfig configures the primary and fallback result stores
type StorageConfig struct {
	DatabaseURL    string `json:"database_url,omitempty" toml:"database_url"`
	SQLitePath     string `json:"sqlite_path" toml:"sqlite_path" validate:"required"`
	RetentionDays  int    `json:"retention_days" toml:"retention_days" validate:"gt=0"`
	TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds" validate:"gt=0"`
}

// Timeout returns the per-batch storage timeout
func (c StorageConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SourcesConfig configures the collectors
type SourcesConfig struct {
	ArxivQuery          string   `json:"arxiv_query" toml:"arxiv_query"`
	ArxivMaxResults     int      `json:"arxiv_max_results" toml:"arxiv_max_results" validate:"gte=0"`
	GitHubToken         string   `json:"github_token,omitempty" toml:"github_token"`
	GitHubQueries       []string `json:"github_queries" toml:"github_queries"`
	GitHubMaxResults    int      `json:"github_max_results" toml:"github_max_results" validate:"gte=0"`
	HuggingFaceKeywords []string `json:"huggingface_keywords" toml:"huggingface_keywords"`
	HuggingFaceLimit    int      `json:"huggingface_limit" toml:"huggingface_limit" validate:"gte=0"`
	PwCKeywords         []string `json:"pwc_keywords" toml:"pwc_keywords"`
	PwCPageSize         int      `json:"pwc_page_size" toml:"pwc_page_size" validate:"gte=0"`
	PwCMinTaskPapers    int      `json:"pwc_min_task_papers" toml:"pwc_min_task_papers" validate:"gte=0"`
	LookbackDays        int      `json:"lookback_days" toml:"lookback_days" validate:"gt=0"`
	TimeoutSeconds      int      `json:"timeout_seconds" toml:"timeout_seconds" validate:"gt=0"`
	EnrichArxiv         bool     `json:"enrich_arxiv" toml:"enrich_arxiv"`
}

// Timeout returns the HTTP timeout for collector requests
func (c SourcesConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `json:"level" toml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `json:"pretty" toml:"pretty"`
}

// Load reads a JSON or TOML (by extension) configuration file over Default().
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field invariants.
// Called once at startup so that configuration errors fail fast.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config error: %w", err)
	}

	var errs []error

	weights := c.Scoring.Ranking.Weights
	if math.Abs(weights.Sum()-1.0) > 1e-6 {
		errs = append(errs, fmt.Errorf("scoring.ranking.weights must sum to 1.0, got %.4f", weights.Sum()))
	}
	for name, w := range map[string]float64{
		"activity":        weights.Activity,
		"reproducibility": weights.Reproducibility,
		"license":         weights.License,
		"novelty":         weights.Novelty,
		"relevance":       weights.Relevance,
	} {
		if w < 0 {
			errs = append(errs, fmt.Errorf("scoring.ranking.weights.%s must be non-negative", name))
		}
	}

	th := c.Scoring.Ranking.Thresholds
	if th.Medium <= 0 || th.High <= th.Medium || th.High > 10 {
		errs = append(errs, fmt.Errorf("scoring.ranking.thresholds must satisfy 0 < medium < high <= 10"))
	}

	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		errs = append(errs, errors.New("notify.webhook_url is required when notifications are enabled"))
	}

	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
	}
	if c.Cache.Backend == "postgres" && c.Storage.DatabaseURL == "" {
		errs = append(errs, errors.New("storage.database_url is required for the postgres cache backend"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config error: %w", errors.Join(errs...))
	}
	return nil
}

// HasLLMCredential reports whether model scoring can be attempted
func (c *Config) HasLLMCredential() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}
