package config

import "github.com/jonathan/benchscope/internal/types"

// DefaultKeywords is the prefilter keyword allow-list
var DefaultKeywords = []string{
	"benchmark",
	"evaluation",
	"evaluate",
	"leaderboard",
	"dataset",
	"test set",
	"testbed",
	"agent",
	"code generation",
	"program synthesis",
	"swe-bench",
	"humaneval",
	"mbpp",
	"tool use",
	"web navigation",
	"reasoning",
	"multi-agent",
}

// DefaultBackendSignals route a candidate to the deterministic backend scorer
var DefaultBackendSignals = []string{
	"backend",
	"api",
	"database",
	"microservice",
	"rest",
	"graphql",
	"latency",
	"throughput",
	"qps",
	"rps",
	"scalability",
	"distributed",
	"server",
	"system design",
}

// Default returns a fully populated configuration.
// File values and environment variables are applied over it.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:           "gemini-2.5-flash",
			TimeoutSeconds:  60,
			MaxRetries:      3,
			MaxOutputTokens: 2048,
			Temperature:     0.1,
		},
		Cache: CacheConfig{
			Backend:        "memory",
			TTLDays:        7,
			TimeoutSeconds: 2,
			KeyPrefix:      "benchscope:",
		},
		Prefilter: PrefilterConfig{
			MinTitleLength:           10,
			MinAbstractLength:        20,
			GitHubMinReadmeLength:    500,
			Keywords:                 append([]string(nil), DefaultKeywords...),
			TitleSimilarityThreshold: 0.85,
			GitHubMinStars:           10,
			GitHubMaxAgeDays:         180,
			GitHubRecencyExemptStars: 1000,
			TechReportPatterns: []string{
				"technical report",
				"tech report",
				"system card",
				"model card",
			},
			EvaluationSignals: []string{
				"benchmark",
				"evaluation",
				"evaluate",
				"leaderboard",
			},
			ExcludedDomainKeywords: []string{
				"autonomous driving",
				"self-driving",
				"medical imaging",
				"remote sensing",
				"protein",
			},
			BenchmarkSignals: []string{
				"benchmark",
				"leaderboard",
				"test suite",
			},
		},
		Scoring: ScoringConfig{
			Concurrency:             5,
			AbstractMaxChars:        1600,
			MinTotalReasoningLength: 1200,
			MaxSelfHealAttempts:     2,
			MaxExtractedMetrics:     5,
			BackendSignals:          append([]string(nil), DefaultBackendSignals...),
			BackendMinSignalHits:    2,
			Ranking:                 types.DefaultRanking,
		},
		Notify: NotifyConfig{
			Enabled:            false,
			TimeoutSeconds:     10,
			MinScore:           6.0,
			TopN:               5,
			PerSourcePicks:     true,
			LowPickEnabled:     true,
			LowPickPerSource:   2,
			LowPickMaxAgeDays:  30,
			LowPickMinScore:    5.0,
			LowPickMinRelevant: 6.0,
			SendDelayMillis:    500,
		},
		Storage: StorageConfig{
			SQLitePath:     "data/benchscope_fallback.db",
			RetentionDays:  7,
			TimeoutSeconds: 30,
		},
		Sources: SourcesConfig{
			ArxivQuery:          `cat:cs.CL OR cat:cs.AI OR cat:cs.SE AND (abs:benchmark OR abs:evaluation)`,
			ArxivMaxResults:     50,
			GitHubQueries:       []string{"benchmark llm", "agent evaluation"},
			GitHubMaxResults:    30,
			HuggingFaceKeywords: []string{"benchmark", "evaluation"},
			HuggingFaceLimit:    30,
			PwCKeywords:         []string{"agent", "code generation", "tool use"},
			PwCPageSize:         20,
			PwCMinTaskPapers:    5,
			LookbackDays:        7,
			TimeoutSeconds:      20,
			EnrichArxiv:         false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
