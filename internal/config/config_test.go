package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Prefilter.MinTitleLength)
	assert.Equal(t, 20, cfg.Prefilter.MinAbstractLength)
	assert.Equal(t, 0.85, cfg.Prefilter.TitleSimilarityThreshold)
	assert.Equal(t, 8.0, cfg.Scoring.Ranking.Thresholds.High)
	assert.Equal(t, 6.0, cfg.Scoring.Ranking.Thresholds.Medium)
	assert.Equal(t, 5, cfg.Notify.TopN)
	assert.False(t, cfg.HasLLMCredential())
}

func TestLoad_ValidJSON(t *testing.T) {
	content := `{
		"llm": {"model": "gemini-2.5-pro", "max_retries": 5},
		"scoring": {"concurrency": 3},
		"notify": {"min_score": 6.5, "top_n": 3}
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, 3, cfg.Scoring.Concurrency)
	assert.Equal(t, 6.5, cfg.Notify.MinScore)
	assert.Equal(t, 3, cfg.Notify.TopN)

	// Untouched sections keep their defaults
	assert.Equal(t, 60, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, 7, cfg.Cache.TTLDays)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ValidTOML(t *testing.T) {
	content := `
[llm]
model = "gemini-2.5-flash-lite"

[prefilter]
keywords = ["benchmark", "leaderboard"]
github_min_stars = 50

[scoring.ranking.thresholds]
high = 8.5
medium = 6.5
`
	tmpFile := filepath.Join(t.TempDir(), "benchscope.toml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash-lite", cfg.LLM.Model)
	assert.Equal(t, []string{"benchmark", "leaderboard"}, cfg.Prefilter.Keywords)
	assert.Equal(t, 50, cfg.Prefilter.GitHubMinStars)
	assert.Equal(t, 8.5, cfg.Scoring.Ranking.Thresholds.High)
	assert.Equal(t, 6.5, cfg.Scoring.Ranking.Thresholds.Medium)
	assert.InDelta(t, 1.0, cfg.Scoring.Ranking.Weights.Sum(), 1e-9)
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := Load(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := Default()
	cfg.Scoring.Ranking.Weights.Activity = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must sum to 1.0")
}

func TestValidate_ThresholdOrdering(t *testing.T) {
	cfg := Default()
	cfg.Scoring.Ranking.Thresholds.High = 5
	cfg.Scoring.Ranking.Thresholds.Medium = 6

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds")
}

func TestValidate_FieldRanges(t *testing.T) {
	cfg := Default()
	cfg.Scoring.Concurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Concurrency")
}

func TestValidate_NotifyRequiresWebhook(t *testing.T) {
	cfg := Default()
	cfg.Notify.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_url")
}

func TestValidate_RedisRequiresURL(t *testing.T) {
	cfg := Default()
	cfg.Cache.Backend = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis_url")
}

func TestValidate_UnknownCacheBackend(t *testing.T) {
	cfg := Default()
	cfg.Cache.Backend = "memcached"

	assert.Error(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvGeminiAPIKey: "key-123",
		EnvWebhookURL:   "https://open.feishu.cn/hook/abc",
		EnvLogLevel:     "DEBUG",
		EnvConcurrency:  "3",
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "key-123", cfg.LLM.APIKey)
	assert.True(t, cfg.HasLLMCredential())
	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, "https://open.feishu.cn/hook/abc", cfg.Notify.WebhookURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Scoring.Concurrency)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_InvalidConcurrency(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) string {
		if k == EnvConcurrency {
			return "many"
		}
		return ""
	})
	assert.Error(t, err)
}
