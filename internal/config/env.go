package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnv
const (
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvLLMModel      = "LLM_MODEL"
	EnvRedisURL      = "REDIS_URL"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvSQLitePath    = "SQLITE_DB_PATH"
	EnvWebhookURL    = "FEISHU_WEBHOOK_URL"
	EnvWebhookSecret = "FEISHU_WEBHOOK_SECRET"
	EnvTableURL      = "FEISHU_TABLE_URL"
	EnvLogLevel      = "LOG_LEVEL"
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvConcurrency   = "SCORE_CONCURRENCY"
)

// ApplyEnv overlays non-empty environment variables onto the configuration.
// A configured webhook URL turns notifications on.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(EnvGeminiAPIKey, &c.LLM.APIKey)
	setString(EnvLLMModel, &c.LLM.Model)
	setString(EnvRedisURL, &c.Cache.RedisURL)
	setString(EnvDatabaseURL, &c.Storage.DatabaseURL)
	setString(EnvSQLitePath, &c.Storage.SQLitePath)
	setString(EnvWebhookSecret, &c.Notify.WebhookSecret)
	setString(EnvTableURL, &c.Notify.TableURL)
	setString(EnvLogLevel, &c.Log.Level)
	setString(EnvGitHubToken, &c.Sources.GitHubToken)

	if v := strings.TrimSpace(getenv(EnvWebhookURL)); v != "" {
		c.Notify.WebhookURL = v
		c.Notify.Enabled = true
	}

	c.Log.Level = strings.ToLower(c.Log.Level)

	if v := strings.TrimSpace(getenv(EnvConcurrency)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", EnvConcurrency, err)
		}
		c.Scoring.Concurrency = n
	}

	return nil
}
