// Package llm provides the language-model client abstraction used for scoring.
package llm

import (
	"time"

	"github.com/jonathan/benchscope/internal/config"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Config holds the model configuration for a client
type Config struct {
	Provider        Provider
	Model           string
	Timeout         time.Duration
	MaxRetries      int
	MaxOutputTokens int32
	Temperature     float32
}

// DefaultConfig returns the default Gemini configuration
func DefaultConfig() *Config {
	return FromAppConfig(config.Default().LLM)
}

// FromAppConfig converts the application LLM section into a client Config
func FromAppConfig(c config.LLMConfig) *Config {
	return &Config{
		Provider:        ProviderGemini,
		Model:           c.Model,
		Timeout:         c.Timeout(),
		MaxRetries:      c.MaxRetries,
		MaxOutputTokens: c.MaxOutputTokens,
		Temperature:     c.Temperature,
	}
}
