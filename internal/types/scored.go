package types

import (
	"math"
	"strings"
)

// Weights is the score weight vector applied to the five dimensions
type Weights struct {
	Activity        float64 `json:"activity" toml:"activity"`
	Reproducibility float64 `json:"reproducibility" toml:"reproducibility"`
	License         float64 `json:"license" toml:"license"`
	Novelty         float64 `json:"novelty" toml:"novelty"`
	Relevance       float64 `json:"relevance" toml:"relevance"`
}

// DefaultWeights is the fixed 25/30/20/15/10 weighting
var DefaultWeights = Weights{
	Activity:        0.25,
	Reproducibility: 0.30,
	License:         0.20,
	Novelty:         0.15,
	Relevance:       0.10,
}

// Sum returns the sum of all weights
func (w Weights) Sum() float64 {
	return w.Activity + w.Reproducibility + w.License + w.Novelty + w.Relevance
}

// ScoredBy records which path produced the scores
type ScoredBy string

// Scoring paths
const (
	ScoredByLLM      ScoredBy = "llm"
	ScoredByCache    ScoredBy = "cache"
	ScoredByFallback ScoredBy = "fallback"
	ScoredByBackend  ScoredBy = "backend"
)

// FallbackReasoning prefixes the reasoning of every heuristically scored candidate
const FallbackReasoning = "rule-based fallback, LLM unavailable"

// DefaultTaskDomain is used when neither the model nor the collector supplied a domain
const DefaultTaskDomain = "Other"

// ScoredCandidate is a RawCandidate plus five independent sub-scores and justification.
// There is deliberately no total field: TotalScore is derived on every call.
type ScoredCandidate struct {
	RawCandidate

	ActivityScore        float64 `json:"activity_score"`
	ReproducibilityScore float64 `json:"reproducibility_score"`
	LicenseScore         float64 `json:"license_score"`
	NoveltyScore         float64 `json:"novelty_score"`
	RelevanceScore       float64 `json:"relevance_score"`
	Reasoning            string  `json:"reasoning"`

	ActivityReasoning        string `json:"activity_reasoning,omitempty"`
	ReproducibilityReasoning string `json:"reproducibility_reasoning,omitempty"`
	LicenseReasoning         string `json:"license_reasoning,omitempty"`
	NoveltyReasoning         string `json:"novelty_reasoning,omitempty"`
	RelevanceReasoning       string `json:"relevance_reasoning,omitempty"`

	TaskDomain             string   `json:"task_domain,omitempty"`
	Metrics                []string `json:"metrics,omitempty"`
	Baselines              []string `json:"baselines,omitempty"`
	Institution            string   `json:"institution,omitempty"`
	DatasetSize            *int     `json:"dataset_size,omitempty"`
	DatasetSizeDescription string   `json:"dataset_size_description,omitempty"`

	ScoredBy ScoredBy `json:"scored_by"`
}

// TotalScore returns the weighted total with DefaultWeights
func (s ScoredCandidate) TotalScore() float64 {
	return s.WeightedTotal(DefaultWeights)
}

// WeightedTotal returns the weighted sum of the five sub-scores, rounded to
// nine decimals so that uniform sub-scores land exactly on tier boundaries.
func (s ScoredCandidate) WeightedTotal(w Weights) float64 {
	total := s.ActivityScore*w.Activity +
		s.ReproducibilityScore*w.Reproducibility +
		s.LicenseScore*w.License +
		s.NoveltyScore*w.Novelty +
		s.RelevanceScore*w.Relevance
	return math.Round(total*1e9) / 1e9
}

// Priority classifies the candidate with DefaultThresholds
func (s ScoredCandidate) Priority() Priority {
	return Classify(s.TotalScore(), DefaultThresholds)
}

// IsFallback reports whether the scores came from the heuristic fallback
func (s ScoredCandidate) IsFallback() bool {
	return s.ScoredBy == ScoredByFallback || strings.HasPrefix(s.Reasoning, FallbackReasoning)
}

// TotalReasoningLength is the combined length of the per-dimension and overall reasoning
func (s ScoredCandidate) TotalReasoningLength() int {
	return len([]rune(s.ActivityReasoning)) +
		len([]rune(s.ReproducibilityReasoning)) +
		len([]rune(s.LicenseReasoning)) +
		len([]rune(s.NoveltyReasoning)) +
		len([]rune(s.RelevanceReasoning)) +
		len([]rune(s.Reasoning))
}
