package types

import (
	"encoding/json"
	"math"
)

// ScoringResult is the validated structured output of one scoring call.
// It is the unit stored in the scoring cache.
type ScoringResult struct {
	ActivityScore        float64 `json:"activity_score"`
	ReproducibilityScore float64 `json:"reproducibility_score"`
	LicenseScore         float64 `json:"license_score"`
	NoveltyScore         float64 `json:"novelty_score"`
	RelevanceScore       float64 `json:"relevance_score"`
	ScoreReasoning       string  `json:"score_reasoning"`

	ActivityReasoning        string `json:"activity_reasoning,omitempty"`
	ReproducibilityReasoning string `json:"reproducibility_reasoning,omitempty"`
	LicenseReasoning         string `json:"license_reasoning,omitempty"`
	NoveltyReasoning         string `json:"novelty_reasoning,omitempty"`
	RelevanceReasoning       string `json:"relevance_reasoning,omitempty"`

	TaskDomain             *string  `json:"task_domain"`
	Metrics                []string `json:"metrics"`
	Baselines              []string `json:"baselines"`
	Institution            *string  `json:"institution"`
	Authors                []string `json:"authors"`
	DatasetSize            *int     `json:"dataset_size"`
	DatasetSizeDescription *string  `json:"dataset_size_description"`
}

// maxDatasetSize bounds dataset_size to values a float64 holds exactly
const maxDatasetSize = 1 << 53

// UnmarshalJSON accepts dataset_size in float or exponent notation
// ("1000.0", "1e6") and rounds it. A dataset_size that is not a usable
// count is dropped rather than failing the whole result.
func (r *ScoringResult) UnmarshalJSON(data []byte) error {
	type plain ScoringResult
	aux := struct {
		*plain
		DatasetSize *json.Number `json:"dataset_size"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.DatasetSize = nil
	if aux.DatasetSize == nil {
		return nil
	}
	f, err := aux.DatasetSize.Float64()
	if err != nil || math.IsNaN(f) || f < 0 || f > maxDatasetSize {
		return nil
	}
	n := int(math.Round(f))
	r.DatasetSize = &n
	return nil
}

// ReasoningLength is the combined rune length of all reasoning fields
func (r ScoringResult) ReasoningLength() int {
	return len([]rune(r.ActivityReasoning)) +
		len([]rune(r.ReproducibilityReasoning)) +
		len([]rune(r.LicenseReasoning)) +
		len([]rune(r.NoveltyReasoning)) +
		len([]rune(r.RelevanceReasoning)) +
		len([]rune(r.ScoreReasoning))
}

// TaskDomainOptions is the closed vocabulary for TaskDomain entries
var TaskDomainOptions = []string{
	"Coding",
	"WebDev",
	"Backend",
	"GUI",
	"ToolUse",
	"Collaboration",
	"LLM/AgentOps",
	"Reasoning",
	"DeepResearch",
	"Other",
}
