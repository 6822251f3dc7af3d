package scoring

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/jonathan/benchscope/internal/llm"
	"github.com/jonathan/benchscope/internal/schemas"
	"github.com/jonathan/benchscope/internal/types"
)

// attemptOutcome is one validated model response and the raw JSON it came from
type attemptOutcome struct {
	result *types.ScoringResult
	raw    string
}

// parseResponse strips code fences, validates against the closed response
// schema and decodes the result.
func parseResponse(text string) (attemptOutcome, error) {
	cleaned := llm.CleanJSONBlock(text)
	if cleaned == "" {
		return attemptOutcome{}, fmt.Errorf("empty model response")
	}

	if err := schemas.ValidateScoringResponse(cleaned); err != nil {
		return attemptOutcome{}, fmt.Errorf("invalid scoring response: %w", err)
	}

	var result types.ScoringResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return attemptOutcome{}, fmt.Errorf("failed to decode scoring response: %w", err)
	}

	return attemptOutcome{result: &result, raw: cleaned}, nil
}

// clampScore bounds a score to [0,10]; NaN becomes 0
func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(10, v))
}
