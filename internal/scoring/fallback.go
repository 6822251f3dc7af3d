package scoring

import (
	"fmt"
	"strings"

	"github.com/jonathan/benchscope/internal/types"
)

// Star tiers for the activity heuristic
var activityTiers = []struct {
	minStars int
	score    float64
}{
	{1000, 9.0},
	{500, 7.5},
	{100, 6.0},
}

const (
	baseActivity        = 5.0
	baseReproducibility = 3.0
	urlBonus            = 3.0
	neutralScore        = 5.0
)

// activityFromStars maps a star count to an activity score
func activityFromStars(stars int) float64 {
	for _, tier := range activityTiers {
		if stars >= tier.minStars {
			return tier.score
		}
	}
	return baseActivity
}

// fallbackResult derives scores from objective signals alone
func fallbackResult(c types.RawCandidate, reason string) *types.ScoringResult {
	activity := activityFromStars(c.Stars())

	reproducibility := baseReproducibility
	var evidence []string
	if c.GitHubURL != "" {
		reproducibility += urlBonus
		evidence = append(evidence, "code repository")
	}
	if c.DatasetURL != "" {
		reproducibility += urlBonus
		evidence = append(evidence, "dataset")
	}
	reproducibility = min(10.0, reproducibility)

	public := "no public artifacts linked"
	if len(evidence) > 0 {
		public = "public " + strings.Join(evidence, " and ")
	}

	return &types.ScoringResult{
		ActivityScore:        activity,
		ReproducibilityScore: reproducibility,
		LicenseScore:         neutralScore,
		NoveltyScore:         neutralScore,
		RelevanceScore:       neutralScore,
		ScoreReasoning: fmt.Sprintf("%s: %s. Activity from %d stars, %s; license, novelty and relevance set to neutral.",
			types.FallbackReasoning, reason, c.Stars(), public),
	}
}
