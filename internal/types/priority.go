package types

// Priority is the tier derived from a total score
type Priority string

// Priority tiers
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Thresholds holds the inclusive lower bounds of the high and medium tiers
type Thresholds struct {
	High   float64 `json:"high" toml:"high"`
	Medium float64 `json:"medium" toml:"medium"`
}

// DefaultThresholds is the single source of the 8.0 / 6.0 cutoffs
var DefaultThresholds = Thresholds{High: 8.0, Medium: 6.0}

// Classify maps a total score to a priority tier
func Classify(total float64, t Thresholds) Priority {
	switch {
	case total >= t.High:
		return PriorityHigh
	case total >= t.Medium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Ranking bundles the weight vector and tier thresholds so that every consumer
// derives totals and tiers from the same configuration.
type Ranking struct {
	Weights    Weights    `json:"weights" toml:"weights"`
	Thresholds Thresholds `json:"thresholds" toml:"thresholds"`
}

// DefaultRanking uses DefaultWeights and DefaultThresholds
var DefaultRanking = Ranking{Weights: DefaultWeights, Thresholds: DefaultThresholds}

// Total returns the weighted total of s
func (r Ranking) Total(s ScoredCandidate) float64 {
	return s.WeightedTotal(r.Weights)
}

// Priority returns the tier of s
func (r Ranking) Priority(s ScoredCandidate) Priority {
	return Classify(r.Total(s), r.Thresholds)
}

// RankedCandidate is a ScoredCandidate with its derived total and tier
// resolved under one Ranking. It is the unit persisted by storage.
type RankedCandidate struct {
	ScoredCandidate
	Total float64  `json:"total_score"`
	Tier  Priority `json:"priority"`
}

// Rank resolves the total and tier of s
func (r Ranking) Rank(s ScoredCandidate) RankedCandidate {
	return RankedCandidate{ScoredCandidate: s, Total: r.Total(s), Tier: r.Priority(s)}
}

// RankAll resolves every candidate in order
func (r Ranking) RankAll(in []ScoredCandidate) []RankedCandidate {
	out := make([]RankedCandidate, 0, len(in))
	for _, s := range in {
		out = append(out, r.Rank(s))
	}
	return out
}
