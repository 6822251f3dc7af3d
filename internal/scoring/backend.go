package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/benchscope/internal/types"
)

// Platforms whose entries are always backend benchmarks
var backendPlatforms = map[string]struct{}{
	"techempower": {},
	"dbengines":   {},
}

var reproducibilityHints = []string{"docker", "reproduc", "script", "harness", "open source"}

// BackendScorer scores backend and systems benchmarks with deterministic rules
type BackendScorer struct {
	signals []string
	minHits int
	now     func() time.Time
}

// NewBackendScorer creates a BackendScorer matching signals case-insensitively
func NewBackendScorer(signals []string, minHits int) *BackendScorer {
	lowered := make([]string, 0, len(signals))
	for _, s := range signals {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			lowered = append(lowered, s)
		}
	}
	return &BackendScorer{signals: lowered, minHits: max(minHits, 1), now: time.Now}
}

// Hits counts the distinct signals present in title, abstract and metadata values
func (b *BackendScorer) Hits(c types.RawCandidate) int {
	var sb strings.Builder
	sb.WriteString(c.Title)
	sb.WriteString(" ")
	sb.WriteString(c.Abstract)
	for _, v := range c.RawMetadata {
		sb.WriteString(" ")
		sb.WriteString(v)
	}
	text := strings.ToLower(sb.String())

	hits := 0
	for _, s := range b.signals {
		if strings.Contains(text, s) {
			hits++
		}
	}
	return hits
}

// Matches reports whether the candidate should be routed to this scorer
func (b *BackendScorer) Matches(c types.RawCandidate) bool {
	if _, ok := backendPlatforms[strings.ToLower(c.Meta(types.MetaPlatform))]; ok {
		return true
	}
	return b.Hits(c) >= b.minHits
}

// Score returns the rule-based result for a backend candidate
func (b *BackendScorer) Score(c types.RawCandidate) *types.ScoringResult {
	hits := b.Hits(c)
	text := strings.ToLower(c.Title + " " + c.Abstract)

	reproducibility := 4.0
	if c.GitHubURL != "" {
		reproducibility += 2
	}
	if c.DatasetURL != "" {
		reproducibility += 2
	}
	for _, hint := range reproducibilityHints {
		if strings.Contains(text, hint) {
			reproducibility += 2
			break
		}
	}

	novelty := 5.0
	if c.PublishDate != nil && b.now().Sub(*c.PublishDate) < 365*24*time.Hour {
		novelty = 7.0
	}

	relevance := min(10.0, 8.0+float64(max(hits-b.minHits, 0))*0.5)
	domain := "Backend"

	return &types.ScoringResult{
		ActivityScore:        activityFromStars(c.Stars()),
		ReproducibilityScore: min(10.0, reproducibility),
		LicenseScore:         licenseScore(c.LicenseType),
		NoveltyScore:         novelty,
		RelevanceScore:       relevance,
		ScoreReasoning: fmt.Sprintf("backend benchmark scored by deterministic rules: %d backend signals, %d stars, license %q",
			hits, c.Stars(), orDefault(c.LicenseType, "unknown")),
		TaskDomain: &domain,
	}
}

// licenseScore grades a license name: permissive 10, copyleft 7, CC 4, otherwise 2
func licenseScore(license string) float64 {
	l := strings.ToLower(license)
	switch {
	case l == "":
		return 2
	case strings.Contains(l, "mit"), strings.Contains(l, "apache"), strings.Contains(l, "bsd"):
		return 10
	case strings.Contains(l, "gpl"):
		return 7
	case strings.Contains(l, "cc"), strings.Contains(l, "creative commons"):
		return 4
	default:
		return 2
	}
}
