package scoring

import (
	"strconv"
	"strings"

	"github.com/jonathan/benchscope/internal/prompts"
	"github.com/jonathan/benchscope/internal/types"
)

// Placeholders used when a prompt input is missing
const (
	notProvided  = "not provided"
	notExtracted = "not extracted"
)

// buildPrompt renders the scoring prompt for one candidate
func (e *Engine) buildPrompt(c types.RawCandidate) (string, error) {
	stars := notProvided
	if c.GitHubStars != nil {
		stars = strconv.Itoa(*c.GitHubStars)
	}

	data := map[string]string{
		"TaskDomainOptions":  strings.Join(types.TaskDomainOptions, ", "),
		"MaxMetrics":         strconv.Itoa(e.cfg.MaxExtractedMetrics),
		"MinReasoningLength": strconv.Itoa(e.cfg.MinTotalReasoningLength),
		"Title":              c.Title,
		"Source":             string(c.Source),
		"URL":                c.URL,
		"Abstract":           truncateAbstract(c.Abstract, e.cfg.AbstractMaxChars),
		"GitHubStars":        stars,
		"LicenseType":        orDefault(c.LicenseType, "unknown"),
		"TaskType":           orDefault(c.TaskType, "not identified"),
		"EvaluationSummary":  orDefault(c.Meta(types.MetaEvaluationSummary), notProvided+" (no evaluation section found or enrichment unavailable)"),
		"DatasetSummary":     orDefault(c.Meta(types.MetaDatasetSummary), notProvided+" (no dataset section found or enrichment unavailable)"),
		"BaselinesSummary":   orDefault(c.Meta(types.MetaBaselinesSummary), notProvided+" (no baselines section found or enrichment unavailable)"),
		"RawMetrics":         orDefault(c.Meta(types.MetaRawMetrics), notExtracted),
		"RawBaselines":       orDefault(c.Meta(types.MetaRawBaselines), notExtracted),
		"RawAuthors":         orDefault(strings.Join(c.Authors, ", "), notExtracted),
		"RawInstitutions":    orDefault(c.Meta(types.MetaRawInstitutions), notExtracted),
		"RawDatasetSize":     orDefault(c.Meta(types.MetaRawDatasetSize), notExtracted),
	}
	return prompts.Render(prompts.ScoringFile, prompts.KeyScoring, data)
}

// buildSelfHealPrompt asks the model to expand a too-short response
func (e *Engine) buildSelfHealPrompt(c types.RawCandidate, previous string, currentLength int) (string, error) {
	return prompts.Render(prompts.ScoringFile, prompts.KeySelfHeal, map[string]string{
		"Title":              c.Title,
		"Abstract":           truncateAbstract(c.Abstract, e.cfg.AbstractMaxChars),
		"CurrentLength":      strconv.Itoa(currentLength),
		"MinReasoningLength": strconv.Itoa(e.cfg.MinTotalReasoningLength),
		"PreviousResponse":   previous,
	})
}

// truncateAbstract trims to limit runes and marks the cut with "..."
func truncateAbstract(abstract string, limit int) string {
	abstract = strings.TrimSpace(abstract)
	if abstract == "" {
		return "none"
	}
	r := []rune(abstract)
	if limit <= 0 || len(r) <= limit {
		return abstract
	}
	return string(r[:limit]) + "..."
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
