package scoring

import (
	"strings"
	"unicode"

	"github.com/jonathan/benchscope/internal/types"
)

// merge combines a raw candidate with a scoring result. Extracted values win
// over raw hints, but an empty extracted value never replaces a populated one.
func (e *Engine) merge(c types.RawCandidate, r *types.ScoringResult, by types.ScoredBy) types.ScoredCandidate {
	out := types.ScoredCandidate{
		RawCandidate: c,

		ActivityScore:        clampScore(r.ActivityScore),
		ReproducibilityScore: clampScore(r.ReproducibilityScore),
		LicenseScore:         clampScore(r.LicenseScore),
		NoveltyScore:         clampScore(r.NoveltyScore),
		RelevanceScore:       clampScore(r.RelevanceScore),
		Reasoning:            orDefault(strings.TrimSpace(r.ScoreReasoning), "no reasoning returned"),

		ActivityReasoning:        r.ActivityReasoning,
		ReproducibilityReasoning: r.ReproducibilityReasoning,
		LicenseReasoning:         r.LicenseReasoning,
		NoveltyReasoning:         r.NoveltyReasoning,
		RelevanceReasoning:       r.RelevanceReasoning,

		TaskDomain:             orDefault(deref(r.TaskDomain), orDefault(taskDomainHint(c.TaskType), types.DefaultTaskDomain)),
		Metrics:                e.limit(firstNonEmpty(r.Metrics, splitList(c.Meta(types.MetaRawMetrics)))),
		Baselines:              e.limit(firstNonEmpty(r.Baselines, splitList(c.Meta(types.MetaRawBaselines)))),
		Institution:            orDefault(deref(r.Institution), c.Meta(types.MetaRawInstitutions)),
		DatasetSize:            r.DatasetSize,
		DatasetSizeDescription: orDefault(deref(r.DatasetSizeDescription), c.Meta(types.MetaRawDatasetSize)),

		ScoredBy: by,
	}

	if len(r.Authors) > 0 {
		out.Authors = append([]string(nil), r.Authors...)
	}
	return out
}

// taskDomainHint maps a collector task type onto the task domain vocabulary,
// ignoring case and separators. Unknown task types map to "".
func taskDomainHint(taskType string) string {
	key := domainKey(taskType)
	if key == "" {
		return ""
	}
	for _, option := range types.TaskDomainOptions {
		if domainKey(option) == key {
			return option
		}
	}
	if option, ok := taskDomainAliases[key]; ok {
		return option
	}
	return ""
}

var taskDomainAliases = map[string]string{
	"code":           "Coding",
	"codegeneration": "Coding",
	"webdevelopment": "WebDev",
	"agentops":       "LLM/AgentOps",
	"research":       "DeepResearch",
}

func domainKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '/':
			return -1
		}
		return unicode.ToLower(r)
	}, strings.TrimSpace(s))
}

func (e *Engine) limit(items []string) []string {
	if n := e.cfg.MaxExtractedMetrics; n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func firstNonEmpty(primary, secondary []string) []string {
	if len(primary) > 0 {
		return append([]string(nil), primary...)
	}
	return secondary
}

// splitList splits a comma separated hint into trimmed entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
