// Package prefilter provides the deterministic accept/reject gate applied to
// candidates before any paid model call.
package prefilter

import (
	"net/url"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/types"
)

// RejectReason names the first rule a candidate failed
type RejectReason string

// Rejection reasons, listed in evaluation order
const (
	ReasonTitleTooShort     RejectReason = "title too short"
	ReasonAbstractTooShort  RejectReason = "abstract too short"
	ReasonInvalidURL        RejectReason = "invalid URL"
	ReasonUnsupportedSource RejectReason = "unsupported source"
	ReasonNoKeywordMatch    RejectReason = "no keyword match"
	ReasonDuplicateURL      RejectReason = "duplicate URL"
	ReasonDuplicateTitle    RejectReason = "duplicate title"
	ReasonInsufficientStars RejectReason = "insufficient stars"
	ReasonStaleRepository   RejectReason = "stale repository"
	ReasonTechnicalReport   RejectReason = "technical report"
	ReasonExcludedDomain    RejectReason = "excluded domain"
)

// Decision is the outcome of checking one candidate
type Decision struct {
	Accepted bool
	Reason   RejectReason
}

func accept() Decision { return Decision{Accepted: true} }
func reject(reason RejectReason) Decision { return Decision{Reason: reason} }

// Filter applies the prefilter rules to candidate batches
type Filter struct {
	cfg    config.PrefilterConfig
	logger zerolog.Logger
	now    func() time.Time

	keywords          []string
	techReport        []string
	evaluationSignals []string
	excludedDomains   []string
	benchmarkSignals  []string
}

// New creates a Filter. Keyword lists are lower-cased once here.
func New(cfg config.PrefilterConfig, logger zerolog.Logger) *Filter {
	return &Filter{
		cfg:               cfg,
		logger:            logger.With().Str("component", "prefilter").Logger(),
		now:               time.Now,
		keywords:          lowerAll(cfg.Keywords),
		techReport:        lowerAll(cfg.TechReportPatterns),
		evaluationSignals: lowerAll(cfg.EvaluationSignals),
		excludedDomains:   lowerAll(cfg.ExcludedDomainKeywords),
		benchmarkSignals:  lowerAll(cfg.BenchmarkSignals),
	}
}

// batchState tracks what has already been accepted within one batch
type batchState struct {
	seenURLs       map[string]struct{}
	acceptedTitles []string
}

func newBatchState() *batchState {
	return &batchState{seenURLs: make(map[string]struct{})}
}

// Filter returns the candidates that pass every rule, preserving input order.
// It never fails: malformed candidates are rejected, not errored.
func (f *Filter) Filter(candidates []types.RawCandidate) []types.RawCandidate {
	if len(candidates) == 0 {
		return []types.RawCandidate{}
	}

	state := newBatchState()
	out := make([]types.RawCandidate, 0, len(candidates))
	reasons := make(map[RejectReason]int)

	for _, c := range candidates {
		d := f.check(c, state)
		if !d.Accepted {
			reasons[d.Reason]++
			f.logger.Debug().Str("title", c.Title).Str("reason", string(d.Reason)).Msg("candidate rejected")
			continue
		}
		out = append(out, c)
	}

	rate := 100 * (1 - float64(len(out))/float64(len(candidates)))
	event := f.logger.Info().
		Int("input", len(candidates)).
		Int("output", len(out)).
		Float64("rejection_rate", rate)
	reasonDict := zerolog.Dict()
	for reason, n := range reasons {
		reasonDict = reasonDict.Int(string(reason), n)
	}
	event.Dict("rejected", reasonDict).Msg("prefilter completed")

	return out
}

// Decisions returns the per-candidate decision for a batch without logging.
// Useful for diagnostics; the decision for each index matches what Filter would do.
func (f *Filter) Decisions(candidates []types.RawCandidate) []Decision {
	state := newBatchState()
	out := make([]Decision, len(candidates))
	for i, c := range candidates {
		out[i] = f.check(c, state)
	}
	return out
}

// check evaluates the rules in priority order; the first failing rule wins.
// Accepted candidates are recorded in state for the duplicate rules.
func (f *Filter) check(c types.RawCandidate, state *batchState) Decision {
	title := strings.TrimSpace(c.Title)
	abstract := strings.TrimSpace(c.Abstract)

	if runeLen(title) < f.cfg.MinTitleLength {
		return reject(ReasonTitleTooShort)
	}

	minAbstract := f.cfg.MinAbstractLength
	if c.Source == types.SourceGitHub {
		minAbstract = f.cfg.GitHubMinReadmeLength
	}
	if runeLen(abstract) < minAbstract {
		return reject(ReasonAbstractTooShort)
	}

	if !isHTTPURL(c.URL) {
		return reject(ReasonInvalidURL)
	}

	if !c.Source.IsSupported() {
		return reject(ReasonUnsupportedSource)
	}

	text := strings.ToLower(title + " " + abstract)
	if !containsAny(text, f.keywords) {
		return reject(ReasonNoKeywordMatch)
	}

	normalizedURL := c.NormalizedURL()
	if _, seen := state.seenURLs[normalizedURL]; seen {
		return reject(ReasonDuplicateURL)
	}

	lowerTitle := strings.ToLower(title)
	for _, accepted := range state.acceptedTitles {
		if Similarity(lowerTitle, accepted) >= f.cfg.TitleSimilarityThreshold {
			return reject(ReasonDuplicateTitle)
		}
	}

	if c.Source == types.SourceGitHub {
		if d := f.checkGitHub(c); !d.Accepted {
			return d
		}
	}

	if d := f.checkHeuristics(text, strings.ToLower(title)); !d.Accepted {
		return d
	}

	state.seenURLs[normalizedURL] = struct{}{}
	state.acceptedTitles = append(state.acceptedTitles, lowerTitle)
	return accept()
}

// checkGitHub applies the star and recency gates for repositories
func (f *Filter) checkGitHub(c types.RawCandidate) Decision {
	stars := c.Stars()
	if stars < f.cfg.GitHubMinStars {
		return reject(ReasonInsufficientStars)
	}

	if c.PublishDate != nil && stars < f.cfg.GitHubRecencyExemptStars {
		age := f.now().Sub(*c.PublishDate)
		if age > time.Duration(f.cfg.GitHubMaxAgeDays)*24*time.Hour {
			return reject(ReasonStaleRepository)
		}
	}

	return accept()
}

// checkHeuristics excludes technical-report announcements without evaluation
// framing and excluded application domains without benchmark signals.
func (f *Filter) checkHeuristics(text, lowerTitle string) Decision {
	if containsAny(lowerTitle, f.techReport) && !containsAny(text, f.evaluationSignals) {
		return reject(ReasonTechnicalReport)
	}

	if containsAny(text, f.excludedDomains) && !containsAny(text, f.benchmarkSignals) {
		return reject(ReasonExcludedDomain)
	}

	return accept()
}

// Similarity returns a normalized Levenshtein ratio in [0,1]; 1 means identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := runeLen(a), runeLen(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
