package prefilter

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/types"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	f := New(config.Default().Prefilter, zerolog.Nop())
	f.now = func() time.Time { return fixedNow }
	return f
}

func arxivCandidate(title, url string) types.RawCandidate {
	return types.RawCandidate{
		Title:    title,
		URL:      url,
		Source:   types.SourceArxiv,
		Abstract: "We introduce a benchmark for evaluating coding agents on real repositories.",
	}
}

func githubCandidate(url string, stars int, pushed time.Time) types.RawCandidate {
	return types.RawCandidate{
		Title:       "org/agent-bench evaluation harness",
		URL:         url,
		Source:      types.SourceGitHub,
		Abstract:    strings.Repeat("benchmark harness for agents ", 20),
		GitHubStars: types.IntPtr(stars),
		PublishDate: types.TimePtr(pushed),
	}
}

func TestFilter_EmptyInput(t *testing.T) {
	f := newTestFilter(t)

	out := f.Filter(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestFilter_AcceptsValidCandidate(t *testing.T) {
	f := newTestFilter(t)
	c := arxivCandidate("CodeAgentBench: evaluating repository agents", "https://arxiv.org/abs/2501.00001")

	out := f.Filter([]types.RawCandidate{c})
	require.Len(t, out, 1)
	assert.Equal(t, c.Title, out[0].Title)
}

func TestFilter_Rules(t *testing.T) {
	valid := arxivCandidate("CodeAgentBench: evaluating repository agents", "https://arxiv.org/abs/2501.00001")

	tests := []struct {
		name   string
		mutate func(c *types.RawCandidate)
		reason RejectReason
	}{
		{
			name:   "short title",
			mutate: func(c *types.RawCandidate) { c.Title = "Bench" },
			reason: ReasonTitleTooShort,
		},
		{
			name:   "title of whitespace",
			mutate: func(c *types.RawCandidate) { c.Title = "                 " },
			reason: ReasonTitleTooShort,
		},
		{
			name:   "short abstract",
			mutate: func(c *types.RawCandidate) { c.Abstract = "A benchmark." },
			reason: ReasonAbstractTooShort,
		},
		{
			name:   "ftp url",
			mutate: func(c *types.RawCandidate) { c.URL = "ftp://example.com/bench" },
			reason: ReasonInvalidURL,
		},
		{
			name:   "url without host",
			mutate: func(c *types.RawCandidate) { c.URL = "https://" },
			reason: ReasonInvalidURL,
		},
		{
			name:   "empty url",
			mutate: func(c *types.RawCandidate) { c.URL = "" },
			reason: ReasonInvalidURL,
		},
		{
			name:   "unsupported source",
			mutate: func(c *types.RawCandidate) { c.Source = "reddit" },
			reason: ReasonUnsupportedSource,
		},
		{
			name: "no keyword",
			mutate: func(c *types.RawCandidate) {
				c.Title = "A study of cooking recipes"
				c.Abstract = "We collect recipes from many cuisines and compare them."
			},
			reason: ReasonNoKeywordMatch,
		},
		{
			name: "technical report without evaluation framing",
			mutate: func(c *types.RawCandidate) {
				c.Title = "Nova-7B Technical Report for agent workloads"
				c.Abstract = "We describe the training recipe of an agent model and its data mixture."
			},
			reason: ReasonTechnicalReport,
		},
		{
			name: "excluded domain without benchmark signal",
			mutate: func(c *types.RawCandidate) {
				c.Title = "DriveScenes: a dataset of urban traffic"
				c.Abstract = "A large dataset for autonomous driving perception with lidar frames."
			},
			reason: ReasonExcludedDomain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFilter(t)
			c := valid
			tt.mutate(&c)

			decisions := f.Decisions([]types.RawCandidate{c})
			require.Len(t, decisions, 1)
			assert.False(t, decisions[0].Accepted)
			assert.Equal(t, tt.reason, decisions[0].Reason)
			assert.Empty(t, f.Filter([]types.RawCandidate{c}))
		})
	}
}

func TestFilter_KeywordMatchIsCaseInsensitive(t *testing.T) {
	f := newTestFilter(t)
	c := arxivCandidate("LEADERBOARD for Multilingual Models", "https://arxiv.org/abs/2501.00002")
	c.Abstract = "We release a public LEADERBOARD covering forty languages."

	assert.Len(t, f.Filter([]types.RawCandidate{c}), 1)
}

func TestFilter_TechnicalReportWithEvaluationPasses(t *testing.T) {
	f := newTestFilter(t)
	c := arxivCandidate("Nova-7B Technical Report for agent workloads", "https://arxiv.org/abs/2501.00003")
	c.Abstract = "We report a full evaluation on twelve agent benchmarks with a public harness."

	assert.Len(t, f.Filter([]types.RawCandidate{c}), 1)
}

func TestFilter_ExcludedDomainWithBenchmarkPasses(t *testing.T) {
	f := newTestFilter(t)
	c := arxivCandidate("DriveBench: reasoning about traffic scenes", "https://arxiv.org/abs/2501.00004")
	c.Abstract = "A benchmark for autonomous driving question answering with vision-language models."

	assert.Len(t, f.Filter([]types.RawCandidate{c}), 1)
}

func TestFilter_DuplicateURLNormalized(t *testing.T) {
	f := newTestFilter(t)
	pushed := fixedNow.AddDate(0, 0, -10)

	first := githubCandidate("https://github.com/org/bench/", 200, pushed)
	second := githubCandidate("https://GitHub.com/org/bench", 200, pushed)
	second.Title = "a completely different agent benchmark title"

	out := f.Filter([]types.RawCandidate{first, second})
	require.Len(t, out, 1)
	assert.Equal(t, first.URL, out[0].URL)

	decisions := f.Decisions([]types.RawCandidate{first, second})
	assert.Equal(t, ReasonDuplicateURL, decisions[1].Reason)
}

func TestFilter_NearDuplicateTitleKeepsFirst(t *testing.T) {
	f := newTestFilter(t)
	first := arxivCandidate("SWE-Bench Live: A Benchmark for Issue Resolving", "https://arxiv.org/abs/2505.00001")
	second := arxivCandidate("SWE-bench Live: a benchmark for issue resolving.", "https://huggingface.co/papers/2505.00001")
	second.Source = types.SourceHuggingFace

	out := f.Filter([]types.RawCandidate{first, second})
	require.Len(t, out, 1)
	assert.Equal(t, first.URL, out[0].URL)

	decisions := f.Decisions([]types.RawCandidate{first, second})
	assert.True(t, decisions[0].Accepted)
	assert.Equal(t, ReasonDuplicateTitle, decisions[1].Reason)
}

func TestFilter_RejectedCandidateDoesNotBlockLaterDuplicate(t *testing.T) {
	f := newTestFilter(t)
	rejected := arxivCandidate("CodeAgentBench: evaluating repository agents", "https://arxiv.org/abs/2501.00001")
	rejected.Abstract = "short"
	accepted := arxivCandidate("CodeAgentBench: evaluating repository agents", "https://arxiv.org/abs/2501.00001")

	out := f.Filter([]types.RawCandidate{rejected, accepted})
	require.Len(t, out, 1)
	assert.Equal(t, accepted.Abstract, out[0].Abstract)
}

func TestFilter_GitHubRules(t *testing.T) {
	tests := []struct {
		name     string
		stars    int
		ageDays  int
		accepted bool
		reason   RejectReason
	}{
		{name: "recent with enough stars", stars: 50, ageDays: 30, accepted: true},
		{name: "too few stars", stars: 3, ageDays: 30, reason: ReasonInsufficientStars},
		{name: "stale", stars: 50, ageDays: 400, reason: ReasonStaleRepository},
		{name: "stale but popular", stars: 5000, ageDays: 400, accepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFilter(t)
			c := githubCandidate("https://github.com/org/agent-bench", tt.stars, fixedNow.AddDate(0, 0, -tt.ageDays))

			d := f.Decisions([]types.RawCandidate{c})[0]
			assert.Equal(t, tt.accepted, d.Accepted)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestFilter_GitHubReadmeLength(t *testing.T) {
	f := newTestFilter(t)
	c := githubCandidate("https://github.com/org/agent-bench", 50, fixedNow)
	c.Abstract = "A small benchmark README that is well over twenty characters."

	d := f.Decisions([]types.RawCandidate{c})[0]
	assert.Equal(t, ReasonAbstractTooShort, d.Reason)
}

func TestFilter_PreservesOrder(t *testing.T) {
	f := newTestFilter(t)
	in := []types.RawCandidate{
		arxivCandidate("Zeta agent benchmark for spreadsheets", "https://arxiv.org/abs/1"),
		arxivCandidate("Alpha leaderboard of tool use models", "https://arxiv.org/abs/2"),
		arxivCandidate("Mid evaluation suite for browser tasks", "https://arxiv.org/abs/3"),
	}

	out := f.Filter(in)
	require.Len(t, out, 3)
	for i := range in {
		assert.Equal(t, in[i].URL, out[i].URL)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	f := newTestFilter(t)
	pushed := fixedNow.AddDate(0, 0, -5)
	in := []types.RawCandidate{
		arxivCandidate("SWE-Bench Live: A Benchmark for Issue Resolving", "https://arxiv.org/abs/2505.00001"),
		arxivCandidate("SWE-bench Live: a benchmark for issue resolving.", "https://arxiv.org/abs/2505.00002"),
		arxivCandidate("Bench", "https://arxiv.org/abs/2505.00003"),
		githubCandidate("https://github.com/org/bench/", 120, pushed),
		githubCandidate("https://github.com/org/bench", 120, pushed),
		arxivCandidate("WebArena Pro: realistic web navigation tasks", "https://arxiv.org/abs/2505.00004"),
	}

	once := f.Filter(in)
	twice := f.Filter(once)
	assert.Equal(t, once, twice)
	assert.Len(t, once, 3)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("abc", "abc"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.InDelta(t, 0.75, Similarity("abcd", "abce"), 1e-9)
}
