package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/benchscope/internal/cache"
	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/llm"
	"github.com/jonathan/benchscope/internal/types"
)

// MockLLMClient implements llm.Client for testing
type MockLLMClient struct {
	calls            atomic.Int32
	GenerateJSONFunc func(ctx context.Context, req llm.Request) (string, error)
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	m.calls.Add(1)
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, req)
	}
	return "", errors.New("mock not configured")
}

func (m *MockLLMClient) Model() string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

func (m *MockLLMClient) Calls() int { return int(m.calls.Load()) }

var fastPolicy = llm.RetryPolicy{
	Attempts:        3,
	Timeout:         time.Second,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func testScoringConfig() config.ScoringConfig {
	cfg := config.Default().Scoring
	cfg.MinTotalReasoningLength = 0
	return cfg
}

func newTestEngine(cfg config.ScoringConfig, client llm.Client, scoreCache *cache.ScoreCache) *Engine {
	return NewEngine(cfg, client, scoreCache, zerolog.Nop()).WithRetryPolicy(fastPolicy)
}

func newMemoryCache() *cache.ScoreCache {
	return cache.NewScoreCache(cache.NewMemoryBackend(), config.Default().Cache, zerolog.Nop())
}

func candidate(title string) types.RawCandidate {
	return types.RawCandidate{
		Title:    title,
		URL:      "https://arxiv.org/abs/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Source:   types.SourceArxiv,
		Abstract: "A benchmark of coding tasks for language agents with a public harness.",
	}
}

func responseJSON(t *testing.T, score float64, reasoning string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"activity_score":        score,
		"reproducibility_score": score,
		"license_score":         score,
		"novelty_score":         score,
		"relevance_score":       score,
		"score_reasoning":       reasoning,
		"task_domain":           "Coding",
		"metrics":               []string{"Pass@1"},
		"baselines":             nil,
		"institution":           "Princeton University",
		"authors":               []string{"Carlos Jimenez"},
		"dataset_size":          2294,
	})
	require.NoError(t, err)
	return string(body)
}

func assertWellFormed(t *testing.T, s types.ScoredCandidate) {
	t.Helper()
	for _, v := range []float64{s.ActivityScore, s.ReproducibilityScore, s.LicenseScore, s.NoveltyScore, s.RelevanceScore} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 10.0)
	}
	assert.NotEmpty(t, s.Reasoning)
}

func TestScore_NoCredentialAlwaysCompletes(t *testing.T) {
	e := newTestEngine(testScoringConfig(), nil, nil)

	inputs := []types.RawCandidate{
		candidate("Plain arxiv benchmark"),
		{Title: "No abstract at all", URL: "https://example.com/x", Source: types.SourceGitHub},
		{Title: "", URL: "", Source: "unknown"},
	}
	for _, in := range inputs {
		got := e.Score(context.Background(), in)
		assertWellFormed(t, got)
		assert.True(t, got.IsFallback())
		assert.Equal(t, types.ScoredByFallback, got.ScoredBy)
		assert.Contains(t, got.Reasoning, types.FallbackReasoning)
	}
}

func TestScore_FallbackScenario(t *testing.T) {
	e := newTestEngine(testScoringConfig(), nil, nil)
	c := candidate("Popular dataset benchmark")
	c.GitHubStars = types.IntPtr(1500)
	c.DatasetURL = "https://huggingface.co/datasets/org/bench"

	got := e.Score(context.Background(), c)

	assert.Equal(t, 9.0, got.ActivityScore)
	assert.Equal(t, 6.0, got.ReproducibilityScore)
	assert.Equal(t, 5.0, got.LicenseScore)
	assert.Equal(t, 5.0, got.NoveltyScore)
	assert.Equal(t, 5.0, got.RelevanceScore)
	assert.True(t, strings.HasPrefix(got.Reasoning, types.FallbackReasoning))
	assert.Equal(t, types.DefaultTaskDomain, got.TaskDomain)
}

func TestActivityFromStars(t *testing.T) {
	tests := []struct {
		stars int
		want  float64
	}{
		{0, 5.0}, {99, 5.0}, {100, 6.0}, {499, 6.0}, {500, 7.5}, {999, 7.5}, {1000, 9.0}, {50000, 9.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, activityFromStars(tt.stars), "stars=%d", tt.stars)
	}
}

func TestFallbackResult_ReproducibilityCapped(t *testing.T) {
	c := candidate("Full artifacts")
	c.GitHubURL = "https://github.com/org/bench"
	c.DatasetURL = "https://huggingface.co/datasets/org/bench"

	r := fallbackResult(c, "test")
	assert.Equal(t, 9.0, r.ReproducibilityScore)
	assert.Contains(t, r.ScoreReasoning, "code repository and dataset")
}

func TestScore_ModelSuccess(t *testing.T) {
	mock := &MockLLMClient{}
	var gotReq llm.Request
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		gotReq = req
		return responseJSON(t, 8, "Solid benchmark with clear metrics."), nil
	}
	e := newTestEngine(testScoringConfig(), mock, nil)

	got := e.Score(context.Background(), candidate("Model scored benchmark"))

	assert.Equal(t, types.ScoredByLLM, got.ScoredBy)
	assert.False(t, got.IsFallback())
	assert.Equal(t, 8.0, got.TotalScore())
	assert.Equal(t, types.PriorityHigh, got.Priority())
	assert.Equal(t, "Coding", got.TaskDomain)
	assert.Equal(t, []string{"Pass@1"}, got.Metrics)
	assert.Equal(t, "Princeton University", got.Institution)
	assert.Equal(t, []string{"Carlos Jimenez"}, got.Authors)
	require.NotNil(t, got.DatasetSize)
	assert.Equal(t, 2294, *got.DatasetSize)

	assert.Contains(t, gotReq.System, "strict JSON")
	assert.Contains(t, gotReq.Prompt, "Model scored benchmark")
	assert.InDelta(t, 0.1, gotReq.Temperature, 1e-6)
}

func TestScore_CodeFencedResponse(t *testing.T) {
	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return "```json\n" + responseJSON(t, 7, "Fenced but valid response.") + "\n```", nil
	}
	e := newTestEngine(testScoringConfig(), mock, nil)

	got := e.Score(context.Background(), candidate("Fenced response benchmark"))
	assert.Equal(t, types.ScoredByLLM, got.ScoredBy)
	assert.Equal(t, 7.0, got.ActivityScore)
	assert.Equal(t, 1, mock.Calls())
}

func TestScore_RetryThenFallback(t *testing.T) {
	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("503 service unavailable")
	}
	e := newTestEngine(testScoringConfig(), mock, nil)

	got := e.Score(context.Background(), candidate("Always failing benchmark"))

	assert.Equal(t, fastPolicy.Attempts, mock.Calls())
	assert.True(t, got.IsFallback())
	assertWellFormed(t, got)
}

func TestScore_InvalidResponseIsRetried(t *testing.T) {
	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		switch mock.Calls() {
		case 1:
			return "not json at all", nil
		case 2:
			return `{"activity_score": 42, "reproducibility_score": 1, "license_score": 1,
				"novelty_score": 1, "relevance_score": 1, "score_reasoning": "out of range"}`, nil
		default:
			return responseJSON(t, 6, "Third time is valid."), nil
		}
	}
	e := newTestEngine(testScoringConfig(), mock, nil)

	got := e.Score(context.Background(), candidate("Flaky response benchmark"))
	assert.Equal(t, 3, mock.Calls())
	assert.Equal(t, types.ScoredByLLM, got.ScoredBy)
	assert.Equal(t, 6.0, got.RelevanceScore)
}

func TestScore_CacheTransparency(t *testing.T) {
	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return responseJSON(t, 7.5, "Cached benchmark reasoning."), nil
	}
	e := newTestEngine(testScoringConfig(), mock, newMemoryCache())
	c := candidate("Cached benchmark")

	first := e.Score(context.Background(), c)
	second := e.Score(context.Background(), c)

	assert.Equal(t, 1, mock.Calls())
	assert.Equal(t, types.ScoredByLLM, first.ScoredBy)
	assert.Equal(t, types.ScoredByCache, second.ScoredBy)

	second.ScoredBy = first.ScoredBy
	assert.Equal(t, first, second)
}

func TestScore_FallbackIsNotCached(t *testing.T) {
	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("down")
	}
	e := newTestEngine(testScoringConfig(), mock, newMemoryCache())
	c := candidate("Uncached fallback benchmark")

	e.Score(context.Background(), c)
	e.Score(context.Background(), c)

	assert.Equal(t, 2*fastPolicy.Attempts, mock.Calls())
}

func TestScore_BackendRouting(t *testing.T) {
	mock := &MockLLMClient{}
	e := newTestEngine(testScoringConfig(), mock, newMemoryCache())

	byKeywords := types.RawCandidate{
		Title:       "Database throughput benchmark",
		URL:         "https://github.com/org/dbbench",
		Source:      types.SourceGitHub,
		Abstract:    "Measures query latency and throughput of distributed SQL engines.",
		LicenseType: "Apache-2.0",
		GitHubStars: types.IntPtr(600),
	}
	byPlatform := types.RawCandidate{
		Title:       "Framework round 23",
		URL:         "https://www.techempower.com/benchmarks/",
		Source:      types.SourceGitHub,
		RawMetadata: map[string]string{types.MetaPlatform: "TechEmpower"},
	}

	for _, c := range []types.RawCandidate{byKeywords, byPlatform} {
		got := e.Score(context.Background(), c)
		assert.Equal(t, types.ScoredByBackend, got.ScoredBy)
		assert.Equal(t, "Backend", got.TaskDomain)
		assertWellFormed(t, got)
	}

	assert.Equal(t, 0, mock.Calls())
	got := e.Score(context.Background(), byKeywords)
	assert.Equal(t, 10.0, got.LicenseScore)
	assert.Equal(t, 7.5, got.ActivityScore)
}

func TestBackendScorer_Matches(t *testing.T) {
	b := NewBackendScorer(config.DefaultBackendSignals, 2)

	one := candidate("Single signal")
	one.Abstract = "A benchmark for graphql agents."
	assert.False(t, b.Matches(one))

	two := candidate("Two signals")
	two.Abstract = "A benchmark for graphql schemas served by a microservice."
	assert.True(t, b.Matches(two))

	meta := candidate("Metadata signals").WithMetadata("notes", "backend database")
	assert.True(t, b.Matches(meta))
}

func TestLicenseScore(t *testing.T) {
	assert.Equal(t, 10.0, licenseScore("MIT"))
	assert.Equal(t, 10.0, licenseScore("Apache-2.0"))
	assert.Equal(t, 7.0, licenseScore("GPL-3.0"))
	assert.Equal(t, 4.0, licenseScore("CC-BY-4.0"))
	assert.Equal(t, 2.0, licenseScore(""))
	assert.Equal(t, 2.0, licenseScore("proprietary"))
}

func TestScore_SelfHealExpandsReasoning(t *testing.T) {
	cfg := testScoringConfig()
	cfg.MinTotalReasoningLength = 200
	cfg.MaxSelfHealAttempts = 2

	long := strings.Repeat("Detailed evidence about the harness and metrics. ", 6)
	mock := &MockLLMClient{}
	var prompts []string
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		prompts = append(prompts, req.Prompt)
		if mock.Calls() == 1 {
			return responseJSON(t, 7, "Too short reasoning."), nil
		}
		return responseJSON(t, 7, long), nil
	}
	e := newTestEngine(cfg, mock, nil)

	got := e.Score(context.Background(), candidate("Self healing benchmark"))

	assert.Equal(t, 2, mock.Calls())
	assert.Equal(t, strings.TrimSpace(long), got.Reasoning)
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "Previous response")
}

func TestScore_SelfHealIsBounded(t *testing.T) {
	cfg := testScoringConfig()
	cfg.MinTotalReasoningLength = 5000
	cfg.MaxSelfHealAttempts = 2

	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return responseJSON(t, 7, "Still short reasoning."), nil
	}
	e := newTestEngine(cfg, mock, nil)

	got := e.Score(context.Background(), candidate("Stubborn benchmark"))

	assert.Equal(t, 1+cfg.MaxSelfHealAttempts, mock.Calls())
	assert.Equal(t, types.ScoredByLLM, got.ScoredBy)
	assert.Equal(t, "Still short reasoning.", got.Reasoning)
}

func TestScore_SelfHealFailureKeepsFirstResult(t *testing.T) {
	cfg := testScoringConfig()
	cfg.MinTotalReasoningLength = 5000

	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		if mock.Calls() == 1 {
			return responseJSON(t, 7, "Short but valid."), nil
		}
		return "", errors.New("quota exceeded")
	}
	e := newTestEngine(cfg, mock, nil)

	got := e.Score(context.Background(), candidate("Quota benchmark"))
	assert.Equal(t, 2, mock.Calls())
	assert.Equal(t, types.ScoredByLLM, got.ScoredBy)
	assert.Equal(t, "Short but valid.", got.Reasoning)
}

func TestScoreBatch_SortedAndBounded(t *testing.T) {
	scores := map[string]float64{
		"Alpha benchmark": 6,
		"Bravo benchmark": 9,
		"Delta benchmark": 6,
		"Charlie bench":   3,
		"Echo benchmark":  8,
	}

	var inFlight, peak atomic.Int32
	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		for title, score := range scores {
			if strings.Contains(req.Prompt, "Title: "+title+"\n") {
				return responseJSON(t, score, "Reasoning for "+title), nil
			}
		}
		return "", errors.New("unknown title")
	}

	cfg := testScoringConfig()
	cfg.Concurrency = 2
	e := newTestEngine(cfg, mock, nil)

	var in []types.RawCandidate
	for title := range scores {
		in = append(in, candidate(title))
	}

	out := e.ScoreBatch(context.Background(), in)
	require.Len(t, out, len(in))

	var titles []string
	for _, s := range out {
		titles = append(titles, s.Title)
		assert.Equal(t, types.ScoredByLLM, s.ScoredBy)
	}
	assert.Equal(t, []string{"Bravo benchmark", "Echo benchmark", "Alpha benchmark", "Delta benchmark", "Charlie bench"}, titles)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestScoreBatch_Empty(t *testing.T) {
	e := newTestEngine(testScoringConfig(), nil, nil)
	out := e.ScoreBatch(context.Background(), nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestScoreBatch_CancelledContextStillScoresEveryCandidate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return "", ctx.Err()
	}
	e := newTestEngine(testScoringConfig(), mock, newMemoryCache())

	in := []types.RawCandidate{candidate("First cancelled"), candidate("Second cancelled"), candidate("Third cancelled")}
	out := e.ScoreBatch(ctx, in)

	require.Len(t, out, 3)
	for _, s := range out {
		assert.True(t, s.IsFallback())
		assertWellFormed(t, s)
	}
}

func TestScoreBatch_ConcurrentCacheAccess(t *testing.T) {
	mock := &MockLLMClient{}
	mock.GenerateJSONFunc = func(ctx context.Context, req llm.Request) (string, error) {
		return responseJSON(t, 7, "Concurrent reasoning."), nil
	}
	e := newTestEngine(testScoringConfig(), mock, newMemoryCache())

	in := make([]types.RawCandidate, 0, 20)
	for i := 0; i < 20; i++ {
		in = append(in, candidate("Shared benchmark"))
	}

	out := e.ScoreBatch(context.Background(), in)
	assert.Len(t, out, 20)
	assert.LessOrEqual(t, mock.Calls(), 20)
	assert.GreaterOrEqual(t, mock.Calls(), 1)
}
