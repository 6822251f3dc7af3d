// Package scoring turns prefiltered candidates into scored candidates using
// the language model, the scoring cache, a backend rule scorer and a
// heuristic fallback.
package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/benchscope/internal/cache"
	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/llm"
	"github.com/jonathan/benchscope/internal/prompts"
	"github.com/jonathan/benchscope/internal/types"
)

// requestTemperature keeps scoring output stable across runs
const requestTemperature = 0.1

// Engine scores candidates. Score never fails: every internal error degrades
// to the heuristic fallback.
type Engine struct {
	cfg     config.ScoringConfig
	client  llm.Client
	cache   *cache.ScoreCache
	backend *BackendScorer
	policy  llm.RetryPolicy
	logger  zerolog.Logger
}

// NewEngine creates an Engine. A nil client means no credential is
// configured and every non-backend candidate takes the fallback path.
func NewEngine(cfg config.ScoringConfig, client llm.Client, scoreCache *cache.ScoreCache, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		client:  client,
		cache:   scoreCache,
		backend: NewBackendScorer(cfg.BackendSignals, cfg.BackendMinSignalHits),
		policy:  llm.PolicyFromConfig(llm.DefaultConfig()),
		logger:  logger.With().Str("component", "scoring").Logger(),
	}
}

// WithRetryPolicy overrides the model call retry policy
func (e *Engine) WithRetryPolicy(p llm.RetryPolicy) *Engine {
	e.policy = p
	return e
}

// Score scores one candidate
func (e *Engine) Score(ctx context.Context, c types.RawCandidate) (scored types.ScoredCandidate) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("title", c.Title).Msg("scoring panicked, using fallback")
			scored = e.merge(c, fallbackResult(c, "internal error"), types.ScoredByFallback)
		}
	}()

	if e.backend.Matches(c) {
		e.logger.Info().Str("title", c.Title).Msg("using backend rule scorer")
		return e.merge(c, e.backend.Score(c), types.ScoredByBackend)
	}

	if cached, ok := e.cache.Get(ctx, c); ok {
		return e.merge(c, cached, types.ScoredByCache)
	}

	if e.client == nil {
		e.logger.Warn().Str("title", c.Title).Msg("no LLM credential configured, using rule-based fallback")
		return e.merge(c, fallbackResult(c, "no LLM credential configured"), types.ScoredByFallback)
	}

	outcome, err := e.callModel(ctx, c)
	if err != nil {
		e.logger.Error().Err(err).Str("title", c.Title).Msg("LLM scoring failed, using fallback")
		return e.merge(c, fallbackResult(c, "model call failed"), types.ScoredByFallback)
	}

	result := e.selfHeal(ctx, c, outcome)
	e.cache.Put(ctx, c, result)
	return e.merge(c, result, types.ScoredByLLM)
}

// callModel requests a score with retries; parse and validation failures
// are retried like transport errors.
func (e *Engine) callModel(ctx context.Context, c types.RawCandidate) (attemptOutcome, error) {
	prompt, err := e.buildPrompt(c)
	if err != nil {
		return attemptOutcome{}, fmt.Errorf("failed to build prompt: %w", err)
	}
	return llm.Retry(ctx, e.policy, e.logger, func(ctx context.Context) (attemptOutcome, error) {
		return e.request(ctx, prompt)
	})
}

func (e *Engine) request(ctx context.Context, prompt string) (attemptOutcome, error) {
	text, err := e.client.GenerateJSON(ctx, llm.Request{
		System:      prompts.MustGet(prompts.ScoringFile, prompts.KeySystem),
		Prompt:      prompt,
		Temperature: requestTemperature,
	})
	if err != nil {
		return attemptOutcome{}, err
	}
	return parseResponse(text)
}

// selfHeal asks the model to expand reasoning that is too short, keeping the
// longest valid response. It never fails the candidate.
func (e *Engine) selfHeal(ctx context.Context, c types.RawCandidate, best attemptOutcome) *types.ScoringResult {
	minLength := e.cfg.MinTotalReasoningLength
	for attempt := 1; attempt <= e.cfg.MaxSelfHealAttempts; attempt++ {
		current := best.result.ReasoningLength()
		if current >= minLength {
			return best.result
		}

		prompt, err := e.buildSelfHealPrompt(c, best.raw, current)
		if err != nil {
			e.logger.Warn().Err(err).Msg("failed to build self-heal prompt")
			break
		}

		healPolicy := e.policy
		healPolicy.Attempts = 1
		next, err := llm.Retry(ctx, healPolicy, e.logger, func(ctx context.Context) (attemptOutcome, error) {
			return e.request(ctx, prompt)
		})
		if err != nil {
			e.logger.Warn().Err(err).Int("attempt", attempt).Str("title", c.Title).Msg("self-heal call failed")
			break
		}
		if next.result.ReasoningLength() > current {
			best = next
		}
	}

	if length := best.result.ReasoningLength(); length < minLength {
		e.logger.Warn().
			Str("title", c.Title).
			Int("reasoning_length", length).
			Int("required", minLength).
			Msg("reasoning still below minimum after self-heal, accepting result")
	}
	return best.result
}

// ScoreBatch scores candidates with bounded concurrency and returns them
// sorted by total score, highest first, ties broken by title.
func (e *Engine) ScoreBatch(ctx context.Context, candidates []types.RawCandidate) []types.ScoredCandidate {
	if len(candidates) == 0 {
		return []types.ScoredCandidate{}
	}

	start := time.Now()
	results := make([]types.ScoredCandidate, len(candidates))

	var g errgroup.Group
	g.SetLimit(max(e.cfg.Concurrency, 1))
	for i, c := range candidates {
		g.Go(func() error {
			results[i] = e.Score(ctx, c)
			return nil
		})
	}
	_ = g.Wait() // Score never returns an error

	SortByTotal(results, e.cfg.Ranking)

	counts := make(map[types.ScoredBy]int)
	for _, r := range results {
		counts[r.ScoredBy]++
	}
	e.logger.Info().
		Int("count", len(results)).
		Int("concurrency", e.cfg.Concurrency).
		Int("llm", counts[types.ScoredByLLM]).
		Int("cache", counts[types.ScoredByCache]).
		Int("backend", counts[types.ScoredByBackend]).
		Int("fallback", counts[types.ScoredByFallback]).
		Dur("elapsed", time.Since(start)).
		Msg("batch scoring completed")

	return results
}

// SortByTotal orders candidates by ranking total descending, then title
func SortByTotal(candidates []types.ScoredCandidate, ranking types.Ranking) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ti, tj := ranking.Total(candidates[i]), ranking.Total(candidates[j])
		if ti != tj {
			return ti > tj
		}
		return candidates[i].Title < candidates[j].Title
	})
}
