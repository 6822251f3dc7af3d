// Package pipeline provides the high-level orchestration for a collection run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/collectors"
	"github.com/jonathan/benchscope/internal/db"
	"github.com/jonathan/benchscope/internal/observability"
	"github.com/jonathan/benchscope/internal/prefilter"
	"github.com/jonathan/benchscope/internal/storage"
	"github.com/jonathan/benchscope/internal/types"
)

// Step names reported through ProgressEvent
const (
	StepCollect   = "collect"
	StepPrefilter = "prefilter"
	StepEnrich    = "enrich"
	StepScore     = "score"
	StepStore     = "store"
	StepNotify    = "notify"
)

// ErrAllCollectorsFailed is returned when no collector produced a result
var ErrAllCollectorsFailed = errors.New("all collectors failed")

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Count   int    `json:"count"`
	RunID   string `json:"run_id,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Scorer scores a prefiltered batch
type Scorer interface {
	ScoreBatch(ctx context.Context, candidates []types.RawCandidate) []types.ScoredCandidate
}

// Enricher adds deep-content metadata to candidates
type Enricher interface {
	EnrichAll(ctx context.Context, candidates []types.RawCandidate) []types.RawCandidate
}

// Saver persists one scored batch
type Saver interface {
	Save(ctx context.Context, candidates []types.ScoredCandidate) error
}

// Notifier delivers batch notifications and operational alerts
type Notifier interface {
	Notify(ctx context.Context, candidates []types.ScoredCandidate) error
	Alert(ctx context.Context, text string) error
}

// RunRecorder tracks pipeline runs
type RunRecorder interface {
	CreateRun(ctx context.Context, trigger string) (uuid.UUID, error)
	CompleteRun(ctx context.Context, runID uuid.UUID, status db.RunStatus, stats db.RunStats, runErr string) error
}

// Deps are the components a Pipeline drives. Filter and Scorer are required;
// a nil Enricher, Storage, Notifier or Runs skips that stage.
type Deps struct {
	Collectors []collectors.Collector
	Filter     *prefilter.Filter
	Enricher   Enricher
	Scorer     Scorer
	Storage    Saver
	Notifier   Notifier
	Runs       RunRecorder
	Ranking    types.Ranking
}

// RunOptions holds per-run switches
type RunOptions struct {
	// Trigger is recorded on the run, e.g. "cli" or "schedule"
	Trigger string
	// DryRun collects and scores but skips storage, notifications and run records
	DryRun bool
	// SkipNotify skips the notification stage
	SkipNotify bool
	OnProgress ProgressCallback
}

// Result summarizes one run
type Result struct {
	RunID           uuid.UUID
	Status          db.RunStatus
	Stats           db.RunStats
	Scored          []types.ScoredCandidate
	CollectorErrors map[types.Source]error
	Duration        time.Duration
}

// Pipeline runs collect → prefilter → enrich → score → store → notify
type Pipeline struct {
	deps   Deps
	logger zerolog.Logger
}

// New creates a Pipeline
func New(deps Deps, logger zerolog.Logger) (*Pipeline, error) {
	if deps.Filter == nil {
		return nil, errors.New("pipeline requires a prefilter")
	}
	if deps.Scorer == nil {
		return nil, errors.New("pipeline requires a scorer")
	}
	if deps.Ranking.Weights.Sum() == 0 {
		deps.Ranking = types.DefaultRanking
	}
	return &Pipeline{deps: deps, logger: observability.Component(logger, "pipeline")}, nil
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *RunOptions, runID uuid.UUID, step, message string, count int) {
	if opts.OnProgress == nil {
		return
	}
	ev := ProgressEvent{Step: step, Message: message, Count: count}
	if runID != uuid.Nil {
		ev.RunID = runID.String()
	}
	opts.OnProgress(ev)
}

// Run executes one collection run. Collected candidates are always scored;
// storage and notification problems are reported on the Result status and
// alerted, and a hard storage or notification failure is also returned.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := time.Now()
	result := &Result{Status: db.RunStatusRunning}
	logger := p.logger

	if p.deps.Runs != nil && !opts.DryRun {
		runID, err := p.deps.Runs.CreateRun(ctx, opts.Trigger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create run record, continuing without it")
		} else {
			result.RunID = runID
			logger = logger.With().Str(observability.FieldRunID, runID.String()).Logger()
		}
	}

	report := collectors.CollectAll(ctx, p.deps.Collectors, logger)
	result.CollectorErrors = report.Errors
	result.Stats.Collected = len(report.Candidates)
	emitProgress(&opts, result.RunID, StepCollect, fmt.Sprintf("Collected %d candidates", len(report.Candidates)), len(report.Candidates))

	if len(p.deps.Collectors) > 0 && report.Failed() {
		err := ErrAllCollectorsFailed
		p.alert(ctx, opts, fmt.Sprintf("BenchScope run failed: %v", errors.Join(collectorErrs(report)...)), logger)
		return p.finish(ctx, opts, result, start, db.RunStatusFailed, err, logger)
	}

	filtered := p.deps.Filter.Filter(report.Candidates)
	result.Stats.Prefiltered = len(filtered)
	emitProgress(&opts, result.RunID, StepPrefilter, fmt.Sprintf("%d of %d candidates passed the prefilter", len(filtered), len(report.Candidates)), len(filtered))

	if p.deps.Enricher != nil && len(filtered) > 0 {
		filtered = p.deps.Enricher.EnrichAll(ctx, filtered)
		emitProgress(&opts, result.RunID, StepEnrich, "Enriched candidates with paper sections", len(filtered))
	}

	scored := p.deps.Scorer.ScoreBatch(ctx, filtered)
	result.Scored = scored
	p.countTiers(result, scored)
	emitProgress(&opts, result.RunID, StepScore, fmt.Sprintf("Scored %d candidates (%d high, %d medium)", len(scored), result.Stats.High, result.Stats.Medium), len(scored))

	if opts.DryRun {
		logger.Info().Int("scored", len(scored)).Msg("dry run, skipping storage and notifications")
		result.Status = db.RunStatusCompleted
		result.Duration = time.Since(start)
		return result, nil
	}

	status := db.RunStatusCompleted
	var runErr error

	if p.deps.Storage != nil && len(scored) > 0 {
		err := p.deps.Storage.Save(ctx, scored)
		switch {
		case err == nil:
			emitProgress(&opts, result.RunID, StepStore, fmt.Sprintf("Stored %d candidates", len(scored)), len(scored))
		case errors.Is(err, storage.ErrPrimaryUnavailable):
			status = db.RunStatusDegraded
			logger.Warn().Err(err).Msg("primary storage unavailable, batch kept in fallback store")
			p.alert(ctx, opts, fmt.Sprintf("BenchScope storage degraded: %d candidates written to the local fallback store. %v", len(scored), err), logger)
			emitProgress(&opts, result.RunID, StepStore, "Stored candidates in fallback storage", len(scored))
		default:
			status = db.RunStatusFailed
			runErr = fmt.Errorf("storage failed: %w", err)
			logger.Error().Err(err).Msg("failed to store candidates")
			p.alert(ctx, opts, fmt.Sprintf("BenchScope storage failed: %v", err), logger)
		}
	}

	if p.deps.Notifier != nil && !opts.SkipNotify {
		if err := p.deps.Notifier.Notify(ctx, scored); err != nil {
			logger.Error().Err(err).Msg("failed to send notifications")
			status = db.RunStatusFailed
			runErr = errors.Join(runErr, fmt.Errorf("notification failed: %w", err))
		} else {
			emitProgress(&opts, result.RunID, StepNotify, "Notifications sent", len(scored))
		}
	}

	return p.finish(ctx, opts, result, start, status, runErr, logger)
}

func (p *Pipeline) countTiers(result *Result, scored []types.ScoredCandidate) {
	result.Stats.Scored = len(scored)
	for _, c := range scored {
		switch p.deps.Ranking.Priority(c) {
		case types.PriorityHigh:
			result.Stats.High++
		case types.PriorityMedium:
			result.Stats.Medium++
		}
		if c.IsFallback() {
			result.Stats.Fallback++
		}
	}
}

// finish records the final status and returns runErr
func (p *Pipeline) finish(ctx context.Context, opts RunOptions, result *Result, start time.Time, status db.RunStatus, runErr error, logger zerolog.Logger) (*Result, error) {
	result.Status = status
	result.Duration = time.Since(start)

	if p.deps.Runs != nil && result.RunID != uuid.Nil && !opts.DryRun {
		msg := ""
		if runErr != nil {
			msg = runErr.Error()
		}
		// The run context may already be cancelled; the record still needs writing
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := p.deps.Runs.CompleteRun(recordCtx, result.RunID, status, result.Stats, msg); err != nil {
			logger.Warn().Err(err).Msg("failed to complete run record")
		}
	}

	event := logger.Info()
	if runErr != nil {
		event = logger.Error().Err(runErr)
	}
	event.
		Str("status", string(status)).
		Int("collected", result.Stats.Collected).
		Int("prefiltered", result.Stats.Prefiltered).
		Int("scored", result.Stats.Scored).
		Int("high", result.Stats.High).
		Int("medium", result.Stats.Medium).
		Int("fallback", result.Stats.Fallback).
		Dur("duration", result.Duration).
		Msg("pipeline run finished")

	return result, runErr
}

// alert sends an operational message; failures are only logged
func (p *Pipeline) alert(ctx context.Context, opts RunOptions, text string, logger zerolog.Logger) {
	if p.deps.Notifier == nil || opts.SkipNotify || opts.DryRun {
		return
	}
	if err := p.deps.Notifier.Alert(ctx, text); err != nil {
		logger.Warn().Err(err).Msg("failed to send alert")
	}
}

func collectorErrs(report collectors.Report) []error {
	errs := make([]error, 0, len(report.Errors))
	for source, err := range report.Errors {
		errs = append(errs, fmt.Errorf("%s: %w", source, err))
	}
	return errs
}
