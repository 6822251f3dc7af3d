// Package collectors fetches raw benchmark candidates from arXiv, GitHub,
// Papers with Code and HuggingFace.
package collectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/fetch"
	"github.com/jonathan/benchscope/internal/types"
)

// maxAttempts bounds how often a collector request is tried
const maxAttempts = 3

// retryInterval is the first backoff wait between attempts
var retryInterval = time.Second

// Collector fetches candidates from one source
type Collector interface {
	Source() types.Source
	Collect(ctx context.Context) ([]types.RawCandidate, error)
}

// Report is the merged outcome of running several collectors
type Report struct {
	Candidates []types.RawCandidate
	Counts     map[types.Source]int
	Errors     map[types.Source]error
}

// Failed reports whether every collector failed
func (r Report) Failed() bool {
	return len(r.Errors) > 0 && len(r.Errors) == len(r.Counts)
}

// Defaults builds the standard collector set from configuration
func Defaults(cfg config.SourcesConfig, logger zerolog.Logger) []Collector {
	return []Collector{
		NewArxiv(cfg, logger),
		NewGitHub(cfg, logger),
		NewPwC(cfg, logger),
		NewHuggingFace(cfg, logger),
	}
}

// CollectAll runs collectors concurrently. A failing collector is logged and
// recorded in the report; it never aborts the others. Candidates are
// deduplicated by normalized URL, keeping the first one in collector order.
func CollectAll(ctx context.Context, collectors []Collector, logger zerolog.Logger) Report {
	results := make([][]types.RawCandidate, len(collectors))
	errs := make([]error, len(collectors))

	var g errgroup.Group
	for i, c := range collectors {
		g.Go(func() error {
			start := time.Now()
			found, err := c.Collect(ctx)
			if err != nil {
				logger.Error().Err(err).Str("source", string(c.Source())).Msg("collector failed")
				errs[i] = err
				return nil
			}
			logger.Info().
				Str("source", string(c.Source())).
				Int("candidates", len(found)).
				Dur("duration", time.Since(start)).
				Msg("collector finished")
			results[i] = found
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Counts: make(map[types.Source]int, len(collectors)),
		Errors: make(map[types.Source]error),
	}
	seen := make(map[string]bool)
	for i, c := range collectors {
		report.Counts[c.Source()] += len(results[i])
		if errs[i] != nil {
			report.Errors[c.Source()] = errs[i]
		}
		for _, cand := range results[i] {
			key := cand.NormalizedURL()
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			report.Candidates = append(report.Candidates, cand)
		}
	}
	return report
}

// getWithRetry retries transient request failures with exponential backoff.
// Client errors other than 429 are not retried.
func getWithRetry(ctx context.Context, logger zerolog.Logger, run func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInterval
	b.MaxInterval = 8 * retryInterval
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		err := run(ctx)
		if err == nil {
			return nil
		}
		var fetchErr *fetch.Error
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if errors.As(err, &fetchErr) && fetchErr.StatusCode >= 400 && fetchErr.StatusCode < 500 && fetchErr.StatusCode != 429 {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("collector request failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("request failed after %d attempt(s): %w", attempt, err)
	}
	return nil
}

// cutoff returns the oldest publish time a collector accepts
func cutoff(now time.Time, lookbackDays int) time.Time {
	if lookbackDays <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -lookbackDays)
}
