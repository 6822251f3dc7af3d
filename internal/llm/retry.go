package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds a retried model call
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first
	Attempts int
	// Timeout applies to each attempt; zero disables it
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// PolicyFromConfig builds the retry policy for a client Config
func PolicyFromConfig(cfg *Config) RetryPolicy {
	return RetryPolicy{
		Attempts:        cfg.MaxRetries,
		Timeout:         cfg.Timeout,
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempts := max(p.Attempts, 1)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Permanent marks err so that Retry stops immediately
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs op until it succeeds, the policy's attempts are exhausted, op
// returns a Permanent error, or ctx is done. Each attempt gets its own
// timeout-bounded context.
func Retry[T any](ctx context.Context, p RetryPolicy, logger zerolog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		defer cancel()

		out, err := op(attemptCtx)
		if err != nil && (ctx.Err() != nil || errors.Is(err, ErrNoCredential)) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("LLM call failed, retrying")
	}

	out, err := backoff.RetryNotifyWithData(wrapped, p.backOff(ctx), notify)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("LLM call failed after %d attempt(s): %w", attempt, err)
	}
	return out, nil
}
