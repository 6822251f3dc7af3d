// Package storage persists scored candidates to the primary database with a
// local SQLite fallback.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/types"
)

// ErrPrimaryUnavailable is returned (wrapping the primary error) when a batch
// was written to the fallback store instead of the primary store.
var ErrPrimaryUnavailable = errors.New("primary storage unavailable, batch written to fallback")

// syncPageSize bounds how many backlog rows are replayed per round trip
const syncPageSize = 100

// Store writes a batch of ranked candidates atomically
type Store interface {
	SaveCandidates(ctx context.Context, candidates []types.RankedCandidate) error
}

// Manager writes each batch to the primary store, falling back to SQLite.
// After a successful primary write the fallback backlog is replayed.
type Manager struct {
	cfg      config.StorageConfig
	primary  Store
	fallback *SQLiteStore
	ranking  types.Ranking
	logger   zerolog.Logger
	now      func() time.Time
}

// NewManager creates a Manager. primary may be nil, in which case the
// fallback store is the only store and writes to it are not errors.
func NewManager(cfg config.StorageConfig, primary Store, fallback *SQLiteStore, ranking types.Ranking, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		ranking:  ranking,
		logger:   logger.With().Str("component", "storage").Logger(),
		now:      time.Now,
	}
}

// Save persists one batch. It returns nil when the primary store accepted the
// batch, an error wrapping ErrPrimaryUnavailable when only the fallback did,
// and a hard error when neither did.
func (m *Manager) Save(ctx context.Context, candidates []types.ScoredCandidate) error {
	if len(candidates) == 0 {
		return nil
	}
	ranked := m.ranking.RankAll(candidates)

	var primaryErr error
	if m.primary != nil {
		primaryErr = m.withTimeout(ctx, func(ctx context.Context) error {
			return m.primary.SaveCandidates(ctx, ranked)
		})
		if primaryErr == nil {
			m.logger.Info().Int("candidates", len(ranked)).Msg("saved batch to primary storage")
			if n, err := m.SyncBacklog(ctx); err != nil {
				m.logger.Warn().Err(err).Int("synced", n).Msg("fallback backlog sync incomplete")
			}
			m.cleanup(ctx)
			return nil
		}
		m.logger.Warn().Err(primaryErr).Msg("primary storage write failed, using fallback")
	}

	if m.fallback == nil {
		if primaryErr != nil {
			return fmt.Errorf("failed to save candidates: %w", primaryErr)
		}
		return errors.New("no storage configured")
	}

	fallbackErr := m.withTimeout(ctx, func(ctx context.Context) error {
		return m.fallback.SaveCandidates(ctx, ranked)
	})
	if fallbackErr != nil {
		if primaryErr != nil {
			return fmt.Errorf("failed to save to primary and fallback storage: %w", errors.Join(primaryErr, fallbackErr))
		}
		return fmt.Errorf("failed to save to fallback storage: %w", fallbackErr)
	}
	m.logger.Info().Int("candidates", len(ranked)).Msg("saved batch to fallback storage")
	m.cleanup(ctx)

	if primaryErr != nil {
		return fmt.Errorf("%w: %w", ErrPrimaryUnavailable, primaryErr)
	}
	return nil
}

// SyncBacklog replays unsynced fallback rows into the primary store and
// returns how many were replayed.
func (m *Manager) SyncBacklog(ctx context.Context) (int, error) {
	if m.primary == nil || m.fallback == nil {
		return 0, nil
	}

	synced := 0
	for {
		var pending []Pending
		err := m.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			pending, err = m.fallback.Unsynced(ctx, syncPageSize)
			return err
		})
		if err != nil {
			return synced, err
		}
		if len(pending) == 0 {
			break
		}

		batch := make([]types.RankedCandidate, 0, len(pending))
		ids := make([]int64, 0, len(pending))
		for _, p := range pending {
			batch = append(batch, p.Candidate)
			ids = append(ids, p.ID)
		}

		err = m.withTimeout(ctx, func(ctx context.Context) error {
			if err := m.primary.SaveCandidates(ctx, batch); err != nil {
				return fmt.Errorf("failed to replay backlog: %w", err)
			}
			return m.fallback.MarkSynced(ctx, ids)
		})
		if err != nil {
			return synced, err
		}
		synced += len(pending)

		if len(pending) < syncPageSize {
			break
		}
	}

	if synced > 0 {
		m.logger.Info().Int("synced", synced).Msg("replayed fallback backlog into primary storage")
	}
	return synced, nil
}

// cleanup removes synced fallback rows past the retention window
func (m *Manager) cleanup(ctx context.Context) {
	if m.fallback == nil || m.cfg.RetentionDays <= 0 {
		return
	}
	cutoff := m.now().AddDate(0, 0, -m.cfg.RetentionDays)

	var removed int64
	err := m.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		removed, err = m.fallback.DeleteSyncedBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		m.logger.Warn().Err(err).Msg("fallback retention cleanup failed")
		return
	}
	if removed > 0 {
		m.logger.Debug().Int64("removed", removed).Msg("expired synced fallback rows")
	}
}

func (m *Manager) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if timeout := m.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// Backlog reports how many fallback rows are waiting to sync and how many
// were already replayed.
func (m *Manager) Backlog(ctx context.Context) (pending, synced int, err error) {
	if m.fallback == nil {
		return 0, 0, nil
	}
	return m.fallback.Counts(ctx)
}

// Close releases the fallback store
func (m *Manager) Close() error {
	if m.fallback == nil {
		return nil
	}
	return m.fallback.Close()
}
