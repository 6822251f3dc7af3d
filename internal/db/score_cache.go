package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/benchscope/internal/cache"
)

var _ cache.Backend = (*DB)(nil)

// Get returns a cached value that has not expired.
// It lets DB serve as a scoring cache backend.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.pool.QueryRow(ctx,
		`SELECT value FROM score_cache WHERE key = $1 AND expires_at > NOW()`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read score cache: %w", err)
	}
	return value, true, nil
}

// Set stores value under key for ttl, replacing any previous entry
func (db *DB) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO score_cache (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, time.Now().Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to write score cache: %w", err)
	}
	return nil
}

// PurgeExpiredCache deletes expired cache rows and returns how many were removed
func (db *DB) PurgeExpiredCache(ctx context.Context) (int64, error) {
	result, err := db.pool.Exec(ctx, `DELETE FROM score_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge score cache: %w", err)
	}
	return result.RowsAffected(), nil
}
