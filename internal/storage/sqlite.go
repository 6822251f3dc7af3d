package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jonathan/benchscope/internal/types"
)

//go:embed migrations/001_fallback.sql
var fallbackMigration string

// SQLiteStore is the local fallback store. Rows written here while the
// primary store is down are replayed later and then expire.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Pending is a fallback row that has not reached the primary store yet
type Pending struct {
	ID        int64
	Candidate types.RankedCandidate
}

// OpenSQLite opens or creates the fallback database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if _, err := sqlDB.Exec(fallbackMigration); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: sqlDB, now: time.Now}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveCandidates upserts candidates as unsynced rows in one transaction
func (s *SQLiteStore) SaveCandidates(ctx context.Context, candidates []types.RankedCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fallback_candidates (url_key, title, source, total_score, payload, created_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(url_key) DO UPDATE SET
			title = excluded.title,
			source = excluded.source,
			total_score = excluded.total_score,
			payload = excluded.payload,
			created_at = excluded.created_at,
			synced_at = NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now().UTC()
	for _, c := range candidates {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal candidate %q: %w", c.Title, err)
		}
		if _, err := stmt.ExecContext(ctx, c.NormalizedURL(), c.Title, string(c.Source), c.Total, string(payload), now); err != nil {
			return fmt.Errorf("failed to save candidate %q: %w", c.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fallback batch: %w", err)
	}
	return nil
}

// Unsynced returns up to limit rows that still need replaying, oldest first
func (s *SQLiteStore) Unsynced(ctx context.Context, limit int) ([]Pending, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload FROM fallback_candidates
		WHERE synced_at IS NULL
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Pending
	for rows.Next() {
		var p Pending
		var payload string
		if err := rows.Scan(&p.ID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan fallback row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &p.Candidate); err != nil {
			return nil, fmt.Errorf("failed to decode fallback row %d: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced stamps rows as replayed into the primary store
func (s *SQLiteStore) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, s.now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE fallback_candidates SET synced_at = ? WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to mark candidates synced: %w", err)
	}
	return nil
}

// DeleteSyncedBefore removes synced rows older than cutoff.
// Unsynced rows are never deleted.
func (s *SQLiteStore) DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM fallback_candidates WHERE synced_at IS NOT NULL AND created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up fallback store: %w", err)
	}
	return result.RowsAffected()
}

// Counts returns the number of pending and synced rows
func (s *SQLiteStore) Counts(ctx context.Context) (pending, synced int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN synced_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN synced_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM fallback_candidates
	`).Scan(&pending, &synced)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count fallback rows: %w", err)
	}
	return pending, synced, nil
}
