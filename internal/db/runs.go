package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRun creates a new pipeline run record and returns its ID
func (db *DB) CreateRun(ctx context.Context, trigger string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, trigger, status) VALUES ($1, $2, $3)`,
		id, trigger, RunStatusRunning,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun records the final status and stage counts of a run
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status RunStatus, stats RunStats, runErr string) error {
	var errText *string
	if runErr != "" {
		errText = &runErr
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE pipeline_runs
		 SET status = $1, collected = $2, prefiltered = $3, scored = $4, high = $5, medium = $6,
		     fallback = $7, error = $8, completed_at = NOW()
		 WHERE id = $9`,
		status, stats.Collected, stats.Prefiltered, stats.Scored, stats.High, stats.Medium,
		stats.Fallback, errText, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

const runColumns = `id, trigger, status, collected, prefiltered, scored, high, medium, fallback,
	COALESCE(error, ''), created_at, completed_at`

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.Trigger, &run.Status,
		&run.Stats.Collected, &run.Stats.Prefiltered, &run.Stats.Scored,
		&run.Stats.High, &run.Stats.Medium, &run.Stats.Fallback,
		&run.Error, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun retrieves a pipeline run by ID. Returns nil when it does not exist.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	run, err := scanRun(db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs WHERE id = $1`, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves recent pipeline runs, newest first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
