package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/benchscope/internal/types"
)

const upsertCandidateSQL = `INSERT INTO candidates (
	url_key, title, url, source, total_score, priority,
	activity_score, reproducibility_score, license_score, novelty_score, relevance_score,
	scored_by, task_domain, github_stars, publish_date, payload
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (url_key) DO UPDATE SET
	title = EXCLUDED.title,
	url = EXCLUDED.url,
	source = EXCLUDED.source,
	total_score = EXCLUDED.total_score,
	priority = EXCLUDED.priority,
	activity_score = EXCLUDED.activity_score,
	reproducibility_score = EXCLUDED.reproducibility_score,
	license_score = EXCLUDED.license_score,
	novelty_score = EXCLUDED.novelty_score,
	relevance_score = EXCLUDED.relevance_score,
	scored_by = EXCLUDED.scored_by,
	task_domain = EXCLUDED.task_domain,
	github_stars = EXCLUDED.github_stars,
	publish_date = EXCLUDED.publish_date,
	payload = EXCLUDED.payload,
	updated_at = NOW()`

// candidateArgs returns the positional arguments of upsertCandidateSQL
func candidateArgs(c types.RankedCandidate) ([]any, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal candidate %q: %w", c.Title, err)
	}

	var taskDomain *string
	if strings.TrimSpace(c.TaskDomain) != "" {
		taskDomain = &c.TaskDomain
	}

	return []any{
		c.NormalizedURL(), c.Title, c.URL, string(c.Source), c.Total, string(c.Tier),
		c.ActivityScore, c.ReproducibilityScore, c.LicenseScore, c.NoveltyScore, c.RelevanceScore,
		string(c.ScoredBy), taskDomain, c.GitHubStars, c.PublishDate, payload,
	}, nil
}

// SaveCandidates upserts a batch in one transaction, keyed by normalized URL.
// Either every row is written or none is.
func (db *DB) SaveCandidates(ctx context.Context, candidates []types.RankedCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range candidates {
		args, err := candidateArgs(c)
		if err != nil {
			return err
		}
		batch.Queue(upsertCandidateSQL, args...)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := tx.SendBatch(ctx, batch)
	for i := range candidates {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to save candidate %q: %w", candidates[i].Title, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to save candidates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit candidates: %w", err)
	}
	return nil
}

// ListCandidates returns stored candidates ordered by total score descending
func (db *DB) ListCandidates(ctx context.Context, filter CandidateFilter) ([]types.RankedCandidate, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}

	query := `SELECT payload FROM candidates WHERE total_score >= $1`
	args := []any{filter.MinScore}
	argNum := 2

	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND updated_at >= $%d", argNum)
		args = append(args, filter.Since)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY total_score DESC, title ASC LIMIT $%d", argNum)
	args = append(args, filter.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var out []types.RankedCandidate
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		var c types.RankedCandidate
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("failed to decode candidate payload: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return out, nil
}
