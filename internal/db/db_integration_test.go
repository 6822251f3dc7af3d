//go:build integration
// +build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/benchscope/internal/types"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to DB: %v", err)
	}
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestRunLifecycle_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	runID, err := db.CreateRun(ctx, "test")
	require.NoError(t, err)

	run, err := db.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)

	stats := RunStats{Collected: 10, Prefiltered: 6, Scored: 6, High: 1, Medium: 2, Fallback: 1}
	require.NoError(t, db.CompleteRun(ctx, runID, RunStatusCompleted, stats, ""))

	run, err = db.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, stats, run.Stats)
	assert.NotNil(t, run.CompletedAt)

	runs, err := db.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, runs)

	missing, err := db.GetRun(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, db.CompleteRun(ctx, uuid.New(), RunStatusFailed, RunStats{}, "boom"))
}

func TestSaveCandidates_UpsertByNormalizedURL_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	url := "https://example.com/bench-" + uuid.NewString()
	first := types.DefaultRanking.Rank(types.ScoredCandidate{
		RawCandidate:  types.RawCandidate{Title: "Integration bench", URL: url + "/", Source: types.SourceArxiv},
		ActivityScore: 5, ReproducibilityScore: 5, LicenseScore: 5, NoveltyScore: 5, RelevanceScore: 5,
		ScoredBy: types.ScoredByFallback,
	})
	second := first
	second.ActivityScore = 9.5
	second = types.DefaultRanking.Rank(second.ScoredCandidate)

	require.NoError(t, db.SaveCandidates(ctx, []types.RankedCandidate{first}))
	require.NoError(t, db.SaveCandidates(ctx, []types.RankedCandidate{second}))

	out, err := db.ListCandidates(ctx, CandidateFilter{MinScore: second.Total, Since: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	var found int
	for _, c := range out {
		if c.NormalizedURL() == types.NormalizeURL(url) {
			found++
			assert.Equal(t, 9.5, c.ActivityScore)
		}
	}
	assert.Equal(t, 1, found)
}

func TestScoreCache_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	key := "benchscope:test:" + uuid.NewString()
	_, found, err := db.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.Set(ctx, key, `{"activity_score":7}`, time.Minute))
	value, found, err := db.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"activity_score":7}`, value)

	require.NoError(t, db.Set(ctx, key, "expired", -time.Minute))
	_, found, err = db.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	purged, err := db.PurgeExpiredCache(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(1))
}
