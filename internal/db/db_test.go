package db

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/benchscope/internal/types"
)

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS candidates")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS pipeline_runs")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS score_cache")
}

func TestCandidateArgs(t *testing.T) {
	published := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	c := types.DefaultRanking.Rank(types.ScoredCandidate{
		RawCandidate: types.RawCandidate{
			Title:       "SWE-bench Live",
			URL:         "https://GitHub.com/org/swe-bench-live/",
			Source:      types.SourceGitHub,
			GitHubStars: types.IntPtr(1500),
			PublishDate: &published,
		},
		ActivityScore:        9,
		ReproducibilityScore: 9,
		LicenseScore:         9,
		NoveltyScore:         9,
		RelevanceScore:       9,
		TaskDomain:           "Coding",
		ScoredBy:             types.ScoredByLLM,
	})

	args, err := candidateArgs(c)
	require.NoError(t, err)
	require.Len(t, args, 16)

	assert.Equal(t, "https://github.com/org/swe-bench-live", args[0])
	assert.Equal(t, "github", args[3])
	assert.Equal(t, 9.0, args[4])
	assert.Equal(t, "high", args[5])
	assert.Equal(t, "llm", args[11])
	require.NotNil(t, args[12])
	assert.Equal(t, "Coding", *(args[12].(*string)))

	var decoded types.RankedCandidate
	require.NoError(t, json.Unmarshal(args[15].([]byte), &decoded))
	assert.Equal(t, c.Title, decoded.Title)
	assert.Equal(t, types.PriorityHigh, decoded.Tier)
	assert.Equal(t, 1500, decoded.Stars())
}

func TestCandidateArgs_EmptyTaskDomainIsNull(t *testing.T) {
	c := types.DefaultRanking.Rank(types.ScoredCandidate{
		RawCandidate: types.RawCandidate{Title: "x", URL: "https://example.com", Source: types.SourceArxiv},
	})

	args, err := candidateArgs(c)
	require.NoError(t, err)
	assert.Nil(t, args[12].(*string))
}

func TestRunType(t *testing.T) {
	run := Run{Trigger: "manual", Status: RunStatusRunning}

	assert.Equal(t, "manual", run.Trigger)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)
}
