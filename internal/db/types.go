package db

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a pipeline run
type RunStatus string

// Run statuses
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	// RunStatusDegraded marks a run that finished but had to use a fallback store
	RunStatusDegraded RunStatus = "degraded"
	RunStatusFailed   RunStatus = "failed"
)

// RunStats are the per-stage counts recorded on completion
type RunStats struct {
	Collected   int `json:"collected"`
	Prefiltered int `json:"prefiltered"`
	Scored      int `json:"scored"`
	High        int `json:"high"`
	Medium      int `json:"medium"`
	Fallback    int `json:"fallback"`
}

// Run represents a pipeline run record
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Trigger     string     `json:"trigger"`
	Status      RunStatus  `json:"status"`
	Stats       RunStats   `json:"stats"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CandidateFilter restricts ListCandidates
type CandidateFilter struct {
	// Since excludes candidates last updated before this time when non-zero
	Since    time.Time
	MinScore float64
	Limit    int
}

// DefaultListLimit is used when a filter does not set Limit
const DefaultListLimit = 200
