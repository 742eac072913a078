package model

import (
	"encoding/json"
	"time"
)

// RunKind distinguishes the batch jobs that record runs.
type RunKind string

const (
	RunKindEnrich RunKind = "enrich"
	RunKindDedupe RunKind = "dedupe"
)

// RunStatus represents the current state of a batch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
)

// Run is the bookkeeping row for one batch run.
type Run struct {
	ID         string          `json:"id"`
	Kind       RunKind         `json:"kind"`
	Status     RunStatus       `json:"status"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
