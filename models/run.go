package models

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SearchRun records one execution of a saved search.
type SearchRun struct {
	ID           string     `json:"id" db:"id"`
	SearchID     string     `json:"search_id" db:"search_id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	Stage        string     `json:"stage" db:"stage"`
	ResultsFound int        `json:"results_found" db:"results_found"`
	ResultsNew   int        `json:"results_new" db:"results_new"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
}

// SavedSearch is a named FilterCriteria executed on a schedule.
type SavedSearch struct {
	ID       string         `json:"id" yaml:"id" db:"id"`
	Name     string         `json:"name" yaml:"name" db:"name"`
	Criteria FilterCriteria `json:"criteria" yaml:"criteria" db:"criteria"`
	Enabled  bool           `json:"enabled" yaml:"enabled" db:"enabled"`
}

// Export is a pending or uploaded JSON dump of a run's results.
type Export struct {
	ID         string          `json:"id" db:"id"`
	RunID      string          `json:"run_id" db:"run_id"`
	SearchID   string          `json:"search_id" db:"search_id"`
	Key        string          `json:"key" db:"key"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	Status     string          `json:"status" db:"status"`
	Attempts   int             `json:"attempts" db:"attempts"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UploadedAt *time.Time      `json:"uploaded_at" db:"uploaded_at"`
}

const (
	ExportStatusPending  = "pending"
	ExportStatusUploaded = "uploaded"
	ExportStatusFailed   = "failed"
)
