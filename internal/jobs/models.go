// Package jobs persists render jobs in SQLite and executes them on a bounded
// worker pool.
package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrNotFound is returned for unknown job IDs.
	ErrNotFound = errors.New("job not found")
	// ErrQueueFull is returned when too many jobs are waiting to run.
	ErrQueueFull = errors.New("job queue is full")
)

// Job is one upload's trip through the pipeline.
type Job struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	Stage            string     `json:"stage"`
	OriginalFilename string     `json:"filename"`
	AudioPath        string     `json:"-"`
	LyricsPath       string     `json:"-"`
	OutputName       string     `json:"output_name,omitempty"`
	Segments         int        `json:"segments"`
	Matched          int        `json:"matched"`
	Tempo            float64    `json:"tempo,omitempty"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Outcome is what a successful run records on its job.
type Outcome struct {
	OutputName string
	Segments   int
	Matched    int
	Tempo      float64
}

// NewID returns a fresh job ID.
func NewID() string {
	return uuid.NewString()
}
