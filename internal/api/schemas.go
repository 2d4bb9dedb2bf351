package api

import (
	"time"

	"github.com/lyricpulse/lyricpulse/internal/jobs"
	"github.com/lyricpulse/lyricpulse/internal/lyrics"
	"github.com/lyricpulse/lyricpulse/internal/models"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeQueueFull    = "QUEUE_FULL"
	CodeTooLarge     = "TOO_LARGE"
	CodeInternal     = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status  string          `json:"status"`
	Version string          `json:"version"`
	UptimeS int64           `json:"uptime_s"`
	Jobs    map[string]int  `json:"jobs,omitempty"`
	Runner  *RunnerResponse `json:"runner,omitempty"`
	Models  *ModelsResponse `json:"models,omitempty"`
}

type RunnerResponse struct {
	Running  bool `json:"running"`
	Paused   bool `json:"paused"`
	InFlight int  `json:"in_flight"`
}

type ModelsResponse struct {
	Backend       string `json:"backend"`
	HasBeats      bool   `json:"has_beats"`
	HasTranscribe bool   `json:"has_transcribe"`
	LastProbeAt   string `json:"last_probe_at,omitempty"`
	DepsAvail     int    `json:"deps_available"`
	DepsTotal     int    `json:"deps_total"`
}

func ModelsToResponse(c *models.Capabilities) *ModelsResponse {
	if c == nil {
		return nil
	}
	resp := &ModelsResponse{
		Backend:       c.Backend,
		HasBeats:      c.HasBeats,
		HasTranscribe: c.HasTranscribe,
		DepsAvail:     c.Summary.Available,
		DepsTotal:     c.Summary.Total,
	}
	if !c.ProbedAt.IsZero() {
		resp.LastProbeAt = c.ProbedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type UploadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

type TranscribeResponse struct {
	Status        string                     `json:"status"`
	Filename      string                     `json:"filename"`
	Transcription []lyrics.ReconciledSegment `json:"transcription"`
}

type JobResponse struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Stage      string  `json:"stage"`
	Filename   string  `json:"filename"`
	OutputName string  `json:"output_name,omitempty"`
	OutputURL  string  `json:"output_url,omitempty"`
	Segments   int     `json:"segments"`
	Matched    int     `json:"matched"`
	Tempo      float64 `json:"tempo,omitempty"`
	Error      string  `json:"error,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	StartedAt  string  `json:"started_at,omitempty"`
	FinishedAt string  `json:"finished_at,omitempty"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

func JobToResponse(j *jobs.Job) JobResponse {
	resp := JobResponse{
		ID:         j.ID,
		Status:     j.Status,
		Stage:      j.Stage,
		Filename:   j.OriginalFilename,
		OutputName: j.OutputName,
		Segments:   j.Segments,
		Matched:    j.Matched,
		Tempo:      j.Tempo,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if j.OutputName != "" && j.Status == jobs.StatusCompleted {
		resp.OutputURL = "/outputs/" + j.OutputName
	}
	if j.StartedAt != nil {
		resp.StartedAt = j.StartedAt.UTC().Format(time.RFC3339)
	}
	if j.FinishedAt != nil {
		resp.FinishedAt = j.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
