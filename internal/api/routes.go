package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lyricpulse/lyricpulse/internal/jobs"
	"github.com/lyricpulse/lyricpulse/internal/staging"
)

const defaultMaxUploadBytes = 200 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSLocalhost())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.APIToken, cfg.Logger))

		r.Post("/upload", uploadHandler(cfg))
		r.Post("/transcribe", transcribeHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Get("/outputs/{name}", outputHandler(cfg))
		r.Head("/outputs/{name}", outputHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}

		if cfg.Jobs != nil {
			if counts, err := cfg.Jobs.Counts(r.Context()); err == nil {
				resp.Jobs = counts
			} else {
				resp.Status = "degraded"
				cfg.Logger.Warn("health: failed to count jobs", "error", err)
			}
		}
		if cfg.Runner != nil {
			resp.Runner = &RunnerResponse{
				Running:  cfg.Runner.IsRunning(),
				Paused:   cfg.Runner.IsPaused(),
				InFlight: cfg.Runner.InFlight(),
			}
		}
		if cfg.Models != nil {
			resp.Models = ModelsToResponse(cfg.Models.Peek())
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := parseForm(w, r, cfg.MaxUploadBytes)
		if err != nil {
			writeFormError(w, err)
			return
		}
		defer form.close()

		if form.audio == nil {
			WriteError(w, http.StatusBadRequest, "audio file is required", CodeBadRequest)
			return
		}
		if !form.hasText {
			WriteError(w, http.StatusBadRequest, "lyric text is required", CodeBadRequest)
			return
		}

		job, err := cfg.Jobs.Submit(r.Context(), jobs.Submission{
			AudioFilename: form.audioName,
			Audio:         form.audio,
			LyricText:     form.text,
		})
		switch {
		case errors.Is(err, jobs.ErrQueueFull):
			w.Header().Set("Retry-After", "30")
			WriteError(w, http.StatusServiceUnavailable, "too many jobs are waiting, try again later", CodeQueueFull)
			return
		case errors.Is(err, staging.ErrInvalidUpload):
			WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
			return
		case err != nil:
			cfg.Logger.Error("failed to queue job", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to queue job", CodeInternal)
			return
		}

		WriteJSON(w, http.StatusAccepted, UploadResponse{
			Status:  "Processing started",
			Message: "Check the server logs for progress.",
			JobID:   job.ID,
		})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 500 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500", CodeBadRequest)
				return
			}
			limit = n
		}

		list, err := cfg.Jobs.List(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", CodeInternal)
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(list))}
		for i, j := range list {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", CodeBadRequest)
			return
		}

		job, err := cfg.Jobs.Get(r.Context(), id)
		if errors.Is(err, jobs.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "job not found", CodeNotFound)
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), CodeInternal)
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func outputHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := cfg.Outputs.ServeOutput(w, r, name); err != nil {
			cfg.Logger.Error("output stream error", "error", err, "name", name)
		}
	}
}
