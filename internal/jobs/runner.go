package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lyricpulse/lyricpulse/internal/logging"
	"github.com/lyricpulse/lyricpulse/internal/pipeline"
	"github.com/lyricpulse/lyricpulse/internal/staging"
)

// Processor executes one pipeline run. *pipeline.Driver satisfies it.
type Processor interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type RunnerConfig struct {
	Repo         Repository
	Store        *staging.Store
	Processor    Processor
	MaxWorkers   int
	PollInterval time.Duration
	RetainInputs bool
	Logger       *slog.Logger
}

// Runner claims pending jobs and runs up to MaxWorkers of them at once.
type Runner struct {
	repo         Repository
	store        *staging.Store
	processor    Processor
	sem          *semaphore.Weighted
	wake         chan struct{}
	pollInterval time.Duration
	retainInputs bool
	logger       *slog.Logger

	wg       sync.WaitGroup
	inflight atomic.Int32
	running  atomic.Bool
	paused   atomic.Bool
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Runner{
		repo:         cfg.Repo,
		store:        cfg.Store,
		processor:    cfg.Processor,
		sem:          semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		wake:         make(chan struct{}, 1),
		pollInterval: cfg.PollInterval,
		retainInputs: cfg.RetainInputs,
		logger:       logging.WithComponent(cfg.Logger, "runner"),
	}
}

// Start blocks until ctx is cancelled, then waits for in-flight jobs.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.dispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping", "in_flight", r.inflight.Load())
			r.wg.Wait()
			r.running.Store(false)
			return
		case <-ticker.C:
			r.dispatch(ctx)
		case <-r.wake:
			r.dispatch(ctx)
		}
	}
}

// Notify asks the runner to look for pending jobs now.
func (r *Runner) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
	r.Notify()
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// InFlight is the number of jobs currently executing.
func (r *Runner) InFlight() int {
	return int(r.inflight.Load())
}

// dispatch starts pending jobs, oldest first, until the pool is full or the
// queue is empty.
func (r *Runner) dispatch(ctx context.Context) {
	for !r.paused.Load() && ctx.Err() == nil {
		if !r.sem.TryAcquire(1) {
			return
		}

		job, err := r.claimNext(ctx)
		if err != nil || job == nil {
			r.sem.Release(1)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("failed to claim job", "error", err)
			}
			return
		}

		r.wg.Add(1)
		r.inflight.Add(1)
		go func() {
			defer r.wg.Done()
			defer r.sem.Release(1)
			defer r.inflight.Add(-1)
			r.process(ctx, job)
		}()
	}
}

func (r *Runner) claimNext(ctx context.Context) (*Job, error) {
	for {
		pending, err := r.repo.ListPendingJobs(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 {
			return nil, nil
		}
		job := pending[0]
		ok, err := r.repo.ClaimJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			job.Status = StatusRunning
			return job, nil
		}
	}
}

func (r *Runner) process(ctx context.Context, job *Job) {
	logger := logging.WithJobID(r.logger, job.ID)
	logger.Info("processing job", "filename", job.OriginalFilename)

	// Writes after the run must land even when shutdown cancelled ctx.
	dbCtx := context.WithoutCancel(ctx)

	stage := pipeline.StateIdle
	observer := func(s pipeline.State) {
		if s == pipeline.StateFailed {
			return
		}
		stage = s
		if err := r.repo.UpdateJobStage(dbCtx, job.ID, string(s)); err != nil {
			logger.Warn("failed to record stage", "stage", s, "error", err)
		}
	}

	res, err := r.processor.Run(ctx, pipeline.Request{
		JobID:         job.ID,
		AudioPath:     job.AudioPath,
		AudioFilename: job.OriginalFilename,
		LyricsPath:    job.LyricsPath,
		OutputDir:     r.store.OutputsDir(),
		Observer:      observer,
	})
	if err != nil {
		failedAt := stage
		var se *pipeline.StageError
		if errors.As(err, &se) {
			failedAt = se.Stage
		}
		if ferr := r.repo.FailJob(dbCtx, job.ID, string(failedAt), err.Error()); ferr != nil {
			logger.Error("failed to record job failure", "error", ferr)
		}
		logger.Error("job failed", "stage", failedAt, "error", err)
	} else {
		outcome := Outcome{
			OutputName: res.OutputName,
			Segments:   len(res.Segments),
			Matched:    res.Matched,
			Tempo:      res.Beats.Tempo,
		}
		if cerr := r.repo.CompleteJob(dbCtx, job.ID, outcome); cerr != nil {
			logger.Error("failed to record job completion", "error", cerr)
		}
		logger.Info("job completed", "output", res.OutputName, "segments", outcome.Segments,
			"matched", outcome.Matched, "elapsed_ms", res.Elapsed.Milliseconds())
	}

	if !r.retainInputs {
		if err := r.store.RemoveJob(job.ID); err != nil {
			logger.Warn("failed to remove job inputs", "error", err)
		}
	}
}
