package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/lyricpulse/lyricpulse/internal/staging"
)

// Submission is an upload waiting to become a job.
type Submission struct {
	AudioFilename string
	Audio         io.Reader
	LyricText     string
}

type Service struct {
	repo          Repository
	store         *staging.Store
	maxQueueDepth int
	logger        *slog.Logger

	// notify wakes the runner after a submit. May be nil.
	notify func()

	// serializes the queue depth check with the insert
	mu sync.Mutex
}

func NewService(repo Repository, store *staging.Store, maxQueueDepth int, logger *slog.Logger) *Service {
	return &Service{
		repo:          repo,
		store:         store,
		maxQueueDepth: maxQueueDepth,
		logger:        logger,
	}
}

// OnSubmit registers fn to be called after every accepted submission.
func (s *Service) OnSubmit(fn func()) {
	s.notify = fn
}

// Submit stores the upload and queues a job for it. It returns ErrQueueFull
// without touching disk when max_queue_depth jobs are already pending.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Job, error) {
	if sub.Audio == nil {
		return nil, fmt.Errorf("%w: audio is required", staging.ErrInvalidUpload)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxQueueDepth > 0 {
		counts, err := s.repo.CountByStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("count jobs: %w", err)
		}
		if counts[StatusPending] >= s.maxQueueDepth {
			return nil, ErrQueueFull
		}
	}

	job := &Job{
		ID:               NewID(),
		Status:           StatusPending,
		OriginalFilename: sub.AudioFilename,
	}

	audioPath, err := s.store.SaveAudio(job.ID, sub.AudioFilename, sub.Audio)
	if err != nil {
		s.discard(job.ID)
		return nil, err
	}
	lyricsPath, err := s.store.SaveLyrics(job.ID, sub.LyricText)
	if err != nil {
		s.discard(job.ID)
		return nil, err
	}
	job.AudioPath = audioPath
	job.LyricsPath = lyricsPath

	if err := s.repo.CreateJob(ctx, job); err != nil {
		s.discard(job.ID)
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.Info("job queued", "job_id", job.ID, "filename", job.OriginalFilename)
	if s.notify != nil {
		s.notify()
	}
	return job, nil
}

func (s *Service) discard(jobID string) {
	if err := s.store.RemoveJob(jobID); err != nil {
		s.logger.Warn("failed to remove upload", "job_id", jobID, "error", err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

func (s *Service) Counts(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}

// ActiveJobIDs matches staging.ActiveJobsFunc.
func (s *Service) ActiveJobIDs(ctx context.Context) (map[string]struct{}, error) {
	return s.repo.ActiveJobIDs(ctx)
}
