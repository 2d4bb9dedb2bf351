package staging

import (
	"context"
	"log/slog"
	"time"

	"github.com/lyricpulse/lyricpulse/internal/logging"
)

// DefaultOrphanAge is how old an upload directory must be before the
// janitor treats it as abandoned.
const DefaultOrphanAge = 24 * time.Hour

// ActiveJobsFunc returns the IDs of jobs whose inputs must be kept.
type ActiveJobsFunc func(ctx context.Context) (map[string]struct{}, error)

// Janitor periodically removes expired outputs and abandoned uploads.
type Janitor struct {
	store           *Store
	active          ActiveJobsFunc
	interval        time.Duration
	outputRetention time.Duration
	orphanAge       time.Duration
	logger          *slog.Logger
}

// NewJanitor creates a Janitor. A zero outputRetention keeps outputs
// forever.
func NewJanitor(store *Store, active ActiveJobsFunc, interval, outputRetention time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Janitor{
		store:           store,
		active:          active,
		interval:        interval,
		outputRetention: outputRetention,
		orphanAge:       DefaultOrphanAge,
		logger:          logging.WithComponent(logger, "janitor"),
	}
}

// Run sweeps immediately and then every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		return
	}
	j.Sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass.
func (j *Janitor) Sweep(ctx context.Context) CleanStaleResult {
	var result CleanStaleResult

	result.merge(CleanStale(ctx, j.store.OutputsDir(), j.outputRetention, nil, j.logger))

	keep := map[string]struct{}{}
	if j.active != nil {
		active, err := j.active(ctx)
		if err != nil {
			// Without the active set any upload could belong to a live job.
			j.logger.Warn("skipping upload sweep", "error", err)
			return result
		}
		keep = active
	}
	result.merge(CleanStale(ctx, j.store.UploadsDir(), j.orphanAge, keep, j.logger))

	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		j.logger.Info("cleanup sweep finished",
			"removed", len(result.Removed),
			"errors", len(result.Errors),
		)
	}
	return result
}
