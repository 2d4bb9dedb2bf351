package models

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lyricpulse/lyricpulse/internal/logging"
	"github.com/lyricpulse/lyricpulse/internal/lyrics"
)

// Factory builds a Backend.
type Factory func() (Backend, error)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Subprocess SubprocessConfig
	HTTP       HTTPConfig
}

// NewFactory returns a Factory for the backend named in opts.
func NewFactory(opts Options) Factory {
	return func() (Backend, error) {
		switch opts.Backend {
		case BackendSubprocess, "":
			return NewSubprocessBackend(opts.Subprocess)
		case BackendHTTP:
			return NewHTTPBackend(opts.HTTP), nil
		default:
			return nil, fmt.Errorf("unknown model backend %q", opts.Backend)
		}
	}
}

// Handle is the process-wide model handle. The backend is built, probed and
// warmed once, on first use, and then shared by every job. Handle itself
// implements BeatExtractor and Transcriber.
type Handle struct {
	factory Factory
	model   string
	logger  *slog.Logger

	once    sync.Once
	backend Backend
	doctor  atomic.Pointer[CachedDoctor]
	err     error
}

// NewHandle returns an uninitialised handle. Nothing runs until the first
// call that needs the backend.
func NewHandle(factory Factory, model string, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handle{
		factory: factory,
		model:   model,
		logger:  logging.WithComponent(logger, "models"),
	}
}

// Backend returns the shared backend, initialising it on the first call.
// An initialisation failure is sticky for the life of the process.
func (h *Handle) Backend(ctx context.Context) (Backend, error) {
	h.once.Do(func() {
		h.init(context.WithoutCancel(ctx))
	})
	return h.backend, h.err
}

func (h *Handle) init(ctx context.Context) {
	b, err := h.factory()
	if err != nil {
		h.err = fmt.Errorf("initialise model backend: %w", err)
		h.logger.Error("model backend unavailable", "error", err)
		return
	}
	h.backend = b
	doctor := NewCachedDoctor(b, h.logger)
	h.doctor.Store(doctor)

	caps, err := doctor.Get(ctx)
	switch {
	case err != nil:
		h.logger.Warn("model capabilities unknown", "backend", b.Name(), "error", err)
	case !caps.HasBeats || !caps.HasTranscribe:
		h.logger.Warn("model backend is missing capabilities",
			"backend", b.Name(),
			"beats", caps.HasBeats,
			"transcribe", caps.HasTranscribe,
		)
	}

	if err := b.Warm(ctx, h.model); err != nil {
		h.logger.Warn("model warm-up failed", "model", h.model, "error", err)
	}
	h.logger.Info("model handle ready", "backend", b.Name(), "model", h.model)
}

// ExtractBeats implements BeatExtractor.
func (h *Handle) ExtractBeats(ctx context.Context, audioPath string) (BeatTrack, error) {
	b, err := h.Backend(ctx)
	if err != nil {
		return BeatTrack{}, err
	}
	return b.ExtractBeats(ctx, audioPath)
}

// Transcribe implements Transcriber.
func (h *Handle) Transcribe(ctx context.Context, audioPath string) ([]lyrics.TranscriptSegment, error) {
	b, err := h.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.Transcribe(ctx, audioPath)
}

// Capabilities returns the backend's (cached) doctor report.
func (h *Handle) Capabilities(ctx context.Context) (*Capabilities, error) {
	if _, err := h.Backend(ctx); err != nil {
		return nil, err
	}
	return h.doctor.Load().Get(ctx)
}

// Peek returns the last doctor report without initialising or probing.
func (h *Handle) Peek() *Capabilities {
	doctor := h.doctor.Load()
	if doctor == nil {
		return nil
	}
	return doctor.Peek()
}
