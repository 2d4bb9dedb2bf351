package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lyricpulse/lyricpulse/internal/logging"
	"github.com/lyricpulse/lyricpulse/internal/lyrics"
	"github.com/lyricpulse/lyricpulse/internal/models"
	"github.com/lyricpulse/lyricpulse/internal/render"
	"github.com/lyricpulse/lyricpulse/internal/staging"
	"github.com/lyricpulse/lyricpulse/internal/timeline"
)

// Renderer turns a timeline and its audio into a video file.
type Renderer interface {
	Render(ctx context.Context, tl timeline.Timeline, audioPath, outPath string) error
}

// DurationProber measures audio duration when the beat model does not
// report it.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Config wires a Driver to its collaborators.
type Config struct {
	Beats       models.BeatExtractor
	Transcriber models.Transcriber
	Reconciler  *lyrics.Reconciler
	Renderer    Renderer
	Prober      DurationProber // optional
	Style       timeline.Style
	Logger      *slog.Logger
}

// Driver runs the alignment and render pipeline. It holds no per-run state
// and is safe for concurrent use.
type Driver struct {
	beats       models.BeatExtractor
	transcriber models.Transcriber
	reconciler  *lyrics.Reconciler
	renderer    Renderer
	prober      DurationProber
	style       timeline.Style
	logger      *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(cfg Config) *Driver {
	if cfg.Reconciler == nil {
		cfg.Reconciler = lyrics.NewReconciler()
	}
	if cfg.Style.Width == 0 {
		cfg.Style = timeline.DefaultStyle()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Driver{
		beats:       cfg.Beats,
		transcriber: cfg.Transcriber,
		reconciler:  cfg.Reconciler,
		renderer:    cfg.Renderer,
		prober:      cfg.Prober,
		style:       cfg.Style,
		logger:      logging.WithComponent(cfg.Logger, "pipeline"),
	}
}

// Request describes one render.
type Request struct {
	JobID string
	// AudioPath is the stored audio file. AudioFilename is the name the
	// client uploaded it as and determines the output name.
	AudioPath     string
	AudioFilename string
	// Lyrics come from LyricText, or from LyricsPath when it is set.
	LyricText  string
	LyricsPath string
	OutputDir  string
	Observer   Observer
}

// Result is the outcome of a successful run.
type Result struct {
	OutputPath string                     `json:"output_path"`
	OutputName string                     `json:"output_name"`
	Beats      models.BeatTrack           `json:"beats"`
	Audio      models.AudioTrack          `json:"audio"`
	Segments   []lyrics.ReconciledSegment `json:"segments"`
	Matched    int                        `json:"matched"`
	Elapsed    time.Duration              `json:"elapsed"`
}

// run tracks the state of one Run or Align call.
type run struct {
	state    State
	observer Observer
	logger   *slog.Logger
	entered  time.Time
}

func (r *run) enter(s State) {
	if r.state != StateIdle && !r.entered.IsZero() {
		r.logger.Debug("stage finished", "stage", r.state, "duration_ms", time.Since(r.entered).Milliseconds())
	}
	r.state = s
	r.entered = time.Now()
	if r.observer != nil {
		r.observer(s)
	}
	if !s.Terminal() {
		r.logger.Info("stage started", "stage", s)
	}
}

func (r *run) fail(err error) error {
	stage := r.state
	r.logger.Error("pipeline failed", "stage", stage, "error", err)
	r.state = StateFailed
	if r.observer != nil {
		r.observer(StateFailed)
	}
	return &StageError{Stage: stage, Err: err}
}

// Run executes every stage for req. On failure the returned error is a
// *StageError and no output file exists.
func (d *Driver) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	logger := d.logger
	if req.JobID != "" {
		logger = logging.WithJobID(logger, req.JobID)
	}
	r := &run{state: StateIdle, observer: req.Observer, logger: logger}
	if r.observer != nil {
		r.observer(StateIdle)
	}

	var res Result

	// loading
	r.enter(StateLoading)
	if err := ctx.Err(); err != nil {
		return res, r.fail(err)
	}
	if d.beats == nil || d.transcriber == nil || d.renderer == nil {
		return res, r.fail(errors.New("pipeline is not fully configured"))
	}
	if req.OutputDir == "" {
		return res, r.fail(errors.New("output directory is required"))
	}
	if err := checkAudio(req.AudioPath); err != nil {
		return res, r.fail(err)
	}
	lyricText, err := loadLyrics(req)
	if err != nil {
		return res, r.fail(err)
	}
	beats, err := d.beats.ExtractBeats(ctx, req.AudioPath)
	if err != nil {
		return res, r.fail(fmt.Errorf("beat extraction: %w", err))
	}
	res.Beats = beats
	res.Audio = models.AudioTrack{Path: req.AudioPath, Duration: beats.Duration}
	if res.Audio.Duration <= 0 && d.prober != nil {
		if dur, err := d.prober.ProbeDuration(ctx, req.AudioPath); err == nil {
			res.Audio.Duration = dur
		} else {
			logger.Warn("audio duration probe failed", "error", err)
		}
	}
	logger.Info("beats extracted",
		"bpm", fmt.Sprintf("%.2f", beats.Tempo),
		"beats", len(beats.Times),
		"duration_s", res.Audio.Duration,
	)

	// transcribing
	r.enter(StateTranscribing)
	if err := ctx.Err(); err != nil {
		return res, r.fail(err)
	}
	transcript, err := d.transcriber.Transcribe(ctx, req.AudioPath)
	if err != nil {
		return res, r.fail(fmt.Errorf("transcription: %w", err))
	}
	logger.Info("transcription complete", "segments", len(transcript))

	// reconciling
	r.enter(StateReconciling)
	if err := ctx.Err(); err != nil {
		return res, r.fail(err)
	}
	res.Segments = d.reconciler.Reconcile(transcript, lyricText)
	res.Matched = countMatched(res.Segments)
	logger.Info("lyrics reconciled", "segments", len(res.Segments), "matched", res.Matched)

	// composing
	r.enter(StateComposing)
	if err := ctx.Err(); err != nil {
		return res, r.fail(err)
	}
	if res.Audio.Duration <= 0 {
		res.Audio.Duration = lastEnd(res.Segments)
	}
	if res.Audio.Duration <= 0 {
		return res, r.fail(errors.New("audio duration is unknown"))
	}
	tl := timeline.Build(res.Segments, beats.Times, res.Audio.Duration, d.style)

	// rendering
	r.enter(StateRendering)
	if err := ctx.Err(); err != nil {
		return res, r.fail(err)
	}
	name := req.AudioFilename
	if name == "" {
		name = filepath.Base(req.AudioPath)
	}
	res.OutputName = render.OutputName(name)
	res.OutputPath = filepath.Join(req.OutputDir, res.OutputName)
	if err := d.renderer.Render(ctx, tl, req.AudioPath, res.OutputPath); err != nil {
		res.OutputPath = ""
		return res, r.fail(err)
	}

	r.enter(StateDone)
	res.Elapsed = time.Since(start)
	logger.Info("pipeline complete",
		"output", res.OutputName,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

// Align runs loading, transcribing and reconciling only and returns the
// reconciled segments. Empty lyricText keeps the raw transcription.
func (d *Driver) Align(ctx context.Context, audioPath, lyricText string) ([]lyrics.ReconciledSegment, error) {
	r := &run{state: StateIdle, logger: d.logger}

	r.enter(StateLoading)
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}
	if d.transcriber == nil {
		return nil, r.fail(errors.New("transcriber is not configured"))
	}
	if err := checkAudio(audioPath); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StateTranscribing)
	transcript, err := d.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, r.fail(fmt.Errorf("transcription: %w", err))
	}

	r.enter(StateReconciling)
	segs := d.reconciler.Reconcile(transcript, lyricText)
	r.enter(StateDone)
	return segs, nil
}

func checkAudio(path string) error {
	if path == "" {
		return fmt.Errorf("%w: audio path is empty", staging.ErrInvalidUpload)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", staging.ErrInvalidUpload, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: audio path is a directory", staging.ErrInvalidUpload)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: audio file is empty", staging.ErrInvalidUpload)
	}
	return nil
}

func loadLyrics(req Request) (string, error) {
	if req.LyricsPath == "" {
		return req.LyricText, nil
	}
	text, err := staging.ReadLyrics(req.LyricsPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", staging.ErrInvalidUpload, err)
	}
	return text, nil
}

func countMatched(segs []lyrics.ReconciledSegment) int {
	n := 0
	for _, s := range segs {
		if s.Matched {
			n++
		}
	}
	return n
}

func lastEnd(segs []lyrics.ReconciledSegment) float64 {
	end := 0.0
	for _, s := range segs {
		if s.End > end {
			end = s.End
		}
	}
	return end
}
