package main

import (
	"log/slog"
	"os"

	"github.com/lyricpulse/lyricpulse/internal/config"
	"github.com/lyricpulse/lyricpulse/internal/lyrics"
	"github.com/lyricpulse/lyricpulse/internal/models"
	"github.com/lyricpulse/lyricpulse/internal/pipeline"
	"github.com/lyricpulse/lyricpulse/internal/render"
	"github.com/lyricpulse/lyricpulse/internal/timeline"
)

// engine is the model handle and pipeline shared by serve, align and render.
type engine struct {
	models   *models.Handle
	renderer *render.Renderer
	driver   *pipeline.Driver
}

func newEngine(cfg config.Config, logger *slog.Logger) *engine {
	sub := models.DefaultSubprocessConfig(cfg.DataDir(), logger)
	sub.PythonPath = cfg.ModelsPython()
	sub.ModuleName = cfg.ModelsModule()
	sub.Model = cfg.WhisperModel()
	sub.DoctorTimeout = cfg.TimeoutDoctor()
	sub.BeatsTimeout = cfg.TimeoutBeats()
	sub.TranscribeTimeout = cfg.TimeoutTranscribe()

	factory := models.NewFactory(models.Options{
		Backend:    cfg.ModelsBackend(),
		Subprocess: sub,
		HTTP: models.HTTPConfig{
			BaseURL:           cfg.ModelsServiceURL(),
			Model:             cfg.WhisperModel(),
			BeatsTimeout:      cfg.TimeoutBeats(),
			TranscribeTimeout: cfg.TimeoutTranscribe(),
			Logger:            logger,
		},
	})
	handle := models.NewHandle(factory, cfg.WhisperModel(), logger)

	renderer := render.NewRenderer(render.Config{
		FFmpegPath: cfg.FFmpegPath(),
		FontPath:   cfg.FontPath(),
		Timeout:    cfg.TimeoutRender(),
		Logger:     logger,
	})

	style := timeline.DefaultStyle()
	if _, err := os.Stat(cfg.FontPath()); err == nil {
		style.FontPath = cfg.FontPath()
	} else {
		logger.Warn("caption font not found, libass will substitute", "font", cfg.FontPath())
	}

	driver := pipeline.NewDriver(pipeline.Config{
		Beats:       handle,
		Transcriber: handle,
		Reconciler:  &lyrics.Reconciler{Threshold: cfg.MatchThreshold()},
		Renderer:    renderer,
		Prober:      renderer,
		Style:       style,
		Logger:      logger,
	})

	return &engine{models: handle, renderer: renderer, driver: driver}
}
