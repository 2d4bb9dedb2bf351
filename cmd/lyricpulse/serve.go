package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/lyricpulse/lyricpulse/internal/api"
	"github.com/lyricpulse/lyricpulse/internal/config"
	"github.com/lyricpulse/lyricpulse/internal/db"
	"github.com/lyricpulse/lyricpulse/internal/jobs"
	"github.com/lyricpulse/lyricpulse/internal/playback"
	"github.com/lyricpulse/lyricpulse/internal/staging"
)

const lockFilename = "lyricpulse.lock"

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and job runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, ctx)
		},
	}
}

func serve(parent context.Context, cfg *config.EnvConfig, cc *commandContext) error {
	if parent == nil {
		parent = context.Background()
	}
	startTime := time.Now()
	logger := cc.logger(cfg)

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// One server per data directory: the job table and staging dirs are not
	// safe to share between processes.
	lock := flock.New(filepath.Join(cfg.DataDir(), lockFilename))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another lyricpulse server is already using %s", cfg.DataDir())
	}
	defer lock.Unlock()

	logger.Info("starting lyricpulse",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", cfg.DataDir(),
		"config_file", cfg.SourceFile(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := jobs.NewRepository(database.Conn())
	recordStart(parent, repo, logger)

	store, err := staging.NewStore(cfg.UploadsDir(), cfg.OutputsDir())
	if err != nil {
		return fmt.Errorf("failed to prepare staging directories: %w", err)
	}

	eng := newEngine(cfg, logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load models in the background so the API comes up immediately.
	go func() {
		if _, err := eng.models.Backend(ctx); err != nil {
			logger.Error("model backend failed to start; jobs will fail until restart", "error", err)
		}
	}()

	svc := jobs.NewService(repo, store, cfg.MaxQueueDepth(), logger)
	runner := jobs.NewRunner(jobs.RunnerConfig{
		Repo:         repo,
		Store:        store,
		Processor:    eng.driver,
		MaxWorkers:   cfg.MaxConcurrentJobs(),
		RetainInputs: cfg.RetainInputs(),
		Logger:       logger,
	})
	svc.OnSubmit(runner.Notify)

	janitor := staging.NewJanitor(store, svc.ActiveJobIDs, cfg.CleanupInterval(), cfg.OutputRetention(), logger)

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Start(ctx)
	}()
	go janitor.Run(ctx)

	server := api.NewServer(api.ServerConfig{
		Host:      cfg.Host(),
		Port:      cfg.Port(),
		APIToken:  cfg.APIToken(),
		Jobs:      svc,
		Aligner:   eng.driver,
		Store:     store,
		Outputs:   playback.NewServer(store.OutputsDir(), logger),
		Models:    eng.models,
		Runner:    runner,
		Logger:    logger,
		StartTime: startTime,
		Version:   config.Version,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	if cfg.APIToken() == "" {
		logger.Warn("api_token is not set; the API accepts unauthenticated requests", "addr", server.Addr())
	}

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			stop()
			<-runnerDone
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	<-runnerDone

	logger.Info("shutdown complete")
	return nil
}

func recordStart(ctx context.Context, repo jobs.Repository, logger *slog.Logger) {
	prev, err := repo.GetConfig(ctx, "last_version")
	if err != nil {
		logger.Warn("failed to read stored version", "error", err)
		return
	}
	if prev != "" && prev != config.Version {
		logger.Info("version changed since last start", "previous", prev, "current", config.Version)
	}
	if err := repo.SetConfig(ctx, "last_version", config.Version); err != nil {
		logger.Warn("failed to store version", "error", err)
	}
	if err := repo.SetConfig(ctx, "last_started_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		logger.Warn("failed to store start time", "error", err)
	}
}
