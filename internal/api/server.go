package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/lyricpulse/lyricpulse/internal/jobs"
	"github.com/lyricpulse/lyricpulse/internal/lyrics"
	"github.com/lyricpulse/lyricpulse/internal/models"
	"github.com/lyricpulse/lyricpulse/internal/playback"
	"github.com/lyricpulse/lyricpulse/internal/staging"
)

// JobService queues and reports render jobs.
type JobService interface {
	Submit(ctx context.Context, sub jobs.Submission) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, limit int) ([]*jobs.Job, error)
	Counts(ctx context.Context) (map[string]int, error)
}

// Aligner produces reconciled segments synchronously.
type Aligner interface {
	Align(ctx context.Context, audioPath, lyricText string) ([]lyrics.ReconciledSegment, error)
}

// CapabilityReporter exposes the last model probe without triggering one.
type CapabilityReporter interface {
	Peek() *models.Capabilities
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Host           string
	Port           int
	APIToken       string
	MaxUploadBytes int64
	Jobs           JobService
	Aligner        Aligner
	Store          *staging.Store
	Outputs        playback.OutputService
	Models         CapabilityReporter
	Runner         *jobs.Runner
	Logger         *slog.Logger
	StartTime      time.Time
	Version        string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			// uploads and video streams can be slow
			ReadTimeout:  0,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
