package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lyricpulse/lyricpulse/internal/logging"
	"github.com/lyricpulse/lyricpulse/internal/lyrics"
)

// ServiceError represents a non-2xx response from the model sidecar.
type ServiceError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("model service %s failed: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *ServiceError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPConfig holds the sidecar backend's configuration.
type HTTPConfig struct {
	BaseURL           string
	Model             string
	BeatsTimeout      time.Duration
	TranscribeTimeout time.Duration
	Logger            *slog.Logger
}

// HTTPBackend talks to a model sidecar that keeps the models loaded.
// Audio is passed by path, so the sidecar must share the data directory.
type HTTPBackend struct {
	baseURL    string
	model      string
	cfg        HTTPConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPBackend creates a sidecar client.
func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		cfg:     cfg,
		// Per-request deadlines come from the stage contexts.
		httpClient: &http.Client{},
		logger:     cfg.Logger,
	}
}

func (c *HTTPBackend) Name() string { return BackendHTTP }

type loadRequest struct {
	Model string `json:"model"`
}

type beatsRequest struct {
	AudioPath string `json:"audio_path"`
}

type transcribeRequest struct {
	AudioPath      string `json:"audio_path"`
	Model          string `json:"model"`
	WordTimestamps bool   `json:"word_timestamps"`
	FP16           bool   `json:"fp16"`
}

// Doctor asks the sidecar for its dependency report.
func (c *HTTPBackend) Doctor(ctx context.Context) (*Capabilities, error) {
	var caps Capabilities
	if err := c.do(ctx, http.MethodGet, "/health", nil, &caps); err != nil {
		return nil, err
	}
	deriveCapabilities(&caps, BackendHTTP)
	return &caps, nil
}

// Warm asks the sidecar to load model into memory.
func (c *HTTPBackend) Warm(ctx context.Context, model string) error {
	return c.do(ctx, http.MethodPost, "/v1/models/load", loadRequest{Model: model}, nil)
}

// ExtractBeats runs the sidecar's beat tracker on audioPath.
func (c *HTTPBackend) ExtractBeats(ctx context.Context, audioPath string) (BeatTrack, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.BeatsTimeout)
	defer cancel()

	var out beatsOutput
	if err := c.do(ctx, http.MethodPost, "/v1/beats", beatsRequest{AudioPath: audioPath}, &out); err != nil {
		return BeatTrack{}, err
	}
	return toBeatTrack(out)
}

// Transcribe runs the sidecar's speech recognizer on audioPath.
func (c *HTTPBackend) Transcribe(ctx context.Context, audioPath string) ([]lyrics.TranscriptSegment, error) {
	ctx, cancel := withTimeout(ctx, c.cfg.TranscribeTimeout)
	defer cancel()

	req := transcribeRequest{
		AudioPath:      audioPath,
		Model:          c.model,
		WordTimestamps: true,
		FP16:           false,
	}
	var out transcribeOutput
	if err := c.do(ctx, http.MethodPost, "/v1/transcribe", req, &out); err != nil {
		return nil, err
	}
	return normalizeSegments(out.Segments), nil
}

// WaitForHealthy blocks until the sidecar answers its health check.
func (c *HTTPBackend) WaitForHealthy(ctx context.Context, interval time.Duration) error {
	for {
		if _, err := c.Doctor(ctx); err == nil {
			c.logger.Info("model service is healthy", "url", c.baseURL)
			return nil
		}
		c.logger.Info("model service not ready, retrying", "url", c.baseURL, "interval", interval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (c *HTTPBackend) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model service %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ServiceError{Endpoint: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	c.logger.Debug("model service call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
