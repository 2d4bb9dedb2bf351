// Package config provides configuration management for the LyricPulse service.
// Configuration is loaded from an optional TOML file, then environment
// variables, on top of sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultHost      = "127.0.0.1"
	DefaultPort      = 8790
	DefaultLogLevel  = "info"
	DefaultLogFormat = "auto"
	DefaultDataDir   = ".lyricpulse"

	// Environment variable names
	EnvConfigFile = "LYRICPULSE_CONFIG"
	EnvHost       = "LYRICPULSE_HOST"
	EnvPort       = "LYRICPULSE_PORT"
	EnvLogLevel   = "LYRICPULSE_LOG_LEVEL"
	EnvLogFormat  = "LYRICPULSE_LOG_FORMAT"
	EnvDataDir    = "LYRICPULSE_DATA_DIR"
	EnvAPIToken   = "LYRICPULSE_API_TOKEN"

	// Model environment variable names
	EnvModelsBackend    = "LYRICPULSE_MODELS_BACKEND"
	EnvModelsPython     = "LYRICPULSE_MODELS_PYTHON"
	EnvModelsModule     = "LYRICPULSE_MODELS_MODULE"
	EnvModelsServiceURL = "LYRICPULSE_MODELS_URL"
	EnvWhisperModel     = "LYRICPULSE_WHISPER_MODEL"

	// Job and render environment variable names
	EnvMaxConcurrentJobs = "LYRICPULSE_MAX_CONCURRENT_JOBS"
	EnvMaxQueueDepth     = "LYRICPULSE_MAX_QUEUE_DEPTH"
	EnvMatchThreshold    = "LYRICPULSE_MATCH_THRESHOLD"
	EnvFFmpegPath        = "LYRICPULSE_FFMPEG"
	EnvFontPath          = "LYRICPULSE_FONT"

	// Database filename
	DBFilename = "lyricpulse.db"

	// Model defaults
	BackendSubprocess          = "subprocess"
	BackendHTTP                = "http"
	DefaultModelsModule        = "lyricpulse_models"
	DefaultModelsServiceURL    = "http://127.0.0.1:8791"
	DefaultWhisperModel        = "base"
	DefaultTimeoutDoctor       = 30   // seconds
	DefaultTimeoutBeats        = 600  // 10 minutes
	DefaultTimeoutTranscribe   = 1800 // 30 minutes
	DefaultTimeoutRender       = 3600 // 1 hour
	DefaultMatchThreshold      = 50.0
	DefaultFFmpegPath          = "ffmpeg"
	DefaultFontFile            = "InterTight-VariableFont_wght.ttf"
	DefaultMaxConcurrentJobs   = 1
	DefaultMaxQueueDepth       = 16
	DefaultOutputRetentionDays = 14
	DefaultCleanupInterval     = 60 // minutes
)

// Config defines the application configuration interface
type Config interface {
	Host() string
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	UploadsDir() string
	OutputsDir() string
	APIToken() string

	ModelsBackend() string
	ModelsPython() string
	ModelsModule() string
	ModelsServiceURL() string
	WhisperModel() string
	TimeoutDoctor() time.Duration
	TimeoutBeats() time.Duration
	TimeoutTranscribe() time.Duration
	TimeoutRender() time.Duration

	MatchThreshold() float64
	FFmpegPath() string
	FontPath() string

	MaxConcurrentJobs() int
	MaxQueueDepth() int
	RetainInputs() bool
	OutputRetention() time.Duration
	CleanupInterval() time.Duration
}

// EnvConfig holds configuration resolved from defaults, an optional TOML file
// and environment variables, in that order of precedence (lowest first).
type EnvConfig struct {
	host      string
	port      int
	logLevel  string
	logFormat string
	dataDir   string
	apiToken  string

	modelsBackend    string
	modelsPython     string
	modelsModule     string
	modelsServiceURL string
	whisperModel     string
	timeoutDoctor    int
	timeoutBeats     int
	timeoutTransc    int
	timeoutRender    int

	matchThreshold float64
	ffmpegPath     string
	fontPath       string

	maxConcurrentJobs   int
	maxQueueDepth       int
	retainInputs        bool
	outputRetentionDays int
	cleanupIntervalMin  int

	sourceFile string
}

// New creates a new EnvConfig with defaults and environment variable overrides.
// When LYRICPULSE_CONFIG names a file, it is applied before the environment.
func New() (*EnvConfig, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load builds a config from defaults, the TOML file at path (if non-empty and
// present), and environment overrides, then validates it.
func Load(path string) (*EnvConfig, error) {
	cfg := defaults()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *EnvConfig {
	return &EnvConfig{
		host:                DefaultHost,
		port:                DefaultPort,
		logLevel:            DefaultLogLevel,
		logFormat:           DefaultLogFormat,
		dataDir:             defaultDataDir(),
		modelsBackend:       BackendSubprocess,
		modelsModule:        DefaultModelsModule,
		modelsServiceURL:    DefaultModelsServiceURL,
		whisperModel:        DefaultWhisperModel,
		timeoutDoctor:       DefaultTimeoutDoctor,
		timeoutBeats:        DefaultTimeoutBeats,
		timeoutTransc:       DefaultTimeoutTranscribe,
		timeoutRender:       DefaultTimeoutRender,
		matchThreshold:      DefaultMatchThreshold,
		ffmpegPath:          DefaultFFmpegPath,
		maxConcurrentJobs:   DefaultMaxConcurrentJobs,
		maxQueueDepth:       DefaultMaxQueueDepth,
		outputRetentionDays: DefaultOutputRetentionDays,
		cleanupIntervalMin:  DefaultCleanupInterval,
	}
}

func (c *EnvConfig) applyEnv() error {
	if h := os.Getenv(EnvHost); h != "" {
		c.host = h
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if lf := os.Getenv(EnvLogFormat); lf != "" {
		c.logFormat = lf
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if tok := os.Getenv(EnvAPIToken); tok != "" {
		c.apiToken = tok
	}

	if b := os.Getenv(EnvModelsBackend); b != "" {
		c.modelsBackend = strings.ToLower(strings.TrimSpace(b))
	}
	if py := os.Getenv(EnvModelsPython); py != "" {
		c.modelsPython = py
	}
	if m := os.Getenv(EnvModelsModule); m != "" {
		c.modelsModule = m
	}
	if u := os.Getenv(EnvModelsServiceURL); u != "" {
		c.modelsServiceURL = strings.TrimRight(u, "/")
	}
	if wm := os.Getenv(EnvWhisperModel); wm != "" {
		c.whisperModel = wm
	}

	if v := os.Getenv(EnvMaxConcurrentJobs); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxConcurrentJobs, err)
		}
		c.maxConcurrentJobs = n
	}
	if v := os.Getenv(EnvMaxQueueDepth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxQueueDepth, err)
		}
		c.maxQueueDepth = n
	}
	if v := os.Getenv(EnvMatchThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMatchThreshold, err)
		}
		c.matchThreshold = f
	}
	if ff := os.Getenv(EnvFFmpegPath); ff != "" {
		c.ffmpegPath = ff
	}
	if fp := os.Getenv(EnvFontPath); fp != "" {
		c.fontPath = fp
	}
	return nil
}

// Validate checks value ranges after all sources have been applied.
func (c *EnvConfig) Validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: port must be between 1 and 65535", c.port)
	}
	switch c.modelsBackend {
	case BackendSubprocess, BackendHTTP:
	default:
		return fmt.Errorf("invalid models backend %q: want %q or %q", c.modelsBackend, BackendSubprocess, BackendHTTP)
	}
	if c.matchThreshold < 0 || c.matchThreshold > 100 {
		return fmt.Errorf("invalid match threshold %v: must be within 0..100", c.matchThreshold)
	}
	if c.maxConcurrentJobs < 1 {
		return fmt.Errorf("invalid max concurrent jobs %d: must be at least 1", c.maxConcurrentJobs)
	}
	if c.maxQueueDepth < 1 {
		return fmt.Errorf("invalid max queue depth %d: must be at least 1", c.maxQueueDepth)
	}
	switch strings.ToLower(c.logFormat) {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("invalid log format %q: want auto, json or text", c.logFormat)
	}
	return nil
}

// SourceFile returns the config file that was applied, or "" when none.
func (c *EnvConfig) SourceFile() string {
	return c.sourceFile
}

func (c *EnvConfig) Host() string {
	return c.host
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFormat returns the log format (auto, json, text)
func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// UploadsDir returns the directory holding per-job uploaded inputs
func (c *EnvConfig) UploadsDir() string {
	return filepath.Join(c.dataDir, "uploads")
}

// OutputsDir returns the directory holding rendered videos
func (c *EnvConfig) OutputsDir() string {
	return filepath.Join(c.dataDir, "outputs")
}

func (c *EnvConfig) APIToken() string {
	return c.apiToken
}

func (c *EnvConfig) ModelsBackend() string {
	return c.modelsBackend
}

func (c *EnvConfig) ModelsPython() string {
	return c.modelsPython
}

func (c *EnvConfig) ModelsModule() string {
	if c.modelsModule != "" {
		return c.modelsModule
	}
	return DefaultModelsModule
}

func (c *EnvConfig) ModelsServiceURL() string {
	return c.modelsServiceURL
}

func (c *EnvConfig) WhisperModel() string {
	return c.whisperModel
}

func (c *EnvConfig) TimeoutDoctor() time.Duration {
	return time.Duration(c.timeoutDoctor) * time.Second
}

func (c *EnvConfig) TimeoutBeats() time.Duration {
	return time.Duration(c.timeoutBeats) * time.Second
}

func (c *EnvConfig) TimeoutTranscribe() time.Duration {
	return time.Duration(c.timeoutTransc) * time.Second
}

func (c *EnvConfig) TimeoutRender() time.Duration {
	return time.Duration(c.timeoutRender) * time.Second
}

// MatchThreshold returns the lyric similarity score a line must exceed to
// replace transcribed text.
func (c *EnvConfig) MatchThreshold() float64 {
	return c.matchThreshold
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// FontPath returns the caption font file. Defaults to fonts/<DefaultFontFile>
// under the data directory.
func (c *EnvConfig) FontPath() string {
	if c.fontPath != "" {
		return c.fontPath
	}
	return filepath.Join(c.dataDir, "fonts", DefaultFontFile)
}

func (c *EnvConfig) MaxConcurrentJobs() int {
	return c.maxConcurrentJobs
}

func (c *EnvConfig) MaxQueueDepth() int {
	return c.maxQueueDepth
}

// RetainInputs reports whether uploaded inputs are kept after a job finishes.
func (c *EnvConfig) RetainInputs() bool {
	return c.retainInputs
}

func (c *EnvConfig) OutputRetention() time.Duration {
	return time.Duration(c.outputRetentionDays) * 24 * time.Hour
}

func (c *EnvConfig) CleanupInterval() time.Duration {
	return time.Duration(c.cleanupIntervalMin) * time.Minute
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
