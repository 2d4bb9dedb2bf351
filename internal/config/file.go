package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

type fileServer struct {
	Host     *string `toml:"host"`
	Port     *int    `toml:"port"`
	APIToken *string `toml:"api_token"`
}

type filePaths struct {
	DataDir  *string `toml:"data_dir"`
	FontPath *string `toml:"font_path"`
	FFmpeg   *string `toml:"ffmpeg"`
}

type fileModels struct {
	Backend           *string `toml:"backend"`
	Python            *string `toml:"python"`
	Module            *string `toml:"module"`
	ServiceURL        *string `toml:"service_url"`
	WhisperModel      *string `toml:"whisper_model"`
	TimeoutDoctor     *int    `toml:"timeout_doctor"`
	TimeoutBeats      *int    `toml:"timeout_beats"`
	TimeoutTranscribe *int    `toml:"timeout_transcribe"`
}

type fileAlignment struct {
	MatchThreshold *float64 `toml:"match_threshold"`
}

type fileRender struct {
	Timeout *int `toml:"timeout"`
}

type fileJobs struct {
	MaxConcurrent       *int  `toml:"max_concurrent"`
	MaxQueueDepth       *int  `toml:"max_queue_depth"`
	RetainInputs        *bool `toml:"retain_inputs"`
	OutputRetentionDays *int  `toml:"output_retention_days"`
	CleanupInterval     *int  `toml:"cleanup_interval_minutes"`
}

type fileLogging struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// fileConfig mirrors sample_config.toml. Pointer fields distinguish "absent"
// from zero values so the file only overrides what it sets.
type fileConfig struct {
	Server    fileServer    `toml:"server"`
	Paths     filePaths     `toml:"paths"`
	Models    fileModels    `toml:"models"`
	Alignment fileAlignment `toml:"alignment"`
	Render    fileRender    `toml:"render"`
	Jobs      fileJobs      `toml:"jobs"`
	Logging   fileLogging   `toml:"logging"`
}

func (c *EnvConfig) applyFile(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}

	file, err := os.Open(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return fmt.Errorf("parse config %s: %w", expanded, err)
	}

	setString(&c.host, fc.Server.Host)
	setInt(&c.port, fc.Server.Port)
	setString(&c.apiToken, fc.Server.APIToken)

	if fc.Paths.DataDir != nil {
		dir, err := expandPath(*fc.Paths.DataDir)
		if err != nil {
			return fmt.Errorf("paths.data_dir: %w", err)
		}
		c.dataDir = dir
	}
	if fc.Paths.FontPath != nil {
		font, err := expandPath(*fc.Paths.FontPath)
		if err != nil {
			return fmt.Errorf("paths.font_path: %w", err)
		}
		c.fontPath = font
	}
	setString(&c.ffmpegPath, fc.Paths.FFmpeg)

	if fc.Models.Backend != nil {
		c.modelsBackend = strings.ToLower(strings.TrimSpace(*fc.Models.Backend))
	}
	setString(&c.modelsPython, fc.Models.Python)
	setString(&c.modelsModule, fc.Models.Module)
	if fc.Models.ServiceURL != nil {
		c.modelsServiceURL = strings.TrimRight(strings.TrimSpace(*fc.Models.ServiceURL), "/")
	}
	setString(&c.whisperModel, fc.Models.WhisperModel)
	setInt(&c.timeoutDoctor, fc.Models.TimeoutDoctor)
	setInt(&c.timeoutBeats, fc.Models.TimeoutBeats)
	setInt(&c.timeoutTransc, fc.Models.TimeoutTranscribe)

	if fc.Alignment.MatchThreshold != nil {
		c.matchThreshold = *fc.Alignment.MatchThreshold
	}
	setInt(&c.timeoutRender, fc.Render.Timeout)

	setInt(&c.maxConcurrentJobs, fc.Jobs.MaxConcurrent)
	setInt(&c.maxQueueDepth, fc.Jobs.MaxQueueDepth)
	if fc.Jobs.RetainInputs != nil {
		c.retainInputs = *fc.Jobs.RetainInputs
	}
	setInt(&c.outputRetentionDays, fc.Jobs.OutputRetentionDays)
	setInt(&c.cleanupIntervalMin, fc.Jobs.CleanupInterval)

	setString(&c.logLevel, fc.Logging.Level)
	setString(&c.logFormat, fc.Logging.Format)

	c.sourceFile = expanded
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lyricpulse/config.toml")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
