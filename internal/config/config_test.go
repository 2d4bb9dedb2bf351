package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfigFile, EnvHost, EnvPort, EnvLogLevel, EnvLogFormat, EnvDataDir, EnvAPIToken,
		EnvModelsBackend, EnvModelsPython, EnvModelsModule, EnvModelsServiceURL, EnvWhisperModel,
		EnvMaxConcurrentJobs, EnvMaxQueueDepth, EnvMatchThreshold, EnvFFmpegPath, EnvFontPath,
	} {
		t.Setenv(key, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.ModelsBackend() != BackendSubprocess {
		t.Errorf("ModelsBackend() = %q, want %q", cfg.ModelsBackend(), BackendSubprocess)
	}
	if cfg.WhisperModel() != "base" {
		t.Errorf("WhisperModel() = %q, want base", cfg.WhisperModel())
	}
	if cfg.MatchThreshold() != 50 {
		t.Errorf("MatchThreshold() = %v, want 50", cfg.MatchThreshold())
	}
	if cfg.MaxConcurrentJobs() != 1 {
		t.Errorf("MaxConcurrentJobs() = %d, want 1", cfg.MaxConcurrentJobs())
	}
	if cfg.RetainInputs() {
		t.Error("RetainInputs() = true, want false")
	}
	if cfg.OutputRetention() != 14*24*time.Hour {
		t.Errorf("OutputRetention() = %v, want 336h", cfg.OutputRetention())
	}
	if cfg.SourceFile() != "" {
		t.Errorf("SourceFile() = %q, want empty", cfg.SourceFile())
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvDataDir, dataDir)
	t.Setenv(EnvModelsBackend, "HTTP")
	t.Setenv(EnvModelsServiceURL, "http://models:8000/")
	t.Setenv(EnvMatchThreshold, "65.5")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", cfg.Port())
	}
	if cfg.DBPath() != filepath.Join(dataDir, DBFilename) {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.ModelsBackend() != BackendHTTP {
		t.Errorf("ModelsBackend() = %q, want http", cfg.ModelsBackend())
	}
	if cfg.ModelsServiceURL() != "http://models:8000" {
		t.Errorf("ModelsServiceURL() = %q, want trailing slash trimmed", cfg.ModelsServiceURL())
	}
	if cfg.MatchThreshold() != 65.5 {
		t.Errorf("MatchThreshold() = %v, want 65.5", cfg.MatchThreshold())
	}
	if cfg.FontPath() != filepath.Join(dataDir, "fonts", DefaultFontFile) {
		t.Errorf("FontPath() = %q", cfg.FontPath())
	}
}

func TestNew_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", EnvPort, "abc"},
		{"port out of range", EnvPort, "70000"},
		{"unknown backend", EnvModelsBackend, "grpc"},
		{"threshold above 100", EnvMatchThreshold, "101"},
		{"zero workers", EnvMaxConcurrentJobs, "0"},
		{"bad log format", EnvLogFormat, "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := New(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
port = 8111

[models]
whisper_model = "small"

[jobs]
max_concurrent = 3
retain_inputs = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvPort, "8222")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port() != 8222 {
		t.Errorf("Port() = %d, want env override 8222", cfg.Port())
	}
	if cfg.WhisperModel() != "small" {
		t.Errorf("WhisperModel() = %q, want small", cfg.WhisperModel())
	}
	if cfg.MaxConcurrentJobs() != 3 {
		t.Errorf("MaxConcurrentJobs() = %d, want 3", cfg.MaxConcurrentJobs())
	}
	if !cfg.RetainInputs() {
		t.Error("RetainInputs() = false, want true")
	}
	if cfg.SourceFile() == "" {
		t.Error("SourceFile() should report the applied file")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want default", cfg.Port())
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nprot = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestCreateSample_RoundTrips(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample() error = %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
