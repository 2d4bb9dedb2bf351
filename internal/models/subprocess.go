package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lyricpulse/lyricpulse/internal/logging"
	"github.com/lyricpulse/lyricpulse/internal/lyrics"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// SubprocessConfig holds the subprocess backend's configuration.
type SubprocessConfig struct {
	PythonPath        string // path to python binary; empty = auto-detect
	ModuleName        string // default "lyricpulse_models"
	WorkDir           string // scratch dir for --out files
	Model             string // whisper model tier
	DoctorTimeout     time.Duration
	BeatsTimeout      time.Duration
	TranscribeTimeout time.Duration
	Logger            *slog.Logger
	DebugPaths        bool // if true, log full file paths; otherwise sanitise
}

// DefaultSubprocessConfig returns production-ready defaults.
func DefaultSubprocessConfig(dataDir string, logger *slog.Logger) SubprocessConfig {
	return SubprocessConfig{
		ModuleName:        "lyricpulse_models",
		WorkDir:           filepath.Join(dataDir, "work"),
		Model:             "base",
		DoctorTimeout:     30 * time.Second,
		BeatsTimeout:      10 * time.Minute,
		TranscribeTimeout: 30 * time.Minute,
		Logger:            logger,
	}
}

// RunResult is the structured outcome of executing a model subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"` // path to the --out JSON file
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// CommandError reports a model command that exited unsuccessfully.
type CommandError struct {
	Command    string
	ExitCode   int
	StderrTail string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited %d: %s", e.Command, e.ExitCode, truncate(strings.TrimSpace(e.StderrTail), 512))
}

// SubprocessBackend runs `python -m <module> <command> ... --out <json>` for
// every request.
type SubprocessBackend struct {
	cfg    SubprocessConfig
	python string // resolved python path
}

// NewSubprocessBackend creates a SubprocessBackend, resolving the Python
// binary path.
func NewSubprocessBackend(cfg SubprocessConfig) (*SubprocessBackend, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	python, err := resolvePython(cfg.PythonPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate python: %w", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create work dir: %w", err)
	}

	cfg.Logger.Info("model subprocess backend initialised",
		"python", python,
		"module", cfg.ModuleName,
		"model", cfg.Model,
		"work_dir", logging.SanitizePath(cfg.WorkDir),
	)

	return &SubprocessBackend{cfg: cfg, python: python}, nil
}

func (b *SubprocessBackend) Name() string { return BackendSubprocess }

// Warm is a no-op: every subprocess loads its own model.
func (b *SubprocessBackend) Warm(ctx context.Context, model string) error {
	return nil
}

// Doctor probes the installed model environment.
func (b *SubprocessBackend) Doctor(ctx context.Context) (*Capabilities, error) {
	var caps Capabilities
	if err := b.runJSON(ctx, b.cfg.DoctorTimeout, "doctor", &caps, "--json"); err != nil {
		return nil, err
	}
	deriveCapabilities(&caps, BackendSubprocess)

	b.cfg.Logger.Info("doctor probe complete",
		"beats", caps.HasBeats,
		"transcribe", caps.HasTranscribe,
		"deps_available", caps.Summary.Available,
		"deps_total", caps.Summary.Total,
	)
	return &caps, nil
}

// ExtractBeats runs the beat tracker on audioPath.
func (b *SubprocessBackend) ExtractBeats(ctx context.Context, audioPath string) (BeatTrack, error) {
	var out beatsOutput
	if err := b.runJSON(ctx, b.cfg.BeatsTimeout, "beats", &out, "--audio", audioPath); err != nil {
		return BeatTrack{}, err
	}
	return toBeatTrack(out)
}

// Transcribe runs speech recognition on audioPath.
func (b *SubprocessBackend) Transcribe(ctx context.Context, audioPath string) ([]lyrics.TranscriptSegment, error) {
	var out transcribeOutput
	err := b.runJSON(ctx, b.cfg.TranscribeTimeout, "transcribe", &out,
		"--audio", audioPath,
		"--model", b.cfg.Model,
		"--word-timestamps",
		"--no-fp16",
	)
	if err != nil {
		return nil, err
	}
	return normalizeSegments(out.Segments), nil
}

// runJSON executes command with a fresh --out file and decodes it into v.
func (b *SubprocessBackend) runJSON(ctx context.Context, timeout time.Duration, command string, v any, args ...string) error {
	dir, err := os.MkdirTemp(b.cfg.WorkDir, command+"-*")
	if err != nil {
		return fmt.Errorf("create %s scratch dir: %w", command, err)
	}
	defer os.RemoveAll(dir)
	outPath := filepath.Join(dir, "out.json")

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args = append([]string{command}, args...)
	args = append(args, "--out", outPath)
	result := b.exec(ctx, outPath, args...)
	if !result.IsSuccess() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s timed out after %s: %w", command, timeout, ctx.Err())
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", command, ctx.Err())
		}
		return &CommandError{Command: command, ExitCode: result.ExitCode, StderrTail: result.StderrTail}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return fmt.Errorf("cannot read %s output: %w", command, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cannot parse %s JSON: %w", command, err)
	}
	return nil
}

// exec is the core subprocess execution helper.
func (b *SubprocessBackend) exec(ctx context.Context, outPath string, args ...string) RunResult {
	start := time.Now()

	cmdArgs := append([]string{"-m", b.cfg.ModuleName}, args...)
	cmd := exec.CommandContext(ctx, b.python, cmdArgs...)

	// Capture stderr with bounded buffer
	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard // CLI writes to --out file, not stdout

	b.cfg.Logger.Debug("executing model command", "args", cmdArgs)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	stderrTail := stderrBuf.String()
	if exitCode == -1 && stderrTail == "" && err != nil {
		stderrTail = err.Error()
	}

	if exitCode != 0 {
		b.cfg.Logger.Warn("model command failed",
			"command", args[0],
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		b.cfg.Logger.Info("model command succeeded",
			"command", args[0],
			"duration_ms", elapsed.Milliseconds(),
			"output", b.safePath(outPath),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func (b *SubprocessBackend) safePath(path string) string {
	if b.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

// resolvePython finds a usable python binary.
func resolvePython(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured python %q not found", preferred)
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no python binary found on PATH (tried python3, python)")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
