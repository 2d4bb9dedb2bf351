// Package render burns a caption timeline and its audio into an MP4 using
// ffmpeg.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lyricpulse/lyricpulse/internal/export"
	"github.com/lyricpulse/lyricpulse/internal/logging"
	"github.com/lyricpulse/lyricpulse/internal/timeline"
)

const (
	maxOutputBytes = 8 * 1024
	maxStemLength  = 120
)

// commandContext is replaced in tests.
var commandContext = exec.CommandContext

// Config holds the renderer's configuration.
type Config struct {
	FFmpegPath  string
	FFprobePath string // empty = sibling of FFmpegPath
	FontPath    string // font file; its directory is passed to libass
	Threads     int
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Renderer produces the captioned video for a timeline.
type Renderer struct {
	cfg Config
}

// NewRenderer creates a Renderer, filling unset fields with defaults.
func NewRenderer(cfg Config) *Renderer {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = siblingTool(cfg.FFmpegPath, "ffprobe")
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Renderer{cfg: cfg}
}

// OutputName returns the file name of the video rendered from the named
// audio file: "video_<stem>.mp4", where stem is the base name up to its
// first dot.
func OutputName(audioFilename string) string {
	stem := export.Stem(audioFilename, maxStemLength)
	if stem == "" {
		stem = "audio"
	}
	return "video_" + stem + ".mp4"
}

// Render writes the video for tl with the audio at audioPath to outPath.
// The file appears at outPath only when ffmpeg succeeds; on any failure no
// file is left behind.
func (r *Renderer) Render(ctx context.Context, tl timeline.Timeline, audioPath, outPath string) error {
	if tl.Duration <= 0 {
		return errors.New("render: timeline has no duration")
	}
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("render: create output dir: %w", err)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	script, err := os.CreateTemp(dir, ".captions-*.ass")
	if err != nil {
		return fmt.Errorf("render: create caption script: %w", err)
	}
	scriptPath := script.Name()
	defer os.Remove(scriptPath)
	if err := WriteASS(script, tl); err != nil {
		script.Close()
		return fmt.Errorf("render: write caption script: %w", err)
	}
	if err := script.Close(); err != nil {
		return fmt.Errorf("render: close caption script: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".render-*.mp4")
	if err != nil {
		return fmt.Errorf("render: create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	args := r.buildArgs(tl, audioPath, scriptPath, tmpPath)
	start := time.Now()
	r.cfg.Logger.Info("rendering video",
		"output", filepath.Base(outPath),
		"duration_s", tl.Duration,
		"captions", len(tl.Clips),
	)

	cmd := commandContext(ctx, r.cfg.FFmpegPath, args...) //nolint:gosec
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("render: ffmpeg: %w", ctx.Err())
		}
		return fmt.Errorf("render: ffmpeg: %w: %s", err, tail(out.String(), maxOutputBytes))
	}

	if info, err := os.Stat(tmpPath); err != nil || info.Size() == 0 {
		return errors.New("render: ffmpeg produced no output")
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("render: move output into place: %w", err)
	}
	committed = true

	r.cfg.Logger.Info("render complete",
		"output", filepath.Base(outPath),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (r *Renderer) buildArgs(tl timeline.Timeline, audioPath, scriptPath, outPath string) []string {
	st := tl.Style
	source := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s",
		ffmpegColor(tl.Background.Color), st.Width, st.Height, st.FPS,
		strconv.FormatFloat(tl.Duration, 'f', 3, 64))

	filter := "ass=" + escapeFilterValue(scriptPath)
	if r.cfg.FontPath != "" {
		filter += ":fontsdir=" + escapeFilterValue(filepath.Dir(r.cfg.FontPath))
	}

	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "lavfi",
		"-i", source,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-vf", filter,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-threads", strconv.Itoa(r.cfg.Threads),
		"-shortest",
		"-movflags", "+faststart",
		outPath,
	}
}

// ProbeDuration returns the duration in seconds of a media file.
func (r *Renderer) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	cmd := commandContext(ctx, r.cfg.FFprobePath, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(output)))
	}
	value := strings.TrimSpace(string(output))
	d, err := strconv.ParseFloat(value, 64)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("ffprobe: invalid duration %q", value)
	}
	return d, nil
}

var filterValueReplacer = strings.NewReplacer(
	`\`, `\\\\`,
	`'`, `\\\'`,
	`:`, `\\:`,
	`,`, `\,`,
	`[`, `\[`,
	`]`, `\]`,
	`;`, `\;`,
)

// escapeFilterValue quotes a path for use as a filter option value inside
// an ffmpeg filtergraph.
func escapeFilterValue(s string) string {
	return filterValueReplacer.Replace(filepath.ToSlash(s))
}

func siblingTool(ffmpegPath, name string) string {
	dir, base := filepath.Split(ffmpegPath)
	if !strings.HasPrefix(strings.ToLower(base), "ffmpeg") {
		return name
	}
	return dir + name + strings.TrimPrefix(base, base[:len("ffmpeg")])
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
