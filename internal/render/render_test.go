package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lyricpulse/lyricpulse/internal/lyrics"
	"github.com/lyricpulse/lyricpulse/internal/timeline"
)

func TestOutputName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"song.mp3", "video_song.mp4"},
		{"my.song.final.wav", "video_my.mp4"},
		{"My Song.mp3", "video_My_Song.mp4"},
		{"../../etc/passwd", "video_passwd.mp4"},
		{`C:\music\track.flac`, "video_track.mp4"},
		{"bad<name>.mp3", "video_bad_name_.mp4"},
		{".hidden", "video_audio.mp4"},
		{"", "video_audio.mp4"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.in); got != tt.want {
			t.Errorf("OutputName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeFilterValue(t *testing.T) {
	if got := escapeFilterValue("/data/out/.captions-1.ass"); got != "/data/out/.captions-1.ass" {
		t.Errorf("plain path changed: %q", got)
	}
	if got := escapeFilterValue("/data/a:b,c.ass"); got != `/data/a\\:b\,c.ass` {
		t.Errorf("escapeFilterValue = %q", got)
	}
}

func TestSiblingTool(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ffmpeg", "ffprobe"},
		{"/usr/local/bin/ffmpeg", "/usr/local/bin/ffprobe"},
		{"/opt/bin/ffmpeg.exe", "/opt/bin/ffprobe.exe"},
		{"/opt/bin/custom-encoder", "ffprobe"},
	}
	for _, tt := range tests {
		if got := siblingTool(tt.in, "ffprobe"); got != tt.want {
			t.Errorf("siblingTool(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func testTimeline() timeline.Timeline {
	segs := []lyrics.ReconciledSegment{{Start: 0.5, End: 1.5, Text: "I love you baby"}}
	return timeline.Build(segs, []float64{0.5, 1.0}, 2.0, timeline.DefaultStyle())
}

func withHelper(t *testing.T, mode string) *[]string {
	t.Helper()
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], append([]string{"-test.run=TestHelperProcess", "--"}, args...)...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "RENDER_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func leftovers(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestRender_Success(t *testing.T) {
	captured := withHelper(t, "success")
	dir := t.TempDir()
	out := filepath.Join(dir, "outputs", "video_song.mp4")

	r := NewRenderer(Config{FFmpegPath: "/usr/bin/ffmpeg", FontPath: "/fonts/InterTight.ttf"})
	if err := r.Render(context.Background(), testTimeline(), "/uploads/song.mp3", out); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(data) != "fake mp4" {
		t.Errorf("output = %q", data)
	}
	if extra := leftovers(t, filepath.Dir(out)); len(extra) != 0 {
		t.Errorf("temporary files left behind: %v", extra)
	}

	args := strings.Join(*captured, " ")
	for _, want := range []string{
		"/usr/bin/ffmpeg",
		"-f lavfi",
		"color=c=0x00FF00:s=1280x720:r=24:d=2.000",
		"-i /uploads/song.mp3",
		"-c:v libx264",
		"-c:a aac",
		"-threads 4",
		"-shortest",
		":fontsdir=/fonts",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("ffmpeg args missing %q: %s", want, args)
		}
	}
}

func TestRender_FailureLeavesNoOutput(t *testing.T) {
	withHelper(t, "failure")
	dir := t.TempDir()
	out := filepath.Join(dir, "video_song.mp4")

	r := NewRenderer(Config{})
	err := r.Render(context.Background(), testTimeline(), "/uploads/song.mp3", out)
	if err == nil {
		t.Fatal("expected error from failing ffmpeg")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("error does not carry ffmpeg output: %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("partial output exists: %v", statErr)
	}
	if extra := leftovers(t, dir); len(extra) != 0 {
		t.Errorf("temporary files left behind: %v", extra)
	}
}

func TestRender_EmptyOutputIsFailure(t *testing.T) {
	withHelper(t, "noop")
	dir := t.TempDir()
	out := filepath.Join(dir, "video_song.mp4")

	if err := NewRenderer(Config{}).Render(context.Background(), testTimeline(), "a.mp3", out); err == nil {
		t.Fatal("expected error when ffmpeg writes nothing")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("output should not exist: %v", statErr)
	}
}

func TestRender_ZeroDuration(t *testing.T) {
	tl := timeline.Build(nil, nil, 0, timeline.DefaultStyle())
	if err := NewRenderer(Config{}).Render(context.Background(), tl, "a.mp3", filepath.Join(t.TempDir(), "x.mp4")); err == nil {
		t.Fatal("expected error for zero-duration timeline")
	}
}

func TestProbeDuration(t *testing.T) {
	captured := withHelper(t, "probe")
	r := NewRenderer(Config{FFmpegPath: "/usr/bin/ffmpeg"})

	d, err := r.ProbeDuration(context.Background(), "/uploads/song.mp3")
	if err != nil {
		t.Fatalf("ProbeDuration() error = %v", err)
	}
	if d != 12.5 {
		t.Errorf("duration = %v, want 12.5", d)
	}
	if (*captured)[0] != "/usr/bin/ffprobe" {
		t.Errorf("probe binary = %q", (*captured)[0])
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}

	switch os.Getenv("RENDER_HELPER_MODE") {
	case "success":
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("fake mp4"), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "song.mp3: Invalid data found when processing input")
		os.Exit(1)
	case "probe":
		fmt.Println("12.500000")
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
