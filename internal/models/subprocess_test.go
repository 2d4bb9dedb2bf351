package models

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRunResult_IsSuccess(t *testing.T) {
	tests := []struct {
		exitCode int
		want     bool
	}{
		{0, true},
		{1, false},
		{-1, false},
		{127, false},
	}
	for _, tt := range tests {
		r := RunResult{ExitCode: tt.exitCode}
		if got := r.IsSuccess(); got != tt.want {
			t.Errorf("RunResult{ExitCode: %d}.IsSuccess() = %v, want %v", tt.exitCode, got, tt.want)
		}
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got, want := buf.String(), " test data"; got != want {
		t.Errorf("after overflow got %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "...world"},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

func TestResolvePython_PreferredNotFound(t *testing.T) {
	if _, err := resolvePython("/nonexistent/python999"); err == nil {
		t.Fatal("expected error for nonexistent python")
	}
}

func TestSafePath_DebugMode(t *testing.T) {
	b := &SubprocessBackend{cfg: SubprocessConfig{DebugPaths: true}}
	path := "/Users/test/secret/file.json"
	if got := b.safePath(path); got != path {
		t.Errorf("debug mode: safePath(%q) = %q, want full path", path, got)
	}
}

// fakeModuleScript stands in for `python -m lyricpulse_models`. It writes
// canned JSON to the --out path for each command.
const fakeModuleScript = `#!/bin/sh
cmd="$3"
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--out" ]; then out="$2"; fi
  shift
done
case "$cmd" in
beats)
  printf '%s' '{"tempo": [128.0], "beat_times": [1.0, 0.5, 1.5], "duration": 2.0}' > "$out" ;;
transcribe)
  printf '%s' '{"model": "base", "segments": [{"start": 0.5, "end": 1.4, "text": " i love yu baby"}]}' > "$out" ;;
doctor)
  printf '%s' '{"package_version": "0.1.0", "dependencies": {"librosa": {"available": true}, "whisper": {"available": true}}, "executables": {"ffmpeg": {"available": true}}}' > "$out" ;;
slow)
  exec sleep 5 ;;
*)
  echo "unknown command: $cmd" >&2
  exit 3 ;;
esac
`

func newFakeBackend(t *testing.T) *SubprocessBackend {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fakepython")
	if err := os.WriteFile(script, []byte(fakeModuleScript), 0755); err != nil {
		t.Fatalf("write fake python: %v", err)
	}

	cfg := DefaultSubprocessConfig(dir, nil)
	cfg.PythonPath = script
	b, err := NewSubprocessBackend(cfg)
	if err != nil {
		t.Fatalf("NewSubprocessBackend() error = %v", err)
	}
	return b
}

func TestSubprocessBackend_ExtractBeats(t *testing.T) {
	b := newFakeBackend(t)

	track, err := b.ExtractBeats(context.Background(), "/audio/song.mp3")
	if err != nil {
		t.Fatalf("ExtractBeats() error = %v", err)
	}
	if track.Tempo != 128.0 {
		t.Errorf("Tempo = %v, want 128", track.Tempo)
	}
	want := []float64{0.5, 1.0, 1.5}
	for i, v := range want {
		if track.Times[i] != v {
			t.Fatalf("Times = %v, want %v", track.Times, want)
		}
	}
	if track.Duration != 2.0 {
		t.Errorf("Duration = %v, want 2.0", track.Duration)
	}
}

func TestSubprocessBackend_Transcribe(t *testing.T) {
	b := newFakeBackend(t)

	segs, err := b.Transcribe(context.Background(), "/audio/song.mp3")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "i love yu baby" || segs[0].Start != 0.5 {
		t.Errorf("segments = %+v", segs)
	}
}

func TestSubprocessBackend_Doctor(t *testing.T) {
	b := newFakeBackend(t)

	caps, err := b.Doctor(context.Background())
	if err != nil {
		t.Fatalf("Doctor() error = %v", err)
	}
	if !caps.HasBeats || !caps.HasTranscribe {
		t.Errorf("capabilities = %+v, want beats and transcribe", caps)
	}
	if caps.Backend != BackendSubprocess {
		t.Errorf("Backend = %q", caps.Backend)
	}
}

func TestSubprocessBackend_CommandFailure(t *testing.T) {
	b := newFakeBackend(t)

	err := b.runJSON(context.Background(), time.Minute, "explode", &struct{}{})
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %v, want *CommandError", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}
	if !strings.Contains(cmdErr.StderrTail, "unknown command: explode") {
		t.Errorf("StderrTail = %q", cmdErr.StderrTail)
	}
}

func TestSubprocessBackend_Timeout(t *testing.T) {
	b := newFakeBackend(t)

	err := b.runJSON(context.Background(), 100*time.Millisecond, "slow", &struct{}{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
}

func TestSubprocessBackend_CleansScratchDirs(t *testing.T) {
	b := newFakeBackend(t)

	if _, err := b.ExtractBeats(context.Background(), "/audio/song.mp3"); err != nil {
		t.Fatalf("ExtractBeats() error = %v", err)
	}
	entries, err := os.ReadDir(b.cfg.WorkDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir has %d leftover entries", len(entries))
	}
}
