package main

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lyricpulse/lyricpulse/internal/api"
	"github.com/lyricpulse/lyricpulse/internal/config"
	"github.com/lyricpulse/lyricpulse/internal/lyrics"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv(config.EnvDataDir, dir)
	t.Setenv(config.EnvAPIToken, "")
	t.Setenv(config.EnvLogLevel, "error")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	dir := isolateEnv(t)
	target := filepath.Join(dir, "conf", "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Errorf("output = %q, want path mentioned", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Error("second init without --overwrite should fail")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Errorf("init --overwrite: %v", err)
	}

	// the sample must load cleanly
	if _, err := runCLI(t, "--config", target, "config", "show"); err != nil {
		t.Errorf("config show with sample: %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvAPIToken, "secret-token")

	out, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "secret-token") {
		t.Error("config show must not print the api token")
	}
	if !strings.Contains(out, "(set)") {
		t.Errorf("output should say the token is set: %s", out)
	}
}

func TestConfigLoadError(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvPort, "not-a-port")

	if _, err := runCLI(t, "config", "show"); err == nil {
		t.Error("invalid port should fail config loading")
	}
	// version skips config loading
	if _, err := runCLI(t, "version"); err != nil {
		t.Errorf("version should not need config: %v", err)
	}
}

func TestVersion(t *testing.T) {
	isolateEnv(t)
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "lyricpulse "+config.Version) {
		t.Errorf("output = %q", out)
	}
}

func TestRenderRequiresLyrics(t *testing.T) {
	isolateEnv(t)
	if _, err := runCLI(t, "render", "song.mp3"); err == nil {
		t.Error("render without --lyrics should fail")
	}
}

func TestWriteSegments(t *testing.T) {
	segs := []lyrics.ReconciledSegment{
		{Start: 0.5, End: 2, Text: "I love you baby", Matched: true, Score: 93},
		{Start: 2, End: 3, Text: "umm yeah so", Score: 20},
	}

	var buf bytes.Buffer
	if err := writeSegments(&buf, segs, "table"); err != nil {
		t.Fatalf("table: %v", err)
	}
	if !strings.Contains(buf.String(), "I love you baby") || !strings.Contains(buf.String(), "2 segments, 1 matched") {
		t.Errorf("table output = %s", buf.String())
	}

	buf.Reset()
	if err := writeSegments(&buf, segs, "json"); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded []lyrics.ReconciledSegment
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || len(decoded) != 2 {
		t.Errorf("json output = %s (%v)", buf.String(), err)
	}

	buf.Reset()
	if err := writeSegments(&buf, segs, "srt"); err != nil {
		t.Fatalf("srt: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "1\n00:00:00,500 --> 00:00:02,000\nI love you baby\n") {
		t.Errorf("srt output = %q", buf.String())
	}
}

func TestJobsCommand(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvAPIToken, "tok")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			api.WriteError(w, http.StatusUnauthorized, "invalid token", api.CodeUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/jobs":
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %q, want 5", r.URL.Query().Get("limit"))
			}
			api.WriteJSON(w, http.StatusOK, api.JobsResponse{Jobs: []api.JobResponse{{
				ID: "0123456789abcdef", Status: "completed", Stage: "done",
				Filename: "song.mp3", OutputName: "video_song.mp4", CreatedAt: "2026-01-01T00:00:00Z",
			}}})
		case "/jobs/missing":
			api.WriteError(w, http.StatusNotFound, "job not found", api.CodeNotFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	host, port, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	t.Setenv(config.EnvHost, host)
	t.Setenv(config.EnvPort, port)

	out, err := runCLI(t, "jobs", "-n", "5")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if !strings.Contains(out, "01234567") || !strings.Contains(out, "video_song.mp4") {
		t.Errorf("jobs output = %s", out)
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Error("job ids should be shortened in the list")
	}

	_, err = runCLI(t, "jobs", "show", "missing")
	if err == nil || !strings.Contains(err.Error(), "job not found") {
		t.Errorf("jobs show missing error = %v", err)
	}
}

func TestShouldSkipConfig(t *testing.T) {
	root := newRootCommand()
	for _, tc := range []struct {
		args []string
		want bool
	}{
		{[]string{"config", "init"}, true},
		{[]string{"version"}, true},
		{[]string{"serve"}, false},
		{[]string{"jobs", "show"}, false},
	} {
		cmd, _, err := root.Find(tc.args)
		if err != nil {
			t.Fatalf("find %v: %v", tc.args, err)
		}
		if got := shouldSkipConfig(cmd); got != tc.want {
			t.Errorf("shouldSkipConfig(%v) = %v, want %v", tc.args, got, tc.want)
		}
	}
}
