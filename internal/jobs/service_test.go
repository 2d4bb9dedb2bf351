package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lyricpulse/lyricpulse/internal/logging"
	"github.com/lyricpulse/lyricpulse/internal/staging"
)

func newTestStore(t *testing.T) *staging.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := staging.NewStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "outputs"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestService_Submit(t *testing.T) {
	_, repo := setupTestDB(t)
	store := newTestStore(t)
	svc := NewService(repo, store, 10, logging.Discard())

	var notified atomic.Int32
	svc.OnSubmit(func() { notified.Add(1) })

	job, err := svc.Submit(context.Background(), Submission{
		AudioFilename: "My Song.mp3",
		Audio:         strings.NewReader("ID3"),
		LyricText:     "hello world",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.Status != StatusPending {
		t.Errorf("Status = %s, want pending", job.Status)
	}
	if notified.Load() != 1 {
		t.Errorf("notify called %d times, want 1", notified.Load())
	}

	audio, err := os.ReadFile(job.AudioPath)
	if err != nil || string(audio) != "ID3" {
		t.Errorf("stored audio = %q, %v", audio, err)
	}
	text, err := staging.ReadLyrics(job.LyricsPath)
	if err != nil || text != "hello world" {
		t.Errorf("stored lyrics = %q, %v", text, err)
	}

	got, err := svc.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OriginalFilename != "My Song.mp3" {
		t.Errorf("OriginalFilename = %q", got.OriginalFilename)
	}
}

func TestService_Submit_QueueFull(t *testing.T) {
	_, repo := setupTestDB(t)
	store := newTestStore(t)
	svc := NewService(repo, store, 1, logging.Discard())
	ctx := context.Background()

	if _, err := svc.Submit(ctx, Submission{AudioFilename: "a.mp3", Audio: strings.NewReader("a")}); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	_, err := svc.Submit(ctx, Submission{AudioFilename: "b.mp3", Audio: strings.NewReader("b")})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Submit() error = %v, want ErrQueueFull", err)
	}

	entries, _ := os.ReadDir(store.UploadsDir())
	if len(entries) != 1 {
		t.Errorf("rejected upload left files behind: %d job dirs", len(entries))
	}
}

func TestService_Submit_InvalidUpload(t *testing.T) {
	_, repo := setupTestDB(t)
	store := newTestStore(t)
	svc := NewService(repo, store, 0, logging.Discard())
	ctx := context.Background()

	if _, err := svc.Submit(ctx, Submission{AudioFilename: "a.mp3"}); !errors.Is(err, staging.ErrInvalidUpload) {
		t.Errorf("missing audio error = %v, want ErrInvalidUpload", err)
	}
	if _, err := svc.Submit(ctx, Submission{AudioFilename: "", Audio: strings.NewReader("x")}); !errors.Is(err, staging.ErrInvalidUpload) {
		t.Errorf("empty filename error = %v, want ErrInvalidUpload", err)
	}

	entries, _ := os.ReadDir(store.UploadsDir())
	if len(entries) != 0 {
		t.Errorf("invalid uploads left %d job dirs", len(entries))
	}
	jobs, _ := svc.List(ctx, 10)
	if len(jobs) != 0 {
		t.Errorf("invalid uploads created %d jobs", len(jobs))
	}
}

func TestService_Get_NotFound(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, newTestStore(t), 0, logging.Discard())

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
