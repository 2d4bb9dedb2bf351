// Package staging manages the on-disk working files of jobs: uploaded audio
// and lyrics under a per-job directory, rendered videos in a shared output
// directory, and the retention sweeps that reclaim both.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lyricpulse/lyricpulse/internal/export"
)

// LyricsFilename is the name lyrics are stored under in a job directory.
const LyricsFilename = "lyrics.txt"

const maxFilenameLength = 200

// ErrInvalidUpload is returned for uploads that cannot be stored.
var ErrInvalidUpload = errors.New("invalid upload")

// Store lays out job files under an uploads directory and an outputs
// directory.
type Store struct {
	uploadsDir string
	outputsDir string
}

// NewStore creates both directories if needed.
func NewStore(uploadsDir, outputsDir string) (*Store, error) {
	for _, dir := range []string{uploadsDir, outputsDir} {
		if strings.TrimSpace(dir) == "" {
			return nil, errors.New("staging directories must be set")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Store{uploadsDir: uploadsDir, outputsDir: outputsDir}, nil
}

func (s *Store) UploadsDir() string { return s.uploadsDir }
func (s *Store) OutputsDir() string { return s.outputsDir }

// JobDir returns the directory holding a job's inputs.
func (s *Store) JobDir(jobID string) string {
	return filepath.Join(s.uploadsDir, jobID)
}

// OutputPath returns where an output file of the given name lives.
func (s *Store) OutputPath(name string) string {
	return filepath.Join(s.outputsDir, filepath.Base(name))
}

// SaveAudio copies r into the job directory under a sanitized form of
// filename and returns the stored path.
func (s *Store) SaveAudio(jobID, filename string, r io.Reader) (string, error) {
	name := CleanFilename(filename)
	if name == "" {
		return "", fmt.Errorf("%w: audio filename is empty", ErrInvalidUpload)
	}
	if name == LyricsFilename {
		name = "audio_" + name
	}
	return s.save(jobID, name, r)
}

// SaveLyrics writes the lyric text into the job directory.
func (s *Store) SaveLyrics(jobID, text string) (string, error) {
	return s.save(jobID, LyricsFilename, strings.NewReader(text))
}

func (s *Store) save(jobID, name string, r io.Reader) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}
	dir := s.JobDir(jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	path := filepath.Join(dir, name)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return path, nil
}

// ReadLyrics returns the lyric text stored at path.
func ReadLyrics(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read lyrics: %w", err)
	}
	return string(data), nil
}

// RemoveJob deletes a job's input directory. Missing directories are not an
// error.
func (s *Store) RemoveJob(jobID string) error {
	if err := validateJobID(jobID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.JobDir(jobID)); err != nil {
		return fmt.Errorf("remove job dir: %w", err)
	}
	return nil
}

// CleanFilename reduces a client-supplied filename to a safe base name.
func CleanFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	name := export.SanitizeName(base, maxFilenameLength)
	name = strings.TrimLeft(name, ".")
	return name
}

func validateJobID(jobID string) error {
	if jobID == "" || jobID != filepath.Base(jobID) || strings.HasPrefix(jobID, ".") {
		return fmt.Errorf("%w: bad job id %q", ErrInvalidUpload, jobID)
	}
	return nil
}
