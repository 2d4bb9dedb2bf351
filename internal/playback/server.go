// Package playback streams rendered videos with HTTP Range support.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrBadName is returned for output names that could escape the output
// directory.
var ErrBadName = errors.New("invalid output name")

type OutputService interface {
	ServeOutput(w http.ResponseWriter, r *http.Request, name string) error
}

// system mime tables do not reliably carry these
var knownTypes = map[string]string{
	".mp4": "video/mp4",
	".srt": "application/x-subrip",
	".ass": "text/x-ssa",
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// Server serves files from a single output directory.
type Server struct {
	outputsDir string
	logger     *slog.Logger
}

func NewServer(outputsDir string, logger *slog.Logger) *Server {
	return &Server{outputsDir: outputsDir, logger: logger}
}

// Resolve maps an output name to its path, rejecting anything that is not a
// plain file name.
func (s *Server) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return filepath.Join(s.outputsDir, name), nil
}

func (s *Server) ServeOutput(w http.ResponseWriter, r *http.Request, name string) error {
	path, err := s.Resolve(name)
	if err != nil {
		http.Error(w, "invalid output name", http.StatusBadRequest)
		return nil
	}
	return s.ServeFile(w, r, path)
}

// ServeFile writes filePath honouring a single byte range from the Range
// header. Missing files produce a 404 and a nil error.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	size := stat.Size()
	contentType := contentTypeFor(filePath)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(filePath)))

	parsedRange, err := ParseRange(r.Header.Get("Range"), size)
	if errors.Is(err, ErrUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	// A malformed header is ignored and the whole file is sent.
	if err != nil && !errors.Is(err, ErrInvalidRange) {
		return err
	}

	var body io.Reader = file
	if parsedRange == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
	} else {
		if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek: %w", err)
		}
		w.Header().Set("Content-Length", strconv.FormatInt(parsedRange.ContentLength(), 10))
		w.Header().Set("Content-Range", parsedRange.ContentRange(size))
		w.WriteHeader(http.StatusPartialContent)
		body = io.LimitReader(file, parsedRange.ContentLength())
	}

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(w, body); err != nil {
		// client went away mid-stream
		s.logger.Debug("output stream interrupted", "file", filepath.Base(filePath), "error", err)
	}
	return nil
}
