// Package models talks to the external beat detection and speech
// transcription models. Two backends are supported: a Python module run as
// a subprocess per request, and a long-running HTTP sidecar that keeps the
// models resident.
package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lyricpulse/lyricpulse/internal/lyrics"
)

const (
	BackendSubprocess = "subprocess"
	BackendHTTP       = "http"
)

// AudioTrack is the input audio of one job. Duration is in seconds.
type AudioTrack struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// BeatTrack is the rhythm detected in an audio track. Times are seconds,
// non-decreasing. Tempo is in beats per minute and always positive.
type BeatTrack struct {
	Tempo    float64   `json:"tempo"`
	Times    []float64 `json:"beat_times"`
	Duration float64   `json:"duration"`
}

// BeatExtractor detects the tempo and beat instants of an audio file.
type BeatExtractor interface {
	ExtractBeats(ctx context.Context, audioPath string) (BeatTrack, error)
}

// Transcriber converts speech in an audio file to timed text segments.
// Requests always ask for word timestamps with half precision disabled.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]lyrics.TranscriptSegment, error)
}

// Backend is a complete model service implementation.
type Backend interface {
	BeatExtractor
	Transcriber

	// Doctor probes which models and tools the backend can use.
	Doctor(ctx context.Context) (*Capabilities, error)

	// Warm loads the named transcription model so the first job does not
	// pay for it. Backends without resident models return nil.
	Warm(ctx context.Context, model string) error

	Name() string
}

// Capabilities describes what the model backend can do, as reported by its
// doctor probe.
type Capabilities struct {
	PackageVersion string             `json:"package_version"`
	Python         PythonInfo         `json:"python"`
	Dependencies   map[string]DepInfo `json:"dependencies"`
	Executables    map[string]DepInfo `json:"executables"`
	GPU            GPUInfo            `json:"gpu"`
	Summary        SummaryInfo        `json:"summary"`

	Backend       string    `json:"backend"`
	HasBeats      bool      `json:"has_beats"`
	HasTranscribe bool      `json:"has_transcribe"`
	ProbedAt      time.Time `json:"probed_at"`
}

// PythonInfo holds Python runtime information.
type PythonInfo struct {
	Version    string `json:"version"`
	Executable string `json:"executable"`
}

// DepInfo represents the availability status of a single dependency.
type DepInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GPUInfo holds GPU availability information.
type GPUInfo struct {
	CUDAAvailable bool   `json:"cuda_available"`
	DeviceCount   int    `json:"device_count,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SummaryInfo summarises overall dependency status.
type SummaryInfo struct {
	Available int  `json:"available"`
	Total     int  `json:"total"`
	AllOK     bool `json:"all_ok"`
}

// deriveCapabilities fills the capability flags from the dependency report.
func deriveCapabilities(caps *Capabilities, backend string) {
	caps.Backend = backend
	caps.HasBeats = isAvailable(caps.Dependencies, "librosa")
	caps.HasTranscribe = isAvailable(caps.Dependencies, "whisper") &&
		isAvailable(caps.Executables, "ffmpeg")
	caps.ProbedAt = time.Now()
}

func isAvailable(deps map[string]DepInfo, name string) bool {
	d, ok := deps[name]
	return ok && d.Available
}

// beatsOutput is the JSON written by the beats command and returned by the
// sidecar. Tempo is either a number or a one-element array.
type beatsOutput struct {
	Tempo     json.RawMessage `json:"tempo"`
	BeatTimes []float64       `json:"beat_times"`
	Duration  float64         `json:"duration"`
}

// transcribeOutput is the JSON written by the transcribe command and
// returned by the sidecar.
type transcribeOutput struct {
	Model    string                     `json:"model"`
	Language string                     `json:"language,omitempty"`
	Segments []lyrics.TranscriptSegment `json:"segments"`
}
