package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/lyricpulse/lyricpulse/internal/lyrics"
)

// Caption output formats.
const (
	FormatJSON = "json"
	FormatSRT  = "srt"
)

// ParseFormat normalises a caption format name. Empty selects JSON.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatSRT:
		return FormatSRT, nil
	default:
		return "", fmt.Errorf("unsupported caption format %q", s)
	}
}

// WriteSRT writes segments as numbered SRT cues. Segments with no text are
// skipped and numbering stays contiguous.
func WriteSRT(w io.Writer, segs []lyrics.ReconciledSegment) error {
	n := 0
	for _, seg := range segs {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		n++
		end := seg.End
		if end < seg.Start {
			end = seg.Start
		}
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			n, formatSRTTimestamp(seg.Start), formatSRTTimestamp(end), text); err != nil {
			return fmt.Errorf("write srt cue %d: %w", n, err)
		}
	}
	return nil
}

// RenderSRT renders segments as an SRT document.
func RenderSRT(segs []lyrics.ReconciledSegment) string {
	var buf bytes.Buffer
	_ = WriteSRT(&buf, segs)
	return buf.String()
}

func formatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	msTotal := int(seconds*1000 + 0.5)
	hours := msTotal / 3_600_000
	msTotal %= 3_600_000
	minutes := msTotal / 60_000
	msTotal %= 60_000
	secs := msTotal / 1_000
	millis := msTotal % 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}
