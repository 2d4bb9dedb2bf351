package export

import (
	"strings"
	"testing"

	"github.com/lyricpulse/lyricpulse/internal/lyrics"
)

func TestFormatSRTTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.25, "00:01:01,250"},
		{3723.25, "01:02:03,250"},
		{-2, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := formatSRTTimestamp(tt.in); got != tt.want {
			t.Errorf("formatSRTTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderSRT(t *testing.T) {
	segs := []lyrics.ReconciledSegment{
		{Start: 0.5, End: 2.0, Text: "I love you baby"},
		{Start: 2.0, End: 2.0, Text: "  "},
		{Start: 3.0, End: 4.25, Text: "Hold me tonight"},
	}

	got := RenderSRT(segs)
	want := "1\n00:00:00,500 --> 00:00:02,000\nI love you baby\n\n" +
		"2\n00:00:03,000 --> 00:00:04,250\nHold me tonight\n\n"
	if got != want {
		t.Errorf("RenderSRT() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderSRT_Empty(t *testing.T) {
	if got := RenderSRT(nil); got != "" {
		t.Errorf("RenderSRT(nil) = %q, want empty", got)
	}
}

func TestRenderSRT_EndBeforeStartClamped(t *testing.T) {
	got := RenderSRT([]lyrics.ReconciledSegment{{Start: 5, End: 4, Text: "x"}})
	if !strings.Contains(got, "00:00:05,000 --> 00:00:05,000") {
		t.Errorf("RenderSRT() = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"SRT", FormatSRT, false},
		{"vtt", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
