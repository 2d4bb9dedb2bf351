// Package timeline turns reconciled lyric segments and beat times into the
// caption layout that the renderer draws.
package timeline

import (
	"math"

	"github.com/lyricpulse/lyricpulse/internal/lyrics"
	"github.com/lyricpulse/lyricpulse/internal/pulse"
)

// MinClipDuration is the shortest time a caption stays on screen.
const MinClipDuration = 0.1

// Color is an RGB colour.
type Color struct {
	R, G, B uint8
}

// Style holds the fixed visual parameters of a render.
type Style struct {
	Width      int
	Height     int
	FPS        int
	FontSize   int
	FontPath   string
	FontName   string
	TextColor  Color
	Background Color
	BoxWidth   int
	BoxHeight  int
}

// DefaultStyle returns the standard 1280x720, 24 fps caption style with
// white 70pt Inter Tight text in a centered 1000x300 box over green.
func DefaultStyle() Style {
	return Style{
		Width:      1280,
		Height:     720,
		FPS:        24,
		FontSize:   70,
		FontName:   "Inter Tight",
		TextColor:  Color{255, 255, 255},
		Background: Color{0, 255, 0},
		BoxWidth:   1000,
		BoxHeight:  300,
	}
}

// CaptionClip is one caption on the timeline. Scale takes the absolute
// timeline time in seconds.
type CaptionClip struct {
	Text     string
	Start    float64
	Duration float64
	Scale    func(t float64) float64
}

// End returns the time the clip leaves the screen.
func (c CaptionClip) End() float64 {
	return c.Start + c.Duration
}

// Active reports whether the clip is on screen at time t.
func (c CaptionClip) Active(t float64) bool {
	return t >= c.Start && t < c.End()
}

// Background is the solid colour layer spanning the whole audio.
type Background struct {
	Color    Color
	Duration float64
}

// Timeline is the composed caption layout for one song.
type Timeline struct {
	Style      Style
	Background Background
	Clips      []CaptionClip
	Duration   float64
}

// Build lays out one caption per segment, in segment order. Each clip keeps
// its segment's start, lasts at least MinClipDuration and pulses on beats.
func Build(segments []lyrics.ReconciledSegment, beats []float64, duration float64, style Style) Timeline {
	scale := pulse.Func(beats)
	clips := make([]CaptionClip, len(segments))
	for i, seg := range segments {
		clips[i] = CaptionClip{
			Text:     seg.Text,
			Start:    seg.Start,
			Duration: math.Max(MinClipDuration, seg.End-seg.Start),
			Scale:    scale,
		}
	}
	if duration < 0 {
		duration = 0
	}
	return Timeline{
		Style:      style,
		Background: Background{Color: style.Background, Duration: duration},
		Clips:      clips,
		Duration:   duration,
	}
}

// FrameCount returns the number of frames needed to cover the timeline.
func (tl Timeline) FrameCount(fps int) int {
	if fps <= 0 || tl.Duration <= 0 {
		return 0
	}
	return int(math.Ceil(tl.Duration * float64(fps)))
}

// FrameTimes returns the presentation time of every frame at fps.
func (tl Timeline) FrameTimes(fps int) []float64 {
	n := tl.FrameCount(fps)
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / float64(fps)
	}
	return times
}

// ActiveClips returns the indexes of clips on screen at time t.
func (tl Timeline) ActiveClips(t float64) []int {
	var idx []int
	for i, c := range tl.Clips {
		if c.Active(t) {
			idx = append(idx, i)
		}
	}
	return idx
}
