package render

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/lyricpulse/lyricpulse/internal/timeline"
)

// frameEpsilon absorbs float error when mapping times to frame indexes.
const frameEpsilon = 1e-9

// scaleRun is a span of a clip during which the sampled scale is constant.
type scaleRun struct {
	Start   float64
	End     float64
	Percent int
}

// scaleRuns samples clip.Scale at every frame the clip covers and merges
// consecutive frames with the same rounded percentage. The first run starts
// at the clip start and the last ends at the clip end.
func scaleRuns(clip timeline.CaptionClip, fps int) []scaleRun {
	scale := clip.Scale
	if scale == nil {
		scale = func(float64) float64 { return 1.0 }
	}
	pct := func(t float64) int {
		return int(math.Round(scale(t) * 100))
	}

	start, end := clip.Start, clip.End()
	first := int(math.Ceil(start*float64(fps) - frameEpsilon))
	last := int(math.Ceil(end*float64(fps) - frameEpsilon)) // exclusive
	if fps <= 0 || last <= first {
		return []scaleRun{{Start: start, End: end, Percent: pct(start)}}
	}

	runs := []scaleRun{{Start: start, Percent: pct(float64(first) / float64(fps))}}
	for f := first + 1; f < last; f++ {
		t := float64(f) / float64(fps)
		p := pct(t)
		if p == runs[len(runs)-1].Percent {
			continue
		}
		runs[len(runs)-1].End = t
		runs = append(runs, scaleRun{Start: t, Percent: p})
	}
	runs[len(runs)-1].End = end
	return runs
}

// WriteASS writes an Advanced SubStation Alpha script that draws every
// caption of tl centered on the canvas, with the beat pulse expressed as
// \fscx/\fscy overrides sampled once per frame.
func WriteASS(w io.Writer, tl timeline.Timeline) error {
	st := tl.Style
	bw := bufio.NewWriter(w)

	margin := 0
	if st.BoxWidth > 0 && st.BoxWidth < st.Width {
		margin = (st.Width - st.BoxWidth) / 2
	}
	vmargin := 0
	if st.BoxHeight > 0 && st.BoxHeight < st.Height {
		vmargin = (st.Height - st.BoxHeight) / 2
	}

	fmt.Fprintf(bw, "[Script Info]\n")
	fmt.Fprintf(bw, "ScriptType: v4.00+\n")
	fmt.Fprintf(bw, "PlayResX: %d\n", st.Width)
	fmt.Fprintf(bw, "PlayResY: %d\n", st.Height)
	fmt.Fprintf(bw, "WrapStyle: 0\n")
	fmt.Fprintf(bw, "ScaledBorderAndShadow: yes\n\n")

	fmt.Fprintf(bw, "[V4+ Styles]\n")
	fmt.Fprintf(bw, "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(bw, "Style: Caption,%s,%d,%s,%s,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,0,0,5,%d,%d,%d,1\n\n",
		st.FontName, st.FontSize, assColor(st.TextColor), assColor(st.TextColor), margin, margin, vmargin)

	fmt.Fprintf(bw, "[Events]\n")
	fmt.Fprintf(bw, "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, clip := range tl.Clips {
		text := escapeASSText(clip.Text)
		if text == "" {
			continue
		}
		for _, run := range scaleRuns(clip, st.FPS) {
			fmt.Fprintf(bw, "Dialogue: 0,%s,%s,Caption,,0,0,0,,{\\fscx%d\\fscy%d}%s\n",
				assTimestamp(run.Start), assTimestamp(run.End), run.Percent, run.Percent, text)
		}
	}
	return bw.Flush()
}

// assColor encodes c in ASS &HAABBGGRR form with full opacity.
func assColor(c timeline.Color) string {
	return fmt.Sprintf("&H00%02X%02X%02X", c.B, c.G, c.R)
}

// ffmpegColor encodes c as 0xRRGGBB for lavfi sources.
func ffmpegColor(c timeline.Color) string {
	return fmt.Sprintf("0x%02X%02X%02X", c.R, c.G, c.B)
}

// assTimestamp formats seconds as H:MM:SS.cc.
func assTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int(math.Round(seconds * 100))
	h := cs / 360000
	cs %= 360000
	m := cs / 6000
	cs %= 6000
	s := cs / 100
	cs %= 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// wordJoiner after a literal backslash stops libass reading it as the start
// of an override such as \N or \fs.
const wordJoiner = "\u2060"

var assTextReplacer = strings.NewReplacer(
	`\`, `\`+wordJoiner,
	"\r\n", `\N`,
	"\n", `\N`,
	"{", `\{`,
	"}", `\}`,
)

func escapeASSText(s string) string {
	return assTextReplacer.Replace(strings.TrimSpace(s))
}
