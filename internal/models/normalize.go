package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lyricpulse/lyricpulse/internal/lyrics"
)

// normalizeTempo reduces the model's tempo report to a positive scalar BPM.
// Beat trackers report either a number or a single-element array; the first
// element is used when an array is returned.
func normalizeTempo(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("tempo missing from beat output")
	}

	var tempo float64
	if err := json.Unmarshal(raw, &tempo); err != nil {
		var arr []float64
		if err := json.Unmarshal(raw, &arr); err != nil {
			return 0, fmt.Errorf("tempo is neither a number nor an array: %s", string(raw))
		}
		if len(arr) == 0 {
			return 0, errors.New("tempo array is empty")
		}
		tempo = arr[0]
	}

	if math.IsNaN(tempo) || math.IsInf(tempo, 0) || tempo <= 0 {
		return 0, fmt.Errorf("invalid tempo %v", tempo)
	}
	return tempo, nil
}

// normalizeBeats drops non-finite or negative instants and sorts the rest.
func normalizeBeats(times []float64) []float64 {
	out := make([]float64, 0, len(times))
	for _, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			continue
		}
		out = append(out, t)
	}
	if !sort.Float64sAreSorted(out) {
		sort.Float64s(out)
	}
	return out
}

func toBeatTrack(out beatsOutput) (BeatTrack, error) {
	tempo, err := normalizeTempo(out.Tempo)
	if err != nil {
		return BeatTrack{}, err
	}
	return BeatTrack{
		Tempo:    tempo,
		Times:    normalizeBeats(out.BeatTimes),
		Duration: out.Duration,
	}, nil
}

// normalizeSegments trims segment text and restores temporal order.
func normalizeSegments(segs []lyrics.TranscriptSegment) []lyrics.TranscriptSegment {
	for i := range segs {
		segs[i].Text = strings.TrimSpace(segs[i].Text)
		for j := range segs[i].Words {
			segs[i].Words[j].Word = strings.TrimSpace(segs[i].Words[j].Word)
		}
	}
	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].Start < segs[j].Start
	})
	return segs
}
