// Package pulse computes the beat-synchronized scale factor applied to
// captions.
package pulse

import "sort"

const (
	// Window is how long, in seconds, a pulse lasts after each beat.
	Window = 0.15
	// Peak is the extra scale applied exactly on a beat.
	Peak = 0.2
)

// Scale returns the caption scale at time t for the given beat times.
//
// For the earliest beat b with 0 <= t-b < Window the scale decays linearly
// from 1+Peak at the beat to 1.0 at the end of the window. Outside every
// window the scale is 1.0. beats must be non-decreasing.
func Scale(t float64, beats []float64) float64 {
	// First beat whose window still covers t. The predicate is monotone in
	// i because beats is sorted, and it is the same comparison a linear
	// scan would make.
	i := sort.Search(len(beats), func(i int) bool {
		return t-beats[i] < Window
	})
	if i == len(beats) {
		return 1.0
	}
	d := t - beats[i]
	if d < 0 {
		return 1.0
	}
	return 1 + Peak*(1-d/Window)
}

// Func returns Scale bound to beats.
func Func(beats []float64) func(t float64) float64 {
	return func(t float64) float64 {
		return Scale(t, beats)
	}
}
