// Package pipeline drives one song from uploaded audio and lyrics to a
// rendered caption video.
//
// A run moves through a fixed sequence of states and never goes back:
//
//	idle -> loading -> transcribing -> reconciling -> composing -> rendering -> done
//
// Any stage may instead end the run in failed. Failures are returned as a
// *StageError naming the stage that failed.
package pipeline

import "fmt"

// State is a stage of a pipeline run.
type State string

const (
	StateIdle         State = "idle"
	StateLoading      State = "loading"
	StateTranscribing State = "transcribing"
	StateReconciling  State = "reconciling"
	StateComposing    State = "composing"
	StateRendering    State = "rendering"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// States lists the successful path in order.
var States = []State{
	StateIdle,
	StateLoading,
	StateTranscribing,
	StateReconciling,
	StateComposing,
	StateRendering,
	StateDone,
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	if s == StateFailed {
		return true
	}
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// StageError is returned when a stage fails.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Observer is told about every state a run enters, in order.
type Observer func(state State)
