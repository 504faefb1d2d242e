// Package mode implements the operating-mode state machine that gates
// capture, training and inference.
//
//	Loading --ready--> Idle <--collect/stop--> Collecting
//	                   Idle --train--> Training --done--> Idle
package mode

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when an operation is attempted in a mode that forbids it.
var ErrInvalidState = errors.New("invalid state")

// Mode is the single active operating state of the process.
type Mode int

const (
	Loading Mode = iota
	Idle
	Collecting
	Training
)

func (m Mode) String() string {
	switch m {
	case Loading:
		return "loading"
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Training:
		return "training"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name for JSON and logs.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name written by MarshalText.
func (m *Mode) UnmarshalText(text []byte) error {
	for c := Loading; c <= Training; c++ {
		if c.String() == string(text) {
			*m = c
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", text)
}

// Event drives a transition.
type Event int

const (
	// Ready signals that the detector and estimator finished initialization.
	Ready Event = iota
	// StartCollect begins accumulating labelled examples.
	StartCollect
	// StopCollect ends a collection run; the dataset is persisted after it.
	StopCollect
	// StartTraining begins a training run.
	StartTraining
	// TrainingDone ends a training run, successful or not.
	TrainingDone
	// Reset empties the dataset. It is only legal in Idle, so a collection
	// run always ends through StopCollect and is persisted.
	Reset
)

func (e Event) String() string {
	switch e {
	case Ready:
		return "ready"
	case StartCollect:
		return "start-collect"
	case StopCollect:
		return "stop-collect"
	case StartTraining:
		return "start-training"
	case TrainingDone:
		return "training-done"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Next is the transition function. It returns ErrInvalidState for any
// event that is not legal in m; Idle is the only mode from which
// Collecting or Training can be entered.
func Next(m Mode, e Event) (Mode, error) {
	switch {
	case m == Loading && e == Ready:
		return Idle, nil
	case m == Idle && e == StartCollect:
		return Collecting, nil
	case m == Collecting && e == StopCollect:
		return Idle, nil
	case m == Idle && e == StartTraining:
		return Training, nil
	case m == Training && e == TrainingDone:
		return Idle, nil
	case m == Idle && e == Reset:
		return Idle, nil
	}
	return m, fmt.Errorf("%w: %s not allowed while %s", ErrInvalidState, e, m)
}
