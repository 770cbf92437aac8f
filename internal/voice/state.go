// Package voice runs the conversation state machine: it owns the
// conversation state, serializes recognition, completion and synthesis,
// and decides when announcements may be spoken.
package voice

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for an event the current state does not
// accept.
var ErrInvalidTransition = errors.New("voice: invalid transition")

// State is a conversation state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateProcessing
	StateResponding
	StateWaiting
	StateDeactivated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateProcessing:
		return "PROCESSING"
	case StateResponding:
		return "RESPONDING"
	case StateWaiting:
		return "WAITING"
	case StateDeactivated:
		return "DEACTIVATED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives a transition.
type Event int

const (
	EventWake Event = iota
	EventUtterance
	EventIdleTimeout
	EventWait
	EventResume
	EventDeactivate
	EventReactivate
	EventResolved
	EventRecognitionFailed
	EventSpoken
)

var eventNames = [...]string{
	EventWake:              "wake",
	EventUtterance:         "utterance",
	EventIdleTimeout:       "idle_timeout",
	EventWait:              "wait",
	EventResume:            "resume",
	EventDeactivate:        "deactivate",
	EventReactivate:        "reactivate",
	EventResolved:          "resolved",
	EventRecognitionFailed: "recognition_failed",
	EventSpoken:            "spoken",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventWake: StateActive,
	},
	StateActive: {
		EventUtterance:   StateProcessing,
		EventIdleTimeout: StateIdle,
		EventWait:        StateWaiting,
		EventDeactivate:  StateDeactivated,
		EventWake:        StateActive,
	},
	StateProcessing: {
		EventResolved:          StateResponding,
		EventRecognitionFailed: StateActive,
		EventWake:              StateActive,
		EventWait:              StateWaiting,
		EventDeactivate:        StateDeactivated,
	},
	StateResponding: {
		EventSpoken:     StateActive,
		EventWait:       StateWaiting,
		EventWake:       StateActive,
		EventDeactivate: StateDeactivated,
	},
	StateWaiting: {
		EventResume:     StateActive,
		EventWake:       StateActive,
		EventDeactivate: StateDeactivated,
	},
	StateDeactivated: {
		EventReactivate: StateIdle,
	},
}

// Next returns the state reached from s on e.
func Next(s State, e Event) (State, error) {
	if to, ok := transitions[s][e]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, s, e)
}
