// Package fsm defines the recording lifecycle state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateNotStarted  State = "not_started"
	StateRecording   State = "recording"
	StateStopped     State = "stopped"
	StateTranscribed State = "transcribed"
	StateDiscarded   State = "discarded"
)

const (
	EventStart       Event = "start"
	EventStop        Event = "stop"
	EventTranscribed Event = "transcribed"
	EventDiscard     Event = "discard"
)

// Terminal reports whether no further events are accepted from state.
func Terminal(state State) bool {
	return state == StateTranscribed || state == StateDiscarded
}

func Transition(current State, event Event) (State, error) {
	if event == EventDiscard {
		switch current {
		case StateNotStarted, StateRecording, StateStopped:
			return StateDiscarded, nil
		case StateDiscarded:
			return StateDiscarded, nil
		}
	}

	switch current {
	case StateNotStarted:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopped:
		switch event {
		case EventTranscribed:
			return StateTranscribed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateTranscribed, StateDiscarded:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
