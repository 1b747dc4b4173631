package form

import "fmt"

// State names a stage of the request lifecycle.
type State string

const (
	StateIdle             State = "IDLE"
	StateValidating       State = "VALIDATING"
	StateRenderWithErrors State = "RENDER_WITH_ERRORS"
	StateProcessing       State = "PROCESSING"
	StateRedirectOrReload State = "REDIRECT_OR_RELOAD"
)

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateRenderWithErrors, StateProcessing},
	// An upload that cannot be stored sends the visitor back to the form.
	StateProcessing: {StateRedirectOrReload, StateRenderWithErrors},
}

// CanTransition reports whether the lifecycle allows moving from one state
// to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a request ends in s.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateRenderWithErrors || s == StateRedirectOrReload
}

type lifecycle struct {
	states []State
}

func newLifecycle() *lifecycle {
	return &lifecycle{states: []State{StateIdle}}
}

func (l *lifecycle) current() State {
	return l.states[len(l.states)-1]
}

func (l *lifecycle) move(to State) error {
	from := l.current()
	if !CanTransition(from, to) {
		return fmt.Errorf("form: invalid state transition %s -> %s", from, to)
	}
	l.states = append(l.states, to)
	return nil
}

func (l *lifecycle) trace() []State {
	return append([]State(nil), l.states...)
}
