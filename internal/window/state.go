package window

import (
	"errors"
	"fmt"
)

// State is the input window's lifecycle state.
type State int

const (
	Uninitialized State = iota
	Created
	Shown
	Hidden
	Destroyed
)

// ErrInvalidTransition is returned for lifecycle moves the window cannot make.
var ErrInvalidTransition = errors.New("invalid window state transition")

var stateNames = map[State]string{
	Uninitialized: "uninitialized",
	Created:       "created",
	Shown:         "shown",
	Hidden:        "hidden",
	Destroyed:     "destroyed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	Uninitialized: {Created},
	Created:       {Shown, Destroyed},
	Shown:         {Hidden, Destroyed},
	Hidden:        {Shown, Destroyed},
	Destroyed:     {Created},
}

// Live reports whether a native window exists in this state.
func (s State) Live() bool {
	return s == Created || s == Shown || s == Hidden
}

// Transition returns the next state, or ErrInvalidTransition.
func (s State) Transition(to State) (State, error) {
	for _, next := range transitions[s] {
		if next == to {
			return to, nil
		}
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
}
