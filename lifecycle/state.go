// Package lifecycle tracks the runtime state of every entity instance and
// guards the named transitions between states.
//
// States and transitions:
//
//	transition  from                        intermediate  final
//	load        unloaded, error             loading       active
//	suspend     active                      suspended     -
//	resume      suspended                   active        -
//	reload      active                      loading       active
//	unload      active, suspended, error    unloading     unloaded
//	error       any except error            error         -
package lifecycle

import (
	"fmt"
	"slices"
)

// State is the lifecycle state of one entity instance.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateActive
	StateSuspended
	StateError
	StateUnloading
)

var stateNames = [...]string{
	StateUnloaded:  "unloaded",
	StateLoading:   "loading",
	StateActive:    "active",
	StateSuspended: "suspended",
	StateError:     "error",
	StateUnloading: "unloading",
}

// AllStates lists every state in declaration order.
func AllStates() []State {
	return []State{StateUnloaded, StateLoading, StateActive, StateSuspended, StateError, StateUnloading}
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, ok := ParseState(string(text))
	if !ok {
		return fmt.Errorf("unknown lifecycle state %q", text)
	}
	*s = parsed
	return nil
}

// ParseState returns the state with the given name.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}

// Live reports whether an entity in this state is present in the registry.
func (s State) Live() bool {
	return s == StateActive || s == StateSuspended
}

// TransitionName names a lifecycle transition.
type TransitionName string

const (
	TransitionLoad    TransitionName = "load"
	TransitionSuspend TransitionName = "suspend"
	TransitionResume  TransitionName = "resume"
	TransitionReload  TransitionName = "reload"
	TransitionUnload  TransitionName = "unload"
	TransitionError   TransitionName = "error"
)

// Transition describes the allowed source states of a named transition,
// the state entered while its handler runs, and the state entered when the
// handler succeeds. Without a final state the entity stays in the
// intermediate state.
type Transition struct {
	Name         TransitionName
	From         []State
	Intermediate State
	Final        State
	HasFinal     bool
}

// Allows reports whether the transition may start from s.
func (t Transition) Allows(s State) bool {
	return slices.Contains(t.From, s)
}

// Target returns the state an entity ends in when the handler succeeds.
func (t Transition) Target() State {
	if t.HasFinal {
		return t.Final
	}
	return t.Intermediate
}

// Transitions returns the transition table in a fixed order.
func Transitions() []Transition {
	return []Transition{
		{Name: TransitionLoad, From: []State{StateUnloaded, StateError}, Intermediate: StateLoading, Final: StateActive, HasFinal: true},
		{Name: TransitionSuspend, From: []State{StateActive}, Intermediate: StateSuspended},
		{Name: TransitionResume, From: []State{StateSuspended}, Intermediate: StateActive},
		{Name: TransitionReload, From: []State{StateActive}, Intermediate: StateLoading, Final: StateActive, HasFinal: true},
		{Name: TransitionUnload, From: []State{StateActive, StateSuspended, StateError}, Intermediate: StateUnloading, Final: StateUnloaded, HasFinal: true},
		{Name: TransitionError, From: []State{StateUnloaded, StateLoading, StateActive, StateSuspended, StateUnloading}, Intermediate: StateError},
	}
}
