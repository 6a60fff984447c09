package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is a session lifecycle state.
type State int

const (
	Idle State = iota
	SmokeTesting
	Ready
	Launching
	Running
	Closing
	Closed
)

var stateNames = [...]string{
	Idle:         "idle",
	SmokeTesting: "smoke-testing",
	Ready:        "ready",
	Launching:    "launching",
	Running:      "running",
	Closing:      "closing",
	Closed:       "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// allowed lists the legal successors of each state. No state is re-entered.
var allowed = map[State][]State{
	Idle:         {SmokeTesting},
	SmokeTesting: {Ready, Closed},
	Ready:        {Launching, Closed},
	Launching:    {Running, Closed},
	Running:      {Closing},
	Closing:      {Closed},
}

// ErrInvalidTransition is returned for a move the machine does not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

// Transition is one recorded move.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Machine tracks the current state and its history.
type Machine struct {
	mu      sync.RWMutex
	state   State
	history []Transition
	now     func() time.Time
}

// NewMachine starts in Idle.
func NewMachine() *Machine {
	return &Machine{state: Idle, now: time.Now}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// To moves to next, or fails without changing anything.
func (m *Machine) To(next State, reason string) (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !canMove(m.state, next) {
		return Transition{}, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, m.state, next)
	}
	t := Transition{From: m.state, To: next, Reason: reason, At: m.now()}
	m.state = next
	m.history = append(m.history, t)
	return t, nil
}

// History returns a copy of every transition so far.
func (m *Machine) History() []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Transition(nil), m.history...)
}

// Path returns the visited states, starting with Idle.
func (m *Machine) Path() []State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path := []State{Idle}
	for _, t := range m.history {
		path = append(path, t.To)
	}
	return path
}

func canMove(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
