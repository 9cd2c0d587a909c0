package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
)

// State represents the realtime connection lifecycle.
type State string

const (
	Idle         State = "IDLE"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
	Closed       State = "CLOSED"
	Failed       State = "FAILED"
)

// validTransitions defines allowed state transitions. Connected may go
// straight back to Connecting when connect is called with a new token
// (the old connection is torn down first).
var validTransitions = map[State][]State{
	Idle:         {Connecting, Closed},
	Connecting:   {Connected, Reconnecting, Failed, Closed},
	Connected:    {Connecting, Reconnecting, Closed},
	Reconnecting: {Connecting, Connected, Failed, Closed},
	Closed:       {Connecting},
	Failed:       {Connecting, Closed},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Idle, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed; the state is unchanged in that case.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Emit(bus.KindConnStatus, Change{From: from, To: to})
	}
	return nil
}

// Change is the payload for status change events.
type Change struct {
	From State
	To   State
}
