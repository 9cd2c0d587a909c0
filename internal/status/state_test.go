package status

import (
	"testing"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Idle, Connecting},
		{Connecting, Connected},
		{Connecting, Failed},
		{Connected, Reconnecting},
		{Connected, Connecting},
		{Reconnecting, Connecting},
		{Reconnecting, Failed},
		{Connected, Closed},
		{Failed, Connecting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(IDLE -> CONNECTED) should fail")
	}
	if m.Current() != Idle {
		t.Errorf("state = %s, want IDLE (unchanged after invalid transition)", m.Current())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindConnStatus {
		t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindConnStatus)
	}
	change, ok := evt.Payload.(Change)
	if !ok {
		t.Fatalf("payload type = %T, want Change", evt.Payload)
	}
	if change.From != Idle || change.To != Connecting {
		t.Errorf("change = %v -> %v, want IDLE -> CONNECTING", change.From, change.To)
	}
}

// TestDropReconnectCycle verifies the unexpected-drop loop:
// CONNECTED → RECONNECTING → CONNECTING → CONNECTED.
func TestDropReconnectCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connected)

	for _, s := range []State{Reconnecting, Connecting, Connected} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Connected {
		t.Errorf("final state = %s, want CONNECTED", m.Current())
	}
}

// TestTokenSwapCycle verifies connect-with-new-token:
// CONNECTED → CONNECTING → CONNECTED without passing through CLOSED.
func TestTokenSwapCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connected)

	for _, s := range []State{Connecting, Connected} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

// TestClosedRequiresReconnect verifies that a closed connection cannot
// jump straight back to CONNECTED.
func TestClosedRequiresReconnect(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connected)
	if err := m.Transition(Closed); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Connected); err == nil {
		t.Fatal("CLOSED -> CONNECTED should fail; must go through CONNECTING")
	}
	if err := m.Transition(Connecting); err != nil {
		t.Fatalf("CLOSED -> CONNECTING: %v", err)
	}
}

// walkTo transitions the machine to a target state via a valid path.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Idle:         {},
		Connecting:   {Connecting},
		Connected:    {Connecting, Connected},
		Reconnecting: {Connecting, Connected, Reconnecting},
		Closed:       {Closed},
		Failed:       {Connecting, Failed},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
