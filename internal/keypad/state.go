package keypad

import "time"

// KeyState is the debounced logical state of one key.
type KeyState uint8

const (
	// StateIdle means the key is up and has been for at least one sweep.
	StateIdle KeyState = iota
	// StateReleased means the key went up on the last sweep.
	StateReleased
	// StatePressed means the key went down and has not reached the hold threshold.
	StatePressed
	// StateHeld means the key stayed down past the hold threshold.
	StateHeld
)

// String returns the state name.
func (s KeyState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReleased:
		return "released"
	case StatePressed:
		return "pressed"
	case StateHeld:
		return "held"
	default:
		return "unknown"
	}
}

// EventKind identifies which queue a transition emits into.
type EventKind uint8

const (
	// EventNone means the transition emits nothing.
	EventNone EventKind = iota
	// EventPressed is emitted on entering StatePressed.
	EventPressed
	// EventHeld is emitted on entering StateHeld.
	EventHeld
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventPressed:
		return "pressed"
	case EventHeld:
		return "held"
	default:
		return "none"
	}
}

// Cell is the per-key state owned by the scanner.
type Cell struct {
	Char      rune
	State     KeyState
	HoldStart time.Duration
}

// transition advances c given the level observed at now and reports the
// event to emit, if any. A key becomes Held once it has been active for
// hold since entering Pressed; it only ever does so once per press. A key
// active for exactly hold becomes Held.
func (c *Cell) transition(active bool, now, hold time.Duration) EventKind {
	if active {
		switch c.State {
		case StateIdle, StateReleased:
			c.State = StatePressed
			c.HoldStart = now
			return EventPressed
		case StatePressed:
			if now-c.HoldStart >= hold {
				c.State = StateHeld
				return EventHeld
			}
		}
		return EventNone
	}

	switch c.State {
	case StatePressed, StateHeld:
		c.State = StateReleased
	case StateReleased:
		c.State = StateIdle
	}
	return EventNone
}
