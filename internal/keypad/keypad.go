// Package keypad scans a matrix keypad and turns raw row levels into
// debounced key events.
//
// A Scanner drives one column at a time through a Lines backend, samples
// every row, and feeds the observed level into a per-key state machine:
//
//	Idle -> Pressed -> Held -> Released -> Idle
//
// Entering Pressed or Held emits the key's character into the pressed or
// held EventQueue. Queues are bounded and the scan loop never blocks on
// them: when a consumer falls behind, new events are dropped.
//
// The package has no hardware dependency. GPIO access lives behind the
// Lines interface (see internal/lineio for backends) and time behind Clock.
package keypad

import (
	"errors"
	"fmt"
	"time"
)

// Defaults mirror the values used on the reference hardware.
const (
	DefaultDebounce   = 10 * time.Millisecond
	DefaultHold       = 500 * time.Millisecond
	DefaultQueueSize  = 10
	DefaultScanPeriod = time.Millisecond
)

// Timing limits enforced by SetDebounceTime and SetHoldTime.
const (
	// MinDebounce is the exclusive lower bound for the debounce interval.
	MinDebounce = time.Millisecond
	// HoldMargin is the minimum gap between debounce and hold.
	HoldMargin = 100 * time.Millisecond
)

var (
	// ErrInvalidArgument is returned for rejected configuration, including
	// timing changes that would break the debounce/hold relation.
	ErrInvalidArgument = errors.New("keypad: invalid argument")

	// ErrAlreadyRunning is returned when Start is called on a running scanner.
	ErrAlreadyRunning = errors.New("keypad: scan loop already running")

	// ErrClosed is returned by operations on a closed scanner or queue.
	ErrClosed = errors.New("keypad: closed")
)

// Lines is the line I/O capability the scanner drives.
//
// Rows are inputs, columns are outputs. ReadRow reports whether the row
// currently sees an active level; polarity is the backend's concern.
type Lines interface {
	Rows() int
	Cols() int
	ConfigureInput(row int) error
	ConfigureOutput(col int) error
	SetColumn(col int, active bool) error
	ReadRow(row int) (bool, error)
}

// Observer receives scan statistics. Implementations must not block.
type Observer interface {
	// Sweep is called after every accepted sweep.
	Sweep(elapsed time.Duration)
	// Skipped is called when the debounce gate rejects a sweep.
	Skipped()
	// Emitted is called for every pressed or held event, delivered or not.
	Emitted(kind EventKind, delivered bool)
	// ReadFailed is called when the backend fails to sample a row.
	ReadFailed(row, col int, err error)
}

type nopObserver struct{}

func (nopObserver) Sweep(time.Duration)        {}
func (nopObserver) Skipped()                   {}
func (nopObserver) Emitted(EventKind, bool)    {}
func (nopObserver) ReadFailed(int, int, error) {}

// Timing holds the two adjustable thresholds of the scanner.
type Timing struct {
	// Debounce is the minimum time between accepted sweeps.
	Debounce time.Duration
	// Hold is how long a key must stay active after Pressed to become Held.
	Hold time.Duration
}

// DefaultTiming returns the default debounce and hold thresholds.
func DefaultTiming() Timing {
	return Timing{Debounce: DefaultDebounce, Hold: DefaultHold}
}

// Validate checks t against the rules applied by the runtime setters.
func (t Timing) Validate() error {
	if t.Debounce <= MinDebounce {
		return fmt.Errorf("%w: debounce %v must be greater than %v", ErrInvalidArgument, t.Debounce, MinDebounce)
	}
	if t.Hold <= t.Debounce+HoldMargin {
		return fmt.Errorf("%w: hold %v must exceed debounce %v by more than %v",
			ErrInvalidArgument, t.Hold, t.Debounce, HoldMargin)
	}
	return nil
}
