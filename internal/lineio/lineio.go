// Package lineio provides row/column line backends for the keypad scanner.
//
// Backends:
//   - Sim: in-memory matrix for tests and demos
//   - Periph: Linux single-board computers through periph.io host drivers
//   - RPIO: Raspberry Pi through /dev/gpiomem (linux only)
//   - Machine: microcontrollers through TinyGo's machine package (tinygo only)
//
// All backends satisfy keypad.Lines and speak logical levels: the scanner
// asks for a column to be active and learns whether a row is active. The
// hardware backends map that onto the wiring. Active-high rows are pulled
// down and see a column driven high; active-low rows are pulled up and see
// a column driven low.
package lineio

import (
	"errors"
	"fmt"
	"io"

	"keyscan/internal/keypad"
)

// Backend is a keypad.Lines that owns hardware resources.
type Backend interface {
	keypad.Lines
	io.Closer
}

// Backend names accepted by Open.
const (
	BackendSim    = "sim"
	BackendPeriph = "periph"
	BackendRPIO   = "rpio"
)

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("lineio: unknown backend")

	// ErrNotConfigured is returned when a line is used before being
	// configured in the required direction.
	ErrNotConfigured = errors.New("lineio: line not configured")

	// ErrOutOfRange is returned for a row or column index outside the matrix.
	ErrOutOfRange = errors.New("lineio: line index out of range")
)

func checkIndex(kind string, i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %s %d (have %d)", ErrOutOfRange, kind, i, n)
	}
	return nil
}

// polarity maps logical activity onto electrical high. It is true for
// active-low wiring.
type polarity bool

// high reports whether a line at the given logical level sits high.
func (p polarity) high(active bool) bool {
	return active != bool(p)
}

// active reports whether a line reading high is at its active level.
func (p polarity) active(high bool) bool {
	return high != bool(p)
}
