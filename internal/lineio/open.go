//go:build !tinygo

package lineio

import (
	"fmt"
	"strings"

	"keyscan/internal/keypad"
)

// Options selects and parameterizes a backend.
type Options struct {
	// Backend is one of BackendSim, BackendPeriph, BackendRPIO.
	Backend string
	// RowPins and ColPins name the GPIO lines, in matrix order.
	RowPins []string
	ColPins []string
	// ActiveLow selects pulled-up rows and columns driven low when active.
	// The sim works in logical levels and ignores it.
	ActiveLow bool
}

// Open creates the backend described by opts.
func Open(opts Options) (Backend, error) {
	if len(opts.RowPins) == 0 || len(opts.ColPins) == 0 {
		return nil, fmt.Errorf("%w: need at least one row and one column pin", keypad.ErrInvalidArgument)
	}

	var (
		b   Backend
		err error
	)
	switch strings.ToLower(opts.Backend) {
	case BackendSim, "":
		b = NewSim(len(opts.RowPins), len(opts.ColPins))
	case BackendPeriph:
		b, err = NewPeriph(opts.RowPins, opts.ColPins, opts.ActiveLow)
	case BackendRPIO:
		b, err = newRPIOFromNames(opts.RowPins, opts.ColPins, opts.ActiveLow)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
