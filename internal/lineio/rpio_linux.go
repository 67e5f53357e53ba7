//go:build linux && !tinygo

package lineio

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// rpio maps one process-wide view of the GPIO registers; share it between
// backends.
var (
	rpioMu   sync.Mutex
	rpioRefs int
)

// RPIO drives the matrix on a Raspberry Pi through /dev/gpiomem. Pins are
// BCM numbers. Rows are pulled down and columns idle low, or with
// active-low wiring rows are pulled up and columns idle high.
type RPIO struct {
	rows   []rpio.Pin
	cols   []rpio.Pin
	pol    polarity
	closed bool
}

// NewRPIO maps the GPIO registers and returns a backend for the given BCM
// pins.
func NewRPIO(rowPins, colPins []int, activeLow bool) (*RPIO, error) {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	if rpioRefs == 0 {
		if err := rpio.Open(); err != nil {
			return nil, fmt.Errorf("rpio open: %w", err)
		}
	}
	rpioRefs++

	r := &RPIO{
		rows: make([]rpio.Pin, len(rowPins)),
		cols: make([]rpio.Pin, len(colPins)),
		pol:  polarity(activeLow),
	}
	for i, n := range rowPins {
		r.rows[i] = rpio.Pin(n)
	}
	for i, n := range colPins {
		r.cols[i] = rpio.Pin(n)
	}
	return r, nil
}

func newRPIOFromNames(rowNames, colNames []string, activeLow bool) (Backend, error) {
	rows, err := parseBCM(rowNames)
	if err != nil {
		return nil, err
	}
	cols, err := parseBCM(colNames)
	if err != nil {
		return nil, err
	}
	return NewRPIO(rows, cols, activeLow)
}

// parseBCM accepts "17", "GPIO17" or "BCM17".
func parseBCM(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		s := strings.ToUpper(strings.TrimSpace(name))
		s = strings.TrimPrefix(strings.TrimPrefix(s, "GPIO"), "BCM")
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 53 {
			return nil, fmt.Errorf("rpio: invalid BCM pin %q", name)
		}
		out[i] = n
	}
	return out, nil
}

// Rows returns the number of row lines.
func (r *RPIO) Rows() int { return len(r.rows) }

// Cols returns the number of column lines.
func (r *RPIO) Cols() int { return len(r.cols) }

// rowPull is the pull that holds an open row at its idle level.
func rowPull(p polarity) rpio.Pull {
	if p {
		return rpio.PullUp
	}
	return rpio.PullDown
}

func state(p polarity, active bool) rpio.State {
	if p.high(active) {
		return rpio.High
	}
	return rpio.Low
}

// ConfigureInput sets row as an input pulled to the idle level.
func (r *RPIO) ConfigureInput(row int) error {
	if err := checkIndex("row", row, len(r.rows)); err != nil {
		return err
	}
	r.rows[row].Input()
	r.rows[row].Pull(rowPull(r.pol))
	return nil
}

// ConfigureOutput sets col as an output at the idle level.
func (r *RPIO) ConfigureOutput(col int) error {
	if err := checkIndex("column", col, len(r.cols)); err != nil {
		return err
	}
	r.cols[col].Output()
	r.cols[col].Write(state(r.pol, false))
	return nil
}

// SetColumn drives col to its active or idle level.
func (r *RPIO) SetColumn(col int, active bool) error {
	if err := checkIndex("column", col, len(r.cols)); err != nil {
		return err
	}
	r.cols[col].Write(state(r.pol, active))
	return nil
}

// ReadRow reports whether row is at its active level.
func (r *RPIO) ReadRow(row int) (bool, error) {
	if err := checkIndex("row", row, len(r.rows)); err != nil {
		return false, err
	}
	return r.pol.active(r.rows[row].Read() == rpio.High), nil
}

// Close returns every column to idle and unmaps the registers once the last
// backend is closed.
func (r *RPIO) Close() error {
	rpioMu.Lock()
	defer rpioMu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	for _, pin := range r.cols {
		pin.Write(state(r.pol, false))
	}
	rpioRefs--
	if rpioRefs == 0 {
		return rpio.Close()
	}
	return nil
}
