//go:build tinygo

package lineio

import "machine"

// Machine drives the matrix on a microcontroller through TinyGo. Rows are
// pulled down and columns idle low, or with active-low wiring rows are
// pulled up and columns idle high.
type Machine struct {
	rows []machine.Pin
	cols []machine.Pin
	pol  polarity
}

// NewMachine returns a backend for the given pins, in matrix order.
func NewMachine(rows, cols []machine.Pin, activeLow bool) *Machine {
	return &Machine{rows: rows, cols: cols, pol: polarity(activeLow)}
}

// Rows returns the number of row lines.
func (m *Machine) Rows() int { return len(m.rows) }

// Cols returns the number of column lines.
func (m *Machine) Cols() int { return len(m.cols) }

// ConfigureInput sets row as an input pulled to the idle level.
func (m *Machine) ConfigureInput(row int) error {
	if err := checkIndex("row", row, len(m.rows)); err != nil {
		return err
	}
	mode := machine.PinInputPulldown
	if m.pol {
		mode = machine.PinInputPullup
	}
	m.rows[row].Configure(machine.PinConfig{Mode: mode})
	return nil
}

// ConfigureOutput sets col as an output at the idle level.
func (m *Machine) ConfigureOutput(col int) error {
	if err := checkIndex("column", col, len(m.cols)); err != nil {
		return err
	}
	m.cols[col].Configure(machine.PinConfig{Mode: machine.PinOutput})
	m.cols[col].Set(m.pol.high(false))
	return nil
}

// SetColumn drives col to its active or idle level.
func (m *Machine) SetColumn(col int, active bool) error {
	if err := checkIndex("column", col, len(m.cols)); err != nil {
		return err
	}
	m.cols[col].Set(m.pol.high(active))
	return nil
}

// ReadRow reports whether row is at its active level.
func (m *Machine) ReadRow(row int) (bool, error) {
	if err := checkIndex("row", row, len(m.rows)); err != nil {
		return false, err
	}
	return m.pol.active(m.rows[row].Get()), nil
}

// Close returns every column to idle.
func (m *Machine) Close() error {
	for _, pin := range m.cols {
		pin.Set(m.pol.high(false))
	}
	return nil
}
