package lineio

import (
	"fmt"
	"sync"
)

// Sim is an in-memory key matrix. A row reads active while at least one
// driven column crosses a pressed key on that row, which is exactly what a
// pulled-down row line sees on real hardware.
type Sim struct {
	mu      sync.Mutex
	rows    int
	cols    int
	keys    []bool // row-major, true = contact closed
	driven  []bool
	inputs  []bool
	outputs []bool
	pulses  []int
	readErr error
	closed  bool
}

// NewSim creates a rows x cols matrix with every key released.
func NewSim(rows, cols int) *Sim {
	return &Sim{
		rows:    rows,
		cols:    cols,
		keys:    make([]bool, rows*cols),
		driven:  make([]bool, cols),
		inputs:  make([]bool, rows),
		outputs: make([]bool, cols),
		pulses:  make([]int, cols),
	}
}

// Rows returns the number of row lines.
func (s *Sim) Rows() int { return s.rows }

// Cols returns the number of column lines.
func (s *Sim) Cols() int { return s.cols }

// ConfigureInput marks row as an input.
func (s *Sim) ConfigureInput(row int) error {
	if err := checkIndex("row", row, s.rows); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[row] = true
	return nil
}

// ConfigureOutput marks col as an output.
func (s *Sim) ConfigureOutput(col int) error {
	if err := checkIndex("column", col, s.cols); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[col] = true
	return nil
}

// SetColumn drives col active or inactive.
func (s *Sim) SetColumn(col int, active bool) error {
	if err := checkIndex("column", col, s.cols); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.outputs[col] {
		return fmt.Errorf("%w: column %d is not an output", ErrNotConfigured, col)
	}
	if active && !s.driven[col] {
		s.pulses[col]++
	}
	s.driven[col] = active
	return nil
}

// ReadRow reports whether row sees an active level.
func (s *Sim) ReadRow(row int) (bool, error) {
	if err := checkIndex("row", row, s.rows); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return false, s.readErr
	}
	if !s.inputs[row] {
		return false, fmt.Errorf("%w: row %d is not an input", ErrNotConfigured, row)
	}
	for c := 0; c < s.cols; c++ {
		if s.driven[c] && s.keys[row*s.cols+c] {
			return true, nil
		}
	}
	return false, nil
}

// Set closes or opens the contact at (row, col).
func (s *Sim) Set(row, col int, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[row*s.cols+col] = pressed
}

// Press closes the contact at (row, col).
func (s *Sim) Press(row, col int) { s.Set(row, col, true) }

// Release opens the contact at (row, col).
func (s *Sim) Release(row, col int) { s.Set(row, col, false) }

// ReleaseAll opens every contact.
func (s *Sim) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.keys {
		s.keys[i] = false
	}
}

// FailReads makes every subsequent ReadRow return err. Pass nil to recover.
func (s *Sim) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// ActiveColumns returns the columns currently driven active.
func (s *Sim) ActiveColumns() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for c, on := range s.driven {
		if on {
			out = append(out, c)
		}
	}
	return out
}

// Pulses returns how many times col has been driven active.
func (s *Sim) Pulses(col int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulses[col]
}

// Close drives every column inactive.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.driven {
		s.driven[c] = false
	}
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
