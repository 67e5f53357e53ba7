//go:build !tinygo

package lineio

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Periph drives the matrix through periph.io. Pins are looked up by name
// ("GPIO17", "P1_11", ...) in the periph registry.
//
// With active-low wiring rows are pulled up and an active column is driven
// low; otherwise rows are pulled down and active columns driven high.
type Periph struct {
	rows []gpio.PinIO
	cols []gpio.PinIO
	pol  polarity
}

// NewPeriph initializes the periph host drivers and resolves the pins.
func NewPeriph(rowPins, colPins []string, activeLow bool) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return newPeriph(gpioreg.ByName, rowPins, colPins, activeLow)
}

func newPeriph(lookup func(string) gpio.PinIO, rowPins, colPins []string, activeLow bool) (*Periph, error) {
	p := &Periph{
		rows: make([]gpio.PinIO, len(rowPins)),
		cols: make([]gpio.PinIO, len(colPins)),
		pol:  polarity(activeLow),
	}
	for i, name := range rowPins {
		pin := lookup(name)
		if pin == nil {
			return nil, fmt.Errorf("periph: unknown row pin %q", name)
		}
		p.rows[i] = pin
	}
	for i, name := range colPins {
		pin := lookup(name)
		if pin == nil {
			return nil, fmt.Errorf("periph: unknown column pin %q", name)
		}
		p.cols[i] = pin
	}
	return p, nil
}

// Rows returns the number of row lines.
func (p *Periph) Rows() int { return len(p.rows) }

// Cols returns the number of column lines.
func (p *Periph) Cols() int { return len(p.cols) }

func (p *Periph) level(active bool) gpio.Level {
	return gpio.Level(p.pol.high(active))
}

// ConfigureInput sets row as an input pulled to the idle level.
func (p *Periph) ConfigureInput(row int) error {
	if err := checkIndex("row", row, len(p.rows)); err != nil {
		return err
	}
	pull := gpio.PullDown
	if p.pol {
		pull = gpio.PullUp
	}
	if err := p.rows[row].In(pull, gpio.NoEdge); err != nil {
		return fmt.Errorf("periph: row %s: %w", p.rows[row], err)
	}
	return nil
}

// ConfigureOutput sets col as an output at the idle level.
func (p *Periph) ConfigureOutput(col int) error {
	if err := checkIndex("column", col, len(p.cols)); err != nil {
		return err
	}
	if err := p.cols[col].Out(p.level(false)); err != nil {
		return fmt.Errorf("periph: column %s: %w", p.cols[col], err)
	}
	return nil
}

// SetColumn drives col to its active or idle level.
func (p *Periph) SetColumn(col int, active bool) error {
	if err := checkIndex("column", col, len(p.cols)); err != nil {
		return err
	}
	return p.cols[col].Out(p.level(active))
}

// ReadRow reports whether row is at its active level.
func (p *Periph) ReadRow(row int) (bool, error) {
	if err := checkIndex("row", row, len(p.rows)); err != nil {
		return false, err
	}
	return p.rows[row].Read() == p.level(true), nil
}

// Close returns every column to idle and halts all pins.
func (p *Periph) Close() error {
	var errs []error
	for _, pin := range p.cols {
		if err := pin.Out(p.level(false)); err != nil {
			errs = append(errs, err)
		}
	}
	for _, pin := range append(append([]gpio.PinIO{}, p.rows...), p.cols...) {
		if err := pin.Halt(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
