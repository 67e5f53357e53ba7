package keypad

import (
	"fmt"
	"unicode/utf8"
)

// KeyMap is an immutable rows x cols grid of characters. The zero value is
// empty and rejected by New.
type KeyMap struct {
	rows, cols int
	chars      []rune
}

// NewKeyMap copies grid into a KeyMap. Every row must have the same,
// non-zero length.
func NewKeyMap(grid [][]rune) (KeyMap, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return KeyMap{}, fmt.Errorf("%w: keymap must have at least one row and column", ErrInvalidArgument)
	}
	cols := len(grid[0])
	chars := make([]rune, 0, len(grid)*cols)
	for r, row := range grid {
		if len(row) != cols {
			return KeyMap{}, fmt.Errorf("%w: keymap row %d has %d keys, want %d", ErrInvalidArgument, r, len(row), cols)
		}
		chars = append(chars, row...)
	}
	return KeyMap{rows: len(grid), cols: cols, chars: chars}, nil
}

// ParseKeyMap builds a KeyMap from one string per row, one rune per key.
func ParseKeyMap(rows []string) (KeyMap, error) {
	grid := make([][]rune, len(rows))
	for i, row := range rows {
		if !utf8.ValidString(row) {
			return KeyMap{}, fmt.Errorf("%w: keymap row %d is not valid UTF-8", ErrInvalidArgument, i)
		}
		grid[i] = []rune(row)
	}
	return NewKeyMap(grid)
}

// MustParseKeyMap is like ParseKeyMap but panics on error. Intended for
// package-level keymap literals.
func MustParseKeyMap(rows ...string) KeyMap {
	km, err := ParseKeyMap(rows)
	if err != nil {
		panic(err)
	}
	return km
}

// DefaultKeyMap returns the common 4x4 telephone-style layout.
func DefaultKeyMap() KeyMap {
	return MustParseKeyMap(
		"123A",
		"456B",
		"789C",
		"*0#D",
	)
}

// Rows returns the number of rows.
func (k KeyMap) Rows() int { return k.rows }

// Cols returns the number of columns.
func (k KeyMap) Cols() int { return k.cols }

// At returns the character mapped to (row, col).
func (k KeyMap) At(row, col int) rune {
	return k.chars[row*k.cols+col]
}

// Strings returns the map as one string per row.
func (k KeyMap) Strings() []string {
	out := make([]string, k.rows)
	for r := range out {
		out[r] = string(k.chars[r*k.cols : (r+1)*k.cols])
	}
	return out
}

// Empty reports whether the map has no keys.
func (k KeyMap) Empty() bool { return len(k.chars) == 0 }
