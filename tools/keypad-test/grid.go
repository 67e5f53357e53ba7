package main

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"keyscan/internal/keypad"
)

var (
	cellStyle = lipgloss.NewStyle().
			Width(7).
			Align(lipgloss.Center).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))
	hitStyle  = cellStyle.BorderForeground(lipgloss.Color("42"))
	heldStyle = cellStyle.BorderForeground(lipgloss.Color("205")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// tally counts events per key position.
type tally struct {
	km      keypad.KeyMap
	mu      sync.Mutex
	pressed map[rune]int
	held    map[rune]int
}

func newTally(km keypad.KeyMap) *tally {
	return &tally{km: km, pressed: make(map[rune]int), held: make(map[rune]int)}
}

func (t *tally) add(kind keypad.EventKind, r rune) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if kind == keypad.EventHeld {
		t.held[r]++
	} else {
		t.pressed[r]++
	}
}

// render draws the keymap with per-key press and hold counts.
func (t *tally) render() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]string, 0, t.km.Rows())
	for row := 0; row < t.km.Rows(); row++ {
		cells := make([]string, 0, t.km.Cols())
		for col := 0; col < t.km.Cols(); col++ {
			r := t.km.At(row, col)
			p, h := t.pressed[r], t.held[r]

			style := cellStyle
			switch {
			case h > 0:
				style = heldStyle
			case p > 0:
				style = hitStyle
			}
			label := string(r) + "\n" + dimStyle.Render(fmt.Sprintf("%d/%d", p, h))
			cells = append(cells, style.Render(label))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
