package lineio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyscan/internal/keypad"
)

func TestOpenSim(t *testing.T) {
	for _, name := range []string{"", "sim", "SIM"} {
		b, err := Open(Options{
			Backend: name,
			RowPins: []string{"r0", "r1", "r2", "r3"},
			ColPins: []string{"c0", "c1", "c2"},
		})
		require.NoError(t, err, "backend %q", name)
		assert.IsType(t, &Sim{}, b)
		assert.Equal(t, 4, b.Rows())
		assert.Equal(t, 3, b.Cols())
	}
}

func TestOpenActiveLowIdleMatrixEmitsNothing(t *testing.T) {
	b, err := Open(Options{
		Backend:   BackendSim,
		RowPins:   []string{"r0", "r1", "r2", "r3"},
		ColPins:   []string{"c0", "c1", "c2", "c3"},
		ActiveLow: true,
	})
	require.NoError(t, err)
	require.IsType(t, &Sim{}, b)

	clock := &keypad.ManualClock{}
	s, err := keypad.New(b, keypad.Config{
		KeyMap: keypad.DefaultKeyMap(),
		Timing: keypad.Timing{Debounce: 0, Hold: 2 * keypad.MinDebounce},
		Clock:  clock,
	})
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.ScanOnce(clock.Advance(keypad.MinDebounce))
	}
	assert.Zero(t, s.PressedQueue().Len(), "idle keys must not read as pressed")
	assert.Zero(t, s.HeldQueue().Len())

	b.(*Sim).Press(1, 1)
	s.ScanOnce(clock.Advance(keypad.MinDebounce))
	got, ok := s.Pressed(keypad.NoWait)
	require.True(t, ok)
	assert.Equal(t, '5', got)
	assert.Zero(t, s.PressedQueue().Len())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(Options{Backend: "sim"})
	assert.ErrorIs(t, err, keypad.ErrInvalidArgument)

	_, err = Open(Options{Backend: "spi", RowPins: []string{"a"}, ColPins: []string{"b"}})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpenSimDrivesScanner(t *testing.T) {
	b, err := Open(Options{
		RowPins: []string{"r0", "r1", "r2", "r3"},
		ColPins: []string{"c0", "c1", "c2", "c3"},
	})
	require.NoError(t, err)

	s, err := keypad.New(b, keypad.Config{
		KeyMap: keypad.DefaultKeyMap(),
		Timing: keypad.Timing{Debounce: 0, Hold: 2 * keypad.MinDebounce},
	})
	require.NoError(t, err)
	defer s.Close()

	b.(*Sim).Press(2, 3)
	s.ScanOnce(0)
	got, ok := s.Pressed(keypad.NoWait)
	require.True(t, ok)
	assert.Equal(t, 'C', got)
}
