package main

import (
	"context"
	"time"

	"keyscan/internal/keypad"
	"keyscan/internal/lineio"
)

// step holds one key down for a while, then releases it for gap.
type step struct {
	row, col int
	down     time.Duration
	gap      time.Duration
}

// demoScript taps every key of km in order and holds every fourth one past
// the hold threshold.
func demoScript(km keypad.KeyMap, timing keypad.Timing) []step {
	tap := 4 * timing.Debounce
	if tap < 50*time.Millisecond {
		tap = 50 * time.Millisecond
	}
	if tap >= timing.Hold {
		tap = timing.Hold / 2
	}
	hold := timing.Hold + tap

	var steps []step
	for row := 0; row < km.Rows(); row++ {
		for col := 0; col < km.Cols(); col++ {
			down := tap
			if len(steps)%4 == 3 {
				down = hold
			}
			steps = append(steps, step{row: row, col: col, down: down, gap: 2 * tap})
		}
	}
	return steps
}

// play runs steps against sim in a loop until ctx is done.
func play(ctx context.Context, sim *lineio.Sim, steps []step) {
	defer sim.ReleaseAll()
	for {
		for _, s := range steps {
			sim.Press(s.row, s.col)
			if !sleep(ctx, s.down) {
				return
			}
			sim.Release(s.row, s.col)
			if !sleep(ctx, s.gap) {
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
