package main

import (
	"time"

	"keyscan/internal/config"
	"keyscan/internal/keypad"
	"keyscan/internal/logging"
)

// timingSetter is the part of keypad.Scanner a reload touches.
type timingSetter interface {
	SetDebounceTime(d time.Duration) error
	SetHoldTime(d time.Duration) error
	Timing() keypad.Timing
}

// applyTiming moves s to want. Every intermediate state keeps hold above
// debounce plus keypad.HoldMargin: when debounce grows, hold is raised
// first, otherwise debounce is lowered first.
func applyTiming(s timingSetter, want keypad.Timing) error {
	cur := s.Timing()
	if cur == want {
		return nil
	}

	steps := []func() error{
		func() error { return setIfChanged(s.SetDebounceTime, cur.Debounce, want.Debounce) },
		func() error { return setIfChanged(s.SetHoldTime, cur.Hold, want.Hold) },
	}
	if want.Debounce > cur.Debounce {
		steps[0], steps[1] = steps[1], steps[0]
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func setIfChanged(set func(time.Duration) error, cur, want time.Duration) error {
	if cur == want {
		return nil
	}
	return set(want)
}

// reload applies the live-tunable parts of a new configuration and logs
// the sections that only take effect after a restart.
func (d *daemon) reload(old, new *config.Config) {
	if d.scanner != nil {
		if err := applyTiming(d.scanner, new.Timing.Timing()); err != nil {
			d.log.Warn("timing change rejected", "timing", new.Timing.String(), "error", err)
		}
	}

	if !d.levelSet && old.Logging.Level != new.Logging.Level {
		if level, err := logging.ParseLevel(new.Logging.Level); err == nil {
			d.logger.SetLevel(level)
			d.log.Info("log level changed", "level", logging.LevelString(level))
		}
	}

	if sections := config.RestartRequired(old, new); len(sections) > 0 {
		d.log.Warn("configuration changed, restart to apply", "sections", sections)
	}
}
