// Package rtsched tunes the OS thread running the scan loop.
//
// A keypad scan loop wakes every millisecond and is sensitive to
// scheduling jitter. Apply locks the calling goroutine to its OS thread,
// raises the thread's priority, optionally pins it to one CPU and locks
// the process memory. Only Linux supports the full set; other platforms
// report ErrUnsupported when tuning is requested.
package rtsched

import "errors"

// ErrUnsupported is returned when tuning is requested on a platform that
// cannot provide it.
var ErrUnsupported = errors.New("rtsched: not supported on this platform")

// Config selects the tuning applied to the scan thread.
type Config struct {
	// Realtime enables tuning. When false Apply does nothing.
	Realtime bool
	// Priority is the nice value for the thread, -20 (highest) to 19.
	Priority int
	// CPU pins the thread to one CPU. -1 leaves affinity unchanged.
	CPU int
	// LockMemory locks current and future pages of the process.
	LockMemory bool
}

// Setup returns a function suitable for keypad.Config.ThreadSetup.
func Setup(cfg Config) func() (func(), error) {
	return func() (func(), error) {
		return Apply(cfg)
	}
}
