//go:build linux

package rtsched

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Apply tunes the calling OS thread as described by cfg. The returned
// release func restores the previous priority and affinity, unlocks memory
// and unlocks the thread. It must be called from the same goroutine.
//
// On error every step already taken is undone before returning.
func Apply(cfg Config) (release func(), err error) {
	if !cfg.Realtime {
		return func() {}, nil
	}
	if cfg.Priority < -20 || cfg.Priority > 19 {
		return nil, fmt.Errorf("rtsched: priority %d out of range", cfg.Priority)
	}

	runtime.LockOSThread()
	tid := unix.Gettid()

	var undo []func() error
	release = func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		runtime.UnlockOSThread()
	}
	defer func() {
		if err != nil {
			release()
			release = nil
		}
	}()

	// The raw syscall reports 20 - nice.
	prev, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err != nil {
		return nil, fmt.Errorf("rtsched: get priority: %w", err)
	}
	if err = unix.Setpriority(unix.PRIO_PROCESS, tid, cfg.Priority); err != nil {
		return nil, fmt.Errorf("rtsched: set priority %d: %w", cfg.Priority, err)
	}
	undo = append(undo, func() error {
		return unix.Setpriority(unix.PRIO_PROCESS, tid, 20-prev)
	})

	if cfg.CPU >= 0 {
		var old, set unix.CPUSet
		if err = unix.SchedGetaffinity(tid, &old); err != nil {
			return nil, fmt.Errorf("rtsched: get affinity: %w", err)
		}
		set.Set(cfg.CPU)
		if err = unix.SchedSetaffinity(tid, &set); err != nil {
			return nil, fmt.Errorf("rtsched: pin to cpu %d: %w", cfg.CPU, err)
		}
		undo = append(undo, func() error { return unix.SchedSetaffinity(tid, &old) })
	}

	if cfg.LockMemory {
		if err = unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			return nil, fmt.Errorf("rtsched: lock memory: %w", err)
		}
		undo = append(undo, unix.Munlockall)
	}

	return release, nil
}

// IsPermission reports whether err came from missing privileges, which is
// the usual outcome when running without CAP_SYS_NICE or CAP_IPC_LOCK.
func IsPermission(err error) bool {
	return errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)
}
