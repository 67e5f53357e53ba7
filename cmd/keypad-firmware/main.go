//go:build tinygo && rp2040

// keypad-firmware - keypad scanner for a Raspberry Pi Pico
//
// Scans a 4x4 membrane keypad wired to GPIO2-5 (rows) and GPIO6-9
// (columns) and prints every press and hold on the USB serial console:
//
//	tinygo flash -target=pico ./cmd/keypad-firmware
package main

import (
	"context"
	"log/slog"
	"machine"
	"os"

	"keyscan/internal/keypad"
	"keyscan/internal/lineio"
)

var (
	rowPins = []machine.Pin{machine.GPIO2, machine.GPIO3, machine.GPIO4, machine.GPIO5}
	colPins = []machine.Pin{machine.GPIO6, machine.GPIO7, machine.GPIO8, machine.GPIO9}
)

// activeLow is set for boards wiring the keypad to ground instead of 3V3.
const activeLow = false

func main() {
	lines := lineio.NewMachine(rowPins, colPins, activeLow)
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	scanner, err := keypad.New(lines, keypad.Config{
		KeyMap: keypad.DefaultKeyMap(),
		Timing: keypad.DefaultTiming(),
		Logger: log,
	})
	if err != nil {
		println("keypad:", err.Error())
		return
	}

	ctx := context.Background()
	if err := scanner.Start(ctx); err != nil {
		println("keypad:", err.Error())
		return
	}

	go report(ctx, "held", scanner.HeldQueue())
	report(ctx, "pressed", scanner.PressedQueue())
}

func report(ctx context.Context, what string, q *keypad.EventQueue) {
	for {
		r, err := q.DequeueContext(ctx)
		if err != nil {
			return
		}
		println(what, string(r))
	}
}
