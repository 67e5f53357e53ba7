// Command keypad-test is a manual testing tool for the keypad scanner.
//
// It opens the configured matrix, starts the scan loop, prints every pressed
// and held key as it arrives, and prints statistics every second until
// interrupted with Ctrl+C.
//
// Usage:
//
//	go build -o keypad-test ./tools/keypad-test
//	./keypad-test -config /etc/keyscan/config.toml
//	./keypad-test -sim          # no hardware, scripted key presses
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"keyscan/internal/config"
	"keyscan/internal/keypad"
	"keyscan/internal/lineio"
	"keyscan/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "configuration file (default: search ./ and the config dir)")
	sim := flag.Bool("sim", false, "drive a simulated matrix with scripted key presses")
	verbose := flag.Bool("v", false, "print scanner logs")
	flag.Parse()

	fmt.Println("Keypad Scanner Test")
	fmt.Println("===================")
	fmt.Println()

	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg := config.LoadFromEnv()
	if path != "" {
		var err error
		if cfg, err = config.NewLoader(path).Load(); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config:  %s\n", path)
	} else {
		fmt.Println("Config:  defaults")
	}

	km, err := cfg.Keypad.KeyMap()
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	var (
		lines  lineio.Backend
		script *lineio.Sim
	)
	if *sim {
		script = lineio.NewSim(km.Rows(), km.Cols())
		lines = script
		fmt.Println("Backend: sim (scripted)")
	} else {
		fmt.Printf("Backend: %s ", cfg.Keypad.Backend)
		lines, err = lineio.Open(lineio.Options{
			Backend:   cfg.Keypad.Backend,
			RowPins:   cfg.Keypad.RowPins,
			ColPins:   cfg.Keypad.ColPins,
			ActiveLow: cfg.Keypad.ActiveLow,
		})
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("OK")
	}
	defer lines.Close()
	fmt.Printf("Matrix:  %dx%d, %s\n", km.Rows(), km.Cols(), cfg.Timing)

	logOut := io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	registry := metrics.NewRegistry("keyscan", "")
	stats := metrics.NewKeypadMetrics(registry)

	scanner, err := keypad.New(lines, keypad.Config{
		KeyMap:     km,
		Timing:     cfg.Timing.Timing(),
		QueueSize:  cfg.Keypad.QueueSize,
		ScanPeriod: cfg.Timing.ScanPeriod(),
		Logger:     slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Observer:   stats,
	})
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	defer scanner.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Print("Starting scan loop... ")
	if err := scanner.Start(ctx); err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")

	if script != nil {
		go play(ctx, script, demoScript(km, cfg.Timing.Timing()))
	}

	fmt.Println()
	fmt.Println("Press keys. Press Ctrl+C to stop.")
	fmt.Println()
	fmt.Println("Time        | Sweeps/s | Pressed | Held | Dropped | Queued")
	fmt.Println("------------|----------|---------|------|---------|-------")

	counts := newTally(km)
	go printKeys(ctx, keypad.EventPressed, scanner.PressedQueue(), counts)
	go printKeys(ctx, keypad.EventHeld, scanner.HeldQueue(), counts)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	startTime := time.Now()
	var lastSweeps uint64

loop:
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Println("Received interrupt signal, stopping...")
			break loop

		case now := <-ticker.C:
			sweeps := stats.SweepsTotal.Value()
			fmt.Printf("%11s | %8d | %7d | %4d | %7d | %d/%d\n",
				now.Sub(startTime).Truncate(time.Second).String(),
				sweeps-lastSweeps,
				stats.PressedTotal.Value(),
				stats.HeldTotal.Value(),
				stats.DroppedPressed.Value()+stats.DroppedHeld.Value(),
				scanner.PressedQueue().Len(),
				scanner.HeldQueue().Len())
			lastSweeps = sweeps
		}
	}

	fmt.Print("Stopping scan loop... ")
	if err := scanner.Stop(); err != nil {
		fmt.Printf("FAILED: %v\n", err)
	} else {
		fmt.Println("OK")
	}

	total := time.Since(startTime)
	fmt.Println()
	fmt.Println("Final Statistics")
	fmt.Println("----------------")
	fmt.Printf("Sweeps:           %d (%d skipped)\n", stats.SweepsTotal.Value(), stats.SweepsSkippedTotal.Value())
	fmt.Printf("Keys pressed:     %d\n", stats.PressedTotal.Value())
	fmt.Printf("Keys held:        %d\n", stats.HeldTotal.Value())
	fmt.Printf("Events dropped:   %d\n", stats.DroppedPressed.Value()+stats.DroppedHeld.Value())
	fmt.Printf("Read errors:      %d\n", stats.ReadErrorsTotal.Value())
	fmt.Printf("Mean sweep:       %s\n", time.Duration(stats.SweepDuration.Mean()*float64(time.Second)))
	fmt.Printf("Total duration:   %s\n", total.Truncate(time.Millisecond))
	fmt.Println()
	fmt.Println("Per key (pressed/held)")
	fmt.Println(counts.render())

	fmt.Println()
	fmt.Println("Test completed successfully.")
}

func printKeys(ctx context.Context, kind keypad.EventKind, q *keypad.EventQueue, counts *tally) {
	for {
		r, err := q.DequeueContext(ctx)
		if err != nil {
			return
		}
		counts.add(kind, r)
		fmt.Printf("  %-7s %q\n", kind, r)
	}
}
