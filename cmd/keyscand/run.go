package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"keyscan/internal/config"
	"keyscan/internal/health"
	"keyscan/internal/keypad"
	"keyscan/internal/lineio"
	"keyscan/internal/logging"
	"keyscan/internal/metrics"
	"keyscan/internal/rtsched"
)

const shutdownTimeout = 5 * time.Second

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	path := fs.String("config", defaultConfigPath(), "configuration file")
	level := fs.String("log-level", "", "override logging.level")
	fs.Parse(args)

	loader := config.NewLoader(*path)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", *path, err)
		return 1
	}
	if *level != "" {
		if _, err := logging.ParseLevel(*level); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		cfg.Logging.Level = *level
	}

	lcfg, err := cfg.Logging.LoggerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger, err := logging.New(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Close()
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := &daemon{
		loader:   loader,
		cfg:      cfg,
		logger:   logger,
		log:      logger.WithComponent("keyscand").Logger,
		registry: metrics.Default(),
		checker:  health.NewChecker(),
		levelSet: *level != "",
	}
	if err := d.run(ctx); err != nil {
		d.log.Error("keyscand failed", "error", err)
		return 1
	}
	return 0
}

type daemon struct {
	loader   *config.Loader
	cfg      *config.Config
	logger   *logging.Logger
	log      *slog.Logger
	registry *metrics.Registry
	checker  *health.Checker
	levelSet bool // -log-level given, ignore logging.level on reload

	scanner *keypad.Scanner
}

func (d *daemon) run(ctx context.Context) error {
	cfg := d.cfg

	lines, err := lineio.Open(lineio.Options{
		Backend:   cfg.Keypad.Backend,
		RowPins:   cfg.Keypad.RowPins,
		ColPins:   cfg.Keypad.ColPins,
		ActiveLow: cfg.Keypad.ActiveLow,
	})
	if err != nil {
		return fmt.Errorf("open %s lines: %w", cfg.Keypad.Backend, err)
	}
	defer lines.Close()

	km, err := cfg.Keypad.KeyMap()
	if err != nil {
		return err
	}

	observer := metrics.NewKeypadMetrics(d.registry)
	sched := rtsched.Config{
		Realtime:   cfg.Scheduler.Realtime,
		Priority:   cfg.Scheduler.Priority,
		CPU:        cfg.Scheduler.CPU,
		LockMemory: cfg.Scheduler.LockMemory,
	}
	scanner, err := keypad.New(lines, keypad.Config{
		KeyMap:      km,
		Timing:      cfg.Timing.Timing(),
		QueueSize:   cfg.Keypad.QueueSize,
		ScanPeriod:  cfg.Timing.ScanPeriod(),
		Logger:      d.logger.WithComponent("keypad").Logger,
		Observer:    observer,
		ThreadSetup: permissionHint(rtsched.Setup(sched), d.log),
	})
	if err != nil {
		return fmt.Errorf("create scanner: %w", err)
	}
	defer scanner.Close()
	d.scanner = scanner
	observer.TrackQueues(scanner.PressedQueue(), scanner.HeldQueue())

	d.checker.RegisterFunc("scan_loop", true, health.ScanLoopCheck(scanner.LastSweep, stallAfter(cfg)))
	d.checker.RegisterFunc("pressed_queue", false, health.QueueCheck(scanner.PressedQueue()))
	d.checker.RegisterFunc("held_queue", false, health.QueueCheck(scanner.HeldQueue()))
	d.checker.RegisterFunc("line_reads", false, health.CustomCheck(readErrorsSince(observer.ReadErrorsTotal)))

	d.loader.OnChange(d.reload)
	if err := d.loader.Watch(); err != nil {
		d.log.Warn("config hot reload disabled", "path", d.loader.Path(), "error", err)
	}
	defer d.loader.Close()

	d.log.Info("keyscand starting",
		"version", version,
		"config", d.loader.Path(),
		"backend", cfg.Keypad.Backend,
		"rows", km.Rows(),
		"cols", km.Cols(),
		"timing", cfg.Timing.String(),
		"realtime", cfg.Scheduler.Realtime,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scanner.Run(gctx) })
	g.Go(func() error { return consume(gctx, d.log, keypad.EventPressed, scanner.PressedQueue()) })
	g.Go(func() error { return consume(gctx, d.log, keypad.EventHeld, scanner.HeldQueue()) })
	g.Go(func() error { return d.watchErrors(gctx) })
	if cfg.Metrics.Enabled {
		d.serve(gctx, g)
	}

	d.checker.SetReady(true)
	err = g.Wait()
	d.checker.SetReady(false)
	d.log.Info("keyscand stopped")
	return err
}

// stallAfter is how old the last sweep may get before the scan loop is
// reported unhealthy.
func stallAfter(cfg *config.Config) time.Duration {
	return max(time.Second, 100*cfg.Timing.ScanPeriod(), 10*cfg.Timing.Timing().Debounce)
}

// permissionHint runs setup and turns a missing-privilege failure into a
// single explanatory warning. The scan loop then runs with default
// scheduling.
func permissionHint(setup func() (func(), error), log *slog.Logger) func() (func(), error) {
	return func() (func(), error) {
		release, err := setup()
		if err != nil && rtsched.IsPermission(err) {
			log.Warn("realtime scheduling needs CAP_SYS_NICE (and CAP_IPC_LOCK for lock_memory), running unprivileged",
				"error", err)
			return nil, nil
		}
		return release, err
	}
}

// readErrorsSince fails while line reads keep failing: it reports an error
// if the counter moved since the previous call.
func readErrorsSince(c *metrics.Counter) func() error {
	var seen atomic.Uint64
	return func() error {
		n := c.Value()
		if prev := seen.Swap(n); n > prev {
			return fmt.Errorf("%d line reads failed since last check", n-prev)
		}
		return nil
	}
}

// consume logs every event from q until ctx is done or q is closed.
func consume(ctx context.Context, log *slog.Logger, kind keypad.EventKind, q *keypad.EventQueue) error {
	msg := "key " + kind.String()
	for {
		r, err := q.DequeueContext(ctx)
		switch {
		case err == nil:
			log.Info(msg, "char", string(r))
		case errors.Is(err, keypad.ErrClosed), ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

func (d *daemon) watchErrors(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-d.loader.Errors():
			d.log.Warn("config reload rejected, keeping previous settings", "error", err)
		}
	}
}

// serve exposes metrics and health probes until ctx is done. Scrapers may
// speak HTTP/1.1 or cleartext HTTP/2.
func (d *daemon) serve(ctx context.Context, g *errgroup.Group) {
	mc := d.cfg.Metrics
	mux := http.NewServeMux()
	mux.Handle(mc.Path, d.registry.HTTPHandler())
	mux.Handle("/healthz", d.checker.HealthHandler())
	mux.Handle("/livez", d.checker.LivenessHandler())
	mux.Handle("/readyz", d.checker.ReadinessHandler())

	srv := &http.Server{
		Addr:              mc.Listen,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		d.log.Info("serving metrics", "listen", mc.Listen, "path", mc.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
