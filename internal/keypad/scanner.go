package keypad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"keyscan/internal/logging"
)

// Config holds the construction parameters of a Scanner.
type Config struct {
	// KeyMap maps every (row, col) to the character it emits. Its
	// dimensions must match the Lines backend.
	KeyMap KeyMap

	// Timing holds the initial debounce and hold thresholds. The zero value
	// selects DefaultTiming. Values passed here are only checked for
	// 0 <= Debounce < Hold; the stricter rules apply to the runtime setters.
	Timing Timing

	// QueueSize is the capacity of each event queue. Zero means DefaultQueueSize.
	QueueSize int

	// ScanPeriod is the tick of the scan loop started by Run or Start.
	// Zero means DefaultScanPeriod.
	ScanPeriod time.Duration

	// Clock supplies timestamps for Run. Nil means a SystemClock.
	Clock Clock

	// Logger receives scanner logs. Nil means the default logger with
	// component "keypad".
	Logger *slog.Logger

	// Observer receives scan statistics. Nil disables them.
	Observer Observer

	// ThreadSetup, if set, runs on the scan goroutine before the first
	// sweep, for example to pin it to an OS thread and raise its priority.
	// The returned release func runs when the loop exits.
	ThreadSetup func() (release func(), err error)
}

// Scanner sweeps a key matrix and classifies every key.
type Scanner struct {
	lines    Lines
	keymap   KeyMap
	clock    Clock
	period   time.Duration
	log      *slog.Logger
	observer Observer
	setup    func() (func(), error)

	pressed *EventQueue
	held    *EventQueue

	timingMu sync.RWMutex
	timing   Timing

	// scanMu serializes sweeps with each other and with Close. Cell state
	// has a single writer: whoever holds scanMu.
	scanMu   sync.Mutex
	cells    []Cell
	lastScan time.Duration
	swept    bool
	closed   atomic.Bool

	lastSweep atomic.Int64 // wall clock, unix nanos

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	closeOnce sync.Once
}

// New configures every row as input and every column as output, drives
// all columns inactive and returns a Scanner ready to sweep. On error
// nothing acquired by New is left behind.
func New(lines Lines, cfg Config) (*Scanner, error) {
	if lines == nil {
		return nil, fmt.Errorf("%w: nil lines", ErrInvalidArgument)
	}
	km := cfg.KeyMap
	if km.Empty() {
		return nil, fmt.Errorf("%w: empty keymap", ErrInvalidArgument)
	}
	if lines.Rows() != km.Rows() || lines.Cols() != km.Cols() {
		return nil, fmt.Errorf("%w: keymap is %dx%d but lines are %dx%d",
			ErrInvalidArgument, km.Rows(), km.Cols(), lines.Rows(), lines.Cols())
	}

	timing := cfg.Timing
	if timing == (Timing{}) {
		timing = DefaultTiming()
	}
	if timing.Debounce < 0 || timing.Hold <= timing.Debounce {
		return nil, fmt.Errorf("%w: hold %v must exceed debounce %v", ErrInvalidArgument, timing.Hold, timing.Debounce)
	}

	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = DefaultQueueSize
	}
	period := cfg.ScanPeriod
	if period == 0 {
		period = DefaultScanPeriod
	}
	if period < 0 {
		return nil, fmt.Errorf("%w: scan period %v", ErrInvalidArgument, period)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = NewSystemClock()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default().WithComponent("keypad").Logger
	}
	var observer Observer = nopObserver{}
	if cfg.Observer != nil {
		observer = cfg.Observer
	}

	pressed, err := NewEventQueue(queueSize)
	if err != nil {
		return nil, err
	}
	held, err := NewEventQueue(queueSize)
	if err != nil {
		pressed.Close()
		return nil, err
	}

	s := &Scanner{
		lines:    lines,
		keymap:   km,
		clock:    clock,
		period:   period,
		log:      log,
		observer: observer,
		setup:    cfg.ThreadSetup,
		pressed:  pressed,
		held:     held,
		timing:   timing,
		cells:    make([]Cell, km.Rows()*km.Cols()),
	}
	for r := 0; r < km.Rows(); r++ {
		for c := 0; c < km.Cols(); c++ {
			s.cells[r*km.Cols()+c] = Cell{Char: km.At(r, c), State: StateIdle}
		}
	}

	if err := s.initLines(); err != nil {
		pressed.Close()
		held.Close()
		return nil, err
	}

	s.log.Info("keypad initialized",
		"rows", km.Rows(),
		"cols", km.Cols(),
		"debounce", timing.Debounce,
		"hold", timing.Hold,
		"queue_size", queueSize,
	)
	return s, nil
}

func (s *Scanner) initLines() error {
	for r := 0; r < s.keymap.Rows(); r++ {
		if err := s.lines.ConfigureInput(r); err != nil {
			return fmt.Errorf("configure row %d: %w", r, err)
		}
	}
	for c := 0; c < s.keymap.Cols(); c++ {
		if err := s.lines.ConfigureOutput(c); err != nil {
			return fmt.Errorf("configure column %d: %w", c, err)
		}
		if err := s.lines.SetColumn(c, false); err != nil {
			return fmt.Errorf("reset column %d: %w", c, err)
		}
	}
	return nil
}

// ScanOnce performs one sweep at time now unless the previous accepted
// sweep was less than the debounce interval ago. The first call always
// sweeps. Each column is driven active, every row is sampled and fed to
// the key's state machine, then the column is driven inactive again.
func (s *Scanner) ScanOnce(now time.Duration) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if s.closed.Load() {
		return
	}

	timing := s.Timing()
	if s.swept && now-s.lastScan < timing.Debounce {
		s.observer.Skipped()
		return
	}

	start := time.Now()
	rows, cols := s.keymap.Rows(), s.keymap.Cols()
	var readErr error
	for c := 0; c < cols; c++ {
		if err := s.lines.SetColumn(c, true); err != nil {
			s.log.Warn("drive column failed", "col", c, "error", err)
		}
		for r := 0; r < rows; r++ {
			active, err := s.lines.ReadRow(r)
			if err != nil {
				if readErr == nil {
					readErr = err
					s.log.Warn("read row failed", "row", r, "col", c, "error", err)
				}
				s.observer.ReadFailed(r, c, err)
				active = false
			}
			cell := &s.cells[r*cols+c]
			if kind := cell.transition(active, now, timing.Hold); kind != EventNone {
				s.emit(kind, cell.Char, r, c)
			}
		}
		if err := s.lines.SetColumn(c, false); err != nil {
			s.log.Warn("release column failed", "col", c, "error", err)
		}
	}

	s.lastScan = now
	s.swept = true
	s.lastSweep.Store(time.Now().UnixNano())
	s.observer.Sweep(time.Since(start))
}

func (s *Scanner) emit(kind EventKind, char rune, row, col int) {
	q := s.pressed
	if kind == EventHeld {
		q = s.held
	}
	delivered := q.TryEnqueue(char)
	if delivered {
		s.log.Debug("key "+kind.String(), "char", string(char), "row", row, "col", col)
	} else {
		s.log.Debug("event dropped, queue full", "event", kind.String(), "char", string(char))
	}
	s.observer.Emitted(kind, delivered)
}

// Run sweeps the matrix once per scan period until ctx is done. A sweep in
// progress always completes, so every column ends inactive. Run returns
// nil on cancellation and ErrClosed if the scanner is closed.
func (s *Scanner) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if s.setup != nil {
		release, err := s.setup()
		if err != nil {
			s.log.Warn("scan thread setup failed, continuing with default scheduling", "error", err)
		} else if release != nil {
			defer release()
		}
	}

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.log.Debug("scan loop started", "period", s.period)
	for {
		s.ScanOnce(s.clock.Now())
		if s.closed.Load() {
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			s.log.Debug("scan loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Start runs the scan loop on a new goroutine. It returns ErrAlreadyRunning
// if a loop started earlier is still active.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}
	if s.running {
		select {
		case <-s.done:
			// loop exited on its own (parent ctx done)
		default:
			return ErrAlreadyRunning
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.running = true

	go func() {
		defer close(done)
		if err := s.Run(ctx); err != nil && !errors.Is(err, ErrClosed) {
			s.log.Error("scan loop exited", "error", err)
		}
	}()
	return nil
}

// Stop cancels the background scan loop and waits for the current sweep to
// finish. Stopping a scanner that is not running is a no-op.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.cancel()
	<-s.done
	s.running = false
	s.cancel = nil
	return nil
}

// Running reports whether a background scan loop is active.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Close stops the scan loop, waits for any sweep in progress and releases
// both event queues. Blocked consumers return. Close is idempotent.
func (s *Scanner) Close() error {
	s.closeOnce.Do(func() {
		_ = s.Stop()

		s.scanMu.Lock()
		s.closed.Store(true)
		s.scanMu.Unlock()

		s.pressed.Close()
		s.held.Close()
		s.log.Debug("keypad closed")
	})
	return nil
}

// SetDebounceTime changes the debounce interval. d must be greater than
// MinDebounce and less than the hold threshold minus HoldMargin; otherwise
// the current value is kept and an error wrapping ErrInvalidArgument is
// returned.
func (s *Scanner) SetDebounceTime(d time.Duration) error {
	s.timingMu.Lock()
	defer s.timingMu.Unlock()

	if d <= MinDebounce || d >= s.timing.Hold-HoldMargin {
		return fmt.Errorf("%w: debounce %v must be in (%v, %v)",
			ErrInvalidArgument, d, MinDebounce, s.timing.Hold-HoldMargin)
	}
	s.timing.Debounce = d
	s.log.Info("debounce time updated", "debounce", d)
	return nil
}

// SetHoldTime changes the hold threshold. d must exceed the debounce
// interval plus HoldMargin; otherwise the current value is kept and an
// error wrapping ErrInvalidArgument is returned.
func (s *Scanner) SetHoldTime(d time.Duration) error {
	s.timingMu.Lock()
	defer s.timingMu.Unlock()

	if d <= s.timing.Debounce+HoldMargin {
		return fmt.Errorf("%w: hold %v must exceed %v",
			ErrInvalidArgument, d, s.timing.Debounce+HoldMargin)
	}
	s.timing.Hold = d
	s.log.Info("hold time updated", "hold", d)
	return nil
}

// Timing returns the current thresholds.
func (s *Scanner) Timing() Timing {
	s.timingMu.RLock()
	defer s.timingMu.RUnlock()
	return s.timing
}

// Pressed returns the next pressed key, waiting up to timeout.
func (s *Scanner) Pressed(timeout time.Duration) (rune, bool) {
	return s.pressed.Dequeue(timeout)
}

// Held returns the next held key, waiting up to timeout.
func (s *Scanner) Held(timeout time.Duration) (rune, bool) {
	return s.held.Dequeue(timeout)
}

// PressedQueue returns the queue receiving pressed events.
func (s *Scanner) PressedQueue() *EventQueue { return s.pressed }

// HeldQueue returns the queue receiving held events.
func (s *Scanner) HeldQueue() *EventQueue { return s.held }

// KeyMap returns the scanner's keymap.
func (s *Scanner) KeyMap() KeyMap { return s.keymap }

// LastSweep returns the wall time of the last accepted sweep, or the zero
// time if none happened yet.
func (s *Scanner) LastSweep() time.Time {
	ns := s.lastSweep.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
