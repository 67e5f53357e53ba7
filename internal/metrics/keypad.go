package metrics

import (
	"time"

	"keyscan/internal/keypad"
)

// KeypadMetrics holds the scanner metrics. It implements keypad.Observer.
type KeypadMetrics struct {
	registry *Registry
	started  time.Time

	// Counters
	SweepsTotal        *Counter
	SweepsSkippedTotal *Counter
	PressedTotal       *Counter
	HeldTotal          *Counter
	DroppedPressed     *Counter
	DroppedHeld        *Counter
	ReadErrorsTotal    *Counter

	// Gauges
	UptimeSeconds *Gauge

	// Histograms
	SweepDuration *Histogram
}

var _ keypad.Observer = (*KeypadMetrics)(nil)

// NewKeypadMetrics creates and registers the scanner metrics.
func NewKeypadMetrics(registry *Registry) *KeypadMetrics {
	if registry == nil {
		registry = Default()
	}

	m := &KeypadMetrics{
		registry: registry,
		started:  time.Now(),

		SweepsTotal: registry.RegisterCounter(
			"sweeps_total",
			"Total number of matrix sweeps performed",
			nil,
		),
		SweepsSkippedTotal: registry.RegisterCounter(
			"sweeps_skipped_total",
			"Scan calls skipped because the debounce interval had not elapsed",
			nil,
		),
		PressedTotal: registry.RegisterCounter(
			"pressed_total",
			"Key presses delivered to the pressed queue",
			nil,
		),
		HeldTotal: registry.RegisterCounter(
			"held_total",
			"Key holds delivered to the held queue",
			nil,
		),
		DroppedPressed: registry.RegisterCounter(
			"dropped_total",
			"Events dropped because their queue was full",
			Labels{"queue": "pressed"},
		),
		DroppedHeld: registry.RegisterCounter(
			"dropped_total",
			"Events dropped because their queue was full",
			Labels{"queue": "held"},
		),
		ReadErrorsTotal: registry.RegisterCounter(
			"read_errors_total",
			"Row reads that failed and were treated as inactive",
			nil,
		),
		SweepDuration: registry.RegisterHistogram(
			"sweep_duration_seconds",
			"Time spent in one matrix sweep",
			nil,
			SweepBuckets,
		),
	}

	m.UptimeSeconds = registry.RegisterGaugeFunc(
		"uptime_seconds",
		"Seconds since the metrics were initialized",
		nil,
		func() int64 { return int64(time.Since(m.started).Seconds()) },
	)

	return m
}

// Sweep records one completed sweep.
func (m *KeypadMetrics) Sweep(elapsed time.Duration) {
	m.SweepsTotal.Inc()
	m.SweepDuration.ObserveDuration(elapsed)
}

// Skipped records a scan call that fell inside the debounce interval.
func (m *KeypadMetrics) Skipped() {
	m.SweepsSkippedTotal.Inc()
}

// Emitted records an event, delivered or dropped.
func (m *KeypadMetrics) Emitted(kind keypad.EventKind, delivered bool) {
	switch kind {
	case keypad.EventPressed:
		if delivered {
			m.PressedTotal.Inc()
		} else {
			m.DroppedPressed.Inc()
		}
	case keypad.EventHeld:
		if delivered {
			m.HeldTotal.Inc()
		} else {
			m.DroppedHeld.Inc()
		}
	}
}

// ReadFailed records a failed row read.
func (m *KeypadMetrics) ReadFailed(row, col int, err error) {
	m.ReadErrorsTotal.Inc()
}

// Depth reports the number of queued events.
type Depth interface {
	Len() int
}

// TrackQueues exposes the current depth of both event queues. The gauges
// are sampled at scrape time.
func (m *KeypadMetrics) TrackQueues(pressed, held Depth) {
	m.registry.RegisterGaugeFunc(
		"queue_depth",
		"Events waiting in a queue",
		Labels{"queue": "pressed"},
		func() int64 { return int64(pressed.Len()) },
	)
	m.registry.RegisterGaugeFunc(
		"queue_depth",
		"Events waiting in a queue",
		Labels{"queue": "held"},
		func() int64 { return int64(held.Len()) },
	)
}

// Snapshot returns a snapshot of key metrics.
func (m *KeypadMetrics) Snapshot() map[string]any {
	return map[string]any{
		"sweeps_total":          m.SweepsTotal.Value(),
		"sweeps_skipped_total":  m.SweepsSkippedTotal.Value(),
		"pressed_total":         m.PressedTotal.Value(),
		"held_total":            m.HeldTotal.Value(),
		"dropped_pressed_total": m.DroppedPressed.Value(),
		"dropped_held_total":    m.DroppedHeld.Value(),
		"read_errors_total":     m.ReadErrorsTotal.Value(),
		"uptime_seconds":        m.UptimeSeconds.Value(),
		"sweep_avg_seconds":     m.SweepDuration.Mean(),
	}
}
