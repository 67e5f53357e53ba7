// Package config handles configuration loading, validation, and management for keyscan.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"keyscan/internal/keypad"
	"keyscan/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Keypad describes the matrix wiring and key layout.
	Keypad KeypadConfig `toml:"keypad" json:"keypad" yaml:"keypad"`

	// Timing holds debounce, hold and scan period settings.
	Timing TimingConfig `toml:"timing" json:"timing" yaml:"timing"`

	// Scheduler controls real-time scheduling of the scan thread.
	Scheduler SchedulerConfig `toml:"scheduler" json:"scheduler" yaml:"scheduler"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration for the HTTP exposition endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// KeypadConfig describes the key matrix.
type KeypadConfig struct {
	// Keymap lists the characters of each row; every rune is one key.
	Keymap []string `toml:"keymap" json:"keymap" yaml:"keymap"`

	// RowPins and ColPins name the GPIO lines in matrix order. Their
	// lengths must match the keymap dimensions.
	RowPins []string `toml:"row_pins" json:"row_pins" yaml:"row_pins"`
	ColPins []string `toml:"col_pins" json:"col_pins" yaml:"col_pins"`

	// Backend selects the line driver: "sim", "periph" or "rpio".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// ActiveLow inverts reads and column drive for matrices wired to ground.
	ActiveLow bool `toml:"active_low" json:"active_low" yaml:"active_low"`

	// QueueSize is the capacity of each event queue.
	QueueSize int `toml:"queue_size" json:"queue_size" yaml:"queue_size"`
}

// TimingConfig holds scan timing in milliseconds.
type TimingConfig struct {
	// DebounceMs is the minimum interval between two accepted sweeps.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// HoldMs is how long a key must stay down to be reported as held.
	HoldMs int `toml:"hold_ms" json:"hold_ms" yaml:"hold_ms"`

	// ScanPeriodMs is the tick of the scan loop.
	ScanPeriodMs int `toml:"scan_period_ms" json:"scan_period_ms" yaml:"scan_period_ms"`
}

// SchedulerConfig controls the scan thread's OS scheduling.
type SchedulerConfig struct {
	// Realtime enables thread pinning and priority changes.
	Realtime bool `toml:"realtime" json:"realtime" yaml:"realtime"`

	// Priority is the nice value applied to the scan thread (-20..19).
	Priority int `toml:"priority" json:"priority" yaml:"priority"`

	// CPU pins the scan thread to one CPU. -1 leaves affinity alone.
	CPU int `toml:"cpu" json:"cpu" yaml:"cpu"`

	// LockMemory locks the process address space into RAM.
	LockMemory bool `toml:"lock_memory" json:"lock_memory" yaml:"lock_memory"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file used when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`

	// RedactKeys lists log attribute keys whose values are hidden, for
	// example "char" when the keypad is used for PIN entry.
	RedactKeys []string `toml:"redact_keys,omitempty" json:"redact_keys,omitempty" yaml:"redact_keys,omitempty"`
}

// MetricsConfig holds the metrics and health endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" json:"listen" yaml:"listen"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// DefaultConfig returns a configuration for a 4x4 keypad on the simulated
// backend, with Raspberry Pi header pins filled in for convenience.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Keypad: KeypadConfig{
			Keymap:    keypad.DefaultKeyMap().Strings(),
			RowPins:   []string{"GPIO5", "GPIO6", "GPIO13", "GPIO19"},
			ColPins:   []string{"GPIO12", "GPIO16", "GPIO20", "GPIO21"},
			Backend:   "sim",
			QueueSize: keypad.DefaultQueueSize,
		},
		Timing: TimingConfig{
			DebounceMs:   int(keypad.DefaultDebounce / time.Millisecond),
			HoldMs:       int(keypad.DefaultHold / time.Millisecond),
			ScanPeriodMs: int(keypad.DefaultScanPeriod / time.Millisecond),
		},
		Scheduler: SchedulerConfig{
			Realtime: false,
			Priority: -10,
			CPU:      -1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   logging.DefaultConfig().FilePath,
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9108",
			Path:    "/metrics",
		},
	}
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with KEYSCAN_. Malformed numeric values
// are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KEYSCAN_BACKEND"); v != "" {
		c.Keypad.Backend = v
	}
	if v := os.Getenv("KEYSCAN_ROW_PINS"); v != "" {
		c.Keypad.RowPins = splitList(v)
	}
	if v := os.Getenv("KEYSCAN_COL_PINS"); v != "" {
		c.Keypad.ColPins = splitList(v)
	}
	if v := os.Getenv("KEYSCAN_ACTIVE_LOW"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Keypad.ActiveLow = b
		}
	}

	envInt("KEYSCAN_DEBOUNCE_MS", &c.Timing.DebounceMs)
	envInt("KEYSCAN_HOLD_MS", &c.Timing.HoldMs)
	envInt("KEYSCAN_SCAN_PERIOD_MS", &c.Timing.ScanPeriodMs)

	if v := os.Getenv("KEYSCAN_REALTIME"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Scheduler.Realtime = b
		}
	}

	if v := os.Getenv("KEYSCAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KEYSCAN_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	if v := os.Getenv("KEYSCAN_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
}

func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Keypad.Keymap = append([]string(nil), c.Keypad.Keymap...)
	clone.Keypad.RowPins = append([]string(nil), c.Keypad.RowPins...)
	clone.Keypad.ColPins = append([]string(nil), c.Keypad.ColPins...)
	clone.Logging.RedactKeys = append([]string(nil), c.Logging.RedactKeys...)
	return &clone
}

// KeyMap parses the configured keymap.
func (k KeypadConfig) KeyMap() (keypad.KeyMap, error) {
	return keypad.ParseKeyMap(k.Keymap)
}

// Timing converts the millisecond settings to scanner thresholds.
func (t TimingConfig) Timing() keypad.Timing {
	return keypad.Timing{
		Debounce: time.Duration(t.DebounceMs) * time.Millisecond,
		Hold:     time.Duration(t.HoldMs) * time.Millisecond,
	}
}

// ScanPeriod returns the scan loop tick.
func (t TimingConfig) ScanPeriod() time.Duration {
	return time.Duration(t.ScanPeriodMs) * time.Millisecond
}

// LoggerConfig converts the section into a logging.Config.
func (l LoggingConfig) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(l.Format)
	if err != nil {
		return nil, err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Output = l.Output
	if l.FilePath != "" {
		cfg.FilePath = l.FilePath
	}
	cfg.MaxSize = int64(l.MaxSizeMB)
	cfg.MaxBackups = l.MaxBackups
	cfg.MaxAge = l.MaxAgeDays
	cfg.Compress = l.Compress
	cfg.RedactKeys = append([]string(nil), l.RedactKeys...)
	return cfg, nil
}

// RestartRequired lists the sections that differ between old and new and
// cannot be applied to a running scanner. Timing thresholds and the log
// level are applied live and are not reported.
func RestartRequired(old, new *Config) []string {
	var out []string
	if !slices.Equal(old.Keypad.Keymap, new.Keypad.Keymap) ||
		!slices.Equal(old.Keypad.RowPins, new.Keypad.RowPins) ||
		!slices.Equal(old.Keypad.ColPins, new.Keypad.ColPins) ||
		old.Keypad.Backend != new.Keypad.Backend ||
		old.Keypad.ActiveLow != new.Keypad.ActiveLow ||
		old.Keypad.QueueSize != new.Keypad.QueueSize {
		out = append(out, "keypad")
	}
	if old.Timing.ScanPeriodMs != new.Timing.ScanPeriodMs {
		out = append(out, "timing.scan_period_ms")
	}
	if old.Scheduler != new.Scheduler {
		out = append(out, "scheduler")
	}
	ol, nl := old.Logging, new.Logging
	if ol.Format != nl.Format || ol.Output != nl.Output || ol.FilePath != nl.FilePath ||
		ol.MaxSizeMB != nl.MaxSizeMB || ol.MaxBackups != nl.MaxBackups ||
		ol.MaxAgeDays != nl.MaxAgeDays || ol.Compress != nl.Compress ||
		!slices.Equal(ol.RedactKeys, nl.RedactKeys) {
		out = append(out, "logging")
	}
	if old.Metrics != new.Metrics {
		out = append(out, "metrics")
	}
	return out
}

// String renders the timing section for logs.
func (t TimingConfig) String() string {
	return fmt.Sprintf("debounce=%dms hold=%dms period=%dms", t.DebounceMs, t.HoldMs, t.ScanPeriodMs)
}
