package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"keyscan/internal/keypad"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is reports ErrInvalidConfig so callers can use errors.Is.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateKeypad(&c.Keypad)...)
	errs = append(errs, validateTiming(&c.Timing)...)
	errs = append(errs, validateScheduler(&c.Scheduler)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateKeypad(k *KeypadConfig) ValidationErrors {
	var errs ValidationErrors

	km, err := k.KeyMap()
	if err != nil {
		errs = append(errs, ValidationError{
			Field:   "keypad.keymap",
			Message: err.Error(),
		})
	} else {
		if len(k.RowPins) != km.Rows() {
			errs = append(errs, ValidationError{
				Field:   "keypad.row_pins",
				Message: fmt.Sprintf("keymap has %d rows but %d row pins are given", km.Rows(), len(k.RowPins)),
			})
		}
		if len(k.ColPins) != km.Cols() {
			errs = append(errs, ValidationError{
				Field:   "keypad.col_pins",
				Message: fmt.Sprintf("keymap has %d columns but %d column pins are given", km.Cols(), len(k.ColPins)),
			})
		}
	}

	seen := make(map[string]string)
	check := func(kind string, pins []string) {
		for i, p := range pins {
			field := fmt.Sprintf("keypad.%s[%d]", kind, i)
			if strings.TrimSpace(p) == "" {
				errs = append(errs, ValidationError{Field: field, Message: "pin name cannot be empty"})
				continue
			}
			key := strings.ToUpper(strings.TrimSpace(p))
			if prev, ok := seen[key]; ok {
				errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("pin %s already used by %s", p, prev)})
				continue
			}
			seen[key] = field
		}
	}
	check("row_pins", k.RowPins)
	check("col_pins", k.ColPins)

	switch strings.ToLower(k.Backend) {
	case "sim", "periph", "rpio":
	default:
		errs = append(errs, ValidationError{
			Field:   "keypad.backend",
			Message: fmt.Sprintf("invalid backend: %s (valid: sim, periph, rpio)", k.Backend),
		})
	}

	if k.QueueSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "keypad.queue_size",
			Message: "queue size must be at least 1",
		})
	}

	return errs
}

func validateTiming(t *TimingConfig) ValidationErrors {
	var errs ValidationErrors

	timing := t.Timing()
	if timing.Debounce <= keypad.MinDebounce {
		errs = append(errs, ValidationError{
			Field:   "timing.debounce_ms",
			Message: fmt.Sprintf("debounce must exceed %v", keypad.MinDebounce),
		})
	}
	if timing.Hold <= timing.Debounce+keypad.HoldMargin {
		errs = append(errs, ValidationError{
			Field:   "timing.hold_ms",
			Message: fmt.Sprintf("hold must exceed debounce plus %v", keypad.HoldMargin),
		})
	}

	if p := t.ScanPeriod(); p < time.Millisecond || p > time.Second {
		errs = append(errs, ValidationError{
			Field:   "timing.scan_period_ms",
			Message: "scan period must be between 1 and 1000 ms",
		})
	}

	return errs
}

func validateScheduler(s *SchedulerConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Priority < -20 || s.Priority > 19 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.priority",
			Message: "priority must be a nice value between -20 and 19",
		})
	}
	if s.CPU < -1 {
		errs = append(errs, ValidationError{
			Field:   "scheduler.cpu",
			Message: "cpu must be -1 (any) or a CPU index",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	if !m.Enabled {
		return nil
	}
	var errs ValidationErrors
	if m.Listen == "" {
		errs = append(errs, ValidationError{
			Field:   "metrics.listen",
			Message: "listen address is required when metrics are enabled",
		})
	}
	if !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, ValidationError{
			Field:   "metrics.path",
			Message: "path must start with /",
		})
	}
	return errs
}
