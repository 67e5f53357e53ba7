package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"keyscan/internal/keypad"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}

	if got := cfg.Timing.Timing(); got != keypad.DefaultTiming() {
		t.Errorf("expected default timing %v, got %v", keypad.DefaultTiming(), got)
	}
	if cfg.Timing.ScanPeriod() != keypad.DefaultScanPeriod {
		t.Errorf("expected scan period %v, got %v", keypad.DefaultScanPeriod, cfg.Timing.ScanPeriod())
	}
	if cfg.Keypad.QueueSize != 10 {
		t.Errorf("expected queue size 10, got %d", cfg.Keypad.QueueSize)
	}
	if cfg.Keypad.Backend != "sim" {
		t.Errorf("expected sim backend, got %s", cfg.Keypad.Backend)
	}

	km, err := cfg.Keypad.KeyMap()
	if err != nil {
		t.Fatalf("default keymap: %v", err)
	}
	if km.At(1, 2) != '6' {
		t.Errorf("expected '6' at (1,2), got %q", km.At(1, 2))
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("KEYSCAN_CONFIG_DIR", "/opt/keyscan/etc")
	if got := ConfigPath(); got != "/opt/keyscan/etc/config.toml" {
		t.Errorf("unexpected config path %s", got)
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KEYSCAN_CONFIG_DIR", dir)
	t.Chdir(t.TempDir())

	if got := FindConfigFile(); got != "" {
		t.Errorf("expected no config, got %s", got)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(); got != path {
		t.Errorf("expected %s, got %s", path, got)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timing.HoldMs != 500 {
		t.Errorf("expected hold 500ms, got %d", cfg.Timing.HoldMs)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
version = 1

[keypad]
keymap = ["123", "456", "789", "*0#"]
row_pins = ["GPIO5", "GPIO6", "GPIO13", "GPIO19"]
col_pins = ["GPIO12", "GPIO16", "GPIO20"]
backend = "periph"
active_low = true

[timing]
debounce_ms = 20
hold_ms = 800

[logging]
level = "debug"
redact_keys = ["char"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Keypad.Backend != "periph" || !cfg.Keypad.ActiveLow {
		t.Errorf("keypad section not decoded: %+v", cfg.Keypad)
	}
	if len(cfg.Keypad.ColPins) != 3 {
		t.Errorf("expected 3 column pins, got %d", len(cfg.Keypad.ColPins))
	}
	if cfg.Timing.Timing() != (keypad.Timing{Debounce: 20 * time.Millisecond, Hold: 800 * time.Millisecond}) {
		t.Errorf("unexpected timing %+v", cfg.Timing)
	}
	// Untouched keys keep their defaults.
	if cfg.Timing.ScanPeriodMs != 1 || cfg.Keypad.QueueSize != 10 {
		t.Errorf("defaults lost: %+v %+v", cfg.Timing, cfg.Keypad)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.RedactKeys[0] != "char" {
		t.Errorf("logging section not decoded: %+v", cfg.Logging)
	}
}

func TestLoadJSONAndYAML(t *testing.T) {
	jsonPath := writeFile(t, "config.json", `{"version": 1, "timing": {"hold_ms": 900}}`)
	yamlPath := writeFile(t, "config.yml", "version: 1\ntiming:\n  hold_ms: 900\n")

	for _, path := range []string{jsonPath, yamlPath} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", path, err)
		}
		if cfg.Timing.HoldMs != 900 {
			t.Errorf("%s: expected hold 900, got %d", path, cfg.Timing.HoldMs)
		}
	}
}

func TestLoadAutoDetect(t *testing.T) {
	path := writeFile(t, "keyscan.conf", "version = 1\n[timing]\nhold_ms = 700\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timing.HoldMs != 700 {
		t.Errorf("expected hold 700, got %d", cfg.Timing.HoldMs)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		field   string
	}{
		{"unknown key", "config.toml", "[timing]\nhold = 5\n", "/timing"},
		{"wrong type", "config.json", `{"timing": {"hold_ms": "long"}}`, "/timing/hold_ms"},
		{"bad backend", "config.yaml", "keypad:\n  backend: spi\n", "/keypad/backend"},
		{"bad metrics path", "config.toml", "[metrics]\npath = \"metrics\"\n", "/metrics/path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
			}
			found := false
			for _, f := range verrs.Fields() {
				if strings.HasPrefix(f, tt.field) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verrs)
			}
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	if _, err := Load(writeFile(t, "config.toml", "[keypad\n")); err == nil {
		t.Error("expected decode error")
	}
	if _, err := Load(writeFile(t, "config.conf", "{{{ not: any [format")); err == nil {
		t.Error("expected auto-detect error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("KEYSCAN_BACKEND", "rpio")
	t.Setenv("KEYSCAN_ROW_PINS", "17, 27,22 ,5")
	t.Setenv("KEYSCAN_ACTIVE_LOW", "true")
	t.Setenv("KEYSCAN_DEBOUNCE_MS", "15")
	t.Setenv("KEYSCAN_HOLD_MS", "not-a-number")
	t.Setenv("KEYSCAN_LOG_LEVEL", "warn")
	t.Setenv("KEYSCAN_METRICS_LISTEN", "127.0.0.1:9200")

	cfg := LoadFromEnv()

	if cfg.Keypad.Backend != "rpio" {
		t.Errorf("backend not overridden: %s", cfg.Keypad.Backend)
	}
	if strings.Join(cfg.Keypad.RowPins, ",") != "17,27,22,5" {
		t.Errorf("row pins not overridden: %v", cfg.Keypad.RowPins)
	}
	if !cfg.Keypad.ActiveLow {
		t.Error("active_low not overridden")
	}
	if cfg.Timing.DebounceMs != 15 {
		t.Errorf("debounce not overridden: %d", cfg.Timing.DebounceMs)
	}
	if cfg.Timing.HoldMs != 500 {
		t.Errorf("malformed hold should be ignored, got %d", cfg.Timing.HoldMs)
	}
	if cfg.Logging.Level != "warn" || cfg.Metrics.Listen != "127.0.0.1:9200" {
		t.Errorf("logging/metrics not overridden: %+v %+v", cfg.Logging, cfg.Metrics)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 2 }, "version"},
		{"ragged keymap", func(c *Config) { c.Keypad.Keymap = []string{"12", "3"} }, "keypad.keymap"},
		{"row pin count", func(c *Config) { c.Keypad.RowPins = c.Keypad.RowPins[:3] }, "keypad.row_pins"},
		{"col pin count", func(c *Config) { c.Keypad.ColPins = append(c.Keypad.ColPins, "GPIO26") }, "keypad.col_pins"},
		{"duplicate pin", func(c *Config) { c.Keypad.ColPins[0] = "gpio5" }, "keypad.col_pins[0]"},
		{"backend", func(c *Config) { c.Keypad.Backend = "i2c" }, "keypad.backend"},
		{"queue size", func(c *Config) { c.Keypad.QueueSize = 0 }, "keypad.queue_size"},
		{"debounce too small", func(c *Config) { c.Timing.DebounceMs = 1 }, "timing.debounce_ms"},
		{"hold too close", func(c *Config) { c.Timing.HoldMs = 110 }, "timing.hold_ms"},
		{"scan period", func(c *Config) { c.Timing.ScanPeriodMs = 0 }, "timing.scan_period_ms"},
		{"priority", func(c *Config) { c.Scheduler.Priority = -21 }, "scheduler.priority"},
		{"cpu", func(c *Config) { c.Scheduler.CPU = -2 }, "scheduler.cpu"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log file", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }, "logging.file_path"},
		{"metrics listen", func(c *Config) { c.Metrics.Listen = "" }, "metrics.listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			verrs := err.(ValidationErrors)
			found := false
			for _, f := range verrs.Fields() {
				if f == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verrs)
			}
		})
	}
}

func TestMetricsDisabledSkipsChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics = MetricsConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.RedactKeys = []string{"char"}
	clone := cfg.Clone()

	clone.Keypad.Keymap[0] = "XXXX"
	clone.Keypad.RowPins[0] = "GPIO2"
	clone.Logging.RedactKeys[0] = "row"

	if cfg.Keypad.Keymap[0] != "123A" || cfg.Keypad.RowPins[0] != "GPIO5" || cfg.Logging.RedactKeys[0] != "char" {
		t.Error("Clone shares slices with the original")
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"
	cfg.Logging.RedactKeys = []string{"char"}

	lc, err := cfg.Logging.LoggerConfig()
	if err != nil {
		t.Fatalf("LoggerConfig failed: %v", err)
	}
	if lc.Level.String() != "DEBUG" || lc.MaxSize != 10 || lc.RedactKeys[0] != "char" {
		t.Errorf("unexpected logger config %+v", lc)
	}

	cfg.Logging.Format = "xml"
	if _, err := cfg.Logging.LoggerConfig(); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRestartRequired(t *testing.T) {
	old := DefaultConfig()

	live := old.Clone()
	live.Timing.DebounceMs = 30
	live.Timing.HoldMs = 900
	live.Logging.Level = "debug"
	if got := RestartRequired(old, live); len(got) != 0 {
		t.Errorf("timing and log level apply live, got %v", got)
	}

	restart := old.Clone()
	restart.Keypad.Backend = "periph"
	restart.Timing.ScanPeriodMs = 5
	restart.Metrics.Listen = ":9999"
	got := strings.Join(RestartRequired(old, restart), ",")
	if got != "keypad,timing.scan_period_ms,metrics" {
		t.Errorf("unexpected restart sections %s", got)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"config.toml", "config.json", "config.yaml"} {
		path := filepath.Join(dir, "sub", name)
		cfg := DefaultConfig()
		cfg.Timing.HoldMs = 750
		cfg.Keypad.RowPins = []string{"P1_7", "P1_11", "P1_13", "P1_15"}

		if err := SaveConfig(cfg, path); err != nil {
			t.Fatalf("SaveConfig(%s): %v", name, err)
		}
		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if loaded.Timing.HoldMs != 750 || loaded.Keypad.RowPins[1] != "P1_11" {
			t.Errorf("%s: round trip lost values: %+v", name, loaded)
		}
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created || cfg == nil {
		t.Fatal("expected a new default config")
	}

	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("config should not be recreated")
	}
}
