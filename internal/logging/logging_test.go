package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil {
			t.Fatalf("LevelString(%v) does not parse: %v", level, err)
		}
		if parsed != level {
			t.Errorf("round trip of %v gave %v", level, parsed)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format Text, got %v", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.Component != "keyscan" {
		t.Errorf("expected component keyscan, got %s", cfg.Component)
	}
	if !strings.HasSuffix(cfg.FilePath, "keyscan.log") {
		t.Errorf("unexpected default log path %s", cfg.FilePath)
	}
}

func newBufferLogger(t *testing.T, cfg *Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg.Writer = &buf
	cfg.Format = FormatJSON
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerWithComponent(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{Level: LevelInfo, Component: "keyscan"})

	l.WithComponent("keypad").Info("keypad initialized", "rows", 4)

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["component"] != "keypad" {
		t.Errorf("expected component keypad, got %v", lines[0]["component"])
	}
	if lines[0]["rows"] != float64(4) {
		t.Errorf("expected rows 4, got %v", lines[0]["rows"])
	}
	if n := strings.Count(buf.String(), `"component"`); n != 1 {
		t.Errorf("expected a single component attribute, got %d", n)
	}
}

func TestLoggerRedactKeys(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{Level: LevelDebug, RedactKeys: []string{"CHAR"}})

	l.Debug("key pressed", "char", "5", "row", 1)

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["char"] != "[REDACTED]" {
		t.Errorf("char not redacted: %v", lines[0]["char"])
	}
	if lines[0]["row"] != float64(1) {
		t.Errorf("row should be untouched, got %v", lines[0]["row"])
	}
}

func TestLoggerNoRedactionByDefault(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{Level: LevelDebug})

	l.Debug("key pressed", "char", "5")

	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["char"] != "5" {
		t.Errorf("unexpected output %v", lines)
	}
}

func TestLoggerSetLevelPropagates(t *testing.T) {
	l, buf := newBufferLogger(t, &Config{Level: LevelInfo})
	child := l.WithComponent("keypad")

	child.Debug("hidden")
	l.SetLevel(LevelDebug)
	child.Debug("shown")

	if l.Level() != LevelDebug {
		t.Errorf("expected debug level, got %v", l.Level())
	}
	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" {
		t.Errorf("unexpected output %v", lines)
	}
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	l, _ := newBufferLogger(t, &Config{Level: LevelInfo})
	SetDefault(l)
	if Default() != l {
		t.Error("Default did not return the logger passed to SetDefault")
	}
}

func TestLoggerFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sub", "keyscan.log")
	l, err := New(&Config{
		Level:    LevelInfo,
		Format:   FormatText,
		Output:   "file",
		FilePath: logPath,
		MaxSize:  1,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	l.Info("hello file")
	if err := l.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file missing message: %q", data)
	}
}

func TestFileRotatorRequiresPath(t *testing.T) {
	if _, err := NewFileRotator(&Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestFileRotatorSizeRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	r, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer r.Close()

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 5; i++ {
		n, err := r.Write(chunk)
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if n != len(chunk) {
			t.Errorf("expected to write %d bytes, wrote %d", len(chunk), n)
		}
	}
	r.wg.Wait()

	backups, err := r.Backups()
	if err != nil {
		t.Fatalf("backups: %v", err)
	}
	if len(backups) != 2 {
		t.Errorf("expected 2 backups after pruning, got %d: %v", len(backups), backups)
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() > 1024*1024 {
		t.Errorf("current log exceeds max size: %d", info.Size())
	}
}

func TestFileRotatorDailyRotationCompresses(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	r, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 100, MaxBackups: 5, Compress: true})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer r.Close()

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	r.now = func() time.Time { return day }
	r.opened = day

	if _, err := r.Write([]byte("before midnight\n")); err != nil {
		t.Fatal(err)
	}
	day = day.Add(2 * time.Minute)
	if _, err := r.Write([]byte("after midnight\n")); err != nil {
		t.Fatal(err)
	}
	r.wg.Wait()

	backups, _ := r.Backups()
	if len(backups) != 1 || !strings.HasSuffix(backups[0], ".log.gz") {
		t.Fatalf("expected one compressed backup, got %v", backups)
	}

	f, err := os.Open(backups[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(gz)
	if string(data) != "before midnight\n" {
		t.Errorf("unexpected backup content %q", data)
	}
}
