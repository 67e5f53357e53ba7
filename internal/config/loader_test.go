package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoaderLoadValidates(t *testing.T) {
	path := writeFile(t, "config.toml", "[timing]\nhold_ms = 50\n")

	l := NewLoader(path)
	if _, err := l.Load(); err == nil {
		t.Fatal("expected validation error")
	}
	if l.Config() != nil {
		t.Error("invalid config must not be stored")
	}
}

func TestLoaderWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[timing]\nhold_ms = 600\n"), 0600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer l.Close()

	changes := make(chan [2]int, 4)
	l.OnChange(func(old, new *Config) {
		changes <- [2]int{old.Timing.HoldMs, new.Timing.HoldMs}
	})
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("[timing]\nhold_ms = 900\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c != [2]int{600, 900} {
			t.Errorf("unexpected change %v", c)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
	if l.Config().Timing.HoldMs != 900 {
		t.Errorf("loader holds stale config")
	}

	// An invalid edit is reported and the previous config is kept.
	if err := os.WriteFile(path, []byte("[timing]\nhold_ms = 5\n"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-l.Errors():
		if err == nil {
			t.Error("expected non-nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload error not reported")
	}
	if l.Config().Timing.HoldMs != 900 {
		t.Errorf("invalid reload replaced config")
	}
}

func TestLoaderCloseIdempotent(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "config.toml"))
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
