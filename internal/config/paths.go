package config

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the directory holding keyscan configuration.
//
// Paths:
//   - $KEYSCAN_CONFIG_DIR if set
//   - /etc/keyscan when running as root
//   - $XDG_CONFIG_HOME/keyscan or ~/.config/keyscan otherwise
func ConfigDir() string {
	if dir := os.Getenv("KEYSCAN_CONFIG_DIR"); dir != "" {
		return dir
	}
	if os.Geteuid() == 0 {
		return "/etc/keyscan"
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "keyscan")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".keyscan"
	}
	return filepath.Join(home, ".config", "keyscan")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches the current directory, then ConfigDir, for a
// config file of any supported format. It returns "" if none exists.
func FindConfigFile() string {
	for _, dir := range []string{".", ConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
