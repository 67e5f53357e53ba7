// keyscand - matrix keypad scanner daemon
//
// keyscand sweeps a row/column key matrix, debounces it and reports every
// key press and every long hold:
//
//	keyscand run            Scan the keypad until SIGINT/SIGTERM (default)
//	keyscand check-config   Validate a configuration file
//	keyscand init-config    Write a default configuration file
//	keyscand version        Print the version
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"keyscan/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "run":
		os.Exit(cmdRun(args))
	case "check-config":
		os.Exit(cmdCheckConfig(args))
	case "init-config":
		os.Exit(cmdInitConfig(args))
	case "version":
		fmt.Printf("keyscand %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println(`keyscand - Matrix Keypad Scanner

USAGE:
    keyscand [command] [options]

COMMANDS:
    run                 Scan the keypad and report keys (default)
    check-config        Validate a configuration file
    init-config         Write a default configuration file
    version             Print the version
    help                Show this help message

RUN OPTIONS:
    -config <path>      Configuration file (default: search ./ and the config dir)
    -log-level <level>  Override logging.level (debug, info, warn, error)

Every setting can also be overridden with KEYSCAN_* environment variables,
for example KEYSCAN_BACKEND=rpio or KEYSCAN_HOLD_MS=800.`)
}

// defaultConfigPath returns the first existing config file, or the
// location init-config writes to.
func defaultConfigPath() string {
	if path := config.FindConfigFile(); path != "" {
		return path
	}
	return config.ConfigPath()
}

func cmdCheckConfig(args []string) int {
	fs := flag.NewFlagSet("check-config", flag.ExitOnError)
	path := fs.String("config", defaultConfigPath(), "configuration file")
	fs.Parse(args)

	cfg, err := config.NewLoader(*path).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *path, err)
		return 1
	}
	fmt.Printf("%s: ok\n", *path)
	fmt.Printf("  backend: %s\n", cfg.Keypad.Backend)
	fmt.Printf("  matrix:  %dx%d\n", len(cfg.Keypad.RowPins), len(cfg.Keypad.ColPins))
	fmt.Printf("  timing:  %s\n", cfg.Timing)
	return 0
}

func cmdInitConfig(args []string) int {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	path := fs.String("config", config.ConfigPath(), "file to create (.toml, .json or .yaml)")
	fs.Parse(args)

	_, created, err := config.LoadOrCreate(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !created {
		fmt.Printf("%s already exists, left unchanged.\n", *path)
		return 0
	}
	fmt.Printf("Wrote default configuration to %s\n", *path)
	return 0
}
