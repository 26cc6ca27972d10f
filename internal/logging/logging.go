// Package logging provides Sentinel's logging infrastructure built on charmbracelet/log.
//
// All log output goes to stderr; stdout is reserved for command output (run
// tables, JSON, the TUI).
//
// Usage:
//
//	// During CLI initialization (PersistentPreRun):
//	logging.Setup(verbose, quiet, jsonFormat)
//
//	// Per component:
//	logger := logging.New(logging.ComponentEngine)
//	logger.Info("run started", "run", id, "target", "F-001")
//
// Setup must be called before New. charmbracelet/log copies state into child
// loggers at creation time; later changes to the default logger do not
// propagate to existing children.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Level aliases for charmbracelet/log levels.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
	LevelFatal = log.FatalLevel
)

// Component prefixes used across Sentinel.
const (
	ComponentEngine    = "engine"
	ComponentHub       = "hub"
	ComponentProjector = "projector"
	ComponentSimulate  = "simulate"
	ComponentHTTP      = "http"
	ComponentCLI       = "cli"
	ComponentMetrics   = "metrics"
)

// EnvFormat names the environment variable selecting the log format.
const EnvFormat = "SENTINEL_LOG_FORMAT"

// Setup configures the global logging defaults. Call once during CLI initialization.
//
// verbose selects Debug, quiet selects Error; if both are set quiet wins.
// jsonFormat switches to NDJSON output.
func Setup(verbose, quiet, jsonFormat bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	if quiet {
		level = log.ErrorLevel
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(jsonFormat)

	if jsonFormat {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}
}

// ParseFormat interprets a SENTINEL_LOG_FORMAT value. It returns true for
// "json", false for "" or "text", and an error otherwise.
func ParseFormat(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("logging: unknown format %q (want text or json)", s)
	}
}

// New creates a logger with the given component prefix. An empty component
// produces a logger without a prefix.
//
//	logger := logging.New("config")
//	logger.Info("loading sentinel.toml")
//	// Output: INFO <config> loading sentinel.toml
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// Discard returns a logger that drops everything. Useful as a default for
// library types constructed without a logger.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// SetOutput overrides the output writer for the default logger.
//
// Primarily for tests; restore the original output with t.Cleanup.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
