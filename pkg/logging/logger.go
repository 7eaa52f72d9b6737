// Package logging configures the process-wide zerolog logger and names the
// components that log through it.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names attached as the "component" field.
const (
	ComponentRegistry   = "registry-client"
	ComponentDownloader = "downloader"
	ComponentStore      = "store"
	ComponentIngest     = "ingest"
	ComponentSyncState  = "syncstate"
	ComponentServer     = "server"
	ComponentCLI        = "cli"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ValidateLevel rejects level names Setup would silently map to info.
func ValidateLevel(level LogLevel) error {
	switch strings.ToLower(string(level)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: page-level detail
//   - Report store writes
//   - Migration versions
//
// Info: normal operation
//   - Each downloaded page (identifier, page, rows)
//   - Completed downloads and saves
//   - Batch start and finish with totals
//   - Server startup/shutdown
//
// Warn: the operation failed but the process carries on
//   - Non-2xx registry responses
//   - Registry result other than OK
//   - Report store failures
//
// Error: a dictionary could not be loaded or stored
//   - Network failures talking to the registry
//   - Rolled back transactions
//   - Batch entries recorded as "error: ..."
//
// Context Fields:
//   - identifier: dictionary OID
//   - page: 1-based page index
//   - rows / records: counts
//   - status: HTTP status code
//   - error_class: network, client, server, decode, registry
//   - run_id: batch run ID
//   - duration: elapsed time
