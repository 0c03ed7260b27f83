// Package logging configures the zerolog logger shared by the client, the
// sandbox and the conformance harness.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is the minimum severity written.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names attached to every logger under the "component" field.
const (
	ComponentClient   = "metrics-api-client"
	ComponentCache    = "cache"
	ComponentSandbox  = "sandbox"
	ComponentHarness  = "conformance"
	ComponentCLI      = "cli"
	ComponentFixtures = "fixtures"
)

// Context field names.
const (
	FieldRunID      = "run_id"
	FieldScenario   = "scenario"
	FieldLocationID = "location_id"
	FieldKind       = "kind"
	FieldRequestID  = "request_id"
	FieldEndpoint   = "endpoint"
	FieldStatusCode = "status_code"
	FieldErrorClass = "error_class"
	FieldDuration   = "duration"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr so reports on stdout stay clean.
	Output io.Writer
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
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

// ParseLevel validates a level name as given on the command line or in
// LOG_LEVEL. The empty string means info.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

func parseLevel(level LogLevel) zerolog.Level {
	l, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a logger for component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRun tags logger with the conformance run id.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str(FieldRunID, runID).Logger()
}

// Level guidelines:
//
// Debug: cache hits and misses, conditional requests, per-attempt details.
// Info: scenario results, sandbox startup, run summary.
// Warn: retries, cache errors that fall back to a direct request.
// Error: setup errors, exhausted retries, failed scenarios.
