package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/yangstore/pkg/types"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Config holds logging configuration. Level is whatever zerolog's own
// ParseLevel accepts ("debug", "info", "warn", "error", ...) — the
// daemon passes pkg/config.Config.LogLevel straight through rather
// than round-tripping it through a parallel enum.
type Config struct {
	Level      string
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithSession creates a child logger tagged with a session id.
func WithSession(sessionID string) zerolog.Logger {
	return Logger.With().Str("session_id", sessionID).Logger()
}

// WithModule creates a child logger tagged with a YANG module name.
func WithModule(module string) zerolog.Logger {
	return Logger.With().Str("module", module).Logger()
}

// WithDatastore creates a child logger tagged with a datastore kind
// (startup/running/candidate), for log lines that concern a specific
// one of the three. Callers add any module context themselves (the
// Data Store's Load does).
func WithDatastore(ds types.Datastore) zerolog.Logger {
	return Logger.With().Str("datastore", ds.String()).Logger()
}

// WithCommit creates a child logger tagged with a commit context id.
func WithCommit(commitID string) zerolog.Logger {
	return Logger.With().Str("commit_id", commitID).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
