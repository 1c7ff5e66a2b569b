// Package logger provides the process-wide structured logger, built
// on zerolog the way the teacher's own logger package wires it, with
// an added custom level to match the core's five-level taxonomy:
// DISABLED, WARNING, INFO, PEDANTIC, DEBUG.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PedanticLevel sits between Info and Debug: detailed-but-routine
// tracing that is noisier than INFO but not a full DEBUG firehose.
const PedanticLevel zerolog.Level = zerolog.DebugLevel + 1

func init() {
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		if l == PedanticLevel {
			return "pedantic"
		}
		return l.String()
	}
}

// Log is the global logger instance, configured by Initialize.
var Log zerolog.Logger

// Initialize configures the global logger from a level name
// ("disabled", "warning", "info", "pedantic", "debug") and an output
// mode.
func Initialize(level string, pretty bool) {
	logLevel := parseLevel(level)
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().
		Str("service", "agorad").
		Logger()

	Log.Info().
		Str("level", level).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "disabled":
		return zerolog.Disabled
	case "warning":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "pedantic":
		return PedanticLevel
	case "debug":
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger {
	return &Log
}

// Handler creates a logger scoped to the application handler
// component.
func Handler() *zerolog.Logger {
	l := Log.With().Str("component", "handler").Logger()
	return &l
}

// Transport creates a logger scoped to the remote/transport adapter.
func Transport() *zerolog.Logger {
	l := Log.With().Str("component", "transport").Logger()
	return &l
}

// Storage creates a logger scoped to the storage adapter.
func Storage() *zerolog.Logger {
	l := Log.With().Str("component", "storage").Logger()
	return &l
}

// Launcher creates a logger scoped to the plugin launcher.
func Launcher() *zerolog.Logger {
	l := Log.With().Str("component", "launcher").Logger()
	return &l
}

// Worker creates a logger scoped to the worker pool.
func Worker() *zerolog.Logger {
	l := Log.With().Str("component", "worker").Logger()
	return &l
}

// Registry creates a logger scoped to the application registry.
func Registry() *zerolog.Logger {
	l := Log.With().Str("component", "registry").Logger()
	return &l
}

// Diag creates a logger scoped to the diagnostics HTTP server.
func Diag() *zerolog.Logger {
	l := Log.With().Str("component", "diag").Logger()
	return &l
}

// Housekeeping creates a logger scoped to the scheduled maintenance jobs.
func Housekeeping() *zerolog.Logger {
	l := Log.With().Str("component", "housekeeping").Logger()
	return &l
}

// Pedantic logs a message at the PEDANTIC level on l.
func Pedantic(l *zerolog.Logger) *zerolog.Event {
	return l.WithLevel(PedanticLevel)
}
