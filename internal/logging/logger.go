// Package logging configures the process-wide zerolog logger and hands
// out component- and room-scoped child loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the level, format and destination of the global logger.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string

	// Format is "console" for human-readable output, "json" otherwise.
	Format string

	// Output defaults to stderr. The TUI normally redirects this to a
	// file so log lines do not tear the alternate screen.
	Output io.Writer

	// EnableCaller annotates each line with its call site.
	EnableCaller bool
}

var root zerolog.Logger

func init() {
	Init(Config{Level: "info", Format: "console"})
}

// Init replaces the global logger. Called again once flags and the config
// file are resolved.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.EnableCaller {
		ctx = ctx.Caller()
	}
	root = ctx.Logger()
}

func level(s string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// Component returns a child logger tagged with the subsystem name.
func Component(name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}

// WithRoom returns a child logger tagged with a room id.
func WithRoom(roomID string) zerolog.Logger {
	return root.With().Str("room_id", roomID).Logger()
}

// Debug logs at debug level on the global logger.
func Debug() *zerolog.Event { return root.Debug() }

// Info logs at info level on the global logger.
func Info() *zerolog.Event { return root.Info() }

// Warn logs at warn level on the global logger.
func Warn() *zerolog.Event { return root.Warn() }

// Error logs at error level on the global logger.
func Error() *zerolog.Event { return root.Error() }
