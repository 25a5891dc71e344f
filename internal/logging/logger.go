// Package logging builds the service's zerolog logger and carries
// request-scoped identifiers through context.Context.
//
// The request middleware stores both the request id and a child logger
// tagged with it in the request context. Code further down the call chain
// logs through zerolog.Ctx(ctx) and never reads the id itself.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	// Default: info
	Level string

	// Format is json or console.
	// Default: json
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a logger configured from cfg. It does not touch zerolog's
// global logger, but it does set the process-wide zerolog.TimeFieldFormat
// to RFC 3339 with nanoseconds.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "geosamples").
		Logger()
}

// ParseLevel converts a level name to a zerolog.Level. Unknown or empty
// names fall back to info.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
