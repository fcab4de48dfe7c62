package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing zerolog themselves.
type Logger = zerolog.Logger

// ParseLevel maps the CLI level names onto zerolog levels. The second return
// value is false for unknown names, in which case info is returned.
func ParseLevel(name string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return zerolog.ErrorLevel, true
	case "warning", "warn":
		return zerolog.WarnLevel, true
	case "info", "":
		return zerolog.InfoLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	default:
		return zerolog.InfoLevel, false
	}
}

// NewLogger writes to stderr so progress output on stdout stays clean. The
// development environment gets the console writer.
func NewLogger(appEnv string, level zerolog.Level) zerolog.Logger {
	return newLogger(os.Stderr, appEnv, level)
}

func newLogger(w io.Writer, appEnv string, level zerolog.Level) zerolog.Logger {
	if appEnv == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// LoggerOrNop dereferences l, falling back to a disabled logger.
func LoggerOrNop(l *Logger) Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}
