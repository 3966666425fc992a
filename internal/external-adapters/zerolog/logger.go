// Package zerolog adapts rs/zerolog to the domain logger interface.
package zerolog

import (
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ochairo/jnirepair/internal/domain/interfaces"
)

// Logger implements interfaces.Logger on top of a zerolog.Logger
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger writing to out at the given level. Console output is
// human-readable; otherwise each entry is one JSON object.
func New(out io.Writer, level string, console bool) *Logger {
	if console {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// ParseLevel maps a config string to a zerolog level; unknown values mean info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs debug-level messages
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	emit(l.zl.Debug(), msg, fields)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	emit(l.zl.Info(), msg, fields)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	emit(l.zl.Warn(), msg, fields)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	emit(l.zl.Error(), msg, fields)
}

func emit(ev *zerolog.Event, msg string, fields []interfaces.Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			ev = ev.AnErr(f.Key, v)
		case string:
			ev = ev.Str(f.Key, v)
		case []string:
			ev = ev.Strs(f.Key, v)
		case bool:
			ev = ev.Bool(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}
