// Package logging defines the structured logger shared by the audio manager
// and its collaborators, plus a zerolog-backed implementation.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger takes a message followed by alternating key/value pairs
type Logger interface {
	Debug(msg string, args ...interface{})

	Info(msg string, args ...interface{})

	Warn(msg string, args ...interface{})

	Error(msg string, args ...interface{})
}

type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// OrNoOp returns l, or a no-op logger when l is nil
func OrNoOp(l Logger) Logger {
	if l == nil {
		return &NoOpLogger{}
	}
	return l
}

// ZerologLogger adapts zerolog to Logger
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerolog creates a JSON logger writing to w at the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func NewZerolog(w io.Writer, level string) *ZerologLogger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return &ZerologLogger{
		log: zerolog.New(w).Level(lvl).With().Timestamp().Logger(),
	}
}

// NewConsole creates a human-readable logger for interactive use
func NewConsole(level string) *ZerologLogger {
	l := NewZerolog(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, level)
	return l
}

// With returns a child logger tagged with a component name
func (z *ZerologLogger) With(component string) *ZerologLogger {
	return &ZerologLogger{log: z.log.With().Str("component", component).Logger()}
}

func (z *ZerologLogger) Debug(msg string, args ...interface{}) {
	z.emit(z.log.Debug(), msg, args)
}

func (z *ZerologLogger) Info(msg string, args ...interface{}) {
	z.emit(z.log.Info(), msg, args)
}

func (z *ZerologLogger) Warn(msg string, args ...interface{}) {
	z.emit(z.log.Warn(), msg, args)
}

func (z *ZerologLogger) Error(msg string, args ...interface{}) {
	z.emit(z.log.Error(), msg, args)
}

func (z *ZerologLogger) emit(e *zerolog.Event, msg string, args []interface{}) {
	if e == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			e = e.Interface("!BADKEY", args[i])
			break
		}
		key := fmt.Sprint(args[i])
		switch v := args[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case string:
			e = e.Str(key, v)
		case int:
			e = e.Int(key, v)
		case bool:
			e = e.Bool(key, v)
		case time.Duration:
			e = e.Dur(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
