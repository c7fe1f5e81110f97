// Package telemetry is a small structured-logging facade over zerolog. It
// mirrors the shape consumed by creastat's stage implementations
// (Logger.WithModule, leveled methods taking Field values) so the rest of
// the module reads the same as pipeline stages do elsewhere in the
// codebase, without depending on creastat's private infra module.
package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Field is a deferred key/value pair applied to a zerolog.Event.
type Field func(e *zerolog.Event) *zerolog.Event

func String(key, value string) Field {
	return func(e *zerolog.Event) *zerolog.Event { return e.Str(key, value) }
}

func Int(key string, value int) Field {
	return func(e *zerolog.Event) *zerolog.Event { return e.Int(key, value) }
}

func Int64(key string, value int64) Field {
	return func(e *zerolog.Event) *zerolog.Event { return e.Int64(key, value) }
}

func Bool(key string, value bool) Field {
	return func(e *zerolog.Event) *zerolog.Event { return e.Bool(key, value) }
}

func Err(err error) Field {
	return func(e *zerolog.Event) *zerolog.Event { return e.Err(err) }
}

// Logger wraps a zerolog.Logger with the leveled-method-plus-Field
// calling convention used throughout this module.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger writing zerolog's JSON lines to w (os.Stderr in
// New(nil)). Library code should accept whatever Logger the caller passes
// in via pipelinectx.WithLogger rather than constructing its own.
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return Logger{z: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything, the default when a run
// has no logger configured.
func Nop() Logger {
	return Logger{z: zerolog.Nop()}
}

// WithModule returns a child logger tagged with a "module" field, the way
// every node-scoped logger in this module is derived from the run logger.
func (l Logger) WithModule(name string) Logger {
	return Logger{z: l.z.With().Str("module", name).Logger()}
}

func (l Logger) Trace(msg string, fields ...Field) { l.log(l.z.Trace(), msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.log(l.z.Debug(), msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.log(l.z.Info(), msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.log(l.z.Warn(), msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.log(l.z.Error(), msg, fields) }

func (l Logger) log(e *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		e = f(e)
	}
	e.Msg(msg)
}
