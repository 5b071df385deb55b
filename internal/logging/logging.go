// Package logging is the zerolog-backed implementation of core.Logger:
// the VM and stdlib log through the narrow three-method interface,
// cmd/xpvm decides the sink and level.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/sderkacs/xpvm/core"
)

// Logger adapts a zerolog.Logger to core.Logger.
type Logger struct {
	z zerolog.Logger
}

var _ core.Logger = Logger{}

// New builds a console-writer Logger at level, writing to w. A nil w
// defaults to os.Stderr, keeping stdout free for program output
// (program results and trace/dump output go to stdout; diagnostics to
// stderr).
func New(level zerolog.Level, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	zerolog.SetGlobalLevel(level)
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	return Logger{z: zerolog.New(cw).With().Timestamp().Logger()}
}

func (l Logger) Debug(msg string, kv ...any) { l.event(l.z.Debug(), msg, kv) }
func (l Logger) Trace(msg string, kv ...any) { l.event(l.z.Trace(), msg, kv) }
func (l Logger) Warn(msg string, kv ...any)  { l.event(l.z.Warn(), msg, kv) }

// event applies kv as alternating key/value pairs before emitting msg; a
// malformed (odd-length or non-string-keyed) trailing pair is dropped
// rather than panicking, since Debug/Trace/Warn are called from many
// call sites across core and a logging defect must never crash
// evaluation.
func (l Logger) event(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}
