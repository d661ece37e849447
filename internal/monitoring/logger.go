package monitoring

import (
	"io"
	"log"
)

// Logf is the process-wide diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger so tests can capture or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. A nil function installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewStreamLogger builds one of the per-package ops/diag/trace streams.
// It returns nil for a nil writer, which callers treat as "stream disabled".
func NewStreamLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Streams groups the three writers handed to each package's SetLogWriters.
type Streams struct {
	Ops   io.Writer // actionable: aborted frames, sink failures
	Diag  io.Writer // per-frame summaries
	Trace io.Writer // per-stage timings
}

// StreamsForLevel maps a command-line verbosity to stream writers.
// "quiet" keeps only ops, "info" adds diag, "debug" enables everything.
func StreamsForLevel(level string, w io.Writer) Streams {
	switch level {
	case "debug":
		return Streams{Ops: w, Diag: w, Trace: w}
	case "info":
		return Streams{Ops: w, Diag: w}
	default:
		return Streams{Ops: w}
	}
}
