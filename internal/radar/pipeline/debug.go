package pipeline

import (
	"io"
	"log"

	"github.com/banshee-data/radarchain/internal/monitoring"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the pipeline package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = monitoring.NewStreamLogger("[pipeline] ", ops)
	diagLogger = monitoring.NewStreamLogger("[pipeline] ", diag)
	traceLogger = monitoring.NewStreamLogger("[pipeline] ", trace)
}

// SetStreams is SetLogWriters for a monitoring.Streams value.
func SetStreams(s monitoring.Streams) {
	SetLogWriters(s.Ops, s.Diag, s.Trace)
}

// opsf logs to the ops stream (aborted frames, sink failures).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (per-frame summaries).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per-stage timings).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
