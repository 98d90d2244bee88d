// package shared defines shared helpers
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// NewRunLogger creates a child [log.Logger] tagged with a fresh run id.
//
// Batch operations stamp every line with the run id so interleaved runs in a
// shared log file stay attributable.
func NewRunLogger(l *log.Logger) *log.Logger {
	return l.With("run", GenerateRunID())
}

// GenerateRunID generates a short identifier for a single batch run.
func GenerateRunID() string {
	return uuid.New().String()[:8]
}
