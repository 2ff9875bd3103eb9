// Package report renders the replay driver's line-oriented output. It
// mirrors the teacher's habit of threading a dedicated logger value through
// the call chain rather than reaching for bare package-level log/fmt calls.
package report

import (
	"io"
	"log"
)

// Writer splits normal output from warnings: Line and Always go to the out
// logger, Warnf goes to the err logger. Both are plain *log.Logger with no
// timestamp prefix, since every line here is already self-describing.
type Writer struct {
	out   *log.Logger
	err   *log.Logger
	quiet bool
}

// New builds a Writer. quiet suppresses Line (per-batch chatter) but never
// the unconditional lines driven through Always.
func New(out, errOut io.Writer, quiet bool) *Writer {
	return &Writer{
		out:   log.New(out, "", 0),
		err:   log.New(errOut, "", 0),
		quiet: quiet,
	}
}

// Line prints a normal-output line unless quiet mode is on.
func (w *Writer) Line(format string, args ...any) {
	if w.quiet {
		return
	}
	w.out.Printf(format, args...)
}

// Always prints a normal-output line regardless of quiet mode — used for
// the [DAY START], [DAY END], [TRADE], [EOD], and [FINAL] lines the base
// spec requires to stay unconditional.
func (w *Writer) Always(format string, args ...any) {
	w.out.Printf(format, args...)
}

// Warnf prints a [WARN]-prefixed line to the error stream. Warnings never
// go to the normal output stream, quiet or not.
func (w *Writer) Warnf(format string, args ...any) {
	w.err.Printf("[WARN] "+format, args...)
}
