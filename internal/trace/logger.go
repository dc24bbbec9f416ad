// Package trace provides the structured logging surface shared by the
// translator and machine binaries: term-level diagnostics at compile time,
// one line per tick when running with -trace, and warnings for dropped
// interrupts and tick-limit cutoffs.
package trace

import (
	"fmt"
	"io"
	"strings"
)

// Logger mirrors the column-aligned prefix convention used throughout the
// retrieved corpus's own logging helpers: a short mark, a component name,
// and the formatted message.
type Logger struct {
	out       io.Writer
	enabled   bool
	markWidth int
	nameWidth int
}

// New builds a Logger writing to out. enabled gates Debugf/Tickf; Warnf and
// Errorf always print, matching the teacher's separation between
// always-on diagnostics and opt-in tracing.
func New(out io.Writer, enabled bool) *Logger {
	return &Logger{out: out, enabled: enabled, markWidth: 5, nameWidth: 10}
}

func (l *Logger) logf(mark, name, format string, args ...any) {
	if l == nil || l.out == nil {
		return
	}
	prefix := fmt.Sprintf("%-*s %-*s ", l.markWidth, mark, l.nameWidth, name)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(l.out, strings.TrimRight(prefix+msg, " "))
}

// Debugf prints a diagnostic only when tracing is enabled.
func (l *Logger) Debugf(component, format string, args ...any) {
	if l == nil || !l.enabled {
		return
	}
	l.logf("trace", component, format, args...)
}

// Tickf prints a single per-tick register snapshot line.
func (l *Logger) Tickf(isn int, ip, odShp, praShp, top, next int64, op string) {
	if l == nil || !l.enabled {
		return
	}
	l.logf("tick", "machine", "isn=%d ip=%d od_shp=%d pra_shp=%d top=%d next=%d op=%s",
		isn, ip, odShp, praShp, top, next, op)
}

// Warnf reports a non-fatal condition: a dropped device interrupt or a
// tick-limit cutoff.
func (l *Logger) Warnf(component, format string, args ...any) {
	l.logf("warn", component, format, args...)
}

// Errorf reports a fatal condition before the caller returns an error.
func (l *Logger) Errorf(component, format string, args ...any) {
	l.logf("error", component, format, args...)
}
