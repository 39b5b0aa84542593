// Package hwmonitor provides the observers that consume hardware monitor
// results: a fault reporter, a performance monitor and an FDR logger. Each
// one prints a single line per update.
package hwmonitor

import (
	"errors"
	"fmt"
	"io"
	"strings"

	observer "github.com/jeremyforan/hwmonitor"
)

// ErrUnknownKind is returned by ParseKind and New for a name or Kind that
// matches no observer variant.
var ErrUnknownKind = errors.New("unknown observer kind")

// Kind names an observer variant.
type Kind string

// Observer variants, by the name used in flags and config files.
const (
	KindFault       Kind = "fault"       // fault reporter
	KindPerformance Kind = "performance" // performance monitor
	KindFdr         Kind = "fdr"         // flight data recorder logger
)

// Kinds returns the known kinds in the order the monitor registers them by default.
func Kinds() []Kind {
	return []Kind{KindFault, KindPerformance, KindFdr}
}

// ParseKind maps a name such as "fault" or "perf" to its Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fault":
		return KindFault, nil
	case "performance", "perf":
		return KindPerformance, nil
	case "fdr":
		return KindFdr, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Reporter prints a fixed message each time it is updated. The concrete
// variants differ only in that message.
type Reporter struct {
	observer.Identity
	message string
	out     io.Writer
}

func newReporter(label, message string, out io.Writer) *Reporter {
	return &Reporter{
		Identity: observer.NewIdentity(label),
		message:  message,
		out:      out,
	}
}

// Update writes the reporter's message.
func (r *Reporter) Update() {
	fmt.Fprintln(r.out, r.message)
}

// Message returns the line written on every update.
func (r *Reporter) Message() string {
	return r.message
}

// NewFaultReporter returns a Reporter that writes the fault reporter line to out.
func NewFaultReporter(out io.Writer) *Reporter {
	return newReporter("Fault Reporter", "Fault Reporter got update from Publisher", out)
}

// NewPerformanceMonitor returns a Reporter that writes the performance
// monitor line to out.
func NewPerformanceMonitor(out io.Writer) *Reporter {
	return newReporter("Performance Monitor", "Performance monitor got update from Publisher", out)
}

// NewFdrLogger returns a Reporter that writes the FDR logger line to out.
func NewFdrLogger(out io.Writer) *Reporter {
	return newReporter("Fdr Logger", "Fdr logger got update from Publisher", out)
}

// New builds the observer for kind, writing to out.
func New(kind Kind, out io.Writer) (observer.Observer, error) {
	switch kind {
	case KindFault:
		return NewFaultReporter(out), nil
	case KindPerformance:
		return NewPerformanceMonitor(out), nil
	case KindFdr:
		return NewFdrLogger(out), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
