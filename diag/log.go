// Package diag defines the error taxonomy and collected-diagnostics log
// used across the SIEVE IR toolkit. See SPEC_FULL.md section 7 and section
// 10.1 for the policy this package implements.
package diag

import (
	"bytes"
	"fmt"
)

// Severity classifies a single diagnostic entry.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return ""
	case Warning:
		return "warning: "
	case Error:
		return "error: "
	case Fatal:
		return "fatal: "
	default:
		return "?: "
	}
}

// Kind is the error taxonomy from spec.md section 7.
type Kind int

const (
	// StructuralError: malformed IR (duplicate/unknown function, recursive
	// call graph, duplicate switch case, type index out of range).
	StructuralError Kind = iota
	// WireError: used-before-assignment, reassignment, non-contiguous
	// range, delete of non-local wire, delete splitting an allocation.
	WireError
	// ValueError: constant >= prime, conversion without a registered
	// converter.
	ValueError
	// StreamError: read past end, value >= prime, leftover values.
	StreamError
	// AssertionFailed: an assertZero on a non-zero wire.
	AssertionFailed
	// BackendError: opaque failure surfaced by a TypeBackend or Converter.
	BackendError
)

func (k Kind) String() string {
	switch k {
	case StructuralError:
		return "StructuralError"
	case WireError:
		return "WireError"
	case ValueError:
		return "ValueError"
	case StreamError:
		return "StreamError"
	case AssertionFailed:
		return "AssertionFailed"
	case BackendError:
		return "BackendError"
	default:
		return "UnknownError"
	}
}

// GateRef pins a diagnostic to the gate (and frame path) that produced it.
// FuncName and GateIndex replace the teacher's filename+offset; Path is
// the stack of enclosing function/loop/switch frames, recovered from
// wtk::firealarm::TreeAlarm per SPEC_FULL.md section 12.
type GateRef struct {
	FuncName  string
	GateIndex int
	GateKind  string
	Path      []string
}

func (g GateRef) String() string {
	var buf bytes.Buffer
	if g.FuncName != "" {
		buf.WriteString(g.FuncName)
		fmt.Fprintf(&buf, "[%d]", g.GateIndex)
	}
	if g.GateKind != "" {
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(g.GateKind)
	}
	for _, p := range g.Path {
		buf.WriteString(" <- ")
		buf.WriteString(p)
	}
	return buf.String()
}

// Entry is a single collected diagnostic, the generalized form of the
// teacher's doctor.LogEntry.
type Entry struct {
	Severity Severity
	Kind     Kind
	Message  string
	Ref      GateRef
	// initial marks a diagnostic that describes a pre-existing condition
	// of the circuit rather than one produced mid-evaluation (mirrors
	// doctor.LogEntry.isInitial).
	initial bool
}

func (e Entry) String() string {
	var buf bytes.Buffer
	buf.WriteString(e.Severity.String())
	if ref := e.Ref.String(); ref != "" {
		buf.WriteString(ref)
		buf.WriteString(": ")
	}
	buf.WriteString(e.Kind.String())
	buf.WriteString(": ")
	buf.WriteString(e.Message)
	return buf.String()
}

// Log collects diagnostics produced over the course of an interpretation
// or transformation pass so a caller sees a full report rather than
// aborting on the first problem, per spec.md section 7.
type Log struct {
	Entries []Entry
}

// NewLog returns a new, empty Log.
func NewLog() *Log {
	return &Log{Entries: []Entry{}}
}

// Add appends a diagnostic entry to the log.
func (l *Log) Add(severity Severity, kind Kind, ref GateRef, format string, args ...interface{}) {
	l.Entries = append(l.Entries, Entry{
		Severity: severity,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Ref:      ref,
	})
}

// AddInitial appends a diagnostic describing a condition present before
// evaluation began (e.g. a malformed declaration discovered during Pass 1).
func (l *Log) AddInitial(severity Severity, kind Kind, ref GateRef, format string, args ...interface{}) {
	l.Entries = append(l.Entries, Entry{
		Severity: severity,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Ref:      ref,
		initial:  true,
	})
}

// ContainsErrors reports whether the log contains any Error or Fatal entry.
func (l *Log) ContainsErrors() bool {
	return l.contains(func(e Entry) bool { return e.Severity >= Error })
}

// ContainsFatal reports whether the log contains a Fatal entry.
func (l *Log) ContainsFatal() bool {
	return l.contains(func(e Entry) bool { return e.Severity == Fatal })
}

func (l *Log) contains(predicate func(Entry) bool) bool {
	for _, e := range l.Entries {
		if predicate(e) {
			return true
		}
	}
	return false
}

// Clear removes all entries from the log.
func (l *Log) Clear() {
	l.Entries = []Entry{}
}

func (l *Log) String() string {
	var buf bytes.Buffer
	for _, e := range l.Entries {
		buf.WriteString(e.String())
		buf.WriteString("\n")
	}
	return buf.String()
}

// Err builds an error, wrapped with golang.org/x/xerrors so a Kind survives
// unwrapping, suitable for returning from a function that must abort
// immediately (structural and most wire errors, per spec.md section 7's
// propagation policy) rather than merely being appended to a Log.
func Err(kind Kind, ref GateRef, format string, args ...interface{}) error {
	return &wrappedError{kind: kind, ref: ref, msg: fmt.Sprintf(format, args...)}
}
