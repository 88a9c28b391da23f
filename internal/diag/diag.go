// Package diag carries diagnostics produced by every stage of the front
// end: the tokeniser, the parser, the sanity checker, the resolution
// engine and HEART lowering. It mirrors the original implementation's e()/infoIfLogging()
// style — a couple of tiny free functions rather than a framework — scaled
// up to the structured (location, severity, kind) record every later stage
// of the front end needs.
package diag

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Kind names the taxonomy from the language definition. It is never surfaced to the user
// directly, only via Message.Kind for programmatic filtering (tests,
// `-W` style flags in the CLI).
type Kind int

const (
	LexError Kind = iota
	ParseError
	SanityError
	ResolutionFailure
	TypeError
	OverflowError
	NotYetImplemented
	InternalAssert
)

func (k Kind) String() string {
	switch k {
	case LexError:
		return "LexError"
	case ParseError:
		return "ParseError"
	case SanityError:
		return "SanityError"
	case ResolutionFailure:
		return "ResolutionFailure"
	case TypeError:
		return "TypeError"
	case OverflowError:
		return "OverflowError"
	case NotYetImplemented:
		return "NotYetImplemented"
	case InternalAssert:
		return "InternalAssert"
	default:
		return "Unknown"
	}
}

// Severity of a Message.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Location is a 1-based file/line/column, per the language definition.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Message is a single diagnostic, optionally wrapping an underlying Go
// error (file I/O, JSON decode) via github.com/pkg/errors so the cause
// chain survives formatting with "%+v".
type Message struct {
	Loc      Location
	Severity Severity
	Kind     Kind
	Text     string
	cause    error
}

func (m Message) Error() string {
	return fmt.Sprintf("%s: %s: %s", m.Loc, m.Severity, m.Text)
}

// Unwrap lets errors.Is/errors.As see through to a wrapped cause.
func (m Message) Unwrap() error { return m.cause }

// New builds an error-severity Message.
func New(loc Location, kind Kind, format string, args ...interface{}) Message {
	return Message{Loc: loc, Severity: Error, Kind: kind, Text: fmt.Sprintf(format, args...)}
}

// Wrap builds an error-severity Message around an underlying cause,
// used at the boundary with external collaborators (manifest loading,
// source file reads) where the cause is a plain Go error worth keeping.
func Wrap(loc Location, kind Kind, cause error, format string, args ...interface{}) Message {
	return Message{
		Loc:      loc,
		Severity: Error,
		Kind:     kind,
		Text:     errors.Wrap(cause, fmt.Sprintf(format, args...)).Error(),
		cause:    cause,
	}
}

// Notef builds a note-severity Message, used to attach extra context to a
// preceding error (the language definition: "a principal error and optional notes").
func Notef(loc Location, format string, args ...interface{}) Message {
	return Message{Loc: loc, Severity: Note, Kind: InternalAssert, Text: fmt.Sprintf(format, args...)}
}

// List accumulates diagnostics for one compilation, in the order they were
// appended (stable for both CLI output and testing). It is the "messageList"
// named throughout the language definition.
type List struct {
	messages []Message
}

func (l *List) Add(m Message) { l.messages = append(l.messages, m) }

func (l *List) Addf(loc Location, kind Kind, format string, args ...interface{}) {
	l.Add(New(loc, kind, format, args...))
}

func (l *List) HasErrors() bool {
	for _, m := range l.messages {
		if m.Severity == Error {
			return true
		}
	}
	return false
}

func (l *List) Messages() []Message { return l.messages }

func (l *List) ErrorCount() int {
	n := 0
	for _, m := range l.messages {
		if m.Severity == Error {
			n++
		}
	}
	return n
}

// SortStable orders by file, then line, then column — useful once multiple
// passes have appended diagnostics out of source order (the fixpoint loop
// in internal/resolve reruns passes, so later messages can precede earlier
// ones in append order).
func (l *List) SortStable() {
	sort.SliceStable(l.messages, func(i, j int) bool {
		a, b := l.messages[i].Loc, l.messages[j].Loc
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

func (l *List) String() string {
	out := ""
	for _, m := range l.messages {
		out += m.Error() + "\n"
	}
	return out
}
