// Package diag implements leveled, colorized diagnostics shared by the
// assembly reader, linker, and verifier, in the style of the teacher
// repository's internal/errors package.
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a diagnostic.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)

// Position is a 1-based line/column location in a source file.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Diagnostic is one reportable condition: a parse error, a verification
// failure, or a link error.
type Diagnostic struct {
	Level    Level
	Message  string
	Pos      Position // zero value if not source-located
	HasPos   bool
	Filename string
}

func (d Diagnostic) Error() string { return d.String() }

func levelColor(l Level) func(a ...interface{}) string {
	switch l {
	case LevelError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case LevelWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgCyan, color.Bold).SprintFunc()
	}
}

// String renders the diagnostic the way the front end prints it to
// stderr: `level: message` optionally followed by `--> file:line:col`.
func (d Diagnostic) String() string {
	var b strings.Builder
	lc := levelColor(d.Level)
	fmt.Fprintf(&b, "%s: %s", lc(string(d.Level)), d.Message)
	if d.HasPos {
		fmt.Fprintf(&b, "\n  --> %s:%s", d.Filename, d.Pos)
	}
	return b.String()
}

// NewParseError builds a LevelError diagnostic located at pos, the shape
// every internal/asm parse failure reports (spec.md §7 "Parse error").
func NewParseError(filename string, pos Position, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Level:    LevelError,
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
		HasPos:   true,
		Filename: filename,
	}
}

// Batch formats a slice of diagnostics as one newline-joined report, the
// shape the verifier and linker emit (spec.md §7: "never partial").
func Batch(ds []Diagnostic) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, "\n")
}
