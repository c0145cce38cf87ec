package diag

import (
	"strings"
	"testing"
)

func TestPositionString(t *testing.T) {
	p := Position{Line: 3, Column: 7}
	if got, want := p.String(), "3:7"; got != want {
		t.Errorf("Position.String() = %q, want %q", got, want)
	}
}

func TestNewParseErrorFields(t *testing.T) {
	d := NewParseError("t.llhd", Position{Line: 1, Column: 2}, "unexpected %q", "}")
	if d.Level != LevelError {
		t.Errorf("Level = %q, want %q", d.Level, LevelError)
	}
	if !d.HasPos {
		t.Error("a parse error must carry a position")
	}
	if d.Message != `unexpected "}"` {
		t.Errorf("Message = %q, want %q", d.Message, `unexpected "}"`)
	}
	if d.Filename != "t.llhd" {
		t.Errorf("Filename = %q, want %q", d.Filename, "t.llhd")
	}
}

func TestDiagnosticStringIncludesLocation(t *testing.T) {
	d := NewParseError("t.llhd", Position{Line: 5, Column: 1}, "boom")
	s := d.String()
	if !strings.Contains(s, "boom") {
		t.Errorf("String() = %q, want it to contain the message", s)
	}
	if !strings.Contains(s, "t.llhd:5:1") {
		t.Errorf("String() = %q, want it to contain the located file:line:col", s)
	}
}

func TestDiagnosticWithoutPositionOmitsArrow(t *testing.T) {
	d := Diagnostic{Level: LevelWarning, Message: "heads up"}
	s := d.String()
	if strings.Contains(s, "-->") {
		t.Errorf("String() = %q, a position-less diagnostic should not print a location arrow", s)
	}
}

func TestBatchJoinsWithNewlines(t *testing.T) {
	ds := []Diagnostic{
		{Level: LevelError, Message: "first"},
		{Level: LevelNote, Message: "second"},
	}
	got := Batch(ds)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("Batch() produced %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "first") || !strings.Contains(lines[1], "second") {
		t.Errorf("Batch() = %q, want each diagnostic's message present in order", got)
	}
}
