package sim

import (
	"strings"
	"testing"

	"llhd/internal/types"
)

func TestDumpTracerEmitsSortedChangesPerInstant(t *testing.T) {
	m := buildBuffer(t)
	var out strings.Builder
	e, err := NewEngine(m, "buf", WithTracer(NewDumpTracer(&out)), Sequential())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Tracer.Begin(e); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	root := e.Root()
	buf := m.Unit(mustLookup(t, m, "buf"))
	inSig := root.Signals[buf.ArgValues[0]]
	e.Queue.Push(&Event{Time: e.Now, Kind: EventDrive, Signal: inSig, Value: intConst(32, 7), Instance: root.ID})
	e.Run(0)
	if err := e.Tracer.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "0ps 0d 0e\n") {
		t.Errorf("dump output missing the instant header:\n%s", text)
	}
	inIdx := strings.Index(text, "  buf.in = 0x7")
	outIdx := strings.Index(text, "  buf.out = 0x7")
	if inIdx < 0 || outIdx < 0 {
		t.Fatalf("dump output missing change lines:\n%s", text)
	}
	if inIdx > outIdx {
		t.Error("changes within one instant must be sorted by hierarchical path")
	}
}

func TestDumpValueRendering(t *testing.T) {
	if got := dumpValue(intConst(32, 0x1337)); got != "0x1337" {
		t.Errorf("dumpValue(int) = %q, want 0x1337", got)
	}
	agg := types.Const{Kind: types.ConstArray, Elems: []types.Const{intConst(8, 1), intConst(8, 2)}}
	if got := dumpValue(agg); got != "[0x1, 0x2]" {
		t.Errorf("dumpValue(array) = %q", got)
	}
	if got := dumpValue(types.Poison("boom")); got != "x" {
		t.Errorf("dumpValue(poison) = %q, want x", got)
	}
}

func TestEngineRecordsDriveConflicts(t *testing.T) {
	m := buildBuffer(t)
	e, err := NewEngine(m, "buf", Sequential())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	root := e.Root()
	buf := m.Unit(mustLookup(t, m, "buf"))
	inSig := root.Signals[buf.ArgValues[0]]

	e.Queue.Push(&Event{Time: e.Now, Kind: EventDrive, Signal: inSig, Value: intConst(32, 1), Instance: 0})
	e.Queue.Push(&Event{Time: e.Now, Kind: EventDrive, Signal: inSig, Value: intConst(32, 2), Instance: 1})
	e.Run(1)

	if len(e.Warnings) != 1 {
		t.Fatalf("Warnings = %d, want exactly one conflict", len(e.Warnings))
	}
	w := e.Warnings[0]
	if w.Signal != inSig || w.Lost.Int.Int64() != 1 || w.Won.Int.Int64() != 2 {
		t.Errorf("conflict = %+v, want signal %d losing 1 to 2", w, inSig)
	}
	// Last in canonical order (higher originating instance id) wins.
	if got := e.Signals[inSig].Value.Int.Int64(); got != 2 {
		t.Errorf("settled value = %d, want 2", got)
	}
}
