package sim

import (
	"strings"
	"testing"

	"llhd/internal/types"
)

func TestVcdShortNameIsStableAndDistinct(t *testing.T) {
	if got := vcdShortName(0); got != "!" {
		t.Errorf("vcdShortName(0) = %q, want %q", got, "!")
	}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		s := vcdShortName(i)
		if seen[s] {
			t.Fatalf("vcdShortName(%d) collided with an earlier index: %q", i, s)
		}
		seen[s] = true
	}
}

func TestVcdValueSingleBit(t *testing.T) {
	zero := types.NewIntU64(1, 0)
	one := types.NewIntU64(1, 1)
	if got := vcdValue(zero, 1); got != "0" {
		t.Errorf("vcdValue(0, width=1) = %q, want %q", got, "0")
	}
	if got := vcdValue(one, 1); got != "1" {
		t.Errorf("vcdValue(1, width=1) = %q, want %q", got, "1")
	}
}

func TestVcdValueMultiBitVector(t *testing.T) {
	v := types.NewIntU64(4, 0b1010)
	if got, want := vcdValue(v, 4), "b1010 "; got != want {
		t.Errorf("vcdValue(0b1010, width=4) = %q, want %q", got, want)
	}
}

func TestVcdValuePoisonRendersAsDontCare(t *testing.T) {
	p := types.Poison("never driven")
	if got, want := vcdValue(p, 1), "x"; got != want {
		t.Errorf("vcdValue(poison, width=1) = %q, want %q", got, want)
	}
	if got, want := vcdValue(p, 8), "b"+strings.Repeat("x", 8)+" "; got != want {
		t.Errorf("vcdValue(poison, width=8) = %q, want %q", got, want)
	}
}

func TestVCDTracerBeginEmitsScopeAndInitialDump(t *testing.T) {
	m := buildBuffer(t)
	e, err := NewEngine(m, "buf")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	var buf strings.Builder
	tracer := NewVCDTracer(&buf)
	if err := tracer.Begin(e); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"$timescale 1ps $end", "$scope module buf $end", "$var wire 32", "$dumpvars", "$end"} {
		if !strings.Contains(out, want) {
			t.Errorf("Begin() output missing %q:\n%s", want, out)
		}
	}
}

func TestVCDTracerSignalChangedStampsTimeOnce(t *testing.T) {
	m := buildBuffer(t)
	e, err := NewEngine(m, "buf")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	var buf strings.Builder
	tracer := NewVCDTracer(&buf)
	if err := tracer.Begin(e); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	e.Tracer = tracer

	root := e.Root()
	unitRef := m.Unit(mustLookup(t, m, "buf"))
	inSig := root.Signals[unitRef.ArgValues[0]]
	e.Queue.Push(&Event{Time: e.Now, Kind: EventDrive, Signal: inSig, Value: intConst(32, 1), Instance: root.ID})
	e.Run(0)

	out := buf.String()
	if strings.Count(out, "#0") > 1 {
		t.Errorf("SignalChanged should stamp a given instant's time only once:\n%s", out)
	}
}
