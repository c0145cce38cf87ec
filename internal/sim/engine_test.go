package sim

import (
	"testing"

	"llhd/internal/ids"
	"llhd/internal/module"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// buildBuffer returns a module containing a single combinational entity
// that drives its output signal with whatever its input signal currently
// holds: `out <= in`.
func buildBuffer(t *testing.T) *module.Module {
	t.Helper()
	st := types.Signal{Inner: types.Int{Width: 32}}
	sig := unit.Signature{
		Inputs:  []unit.Param{{Name: "in", Type: st}},
		Outputs: []unit.Param{{Name: "out", Type: st}},
	}
	u := unit.New(unit.KindEntity, "buf", sig)
	b := unit.NewBuilder(u).InsertAtEnd()
	_, v := b.Prb(u.ArgValues[0])
	b.Drv(u.ArgValues[1], v, types.ZeroTime())

	m := module.New()
	m.AddUnit(u)
	return m
}

func TestEngineElaboratesAndRunsCombinationalEntity(t *testing.T) {
	m := buildBuffer(t)
	e, err := NewEngine(m, "buf")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	root := e.Root()
	buf := m.Unit(mustLookup(t, m, "buf"))
	inSig := root.Signals[buf.ArgValues[0]]
	outSig := root.Signals[buf.ArgValues[1]]

	e.Queue.Push(&Event{Time: e.Now, Kind: EventDrive, Signal: inSig, Value: intConst(32, 7), Instance: root.ID})
	e.Run(0)

	got := e.Signals[outSig].Value
	if got.IsPoison() || got.Int.Int64() != 7 {
		t.Errorf("out signal = %v, want 7 propagated from in", got)
	}
}

// buildFlipFlop returns an entity sampling input %d into output %q on
// the rising edge of %clk through a reg storage element.
func buildFlipFlop(t *testing.T) *module.Module {
	t.Helper()
	bit := types.Signal{Inner: types.Int{Width: 1}}
	word := types.Signal{Inner: types.Int{Width: 32}}
	sig := unit.Signature{
		Inputs:  []unit.Param{{Name: "clk", Type: bit}, {Name: "d", Type: word}},
		Outputs: []unit.Param{{Name: "q", Type: word}},
	}
	u := unit.New(unit.KindEntity, "ff", sig)
	b := unit.NewBuilder(u).InsertAtEnd()
	_, clk := b.Prb(u.ArgValues[0])
	_, d := b.Prb(u.ArgValues[1])
	_, q := b.Reg(d, clk, "rise", types.Int{Width: 32})
	b.Con(q, u.ArgValues[2])

	m := module.New()
	m.AddUnit(u)
	return m
}

func TestEngineRegSamplesOnRisingEdge(t *testing.T) {
	m := buildFlipFlop(t)
	e, err := NewEngine(m, "ff", Sequential())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	root := e.Root()
	ff := m.Unit(mustLookup(t, m, "ff"))
	clkSig := root.Signals[ff.ArgValues[0]]
	dSig := root.Signals[ff.ArgValues[1]]
	qSig := root.Signals[ff.ArgValues[2]]

	e.Queue.Push(&Event{Time: at(0, 0), Kind: EventDrive, Signal: dSig, Value: intConst(32, 0x1337), Instance: root.ID})
	e.Run(0)
	if got := e.Signals[qSig].Value.Int.Int64(); got != 0 {
		t.Fatalf("q = %#x before any clock edge, want the reset value 0", got)
	}

	e.Queue.Push(&Event{Time: e.Now.AfterDelta(1), Kind: EventDrive, Signal: clkSig, Value: intConst(1, 1), Instance: root.ID})
	e.Run(0)
	if got := e.Signals[qSig].Value.Int.Int64(); got != 0x1337 {
		t.Errorf("q = %#x after the rising edge, want the sampled 0x1337", got)
	}

	// A high clock staying high is not an edge; changing d alone must
	// not propagate into q.
	e.Queue.Push(&Event{Time: e.Now.AfterDelta(1), Kind: EventDrive, Signal: dSig, Value: intConst(32, 0xbeef), Instance: root.ID})
	e.Run(0)
	if got := e.Signals[qSig].Value.Int.Int64(); got != 0x1337 {
		t.Errorf("q = %#x with clk held high, want 0x1337 retained", got)
	}
}

func TestEngineRejectsFunctionAsTop(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Int{Width: 32}})
	entry := u.CFG.AppendBlock("")
	unit.NewBuilder(u).AppendTo(entry).Ret()
	m := module.New()
	m.AddUnit(u)

	if _, err := NewEngine(m, "f"); err == nil {
		t.Error("NewEngine should reject a Function as the instantiation top")
	}
}

func TestEngineUnknownTopNameErrors(t *testing.T) {
	m := module.New()
	if _, err := NewEngine(m, "nope"); err == nil {
		t.Error("NewEngine should error on an unknown top-level unit name")
	}
}

func mustLookup(t *testing.T, m *module.Module, name string) ids.UnitId {
	t.Helper()
	id, ok := m.Lookup(name)
	if !ok {
		t.Fatalf("Lookup(%q) failed", name)
	}
	return id
}

func intConst(width uint32, v int64) types.Const {
	return types.NewIntU64(width, uint64(v))
}
