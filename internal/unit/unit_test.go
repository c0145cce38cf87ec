package unit

import (
	"math/big"
	"testing"

	"llhd/internal/types"
)

func TestNewFunctionBindsInputArgValues(t *testing.T) {
	sig := Signature{
		Inputs:     []Param{{Name: "a", Type: types.Int{Width: 32}}, {Name: "b", Type: types.Int{Width: 32}}},
		ReturnType: types.Int{Width: 32},
	}
	u := New(KindFunction, "add", sig)

	if len(u.ArgValues) != 2 {
		t.Fatalf("ArgValues = %d, want 2 (function has no output ports)", len(u.ArgValues))
	}
	if got := u.DFG.ValueType(u.ArgValues[0]); !types.Equal(got, types.Int{Width: 32}) {
		t.Errorf("ArgValues[0] type = %s, want i32", got)
	}
}

func TestNewEntityBindsInputsThenOutputs(t *testing.T) {
	sig := Signature{
		Inputs:  []Param{{Name: "clk", Type: types.Signal{Inner: types.Int{Width: 1}}}},
		Outputs: []Param{{Name: "q", Type: types.Signal{Inner: types.Int{Width: 32}}}},
	}
	u := New(KindEntity, "buffer", sig)

	if len(u.ArgValues) != 2 {
		t.Fatalf("ArgValues = %d, want 2 (1 input + 1 output)", len(u.ArgValues))
	}
	if got := u.DFG.ValueType(u.ArgValues[0]); !types.Equal(got, types.Signal{Inner: types.Int{Width: 1}}) {
		t.Errorf("ArgValues[0] (clk) type = %s, want i1$", got)
	}
	if got := u.DFG.ValueType(u.ArgValues[1]); !types.Equal(got, types.Signal{Inner: types.Int{Width: 32}}) {
		t.Errorf("ArgValues[1] (q) type = %s, want i32$", got)
	}
	if u.DFG.ValueName(u.ArgValues[1]) != "q" {
		t.Errorf("ArgValues[1] name = %q, want %q", u.DFG.ValueName(u.ArgValues[1]), "q")
	}
}

func TestNewEntityGetsSingleBlock(t *testing.T) {
	u := New(KindEntity, "e", Signature{})
	if len(u.CFG.Blocks()) != 1 {
		t.Fatalf("entity should start with exactly one block, got %d", len(u.CFG.Blocks()))
	}
	if u.SingleBlock() != u.CFG.Blocks()[0] {
		t.Error("SingleBlock should be the entity's sole block")
	}
}

func TestSingleBlockPanicsOnNonEntity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("SingleBlock on a function should panic")
		}
	}()
	u := New(KindFunction, "f", Signature{})
	u.SingleBlock()
}

func TestIsDeclarationBeforeAnyBlock(t *testing.T) {
	u := New(KindFunction, "f", Signature{Inputs: []Param{{Type: types.Int{Width: 32}}}})
	if !u.IsDeclaration() {
		t.Error("a function with no blocks yet should be a declaration")
	}
	b := NewBuilder(u).AppendTo(u.CFG.AppendBlock(""))
	b.Ret()
	if u.IsDeclaration() {
		t.Error("a function with a body should no longer be a declaration")
	}
}

func TestBuilderEmitsAddAndRetValue(t *testing.T) {
	sig := Signature{
		Inputs:     []Param{{Name: "a", Type: types.Int{Width: 32}}, {Name: "b", Type: types.Int{Width: 32}}},
		ReturnType: types.Int{Width: 32},
	}
	u := New(KindFunction, "add", sig)
	entry := u.CFG.AppendBlock("")
	b := NewBuilder(u).AppendTo(entry)

	_, sum := b.Binary("add", u.ArgValues[0], u.ArgValues[1])
	b.RetValue(sum)

	insts := u.CFG.InstsIn(entry)
	if len(insts) != 2 {
		t.Fatalf("expected 2 instructions (add, ret_value), got %d", len(insts))
	}
	if u.DFG.Inst(insts[0]).Opcode.String() != "add" {
		t.Errorf("first instruction = %s, want add", u.DFG.Inst(insts[0]).Opcode)
	}
	if u.DFG.Inst(insts[1]).Opcode.String() != "ret_value" {
		t.Errorf("second instruction = %s, want ret_value", u.DFG.Inst(insts[1]).Opcode)
	}
}

func TestBuilderInternedConstDoesNotDuplicateLayout(t *testing.T) {
	u := New(KindFunction, "f", Signature{ReturnType: types.Int{Width: 32}})
	entry := u.CFG.AppendBlock("")
	b := NewBuilder(u).AppendTo(entry)

	_, v1 := b.ConstInt(32, big.NewInt(1))
	_, v2 := b.ConstInt(32, big.NewInt(1))
	b.RetValue(v1)

	if v1 != v2 {
		t.Error("identical const_int should intern to the same value")
	}
	insts := u.CFG.InstsIn(entry)
	if len(insts) != 2 {
		t.Fatalf("expected 2 layout instructions (one const_int, one ret_value), got %d", len(insts))
	}
}

func TestPhiAddIncoming(t *testing.T) {
	u := New(KindFunction, "f", Signature{ReturnType: types.Int{Width: 32}})
	header := u.CFG.AppendBlock("header")
	pred1 := u.CFG.AppendBlock("pred1")
	pred2 := u.CFG.AppendBlock("pred2")
	b := NewBuilder(u).AppendTo(header)

	phiInst, _ := b.Phi(types.Int{Width: 32})
	_, c1 := NewBuilder(u).AppendTo(pred1).ConstInt(32, big.NewInt(1))
	_, c2 := NewBuilder(u).AppendTo(pred2).ConstInt(32, big.NewInt(2))
	b.AddIncoming(phiInst, pred1, c1)
	b.AddIncoming(phiInst, pred2, c2)

	data := u.DFG.Inst(phiInst)
	if len(data.Args) != 2 || len(data.Blocks) != 2 {
		t.Fatalf("phi should have 2 incoming edges, got %d args / %d blocks", len(data.Args), len(data.Blocks))
	}
	if data.Args[0] != c1 || data.Blocks[0] != pred1 {
		t.Errorf("first incoming edge = (%v, %v), want (%v, %v)", data.Args[0], data.Blocks[0], c1, pred1)
	}
}
