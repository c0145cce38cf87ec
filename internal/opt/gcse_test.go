package opt

import (
	"math/big"
	"testing"

	"llhd/internal/dfg"
	"llhd/internal/types"
	"llhd/internal/unit"
)

func TestGCSEReusesDominatingComputation(t *testing.T) {
	sig := unit.Signature{
		Inputs:     []unit.Param{{Name: "a", Type: types.Int{Width: 32}}, {Name: "b", Type: types.Int{Width: 32}}, {Name: "cond", Type: types.Int{Width: 1}}},
		ReturnType: types.Int{Width: 32},
	}
	u := unit.New(unit.KindFunction, "f", sig)
	entry := u.CFG.AppendBlock("entry")
	branch := u.CFG.AppendBlock("branch")

	be := unit.NewBuilder(u).AppendTo(entry)
	_, firstSum := be.Binary("add", u.ArgValues[0], u.ArgValues[1])
	be.Br(branch)

	// Drop the interning cache so the second add is a separate instruction
	// for GCSE to find, rather than an interned hit on the first.
	u.DFG.ClearInterning()
	bb := unit.NewBuilder(u).AppendTo(branch)
	_, secondSum := bb.Binary("add", u.ArgValues[0], u.ArgValues[1])
	bb.RetValue(secondSum)
	_ = firstSum

	if changed := (GlobalCommonSubexpressionElimPass{}).RunOnUnit(u); !changed {
		t.Fatal("GCSE should replace branch's redundant add with entry's dominating one")
	}
	insts := u.CFG.InstsIn(branch)
	ret := u.DFG.Inst(insts[len(insts)-1])
	if ret.Args[0] != firstSum {
		t.Errorf("ret_value operand = %v, want the entry block's add result %v", ret.Args[0], firstSum)
	}
}

func TestGCSEDoesNotMergeNonDominatingSiblingComputations(t *testing.T) {
	sig := unit.Signature{
		Inputs:     []unit.Param{{Name: "a", Type: types.Int{Width: 32}}, {Name: "cond", Type: types.Int{Width: 1}}},
		ReturnType: types.Int{Width: 32},
	}
	u := unit.New(unit.KindFunction, "f", sig)
	entry := u.CFG.AppendBlock("entry")
	left := u.CFG.AppendBlock("left")
	right := u.CFG.AppendBlock("right")
	merge := u.CFG.AppendBlock("merge")

	unit.NewBuilder(u).AppendTo(entry).BrCond(u.ArgValues[1], left, right)

	bl := unit.NewBuilder(u).AppendTo(left)
	_, one := bl.ConstInt(32, big.NewInt(1))
	bl.Br(merge)

	// Without this, right's const would intern to left's and only one
	// computation would exist.
	u.DFG.ClearInterning()
	br := unit.NewBuilder(u).AppendTo(right)
	_, anotherOne := br.ConstInt(32, big.NewInt(1))
	br.Br(merge)

	bm := unit.NewBuilder(u).AppendTo(merge)
	bm.RetValue(one)

	changed := (GlobalCommonSubexpressionElimPass{}).RunOnUnit(u)
	if changed {
		t.Error("left and right are siblings; neither dominates the other, so GCSE must not merge their consts")
	}
	if u.DFG.IsRemoved(u.DFG.ValueInfo(anotherOne).Producer.Inst) {
		t.Error("right's const_int must remain live")
	}
}

func TestGCSEDoesNotMergeDistinctConstants(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Int{Width: 32}})
	entry := u.CFG.AppendBlock("entry")
	b := unit.NewBuilder(u).AppendTo(entry)
	_, one := b.ConstInt(32, big.NewInt(1))
	_, two := b.ConstInt(32, big.NewInt(2))
	b.RetValue(two)
	_ = one

	if changed := (GlobalCommonSubexpressionElimPass{}).RunOnUnit(u); changed {
		t.Error("constants carry their value in immediates, not operands; 1 and 2 must stay distinct")
	}
	insts := u.CFG.InstsIn(entry)
	ret := u.DFG.Inst(insts[len(insts)-1])
	if ret.Args[0] != two {
		t.Errorf("ret_value operand = %v, want the original const 2 result %v", ret.Args[0], two)
	}
	if u.DFG.Inst(u.DFG.ValueInfo(two).Producer.Inst).Imm.Int.Int64() != 2 {
		t.Error("the returned constant must still hold the value 2")
	}
}

func TestGCSEDoesNotMergeSameValueDifferentWidth(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Int{Width: 32}})
	entry := u.CFG.AppendBlock("entry")
	b := unit.NewBuilder(u).AppendTo(entry)
	_, narrow := b.ConstInt(8, big.NewInt(5))
	_, wide := b.ConstInt(32, big.NewInt(5))
	b.RetValue(wide)
	_ = narrow

	if changed := (GlobalCommonSubexpressionElimPass{}).RunOnUnit(u); changed {
		t.Error("const i8 5 and const i32 5 differ in type and must not merge")
	}
	if !types.Equal(u.DFG.ValueType(wide), types.Int{Width: 32}) {
		t.Errorf("returned value type = %s, want i32", u.DFG.ValueType(wide))
	}
}

func TestEarlyCodeMotionHoistsToDominatingLCA(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Int{Width: 32}})
	entry := u.CFG.AppendBlock("entry")
	mid := u.CFG.AppendBlock("mid")
	tail := u.CFG.AppendBlock("tail")

	be := unit.NewBuilder(u).AppendTo(entry)
	_, c := be.ConstInt(32, big.NewInt(1))
	be.Br(mid)
	unit.NewBuilder(u).AppendTo(mid).Br(tail)
	bt := unit.NewBuilder(u).AppendTo(tail)
	_, sum := bt.Binary("add", c, c)
	bt.RetValue(sum)

	if changed := (EarlyCodeMotionPass{}).RunOnUnit(u); !changed {
		t.Fatal("EarlyCodeMotion should hoist the add up to entry, where its only operand (c) is defined")
	}
	entryInsts := u.CFG.InstsIn(entry)
	found := false
	for _, i := range entryInsts {
		if u.DFG.Inst(i).Opcode == dfg.OpAdd {
			found = true
		}
	}
	if !found {
		t.Error("the add should have been moved into entry, ahead of its own original block")
	}
}
