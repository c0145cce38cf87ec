package opt

import (
	"math/big"
	"testing"

	"llhd/internal/dfg"
	"llhd/internal/types"
	"llhd/internal/unit"
)

func TestConstFoldingReplacesAddOfConstants(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Int{Width: 32}})
	entry := u.CFG.AppendBlock("")
	b := unit.NewBuilder(u).AppendTo(entry)
	_, c1 := b.ConstInt(32, big.NewInt(2))
	_, c2 := b.ConstInt(32, big.NewInt(3))
	_, sum := b.Binary("add", c1, c2)
	b.RetValue(sum)

	if changed := (ConstFoldingPass{}).RunOnUnit(u); !changed {
		t.Fatal("ConstFoldingPass should fold add of two constants")
	}

	insts := u.CFG.InstsIn(entry)
	ret := u.DFG.Inst(insts[len(insts)-1])
	if ret.Opcode != dfg.OpRetValue {
		t.Fatalf("last instruction = %s, want ret_value", ret.Opcode)
	}
	foldedVal := ret.Args[0]
	info := u.DFG.ValueInfo(foldedVal)
	if info.Producer.Kind != dfg.ProducerInst {
		t.Fatal("the folded return value should be produced by an instruction")
	}
	produced := u.DFG.Inst(info.Producer.Inst)
	if produced.Opcode != dfg.OpConstInt {
		t.Errorf("folded value's producer = %s, want const_int", produced.Opcode)
	}
	if produced.Imm.Int.Int64() != 5 {
		t.Errorf("folded value = %d, want 5", produced.Imm.Int.Int64())
	}
}

func TestConstFoldingLeavesNonConstOperandsAlone(t *testing.T) {
	sig := unit.Signature{
		Inputs:     []unit.Param{{Name: "a", Type: types.Int{Width: 32}}, {Name: "b", Type: types.Int{Width: 32}}},
		ReturnType: types.Int{Width: 32},
	}
	u := unit.New(unit.KindFunction, "f", sig)
	entry := u.CFG.AppendBlock("")
	b := unit.NewBuilder(u).AppendTo(entry)
	_, sum := b.Binary("add", u.ArgValues[0], u.ArgValues[1])
	b.RetValue(sum)

	if changed := (ConstFoldingPass{}).RunOnUnit(u); changed {
		t.Error("ConstFoldingPass should not touch an add of two non-constant arguments")
	}
}

func TestConstFoldingLeavesDivisionByZeroLive(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Int{Width: 32}})
	entry := u.CFG.AppendBlock("")
	b := unit.NewBuilder(u).AppendTo(entry)
	_, num := b.ConstInt(32, big.NewInt(5))
	_, zero := b.ConstInt(32, big.NewInt(0))
	_, quot := b.Binary("udiv", num, zero)
	b.RetValue(quot)

	if changed := (ConstFoldingPass{}).RunOnUnit(u); changed {
		t.Error("division by zero is poison and must not be materialized as a constant")
	}
	info := u.DFG.ValueInfo(quot)
	if info.Producer.Kind != dfg.ProducerInst || u.DFG.Inst(info.Producer.Inst).Opcode != dfg.OpUdiv {
		t.Error("the udiv instruction should remain live")
	}
}

func TestDeadCodeElimRemovesUnusedPureInstructions(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Void{}})
	entry := u.CFG.AppendBlock("")
	b := unit.NewBuilder(u).AppendTo(entry)
	_, c := b.ConstInt(32, big.NewInt(1))
	b.Neg(c) // unused, and its operand c becomes unused too once it's gone
	b.Ret()

	if changed := (DeadCodeElimPass{}).RunOnUnit(u); !changed {
		t.Fatal("DeadCodeElimPass should remove the dead neg and its now-dead operand")
	}

	insts := u.CFG.InstsIn(entry)
	if len(insts) != 1 {
		t.Fatalf("InstsIn(entry) = %d instructions, want 1 (only ret)", len(insts))
	}
	if u.DFG.Inst(insts[0]).Opcode != dfg.OpRet {
		t.Errorf("remaining instruction = %s, want ret", u.DFG.Inst(insts[0]).Opcode)
	}
}

func TestDeadCodeElimKeepsUsedValues(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Int{Width: 32}})
	entry := u.CFG.AppendBlock("")
	b := unit.NewBuilder(u).AppendTo(entry)
	_, c := b.ConstInt(32, big.NewInt(1))
	b.RetValue(c)

	if changed := (DeadCodeElimPass{}).RunOnUnit(u); changed {
		t.Error("DeadCodeElimPass should not remove a constant that is still returned")
	}
	if len(u.CFG.InstsIn(entry)) != 2 {
		t.Error("both const_int and ret_value should survive")
	}
}

func TestDeadCodeElimSkipsImpureInstructions(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Void{}})
	entry := u.CFG.AppendBlock("")
	b := unit.NewBuilder(u).AppendTo(entry)
	b.Var(types.Int{Width: 32}) // unused, but var has side effects and must survive
	b.Ret()

	if changed := (DeadCodeElimPass{}).RunOnUnit(u); changed {
		t.Error("DeadCodeElimPass must never remove an impure instruction, even if unused")
	}
	if len(u.CFG.InstsIn(entry)) != 2 {
		t.Error("var should remain even though nothing reads its result")
	}
}
