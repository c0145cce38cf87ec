package opt

import (
	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// ConstFoldingPass evaluates pure arithmetic/comparison/unary
// instructions whose operands are all constants, replacing each with a
// materialized const_int/const_time result (spec.md §4.5, "ConstFolding").
// A fold whose result is poison (e.g. division by zero) does not panic:
// the instruction is left in place unfolded, so instructions that read
// its result are not folded either.
type ConstFoldingPass struct{}

func (ConstFoldingPass) Name() string { return "const_folding" }

func (ConstFoldingPass) RunOnUnit(u *unit.Unit) bool {
	changed := false
	for _, b := range u.CFG.Blocks() {
		for _, i := range u.CFG.InstsIn(b) {
			if u.DFG.IsRemoved(i) {
				continue
			}
			if foldInst(u, i) {
				changed = true
			}
		}
	}
	return changed
}

func foldInst(u *unit.Unit, i ids.Inst) bool {
	data := u.DFG.Inst(i)
	if !data.Result.IsValid() {
		return false
	}
	var folded types.Const
	switch {
	case len(binaryOpName[data.Opcode]) > 0:
		a, okA := constOf(u.DFG, data.Args[0])
		b, okB := constOf(u.DFG, data.Args[1])
		if !okA || !okB {
			return false
		}
		folded = types.EvalBinary(binaryOpName[data.Opcode], a, b)
	case len(unaryOpName[data.Opcode]) > 0:
		a, okA := constOf(u.DFG, data.Args[0])
		if !okA {
			return false
		}
		folded = types.EvalUnary(unaryOpName[data.Opcode], a)
	default:
		return false
	}
	if folded.IsPoison() {
		// A statically poison result (e.g. division by zero) is left as a
		// live instruction rather than materialized: poison is a runtime
		// lattice value the simulator produces dynamically, not a
		// representable const_int/const_time immediate.
		return false
	}
	resultType := u.DFG.ValueType(data.Result)
	newVal := materialize(u, i, folded, resultType)
	u.DFG.ReplaceUse(data.Result, newVal)
	killInst(u, i)
	return true
}
