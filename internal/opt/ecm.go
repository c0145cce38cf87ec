package opt

import (
	"llhd/internal/analysis"
	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/unit"
)

// EarlyCodeMotionPass hoists a pure instruction to the deepest of its
// operands' defining blocks in the dominator tree, the earliest block
// where every operand is available; an instruction whose operands are
// all signature arguments, or that has none, stays where it is. This
// moves redundant-looking computation toward the entry so later GCSE
// passes have more chances to merge it with an
// equivalent computation on another path (spec.md §4.5). Pure
// instructions compute the same result whenever their operands are
// available, so hoisting one across a `wait` is harmless; the
// time-sensitive motion (drive placement) belongs to TemporalCodeMotion.
type EarlyCodeMotionPass struct{}

func (EarlyCodeMotionPass) Name() string { return "early_code_motion" }

func (EarlyCodeMotionPass) RunOnUnit(u *unit.Unit) bool {
	tree := analysis.BuildDomTree(u)
	changed := false
	for _, b := range u.CFG.Blocks() {
		for _, i := range u.CFG.InstsIn(b) {
			if u.DFG.IsRemoved(i) {
				continue
			}
			if hoist(u, tree, b, i) {
				changed = true
			}
		}
	}
	return changed
}

func hoist(u *unit.Unit, tree *analysis.DomTree, from ids.Block, i ids.Inst) bool {
	data := u.DFG.Inst(i)
	if !dfg.IsPure(data.Opcode) || !data.Result.IsValid() {
		return false
	}
	target, ok := operandLCA(u, tree, from, data)
	if !ok || target == from {
		return false
	}
	term, ok := u.CFG.Terminator(target)
	if !ok {
		return false
	}
	u.CFG.RemoveInst(i)
	u.CFG.InsertBefore(term, i)
	return true
}

// operandLCA returns the deepest block, in the dominator tree, among
// the defining blocks of the instruction's operands. Every such block
// dominates from (the instruction's own block), so they lie on one tree
// path and the deepest is dominated by all the others. It returns from
// when no operand is defined by an instruction.
func operandLCA(u *unit.Unit, tree *analysis.DomTree, from ids.Block, data dfg.InstData) (ids.Block, bool) {
	target, have := from, false
	for _, a := range data.Args {
		info := u.DFG.ValueInfo(a)
		if info.Producer.Kind == dfg.ProducerArg {
			continue // signature arguments are available at the entry
		}
		if info.Producer.Kind != dfg.ProducerInst {
			return target, false
		}
		defBlock, ok := u.CFG.BlockOf(info.Producer.Inst)
		if !ok {
			return target, false
		}
		if !have || tree.Dominates(target, defBlock) {
			target, have = defBlock, true
		}
	}
	return target, true
}
