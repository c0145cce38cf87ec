package opt

import (
	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/unit"
)

// ControlFlowSimplificationPass folds branches on a constant condition
// into an unconditional branch, and merges a block into its sole
// successor when that successor has no other predecessor, per spec.md
// §4.5. A phi in the merged successor has a single incoming value, so it
// is replaced by that value and removed; phis further on that named the
// merged successor as an incoming block are rewritten to name the block
// it merged into.
type ControlFlowSimplificationPass struct{}

func (ControlFlowSimplificationPass) Name() string { return "control_flow_simplification" }

func (ControlFlowSimplificationPass) RunOnUnit(u *unit.Unit) bool {
	changed := false
	for _, b := range u.CFG.Blocks() {
		if foldConstBranch(u, b) {
			changed = true
		}
	}
	for {
		progress := false
		for _, b := range u.CFG.Blocks() {
			if mergeIntoSuccessor(u, b) {
				progress = true
				changed = true
				break // layout changed, restart over the current block list
			}
		}
		if !progress {
			break
		}
	}
	return changed
}

func foldConstBranch(u *unit.Unit, b ids.Block) bool {
	term, ok := u.CFG.Terminator(b)
	if !ok {
		return false
	}
	data := u.DFG.Inst(term)
	if data.Opcode != dfg.OpBrCond {
		return false
	}
	c, ok := constOf(u.DFG, data.Args[0])
	if !ok {
		return false
	}
	target := data.Blocks[1] // false branch
	if c.Int != nil && c.Int.Sign() != 0 {
		target = data.Blocks[0] // true branch
	}
	bld := unit.NewBuilder(u).InsertBefore(term)
	bld.Br(target)
	killInst(u, term)
	return true
}

// mergeIntoSuccessor merges b into its unique successor s when b ends in
// an unconditional br and s has no other predecessor: the br is dropped
// and s's instructions are appended to b's layout in place, then s is
// removed. A wait terminator also has exactly one successor but is never
// merged across: dropping it would erase a suspension point.
func mergeIntoSuccessor(u *unit.Unit, b ids.Block) bool {
	succs := u.CFG.Successors(u.DFG, b)
	if len(succs) != 1 {
		return false
	}
	s := succs[0]
	if s == b {
		return false
	}
	term, ok := u.CFG.Terminator(b)
	if !ok || u.DFG.Inst(term).Opcode != dfg.OpBr {
		return false
	}
	if preds := u.CFG.Predecessors(u.DFG, s); len(preds) != 1 || preds[0] != b {
		return false
	}
	// A degenerate phi in s (one incoming edge, from b) just forwards its
	// sole operand; resolve it before the merge leaves it mid-block.
	for _, i := range u.CFG.InstsIn(s) {
		data := u.DFG.Inst(i)
		if data.Opcode != dfg.OpPhi {
			continue
		}
		if len(data.Args) != 1 {
			return false
		}
		u.DFG.ReplaceUse(data.Result, data.Args[0])
		killInst(u, i)
	}
	killInst(u, term)
	anchor := term
	hasAnchor := false
	for _, i := range u.CFG.InstsIn(s) {
		if !hasAnchor {
			u.CFG.AppendInst(b, i)
			hasAnchor = true
		} else {
			u.CFG.InsertAfter(anchor, i)
		}
		anchor = i
	}
	// b now ends in s's old terminator; phis in its successors still list s.
	for _, succ := range u.CFG.Successors(u.DFG, b) {
		for _, i := range u.CFG.InstsIn(succ) {
			data := u.DFG.Inst(i)
			if data.Opcode != dfg.OpPhi {
				continue
			}
			for k, pb := range data.Blocks {
				if pb == s {
					data.Blocks[k] = b
				}
			}
			u.DFG.SetInst(i, data)
		}
	}
	u.CFG.RemoveBlock(s)
	return true
}
