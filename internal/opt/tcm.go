package opt

import (
	"llhd/internal/analysis"
	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/unit"
)

// TemporalCodeMotionPass canonicalizes a process's temporal layout two
// ways. Pure instructions hoist toward the start of their temporal
// region — like EarlyCodeMotion, but never past a `wait`/`wait_time`
// boundary even when dominance alone would allow it, since that would
// change which simulated delta cycle the computation happens in. Drives
// sink the opposite way: every `drv`/`drv_cond` in a region-closing
// block moves to the point immediately before the wait that ends the
// region, the position Desequentialization matches on (spec.md
// §4.4/§4.5). Functions and entities have exactly one temporal region
// (the whole unit), so this pass is a no-op for them.
type TemporalCodeMotionPass struct{}

func (TemporalCodeMotionPass) Name() string { return "temporal_code_motion" }

func (TemporalCodeMotionPass) RunOnUnit(u *unit.Unit) bool {
	if u.Kind != unit.KindProcess {
		return false
	}
	tree := analysis.BuildDomTree(u)
	trg := analysis.BuildTRG(u)
	changed := false
	for _, b := range u.CFG.Blocks() {
		for _, i := range u.CFG.InstsIn(b) {
			if u.DFG.IsRemoved(i) {
				continue
			}
			if hoistWithinRegion(u, tree, trg, b, i) {
				changed = true
			}
		}
	}
	for _, b := range u.CFG.Blocks() {
		if sinkDrivesToTail(u, b) {
			changed = true
		}
	}
	return changed
}

// sinkDrivesToTail moves every drive in b down to just before its
// terminator when that terminator is the wait closing b's temporal
// region. Drives keep their relative order; operands always dominate
// the new position since it is later in the same block. Drives in
// blocks that don't themselves close a region are left alone — sinking
// one across a branch would make a conditional drive unconditional
// (the "implicit condition dominates the tail" legality bound).
func sinkDrivesToTail(u *unit.Unit, b ids.Block) bool {
	term, ok := u.CFG.Terminator(b)
	if !ok {
		return false
	}
	top := u.DFG.Inst(term).Opcode
	if top != dfg.OpWait && top != dfg.OpWaitTime {
		return false
	}
	insts := u.CFG.InstsIn(b)
	var drives []ids.Inst
	moved := false
	for idx, i := range insts {
		op := u.DFG.Inst(i).Opcode
		if op == dfg.OpDrv || op == dfg.OpDrvCond {
			drives = append(drives, i)
			continue
		}
		// A non-drive after an earlier drive means some drive is not yet
		// in tail position.
		if len(drives) > 0 && idx < len(insts)-1 {
			moved = true
		}
	}
	if !moved {
		return false
	}
	for _, d := range drives {
		u.CFG.RemoveInst(d)
		u.CFG.InsertBefore(term, d)
	}
	return true
}

func hoistWithinRegion(u *unit.Unit, tree *analysis.DomTree, trg *analysis.TRG, from ids.Block, i ids.Inst) bool {
	data := u.DFG.Inst(i)
	if !dfg.IsPure(data.Opcode) || !data.Result.IsValid() {
		return false
	}
	target, ok := operandLCA(u, tree, from, data)
	if !ok {
		return false
	}
	fromRegion, _ := trg.RegionOf(from)
	targetRegion, ok := trg.RegionOf(target)
	if !ok || targetRegion != fromRegion {
		region := trg.Regions[fromRegion]
		if len(region.Blocks) == 0 {
			return false
		}
		target = region.Blocks[0]
	}
	if target == from {
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
