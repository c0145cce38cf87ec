package opt

import (
	"llhd/internal/dfg"
	"llhd/internal/unit"
)

// DeadCodeElimPass removes pure instructions with no remaining uses,
// iterating to a fixpoint since removing one dead instruction can make
// its own operands' producers dead in turn (spec.md §4.5).
type DeadCodeElimPass struct{}

func (DeadCodeElimPass) Name() string { return "dead_code_elim" }

func (DeadCodeElimPass) RunOnUnit(u *unit.Unit) bool {
	changed := false
	for {
		progress := false
		for _, b := range u.CFG.Blocks() {
			for _, i := range u.CFG.InstsIn(b) {
				if u.DFG.IsRemoved(i) {
					continue
				}
				data := u.DFG.Inst(i)
				if !dfg.IsPure(data.Opcode) || !data.Result.IsValid() {
					continue
				}
				if u.DFG.HasUses(data.Result) {
					continue
				}
				killInst(u, i)
				progress = true
			}
		}
		if !progress {
			break
		}
		changed = true
	}
	return changed
}
