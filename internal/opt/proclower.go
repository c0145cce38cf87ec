package opt

import (
	"llhd/internal/dfg"
	"llhd/internal/unit"
)

// ProcessLoweringPass recognizes the canonical combinational process —
// a single block whose only suspension point is one `wait` on a
// sensitivity list (no timeout) that resumes back into that same block
// — and converts it into an equivalent Entity, dropping the wait
// entirely: an entity's body re-evaluates on every input change anyway,
// which is exactly what such a process's sensitivity-list wait encodes
// (spec.md §4.5 "ProcessLowering"). Any process whose control flow is
// more elaborate than this single self-looping block is left as a
// process; Desequentialization handles the other canonical shape
// (clocked storage).
type ProcessLoweringPass struct{}

func (ProcessLoweringPass) Name() string { return "process_lowering" }

func (ProcessLoweringPass) RunOnUnit(u *unit.Unit) bool {
	if u.Kind != unit.KindProcess {
		return false
	}
	blocks := u.CFG.Blocks()
	if len(blocks) != 1 {
		return false
	}
	b := blocks[0]
	term, ok := u.CFG.Terminator(b)
	if !ok {
		return false
	}
	data := u.DFG.Inst(term)
	if data.Opcode != dfg.OpWait || data.Imm.HasTimeout {
		return false
	}
	if len(data.Blocks) != 1 || data.Blocks[0] != b {
		return false // only the simple self-looping sensitivity wait is lowered
	}
	for _, i := range u.CFG.InstsIn(b) {
		if u.DFG.Inst(i).Opcode == dfg.OpReg {
			return false // has clocked storage; Desequentialization's shape instead
		}
	}
	killInst(u, term)
	u.ConvertToEntity(b)
	return true
}
