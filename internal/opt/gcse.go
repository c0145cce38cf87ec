package opt

import (
	"fmt"

	"llhd/internal/analysis"
	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/unit"
)

// GlobalCommonSubexpressionElimPass eliminates redundant pure
// instructions across block boundaries by walking the dominator tree and
// replacing any instruction whose (opcode, operands) key was already
// computed by a dominating instruction (spec.md §4.5). DFG interning
// already catches the common case of two *identical* inserts; this pass
// catches the case where the same computation was already live earlier
// in the unit before the two instructions were ever compared.
type GlobalCommonSubexpressionElimPass struct{}

func (GlobalCommonSubexpressionElimPass) Name() string { return "gcse" }

func (GlobalCommonSubexpressionElimPass) RunOnUnit(u *unit.Unit) bool {
	tree := analysis.BuildDomTree(u)
	changed := false
	available := map[string][]availEntry{}

	for _, b := range tree.Order() {
		for _, i := range u.CFG.InstsIn(b) {
			if u.DFG.IsRemoved(i) {
				continue
			}
			data := u.DFG.Inst(i)
			if !dfg.IsPure(data.Opcode) || !data.Result.IsValid() {
				continue
			}
			key := valueKey(data)
			found := false
			for _, e := range available[key] {
				if tree.Dominates(e.block, b) {
					u.DFG.ReplaceUse(data.Result, e.value)
					killInst(u, i)
					changed = true
					found = true
					break
				}
			}
			if !found {
				available[key] = append(available[key], availEntry{block: b, value: data.Result})
			}
		}
	}
	return changed
}

type availEntry struct {
	block ids.Block
	value ids.Value
}

// valueKey is the availability key: opcode, operand handles, the full
// immediate payload, and the result type, the same identity the DFG's
// interning fingerprint uses. Constants carry their value in the
// immediates with empty Args, so omitting any immediate field would
// merge distinct constants into one.
func valueKey(data dfg.InstData) string {
	key := fmt.Sprintf("%d|%v|%d", data.Opcode, data.Args, data.Imm.FieldIndex)
	if data.Imm.Int != nil {
		key += "|" + data.Imm.Int.String()
	}
	if data.Imm.HasTime {
		key += "|" + data.Imm.Time.String()
	}
	key += "|" + data.Imm.Name
	if data.Type != nil {
		key += "|" + data.Type.String()
	}
	return key
}
