package opt

import (
	"math/big"

	"llhd/internal/analysis"
	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// VarToPhiPromotionPass is classic mem2reg (Cytron et al.): a `var`
// local whose address never escapes (every use is a load or store of
// it) is promoted to SSA values joined by phis at its dominance
// frontier, per spec.md §4.5. Scoped to integer-typed locals, the
// overwhelmingly common case in synthesizable hardware code; a
// struct/array-typed local is left as a real var.
type VarToPhiPromotionPass struct{}

func (VarToPhiPromotionPass) Name() string { return "var_to_phi_promotion" }

func (VarToPhiPromotionPass) RunOnUnit(u *unit.Unit) bool {
	if u.Kind == unit.KindEntity {
		return false // entities forbid var entirely
	}
	changed := false
	for _, b := range u.CFG.Blocks() {
		for _, i := range u.CFG.InstsIn(b) {
			if u.DFG.IsRemoved(i) {
				continue
			}
			if u.DFG.Inst(i).Opcode != dfg.OpVar {
				continue
			}
			if promoteVar(u, i) {
				changed = true
			}
		}
	}
	return changed
}

func promoteVar(u *unit.Unit, varInst ids.Inst) bool {
	ptr := u.DFG.Inst(varInst).Result
	pt, ok := u.DFG.ValueType(ptr).(types.Pointer)
	if !ok {
		return false
	}
	elem, ok := pt.Inner.(types.Int)
	if !ok {
		return false
	}

	loads := map[ids.Inst]bool{}
	stores := map[ids.Inst]bool{}
	for _, use := range u.DFG.Uses(ptr) {
		ud := u.DFG.Inst(use)
		switch {
		case ud.Opcode == dfg.OpLoad && ud.Args[0] == ptr:
			loads[use] = true
		case ud.Opcode == dfg.OpStore && ud.Args[0] == ptr:
			stores[use] = true
		default:
			return false // address escapes (passed to call/inst/etc): cannot promote
		}
	}

	defBlocks := map[ids.Block]bool{}
	for s := range stores {
		b, _ := u.CFG.BlockOf(s)
		defBlocks[b] = true
	}

	tree := analysis.BuildDomTree(u)
	frontier := tree.Frontier(u)
	phiBlocks := map[ids.Block]bool{}
	worklist := make([]ids.Block, 0, len(defBlocks))
	for b := range defBlocks {
		worklist = append(worklist, b)
	}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, f := range frontier[b] {
			if !phiBlocks[f] {
				phiBlocks[f] = true
				worklist = append(worklist, f)
			}
		}
	}

	phiInst := map[ids.Block]ids.Inst{}
	phiVal := map[ids.Block]ids.Value{}
	for b := range phiBlocks {
		pi, pv := unit.NewBuilder(u).PrependTo(b).Phi(elem)
		phiInst[b] = pi
		phiVal[b] = pv
	}

	entry, _ := u.CFG.EntryBlock()
	zero := materializeEntryZero(u, entry, elem)

	var rename func(b ids.Block, current ids.Value)
	rename = func(b ids.Block, current ids.Value) {
		if pv, ok := phiVal[b]; ok {
			current = pv
		}
		for _, i := range u.CFG.InstsIn(b) {
			if u.DFG.IsRemoved(i) {
				continue
			}
			d := u.DFG.Inst(i)
			if d.Opcode == dfg.OpStore && stores[i] {
				current = d.Args[1]
				killInst(u, i)
				continue
			}
			if d.Opcode == dfg.OpLoad && loads[i] {
				u.DFG.ReplaceUse(d.Result, current)
				killInst(u, i)
			}
		}
		for _, s := range u.CFG.Successors(u.DFG, b) {
			if pi, ok := phiInst[s]; ok {
				unit.NewBuilder(u).AddIncoming(pi, b, current)
			}
		}
		for _, c := range tree.Children(b) {
			rename(c, current)
		}
	}
	rename(entry, zero)
	killInst(u, varInst)
	return true
}

// materializeEntryZero inserts the var's default value (zero) at the
// very start of the unit, the value live-in for any path that reads the
// local before any store dominates it.
func materializeEntryZero(u *unit.Unit, entry ids.Block, elem types.Int) ids.Value {
	_, v := unit.NewBuilder(u).PrependTo(entry).ConstInt(elem.Width, big.NewInt(0))
	return v
}
