package opt

import (
	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// DesequentializationPass recognizes the canonical clocked process — a
// single self-looping block whose sole sensitivity is one clock signal,
// each of whose drives assigns a combinationally-computed value to an
// output signal — and rewrites each such drive into a `reg` storage
// element continuously assigned onto the original signal, then converts
// the unit into an Entity (spec.md §4.5 "Desequentialization"). The edge
// kind is always "rise": the wait sensitivity list carries no polarity
// annotation of its own and the block is not inspected for one, so a
// process whose drives follow a falling or dual clock edge is also
// rewritten with rising-edge registers.
type DesequentializationPass struct{}

func (DesequentializationPass) Name() string { return "desequentialization" }

func (DesequentializationPass) RunOnUnit(u *unit.Unit) bool {
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
	if data.Opcode != dfg.OpWait || data.Imm.HasTimeout || len(data.Args) != 1 {
		return false
	}
	if len(data.Blocks) != 1 || data.Blocks[0] != b {
		return false
	}
	clk := data.Args[0]

	var drives []ids.Inst
	for _, i := range u.CFG.InstsIn(b) {
		if u.DFG.Inst(i).Opcode == dfg.OpDrv {
			drives = append(drives, i)
		}
	}
	if len(drives) == 0 {
		return false
	}
	for _, i := range drives {
		d := u.DFG.Inst(i)
		sig, val := d.Args[0], d.Args[1]
		st, ok := u.DFG.ValueType(sig).(types.Signal)
		if !ok {
			return false
		}
		bld := unit.NewBuilder(u).InsertBefore(i)
		_, reg := bld.Reg(val, clk, "rise", st.Inner)
		bld.Con(reg, sig)
		killInst(u, i)
	}
	killInst(u, term)
	u.ConvertToEntity(b)
	return true
}
