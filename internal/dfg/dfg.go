// Package dfg implements the data-flow graph: the authoritative per-unit
// owner of all instruction and value data, with use-list tracking and
// pure-instruction interning (spec.md §4.1).
package dfg

import (
	"fmt"

	"llhd/internal/ids"
	"llhd/internal/types"
)

// ExtUnitData records one unresolved (or resolved) extern reference.
type ExtUnitData struct {
	Name      string
	Signature types.Type // a Func or Entity type
	Resolved  ids.UnitId
	IsResolved bool
}

// useKey identifies one use site: the consuming instruction and which
// operand slot of it holds the use.
type useKey struct {
	Inst ids.Inst
	Slot int
}

// DFG owns all instruction, value, and extern data for one unit.
type DFG struct {
	values   []ValueData
	insts    []InstData
	externs  []ExtUnitData
	uses     map[ids.Value][]useKey
	interned map[string]ids.Inst
	removed  map[ids.Inst]bool
}

// New creates an empty data-flow graph.
func New() *DFG {
	return &DFG{
		uses:     make(map[ids.Value][]useKey),
		interned: make(map[string]ids.Inst),
		removed:  make(map[ids.Inst]bool),
	}
}

// AddArgValue registers a value produced by a signature argument slot
// rather than by an instruction, used when building a unit's entry
// values from its signature.
func (d *DFG) AddArgValue(t types.Type, name string, argIndex int) ids.Value {
	id := ids.Value(len(d.values))
	d.values = append(d.values, ValueData{Type: t, Name: name, Producer: Producer{Kind: ProducerArg, Arg: argIndex}})
	return id
}

// ValueType returns the type of v.
func (d *DFG) ValueType(v ids.Value) types.Type {
	if !v.IsValid() {
		return nil
	}
	return d.values[v].Type
}

// ValueName returns the optional debug name of v.
func (d *DFG) ValueName(v ids.Value) string { return d.values[v].Name }

// SetValueName assigns v's debug name, used by the assembly reader to
// bind the `%name =` prefix onto a result produced by a Builder method
// that does not itself take a name parameter (every opcode but Alias).
func (d *DFG) SetValueName(v ids.Value, name string) {
	vd := d.values[v]
	vd.Name = name
	d.values[v] = vd
}

// ValueInfo returns the full metadata record for v.
func (d *DFG) ValueInfo(v ids.Value) ValueData { return d.values[v] }

// Inst returns the instruction data for i.
func (d *DFG) Inst(i ids.Inst) InstData { return d.insts[i] }

// SetInst overwrites the instruction data for i (used by rewrite passes
// that replace an instruction's opcode/operands in place, e.g.
// TemporalCodeMotion canonicalizing a drv).
func (d *DFG) SetInst(i ids.Inst, data InstData) {
	d.detachOperands(i)
	d.insts[i] = data
	d.attachOperands(i)
}

// Extern returns the extern data for e.
func (d *DFG) Extern(e ids.ExtUnit) ExtUnitData { return d.externs[e] }

// AddExtern registers a new unresolved extern reference.
func (d *DFG) AddExtern(name string, signature types.Type) ids.ExtUnit {
	id := ids.ExtUnit(len(d.externs))
	d.externs = append(d.externs, ExtUnitData{Name: name, Signature: signature})
	return id
}

// ResolveExtern binds an extern reference to a concrete unit, called by
// Module.Link.
func (d *DFG) ResolveExtern(e ids.ExtUnit, target ids.UnitId) {
	d.externs[e].Resolved = target
	d.externs[e].IsResolved = true
}

// Externs returns all extern records, in declaration order.
func (d *DFG) Externs() []ExtUnitData { return d.externs }

// fingerprint computes the interning key for a pure instruction as a
// formatted string, not a comparable struct: the opcode, the operand
// handle numbers, the block targets, the immediate payload (field index,
// timeout flag, integer and time literals, edge kind, Imm.Name), and the
// text of the result type. Operands enter the key by handle, not by the
// values they carry.
func fingerprint(data InstData) string {
	key := fmt.Sprintf("%d|", data.Opcode)
	for _, a := range data.Args {
		key += fmt.Sprintf("%d,", a)
	}
	key += "|"
	for _, b := range data.Blocks {
		key += fmt.Sprintf("%d,", b)
	}
	key += fmt.Sprintf("|%d|%t", data.Imm.FieldIndex, data.Imm.HasTimeout)
	if data.Imm.Int != nil {
		key += "|" + data.Imm.Int.String()
	}
	if data.Imm.HasTime {
		key += "|" + data.Imm.Time.String()
	}
	key += "|" + data.Imm.EdgeKind + "|" + data.Imm.Name
	if data.Type != nil {
		key += "|" + data.Type.String()
	}
	return key
}

// AddInst appends a new instruction. If the opcode is pure and an
// equivalent instruction (same fingerprint) already exists and has not
// been removed, the existing instruction's result is returned instead of
// creating a new one — this is the interning described in spec.md §4.1.
// Callers in function/process context are responsible for only relying
// on the interned hit when the existing definition still dominates every
// use site; the DFG itself has no dominance notion (that lives in
// internal/analysis), so it is the builder/pass's job to clear the
// relevant interning scope (see ClearInterning) across edits that could
// change dominance.
func (d *DFG) AddInst(data InstData, resultType types.Type, resultName string) (inst ids.Inst, result ids.Value, isNew bool) {
	// The result type is part of the fingerprint, so set it before keying.
	data.Type = resultType
	if IsPure(data.Opcode) {
		key := fingerprint(data)
		if existing, ok := d.interned[key]; ok && !d.removed[existing] {
			return existing, d.insts[existing].Result, false
		}
		id := d.rawAdd(data, resultType, resultName)
		d.interned[key] = id
		return id, d.insts[id].Result, true
	}
	id := d.rawAdd(data, resultType, resultName)
	return id, d.insts[id].Result, true
}

func (d *DFG) rawAdd(data InstData, resultType types.Type, resultName string) ids.Inst {
	id := ids.Inst(len(d.insts))
	data.Result = ids.InvalidValue
	if resultType != nil {
		v := ids.Value(len(d.values))
		d.values = append(d.values, ValueData{
			Type:     resultType,
			Name:     resultName,
			Producer: Producer{Kind: ProducerInst, Inst: id},
		})
		data.Result = v
	}
	data.Type = resultType
	d.insts = append(d.insts, data)
	d.attachOperands(id)
	return id
}

func (d *DFG) attachOperands(i ids.Inst) {
	data := d.insts[i]
	for slot, v := range data.Args {
		if v.IsValid() {
			d.uses[v] = append(d.uses[v], useKey{Inst: i, Slot: slot})
		}
	}
}

func (d *DFG) detachOperands(i ids.Inst) {
	data := d.insts[i]
	for _, v := range data.Args {
		if !v.IsValid() {
			continue
		}
		d.removeUseKey(v, i)
	}
}

func (d *DFG) removeUseKey(v ids.Value, i ids.Inst) {
	list := d.uses[v]
	kept := list[:0]
	for _, uk := range list {
		if uk.Inst != i {
			kept = append(kept, uk)
		}
	}
	if len(kept) == 0 {
		delete(d.uses, v)
	} else {
		d.uses[v] = kept
	}
}

// Uses returns the instruction reading v at each operand slot, one entry
// per slot, so an instruction that reads v twice appears twice.
func (d *DFG) Uses(v ids.Value) []ids.Inst {
	list := d.uses[v]
	out := make([]ids.Inst, 0, len(list))
	for _, uk := range list {
		out = append(out, uk.Inst)
	}
	return out
}

// HasUses reports whether v has at least one remaining use, the check
// DeadCodeElim uses to decide whether a pure instruction is dead.
func (d *DFG) HasUses(v ids.Value) bool { return len(d.uses[v]) > 0 }

// ReplaceUse rewrites every consumer of old to read new instead,
// transferring old's use-list entries onto new and leaving old's
// use-list empty (spec.md §4.1 "Rewrite").
func (d *DFG) ReplaceUse(old, new ids.Value) {
	if old == new {
		return
	}
	list := d.uses[old]
	for _, uk := range list {
		inst := d.insts[uk.Inst]
		inst.Args[uk.Slot] = new
		d.insts[uk.Inst] = inst
	}
	d.uses[new] = append(d.uses[new], list...)
	delete(d.uses, old)
}

// RemoveInst detaches an instruction's operands from the use-list index
// and marks its result (if any) invalid in its own value record; callers
// (internal/cfg layout removal, internal/opt DCE) are responsible for
// first confirming the result has no remaining uses, or for accepting
// that those uses will read ids.InvalidValue until a dependent pass also
// removes them — which the verifier then flags, per spec.md §3.
func (d *DFG) RemoveInst(i ids.Inst) {
	d.detachOperands(i)
	d.removed[i] = true
	if r := d.insts[i].Result; r.IsValid() {
		d.values[r].Producer = Producer{Kind: ProducerInvalid}
	}
}

// IsRemoved reports whether i has been removed from the DFG.
func (d *DFG) IsRemoved(i ids.Inst) bool { return d.removed[i] }

// ClearInterning drops all cached interning entries; callers invoke this
// after a CFG-structural edit that could change dominance scope, per
// spec.md §9.
func (d *DFG) ClearInterning() {
	d.interned = make(map[string]ids.Inst)
}

// NumValues returns the number of values ever allocated (including
// removed ones), used by printers for SSA numbering.
func (d *DFG) NumValues() int { return len(d.values) }

// NumInsts returns the number of instructions ever allocated.
func (d *DFG) NumInsts() int { return len(d.insts) }
