package opt

import (
	"math/big"

	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// killInst fully removes i: detaches it from its block's layout and from
// the DFG's use-list index. Callers must have already redirected any
// uses of its result (ReplaceUse) or confirmed it has none.
func killInst(u *unit.Unit, i ids.Inst) {
	u.CFG.RemoveInst(i)
	u.DFG.RemoveInst(i)
}

// constOf reports the folded constant value of v, if v is produced by a
// const_int or const_time instruction.
func constOf(d *dfg.DFG, v ids.Value) (types.Const, bool) {
	info := d.ValueInfo(v)
	if info.Producer.Kind != dfg.ProducerInst {
		return types.Const{}, false
	}
	data := d.Inst(info.Producer.Inst)
	switch data.Opcode {
	case dfg.OpConstInt:
		width := uint32(0)
		if it, ok := info.Type.(types.Int); ok {
			width = it.Width
		}
		return types.NewInt(width, data.Imm.Int), true
	case dfg.OpConstTime:
		return types.Const{Kind: types.ConstTimeVal, Time: data.Imm.Time}, true
	default:
		return types.Const{}, false
	}
}

// materialize inserts a const_int/const_time instruction equivalent to c
// immediately before anchor and returns its result value. Constants are
// pure, so DFG interning may return an already-existing equivalent
// instruction instead of inserting a new one.
func materialize(u *unit.Unit, anchor ids.Inst, c types.Const, t types.Type) ids.Value {
	b := unit.NewBuilder(u).InsertBefore(anchor)
	switch c.Kind {
	case types.ConstTimeVal:
		_, v := b.ConstTime(c.Time)
		return v
	default:
		width := uint32(0)
		if it, ok := t.(types.Int); ok {
			width = it.Width
		}
		bits := new(big.Int)
		if c.Int != nil {
			bits = c.Int
		}
		_, v := b.ConstInt(width, bits)
		return v
	}
}

var binaryOpName = map[dfg.Opcode]string{
	dfg.OpAdd: "add", dfg.OpSub: "sub", dfg.OpAnd: "and", dfg.OpOr: "or", dfg.OpXor: "xor",
	dfg.OpUmul: "umul", dfg.OpSmul: "smul", dfg.OpUdiv: "udiv", dfg.OpSdiv: "sdiv",
	dfg.OpUmod: "umod", dfg.OpSmod: "smod", dfg.OpUrem: "urem", dfg.OpSrem: "srem",
	dfg.OpShl: "shl", dfg.OpShr: "shr",
	dfg.OpEq: "eq", dfg.OpNeq: "neq", dfg.OpUlt: "ult", dfg.OpUgt: "ugt",
	dfg.OpUle: "ule", dfg.OpUge: "uge", dfg.OpSlt: "slt", dfg.OpSgt: "sgt",
	dfg.OpSle: "sle", dfg.OpSge: "sge",
}

var unaryOpName = map[dfg.Opcode]string{
	dfg.OpNeg: "neg", dfg.OpNot: "not",
}
