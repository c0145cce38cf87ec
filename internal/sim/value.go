package sim

import (
	"llhd/internal/dfg"
	"llhd/internal/types"
)

// zeroOf builds the default live-in value for a type: the value a signal
// or local takes on before anything has driven or stored into it.
func zeroOf(t types.Type) types.Const {
	switch v := t.(type) {
	case types.Int:
		return types.NewIntU64(v.Width, 0)
	case types.Enum:
		return types.NewIntU64(32, 0)
	case types.Time:
		return types.Const{Kind: types.ConstTimeVal, Time: types.ZeroTime()}
	case types.Array:
		elems := make([]types.Const, v.Length)
		for i := range elems {
			elems[i] = zeroOf(v.Element)
		}
		return types.Const{Kind: types.ConstArray, Elems: elems}
	case types.Struct:
		elems := make([]types.Const, len(v.Fields))
		for i, f := range v.Fields {
			elems[i] = zeroOf(f)
		}
		return types.Const{Kind: types.ConstStruct, Elems: elems}
	case types.Signal:
		return zeroOf(v.Inner)
	default:
		return types.Poison("no default value for type " + t.String())
	}
}

// addDelay advances base by a delay expressed in the same (real, delta,
// epsilon) shape as a time constant: a nonzero real component advances
// wall time (resetting delta/epsilon), the delta component then advances
// by that many further delta steps, and a zero delay leaves base
// untouched rather than winding delta back to the wall instant's start.
// This lets wait_time/drv delays and DefaultDriveDelay's pure-delta form
// share one representation.
func addDelay(base, delay types.TimeValue) types.TimeValue {
	t := base
	if delay.Real != nil && delay.Real.Sign() != 0 {
		t = base.Plus(delay.Real)
	}
	if delay.Delta != 0 {
		t = t.AfterDelta(delay.Delta)
	}
	if delay.Epsilon != 0 {
		t.Epsilon += delay.Epsilon
	}
	return t
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

func isEdge(kind string, prev, cur types.Const) bool {
	if prev.IsPoison() || cur.IsPoison() || prev.Kind != types.ConstInt || cur.Kind != types.ConstInt {
		return false
	}
	rose := prev.Int.Sign() == 0 && cur.Int.Sign() != 0
	fell := prev.Int.Sign() != 0 && cur.Int.Sign() == 0
	switch kind {
	case "rise":
		return rose
	case "fall":
		return fell
	case "both":
		return rose || fell
	default:
		return false
	}
}

func isTrue(c types.Const) bool {
	return c.Kind == types.ConstInt && c.Int.Sign() != 0
}
