package opt

import (
	"math/big"

	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// InstSimplificationPass rewrites instructions into algebraically
// simpler equivalents that ConstFolding alone cannot reach because one
// operand isn't constant (e.g. `x + 0`, `x * 1`, `x ^ x`), per spec.md
// §4.5. It never needs to touch types or poison: every rule it applies
// is an identity regardless of the non-constant operand's runtime value.
type InstSimplificationPass struct{}

func (InstSimplificationPass) Name() string { return "inst_simplification" }

func (InstSimplificationPass) RunOnUnit(u *unit.Unit) bool {
	changed := false
	for _, b := range u.CFG.Blocks() {
		for _, i := range u.CFG.InstsIn(b) {
			if u.DFG.IsRemoved(i) {
				continue
			}
			if simplifyInst(u, i) {
				changed = true
			}
		}
	}
	return changed
}

func simplifyInst(u *unit.Unit, i ids.Inst) bool {
	data := u.DFG.Inst(i)
	if !data.Result.IsValid() || len(data.Args) != 2 {
		return false
	}
	lhs, rhs := data.Args[0], data.Args[1]
	cLhs, okLhs := constOf(u.DFG, lhs)
	cRhs, okRhs := constOf(u.DFG, rhs)

	replace := func(with ids.Value) bool {
		u.DFG.ReplaceUse(data.Result, with)
		killInst(u, i)
		return true
	}

	zero := func() ids.Value {
		return materialize(u, i, zeroOfWidth(u.DFG.ValueType(data.Result)), u.DFG.ValueType(data.Result))
	}

	switch data.Opcode {
	case dfg.OpAdd, dfg.OpXor:
		if okRhs && isZero(cRhs.Int) {
			return replace(lhs)
		}
		if okLhs && isZero(cLhs.Int) {
			return replace(rhs)
		}
		if data.Opcode == dfg.OpXor && lhs == rhs {
			return replace(zero())
		}
	case dfg.OpSub:
		if okRhs && isZero(cRhs.Int) {
			return replace(lhs)
		}
		if lhs == rhs {
			return replace(zero())
		}
	case dfg.OpUmul, dfg.OpSmul:
		if okRhs && isOne(cRhs.Int) {
			return replace(lhs)
		}
		if okLhs && isOne(cLhs.Int) {
			return replace(rhs)
		}
		if (okRhs && isZero(cRhs.Int)) || (okLhs && isZero(cLhs.Int)) {
			return replace(zero())
		}
	case dfg.OpAnd, dfg.OpOr:
		if lhs == rhs {
			return replace(lhs)
		}
	case dfg.OpUdiv, dfg.OpSdiv:
		if okRhs && isOne(cRhs.Int) {
			return replace(lhs)
		}
	case dfg.OpShl, dfg.OpShr:
		if okRhs && isZero(cRhs.Int) {
			return replace(lhs)
		}
	}
	return false
}

func isZero(v *big.Int) bool { return v != nil && v.Sign() == 0 }
func isOne(v *big.Int) bool  { return v != nil && v.Cmp(big.NewInt(1)) == 0 }

// zeroOfWidth builds the zero constant of t's integer width, used when a
// simplification (x - x, x ^ x, x * 0) collapses to a fresh zero rather
// than to either original operand.
func zeroOfWidth(t types.Type) types.Const {
	width := uint32(0)
	if it, ok := t.(types.Int); ok {
		width = it.Width
	}
	return types.NewInt(width, big.NewInt(0))
}
