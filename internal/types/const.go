package types

import "math/big"

// ConstKind discriminates the constant-value lattice used by the
// interpreter and the constant-folding pass.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstTimeVal
	ConstArray
	ConstStruct
	// ConstPoison is the well-defined poison value produced by division
	// or modulo by zero and out-of-bounds extraction (spec.md §7). It
	// propagates through further pure folds instead of aborting
	// compilation, mirroring how IEEE NaN propagates through floating
	// point arithmetic.
	ConstPoison
)

// Const is a single value in the constant-value lattice: a fixed-width
// two's-complement integer, a time triple, an aggregate of nested Consts,
// or poison.
type Const struct {
	Kind   ConstKind
	Width  uint32 // valid when Kind == ConstInt
	Int    *big.Int
	Time   TimeValue
	Elems  []Const // valid when Kind == ConstArray/ConstStruct
	Reason string  // set when Kind == ConstPoison
}

// Poison builds a poison constant carrying a human-readable cause.
func Poison(reason string) Const {
	return Const{Kind: ConstPoison, Reason: reason}
}

// IsPoison reports whether v is poison.
func (v Const) IsPoison() bool { return v.Kind == ConstPoison }

func mask(width uint32) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return m.Sub(m, big.NewInt(1))
}

// NewInt builds an integer constant of the given width, wrapping v into
// two's-complement range the way the verifier expects every Int(width)
// value to already be wrapped.
func NewInt(width uint32, v *big.Int) Const {
	wrapped := new(big.Int).And(v, mask(width))
	return Const{Kind: ConstInt, Width: width, Int: wrapped}
}

// NewIntU64 is a convenience wrapper over NewInt for small literals.
func NewIntU64(width uint32, v uint64) Const {
	return NewInt(width, new(big.Int).SetUint64(v))
}

// signed reinterprets the wrapped unsigned representation as a signed
// two's-complement value of the constant's width.
func (v Const) signed() *big.Int {
	if v.Int.Bit(int(v.Width)-1) == 0 {
		return new(big.Int).Set(v.Int)
	}
	return new(big.Int).Sub(v.Int, new(big.Int).Lsh(big.NewInt(1), uint(v.Width)))
}

func binaryIntOp(op string, a, b Const) Const {
	if a.IsPoison() || b.IsPoison() {
		return Poison("operand is poison")
	}
	if a.Kind != ConstInt || b.Kind != ConstInt || a.Width != b.Width {
		return Poison("operand width mismatch")
	}
	w := a.Width
	switch op {
	case "add":
		return NewInt(w, new(big.Int).Add(a.Int, b.Int))
	case "sub":
		return NewInt(w, new(big.Int).Sub(a.Int, b.Int))
	case "and":
		return NewInt(w, new(big.Int).And(a.Int, b.Int))
	case "or":
		return NewInt(w, new(big.Int).Or(a.Int, b.Int))
	case "xor":
		return NewInt(w, new(big.Int).Xor(a.Int, b.Int))
	case "umul":
		return NewInt(w, new(big.Int).Mul(a.Int, b.Int))
	case "smul":
		return NewInt(w, new(big.Int).Mul(a.signed(), b.signed()))
	case "udiv":
		if b.Int.Sign() == 0 {
			return Poison("division by zero")
		}
		return NewInt(w, new(big.Int).Div(a.Int, b.Int))
	case "sdiv":
		if b.Int.Sign() == 0 {
			return Poison("division by zero")
		}
		return NewInt(w, new(big.Int).Quo(a.signed(), b.signed()))
	case "umod":
		if b.Int.Sign() == 0 {
			return Poison("modulo by zero")
		}
		return NewInt(w, new(big.Int).Mod(a.Int, b.Int))
	case "smod":
		if b.Int.Sign() == 0 {
			return Poison("modulo by zero")
		}
		m := new(big.Int).Mod(a.signed(), b.signed())
		if m.Sign() != 0 && (m.Sign() < 0) != (b.signed().Sign() < 0) {
			m.Add(m, b.signed())
		}
		return NewInt(w, m)
	case "urem":
		if b.Int.Sign() == 0 {
			return Poison("remainder by zero")
		}
		return NewInt(w, new(big.Int).Mod(a.Int, b.Int))
	case "srem":
		if b.Int.Sign() == 0 {
			return Poison("remainder by zero")
		}
		return NewInt(w, new(big.Int).Rem(a.signed(), b.signed()))
	case "shl":
		return NewInt(w, new(big.Int).Lsh(a.Int, uint(b.Int.Uint64())))
	case "shr":
		return NewInt(w, new(big.Int).Rsh(a.Int, uint(b.Int.Uint64())))
	default:
		return Poison("unsupported binary op " + op)
	}
}

func binaryBoolOp(op string, a, b Const) Const {
	if a.IsPoison() || b.IsPoison() {
		return Poison("operand is poison")
	}
	var cmp int
	switch op {
	case "eq", "neq":
		cmp = a.Int.Cmp(b.Int)
	case "ult", "uge":
		cmp = a.Int.Cmp(b.Int)
	case "ugt", "ule":
		cmp = a.Int.Cmp(b.Int)
	case "slt", "sge":
		cmp = a.signed().Cmp(b.signed())
	case "sgt", "sle":
		cmp = a.signed().Cmp(b.signed())
	}
	var result bool
	switch op {
	case "eq":
		result = cmp == 0
	case "neq":
		result = cmp != 0
	case "ult", "slt":
		result = cmp < 0
	case "ule", "sle":
		result = cmp <= 0
	case "ugt", "sgt":
		result = cmp > 0
	case "uge", "sge":
		result = cmp >= 0
	default:
		return Poison("unsupported comparison " + op)
	}
	v := uint64(0)
	if result {
		v = 1
	}
	return NewIntU64(1, v)
}

// EvalBinary evaluates a pure binary opcode over two constants, producing
// poison for undefined cases (division/modulo by zero) per spec.md §7.
func EvalBinary(op string, a, b Const) Const {
	switch op {
	case "add", "sub", "and", "or", "xor", "umul", "smul", "udiv", "sdiv",
		"umod", "smod", "urem", "srem", "shl", "shr":
		return binaryIntOp(op, a, b)
	case "eq", "neq", "ult", "ugt", "ule", "uge", "slt", "sgt", "sle", "sge":
		return binaryBoolOp(op, a, b)
	default:
		return Poison("unsupported binary op " + op)
	}
}

// EvalUnary evaluates a pure unary opcode over a constant.
func EvalUnary(op string, a Const) Const {
	if a.IsPoison() {
		return a
	}
	switch op {
	case "neg":
		return NewInt(a.Width, new(big.Int).Neg(a.Int))
	case "not":
		return NewInt(a.Width, new(big.Int).Not(a.Int))
	default:
		return Poison("unsupported unary op " + op)
	}
}

// Equal reports whether two constants are identical, recursively for
// aggregates. Poison never equals anything, including another poison,
// mirroring NaN's incomparability.
func (v Const) Equal(o Const) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ConstInt:
		return v.Width == o.Width && v.Int.Cmp(o.Int) == 0
	case ConstTimeVal:
		return v.Time.Compare(o.Time) == 0
	case ConstArray, ConstStruct:
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case ConstPoison:
		return false
	default:
		return false
	}
}
