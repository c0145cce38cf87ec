package dfg

// Opcode is the closed instruction tag set from spec.md §3. The enum is
// never extended by client code.
type Opcode int

const (
	// Constants
	OpConstInt Opcode = iota
	OpConstTime
	OpArray
	OpStruct
	OpAlias

	// Arithmetic
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpNeg
	OpNot
	OpUmul
	OpSmul
	OpUdiv
	OpSdiv
	OpUmod
	OpSmod
	OpUrem
	OpSrem

	// Comparisons
	OpEq
	OpNeq
	OpUlt
	OpUgt
	OpUle
	OpUge
	OpSlt
	OpSgt
	OpSle
	OpSge

	// Shifts
	OpShl
	OpShr

	// Mux
	OpMux

	// Aggregate access
	OpExtf
	OpExts
	OpInsf
	OpInss

	// Memory
	OpVar
	OpLoad
	OpStore

	// Signals
	OpSig
	OpPrb
	OpDrv
	OpDrvCond
	OpReg

	// Control
	OpBr
	OpBrCond
	OpCall
	OpRet
	OpRetValue
	OpPhi
	OpHalt
	OpWait
	OpWaitTime

	// Connectivity
	OpCon

	// Instantiation
	OpInstantiate
)

var opcodeNames = map[Opcode]string{
	OpConstInt: "const_int", OpConstTime: "const_time", OpArray: "array",
	OpStruct: "struct", OpAlias: "alias",
	OpAdd: "add", OpSub: "sub", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpNeg: "neg", OpNot: "not", OpUmul: "umul", OpSmul: "smul",
	OpUdiv: "udiv", OpSdiv: "sdiv", OpUmod: "umod", OpSmod: "smod",
	OpUrem: "urem", OpSrem: "srem",
	OpEq: "eq", OpNeq: "neq", OpUlt: "ult", OpUgt: "ugt", OpUle: "ule",
	OpUge: "uge", OpSlt: "slt", OpSgt: "sgt", OpSle: "sle", OpSge: "sge",
	OpShl: "shl", OpShr: "shr", OpMux: "mux",
	OpExtf: "extf", OpExts: "exts", OpInsf: "insf", OpInss: "inss",
	OpVar: "var", OpLoad: "load", OpStore: "store",
	OpSig: "sig", OpPrb: "prb", OpDrv: "drv", OpDrvCond: "drv_cond", OpReg: "reg",
	OpBr: "br", OpBrCond: "br_cond", OpCall: "call", OpRet: "ret", OpRetValue: "ret_value",
	OpPhi: "phi", OpHalt: "halt", OpWait: "wait", OpWaitTime: "wait_time",
	OpCon: "con", OpInstantiate: "inst",
}

func (op Opcode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return "unknown"
}

// pureOpcodes is the set of opcodes eligible for interning: deterministic,
// side-effect-free computations over their operands (spec.md §4.1).
var pureOpcodes = map[Opcode]bool{
	OpConstInt: true, OpConstTime: true, OpArray: true, OpStruct: true, OpAlias: true,
	OpAdd: true, OpSub: true, OpAnd: true, OpOr: true, OpXor: true,
	OpNeg: true, OpNot: true, OpUmul: true, OpSmul: true,
	OpUdiv: true, OpSdiv: true, OpUmod: true, OpSmod: true, OpUrem: true, OpSrem: true,
	OpEq: true, OpNeq: true, OpUlt: true, OpUgt: true, OpUle: true, OpUge: true,
	OpSlt: true, OpSgt: true, OpSle: true, OpSge: true,
	OpShl: true, OpShr: true, OpMux: true,
	OpExtf: true, OpExts: true, OpInsf: true, OpInss: true,
}

// IsPure reports whether instructions with this opcode are eligible for
// interning and constant folding. Side-effecting opcodes (drv, store,
// call, inst, wait, halt, br, ret) are never pure.
func IsPure(op Opcode) bool { return pureOpcodes[op] }

// IsTerminator reports whether an opcode may only appear as the last
// instruction of a block.
func IsTerminator(op Opcode) bool {
	switch op {
	case OpBr, OpBrCond, OpRet, OpRetValue, OpHalt, OpWait, OpWaitTime:
		return true
	default:
		return false
	}
}
