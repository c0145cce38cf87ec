package unit

import (
	"math/big"

	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/types"
)

// posKind distinguishes the builder's insertion cursor modes, mirroring
// spec.md §4.2's position policy.
type posKind int

const (
	posAppendTo posKind = iota
	posPrependTo
	posBefore
	posAfter
)

// Builder inserts instructions into a Unit at an explicit cursor
// position: append/prepend to a block, or before/after an existing
// instruction. Values, instructions, blocks, and externs created through
// a Builder live for the unit's lifetime (spec.md §3 "Lifecycle").
type Builder struct {
	u        *Unit
	posKind  posKind
	block    ids.Block
	anchor   ids.Inst
}

// NewBuilder creates a builder with no cursor set; call one of the
// Append/Prepend/InsertBefore/InsertAfter methods before emitting.
func NewBuilder(u *Unit) *Builder { return &Builder{u: u} }

// AppendTo points the cursor at the end of bb.
func (b *Builder) AppendTo(bb ids.Block) *Builder {
	b.posKind, b.block = posAppendTo, bb
	return b
}

// PrependTo points the cursor at the start of bb.
func (b *Builder) PrependTo(bb ids.Block) *Builder {
	b.posKind, b.block = posPrependTo, bb
	return b
}

// InsertBefore points the cursor immediately before an existing
// instruction.
func (b *Builder) InsertBefore(i ids.Inst) *Builder {
	b.posKind, b.anchor = posBefore, i
	return b
}

// InsertAfter points the cursor immediately after an existing
// instruction.
func (b *Builder) InsertAfter(i ids.Inst) *Builder {
	b.posKind, b.anchor = posAfter, i
	return b
}

// InsertAtEnd points the cursor at the end of an entity's single
// synthetic block. Panics if the unit is not an Entity.
func (b *Builder) InsertAtEnd() *Builder {
	return b.AppendTo(b.u.SingleBlock())
}

// InsertAtBeginning points the cursor at the start of an entity's single
// synthetic block. Panics if the unit is not an Entity.
func (b *Builder) InsertAtBeginning() *Builder {
	return b.PrependTo(b.u.SingleBlock())
}

func (b *Builder) place(i ids.Inst) {
	switch b.posKind {
	case posAppendTo:
		b.u.CFG.AppendInst(b.block, i)
	case posPrependTo:
		b.u.CFG.PrependInst(b.block, i)
	case posBefore:
		b.u.CFG.InsertBefore(b.anchor, i)
	case posAfter:
		b.u.CFG.InsertAfter(b.anchor, i)
	default:
		panic("unit: builder used before a position was set")
	}
}

func (b *Builder) emit(data dfg.InstData, resultType types.Type, name string) (ids.Inst, ids.Value) {
	i, v, isNew := b.u.DFG.AddInst(data, resultType, name)
	// An interned hit reuses an instruction already placed in the
	// layout; only place genuinely new instructions.
	if isNew {
		b.place(i)
	}
	return i, v
}

// --- constants ---

// ConstInt wraps v into the unsigned two's-complement range of the
// declared width, so equal constants always intern to one instruction
// and the printed immediate is a plain unsigned literal.
func (b *Builder) ConstInt(width uint32, v *big.Int) (ids.Inst, ids.Value) {
	wrapped := types.NewInt(width, v)
	return b.emit(dfg.InstData{Opcode: dfg.OpConstInt, Imm: dfg.Imm{Int: wrapped.Int}}, types.Int{Width: width}, "")
}

func (b *Builder) ConstTime(t types.TimeValue) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpConstTime, Imm: dfg.Imm{Time: t, HasTime: true}}, types.Time{}, "")
}

func (b *Builder) Array(elemType types.Type, elems []ids.Value) (ids.Inst, ids.Value) {
	t := types.Array{Length: uint32(len(elems)), Element: elemType}
	return b.emit(dfg.InstData{Opcode: dfg.OpArray, Args: elems}, t, "")
}

func (b *Builder) Struct(fieldTypes []types.Type, fields []ids.Value) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpStruct, Args: fields}, types.Struct{Fields: fieldTypes}, "")
}

func (b *Builder) Alias(v ids.Value, name string) (ids.Inst, ids.Value) {
	t := b.u.DFG.ValueType(v)
	return b.emit(dfg.InstData{Opcode: dfg.OpAlias, Args: []ids.Value{v}}, t, name)
}

// --- arithmetic / comparisons / shifts ---

var binaryOpcodes = map[string]dfg.Opcode{
	"add": dfg.OpAdd, "sub": dfg.OpSub, "and": dfg.OpAnd, "or": dfg.OpOr, "xor": dfg.OpXor,
	"umul": dfg.OpUmul, "smul": dfg.OpSmul, "udiv": dfg.OpUdiv, "sdiv": dfg.OpSdiv,
	"umod": dfg.OpUmod, "smod": dfg.OpSmod, "urem": dfg.OpUrem, "srem": dfg.OpSrem,
	"shl": dfg.OpShl, "shr": dfg.OpShr,
}

var compareOpcodes = map[string]dfg.Opcode{
	"eq": dfg.OpEq, "neq": dfg.OpNeq, "ult": dfg.OpUlt, "ugt": dfg.OpUgt,
	"ule": dfg.OpUle, "uge": dfg.OpUge, "slt": dfg.OpSlt, "sgt": dfg.OpSgt,
	"sle": dfg.OpSle, "sge": dfg.OpSge,
}

// Binary emits an arithmetic or shift instruction; the result type
// matches the (equal) operand type, per spec.md §4.1.
func (b *Builder) Binary(op string, lhs, rhs ids.Value) (ids.Inst, ids.Value) {
	opc, ok := binaryOpcodes[op]
	if !ok {
		panic("unit: unknown binary op " + op)
	}
	t := b.u.DFG.ValueType(lhs)
	return b.emit(dfg.InstData{Opcode: opc, Args: []ids.Value{lhs, rhs}}, t, "")
}

// Compare emits a comparison instruction; result type is always i1.
func (b *Builder) Compare(op string, lhs, rhs ids.Value) (ids.Inst, ids.Value) {
	opc, ok := compareOpcodes[op]
	if !ok {
		panic("unit: unknown comparison op " + op)
	}
	return b.emit(dfg.InstData{Opcode: opc, Args: []ids.Value{lhs, rhs}}, types.Int{Width: 1}, "")
}

func (b *Builder) Neg(v ids.Value) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpNeg, Args: []ids.Value{v}}, b.u.DFG.ValueType(v), "")
}

func (b *Builder) Not(v ids.Value) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpNot, Args: []ids.Value{v}}, b.u.DFG.ValueType(v), "")
}

func (b *Builder) Mux(sel, a, c ids.Value) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpMux, Args: []ids.Value{sel, a, c}}, b.u.DFG.ValueType(a), "")
}

// --- aggregate access ---

func (b *Builder) Extf(agg ids.Value, field int, fieldType types.Type) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpExtf, Args: []ids.Value{agg}, Imm: dfg.Imm{FieldIndex: field}}, fieldType, "")
}

func (b *Builder) Insf(agg ids.Value, field int, v ids.Value) (ids.Inst, ids.Value) {
	t := b.u.DFG.ValueType(agg)
	return b.emit(dfg.InstData{Opcode: dfg.OpInsf, Args: []ids.Value{agg, v}, Imm: dfg.Imm{FieldIndex: field}}, t, "")
}

func (b *Builder) Exts(agg, index ids.Value, elemType types.Type) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpExts, Args: []ids.Value{agg, index}}, elemType, "")
}

func (b *Builder) Inss(agg, index, v ids.Value) (ids.Inst, ids.Value) {
	t := b.u.DFG.ValueType(agg)
	return b.emit(dfg.InstData{Opcode: dfg.OpInss, Args: []ids.Value{agg, index, v}}, t, "")
}

// --- memory ---

func (b *Builder) Var(elemType types.Type) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpVar}, types.Pointer{Inner: elemType}, "")
}

func (b *Builder) Load(ptr ids.Value) (ids.Inst, ids.Value) {
	pt := b.u.DFG.ValueType(ptr).(types.Pointer)
	return b.emit(dfg.InstData{Opcode: dfg.OpLoad, Args: []ids.Value{ptr}}, pt.Inner, "")
}

func (b *Builder) Store(ptr, v ids.Value) ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpStore, Args: []ids.Value{ptr, v}}, nil, "")
	return i
}

// --- signals ---

func (b *Builder) Sig(init ids.Value, elemType types.Type) (ids.Inst, ids.Value) {
	var args []ids.Value
	if init.IsValid() {
		args = []ids.Value{init}
	}
	return b.emit(dfg.InstData{Opcode: dfg.OpSig, Args: args}, types.Signal{Inner: elemType}, "")
}

func (b *Builder) Prb(sig ids.Value) (ids.Inst, ids.Value) {
	st := b.u.DFG.ValueType(sig).(types.Signal)
	return b.emit(dfg.InstData{Opcode: dfg.OpPrb, Args: []ids.Value{sig}}, st.Inner, "")
}

// Drv schedules a drive of v onto sig, delayed by delay after the
// scheduling time (types.DefaultDriveDelay() when unspecified, per
// spec.md §4.6).
func (b *Builder) Drv(sig, v ids.Value, delay types.TimeValue) ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpDrv, Args: []ids.Value{sig, v}, Imm: dfg.Imm{Time: delay, HasTime: true}}, nil, "")
	return i
}

// DrvCond is a conditional drive: the drive only takes effect when cond
// is true at evaluation time.
func (b *Builder) DrvCond(sig, v, cond ids.Value, delay types.TimeValue) ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpDrvCond, Args: []ids.Value{sig, v, cond}, Imm: dfg.Imm{Time: delay, HasTime: true}}, nil, "")
	return i
}

// Reg creates an edge-triggered storage element: data sampled on clk's
// edge (edgeKind is "rise", "fall", or "both").
func (b *Builder) Reg(data, clk ids.Value, edgeKind string, elemType types.Type) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpReg, Args: []ids.Value{data, clk}, Imm: dfg.Imm{EdgeKind: edgeKind}}, types.Signal{Inner: elemType}, "")
}

// --- control ---

func (b *Builder) Br(target ids.Block) ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpBr, Blocks: []ids.Block{target}}, nil, "")
	return i
}

func (b *Builder) BrCond(cond ids.Value, trueBlock, falseBlock ids.Block) ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpBrCond, Args: []ids.Value{cond}, Blocks: []ids.Block{trueBlock, falseBlock}}, nil, "")
	return i
}

func (b *Builder) Call(ext ids.ExtUnit, args []ids.Value, resultType types.Type) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpCall, Args: args, Ext: ext, HasExt: true}, resultType, "")
}

func (b *Builder) Ret() ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpRet}, nil, "")
	return i
}

func (b *Builder) RetValue(v ids.Value) ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpRetValue, Args: []ids.Value{v}}, nil, "")
	return i
}

// Phi creates a phi node with no incoming edges yet; call AddIncoming to
// populate it once predecessors are known.
func (b *Builder) Phi(t types.Type) (ids.Inst, ids.Value) {
	return b.emit(dfg.InstData{Opcode: dfg.OpPhi}, t, "")
}

// AddIncoming appends one (predecessor block, value) edge to a phi. The
// verifier checks that the final set of edges matches the block's actual
// incoming CFG edges.
func (b *Builder) AddIncoming(phi ids.Inst, pred ids.Block, v ids.Value) {
	data := b.u.DFG.Inst(phi)
	data.Blocks = append(data.Blocks, pred)
	data.Args = append(data.Args, v)
	b.u.DFG.SetInst(phi, data)
}

func (b *Builder) Halt() ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpHalt}, nil, "")
	return i
}

// Wait suspends a process until any signal in sensitivity changes, or
// (if hasTimeout) until timeout elapses, whichever comes first, then
// resumes execution at resume — wait is a terminator, so (like br) the
// block it resumes into must be named explicitly rather than implied by
// layout order (spec.md §4.2/§4.6).
func (b *Builder) Wait(sensitivity []ids.Value, timeout ids.Value, hasTimeout bool, resume ids.Block) ids.Inst {
	args := append([]ids.Value(nil), sensitivity...)
	if hasTimeout {
		args = append(args, timeout)
	}
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpWait, Args: args, Blocks: []ids.Block{resume}, Imm: dfg.Imm{HasTimeout: hasTimeout}}, nil, "")
	return i
}

// WaitTime suspends a process for delay simulated time, then resumes at
// resume.
func (b *Builder) WaitTime(delay types.TimeValue, resume ids.Block) ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpWaitTime, Blocks: []ids.Block{resume}, Imm: dfg.Imm{Time: delay, HasTime: true}}, nil, "")
	return i
}

// --- connectivity / instantiation ---

// Con emits a continuous assignment (entity-only): source always drives
// target.
func (b *Builder) Con(source, target ids.Value) ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpCon, Args: []ids.Value{source, target}}, nil, "")
	return i
}

// Instantiate instantiates ext, binding ports to the given values in
// signature order (inputs then outputs).
func (b *Builder) Instantiate(ext ids.ExtUnit, ports []ids.Value) ids.Inst {
	i, _ := b.emit(dfg.InstData{Opcode: dfg.OpInstantiate, Args: ports, Ext: ext, HasExt: true}, nil, "")
	return i
}
