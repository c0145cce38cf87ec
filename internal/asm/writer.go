package asm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/module"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// WriteModule renders every unit of m in declaration order, in the same
// concrete syntax ReadModule accepts — the two together give
// parse(write(m)) structural fidelity (spec.md §4.7).
func WriteModule(m *module.Module) string {
	var b strings.Builder
	for _, u := range m.Units() {
		b.WriteString(WriteUnit(u))
	}
	return b.String()
}

// WriteUnit renders one unit: its keyword, signature, and (unless it is
// a declaration) its body.
func WriteUnit(u *unit.Unit) string {
	p := &unitPrinter{u: u, b: &strings.Builder{}}
	p.writeUnit()
	return p.b.String()
}

type unitPrinter struct {
	u *unit.Unit
	b *strings.Builder
}

func (p *unitPrinter) writeUnit() {
	fmt.Fprintf(p.b, "%s @%s", p.u.Kind.String(), p.u.Name)
	p.writeSignature()
	if p.u.IsDeclaration() {
		p.b.WriteString("\n")
		return
	}
	p.b.WriteString(" {\n")
	if p.u.Kind == unit.KindEntity {
		for _, i := range p.u.CFG.InstsIn(p.u.SingleBlock()) {
			p.writeInst(i)
		}
	} else {
		for idx, blk := range p.u.CFG.Blocks() {
			// An unlabeled first block round-trips through the reader's
			// implicit-entry convention without ever printing a label.
			if label := p.u.CFG.Label(blk); label != "" || idx > 0 {
				fmt.Fprintf(p.b, "%s:\n", p.blockRef(blk))
			}
			for _, i := range p.u.CFG.InstsIn(blk) {
				p.writeInst(i)
			}
		}
	}
	p.b.WriteString("}\n")
}

func (p *unitPrinter) writeSignature() {
	p.b.WriteString("(")
	p.writeParams(p.u.Sig.Inputs)
	p.b.WriteString(")")
	if p.u.Kind != unit.KindFunction {
		p.b.WriteString(" -> (")
		p.writeParams(p.u.Sig.Outputs)
		p.b.WriteString(")")
		return
	}
	rt := p.u.Sig.ReturnType
	if rt == nil {
		rt = types.Void{}
	}
	fmt.Fprintf(p.b, " %s", rt.String())
}

func (p *unitPrinter) writeParams(params []unit.Param) {
	for i, arg := range params {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.b.WriteString(arg.Type.String())
		if arg.Name != "" {
			fmt.Fprintf(p.b, " %%%s", arg.Name)
		}
	}
}

// valueRef renders v as the reader expects it back: its debug name if it
// has one, otherwise its own arena index, so a freshly parsed, unedited
// module reproduces identical numbering (spec.md §4.7's round-trip
// guarantee doesn't promise this after edits remove values, only that
// the text parses back to an isomorphic module).
func (p *unitPrinter) valueRef(v ids.Value) string {
	if !v.IsValid() {
		return "%-"
	}
	if name := p.u.DFG.ValueName(v); name != "" {
		return "%" + name
	}
	return "%" + strconv.Itoa(int(v))
}

func (p *unitPrinter) blockRef(b ids.Block) string {
	if label := p.u.CFG.Label(b); label != "" {
		return label
	}
	return strconv.Itoa(int(b))
}

func (p *unitPrinter) joinValues(vs []ids.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = p.valueRef(v)
	}
	return strings.Join(parts, ", ")
}

func (p *unitPrinter) writeInst(i ids.Inst) {
	data := p.u.DFG.Inst(i)
	line := p.renderInst(data)
	if data.Result.IsValid() {
		fmt.Fprintf(p.b, "    %s = %s\n", p.valueRef(data.Result), line)
	} else {
		fmt.Fprintf(p.b, "    %s\n", line)
	}
}

func (p *unitPrinter) renderInst(data dfg.InstData) string {
	op := data.Opcode.String()
	switch data.Opcode {
	case dfg.OpConstInt:
		it := data.Type.(types.Int)
		return fmt.Sprintf("const_int %s %s", it.String(), data.Imm.Int.String())

	case dfg.OpConstTime:
		return fmt.Sprintf("const_time time %s", formatTimeValue(data.Imm.Time))

	case dfg.OpArray, dfg.OpStruct:
		return fmt.Sprintf("%s %s %s", op, data.Type.String(), p.joinValues(data.Args))

	case dfg.OpAlias:
		return fmt.Sprintf("alias %s %s", data.Type.String(), p.valueRef(data.Args[0]))

	case dfg.OpAdd, dfg.OpSub, dfg.OpAnd, dfg.OpOr, dfg.OpXor,
		dfg.OpUmul, dfg.OpSmul, dfg.OpUdiv, dfg.OpSdiv,
		dfg.OpUmod, dfg.OpSmod, dfg.OpUrem, dfg.OpSrem,
		dfg.OpShl, dfg.OpShr:
		return fmt.Sprintf("%s %s %s, %s", op, data.Type.String(), p.valueRef(data.Args[0]), p.valueRef(data.Args[1]))

	case dfg.OpEq, dfg.OpNeq, dfg.OpUlt, dfg.OpUgt, dfg.OpUle, dfg.OpUge,
		dfg.OpSlt, dfg.OpSgt, dfg.OpSle, dfg.OpSge:
		operandType := p.u.DFG.ValueType(data.Args[0])
		return fmt.Sprintf("%s %s %s, %s", op, operandType.String(), p.valueRef(data.Args[0]), p.valueRef(data.Args[1]))

	case dfg.OpNeg, dfg.OpNot:
		return fmt.Sprintf("%s %s %s", op, data.Type.String(), p.valueRef(data.Args[0]))

	case dfg.OpMux:
		return fmt.Sprintf("mux %s %s, %s, %s", data.Type.String(),
			p.valueRef(data.Args[0]), p.valueRef(data.Args[1]), p.valueRef(data.Args[2]))

	case dfg.OpExtf:
		return fmt.Sprintf("extf %s %s, %d", data.Type.String(), p.valueRef(data.Args[0]), data.Imm.FieldIndex)

	case dfg.OpInsf:
		return fmt.Sprintf("insf %s %s, %s, %d", data.Type.String(),
			p.valueRef(data.Args[0]), p.valueRef(data.Args[1]), data.Imm.FieldIndex)

	case dfg.OpExts:
		return fmt.Sprintf("exts %s %s, %s", data.Type.String(), p.valueRef(data.Args[0]), p.valueRef(data.Args[1]))

	case dfg.OpInss:
		return fmt.Sprintf("inss %s %s, %s, %s", data.Type.String(),
			p.valueRef(data.Args[0]), p.valueRef(data.Args[1]), p.valueRef(data.Args[2]))

	case dfg.OpVar:
		return fmt.Sprintf("var %s", data.Type.String())

	case dfg.OpLoad:
		return fmt.Sprintf("load %s %s", data.Type.String(), p.valueRef(data.Args[0]))

	case dfg.OpStore:
		return fmt.Sprintf("store %s, %s", p.valueRef(data.Args[0]), p.valueRef(data.Args[1]))

	case dfg.OpSig:
		s := fmt.Sprintf("sig %s", data.Type.String())
		if len(data.Args) > 0 {
			s += " " + p.valueRef(data.Args[0])
		}
		return s

	case dfg.OpPrb:
		return fmt.Sprintf("prb %s %s", data.Type.String(), p.valueRef(data.Args[0]))

	case dfg.OpDrv:
		return fmt.Sprintf("drv %s, %s, %s", p.valueRef(data.Args[0]), p.valueRef(data.Args[1]), formatTimeValue(data.Imm.Time))

	case dfg.OpDrvCond:
		return fmt.Sprintf("drv_cond %s, %s, %s, %s", p.valueRef(data.Args[0]), p.valueRef(data.Args[1]),
			p.valueRef(data.Args[2]), formatTimeValue(data.Imm.Time))

	case dfg.OpReg:
		return fmt.Sprintf("reg %s %s, %s, %s", data.Type.String(),
			p.valueRef(data.Args[0]), p.valueRef(data.Args[1]), data.Imm.EdgeKind)

	case dfg.OpBr:
		return fmt.Sprintf("br %s", p.blockRef(data.Blocks[0]))

	case dfg.OpBrCond:
		return fmt.Sprintf("br_cond %s, %s, %s", p.valueRef(data.Args[0]), p.blockRef(data.Blocks[0]), p.blockRef(data.Blocks[1]))

	case dfg.OpCall:
		ext := p.u.DFG.Extern(data.Ext)
		rt := data.Type
		if rt == nil {
			rt = types.Void{}
		}
		return fmt.Sprintf("call %s @%s(%s)", rt.String(), ext.Name, p.joinValues(data.Args))

	case dfg.OpRet:
		return "ret"

	case dfg.OpRetValue:
		return fmt.Sprintf("ret_value %s", p.valueRef(data.Args[0]))

	case dfg.OpPhi:
		incoming := make([]string, len(data.Args))
		for i, v := range data.Args {
			incoming[i] = fmt.Sprintf("[%s, %s]", p.valueRef(v), p.blockRef(data.Blocks[i]))
		}
		return fmt.Sprintf("phi %s %s", data.Type.String(), strings.Join(incoming, ", "))

	case dfg.OpHalt:
		return "halt"

	case dfg.OpWait:
		sensitivity := data.Args
		hasTimeout := data.Imm.HasTimeout
		if hasTimeout {
			sensitivity = data.Args[:len(data.Args)-1]
		}
		var sb strings.Builder
		sb.WriteString("wait ")
		if len(sensitivity) > 0 {
			sb.WriteString(p.joinValues(sensitivity))
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "resume %s", p.blockRef(data.Blocks[0]))
		if hasTimeout {
			fmt.Fprintf(&sb, ", timeout %s", p.valueRef(data.Args[len(data.Args)-1]))
		}
		return sb.String()

	case dfg.OpWaitTime:
		return fmt.Sprintf("wait_time %s, resume %s", formatTimeValue(data.Imm.Time), p.blockRef(data.Blocks[0]))

	case dfg.OpCon:
		return fmt.Sprintf("con %s, %s", p.valueRef(data.Args[0]), p.valueRef(data.Args[1]))

	case dfg.OpInstantiate:
		ext := p.u.DFG.Extern(data.Ext)
		entityTy := ext.Signature.(types.Entity)
		nIn := len(entityTy.Inputs)
		ins := data.Args[:nIn]
		outs := data.Args[nIn:]
		s := fmt.Sprintf("inst @%s(%s)", ext.Name, p.joinValues(ins))
		if len(outs) > 0 {
			s += fmt.Sprintf(" -> (%s)", p.joinValues(outs))
		}
		return s

	default:
		return fmt.Sprintf("<unknown opcode %d>", data.Opcode)
	}
}

// formatTimeValue renders a composite simulation time back into the
// decimal-seconds-plus-delta-plus-epsilon literal form parseTimeValue
// accepts (spec.md §4.6's composite time, §6's literal sketch).
func formatTimeValue(tv types.TimeValue) string {
	s := formatRatSeconds(tv.Real)
	if tv.Delta != 0 {
		s += fmt.Sprintf(" %dd", tv.Delta)
	}
	if tv.Epsilon != 0 {
		s += fmt.Sprintf(" %de", tv.Epsilon)
	}
	return s
}

// timeUnitsByCoarseness lists the units parseTimeLiteral accepts from
// coarsest to finest, the order formatRatSeconds searches so a clean
// round value prints as "1ns" rather than "0.000000001s".
var timeUnitsByCoarseness = []struct {
	suffix string
	exp    int64
}{
	{"s", 0}, {"ms", 3}, {"us", 6}, {"ns", 9}, {"ps", 12}, {"fs", 15},
}

// formatRatSeconds reconstructs a decimal time literal a big.Rat
// represents, preferring whichever named unit makes it an exact integer.
// Every TimeValue this package ever needs to print originates from
// parseTimeLiteral (a finite decimal divided by a power of ten) or from
// arithmetic over such values, so some finite decimal expansion always
// exists even when it falls finer than femtoseconds.
func formatRatSeconds(r *big.Rat) string {
	for _, u := range timeUnitsByCoarseness {
		scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(pow10(u.exp)))
		if scaled.IsInt() {
			return scaled.Num().String() + u.suffix
		}
	}
	return decimalSecondsExpansion(r) + "s"
}

// decimalSecondsExpansion renders r as a plain decimal-seconds string
// for a value with more precision than any named unit captures.
func decimalSecondsExpansion(r *big.Rat) string {
	for exp := int64(16); exp <= 60; exp++ {
		scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(pow10(exp)))
		if !scaled.IsInt() {
			continue
		}
		str := scaled.Num().String()
		neg := strings.HasPrefix(str, "-")
		if neg {
			str = str[1:]
		}
		for int64(len(str)) <= exp {
			str = "0" + str
		}
		cut := int64(len(str)) - exp
		out := str[:cut] + "." + str[cut:]
		if neg {
			out = "-" + out
		}
		return out
	}
	return r.FloatString(40)
}
