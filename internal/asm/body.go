package asm

import (
	"strconv"

	"llhd/internal/diag"
	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// unitParser parses one unit's body: block layout (func/proc) or the
// flat instruction sequence of an entity's single implicit block
// (spec.md §3 "Entities contain exactly one implicit block"), building
// directly through a unit.Builder as it goes.
type unitParser struct {
	*parser
	u      *unit.Unit
	b      *unit.Builder
	values map[string]ids.Value
	blocks map[string]ids.Block

	pending []phiPatch
}

// phiPatch records one phi incoming edge whose value name was not yet
// bound when the phi was parsed — the only forward value reference the
// grammar admits, arising from loop back-edges (spec.md §4.1 dominance
// applies to every other operand use).
type phiPatch struct {
	inst  ids.Inst
	pred  ids.Block
	name  string
	pos   diag.Position
}

func (up *unitParser) parseBody() error {
	if _, err := up.expectText("{"); err != nil {
		return err
	}

	if up.u.Kind == unit.KindEntity {
		up.b = unit.NewBuilder(up.u).AppendTo(up.u.SingleBlock())
		for up.peek().Text != "}" && !up.atEnd() {
			if err := up.parseInst(); err != nil {
				return err
			}
		}
		_, err := up.expectText("}")
		return err
	}

	// A body whose first instruction carries no label gets an implicit,
	// unlabeled entry block — the same convention the writer uses to
	// print one back out, so a simple single-block function never needs
	// a label at all.
	if !up.peekIsLabel() && up.peek().Text != "}" {
		entry := up.u.CFG.AppendBlock("")
		up.b = unit.NewBuilder(up.u).AppendTo(entry)
	}

	if err := up.prescanLabels(); err != nil {
		return err
	}
	for up.peek().Text != "}" && !up.atEnd() {
		if lbl, ok := up.tryConsumeLabel(); ok {
			blk := up.blocks[lbl]
			up.b = unit.NewBuilder(up.u).AppendTo(blk)
			continue
		}
		if err := up.parseInst(); err != nil {
			return err
		}
	}
	if _, err := up.expectText("}"); err != nil {
		return err
	}
	return up.resolvePendingPhis()
}

// peekIsLabel reports whether the parser is positioned at a block label
// ("ident:" or "123:") without consuming any tokens.
func (up *unitParser) peekIsLabel() bool {
	t := up.peek()
	return (t.Kind == "Ident" || t.Kind == "Integer") && up.peekAt(1).Text == ":"
}

// prescanLabels discovers every block label inside the body (without
// consuming the parser's cursor) and creates the blocks up front, so a
// forward branch to a block that appears later in layout order (e.g. a
// loop header) resolves immediately during the main pass.
func (up *unitParser) prescanLabels() error {
	depth := 0
	for i := up.pos; i < len(up.toks); i++ {
		t := up.toks[i]
		switch t.Text {
		case "(", "[", "{":
			depth++
			continue
		case ")", "]":
			depth--
			continue
		case "}":
			if depth == 0 {
				return nil
			}
			depth--
			continue
		}
		if depth == 0 && (t.Kind == "Ident" || t.Kind == "Integer") && i+1 < len(up.toks) && up.toks[i+1].Text == ":" {
			if _, exists := up.blocks[t.Text]; !exists {
				up.blocks[t.Text] = up.u.CFG.AppendBlock(t.Text)
			}
		}
	}
	return up.errorf("unterminated unit body")
}

func (up *unitParser) tryConsumeLabel() (string, bool) {
	t := up.peek()
	if (t.Kind != "Ident" && t.Kind != "Integer") || up.peekAt(1).Text != ":" {
		return "", false
	}
	up.next()
	up.next()
	return t.Text, true
}

func (up *unitParser) resolvePendingPhis() error {
	for _, patch := range up.pending {
		v, ok := up.values[patch.name]
		if !ok {
			return diag.NewParseError(up.filename, patch.pos, "undefined value %%%s referenced by phi", patch.name)
		}
		up.b.AddIncoming(patch.inst, patch.pred, v)
	}
	return nil
}

// bindName records the value a freshly parsed `%name = ...` instruction
// produced. A purely numeric name that already equals the value's own
// arena index is left anonymous (Name=="") so the writer regenerates the
// identical token; anything else becomes an explicit debug name.
func (up *unitParser) bindName(name string, v ids.Value) {
	up.values[name] = v
	if n, err := strconv.Atoi(name); err == nil && ids.Value(n) == v {
		return
	}
	up.u.DFG.SetValueName(v, name)
}

func (up *unitParser) resolveValue(name string) (ids.Value, error) {
	v, ok := up.values[name]
	if !ok {
		return 0, up.errorf("undefined value %%%s", name)
	}
	return v, nil
}

func (up *unitParser) resolveBlock(label string) (ids.Block, error) {
	b, ok := up.blocks[label]
	if !ok {
		return 0, up.errorf("undefined block label %q", label)
	}
	return b, nil
}

// --- instruction parsing ---

func (up *unitParser) parseInst() error {
	resultName := ""
	hasResult := false
	if up.peek().Kind == "Local" && up.peekAt(1).Text == "=" {
		resultName = localName(up.next())
		up.next() // "="
		hasResult = true
	}
	opTok, err := up.expectKind("Ident")
	if err != nil {
		return err
	}

	result, err := up.dispatchOpcode(opTok.Text)
	if err != nil {
		return err
	}
	if hasResult {
		if !result.IsValid() {
			return up.errorf("opcode %q does not produce a result but is assigned to %%%s", opTok.Text, resultName)
		}
		up.bindName(resultName, result)
	}
	return nil
}

func (up *unitParser) parseLocalRef() (ids.Value, error) {
	t, err := up.expectKind("Local")
	if err != nil {
		return 0, err
	}
	return up.resolveValue(localName(t))
}

func (up *unitParser) parseValueList() ([]ids.Value, error) {
	var out []ids.Value
	for {
		v, err := up.parseLocalRef()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if up.peek().Text == "," {
			up.next()
			continue
		}
		break
	}
	return out, nil
}

func (up *unitParser) dispatchOpcode(op string) (ids.Value, error) {
	switch op {
	case "const_int":
		t, err := up.parseType()
		if err != nil {
			return 0, err
		}
		it, ok := t.(types.Int)
		if !ok {
			return 0, up.errorf("const_int requires an integer type, got %s", t)
		}
		v, err := up.parseIntLiteral()
		if err != nil {
			return 0, err
		}
		_, res := up.b.ConstInt(it.Width, v)
		return res, nil

	case "const_time":
		if _, err := up.expectText("time"); err != nil {
			return 0, err
		}
		tv, err := up.parseTimeValue()
		if err != nil {
			return 0, err
		}
		_, res := up.b.ConstTime(tv)
		return res, nil

	case "array":
		t, err := up.parseType()
		if err != nil {
			return 0, err
		}
		at, ok := t.(types.Array)
		if !ok {
			return 0, up.errorf("array requires an array type, got %s", t)
		}
		elems, err := up.parseValueList()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Array(at.Element, elems)
		return res, nil

	case "struct":
		t, err := up.parseType()
		if err != nil {
			return 0, err
		}
		st, ok := t.(types.Struct)
		if !ok {
			return 0, up.errorf("struct requires a struct type, got %s", t)
		}
		elems, err := up.parseValueList()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Struct(st.Fields, elems)
		return res, nil

	case "alias":
		if _, err := up.parseType(); err != nil {
			return 0, err
		}
		v, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Alias(v, "")
		return res, nil

	case "add", "sub", "and", "or", "xor", "umul", "smul", "udiv", "sdiv",
		"umod", "smod", "urem", "srem", "shl", "shr":
		if _, err := up.parseType(); err != nil {
			return 0, err
		}
		lhs, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		rhs, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Binary(op, lhs, rhs)
		return res, nil

	case "eq", "neq", "ult", "ugt", "ule", "uge", "slt", "sgt", "sle", "sge":
		if _, err := up.parseType(); err != nil {
			return 0, err
		}
		lhs, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		rhs, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Compare(op, lhs, rhs)
		return res, nil

	case "neg", "not":
		if _, err := up.parseType(); err != nil {
			return 0, err
		}
		v, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		var res ids.Value
		if op == "neg" {
			_, res = up.b.Neg(v)
		} else {
			_, res = up.b.Not(v)
		}
		return res, nil

	case "mux":
		if _, err := up.parseType(); err != nil {
			return 0, err
		}
		sel, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		a, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		c, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Mux(sel, a, c)
		return res, nil

	case "extf":
		ft, err := up.parseType()
		if err != nil {
			return 0, err
		}
		agg, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		idxTok, err := up.expectKind("Integer")
		if err != nil {
			return 0, err
		}
		idx, _ := strconv.Atoi(idxTok.Text)
		_, res := up.b.Extf(agg, idx, ft)
		return res, nil

	case "insf":
		if _, err := up.parseType(); err != nil {
			return 0, err
		}
		agg, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		v, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		idxTok, err := up.expectKind("Integer")
		if err != nil {
			return 0, err
		}
		idx, _ := strconv.Atoi(idxTok.Text)
		_, res := up.b.Insf(agg, idx, v)
		return res, nil

	case "exts":
		et, err := up.parseType()
		if err != nil {
			return 0, err
		}
		agg, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		idx, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Exts(agg, idx, et)
		return res, nil

	case "inss":
		if _, err := up.parseType(); err != nil {
			return 0, err
		}
		agg, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		idx, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		v, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Inss(agg, idx, v)
		return res, nil

	case "var":
		pt, err := up.parseType()
		if err != nil {
			return 0, err
		}
		ptr, ok := pt.(types.Pointer)
		if !ok {
			return 0, up.errorf("var requires a pointer type, got %s", pt)
		}
		_, res := up.b.Var(ptr.Inner)
		return res, nil

	case "load":
		if _, err := up.parseType(); err != nil {
			return 0, err
		}
		ptr, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Load(ptr)
		return res, nil

	case "store":
		ptr, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		v, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		up.b.Store(ptr, v)
		return ids.InvalidValue, nil

	case "sig":
		st, err := up.parseType()
		if err != nil {
			return 0, err
		}
		sigTy, ok := st.(types.Signal)
		if !ok {
			return 0, up.errorf("sig requires a signal type, got %s", st)
		}
		init := ids.InvalidValue
		if up.peek().Kind == "Local" {
			init, err = up.parseLocalRef()
			if err != nil {
				return 0, err
			}
		}
		_, res := up.b.Sig(init, sigTy.Inner)
		return res, nil

	case "prb":
		if _, err := up.parseType(); err != nil {
			return 0, err
		}
		sig, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		_, res := up.b.Prb(sig)
		return res, nil

	case "drv":
		sig, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		v, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		delay, err := up.parseTimeValue()
		if err != nil {
			return 0, err
		}
		up.b.Drv(sig, v, delay)
		return ids.InvalidValue, nil

	case "drv_cond":
		sig, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		v, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		cond, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		delay, err := up.parseTimeValue()
		if err != nil {
			return 0, err
		}
		up.b.DrvCond(sig, v, cond, delay)
		return ids.InvalidValue, nil

	case "reg":
		st, err := up.parseType()
		if err != nil {
			return 0, err
		}
		sigTy, ok := st.(types.Signal)
		if !ok {
			return 0, up.errorf("reg requires a signal type, got %s", st)
		}
		data, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		clk, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		edgeTok, err := up.expectKind("Ident")
		if err != nil {
			return 0, err
		}
		_, res := up.b.Reg(data, clk, edgeTok.Text, sigTy.Inner)
		return res, nil

	case "br":
		lbl, err := up.parseBlockLabel()
		if err != nil {
			return 0, err
		}
		up.b.Br(lbl)
		return ids.InvalidValue, nil

	case "br_cond":
		cond, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		t, err := up.parseBlockLabel()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		f, err := up.parseBlockLabel()
		if err != nil {
			return 0, err
		}
		up.b.BrCond(cond, t, f)
		return ids.InvalidValue, nil

	case "call":
		rt, err := up.parseType()
		if err != nil {
			return 0, err
		}
		extName, err := up.expectKind("Global")
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText("("); err != nil {
			return 0, err
		}
		var args []ids.Value
		var argTypes []types.Type
		for up.peek().Text != ")" {
			v, err := up.parseLocalRef()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			argTypes = append(argTypes, up.u.DFG.ValueType(v))
			if up.peek().Text == "," {
				up.next()
				continue
			}
			break
		}
		if _, err := up.expectText(")"); err != nil {
			return 0, err
		}
		ext := up.u.DFG.AddExtern(globalName(extName), types.Func{Args: argTypes, ReturnType: rt})
		_, res := up.b.Call(ext, args, rt)
		return res, nil

	case "ret":
		up.b.Ret()
		return ids.InvalidValue, nil

	case "ret_value":
		v, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		up.b.RetValue(v)
		return ids.InvalidValue, nil

	case "phi":
		t, err := up.parseType()
		if err != nil {
			return 0, err
		}
		inst, res := up.b.Phi(t)
		for {
			if _, err := up.expectText("["); err != nil {
				return 0, err
			}
			valTok, err := up.expectKind("Local")
			if err != nil {
				return 0, err
			}
			if _, err := up.expectText(","); err != nil {
				return 0, err
			}
			predPos := up.peek().Pos
			predTok := up.peek()
			predLabel := predTok.Text
			up.next()
			if _, err := up.expectText("]"); err != nil {
				return 0, err
			}
			pred, err := up.resolveBlock(predLabel)
			if err != nil {
				return 0, err
			}
			name := localName(valTok)
			if v, ok := up.values[name]; ok {
				up.b.AddIncoming(inst, pred, v)
			} else {
				up.pending = append(up.pending, phiPatch{
					inst: inst, pred: pred, name: name,
					pos: diag.Position{Line: predPos.Line, Column: predPos.Column},
				})
			}
			if up.peek().Text == "," {
				up.next()
				continue
			}
			break
		}
		return res, nil

	case "halt":
		up.b.Halt()
		return ids.InvalidValue, nil

	case "wait":
		var sensitivity []ids.Value
		for up.peek().Kind == "Local" {
			v, err := up.parseLocalRef()
			if err != nil {
				return 0, err
			}
			sensitivity = append(sensitivity, v)
			// Only swallow the comma here if it separates two sensitivity
			// operands; the comma before "resume" is consumed below, once
			// the whole list (possibly empty) has been collected.
			if up.peek().Text == "," && up.peekAt(1).Kind == "Local" {
				up.next()
				continue
			}
			break
		}
		if len(sensitivity) > 0 {
			if _, err := up.expectText(","); err != nil {
				return 0, err
			}
		}
		if _, err := up.expectText("resume"); err != nil {
			return 0, err
		}
		resume, err := up.parseBlockLabel()
		if err != nil {
			return 0, err
		}
		var timeout ids.Value
		hasTimeout := false
		if up.peek().Text == "," {
			up.next()
			if _, err := up.expectText("timeout"); err != nil {
				return 0, err
			}
			timeout, err = up.parseLocalRef()
			if err != nil {
				return 0, err
			}
			hasTimeout = true
		}
		up.b.Wait(sensitivity, timeout, hasTimeout, resume)
		return ids.InvalidValue, nil

	case "wait_time":
		delay, err := up.parseTimeValue()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		if _, err := up.expectText("resume"); err != nil {
			return 0, err
		}
		resume, err := up.parseBlockLabel()
		if err != nil {
			return 0, err
		}
		up.b.WaitTime(delay, resume)
		return ids.InvalidValue, nil

	case "con":
		src, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(","); err != nil {
			return 0, err
		}
		dst, err := up.parseLocalRef()
		if err != nil {
			return 0, err
		}
		up.b.Con(src, dst)
		return ids.InvalidValue, nil

	case "inst":
		extName, err := up.expectKind("Global")
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText("("); err != nil {
			return 0, err
		}
		ins, err := up.parseOptionalValueList(")")
		if err != nil {
			return 0, err
		}
		if _, err := up.expectText(")"); err != nil {
			return 0, err
		}
		var outs []ids.Value
		if up.peek().Text == "->" {
			up.next()
			if _, err := up.expectText("("); err != nil {
				return 0, err
			}
			outs, err = up.parseOptionalValueList(")")
			if err != nil {
				return 0, err
			}
			if _, err := up.expectText(")"); err != nil {
				return 0, err
			}
		}
		inTypes := make([]types.Type, len(ins))
		for i, v := range ins {
			inTypes[i] = up.u.DFG.ValueType(v)
		}
		outTypes := make([]types.Type, len(outs))
		for i, v := range outs {
			outTypes[i] = up.u.DFG.ValueType(v)
		}
		ext := up.u.DFG.AddExtern(globalName(extName), types.Entity{Inputs: inTypes, Outputs: outTypes})
		ports := append(append([]ids.Value(nil), ins...), outs...)
		up.b.Instantiate(ext, ports)
		return ids.InvalidValue, nil

	default:
		return 0, up.errorf("unknown opcode %q", op)
	}
}

func (up *unitParser) parseOptionalValueList(closer string) ([]ids.Value, error) {
	var out []ids.Value
	for up.peek().Text != closer {
		v, err := up.parseLocalRef()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if up.peek().Text == "," {
			up.next()
			continue
		}
		break
	}
	return out, nil
}

func (up *unitParser) parseBlockLabel() (ids.Block, error) {
	t := up.peek()
	if t.Kind != "Ident" && t.Kind != "Integer" {
		return 0, up.errorf("expected a block label, got %q", t.Text)
	}
	up.next()
	return up.resolveBlock(t.Text)
}
