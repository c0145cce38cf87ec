package asm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"llhd/internal/diag"
	"llhd/internal/ids"
	"llhd/internal/module"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// ReadModule parses LLHD assembly text into a Module. It constructs unit
// data directly through the same Builder APIs programmatic clients use
// (spec.md §4.7); callers are expected to follow up with module.Link and
// verify.Module, exactly as the CLI front ends do (out of scope here, but
// the two-step contract is spec.md §7's propagation policy).
func ReadModule(filename, source string) (*module.Module, error) {
	toks, err := tokenize(filename, source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, filename: filename, types: types.NewTable(), mod: module.New()}
	if err := p.parseModule(); err != nil {
		return nil, err
	}
	return p.mod, nil
}

type parser struct {
	toks     []token
	pos      int
	filename string
	types    *types.Table
	mod      *module.Module
}

func (p *parser) errorf(format string, args ...interface{}) error {
	pos := diag.Position{}
	if p.pos < len(p.toks) {
		t := p.toks[p.pos]
		pos = diag.Position{Line: t.Pos.Line, Column: t.Pos.Column}
	}
	return diag.NewParseError(p.filename, pos, format, args...)
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{Kind: "EOF"}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(offset int) token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return token{Kind: "EOF"}
	}
	return p.toks[i]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *parser) expectText(text string) (token, error) {
	t := p.peek()
	if t.Text != text {
		return t, p.errorf("expected %q, got %q", text, t.Text)
	}
	return p.next(), nil
}

func (p *parser) expectKind(kind string) (token, error) {
	t := p.peek()
	if t.Kind != kind {
		return t, p.errorf("expected %s, got %q", kind, t.Text)
	}
	return p.next(), nil
}

// --- module / unit ---

func (p *parser) parseModule() error {
	for !p.atEnd() {
		if err := p.parseUnit(); err != nil {
			return err
		}
	}
	return nil
}

var unitKeywordKind = map[string]unit.Kind{
	"func": unit.KindFunction, "proc": unit.KindProcess, "entity": unit.KindEntity,
	"declare": unit.KindFunction,
}

func (p *parser) parseUnit() error {
	kw := p.peek()
	kind, ok := unitKeywordKind[kw.Text]
	if !ok {
		return p.errorf("expected unit keyword (func/proc/entity/declare), got %q", kw.Text)
	}
	p.next()
	isDeclare := kw.Text == "declare"

	name, err := p.expectKind("Global")
	if err != nil {
		return err
	}

	sig, err := p.parseSignature(kind)
	if err != nil {
		return err
	}

	u := unit.New(kind, globalName(name), sig)
	p.mod.AddUnit(u)

	if isDeclare {
		return nil
	}
	if p.peek().Text != "{" {
		// A definition-less func/proc/entity, same as declare.
		return nil
	}
	up := &unitParser{parser: p, u: u, values: map[string]ids.Value{}, blocks: map[string]ids.Block{}}
	// Bind the named signature ports onto the values unit.New already
	// allocated for them (Inputs, then Outputs for non-Function kinds),
	// so the body can reference them as ordinary locals.
	for i, param := range sig.Inputs {
		if param.Name != "" {
			up.values[param.Name] = u.ArgValues[i]
		}
	}
	if kind != unit.KindFunction {
		for i, param := range sig.Outputs {
			if param.Name != "" {
				up.values[param.Name] = u.ArgValues[len(sig.Inputs)+i]
			}
		}
	}
	return up.parseBody()
}

func (p *parser) parseSignature(kind unit.Kind) (unit.Signature, error) {
	var sig unit.Signature
	if _, err := p.expectText("("); err != nil {
		return sig, err
	}
	for p.peek().Text != ")" {
		arg, err := p.parseTypedArg()
		if err != nil {
			return sig, err
		}
		sig.Inputs = append(sig.Inputs, arg)
		if p.peek().Text == "," {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expectText(")"); err != nil {
		return sig, err
	}

	if p.peek().Text == "->" {
		p.next()
		if _, err := p.expectText("("); err != nil {
			return sig, err
		}
		for p.peek().Text != ")" {
			arg, err := p.parseTypedArg()
			if err != nil {
				return sig, err
			}
			sig.Outputs = append(sig.Outputs, arg)
			if p.peek().Text == "," {
				p.next()
				continue
			}
			break
		}
		if _, err := p.expectText(")"); err != nil {
			return sig, err
		}
	}

	if kind == unit.KindFunction && p.peek().Text != "{" && p.peek().Kind != "EOF" {
		// A return type follows for func/declare unless the next token
		// already opens the body or ends the module.
		if p.peek().Text != "}" {
			rt, err := p.parseType()
			if err != nil {
				return sig, err
			}
			sig.ReturnType = rt
		}
	}
	if sig.ReturnType == nil && kind == unit.KindFunction {
		sig.ReturnType = types.Void{}
	}
	return sig, nil
}

func (p *parser) parseTypedArg() (unit.Param, error) {
	t, err := p.parseType()
	if err != nil {
		return unit.Param{}, err
	}
	name := ""
	if p.peek().Kind == "Local" {
		name = localName(p.next())
	}
	return unit.Param{Name: name, Type: t}, nil
}

// --- types ---

func (p *parser) parseType() (types.Type, error) {
	base, err := p.parseTypeHead()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Text {
		case "*":
			p.next()
			base = types.Pointer{Inner: base}
		case "$":
			p.next()
			base = types.Signal{Inner: base}
		default:
			return p.types.Intern(base), nil
		}
	}
}

func (p *parser) parseTypeHead() (types.Type, error) {
	t := p.peek()
	switch {
	case t.Text == "void":
		p.next()
		return types.Void{}, nil
	case t.Text == "time":
		p.next()
		return types.Time{}, nil
	case t.Kind == "Ident" && strings.HasPrefix(t.Text, "i") && isAllDigits(t.Text[1:]):
		p.next()
		w, _ := strconv.ParseUint(t.Text[1:], 10, 32)
		return types.Int{Width: uint32(w)}, nil
	case t.Kind == "Ident" && strings.HasPrefix(t.Text, "n") && isAllDigits(t.Text[1:]):
		p.next()
		c, _ := strconv.ParseUint(t.Text[1:], 10, 32)
		return types.Enum{Cardinality: uint32(c)}, nil
	case t.Text == "[":
		return p.parseArrayType()
	case t.Text == "{":
		return p.parseStructType()
	default:
		return nil, p.errorf("expected a type, got %q", t.Text)
	}
}

func (p *parser) parseArrayType() (types.Type, error) {
	p.next() // "["
	lenTok, err := p.expectKind("Integer")
	if err != nil {
		return nil, err
	}
	n, _ := strconv.ParseUint(lenTok.Text, 10, 32)
	if _, err := p.expectText("x"); err != nil {
		return nil, err
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectText("]"); err != nil {
		return nil, err
	}
	return types.Array{Length: uint32(n), Element: elem}, nil
}

func (p *parser) parseStructType() (types.Type, error) {
	p.next() // "{"
	var fields []types.Type
	for p.peek().Text != "}" {
		f, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if p.peek().Text == "," {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expectText("}"); err != nil {
		return nil, err
	}
	return types.Struct{Fields: fields}, nil
}

// localName strips the leading '%' sigil from a Local token, the bare
// form internal/dfg.ValueData.Name and internal/unit.Param.Name store
// (spec.md §6 "name := ... %ident -- local / ssa").
func localName(t token) string { return strings.TrimPrefix(t.Text, "%") }

// globalName strips the leading '@' sigil from a Global token, the bare
// form internal/unit.Unit.Name and internal/dfg.Extern.Name store — the
// writer re-adds the sigil on output, so the stored name must not carry
// it already (the "@name" form round-trips through expectKind("Global")
// verbatim otherwise, doubling up as "@@name").
func globalName(t token) string { return strings.TrimPrefix(t.Text, "@") }

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// --- time literals ---

var timeUnitScale = map[string]int64{"s": 0, "ms": 3, "us": 6, "ns": 9, "ps": 12, "fs": 15}

func parseTimeLiteral(numText string) (*big.Rat, error) {
	// "s" goes last: it is a suffix of every other unit.
	for _, suffix := range []string{"ms", "us", "ns", "ps", "fs", "s"} {
		if strings.HasSuffix(numText, suffix) {
			numPart := strings.TrimSuffix(numText, suffix)
			r, ok := new(big.Rat).SetString(numPart)
			if !ok {
				return nil, fmt.Errorf("malformed time literal %q", numText)
			}
			exp := timeUnitScale[suffix]
			if exp == 0 {
				return r, nil
			}
			scale := new(big.Rat).SetFrac(big.NewInt(1), pow10(exp))
			return r.Mul(r, scale), nil
		}
	}
	return nil, fmt.Errorf("unrecognized time unit in %q", numText)
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func (p *parser) parseTimeValue() (types.TimeValue, error) {
	numTok, err := p.expectKind("TimeNum")
	if err != nil {
		return types.TimeValue{}, err
	}
	real, err := parseTimeLiteral(numTok.Text)
	if err != nil {
		return types.TimeValue{}, p.errorf("%s", err)
	}
	var delta, epsilon int64
	if p.peek().Kind == "DeltaNum" {
		d := p.next()
		n, _ := strconv.ParseInt(strings.TrimSuffix(d.Text, "d"), 10, 64)
		delta = n
	}
	if p.peek().Kind == "EpsilonNum" {
		e := p.next()
		n, _ := strconv.ParseInt(strings.TrimSuffix(e.Text, "e"), 10, 64)
		epsilon = n
	}
	return types.TimeValue{Real: real, Delta: delta, Epsilon: epsilon}, nil
}

func (p *parser) parseIntLiteral() (*big.Int, error) {
	t := p.peek()
	switch t.Kind {
	case "HexInt":
		p.next()
		v := new(big.Int)
		v.SetString(t.Text[2:], 16)
		return v, nil
	case "Integer":
		p.next()
		v := new(big.Int)
		v.SetString(t.Text, 10)
		return v, nil
	default:
		return nil, p.errorf("expected an integer literal, got %q", t.Text)
	}
}
