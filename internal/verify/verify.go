// Package verify implements the one-pass structural and semantic
// invariant checker from spec.md §4.3: every builder and pass is expected
// to invoke it, and it always collects every violation instead of
// stopping at the first (spec.md §7 "never partial").
package verify

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/module"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// entityForbidden is the opcode set rejected inside an Entity body.
// Everything else is permitted: continuous assignments, signal
// allocation, instantiation, the reg storage element Desequentialization
// introduces, and any pure combinational op whose result feeds them
// (spec.md §4 "Entity").
var entityForbidden = map[dfg.Opcode]bool{
	dfg.OpVar: true, dfg.OpLoad: true, dfg.OpStore: true, dfg.OpCall: true,
	dfg.OpBr: true, dfg.OpBrCond: true, dfg.OpRet: true, dfg.OpRetValue: true,
	dfg.OpPhi: true, dfg.OpHalt: true, dfg.OpWait: true, dfg.OpWaitTime: true,
}

var functionForbidden = map[dfg.Opcode]bool{
	dfg.OpSig: true, dfg.OpPrb: true, dfg.OpDrv: true, dfg.OpDrvCond: true, dfg.OpReg: true,
	dfg.OpWait: true, dfg.OpWaitTime: true, dfg.OpHalt: true, dfg.OpCon: true, dfg.OpInstantiate: true,
}

var processForbidden = map[dfg.Opcode]bool{
	dfg.OpCon: true, dfg.OpInstantiate: true,
}

// Unit verifies a single unit in isolation; Module runs Unit over every
// unit in m. Neither checks call/inst extern signatures against their
// targets: module.Link does that.
func Unit(u *unit.Unit) error {
	v := &verifier{u: u}
	v.checkSignature()
	v.checkForbiddenOpcodes()
	v.checkLayout()
	v.checkReachability()
	v.checkDanglingUses()
	v.checkDominance()
	v.checkPhis()
	v.checkSignalDiscipline()
	v.checkInstTypes()
	return v.errs.ErrorOrNil()
}

// Module verifies every unit in m.
func Module(m *module.Module) error {
	var errs *multierror.Error
	for _, u := range m.Units() {
		if err := Unit(u); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("unit %q: %w", u.Name, err))
		}
	}
	return errs.ErrorOrNil()
}

type verifier struct {
	u    *unit.Unit
	errs *multierror.Error
}

func (v *verifier) fail(format string, args ...interface{}) {
	v.errs = multierror.Append(v.errs, fmt.Errorf(format, args...))
}

func (v *verifier) checkSignature() {
	u := v.u
	wantArgs := len(u.Sig.Inputs)
	if u.Kind != unit.KindFunction {
		wantArgs += len(u.Sig.Outputs)
	}
	if len(u.ArgValues) != wantArgs {
		v.fail("signature has %d ports but unit has %d initial argument values", wantArgs, len(u.ArgValues))
		return
	}
	for i, p := range u.Sig.Inputs {
		got := u.DFG.ValueType(u.ArgValues[i])
		if !types.Equal(got, p.Type) {
			v.fail("argument %d: signature declares %s, value has type %s", i, p.Type, got)
		}
	}
	if u.Kind != unit.KindFunction {
		for i, p := range u.Sig.Outputs {
			got := u.DFG.ValueType(u.ArgValues[len(u.Sig.Inputs)+i])
			if !types.Equal(got, p.Type) {
				v.fail("output %d: signature declares %s, value has type %s", i, p.Type, got)
			}
		}
	}
	if u.Kind == unit.KindFunction && u.Sig.ReturnType == nil {
		v.fail("function signature must declare a return type")
	}
}

func (v *verifier) forbiddenSet() map[dfg.Opcode]bool {
	switch v.u.Kind {
	case unit.KindFunction:
		return functionForbidden
	case unit.KindProcess:
		return processForbidden
	case unit.KindEntity:
		return entityForbidden
	default:
		return nil
	}
}

func (v *verifier) checkForbiddenOpcodes() {
	forbidden := v.forbiddenSet()
	for _, b := range v.u.CFG.Blocks() {
		for _, i := range v.u.CFG.InstsIn(b) {
			op := v.u.DFG.Inst(i).Opcode
			if forbidden[op] {
				v.fail("%s %q: opcode %s is not permitted in a %s body", v.u.Kind, v.u.Name, op, v.u.Kind)
			}
		}
	}
}

// checkLayout verifies every block ends in exactly one terminator, in
// the last position, and every other instruction is non-terminal.
func (v *verifier) checkLayout() {
	for _, b := range v.u.CFG.Blocks() {
		insts := v.u.CFG.InstsIn(b)
		if v.u.Kind == unit.KindEntity {
			// Entities have no terminator concept: the single synthetic
			// block is just a flat list of continuous assignments and
			// combinational ops (spec.md §3).
			continue
		}
		if len(insts) == 0 {
			v.fail("block %s is empty: every block must end in a terminator", v.u.CFG.Label(b))
			continue
		}
		for idx, i := range insts {
			op := v.u.DFG.Inst(i).Opcode
			isLast := idx == len(insts)-1
			if dfg.IsTerminator(op) && !isLast {
				v.fail("block %s: terminator %s appears before the end of the block", v.u.CFG.Label(b), op)
			}
			if !dfg.IsTerminator(op) && isLast {
				v.fail("block %s: last instruction %s is not a terminator", v.u.CFG.Label(b), op)
			}
		}
		if v.u.Kind == unit.KindProcess {
			term := insts[len(insts)-1]
			op := v.u.DFG.Inst(term).Opcode
			if len(v.u.CFG.Successors(v.u.DFG, b)) == 0 {
				if op != dfg.OpHalt && op != dfg.OpWait && op != dfg.OpWaitTime {
					v.fail("block %s: process terminal path must end in halt or wait, found %s", v.u.CFG.Label(b), op)
				}
			}
		}
		if v.u.Kind == unit.KindFunction {
			term := insts[len(insts)-1]
			op := v.u.DFG.Inst(term).Opcode
			if op != dfg.OpBr && op != dfg.OpBrCond && op != dfg.OpRet && op != dfg.OpRetValue {
				v.fail("block %s: function block must end in br, ret, or ret_value, found %s", v.u.CFG.Label(b), op)
			}
		}
	}
}

func (v *verifier) checkReachability() {
	entry, ok := v.u.CFG.EntryBlock()
	if !ok {
		return
	}
	reached := map[ids.Block]bool{entry: true}
	stack := []ids.Block{entry}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range v.u.CFG.Successors(v.u.DFG, b) {
			if !reached[s] {
				reached[s] = true
				stack = append(stack, s)
			}
		}
	}
	for _, b := range v.u.CFG.Blocks() {
		if !reached[b] {
			v.fail("block %s is unreachable from the entry block", v.u.CFG.Label(b))
		}
	}
}

// checkDanglingUses flags any operand reference to a value whose
// producing instruction was removed without the consumer also being
// removed, per spec.md §3's "Lifecycle" invariant.
func (v *verifier) checkDanglingUses() {
	visit := func(vals []ids.Value, context string) {
		for _, val := range vals {
			if !val.IsValid() {
				v.fail("%s: use of INVALID_VALUE, consumer was not removed with its operand's defining instruction", context)
				continue
			}
			info := v.u.DFG.ValueInfo(val)
			if info.Producer.Kind == dfg.ProducerInvalid {
				v.fail("%s: use of a value whose defining instruction was removed", context)
			}
		}
	}
	for _, b := range v.u.CFG.Blocks() {
		for _, i := range v.u.CFG.InstsIn(b) {
			data := v.u.DFG.Inst(i)
			visit(data.Args, fmt.Sprintf("inst %s in block %s", data.Opcode, v.u.CFG.Label(b)))
		}
	}
}

// checkDominance computes a conservative iterative dominator set,
// independent of the incremental CHK dominator tree internal/analysis
// builds for pass use, and checks that every function/process operand
// use is dominated by its definition (spec.md §8 "Dominance").
func (v *verifier) checkDominance() {
	if v.u.Kind == unit.KindEntity {
		return // any value of the same unit may be used anywhere
	}
	blocks := v.u.CFG.Blocks()
	entry, ok := v.u.CFG.EntryBlock()
	if !ok {
		return
	}
	all := map[ids.Block]bool{}
	for _, b := range blocks {
		all[b] = true
	}
	dom := map[ids.Block]map[ids.Block]bool{}
	for _, b := range blocks {
		dom[b] = map[ids.Block]bool{}
		for o := range all {
			dom[b][o] = true
		}
	}
	dom[entry] = map[ids.Block]bool{entry: true}

	changed := true
	for changed {
		changed = false
		for _, b := range blocks {
			if b == entry {
				continue
			}
			preds := v.u.CFG.Predecessors(v.u.DFG, b)
			var newDom map[ids.Block]bool
			for _, p := range preds {
				if newDom == nil {
					newDom = map[ids.Block]bool{}
					for o := range dom[p] {
						newDom[o] = true
					}
					continue
				}
				for o := range newDom {
					if !dom[p][o] {
						delete(newDom, o)
					}
				}
			}
			if newDom == nil {
				newDom = map[ids.Block]bool{}
			}
			newDom[b] = true
			if !sameSet(newDom, dom[b]) {
				dom[b] = newDom
				changed = true
			}
		}
	}

	blockIndex := map[ids.Block]int{}
	for i, b := range blocks {
		blockIndex[b] = i
	}
	instBlock := map[ids.Inst]ids.Block{}
	instPos := map[ids.Inst]int{}
	for _, b := range blocks {
		for pos, i := range v.u.CFG.InstsIn(b) {
			instBlock[i] = b
			instPos[i] = pos
		}
	}

	checkUse := func(useBlock ids.Block, usePos int, val ids.Value, phi bool, fromBlock ids.Block) {
		if !val.IsValid() {
			return
		}
		info := v.u.DFG.ValueInfo(val)
		switch info.Producer.Kind {
		case dfg.ProducerArg:
			return // arguments dominate every block
		case dfg.ProducerInst:
			defBlock, ok := instBlock[info.Producer.Inst]
			if !ok {
				return // removed; reported by checkDanglingUses
			}
			if phi {
				// A phi operand is observed as of the named predecessor's
				// exit, not the phi's own position (spec.md §5 "phi reads
				// observe values... after the predecessor's terminator").
				if !dom[fromBlock][defBlock] {
					v.fail("phi operand from block %s: definition does not dominate that predecessor", v.u.CFG.Label(fromBlock))
				}
				return
			}
			if defBlock == useBlock {
				if instPos[info.Producer.Inst] >= usePos {
					v.fail("block %s: operand defined at or after its use (SSA dominance violation)", v.u.CFG.Label(useBlock))
				}
				return
			}
			if !dom[useBlock][defBlock] {
				v.fail("block %s: operand's defining block %s does not dominate the use", v.u.CFG.Label(useBlock), v.u.CFG.Label(defBlock))
			}
		}
	}

	for _, b := range blocks {
		for pos, i := range v.u.CFG.InstsIn(b) {
			data := v.u.DFG.Inst(i)
			if data.Opcode == dfg.OpPhi {
				for idx, val := range data.Args {
					checkUse(b, pos, val, true, data.Blocks[idx])
				}
				continue
			}
			for _, val := range data.Args {
				checkUse(b, pos, val, false, 0)
			}
		}
	}
}

func sameSet(a, b map[ids.Block]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// checkPhis verifies every phi's incoming-block set equals the block's
// actual CFG predecessor set (spec.md §4.3).
func (v *verifier) checkPhis() {
	for _, b := range v.u.CFG.Blocks() {
		preds := map[ids.Block]bool{}
		for _, p := range v.u.CFG.Predecessors(v.u.DFG, b) {
			preds[p] = true
		}
		for _, i := range v.u.CFG.InstsIn(b) {
			data := v.u.DFG.Inst(i)
			if data.Opcode != dfg.OpPhi {
				continue
			}
			seen := map[ids.Block]bool{}
			for _, pb := range data.Blocks {
				seen[pb] = true
				if !preds[pb] {
					v.fail("phi in block %s: incoming block %s is not a real predecessor", v.u.CFG.Label(b), v.u.CFG.Label(pb))
				}
			}
			for p := range preds {
				if !seen[p] {
					v.fail("phi in block %s: missing incoming edge from predecessor %s", v.u.CFG.Label(b), v.u.CFG.Label(p))
				}
			}
		}
	}
}

// checkInstTypes verifies each instruction's result type is the one its
// opcode computes from its operand types: binary arithmetic and shifts
// preserve the (shared) operand type, comparisons produce i1, mux
// produces its branch type, prb strips one Signal layer, load strips a
// Pointer, drv's value matches the driven signal's element type.
func (v *verifier) checkInstTypes() {
	d := v.u.DFG
	argType := func(data dfg.InstData, i int) types.Type {
		if i >= len(data.Args) || !data.Args[i].IsValid() {
			return nil
		}
		return d.ValueType(data.Args[i])
	}
	for _, b := range v.u.CFG.Blocks() {
		for _, i := range v.u.CFG.InstsIn(b) {
			data := d.Inst(i)
			op := data.Opcode
			ctx := fmt.Sprintf("block %s: %s", v.u.CFG.Label(b), op)
			switch {
			case isBinaryArith(op):
				lhs, rhs := argType(data, 0), argType(data, 1)
				if lhs == nil || rhs == nil {
					continue
				}
				// A shift amount may be narrower than the shifted value;
				// every other binary op is homogeneous.
				if op != dfg.OpShl && op != dfg.OpShr && !types.Equal(lhs, rhs) {
					v.fail("%s: operand types %s and %s differ", ctx, lhs, rhs)
				}
				if !types.Equal(data.Type, lhs) {
					v.fail("%s: result type %s does not match operand type %s", ctx, data.Type, lhs)
				}
			case isComparison(op):
				lhs, rhs := argType(data, 0), argType(data, 1)
				if lhs != nil && rhs != nil && !types.Equal(lhs, rhs) {
					v.fail("%s: operand types %s and %s differ", ctx, lhs, rhs)
				}
				if !types.Equal(data.Type, types.Int{Width: 1}) {
					v.fail("%s: comparison result must be i1, got %s", ctx, data.Type)
				}
			case op == dfg.OpMux:
				a, c := argType(data, 1), argType(data, 2)
				if a != nil && c != nil && !types.Equal(a, c) {
					v.fail("%s: branch types %s and %s differ", ctx, a, c)
				}
				if a != nil && !types.Equal(data.Type, a) {
					v.fail("%s: result type %s does not match branch type %s", ctx, data.Type, a)
				}
			case op == dfg.OpPrb:
				if st, ok := argType(data, 0).(types.Signal); ok {
					if !types.Equal(data.Type, st.Inner) {
						v.fail("%s: result type %s does not match probed signal element %s", ctx, data.Type, st.Inner)
					}
				} else if argType(data, 0) != nil {
					v.fail("%s: operand is not Signal-typed", ctx)
				}
			case op == dfg.OpLoad:
				if pt, ok := argType(data, 0).(types.Pointer); ok {
					if !types.Equal(data.Type, pt.Inner) {
						v.fail("%s: result type %s does not match pointee %s", ctx, data.Type, pt.Inner)
					}
				} else if argType(data, 0) != nil {
					v.fail("%s: operand is not Pointer-typed", ctx)
				}
			case op == dfg.OpDrv || op == dfg.OpDrvCond:
				st, ok := argType(data, 0).(types.Signal)
				if !ok {
					if argType(data, 0) != nil {
						v.fail("%s: drive target is not Signal-typed", ctx)
					}
					continue
				}
				if val := argType(data, 1); val != nil && !types.Equal(val, st.Inner) {
					v.fail("%s: driven value type %s does not match signal element %s", ctx, val, st.Inner)
				}
			}
		}
	}
}

func isBinaryArith(op dfg.Opcode) bool {
	switch op {
	case dfg.OpAdd, dfg.OpSub, dfg.OpAnd, dfg.OpOr, dfg.OpXor,
		dfg.OpUmul, dfg.OpSmul, dfg.OpUdiv, dfg.OpSdiv,
		dfg.OpUmod, dfg.OpSmod, dfg.OpUrem, dfg.OpSrem,
		dfg.OpShl, dfg.OpShr:
		return true
	}
	return false
}

func isComparison(op dfg.Opcode) bool {
	switch op {
	case dfg.OpEq, dfg.OpNeq, dfg.OpUlt, dfg.OpUgt, dfg.OpUle, dfg.OpUge,
		dfg.OpSlt, dfg.OpSgt, dfg.OpSle, dfg.OpSge:
		return true
	}
	return false
}

// checkSignalDiscipline verifies Signal-typed values only appear in
// process/entity units and are only produced by sig or forwarded from a
// signature argument (spec.md §3).
func (v *verifier) checkSignalDiscipline() {
	isSignalProducer := func(val ids.Value) bool {
		info := v.u.DFG.ValueInfo(val)
		if info.Producer.Kind == dfg.ProducerArg {
			return true
		}
		if info.Producer.Kind == dfg.ProducerInst {
			op := v.u.DFG.Inst(info.Producer.Inst).Opcode
			return op == dfg.OpSig || op == dfg.OpReg
		}
		return false
	}
	for _, b := range v.u.CFG.Blocks() {
		for _, i := range v.u.CFG.InstsIn(b) {
			data := v.u.DFG.Inst(i)
			if data.Result.IsValid() {
				if _, isSig := v.u.DFG.ValueType(data.Result).(types.Signal); isSig {
					if v.u.Kind == unit.KindFunction {
						v.fail("function %q produces a Signal-typed value, which is forbidden", v.u.Name)
					}
					if !isSignalProducer(data.Result) {
						v.fail("Signal-typed value produced by %s, must come from sig/reg or a signature argument", data.Opcode)
					}
				}
			}
		}
	}
}
