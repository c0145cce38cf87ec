package sim

import (
	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// evalEntity re-evaluates an entity instance's entire body in layout
// order. Entities are flat, branch-free dataflow graphs (the verifier
// forbids var/load/store/br/wait inside one), so a single linear pass
// in instruction order always respects operand-before-use ordering.
// Drives and continuous assignments never take effect within this same
// pass: they queue an event that a later step of the run loop applies,
// at the current time triple when the delay is zero.
func (e *Engine) evalEntity(inst *Instance) {
	u := inst.Unit
	b := u.SingleBlock()
	for _, i := range u.CFG.InstsIn(b) {
		data := u.DFG.Inst(i)
		e.execStraightLine(inst, data)
	}
}

// execStraightLine evaluates one non-terminator instruction, used by
// both entity bodies and the interior of a process block.
func (e *Engine) execStraightLine(inst *Instance, data dfg.InstData) {
	u := inst.Unit
	switch data.Opcode {
	case dfg.OpSig:
		// Already bound during elaboration.
	case dfg.OpPrb:
		sigId := inst.Signals[data.Args[0]]
		inst.Env[data.Result] = e.Signals[sigId].Value
	case dfg.OpDrv:
		sigId := inst.Signals[data.Args[0]]
		v := e.val(inst, data.Args[1])
		e.schedule(&Event{Time: addDelay(e.Now, data.Imm.Time), Kind: EventDrive, Signal: sigId, Value: v, Instance: inst.ID})
	case dfg.OpDrvCond:
		cond := e.val(inst, data.Args[2])
		if isTrue(cond) {
			sigId := inst.Signals[data.Args[0]]
			v := e.val(inst, data.Args[1])
			e.schedule(&Event{Time: addDelay(e.Now, data.Imm.Time), Kind: EventDrive, Signal: sigId, Value: v, Instance: inst.ID})
		}
	case dfg.OpReg:
		clk := e.val(inst, data.Args[1])
		prev := inst.RegEdge[data.Result]
		if isEdge(data.Imm.EdgeKind, prev, clk) {
			sigId := inst.Signals[data.Result]
			v := e.val(inst, data.Args[0])
			e.schedule(&Event{Time: addDelay(e.Now, types.DefaultDriveDelay()), Kind: EventDrive, Signal: sigId, Value: v, Instance: inst.ID})
		}
		inst.RegEdge[data.Result] = clk
	case dfg.OpCon:
		// Con's source is commonly itself a Signal (a direct structural
		// connection between two nets, e.g. wiring a `reg` straight onto
		// an output port) rather than a computed value, so it is read
		// like a `prb` rather than looked up in Env.
		sigId := inst.Signals[data.Args[1]]
		v := e.signalOrVal(inst, data.Args[0])
		e.schedule(&Event{Time: addDelay(e.Now, types.DefaultDriveDelay()), Kind: EventDrive, Signal: sigId, Value: v, Instance: inst.ID})
	case dfg.OpInstantiate:
		// Children run independently; nothing to do per re-evaluation.
	case dfg.OpVar:
		inst.Vars[data.Result] = zeroOf(data.Type.(types.Pointer).Inner)
	case dfg.OpLoad:
		inst.Env[data.Result] = inst.Vars[data.Args[0]]
	case dfg.OpStore:
		inst.Vars[data.Args[0]] = e.val(inst, data.Args[1])
	case dfg.OpCall:
		ext := u.DFG.Extern(data.Ext)
		if !ext.IsResolved {
			inst.Env[data.Result] = types.Poison("unresolved extern " + ext.Name)
			return
		}
		target := e.Module.Unit(ext.Resolved)
		args := make([]types.Const, len(data.Args))
		for i, a := range data.Args {
			args[i] = e.val(inst, a)
		}
		inst.Env[data.Result] = e.callFunction(target, args)
	default:
		inst.Env[data.Result] = e.evalPure(inst, data)
	}
}

// evalPure computes a side-effect-free instruction's result from already
// computed operand values.
func (e *Engine) evalPure(inst *Instance, data dfg.InstData) types.Const {
	switch data.Opcode {
	case dfg.OpConstInt:
		return types.NewInt(data.Type.(types.Int).Width, data.Imm.Int)
	case dfg.OpConstTime:
		return types.Const{Kind: types.ConstTimeVal, Time: data.Imm.Time}
	case dfg.OpAlias:
		return e.val(inst, data.Args[0])
	case dfg.OpArray:
		elems := make([]types.Const, len(data.Args))
		for i, a := range data.Args {
			elems[i] = e.val(inst, a)
		}
		return types.Const{Kind: types.ConstArray, Elems: elems}
	case dfg.OpStruct:
		elems := make([]types.Const, len(data.Args))
		for i, a := range data.Args {
			elems[i] = e.val(inst, a)
		}
		return types.Const{Kind: types.ConstStruct, Elems: elems}
	case dfg.OpExtf:
		agg := e.val(inst, data.Args[0])
		if agg.IsPoison() || data.Imm.FieldIndex >= len(agg.Elems) {
			return types.Poison("field extract out of bounds")
		}
		return agg.Elems[data.Imm.FieldIndex]
	case dfg.OpInsf:
		agg := e.val(inst, data.Args[0])
		if agg.IsPoison() || data.Imm.FieldIndex >= len(agg.Elems) {
			return types.Poison("field insert out of bounds")
		}
		out := append([]types.Const(nil), agg.Elems...)
		out[data.Imm.FieldIndex] = e.val(inst, data.Args[1])
		return types.Const{Kind: agg.Kind, Elems: out}
	case dfg.OpExts:
		agg := e.val(inst, data.Args[0])
		idx := e.val(inst, data.Args[1])
		if agg.IsPoison() || idx.IsPoison() || !idx.Int.IsInt64() {
			return types.Poison("index extract invalid index")
		}
		n := int(idx.Int.Int64())
		if n < 0 || n >= len(agg.Elems) {
			return types.Poison("index extract out of bounds")
		}
		return agg.Elems[n]
	case dfg.OpInss:
		agg := e.val(inst, data.Args[0])
		idx := e.val(inst, data.Args[1])
		if agg.IsPoison() || idx.IsPoison() || !idx.Int.IsInt64() {
			return types.Poison("index insert invalid index")
		}
		n := int(idx.Int.Int64())
		if n < 0 || n >= len(agg.Elems) {
			return types.Poison("index insert out of bounds")
		}
		out := append([]types.Const(nil), agg.Elems...)
		out[n] = e.val(inst, data.Args[2])
		return types.Const{Kind: agg.Kind, Elems: out}
	case dfg.OpMux:
		sel := e.val(inst, data.Args[0])
		if isTrue(sel) {
			return e.val(inst, data.Args[1])
		}
		return e.val(inst, data.Args[2])
	case dfg.OpNeg, dfg.OpNot:
		return types.EvalUnary(unaryOpName[data.Opcode], e.val(inst, data.Args[0]))
	default:
		if name, ok := binaryOpName[data.Opcode]; ok {
			return types.EvalBinary(name, e.val(inst, data.Args[0]), e.val(inst, data.Args[1]))
		}
		return types.Poison("unhandled opcode " + data.Opcode.String())
	}
}

// val resolves an operand to its current runtime value. Signal- and
// Pointer-typed operands are never stored in Env (they are tracked via
// Signals/Vars instead), so this is only ever called for Int/Time/Enum/
// Array/Struct-typed operands.
func (e *Engine) val(inst *Instance, v ids.Value) types.Const {
	if c, ok := inst.Env[v]; ok {
		return c
	}
	return types.Poison("value never computed")
}

// signalOrVal resolves v whether it names a Signal (read its current
// value, as `prb` would) or an ordinary computed value (read from Env).
func (e *Engine) signalOrVal(inst *Instance, v ids.Value) types.Const {
	if sigId, ok := inst.Signals[v]; ok {
		return e.Signals[sigId].Value
	}
	return e.val(inst, v)
}

// runProcess executes a process instance from its current resume point
// until it suspends (wait/wait_time) or halts. Waking first clears the
// instance out of every signal's waiter set: the sensitivity list of
// the wait it suspends at next may name entirely different signals.
func (e *Engine) runProcess(inst *Instance) {
	u := inst.Unit
	e.mu.Lock()
	for _, sig := range e.Signals {
		delete(sig.Waiters, inst.ID)
	}
	e.mu.Unlock()
	inst.state = stateRunning
	for {
		insts := u.CFG.InstsIn(inst.block)
		for _, i := range insts {
			data := u.DFG.Inst(i)
			if data.Opcode == dfg.OpPhi {
				inst.Env[data.Result] = e.resolvePhi(inst, data)
				continue
			}
			if dfg.IsTerminator(data.Opcode) {
				done := e.execTerminator(inst, data, inst.block)
				if done {
					return
				}
				break
			}
			e.execStraightLine(inst, data)
		}
	}
}

func (e *Engine) resolvePhi(inst *Instance, data dfg.InstData) types.Const {
	for i, b := range data.Blocks {
		if b == inst.prev {
			return e.val(inst, data.Args[i])
		}
	}
	return types.Poison("phi has no incoming edge for predecessor")
}

// execTerminator applies a block terminator's effect. It returns true
// when the instance has suspended or halted (the outer run loop should
// stop), false when it rewrote inst.block/inst.prev to continue running
// within the same call.
func (e *Engine) execTerminator(inst *Instance, data dfg.InstData, prevBlock ids.Block) bool {
	u := inst.Unit
	switch data.Opcode {
	case dfg.OpBr:
		inst.prev, inst.block = prevBlock, data.Blocks[0]
		return false
	case dfg.OpBrCond:
		cond := e.val(inst, data.Args[0])
		inst.prev = prevBlock
		if isTrue(cond) {
			inst.block = data.Blocks[0]
		} else {
			inst.block = data.Blocks[1]
		}
		return false
	case dfg.OpWait:
		e.mu.Lock()
		for _, s := range data.Args {
			t := u.DFG.ValueType(s)
			if _, isSig := t.(types.Signal); !isSig {
				continue // the trailing timeout operand, if present
			}
			if sigId, ok := inst.Signals[s]; ok {
				e.Signals[sigId].Waiters[inst.ID] = true
			}
		}
		e.mu.Unlock()
		if data.Imm.HasTimeout {
			timeout := e.val(inst, data.Args[len(data.Args)-1])
			if timeout.Kind == types.ConstTimeVal {
				e.schedule(&Event{Time: addDelay(e.Now, timeout.Time), Kind: EventResume, Instance: inst.ID})
			}
		}
		inst.block = data.Blocks[0]
		inst.state = stateSuspended
		return true
	case dfg.OpWaitTime:
		e.schedule(&Event{Time: addDelay(e.Now, data.Imm.Time), Kind: EventResume, Instance: inst.ID})
		inst.block = data.Blocks[0]
		inst.state = stateSuspended
		return true
	case dfg.OpHalt:
		inst.state = stateHalted
		return true
	default:
		inst.state = stateHalted
		return true
	}
}

// callFunction evaluates a pure Function unit to completion given
// concrete argument values. Functions forbid wait/halt/signals (the
// verifier's functionForbidden set), so this always runs straight
// through to a ret/ret_value.
func (e *Engine) callFunction(u *unit.Unit, args []types.Const) types.Const {
	callee := newInstance(-1, nil, u)
	for i, arg := range u.ArgValues {
		callee.Env[arg] = args[i]
	}
	block, ok := u.CFG.EntryBlock()
	if !ok {
		return types.Poison("call to declaration-only function")
	}
	callee.block = block
	for {
		insts := u.CFG.InstsIn(callee.block)
		var result types.Const
		halted := false
		for _, i := range insts {
			data := u.DFG.Inst(i)
			switch data.Opcode {
			case dfg.OpPhi:
				callee.Env[data.Result] = e.resolvePhi(callee, data)
			case dfg.OpBr:
				callee.prev, callee.block = callee.block, data.Blocks[0]
			case dfg.OpBrCond:
				cond := e.val(callee, data.Args[0])
				callee.prev = callee.block
				if isTrue(cond) {
					callee.block = data.Blocks[0]
				} else {
					callee.block = data.Blocks[1]
				}
			case dfg.OpRet:
				return types.Const{Kind: types.ConstInt, Width: 0}
			case dfg.OpRetValue:
				result = e.val(callee, data.Args[0])
				halted = true
			default:
				e.execStraightLine(callee, data)
			}
		}
		if halted {
			return result
		}
	}
}
