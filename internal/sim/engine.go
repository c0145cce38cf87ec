package sim

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"llhd/internal/dfg"
	"llhd/internal/diag"
	"llhd/internal/ids"
	"llhd/internal/module"
	"llhd/internal/types"
	"llhd/internal/unit"
)

var log = diag.NewLogger("sim")

// Engine holds one elaborated simulation run: the flattened signal and
// instance tables built by recursively instantiating the top unit, the
// pending-event queue, and the current simulation time.
type Engine struct {
	Module    *module.Module
	Signals   []*Signal
	Instances []*Instance
	Queue     *EventQueue
	Now       types.TimeValue
	Tracer    Tracer

	// Warnings accumulates every drive conflict observed so far: two
	// drives to the same signal at the same instant with different
	// values. The later drive in canonical order wins; the conflict is
	// recorded here (and logged) rather than only written to a stream,
	// so callers can assert on it directly.
	Warnings []DriveConflict

	sequential bool
	workers    int
	mu         sync.Mutex // guards Queue pushes and Waiters edits during a parallel wake
}

// DriveConflict records one same-instant drive collision on a signal.
type DriveConflict struct {
	Time   types.TimeValue
	Signal SignalId
	Lost   types.Const // the overwritten value
	Won    types.Const // the value that took effect (last in canonical order)
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithTracer attaches t before the first Run call.
func WithTracer(t Tracer) EngineOption {
	return func(e *Engine) { e.Tracer = t }
}

// Sequential disables parallel instance dispatch within a delta cycle,
// the simulator's --sequential mode: runs become bit-identical across
// repeats at the cost of single-core execution.
func Sequential() EngineOption {
	return func(e *Engine) { e.sequential = true }
}

// WithWorkers caps the number of instances executing concurrently
// within one delta cycle. Defaults to GOMAXPROCS.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine elaborates topName (which must be a Process or Entity unit)
// into a running instance tree and returns an engine ready to Run.
func NewEngine(m *module.Module, topName string, opts ...EngineOption) (*Engine, error) {
	id, ok := m.Lookup(topName)
	if !ok {
		return nil, fmt.Errorf("sim: no unit named %q", topName)
	}
	top := m.Unit(id)
	if top.Kind == unit.KindFunction {
		return nil, fmt.Errorf("sim: %q is a function, not an instantiable top-level unit", topName)
	}
	e := &Engine{Queue: NewEventQueue(), Now: types.ZeroTime(), Module: m, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(e)
	}
	root := e.instantiate(top, topName, nil, nil)
	e.initialize(root)
	return e, nil
}

// schedule pushes ev onto the event queue; safe to call from instances
// running concurrently within one delta cycle.
func (e *Engine) schedule(ev *Event) {
	e.mu.Lock()
	e.Queue.Push(ev)
	e.mu.Unlock()
}

// Root returns the top-level instance (the first one ever instantiated).
func (e *Engine) Root() *Instance { return e.Instances[0] }

func (e *Engine) allocSignal(name string, t types.Type, init types.Const) SignalId {
	id := SignalId(len(e.Signals))
	e.Signals = append(e.Signals, &Signal{Id: id, Name: name, Type: t, Value: init, Waiters: map[InstanceId]bool{}})
	return id
}

// instantiate elaborates u as a new instance named name under parent,
// binding its signal-typed signature ports to the ids already supplied
// in bound (keyed by argument index in Inputs-then-Outputs order), and
// allocating a fresh signal for every signal-typed port bound does not
// supply.
func (e *Engine) instantiate(u *unit.Unit, name string, parent *Instance, bound map[int]SignalId) *Instance {
	var parentScope *Scope
	if parent != nil {
		parentScope = parent.Scope
	}
	scope := newScope(name, u.Name, parentScope)
	if parentScope != nil {
		parentScope.Children = append(parentScope.Children, scope)
	}
	inst := newInstance(InstanceId(len(e.Instances)), scope, u)
	e.Instances = append(e.Instances, inst)
	if parent != nil {
		parent.children = append(parent.children, inst)
	}

	for idx, arg := range u.ArgValues {
		t := u.DFG.ValueType(arg)
		st, isSignal := t.(types.Signal)
		if !isSignal {
			continue
		}
		pname := portName(u, idx)
		var sigId SignalId
		if bid, ok := bound[idx]; ok {
			sigId = bid
		} else {
			sigId = e.allocSignal(pname, t, zeroOf(st.Inner))
		}
		inst.Signals[arg] = sigId
		inst.SignalNames[arg] = pname
		scope.Ports[arg] = sigId
	}

	if u.IsDeclaration() {
		return inst
	}

	// Elaborate local `sig`/`reg` declarations and recurse into
	// `inst` instantiations, in layout order, before anything runs.
	for _, b := range u.CFG.Blocks() {
		for _, i := range u.CFG.InstsIn(b) {
			data := u.DFG.Inst(i)
			switch data.Opcode {
			case dfg.OpSig:
				st := data.Type.(types.Signal)
				init := zeroOf(st.Inner)
				if len(data.Args) == 1 {
					if c, ok := evalConstOperand(u.DFG, data.Args[0]); ok {
						init = c
					}
				}
				inst.Signals[data.Result] = e.allocSignal(u.DFG.ValueName(data.Result), data.Type, init)
				inst.SignalNames[data.Result] = u.DFG.ValueName(data.Result)
			case dfg.OpReg:
				st := data.Type.(types.Signal)
				inst.Signals[data.Result] = e.allocSignal(u.DFG.ValueName(data.Result), data.Type, zeroOf(st.Inner))
				inst.SignalNames[data.Result] = u.DFG.ValueName(data.Result)
				inst.RegEdge[data.Result] = zeroOf(types.Int{Width: 1})
			case dfg.OpInstantiate:
				ext := u.DFG.Extern(data.Ext)
				if !ext.IsResolved {
					continue
				}
				child := e.Module.Unit(ext.Resolved)
				childBound := map[int]SignalId{}
				for idx, port := range data.Args {
					if sigId, ok := inst.Signals[port]; ok {
						childBound[idx] = sigId
					}
				}
				childName := fmt.Sprintf("%s_%d", ext.Name, int(i))
				e.instantiate(child, childName, inst, childBound)
			}
		}
	}
	return inst
}

func portName(u *unit.Unit, idx int) string {
	if idx < len(u.Sig.Inputs) {
		return u.Sig.Inputs[idx].Name
	}
	return u.Sig.Outputs[idx-len(u.Sig.Inputs)].Name
}

// initialize brings every instance in the tree to its first stable
// state: entities evaluate once, processes run from their entry block
// until their first suspension.
func (e *Engine) initialize(root *Instance) {
	var walk func(inst *Instance)
	walk = func(inst *Instance) {
		switch inst.Unit.Kind {
		case unit.KindEntity:
			if !inst.Unit.IsDeclaration() {
				e.registerSensitivity(inst)
				e.evalEntity(inst)
			}
		case unit.KindProcess:
			if !inst.Unit.IsDeclaration() {
				if entry, ok := inst.Unit.CFG.EntryBlock(); ok {
					inst.block = entry
					e.runProcess(inst)
				}
			}
		}
		for _, child := range inst.children {
			walk(child)
		}
	}
	walk(root)
}

// registerSensitivity adds inst as a waiter on every signal its entity
// body probes or clocks against, so the engine knows to re-evaluate it
// whenever one of them changes.
func (e *Engine) registerSensitivity(inst *Instance) {
	b := inst.Unit.SingleBlock()
	for _, i := range inst.Unit.CFG.InstsIn(b) {
		data := inst.Unit.DFG.Inst(i)
		switch data.Opcode {
		case dfg.OpPrb:
			if sigId, ok := inst.Signals[data.Args[0]]; ok {
				e.Signals[sigId].Waiters[inst.ID] = true
			}
		case dfg.OpReg:
			if sigId, ok := inst.Signals[data.Args[1]]; ok {
				e.Signals[sigId].Waiters[inst.ID] = true
			}
		case dfg.OpCon:
			if sigId, ok := inst.Signals[data.Args[0]]; ok {
				e.Signals[sigId].Waiters[inst.ID] = true
			}
		}
	}
}

// Run drains the event queue, applying at most maxSteps delta instants
// (maxSteps <= 0 means run to completion). It returns the number of
// instants actually processed.
func (e *Engine) Run(maxSteps int) int {
	steps := 0
	for e.Queue.Len() > 0 {
		if maxSteps > 0 && steps >= maxSteps {
			break
		}
		t, batch := e.Queue.PopInstant()
		e.Now = t
		e.applyInstant(batch)
		steps++
	}
	return steps
}

func (e *Engine) applyInstant(batch []*Event) {
	changed := map[SignalId]bool{}
	driven := map[SignalId]types.Const{}
	var resumes []*Event
	for _, ev := range batch {
		if ev.Kind == EventResume {
			resumes = append(resumes, ev)
			continue
		}
		// The batch arrives in canonical (signal id, instance id,
		// scheduling) order, so a second drive to the same signal at
		// this instant is the one that wins (spec.md §5/§9); the
		// overwritten one is recorded as a conflict.
		if prev, ok := driven[ev.Signal]; ok && !prev.Equal(ev.Value) {
			e.Warnings = append(e.Warnings, DriveConflict{Time: e.Now, Signal: ev.Signal, Lost: prev, Won: ev.Value})
			log.Warn("conflicting drives on signal %q at %s", e.Signals[ev.Signal].Name, e.Now)
		}
		driven[ev.Signal] = ev.Value
		sig := e.Signals[ev.Signal]
		if sig.Value.Equal(ev.Value) {
			continue
		}
		sig.Value = ev.Value
		changed[ev.Signal] = true
	}

	// Trace each changed signal once, at its settled value, in signal-id
	// order — not per applied event, which would leak the transient
	// loser of a same-instant conflict into the trace.
	if e.Tracer != nil {
		for _, id := range sortedSignalIds(changed) {
			_ = e.Tracer.SignalChanged(e.Now, e.Signals[id])
		}
	}

	// Collect every instance this instant wakes, in canonical order:
	// waiters of changed signals (by signal id, then instance id), then
	// explicit resume events.
	woken := map[InstanceId]bool{}
	var wake []*Instance
	for _, sigId := range sortedSignalIds(changed) {
		for _, instId := range sortedInstanceIds(e.Signals[sigId].Waiters) {
			if woken[instId] {
				continue
			}
			woken[instId] = true
			inst := e.Instances[instId]
			if inst.Unit.Kind == unit.KindEntity || inst.state == stateSuspended {
				wake = append(wake, inst)
			}
		}
	}
	for _, ev := range resumes {
		if woken[ev.Instance] {
			continue
		}
		woken[ev.Instance] = true
		inst := e.Instances[ev.Instance]
		if inst.state == stateSuspended {
			wake = append(wake, inst)
		}
	}
	e.dispatch(wake)
}

// dispatch executes the woken instances of one delta cycle. Independent
// instances only read settled signal values and schedule future events
// (never mutate current state), so they run concurrently unless the
// engine was built Sequential; the event queue's canonical ordering
// reconciles their drives deterministically regardless of completion
// order.
func (e *Engine) dispatch(wake []*Instance) {
	if e.sequential || len(wake) <= 1 {
		for _, inst := range wake {
			e.wakeOne(inst)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, inst := range wake {
		inst := inst
		g.Go(func() error {
			e.wakeOne(inst)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) wakeOne(inst *Instance) {
	if inst.Unit.Kind == unit.KindEntity {
		e.evalEntity(inst)
	} else {
		e.runProcess(inst)
	}
}

func sortedSignalIds(set map[SignalId]bool) []SignalId {
	out := make([]SignalId, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedInstanceIds(set map[InstanceId]bool) []InstanceId {
	out := make([]InstanceId, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// evalConstOperand reads a constant-producing instruction chain back
// into a types.Const, used for `sig` initializer expressions evaluated
// during elaboration (before any instance exists to hold a live Env).
func evalConstOperand(d *dfg.DFG, v ids.Value) (types.Const, bool) {
	info := d.ValueInfo(v)
	if info.Producer.Kind != dfg.ProducerInst {
		return types.Const{}, false
	}
	data := d.Inst(info.Producer.Inst)
	switch data.Opcode {
	case dfg.OpConstInt:
		t := info.Type.(types.Int)
		return types.NewInt(t.Width, data.Imm.Int), true
	case dfg.OpConstTime:
		return types.Const{Kind: types.ConstTimeVal, Time: data.Imm.Time}, true
	default:
		return types.Const{}, false
	}
}
