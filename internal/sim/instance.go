package sim

import (
	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// instState is a process instance's run state. Entities have no run
// state of their own: they are simply re-evaluated in full whenever a
// signal they read changes.
type instState int

const (
	stateRunning instState = iota
	stateSuspended
	stateHalted
)

// Instance is one running process/entity in the instantiation hierarchy.
type Instance struct {
	ID    InstanceId
	Scope *Scope
	Unit  *unit.Unit

	// Env holds the current value of every non-signal, non-pointer SSA
	// result computed so far in this instance's body (spec.md §4.1's
	// values, given a concrete runtime binding).
	Env map[ids.Value]types.Const

	// Signals maps every Signal-typed value local to Unit (ports and
	// `sig`/`reg` results) to the engine-level signal it is bound to.
	Signals map[ids.Value]SignalId

	// SignalNames records the declared name (port name, or `sig`/`reg`
	// debug name) of each entry in Signals, for tracer output.
	SignalNames map[ids.Value]string

	// Vars holds the current contents of every `var` local, keyed by the
	// ids.Value the owning `var` instruction produced.
	Vars map[ids.Value]types.Const

	// RegEdge records the last-sampled clock value for each `reg`
	// instruction in an Entity body, so edge transitions can be detected
	// across successive re-evaluations.
	RegEdge map[ids.Value]types.Const

	state    instState
	block    ids.Block // Process: block execution will resume into
	prev     ids.Block // Process: block control flow arrived from, for phi resolution
	children []*Instance
}

func newInstance(id InstanceId, scope *Scope, u *unit.Unit) *Instance {
	return &Instance{
		ID:      id,
		Scope:   scope,
		Unit:    u,
		Env:         map[ids.Value]types.Const{},
		Signals:     map[ids.Value]SignalId{},
		SignalNames: map[ids.Value]string{},
		Vars:        map[ids.Value]types.Const{},
		RegEdge:     map[ids.Value]types.Const{},
	}
}
