// Package sim implements the discrete-event simulator: signal storage,
// the delta-cycle scheduler over a (wall, delta, epsilon) time triple,
// an instruction interpreter for process/entity bodies, and the Tracer
// backend contract (spec.md §4.6).
package sim

import (
	"llhd/internal/ids"
	"llhd/internal/types"
)

// SignalId identifies one allocated signal within a simulation run,
// distinct from the per-unit ids.Value that produced it (a signal can
// outlive the `sig` instruction that declared it, once instantiation
// has copied it into a running scope).
type SignalId int

// Signal is one simulated wire: its current value and the set of
// waiting process instances sensitive to it.
type Signal struct {
	Id      SignalId
	Name    string
	Type    types.Type
	Value   types.Const
	Waiters map[InstanceId]bool
}

// InstanceId identifies one running process/entity instance in the
// instantiation hierarchy.
type InstanceId int

// Scope is one node of the hierarchical instantiation tree: a running
// instance of a unit, its local signal bindings, and its children. Its
// identity is the hierarchical Path — tracers and external tooling
// address scopes by stable name, never by a simulation-run-local index.
type Scope struct {
	Name     string
	UnitName string
	Parent   *Scope
	Children []*Scope
	Ports    map[ids.Value]SignalId // unit-local argument value -> bound signal
}

func newScope(name, unitName string, parent *Scope) *Scope {
	return &Scope{Name: name, UnitName: unitName, Parent: parent, Ports: map[ids.Value]SignalId{}}
}

// Path returns the dot-separated hierarchical instance path, e.g.
// "top.counter.reg0", the name VCD/dump tracers render each signal
// under.
func (s *Scope) Path() string {
	if s.Parent == nil {
		return s.Name
	}
	return s.Parent.Path() + "." + s.Name
}
