// Package unit implements the polymorphic Unit container described in
// spec.md §4.5/§9: a single tagged record shared by Function, Process,
// and Entity rather than three separate interface implementations, per
// the Design Notes' explicit preference ("operations that are undefined
// for a kind... panic explicitly — they are programmer errors").
package unit

import (
	"llhd/internal/cfg"
	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/types"
)

// Kind discriminates the three unit kinds.
type Kind int

const (
	KindFunction Kind = iota
	KindProcess
	KindEntity
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "func"
	case KindProcess:
		return "proc"
	case KindEntity:
		return "entity"
	default:
		return "unit"
	}
}

// Param is one named, typed signature member.
type Param struct {
	Name string
	Type types.Type
}

// Signature describes a unit's external interface. Functions populate
// Inputs and ReturnType; processes and entities populate Inputs and
// Outputs and leave ReturnType nil (types.Void{}), matching the type
// system invariant that Entity signatures carry no return type.
type Signature struct {
	Inputs     []Param
	Outputs    []Param
	ReturnType types.Type
}

// Unit is one function, process, or entity: one DFG, one CFG+layout, and
// a signature. The three kinds share this representation; methods that
// only make sense for a subset of kinds panic on misuse rather than
// returning an error, since calling e.g. InsertAtEnd on a multi-block
// function is a programmer error, not a runtime condition.
type Unit struct {
	Kind Kind
	Name string
	Sig  Signature

	DFG *dfg.DFG
	CFG *cfg.CFG

	// ArgValues holds the initial value produced for each signature
	// input, in declaration order, satisfying the invariant that a
	// signature's declared inputs correspond one-for-one with the
	// unit's initial argument values.
	ArgValues []ids.Value

	// single is the lone synthetic block of an Entity (§3 "Entities
	// contain exactly one implicit block").
	single ids.Block
}

// New creates an empty unit of the given kind with the given signature.
// Functions/processes start with no blocks (the builder appends them);
// entities are given their single synthetic block immediately.
func New(kind Kind, name string, sig Signature) *Unit {
	u := &Unit{
		Kind: kind,
		Name: name,
		Sig:  sig,
		DFG:  dfg.New(),
		CFG:  cfg.New(),
	}
	for i, p := range sig.Inputs {
		u.ArgValues = append(u.ArgValues, u.DFG.AddArgValue(p.Type, p.Name, i))
	}
	// Processes and entities also bind a value to each declared output
	// port, at the index immediately following Inputs — the convention
	// internal/sim's portName relies on to elaborate a signal for every
	// signature member, input or output alike.
	if kind != KindFunction {
		for i, p := range sig.Outputs {
			u.ArgValues = append(u.ArgValues, u.DFG.AddArgValue(p.Type, p.Name, len(sig.Inputs)+i))
		}
	}
	if kind == KindEntity {
		u.single = u.CFG.AppendBlock("")
	}
	return u
}

// ConvertToEntity reassigns u's Kind to Entity, adopting sole as its
// single synthetic block. Used by internal/opt's structural lowering
// passes (ProcessLowering, Desequentialization) once they have confirmed
// u's body has collapsed to a single, terminator-free block equivalent
// to a combinational entity (spec.md §4.5).
func (u *Unit) ConvertToEntity(sole ids.Block) {
	u.Kind = KindEntity
	u.single = sole
}

// SingleBlock returns the entity's lone synthetic block. Panics if Kind
// is not KindEntity.
func (u *Unit) SingleBlock() ids.Block {
	if u.Kind != KindEntity {
		panic("unit: SingleBlock called on a non-entity unit")
	}
	return u.single
}

// IsDeclaration reports whether the unit has no body yet (a module-level
// extern declaration before it is defined, or is linked to one).
func (u *Unit) IsDeclaration() bool {
	return len(u.CFG.Blocks()) == 0
}

// SignatureType returns the unit's signature rendered as a types.Type,
// used to check call/inst target compatibility.
func (u *Unit) SignatureType() types.Type {
	switch u.Kind {
	case KindFunction:
		args := make([]types.Type, len(u.Sig.Inputs))
		for i, p := range u.Sig.Inputs {
			args[i] = p.Type
		}
		ret := u.Sig.ReturnType
		if ret == nil {
			ret = types.Void{}
		}
		return types.Func{Args: args, ReturnType: ret}
	default:
		in := make([]types.Type, len(u.Sig.Inputs))
		for i, p := range u.Sig.Inputs {
			in[i] = p.Type
		}
		out := make([]types.Type, len(u.Sig.Outputs))
		for i, p := range u.Sig.Outputs {
			out[i] = p.Type
		}
		return types.Entity{Inputs: in, Outputs: out}
	}
}
