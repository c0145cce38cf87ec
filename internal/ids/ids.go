// Package ids defines the dense integer arena handles used throughout the
// IR. Every cyclic relationship in the data model (SSA uses, CFG edges,
// extern references) is represented as one of these handles into an arena
// rather than as a language-level pointer or reference, per the Design
// Notes in spec.md §9: "represent every edge as an integer handle into an
// arena; never as a lifetime-bearing reference."
package ids

import "fmt"

// Value identifies a value local to the unit that defines it.
type Value int32

// Inst identifies an instruction local to the unit that owns it.
type Inst int32

// Block identifies a basic block local to the unit that owns it.
type Block int32

// ExtUnit identifies a reference to another unit, local to the unit that
// holds the reference, resolved to a UnitId by Module.Link.
type ExtUnit int32

// UnitId identifies a unit within a Module.
type UnitId int32

// InvalidValue is the reserved sentinel placeholder used transiently
// during block/instruction removal (spec.md §3 "Lifecycle").
const InvalidValue Value = -1

func (v Value) String() string {
	if v == InvalidValue {
		return "<invalid>"
	}
	return fmt.Sprintf("%%%d", int32(v))
}

func (i Inst) String() string   { return fmt.Sprintf("inst%d", int32(i)) }
func (b Block) String() string  { return fmt.Sprintf("bb%d", int32(b)) }
func (e ExtUnit) String() string { return fmt.Sprintf("ext%d", int32(e)) }
func (u UnitId) String() string { return fmt.Sprintf("unit%d", int32(u)) }

// IsValid reports whether v is not the invalid sentinel.
func (v Value) IsValid() bool { return v != InvalidValue }
