package dfg

import (
	"math/big"

	"llhd/internal/ids"
	"llhd/internal/types"
)

// Imm holds the minimal immediate-operand payload an opcode needs,
// alongside the argument/block handle slots on InstData. Only the fields
// relevant to a given opcode are populated; this keeps InstData a single
// tagged record instead of spec.md §9's rejected "instruction-kind
// explosion" of one Go type per opcode.
type Imm struct {
	Int        *big.Int        // const_int payload
	Time       types.TimeValue // const_time payload, or a static drv/wait_time delay
	HasTime    bool
	FieldIndex int    // extf/insf struct field index
	Name       string // alias debug name, block label for br targets printed by name
	EdgeKind   string // reg/wait trigger polarity: "rise", "fall", or "both"
	HasTimeout bool   // wait: last Arg is a timeout delay rather than a signal
}

// InstData is the arena record for one instruction: opcode, operand value
// handles, referenced block handles (for terminators and phi incoming
// edges), immediate operands, and an optional external-unit reference for
// call/inst.
type InstData struct {
	Opcode Opcode
	Args   []ids.Value
	Blocks []ids.Block // br/br_cond targets, or phi incoming-block list (parallel to Args)
	Type   types.Type  // result type, or nil for opcodes with no result
	Imm    Imm
	Ext    ids.ExtUnit
	HasExt bool
	Result ids.Value // ids.InvalidValue if this instruction produces no value
}

// ValueData is the arena record for one SSA value: its type and the
// handle that produced it.
type ValueData struct {
	Type     types.Type
	Name     string // optional debug name, empty if anonymous
	Producer Producer
}

// ProducerKind distinguishes how a value came to exist.
type ProducerKind int

const (
	ProducerInst ProducerKind = iota
	ProducerArg
	ProducerInvalid
)

// Producer identifies what defines a value: an instruction result, a
// signature argument slot, or (transiently, during removal) nothing.
type Producer struct {
	Kind ProducerKind
	Inst ids.Inst // valid when Kind == ProducerInst
	Arg  int      // valid when Kind == ProducerArg
}
