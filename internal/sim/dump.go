package sim

import (
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"llhd/internal/types"
)

// DumpTracer renders a run as plain human-readable text: one timestamp
// header per instant (including its delta/epsilon components, which VCD
// cannot express), then one line per changed signal, sorted by full
// hierarchical path.
type DumpTracer struct {
	w     io.Writer
	paths map[SignalId][]string

	pendingTime *types.TimeValue
	pending     []dumpLine
}

type dumpLine struct {
	path  string
	value string
}

// NewDumpTracer creates a tracer writing dump text to w.
func NewDumpTracer(w io.Writer) *DumpTracer {
	return &DumpTracer{w: w, paths: map[SignalId][]string{}}
}

func (t *DumpTracer) Begin(e *Engine) error {
	for _, p := range e.collectSignalPaths() {
		full := p.Scope
		if p.Name != "" {
			full += "." + p.Name
		}
		t.paths[p.Signal] = append(t.paths[p.Signal], full)
	}
	for _, paths := range t.paths {
		sort.Strings(paths)
	}
	return nil
}

func (t *DumpTracer) SignalChanged(tm types.TimeValue, sig *Signal) error {
	if t.pendingTime != nil && tm.Compare(*t.pendingTime) != 0 {
		t.flush()
	}
	if t.pendingTime == nil {
		stamped := tm
		t.pendingTime = &stamped
	}
	for _, path := range t.paths[sig.Id] {
		t.pending = append(t.pending, dumpLine{path: path, value: dumpValue(sig.Value)})
	}
	return nil
}

func (t *DumpTracer) End() error {
	t.flush()
	return nil
}

// flush writes the buffered instant: its timestamp header, then every
// change sorted by hierarchical path.
func (t *DumpTracer) flush() {
	if t.pendingTime == nil {
		return
	}
	tm := *t.pendingTime
	fmt.Fprintf(t.w, "%sps %dd %de\n", dumpPicoseconds(tm), tm.Delta, tm.Epsilon)
	sort.Slice(t.pending, func(i, j int) bool { return t.pending[i].path < t.pending[j].path })
	for _, line := range t.pending {
		fmt.Fprintf(t.w, "  %s = %s\n", line.path, line.value)
	}
	t.pendingTime = nil
	t.pending = nil
}

func dumpPicoseconds(t types.TimeValue) string {
	ps := new(big.Rat).Mul(t.Real, new(big.Rat).SetInt64(1_000_000_000_000))
	return new(big.Int).Quo(ps.Num(), ps.Denom()).String()
}

// dumpValue renders a runtime constant for the dump stream: integers in
// hex (the radix waveforms are read in), aggregates recursively, poison
// as "x".
func dumpValue(c types.Const) string {
	switch c.Kind {
	case types.ConstInt:
		return "0x" + c.Int.Text(16)
	case types.ConstTimeVal:
		return c.Time.String()
	case types.ConstArray:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = dumpValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case types.ConstStruct:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = dumpValue(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "x"
	}
}
