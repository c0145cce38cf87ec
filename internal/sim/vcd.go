package sim

import (
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"

	"llhd/internal/types"
)

// VCDTracer renders a run as a Value Change Dump, the format GTKWave and
// most other waveform viewers understand. Time is emitted in picoseconds
// ($timescale 1ps $end); delta/epsilon ordering within a real-time
// instant is collapsed to the last settled value at that timestamp,
// since VCD has no native delta-cycle notion.
type VCDTracer struct {
	w        io.Writer
	shortID  map[SignalId]string
	lastTime *types.TimeValue
}

// NewVCDTracer creates a tracer writing VCD text to w.
func NewVCDTracer(w io.Writer) *VCDTracer {
	return &VCDTracer{w: w, shortID: map[SignalId]string{}}
}

type scopeNode struct {
	children map[string]*scopeNode
	order    []string
	vars     []signalPath
}

func newScopeNode() *scopeNode { return &scopeNode{children: map[string]*scopeNode{}} }

func buildScopeTree(paths []signalPath) *scopeNode {
	root := newScopeNode()
	for _, p := range paths {
		node := root
		for _, part := range strings.Split(p.Scope, ".") {
			child, ok := node.children[part]
			if !ok {
				child = newScopeNode()
				node.children[part] = child
				node.order = append(node.order, part)
			}
			node = child
		}
		node.vars = append(node.vars, p)
	}
	return root
}

func writeVCDScope(w io.Writer, node *scopeNode, shortID map[SignalId]string) {
	for _, name := range node.order {
		child := node.children[name]
		fmt.Fprintf(w, "$scope module %s $end\n", name)
		sort.Slice(child.vars, func(i, j int) bool { return child.vars[i].Name < child.vars[j].Name })
		for _, v := range child.vars {
			fmt.Fprintf(w, "$var wire %d %s %s $end\n", constBitWidth(v.Type), shortID[v.Signal], v.Name)
		}
		writeVCDScope(w, child, shortID)
		fmt.Fprintln(w, "$upscope $end")
	}
}

// vcdShortName renders n as a base-94 identifier over the printable
// ASCII range (33-126), the compact per-signal code VCD readers expect
// in place of repeating full signal names.
func vcdShortName(n int) string {
	const base = 94
	if n == 0 {
		return string(rune(33))
	}
	var digits []byte
	for n > 0 {
		digits = append(digits, byte(33+n%base))
		n /= base
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

func vcdValue(c types.Const, width uint32) string {
	if c.IsPoison() || c.Kind != types.ConstInt {
		if width == 1 {
			return "x"
		}
		return "b" + strings.Repeat("x", int(width)) + " "
	}
	if width == 1 {
		if c.Int.Sign() != 0 {
			return "1"
		}
		return "0"
	}
	bits := make([]byte, width)
	for i := uint32(0); i < width; i++ {
		if c.Int.Bit(int(width-1-i)) == 1 {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	return "b" + string(bits) + " "
}

func (t *VCDTracer) Begin(e *Engine) error {
	paths := e.collectSignalPaths()
	seen := map[SignalId]bool{}
	var order []SignalId
	for _, p := range paths {
		if !seen[p.Signal] {
			seen[p.Signal] = true
			order = append(order, p.Signal)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for i, sigId := range order {
		t.shortID[sigId] = vcdShortName(i)
	}

	fmt.Fprintln(t.w, "$timescale 1ps $end")
	writeVCDScope(t.w, buildScopeTree(paths), t.shortID)
	fmt.Fprintln(t.w, "$enddefinitions $end")
	fmt.Fprintln(t.w, "$dumpvars")
	for _, sigId := range order {
		sig := e.Signals[sigId]
		fmt.Fprintln(t.w, vcdValue(sig.Value, constBitWidth(sig.Type))+t.shortID[sigId])
	}
	fmt.Fprintln(t.w, "$end")
	return nil
}

func (t *VCDTracer) SignalChanged(tm types.TimeValue, sig *Signal) error {
	if t.lastTime == nil || tm.Compare(*t.lastTime) != 0 {
		fmt.Fprintf(t.w, "#%s\n", vcdPicoseconds(tm))
		stamped := tm
		t.lastTime = &stamped
	}
	fmt.Fprintln(t.w, vcdValue(sig.Value, constBitWidth(sig.Type))+t.shortID[sig.Id])
	return nil
}

func (t *VCDTracer) End() error { return nil }

// vcdPicoseconds renders a TimeValue's real component (exact seconds) as
// an integer picosecond count, the unit declared by $timescale. The
// exact rational is only rounded here, at the output boundary.
func vcdPicoseconds(t types.TimeValue) string {
	ps := new(big.Rat).Mul(t.Real, new(big.Rat).SetInt64(1_000_000_000_000))
	whole := new(big.Int).Quo(ps.Num(), ps.Denom())
	return whole.String()
}
