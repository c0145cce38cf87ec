package analysis

import (
	"fmt"
	"strings"

	"llhd/internal/dfg"
	"llhd/internal/ids"
	"llhd/internal/unit"
)

// TemporalRegion is one maximal run of blocks a process executes between
// two `wait`/`wait_time` suspension points (spec.md §4.4 "Temporal-Region
// Graph"): TemporalCodeMotion only ever hoists within a region, never
// across one, since a region boundary is where simulated time can advance.
type TemporalRegion struct {
	ID     int
	Blocks []ids.Block

	// Entry is the block execution enters the region through (the
	// resumption point of the wait that opened it, or the process entry).
	Entry ids.Block
	// HeadInsts are the entry block's instructions up to its terminator,
	// the span code motion may treat as running unconditionally at the
	// region's start.
	HeadInsts []ids.Inst
	// HeadTight reports that the head is single-entry: no block inside
	// the region branches back to Entry, so HeadInsts run exactly once
	// per activation.
	HeadTight bool
	// TailBlocks are the region's blocks that end in the wait/wait_time
	// closing it.
	TailBlocks []ids.Block
	// TailTight reports the region has exactly one such exit, the
	// precondition for canonicalizing drives against a single wait.
	TailTight bool
}

// TRG is the graph of a process's temporal regions, with an edge from
// region A to region B whenever some block in A has a wait/wait_time
// terminator whose resumption point lies in B.
type TRG struct {
	Regions []*TemporalRegion
	block   map[ids.Block]int
	edges   map[int]map[int]bool
}

// RegionOf returns the region index containing b.
func (g *TRG) RegionOf(b ids.Block) (int, bool) {
	r, ok := g.block[b]
	return r, ok
}

// Successors returns the regions reachable in one suspension from region.
func (g *TRG) Successors(region int) []int {
	var out []int
	for s := range g.edges[region] {
		out = append(out, s)
	}
	return out
}

// BuildTRG partitions u's blocks into temporal regions. Functions and
// entities have no suspension points, so the whole unit is one region.
func BuildTRG(u *unit.Unit) *TRG {
	g := &TRG{block: map[ids.Block]int{}, edges: map[int]map[int]bool{}}
	blocks := u.CFG.Blocks()
	if len(blocks) == 0 {
		return g
	}

	entry, _ := u.CFG.EntryBlock()
	// A region starts at the entry block and at every block that is the
	// CFG successor of a wait/wait_time terminator (its resumption point).
	regionStart := map[ids.Block]bool{entry: true}
	if u.Kind == unit.KindProcess {
		for _, b := range blocks {
			term, ok := u.CFG.Terminator(b)
			if !ok {
				continue
			}
			data := u.DFG.Inst(term)
			if data.Opcode == dfg.OpWait || data.Opcode == dfg.OpWaitTime {
				for _, s := range data.Blocks {
					regionStart[s] = true
				}
			}
		}
	}

	// Walk the CFG in layout order, starting a new region at each
	// regionStart block and following successors until the next one.
	visited := map[ids.Block]bool{}
	order := blocks
	for _, start := range order {
		if !regionStart[start] || visited[start] {
			continue
		}
		region := &TemporalRegion{ID: len(g.Regions)}
		g.Regions = append(g.Regions, region)
		stack := []ids.Block{start}
		for len(stack) > 0 {
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[b] {
				continue
			}
			visited[b] = true
			region.Blocks = append(region.Blocks, b)
			g.block[b] = region.ID
			for _, s := range u.CFG.Successors(u.DFG, b) {
				if !regionStart[s] && !visited[s] {
					stack = append(stack, s)
				}
			}
		}
	}

	for _, b := range blocks {
		term, ok := u.CFG.Terminator(b)
		if !ok {
			continue
		}
		data := u.DFG.Inst(term)
		if data.Opcode != dfg.OpWait && data.Opcode != dfg.OpWaitTime {
			continue
		}
		from := g.block[b]
		g.Regions[from].TailBlocks = append(g.Regions[from].TailBlocks, b)
		for _, s := range data.Blocks {
			to, ok := g.block[s]
			if !ok {
				continue
			}
			if g.edges[from] == nil {
				g.edges[from] = map[int]bool{}
			}
			g.edges[from][to] = true
		}
	}

	for _, r := range g.Regions {
		if len(r.Blocks) == 0 {
			continue
		}
		r.Entry = r.Blocks[0]
		for _, i := range u.CFG.InstsIn(r.Entry) {
			if dfg.IsTerminator(u.DFG.Inst(i).Opcode) {
				break
			}
			r.HeadInsts = append(r.HeadInsts, i)
		}
		r.HeadTight = true
		for _, p := range u.CFG.Predecessors(u.DFG, r.Entry) {
			if pr, ok := g.block[p]; ok && pr == r.ID {
				pterm, _ := u.CFG.Terminator(p)
				pop := u.DFG.Inst(pterm).Opcode
				// A wait looping straight back re-enters the region from
				// outside time-wise; only an intra-region branch makes
				// the head re-entrant.
				if pop != dfg.OpWait && pop != dfg.OpWaitTime {
					r.HeadTight = false
				}
			}
		}
		r.TailTight = len(r.TailBlocks) == 1
	}
	return g
}

// DumpTRG renders g as a human-readable graph, the format --emit-trg
// prints (SPEC_FULL.md SUPPLEMENTED FEATURES).
func DumpTRG(u *unit.Unit, g *TRG) string {
	var b strings.Builder
	fmt.Fprintf(&b, "temporal regions for %s %q:\n", u.Kind, u.Name)
	for _, r := range g.Regions {
		labels := make([]string, len(r.Blocks))
		for i, blk := range r.Blocks {
			labels[i] = blockLabel(u, blk)
		}
		fmt.Fprintf(&b, "  region %d: [%s]", r.ID, strings.Join(labels, ", "))
		if succs := g.Successors(r.ID); len(succs) > 0 {
			fmt.Fprintf(&b, " -> %v", succs)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func blockLabel(u *unit.Unit, b ids.Block) string {
	if l := u.CFG.Label(b); l != "" {
		return l
	}
	return fmt.Sprintf("bb%d", b)
}

// UseCounts maps each value to its number of remaining uses.
type UseCounts map[ids.Value]int

// CountUses computes the use-count of every value ever allocated in u's
// DFG, including removed ones (which always count zero).
func CountUses(u *unit.Unit) UseCounts {
	counts := make(UseCounts, u.DFG.NumValues())
	for i := 0; i < u.DFG.NumValues(); i++ {
		v := ids.Value(i)
		counts[v] = len(u.DFG.Uses(v))
	}
	return counts
}
