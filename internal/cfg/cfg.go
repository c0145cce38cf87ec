// Package cfg implements the control-flow graph and its layout: the block
// arena, and the ordered intrusive doubly-linked sequence of blocks per
// unit and instructions per block described in spec.md §4.2.
package cfg

import (
	"llhd/internal/dfg"
	"llhd/internal/ids"
)

const noBlock = ids.Block(-1)
const noInst = ids.Inst(-1)

// BlockData is the arena record for one block: its optional label. Edges
// (predecessors/successors) are not stored redundantly here — they are
// derived on demand from the owning unit's terminator instructions via
// Successors/Predecessors, so they can never go stale after a rewrite.
type BlockData struct {
	Label string
}

// CFG owns block identity and the layout (block order, and instruction
// order within each block) for one unit.
type CFG struct {
	blocks  []BlockData
	removed map[ids.Block]bool

	blockNext map[ids.Block]ids.Block
	blockPrev map[ids.Block]ids.Block
	head      ids.Block
	tail      ids.Block

	instNext  map[ids.Inst]ids.Inst
	instPrev  map[ids.Inst]ids.Inst
	blockHead map[ids.Block]ids.Inst
	blockTail map[ids.Block]ids.Inst
	instBlock map[ids.Inst]ids.Block
}

// New creates an empty CFG.
func New() *CFG {
	return &CFG{
		removed:   make(map[ids.Block]bool),
		blockNext: make(map[ids.Block]ids.Block),
		blockPrev: make(map[ids.Block]ids.Block),
		head:      noBlock,
		tail:      noBlock,
		instNext:  make(map[ids.Inst]ids.Inst),
		instPrev:  make(map[ids.Inst]ids.Inst),
		blockHead: make(map[ids.Block]ids.Inst),
		blockTail: make(map[ids.Block]ids.Inst),
		instBlock: make(map[ids.Inst]ids.Block),
	}
}

// AppendBlock creates a new block at the end of the layout.
func (c *CFG) AppendBlock(label string) ids.Block {
	id := ids.Block(len(c.blocks))
	c.blocks = append(c.blocks, BlockData{Label: label})
	c.blockHead[id] = noInst
	c.blockTail[id] = noInst
	c.linkBlockAfter(id, c.tail)
	return id
}

// PrependBlock creates a new block at the start of the layout.
func (c *CFG) PrependBlock(label string) ids.Block {
	id := ids.Block(len(c.blocks))
	c.blocks = append(c.blocks, BlockData{Label: label})
	c.blockHead[id] = noInst
	c.blockTail[id] = noInst
	c.linkBlockBefore(id, c.head)
	return id
}

func (c *CFG) linkBlockAfter(id, after ids.Block) {
	c.blockPrev[id] = after
	if after == noBlock {
		next := c.head
		c.blockNext[id] = next
		c.head = id
		if next != noBlock {
			c.blockPrev[next] = id
		} else {
			c.tail = id
		}
		return
	}
	next := c.blockNext[after]
	c.blockNext[after] = id
	c.blockNext[id] = next
	if next != noBlock {
		c.blockPrev[next] = id
	} else {
		c.tail = id
	}
}

func (c *CFG) linkBlockBefore(id, before ids.Block) {
	if before == noBlock {
		c.linkBlockAfter(id, c.tail)
		return
	}
	prev := c.blockPrev[before]
	c.linkBlockAfter(id, prev)
}

// RemoveBlock detaches a block from the layout (but not its instructions
// from the DFG — the builder removes those separately to avoid dangling
// use-lists, per spec.md §4.2).
func (c *CFG) RemoveBlock(b ids.Block) {
	prev, next := c.blockPrev[b], c.blockNext[b]
	if prev != noBlock {
		c.blockNext[prev] = next
	} else {
		c.head = next
	}
	if next != noBlock {
		c.blockPrev[next] = prev
	} else {
		c.tail = prev
	}
	c.removed[b] = true
}

// IsRemoved reports whether b has been detached from the layout.
func (c *CFG) IsRemoved(b ids.Block) bool { return c.removed[b] }

// Label returns the optional label of b.
func (c *CFG) Label(b ids.Block) string { return c.blocks[b].Label }

// Blocks returns all live blocks in layout order.
func (c *CFG) Blocks() []ids.Block {
	var out []ids.Block
	for b := c.head; b != noBlock; b = c.blockNext[b] {
		out = append(out, b)
	}
	return out
}

// EntryBlock returns the first block in layout order and true, or
// (0, false) if the layout is empty.
func (c *CFG) EntryBlock() (ids.Block, bool) {
	if c.head == noBlock {
		return 0, false
	}
	return c.head, true
}

// --- instruction layout ---

// AppendInst places i at the end of b's instruction sequence.
func (c *CFG) AppendInst(b ids.Block, i ids.Inst) {
	c.instBlock[i] = b
	c.linkInstAfter(b, i, c.blockTail[b])
}

// PrependInst places i at the start of b's instruction sequence.
func (c *CFG) PrependInst(b ids.Block, i ids.Inst) {
	c.instBlock[i] = b
	c.linkInstBefore(b, i, c.blockHead[b])
}

// InsertBefore places i immediately before existing in existing's block.
func (c *CFG) InsertBefore(existing, i ids.Inst) {
	b := c.instBlock[existing]
	c.instBlock[i] = b
	c.linkInstBefore(b, i, existing)
}

// InsertAfter places i immediately after existing in existing's block.
func (c *CFG) InsertAfter(existing, i ids.Inst) {
	b := c.instBlock[existing]
	c.instBlock[i] = b
	c.linkInstAfter(b, i, existing)
}

func (c *CFG) linkInstAfter(b ids.Block, id, after ids.Inst) {
	c.instPrev[id] = after
	if after == noInst {
		next := c.blockHead[b]
		c.instNext[id] = next
		c.blockHead[b] = id
		if next != noInst {
			c.instPrev[next] = id
		} else {
			c.blockTail[b] = id
		}
		return
	}
	next := c.instNext[after]
	c.instNext[after] = id
	c.instNext[id] = next
	if next != noInst {
		c.instPrev[next] = id
	} else {
		c.blockTail[b] = id
	}
}

func (c *CFG) linkInstBefore(b ids.Block, id, before ids.Inst) {
	if before == noInst {
		c.linkInstAfter(b, id, c.blockTail[b])
		return
	}
	prev := c.instPrev[before]
	c.linkInstAfter(b, id, prev)
}

// RemoveInst detaches i from its block's layout.
func (c *CFG) RemoveInst(i ids.Inst) {
	b := c.instBlock[i]
	prev, next := c.instPrev[i], c.instNext[i]
	if prev != noInst {
		c.instNext[prev] = next
	} else {
		c.blockHead[b] = next
	}
	if next != noInst {
		c.instPrev[next] = prev
	} else {
		c.blockTail[b] = prev
	}
	delete(c.instBlock, i)
}

// BlockOf returns the block currently containing i.
func (c *CFG) BlockOf(i ids.Inst) (ids.Block, bool) {
	b, ok := c.instBlock[i]
	return b, ok
}

// InstsIn returns the instructions of b in layout order.
func (c *CFG) InstsIn(b ids.Block) []ids.Inst {
	var out []ids.Inst
	for i := c.blockHead[b]; i != noInst; i = c.instNext[i] {
		out = append(out, i)
	}
	return out
}

// Terminator returns the last instruction of b, if any.
func (c *CFG) Terminator(b ids.Block) (ids.Inst, bool) {
	i := c.blockTail[b]
	if i == noInst {
		return 0, false
	}
	return i, true
}

// Successors derives b's outgoing CFG edges from its terminator
// instruction, per spec.md §4.2 ("edges implied by terminator
// instructions").
func (c *CFG) Successors(d *dfg.DFG, b ids.Block) []ids.Block {
	term, ok := c.Terminator(b)
	if !ok {
		return nil
	}
	data := d.Inst(term)
	switch data.Opcode {
	case dfg.OpBr, dfg.OpBrCond, dfg.OpWait, dfg.OpWaitTime:
		return append([]ids.Block(nil), data.Blocks...)
	default:
		return nil
	}
}

// Predecessors computes b's incoming CFG edges by scanning every live
// block's successor set. The result is not cached: every call rescans
// the whole layout.
func (c *CFG) Predecessors(d *dfg.DFG, b ids.Block) []ids.Block {
	var preds []ids.Block
	for _, other := range c.Blocks() {
		for _, s := range c.Successors(d, other) {
			if s == b {
				preds = append(preds, other)
				break
			}
		}
	}
	return preds
}
