package analysis

import (
	"testing"

	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// diamond builds entry -> {a, b} -> merge and returns the blocks in that order.
func diamond(t *testing.T) (*unit.Unit, [4]ids.Block) {
	t.Helper()
	sig := unit.Signature{Inputs: []unit.Param{{Name: "cond", Type: types.Int{Width: 1}}}}
	u := unit.New(unit.KindFunction, "f", sig)
	entry := u.CFG.AppendBlock("entry")
	a := u.CFG.AppendBlock("a")
	b := u.CFG.AppendBlock("b")
	merge := u.CFG.AppendBlock("merge")

	unit.NewBuilder(u).AppendTo(entry).BrCond(u.ArgValues[0], a, b)
	unit.NewBuilder(u).AppendTo(a).Br(merge)
	unit.NewBuilder(u).AppendTo(b).Br(merge)
	unit.NewBuilder(u).AppendTo(merge).Ret()

	return u, [4]ids.Block{entry, a, b, merge}
}

func TestDomTreeImmediateDominators(t *testing.T) {
	u, blk := diamond(t)
	entry, a, _, merge := blk[0], blk[1], blk[2], blk[3]
	tree := BuildDomTree(u)

	if idom, ok := tree.IDom(merge); !ok || idom != entry {
		t.Errorf("IDom(merge) = (%v, %v), want (%v, true) — a/b don't dominate each other", idom, ok, entry)
	}
	if idom, ok := tree.IDom(a); !ok || idom != entry {
		t.Errorf("IDom(a) = (%v, %v), want (%v, true)", idom, ok, entry)
	}
}

func TestDomTreeDominates(t *testing.T) {
	u, blk := diamond(t)
	entry, a, b, merge := blk[0], blk[1], blk[2], blk[3]
	tree := BuildDomTree(u)

	if !tree.Dominates(entry, merge) {
		t.Error("entry should dominate merge")
	}
	if tree.Dominates(a, merge) {
		t.Error("a should not dominate merge: b is an alternate path")
	}
	if tree.Dominates(a, b) {
		t.Error("a and b are siblings, neither should dominate the other")
	}
	if !tree.Dominates(entry, entry) {
		t.Error("a block should always dominate itself")
	}
}

func TestDomTreeFrontier(t *testing.T) {
	u, blk := diamond(t)
	a, b, merge := blk[1], blk[2], blk[3]
	tree := BuildDomTree(u)

	df := tree.Frontier(u)
	if !containsBlock(df[a], merge) {
		t.Errorf("Frontier()[a] = %v, want it to contain merge", df[a])
	}
	if !containsBlock(df[b], merge) {
		t.Errorf("Frontier()[b] = %v, want it to contain merge", df[b])
	}
}

func TestDomTreeOrderIsParentBeforeChild(t *testing.T) {
	u, blk := diamond(t)
	entry := blk[0]
	tree := BuildDomTree(u)

	order := tree.Order()
	if len(order) == 0 || order[0] != entry {
		t.Fatalf("Order()[0] = %v, want entry %v first", order, entry)
	}
}

func containsBlock(list []ids.Block, target ids.Block) bool {
	for _, b := range list {
		if b == target {
			return true
		}
	}
	return false
}
