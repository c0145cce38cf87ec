// Package analysis implements the derived, cacheable views over a unit's
// CFG/DFG that the optimizer and verifier both consult: a dominator tree,
// a temporal-region graph, and use-counts (spec.md §4.4).
package analysis

import (
	"llhd/internal/ids"
	"llhd/internal/unit"
)

// DomTree is a Cooper-Harvey-Kennedy dominator tree (Cooper, Harvey &
// Kennedy, "A Simple, Fast Dominance Algorithm") with precomputed DFS
// pre/post ranges so Dominates is an O(1) interval check rather than a
// tree walk, which is what lets passes query it repeatedly inside a hot
// loop (spec.md §4.4 contrasts this with internal/verify's one-shot,
// uncached dominance check).
type DomTree struct {
	entry    ids.Block
	idom     map[ids.Block]ids.Block
	children map[ids.Block][]ids.Block
	pre      map[ids.Block]int
	post     map[ids.Block]int
}

// BuildDomTree computes the dominator tree of u's CFG.
func BuildDomTree(u *unit.Unit) *DomTree {
	t := &DomTree{
		idom:     map[ids.Block]ids.Block{},
		children: map[ids.Block][]ids.Block{},
		pre:      map[ids.Block]int{},
		post:     map[ids.Block]int{},
	}
	entry, ok := u.CFG.EntryBlock()
	if !ok {
		return t
	}
	t.entry = entry

	rpo := reversePostorder(u, entry)
	rpoNum := map[ids.Block]int{}
	for i, b := range rpo {
		rpoNum[b] = i
	}
	preds := map[ids.Block][]ids.Block{}
	for _, b := range rpo {
		for _, s := range u.CFG.Successors(u.DFG, b) {
			preds[s] = append(preds[s], b)
		}
	}

	t.idom[entry] = entry
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == entry {
				continue
			}
			var newIdom ids.Block
			haveNew := false
			for _, p := range preds[b] {
				if _, ok := t.idom[p]; !ok {
					continue
				}
				if !haveNew {
					newIdom = p
					haveNew = true
					continue
				}
				newIdom = intersect(t.idom, rpoNum, newIdom, p)
			}
			if !haveNew {
				continue
			}
			if cur, ok := t.idom[b]; !ok || cur != newIdom {
				t.idom[b] = newIdom
				changed = true
			}
		}
	}

	for b, d := range t.idom {
		if b == entry {
			continue
		}
		t.children[d] = append(t.children[d], b)
	}
	clock := 0
	var dfs func(b ids.Block)
	dfs = func(b ids.Block) {
		clock++
		t.pre[b] = clock
		for _, c := range t.children[b] {
			dfs(c)
		}
		clock++
		t.post[b] = clock
	}
	dfs(entry)
	return t
}

func intersect(idom map[ids.Block]ids.Block, rpoNum map[ids.Block]int, a, b ids.Block) ids.Block {
	for a != b {
		for rpoNum[a] > rpoNum[b] {
			a = idom[a]
		}
		for rpoNum[b] > rpoNum[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(u *unit.Unit, entry ids.Block) []ids.Block {
	visited := map[ids.Block]bool{}
	var post []ids.Block
	var dfs func(b ids.Block)
	dfs = func(b ids.Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range u.CFG.Successors(u.DFG, b) {
			dfs(s)
		}
		post = append(post, b)
	}
	dfs(entry)
	rpo := make([]ids.Block, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

// IDom returns b's immediate dominator, if b is reachable from the entry.
func (t *DomTree) IDom(b ids.Block) (ids.Block, bool) {
	d, ok := t.idom[b]
	return d, ok
}

// Dominates reports whether a dominates b (a block always dominates
// itself).
func (t *DomTree) Dominates(a, b ids.Block) bool {
	pa, ok := t.pre[a]
	if !ok {
		return false
	}
	pb, ok := t.pre[b]
	if !ok {
		return false
	}
	return pa <= pb && t.post[b] <= t.post[a]
}

// Children returns b's immediate children in the dominator tree.
func (t *DomTree) Children(b ids.Block) []ids.Block { return t.children[b] }

// LCA returns the lowest common ancestor of a and b in the dominator
// tree: the deepest block that dominates both.
func (t *DomTree) LCA(a, b ids.Block) ids.Block {
	ancestors := map[ids.Block]bool{}
	for x := a; ; {
		ancestors[x] = true
		if x == t.entry {
			break
		}
		x = t.idom[x]
	}
	for x := b; ; {
		if ancestors[x] {
			return x
		}
		if x == t.entry {
			return t.entry
		}
		x = t.idom[x]
	}
}

// Order returns every reachable block in dominator-tree preorder
// (parents before children), the order VarToPhiPromotion's renaming walk
// requires.
func (t *DomTree) Order() []ids.Block {
	var out []ids.Block
	var dfs func(b ids.Block)
	dfs = func(b ids.Block) {
		out = append(out, b)
		for _, c := range t.children[b] {
			dfs(c)
		}
	}
	if _, ok := t.pre[t.entry]; ok || len(t.pre) > 0 {
		dfs(t.entry)
	}
	return out
}

// Frontier computes the dominance frontier of every block (Cytron et al.):
// DF(b) is the set of blocks where b's dominance stops, the set
// VarToPhiPromotion inserts phis at.
func (t *DomTree) Frontier(u *unit.Unit) map[ids.Block][]ids.Block {
	df := map[ids.Block]map[ids.Block]bool{}
	for _, b := range u.CFG.Blocks() {
		preds := u.CFG.Predecessors(u.DFG, b)
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			runner := p
			for runner != t.idom[b] {
				if _, reached := t.pre[runner]; !reached {
					break
				}
				if df[runner] == nil {
					df[runner] = map[ids.Block]bool{}
				}
				df[runner][b] = true
				if runner == t.entry {
					break
				}
				runner = t.idom[runner]
			}
		}
	}
	out := make(map[ids.Block][]ids.Block, len(df))
	for b, set := range df {
		for f := range set {
			out[b] = append(out[b], f)
		}
	}
	return out
}
