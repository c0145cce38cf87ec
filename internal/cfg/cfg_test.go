package cfg

import (
	"testing"

	"llhd/internal/dfg"
	"llhd/internal/ids"
)

func TestAppendBlockPreservesLayoutOrder(t *testing.T) {
	c := New()
	b1 := c.AppendBlock("entry")
	b2 := c.AppendBlock("body")
	b3 := c.AppendBlock("exit")

	got := c.Blocks()
	want := []ids.Block{b1, b2, b3}
	if len(got) != len(want) {
		t.Fatalf("Blocks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Blocks()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPrependBlockGoesFirst(t *testing.T) {
	c := New()
	b1 := c.AppendBlock("a")
	b0 := c.PrependBlock("prelude")

	got := c.Blocks()
	if len(got) != 2 || got[0] != b0 || got[1] != b1 {
		t.Errorf("Blocks() = %v, want [%v %v]", got, b0, b1)
	}
}

func TestInstLayoutWithinBlock(t *testing.T) {
	c := New()
	b := c.AppendBlock("")

	c.AppendInst(b, ids.Inst(0))
	c.AppendInst(b, ids.Inst(1))
	c.PrependInst(b, ids.Inst(2))

	got := c.InstsIn(b)
	want := []ids.Inst{2, 0, 1}
	if len(got) != len(want) {
		t.Fatalf("InstsIn(b) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("InstsIn(b)[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInsertBeforeAndAfter(t *testing.T) {
	c := New()
	b := c.AppendBlock("")
	c.AppendInst(b, ids.Inst(0))
	c.InsertAfter(ids.Inst(0), ids.Inst(1))
	c.InsertBefore(ids.Inst(0), ids.Inst(2))

	got := c.InstsIn(b)
	want := []ids.Inst{2, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("InstsIn(b) = %v, want %v", got, want)
			break
		}
	}
}

func TestRemoveInstUnlinksFromLayout(t *testing.T) {
	c := New()
	b := c.AppendBlock("")
	c.AppendInst(b, ids.Inst(0))
	c.AppendInst(b, ids.Inst(1))
	c.AppendInst(b, ids.Inst(2))

	c.RemoveInst(ids.Inst(1))

	got := c.InstsIn(b)
	want := []ids.Inst{0, 2}
	if len(got) != len(want) {
		t.Fatalf("InstsIn(b) after remove = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("InstsIn(b)[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSuccessorsDerivedFromTerminator(t *testing.T) {
	d := dfg.New()
	c := New()
	entry := c.AppendBlock("entry")
	taken := c.AppendBlock("taken")
	notTaken := c.AppendBlock("not_taken")

	cond := d.AddArgValue(nil, "cond", 0)
	brCondInst, _, _ := d.AddInst(dfg.InstData{
		Opcode: dfg.OpBrCond,
		Args:   []ids.Value{cond},
		Blocks: []ids.Block{taken, notTaken},
	}, nil, "")
	c.AppendInst(entry, brCondInst)

	succs := c.Successors(d, entry)
	if len(succs) != 2 || succs[0] != taken || succs[1] != notTaken {
		t.Errorf("Successors(entry) = %v, want [%v %v]", succs, taken, notTaken)
	}

	preds := c.Predecessors(d, taken)
	if len(preds) != 1 || preds[0] != entry {
		t.Errorf("Predecessors(taken) = %v, want [%v]", preds, entry)
	}
}

func TestTerminatorReportsAbsence(t *testing.T) {
	c := New()
	b := c.AppendBlock("")
	if _, ok := c.Terminator(b); ok {
		t.Error("an empty block should report no terminator")
	}
	c.AppendInst(b, ids.Inst(0))
	term, ok := c.Terminator(b)
	if !ok || term != ids.Inst(0) {
		t.Errorf("Terminator(b) = (%v, %v), want (0, true)", term, ok)
	}
}
