package analysis

import (
	"strings"
	"testing"

	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

func TestBuildTRGSplitsAtWaitBoundaries(t *testing.T) {
	u := unit.New(unit.KindProcess, "watcher", unit.Signature{})
	entry := u.CFG.AppendBlock("entry")
	body := u.CFG.AppendBlock("body")

	unit.NewBuilder(u).AppendTo(entry).Wait(nil, ids.InvalidValue, false, body)
	unit.NewBuilder(u).AppendTo(body).WaitTime(types.ZeroTime(), entry)

	g := BuildTRG(u)
	if len(g.Regions) != 2 {
		t.Fatalf("len(Regions) = %d, want 2 (one per side of the wait boundary)", len(g.Regions))
	}

	entryRegion, ok := g.RegionOf(entry)
	if !ok {
		t.Fatal("entry should belong to some region")
	}
	bodyRegion, ok := g.RegionOf(body)
	if !ok {
		t.Fatal("body should belong to some region")
	}
	if entryRegion == bodyRegion {
		t.Error("entry and body are on opposite sides of a wait, they must be different regions")
	}

	if !containsInt(g.Successors(entryRegion), bodyRegion) {
		t.Errorf("Successors(entryRegion) = %v, want it to include bodyRegion %d", g.Successors(entryRegion), bodyRegion)
	}
	if !containsInt(g.Successors(bodyRegion), entryRegion) {
		t.Errorf("Successors(bodyRegion) = %v, want it to include entryRegion %d (the wait_time loops back)", g.Successors(bodyRegion), entryRegion)
	}
}

func TestBuildTRGHeadAndTailMetadata(t *testing.T) {
	st := types.Signal{Inner: types.Int{Width: 8}}
	sig := unit.Signature{Inputs: []unit.Param{{Name: "s", Type: st}}}
	u := unit.New(unit.KindProcess, "p", sig)
	loop := u.CFG.AppendBlock("loop")
	b := unit.NewBuilder(u).AppendTo(loop)
	_, v := b.Prb(u.ArgValues[0])
	_ = v
	b.Wait([]ids.Value{u.ArgValues[0]}, ids.InvalidValue, false, loop)

	g := BuildTRG(u)
	if len(g.Regions) != 1 {
		t.Fatalf("len(Regions) = %d, want 1", len(g.Regions))
	}
	r := g.Regions[0]
	if r.Entry != loop {
		t.Errorf("Entry = %v, want the loop block", r.Entry)
	}
	if len(r.HeadInsts) != 1 {
		t.Errorf("HeadInsts = %d instructions, want 1 (the prb; the wait is the boundary)", len(r.HeadInsts))
	}
	if !r.HeadTight {
		t.Error("a self-looping wait re-enters from across the boundary; the head is still tight")
	}
	if !r.TailTight || len(r.TailBlocks) != 1 || r.TailBlocks[0] != loop {
		t.Errorf("tail = (%v, tight=%v), want the loop block as the sole tight exit", r.TailBlocks, r.TailTight)
	}
}

func TestDumpTRGRendersRegionsAndEdges(t *testing.T) {
	u := unit.New(unit.KindProcess, "watcher", unit.Signature{})
	entry := u.CFG.AppendBlock("entry")
	body := u.CFG.AppendBlock("body")
	unit.NewBuilder(u).AppendTo(entry).Wait(nil, ids.InvalidValue, false, body)
	unit.NewBuilder(u).AppendTo(body).WaitTime(types.ZeroTime(), entry)

	out := DumpTRG(u, BuildTRG(u))
	for _, want := range []string{`proc "watcher"`, "region 0", "region 1", "entry", "body"} {
		if !strings.Contains(out, want) {
			t.Errorf("DumpTRG output missing %q:\n%s", want, out)
		}
	}
}

func TestBuildTRGFunctionIsSingleRegion(t *testing.T) {
	u := unit.New(unit.KindFunction, "f", unit.Signature{ReturnType: types.Void{}})
	entry := u.CFG.AppendBlock("")
	unit.NewBuilder(u).AppendTo(entry).Ret()

	g := BuildTRG(u)
	if len(g.Regions) != 1 {
		t.Errorf("len(Regions) = %d, want 1 (functions have no suspension points)", len(g.Regions))
	}
}

func TestCountUsesReflectsDFGUses(t *testing.T) {
	sig := unit.Signature{
		Inputs:     []unit.Param{{Name: "a", Type: types.Int{Width: 32}}},
		ReturnType: types.Int{Width: 32},
	}
	u := unit.New(unit.KindFunction, "f", sig)
	entry := u.CFG.AppendBlock("")
	b := unit.NewBuilder(u).AppendTo(entry)
	_, doubled := b.Binary("add", u.ArgValues[0], u.ArgValues[0])
	b.RetValue(doubled)

	counts := CountUses(u)
	if counts[u.ArgValues[0]] != 2 {
		t.Errorf("use count of a = %d, want 2 (read twice by add)", counts[u.ArgValues[0]])
	}
	if counts[doubled] != 1 {
		t.Errorf("use count of the add result = %d, want 1 (read once by ret_value)", counts[doubled])
	}
}

func containsInt(list []int, target int) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
