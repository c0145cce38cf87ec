package module

import (
	"testing"

	"llhd/internal/types"
	"llhd/internal/unit"
)

func makeHelper() *unit.Unit {
	sig := unit.Signature{
		Inputs:     []unit.Param{{Name: "x", Type: types.Int{Width: 32}}},
		ReturnType: types.Int{Width: 32},
	}
	u := unit.New(unit.KindFunction, "helper", sig)
	entry := u.CFG.AppendBlock("")
	unit.NewBuilder(u).AppendTo(entry).RetValue(u.ArgValues[0])
	return u
}

func TestAddUnitAndLookup(t *testing.T) {
	m := New()
	id := m.AddUnit(makeHelper())

	got, ok := m.Lookup("helper")
	if !ok || got != id {
		t.Fatalf("Lookup(helper) = (%v, %v), want (%v, true)", got, ok, id)
	}
	if m.Unit(id).Name != "helper" {
		t.Errorf("Unit(id).Name = %q, want %q", m.Unit(id).Name, "helper")
	}
}

func TestAddUnitPanicsOnDuplicateName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("adding two units with the same name should panic")
		}
	}()
	m := New()
	m.AddUnit(makeHelper())
	m.AddUnit(makeHelper())
}

func TestUnitsPreservesDeclarationOrder(t *testing.T) {
	m := New()
	first := makeHelper()
	second := unit.New(unit.KindFunction, "second", unit.Signature{ReturnType: types.Void{}})
	m.AddUnit(first)
	m.AddUnit(second)

	units := m.Units()
	if len(units) != 2 || units[0].Name != "helper" || units[1].Name != "second" {
		t.Errorf("Units() order = %v, want [helper second]", units)
	}
}

func TestLinkResolvesMatchingExtern(t *testing.T) {
	m := New()
	m.AddUnit(makeHelper())

	callerSig := unit.Signature{
		Inputs:     []unit.Param{{Name: "x", Type: types.Int{Width: 32}}},
		ReturnType: types.Int{Width: 32},
	}
	caller := unit.New(unit.KindFunction, "caller", callerSig)
	entry := caller.CFG.AppendBlock("")
	b := unit.NewBuilder(caller).AppendTo(entry)
	ext := caller.DFG.AddExtern("helper", types.Func{Args: []types.Type{types.Int{Width: 32}}, ReturnType: types.Int{Width: 32}})
	_, result := b.Call(ext, caller.ArgValues, types.Int{Width: 32})
	b.RetValue(result)
	m.AddUnit(caller)

	if err := m.Link(); err != nil {
		t.Fatalf("Link() = %v, want nil", err)
	}
	if !caller.DFG.Extern(ext).IsResolved {
		t.Error("extern should be resolved after Link")
	}
}

func TestLinkReportsUnresolvedExtern(t *testing.T) {
	m := New()
	caller := unit.New(unit.KindFunction, "caller", unit.Signature{ReturnType: types.Void{}})
	entry := caller.CFG.AppendBlock("")
	b := unit.NewBuilder(caller).AppendTo(entry)
	ext := caller.DFG.AddExtern("missing", types.Func{ReturnType: types.Void{}})
	b.Call(ext, nil, types.Void{})
	b.Ret()
	m.AddUnit(caller)

	if err := m.Link(); err == nil {
		t.Error("Link() should report an error for an unresolved extern")
	}
}

func TestLinkReportsSignatureMismatch(t *testing.T) {
	m := New()
	m.AddUnit(makeHelper())

	caller := unit.New(unit.KindFunction, "caller", unit.Signature{ReturnType: types.Void{}})
	entry := caller.CFG.AppendBlock("")
	b := unit.NewBuilder(caller).AppendTo(entry)
	// Declares helper as taking no arguments, which does not match its
	// real (i32) -> i32 signature.
	ext := caller.DFG.AddExtern("helper", types.Func{ReturnType: types.Void{}})
	b.Call(ext, nil, types.Void{})
	b.Ret()
	m.AddUnit(caller)

	if err := m.Link(); err == nil {
		t.Error("Link() should report a signature mismatch error")
	}
}
