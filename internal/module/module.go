// Package module implements the top-level collection of units plus the
// link step that binds extern references to concrete units (spec.md
// §3/§4 "Module & linker").
package module

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"llhd/internal/ids"
	"llhd/internal/types"
	"llhd/internal/unit"
)

// Module maps UnitId to unit data and indexes units by name for lookup
// and linking.
type Module struct {
	units   []*unit.Unit
	byName  map[string]ids.UnitId
}

// New creates an empty module.
func New() *Module {
	return &Module{byName: make(map[string]ids.UnitId)}
}

// AddUnit registers u under its own name and returns its id. Adding two
// units with the same name is a caller error (panics), matching the
// builder-never-returns-errors posture from spec.md §7.
func (m *Module) AddUnit(u *unit.Unit) ids.UnitId {
	if _, exists := m.byName[u.Name]; exists {
		panic(fmt.Sprintf("module: duplicate unit name %q", u.Name))
	}
	id := ids.UnitId(len(m.units))
	m.units = append(m.units, u)
	m.byName[u.Name] = id
	return id
}

// Unit returns the unit stored at id.
func (m *Module) Unit(id ids.UnitId) *unit.Unit { return m.units[id] }

// Lookup resolves a unit by name.
func (m *Module) Lookup(name string) (ids.UnitId, bool) {
	id, ok := m.byName[name]
	return id, ok
}

// Units returns every unit in declaration order.
func (m *Module) Units() []*unit.Unit { return m.units }

// UnitIds returns every unit id in declaration order.
func (m *Module) UnitIds() []ids.UnitId {
	out := make([]ids.UnitId, len(m.units))
	for i := range m.units {
		out[i] = ids.UnitId(i)
	}
	return out
}

// Link resolves every extern reference in every unit against the
// module's name index. An extern that resolves to nothing, or to a unit
// whose signature does not match the extern's declared signature, is
// reported as a link error; all such errors across the whole module are
// collected and returned together (spec.md §7 "Link error").
func (m *Module) Link() error {
	var errs *multierror.Error

	for _, u := range m.units {
		for idx, ext := range u.DFG.Externs() {
			target, ok := m.byName[ext.Name]
			if !ok {
				errs = multierror.Append(errs, fmt.Errorf(
					"unit %q: extern %q (ref #%d) does not resolve to any unit in the module",
					u.Name, ext.Name, idx))
				continue
			}
			targetUnit := m.units[target]
			if !types.Equal(ext.Signature, targetUnit.SignatureType()) {
				errs = multierror.Append(errs, fmt.Errorf(
					"unit %q: extern %q signature %s does not match defined unit %q signature %s",
					u.Name, ext.Name, ext.Signature.String(), ext.Name, targetUnit.SignatureType().String()))
				continue
			}
			u.DFG.ResolveExtern(ids.ExtUnit(idx), target)
		}
	}

	if errs != nil {
		return errs.ErrorOrNil()
	}
	return nil
}
