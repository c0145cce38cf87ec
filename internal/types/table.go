package types

import "sync"

// Table interns Type values so that two structurally identical types
// become the same interface value, making Equal a cheap comparison and
// Type values cheap to clone (a copy is just an interface word).
//
// Interning here keys on the type's canonical string form: types are
// small, finite, and fully self-describing, so two types with the same
// key are the same type.
type Table struct {
	mu    sync.Mutex
	table map[string]Type
}

// NewTable creates an empty type table.
func NewTable() *Table {
	return &Table{table: make(map[string]Type)}
}

// Intern returns the canonical instance of t, recursively interning any
// nested types first so that, e.g., two Array{Element: Int{32}} built
// independently compare equal via Equal (and, once interned, via ==).
func (t *Table) Intern(v Type) Type {
	v = t.canonicalizeChildren(v)

	t.mu.Lock()
	defer t.mu.Unlock()
	k := v.key()
	if existing, ok := t.table[k]; ok {
		return existing
	}
	t.table[k] = v
	return v
}

func (t *Table) canonicalizeChildren(v Type) Type {
	switch x := v.(type) {
	case Pointer:
		x.Inner = t.Intern(x.Inner)
		return x
	case Signal:
		x.Inner = t.Intern(x.Inner)
		return x
	case Array:
		x.Element = t.Intern(x.Element)
		return x
	case Struct:
		fields := make([]Type, len(x.Fields))
		for i, f := range x.Fields {
			fields[i] = t.Intern(f)
		}
		x.Fields = fields
		return x
	case Func:
		args := make([]Type, len(x.Args))
		for i, a := range x.Args {
			args[i] = t.Intern(a)
		}
		x.Args = args
		x.ReturnType = t.Intern(x.ReturnType)
		return x
	case Entity:
		in := make([]Type, len(x.Inputs))
		for i, a := range x.Inputs {
			in[i] = t.Intern(a)
		}
		out := make([]Type, len(x.Outputs))
		for i, a := range x.Outputs {
			out[i] = t.Intern(a)
		}
		x.Inputs, x.Outputs = in, out
		return x
	default:
		return v
	}
}
