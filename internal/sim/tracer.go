package sim

import "llhd/internal/types"

// Tracer observes a running simulation, recording every signal-value
// change in whatever serialization its backend implements (spec.md
// §4.6's dump-backend contract). A tracer is attached to an Engine
// before the first Run call.
type Tracer interface {
	// Begin is called once, after elaboration and the initial settling
	// pass, with every signal already at its power-up value.
	Begin(e *Engine) error
	// SignalChanged is called once per signal whose value actually
	// changed at the current instant (Engine.Now).
	SignalChanged(t types.TimeValue, sig *Signal) error
	// End is called once the run loop stops.
	End() error
}

// signalPath is one hierarchical name a signal is known by; a signal
// bound to more than one scope's port (e.g. passed straight through a
// wrapper entity) is known by more than one path.
type signalPath struct {
	Signal SignalId
	Scope  string
	Name   string
	Type   types.Type
}

// collectSignalPaths walks every elaborated instance and records the
// declared name of each signal it exposes, under that instance's scope
// path — the naming tracers render signals under.
func (e *Engine) collectSignalPaths() []signalPath {
	var out []signalPath
	for _, inst := range e.Instances {
		path := inst.Scope.Path()
		for v, sigId := range inst.Signals {
			out = append(out, signalPath{
				Signal: sigId,
				Scope:  path,
				Name:   inst.SignalNames[v],
				Type:   e.Signals[sigId].Type,
			})
		}
	}
	return out
}

func constBitWidth(t types.Type) uint32 {
	switch v := t.(type) {
	case types.Int:
		return v.Width
	case types.Signal:
		return constBitWidth(v.Inner)
	case types.Enum:
		return 32
	default:
		return 1
	}
}
