// Package llhd is the public face of the HDL-IR middle end: parse LLHD
// assembly into a module, link and verify it, run the optimization
// pipeline, simulate, and print it back out. Everything underneath lives
// in internal/ packages; front ends compose these five calls.
package llhd

import (
	"context"
	"io"

	"llhd/internal/asm"
	"llhd/internal/module"
	"llhd/internal/opt"
	"llhd/internal/sim"
	"llhd/internal/verify"
)

// Module is the top-level unit collection. See internal/module for the
// full API; the alias keeps handle types usable across the facade
// boundary without re-exporting every internal package.
type Module = module.Module

// Parse reads LLHD assembly text into a module, then links externs and
// verifies every unit, the same two-step contract every builder-based
// construction path follows.
func Parse(filename, source string) (*Module, error) {
	m, err := asm.ReadModule(filename, source)
	if err != nil {
		return nil, err
	}
	if err := m.Link(); err != nil {
		return nil, err
	}
	if err := verify.Module(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Write renders m as canonical LLHD assembly text.
func Write(m *Module) string { return asm.WriteModule(m) }

// Optimize runs the default pass pipeline over m in place, then verifies
// the result. A pipeline error is returned as is; otherwise every
// invariant violation the passes introduced (a bug in the pass, per the
// propagation policy: passes must preserve invariants) is reported in
// one error.
func Optimize(ctx context.Context, m *Module) error {
	if err := opt.RunModule(ctx, m); err != nil {
		return err
	}
	return verify.Module(m)
}

// Simulate elaborates top and runs it for at most maxSteps instants
// (maxSteps <= 0 runs until the event queue drains), writing a VCD trace
// to vcdOut when it is non-nil.
func Simulate(m *Module, top string, maxSteps int, vcdOut io.Writer, opts ...sim.EngineOption) error {
	if vcdOut != nil {
		opts = append(opts, sim.WithTracer(sim.NewVCDTracer(vcdOut)))
	}
	e, err := sim.NewEngine(m, top, opts...)
	if err != nil {
		return err
	}
	if e.Tracer != nil {
		if err := e.Tracer.Begin(e); err != nil {
			return err
		}
	}
	e.Run(maxSteps)
	if e.Tracer != nil {
		return e.Tracer.End()
	}
	return nil
}
