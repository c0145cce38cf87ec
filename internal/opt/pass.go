// Package opt implements the ten named optimization passes and the
// fixed-order pipeline described in spec.md §4.5, run with per-unit
// concurrency via golang.org/x/sync/errgroup (grounded on the pack's
// errgroup-based worker-pool manifests, see DESIGN.md).
package opt

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"llhd/internal/diag"
	"llhd/internal/module"
	"llhd/internal/unit"
)

// Pass is one optimization pass. RunOnUnit mutates u in place and
// reports whether it changed anything, the same `Apply(...) bool`
// contract the teacher's OptimizationPass interface uses.
type Pass interface {
	Name() string
	RunOnUnit(u *unit.Unit) bool
}

// Pipeline is the fixed order in which passes run, spec.md §4.5:
// constant folding and mem2reg first to expose the most SSA form for
// the value-numbering/motion passes, two rounds of code-motion +
// subexpression elimination to let each feed the other, then a final
// cleanup sweep, and finally the two structural lowering passes that
// only apply to processes.
var Pipeline = []Pass{
	ConstFoldingPass{},
	VarToPhiPromotionPass{},
	DeadCodeElimPass{},
	GlobalCommonSubexpressionElimPass{},
	EarlyCodeMotionPass{},
	TemporalCodeMotionPass{},
	EarlyCodeMotionPass{},
	TemporalCodeMotionPass{},
	GlobalCommonSubexpressionElimPass{},
	TemporalCodeMotionPass{},
	ConstFoldingPass{},
	EarlyCodeMotionPass{},
	GlobalCommonSubexpressionElimPass{},
	InstSimplificationPass{},
	DeadCodeElimPass{},
	ControlFlowSimplificationPass{},
	InstSimplificationPass{},
	DeadCodeElimPass{},
}

// StructuralPipeline runs once, after Pipeline has converged, since both
// passes change a unit's Kind and would otherwise confuse the passes
// above (which assume Kind is stable across the whole run).
var StructuralPipeline = []Pass{
	ProcessLoweringPass{},
	DesequentializationPass{},
}

var log = diag.NewLogger("opt")

// config carries the pass manager's knobs, set through functional
// options the way every constructor in this repo takes its settings.
type config struct {
	passes     []Pass
	structural []Pass
	workers    int
}

// Option configures one RunModule invocation.
type Option func(*config)

// WithPasses replaces the default pipeline with an explicit pass
// sequence (the -p flag of a front end); the structural lowering passes
// are skipped unless explicitly listed.
func WithPasses(ps ...Pass) Option {
	return func(c *config) {
		c.passes = ps
		c.structural = nil
	}
}

// WithWorkers caps how many units optimize concurrently within one
// pass. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// RunModule runs the pipeline over every unit in m, dispatching each
// pass's per-unit work across an errgroup so independent units optimize
// concurrently; passes themselves run in strict sequence since later
// passes depend on earlier ones having run.
func RunModule(ctx context.Context, m *module.Module, opts ...Option) error {
	c := &config{passes: Pipeline, structural: StructuralPipeline, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(c)
	}
	for _, p := range c.passes {
		if err := runPassConcurrently(ctx, p, m, c.workers); err != nil {
			return err
		}
	}
	for _, p := range c.structural {
		if err := runPassConcurrently(ctx, p, m, c.workers); err != nil {
			return err
		}
	}
	return nil
}

func runPassConcurrently(ctx context.Context, p Pass, m *module.Module, workers int) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, u := range m.Units() {
		u := u
		g.Go(func() error {
			if u.IsDeclaration() {
				return nil
			}
			if p.RunOnUnit(u) {
				log.Debug("%s changed %s %q", p.Name(), u.Kind, u.Name)
			}
			return nil
		})
	}
	return g.Wait()
}
