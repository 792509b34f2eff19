package fieldline

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/banshee-data/fieldlines/internal/grid"
	"github.com/banshee-data/fieldlines/internal/grid/dx"
	"github.com/banshee-data/fieldlines/internal/monitoring"
	"github.com/banshee-data/fieldlines/internal/timeutil"
)

// Params are the tunables of one run.
type Params struct {
	// SeedThreshold is the target gradient magnitude for seed selection.
	SeedThreshold float64
	Integrator    IntegratorConfig
	Lengths       LengthRange
}

// DefaultParams returns threshold 1.8 with the default integrator limits
// and length range.
func DefaultParams() Params {
	return Params{
		SeedThreshold: 1.8,
		Integrator:    DefaultIntegratorConfig(),
		Lengths:       DefaultLengthRange(),
	}
}

// Result carries every intermediate product of a run.
type Result struct {
	Field  *GradientField
	Seeds  []grid.CellIndex
	Traced []Streamline // seed order, before filtering
	Lines  []Streamline // seed order, after filtering
	// Elapsed covers seed selection and integration.
	Elapsed time.Duration
	Summary Summary
}

// Written returns the number of lines the document contains.
func (r *Result) Written() int { return r.Summary.Written }

// Pipeline runs load -> gradient -> seed -> integrate -> filter -> serialize.
type Pipeline struct {
	params Params
	fs     fsutil.FileSystem
	clock  timeutil.Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFileSystem replaces the OS filesystem.
func WithFileSystem(fsys fsutil.FileSystem) Option {
	return func(p *Pipeline) { p.fs = fsys }
}

// WithClock replaces the wall clock used for phase timing.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// NewPipeline creates a pipeline with the given parameters.
func NewPipeline(params Params, opts ...Option) *Pipeline {
	p := &Pipeline{
		params: params,
		fs:     fsutil.OSFileSystem{},
		clock:  timeutil.RealClock{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Params returns the pipeline's parameters.
func (p *Pipeline) Params() Params { return p.params }

// Compute runs every stage except I/O. On cancellation it returns the
// partial result together with the error.
func (p *Pipeline) Compute(ctx context.Context, g *grid.Grid) (*Result, error) {
	field, err := ComputeGradient(ctx, g, p.params.Integrator.Workers)
	if err != nil {
		return nil, err
	}

	start := p.clock.Now()
	seeds := SelectSeeds(field, p.params.SeedThreshold)
	monitoring.Debugf("selected %d seeds of %d cells (threshold %g)", len(seeds), field.Len(), p.params.SeedThreshold)

	integ, err := NewIntegrator(g, field, p.params.Integrator)
	if err != nil {
		return nil, err
	}
	traced, traceErr := integ.TraceAll(ctx, seeds)
	elapsed := p.clock.Since(start)

	lines := FilterByLength(traced, p.params.Lengths)
	res := &Result{
		Field:   field,
		Seeds:   seeds,
		Traced:  traced,
		Lines:   lines,
		Elapsed: elapsed,
		Summary: Summarize(traced, lines),
	}
	monitoring.Debugf("traced %d lines in %v, %d kept, stops: %s",
		len(traced), elapsed, res.Summary.Written, res.Summary.StopsString())
	if traceErr != nil {
		return res, traceErr
	}
	return res, nil
}

// Load reads the grid at path.
func (p *Pipeline) Load(path string) (*grid.Grid, error) {
	return dx.Load(p.fs, path)
}

// Write serializes the result's lines to path and returns the number of
// lines written. A failed encode leaves path untouched.
func (p *Pipeline) Write(res *Result, path string) (int, error) {
	f, err := fsutil.CreateAll(p.fs, path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := NewEncoder(f).Encode(res.Lines)
	if err != nil {
		f.Abort()
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	return n, nil
}

// Run loads in, computes, and writes out. Nothing is written when the
// computation is cancelled.
func (p *Pipeline) Run(ctx context.Context, in, out string) (*Result, error) {
	g, err := p.Load(in)
	if err != nil {
		return nil, err
	}
	d := g.Dims()
	monitoring.Debugf("loaded %s: %dx%dx%d cells, origin %v, spacing %v", in, d[0], d[1], d[2], g.Origin(), g.Spacing())

	res, err := p.Compute(ctx, g)
	if err != nil {
		return res, err
	}
	if _, err := p.Write(res, out); err != nil {
		return res, err
	}
	return res, nil
}
