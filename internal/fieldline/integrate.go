package fieldline

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/fieldlines/internal/grid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// StopReason records why a streamline stopped growing.
type StopReason uint8

const (
	// StopIterationCap means every iteration produced a point.
	StopIterationCap StopReason = iota
	// StopWeakGradient means the sampled magnitude fell below MinGradMag.
	StopWeakGradient
	// StopStrongGradient means the sampled magnitude exceeded MaxGradMag.
	StopStrongGradient
	// StopNonFinite means the sampled magnitude was NaN.
	StopNonFinite
	// StopOutOfBounds means the next point left the grid box.
	StopOutOfBounds
	// StopCancelled means the context ended before the line finished.
	StopCancelled
)

// StopReasons lists every reason in declaration order.
var StopReasons = []StopReason{
	StopIterationCap, StopWeakGradient, StopStrongGradient,
	StopNonFinite, StopOutOfBounds, StopCancelled,
}

func (r StopReason) String() string {
	switch r {
	case StopIterationCap:
		return "iteration_cap"
	case StopWeakGradient:
		return "weak_gradient"
	case StopStrongGradient:
		return "strong_gradient"
	case StopNonFinite:
		return "non_finite"
	case StopOutOfBounds:
		return "out_of_bounds"
	case StopCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("StopReason(%d)", uint8(r))
}

// Streamline is the traced polyline for one seed.
type Streamline struct {
	Seed   grid.CellIndex
	Points []r3.Vec
	// Length is the arc length: StepLength times the number of points
	// appended after the seed. The step rejected at the boundary is not
	// counted. Tracers that add the step before the bounds test report
	// StopOutOfBounds lines one StepLength longer, so 39 steps of 0.25 are
	// 9.75 here and fall below a minimum length of 10.
	Length float64
	Stop   StopReason
}

// Serializable reports whether the line has at least one step.
func (s Streamline) Serializable() bool { return len(s.Points) > 1 }

// IntegratorConfig holds the integration limits.
type IntegratorConfig struct {
	MaxIterations int
	MinGradMag    float64
	MaxGradMag    float64
	// Workers bounds the number of seeds traced concurrently. <= 0 means GOMAXPROCS.
	Workers int
}

// DefaultIntegratorConfig returns the stock limits.
func DefaultIntegratorConfig() IntegratorConfig {
	return IntegratorConfig{
		MaxIterations: 500,
		MinGradMag:    0.0001,
		MaxGradMag:    5.0,
	}
}

// Integrator advances points through a gradient field with a fixed step.
type Integrator struct {
	cfg    IntegratorConfig
	field  *GradientField
	mapper grid.Mapper
	delta  float64
}

// NewIntegrator binds a grid and its gradient field.
func NewIntegrator(g *grid.Grid, field *GradientField, cfg IntegratorConfig) (*Integrator, error) {
	if g.Dims() != field.Dims() {
		return nil, fmt.Errorf("%w: grid %v, field %v", ErrShapeMismatch, g.Dims(), field.Dims())
	}
	s := g.Spacing()
	return &Integrator{
		cfg:    cfg,
		field:  field,
		mapper: g.Mapper(),
		delta:  0.25 * floats.Min([]float64{s.X, s.Y, s.Z}),
	}, nil
}

// StepLength is the physical distance covered by one step: a quarter of
// the smallest spacing.
func (in *Integrator) StepLength() float64 { return in.delta }

// Trace integrates a single seed. The first point is the seed's lower
// cell corner; each iteration samples the gradient of the cell containing
// the last point and moves StepLength along it. A degenerate sample or a
// step leaving the box ends the line without appending.
func (in *Integrator) Trace(ctx context.Context, seed grid.CellIndex) Streamline {
	done := ctx.Done()
	pts := make([]r3.Vec, 1, 32)
	pts[0] = in.mapper.GridToSpace(seed)
	line := Streamline{Seed: seed, Stop: StopIterationCap}

	for it := 1; it <= in.cfg.MaxIterations; it++ {
		select {
		case <-done:
			line.Stop = StopCancelled
			line.Points = pts
			return line
		default:
		}

		prev := pts[len(pts)-1]
		v := in.field.At(in.mapper.SpaceToGrid(prev))
		norm := r3.Norm(v)
		if math.IsNaN(norm) {
			line.Stop = StopNonFinite
			break
		}
		if norm < in.cfg.MinGradMag {
			line.Stop = StopWeakGradient
			break
		}
		if norm > in.cfg.MaxGradMag {
			line.Stop = StopStrongGradient
			break
		}

		next := r3.Add(prev, r3.Scale(in.delta/norm, v))
		if !in.mapper.InBounds(next) {
			line.Stop = StopOutOfBounds
			break
		}
		pts = append(pts, next)
		line.Length += in.delta
	}
	line.Points = pts
	return line
}

// TraceAll integrates every seed and returns the lines in seed order.
// Seeds are split statically into one contiguous chunk per worker. If ctx
// ends early the remaining lines are marked StopCancelled and the context
// error is returned alongside the partial result.
func (in *Integrator) TraceAll(ctx context.Context, seeds []grid.CellIndex) ([]Streamline, error) {
	lines := make([]Streamline, len(seeds))
	chunks := partition(len(seeds), resolveWorkers(in.cfg.Workers))
	if len(chunks) == 0 {
		return lines, nil
	}

	var pool errgroup.Group
	pool.SetLimit(len(chunks))
	for _, c := range chunks {
		pool.Go(func() error {
			for i := c.lo; i < c.hi; i++ {
				if ctx.Err() != nil {
					lines[i] = Streamline{
						Seed:   seeds[i],
						Points: []r3.Vec{in.mapper.GridToSpace(seeds[i])},
						Stop:   StopCancelled,
					}
					continue
				}
				lines[i] = in.Trace(ctx, seeds[i])
			}
			return nil
		})
	}
	_ = pool.Wait()

	for _, l := range lines {
		if l.Stop == StopCancelled {
			return lines, fmt.Errorf("trace %d seeds: %w", len(seeds), ctx.Err())
		}
	}
	return lines, nil
}
