package fieldline

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/fieldlines/internal/grid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrShapeMismatch is returned when a field and a grid disagree on dims.
var ErrShapeMismatch = errors.New("fieldline: gradient field and grid dimensions differ")

// GradientField holds one gradient vector per grid cell, laid out like
// the grid values.
type GradientField struct {
	dims grid.Dims
	vecs []r3.Vec
}

// NewGradientField wraps precomputed vectors. len(vecs) must equal dims.Len().
func NewGradientField(dims grid.Dims, vecs []r3.Vec) (*GradientField, error) {
	if len(vecs) != dims.Len() {
		return nil, fmt.Errorf("%w: %d vectors for %v", ErrShapeMismatch, len(vecs), dims)
	}
	return &GradientField{dims: dims, vecs: vecs}, nil
}

// Dims returns the field's shape.
func (f *GradientField) Dims() grid.Dims { return f.dims }

// Len returns the number of cells.
func (f *GradientField) Len() int { return len(f.vecs) }

// At returns the vector at idx without range checks. Indices produced by
// grid.SpaceToGrid are always in range.
func (f *GradientField) At(idx grid.CellIndex) r3.Vec {
	return f.vecs[(idx[0]*f.dims[1]+idx[1])*f.dims[2]+idx[2]]
}

// Vector returns the vector at idx, or grid.ErrOutOfRange.
func (f *GradientField) Vector(idx grid.CellIndex) (r3.Vec, error) {
	for axis, n := range f.dims {
		if idx[axis] < 0 || idx[axis] >= n {
			return r3.Vec{}, fmt.Errorf("%w: %v not in %v", grid.ErrOutOfRange, idx, f.dims)
		}
	}
	return f.At(idx), nil
}

// AxisScales returns the factor applied to each axis' neighbor difference.
//
// The factor is -0.5/(spacing-1) for axes with more than one cell and
// -0.5 otherwise. It is derived from the spacing, not from the number of
// cells, and it is not the textbook 1/(2*spacing); seed selection and line
// shapes depend on it. A spacing of exactly 1 divides by zero and yields
// infinite factors.
func AxisScales(dims grid.Dims, spacing r3.Vec) [3]float64 {
	var s [3]float64
	for axis := 0; axis < 3; axis++ {
		inv := 1.0
		if dims[axis] > 1 {
			inv = 1.0 / (grid.Component(spacing, axis) - 1.0)
		}
		s[axis] = -0.5 * inv
	}
	return s
}

// ComputeGradient differentiates g along each axis with neighbors clamped
// into the grid, so boundary cells difference against themselves. Work is
// split into contiguous x slabs, one per worker; workers <= 0 means
// GOMAXPROCS.
func ComputeGradient(ctx context.Context, g *grid.Grid, workers int) (*GradientField, error) {
	dims := g.Dims()
	scale := AxisScales(dims, g.Spacing())
	vecs := make([]r3.Vec, g.Len())

	var pool errgroup.Group
	slabs := partition(dims[0], resolveWorkers(workers))
	pool.SetLimit(len(slabs))
	for _, s := range slabs {
		pool.Go(func() error {
			return gradientSlab(ctx, g, scale, vecs, s)
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, fmt.Errorf("compute gradient: %w", err)
	}
	return &GradientField{dims: dims, vecs: vecs}, nil
}

func gradientSlab(ctx context.Context, g *grid.Grid, scale [3]float64, out []r3.Vec, s span) error {
	dims := g.Dims()
	nx, ny, nz := dims[0], dims[1], dims[2]
	for x := s.lo; x < s.hi; x++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		xm, xp := max(x-1, 0), min(x+1, nx-1)
		for y := 0; y < ny; y++ {
			ym, yp := max(y-1, 0), min(y+1, ny-1)
			for z := 0; z < nz; z++ {
				zm, zp := max(z-1, 0), min(z+1, nz-1)
				out[g.Offset(x, y, z)] = r3.Vec{
					X: (g.At(xp, y, z) - g.At(xm, y, z)) * scale[0],
					Y: (g.At(x, yp, z) - g.At(x, ym, z)) * scale[1],
					Z: (g.At(x, y, zp) - g.At(x, y, zm)) * scale[2],
				}
			}
		}
	}
	return nil
}
