// Package grid holds the regular 3D scalar lattice that field lines are
// traced through, and the mapping between space coordinates and cells.
//
// Values are stored x-major in a flat slice: the cell (i, j, k) lives at
// offset ((i*Ny)+j)*Nz+k. This is the same order OpenDX writes samples in.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInvalidDims is returned when an axis has fewer than one cell.
	ErrInvalidDims = errors.New("grid: dimensions must be positive")
	// ErrInvalidSpacing is returned for non-positive or non-finite spacing.
	ErrInvalidSpacing = errors.New("grid: spacing must be positive and finite")
	// ErrValueCount is returned when len(values) != Nx*Ny*Nz.
	ErrValueCount = errors.New("grid: value count does not match dimensions")
	// ErrOutOfRange is returned by checked accessors for indices outside the grid.
	ErrOutOfRange = errors.New("grid: index out of range")
)

// Dims is the number of cells along x, y and z.
type Dims [3]int

// Len returns Nx*Ny*Nz.
func (d Dims) Len() int { return d[0] * d[1] * d[2] }

// CellIndex addresses one cell as (i, j, k).
type CellIndex [3]int

// Grid is an immutable regular scalar field.
type Grid struct {
	dims    Dims
	origin  r3.Vec
	spacing r3.Vec
	values  []float64
}

// New validates the shape once and returns a Grid owning values.
// The caller must not modify values afterwards.
func New(dims Dims, origin, spacing r3.Vec, values []float64) (*Grid, error) {
	for axis, n := range dims {
		if n < 1 {
			return nil, fmt.Errorf("%w: axis %d has %d cells", ErrInvalidDims, axis, n)
		}
	}
	for axis := 0; axis < 3; axis++ {
		s := Component(spacing, axis)
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: axis %d spacing %v", ErrInvalidSpacing, axis, s)
		}
	}
	if len(values) != dims.Len() {
		return nil, fmt.Errorf("%w: got %d values for %dx%dx%d", ErrValueCount, len(values), dims[0], dims[1], dims[2])
	}
	return &Grid{dims: dims, origin: origin, spacing: spacing, values: values}, nil
}

// Dims returns the number of cells per axis.
func (g *Grid) Dims() Dims { return g.dims }

// Origin returns the space coordinate of cell (0, 0, 0).
func (g *Grid) Origin() r3.Vec { return g.origin }

// Spacing returns the cell size along each axis.
func (g *Grid) Spacing() r3.Vec { return g.spacing }

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.values) }

// Offset returns the flat offset of (i, j, k) without range checks.
func (g *Grid) Offset(i, j, k int) int {
	return (i*g.dims[1]+j)*g.dims[2] + k
}

// At returns the sample at (i, j, k) without range checks. Hot loops use
// it after the shape has been validated by New.
func (g *Grid) At(i, j, k int) float64 {
	return g.values[g.Offset(i, j, k)]
}

// Value returns the sample at idx, or ErrOutOfRange.
func (g *Grid) Value(idx CellIndex) (float64, error) {
	if !g.Contains(idx) {
		return 0, fmt.Errorf("%w: %v not in %v", ErrOutOfRange, idx, g.dims)
	}
	return g.At(idx[0], idx[1], idx[2]), nil
}

// Contains reports whether idx addresses a cell of the grid.
func (g *Grid) Contains(idx CellIndex) bool {
	for axis, n := range g.dims {
		if idx[axis] < 0 || idx[axis] >= n {
			return false
		}
	}
	return true
}

// Range returns the smallest and largest sample.
func (g *Grid) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Values returns a copy of the samples in flat x-major order.
func (g *Grid) Values() []float64 {
	out := make([]float64, len(g.values))
	copy(out, g.values)
	return out
}

// Mapper returns the coordinate mapper for this grid.
func (g *Grid) Mapper() Mapper {
	return Mapper{Origin: g.origin, Spacing: g.spacing, Dims: g.dims}
}

// Component returns v's coordinate along axis 0 (x), 1 (y) or 2 (z).
func Component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// FromFunc builds a grid by sampling f at every cell index.
func FromFunc(dims Dims, origin, spacing r3.Vec, f func(i, j, k int) float64) (*Grid, error) {
	if dims[0] < 1 || dims[1] < 1 || dims[2] < 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDims, dims)
	}
	values := make([]float64, 0, dims.Len())
	for i := 0; i < dims[0]; i++ {
		for j := 0; j < dims[1]; j++ {
			for k := 0; k < dims[2]; k++ {
				values = append(values, f(i, j, k))
			}
		}
	}
	return New(dims, origin, spacing, values)
}
