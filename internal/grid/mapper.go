package grid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SpaceToGrid returns the cell containing p. Each axis is floored from the
// origin and clamped into [0, dim-1]; points before the origin land in cell 0.
func SpaceToGrid(p, spacing, origin r3.Vec, dims Dims) CellIndex {
	var idx CellIndex
	for axis := 0; axis < 3; axis++ {
		rel := math.Max(0, Component(p, axis)-Component(origin, axis))
		f := math.Floor(rel / Component(spacing, axis))
		last := dims[axis] - 1
		switch {
		case math.IsNaN(f) || f <= 0:
			idx[axis] = 0
		case f >= float64(last):
			idx[axis] = last
		default:
			idx[axis] = int(f)
		}
	}
	return idx
}

// GridToSpace returns the space coordinate of the lower corner of idx.
// It is not the inverse of SpaceToGrid for points inside a cell.
func GridToSpace(idx CellIndex, origin, spacing r3.Vec) r3.Vec {
	return r3.Vec{
		X: origin.X + float64(idx[0])*spacing.X,
		Y: origin.Y + float64(idx[1])*spacing.Y,
		Z: origin.Z + float64(idx[2])*spacing.Z,
	}
}

// InBounds reports whether p lies inside the box used to stop streamlines.
// The lower bound is the origin while the upper bound is dims*spacing from
// absolute zero, not from the origin.
func InBounds(p, spacing r3.Vec, dims Dims, origin r3.Vec) bool {
	for axis := 0; axis < 3; axis++ {
		v := Component(p, axis)
		if v > float64(dims[axis])*Component(spacing, axis) {
			return false
		}
		if v < Component(origin, axis) {
			return false
		}
	}
	return true
}

// Mapper binds the three conversions to one grid geometry.
type Mapper struct {
	Origin  r3.Vec
	Spacing r3.Vec
	Dims    Dims
}

// SpaceToGrid is SpaceToGrid with the mapper's geometry.
func (m Mapper) SpaceToGrid(p r3.Vec) CellIndex {
	return SpaceToGrid(p, m.Spacing, m.Origin, m.Dims)
}

// GridToSpace is GridToSpace with the mapper's geometry.
func (m Mapper) GridToSpace(idx CellIndex) r3.Vec {
	return GridToSpace(idx, m.Origin, m.Spacing)
}

// InBounds is InBounds with the mapper's geometry.
func (m Mapper) InBounds(p r3.Vec) bool {
	return InBounds(p, m.Spacing, m.Dims, m.Origin)
}
