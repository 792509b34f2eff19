package fieldline

import (
	"context"
	"math"
	"testing"

	"github.com/banshee-data/fieldlines/internal/grid"
	"github.com/banshee-data/fieldlines/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestAxisScales(t *testing.T) {
	s := AxisScales(grid.Dims{3, 3, 1}, r3.Vec{X: 0.5, Y: 2, Z: 0.5})
	assert.Equal(t, 1.0, s[0])
	assert.Equal(t, -0.5, s[1])
	assert.Equal(t, -0.5, s[2], "single-cell axes use a fixed factor")

	unit := AxisScales(grid.Dims{2, 2, 2}, testutil.Spacing(1))
	assert.True(t, math.IsInf(unit[0], -1))
}

func TestComputeGradient_RampHalfSpacing(t *testing.T) {
	g := testutil.RampX(t, grid.Dims{3, 3, 3}, 0.5)
	f, err := ComputeGradient(context.Background(), g, 2)
	require.NoError(t, err)
	require.Equal(t, g.Dims(), f.Dims())
	require.Equal(t, 27, f.Len())

	for j := 0; j < 3; j++ {
		for k := 0; k < 3; k++ {
			assert.Equal(t, r3.Vec{X: 1}, f.At(grid.CellIndex{0, j, k}), "boundary differences against itself")
			assert.Equal(t, r3.Vec{X: 2}, f.At(grid.CellIndex{1, j, k}))
			assert.Equal(t, r3.Vec{X: 1}, f.At(grid.CellIndex{2, j, k}))
		}
	}
}

func TestComputeGradient_RampSpacingTwo(t *testing.T) {
	g := testutil.RampX(t, grid.Dims{3, 3, 3}, 2)
	f, err := ComputeGradient(context.Background(), g, 0)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: -0.5}, f.At(grid.CellIndex{0, 1, 1}))
	assert.Equal(t, r3.Vec{X: -1}, f.At(grid.CellIndex{1, 1, 1}))
	assert.Equal(t, r3.Vec{X: -0.5}, f.At(grid.CellIndex{2, 1, 1}))
}

func TestComputeGradient_SingleCell(t *testing.T) {
	g := testutil.Constant(t, grid.Dims{1, 1, 1}, 1, 3)
	f, err := ComputeGradient(context.Background(), g, 4)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{}, f.At(grid.CellIndex{0, 0, 0}))
}

func TestComputeGradient_UnitSpacingIsNonFinite(t *testing.T) {
	g := testutil.RampX(t, grid.Dims{3, 3, 3}, 1)
	f, err := ComputeGradient(context.Background(), g, 1)
	require.NoError(t, err)
	v := f.At(grid.CellIndex{1, 1, 1})
	assert.True(t, math.IsInf(v.X, -1))
	assert.True(t, math.IsNaN(v.Y))
	assert.True(t, math.IsNaN(v.Z))
}

func TestComputeGradient_WorkerCountDoesNotChangeResult(t *testing.T) {
	g := testutil.FromFunc(t, grid.Dims{7, 4, 5}, 0.5, func(i, j, k int) float64 {
		return math.Sin(float64(i)) + float64(j*j) - 0.3*float64(k)
	})
	ref, err := ComputeGradient(context.Background(), g, 1)
	require.NoError(t, err)
	for _, w := range []int{2, 3, 7, 16} {
		got, err := ComputeGradient(context.Background(), g, w)
		require.NoError(t, err)
		assert.Equal(t, ref.vecs, got.vecs, "workers=%d", w)
	}
}

func TestComputeGradient_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ComputeGradient(ctx, testutil.RampX(t, grid.Dims{4, 2, 2}, 0.5), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGradientField_Vector(t *testing.T) {
	f, err := NewGradientField(grid.Dims{1, 1, 2}, []r3.Vec{{X: 1}, {Y: 2}})
	require.NoError(t, err)

	v, err := f.Vector(grid.CellIndex{0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{Y: 2}, v)

	_, err = f.Vector(grid.CellIndex{0, 0, 2})
	assert.ErrorIs(t, err, grid.ErrOutOfRange)

	_, err = NewGradientField(grid.Dims{2, 2, 2}, make([]r3.Vec, 3))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestComputeGradient_RampXComponentsShareSign(t *testing.T) {
	for _, spacing := range []float64{0.5, 1, 2} {
		g := testutil.RampX(t, grid.Dims{3, 3, 3}, spacing)
		f, err := ComputeGradient(context.Background(), g, 0)
		require.NoError(t, err)
		first := math.Signbit(f.vecs[0].X)
		for off, v := range f.vecs {
			assert.Equal(t, first, math.Signbit(v.X), "spacing %v offset %d", spacing, off)
			assert.NotZero(t, v.X)
		}
	}
}
