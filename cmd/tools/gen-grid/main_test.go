package main

import (
	"bytes"
	"testing"

	"github.com/banshee-data/fieldlines/internal/grid"
	"github.com/banshee-data/fieldlines/internal/grid/dx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestGenerate_Ramp(t *testing.T) {
	g, err := generate("ramp", 3, 0.5, 2)
	require.NoError(t, err)
	assert.Equal(t, grid.Dims{3, 3, 3}, g.Dims())
	assert.Equal(t, 0.0, g.At(0, 2, 1))
	assert.Equal(t, 2.0, g.At(2, 0, 0))
}

func TestGenerate_ChargePeaksAtCenter(t *testing.T) {
	g, err := generate("charge", 5, 1, 10)
	require.NoError(t, err)
	_, hi := g.Range()
	assert.Equal(t, hi, g.At(2, 2, 2))
	assert.InDelta(t, 20.0, hi, 1e-12)
	assert.Equal(t, g.At(0, 2, 2), g.At(4, 2, 2), "symmetric about the center")
}

func TestGenerate_DipoleIsAntisymmetric(t *testing.T) {
	g, err := generate("dipole", 9, 0.5, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, g.At(4, 4, 4), 1e-12)
	assert.InDelta(t, -g.At(1, 4, 4), g.At(7, 4, 4), 1e-12)
}

func TestGenerate_Errors(t *testing.T) {
	_, err := generate("vortex", 3, 1, 1)
	assert.Error(t, err)
	_, err = generate("ramp", 0, 1, 1)
	assert.ErrorIs(t, err, grid.ErrInvalidDims)
}

func TestGenerate_ReadsBack(t *testing.T) {
	g, err := generate("charge", 4, 0.25, 3)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, dx.Write(&buf, g))
	back, err := dx.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{X: 0.25, Y: 0.25, Z: 0.25}, back.Spacing())
	assert.InDeltaSlice(t, g.Values(), back.Values(), 1e-5)
}
