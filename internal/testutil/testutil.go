// Package testutil provides shared test utilities and grid fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/banshee-data/fieldlines/internal/grid"
	"github.com/banshee-data/fieldlines/internal/grid/dx"
	"gonum.org/v1/gonum/spatial/r3"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Spacing returns an isotropic spacing vector.
func Spacing(s float64) r3.Vec { return r3.Vec{X: s, Y: s, Z: s} }

// RampX returns a grid whose value equals the x cell index.
func RampX(t testing.TB, dims grid.Dims, spacing float64) *grid.Grid {
	t.Helper()
	return FromFunc(t, dims, spacing, func(i, _, _ int) float64 { return float64(i) })
}

// Constant returns a grid where every sample is v.
func Constant(t testing.TB, dims grid.Dims, spacing, v float64) *grid.Grid {
	t.Helper()
	return FromFunc(t, dims, spacing, func(_, _, _ int) float64 { return v })
}

// FromFunc samples f on a grid with origin zero and isotropic spacing.
func FromFunc(t testing.TB, dims grid.Dims, spacing float64, f func(i, j, k int) float64) *grid.Grid {
	t.Helper()
	g, err := grid.FromFunc(dims, r3.Vec{}, Spacing(spacing), f)
	AssertNoError(t, err)
	return g
}

// EncodeDX renders g as DX text.
func EncodeDX(t testing.TB, g *grid.Grid) []byte {
	t.Helper()
	var buf bytes.Buffer
	AssertNoError(t, dx.Write(&buf, g, "test fixture"))
	return buf.Bytes()
}

// WriteDX saves g under a fresh temp directory and returns the path.
func WriteDX(t testing.TB, g *grid.Grid, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	AssertNoError(t, dx.Save(fsutil.OSFileSystem{}, path, g, "test fixture"))
	return path
}

// MemDX returns an in-memory filesystem holding g at name.
func MemDX(t testing.TB, g *grid.Grid, name string) *fsutil.MemoryFileSystem {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	AssertNoError(t, dx.Save(fsys, name, g))
	return fsys
}
