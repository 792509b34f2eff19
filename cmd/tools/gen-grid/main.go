// Command gen-grid writes synthetic potentials as OpenDX grids for demos
// and tests.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/banshee-data/fieldlines/internal/grid"
	"github.com/banshee-data/fieldlines/internal/grid/dx"
	"gonum.org/v1/gonum/spatial/r3"
)

// softening keeps point-charge potentials finite on the charge itself.
const softening = 0.5

func main() {
	kind := flag.String("kind", "charge", "potential: ramp, charge or dipole")
	n := flag.Int("n", 33, "cells per axis")
	spacing := flag.Float64("spacing", 0.5, "cell spacing")
	strength := flag.Float64("q", 10, "ramp slope or charge strength")
	output := flag.String("o", "grid.dx", "output path; .gz compresses")
	flag.Parse()

	g, err := generate(*kind, *n, *spacing, *strength)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	comment := fmt.Sprintf("%s potential, q=%g", *kind, *strength)
	if err := dx.Save(fsutil.OSFileSystem{}, *output, g, comment); err != nil {
		log.Fatalf("save: %v", err)
	}
	d := g.Dims()
	log.Printf("wrote %s: %dx%dx%d %s grid", *output, d[0], d[1], d[2], *kind)
}

func generate(kind string, n int, spacing, q float64) (*grid.Grid, error) {
	f, err := potential(kind, n, spacing, q)
	if err != nil {
		return nil, err
	}
	s := r3.Vec{X: spacing, Y: spacing, Z: spacing}
	return grid.FromFunc(grid.Dims{n, n, n}, r3.Vec{}, s, func(i, j, k int) float64 {
		return f(r3.Vec{X: float64(i) * spacing, Y: float64(j) * spacing, Z: float64(k) * spacing})
	})
}

// potential returns the scalar function for kind on a cube of n cells.
func potential(kind string, n int, spacing, q float64) (func(r3.Vec) float64, error) {
	mid := float64(n-1) * spacing / 2
	center := r3.Vec{X: mid, Y: mid, Z: mid}
	switch kind {
	case "ramp":
		return func(p r3.Vec) float64 { return q * p.X }, nil
	case "charge":
		return func(p r3.Vec) float64 { return coulomb(p, center, q) }, nil
	case "dipole":
		off := r3.Vec{X: mid / 2}
		plus, minus := r3.Sub(center, off), r3.Add(center, off)
		return func(p r3.Vec) float64 {
			return coulomb(p, plus, q) + coulomb(p, minus, -q)
		}, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

func coulomb(p, at r3.Vec, q float64) float64 {
	return q / math.Sqrt(r3.Norm2(r3.Sub(p, at))+softening*softening)
}
