package fieldline

import (
	"github.com/banshee-data/fieldlines/internal/grid"
	"gonum.org/v1/gonum/spatial/r3"
)

// SeedBand returns the inclusive squared-magnitude band for threshold t:
// [(0.5t)², (1.5t)²].
func SeedBand(t float64) (lo2, hi2 float64) {
	lo, hi := 0.5*t, 1.5*t
	return lo * lo, hi * hi
}

// SelectSeeds returns every cell whose squared gradient magnitude lies in
// SeedBand(threshold), ordered x outermost and z innermost. An empty result
// is not an error.
func SelectSeeds(f *GradientField, threshold float64) []grid.CellIndex {
	lo2, hi2 := SeedBand(threshold)
	var seeds []grid.CellIndex
	ny, nz := f.dims[1], f.dims[2]
	for off, v := range f.vecs {
		sq := r3.Norm2(v)
		if sq >= lo2 && sq <= hi2 {
			seeds = append(seeds, grid.CellIndex{off / (ny * nz), (off / nz) % ny, off % nz})
		}
	}
	return seeds
}
