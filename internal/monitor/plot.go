// Package monitor renders run artefacts for humans: PNG projections of the
// traced lines and an HTML report of the run statistics.
package monitor

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/banshee-data/fieldlines/internal/fsutil"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plane selects the two coordinates a projection keeps.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneYZ
)

// ParsePlane accepts "xy", "xz" or "yz" in any case.
func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(s) {
	case "xy":
		return PlaneXY, nil
	case "xz":
		return PlaneXZ, nil
	case "yz":
		return PlaneYZ, nil
	}
	return 0, fmt.Errorf("unknown projection plane %q", s)
}

func (p Plane) String() string {
	switch p {
	case PlaneXZ:
		return "xz"
	case PlaneYZ:
		return "yz"
	}
	return "xy"
}

func (p Plane) project(v r3.Vec) plotter.XY {
	switch p {
	case PlaneXZ:
		return plotter.XY{X: v.X, Y: v.Z}
	case PlaneYZ:
		return plotter.XY{X: v.Y, Y: v.Z}
	}
	return plotter.XY{X: v.X, Y: v.Y}
}

func (p Plane) labels() (string, string) {
	s := p.String()
	return strings.ToUpper(s[:1]), strings.ToUpper(s[1:])
}

// maxPlottedLines caps the number of polylines drawn; the rest are skipped.
const maxPlottedLines = 2000

// Projection draws lines projected onto one plane.
type Projection struct {
	Title string
	Plane Plane
	Lines [][]r3.Vec
}

// Plot builds the gonum plot. Lines with fewer than two points are skipped.
func (pr Projection) Plot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = pr.Title
	p.X.Label.Text, p.Y.Label.Text = pr.Plane.labels()

	n := min(len(pr.Lines), maxPlottedLines)
	colors := generateColors(n)
	for i := 0; i < n; i++ {
		pts := pr.Lines[i]
		if len(pts) < 2 {
			continue
		}
		xys := make(plotter.XYs, len(pts))
		for j, v := range pts {
			xys[j] = pr.Plane.project(v)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(0.75)
		p.Add(line)
	}
	return p, nil
}

// WritePNG renders the projection as a PNG image.
func (pr Projection) WritePNG(w io.Writer) error {
	p, err := pr.Plot()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

// SavePNG writes the projection to path through fsys.
func (pr Projection) SavePNG(fsys fsutil.FileSystem, path string) error {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return fmt.Errorf("create plot %s: %w", path, err)
	}
	if err := pr.WritePNG(f); err != nil {
		f.Abort()
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return f.Close()
}

// generateColors spreads n hues evenly around the colour wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL in [0,1] to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
