package fieldline

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one run for logs, reports and the run store.
type Summary struct {
	Seeds   int
	Written int
	Stops   map[StopReason]int

	// Arc-length statistics over the written lines; zero when none.
	MeanLength   float64
	StdDevLength float64
	MedianLength float64
	MinLength    float64
	MaxLength    float64
}

// Summarize counts stop reasons over every traced line and computes length
// statistics over the lines that survived filtering.
func Summarize(traced, kept []Streamline) Summary {
	s := Summary{Seeds: len(traced), Stops: make(map[StopReason]int)}
	for _, l := range traced {
		s.Stops[l.Stop]++
	}

	lengths := WrittenLengths(kept)
	s.Written = len(lengths)
	if len(lengths) == 0 {
		return s
	}
	sort.Float64s(lengths)
	s.MeanLength = stat.Mean(lengths, nil)
	if len(lengths) > 1 {
		s.StdDevLength = stat.StdDev(lengths, nil)
	}
	s.MedianLength = stat.Quantile(0.5, stat.Empirical, lengths, nil)
	s.MinLength = floats.Min(lengths)
	s.MaxLength = floats.Max(lengths)
	return s
}

// WrittenLengths returns the arc length of every serializable line.
func WrittenLengths(lines []Streamline) []float64 {
	out := make([]float64, 0, len(lines))
	for _, l := range lines {
		if l.Serializable() {
			out = append(out, l.Length)
		}
	}
	return out
}

// StopsString renders the non-zero stop counts in declaration order.
func (s Summary) StopsString() string {
	var parts []string
	for _, r := range StopReasons {
		if n := s.Stops[r]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", r, n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// PathLength sums the segment lengths of a polyline. For lines produced by
// an Integrator it equals Length up to rounding.
func PathLength(pts []r3.Vec) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		total += r3.Norm(r3.Sub(pts[i], pts[i-1]))
	}
	return total
}

// WrittenPoints returns the point lists of every serializable line, in the
// order the encoder assigns ids.
func WrittenPoints(lines []Streamline) [][]r3.Vec {
	out := make([][]r3.Vec, 0, len(lines))
	for _, l := range lines {
		if l.Serializable() {
			out = append(out, l.Points)
		}
	}
	return out
}
