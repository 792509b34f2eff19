package fieldline

// LengthRange is the closed interval of accepted arc lengths.
type LengthRange struct {
	Min float64
	Max float64
}

// DefaultLengthRange returns [10, 50].
func DefaultLengthRange() LengthRange {
	return LengthRange{Min: 10.0, Max: 50.0}
}

// Contains reports whether length lies in [Min, Max].
func (r LengthRange) Contains(length float64) bool {
	return length >= r.Min && length <= r.Max
}

// FilterByLength returns a copy of lines in the same order where every
// line whose length falls outside r has lost all of its points, seed
// included. Discarded lines keep their slot so that ids can still be
// derived from seed order.
func FilterByLength(lines []Streamline, r LengthRange) []Streamline {
	out := make([]Streamline, len(lines))
	for i, l := range lines {
		if !r.Contains(l.Length) {
			l.Points = nil
		}
		out[i] = l
	}
	return out
}

// CountSerializable returns how many lines the encoder will write.
func CountSerializable(lines []Streamline) int {
	n := 0
	for _, l := range lines {
		if l.Serializable() {
			n++
		}
	}
	return n
}
