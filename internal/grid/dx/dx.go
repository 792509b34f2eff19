// Package dx reads and writes the subset of the OpenDX format needed to
// describe a regular scalar grid: counts, origin, axis-aligned deltas and
// the data array. Everything after the data block is ignored.
package dx

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/banshee-data/fieldlines/internal/grid"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrMalformed wraps every parse failure.
var ErrMalformed = errors.New("dx: malformed file")

// maxLineBytes bounds a single line; data rows in the wild can be long.
const maxLineBytes = 4 * 1024 * 1024

// MaxItems is the largest grid Read accepts.
const MaxItems = 1 << 30

// preallocItems caps the initial value buffer; the header is not trusted.
const preallocItems = 1 << 20

type header struct {
	dims       grid.Dims
	haveCounts bool
	origin     r3.Vec
	haveOrigin bool
	spacing    [3]float64
	deltas     int
	items      int
}

// Read parses a DX stream into a grid.
func Read(r io.Reader) (*grid.Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var h header
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		done, err := h.parse(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dx: read header: %w", err)
	}
	if err := h.check(); err != nil {
		return nil, err
	}

	values := make([]float64, 0, min(h.items, preallocItems))
	for len(values) < h.items && sc.Scan() {
		line++
		for _, tok := range strings.Fields(sc.Text()) {
			if len(values) == h.items {
				break
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad value %q", ErrMalformed, line, tok)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dx: read data: %w", err)
	}
	if len(values) != h.items {
		return nil, fmt.Errorf("%w: expected %d values, found %d", ErrMalformed, h.items, len(values))
	}

	spacing := r3.Vec{X: h.spacing[0], Y: h.spacing[1], Z: h.spacing[2]}
	g, err := grid.New(h.dims, h.origin, spacing, values)
	if err != nil {
		return nil, fmt.Errorf("dx: %w", err)
	}
	return g, nil
}

// parse consumes one header line. It reports done once the data array
// header has been seen.
func (h *header) parse(fields []string) (bool, error) {
	switch fields[0] {
	case "object":
		if i := index(fields, "gridpositions"); i >= 0 {
			counts, err := ints(fields, "counts", 3)
			if err != nil {
				return false, err
			}
			h.dims = grid.Dims{counts[0], counts[1], counts[2]}
			h.haveCounts = true
			return false, nil
		}
		if index(fields, "array") >= 0 {
			items, err := ints(fields, "items", 1)
			if err != nil {
				return false, err
			}
			h.items = items[0]
			return true, nil
		}
		// gridconnections and field objects carry nothing we need.
		return false, nil
	case "origin":
		v, err := floats(fields[1:], 3)
		if err != nil {
			return false, fmt.Errorf("origin: %w", err)
		}
		h.origin = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
		h.haveOrigin = true
		return false, nil
	case "delta":
		if h.deltas == 3 {
			return false, errors.New("more than three delta lines")
		}
		v, err := floats(fields[1:], 3)
		if err != nil {
			return false, fmt.Errorf("delta: %w", err)
		}
		for axis := 0; axis < 3; axis++ {
			if axis != h.deltas && v[axis] != 0 {
				return false, fmt.Errorf("delta %d is not axis aligned", h.deltas)
			}
		}
		h.spacing[h.deltas] = v[h.deltas]
		h.deltas++
		return false, nil
	case "attribute", "component":
		return false, nil
	}
	return false, fmt.Errorf("unexpected %q before data", fields[0])
}

func (h *header) check() error {
	if !h.haveCounts {
		return fmt.Errorf("%w: missing gridpositions counts", ErrMalformed)
	}
	total := 1
	for axis, n := range h.dims {
		if n < 1 {
			return fmt.Errorf("%w: axis %d has %d cells", ErrMalformed, axis, n)
		}
		if n > MaxItems/total {
			return fmt.Errorf("%w: grid exceeds %d cells", ErrMalformed, MaxItems)
		}
		total *= n
	}
	switch {
	case !h.haveOrigin:
		return fmt.Errorf("%w: missing origin", ErrMalformed)
	case h.deltas != 3:
		return fmt.Errorf("%w: expected 3 delta lines, found %d", ErrMalformed, h.deltas)
	case h.items != h.dims.Len():
		return fmt.Errorf("%w: array has %d items, counts give %d", ErrMalformed, h.items, h.dims.Len())
	}
	return nil
}

// Load reads a DX file through fsys. Names ending in .gz are decompressed.
func Load(fsys fsutil.FileSystem, path string) (*grid.Grid, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open grid %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	g, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("load grid %s: %w", path, err)
	}
	return g, nil
}

func index(fields []string, word string) int {
	for i, f := range fields {
		if f == word {
			return i
		}
	}
	return -1
}

func ints(fields []string, key string, n int) ([]int, error) {
	i := index(fields, key)
	if i < 0 || len(fields) < i+1+n {
		return nil, fmt.Errorf("missing %s", key)
	}
	out := make([]int, n)
	for k := 0; k < n; k++ {
		v, err := strconv.Atoi(fields[i+1+k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[k] = v
	}
	return out, nil
}

func floats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		v, err := strconv.ParseFloat(fields[k], 64)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
