package dx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/banshee-data/fieldlines/internal/grid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const apbsSample = `# Data from APBS 1.4
#
# POTENTIAL (kT/e)
#
object 1 class gridpositions counts 2 2 3
origin -1.5 0.0 2.25
delta 0.5 0.0 0.0
delta 0.0 0.5 0.0
delta 0.0 0.0 0.75
object 2 class gridconnections counts 2 2 3
object 3 class array type double rank 0 items 12 data follows
0.000000e+00 1.000000e+00 2.000000e+00
3.000000e+00 4.000000e+00 5.000000e+00
6.000000e+00 7.000000e+00 8.000000e+00
9.000000e+00 1.000000e+01 1.100000e+01
attribute "dep" string "positions"
object "regular positions regular connections" class field
component "positions" value 1
component "connections" value 2
component "data" value 3
`

func TestRead_APBSHeader(t *testing.T) {
	g, err := Read(strings.NewReader(apbsSample))
	require.NoError(t, err)

	assert.Equal(t, grid.Dims{2, 2, 3}, g.Dims())
	assert.Equal(t, r3.Vec{X: -1.5, Y: 0, Z: 2.25}, g.Origin())
	assert.Equal(t, r3.Vec{X: 0.5, Y: 0.5, Z: 0.75}, g.Spacing())

	// Samples arrive x-major with z fastest.
	assert.Equal(t, 1.0, g.At(0, 0, 1))
	assert.Equal(t, 3.0, g.At(0, 1, 0))
	assert.Equal(t, 6.0, g.At(1, 0, 0))
	assert.Equal(t, 11.0, g.At(1, 1, 2))
}

func TestRead_ValuesSpanIrregularRows(t *testing.T) {
	src := `object 1 class gridpositions counts 1 1 4
origin 0 0 0
delta 1 0 0
delta 0 1 0
delta 0 0 1
object 3 class array type double rank 0 items 4 data follows
1.5
2.5 3.5 4.5
`
	g, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{1.5, 2.5, 3.5, 4.5}, g.Values()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestRead_Malformed(t *testing.T) {
	header := func(counts, items string) string {
		return "object 1 class gridpositions counts " + counts + "\n" +
			"origin 0 0 0\ndelta 1 0 0\ndelta 0 1 0\ndelta 0 0 1\n" +
			"object 3 class array type double rank 0 items " + items + " data follows\n"
	}
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"missing counts", "origin 0 0 0\ndelta 1 0 0\ndelta 0 1 0\ndelta 0 0 1\nobject 3 class array items 1 data follows\n0\n"},
		{"missing origin", "object 1 class gridpositions counts 1 1 1\ndelta 1 0 0\ndelta 0 1 0\ndelta 0 0 1\nobject 3 class array items 1 data follows\n0\n"},
		{"two deltas", "object 1 class gridpositions counts 1 1 1\norigin 0 0 0\ndelta 1 0 0\ndelta 0 1 0\nobject 3 class array items 1 data follows\n0\n"},
		{"skewed delta", "object 1 class gridpositions counts 1 1 1\norigin 0 0 0\ndelta 1 1 0\ndelta 0 1 0\ndelta 0 0 1\nobject 3 class array items 1 data follows\n0\n"},
		{"short counts", "object 1 class gridpositions counts 1 1\n"},
		{"bad count", "object 1 class gridpositions counts 1 x 1\n"},
		{"bad origin", "object 1 class gridpositions counts 1 1 1\norigin 0 zero 0\n"},
		{"unknown keyword", "object 1 class gridpositions counts 1 1 1\nbanana 1 2 3\n"},
		{"items mismatch", header("2 2 2", "7") + "0 0 0 0 0 0 0\n"},
		{"truncated data", header("2 1 1", "2") + "1.0\n"},
		{"bad value", header("2 1 1", "2") + "1.0 nope\n"},
		{"negative counts", header("-1 1 1", "-1") + "0\n"},
		{"zero count", header("0 1 1", "0")},
		{"huge consistent header", header("100000 100000 100000", "1000000000000000") + "0 0 0\n"},
		{"counts overflow int", header("4294967296 4294967296 1", "0")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestRead_InvalidSpacing(t *testing.T) {
	src := `object 1 class gridpositions counts 1 1 1
origin 0 0 0
delta 0 0 0
delta 0 1 0
delta 0 0 1
object 3 class array items 1 data follows
1
`
	_, err := Read(strings.NewReader(src))
	assert.ErrorIs(t, err, grid.ErrInvalidSpacing)
}

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.FromFunc(grid.Dims{3, 2, 2}, r3.Vec{X: -1, Y: 0.5, Z: 10}, r3.Vec{X: 0.25, Y: 1, Z: 2},
		func(i, j, k int) float64 { return float64(i) - 0.125*float64(j) + 1e-3*float64(k) })
	require.NoError(t, err)
	return g
}

func TestWriteRead_RoundTrip(t *testing.T) {
	want := testGrid(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, want, "round trip"))
	assert.True(t, strings.HasPrefix(buf.String(), "# round trip\n"))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, want.Dims(), got.Dims())
	assert.Equal(t, want.Origin(), got.Origin())
	assert.Equal(t, want.Spacing(), got.Spacing())
	assert.InDeltaSlice(t, want.Values(), got.Values(), 1e-6)
}

func TestSaveLoad_Gzip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	want := testGrid(t)

	require.NoError(t, Save(fsys, "grid.dx.gz", want))
	raw, err := fsys.ReadFile("grid.dx.gz")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "expected gzip magic")

	got, err := Load(fsys, "grid.dx.gz")
	require.NoError(t, err)
	assert.Equal(t, want.Dims(), got.Dims())
	assert.InDeltaSlice(t, want.Values(), got.Values(), 1e-6)
}

func TestLoad_Errors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	_, err := Load(fsys, "missing.dx")
	assert.Error(t, err)

	fsys.AddFile("plain.dx.gz", []byte(apbsSample))
	_, err = Load(fsys, "plain.dx.gz")
	assert.Error(t, err, "uncompressed data behind a .gz name must fail")

	fsys.AddFile("bad.dx", []byte("nonsense\n"))
	_, err = Load(fsys, "bad.dx")
	assert.ErrorIs(t, err, ErrMalformed)
}
