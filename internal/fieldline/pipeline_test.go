package fieldline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/banshee-data/fieldlines/internal/grid"
	"github.com/banshee-data/fieldlines/internal/monitoring"
	"github.com/banshee-data/fieldlines/internal/testutil"
	"github.com/banshee-data/fieldlines/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func rampParams() Params {
	p := DefaultParams()
	p.SeedThreshold = 2
	p.Lengths = LengthRange{Min: 0.75, Max: 2}
	p.Integrator.Workers = 3
	return p
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1.8, p.SeedThreshold)
	assert.Equal(t, 500, p.Integrator.MaxIterations)
	assert.Equal(t, 0.0001, p.Integrator.MinGradMag)
	assert.Equal(t, 5.0, p.Integrator.MaxGradMag)
	assert.Equal(t, LengthRange{Min: 10, Max: 50}, p.Lengths)
}

func TestPipeline_Run(t *testing.T) {
	fsys := testutil.MemDX(t, testutil.RampX(t, grid.Dims{3, 3, 3}, 0.5), "ramp.dx")
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	clock.SetStep(42 * time.Millisecond)

	p := NewPipeline(rampParams(), WithFileSystem(fsys), WithClock(clock))
	res, err := p.Run(context.Background(), "ramp.dx", "lines.json")
	require.NoError(t, err)

	assert.Len(t, res.Seeds, 27)
	assert.Len(t, res.Traced, 27)
	assert.Equal(t, 18, res.Written())
	assert.Equal(t, 42*time.Millisecond, res.Elapsed)
	assert.Equal(t, 27, res.Summary.Stops[StopOutOfBounds])

	raw, err := fsys.ReadFile("lines.json")
	require.NoError(t, err)
	lines, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, lines, 18)

	// Seeds on the x=0 face come first and climb the whole box.
	assert.Len(t, lines[0], 13)
	assert.Equal(t, r3.Vec{}, lines[0][0])
	assert.Equal(t, r3.Vec{X: 1.5}, lines[0][12])
	// Seeds on the x=1 plane follow; x=2 lines are too short.
	assert.Len(t, lines[9], 9)
	assert.Equal(t, r3.Vec{X: 0.5}, lines[9][0])
	assert.Equal(t, r3.Vec{X: 0.5, Y: 1, Z: 1}, lines[17][0])
}

func TestPipeline_RunConstantGridWritesEmptyDocument(t *testing.T) {
	fsys := testutil.MemDX(t, testutil.Constant(t, grid.Dims{4, 4, 4}, 1, 3.5), "flat.dx")
	p := NewPipeline(DefaultParams(), WithFileSystem(fsys))

	res, err := p.Run(context.Background(), "flat.dx", "out.json")
	require.NoError(t, err)
	assert.Empty(t, res.Seeds)
	assert.Zero(t, res.Written())

	raw, err := fsys.ReadFile("out.json")
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(raw))
}

func TestPipeline_RunMissingInput(t *testing.T) {
	fsys := testutil.MemDX(t, testutil.Constant(t, grid.Dims{2, 2, 2}, 1, 0), "a.dx")
	p := NewPipeline(DefaultParams(), WithFileSystem(fsys))

	_, err := p.Run(context.Background(), "missing.dx", "out.json")
	assert.Error(t, err)
	assert.False(t, fsys.Exists("out.json"))
}

func TestPipeline_RunCancelledWritesNothing(t *testing.T) {
	fsys := testutil.MemDX(t, testutil.RampX(t, grid.Dims{3, 3, 3}, 0.5), "ramp.dx")
	p := NewPipeline(rampParams(), WithFileSystem(fsys))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, "ramp.dx", "lines.json")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, fsys.Exists("lines.json"))
}

func TestPipeline_Compute(t *testing.T) {
	g := testutil.RampX(t, grid.Dims{3, 3, 3}, 2)
	p := NewPipeline(Params{
		SeedThreshold: 2,
		Integrator:    DefaultIntegratorConfig(),
		Lengths:       LengthRange{Min: 0, Max: 10},
	})

	res, err := p.Compute(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, res.Lines, 9)
	for _, l := range res.Lines {
		assert.Equal(t, 1, l.Seed[0])
		assert.Equal(t, 2.0, l.Length)
		assert.Len(t, l.Points, 5)
	}
	assert.Equal(t, 9, res.Summary.Written)
	assert.Equal(t, 2.0, res.Summary.MeanLength)
}

func TestPipeline_Params(t *testing.T) {
	want := rampParams()
	assert.Equal(t, want, NewPipeline(want).Params())
}

func TestPipeline_DebugLogging(t *testing.T) {
	var logged []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	monitoring.SetVerbose(true)
	t.Cleanup(func() {
		monitoring.SetVerbose(false)
		monitoring.SetLogger(prev)
	})

	p := NewPipeline(rampParams(), WithClock(timeutil.NewMockClock(time.Time{})))
	_, err := p.Compute(context.Background(), testutil.RampX(t, grid.Dims{3, 3, 3}, 0.5))
	require.NoError(t, err)

	all := strings.Join(logged, "\n")
	assert.Contains(t, all, "[debug] selected 27 seeds of 27 cells")
	assert.Contains(t, all, "18 kept, stops: out_of_bounds=27")
}

var errDiskFull = errors.New("no space left on device")

// shortFS is the OS filesystem with writers that fail after limit bytes.
type shortFS struct {
	fsutil.OSFileSystem
	limit int
}

func (s shortFS) Create(name string) (fsutil.WriteFile, error) {
	w, err := s.OSFileSystem.Create(name)
	if err != nil {
		return nil, err
	}
	return &shortWriter{WriteFile: w, left: s.limit}, nil
}

type shortWriter struct {
	fsutil.WriteFile
	left int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.left {
		n, _ := w.WriteFile.Write(p[:w.left])
		w.left = 0
		return n, errDiskFull
	}
	w.left -= len(p)
	return w.WriteFile.Write(p)
}

func TestPipeline_WriteFailureLeavesNoDocument(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "lines.json")

	p := NewPipeline(rampParams(), WithFileSystem(shortFS{limit: 64}))
	res, err := p.Compute(context.Background(), testutil.RampX(t, grid.Dims{3, 3, 3}, 0.5))
	require.NoError(t, err)
	require.Equal(t, 18, res.Written())

	_, err = p.Write(res, out)
	require.ErrorIs(t, err, errDiskFull)

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "a failed encode must not publish a partial document")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file must be removed")
}

func TestPipeline_WriteFailureKeepsPreviousDocument(t *testing.T) {
	out := filepath.Join(t.TempDir(), "lines.json")
	require.NoError(t, os.WriteFile(out, []byte("{}\n"), 0644))

	p := NewPipeline(rampParams(), WithFileSystem(shortFS{limit: 64}))
	res, err := p.Compute(context.Background(), testutil.RampX(t, grid.Dims{3, 3, 3}, 0.5))
	require.NoError(t, err)

	_, err = p.Write(res, out)
	require.Error(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(raw))
}

func TestPipeline_WriteCreatesParentDirs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "runs", "ramp", "lines.json")

	p := NewPipeline(rampParams())
	res, err := p.Compute(context.Background(), testutil.RampX(t, grid.Dims{3, 3, 3}, 0.5))
	require.NoError(t, err)

	n, err := p.Write(res, out)
	require.NoError(t, err)
	assert.Equal(t, 18, n)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	lines, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Len(t, lines, 18)
}
