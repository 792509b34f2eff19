// Command inspect summarises a field-line document and optionally renders
// a projection of it. With -db it lists the runs recorded by fieldlines.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"os"
	"sort"
	"time"

	"github.com/banshee-data/fieldlines/internal/fieldline"
	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/banshee-data/fieldlines/internal/monitor"
	"github.com/banshee-data/fieldlines/internal/runstore"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

func main() {
	plotPath := flag.String("plot", "", "write a PNG projection to this path")
	plane := flag.String("plane", "xy", "projection plane: xy, xz or yz")
	bins := flag.Int("bins", 10, "length histogram bins")
	dbPath := flag.String("db", "", "list runs recorded in this SQLite database")
	runID := flag.String("run", "", "with -db, show a single run")
	limit := flag.Int("n", 10, "with -db, number of recent runs to list")
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintln(out, "usage: inspect [flags] <lines.json>")
		fmt.Fprintln(out, "       inspect -db <runs.db> [-run id] [-n count]")
		flag.PrintDefaults()
	}
	flag.Parse()

	fsys := fsutil.OSFileSystem{}
	if *dbPath != "" {
		if err := inspectRuns(context.Background(), os.Stdout, fsys, *dbPath, *runID, *limit); err != nil {
			log.Fatalf("runs: %v", err)
		}
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	f, err := fsys.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	lines, err := fieldline.Decode(f)
	f.Close()
	if err != nil {
		log.Fatalf("decode %s: %v", flag.Arg(0), err)
	}

	describe(os.Stdout, lines, *bins)

	if *plotPath != "" {
		pl, err := monitor.ParsePlane(*plane)
		if err != nil {
			log.Fatalf("plot: %v", err)
		}
		pr := monitor.Projection{Title: flag.Arg(0), Plane: pl, Lines: lines}
		if err := pr.SavePNG(fsys, *plotPath); err != nil {
			log.Fatalf("plot: %v", err)
		}
		log.Printf("wrote %s", *plotPath)
	}
}

// describe prints line counts, length statistics, the bounding box and a
// text histogram of lengths.
func describe(w io.Writer, lines [][]r3.Vec, bins int) {
	fmt.Fprintf(w, "lines: %d\n", len(lines))
	if len(lines) == 0 {
		return
	}

	lengths := make([]float64, len(lines))
	points := 0
	inf := math.Inf(1)
	lo, hi := r3.Vec{X: inf, Y: inf, Z: inf}, r3.Vec{X: -inf, Y: -inf, Z: -inf}
	for i, pts := range lines {
		lengths[i] = fieldline.PathLength(pts)
		points += len(pts)
		for _, p := range pts {
			lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
			hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
		}
	}
	fmt.Fprintf(w, "points: %d\n", points)
	var sd float64
	if len(lengths) > 1 {
		sd = stat.StdDev(lengths, nil)
	}
	fmt.Fprintf(w, "length: min %.4f max %.4f mean %.4f sd %.4f\n",
		floats.Min(lengths), floats.Max(lengths), stat.Mean(lengths, nil), sd)
	fmt.Fprintf(w, "bounds: (%.4f, %.4f, %.4f) - (%.4f, %.4f, %.4f)\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)

	edges, counts := monitor.Histogram(lengths, bins)
	for i := range edges {
		fmt.Fprintf(w, "  %10.4f %6d\n", edges[i], int(counts[i]))
	}
}

// inspectRuns prints the schema version and either the most recent runs or
// the run with the given id. The database must already exist.
func inspectRuns(ctx context.Context, w io.Writer, fsys fsutil.FileSystem, path, id string, limit int) error {
	if !fsys.Exists(path) {
		return fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}
	store, err := runstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	v, err := store.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: schema v%d\n", path, v)

	if id != "" {
		r, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		describeRun(w, r)
		return nil
	}

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "runs: %d\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %s -> %s  seeds %d written %d  %.3f ms\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Input, r.Output,
			r.Seeds, r.Written, float64(r.Elapsed)/float64(time.Millisecond))
	}
	return nil
}

func describeRun(w io.Writer, r runstore.Run) {
	fmt.Fprintf(w, "run: %s\n", r.ID)
	fmt.Fprintf(w, "started: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "input: %s\n", r.Input)
	fmt.Fprintf(w, "output: %s\n", r.Output)
	fmt.Fprintf(w, "params: threshold %g max_iterations %d length [%g, %g]\n",
		r.SeedThreshold, r.MaxIterations, r.MinLength, r.MaxLength)
	fmt.Fprintf(w, "seeds: %d written: %d elapsed: %.3f ms\n",
		r.Seeds, r.Written, float64(r.Elapsed)/float64(time.Millisecond))
	fmt.Fprintf(w, "length: mean %.4f median %.4f max %.4f\n", r.MeanLength, r.MedianLength, r.MaxLengthSeen)

	reasons := make([]string, 0, len(r.Stops))
	for reason := range r.Stops {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  %-16s %d\n", reason, r.Stops[reason])
	}
}
