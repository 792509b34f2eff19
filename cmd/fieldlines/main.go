// Command fieldlines traces gradient field lines through an OpenDX scalar
// grid and writes them as a JSON document.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/fieldlines/internal/config"
	"github.com/banshee-data/fieldlines/internal/fieldline"
	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/banshee-data/fieldlines/internal/monitor"
	"github.com/banshee-data/fieldlines/internal/monitoring"
	"github.com/banshee-data/fieldlines/internal/runstore"
	"github.com/banshee-data/fieldlines/internal/version"
)

const usage = "usage: fieldlines [flags] <input-grid-file> <output-file>"

type options struct {
	configPath string
	plotPath   string
	plane      string
	reportPath string
	dbPath     string
	verbose    bool
	version    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit status.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	var opt options
	fs := flag.NewFlagSet("fieldlines", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.StringVar(&opt.configPath, "config", "", "tuning config JSON file (built-in defaults when empty)")
	fs.StringVar(&opt.plotPath, "plot", "", "write a PNG projection of the written lines to this path")
	fs.StringVar(&opt.plane, "plane", "xy", "projection plane for -plot: xy, xz or yz")
	fs.StringVar(&opt.reportPath, "report", "", "write an HTML run report to this path")
	fs.StringVar(&opt.dbPath, "db", "", "record the run in this SQLite database")
	fs.BoolVar(&opt.verbose, "verbose", false, "log per-phase diagnostics")
	fs.BoolVar(&opt.version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stdout, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if opt.version {
		fmt.Fprintln(stdout, version.String("fieldlines"))
		return 0
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 1
	}
	in, out := fs.Arg(0), fs.Arg(1)
	monitoring.SetVerbose(opt.verbose)
	fsys := fsutil.OSFileSystem{}

	cfg, err := loadConfig(fsys, opt.configPath)
	if err != nil {
		log.Printf("fieldlines: %v", err)
		return 1
	}
	params := paramsFromConfig(cfg)
	if d := cfg.GetTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	started := time.Now()
	res, err := fieldline.NewPipeline(params, fieldline.WithFileSystem(fsys)).Run(ctx, in, out)
	if err != nil {
		log.Printf("fieldlines: %v", err)
		return 1
	}
	fmt.Fprintf(stdout, "integration took %.3f ms\n", float64(res.Elapsed)/float64(time.Millisecond))
	if res.Written() == 0 {
		fmt.Fprintln(stdout, "Warning, no fieldline written")
	}
	sum := res.Summary
	monitoring.Logf("%d seeds, %d written, stops: %s", sum.Seeds, sum.Written, sum.StopsString())
	if sum.Written > 0 {
		monitoring.Logf("length mean %.3f sd %.3f median %.3f range [%.3f, %.3f]",
			sum.MeanLength, sum.StdDevLength, sum.MedianLength, sum.MinLength, sum.MaxLength)
	}

	writeArtifacts(ctx, fsys, opt, started, in, out, params, res)
	return 0
}

func loadConfig(fsys fsutil.FileSystem, path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	cfg, err := config.LoadTuningConfigFS(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func paramsFromConfig(cfg *config.TuningConfig) fieldline.Params {
	return fieldline.Params{
		SeedThreshold: cfg.GetGradMagnitude(),
		Integrator: fieldline.IntegratorConfig{
			MaxIterations: cfg.GetMaxIterations(),
			MinGradMag:    cfg.GetMinGradMag(),
			MaxGradMag:    cfg.GetMaxGradMag(),
			Workers:       cfg.GetWorkers(),
		},
		Lengths: fieldline.LengthRange{
			Min: cfg.GetMinLength(),
			Max: cfg.GetMaxLength(),
		},
	}
}

// writeArtifacts produces the optional outputs. Failures are logged and
// never change the exit status.
func writeArtifacts(ctx context.Context, fsys fsutil.FileSystem, opt options, started time.Time, in, out string, params fieldline.Params, res *fieldline.Result) {
	if opt.plotPath != "" {
		if err := savePlot(fsys, opt, out, res); err != nil {
			log.Printf("plot: %v", err)
		}
	}

	if opt.reportPath != "" {
		rep := monitor.Report{
			Title:   "fieldlines " + out,
			Summary: res.Summary,
			Lengths: fieldline.WrittenLengths(res.Lines),
		}
		if err := rep.Save(fsys, opt.reportPath); err != nil {
			log.Printf("report: %v", err)
		}
	}

	if opt.dbPath != "" {
		if err := recordRun(ctx, fsys, opt.dbPath, runstore.NewRun(started, in, out, params, res)); err != nil {
			log.Printf("run store: %v", err)
		}
	}
}

func savePlot(fsys fsutil.FileSystem, opt options, title string, res *fieldline.Result) error {
	plane, err := monitor.ParsePlane(opt.plane)
	if err != nil {
		return err
	}
	pr := monitor.Projection{
		Title: title,
		Plane: plane,
		Lines: fieldline.WrittenPoints(res.Lines),
	}
	return pr.SavePNG(fsys, opt.plotPath)
}

func recordRun(ctx context.Context, fsys fsutil.FileSystem, path string, r runstore.Run) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	store, err := runstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	id, err := store.Record(ctx, r)
	if err != nil {
		return err
	}
	monitoring.Debugf("recorded run %s in %s", id, path)
	return nil
}
