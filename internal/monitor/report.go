package monitor

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/banshee-data/fieldlines/internal/fieldline"
	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultBins is the number of histogram bins used when Report.Bins is zero.
const DefaultBins = 20

// Report is the HTML summary of one run.
type Report struct {
	Title   string
	Summary fieldline.Summary
	// Lengths are the arc lengths of the written lines.
	Lengths []float64
	Bins    int
	// AssetsHost overrides where the page loads echarts from.
	AssetsHost string
}

// Histogram bins lengths into n equal-width bins spanning [min, max] and
// returns the bin lower edges and counts.
func Histogram(lengths []float64, n int) (edges, counts []float64) {
	if len(lengths) == 0 || n < 1 {
		return nil, nil
	}
	x := append([]float64(nil), lengths...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if hi-lo < 1e-9 {
		hi = lo + 1
	}
	// The last divider must lie strictly above the largest sample.
	dividers := floats.Span(make([]float64, n+1), lo, math.Nextafter(hi, math.Inf(1)))
	counts = stat.Histogram(nil, dividers, x, nil)
	return dividers[:n], counts
}

func (r Report) lengthChart() *charts.Bar {
	bins := r.Bins
	if bins <= 0 {
		bins = DefaultBins
	}
	edges, counts := Histogram(r.Lengths, bins)
	x := make([]string, len(edges))
	y := make([]opts.BarData, len(counts))
	for i := range edges {
		x[i] = fmt.Sprintf("%.2f", edges[i])
		y[i] = opts.BarData{Value: counts[i]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: r.AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title: "Line length",
			Subtitle: fmt.Sprintf("written=%d mean=%.3f median=%.3f sd=%.3f",
				r.Summary.Written, r.Summary.MeanLength, r.Summary.MedianLength, r.Summary.StdDevLength),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "length", NameLocation: "middle", NameGap: 25}),
	)
	bar.SetXAxis(x).AddSeries("lines", y)
	return bar
}

func (r Report) stopChart() *charts.Bar {
	x := make([]string, 0, len(fieldline.StopReasons))
	y := make([]opts.BarData, 0, len(fieldline.StopReasons))
	for _, reason := range fieldline.StopReasons {
		x = append(x, reason.String())
		y = append(y, opts.BarData{Value: r.Summary.Stops[reason]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: r.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Stop reasons", Subtitle: fmt.Sprintf("seeds=%d", r.Summary.Seeds)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("seeds", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// Render writes the report page.
func (r Report) Render(w io.Writer) error {
	page := components.NewPage()
	if r.Title != "" {
		page.PageTitle = r.Title
	}
	if r.AssetsHost != "" {
		page.SetAssetsHost(r.AssetsHost)
	}
	page.AddCharts(r.lengthChart(), r.stopChart())
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// Save writes the report to path through fsys.
func (r Report) Save(fsys fsutil.FileSystem, path string) error {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	if err := r.Render(f); err != nil {
		f.Abort()
		return err
	}
	return f.Close()
}
