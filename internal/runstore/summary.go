package runstore

import (
	"time"

	"github.com/banshee-data/fieldlines/internal/fieldline"
)

// NewRun describes a finished pipeline run. The id is left empty so that
// Record assigns one.
func NewRun(started time.Time, in, out string, p fieldline.Params, res *fieldline.Result) Run {
	s := res.Summary
	stops := make(map[string]int, len(s.Stops))
	for reason, n := range s.Stops {
		stops[reason.String()] = n
	}
	return Run{
		StartedAt:     started,
		Input:         in,
		Output:        out,
		SeedThreshold: p.SeedThreshold,
		MaxIterations: p.Integrator.MaxIterations,
		MinLength:     p.Lengths.Min,
		MaxLength:     p.Lengths.Max,
		Seeds:         s.Seeds,
		Written:       s.Written,
		Elapsed:       res.Elapsed,
		MeanLength:    s.MeanLength,
		MedianLength:  s.MedianLength,
		MaxLengthSeen: s.MaxLength,
		Stops:         stops,
	}
}
