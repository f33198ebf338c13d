package run

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/fabwork/pathtrace/pkg/coverage"
	"github.com/fabwork/pathtrace/pkg/pathfinder"
	"github.com/fabwork/pathtrace/pkg/validation"
)

// CostSummary describes the distribution of path costs within one run.
type CostSummary struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Report is the final accounting of one run.
type Report struct {
	RunID     string
	Approach  string
	Method    string
	Duration  time.Duration
	Paths     int
	NoPath    int
	Coverage  coverage.Metrics
	Cost      CostSummary
	Endpoints map[pathfinder.EndpointKind]int
	Findings  map[validation.Severity]int
}

func buildReport(runID string, cfg Config, cov coverage.Metrics, state *runState, duration time.Duration) *Report {
	rep := &Report{
		RunID:     runID,
		Approach:  cfg.Approach,
		Method:    cfg.Method,
		Duration:  duration,
		Paths:     state.persisted,
		NoPath:    state.noPath,
		Coverage:  cov,
		Endpoints: state.endpoints,
		Findings:  state.findings,
	}
	if len(state.costs) > 0 {
		rep.Cost = CostSummary{
			Mean:   stat.Mean(state.costs, nil),
			StdDev: stat.StdDev(state.costs, nil),
			Min:    floats.Min(state.costs),
			Max:    floats.Max(state.costs),
		}
	}
	return rep
}

// String renders a human-readable multi-line summary.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s/%s) finished in %s\n", r.RunID, r.Approach, r.Method, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  paths persisted: %d (no-path pairs: %d)\n", r.Paths, r.NoPath)
	fmt.Fprintf(&b, "  coverage: %.1f%% (%d/%d nodes, %d/%d links)\n",
		r.Coverage.Ratio*100,
		r.Coverage.NodesCovered, r.Coverage.TotalNodes,
		r.Coverage.LinksCovered, r.Coverage.TotalLinks)
	if r.Paths > 0 {
		fmt.Fprintf(&b, "  cost: mean %.2f, stddev %.2f, min %.2f, max %.2f\n",
			r.Cost.Mean, r.Cost.StdDev, r.Cost.Min, r.Cost.Max)
	}

	if len(r.Endpoints) > 0 {
		kinds := make([]pathfinder.EndpointKind, 0, len(r.Endpoints))
		for k := range r.Endpoints {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		b.WriteString("  endpoints:")
		for _, k := range kinds {
			fmt.Fprintf(&b, " %s=%d", k, r.Endpoints[k])
		}
		b.WriteString("\n")
	}

	if len(r.Findings) > 0 {
		sevs := make([]string, 0, len(r.Findings))
		for s := range r.Findings {
			sevs = append(sevs, string(s))
		}
		sort.Strings(sevs)
		b.WriteString("  findings:")
		for _, s := range sevs {
			fmt.Fprintf(&b, " %s=%d", s, r.Findings[validation.Severity(s)])
		}
		b.WriteString("\n")
	}
	return b.String()
}
