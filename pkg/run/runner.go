package run

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/fabwork/pathtrace/pkg/coverage"
	"github.com/fabwork/pathtrace/pkg/logging"
	"github.com/fabwork/pathtrace/pkg/metrics"
	"github.com/fabwork/pathtrace/pkg/netgraph"
	"github.com/fabwork/pathtrace/pkg/pathfinder"
	"github.com/fabwork/pathtrace/pkg/sampling"
	"github.com/fabwork/pathtrace/pkg/store"
	"github.com/fabwork/pathtrace/pkg/validation"
)

// snapshotEvery is the persisted-path interval between coverage snapshots.
const snapshotEvery = 25

// Runner executes one analysis run against a store.
type Runner struct {
	store store.Store
	cfg   Config
	log   logging.Logger
	stats *metrics.Registry
}

// NewRunner validates the config and builds a runner.
func NewRunner(st store.Store, cfg Config, log logging.Logger, stats *metrics.Registry) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if stats == nil {
		stats = metrics.DefaultRegistry()
	}
	return &Runner{store: st, cfg: cfg, log: log, stats: stats}, nil
}

// Execute runs the configured analysis to completion and returns its report.
// The run record is left in DONE or FAILED state; partial results stay
// persisted either way.
func (r *Runner) Execute(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	log := r.log.With(logging.RunID(runID), logging.String("approach", r.cfg.Approach))

	rec := &store.RunRecord{
		ID:          runID,
		Approach:    r.cfg.Approach,
		Method:      r.cfg.Method,
		Fab:         r.cfg.Fab,
		ToolsetCode: r.cfg.ToolsetCode,
		ModelNo:     r.cfg.ModelNo,
		PhaseNo:     r.cfg.PhaseNo,
		StartedAt:   time.Now().UTC(),
	}
	if err := r.store.CreateRun(ctx, rec); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := r.store.SeedValidationTests(ctx); err != nil {
		return nil, fmt.Errorf("seed validation tests: %w", err)
	}

	started := time.Now()
	state := &runState{
		runID:   runID,
		tracker: coverage.NewTracker(r.store, log),
		engine:  validation.NewEngine(r.store, validation.DefaultConfig(), log),
		targets: pathfinder.TargetCodeSet(r.cfg.TargetCodes),
	}

	scope := coverage.Scope{Fab: r.cfg.Fab, ModelNo: r.cfg.ModelNo, PhaseNo: r.cfg.PhaseNo}
	if _, err := state.tracker.Initialize(ctx, scope); err != nil {
		r.fail(ctx, runID, started, err)
		return nil, fmt.Errorf("initialize coverage: %w", err)
	}

	var err error
	switch r.cfg.Approach {
	case ApproachScenario:
		err = r.runScenario(ctx, log, state)
	default:
		err = r.runRandom(ctx, log, state)
	}
	if err != nil {
		r.fail(ctx, runID, started, err)
		return nil, err
	}

	cov := state.tracker.Metrics()
	if err := r.store.FinishRun(ctx, runID, store.RunStatusDone, state.persisted, cov.Ratio); err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}

	duration := time.Since(started)
	r.stats.RecordRun(r.cfg.Approach, store.RunStatusDone, duration, state.persisted)
	log.Info("run finished",
		logging.Count(state.persisted),
		logging.Float64("coverage", cov.Ratio),
		logging.Duration("elapsed", duration))

	return buildReport(runID, r.cfg, cov, state, duration), nil
}

// runState carries the per-run accumulators across pairs.
type runState struct {
	runID     string
	tracker   *coverage.Tracker
	engine    *validation.Engine
	targets   map[int]bool
	persisted int
	group     int
	costs     []float64
	findings  map[validation.Severity]int
	endpoints map[pathfinder.EndpointKind]int
	noPath    int
}

// runRandom samples PoC pairs until the coverage target, the pair budget,
// or the sampler's attempt budget is hit.
func (r *Runner) runRandom(ctx context.Context, log logging.Logger, state *runState) error {
	seed := r.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sampler := sampling.NewSampler(r.store, r.cfg.Bias, rand.New(rand.NewSource(seed)), log)
	filter := sampling.ScopeFilter{
		Fab:     r.cfg.Fab,
		Toolset: r.cfg.ToolsetCode,
		ModelNo: r.cfg.ModelNo,
		PhaseNo: r.cfg.PhaseNo,
	}

	for pairNo := 0; pairNo < r.cfg.MaxPairs; pairNo++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if state.tracker.Metrics().Ratio >= r.cfg.CoverageTarget {
			log.Info("coverage target reached", logging.Float64("ratio", state.tracker.Metrics().Ratio))
			return nil
		}

		pair, err := sampler.Sample(ctx, filter)
		if err != nil {
			return fmt.Errorf("sample pair: %w", err)
		}
		if pair == nil {
			r.stats.RecordSampleAttempt("exhausted")
			return r.flagNoPair(ctx, log, state)
		}
		r.stats.RecordSampleAttempt("accepted")

		if err := r.tracePair(ctx, log, state, pair); err != nil {
			return err
		}
	}
	return nil
}

// tracePair runs one sampled pair end to end: view load, shortest path,
// flags, validation, atomic persistence, coverage update.
func (r *Runner) tracePair(ctx context.Context, log logging.Logger, state *runState, pair *sampling.Pair) error {
	filter := netgraph.PathFilter{UtilityNo: r.cfg.UtilityNo}
	if filter.UtilityNo == 0 {
		filter.UtilityNo = pair.FromPoC.UtilityNo
	}

	view, err := netgraph.Load(ctx, r.store, pair.FromPoC.NodeID, r.cfg.IgnoreNodeIDs, filter)
	if err != nil {
		return fmt.Errorf("load view at node %d: %w", pair.FromPoC.NodeID, err)
	}
	total, _ := view.NodeCount()
	r.stats.SetGraphSize(total, view.LinkCount())

	finder := pathfinder.New(view, log)
	timer := logging.StartTimer(log, "shortest path",
		logging.NodeID(pair.FromPoC.NodeID), logging.Int64("end_node_id", pair.ToPoC.NodeID))
	path, err := finder.ShortestPathBetween(pair.ToPoC.NodeID)
	if err != nil {
		timer.EndError(err)
		return fmt.Errorf("shortest path: %w", err)
	}
	timer.End()

	if path == nil {
		state.noPath++
		r.stats.RecordTraversal("dijkstra", "no_path", 0)
		return r.flagNoPath(ctx, log, state, pair)
	}
	r.stats.RecordTraversal("dijkstra", "ok", 0)
	r.stats.RecordPath("dijkstra", path.Endpoint.String(), len(path.Steps), path.TotalCost)

	state.group++
	return r.persistPath(ctx, state, finder, path, "dijkstra")
}

// runScenario roots a single traversal at the configured start node and
// persists every discovered path.
func (r *Runner) runScenario(ctx context.Context, log logging.Logger, state *runState) error {
	filter := netgraph.PathFilter{UtilityNo: r.cfg.UtilityNo}
	view, err := netgraph.Load(ctx, r.store, r.cfg.StartNodeID, r.cfg.IgnoreNodeIDs, filter)
	if err != nil {
		return fmt.Errorf("load view at node %d: %w", r.cfg.StartNodeID, err)
	}
	total, _ := view.NodeCount()
	r.stats.SetGraphSize(total, view.LinkCount())

	finder := pathfinder.New(view, log)
	algorithm := "dfs"
	timer := logging.StartTimer(log, "traversal", logging.NodeID(r.cfg.StartNodeID))

	var paths []*pathfinder.PathResult
	if r.cfg.Method == MethodDijkstra {
		algorithm = "dijkstra"
		paths, err = finder.FindShortestPathsDijkstra(state.targets)
	} else {
		budget := pathfinder.Budget{MaxPaths: r.cfg.MaxPaths, MaxFrames: r.cfg.MaxFrames}
		paths, err = finder.FindAllPathsDFS(state.targets, budget)
	}
	if err != nil {
		timer.EndError(err)
		return fmt.Errorf("traversal: %w", err)
	}
	timer.End()
	r.stats.RecordTraversal(algorithm, "ok", 0)

	state.group = 1
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.stats.RecordPath(algorithm, path.Endpoint.String(), len(path.Steps), path.TotalCost)
		if err := r.persistPath(ctx, state, finder, path, algorithm); err != nil {
			return err
		}
	}
	return nil
}

// persistPath flags, validates, and atomically stores one path, then folds
// it into the coverage tally.
func (r *Runner) persistPath(ctx context.Context, state *runState, finder *pathfinder.Finder, path *pathfinder.PathResult, algorithm string) error {
	flags := finder.AnalyzeNodeFlags([]*pathfinder.PathResult{path}, state.targets)
	nodeFlags := make(map[int64]rune, len(flags))
	for key, flag := range flags {
		nodeFlags[key.NodeID] = flag
	}

	vPath := &validation.PathRecord{
		RunID:   state.runID,
		PathID:  int64(path.PathID),
		NodeIDs: path.NodeIDs(),
		LinkIDs: path.LinkIDs(),
	}
	for _, s := range path.Steps {
		vPath.Steps = append(vPath.Steps, validation.PathStep{
			LinkID:     s.LinkID,
			FromNodeID: s.FromNodeID,
			ToNodeID:   s.ToNodeID,
			Reverse:    s.Reverse,
		})
	}

	vStart := time.Now()
	findings := state.engine.Validate(ctx, vPath)
	r.recordFindings(time.Since(vStart), findings, state)

	rec := &store.PathRecord{
		RunID:    state.runID,
		Path:     path,
		Group:    state.group,
		Subgroup: state.persisted/10 + 1,
		Flags:    nodeFlags,
		Findings: findings,
	}
	opStart := time.Now()
	if err := r.store.SavePath(ctx, rec); err != nil {
		r.stats.RecordStoreOperation("save_path", "error", time.Since(opStart))
		return fmt.Errorf("save path %d: %w", path.PathID, err)
	}
	r.stats.RecordStoreOperation("save_path", "ok", time.Since(opStart))

	state.persisted++
	state.costs = append(state.costs, path.TotalCost)
	if state.endpoints == nil {
		state.endpoints = make(map[pathfinder.EndpointKind]int)
	}
	state.endpoints[path.Endpoint]++

	cov := state.tracker.Update(path.NodeIDs(), path.LinkIDs())
	r.stats.UpdateCoverage(state.runID, cov.NodesCovered, cov.LinksCovered, cov.Ratio)

	if r.cfg.SnapshotPath != "" && state.persisted%snapshotEvery == 0 {
		if err := state.tracker.Snapshot(r.cfg.SnapshotPath); err != nil {
			r.log.Warn("coverage snapshot failed", logging.Error(err))
		}
	}
	return nil
}

func (r *Runner) recordFindings(elapsed time.Duration, findings []validation.ValidationError, state *runState) {
	if state.findings == nil {
		state.findings = make(map[validation.Severity]int)
	}
	buckets := make(map[string]map[string]int)
	for _, f := range findings {
		state.findings[f.Severity]++
		sev, sc := string(f.Severity), string(f.Scope)
		if buckets[sev] == nil {
			buckets[sev] = make(map[string]int)
		}
		buckets[sev][sc]++
	}
	r.stats.RecordValidation(elapsed, buckets)
}

// flagNoPair records a review flag when the sampler cannot produce another
// acceptable pair.
func (r *Runner) flagNoPair(ctx context.Context, log logging.Logger, state *runState) error {
	log.Warn("sampler exhausted before coverage target",
		logging.Float64("ratio", state.tracker.Metrics().Ratio))
	flag := &validation.ReviewFlag{
		ID:        uuid.NewString(),
		RunID:     state.runID,
		Severity:  validation.SeverityWarning,
		Reason:    "NO_PAIR_FOUND",
		Object:    validation.ObjectPath,
		Fab:       r.cfg.Fab,
		Notes:     "pair sampling budget exhausted before coverage target",
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.SaveReviewFlag(ctx, flag); err != nil {
		return fmt.Errorf("save review flag: %w", err)
	}
	return nil
}

// flagNoPath records a review flag for a pair with no route between its
// PoCs. The run continues with the next pair.
func (r *Runner) flagNoPath(ctx context.Context, log logging.Logger, state *runState, pair *sampling.Pair) error {
	log.Warn("no path between sampled pair",
		logging.NodeID(pair.FromPoC.NodeID), logging.Int64("end_node_id", pair.ToPoC.NodeID))
	flag := &validation.ReviewFlag{
		ID:          uuid.NewString(),
		RunID:       state.runID,
		Severity:    validation.SeverityMedium,
		Reason:      "NO_PATH_FOUND",
		Object:      validation.ObjectPath,
		StartNodeID: pair.FromPoC.NodeID,
		EndNodeID:   pair.ToPoC.NodeID,
		Fab:         pair.Fab,
		UtilityNo:   pair.FromPoC.UtilityNo,
		Notes:       "no traversable route between sampled PoCs",
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.store.SaveReviewFlag(ctx, flag); err != nil {
		return fmt.Errorf("save review flag: %w", err)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, runID string, started time.Time, cause error) {
	r.log.Error("run failed", logging.RunID(runID), logging.Error(cause))
	r.stats.RecordRun(r.cfg.Approach, store.RunStatusFailed, time.Since(started), 0)
	if err := r.store.FinishRun(ctx, runID, store.RunStatusFailed, 0, 0); err != nil {
		r.log.Error("failed to mark run failed", logging.RunID(runID), logging.Error(err))
	}
}
