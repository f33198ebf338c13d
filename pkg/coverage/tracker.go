package coverage

import (
	"context"
	"fmt"

	"github.com/fabwork/pathtrace/pkg/logging"
)

// Scope bounds one run's coverage accounting. Zero-valued fields mean
// "no restriction" for that dimension.
type Scope struct {
	Fab       string
	ModelNo   int
	PhaseNo   int
	ToolsetID int64
}

// Metrics is a point-in-time coverage reading. Nodes and links are equally
// weighted items out of a combined total.
type Metrics struct {
	NodesCovered int
	LinksCovered int
	TotalNodes   int
	TotalLinks   int
	Ratio        float64 // in [0, 1]; 0 when totals are 0
}

// ItemKind selects nodes or links in listing operations.
type ItemKind int

const (
	KindNode ItemKind = iota
	KindLink
)

// Store is the read surface the tracker needs from the backing store.
type Store interface {
	// ScopeTotals returns the in-scope node and link counts.
	ScopeTotals(ctx context.Context, scope Scope) (nodes, links int, err error)
	// ScopeItemIDs returns all in-scope node or link ids.
	ScopeItemIDs(ctx context.Context, scope Scope, kind ItemKind) ([]int64, error)
	// CoveredSets returns the union of node and link ids over every path
	// record persisted for the run. This is the source of truth for
	// coverage reconstruction after an interruption.
	CoveredSets(ctx context.Context, runID string) (nodes, links []int64, err error)
}

// Tracker accumulates the covered node/link sets for one run.
//
// The in-memory sets are a cache: after a crash the same state is rebuilt by
// Replay from persisted path records. Covered sets only grow within a run.
// Owned by a single run; not safe for concurrent use.
type Tracker struct {
	store Store
	log   logging.Logger
	scope Scope

	coveredNodes map[int64]bool
	coveredLinks map[int64]bool
	totalNodes   int
	totalLinks   int
	initialized  bool
}

// NewTracker creates an uninitialized tracker bound to a store.
func NewTracker(store Store, log logging.Logger) *Tracker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Tracker{store: store, log: log}
}

// Initialize computes scope totals and resets the covered sets.
func (t *Tracker) Initialize(ctx context.Context, scope Scope) (Metrics, error) {
	nodes, links, err := t.store.ScopeTotals(ctx, scope)
	if err != nil {
		return Metrics{}, fmt.Errorf("initialize coverage: %w", err)
	}
	t.scope = scope
	t.totalNodes = nodes
	t.totalLinks = links
	t.coveredNodes = make(map[int64]bool)
	t.coveredLinks = make(map[int64]bool)
	t.initialized = true

	t.log.Info("coverage initialized",
		logging.String("fab", scope.Fab),
		logging.Int("total_nodes", nodes),
		logging.Int("total_links", links),
	)
	return t.Metrics(), nil
}

// Update unions a path's node and link ids into the covered sets and
// returns the refreshed metrics. Idempotent per path.
func (t *Tracker) Update(pathNodes, pathLinks []int64) Metrics {
	for _, id := range pathNodes {
		t.coveredNodes[id] = true
	}
	for _, id := range pathLinks {
		t.coveredLinks[id] = true
	}
	return t.Metrics()
}

// Contribution returns the coverage ratio a path would add without
// mutating the covered sets.
func (t *Tracker) Contribution(pathNodes, pathLinks []int64) float64 {
	total := t.totalNodes + t.totalLinks
	if total == 0 {
		return 0
	}
	fresh := 0
	for _, id := range pathNodes {
		if !t.coveredNodes[id] {
			fresh++
		}
	}
	for _, id := range pathLinks {
		if !t.coveredLinks[id] {
			fresh++
		}
	}
	return float64(fresh) / float64(total)
}

// Metrics returns covered counts, totals, and the overall ratio.
func (t *Tracker) Metrics() Metrics {
	m := Metrics{
		NodesCovered: len(t.coveredNodes),
		LinksCovered: len(t.coveredLinks),
		TotalNodes:   t.totalNodes,
		TotalLinks:   t.totalLinks,
	}
	if total := m.TotalNodes + m.TotalLinks; total > 0 {
		m.Ratio = float64(m.NodesCovered+m.LinksCovered) / float64(total)
	}
	return m
}

// Covered reports whether an item is already in the covered set.
func (t *Tracker) Covered(kind ItemKind, id int64) bool {
	if kind == KindNode {
		return t.coveredNodes[id]
	}
	return t.coveredLinks[id]
}

// Uncovered returns up to limit in-scope item ids not yet covered.
// A limit of 0 means all.
func (t *Tracker) Uncovered(ctx context.Context, kind ItemKind, limit int) ([]int64, error) {
	all, err := t.store.ScopeItemIDs(ctx, t.scope, kind)
	if err != nil {
		return nil, fmt.Errorf("list uncovered: %w", err)
	}
	covered := t.coveredNodes
	if kind == KindLink {
		covered = t.coveredLinks
	}
	var out []int64
	for _, id := range all {
		if covered[id] {
			continue
		}
		out = append(out, id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Replay rebuilds the covered sets from the run's persisted path records,
// discarding the in-memory cache. Scope totals are kept.
func (t *Tracker) Replay(ctx context.Context, runID string) (Metrics, error) {
	nodes, links, err := t.store.CoveredSets(ctx, runID)
	if err != nil {
		return Metrics{}, fmt.Errorf("replay coverage for run %s: %w", runID, err)
	}
	t.coveredNodes = make(map[int64]bool, len(nodes))
	t.coveredLinks = make(map[int64]bool, len(links))
	for _, id := range nodes {
		t.coveredNodes[id] = true
	}
	for _, id := range links {
		t.coveredLinks[id] = true
	}
	t.initialized = true

	t.log.Info("coverage replayed",
		logging.RunID(runID),
		logging.Int("nodes", len(nodes)),
		logging.Int("links", len(links)),
	)
	return t.Metrics(), nil
}
