package coverage

import (
	"context"
	"testing"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	totalNodes int
	totalLinks int
	nodeIDs    []int64
	linkIDs    []int64
	// per-run persisted coverage, keyed by run id
	runNodes map[string][]int64
	runLinks map[string][]int64
}

func (m *memStore) ScopeTotals(_ context.Context, _ Scope) (int, int, error) {
	return m.totalNodes, m.totalLinks, nil
}

func (m *memStore) ScopeItemIDs(_ context.Context, _ Scope, kind ItemKind) ([]int64, error) {
	if kind == KindNode {
		return m.nodeIDs, nil
	}
	return m.linkIDs, nil
}

func (m *memStore) CoveredSets(_ context.Context, runID string) ([]int64, []int64, error) {
	return m.runNodes[runID], m.runLinks[runID], nil
}

func ids(from, n int64) []int64 {
	out := make([]int64, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, from+i)
	}
	return out
}

func TestTrackerRatio(t *testing.T) {
	st := &memStore{totalNodes: 100, totalLinks: 50}
	tr := NewTracker(st, nil)
	m, err := tr.Initialize(context.Background(), Scope{Fab: "F1"})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if m.Ratio != 0 {
		t.Errorf("fresh ratio = %v, want 0", m.Ratio)
	}

	// 10 nodes + 5 links out of 150 items.
	m = tr.Update(ids(1, 10), ids(1000, 5))
	if m.NodesCovered != 10 || m.LinksCovered != 5 {
		t.Errorf("covered = %d/%d, want 10/5", m.NodesCovered, m.LinksCovered)
	}
	if m.Ratio != 0.1 {
		t.Errorf("ratio = %v, want 0.1", m.Ratio)
	}
}

func TestTrackerUpdateIdempotent(t *testing.T) {
	st := &memStore{totalNodes: 100, totalLinks: 50}
	tr := NewTracker(st, nil)
	if _, err := tr.Initialize(context.Background(), Scope{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	first := tr.Update(ids(1, 10), ids(1000, 5))
	second := tr.Update(ids(1, 10), ids(1000, 5))
	if first != second {
		t.Errorf("repeated update changed metrics: %+v -> %+v", first, second)
	}
}

func TestTrackerContribution(t *testing.T) {
	st := &memStore{totalNodes: 100, totalLinks: 50}
	tr := NewTracker(st, nil)
	if _, err := tr.Initialize(context.Background(), Scope{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tr.Update(ids(1, 10), nil)

	// 5 fresh nodes out of 10 proposed; 150 total items.
	got := tr.Contribution(ids(6, 10), nil)
	want := 5.0 / 150.0
	if got != want {
		t.Errorf("contribution = %v, want %v", got, want)
	}
	if tr.Metrics().NodesCovered != 10 {
		t.Error("Contribution must not mutate the covered sets")
	}
}

func TestTrackerEmptyScope(t *testing.T) {
	st := &memStore{}
	tr := NewTracker(st, nil)
	m, err := tr.Initialize(context.Background(), Scope{})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if m.Ratio != 0 {
		t.Errorf("ratio over empty scope = %v, want 0", m.Ratio)
	}
	if m = tr.Update(ids(1, 3), nil); m.Ratio != 0 {
		t.Errorf("ratio over empty scope after update = %v, want 0", m.Ratio)
	}
}

func TestTrackerUncovered(t *testing.T) {
	st := &memStore{
		totalNodes: 5, totalLinks: 0,
		nodeIDs: []int64{1, 2, 3, 4, 5},
	}
	tr := NewTracker(st, nil)
	if _, err := tr.Initialize(context.Background(), Scope{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tr.Update([]int64{2, 4}, nil)

	got, err := tr.Uncovered(context.Background(), KindNode, 0)
	if err != nil {
		t.Fatalf("Uncovered: %v", err)
	}
	want := []int64{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("uncovered = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("uncovered[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	limited, err := tr.Uncovered(context.Background(), KindNode, 2)
	if err != nil {
		t.Fatalf("Uncovered: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited uncovered length = %d, want 2", len(limited))
	}
}

func TestTrackerReplay(t *testing.T) {
	st := &memStore{
		totalNodes: 100, totalLinks: 50,
		runNodes: map[string][]int64{"run-1": ids(1, 20)},
		runLinks: map[string][]int64{"run-1": ids(1000, 10)},
	}
	tr := NewTracker(st, nil)
	if _, err := tr.Initialize(context.Background(), Scope{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tr.Update(ids(500, 3), nil) // stale in-memory state, discarded by replay

	m, err := tr.Replay(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if m.NodesCovered != 20 || m.LinksCovered != 10 {
		t.Errorf("replayed covered = %d/%d, want 20/10", m.NodesCovered, m.LinksCovered)
	}
	if m.Ratio != 0.2 {
		t.Errorf("replayed ratio = %v, want 0.2", m.Ratio)
	}
	if tr.Covered(KindNode, 500) {
		t.Error("replay must discard pre-replay in-memory coverage")
	}
}
