package pathfinder

import (
	"context"
	"testing"

	"github.com/fabwork/pathtrace/pkg/netgraph"
)

// memSource is an in-memory netgraph.Source for tests.
type memSource struct {
	nodes map[int64]netgraph.Node
	links []netgraph.Link
}

func (m *memSource) NodeByID(_ context.Context, id int64) (*netgraph.Node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, netgraph.ErrNodeNotFound
	}
	return &n, nil
}

func (m *memSource) NodesMatching(_ context.Context, filter netgraph.PathFilter, exclude []int64) ([]netgraph.Node, error) {
	excluded := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []netgraph.Node
	for _, n := range m.nodes {
		if excluded[n.ID] {
			continue
		}
		if filter.UtilityNo != 0 && n.UtilityNo != filter.UtilityNo {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memSource) NodesByIDs(_ context.Context, ids []int64) ([]netgraph.Node, error) {
	var out []netgraph.Node
	for _, id := range ids {
		if n, ok := m.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memSource) LinksTouching(_ context.Context, ids []int64, exclude []int64) ([]netgraph.Link, error) {
	touch := make(map[int64]bool, len(ids))
	for _, id := range ids {
		touch[id] = true
	}
	excluded := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []netgraph.Link
	for _, l := range m.links {
		if !touch[l.StartNodeID] && !touch[l.EndNodeID] {
			continue
		}
		if excluded[l.StartNodeID] || excluded[l.EndNodeID] {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// fabSource models a small supply branch rooted at PoC 1709 on utility 13.
//
//	1709 -> 100 -> 101 -> 102            (102 is a dead end)
//	         100 -> 200 -> 201           (200 carries a target data code)
//	1709 -> 300 -> 301                   (301 is on another utility)
//	1709 -> 123, 101 -> 304, 305         (ignored equipment)
func fabSource() *memSource {
	return &memSource{
		nodes: map[int64]netgraph.Node{
			1709: {ID: 1709, UtilityNo: 13, Kind: netgraph.KindPoC},
			100:  {ID: 100, UtilityNo: 13, Kind: netgraph.KindLogical},
			101:  {ID: 101, UtilityNo: 13, Kind: netgraph.KindLogical},
			102:  {ID: 102, UtilityNo: 13, Kind: netgraph.KindPoC},
			200:  {ID: 200, UtilityNo: 13, DataCode: 15000, Kind: netgraph.KindLogical},
			201:  {ID: 201, UtilityNo: 13, Kind: netgraph.KindPoC},
			300:  {ID: 300, UtilityNo: 13, Kind: netgraph.KindLogical},
			301:  {ID: 301, UtilityNo: 7, Kind: netgraph.KindLogical},
			123:  {ID: 123, UtilityNo: 13, Kind: netgraph.KindLogical},
			304:  {ID: 304, UtilityNo: 13, Kind: netgraph.KindLogical},
			305:  {ID: 305, UtilityNo: 13, Kind: netgraph.KindLogical},
		},
		links: []netgraph.Link{
			{ID: 1, StartNodeID: 1709, EndNodeID: 100, Cost: 1},
			{ID: 2, StartNodeID: 100, EndNodeID: 101, Cost: 1},
			{ID: 3, StartNodeID: 101, EndNodeID: 102, Cost: 1},
			{ID: 4, StartNodeID: 100, EndNodeID: 200, Cost: 1},
			{ID: 5, StartNodeID: 200, EndNodeID: 201, Cost: 1},
			{ID: 6, StartNodeID: 1709, EndNodeID: 300, Cost: 1},
			{ID: 7, StartNodeID: 300, EndNodeID: 301, Cost: 1},
			{ID: 8, StartNodeID: 1709, EndNodeID: 123, Cost: 1},
			{ID: 9, StartNodeID: 101, EndNodeID: 304, Cost: 1},
			{ID: 10, StartNodeID: 304, EndNodeID: 305, Cost: 1},
		},
	}
}

var fabIgnore = []int64{123, 304, 305}

func fabView(t *testing.T) *netgraph.View {
	t.Helper()
	v, err := netgraph.Load(context.Background(), fabSource(), 1709, fabIgnore,
		netgraph.PathFilter{UtilityNo: 13})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return v
}

var fabTargets = TargetCodeSet([]int{15000, 107})

func endpointSet(paths []*PathResult) map[int64]EndpointKind {
	out := make(map[int64]EndpointKind, len(paths))
	for _, p := range paths {
		out[p.EndNodeID] = p.Endpoint
	}
	return out
}

func TestDFSFindsAllEndpoints(t *testing.T) {
	f := New(fabView(t), nil)
	paths, err := f.FindAllPathsDFS(fabTargets, Budget{})
	if err != nil {
		t.Fatalf("FindAllPathsDFS: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("got %d paths, want 4", len(paths))
	}

	want := map[int64]EndpointKind{
		102: EndpointLeaf,
		200: EndpointTarget,
		201: EndpointLeaf,
		300: EndpointBoundary,
	}
	got := endpointSet(paths)
	for node, kind := range want {
		if got[node] != kind {
			t.Errorf("endpoint %d = %v, want %v", node, got[node], kind)
		}
	}

	stats := f.Stats()
	if stats.Leaf != 2 || stats.Target != 1 || stats.Boundary != 1 {
		t.Errorf("stats = %+v, want leaf=2 target=1 boundary=1", stats)
	}
}

func TestDFSContinuesPastTarget(t *testing.T) {
	f := New(fabView(t), nil)
	paths, err := f.FindAllPathsDFS(fabTargets, Budget{})
	if err != nil {
		t.Fatalf("FindAllPathsDFS: %v", err)
	}

	// Node 201 sits beyond the target node 200; finding it proves the
	// traversal did not stop at the target.
	got := endpointSet(paths)
	if _, ok := got[201]; !ok {
		t.Error("expected a path reaching node 201 past the target node 200")
	}
}

func TestDFSDeterministicOrder(t *testing.T) {
	f := New(fabView(t), nil)
	first, err := f.FindAllPathsDFS(fabTargets, Budget{})
	if err != nil {
		t.Fatalf("FindAllPathsDFS: %v", err)
	}

	wantOrder := []int64{102, 200, 201, 300}
	for i, p := range first {
		if p.EndNodeID != wantOrder[i] {
			t.Fatalf("path %d ends at %d, want %d", i, p.EndNodeID, wantOrder[i])
		}
		if p.PathID != i+1 {
			t.Errorf("path %d id = %d, want %d", i, p.PathID, i+1)
		}
	}
}

func TestDFSPathBudget(t *testing.T) {
	f := New(fabView(t), nil)
	paths, err := f.FindAllPathsDFS(fabTargets, Budget{MaxPaths: 2})
	if err != nil {
		t.Fatalf("FindAllPathsDFS: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("got %d paths, want 2 under budget", len(paths))
	}
}

func TestDFSStepSequence(t *testing.T) {
	f := New(fabView(t), nil)
	paths, err := f.FindAllPathsDFS(fabTargets, Budget{})
	if err != nil {
		t.Fatalf("FindAllPathsDFS: %v", err)
	}
	for _, p := range paths {
		prev := p.StartNodeID
		for i, s := range p.Steps {
			if s.Seq != i+1 {
				t.Errorf("path %d step %d seq = %d, want %d", p.PathID, i, s.Seq, i+1)
			}
			if s.FromNodeID != prev {
				t.Errorf("path %d step %d from = %d, want %d", p.PathID, i, s.FromNodeID, prev)
			}
			prev = s.ToNodeID
		}
		if prev != p.EndNodeID {
			t.Errorf("path %d ends at %d, steps end at %d", p.PathID, p.EndNodeID, prev)
		}
	}
}

func TestDijkstraMatchesDFSEndpoints(t *testing.T) {
	dfs := New(fabView(t), nil)
	dfsPaths, err := dfs.FindAllPathsDFS(fabTargets, Budget{})
	if err != nil {
		t.Fatalf("FindAllPathsDFS: %v", err)
	}

	dij := New(fabView(t), nil)
	dijPaths, err := dij.FindShortestPathsDijkstra(fabTargets)
	if err != nil {
		t.Fatalf("FindShortestPathsDijkstra: %v", err)
	}

	dfsSet := endpointSet(dfsPaths)
	dijSet := endpointSet(dijPaths)
	if len(dfsSet) != len(dijSet) {
		t.Fatalf("endpoint sets differ: dfs=%v dijkstra=%v", dfsSet, dijSet)
	}
	for node, kind := range dfsSet {
		if dijSet[node] != kind {
			t.Errorf("endpoint %d: dfs=%v dijkstra=%v", node, kind, dijSet[node])
		}
	}
}

func TestDijkstraOnePathPerEndpoint(t *testing.T) {
	f := New(fabView(t), nil)
	paths, err := f.FindShortestPathsDijkstra(fabTargets)
	if err != nil {
		t.Fatalf("FindShortestPathsDijkstra: %v", err)
	}

	seen := make(map[int64]bool)
	for _, p := range paths {
		if seen[p.EndNodeID] {
			t.Errorf("endpoint %d appears more than once", p.EndNodeID)
		}
		seen[p.EndNodeID] = true
	}
}

func TestDijkstraPicksCheapestRoute(t *testing.T) {
	src := fabSource()
	// Add an expensive shortcut straight to 102; the cheap 3-hop route wins.
	src.links = append(src.links, netgraph.Link{ID: 20, StartNodeID: 1709, EndNodeID: 102, Cost: 10})

	v, err := netgraph.Load(context.Background(), src, 1709, fabIgnore, netgraph.PathFilter{UtilityNo: 13})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := New(v, nil)

	p, err := f.ShortestPathBetween(102)
	if err != nil {
		t.Fatalf("ShortestPathBetween: %v", err)
	}
	if p == nil {
		t.Fatal("expected a path to 102")
	}
	if p.TotalCost != 3 {
		t.Errorf("cost = %v, want 3 via the hop chain", p.TotalCost)
	}
	if len(p.Steps) != 3 {
		t.Errorf("steps = %d, want 3", len(p.Steps))
	}
}

func TestShortestPathBetweenUnreachable(t *testing.T) {
	f := New(fabView(t), nil)
	// Node 123 is in the ignore set and absent from the view.
	p, err := f.ShortestPathBetween(123)
	if err != nil {
		t.Fatalf("ShortestPathBetween: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil path for excised node, got %+v", p)
	}
}

func TestFinderRequiresLoadedView(t *testing.T) {
	f := New(&netgraph.View{}, nil)
	if _, err := f.FindAllPathsDFS(nil, Budget{}); err == nil {
		t.Error("expected error for unloaded view")
	}
}
