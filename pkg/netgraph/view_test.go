package netgraph

import (
	"context"
	"errors"
	"testing"
)

// memSource is an in-memory Source for tests.
type memSource struct {
	nodes map[int64]Node
	links []Link
}

func (m *memSource) NodeByID(_ context.Context, id int64) (*Node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return &n, nil
}

func (m *memSource) NodesMatching(_ context.Context, filter PathFilter, exclude []int64) ([]Node, error) {
	excluded := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []Node
	for _, n := range m.nodes {
		if excluded[n.ID] {
			continue
		}
		if filter.UtilityNo != 0 && n.UtilityNo != filter.UtilityNo {
			continue
		}
		if filter.ToolsetID != 0 && n.ToolsetID != filter.ToolsetID {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memSource) NodesByIDs(_ context.Context, ids []int64) ([]Node, error) {
	var out []Node
	for _, id := range ids {
		if n, ok := m.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memSource) LinksTouching(_ context.Context, ids []int64, exclude []int64) ([]Link, error) {
	touch := make(map[int64]bool, len(ids))
	for _, id := range ids {
		touch[id] = true
	}
	excluded := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []Link
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

// lineSource builds 1 -> 2 -> 3 -> 4 with utility 13 throughout, plus a
// side node 99 on another utility reached from 2.
func lineSource() *memSource {
	return &memSource{
		nodes: map[int64]Node{
			1:  {ID: 1, UtilityNo: 13, Kind: KindPoC},
			2:  {ID: 2, UtilityNo: 13, Kind: KindLogical},
			3:  {ID: 3, UtilityNo: 13, Kind: KindLogical},
			4:  {ID: 4, UtilityNo: 13, Kind: KindPoC},
			99: {ID: 99, UtilityNo: 7, Kind: KindLogical},
		},
		links: []Link{
			{ID: 10, StartNodeID: 1, EndNodeID: 2, Cost: 1},
			{ID: 11, StartNodeID: 2, EndNodeID: 3, Cost: 1},
			{ID: 12, StartNodeID: 3, EndNodeID: 4, Cost: 1},
			{ID: 13, StartNodeID: 2, EndNodeID: 99, Cost: 1},
		},
	}
}

func TestLoadRejectsIgnoredStart(t *testing.T) {
	_, err := Load(context.Background(), lineSource(), 1, []int64{1, 3}, PathFilter{})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestLoadMissingStart(t *testing.T) {
	_, err := Load(context.Background(), lineSource(), 555, nil, PathFilter{})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestLoadStartAlwaysTraversable(t *testing.T) {
	// Utility filter 7 excludes the start node's own utility.
	v, err := Load(context.Background(), lineSource(), 1, nil, PathFilter{UtilityNo: 7})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !v.Traversable(1) {
		t.Error("start node must stay traversable regardless of filters")
	}
}

func TestLoadExcisesIgnoredNodes(t *testing.T) {
	v, err := Load(context.Background(), lineSource(), 1, []int64{3}, PathFilter{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := v.Node(3); ok {
		t.Error("ignored node 3 must not be loaded")
	}
	if _, ok := v.Link(11); ok {
		t.Error("link 11 touches ignored node 3 and must be dropped")
	}
	if _, ok := v.Link(12); ok {
		t.Error("link 12 touches ignored node 3 and must be dropped")
	}
	for _, e := range v.Edges(2) {
		if e.NeighborID == 3 {
			t.Error("adjacency of node 2 must not reference ignored node 3")
		}
	}
}

func TestLoadClassifierOnlyNodes(t *testing.T) {
	// Filter to utility 13: node 99 fails the filter but is a link endpoint,
	// so it must be loaded for classification without becoming traversable.
	v, err := Load(context.Background(), lineSource(), 1, nil, PathFilter{UtilityNo: 13})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	n, ok := v.Node(99)
	if !ok {
		t.Fatal("node 99 must be loaded as a classifier-only node")
	}
	if n.UtilityNo != 7 {
		t.Errorf("node 99 utility = %d, want 7", n.UtilityNo)
	}
	if v.Traversable(99) {
		t.Error("node 99 must not be traversable under the utility filter")
	}
}

func TestLoadBidirectedAdjacency(t *testing.T) {
	src := lineSource()
	for i := range src.links {
		src.links[i].Bidirected = true
	}

	v, err := Load(context.Background(), src, 1, nil, PathFilter{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var found bool
	for _, e := range v.Edges(2) {
		if e.NeighborID == 1 {
			found = true
			if !e.Reverse {
				t.Error("reverse adjacency entry must carry Reverse=true")
			}
			if e.LinkID != 10 {
				t.Errorf("reverse edge link = %d, want 10", e.LinkID)
			}
		}
	}
	if !found {
		t.Error("bidirected link 10 must produce a 2->1 adjacency entry")
	}
}

func TestLoadDirectedAdjacencyIsOneWay(t *testing.T) {
	v, err := Load(context.Background(), lineSource(), 1, nil, PathFilter{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, e := range v.Edges(2) {
		if e.NeighborID == 1 {
			t.Error("directed link 10 must not produce a 2->1 adjacency entry")
		}
	}
}

func TestTraversableEdgesSkipsVisited(t *testing.T) {
	v, err := Load(context.Background(), lineSource(), 1, nil, PathFilter{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	edges := v.TraversableEdges(2, map[int64]bool{3: true})
	for _, e := range edges {
		if e.NeighborID == 3 {
			t.Error("visited neighbor 3 must be filtered out")
		}
	}
}
