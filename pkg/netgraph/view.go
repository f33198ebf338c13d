package netgraph

import (
	"context"
	"fmt"
)

// Source is the read surface a View needs from the backing store.
// Implementations must never return rows for excluded node ids.
type Source interface {
	// NodeByID returns a single node, or ErrNodeNotFound.
	NodeByID(ctx context.Context, id int64) (*Node, error)
	// NodesMatching returns all nodes passing every set filter dimension,
	// excluding the given ids.
	NodesMatching(ctx context.Context, filter PathFilter, exclude []int64) ([]Node, error)
	// NodesByIDs returns the nodes with the given ids; missing ids are skipped.
	NodesByIDs(ctx context.Context, ids []int64) ([]Node, error)
	// LinksTouching returns every link with at least one endpoint in ids,
	// excluding links that touch any node in the exclude set.
	LinksTouching(ctx context.Context, ids []int64, exclude []int64) ([]Link, error)
}

// View is an in-memory snapshot of the network for one traversal session.
//
// It holds every node needed for endpoint classification (a superset of the
// traversable set), the adjacency table, and the link table. Nodes in the
// ignore set are excised entirely: they appear neither as adjacency keys nor
// as neighbor values, and no link touching them survives the load.
type View struct {
	StartNodeID int64

	nodes       map[int64]Node   // all loaded nodes, traversable or not
	traversable map[int64]bool   // nodes allowed as interior hops
	links       map[int64]Link   // surviving links
	adjacency   map[int64][]Edge // node id -> outgoing edges
	ignored     map[int64]bool
	loaded      bool
}

// Load builds a View rooted at startNodeID.
//
// The start node is always traversable even when it fails every filter; a
// start node that is also an ignore node fails with ErrInvalidConfiguration.
// Nodes referenced by surviving links but excluded by the filters are still
// loaded (non-traversable) so endpoint classification can read them.
func Load(ctx context.Context, src Source, startNodeID int64, ignore []int64, filter PathFilter) (*View, error) {
	ignored := make(map[int64]bool, len(ignore))
	for _, id := range ignore {
		ignored[id] = true
	}
	if ignored[startNodeID] {
		return nil, nodeErr("Load", startNodeID,
			fmt.Errorf("%w: start node is in the ignore set", ErrInvalidConfiguration))
	}

	v := &View{
		StartNodeID: startNodeID,
		nodes:       make(map[int64]Node),
		traversable: make(map[int64]bool),
		links:       make(map[int64]Link),
		adjacency:   make(map[int64][]Edge),
		ignored:     ignored,
	}

	start, err := src.NodeByID(ctx, startNodeID)
	if err != nil {
		return nil, nodeErr("Load", startNodeID, fmt.Errorf("load start node: %w", err))
	}
	v.nodes[start.ID] = *start
	v.traversable[start.ID] = true

	exclude := make([]int64, 0, len(ignore)+1)
	exclude = append(exclude, ignore...)
	exclude = append(exclude, startNodeID)

	filtered, err := src.NodesMatching(ctx, filter, exclude)
	if err != nil {
		return nil, opErr("Load", fmt.Errorf("load filtered nodes: %w", err))
	}
	for _, n := range filtered {
		if ignored[n.ID] {
			continue
		}
		v.nodes[n.ID] = n
		v.traversable[n.ID] = true
	}

	traversableIDs := make([]int64, 0, len(v.traversable))
	for id := range v.traversable {
		traversableIDs = append(traversableIDs, id)
	}

	links, err := src.LinksTouching(ctx, traversableIDs, ignore)
	if err != nil {
		return nil, opErr("Load", fmt.Errorf("load links: %w", err))
	}

	// Classifier-only nodes: link endpoints the filters excluded. They stay
	// non-traversable but their attributes must be readable.
	var missing []int64
	for _, l := range links {
		if ignored[l.StartNodeID] || ignored[l.EndNodeID] {
			continue
		}
		if _, ok := v.nodes[l.StartNodeID]; !ok {
			missing = append(missing, l.StartNodeID)
		}
		if _, ok := v.nodes[l.EndNodeID]; !ok {
			missing = append(missing, l.EndNodeID)
		}
	}
	if len(missing) > 0 {
		extra, err := src.NodesByIDs(ctx, missing)
		if err != nil {
			return nil, opErr("Load", fmt.Errorf("load classifier nodes: %w", err))
		}
		for _, n := range extra {
			if !ignored[n.ID] {
				v.nodes[n.ID] = n
			}
		}
	}

	for _, l := range links {
		if ignored[l.StartNodeID] || ignored[l.EndNodeID] {
			continue
		}
		if _, ok := v.nodes[l.StartNodeID]; !ok {
			continue
		}
		if _, ok := v.nodes[l.EndNodeID]; !ok {
			continue
		}
		v.links[l.ID] = l
		v.adjacency[l.StartNodeID] = append(v.adjacency[l.StartNodeID], Edge{
			NeighborID: l.EndNodeID, LinkID: l.ID, Cost: l.Cost, Reverse: false,
		})
		if l.Bidirected {
			v.adjacency[l.EndNodeID] = append(v.adjacency[l.EndNodeID], Edge{
				NeighborID: l.StartNodeID, LinkID: l.ID, Cost: l.Cost, Reverse: true,
			})
		}
	}

	v.loaded = true
	return v, nil
}

// Loaded reports whether the view finished loading.
func (v *View) Loaded() bool {
	return v != nil && v.loaded
}

// Node returns the node with the given id, if loaded.
func (v *View) Node(id int64) (Node, bool) {
	n, ok := v.nodes[id]
	return n, ok
}

// Link returns the link with the given id, if loaded.
func (v *View) Link(id int64) (Link, bool) {
	l, ok := v.links[id]
	return l, ok
}

// Traversable reports whether a node may be used as an interior hop.
func (v *View) Traversable(id int64) bool {
	return v.traversable[id]
}

// Ignored reports whether a node was excised from the view.
func (v *View) Ignored(id int64) bool {
	return v.ignored[id]
}

// Edges returns all outgoing adjacency entries for a node.
func (v *View) Edges(id int64) []Edge {
	return v.adjacency[id]
}

// TraversableEdges returns the outgoing edges whose neighbor is traversable
// and not in the visited set. Pass nil to skip the visited check.
func (v *View) TraversableEdges(id int64, visited map[int64]bool) []Edge {
	all := v.adjacency[id]
	out := make([]Edge, 0, len(all))
	for _, e := range all {
		if visited != nil && visited[e.NeighborID] {
			continue
		}
		if v.traversable[e.NeighborID] {
			out = append(out, e)
		}
	}
	return out
}

// NodeCount returns loaded and traversable node counts.
func (v *View) NodeCount() (total, traversable int) {
	return len(v.nodes), len(v.traversable)
}

// LinkCount returns the number of surviving links.
func (v *View) LinkCount() int {
	return len(v.links)
}

// AdjacencyKeys returns the node ids that have at least one outgoing edge.
func (v *View) AdjacencyKeys() []int64 {
	keys := make([]int64, 0, len(v.adjacency))
	for id := range v.adjacency {
		keys = append(keys, id)
	}
	return keys
}
