package pathfinder

import (
	"github.com/fabwork/pathtrace/pkg/logging"
	"github.com/fabwork/pathtrace/pkg/netgraph"
)

// EndpointKind is the reason a traversal terminated at a node.
type EndpointKind int

const (
	// EndpointNone means the node is not a terminal.
	EndpointNone EndpointKind = iota
	// EndpointLeaf: no outgoing adjacency entries at all.
	EndpointLeaf
	// EndpointTarget: the node's data code is in the target-code set.
	EndpointTarget
	// EndpointBoundary: outgoing entries exist but none are traversable.
	EndpointBoundary
)

// String returns the string representation of an endpoint kind
func (k EndpointKind) String() string {
	switch k {
	case EndpointLeaf:
		return "LEAF"
	case EndpointTarget:
		return "TARGET"
	case EndpointBoundary:
		return "BOUNDARY"
	default:
		return "NONE"
	}
}

// Step is one hop of a discovered path.
type Step struct {
	Seq        int
	LinkID     int64
	FromNodeID int64
	ToNodeID   int64
	Cost       float64
	Reverse    bool
}

// PathResult is a complete path from the start node to one endpoint.
// Immutable after construction.
type PathResult struct {
	PathID      int
	StartNodeID int64
	EndNodeID   int64
	Endpoint    EndpointKind
	TotalCost   float64
	Steps       []Step
}

// NodeIDs returns the ordered node sequence of the path, start node first.
func (p *PathResult) NodeIDs() []int64 {
	ids := []int64{p.StartNodeID}
	for _, s := range p.Steps {
		ids = append(ids, s.ToNodeID)
	}
	return ids
}

// LinkIDs returns the ordered link sequence of the path.
func (p *PathResult) LinkIDs() []int64 {
	ids := make([]int64, 0, len(p.Steps))
	for _, s := range p.Steps {
		ids = append(ids, s.LinkID)
	}
	return ids
}

// Budget bounds a DFS invocation. Zero fields mean unbounded; Dijkstra
// terminates on its own and ignores the budget.
type Budget struct {
	MaxPaths  int
	MaxFrames int
}

// Finder runs traversals over one loaded view. Not safe for concurrent use;
// each run owns its own Finder.
type Finder struct {
	view   *netgraph.View
	log    logging.Logger
	stats  EndpointStats
	nextID int
}

// EndpointStats counts discovered endpoints by kind for one invocation.
type EndpointStats struct {
	Leaf     int
	Target   int
	Boundary int
}

// New creates a Finder over a loaded view.
func New(view *netgraph.View, log logging.Logger) *Finder {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Finder{view: view, log: log}
}

// Stats returns endpoint counts from the most recent invocation.
func (f *Finder) Stats() EndpointStats {
	return f.stats
}

// classify evaluates the shared terminal rule for a visited node.
// Priority: LEAF beats TARGET beats BOUNDARY; the start node never terminates.
func (f *Finder) classify(nodeID int64, targetCodes map[int]bool) EndpointKind {
	if nodeID == f.view.StartNodeID {
		return EndpointNone
	}
	all := f.view.Edges(nodeID)
	if len(all) == 0 {
		return EndpointLeaf
	}
	if len(targetCodes) > 0 {
		if n, ok := f.view.Node(nodeID); ok && targetCodes[n.DataCode] {
			return EndpointTarget
		}
	}
	if len(f.view.TraversableEdges(nodeID, nil)) == 0 {
		return EndpointBoundary
	}
	return EndpointNone
}

func (f *Finder) ready() error {
	if !f.view.Loaded() {
		return netgraph.ErrGraphNotLoaded
	}
	return nil
}

func (f *Finder) buildResult(endNodeID int64, kind EndpointKind, totalCost float64, steps []Step) *PathResult {
	f.nextID++
	out := make([]Step, len(steps))
	copy(out, steps)
	for i := range out {
		out[i].Seq = i + 1
	}
	return &PathResult{
		PathID:      f.nextID,
		StartNodeID: f.view.StartNodeID,
		EndNodeID:   endNodeID,
		Endpoint:    kind,
		TotalCost:   totalCost,
		Steps:       out,
	}
}

func (f *Finder) count(kind EndpointKind) {
	switch kind {
	case EndpointLeaf:
		f.stats.Leaf++
	case EndpointTarget:
		f.stats.Target++
	case EndpointBoundary:
		f.stats.Boundary++
	}
}

// TargetCodeSet converts a slice of data codes to the set form the
// classifier consumes. An empty slice means "no target-code rule".
func TargetCodeSet(codes []int) map[int]bool {
	if len(codes) == 0 {
		return nil
	}
	set := make(map[int]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}
