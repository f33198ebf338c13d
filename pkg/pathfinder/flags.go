package pathfinder

// Node flags persisted alongside path links. One character per node per path.
const (
	FlagStart        = 'S'
	FlagTarget       = 'E'
	FlagLeaf         = 'L'
	FlagBoundary     = 'F'
	FlagConvergence  = 'C'
	FlagIntermediate = 'I'
)

// FlagKey addresses one node within one path.
type FlagKey struct {
	PathID int
	NodeID int64
}

// AnalyzeNodeFlags classifies every node of every path for persistence.
//
// The terminal node's flag reflects why traversal stopped there; interior
// nodes that appear in more than one path are convergence points. The
// classification reads node attributes from the view, so nodes excluded by
// filters (but loaded for classification) resolve correctly.
func (f *Finder) AnalyzeNodeFlags(paths []*PathResult, targetCodes map[int]bool) map[FlagKey]rune {
	flags := make(map[FlagKey]rune)

	// Convergence detection: count distinct paths touching each node.
	pathsPerNode := make(map[int64]int)
	for _, p := range paths {
		seen := map[int64]bool{p.StartNodeID: true}
		for _, s := range p.Steps {
			seen[s.ToNodeID] = true
		}
		for nodeID := range seen {
			pathsPerNode[nodeID]++
		}
	}

	for _, p := range paths {
		if len(p.Steps) == 0 {
			continue
		}
		nodes := p.NodeIDs()
		for i, nodeID := range nodes {
			key := FlagKey{PathID: p.PathID, NodeID: nodeID}
			switch {
			case i == 0:
				flags[key] = FlagStart
			case i == len(nodes)-1:
				flags[key] = f.terminalFlag(nodeID, targetCodes)
			case pathsPerNode[nodeID] > 1:
				flags[key] = FlagConvergence
			default:
				flags[key] = FlagIntermediate
			}
		}
	}
	return flags
}

func (f *Finder) terminalFlag(nodeID int64, targetCodes map[int]bool) rune {
	all := f.view.Edges(nodeID)
	if len(all) == 0 {
		return FlagLeaf
	}
	if len(targetCodes) > 0 {
		if n, ok := f.view.Node(nodeID); ok && targetCodes[n.DataCode] {
			return FlagTarget
		}
	}
	if len(f.view.TraversableEdges(nodeID, nil)) == 0 {
		return FlagBoundary
	}
	return FlagTarget
}
