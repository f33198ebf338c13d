package pathfinder

import (
	"github.com/fabwork/pathtrace/pkg/logging"
)

// dfsFrame is one work-list entry. A visit frame explores a node; a
// backtrack frame unwinds the shared path state when the branch is done.
type dfsFrame struct {
	backtrack bool
	nodeID    int64
	step      Step // edge taken to reach nodeID; zero for the start frame
}

// FindAllPathsDFS finds every downstream path from the start node.
//
// Exploration is an explicit stack of visit/backtrack frames so deep graphs
// cannot exhaust the call stack and the budget check is a single test at the
// top of the loop. Every terminal node emits a path; non-LEAF terminals are
// also explored past, since a TARGET or BOUNDARY node can be an interior hop
// of a longer path. Output can be exponential in the branching factor; pass a
// Budget to bound it.
func (f *Finder) FindAllPathsDFS(targetCodes map[int]bool, budget Budget) ([]*PathResult, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	f.stats = EndpointStats{}

	var (
		paths   []*PathResult
		steps   []Step
		cost    float64
		frames  int
		visited = map[int64]bool{f.view.StartNodeID: true}
	)

	stack := []dfsFrame{{nodeID: f.view.StartNodeID}}

	for len(stack) > 0 {
		if budget.MaxPaths > 0 && len(paths) >= budget.MaxPaths {
			f.log.Warn("dfs path budget reached", logging.Int("max_paths", budget.MaxPaths))
			break
		}
		if budget.MaxFrames > 0 && frames >= budget.MaxFrames {
			f.log.Warn("dfs frame budget reached", logging.Int("max_frames", budget.MaxFrames))
			break
		}

		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		frames++

		if frame.backtrack {
			visited[frame.nodeID] = false
			steps = steps[:len(steps)-1]
			cost -= frame.step.Cost
			continue
		}

		if frame.nodeID != f.view.StartNodeID {
			// The branch state may have changed since this frame was pushed.
			if visited[frame.nodeID] {
				continue
			}
			visited[frame.nodeID] = true
			steps = append(steps, frame.step)
			cost += frame.step.Cost
			stack = append(stack, dfsFrame{backtrack: true, nodeID: frame.nodeID, step: frame.step})
		}

		kind := f.classify(frame.nodeID, targetCodes)
		if kind != EndpointNone {
			paths = append(paths, f.buildResult(frame.nodeID, kind, cost, steps))
			f.count(kind)
			if kind == EndpointLeaf {
				continue // true leaves have nothing left to explore
			}
		}

		edges := f.view.TraversableEdges(frame.nodeID, nil)
		// Push in reverse so the first adjacency entry is explored first;
		// keeps emission order deterministic for a fixed adjacency order.
		for i := len(edges) - 1; i >= 0; i-- {
			e := edges[i]
			if visited[e.NeighborID] {
				continue
			}
			stack = append(stack, dfsFrame{
				nodeID: e.NeighborID,
				step: Step{
					LinkID:     e.LinkID,
					FromNodeID: frame.nodeID,
					ToNodeID:   e.NeighborID,
					Cost:       e.Cost,
					Reverse:    e.Reverse,
				},
			})
		}
	}

	f.log.Info("dfs traversal complete",
		logging.Int64("start_node", f.view.StartNodeID),
		logging.Int("paths", len(paths)),
		logging.Int("leaf", f.stats.Leaf),
		logging.Int("target", f.stats.Target),
		logging.Int("boundary", f.stats.Boundary),
	)
	return paths, nil
}
