package pathfinder

import (
	"container/heap"

	"github.com/fabwork/pathtrace/pkg/logging"
)

// pqItem is a priority-queue entry. seq breaks cost ties by insertion order
// so traversal is deterministic for a fixed adjacency order.
type pqItem struct {
	nodeID int64
	dist   float64
	seq    int
}

type costQueue []pqItem

func (q costQueue) Len() int { return len(q) }
func (q costQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}
func (q costQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *costQueue) Push(x any)   { *q = append(*q, x.(pqItem)) }
func (q *costQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

type predecessor struct {
	nodeID  int64
	linkID  int64
	cost    float64
	reverse bool
}

// FindShortestPathsDijkstra finds the cost-minimal path to each reachable
// endpoint. Every popped node (except the start) is classified once; terminal
// nodes are recorded as candidates but traversal continues past them so
// endpoints further out are still found. At most one path per endpoint.
func (f *Finder) FindShortestPathsDijkstra(targetCodes map[int]bool) ([]*PathResult, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	f.stats = EndpointStats{}

	dist, prev, popped := f.dijkstra(nil)

	// Candidates are collected in settle order so emission is deterministic
	// for a fixed adjacency order.
	var candidates []int64
	kinds := make(map[int64]EndpointKind)
	for _, nodeID := range popped {
		if kind := f.classify(nodeID, targetCodes); kind != EndpointNone {
			candidates = append(candidates, nodeID)
			kinds[nodeID] = kind
		}
	}

	var paths []*PathResult
	for _, endNodeID := range candidates {
		steps, ok := f.reconstruct(endNodeID, prev)
		if !ok {
			f.log.Warn("endpoint unreachable, skipping", logging.Int64("node_id", endNodeID))
			continue
		}
		if len(steps) == 0 {
			continue
		}
		kind := kinds[endNodeID]
		paths = append(paths, f.buildResult(endNodeID, kind, dist[endNodeID], steps))
		f.count(kind)
	}

	f.log.Info("dijkstra traversal complete",
		logging.Int64("start_node", f.view.StartNodeID),
		logging.Int("paths", len(paths)),
		logging.Int("leaf", f.stats.Leaf),
		logging.Int("target", f.stats.Target),
		logging.Int("boundary", f.stats.Boundary),
	)
	return paths, nil
}

// ShortestPathBetween finds the cost-minimal path from the start node to one
// specific node. Returns (nil, nil) when no path exists.
func (f *Finder) ShortestPathBetween(endNodeID int64) (*PathResult, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	dist, prev, _ := f.dijkstra(&endNodeID)
	if _, ok := dist[endNodeID]; !ok {
		return nil, nil
	}
	steps, ok := f.reconstruct(endNodeID, prev)
	if !ok || len(steps) == 0 {
		return nil, nil
	}
	return f.buildResult(endNodeID, EndpointTarget, dist[endNodeID], steps), nil
}

// dijkstra runs the settle loop. When stopAt is non-nil the loop exits as
// soon as that node is settled.
func (f *Finder) dijkstra(stopAt *int64) (map[int64]float64, map[int64]predecessor, []int64) {
	dist := map[int64]float64{f.view.StartNodeID: 0}
	prev := make(map[int64]predecessor)
	settled := make(map[int64]bool)
	var popped []int64

	seq := 0
	pq := &costQueue{{nodeID: f.view.StartNodeID, dist: 0, seq: seq}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		if settled[item.nodeID] {
			continue
		}
		settled[item.nodeID] = true
		popped = append(popped, item.nodeID)

		if stopAt != nil && item.nodeID == *stopAt {
			break
		}

		for _, e := range f.view.TraversableEdges(item.nodeID, settled) {
			next := item.dist + e.Cost
			if d, ok := dist[e.NeighborID]; !ok || next < d {
				dist[e.NeighborID] = next
				prev[e.NeighborID] = predecessor{
					nodeID:  item.nodeID,
					linkID:  e.LinkID,
					cost:    e.Cost,
					reverse: e.Reverse,
				}
				seq++
				heap.Push(pq, pqItem{nodeID: e.NeighborID, dist: next, seq: seq})
			}
		}
	}
	return dist, prev, popped
}

// reconstruct walks the predecessor chain from endNodeID back to the start.
func (f *Finder) reconstruct(endNodeID int64, prev map[int64]predecessor) ([]Step, bool) {
	var steps []Step
	current := endNodeID
	for current != f.view.StartNodeID {
		p, ok := prev[current]
		if !ok {
			return nil, false
		}
		steps = append(steps, Step{
			LinkID:     p.linkID,
			FromNodeID: p.nodeID,
			ToNodeID:   current,
			Cost:       p.cost,
			Reverse:    p.reverse,
		})
		current = p.nodeID
	}
	// Walked back-to-front; flip into start-to-end order.
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps, true
}
