package routing

import (
	"container/heap"
	"math"

	"github.com/example/ridedispatch/internal/dispatch/domain"
)

// ShortestPath runs Dijkstra's algorithm from start to end and returns the
// node sequence inclusive of both endpoints. It returns nil when no route
// exists, including when either endpoint is not in the graph. Weights are
// assumed non-negative; NewGraph rejects anything else.
func (g *Graph) ShortestPath(start, end domain.NodeID) []domain.NodeID {
	if !g.Contains(start) || !g.Contains(end) {
		return nil
	}

	distances := make(map[domain.NodeID]float64, len(g.adjacency))
	predecessors := make(map[domain.NodeID]domain.NodeID)
	for node := range g.adjacency {
		distances[node] = math.Inf(1)
	}
	distances[start] = 0

	pq := &nodeQueue{{node: start, distance: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		current := heap.Pop(pq).(nodeEntry)

		if current.node == end {
			return reconstruct(predecessors, start, end)
		}

		// Stale entry: a shorter path to this node was already settled.
		if current.distance > distances[current.node] {
			continue
		}

		for neighbor, weight := range g.neighbors(current.node) {
			candidate := current.distance + weight
			if candidate < distances[neighbor] {
				distances[neighbor] = candidate
				predecessors[neighbor] = current.node
				heap.Push(pq, nodeEntry{node: neighbor, distance: candidate})
			}
		}
	}

	return nil
}

// PathCost sums the edge weights along a path produced by ShortestPath.
func (g *Graph) PathCost(path []domain.NodeID) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += g.adjacency[path[i-1]][path[i]]
	}
	return total
}

func reconstruct(predecessors map[domain.NodeID]domain.NodeID, start, end domain.NodeID) []domain.NodeID {
	path := []domain.NodeID{end}
	for current := end; current != start; {
		current = predecessors[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type nodeEntry struct {
	node     domain.NodeID
	distance float64
}

type nodeQueue []nodeEntry

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].distance < q[j].distance }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(nodeEntry)) }

func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	entry := old[n-1]
	*q = old[:n-1]
	return entry
}
