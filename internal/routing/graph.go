// Package routing holds the static road graph and the shortest-path search
// the dispatch engine runs against it.
package routing

import (
	"fmt"
	"sort"

	"github.com/example/ridedispatch/internal/dispatch/domain"
)

// Graph is a weighted adjacency table over node identifiers. It is built once
// at startup and never mutated by dispatch, so reads need no locking.
type Graph struct {
	adjacency map[domain.NodeID]map[domain.NodeID]float64
}

// NewGraph validates the adjacency table and freezes it into a Graph.
// Every edge target must itself be a node of the graph and every weight must
// be non-negative; anything else is a configuration error.
func NewGraph(adjacency map[domain.NodeID]map[domain.NodeID]float64) (*Graph, error) {
	copied := make(map[domain.NodeID]map[domain.NodeID]float64, len(adjacency))
	for node, edges := range adjacency {
		copied[node] = make(map[domain.NodeID]float64, len(edges))
		for neighbor, weight := range edges {
			if _, ok := adjacency[neighbor]; !ok {
				return nil, fmt.Errorf("graph: edge %s->%s references unknown node", node, neighbor)
			}
			if weight < 0 {
				return nil, fmt.Errorf("graph: edge %s->%s has negative weight %f", node, neighbor, weight)
			}
			copied[node][neighbor] = weight
		}
	}
	return &Graph{adjacency: copied}, nil
}

// Contains reports whether the node is part of the graph.
func (g *Graph) Contains(node domain.NodeID) bool {
	_, ok := g.adjacency[node]
	return ok
}

// Nodes returns the node identifiers in lexical order.
func (g *Graph) Nodes() []domain.NodeID {
	nodes := make([]domain.NodeID, 0, len(g.adjacency))
	for node := range g.adjacency {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// neighbors returns the adjacency row for a node, nil when unknown.
func (g *Graph) neighbors(node domain.NodeID) map[domain.NodeID]float64 {
	return g.adjacency[node]
}

// Locator resolves coordinates to graph nodes by exact value match. There is
// no nearest-node snapping: a coordinate outside the configured mapping does
// not resolve.
type Locator struct {
	byCoordinate map[domain.Coordinate]domain.NodeID
	byNode       map[domain.NodeID]domain.Coordinate
}

// NewLocator builds a Locator from a node->coordinate mapping. The mapping
// must be bijective and every node must exist in the graph.
func NewLocator(graph *Graph, mapping map[domain.NodeID]domain.Coordinate) (*Locator, error) {
	byCoordinate := make(map[domain.Coordinate]domain.NodeID, len(mapping))
	byNode := make(map[domain.NodeID]domain.Coordinate, len(mapping))
	for node, coord := range mapping {
		if !graph.Contains(node) {
			return nil, fmt.Errorf("locator: node %s not in graph", node)
		}
		if existing, ok := byCoordinate[coord]; ok {
			return nil, fmt.Errorf("locator: coordinate (%f,%f) mapped to both %s and %s", coord.Lat, coord.Lng, existing, node)
		}
		byCoordinate[coord] = node
		byNode[node] = coord
	}
	return &Locator{byCoordinate: byCoordinate, byNode: byNode}, nil
}

// Resolve returns the node for a coordinate, or false when unmapped.
func (l *Locator) Resolve(coord domain.Coordinate) (domain.NodeID, bool) {
	node, ok := l.byCoordinate[coord]
	return node, ok
}

// CoordinateOf returns the configured coordinate for a node.
func (l *Locator) CoordinateOf(node domain.NodeID) (domain.Coordinate, bool) {
	coord, ok := l.byNode[node]
	return coord, ok
}
