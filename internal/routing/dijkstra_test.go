package routing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/ridedispatch/internal/dispatch/domain"
	"github.com/example/ridedispatch/internal/routing"
)

func cityGraph(t *testing.T) *routing.Graph {
	t.Helper()
	g, err := routing.NewGraph(map[domain.NodeID]map[domain.NodeID]float64{
		"A": {"B": 1, "C": 4},
		"B": {"A": 1, "C": 2, "D": 5},
		"C": {"A": 4, "B": 2, "D": 1},
		"D": {"B": 5, "C": 1},
	})
	require.NoError(t, err)
	return g
}

func TestShortestPathPrefersCheapestTotal(t *testing.T) {
	g := cityGraph(t)

	// A->B->C->D costs 4; the tempting A->C->D costs 5 and A->B->D costs 6.
	path := g.ShortestPath("A", "D")
	require.Equal(t, []domain.NodeID{"A", "B", "C", "D"}, path)
	require.InDelta(t, 4, g.PathCost(path), 1e-12)
}

func TestShortestPathSameNode(t *testing.T) {
	g := cityGraph(t)
	for _, node := range g.Nodes() {
		require.Equal(t, []domain.NodeID{node}, g.ShortestPath(node, node))
	}
}

func TestShortestPathUnknownEndpoints(t *testing.T) {
	g := cityGraph(t)
	require.Nil(t, g.ShortestPath("A", "Z"))
	require.Nil(t, g.ShortestPath("Z", "A"))
}

func TestShortestPathDisconnected(t *testing.T) {
	g, err := routing.NewGraph(map[domain.NodeID]map[domain.NodeID]float64{
		"A": {"B": 1},
		"B": {"A": 1},
		"C": {"D": 2},
		"D": {"C": 2},
	})
	require.NoError(t, err)
	require.Nil(t, g.ShortestPath("A", "D"))
	require.Equal(t, []domain.NodeID{"C", "D"}, g.ShortestPath("C", "D"))
}

func TestShortestPathAsymmetricWeights(t *testing.T) {
	// Weights need not be symmetric; each direction is searched on its own.
	g, err := routing.NewGraph(map[domain.NodeID]map[domain.NodeID]float64{
		"A": {"B": 10, "C": 1},
		"B": {"A": 1},
		"C": {"B": 1, "A": 1},
	})
	require.NoError(t, err)

	forward := g.ShortestPath("A", "B")
	require.Equal(t, []domain.NodeID{"A", "C", "B"}, forward)
	require.InDelta(t, 2, g.PathCost(forward), 1e-12)

	back := g.ShortestPath("B", "A")
	require.Equal(t, []domain.NodeID{"B", "A"}, back)
}
