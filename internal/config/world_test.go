package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/ridedispatch/internal/config"
	"github.com/example/ridedispatch/internal/dispatch/domain"
)

func TestDefaultWorld(t *testing.T) {
	world := config.DefaultWorld()

	require.Equal(t, []domain.NodeID{"A", "B", "C", "D"}, world.Graph.Nodes())

	node, ok := world.Locator.Resolve(domain.Coordinate{Lat: 48.8566, Lng: 2.3522})
	require.True(t, ok)
	require.Equal(t, domain.NodeID("A"), node)

	require.Equal(t, []domain.NodeID{"A", "B", "C", "D"}, world.Graph.ShortestPath("A", "D"))
}

func TestLoadWorldFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	payload := `{
	  "graph": {"X": {"Y": 2}, "Y": {"X": 2}},
	  "locations": {"X": {"lat": 1, "lng": 2}, "Y": {"lat": 3, "lng": 4}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	world, err := config.LoadWorld(path)
	require.NoError(t, err)
	require.True(t, world.Graph.Contains("X"))

	node, ok := world.Locator.Resolve(domain.Coordinate{Lat: 3, Lng: 4})
	require.True(t, ok)
	require.Equal(t, domain.NodeID("Y"), node)
}

func TestParseWorldRejectsBadGraph(t *testing.T) {
	_, err := config.ParseWorld([]byte(`{"graph": {"A": {"Missing": 1}}, "locations": {}}`))
	require.Error(t, err)

	_, err = config.ParseWorld([]byte(`{not json`))
	require.ErrorContains(t, err, "parse world json")
}
