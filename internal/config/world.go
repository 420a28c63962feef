// Package config loads the static routing world: the weighted graph and the
// coordinate mapping the dispatch core routes against. The world is validated
// at load time and immutable afterwards.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/example/ridedispatch/internal/dispatch/domain"
	"github.com/example/ridedispatch/internal/routing"
)

// World bundles the validated graph and its coordinate locator.
type World struct {
	Graph   *routing.Graph
	Locator *routing.Locator
}

type worldFile struct {
	Graph     map[string]map[string]float64 `json:"graph"`
	Locations map[string]struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"locations"`
}

// LoadWorld reads and validates a world definition from a JSON file.
func LoadWorld(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world file: %w", err)
	}
	return ParseWorld(data)
}

// ParseWorld validates a JSON world definition.
func ParseWorld(data []byte) (*World, error) {
	var file worldFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse world json: %w", err)
	}

	adjacency := make(map[domain.NodeID]map[domain.NodeID]float64, len(file.Graph))
	for node, edges := range file.Graph {
		row := make(map[domain.NodeID]float64, len(edges))
		for neighbor, weight := range edges {
			row[domain.NodeID(neighbor)] = weight
		}
		adjacency[domain.NodeID(node)] = row
	}
	graph, err := routing.NewGraph(adjacency)
	if err != nil {
		return nil, err
	}

	mapping := make(map[domain.NodeID]domain.Coordinate, len(file.Locations))
	for node, coord := range file.Locations {
		mapping[domain.NodeID(node)] = domain.Coordinate{Lat: coord.Lat, Lng: coord.Lng}
	}
	locator, err := routing.NewLocator(graph, mapping)
	if err != nil {
		return nil, err
	}

	return &World{Graph: graph, Locator: locator}, nil
}

// DefaultWorld returns the built-in four-node demo world used when no world
// file is configured.
func DefaultWorld() *World {
	world, err := ParseWorld([]byte(defaultWorldJSON))
	if err != nil {
		panic(fmt.Sprintf("default world invalid: %v", err))
	}
	return world
}

const defaultWorldJSON = `{
  "graph": {
    "A": {"B": 1, "C": 4},
    "B": {"A": 1, "C": 2, "D": 5},
    "C": {"A": 4, "B": 2, "D": 1},
    "D": {"B": 5, "C": 1}
  },
  "locations": {
    "A": {"lat": 48.8566, "lng": 2.3522},
    "B": {"lat": 40.7128, "lng": -74.0060},
    "C": {"lat": 51.5074, "lng": -0.1278},
    "D": {"lat": 52.5200, "lng": 13.4050}
  }
}`
