package geo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/ridedispatch/internal/dispatch/domain"
	"github.com/example/ridedispatch/internal/geo"
)

var (
	paris    = domain.Coordinate{Lat: 48.8566, Lng: 2.3522}
	newYork  = domain.Coordinate{Lat: 40.7128, Lng: -74.0060}
	london   = domain.Coordinate{Lat: 51.5074, Lng: -0.1278}
	berlin   = domain.Coordinate{Lat: 52.5200, Lng: 13.4050}
	southPol = domain.Coordinate{Lat: -90, Lng: 0}
)

func TestDistanceKnownPairs(t *testing.T) {
	// Reference values computed with R = 6371 km.
	require.InDelta(t, 5837.2, geo.DistanceKm(paris, newYork), 5.0)
	require.InDelta(t, 343.6, geo.DistanceKm(paris, london), 2.0)
	require.InDelta(t, 931.6, geo.DistanceKm(london, berlin), 5.0)
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]domain.Coordinate{
		{paris, newYork},
		{london, berlin},
		{southPol, paris},
		{{Lat: 0.0001, Lng: 0.0001}, {Lat: -0.0001, Lng: -0.0001}},
	}
	for _, pair := range pairs {
		ab := geo.DistanceKm(pair[0], pair[1])
		ba := geo.DistanceKm(pair[1], pair[0])
		require.InEpsilon(t, ab, ba, 1e-9)
	}
}

func TestDistanceSamePointIsZero(t *testing.T) {
	for _, c := range []domain.Coordinate{paris, newYork, southPol, {}} {
		require.InDelta(t, 0, geo.DistanceKm(c, c), 1e-9)
	}
}

func TestDistanceNonNegative(t *testing.T) {
	require.GreaterOrEqual(t, geo.DistanceKm(southPol, domain.Coordinate{Lat: 90, Lng: 180}), 0.0)
}
