package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/geometry"
)

var ranch = domain.GeoPoint{Latitude: 34.7593, Longitude: 3.5881}

// northOf moves p along its meridian by exactly meters of great-circle distance.
func northOf(p domain.GeoPoint, meters float64) domain.GeoPoint {
	return domain.GeoPoint{
		Latitude:  p.Latitude + meters/(6371000*math.Pi/180),
		Longitude: p.Longitude,
	}
}

func circle(id string, center domain.GeoPoint, radius float64) domain.Fence {
	return domain.Fence{ID: id, Center: center, Shape: domain.Circle{RadiusMeters: radius}}
}

func TestContains_CircleBoundary(t *testing.T) {
	e := NewEvaluator(ContainPolygon)
	f := circle("c1", ranch, 100)

	assert.True(t, e.Contains(f, ranch))
	assert.True(t, e.Contains(f, northOf(ranch, 99.99)))
	assert.True(t, e.Contains(f, northOf(ranch, 100)), "the edge counts as inside")
	assert.False(t, e.Contains(f, northOf(ranch, 100.01)))
}

func TestContains_RotatedRectangle(t *testing.T) {
	f := domain.Fence{
		ID:     "r1",
		Center: ranch,
		Shape:  domain.Rectangle{WidthMeters: 150, HeightMeters: 150, RotationDegrees: 45},
	}
	// outside the turned square but inside the box around its corners
	corner := geometry.Offset(ranch, 60, 60)

	assert.False(t, NewEvaluator(ContainPolygon).Contains(f, corner))
	assert.True(t, NewEvaluator(ContainBounds).Contains(f, corner))

	inside := geometry.Offset(ranch, 0, 100)
	assert.True(t, NewEvaluator(ContainPolygon).Contains(f, inside))
	assert.True(t, NewEvaluator(ContainBounds).Contains(f, inside))
}

func TestContains_AxisAlignedRectangle(t *testing.T) {
	e := NewEvaluator("")
	f := domain.Fence{ID: "r1", Center: ranch, Shape: domain.Rectangle{WidthMeters: 200, HeightMeters: 50}}

	assert.True(t, e.Contains(f, geometry.Offset(ranch, 90, 20)))
	assert.False(t, e.Contains(f, geometry.Offset(ranch, 20, 30)))
	assert.False(t, e.Contains(f, geometry.Offset(ranch, 110, 0)))
}

func TestEvaluate_NoFencesIsSafe(t *testing.T) {
	res := NewEvaluator(ContainPolygon).Evaluate(ranch, nil)
	assert.True(t, res.IsSafe)
	assert.Empty(t, res.Inside)
}

func TestEvaluate_Union(t *testing.T) {
	e := NewEvaluator(ContainPolygon)
	east := geometry.Offset(ranch, 500, 0)
	fences := []domain.Fence{
		circle("home", ranch, 100),
		circle("pasture", east, 100),
		circle("overlap", ranch, 300),
	}

	res := e.Evaluate(ranch, fences)
	assert.True(t, res.IsSafe)
	assert.Equal(t, []string{"home", "overlap"}, res.Inside)

	res = e.Evaluate(east, fences)
	assert.True(t, res.IsSafe)
	assert.Equal(t, []string{"pasture"}, res.Inside)

	res = e.Evaluate(geometry.Offset(ranch, -1000, 0), fences)
	assert.False(t, res.IsSafe)
	assert.Empty(t, res.Inside)
}

func TestParseRectangleContainment(t *testing.T) {
	m, err := ParseRectangleContainment("")
	require.NoError(t, err)
	assert.Equal(t, ContainPolygon, m)

	m, err = ParseRectangleContainment("bounds")
	require.NoError(t, err)
	assert.Equal(t, ContainBounds, m)

	_, err = ParseRectangleContainment("hull")
	assert.Error(t, err)
}
