// Package geometry holds the flat-earth and great-circle math used to test
// whether a position lies inside a fence. Everything here is pure.
package geometry

import (
	"math"

	"github.com/nandanugg/marah/module/geofence/domain"
)

const (
	earthRadiusMeters = 6371000

	// MetersPerDegreeLat is the length of one degree of latitude.
	MetersPerDegreeLat = 111320
	// EquatorCircumferenceMeters scales degrees of longitude at a latitude.
	EquatorCircumferenceMeters = 40075000
)

// HaversineDistanceMeters returns the great-circle distance between a and b.
func HaversineDistanceMeters(a, b domain.GeoPoint) float64 {
	if a == b {
		return 0
	}
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// MetersPerDegreeLng is the length of one degree of longitude at lat.
func MetersPerDegreeLng(lat float64) float64 {
	return EquatorCircumferenceMeters * math.Cos(toRad(lat)) / 360
}

// Offset moves p by east/north meters using the local flat-earth scale.
func Offset(p domain.GeoPoint, eastMeters, northMeters float64) domain.GeoPoint {
	return domain.GeoPoint{
		Latitude:  p.Latitude + northMeters/MetersPerDegreeLat,
		Longitude: p.Longitude + eastMeters/MetersPerDegreeLng(p.Latitude),
	}
}

// RotatedRectangleCorners returns the corners of a width x height rectangle
// centred on center and turned clockwise by rotationDegrees, as seen on a
// north-up map. Corners come out NW, NE, SE, SW relative to the unrotated
// rectangle, which is a closed ring suitable for PointInPolygon.
func RotatedRectangleCorners(center domain.GeoPoint, widthMeters, heightMeters, rotationDegrees float64) [4]domain.GeoPoint {
	hw, hh := widthMeters/2, heightMeters/2
	sin, cos := math.Sincos(toRad(rotationDegrees))

	offsets := [4][2]float64{
		{-hw, hh},
		{hw, hh},
		{hw, -hh},
		{-hw, -hh},
	}

	var corners [4]domain.GeoPoint
	for i, o := range offsets {
		east := o[0]*cos + o[1]*sin
		north := -o[0]*sin + o[1]*cos
		corners[i] = Offset(center, east, north)
	}
	return corners
}

// CircleRing approximates a circle with segments points, starting due north
// and going clockwise. Used for drawing only; containment uses the distance.
func CircleRing(center domain.GeoPoint, radiusMeters float64, segments int) []domain.GeoPoint {
	if segments < 3 {
		segments = 3
	}
	ring := make([]domain.GeoPoint, segments)
	for i := range ring {
		sin, cos := math.Sincos(2 * math.Pi * float64(i) / float64(segments))
		ring[i] = Offset(center, radiusMeters*sin, radiusMeters*cos)
	}
	return ring
}

// PointInPolygon reports whether p lies inside ring using ray casting.
// The ring is implicitly closed. Points on an edge may fall either way.
func PointInPolygon(p domain.GeoPoint, ring []domain.GeoPoint) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	x, y := p.Longitude, p.Latitude
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].Longitude, ring[i].Latitude
		xj, yj := ring[j].Longitude, ring[j].Latitude
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// PointInBounds reports whether p lies inside the axis-aligned bounding box
// of ring, edges included. For a rotated rectangle this accepts points in the
// corners of the box that the rectangle itself does not cover.
func PointInBounds(p domain.GeoPoint, ring []domain.GeoPoint) bool {
	if len(ring) == 0 {
		return false
	}
	minLat, maxLat := ring[0].Latitude, ring[0].Latitude
	minLng, maxLng := ring[0].Longitude, ring[0].Longitude
	for _, c := range ring[1:] {
		minLat = math.Min(minLat, c.Latitude)
		maxLat = math.Max(maxLat, c.Latitude)
		minLng = math.Min(minLng, c.Longitude)
		maxLng = math.Max(maxLng, c.Longitude)
	}
	return p.Latitude >= minLat && p.Latitude <= maxLat &&
		p.Longitude >= minLng && p.Longitude <= maxLng
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
