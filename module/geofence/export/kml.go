// Package export renders fences for use in other mapping tools.
package export

import (
	"fmt"
	"io"

	"github.com/twpayne/go-kml"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/geometry"
)

// circleSegments is how many points stand in for a circle's edge.
const circleSegments = 72

// WriteKML writes one polygon placemark per fence.
func WriteKML(w io.Writer, name string, fences []domain.Fence) error {
	placemarks := make([]kml.Element, 0, len(fences)+1)
	placemarks = append(placemarks, kml.Name(name))
	for _, f := range fences {
		ring, desc := outline(f)
		if ring == nil {
			continue
		}
		placemarks = append(placemarks, kml.Placemark(
			kml.Name(f.ID),
			kml.Description(desc),
			kml.Polygon(
				kml.OuterBoundaryIs(
					kml.LinearRing(kml.Coordinates(closed(ring)...)),
				),
			),
		))
	}
	return kml.KML(kml.Document(placemarks...)).WriteIndent(w, "", "  ")
}

func outline(f domain.Fence) ([]domain.GeoPoint, string) {
	switch s := f.Shape.(type) {
	case domain.Circle:
		return geometry.CircleRing(f.Center, s.RadiusMeters, circleSegments),
			fmt.Sprintf("circle, radius %.0f m", s.RadiusMeters)
	case domain.Rectangle:
		corners := geometry.RotatedRectangleCorners(f.Center, s.WidthMeters, s.HeightMeters, s.RotationDegrees)
		return corners[:],
			fmt.Sprintf("rectangle, %.0f x %.0f m, rotated %.0f°", s.WidthMeters, s.HeightMeters, s.RotationDegrees)
	}
	return nil, ""
}

// closed repeats the first point at the end, as KML rings require.
func closed(ring []domain.GeoPoint) []kml.Coordinate {
	coords := make([]kml.Coordinate, 0, len(ring)+1)
	for _, p := range ring {
		coords = append(coords, kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude})
	}
	return append(coords, coords[0])
}
