package service

import (
	"fmt"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/geometry"
)

// boundaryToleranceMeters keeps points exactly on a circle's edge inside
// despite rounding in the distance computation.
const boundaryToleranceMeters = 1e-6

type RectangleContainment string

const (
	// ContainPolygon tests the rotated rectangle itself.
	ContainPolygon RectangleContainment = "polygon"
	// ContainBounds tests the axis-aligned box around the rotated corners,
	// which is how the mobile app has always drawn its safe zone.
	ContainBounds RectangleContainment = "bounds"
)

func ParseRectangleContainment(v string) (RectangleContainment, error) {
	switch RectangleContainment(v) {
	case "", ContainPolygon:
		return ContainPolygon, nil
	case ContainBounds:
		return ContainBounds, nil
	}
	return "", fmt.Errorf("unknown rectangle containment %q", v)
}

type Result struct {
	IsSafe bool
	// Inside lists the ids of every fence containing the point.
	Inside []string
}

type Evaluator struct {
	rect RectangleContainment
}

func NewEvaluator(rect RectangleContainment) *Evaluator {
	if rect == "" {
		rect = ContainPolygon
	}
	return &Evaluator{rect: rect}
}

func (e *Evaluator) Contains(f domain.Fence, p domain.GeoPoint) bool {
	switch s := f.Shape.(type) {
	case domain.Circle:
		return geometry.HaversineDistanceMeters(f.Center, p) <= s.RadiusMeters+boundaryToleranceMeters
	case domain.Rectangle:
		corners := geometry.RotatedRectangleCorners(f.Center, s.WidthMeters, s.HeightMeters, s.RotationDegrees)
		if e.rect == ContainBounds {
			return geometry.PointInBounds(p, corners[:])
		}
		return geometry.PointInPolygon(p, corners[:])
	}
	return false
}

// Evaluate reports whether p is inside at least one fence. With no fences
// defined nothing is restricted and every point is safe.
func (e *Evaluator) Evaluate(p domain.GeoPoint, fences []domain.Fence) Result {
	if len(fences) == 0 {
		return Result{IsSafe: true}
	}
	var res Result
	for _, f := range fences {
		if e.Contains(f, p) {
			res.Inside = append(res.Inside, f.ID)
		}
	}
	res.IsSafe = len(res.Inside) > 0
	return res
}
