package domain

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidFence = errors.New("invalid fence")

type ShapeKind string

const (
	ShapeCircle    ShapeKind = "circle"
	ShapeRectangle ShapeKind = "square"
)

// Shape is either Circle or Rectangle.
type Shape interface {
	Kind() ShapeKind
	Validate() error
	isShape()
}

type Circle struct {
	RadiusMeters float64
}

func (Circle) Kind() ShapeKind { return ShapeCircle }
func (Circle) isShape()        {}

func (c Circle) Validate() error {
	if !(c.RadiusMeters > 0) {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidFence)
	}
	return nil
}

type Rectangle struct {
	WidthMeters     float64
	HeightMeters    float64
	RotationDegrees float64
}

func (Rectangle) Kind() ShapeKind { return ShapeRectangle }
func (Rectangle) isShape()        {}

func (r Rectangle) Validate() error {
	if !(r.WidthMeters > 0) {
		return fmt.Errorf("%w: width must be positive", ErrInvalidFence)
	}
	if !(r.HeightMeters > 0) {
		return fmt.Errorf("%w: height must be positive", ErrInvalidFence)
	}
	if r.RotationDegrees < 0 || r.RotationDegrees >= 360 {
		return fmt.Errorf("%w: rotation must be in [0, 360)", ErrInvalidFence)
	}
	return nil
}

type Fence struct {
	ID     string
	Center GeoPoint
	Shape  Shape
}

func (f Fence) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("%w: id required", ErrInvalidFence)
	}
	if f.Shape == nil {
		return fmt.Errorf("%w: shape required", ErrInvalidFence)
	}
	return f.Shape.Validate()
}

// FenceChanges carries a partial edit; nil fields are left untouched.
// Size fields that do not apply to the fence's shape are ignored.
type FenceChanges struct {
	Center   *GeoPoint
	Radius   *float64
	Width    *float64
	Height   *float64
	Rotation *float64
}

// Apply returns f with the changes merged in. The receiver is not modified.
func (c FenceChanges) Apply(f Fence) (Fence, error) {
	if c.Center != nil {
		f.Center = *c.Center
	}
	switch s := f.Shape.(type) {
	case Circle:
		if c.Radius != nil {
			s.RadiusMeters = *c.Radius
		}
		f.Shape = s
	case Rectangle:
		if c.Width != nil {
			s.WidthMeters = *c.Width
		}
		if c.Height != nil {
			s.HeightMeters = *c.Height
		}
		if c.Rotation != nil {
			s.RotationDegrees = NormalizeRotation(*c.Rotation)
		}
		f.Shape = s
	}
	if err := f.Validate(); err != nil {
		return Fence{}, err
	}
	return f, nil
}

// NormalizeRotation maps any angle into [0, 360).
func NormalizeRotation(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}
