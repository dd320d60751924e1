// Package camera provides the planet orbit camera for the viewer.
package camera

import (
	gomath "math"

	"github.com/Faultbox/planetview/pkg/math"
)

// OrbitCamera orbits the planet centre. Distances are measured in
// planet radii so zoom limits hold for any body.
type OrbitCamera struct {
	// Spherical coordinates around the planet centre.
	Distance  float64 // distance from the centre, planet radii
	Longitude float64 // radians
	Latitude  float64 // radians

	// Constraints.
	MinDistance float64
	MaxDistance float64
	MaxLatitude float64

	// Sensitivity.
	DragSensitivity float64
	ZoomSensitivity float64
}

// New creates an orbit camera at a comfortable starting altitude.
func New() *OrbitCamera {
	return &OrbitCamera{
		Distance:        4.0,
		Longitude:       0,
		Latitude:        0.4,
		MinDistance:     1.002,
		MaxDistance:     50.0,
		MaxLatitude:     1.55,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in planet-local coordinates,
// units of planet radii.
func (c *OrbitCamera) Position() math.Vec3d {
	clat := gomath.Cos(c.Latitude)
	return math.Vec3d{
		X: c.Distance * clat * gomath.Cos(c.Longitude),
		Y: c.Distance * gomath.Sin(c.Latitude),
		Z: c.Distance * clat * gomath.Sin(c.Longitude),
	}
}

// ViewMatrix returns the view matrix looking at the planet centre.
func (c *OrbitCamera) ViewMatrix(radius float64) math.Mat4 {
	pos := c.Position().Scale(radius)
	eye := math.Vec3{X: float32(pos.X), Y: float32(pos.Y), Z: float32(pos.Z)}
	return math.LookAt(eye, math.Vec3{}, math.Vec3{Y: 1})
}

// HandleDrag updates the orbit angles from a mouse drag delta. Drag
// slows down near the surface so close-range control stays usable.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float64) {
	speed := c.DragSensitivity * gomath.Min(1.0, c.Distance-1.0)
	c.Longitude += deltaX * speed
	c.Latitude += deltaY * speed

	if c.Latitude > c.MaxLatitude {
		c.Latitude = c.MaxLatitude
	}
	if c.Latitude < -c.MaxLatitude {
		c.Latitude = -c.MaxLatitude
	}
}

// HandleZoom updates the distance from a scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float64) {
	c.Distance -= delta * (c.Distance - 1.0) * c.ZoomSensitivity
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.Distance > c.MaxDistance {
		c.Distance = c.MaxDistance
	}
}
