package camera

import (
	gomath "math"
	"testing"
)

func TestPositionOnOrbit(t *testing.T) {
	c := New()
	c.Distance = 2
	c.Latitude = 0
	c.Longitude = 0

	p := c.Position()
	if gomath.Abs(p.X-2) > 1e-12 || gomath.Abs(p.Y) > 1e-12 || gomath.Abs(p.Z) > 1e-12 {
		t.Errorf("position: got %+v, want (2,0,0)", p)
	}
	if gomath.Abs(p.Length()-c.Distance) > 1e-12 {
		t.Errorf("distance: got %f, want %f", p.Length(), c.Distance)
	}
}

func TestZoomClamped(t *testing.T) {
	c := New()
	for i := 0; i < 200; i++ {
		c.HandleZoom(1)
	}
	if c.Distance < c.MinDistance {
		t.Errorf("distance %f below minimum %f", c.Distance, c.MinDistance)
	}
	for i := 0; i < 200; i++ {
		c.HandleZoom(-1)
	}
	if c.Distance > c.MaxDistance {
		t.Errorf("distance %f above maximum %f", c.Distance, c.MaxDistance)
	}
}

func TestDragClampsLatitude(t *testing.T) {
	c := New()
	for i := 0; i < 2000; i++ {
		c.HandleDrag(0, 1)
	}
	if c.Latitude > c.MaxLatitude {
		t.Errorf("latitude %f beyond limit %f", c.Latitude, c.MaxLatitude)
	}
}
