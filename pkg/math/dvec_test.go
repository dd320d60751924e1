package math

import (
	"math"
	"testing"
)

func TestVec3dNormalize(t *testing.T) {
	v := Vec3d{3, 0, 4}.Normalize()
	if math.Abs(v.Length()-1) > 1e-12 {
		t.Errorf("normalized length: got %f, want 1", v.Length())
	}
	if math.Abs(v.X-0.6) > 1e-12 || math.Abs(v.Z-0.8) > 1e-12 {
		t.Errorf("normalize: got %+v", v)
	}
}

func TestVec3dToEquatorial(t *testing.T) {
	// A point on the positive Y axis is at latitude pi/2.
	lng, lat, rad := (Vec3d{0, 2, 0}).ToEquatorial()
	if math.Abs(lat-math.Pi/2) > 1e-12 {
		t.Errorf("lat: got %f, want %f", lat, math.Pi/2)
	}
	if math.Abs(rad-2) > 1e-12 {
		t.Errorf("rad: got %f, want 2", rad)
	}
	_ = lng

	// Equatorial point along +Z is at longitude pi/2.
	lng, lat, _ = (Vec3d{0, 0, 1}).ToEquatorial()
	if math.Abs(lng-math.Pi/2) > 1e-12 || math.Abs(lat) > 1e-12 {
		t.Errorf("equator +Z: got lng=%f lat=%f", lng, lat)
	}
}

func TestMat3dTMulVec(t *testing.T) {
	// Rotation by 90 degrees around Y; transpose should rotate back.
	m := Mat3d{
		0, 0, 1,
		0, 1, 0,
		-1, 0, 0,
	}
	v := Vec3d{1, 0, 0}
	r := m.MulVec(v)
	back := m.TMulVec(r)
	if math.Abs(back.X-1) > 1e-12 || math.Abs(back.Y) > 1e-12 || math.Abs(back.Z) > 1e-12 {
		t.Errorf("TMulVec should invert MulVec for rotations: got %+v", back)
	}
}

func TestFrustumSphereVisible(t *testing.T) {
	proj := Perspective(float32(math.Pi/3), 1.0, 0.1, 100)
	view := LookAt(Vec3{0, 0, 10}, Vec3{0, 0, 0}, Vec3{0, 1, 0})
	f := FrustumFromMatrix(proj.Mul(view))

	if !f.SphereVisible(Vec3{0, 0, 0}, 1) {
		t.Error("sphere at look-at centre should be visible")
	}
	if f.SphereVisible(Vec3{0, 0, 200}, 1) {
		t.Error("sphere behind the camera should not be visible")
	}
	if f.SphereVisible(Vec3{500, 0, 0}, 1) {
		t.Error("sphere far off-axis should not be visible")
	}
	if !f.SphereVisible(Vec3{0, 0, -120}, 50) {
		t.Error("large sphere straddling the far plane should be visible")
	}
}
