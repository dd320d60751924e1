package math

import "math"

// Vec3d is a 3D vector in float64, used where single precision would
// accumulate visible rounding errors (camera directions, tile centres,
// origin-shifted translations).
type Vec3d struct {
	X, Y, Z float64
}

// Add returns v + other.
func (v Vec3d) Add(other Vec3d) Vec3d {
	return Vec3d{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3d) Sub(other Vec3d) Vec3d {
	return Vec3d{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Scale returns v * scalar.
func (v Vec3d) Scale(s float64) Vec3d {
	return Vec3d{v.X * s, v.Y * s, v.Z * s}
}

// Neg returns -v.
func (v Vec3d) Neg() Vec3d {
	return Vec3d{-v.X, -v.Y, -v.Z}
}

// Dot returns the dot product.
func (v Vec3d) Dot(other Vec3d) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product.
func (v Vec3d) Cross(other Vec3d) Vec3d {
	return Vec3d{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

// Length returns the magnitude.
func (v Vec3d) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns a unit vector.
func (v Vec3d) Normalize() Vec3d {
	l := v.Length()
	if l == 0 {
		return Vec3d{}
	}
	return Vec3d{v.X / l, v.Y / l, v.Z / l}
}

// Vec3 converts to single precision.
func (v Vec3d) Vec3() Vec3 {
	return Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// ToEquatorial converts a direction in planet-local cartesian coordinates
// to equatorial longitude, latitude and radial distance.
func (v Vec3d) ToEquatorial() (lng, lat, rad float64) {
	rad = v.Length()
	if rad == 0 {
		return 0, 0, 0
	}
	lat = math.Asin(v.Y / rad)
	lng = math.Atan2(v.Z, v.X)
	return lng, lat, rad
}

// Mat3d is a row-major 3x3 matrix in float64.
// Layout: [m11 m12 m13; m21 m22 m23; m31 m32 m33].
type Mat3d [9]float64

// IdentityMat3d returns an identity matrix.
func IdentityMat3d() Mat3d {
	return Mat3d{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Scale returns m with every element multiplied by s.
func (m Mat3d) Scale(s float64) Mat3d {
	var r Mat3d
	for i := range m {
		r[i] = m[i] * s
	}
	return r
}

// MulVec returns m * v.
func (m Mat3d) MulVec(v Vec3d) Vec3d {
	return Vec3d{
		m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// TMulVec returns transpose(m) * v.
func (m Mat3d) TMulVec(v Vec3d) Vec3d {
	return Vec3d{
		m[0]*v.X + m[3]*v.Y + m[6]*v.Z,
		m[1]*v.X + m[4]*v.Y + m[7]*v.Z,
		m[2]*v.X + m[5]*v.Y + m[8]*v.Z,
	}
}
