package math

import "math"

// Mat4 is a 4x4 transform in column-major order, laid out the way
// OpenGL consumes it: the element at row r, column c lives at index
// c*4 + r, and the translation occupies indices 12..14.
type Mat4 [16]float32

// Identity returns the identity transform.
func Identity() Mat4 {
	var m Mat4
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// Translate returns a transform moving points by (x, y, z).
func Translate(x, y, z float32) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

// Scale returns a transform scaling each axis independently.
func Scale(x, y, z float32) Mat4 {
	var m Mat4
	m[0], m[5], m[10], m[15] = x, y, z, 1
	return m
}

// RotateX returns a rotation of angle radians about the X axis.
func RotateX(angle float32) Mat4 {
	s, c := sincos(angle)
	m := Identity()
	m[5], m[6] = c, s
	m[9], m[10] = -s, c
	return m
}

// RotateY returns a rotation of angle radians about the Y axis.
func RotateY(angle float32) Mat4 {
	s, c := sincos(angle)
	m := Identity()
	m[0], m[2] = c, -s
	m[8], m[10] = s, c
	return m
}

func sincos(angle float32) (s, c float32) {
	sd, cd := math.Sincos(float64(angle))
	return float32(sd), float32(cd)
}

// Perspective returns a right-handed perspective projection for a
// vertical field of view in radians, mapping depth into [-1, 1].
func Perspective(fovY, aspect, near, far float32) Mat4 {
	t := float32(math.Tan(float64(fovY) * 0.5))
	depth := near - far
	var m Mat4
	m[0] = 1 / (t * aspect)
	m[5] = 1 / t
	m[10] = (far + near) / depth
	m[11] = -1
	m[14] = 2 * far * near / depth
	return m
}

// LookAt returns a view matrix for a camera at eye facing target.
func LookAt(eye, target, up Vec3) Mat4 {
	fwd := target.Sub(eye).Normalize()
	right := fwd.Cross(up).Normalize()
	top := right.Cross(fwd)

	var m Mat4
	m[0], m[4], m[8] = right.X, right.Y, right.Z
	m[1], m[5], m[9] = top.X, top.Y, top.Z
	m[2], m[6], m[10] = -fwd.X, -fwd.Y, -fwd.Z
	m[12] = -right.Dot(eye)
	m[13] = -top.Dot(eye)
	m[14] = fwd.Dot(eye)
	m[15] = 1
	return m
}

// Mul returns the composition m * n, with n applied first.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 16; c += 4 {
		x, y, z, w := n[c], n[c+1], n[c+2], n[c+3]
		out[c+0] = m[0]*x + m[4]*y + m[8]*z + m[12]*w
		out[c+1] = m[1]*x + m[5]*y + m[9]*z + m[13]*w
		out[c+2] = m[2]*x + m[6]*y + m[10]*z + m[14]*w
		out[c+3] = m[3]*x + m[7]*y + m[11]*z + m[15]*w
	}
	return out
}

// TransformVec3 applies the transform to a point, performing the
// perspective divide when the matrix carries one.
func (m Mat4) TransformVec3(v Vec3) Vec3 {
	x := m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]
	y := m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]
	z := m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]
	w := m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]
	if w != 0 && w != 1 {
		inv := 1 / w
		return Vec3{x * inv, y * inv, z * inv}
	}
	return Vec3{x, y, z}
}

// Ptr exposes the backing array for gl.UniformMatrix4fv.
func (m *Mat4) Ptr() *float32 {
	return &m[0]
}

// Inverse returns the inverse transform, computed by cofactor expansion
// over the 2x2 minors of the top and bottom halves of the matrix. A
// singular matrix yields the identity.
func (m Mat4) Inverse() Mat4 {
	a00, a10, a20, a30 := m[0], m[1], m[2], m[3]
	a01, a11, a21, a31 := m[4], m[5], m[6], m[7]
	a02, a12, a22, a32 := m[8], m[9], m[10], m[11]
	a03, a13, a23, a33 := m[12], m[13], m[14], m[15]

	// 2x2 minors of the top two and bottom two rows
	s0 := a00*a11 - a10*a01
	s1 := a00*a12 - a10*a02
	s2 := a00*a13 - a10*a03
	s3 := a01*a12 - a11*a02
	s4 := a01*a13 - a11*a03
	s5 := a02*a13 - a12*a03

	c5 := a22*a33 - a32*a23
	c4 := a21*a33 - a31*a23
	c3 := a21*a32 - a31*a22
	c2 := a20*a33 - a30*a23
	c1 := a20*a32 - a30*a22
	c0 := a20*a31 - a30*a21

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return Identity()
	}
	inv := 1 / det

	var out Mat4
	out[0] = (a11*c5 - a12*c4 + a13*c3) * inv
	out[4] = (-a01*c5 + a02*c4 - a03*c3) * inv
	out[8] = (a31*s5 - a32*s4 + a33*s3) * inv
	out[12] = (-a21*s5 + a22*s4 - a23*s3) * inv

	out[1] = (-a10*c5 + a12*c2 - a13*c1) * inv
	out[5] = (a00*c5 - a02*c2 + a03*c1) * inv
	out[9] = (-a30*s5 + a32*s2 - a33*s1) * inv
	out[13] = (a20*s5 - a22*s2 + a23*s1) * inv

	out[2] = (a10*c4 - a11*c2 + a13*c0) * inv
	out[6] = (-a00*c4 + a01*c2 - a03*c0) * inv
	out[10] = (a30*s4 - a31*s2 + a33*s0) * inv
	out[14] = (-a20*s4 + a21*s2 - a23*s0) * inv

	out[3] = (-a10*c3 + a11*c1 - a12*c0) * inv
	out[7] = (a00*c3 - a01*c1 + a02*c0) * inv
	out[11] = (-a30*s3 + a31*s1 - a32*s0) * inv
	out[15] = (a20*s3 - a21*s1 + a22*s0) * inv

	return out
}
