// Package device abstracts the GPU resources the surface renderer needs:
// vertex/index buffers, block-compressed 2D textures and indexed draw
// submission. The OpenGL implementation lives in gldevice.go; tests use
// lightweight fakes.
package device

import (
	"github.com/Faultbox/planetview/pkg/formats"
	"github.com/Faultbox/planetview/pkg/math"
)

// VertexTex2 is the patch mesh vertex layout: position, normal and two
// texture coordinate pairs (the second pair carries the micro-texture
// coordinates).
type VertexTex2 struct {
	X, Y, Z    float32
	NX, NY, NZ float32
	TU0, TV0   float32
	TU1, TV1   float32
}

// VertexTex2Stride is the byte size of one vertex.
const VertexTex2Stride = 10 * 4

// Texture is a GPU texture handle.
type Texture interface {
	Release()
}

// VertexBuffer is a GPU vertex buffer handle.
type VertexBuffer interface {
	Release()
}

// IndexBuffer is a GPU index buffer handle holding 16-bit indices.
type IndexBuffer interface {
	Release()
}

// DrawCall carries everything needed to submit one surface patch.
type DrawCall struct {
	VB        VertexBuffer
	IB        IndexBuffer
	FaceCount int

	World math.Mat4

	Tex  Texture // surface texture, nil = untextured
	Mask Texture // specular/lights mask, nil = none

	// Sub-rectangle of Tex to map onto the patch.
	UMin, UMax, VMin, VMax float32

	Specular    [3]float32 // specular highlight colour
	UseSpecular bool
	Ripple      bool // perturb the specular highlight for water ripple
	UseLights   bool
	SunDir      math.Vec3
	Ambient     [3]float32

	Micro      Texture // micro-texture detail layer, nil = none
	MicroLevel float32

	Fog bool
}

// Device is the GPU contract consumed by the surface renderer.
type Device interface {
	// CreateVertexBuffer uploads an immutable vertex buffer.
	CreateVertexBuffer(vtx []VertexTex2) (VertexBuffer, error)

	// CreateIndexBuffer uploads an immutable 16-bit index buffer.
	CreateIndexBuffer(idx []uint16) (IndexBuffer, error)

	// CreateCompressedTexture allocates a DXT-compressed texture and
	// uploads the top mip. Managed allocation uploads directly; default
	// pool allocation stages through a transfer buffer first.
	CreateCompressedTexture(width, height uint32, format formats.DDSFormat, payload []byte, managed bool) (Texture, error)

	// Viewport returns the current viewport dimensions in pixels.
	Viewport() (width, height int)

	// SetCamera sets the view-projection matrix used for visibility
	// queries and draw submission until the next call.
	SetCamera(viewProj math.Mat4)

	// IsVisible reports whether a bounding sphere in world space
	// intersects the current view frustum.
	IsVisible(center math.Vec3, radius float32) bool

	// DrawIndexed submits one indexed draw.
	DrawIndexed(call *DrawCall)
}
