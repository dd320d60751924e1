package surface

import (
	"bytes"
	"encoding/binary"
	"os"
	"sync"
	"testing"

	"github.com/Faultbox/planetview/internal/engine/device"
	"github.com/Faultbox/planetview/internal/logger"
	"github.com/Faultbox/planetview/pkg/formats"
	"github.com/Faultbox/planetview/pkg/math"
)

func TestMain(m *testing.M) {
	logger.InitQuiet("error", "")
	os.Exit(m.Run())
}

// fakeTexture is a device.Texture stand-in that records release.
type fakeTexture struct {
	id       int
	released bool
}

func (t *fakeTexture) Release() { t.released = true }

type fakeBuffer struct {
	released bool
}

func (b *fakeBuffer) Release() { b.released = true }

// fakeDevice implements device.Device for traversal and loader tests.
// All bounding spheres are visible unless a predicate is installed.
type fakeDevice struct {
	mu       sync.Mutex
	draws    []device.DrawCall
	textures int
	visible  func(center math.Vec3, radius float32) bool
}

func (d *fakeDevice) CreateVertexBuffer(vtx []device.VertexTex2) (device.VertexBuffer, error) {
	return &fakeBuffer{}, nil
}

func (d *fakeDevice) CreateIndexBuffer(idx []uint16) (device.IndexBuffer, error) {
	return &fakeBuffer{}, nil
}

func (d *fakeDevice) CreateCompressedTexture(w, h uint32, f formats.DDSFormat, payload []byte, managed bool) (device.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.textures++
	return &fakeTexture{id: d.textures}, nil
}

func (d *fakeDevice) Viewport() (int, int) { return 1280, 720 }

func (d *fakeDevice) SetCamera(viewProj math.Mat4) {}

func (d *fakeDevice) IsVisible(center math.Vec3, radius float32) bool {
	if d.visible != nil {
		return d.visible(center, radius)
	}
	return true
}

func (d *fakeDevice) DrawIndexed(call *device.DrawCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = append(d.draws, *call)
}

func (d *fakeDevice) drawCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.draws)
}

// makeDDS builds a minimal DXT1 surface blob for archive fixtures.
func makeDDS(payloadSize int) []byte {
	hdr := make([]byte, 124)
	binary.LittleEndian.PutUint32(hdr[0:], 124)
	binary.LittleEndian.PutUint32(hdr[4:], 0x00080000) // DDSD_LINEARSIZE
	binary.LittleEndian.PutUint32(hdr[8:], 16)
	binary.LittleEndian.PutUint32(hdr[12:], 16)
	binary.LittleEndian.PutUint32(hdr[16:], uint32(payloadSize))
	binary.LittleEndian.PutUint32(hdr[72:], 32)
	copy(hdr[80:84], "DXT1")

	buf := new(bytes.Buffer)
	buf.WriteString("DDS ")
	buf.Write(hdr)
	buf.Write(make([]byte, payloadSize))
	return buf.Bytes()
}

// makeArchive concatenates n identical DDS surfaces.
func makeArchive(n, payloadSize int) []byte {
	one := makeDDS(payloadSize)
	out := make([]byte, 0, n*len(one))
	for i := 0; i < n; i++ {
		out = append(out, one...)
	}
	return out
}
