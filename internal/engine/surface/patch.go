package surface

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/planetview/internal/engine/device"
	"github.com/Faultbox/planetview/pkg/math"
)

// Tunable patch constants.
const (
	// SurfMaxPatchLevel is the maximum supported patch resolution level.
	SurfMaxPatchLevel = 14

	// Tex2Multiplier scales the primary UVs into the micro-texture UVs.
	Tex2Multiplier = 4.0
)

// VBMesh is one immutable patch template: GPU buffers plus the
// patch-local bounding sphere used for culling.
type VBMesh struct {
	VB    device.VertexBuffer
	IB    device.IndexBuffer
	NVtx  int
	NFace int
	BsCnt math.Vec3
	BsRad float32
}

// Release frees the mesh buffers.
func (m *VBMesh) Release() {
	if m.VB != nil {
		m.VB.Release()
		m.VB = nil
	}
	if m.IB != nil {
		m.IB.Release()
		m.IB = nil
	}
}

// PatchStore holds the patch template meshes for every (level, latitude
// band) slot up to the configured maximum level. Built once at startup;
// construction failure is fatal to the planet renderer.
type PatchStore struct {
	// TPL[level][ilat]; level 0 unused.
	TPL      [SurfMaxPatchLevel + 1][]*VBMesh
	maxLevel int
}

// nlng8 and res8 parameterise the level-8 latitude bands; higher levels
// double them per level.
var (
	nlng8 = [8]int{32, 32, 30, 28, 24, 18, 12, 6}
	res8  = [8]int{15, 15, 16, 12, 12, 12, 12, 12}
)

// NewPatchStore builds all patch templates on the device.
func NewPatchStore(dev device.Device, maxLevel int) (*PatchStore, error) {
	if maxLevel < 1 {
		maxLevel = 1
	}
	if maxLevel > SurfMaxPatchLevel {
		maxLevel = SurfMaxPatchLevel
	}
	s := &PatchStore{maxLevel: maxLevel}

	type sphereSpec struct {
		level  int
		nrings int
		texres int
	}
	// Levels 1-3 are full-sphere meshes of increasing resolution.
	for _, sp := range []sphereSpec{{1, 6, 64}, {2, 8, 128}, {3, 12, 256}} {
		if sp.level > maxLevel {
			break
		}
		m, err := createSphereMesh(dev, sp.nrings, false, 0, sp.texres)
		if err != nil {
			return nil, s.fail(err)
		}
		s.TPL[sp.level] = []*VBMesh{m}
	}

	// Level 4 splits the sphere into two longitude halves.
	if maxLevel >= 4 {
		for half := 0; half < 2; half++ {
			m, err := createSphereMesh(dev, 16, true, half, 256)
			if err != nil {
				return nil, s.fail(err)
			}
			s.TPL[4] = append(s.TPL[4], m)
		}
	}

	type patchSpec struct {
		nlng, nlat, ilat, res, bseg int
		reduce                      bool
	}
	bands := map[int][]patchSpec{
		5: {{4, 1, 0, 18, -1, true}},
		6: {{8, 2, 0, 10, 16, true}, {4, 2, 1, 12, -1, true}},
		7: {
			{16, 4, 0, 12, 12, false}, {16, 4, 1, 12, 12, false},
			{12, 4, 2, 10, 16, true}, {6, 4, 3, 12, -1, true},
		},
		8: {
			{32, 8, 0, 12, 15, false}, {32, 8, 1, 12, 15, false},
			{30, 8, 2, 12, 16, false}, {28, 8, 3, 12, 12, false},
			{24, 8, 4, 12, 12, false}, {18, 8, 5, 12, 12, false},
			{12, 8, 6, 10, 16, true}, {6, 8, 7, 12, -1, true},
		},
	}
	for lvl := 5; lvl <= 8 && lvl <= maxLevel; lvl++ {
		for _, p := range bands[lvl] {
			m, err := createPatchMesh(dev, p.nlng, p.nlat, p.ilat, p.res, p.bseg, p.reduce, true, false)
			if err != nil {
				return nil, s.fail(err)
			}
			s.TPL[lvl] = append(s.TPL[lvl], m)
		}
	}

	// Levels 9 and beyond double the level-8 latitude bands, with vertex
	// positions stored relative to the tile corner (shifted origin).
	mult := 2
	for lvl := 9; lvl <= maxLevel; lvl++ {
		nlat := 8 * mult
		for i := 0; i < 8; i++ {
			for j := 0; j < mult; j++ {
				ilat := i*mult + j
				m, err := createPatchMesh(dev, nlng8[i]*mult, nlat, ilat, 12, res8[i], false, true, true)
				if err != nil {
					return nil, s.fail(err)
				}
				s.TPL[lvl] = append(s.TPL[lvl], m)
			}
		}
		mult *= 2
	}

	return s, nil
}

func (s *PatchStore) fail(err error) error {
	s.Release()
	return fmt.Errorf("building patch templates: %w", err)
}

// Release frees every template mesh.
func (s *PatchStore) Release() {
	for lvl := range s.TPL {
		for _, m := range s.TPL[lvl] {
			if m != nil {
				m.Release()
			}
		}
		s.TPL[lvl] = nil
	}
}

// MaxLevel returns the highest level templates were built for.
func (s *PatchStore) MaxLevel() int {
	return s.maxLevel
}

func createSphereMesh(dev device.Device, nrings int, hemisphere bool, whichHalf, texres int) (*VBMesh, error) {
	vtx, idx := CreateSphere(nrings, hemisphere, whichHalf, texres)
	return uploadMesh(dev, vtx, idx, false)
}

func createPatchMesh(dev device.Device, nlng, nlat, ilat, res, bseg int, reduce, outside, shiftOrigin bool) (*VBMesh, error) {
	vtx, idx := CreateSpherePatch(nlng, nlat, ilat, res, bseg, reduce, outside, shiftOrigin)
	return uploadMesh(dev, vtx, idx, true)
}

func uploadMesh(dev device.Device, vtx []device.VertexTex2, idx []uint16, withBounds bool) (*VBMesh, error) {
	vb, err := dev.CreateVertexBuffer(vtx)
	if err != nil {
		return nil, err
	}
	ib, err := dev.CreateIndexBuffer(idx)
	if err != nil {
		vb.Release()
		return nil, err
	}
	m := &VBMesh{
		VB:    vb,
		IB:    ib,
		NVtx:  len(vtx),
		NFace: len(idx) / 3,
	}
	if withBounds {
		m.BsCnt, m.BsRad = boundingSphere(vtx)
	}
	return m, nil
}

// boundingSphere computes a mesh-local bounding sphere: centre at the
// vertex centroid, radius covering the farthest vertex.
func boundingSphere(vtx []device.VertexTex2) (math.Vec3, float32) {
	if len(vtx) == 0 {
		return math.Vec3{}, 0
	}
	var cx, cy, cz float64
	for i := range vtx {
		cx += float64(vtx[i].X)
		cy += float64(vtx[i].Y)
		cz += float64(vtx[i].Z)
	}
	n := float64(len(vtx))
	cnt := math.Vec3{X: float32(cx / n), Y: float32(cy / n), Z: float32(cz / n)}
	var rad float32
	for i := range vtx {
		d := math.Vec3{X: vtx[i].X, Y: vtx[i].Y, Z: vtx[i].Z}.Sub(cnt).Length()
		if d > rad {
			rad = d
		}
	}
	return cnt, rad
}

// CreateSphere generates a unit sphere mesh of resolution nrings. With
// hemisphere set, only half the longitude range is covered; whichHalf
// selects which half. texres is the texture resolution used to inset the
// U coordinates by half a texel against wrap seams.
func CreateSphere(nrings int, hemisphere bool, whichHalf, texres int) ([]device.VertexTex2, []uint16) {
	x1 := nrings * 2
	if hemisphere {
		x1 = nrings
	}
	x2 := x1 + 1

	nVtx := nrings*x2 + 2
	nIdx := 12 * nrings * nrings
	if hemisphere {
		nIdx = 6 * nrings * nrings
	}
	vtx := make([]device.VertexTex2, 0, nVtx)
	idx := make([]uint16, 0, nIdx)

	dAng := gomath.Pi / float64(nrings)
	du := 0.5 / float64(texres)
	a := (1.0 - 2.0*du) / float64(x1)

	angY := dAng
	for y := 0; y < nrings; y++ {
		y0 := gomath.Cos(angY)
		r0 := gomath.Sin(angY)
		tv := float32(angY / gomath.Pi)

		for x := 0; x < x2; x++ {
			angX := float64(x)*dAng - gomath.Pi // wrap at +-180 degrees
			if hemisphere && whichHalf != 0 {
				angX += gomath.Pi
			}
			px := float32(r0 * gomath.Cos(angX))
			py := float32(y0)
			pz := float32(r0 * gomath.Sin(angX))
			tu := float32(a*float64(x) + du)
			vtx = append(vtx, device.VertexTex2{
				X: px, Y: py, Z: pz,
				NX: px, NY: py, NZ: pz,
				TU0: tu, TV0: tv,
				TU1: tu, TV1: tv,
			})
		}
		angY += dAng
	}

	for y := 0; y < nrings-1; y++ {
		for x := 0; x < x1; x++ {
			idx = append(idx,
				uint16((y+0)*x2+(x+0)),
				uint16((y+0)*x2+(x+1)),
				uint16((y+1)*x2+(x+0)),
				uint16((y+0)*x2+(x+1)),
				uint16((y+1)*x2+(x+1)),
				uint16((y+1)*x2+(x+0)),
			)
		}
	}

	// Pole caps.
	northVtx := uint16(len(vtx))
	vtx = append(vtx, device.VertexTex2{Y: 1, NY: 1, TU0: 0.5, TV0: 0, TU1: 0.5, TV1: 0})
	southVtx := uint16(len(vtx))
	vtx = append(vtx, device.VertexTex2{Y: -1, NY: -1, TU0: 0.5, TV0: 1, TU1: 0.5, TV1: 1})

	lastRow := nrings - 1
	for x := 0; x < x1; x++ {
		idx = append(idx, southVtx, uint16(lastRow*x2+x+1), uint16(lastRow*x2+x))
	}
	for x := 0; x < x1; x++ {
		idx = append(idx, northVtx, uint16(x+1), uint16(x))
	}

	return vtx, idx
}

// CreateSpherePatch generates one latitude-band patch of a unit sphere:
// band ilat of nlat bands covering one of nlng longitude segments, with
// res latitudinal subdivisions and bseg longitudinal segments (bseg < 0
// and the polar band derive bseg from the band count). reduce collapses
// segments towards the upper edge, outside selects the winding, and
// shiftOrigin stores positions relative to the lower-left tile corner to
// keep high-level patches numerically small.
func CreateSpherePatch(nlng, nlat, ilat, res, bseg int, reduce, outside, shiftOrigin bool) ([]device.VertexTex2, []uint16) {
	minlat := gomath.Pi * 0.5 * float64(ilat) / float64(nlat)
	maxlat := gomath.Pi * 0.5 * float64(ilat+1) / float64(nlat)
	minlng := 0.0
	maxlng := gomath.Pi * 2.0 / float64(nlng)
	if bseg < 0 || ilat == nlat-1 {
		bseg = (nlat - ilat) * res
	}

	nVtx := (bseg + 1) * (res + 1)
	if reduce {
		nVtx -= ((res + 1) * res) / 2
	}
	vtx := make([]device.VertexTex2, 0, nVtx)

	var dx, dy float32
	if shiftOrigin {
		dx = float32(gomath.Cos(minlat))
		dy = float32(gomath.Sin(minlat))
	}

	for i := 0; i <= res; i++ {
		lat := minlat + (maxlat-minlat)*float64(i)/float64(res)
		slat, clat := gomath.Sin(lat), gomath.Cos(lat)
		nseg := bseg
		if reduce {
			nseg = bseg - i
		}
		for j := 0; j <= nseg; j++ {
			lng := 0.0
			if nseg > 0 {
				lng = minlng + (maxlng-minlng)*float64(j)/float64(nseg)
			}
			slng, clng := gomath.Sin(lng), gomath.Cos(lng)
			px := float32(clat * clng)
			py := float32(slat)
			pz := float32(clat * slng)

			var tu, tv float32
			if nseg > 0 {
				tu = float32(j) / float32(nseg)
			} else {
				tu = 0.5
			}
			tv = float32(res-i) / float32(res)
			tu1 := tu * Tex2Multiplier
			if nseg == 0 {
				tu1 = 0.5
			}

			v := device.VertexTex2{
				X: px, Y: py, Z: pz,
				NX: px, NY: py, NZ: pz,
				TU0: tu, TV0: tv,
				TU1: tu1, TV1: tv * Tex2Multiplier,
			}
			if shiftOrigin {
				v.X -= dx
				v.Y -= dy
			}
			if !outside {
				v.NX, v.NY, v.NZ = -v.NX, -v.NY, -v.NZ
			}
			vtx = append(vtx, v)
		}
	}

	nIdx := 2 * res * bseg * 3
	if reduce {
		nIdx = res * (2*bseg - res) * 3
	}
	idx := make([]uint16, 0, nIdx)

	nofs0 := 0
	for i := 0; i < res; i++ {
		nseg := bseg
		if reduce {
			nseg = bseg - i
		}
		nofs1 := nofs0 + nseg + 1
		for j := 0; j < nseg; j++ {
			idx = append(idx, uint16(nofs0+j), uint16(nofs1+j), uint16(nofs0+j+1))
			if reduce && j == nseg-1 {
				break
			}
			idx = append(idx, uint16(nofs0+j+1), uint16(nofs1+j), uint16(nofs1+j+1))
		}
		nofs0 = nofs1
	}
	if !outside {
		for i := 0; i+2 < len(idx); i += 3 {
			idx[i+1], idx[i+2] = idx[i+2], idx[i+1]
		}
	}

	return vtx, idx
}
