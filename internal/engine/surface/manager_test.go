package surface

import (
	"bytes"
	"encoding/binary"
	gomath "math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/planetview/pkg/formats"
	"github.com/Faultbox/planetview/pkg/math"
)

// writeBaseArchive writes a <planet>.tex archive with count surfaces.
func writeBaseArchive(t *testing.T, root, name string, count int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name+".tex"), makeArchive(count, 256), 0644); err != nil {
		t.Fatal(err)
	}
}

// writeOldLmask writes a pre-v1.00 light mask covering minres..maxres.
func writeOldLmask(t *testing.T, root, name string, minres, maxres uint8, flags []byte) {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.WriteByte(minres)
	buf.WriteByte(maxres)
	buf.Write(flags)
	if err := os.WriteFile(filepath.Join(root, name+"_lmask.bin"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

// writeTOC writes a versioned tile TOC file.
func writeTOCFile(t *testing.T, root, name string, recs []formats.TileRecord) {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.WriteString("PLTS")
	binary.Write(buf, binary.LittleEndian, uint32(1))
	binary.Write(buf, binary.LittleEndian, uint32(len(recs)))
	for _, r := range recs {
		binary.Write(buf, binary.LittleEndian, r.SIdx)
		binary.Write(buf, binary.LittleEndian, r.MIdx)
		binary.Write(buf, binary.LittleEndian, r.Flags)
		binary.Write(buf, binary.LittleEndian, uint16(0))
		for _, s := range r.SubIdx {
			binary.Write(buf, binary.LittleEndian, s)
		}
	}
	if err := os.WriteFile(filepath.Join(root, name+"_tile.bin"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestRenderer(t *testing.T, dev *fakeDevice, root string, opts Options) *Renderer {
	t.Helper()
	opts.TextureRoot = root
	if opts.LoadFrequency == 0 {
		opts.LoadFrequency = 100
	}
	r, err := NewRenderer(dev, opts)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	r.tilebuf.HoldThread(true)
	t.Cleanup(r.Release)
	return r
}

// cameraEnv builds the world matrix and frame environment for a camera
// at cdist planet radii above longitude 180, latitude 0.
func cameraEnv(cdist float64) (math.Mat4, FrameEnv) {
	wmat := math.Translate(0, 0, -float32(cdist))
	env := FrameEnv{
		GRot: math.IdentityMat3d(),
		CPos: math.Vec3d{Z: -cdist},
		GPos: math.Vec3d{X: 1.5e11},
	}
	return wmat, env
}

func TestLowResSphereSingleDraw(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[3])

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 3})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	wmat, env := cameraEnv(10)
	tm.Render(wmat, 1, 3, 0, false, env)

	if dev.drawCount() != 1 {
		t.Errorf("level 3 must issue exactly one draw, got %d", dev.drawCount())
	}
	st := tm.Stats()
	if st.Tiles[3] != 1 {
		t.Errorf("stats tiles[3]: got %d, want 1", st.Tiles[3])
	}
}

func TestMissingLmaskDegrades(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 8, Reflect: true, Lights: true})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	if tm.nmask != 0 {
		t.Errorf("nmask: got %d, want 0", tm.nmask)
	}
	for i := 0; i < patchidx[8]; i++ {
		if tm.tiledesc[i].Flag != FlagOpaque {
			t.Fatalf("base tile %d flag: got %#x, want %#x", i, tm.tiledesc[i].Flag, FlagOpaque)
		}
	}

	// rendering still succeeds
	wmat, env := cameraEnv(10)
	tm.Render(wmat, 1, 8, 0, false, env)
	if dev.drawCount() == 0 {
		t.Error("render issued no draws")
	}
}

func TestOldStyleLmaskFlags(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])

	flags := make([]byte, patchidx[8])
	nmask := 0
	for i := range flags {
		flags[i] = byte(i%7) | FlagOpaque
		f := flags[i]
		if f&(FlagOpaque|FlagSpecular) == (FlagOpaque|FlagSpecular) || f&FlagLights != 0 {
			nmask++
		}
	}
	writeOldLmask(t, root, "Earth", 1, 8, flags)

	// The base mask archive must cover every masked tile, or the manager
	// reverts all flags to opaque.
	if err := os.WriteFile(filepath.Join(root, "Earth_lmask.tex"), makeArchive(nmask, 256), 0644); err != nil {
		t.Fatal(err)
	}

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 8, Reflect: true, Lights: true})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	if tm.nmask != nmask {
		t.Errorf("nmask: got %d, want %d", tm.nmask, nmask)
	}

	// The in-memory flag of base tile i equals the i-th byte of the file.
	for i := 0; i < patchidx[8]; i++ {
		if tm.tiledesc[i].Flag != flags[i] {
			t.Fatalf("tile %d flag: got %#x, want %#x", i, tm.tiledesc[i].Flag, flags[i])
		}
	}

	// Masked tiles received their mask textures in file order.
	for i, n := 0, 0; i < patchidx[8]; i++ {
		f := tm.tiledesc[i].Flag
		masked := f&(FlagOpaque|FlagSpecular) == (FlagOpaque|FlagSpecular) || f&FlagLights != 0
		if masked {
			if !tm.tiledesc[i].LTex.IsLoaded() {
				t.Fatalf("masked tile %d has no mask texture", i)
			}
			n++
		}
	}
}

func TestShortMaskArchiveDisablesSpecular(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])

	flags := make([]byte, patchidx[8])
	for i := range flags {
		flags[i] = FlagOpaque | FlagSpecular
	}
	writeOldLmask(t, root, "Earth", 1, 8, flags)

	// Far fewer mask textures than masked tiles.
	if err := os.WriteFile(filepath.Join(root, "Earth_lmask.tex"), makeArchive(10, 256), 0644); err != nil {
		t.Fatal(err)
	}

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 8, Reflect: true})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	if tm.nmask != 0 {
		t.Errorf("short mask archive must zero nmask, got %d", tm.nmask)
	}
	for i := 0; i < patchidx[8]; i++ {
		if tm.tiledesc[i].Flag != FlagOpaque {
			t.Fatalf("tile %d flag not reverted to opaque: %#x", i, tm.tiledesc[i].Flag)
		}
	}
}

func TestShortBaseArchiveLowersLevel(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[7]) // 137 of the 501 requested

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 8})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	if tm.maxbaselvl != 7 {
		t.Errorf("maxbaselvl: got %d, want 7", tm.maxbaselvl)
	}
	if tm.ntex != patchidx[7] {
		t.Errorf("ntex: got %d, want %d", tm.ntex, patchidx[7])
	}
	if tm.bNoTextures {
		t.Error("short archive must not disable rendering entirely")
	}
}

func TestEmptyBaseArchiveDisablesRendering(t *testing.T) {
	root := t.TempDir() // no archive at all

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 8})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	if !tm.bNoTextures {
		t.Fatal("missing base archive must set the no-texture state")
	}
	wmat, env := cameraEnv(10)
	tm.Render(wmat, 1, 8, 0, false, env)
	if dev.drawCount() != 0 {
		t.Errorf("no-texture planet must not draw, got %d draws", dev.drawCount())
	}
}

func TestRateLimit(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: SurfMaxPatchLevel})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	// A 0.6 rad camera step against the 5.12*2^-14 base limit caps the
	// level at the floor of 5.
	if got := tm.rateLimitLevel(0.6, 12); got != 5 {
		t.Errorf("rate-limited level: got %d, want 5", got)
	}
	// A stationary camera keeps the requested level.
	if got := tm.rateLimitLevel(0, 12); got != 12 {
		t.Errorf("stationary level: got %d, want 12", got)
	}

	// Monotonicity: the attainable level never increases with the step.
	prev := SurfMaxPatchLevel
	for cstep := 0.0; cstep < 1.0; cstep += 0.001 {
		lvl := tm.rateLimitLevel(cstep, SurfMaxPatchLevel)
		if lvl > prev {
			t.Fatalf("level rose from %d to %d at cstep %f", prev, lvl, cstep)
		}
		if lvl < 5 {
			t.Fatalf("level %d below the floor of 5 at cstep %f", lvl, cstep)
		}
		prev = lvl
	}
}

func TestRateLimitThroughRender(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: SurfMaxPatchLevel})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})
	tm.pcdir = math.Vec3d{X: 1}

	// Camera direction 0.6 rad away from the previous frame's.
	d := 10.0
	dir := math.Vec3d{X: gomath.Cos(0.6), Y: gomath.Sin(0.6)}
	wmat := math.Translate(-float32(d*dir.X), -float32(d*dir.Y), 0)
	env := FrameEnv{
		GRot: math.IdentityMat3d(),
		CPos: dir.Scale(-d),
		GPos: math.Vec3d{X: 1.5e11},
	}
	tm.Render(wmat, 1, 12, 0, false, env)

	if tm.rp.tgtlvl != 5 {
		t.Errorf("target level after fast pan: got %d, want 5", tm.rp.tgtlvl)
	}
	if tm.pcdir != tm.rp.cdir {
		t.Error("previous camera direction not saved for the next frame")
	}
}

// buildSubtileTOC returns a TOC where every level-8 tile points all four
// children at one shared record carrying a texture.
func buildSubtileTOC() []formats.TileRecord {
	n := patchidx[8] - patchidx[7]
	recs := make([]formats.TileRecord, n+1)
	for i := 0; i < n; i++ {
		recs[i] = formats.TileRecord{
			SIdx:   uint32(i),
			MIdx:   formats.NoTile,
			Flags:  FlagOpaque,
			SubIdx: [4]uint32{uint32(n), uint32(n), uint32(n), uint32(n)},
		}
	}
	recs[n] = formats.TileRecord{SIdx: 0, MIdx: formats.NoTile, Flags: FlagOpaque}
	return recs
}

func TestColdCacheDescent(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])
	writeTOCFile(t, root, "Earth", buildSubtileTOC())

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 12})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	if tm.nhitex == 0 {
		t.Fatal("TOC produced no subtiles")
	}

	// Close approach with a cold cache: base tiles render with their own
	// textures and descent attempts enqueue async loads.
	wmat, env := cameraEnv(1.02)
	tm.Render(wmat, 1, 12, 0, false, env)

	if dev.drawCount() == 0 {
		t.Fatal("first frame issued no draws")
	}
	mu := r.tilebuf.Mutex()
	mu.Lock()
	pending := r.tilebuf.QueueLen()
	mu.Unlock()
	if pending == 0 {
		t.Error("cold-cache descent enqueued no tile loads")
	}

	// Every draw uses a loaded texture (or none): numeric indices never
	// reach the device.
	for i, call := range dev.draws {
		if call.Tex != nil {
			if _, ok := call.Tex.(*fakeTexture); !ok {
				t.Fatalf("draw %d carries a non-device texture", i)
			}
		}
	}
}

func TestPreloadConversionAndDistribution(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])

	// Two catalogued subtiles with byte offsets in reverse order.
	n := patchidx[8] - patchidx[7]
	recs := make([]formats.TileRecord, n+2)
	for i := 0; i < n; i++ {
		recs[i] = formats.TileRecord{SIdx: formats.NoTile, MIdx: formats.NoTile}
	}
	recs[0].SubIdx[0] = uint32(n)
	recs[0].SubIdx[1] = uint32(n + 1)
	recs[n] = formats.TileRecord{SIdx: 90000, MIdx: formats.NoTile, Flags: FlagOpaque}
	recs[n+1] = formats.TileRecord{SIdx: 500, MIdx: formats.NoTile, Flags: FlagOpaque}
	writeTOCFile(t, root, "Earth", recs)

	// The level 9+ archive holds the two preloadable surfaces.
	dir := filepath.Join(root, "Textures2")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Earth_tile.tex"), makeArchive(2, 256), 0644); err != nil {
		t.Fatal(err)
	}

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 12, Preload: true})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	tile8 := tm.tiledesc[patchidx[7]:]
	sub0 := tile8[0].Sub[0] // file offset 90000 -> dense index 1
	sub1 := tile8[0].Sub[1] // file offset 500 -> dense index 0
	if sub0 == nil || sub1 == nil {
		t.Fatal("catalogued subtiles not materialised")
	}
	if !sub0.Loaded() || !sub1.Loaded() {
		t.Fatal("preload must mark subtiles loaded")
	}
	if !sub0.Tex.IsLoaded() || !sub1.Tex.IsLoaded() {
		t.Fatal("preload must resolve subtile textures")
	}
	if sub0.Tex.Texture() == sub1.Tex.Texture() {
		t.Error("subtiles share one texture; dense index assignment broken")
	}
	if tm.Missing() != 0 {
		t.Errorf("unexpected missing-tile count %d", tm.Missing())
	}
}

func TestSubtileIndexOutOfRangeCountsMissing(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])

	n := patchidx[8] - patchidx[7]
	recs := make([]formats.TileRecord, n+1)
	for i := 0; i < n; i++ {
		recs[i] = formats.TileRecord{SIdx: formats.NoTile, MIdx: formats.NoTile}
	}
	recs[0].SubIdx[0] = uint32(n)
	recs[n] = formats.TileRecord{SIdx: 7, MIdx: formats.NoTile, Flags: FlagOpaque}
	writeTOCFile(t, root, "Earth", recs)

	// Archive holds a single surface, so the converted index resolves
	// but the preload distribution runs against an empty slot list when
	// the archive is missing entirely.
	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 12, Preload: true})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	sub := tm.tiledesc[patchidx[7]:][0].Sub[0]
	if sub == nil {
		t.Fatal("subtile not materialised")
	}
	if tm.Missing() == 0 {
		t.Error("archive/catalogue disagreement must increment the missing count")
	}
	if !sub.Tex.IsNone() {
		t.Error("missing archive entry must leave the no-texture state")
	}
}

func TestFrustumCullDropsSubtiles(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])
	writeTOCFile(t, root, "Earth", buildSubtileTOC())

	dev := &fakeDevice{}
	dev.visible = func(center math.Vec3, radius float32) bool { return false }
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 12})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	wmat, env := cameraEnv(1.02)
	tm.Render(wmat, 1, 12, 0, false, env)

	if dev.drawCount() != 0 {
		t.Errorf("nothing is frustum-visible, yet %d draws happened", dev.drawCount())
	}
}

func TestMicrotexture(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[3])
	if err := os.WriteFile(filepath.Join(root, "micro.dds"), makeDDS(256), 0644); err != nil {
		t.Fatal(err)
	}

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 3})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1})

	tm.SetMicrotexture("micro.dds")
	tm.SetMicrolevel(0.5)
	if tm.microtex == nil {
		t.Fatal("micro-texture not loaded")
	}

	wmat, env := cameraEnv(10)
	tm.Render(wmat, 1, 3, 0, false, env)
	if len(dev.draws) == 0 || dev.draws[0].Micro == nil {
		t.Error("draw call does not carry the micro-texture")
	}

	tm.SetMicrotexture("")
	if tm.microtex != nil {
		t.Error("micro-texture not cleared")
	}
}

func TestSpecularColour(t *testing.T) {
	root := t.TempDir()
	writeBaseArchive(t, root, "Earth", patchidx[8])

	dev := &fakeDevice{}
	r := newTestRenderer(t, dev, root, Options{MaxLevel: 8, Reflect: true})
	tm := NewTileManager(r, Planet{Name: "Earth", Radius: 1, SpecBase: 0.8})

	// Airless: plain base colour.
	tm.rp.cdir = math.Vec3d{Z: 1}
	tm.rp.sdir = math.Vec3d{Z: 1}
	col := tm.specularColour()
	if col != [3]float32{0.8, 0.8, 0.8} {
		t.Errorf("airless specular: got %v", col)
	}

	// With an atmosphere the colour drops away from the mirror angle.
	tm.planet.Atm = &Atmosphere{Color0: [3]float64{1, 0.5, 0.2}}
	tm.rp.sdir = math.Vec3d{X: 1}
	col = tm.specularColour()
	scale := gomath.Sin(0.5*gomath.Pi/2) * 0.7
	want := [3]float32{
		float32(0.8 - scale*1),
		float32(0.8 - scale*0.5),
		float32(0.8 - scale*0.2),
	}
	for i := 0; i < 3; i++ {
		if gomath.Abs(float64(col[i]-want[i])) > 1e-6 {
			t.Errorf("channel %d: got %f, want %f", i, col[i], want[i])
		}
	}
}
