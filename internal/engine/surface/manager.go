package surface

import (
	gomath "math"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/planetview/internal/engine/device"
	"github.com/Faultbox/planetview/internal/logger"
	"github.com/Faultbox/planetview/pkg/formats"
	"github.com/Faultbox/planetview/pkg/math"
)

// patchidx gives the cumulative base patch count per level 1..8.
var patchidx = formats.PatchIdx

// Latitude band counts and per-band longitude tile counts for the base
// levels. Levels beyond 8 double both per level.
var (
	nlatLevel = [9]int{0, 1, 1, 1, 1, 1, 2, 4, 8}
	nlngLevel = [9][]int{
		nil, nil, nil, nil, nil,
		{4},
		{8, 4},
		{16, 16, 12, 6},
		{32, 32, 30, 28, 24, 18, 12, 6},
	}
)

// Options configures the shared surface renderer.
type Options struct {
	Reflect          bool   // specular water reflection
	Ripple           bool   // specular ripple (needs Reflect)
	Lights           bool   // night-side city lights
	ManagedTiles     bool   // managed-pool texture allocation
	Preload          bool   // load level 9+ textures at startup
	LoadFrequency    int    // loader wake-ups per second
	MaxLevel         int    // subdivision cap, 1..SurfMaxPatchLevel
	TextureRoot      string // directory holding catalogue + archive files
	NightSpecularCut bool   // drop specular highlights on the night side
}

// Renderer is the shared per-process surface rendering context: the
// patch template library, the tile buffer and the hemisphere flip
// matrix. Create once at startup, release at shutdown.
type Renderer struct {
	dev     device.Device
	patches *PatchStore
	tilebuf *TileBuffer
	opts    Options
	rsouth  math.Mat4
}

// NewRenderer builds the patch templates and starts the tile loader.
// Template construction failure is fatal.
func NewRenderer(dev device.Device, opts Options) (*Renderer, error) {
	if !opts.Reflect {
		opts.Ripple = false
	}
	if opts.MaxLevel < 1 || opts.MaxLevel > SurfMaxPatchLevel {
		opts.MaxLevel = SurfMaxPatchLevel
	}
	patches, err := NewPatchStore(dev, opts.MaxLevel)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		dev:     dev,
		patches: patches,
		tilebuf: NewTileBuffer(dev, opts.TextureRoot, opts.ManagedTiles, opts.LoadFrequency),
		opts:    opts,
		rsouth:  math.RotateX(gomath.Pi),
	}
	return r, nil
}

// Release stops the loader and frees all shared resources.
func (r *Renderer) Release() {
	r.tilebuf.Release()
	r.patches.Release()
}

// TileBuffer exposes the shared tile buffer.
func (r *Renderer) TileBuffer() *TileBuffer {
	return r.tilebuf
}

// Atmosphere carries the atmospheric parameters the surface shader
// needs: the low-altitude scattering colour.
type Atmosphere struct {
	Color0 [3]float64
}

// Planet describes the body a TileManager renders.
type Planet struct {
	Name     string
	Radius   float64
	SpecBase float64     // base specular brightness
	Atm      *Atmosphere // nil = airless
}

// RenderStats accumulates per-frame draw statistics.
type RenderStats struct {
	Tiles    [SurfMaxPatchLevel + 1]int
	Vertices int
	Draws    int
}

// renderParam is the per-frame traversal state.
type renderParam struct {
	wmat     math.Mat4 // world matrix for the current hemisphere
	wmatTmp  math.Mat4 // scratch copy used for origin-shifted tiles
	mWorld   math.Mat4 // world matrix of the tile being processed
	grot     math.Mat3d
	cpos     math.Vec3d
	cdir     math.Vec3d
	sdir     math.Vec3d
	sdirCam  math.Vec3
	cdist    float64
	viewap   float64
	horzdist float64
	objsize  float64
	scale    float64
	tgtlvl   int
	bfog     bool
}

// FrameEnv carries the per-frame planet state supplied by the outer
// engine: the planet's rotation matrix, its position relative to the
// camera (world units) and its global position (for the sun direction;
// the sun sits at the global origin).
type FrameEnv struct {
	GRot math.Mat3d
	CPos math.Vec3d
	GPos math.Vec3d
}

// TileManager renders the surface of one planet: it owns the base tile
// descriptors, the catalogue-derived subtile tree and the per-frame LOD
// traversal.
type TileManager struct {
	r      *Renderer
	planet Planet

	maxlvl     int
	maxbaselvl int
	tilever    uint32

	ntex    int
	nhitex  int
	nmask   int
	nhispec int

	tiledesc []TileDesc
	texbuf   []device.Texture
	specbuf  []device.Texture

	bNoTextures bool
	bPreload    bool

	microtex device.Texture
	microlvl float64
	ambient  [3]float32

	pcdir    math.Vec3d
	tmissing int
	stats    RenderStats

	// Empirical LOD tuning constants, exposed for adjustment.
	LimitCoeff float64 // initial rate-limit coefficient
	TiltStep   float64 // obliqueness threshold stopping descent
	TiltCoarse float64 // obliqueness threshold forcing the backup texture
	TiltBias   float64

	rp renderParam
}

// NewTileManager loads the planet's catalogues and base textures and
// materialises the subtile tree.
func NewTileManager(r *Renderer, planet Planet) *TileManager {
	t := &TileManager{
		r:          r,
		planet:     planet,
		maxlvl:     r.opts.MaxLevel,
		bPreload:   r.opts.Preload,
		pcdir:      math.Vec3d{X: 0, Y: 0, Z: 1},
		LimitCoeff: 5.12,
		TiltStep:   2.0,
		TiltCoarse: 4.2,
		TiltBias:   0.3,
	}
	t.maxbaselvl = t.maxlvl
	if t.maxbaselvl > 8 {
		t.maxbaselvl = 8
	}
	t.tiledesc = make([]TileDesc, patchidx[t.maxbaselvl])

	t.loadPatchData()
	t.loadTileData()
	t.loadTextures()
	t.loadSpecularMasks()

	if t.bPreload {
		logger.Info("preloading high resolution tiles", zap.String("planet", planet.Name))
	}
	return t
}

// Release frees the planet's own textures. Subtile textures are owned by
// the shared tile buffer pool.
func (t *TileManager) Release() {
	for _, tx := range t.texbuf {
		if tx != nil {
			tx.Release()
		}
	}
	t.texbuf = nil
	for _, tx := range t.specbuf {
		if tx != nil {
			tx.Release()
		}
	}
	t.specbuf = nil
	if t.microtex != nil {
		t.microtex.Release()
		t.microtex = nil
	}
}

// Stats returns the statistics of the last rendered frame.
func (t *TileManager) Stats() RenderStats {
	return t.stats
}

// Missing returns the number of catalogue/archive disagreements seen.
func (t *TileManager) Missing() int {
	return t.tmissing
}

// SetAmbientColor sets the ambient light modulation.
func (t *TileManager) SetAmbientColor(c [3]float32) {
	t.ambient = c
}

// SetMicrotexture loads a micro-texture detail layer, or clears it for
// an empty name.
func (t *TileManager) SetMicrotexture(name string) {
	if t.microtex != nil {
		t.microtex.Release()
		t.microtex = nil
	}
	if name == "" {
		return
	}
	tex, err := LoadSingleTexture(t.r.dev, filepath.Join(t.r.opts.TextureRoot, name), t.r.opts.ManagedTiles)
	if err != nil {
		logger.Warn("micro-texture not loaded", zap.String("name", name), zap.Error(err))
		return
	}
	t.microtex = tex
}

// SetMicrolevel sets the micro-texture blend level.
func (t *TileManager) SetMicrolevel(lvl float64) {
	t.microlvl = lvl
}

// loadPatchData reads the specular/city-light flags for the base
// patches. A missing mask file degrades to opaque, unlit tiles.
func (t *TileManager) loadPatchData() {
	t.nmask = 0
	nbase := patchidx[t.maxbaselvl]

	assignOpaque := func() {
		for i := 0; i < nbase; i++ {
			t.tiledesc[i].Flag = FlagOpaque
		}
	}

	if !t.r.opts.Reflect && !t.r.opts.Lights {
		assignOpaque()
		return
	}

	path := filepath.Join(t.r.opts.TextureRoot, t.planet.Name+"_lmask.bin")
	lm, err := formats.ParseLightMaskFile(path)
	if err != nil {
		assignOpaque()
		return
	}

	base := patchidx[lm.MinRes-1]
	for i := 0; i < nbase; i++ {
		if i < base || i-base >= len(lm.Flags) {
			t.tiledesc[i].Flag = FlagOpaque // no mask information
			continue
		}
		flag := byte(lm.Flags[i-base])
		t.tiledesc[i].Flag = flag
		if (flag&(FlagOpaque|FlagSpecular)) == (FlagOpaque|FlagSpecular) || flag&FlagLights != 0 {
			t.nmask++
		}
	}
}

// loadTileData reads the tile table of contents and materialises the
// subtile tree below the level-8 base tiles.
func (t *TileManager) loadTileData() {
	if t.maxlvl <= 8 {
		return
	}

	path := filepath.Join(t.r.opts.TextureRoot, t.planet.Name+"_tile.bin")
	toc, err := formats.ParseTileTOCFile(path)
	if err != nil {
		logger.Warn("surface tile TOC not found",
			zap.String("planet", t.planet.Name),
			zap.Error(err),
		)
		return
	}
	logger.Info("reading tile data",
		zap.String("planet", t.planet.Name),
		zap.Int("records", len(toc.Records)),
	)

	if t.bPreload {
		toc.ConvertToIndices()
	}
	t.tilever = toc.Version

	tile8 := t.tiledesc[patchidx[7]:]
	n := patchidx[8] - patchidx[7]
	if n > len(toc.Records) {
		n = len(toc.Records)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			if toc.Records[i].SubIdx[j] != 0 {
				t.addSubtileData(&tile8[i], toc, i, j, 9)
			}
		}
	}
}

// addSubtileData materialises the catalogue subtree below one child
// slot, marking every node as not yet loaded.
func (t *TileManager) addSubtileData(td *TileDesc, toc *formats.TileTOC, idx, sub, lvl int) {
	subidx := int(toc.Records[idx].SubIdx[sub])
	if subidx <= 0 || subidx >= len(toc.Records) {
		return
	}
	rec := &toc.Records[subidx]

	hasSub := false
	for j := 0; j < 4; j++ {
		if rec.SubIdx[j] != 0 {
			hasSub = true
			break
		}
	}
	if rec.Flags == 0 && !hasSub {
		return
	}
	if lvl > t.maxlvl {
		td.Sub[sub] = nil
		return
	}

	node := t.r.tilebuf.AddTile()
	td.Sub[sub] = node
	node.Flag = byte(rec.Flags)
	node.Tex = UnresolvedTex(rec.SIdx)
	if t.r.opts.Reflect || t.r.opts.Lights {
		if rec.MIdx != NoTile {
			node.LTex = UnresolvedTex(rec.MIdx)
		}
	} else {
		node.Flag = FlagOpaque // no specular, no lights
	}
	node.Flag |= FlagNotLoaded
	if t.tilever == 0 {
		node.Flag |= FlagOldIdx
	}

	if hasSub {
		for j := 0; j < 4; j++ {
			if rec.SubIdx[j] != 0 {
				t.addSubtileData(node, toc, subidx, j, lvl+1)
			}
		}
	}
	t.nhitex++
	if rec.MIdx != NoTile {
		t.nhispec++
	}
}

// loadTextures loads the base texture archive. A short archive lowers
// the attainable level; an empty one disables rendering entirely.
func (t *TileManager) loadTextures() {
	want := patchidx[t.maxbaselvl]
	path := filepath.Join(t.r.opts.TextureRoot, t.planet.Name+".tex")

	texs, err := LoadArchiveTextures(t.r.dev, path, want, t.r.opts.ManagedTiles)
	if err != nil || len(texs) == 0 {
		if err != nil {
			logger.Error("no base textures", zap.String("planet", t.planet.Name), zap.Error(err))
		}
		t.bNoTextures = true
		return
	}
	t.texbuf = texs
	t.ntex = len(texs)

	for t.ntex < patchidx[t.maxbaselvl] {
		t.maxbaselvl--
		t.maxlvl = t.maxbaselvl
	}
	for t.ntex > patchidx[t.maxbaselvl] {
		t.ntex--
		t.texbuf[t.ntex].Release()
		t.texbuf[t.ntex] = nil
	}
	t.texbuf = t.texbuf[:t.ntex]

	for i := 0; i < patchidx[t.maxbaselvl]; i++ {
		t.tiledesc[i].Tex = LoadedTex(t.texbuf[i])
	}

	if t.bPreload && t.nhitex > 0 && t.maxbaselvl == 8 {
		t.preloadTileTextures()
	}
}

// preloadTileTextures loads every catalogued subtile texture up front
// and distributes them through the tree by their dense indices.
func (t *TileManager) preloadTileTextures() {
	root := t.r.opts.TextureRoot
	var texs, masks []device.Texture

	path := filepath.Join(root, "Textures2", t.planet.Name+"_tile.tex")
	texs, err := LoadArchiveTextures(t.r.dev, path, t.nhitex, t.r.opts.ManagedTiles)
	if err != nil {
		logger.Warn("high resolution tile archive not loaded", zap.Error(err))
	}
	logger.Info("tile textures loaded", zap.Int("count", len(texs)))

	if t.nhispec > 0 {
		path = filepath.Join(root, "Textures2", t.planet.Name+"_tile_lmask.tex")
		masks, err = LoadArchiveTextures(t.r.dev, path, t.nhispec, t.r.opts.ManagedTiles)
		if err != nil {
			logger.Warn("tile mask archive not loaded", zap.Error(err))
		}
	}

	tile8 := t.tiledesc[patchidx[7]:]
	for i := range tile8 {
		for j := 0; j < 4; j++ {
			if tile8[i].Sub[j] != nil {
				t.addSubtileTextures(tile8[i].Sub[j], texs, masks)
			}
		}
	}

	// release textures the tree did not claim
	releaseAll(texs)
	releaseAll(masks)
}

// addSubtileTextures resolves a subtree's dense texture indices into the
// preloaded texture arrays and marks the nodes as loaded.
func (t *TileManager) addSubtileTextures(td *TileDesc, texs, masks []device.Texture) {
	if tidx := td.Tex.Index(); tidx != NoTile {
		if int(tidx) < len(texs) && texs[tidx] != nil {
			td.Tex = LoadedTex(texs[tidx])
			texs[tidx] = nil
		} else { // catalogue and archive disagree
			t.tmissing++
			td.Tex = NoTex()
		}
	} else {
		td.Tex = NoTex()
	}

	if midx := td.LTex.Index(); midx != NoTile {
		if int(midx) < len(masks) && masks[midx] != nil {
			td.LTex = LoadedTex(masks[midx])
			masks[midx] = nil
		} else {
			t.tmissing++
			td.LTex = NoTex()
		}
	} else {
		td.LTex = NoTex()
	}
	td.Flag &^= FlagNotLoaded

	for i := 0; i < 4; i++ {
		if td.Sub[i] != nil {
			t.addSubtileTextures(td.Sub[i], texs, masks)
		}
	}
}

// loadSpecularMasks loads the base-level specular/lights mask archive.
// A short or missing archive disables the specular path entirely.
func (t *TileManager) loadSpecularMasks() {
	if t.nmask == 0 {
		return
	}

	revertOpaque := func() {
		t.nmask = 0
		for i := 0; i < patchidx[t.maxbaselvl]; i++ {
			t.tiledesc[i].Flag = FlagOpaque
		}
	}

	path := filepath.Join(t.r.opts.TextureRoot, t.planet.Name+"_lmask.tex")
	masks, err := LoadArchiveTextures(t.r.dev, path, t.nmask, t.r.opts.ManagedTiles)
	if err != nil || len(masks) == 0 {
		revertOpaque()
		return
	}
	if len(masks) < t.nmask {
		logger.Warn("mask archive too short, disabling specular reflection",
			zap.String("planet", t.planet.Name),
			zap.Int("have", len(masks)),
			zap.Int("want", t.nmask),
		)
		releaseAll(masks)
		revertOpaque()
		return
	}
	t.specbuf = masks

	n := 0
	for i := 0; i < patchidx[t.maxbaselvl]; i++ {
		flag := t.tiledesc[i].Flag
		if (flag&(FlagOpaque|FlagSpecular)) == (FlagOpaque|FlagSpecular) || flag&FlagLights != 0 {
			if n < t.nmask {
				t.tiledesc[i].LTex = LoadedTex(t.specbuf[n])
				n++
			} else {
				t.tiledesc[i].Flag = FlagOpaque
			}
		}
		if !t.r.opts.Lights {
			t.tiledesc[i].Flag &^= FlagLights
		}
		if !t.r.opts.Reflect {
			t.tiledesc[i].Flag &^= FlagSpecular
			t.tiledesc[i].Flag |= FlagOpaque
		}
	}
}

// TileCentre returns the direction of a tile's centre from the planet
// centre in planet-local coordinates.
func TileCentre(hemisp, ilat, nlat, ilng, nlng int) math.Vec3d {
	cntlat := gomath.Pi * 0.5 * (float64(ilat) + 0.5) / float64(nlat)
	cntlng := gomath.Pi*2.0*(float64(ilng)+0.5)/float64(nlng) + gomath.Pi
	slat, clat := gomath.Sin(cntlat), gomath.Cos(cntlat)
	slng, clng := gomath.Sin(cntlng), gomath.Cos(cntlng)
	if hemisp != 0 {
		return math.Vec3d{X: clat * clng, Y: -slat, Z: -clat * slng}
	}
	return math.Vec3d{X: clat * clng, Y: slat, Z: clat * slng}
}

// TileExtents returns a tile's latitude and longitude bounds.
func TileExtents(hemisp, ilat, nlat, ilng, nlng int) (lat1, lat2, lng1, lng2 float64) {
	lat1 = gomath.Pi * 0.5 * float64(ilat) / float64(nlat)
	lat2 = lat1 + gomath.Pi*0.5/float64(nlat)
	lng1 = gomath.Pi*2.0*float64(ilng)/float64(nlng) + gomath.Pi
	lng2 = lng1 + gomath.Pi*2.0/float64(nlng)
	if hemisp != 0 {
		lat1, lat2 = -lat2, -lat1
		lng1, lng2 = -lng2, -lng1
		if lng2 < 0 {
			lng1 += 2 * gomath.Pi
			lng2 += 2 * gomath.Pi
		}
	}
	return lat1, lat2, lng1, lng2
}
