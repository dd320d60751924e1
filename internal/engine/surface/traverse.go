package surface

import (
	gomath "math"

	"github.com/Faultbox/planetview/internal/engine/device"
	"github.com/Faultbox/planetview/pkg/math"
)

// Render draws the planet surface for one frame. wmat maps the unit
// planet-local frame into camera space, scale is the global render
// scale, level the requested maximum subdivision level, viewap the view
// aperture in radians (0 = derive from camera altitude) and bfog
// enables distance fog. The traversal holds the tile buffer mutex for
// the whole frame, so subtile texture state is read consistently
// against the loader.
func (t *TileManager) Render(wmat math.Mat4, scale float64, level int, viewap float64, bfog bool, env FrameEnv) {
	if t.bNoTextures {
		return
	}
	t.stats = RenderStats{}

	if level > t.maxlvl {
		level = t.maxlvl
	}

	rp := &t.rp
	rp.wmat = wmat
	rp.wmatTmp = wmat
	rp.scale = scale
	rp.bfog = bfog

	imat := wmat.Inverse()
	// camera position in planet-local frame, units of planet radii
	rp.cdir = math.Vec3d{X: float64(imat[12]), Y: float64(imat[13]), Z: float64(imat[14])}.Normalize()
	rp.cpos = env.CPos.Scale(scale)
	rp.grot = env.GRot.Scale(scale)
	rp.objsize = t.planet.Radius
	rp.cdist = env.CPos.Length() / t.planet.Radius

	rp.viewap = viewap
	if rp.viewap == 0 {
		rp.viewap = gomath.Acos(1.0 / gomath.Max(1.0, rp.cdist))
	}

	rp.sdir = rp.grot.TMulVec(env.GPos.Neg()).Normalize()
	sc := wmat.TransformVec3(rp.sdir.Vec3()).Sub(wmat.TransformVec3(math.Vec3{}))
	rp.sdirCam = sc.Normalize()

	if rp.cdist > 1 {
		rp.horzdist = gomath.Sqrt(rp.cdist*rp.cdist-1.0) * rp.objsize
	} else {
		rp.horzdist = 0
	}

	// limit resolution for fast camera movements
	dot := rp.cdir.Dot(t.pcdir)
	dot = gomath.Min(1, gomath.Max(-1, dot))
	level = t.rateLimitLevel(gomath.Acos(dot), level)
	rp.tgtlvl = level

	if level <= 4 {
		t.renderSimple(level)
	} else {
		startlvl := level
		if startlvl > 8 {
			startlvl = 8
		}
		nlat := nlatLevel[startlvl]
		nlng := nlngLevel[startlvl]
		td := t.tiledesc[patchidx[startlvl-1]:]

		mu := t.r.tilebuf.Mutex()
		mu.Lock()
		idx := 0
		for hemisp := 0; hemisp < 2; hemisp++ {
			if hemisp != 0 {
				// flip world transformation to the southern hemisphere
				rp.wmat = rp.wmat.Mul(t.r.rsouth)
				rp.wmatTmp = rp.wmat
				rp.grot[1] = -rp.grot[1]
				rp.grot[2] = -rp.grot[2]
				rp.grot[4] = -rp.grot[4]
				rp.grot[5] = -rp.grot[5]
				rp.grot[7] = -rp.grot[7]
				rp.grot[8] = -rp.grot[8]
			}
			for ilat := nlat - 1; ilat >= 0; ilat-- {
				for ilng := 0; ilng < nlng[ilat]; ilng++ {
					cur := &td[idx]
					t.processTile(startlvl, hemisp, ilat, nlat, ilng, nlng[ilat], cur,
						FullRange, cur.Tex.Texture(), cur.LTex.Texture(), cur.Flag,
						FullRange, cur.Tex.Texture(), cur.LTex.Texture(), cur.Flag)
					idx++
				}
			}
		}
		mu.Unlock()
	}

	t.pcdir = rp.cdir // store camera direction for the rate limit
}

// rateLimitLevel caps the target level against the camera's angular
// speed: every octave of movement per frame halves the attainable
// resolution, down to level 5, so fast panning does not thrash the
// texture loader.
func (t *TileManager) rateLimitLevel(cstep float64, level int) int {
	maxlevel := SurfMaxPatchLevel
	for limitstep := t.LimitCoeff * gomath.Pow(2.0, -float64(SurfMaxPatchLevel)); cstep > limitstep && maxlevel > 5; limitstep *= 2.0 {
		maxlevel--
	}
	if level > maxlevel {
		level = maxlevel
	}
	return level
}

// renderSimple draws the base tiles of a low level directly with the
// shared sphere meshes; no hemisphere split, no per-tile culling.
func (t *TileManager) renderSimple(level int) {
	npatch := patchidx[level] - patchidx[level-1]
	td := t.tiledesc[patchidx[level-1]:]

	for i := 0; i < npatch; i++ {
		mesh := t.r.patches.TPL[level][i]
		call := t.newDrawCall(mesh, t.rp.wmat, FullRange, td[i].Tex.Texture(), td[i].LTex.Texture(), td[i].Flag, 0)
		t.r.dev.DrawIndexed(call)
		t.stats.Tiles[level]++
		t.stats.Vertices += mesh.NVtx
		t.stats.Draws++
	}
}

// processTile decides for one tile whether to cull it, descend into its
// children or render it at this level, inheriting texture and UV range
// from the deepest loaded ancestor where needed.
func (t *TileManager) processTile(lvl, hemisp, ilat, nlat, ilng, nlng int, tile *TileDesc,
	rng TexRange, tex, ltex device.Texture, flag byte,
	bkpRng TexRange, bkpTex, bkpLtex device.Texture, bkpFlag byte) {

	rp := &t.rp

	// patch visibility cone against the view aperture
	rad0 := gomath.Sqrt2 * gomath.Pi * 0.25
	cnt := TileCentre(hemisp, ilat, nlat, ilng, nlng)
	rad := rad0 / float64(nlat)
	x := gomath.Min(1, gomath.Max(-1, rp.cdir.Dot(cnt)))
	adist := gomath.Acos(x) - rad
	if adist >= rp.viewap {
		return
	}

	t.setWorldMatrix(ilng, nlng, ilat, nlat)
	bsScale := math.BSScaleFactor(rp.mWorld)

	// patch bounding sphere against the view frustum
	if !t.isTileInView(lvl, ilat, bsScale) {
		t.r.tilebuf.DeleteSubTiles(tile)
		return
	}

	bStepDown := lvl < rp.tgtlvl
	bCoarseTex := false

	// reduce resolution for tiles seen under a very oblique angle
	if bStepDown && lvl >= 8 && adist > 0.0 {
		lat1, lat2, lng1, lng2 := TileExtents(hemisp, ilat, nlat, ilng, nlng)
		clng, clat, _ := rp.cdir.ToEquatorial()
		if clng < lng1-gomath.Pi {
			clng += 2 * gomath.Pi
		} else if clng > lng2+gomath.Pi {
			clng -= 2 * gomath.Pi
		}
		var adistLng, adistLat float64
		switch {
		case clng < lng1:
			adistLng = lng1 - clng
		case clng > lng2:
			adistLng = clng - lng2
		}
		switch {
		case clat < lat1:
			adistLat = lat1 - clat
		case clat > lat2:
			adistLat = clat - lat2
		}
		adist2 := gomath.Max(adistLng, adistLat)

		cosa := gomath.Cos(adist2)
		a := gomath.Sin(adist2)
		b := rp.cdist - cosa
		ctilt := b * cosa / gomath.Sqrt(a*a*(1.0+2.0*b)+b*b)
		if adist2 > rad*(t.TiltStep*ctilt+t.TiltBias) {
			bStepDown = false
			if adist2 > rad*(t.TiltCoarse*ctilt+t.TiltBias) {
				bCoarseTex = true
			}
		}
	}

	if bStepDown {
		// subdivide into the 2x2 child patches
		du := (rng.UMax - rng.UMin) * 0.5
		dv := (rng.VMax - rng.VMin) * 0.5
		idx := 0
		for i := 1; i >= 0; i-- {
			var sub TexRange
			sub.VMin = rng.VMin + float32(1-i)*dv
			sub.VMax = sub.VMin + dv
			for j := 0; j < 2; j++ {
				sub.UMin = rng.UMin + float32(j)*du
				sub.UMax = sub.UMin + du

				subtile := tile.Sub[idx]
				isfull := true
				if subtile == nil {
					subtile = t.r.tilebuf.AddTile()
					subtile.Flag = FlagNotLoaded
					tile.Sub[idx] = subtile
					isfull = false
				} else if !subtile.Loaded() {
					// request the subtile texture once the parent's own
					// texture is present
					if tile.Loaded() {
						t.r.tilebuf.LoadTileAsync(t.planet.Name, subtile)
					}
					isfull = false
				}
				if isfull {
					isfull = subtile.Tex.IsLoaded()
				}
				if isfull {
					t.processTile(lvl+1, hemisp, ilat*2+i, nlat*2, ilng*2+j, nlng*2, subtile,
						FullRange, subtile.Tex.Texture(), subtile.LTex.Texture(), subtile.Flag,
						sub, tex, ltex, flag)
				} else {
					t.processTile(lvl+1, hemisp, ilat*2+i, nlat*2, ilng*2+j, nlng*2, subtile,
						sub, tex, ltex, flag,
						sub, tex, ltex, flag)
				}
				idx++
			}
		}
		return
	}

	// horizon test on the bounding sphere, then the final frustum test
	mesh := t.r.patches.TPL[lvl][ilat]
	bsrad := mesh.BsRad * bsScale
	vBS := rp.mWorld.TransformVec3(mesh.BsCnt)
	if float64(vBS.Length())-float64(bsrad) > rp.horzdist {
		return // tile is behind the horizon
	}
	if !t.r.dev.IsVisible(vBS, bsrad) {
		return
	}

	sdot := gomath.Min(1, gomath.Max(-1, rp.sdir.Dot(cnt)))
	sdist := gomath.Acos(sdot)

	t.stats.Tiles[lvl]++
	t.stats.Vertices += mesh.NVtx
	t.stats.Draws++

	if bCoarseTex {
		t.renderTile(lvl, ilat, sdist, rad, bkpRng, bkpTex, bkpLtex, bkpFlag)
	} else {
		t.renderTile(lvl, ilat, sdist, rad, rng, tex, ltex, flag)
	}
}

// setWorldMatrix composes the world matrix for one tile. High level
// tiles use shifted-origin meshes, so the translation is rebuilt in
// double precision from the tile corner offset.
func (t *TileManager) setWorldMatrix(ilng, nlng, ilat, nlat int) {
	rp := &t.rp
	lng := gomath.Pi*2.0*float64(ilng)/float64(nlng) + gomath.Pi // add pi so texture wraps at +-180 degrees
	rtile := math.RotateY(float32(lng))

	if nlat > 8 {
		// The reference point of these tiles is the lower left corner,
		// so offsets stay small enough for the single-precision world
		// matrix. Compose the translation in double precision first.
		lat := gomath.Pi * 0.5 * float64(ilat) / float64(nlat)
		s := rp.objsize
		dx := s * gomath.Cos(lng) * gomath.Cos(lat)
		dy := s * gomath.Sin(lat)
		dz := s * gomath.Sin(lng) * gomath.Cos(lat)
		ofs := rp.grot.MulVec(math.Vec3d{X: dx, Y: dy, Z: dz}).Add(rp.cpos)
		rp.wmatTmp[12] = float32(ofs.X)
		rp.wmatTmp[13] = float32(ofs.Y)
		rp.wmatTmp[14] = float32(ofs.Z)
		rp.mWorld = rp.wmatTmp.Mul(rtile)
	} else {
		rp.mWorld = rp.wmat.Mul(rtile)
	}
}

// isTileInView tests a patch template's bounding sphere against the
// device frustum under the current world matrix.
func (t *TileManager) isTileInView(lvl, ilat int, scale float32) bool {
	mesh := t.r.patches.TPL[lvl][ilat]
	rad := mesh.BsRad * scale
	p := t.rp.mWorld.TransformVec3(mesh.BsCnt)
	return t.r.dev.IsVisible(p, rad)
}

// specularColour computes the sun highlight colour: the base specular
// brightness, attenuated through the atmosphere away from the mirror
// direction.
func (t *TileManager) specularColour() [3]float32 {
	base := float32(t.planet.SpecBase)
	if t.planet.Atm == nil {
		return [3]float32{base, base, base}
	}
	const fac = 0.7
	cosa := gomath.Min(1, gomath.Max(-1, t.rp.cdir.Dot(t.rp.sdir)))
	alpha := 0.5 * gomath.Acos(cosa) // sun reflection angle
	scale := gomath.Sin(alpha) * fac
	var col [3]float32
	for i := 0; i < 3; i++ {
		col[i] = float32(gomath.Max(0.0, t.planet.SpecBase-scale*t.planet.Atm.Color0[i]))
	}
	return col
}

// renderTile submits one tile at its chosen level.
func (t *TileManager) renderTile(lvl, ilat int, sdist, rad float64, rng TexRange, tex, ltex device.Texture, flag byte) {
	if t.r.opts.NightSpecularCut && sdist > gomath.Pi*0.5+rad && flag&FlagSpecular != 0 {
		flag &^= FlagSpecular
	}
	mesh := t.r.patches.TPL[lvl][ilat]
	call := t.newDrawCall(mesh, t.rp.mWorld, rng, tex, ltex, flag, sdist)
	t.r.dev.DrawIndexed(call)
}

// newDrawCall assembles the device draw parameters for one tile.
func (t *TileManager) newDrawCall(mesh *VBMesh, world math.Mat4, rng TexRange, tex, ltex device.Texture, flag byte, sdist float64) *device.DrawCall {
	call := &device.DrawCall{
		VB:        mesh.VB,
		IB:        mesh.IB,
		FaceCount: mesh.NFace,
		World:     world,
		Tex:       tex,
		UMin:      rng.UMin,
		UMax:      rng.UMax,
		VMin:      rng.VMin,
		VMax:      rng.VMax,
		SunDir:    t.rp.sdirCam,
		Ambient:   t.ambient,
		Fog:       t.rp.bfog,
	}
	wantsMask := (flag&(FlagOpaque|FlagSpecular)) == (FlagOpaque|FlagSpecular) || flag&FlagLights != 0
	if wantsMask && ltex != nil {
		call.Mask = ltex
		call.UseSpecular = t.r.opts.Reflect && flag&FlagSpecular != 0
		call.Ripple = call.UseSpecular && t.r.opts.Ripple
		call.UseLights = t.r.opts.Lights && flag&FlagLights != 0
	}
	if call.UseSpecular {
		call.Specular = t.specularColour()
	}
	if t.microtex != nil {
		call.Micro = t.microtex
		call.MicroLevel = float32(t.microlvl)
	}
	return call
}
