package main

import (
	gomath "math"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/planetview/internal/config"
	"github.com/Faultbox/planetview/internal/engine/camera"
	"github.com/Faultbox/planetview/internal/engine/device"
	"github.com/Faultbox/planetview/internal/engine/surface"
	"github.com/Faultbox/planetview/internal/logger"
	"github.com/Faultbox/planetview/pkg/math"
	"github.com/veandco/go-sdl2/sdl"
)

// planetRadius is the rendered body radius in world units. The tile
// manager works in planet radii internally, so the exact value only
// sets the world scale.
const planetRadius = 6.371e6

// sunDistance places the sun along the global X axis.
const sunDistance = 1.496e11

// App drives the viewer: window, device, surface renderer and camera.
type App struct {
	cfg *config.Config
	win *Window
	dev *device.GLDevice

	renderer *surface.Renderer
	tilemgr  *surface.TileManager
	cam      *camera.OrbitCamera

	dragging bool
	quit     bool
}

// NewApp wires the viewer together.
func NewApp(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg, cam: camera.New()}

	var err error
	a.win, err = NewWindow("Planet View - "+cfg.Data.Planet,
		cfg.Graphics.Width, cfg.Graphics.Height, cfg.Graphics.Fullscreen, cfg.Graphics.VSync)
	if err != nil {
		return nil, err
	}

	a.dev, err = device.NewGL(cfg.Graphics.Width, cfg.Graphics.Height)
	if err != nil {
		a.win.Close()
		return nil, err
	}

	a.renderer, err = surface.NewRenderer(a.dev, surface.Options{
		Reflect:          cfg.Surface.Reflect,
		Ripple:           cfg.Surface.Ripple,
		Lights:           cfg.Surface.Lights,
		ManagedTiles:     cfg.Surface.ManagedTiles,
		Preload:          cfg.Surface.PreloadTiles,
		LoadFrequency:    cfg.Surface.LoadFrequency,
		MaxLevel:         cfg.Surface.MaxPatchLevel,
		TextureRoot:      cfg.Data.TextureRoot,
		NightSpecularCut: cfg.Surface.NightSpecularCut,
	})
	if err != nil {
		a.dev.Close()
		a.win.Close()
		return nil, err
	}

	a.tilemgr = surface.NewTileManager(a.renderer, surface.Planet{
		Name:     cfg.Data.Planet,
		Radius:   planetRadius,
		SpecBase: 0.7,
		Atm:      &surface.Atmosphere{Color0: [3]float64{0.5, 0.6, 0.9}},
	})
	a.tilemgr.SetAmbientColor([3]float32{0.08, 0.08, 0.1})
	return a, nil
}

// Close tears the viewer down in reverse order.
func (a *App) Close() {
	if a.tilemgr != nil {
		a.tilemgr.Release()
	}
	if a.renderer != nil {
		a.renderer.Release()
	}
	if a.dev != nil {
		a.dev.Close()
	}
	if a.win != nil {
		a.win.Close()
	}
}

// Run is the render loop.
func (a *App) Run() error {
	lastStats := time.Now()
	for !a.quit {
		a.handleEvents()
		a.renderFrame()
		a.win.SwapBuffers()

		if time.Since(lastStats) > 5*time.Second {
			st := a.tilemgr.Stats()
			logger.Debug("frame stats",
				zap.Int("draws", st.Draws),
				zap.Int("vertices", st.Vertices),
				zap.Int("missing", a.tilemgr.Missing()),
			)
			lastStats = time.Now()
		}
	}
	return nil
}

func (a *App) handleEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			a.quit = true
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				a.quit = true
			}
		case *sdl.MouseButtonEvent:
			if e.Button == sdl.BUTTON_LEFT {
				a.dragging = e.Type == sdl.MOUSEBUTTONDOWN
			}
		case *sdl.MouseMotionEvent:
			if a.dragging {
				a.cam.HandleDrag(float64(e.XRel), float64(e.YRel))
			}
		case *sdl.MouseWheelEvent:
			a.cam.HandleZoom(float64(e.Y))
		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				w, h := a.win.Size()
				a.dev.Resize(w, h)
			}
		}
	}
}

// renderFrame computes the per-frame matrices and hands the planet to
// the tile manager. The view matrix is composed in double precision so
// the camera translation survives close approaches.
func (a *App) renderFrame() {
	w, h := a.dev.Viewport()
	aspect := float32(w) / float32(h)

	eye := a.cam.Position().Scale(planetRadius)
	view, cpos := lookAtPlanet(eye)

	alt := (a.cam.Distance - 1.0) * planetRadius
	near := float32(gomath.Max(alt*0.01, 1.0))
	far := float32((a.cam.Distance + 2.0) * planetRadius)
	proj := math.Perspective(float32(gomath.Pi/4), aspect, near, far)

	a.dev.SetCamera(proj.Mul(view))
	a.dev.BeginFrame()

	wmat := view.Mul(math.Scale(planetRadius, planetRadius, planetRadius))
	env := surface.FrameEnv{
		GRot: math.IdentityMat3d(),
		CPos: cpos,
		GPos: math.Vec3d{X: sunDistance},
	}
	a.tilemgr.Render(wmat, 1.0, a.cfg.Surface.MaxPatchLevel, 0, false, env)
}

// lookAtPlanet builds a view matrix for a camera at eye looking at the
// planet centre, and returns the planet centre position in camera
// coordinates computed in double precision.
func lookAtPlanet(eye math.Vec3d) (math.Mat4, math.Vec3d) {
	f := eye.Neg().Normalize()
	up := math.Vec3d{Y: 1}
	s := f.Cross(up).Normalize()
	if s.Length() == 0 {
		up = math.Vec3d{X: 1}
		s = f.Cross(up).Normalize()
	}
	u := s.Cross(f)

	view := math.Mat4{
		float32(s.X), float32(u.X), float32(-f.X), 0,
		float32(s.Y), float32(u.Y), float32(-f.Y), 0,
		float32(s.Z), float32(u.Z), float32(-f.Z), 0,
		float32(-s.Dot(eye)), float32(-u.Dot(eye)), float32(f.Dot(eye)), 1,
	}
	cpos := math.Vec3d{X: -s.Dot(eye), Y: -u.Dot(eye), Z: f.Dot(eye)}
	return view, cpos
}
