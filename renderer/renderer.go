// Package renderer drives the deferred pipeline: geometry, shadows,
// lighting, forward, post-processing and present, once per frame for the
// submitted camera.
package renderer

import (
	"errors"
	"fmt"

	"render-core/config"
	"render-core/core"
	"render-core/internal/gpu"
	"render-core/math"
	"render-core/pass"
	"render-core/resource"
	"render-core/shader"
)

var (
	ErrNotStarted = errors.New("renderer not started")
	ErrNoCamera   = errors.New("no camera submitted")
)

// FrameError is returned by Render when a frame was dropped. It has
// already been logged.
type FrameError struct {
	Stage string
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame dropped in %s: %v", e.Stage, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// FrameStats counts the work of one frame.
type FrameStats struct {
	Meshes       int
	DrawCalls    int
	Instances    int
	Culled       int
	ShadowPasses int
	ShadowFaces  int
	LightPasses  int
	PostStages   int
	Dropped      bool
}

// Surface is where finished frames go. window.Window implements it.
type Surface interface {
	FramebufferSize() (int, int)
	SwapBuffers()
}

type cameraSubmission struct {
	camera Camera
	world  math.Mat4
}

type lightSubmission struct {
	light Light
	world math.Mat4
}

type meshSubmission struct {
	mesh      string
	material  string
	world     math.Mat4
	instances []math.Mat4
}

// Renderer owns the pass buffers and the per-frame submission lists. All
// methods must be called on the thread that owns the GL context.
type Renderer struct {
	dev     gpu.Device
	res     *resource.Managers
	cfg     config.Renderer
	surface Surface

	buffers *pass.Set
	skybox  *gpu.VertexArray
	screen  *gpu.EmptyVertexArray
	watcher *shader.Watcher

	camera *cameraSubmission
	lights []lightSubmission
	meshes []meshSubmission

	warnedNoCamera bool
}

// New compiles the built-in shaders into res and creates the meshes every
// frame shares. A compile or link failure is returned as is.
func New(dev gpu.Device, res *resource.Managers, cfg config.Renderer, surface Surface) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("renderer config: %w", err)
	}
	if err := res.Shaders.LoadBuiltins(); err != nil {
		return nil, fmt.Errorf("renderer shaders: %w", err)
	}
	for _, name := range cfg.PostProcess {
		s, err := res.Shaders.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("post-process stage %q: %w", name, err)
		}
		if s.Pass() != shader.PassPostProcess {
			return nil, fmt.Errorf("post-process stage %q is a %s shader", name, s.Pass())
		}
	}

	sky, err := gpu.NewVertexArray(dev, skyboxCube())
	if err != nil {
		return nil, fmt.Errorf("skybox mesh: %w", err)
	}

	core.Logger().Info("renderer created", "post_process", cfg.PostProcess,
		"shadow_2d", cfg.MaxShadow2D, "shadow_cube", cfg.MaxShadowCube)
	return &Renderer{
		dev:     dev,
		res:     res,
		cfg:     cfg,
		surface: surface,
		skybox:  sky,
		screen:  gpu.NewEmptyVertexArray(dev),
	}, nil
}

// skyboxCube is a unit cube seen from the inside.
func skyboxCube() *core.MeshData {
	data := &core.MeshData{}
	for i := 0; i < 8; i++ {
		p := math.NewVec3(-1, -1, -1)
		if i&1 != 0 {
			p.X = 1
		}
		if i&2 != 0 {
			p.Y = 1
		}
		if i&4 != 0 {
			p.Z = 1
		}
		data.Vertices = append(data.Vertices, core.Vertex{Position: p, Color: core.ColorWhite})
	}
	data.Indices = []uint32{
		0, 2, 1, 1, 2, 3, // -Z
		4, 5, 6, 5, 7, 6, // +Z
		0, 1, 4, 1, 5, 4, // -Y
		2, 6, 3, 3, 6, 7, // +Y
		0, 4, 2, 2, 4, 6, // -X
		1, 3, 5, 3, 7, 5, // +X
	}
	return data
}

func (r *Renderer) Started() bool { return r.buffers != nil }

// Start allocates the pass buffers at the surface size and starts the
// shader watcher when hot reload is on. Starting twice is a no-op.
func (r *Renderer) Start() error {
	if r.Started() {
		return nil
	}
	w, h := r.surface.FramebufferSize()
	if err := r.allocate(w, h); err != nil {
		return err
	}
	if r.cfg.HotReload && r.res.Shaders.Dir() != "" {
		wt, err := shader.Watch(r.res.Shaders.Dir())
		if err != nil {
			r.Stop()
			return err
		}
		r.watcher = wt
	}
	r.warnedNoCamera = false
	core.Logger().Info("renderer started", "width", w, "height", h)
	return nil
}

func (r *Renderer) allocate(w, h int) error {
	set, err := pass.NewSet(r.dev, w, h, pass.Options{
		ShadowMapSize:     r.cfg.ShadowMapSize,
		CubeShadowMapSize: r.cfg.CubeShadowMapSize,
		MaxShadow2D:       r.cfg.MaxShadow2D,
		MaxShadowCube:     r.cfg.MaxShadowCube,
	})
	if err != nil {
		return fmt.Errorf("renderer buffers: %w", err)
	}
	r.buffers = set
	return nil
}

// Stop releases the pass buffers. Stopping twice is a no-op.
func (r *Renderer) Stop() {
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
	if !r.Started() {
		return
	}
	r.buffers.Release()
	r.buffers = nil
	core.Logger().Info("renderer stopped")
}

// Resize reallocates the pass buffers at w x h. A zero size, as a
// minimised window reports, stops the renderer.
func (r *Renderer) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		r.Stop()
		return nil
	}
	if !r.Started() {
		return nil
	}
	if cw, ch := r.buffers.Size(); cw == w && ch == h {
		return nil
	}
	r.buffers.Release()
	r.buffers = nil
	if err := r.allocate(w, h); err != nil {
		r.Stop()
		return err
	}
	core.Logger().Info("renderer resized", "width", w, "height", h)
	return nil
}

// Release stops the renderer and frees the shared meshes. The resource
// managers belong to the caller.
func (r *Renderer) Release() {
	r.Stop()
	r.skybox.Release()
	r.screen.Release()
}

// SubmitCamera sets the camera for the next frame. A later submission in
// the same frame replaces an earlier one.
func (r *Renderer) SubmitCamera(cam Camera, world math.Mat4) {
	if r.camera != nil {
		core.Logger().Debug("camera replaced in frame")
	}
	r.camera = &cameraSubmission{camera: cam, world: world}
}

func (r *Renderer) SubmitLight(l Light, world math.Mat4) {
	r.lights = append(r.lights, lightSubmission{light: l, world: world})
}

// SubmitMesh queues mesh with its default material. With no instances it
// is drawn once at world; otherwise once per instance, each instance
// matrix applied before world.
func (r *Renderer) SubmitMesh(mesh string, world math.Mat4, instances []math.Mat4) {
	r.SubmitMeshMaterial(mesh, "", world, instances)
}

// SubmitMeshMaterial is SubmitMesh with the material overridden. An empty
// material uses the mesh's default.
func (r *Renderer) SubmitMeshMaterial(mesh, material string, world math.Mat4, instances []math.Mat4) {
	r.meshes = append(r.meshes, meshSubmission{
		mesh:      mesh,
		material:  material,
		world:     world,
		instances: instances,
	})
}

// SetAtmosphere changes the ambient light and fog from the next frame on.
func (r *Renderer) SetAtmosphere(ambient core.Color, fogDensity float32, fog core.Color) {
	r.cfg.Ambient = config.Colour{ambient.R, ambient.G, ambient.B, ambient.A}
	r.cfg.FogDensity = max(fogDensity, 0)
	r.cfg.FogColour = config.Colour{fog.R, fog.G, fog.B, fog.A}
}

func (r *Renderer) clearFrame() {
	r.camera = nil
	r.lights = r.lights[:0]
	r.meshes = r.meshes[:0]
}

// drainReloads recompiles every shader the watcher reported since the last
// frame. A failed reload keeps the old program.
func (r *Renderer) drainReloads() {
	if r.watcher == nil {
		return
	}
	for {
		select {
		case name, ok := <-r.watcher.Names():
			if !ok {
				r.watcher = nil
				return
			}
			r.reload(name)
		default:
			return
		}
	}
}

func (r *Renderer) reload(name string) {
	log := core.Logger()
	err := r.res.Shaders.Reload(name)
	if errors.Is(err, resource.ErrNotFound) {
		// A new stage file; pick it up as a custom post-process shader.
		err = r.res.Shaders.LoadBuiltins()
	}
	if err != nil {
		log.Error("shader reload failed", "shader", name, "err", err)
		return
	}
	log.Info("shader reloaded", "shader", name)
}
