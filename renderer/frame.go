package renderer

import (
	"errors"
	"fmt"
	"slices"

	"render-core/core"
	"render-core/internal/gpu"
	"render-core/math"
	"render-core/resource"
	"render-core/shader"
	"render-core/shadow"
)

// drawItem is one mesh under one material: the instances the camera sees
// and every instance, for shadow casting.
type drawItem struct {
	mesh    *resource.Mesh
	visible []gpu.Instance
	all     []gpu.Instance
}

// batch groups the draws of one material with its resolved shader and
// textures.
type batch struct {
	name     string
	material *resource.Material
	shader   shader.MaterialShader
	textures [len(shader.MaterialUnits)]*gpu.Texture
	params   shader.MaterialParams
	items    []*drawItem
	byMesh   map[string]*drawItem
}

func (b *batch) bindTextures() {
	for i, tex := range b.textures {
		if tex != nil {
			tex.Bind(int(shader.MaterialUnits[i]))
		}
	}
}

// transparentDraw is one instance of a transparent material, sorted by
// view depth before drawing.
type transparentDraw struct {
	batch    *batch
	item     *drawItem
	instance gpu.Instance
	depth    float32
}

type shadowJob struct {
	light  int // index into frame.lights
	mode   shader.ShadowMode
	index  int // buffer index in its pool
	params shader.ShadowParams
	faces  [6]shadow.Projection
	proj   shadow.Projection
	cull   *shadow.Frustum
}

// frame is everything Render resolved before touching GPU state.
type frame struct {
	ctx     shader.PassContext
	camera  Camera
	world   math.Mat4
	aspect  float32
	frustum *shadow.Frustum

	deferred    []*batch
	opaque      []*batch
	transparent []transparentDraw
	casters     []*batch

	lights     []shader.LightParams
	unshadowed []shader.LightParams
	shadows    []shadowJob

	skyTexture *gpu.Texture
	post       []shader.Shader

	geometry   shader.Shader
	light      shader.LightShader
	shadow2D   shader.MaterialShader
	shadowCube shader.FaceShader
	sky        shader.Shader
}

// resolve looks up every name the frame refers to and builds the draw
// lists. It makes no GPU calls.
func (r *Renderer) resolve(stats *FrameStats) (*frame, error) {
	cam := r.camera
	if err := cam.camera.validate(); err != nil {
		return nil, err
	}
	view, ok := cam.world.Inverse()
	if !ok {
		return nil, errors.New("camera world matrix is singular")
	}
	w, h := r.buffers.Size()
	f := &frame{camera: cam.camera, world: cam.world, aspect: cam.camera.aspect(w, h)}
	proj := f.camera.Projection(f.aspect)
	f.ctx = shader.PassContext{
		View:           view,
		Projection:     proj,
		InverseView:    cam.world,
		ViewProjection: view.Mul(proj),
		Near:           f.camera.Near,
		Far:            f.camera.Far,
		Viewport:       f.camera.viewport(),
		Ambient:        r.cfg.Ambient.Color(),
		SkyboxColour:   f.camera.Skybox.Colour,
		Exposure:       r.cfg.Exposure,
		FogDensity:     r.cfg.FogDensity,
		FogColour:      r.cfg.FogColour.Color(),
		BloomThreshold: r.cfg.BloomThreshold,
		BloomStrength:  r.cfg.BloomStrength,
		SSAORadius:     r.cfg.SSAORadius,
		SSAOBias:       r.cfg.SSAOBias,
	}
	if r.cfg.FrustumCulling {
		fr := shadow.FrustumFromViewProjection(f.ctx.ViewProjection)
		f.frustum = &fr
	}

	if err := r.resolveShaders(f); err != nil {
		return nil, err
	}
	if err := r.resolveMeshes(f, stats); err != nil {
		return nil, err
	}
	r.resolveLights(f)

	if sky := f.camera.Skybox; sky.Enabled && sky.Texture != "" {
		tex, err := r.res.Textures.Lookup(sky.Texture)
		if err != nil {
			return nil, fmt.Errorf("skybox texture %q: %w", sky.Texture, err)
		}
		if tex.Kind() != gpu.TextureCube {
			return nil, fmt.Errorf("skybox texture %q is not a cubemap", sky.Texture)
		}
		f.skyTexture = tex
		f.ctx.SkyboxTextured = true
	}
	return f, nil
}

func lookupAs[T shader.Shader](m *resource.ShaderManager, name string, pass shader.Pass) (T, error) {
	var zero T
	s, err := m.Lookup(name)
	if err != nil {
		return zero, fmt.Errorf("shader %q: %w", name, err)
	}
	typed, ok := s.(T)
	if !ok || s.Pass() != pass {
		return zero, fmt.Errorf("shader %q is a %s shader, want %s", name, s.Pass(), pass)
	}
	return typed, nil
}

func (r *Renderer) resolveShaders(f *frame) error {
	var err error
	sm := r.res.Shaders
	if f.light, err = lookupAs[shader.LightShader](sm, shader.NameLight, shader.PassLight); err != nil {
		return err
	}
	if f.shadow2D, err = lookupAs[shader.MaterialShader](sm, shader.NameShadow2D, shader.PassShadow2D); err != nil {
		return err
	}
	if f.shadowCube, err = lookupAs[shader.FaceShader](sm, shader.NameShadowCube, shader.PassShadowCube); err != nil {
		return err
	}
	if f.sky, err = lookupAs[shader.Shader](sm, shader.NameSkybox, shader.PassSkybox); err != nil {
		return err
	}
	for _, name := range r.cfg.PostProcess {
		s, err := lookupAs[shader.Shader](sm, name, shader.PassPostProcess)
		if err != nil {
			return err
		}
		f.post = append(f.post, s)
	}
	return nil
}

// batchFor returns the batch for a material name, resolving it on first
// use.
func (r *Renderer) batchFor(f *frame, batches map[string]*batch, name string) (*batch, error) {
	if b, ok := batches[name]; ok {
		return b, nil
	}
	mat, err := r.res.Materials.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", name, err)
	}

	want := shader.PassForward
	if mat.Path == resource.PathDeferred {
		want = shader.PassGeometry
	}
	s, err := lookupAs[shader.MaterialShader](r.res.Shaders, mat.Shader, want)
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", name, err)
	}

	b := &batch{name: name, material: mat, shader: s, byMesh: make(map[string]*drawItem)}
	var bound shader.TextureSet
	for i, unit := range shader.MaterialUnits {
		texName, ok := mat.Textures[unit]
		if !ok || texName == "" {
			continue
		}
		tex, err := r.res.Textures.Lookup(texName)
		if err != nil {
			return nil, fmt.Errorf("material %q %s texture %q: %w", name, unit, texName, err)
		}
		b.textures[i] = tex
		bound = bound.With(unit)
	}
	b.params = mat.Params(bound)
	batches[name] = b

	switch mat.Path {
	case resource.PathDeferred:
		f.deferred = append(f.deferred, b)
	case resource.PathForwardOpaque:
		f.opaque = append(f.opaque, b)
	}
	if mat.CastShadows {
		f.casters = append(f.casters, b)
	}
	return b, nil
}

func (r *Renderer) resolveMeshes(f *frame, stats *FrameStats) error {
	batches := make(map[string]*batch)
	view := f.ctx.View
	for _, sub := range r.meshes {
		mesh, err := r.res.Meshes.Lookup(sub.mesh)
		if err != nil {
			return fmt.Errorf("mesh %q: %w", sub.mesh, err)
		}
		matName := sub.material
		if matName == "" {
			matName = mesh.Material
		}
		b, err := r.batchFor(f, batches, matName)
		if err != nil {
			return err
		}
		item, ok := b.byMesh[sub.mesh]
		if !ok {
			item = &drawItem{mesh: mesh}
			b.byMesh[sub.mesh] = item
			b.items = append(b.items, item)
		}
		stats.Meshes++

		models := sub.instances
		if len(models) == 0 {
			models = []math.Mat4{math.Mat4Identity()}
		}
		local := shadow.BoundingBox{Min: mesh.Min, Max: mesh.Max}
		for _, inst := range models {
			model := inst.Mul(sub.world)
			item.all = append(item.all, gpu.Instance{Model: model, Normal: model.NormalMatrix()})
			if f.frustum != nil && !local.Transform(model).Intersects(f.frustum) {
				stats.Culled++
				continue
			}
			instance := gpu.Instance{Model: model, Normal: model.Mul(view).NormalMatrix()}
			if b.material.Path == resource.PathForwardTransparent {
				centre := model.MulPoint(local.Centre())
				f.transparent = append(f.transparent, transparentDraw{
					batch:    b,
					item:     item,
					instance: instance,
					depth:    view.MulPoint(centre).Z,
				})
				continue
			}
			item.visible = append(item.visible, instance)
		}
	}

	// Back to front: the most negative view Z is furthest away.
	slices.SortStableFunc(f.transparent, func(a, b transparentDraw) int {
		switch {
		case a.depth < b.depth:
			return -1
		case a.depth > b.depth:
			return 1
		}
		return 0
	})
	return nil
}

// resolveLights converts the lights to camera space and hands out shadow
// buffers in submission order until the pools run dry.
func (r *Renderer) resolveLights(f *frame) {
	view := f.ctx.View
	next2D, nextCube := 0, 0
	exhausted := 0
	for i := range r.lights {
		sub := &r.lights[i]
		l := &sub.light
		params := l.params(sub.world, view)
		f.lights = append(f.lights, params)

		if !l.CastShadows {
			f.unshadowed = append(f.unshadowed, params)
			continue
		}

		pos := sub.world.Translation()
		dir := lightDirection(sub.world)
		dist := l.shadowDistance()
		job := shadowJob{light: len(f.lights) - 1}
		switch l.Kind {
		case LightPoint:
			if nextCube >= len(r.buffers.ShadowCube) {
				exhausted++
				f.unshadowed = append(f.unshadowed, params)
				continue
			}
			job.mode, job.index = shader.ShadowCube, nextCube
			nextCube++
			job.faces = shadow.PointLight(pos, dist)
		default:
			if next2D >= len(r.buffers.Shadow2D) {
				exhausted++
				f.unshadowed = append(f.unshadowed, params)
				continue
			}
			job.mode, job.index = shader.Shadow2D, next2D
			next2D++
			if l.Kind == LightDirectional {
				fit := shadow.DirectionalLight(dir, f.camera.frustum(f.world, f.aspect), dist, dist)
				job.proj = fit.Projection
			} else {
				job.proj = shadow.SpotLight(pos, dir, l.OuterAngle(), dist)
			}
			fr := shadow.FrustumFromViewProjection(job.proj.ViewProjection())
			job.cull = &fr
		}
		job.params = shader.ShadowParams{
			Mode:                job.mode,
			LightViewProjection: job.proj.ViewProjection(),
			LightPosition:       pos,
			Distance:            dist,
		}
		f.shadows = append(f.shadows, job)
	}
	if exhausted > 0 {
		core.Logger().Warn("shadow buffer pool exhausted; lights render unshadowed",
			"unshadowed", exhausted, "shadow_2d", len(r.buffers.Shadow2D), "shadow_cube", len(r.buffers.ShadowCube))
	}
}

// Render draws the submitted frame and presents it. Resource errors drop
// the frame: the screen is cleared, the error is logged and returned as a
// *FrameError. The submission lists are cleared on every return.
func (r *Renderer) Render() (FrameStats, error) {
	defer r.clearFrame()
	r.drainReloads()

	var stats FrameStats
	if !r.Started() {
		return stats, ErrNotStarted
	}
	if r.camera == nil {
		if !r.warnedNoCamera {
			core.Logger().Debug("render without a camera")
			r.warnedNoCamera = true
		}
		r.presentClear()
		return stats, ErrNoCamera
	}

	f, err := r.resolve(&stats)
	if err != nil {
		return r.drop(stats, "resolve", err)
	}
	if err := r.geometryPass(f, &stats); err != nil {
		return r.drop(stats, "geometry", err)
	}
	if err := r.shadowPass(f, &stats); err != nil {
		return r.drop(stats, "shadow", err)
	}
	r.lightingPass(f, &stats)
	if err := r.forwardPass(f, &stats); err != nil {
		return r.drop(stats, "forward", err)
	}
	r.postProcessPass(f, &stats)
	r.present(f)

	core.Logger().Debug("frame rendered",
		"meshes", stats.Meshes, "draws", stats.DrawCalls, "instances", stats.Instances,
		"culled", stats.Culled, "shadow_passes", stats.ShadowPasses, "light_passes", stats.LightPasses,
		"post_stages", stats.PostStages)
	return stats, nil
}

func (r *Renderer) drop(stats FrameStats, stage string, err error) (FrameStats, error) {
	ferr := &FrameError{Stage: stage, Err: err}
	core.Logger().Error("frame dropped", "stage", stage, "err", err)
	r.presentClear()
	stats.Dropped = true
	return stats, ferr
}
