package renderer

import (
	"fmt"

	"render-core/core"
	"render-core/internal/gpu"
	"render-core/math"
	"render-core/pass"
	"render-core/shader"
	"render-core/shadow"
)

// stencilGeometry marks pixels covered by opaque geometry. Lighting only
// shades marked pixels and the skybox only fills unmarked ones.
const stencilGeometry = 0x10

var (
	depthWrite = gpu.DepthState{Test: true, Write: true, Func: gpu.CompareLess}
	depthRead  = gpu.DepthState{Test: true, Func: gpu.CompareLess}
	depthOff   = gpu.DepthState{}

	stencilMark    = gpu.StencilState{Enabled: true, Func: gpu.CompareAlways, Ref: stencilGeometry, Mask: 0xff, Write: true}
	stencilInside  = gpu.StencilState{Enabled: true, Func: gpu.CompareEqual, Ref: stencilGeometry, Mask: 0xff}
	stencilOutside = gpu.StencilState{Enabled: true, Func: gpu.CompareNotEqual, Ref: stencilGeometry, Mask: 0xff}
	stencilOff     = gpu.StencilState{}
)

// geometryUnits are where the lighting pass samples each G-buffer
// attachment.
var geometryUnits = [...]shader.TextureUnit{
	pass.GPosition: shader.UnitFragPosition,
	pass.GNormal:   shader.UnitFragNormal,
	pass.GDiffuse:  shader.UnitFragDiffuse,
	pass.GSpecular: shader.UnitFragSpecular,
	pass.GGloss:    shader.UnitFragGloss,
}

func (r *Renderer) state(depth gpu.DepthState, blend gpu.BlendMode, cull gpu.CullMode, stencil gpu.StencilState) {
	r.dev.SetDepth(depth)
	r.dev.SetBlend(blend)
	r.dev.SetCull(cull)
	r.dev.SetStencil(stencil)
}

// useMaterial makes s current with b's textures and parameters.
func useMaterial(s shader.MaterialShader, b *batch, ctx *shader.PassContext) {
	s.Program().Use()
	s.SetPassUniforms(ctx)
	b.bindTextures()
	s.SetMaterial(&b.params)
}

func (r *Renderer) draw(item *drawItem, instances []gpu.Instance, stats *FrameStats) error {
	if len(instances) == 0 {
		return nil
	}
	va := item.mesh.VertexArray()
	if err := va.SetInstances(instances); err != nil {
		return fmt.Errorf("mesh %q instances: %w", item.mesh.Name, err)
	}
	va.Draw(len(instances))
	stats.DrawCalls++
	stats.Instances += len(instances)
	return nil
}

// ── Geometry ────────────────────────────────────────────────────────────────

func (r *Renderer) geometryPass(f *frame, stats *FrameStats) error {
	g := r.buffers.Geometry
	g.Bind()
	g.SetDrawColourAttachmentAll()
	r.state(depthWrite, gpu.BlendNone, gpu.CullBack, stencilMark)
	g.ClearColourAll(core.Color{})
	g.ClearDepthStencil(1, 0)

	for _, b := range f.deferred {
		useMaterial(b.shader, b, &f.ctx)
		for _, item := range b.items {
			if err := r.draw(item, item.visible, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

// ── Shadows ─────────────────────────────────────────────────────────────────

func (r *Renderer) shadowPass(f *frame, stats *FrameStats) error {
	if len(f.shadows) == 0 {
		return nil
	}
	r.state(depthWrite, gpu.BlendNone, gpu.CullNone, stencilOff)
	for i := range f.shadows {
		job := &f.shadows[i]
		var err error
		if job.mode == shader.ShadowCube {
			err = r.cubeShadow(f, job, stats)
		} else {
			err = r.flatShadow(f, job, stats)
		}
		if err != nil {
			return err
		}
		stats.ShadowPasses++
	}
	return nil
}

// casting returns the instances of item whose bounds reach the light's
// frustum. A nil frustum keeps them all.
func casting(item *drawItem, fr *shadow.Frustum) []gpu.Instance {
	if fr == nil {
		return item.all
	}
	local := shadow.BoundingBox{Min: item.mesh.Min, Max: item.mesh.Max}
	var out []gpu.Instance
	for _, inst := range item.all {
		if local.Transform(inst.Model).Intersects(fr) {
			out = append(out, inst)
		}
	}
	return out
}

func (r *Renderer) flatShadow(f *frame, job *shadowJob, stats *FrameStats) error {
	buf := r.buffers.Shadow2D[job.index]
	buf.Bind()
	buf.ClearDepthStencil(1, 0)

	ctx := f.ctx
	ctx.ViewProjection = job.params.LightViewProjection
	for _, b := range f.casters {
		useMaterial(f.shadow2D, b, &ctx)
		for _, item := range b.items {
			if err := r.draw(item, casting(item, job.cull), stats); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) cubeShadow(f *frame, job *shadowJob, stats *FrameStats) error {
	buf := r.buffers.ShadowCube[job.index]
	buf.Bind()

	ctx := f.ctx
	var culls [6]shadow.Frustum
	for i, p := range job.faces {
		ctx.FaceViewProjections[i] = p.ViewProjection()
		culls[i] = shadow.FrustumFromViewProjection(ctx.FaceViewProjections[i])
	}
	ctx.LightPosition = job.params.LightPosition
	ctx.ShadowDistance = job.params.Distance

	for face := range 6 {
		buf.BindFace(face)
		buf.ClearDepthStencil(1, 0)
		for _, b := range f.casters {
			useMaterial(f.shadowCube, b, &ctx)
			f.shadowCube.SetFace(face)
			for _, item := range b.items {
				if err := r.draw(item, casting(item, &culls[face]), stats); err != nil {
					return err
				}
			}
		}
		stats.ShadowFaces++
	}
	return nil
}

// ── Lighting ────────────────────────────────────────────────────────────────

func (r *Renderer) lightingPass(f *frame, stats *FrameStats) {
	lb := r.buffers.Light
	g := r.buffers.Geometry
	lb.Bind()
	lb.SetDrawColourAttachmentAll()
	r.state(depthOff, gpu.BlendNone, gpu.CullNone, stencilOff)
	lb.ClearColour(pass.LComposite, r.cfg.ClearColour.Color())
	lb.ClearColour(pass.LDiffuse, core.Color{})
	lb.ClearColour(pass.LSpecular, core.Color{})

	r.dev.SetStencil(stencilInside)
	for i, unit := range geometryUnits {
		g.Colour(i).Bind(int(unit))
	}
	f.light.Program().Use()
	f.light.SetPassUniforms(&f.ctx)

	// Unshadowed lights go in batches of MaxLights. With nothing else to
	// draw one ambient-only sub-pass still fills the composite.
	if len(f.unshadowed) > 0 || len(f.shadows) == 0 {
		for first := 0; ; {
			first += r.lightSubPass(f, f.unshadowed, first, shader.ShadowParams{}, nil, stats)
			if first >= len(f.unshadowed) {
				break
			}
		}
	}
	for _, job := range f.shadows {
		var tex *gpu.Texture
		if job.mode == shader.ShadowCube {
			tex = r.buffers.ShadowCube[job.index].DepthStencil()
		} else {
			tex = r.buffers.Shadow2D[job.index].DepthStencil()
		}
		r.lightSubPass(f, f.lights[job.light:job.light+1], 0, job.params, tex, stats)
	}
}

// lightSubPass adds up to MaxLights lights from lights[first] to the
// accumulation buffers and returns how many it drew.
func (r *Renderer) lightSubPass(f *frame, lights []shader.LightParams, first int, sh shader.ShadowParams, shadowMap *gpu.Texture, stats *FrameStats) int {
	lb := r.buffers.Light
	lb.Diffuse().Bind(int(shader.UnitLightDiffuse))
	lb.Specular().Bind(int(shader.UnitLightSpecular))
	lb.SwapBuffers()

	n := f.light.SetLights(first, lights)
	f.light.SetShadow(sh)
	switch sh.Mode {
	case shader.Shadow2D:
		shadowMap.Bind(int(shader.UnitShadow2D))
	case shader.ShadowCube:
		shadowMap.Bind(int(shader.UnitShadowCube))
	}
	r.screen.DrawTriangle()
	stats.LightPasses++
	return n
}

// ── Forward ─────────────────────────────────────────────────────────────────

func (r *Renderer) forwardPass(f *frame, stats *FrameStats) error {
	g := r.buffers.Geometry
	lb := r.buffers.Light
	fb := r.buffers.Forward

	copyInto := func(src *gpu.Framebuffer, from, to int) {
		src.SetReadColourAttachment(from)
		fb.SetDrawColourAttachment(to)
		src.BlitTo(fb.Framebuffer, true, false, false)
	}
	copyInto(lb.Framebuffer, pass.LComposite, pass.FComposite)
	copyInto(g.Framebuffer, pass.GPosition, pass.FPosition)
	copyInto(g.Framebuffer, pass.GNormal, pass.FNormal)
	g.SetReadColourAttachment(pass.GPosition)

	fb.Bind()
	fb.SetDrawColourAttachmentAll()
	r.state(depthWrite, gpu.BlendNone, gpu.CullBack, stencilMark)
	for _, b := range f.opaque {
		useForward(b, &f.ctx, f.lights)
		for _, item := range b.items {
			if err := r.draw(item, item.visible, stats); err != nil {
				return err
			}
		}
	}

	fb.SetDrawColourAttachment(pass.FComposite)
	if f.camera.Skybox.Enabled {
		if err := r.skyboxDraw(f, stats); err != nil {
			return err
		}
	}
	return r.transparentDraws(f, stats)
}

func useForward(b *batch, ctx *shader.PassContext, lights []shader.LightParams) {
	useMaterial(b.shader, b, ctx)
	if lr, ok := b.shader.(shader.LightReceiver); ok {
		lr.SetLights(0, lights)
	}
}

func (r *Renderer) skyboxDraw(f *frame, stats *FrameStats) error {
	r.state(depthOff, gpu.BlendNone, gpu.CullNone, stencilOutside)
	f.sky.Program().Use()
	f.sky.SetPassUniforms(&f.ctx)
	if f.skyTexture != nil {
		f.skyTexture.Bind(int(shader.UnitSkybox))
	}
	if err := r.skybox.SetInstances([]gpu.Instance{{Model: math.Mat4Identity(), Normal: math.Mat3Identity()}}); err != nil {
		return fmt.Errorf("skybox instances: %w", err)
	}
	r.skybox.Draw(1)
	stats.DrawCalls++
	stats.Instances++
	return nil
}

// transparentDraws blends transparent instances back to front. Runs of
// the same mesh share one instanced draw.
func (r *Renderer) transparentDraws(f *frame, stats *FrameStats) error {
	if len(f.transparent) == 0 {
		return nil
	}
	r.state(depthRead, gpu.BlendAlpha, gpu.CullBack, stencilOff)

	var current *batch
	var run []gpu.Instance
	for i := 0; i < len(f.transparent); {
		d := f.transparent[i]
		run = run[:0]
		j := i
		for ; j < len(f.transparent) && f.transparent[j].item == d.item; j++ {
			run = append(run, f.transparent[j].instance)
		}
		if d.batch != current {
			useForward(d.batch, &f.ctx, f.lights)
			current = d.batch
		}
		if err := r.draw(d.item, run, stats); err != nil {
			return err
		}
		i = j
	}
	return nil
}

// ── Post-process ────────────────────────────────────────────────────────────

func (r *Renderer) postProcessPass(f *frame, stats *FrameStats) {
	fb := r.buffers.Forward
	pp := r.buffers.Post

	fb.SetReadColourAttachment(pass.FComposite)
	fb.BlitTo(pp.Framebuffer, true, false, false)
	if len(f.post) == 0 {
		return
	}

	pp.Bind()
	r.state(depthOff, gpu.BlendNone, gpu.CullNone, stencilOff)
	fb.Colour(pass.FPosition).Bind(int(shader.UnitFragPosition))
	fb.Colour(pass.FNormal).Bind(int(shader.UnitFragNormal))
	fb.DepthStencil().Bind(int(shader.UnitDepthStencil))
	for _, s := range f.post {
		pp.Composite().Bind(int(shader.UnitComposite))
		pp.SwapBuffers()
		s.Program().Use()
		s.SetPassUniforms(&f.ctx)
		r.screen.DrawTriangle()
		stats.PostStages++
	}
}

// ── Present ─────────────────────────────────────────────────────────────────

// present copies the final composite into the camera's viewport on the
// default framebuffer and swaps.
func (r *Renderer) present(f *frame) {
	def := r.buffers.Default
	pp := r.buffers.Post
	def.Bind()
	def.ClearColourAll(r.cfg.ClearColour.Color())
	def.ClearDepthStencil(1, 0)

	w, h := r.buffers.Size()
	x, y, vw, vh := f.camera.viewport().Pixels(w, h)
	pp.SetReadColourAttachment(0)
	pp.BlitToRect(def, [4]int32{x, y, x + vw, y + vh}, true, false, false)
	r.surface.SwapBuffers()
}

// presentClear shows the clear colour alone.
func (r *Renderer) presentClear() {
	def := r.buffers.Default
	def.Bind()
	r.dev.SetStencil(stencilOff)
	def.ClearColourAll(r.cfg.ClearColour.Color())
	def.ClearDepthStencil(1, 0)
	r.surface.SwapBuffers()
}
