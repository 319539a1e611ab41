// Package pass holds the off-screen framebuffers each render pass draws
// into. A buffer's attachment layout is fixed at construction.
package pass

import (
	"fmt"

	"render-core/internal/gpu"
)

// Geometry buffer colour attachments.
const (
	GPosition = iota
	GNormal
	GDiffuse
	GSpecular
	GGloss
	numGeometry
)

// Light buffer colour attachments. Diffuse and specular are the front
// halves of two ping-pong pairs.
const (
	LComposite = iota
	LDiffuse
	LSpecular
)

// Forward buffer colour attachments.
const (
	FComposite = iota
	FPosition
	FNormal
)

func newTarget(dev gpu.Device, format gpu.Format, w, h int) (*gpu.Texture, error) {
	return gpu.NewTexture(dev, gpu.TextureDesc{
		Kind:   gpu.Texture2D,
		Format: format,
		Width:  w,
		Height: h,
		Filter: gpu.FilterNearest,
		Wrap:   gpu.WrapClampEdge,
	})
}

// build runs steps in order, releasing fb if any step fails.
func build(fb *gpu.Framebuffer, what string, steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			fb.Release()
			return fmt.Errorf("%s buffer: %w", what, err)
		}
	}
	return nil
}

// ── Geometry ─────────────────────────────────────────────────────────────────

// GeometryBuffer is the G-buffer: view-space position and normal, diffuse,
// specular and gloss, plus the depth-stencil every later pass shares.
type GeometryBuffer struct {
	*gpu.Framebuffer
}

var geometryFormats = [numGeometry]gpu.Format{
	GPosition: gpu.FormatRGBA16F,
	GNormal:   gpu.FormatRGBA16F,
	GDiffuse:  gpu.FormatRGBA8,
	GSpecular: gpu.FormatRGBA8,
	GGloss:    gpu.FormatR16F,
}

func NewGeometryBuffer(dev gpu.Device, w, h int) (*GeometryBuffer, error) {
	fb := gpu.NewFramebuffer(dev, w, h)
	attach := func() error {
		for i, format := range geometryFormats {
			tex, err := newTarget(dev, format, w, h)
			if err != nil {
				return err
			}
			fb.Attach(i, tex, true)
		}
		ds, err := newTarget(dev, gpu.FormatDepth24Stencil8, w, h)
		if err != nil {
			return err
		}
		fb.AttachDepth(ds, gpu.AttachDepthStencil, gpu.FaceNone, true)
		fb.SetDrawColourAttachmentAll()
		fb.SetReadColourAttachment(GPosition)
		return nil
	}
	if err := build(fb, "geometry", attach, fb.Check); err != nil {
		return nil, err
	}
	return &GeometryBuffer{fb}, nil
}

// ── Ping-pong pairs ──────────────────────────────────────────────────────────

// pingPong is a front/back texture pair where the front sits at a colour
// attachment and the back is free to be sampled.
type pingPong struct {
	slot        int
	front, back *gpu.Texture
}

func newPingPong(dev gpu.Device, fb *gpu.Framebuffer, slot int, format gpu.Format, w, h int) (*pingPong, error) {
	front, err := newTarget(dev, format, w, h)
	if err != nil {
		return nil, err
	}
	back, err := newTarget(dev, format, w, h)
	if err != nil {
		front.Release()
		return nil, err
	}
	fb.Attach(slot, front, false)
	return &pingPong{slot: slot, front: front, back: back}, nil
}

func (p *pingPong) swap(fb *gpu.Framebuffer) {
	p.front, p.back = p.back, p.front
	fb.Attach(p.slot, p.front, false)
}

func (p *pingPong) release() {
	if p == nil {
		return
	}
	p.front.Release()
	p.back.Release()
}

// ── Light ────────────────────────────────────────────────────────────────────

// LightBuffer accumulates lighting. Each sub-pass samples the current
// diffuse and specular accumulation, swaps, and writes the sum into the
// other half of each pair. The G-buffer depth-stencil is borrowed so the
// stencil mask limits shading to geometry pixels.
type LightBuffer struct {
	*gpu.Framebuffer
	composite         *gpu.Texture
	diffuse, specular *pingPong
}

func NewLightBuffer(dev gpu.Device, g *GeometryBuffer, w, h int) (*LightBuffer, error) {
	fb := gpu.NewFramebuffer(dev, w, h)
	lb := &LightBuffer{Framebuffer: fb}
	attach := func() error {
		var err error
		if lb.composite, err = newTarget(dev, gpu.FormatRGBA16F, w, h); err != nil {
			return err
		}
		fb.Attach(LComposite, lb.composite, true)
		if lb.diffuse, err = newPingPong(dev, fb, LDiffuse, gpu.FormatRGBA16F, w, h); err != nil {
			return err
		}
		if lb.specular, err = newPingPong(dev, fb, LSpecular, gpu.FormatRGBA16F, w, h); err != nil {
			return err
		}
		fb.AttachDepth(g.DepthStencil(), gpu.AttachDepthStencil, gpu.FaceNone, false)
		fb.SetDrawColourAttachmentAll()
		fb.SetReadColourAttachment(LComposite)
		return nil
	}
	if err := build(fb, "light", attach, fb.Check); err != nil {
		lb.diffuse.release()
		lb.specular.release()
		return nil, err
	}
	return lb, nil
}

// Diffuse is the diffuse accumulation written by the last sub-pass.
func (l *LightBuffer) Diffuse() *gpu.Texture { return l.diffuse.front }

// Specular is the specular accumulation written by the last sub-pass.
func (l *LightBuffer) Specular() *gpu.Texture { return l.specular.front }

func (l *LightBuffer) Composite() *gpu.Texture { return l.composite }

// SwapBuffers exchanges the front and back of both accumulation pairs and
// re-attaches the new fronts. Two swaps restore the original binding.
func (l *LightBuffer) SwapBuffers() {
	l.diffuse.swap(l.Framebuffer)
	l.specular.swap(l.Framebuffer)
}

func (l *LightBuffer) Release() {
	if l.ID() == 0 {
		return
	}
	l.Framebuffer.Release()
	l.diffuse.release()
	l.specular.release()
}

// ── Forward ──────────────────────────────────────────────────────────────────

// ForwardBuffer receives the lit composite plus G position and normal,
// then forward and skybox draws on top, sharing the G-buffer depth.
type ForwardBuffer struct {
	*gpu.Framebuffer
}

func NewForwardBuffer(dev gpu.Device, g *GeometryBuffer, w, h int) (*ForwardBuffer, error) {
	fb := gpu.NewFramebuffer(dev, w, h)
	attach := func() error {
		for i, format := range []gpu.Format{FComposite: gpu.FormatRGBA16F, FPosition: gpu.FormatRGBA16F, FNormal: gpu.FormatRGBA16F} {
			tex, err := newTarget(dev, format, w, h)
			if err != nil {
				return err
			}
			fb.Attach(i, tex, true)
		}
		fb.AttachDepth(g.DepthStencil(), gpu.AttachDepthStencil, gpu.FaceNone, false)
		fb.SetDrawColourAttachmentAll()
		fb.SetReadColourAttachment(FComposite)
		return nil
	}
	if err := build(fb, "forward", attach, fb.Check); err != nil {
		return nil, err
	}
	return &ForwardBuffer{fb}, nil
}

// ── Post-process ─────────────────────────────────────────────────────────────

// PostProcessBuffer ping-pongs a single composite between stages.
type PostProcessBuffer struct {
	*gpu.Framebuffer
	composite *pingPong
}

func NewPostProcessBuffer(dev gpu.Device, w, h int) (*PostProcessBuffer, error) {
	fb := gpu.NewFramebuffer(dev, w, h)
	pp := &PostProcessBuffer{Framebuffer: fb}
	attach := func() error {
		var err error
		if pp.composite, err = newPingPong(dev, fb, 0, gpu.FormatRGBA16F, w, h); err != nil {
			return err
		}
		fb.SetDrawColourAttachment(0)
		fb.SetReadColourAttachment(0)
		return nil
	}
	if err := build(fb, "post-process", attach, fb.Check); err != nil {
		pp.composite.release()
		return nil, err
	}
	return pp, nil
}

// Composite is the image written by the last stage.
func (p *PostProcessBuffer) Composite() *gpu.Texture { return p.composite.front }

// SwapBuffers exchanges front and back composites. Two swaps restore the
// original binding.
func (p *PostProcessBuffer) SwapBuffers() {
	p.composite.swap(p.Framebuffer)
}

func (p *PostProcessBuffer) Release() {
	if p.ID() == 0 {
		return
	}
	p.Framebuffer.Release()
	p.composite.release()
}

// ── Shadows ──────────────────────────────────────────────────────────────────

func newShadowTexture(dev gpu.Device, kind gpu.TextureKind, size int) (*gpu.Texture, error) {
	wrap := gpu.WrapClampBorder
	if kind == gpu.TextureCube {
		wrap = gpu.WrapClampEdge
	}
	return gpu.NewTexture(dev, gpu.TextureDesc{
		Kind:    kind,
		Format:  gpu.FormatDepth32F,
		Width:   size,
		Height:  size,
		Filter:  gpu.FilterLinear,
		Wrap:    wrap,
		Compare: true,
	})
}

// Shadow2DBuffer is a square depth-only target with hardware depth
// comparison, for directional and spot lights.
type Shadow2DBuffer struct {
	*gpu.Framebuffer
}

func NewShadow2DBuffer(dev gpu.Device, size int) (*Shadow2DBuffer, error) {
	fb := gpu.NewFramebuffer(dev, size, size)
	attach := func() error {
		tex, err := newShadowTexture(dev, gpu.Texture2D, size)
		if err != nil {
			return err
		}
		fb.AttachDepth(tex, gpu.AttachDepth, gpu.FaceNone, true)
		fb.SetDrawNone()
		fb.SetReadColourAttachment(-1)
		return nil
	}
	if err := build(fb, "shadow", attach, fb.Check); err != nil {
		return nil, err
	}
	return &Shadow2DBuffer{fb}, nil
}

// ShadowCubemapBuffer renders a point light's depth one cube face at a
// time. It stores distance to the light over the shadow distance.
type ShadowCubemapBuffer struct {
	*gpu.Framebuffer
}

func NewShadowCubemapBuffer(dev gpu.Device, size int) (*ShadowCubemapBuffer, error) {
	fb := gpu.NewFramebuffer(dev, size, size)
	attach := func() error {
		tex, err := newShadowTexture(dev, gpu.TextureCube, size)
		if err != nil {
			return err
		}
		fb.AttachDepth(tex, gpu.AttachDepth, 0, true)
		fb.SetDrawNone()
		fb.SetReadColourAttachment(-1)
		return nil
	}
	if err := build(fb, "cube shadow", attach, fb.Check); err != nil {
		return nil, err
	}
	return &ShadowCubemapBuffer{fb}, nil
}

// BindFace attaches face i (+X, -X, +Y, -Y, +Z, -Z) of the depth cube.
func (s *ShadowCubemapBuffer) BindFace(i int) {
	if i < 0 || i > 5 {
		panic(fmt.Sprintf("pass: cube face %d out of range", i))
	}
	s.AttachDepth(s.DepthStencil(), gpu.AttachDepth, i, true)
}
