package pass

import (
	"fmt"

	"render-core/core"
	"render-core/internal/gpu"
)

type Options struct {
	ShadowMapSize     int
	CubeShadowMapSize int
	MaxShadow2D       int
	MaxShadowCube     int
}

// Set is every buffer one frame needs, allocated and released together.
type Set struct {
	Geometry   *GeometryBuffer
	Light      *LightBuffer
	Forward    *ForwardBuffer
	Post       *PostProcessBuffer
	Shadow2D   []*Shadow2DBuffer
	ShadowCube []*ShadowCubemapBuffer
	// Default is the window framebuffer.
	Default *gpu.Framebuffer

	width, height int
}

// NewSet allocates a w x h set. If any buffer fails, the ones already
// built are released and the error is returned.
func NewSet(dev gpu.Device, w, h int, opts Options) (*Set, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("pass set: invalid size %dx%d", w, h)
	}
	s := &Set{width: w, height: h, Default: gpu.DefaultFramebuffer(dev, w, h)}

	fail := func(err error) (*Set, error) {
		s.Release()
		return nil, err
	}

	var err error
	if s.Geometry, err = NewGeometryBuffer(dev, w, h); err != nil {
		return fail(err)
	}
	if s.Light, err = NewLightBuffer(dev, s.Geometry, w, h); err != nil {
		return fail(err)
	}
	if s.Forward, err = NewForwardBuffer(dev, s.Geometry, w, h); err != nil {
		return fail(err)
	}
	if s.Post, err = NewPostProcessBuffer(dev, w, h); err != nil {
		return fail(err)
	}
	for i := 0; i < opts.MaxShadow2D; i++ {
		b, err := NewShadow2DBuffer(dev, opts.ShadowMapSize)
		if err != nil {
			return fail(err)
		}
		s.Shadow2D = append(s.Shadow2D, b)
	}
	for i := 0; i < opts.MaxShadowCube; i++ {
		b, err := NewShadowCubemapBuffer(dev, opts.CubeShadowMapSize)
		if err != nil {
			return fail(err)
		}
		s.ShadowCube = append(s.ShadowCube, b)
	}

	core.Logger().Debug("pass buffers allocated", "width", w, "height", h,
		"shadow_2d", len(s.Shadow2D), "shadow_cube", len(s.ShadowCube))
	return s, nil
}

func (s *Set) Size() (int, int) { return s.width, s.height }

// Release frees every buffer. Borrowed attachments go before the buffer
// that owns them.
func (s *Set) Release() {
	for _, b := range s.ShadowCube {
		b.Release()
	}
	for _, b := range s.Shadow2D {
		b.Release()
	}
	s.ShadowCube, s.Shadow2D = nil, nil
	if s.Post != nil {
		s.Post.Release()
	}
	if s.Forward != nil {
		s.Forward.Release()
	}
	if s.Light != nil {
		s.Light.Release()
	}
	if s.Geometry != nil {
		s.Geometry.Release()
	}
	s.Post, s.Forward, s.Light, s.Geometry = nil, nil, nil, nil
}
