package pass_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-core/core"
	"render-core/internal/gpu"
	"render-core/internal/gpu/gputest"
	"render-core/pass"
)

var opts = pass.Options{ShadowMapSize: 256, CubeShadowMapSize: 128, MaxShadow2D: 2, MaxShadowCube: 1}

func TestSetAllocatesAndReleases(t *testing.T) {
	dev := gputest.New()
	s, err := pass.NewSet(dev, 320, 200, opts)
	require.NoError(t, err)

	w, h := s.Size()
	assert.Equal(t, 320, w)
	assert.Equal(t, 200, h)
	assert.Len(t, s.Shadow2D, 2)
	assert.Len(t, s.ShadowCube, 1)
	assert.Equal(t, 5, s.Geometry.NumColour())

	// The light and forward buffers borrow the geometry depth-stencil.
	ds := s.Geometry.DepthStencil()
	assert.Same(t, ds, s.Light.DepthStencil())
	assert.Same(t, ds, s.Forward.DepthStencil())

	shadow := dev.Texture(s.Shadow2D[0].DepthStencil().ID())
	assert.True(t, shadow.Desc.Compare)
	assert.Equal(t, gpu.FormatDepth32F, shadow.Desc.Format)
	assert.Equal(t, 256, shadow.Desc.Width)
	cube := dev.Texture(s.ShadowCube[0].DepthStencil().ID())
	assert.Equal(t, gpu.TextureCube, cube.Desc.Kind)

	// geometry 6, light 5, forward 3, post 2, shadows 3
	assert.Equal(t, 19, dev.LiveTextures())
	assert.Equal(t, 7, dev.LiveFramebuffers())

	s.Release()
	assert.Zero(t, dev.LiveTextures())
	assert.Zero(t, dev.LiveFramebuffers())
	s.Release()
}

func TestSetRollsBackOnFailure(t *testing.T) {
	dev := gputest.New()
	dev.FailFramebuffer = true
	_, err := pass.NewSet(dev, 64, 64, opts)
	assert.ErrorIs(t, err, gpu.ErrFramebufferIncomplete)
	assert.Zero(t, dev.LiveTextures())
	assert.Zero(t, dev.LiveFramebuffers())

	dev = gputest.New()
	dev.FailAlloc = true
	_, err = pass.NewSet(dev, 64, 64, opts)
	assert.ErrorIs(t, err, gpu.ErrOutOfMemory)
	assert.Zero(t, dev.LiveTextures())
	assert.Zero(t, dev.LiveFramebuffers())

	_, err = pass.NewSet(gputest.New(), 0, 64, opts)
	assert.Error(t, err)
}

func TestLightBufferSwapIsInvolution(t *testing.T) {
	dev := gputest.New()
	s, err := pass.NewSet(dev, 32, 32, opts)
	require.NoError(t, err)
	defer s.Release()

	lb := s.Light
	diffuse, specular := lb.Diffuse(), lb.Specular()
	fb := dev.Framebuffer(lb.ID())
	assert.Equal(t, diffuse.ID(), fb.Colour[pass.LDiffuse])

	lb.SwapBuffers()
	assert.NotSame(t, diffuse, lb.Diffuse())
	assert.NotSame(t, specular, lb.Specular())
	assert.Equal(t, lb.Diffuse().ID(), fb.Colour[pass.LDiffuse])
	assert.Equal(t, lb.Specular().ID(), fb.Colour[pass.LSpecular])

	lb.SwapBuffers()
	assert.Same(t, diffuse, lb.Diffuse())
	assert.Same(t, specular, lb.Specular())
	assert.Equal(t, diffuse.ID(), fb.Colour[pass.LDiffuse])
}

func TestLightAccumulationReadsPreviousWrite(t *testing.T) {
	dev := gputest.New()
	s, err := pass.NewSet(dev, 32, 32, opts)
	require.NoError(t, err)
	defer s.Release()

	lb := s.Light
	lb.Bind()
	lb.ClearColour(pass.LDiffuse, core.ColorBlack)

	// Sub-pass N writes into the front; after the swap it is the back,
	// which sub-pass N+1 samples.
	written := lb.Diffuse()
	dev.Texture(written.ID()).Fill = core.ColorRed
	lb.SwapBuffers()
	assert.NotSame(t, written, lb.Diffuse())
	lb.SwapBuffers()
	assert.Same(t, written, lb.Diffuse())
	assert.Equal(t, core.ColorRed, dev.Texture(lb.Diffuse().ID()).Fill)
}

func TestPostProcessSwap(t *testing.T) {
	dev := gputest.New()
	pp, err := pass.NewPostProcessBuffer(dev, 16, 16)
	require.NoError(t, err)

	first := pp.Composite()
	pp.SwapBuffers()
	second := pp.Composite()
	assert.NotSame(t, first, second)
	assert.Equal(t, second.ID(), dev.Framebuffer(pp.ID()).Colour[0])
	pp.SwapBuffers()
	assert.Same(t, first, pp.Composite())

	pp.Release()
	assert.Zero(t, dev.LiveTextures())
	pp.Release()
}

func TestCubeBindFace(t *testing.T) {
	dev := gputest.New()
	cube, err := pass.NewShadowCubemapBuffer(dev, 64)
	require.NoError(t, err)
	defer cube.Release()

	for i := 0; i < 6; i++ {
		cube.BindFace(i)
		assert.Equal(t, i, dev.Framebuffer(cube.ID()).Face)
	}
	assert.Panics(t, func() { cube.BindFace(6) })
}
