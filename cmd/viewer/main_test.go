package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-core/config"
	"render-core/internal/gpu/gputest"
	"render-core/renderer"
	"render-core/resource"
	"render-core/shader"
)

type sizedSurface struct{ w, h int }

func (s *sizedSurface) FramebufferSize() (int, int) { return s.w, s.h }
func (s *sizedSurface) SwapBuffers()                {}

func TestResizeRestartsAfterZeroSize(t *testing.T) {
	dev := gputest.New()
	cfg := config.DefaultRenderer()
	cfg.ShadowMapSize = 64
	cfg.CubeShadowMapSize = 32
	res := resource.NewManagers(dev, shader.Options{}, "")
	surface := &sizedSurface{w: 320, h: 180}
	r, err := renderer.New(dev, res, cfg, surface)
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Release()
		res.Release()
	})
	require.NoError(t, r.Start())

	surface.w, surface.h = 0, 0
	require.NoError(t, resize(r, 0, 0))
	assert.False(t, r.Started())

	surface.w, surface.h = 640, 360
	require.NoError(t, resize(r, 640, 360))
	assert.True(t, r.Started())

	require.NoError(t, resize(r, 800, 600))
	assert.True(t, r.Started())
}
