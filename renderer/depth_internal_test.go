package renderer

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-core/config"
	"render-core/internal/gpu/gputest"
	"render-core/math"
	"render-core/resource"
	"render-core/scene"
	"render-core/shader"
)

type stubSurface struct{}

func (stubSurface) FramebufferSize() (int, int) { return 320, 180 }
func (stubSurface) SwapBuffers()                {}

func TestFrameWritesDepth(t *testing.T) {
	dev := gputest.New()
	cfg := config.DefaultRenderer()
	cfg.ShadowMapSize = 64
	cfg.CubeShadowMapSize = 32

	res := resource.NewManagers(dev, shader.Options{}, "")
	r, err := New(dev, res, cfg, stubSurface{})
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Release()
		res.Release()
	})
	require.NoError(t, r.Start())

	_, err = res.Materials.Make("floor", resource.DefaultMaterial())
	require.NoError(t, err)
	_, err = res.Meshes.Make("floor", scene.Plane(10, 10, 1), "floor")
	require.NoError(t, err)

	shadowDepth := dev.Texture(r.buffers.Shadow2D[0].DepthStencil().ID())
	geometryDepth := dev.Texture(r.buffers.Geometry.DepthStencil().ID())
	require.NotNil(t, shadowDepth)
	require.NotNil(t, geometryDepth)

	sun := NewLight(LightDirectional)
	sun.CastShadows = true
	sunWorld, ok := math.Mat4LookAt(math.NewVec3(3, 10, 4), math.Vec3Zero, math.Vec3Up).Inverse()
	require.True(t, ok)
	camWorld, ok := math.Mat4LookAt(math.NewVec3(0, 4, 8), math.Vec3Zero, math.Vec3Up).Inverse()
	require.True(t, ok)

	r.SubmitCamera(NewCamera(), camWorld)
	r.SubmitLight(sun, sunWorld)
	r.SubmitMesh("floor", math.Mat4RotationY(math32.Pi/8), nil)
	stats, err := r.Render()
	require.NoError(t, err)
	require.Equal(t, 1, stats.ShadowPasses)

	assert.True(t, shadowDepth.Touched, "shadow map written")
	assert.Equal(t, float32(gputest.DrawnDepth), shadowDepth.Depth)
	assert.True(t, geometryDepth.Touched, "geometry depth written")
	assert.Equal(t, float32(gputest.DrawnDepth), geometryDepth.Depth)
}
