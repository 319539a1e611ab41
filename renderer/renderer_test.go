package renderer_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-core/config"
	"render-core/core"
	"render-core/internal/gpu"
	"render-core/internal/gpu/gputest"
	"render-core/math"
	"render-core/renderer"
	"render-core/resource"
	"render-core/shader"
)

type fakeSurface struct {
	w, h  int
	swaps int
}

func (s *fakeSurface) FramebufferSize() (int, int) { return s.w, s.h }
func (s *fakeSurface) SwapBuffers()                { s.swaps++ }

var clearColour = config.Colour{0.2, 0.3, 0.4, 1}

type fixture struct {
	dev     *gputest.Device
	res     *resource.Managers
	surface *fakeSurface
	r       *renderer.Renderer
}

func newFixture(t *testing.T, edit func(*config.Renderer)) *fixture {
	t.Helper()
	dev := gputest.New()
	dev.DrawColour = core.ColorRed

	cfg := config.DefaultRenderer()
	cfg.ClearColour = clearColour
	cfg.ShadowMapSize = 64
	cfg.CubeShadowMapSize = 32
	if edit != nil {
		edit(&cfg)
	}

	res := resource.NewManagers(dev, shader.Options{}, cfg.ShaderDir)
	surface := &fakeSurface{w: 320, h: 180}
	r, err := renderer.New(dev, res, cfg, surface)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	t.Cleanup(func() {
		r.Release()
		res.Release()
	})
	return &fixture{dev: dev, res: res, surface: surface, r: r}
}

func quad() *core.MeshData {
	n := math.NewVec3(0, 0, 1)
	return &core.MeshData{
		Vertices: []core.Vertex{
			{Position: math.NewVec3(-1, -1, 0), Normal: n},
			{Position: math.NewVec3(1, -1, 0), Normal: n},
			{Position: math.NewVec3(1, 1, 0), Normal: n},
			{Position: math.NewVec3(-1, 1, 0), Normal: n},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// addMesh registers a quad called name with its own material.
func (fx *fixture) addMesh(t *testing.T, name string, mat resource.Material) {
	t.Helper()
	_, err := fx.res.Materials.Make(name, mat)
	require.NoError(t, err)
	_, err = fx.res.Meshes.Make(name, quad(), name)
	require.NoError(t, err)
}

func (fx *fixture) submitCamera() {
	fx.r.SubmitCamera(renderer.NewCamera(), math.Mat4Translation(math.NewVec3(0, 0, 5)))
}

// lightAt places a light at pos pointing at target.
func lightAt(t *testing.T, pos, target math.Vec3) math.Mat4 {
	t.Helper()
	world, ok := math.Mat4LookAt(pos, target, math.Vec3Up).Inverse()
	require.True(t, ok)
	return world
}

func TestRenderEmptyScene(t *testing.T) {
	fx := newFixture(t, nil)
	fx.submitCamera()

	stats, err := fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, clearColour.Color(), fx.dev.Default.Fill)
	assert.Equal(t, 1, fx.surface.swaps)
	assert.Zero(t, stats.DrawCalls)
	assert.Equal(t, 1, stats.LightPasses, "ambient-only sub-pass")
	assert.False(t, stats.Dropped)
}

func TestRenderDrawsGeometry(t *testing.T) {
	fx := newFixture(t, nil)
	fx.addMesh(t, "floor", resource.DefaultMaterial())

	fx.submitCamera()
	fx.r.SubmitLight(renderer.NewLight(renderer.LightPoint), math.Mat4Translation(math.NewVec3(0, 2, 2)))
	fx.r.SubmitMesh("floor", math.Mat4Identity(), nil)

	stats, err := fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Meshes)
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, 1, stats.Instances)
	assert.Equal(t, core.ColorRed, fx.dev.Default.Fill, "lit geometry reaches the screen")
	assert.Equal(t, 1, fx.surface.swaps)
}

func TestRenderInstancesAndCulling(t *testing.T) {
	instances := []math.Mat4{
		math.Mat4Identity(),
		math.Mat4Translation(math.NewVec3(2, 0, 0)),
		math.Mat4Translation(math.NewVec3(0, 0, 20)), // behind the camera
	}

	fx := newFixture(t, nil)
	fx.addMesh(t, "tile", resource.DefaultMaterial())
	fx.submitCamera()
	fx.r.SubmitMesh("tile", math.Mat4Identity(), instances)
	stats, err := fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, 2, stats.Instances)
	assert.Equal(t, 1, stats.Culled)

	fx = newFixture(t, func(c *config.Renderer) { c.FrustumCulling = false })
	fx.addMesh(t, "tile", resource.DefaultMaterial())
	fx.submitCamera()
	fx.r.SubmitMesh("tile", math.Mat4Identity(), instances)
	stats, err = fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Instances)
	assert.Zero(t, stats.Culled)
}

func TestRenderLifecycleErrors(t *testing.T) {
	fx := newFixture(t, nil)

	_, err := fx.r.Render()
	assert.ErrorIs(t, err, renderer.ErrNoCamera)
	assert.Equal(t, clearColour.Color(), fx.dev.Default.Fill)
	assert.Equal(t, 1, fx.surface.swaps)

	fx.r.Stop()
	fx.submitCamera()
	_, err = fx.r.Render()
	assert.ErrorIs(t, err, renderer.ErrNotStarted)
	assert.Equal(t, 1, fx.surface.swaps, "nothing is presented before Start")

	// The camera submitted while stopped was discarded with the frame.
	require.NoError(t, fx.r.Start())
	_, err = fx.r.Render()
	assert.ErrorIs(t, err, renderer.ErrNoCamera)
}

func TestRenderDropsFrame(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, fx *fixture)
		notFound bool
	}{
		{
			name:     "missing mesh",
			setup:    func(t *testing.T, fx *fixture) { fx.r.SubmitMesh("ghost", math.Mat4Identity(), nil) },
			notFound: true,
		},
		{
			name: "missing material override",
			setup: func(t *testing.T, fx *fixture) {
				fx.addMesh(t, "tile", resource.DefaultMaterial())
				fx.r.SubmitMeshMaterial("tile", "ghost", math.Mat4Identity(), nil)
			},
			notFound: true,
		},
		{
			name: "missing shader",
			setup: func(t *testing.T, fx *fixture) {
				mat := resource.DefaultMaterial()
				mat.Shader = "toon"
				fx.addMesh(t, "tile", mat)
				fx.r.SubmitMesh("tile", math.Mat4Identity(), nil)
			},
			notFound: true,
		},
		{
			name: "missing texture",
			setup: func(t *testing.T, fx *fixture) {
				mat := resource.DefaultMaterial()
				mat.Textures = map[shader.TextureUnit]string{shader.UnitDiffuse: "bricks"}
				fx.addMesh(t, "tile", mat)
				fx.r.SubmitMesh("tile", math.Mat4Identity(), nil)
			},
			notFound: true,
		},
		{
			name: "deferred material with forward shader",
			setup: func(t *testing.T, fx *fixture) {
				mat := resource.DefaultMaterial()
				mat.Shader = shader.NameForward
				fx.addMesh(t, "tile", mat)
				fx.r.SubmitMesh("tile", math.Mat4Identity(), nil)
			},
		},
		{
			name: "flat skybox texture",
			setup: func(t *testing.T, fx *fixture) {
				_, err := fx.res.Textures.MakeSolid("sky", core.ColorBlue)
				require.NoError(t, err)
				cam := renderer.NewCamera()
				cam.Skybox = renderer.Skybox{Enabled: true, Texture: "sky"}
				fx.r.SubmitCamera(cam, math.Mat4Identity())
			},
		},
		{
			name: "zero-value camera",
			setup: func(t *testing.T, fx *fixture) {
				fx.r.SubmitCamera(renderer.Camera{}, math.Mat4Identity())
			},
		},
		{
			name: "far plane before near",
			setup: func(t *testing.T, fx *fixture) {
				cam := renderer.NewCamera()
				cam.Near, cam.Far = 10, 1
				fx.r.SubmitCamera(cam, math.Mat4Identity())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, nil)
			fx.submitCamera()
			tt.setup(t, fx)

			stats, err := fx.r.Render()
			var ferr *renderer.FrameError
			require.True(t, errors.As(err, &ferr), "got %v", err)
			if tt.notFound {
				assert.ErrorIs(t, err, resource.ErrNotFound)
			}
			assert.True(t, stats.Dropped)
			assert.Zero(t, stats.DrawCalls)
			assert.Equal(t, clearColour.Color(), fx.dev.Default.Fill)
			assert.Equal(t, 1, fx.surface.swaps)

			// The bad submission does not carry over.
			fx.submitCamera()
			_, err = fx.r.Render()
			assert.NoError(t, err)
		})
	}
}

func TestShadowPasses(t *testing.T) {
	fx := newFixture(t, nil)
	fx.addMesh(t, "floor", resource.DefaultMaterial())
	floor := math.Mat4RotationX(-math32.Pi / 2)

	point := renderer.NewLight(renderer.LightPoint)
	point.CastShadows = true
	fx.submitCamera()
	fx.r.SubmitMesh("floor", floor, nil)
	fx.r.SubmitLight(point, math.Mat4Translation(math.NewVec3(0, 3, 0)))
	stats, err := fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ShadowPasses)
	assert.Equal(t, 6, stats.ShadowFaces)
	assert.Equal(t, 1, stats.LightPasses, "a lone shadowed light needs no ambient pass")
	assert.Greater(t, stats.DrawCalls, 1, "the floor is drawn into the cube")

	sun := renderer.NewLight(renderer.LightDirectional)
	sun.CastShadows = true
	spot := renderer.NewLight(renderer.LightSpot)
	spot.CastShadows = true
	fx.submitCamera()
	fx.r.SubmitMesh("floor", floor, nil)
	fx.r.SubmitLight(sun, lightAt(t, math.NewVec3(3, 10, 4), math.Vec3Zero))
	fx.r.SubmitLight(spot, lightAt(t, math.NewVec3(0, 6, 1), math.Vec3Zero))
	stats, err = fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ShadowPasses)
	assert.Zero(t, stats.ShadowFaces)
	assert.Equal(t, 2, stats.LightPasses)
}

func TestShadowPoolExhaustion(t *testing.T) {
	fx := newFixture(t, func(c *config.Renderer) { c.MaxShadow2D = 1 })
	fx.addMesh(t, "floor", resource.DefaultMaterial())

	sun := renderer.NewLight(renderer.LightDirectional)
	sun.CastShadows = true
	fx.submitCamera()
	fx.r.SubmitMesh("floor", math.Mat4RotationX(-math32.Pi/2), nil)
	fx.r.SubmitLight(sun, lightAt(t, math.NewVec3(3, 10, 4), math.Vec3Zero))
	fx.r.SubmitLight(sun, lightAt(t, math.NewVec3(-3, 10, 4), math.Vec3Zero))

	stats, err := fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ShadowPasses)
	// The second sun falls back to an unshadowed sub-pass.
	assert.Equal(t, 2, stats.LightPasses)
}

func TestLightChunking(t *testing.T) {
	for _, tt := range []struct {
		lights, passes, last int
	}{
		{0, 1, 0},
		{1, 1, 1},
		{8, 1, 8},
		{9, 2, 1},
		{17, 3, 1},
	} {
		fx := newFixture(t, nil)
		fx.submitCamera()
		for i := 0; i < tt.lights; i++ {
			fx.r.SubmitLight(renderer.NewLight(renderer.LightPoint), math.Mat4Translation(math.NewVec3(float32(i), 1, 0)))
		}
		stats, err := fx.r.Render()
		require.NoError(t, err)
		assert.Equal(t, tt.passes, stats.LightPasses, "%d lights", tt.lights)

		light, err := fx.res.Shaders.Lookup(shader.NameLight)
		require.NoError(t, err)
		n, ok := fx.dev.Uniform(light.Program().ID(), "u_num_lights")
		require.True(t, ok)
		assert.Equal(t, int32(tt.last), n.I[0], "%d lights", tt.lights)
	}
}

func TestSetAtmosphere(t *testing.T) {
	fx := newFixture(t, nil)
	ambient := core.Color{R: 0.3, G: 0.2, B: 0.1, A: 1}
	fx.r.SetAtmosphere(ambient, -1, core.ColorBlue)
	fx.submitCamera()
	fx.r.SubmitLight(renderer.NewLight(renderer.LightPoint), math.Mat4Identity())
	_, err := fx.r.Render()
	require.NoError(t, err)

	light, err := fx.res.Shaders.Lookup(shader.NameLight)
	require.NoError(t, err)
	got, ok := fx.dev.Uniform(light.Program().ID(), "u_ambient")
	require.True(t, ok)
	assert.Equal(t, gpu.Colour(ambient).F, got.F)
}

func TestPostProcessStages(t *testing.T) {
	fx := newFixture(t, func(c *config.Renderer) {
		c.PostProcess = []string{shader.NameSSAO, shader.NameFog, shader.NameBloom, shader.NameTonemap}
	})
	fx.submitCamera()
	stats, err := fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.PostStages)
	assert.Equal(t, core.ColorRed, fx.dev.Default.Fill)

	_, err = renderer.New(fx.dev, fx.res, func() config.Renderer {
		c := config.DefaultRenderer()
		c.PostProcess = []string{shader.NameLight}
		c.ShaderDir = t.TempDir()
		return c
	}(), fx.surface)
	assert.Error(t, err, "the light shader is not a post-process stage")
}

func TestSkybox(t *testing.T) {
	fx := newFixture(t, nil)
	var faces [6]resource.TextureData
	for i := range faces {
		faces[i] = resource.SolidTexture(core.ColorBlue)
	}
	_, err := fx.res.Textures.MakeCubemap("sky", faces)
	require.NoError(t, err)

	cam := renderer.NewCamera()
	cam.Skybox = renderer.Skybox{Enabled: true, Texture: "sky"}
	fx.r.SubmitCamera(cam, math.Mat4Identity())
	stats, err := fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, core.ColorRed, fx.dev.Default.Fill, "the skybox fills the empty screen")

	sky, err := fx.res.Textures.Lookup("sky")
	require.NoError(t, err)
	assert.Equal(t, sky.ID(), fx.dev.BoundTexture(int(shader.UnitSkybox)))
}

func TestSubmitCameraReplaces(t *testing.T) {
	fx := newFixture(t, nil)
	withSky := renderer.NewCamera()
	withSky.Skybox.Enabled = true
	fx.r.SubmitCamera(withSky, math.Mat4Identity())
	fx.submitCamera()

	stats, err := fx.r.Render()
	require.NoError(t, err)
	assert.Zero(t, stats.DrawCalls, "the later camera has no skybox")
}

func TestForwardPaths(t *testing.T) {
	fx := newFixture(t, nil)
	opaque := resource.DefaultMaterial()
	opaque.Shader = shader.NameForward
	opaque.Path = resource.PathForwardOpaque
	fx.addMesh(t, "pillar", opaque)

	glass := opaque
	glass.Path = resource.PathForwardTransparent
	glass.Diffuse.A = 0.4
	fx.addMesh(t, "glass", glass)

	fx.submitCamera()
	fx.r.SubmitMesh("pillar", math.Mat4Translation(math.NewVec3(0, 0, -3)), nil)
	fx.r.SubmitMesh("glass", math.Mat4Identity(), []math.Mat4{
		math.Mat4Translation(math.NewVec3(0, 0, -1)),
		math.Mat4Translation(math.NewVec3(0, 0, 1)),
		math.Mat4Translation(math.NewVec3(0, 0, -2)),
	})

	stats, err := fx.r.Render()
	require.NoError(t, err)
	// One opaque draw, and the sorted glass panes stay one instanced run.
	assert.Equal(t, 2, stats.DrawCalls)
	assert.Equal(t, 4, stats.Instances)
}

func TestStopStartReplaysFrame(t *testing.T) {
	fx := newFixture(t, nil)
	fx.addMesh(t, "floor", resource.DefaultMaterial())
	point := renderer.NewLight(renderer.LightPoint)
	point.CastShadows = true

	frame := func() []string {
		fx.dev.ResetTrace()
		fx.submitCamera()
		fx.r.SubmitMesh("floor", math.Mat4RotationX(-math32.Pi/2), nil)
		fx.r.SubmitLight(point, math.Mat4Translation(math.NewVec3(0, 3, 0)))
		_, err := fx.r.Render()
		require.NoError(t, err)
		return fx.dev.Trace()
	}

	first := frame()
	fx.r.Stop()
	require.NoError(t, fx.r.Start())
	assert.Equal(t, first, frame())
}

func TestResize(t *testing.T) {
	fx := newFixture(t, nil)

	require.NoError(t, fx.r.Resize(640, 360))
	fx.submitCamera()
	_, err := fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, [4]int32{0, 0, 640, 360}, fx.dev.CurrentViewport())

	require.NoError(t, fx.r.Resize(0, 0))
	assert.False(t, fx.r.Started())
	_, err = fx.r.Render()
	assert.ErrorIs(t, err, renderer.ErrNotStarted)

	require.NoError(t, fx.r.Resize(640, 360))
	assert.False(t, fx.r.Started(), "resize does not restart a stopped renderer")
	require.NoError(t, fx.r.Start())
	fx.submitCamera()
	_, err = fx.r.Render()
	require.NoError(t, err)
	assert.Equal(t, [4]int32{0, 0, 320, 180}, fx.dev.CurrentViewport())
}

func TestReleaseFreesEverything(t *testing.T) {
	fx := newFixture(t, func(c *config.Renderer) { c.PostProcess = []string{shader.NameFog} })
	fx.addMesh(t, "floor", resource.DefaultMaterial())
	fx.submitCamera()
	fx.r.SubmitMesh("floor", math.Mat4Identity(), nil)
	_, err := fx.r.Render()
	require.NoError(t, err)

	fx.r.Release()
	fx.res.Release()
	assert.Zero(t, fx.dev.LiveTextures())
	assert.Zero(t, fx.dev.LiveBuffers())
	assert.Zero(t, fx.dev.LiveFramebuffers())
	assert.Zero(t, fx.dev.LivePrograms())
	assert.Zero(t, fx.dev.LiveVertexArrays())
}

func TestHotReload(t *testing.T) {
	dir := t.TempDir()
	fx := newFixture(t, func(c *config.Renderer) {
		c.ShaderDir = dir
		c.HotReload = true
		c.PostProcess = []string{shader.NameTonemap}
	})
	before, err := fx.res.Shaders.Lookup(shader.NameTonemap)
	require.NoError(t, err)
	oldID := before.Program().ID()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tonemap.frag"), []byte("void main() {}"), 0o644))
	assert.Eventually(t, func() bool {
		fx.submitCamera()
		if _, err := fx.r.Render(); err != nil {
			return false
		}
		s, err := fx.res.Shaders.Lookup(shader.NameTonemap)
		return err == nil && s.Program().ID() != oldID
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCameraProjection(t *testing.T) {
	cam := renderer.NewCamera()
	p := cam.Projection(1)
	near := p.MulPoint(math.NewVec3(0, 0, -cam.Near))
	far := p.MulPoint(math.NewVec3(0, 0, -cam.Far))
	assert.InDelta(t, -1, near.Z, 1e-4)
	assert.InDelta(t, 1, far.Z, 1e-3)

	cam.Mode = renderer.Orthographic
	cam.OrthoSize = 4
	edge := cam.Projection(2).MulPoint(math.NewVec3(4, 2, -1))
	assert.InDelta(t, 1, edge.X, 1e-5)
	assert.InDelta(t, 1, edge.Y, 1e-5)
}

func TestSpotAngles(t *testing.T) {
	l := renderer.NewLight(renderer.LightSpot)
	assert.InDelta(t, 10*math32.Pi/180, l.InnerAngle(), 1e-6)
	assert.InDelta(t, 30*math32.Pi/180, l.OuterAngle(), 1e-6)

	l.SetSpotAngles(0, 2)
	assert.InDelta(t, math32.Pi/180, l.InnerAngle(), 1e-6)
	assert.InDelta(t, 89*math32.Pi/180, l.OuterAngle(), 1e-6)

	l.SetSpotAngles(0.5, 0.2)
	assert.Equal(t, l.OuterAngle(), l.InnerAngle())
	assert.InDelta(t, 0.2, l.OuterAngle(), 1e-6)

	assert.Equal(t, "directional", renderer.LightDirectional.String())
}
