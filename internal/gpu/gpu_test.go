package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-core/core"
	"render-core/internal/gpu"
	"render-core/internal/gpu/gputest"
	"render-core/math"
)

func TestKindCompatible(t *testing.T) {
	tests := []struct {
		value, declared gpu.UniformKind
		ok              bool
	}{
		{gpu.KindFloat, gpu.KindFloat, true},
		{gpu.KindInt, gpu.KindFloat, false},
		{gpu.KindVec3, gpu.KindVec4, false},
		{gpu.KindInt, gpu.KindSampler2D, true},
		{gpu.KindInt, gpu.KindSamplerCubeShadow, true},
		{gpu.KindUint, gpu.KindSampler2D, false},
		{gpu.KindBool, gpu.KindBool, true},
		{gpu.KindInt, gpu.KindBool, true},
		{gpu.KindIVec3, gpu.KindBVec3, true},
		{gpu.KindIVec2, gpu.KindBVec3, false},
		{gpu.KindMat4, gpu.KindMat4, true},
		{gpu.KindMat3x4, gpu.KindMat4x3, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.value.Compatible(tt.declared), "%s -> %s", tt.value, tt.declared)
	}
}

func TestUniformValues(t *testing.T) {
	v := gpu.Vec3(math.NewVec3(1, 2, 3))
	assert.Equal(t, []float32{1, 2, 3}, v.Floats())
	assert.True(t, v.Equal(gpu.Vec3(math.NewVec3(1, 2, 3))))
	assert.False(t, v.Equal(gpu.Vec4(math.NewVec4(1, 2, 3, 0))))

	b := gpu.BVec3(true, false, true)
	assert.Equal(t, []int32{1, 0, 1}, b.Ints())

	m := gpu.Mat4(math.Mat4Translation(math.NewVec3(5, 6, 7)))
	assert.Equal(t, float32(5), m.F[12])
	assert.Equal(t, 16, len(m.Floats()))

	nonSquare := gpu.Matrix(gpu.KindMat2x3, []float32{1, 2, 3, 4, 5, 6}, true)
	assert.True(t, nonSquare.Transpose)
	assert.Panics(t, func() { gpu.Matrix(gpu.KindMat3, []float32{1, 2}, false) })
	assert.Panics(t, func() { gpu.Matrix(gpu.KindVec3, []float32{1, 2, 3}, false) })

	kind, ok := gpu.KindByName("mat4x3")
	assert.True(t, ok)
	assert.Equal(t, gpu.KindMat4x3, kind)
	assert.Equal(t, 12, kind.Components())
}

func TestBufferGrowsAndReleasesOnce(t *testing.T) {
	dev := gputest.New()
	b := gpu.NewBuffer(dev, gpu.ArrayBuffer, gpu.DynamicDraw)
	require.NoError(t, b.Upload(make([]byte, 64)))
	assert.Equal(t, 64, b.Capacity())

	require.NoError(t, b.Upload(make([]byte, 32)))
	assert.Equal(t, 64, b.Capacity(), "smaller uploads reuse storage")

	require.NoError(t, b.Upload(make([]byte, 128)))
	assert.Equal(t, 128, b.Capacity())

	assert.Equal(t, 1, dev.LiveBuffers())
	b.Release()
	b.Release()
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Error(t, b.Upload(make([]byte, 4)))
}

func TestBufferOutOfMemory(t *testing.T) {
	dev := gputest.New()
	dev.FailAlloc = true
	b := gpu.NewBuffer(dev, gpu.ArrayBuffer, gpu.StaticDraw)
	assert.ErrorIs(t, b.Upload(make([]byte, 4)), gpu.ErrOutOfMemory)
}

func TestVertexArrayLifecycle(t *testing.T) {
	dev := gputest.New()
	mesh := &core.MeshData{
		Vertices: make([]core.Vertex, 3),
		Indices:  []uint32{0, 1, 2},
	}
	va, err := gpu.NewVertexArray(dev, mesh)
	require.NoError(t, err)
	assert.Equal(t, int32(3), va.IndexCount())
	assert.Equal(t, 3, dev.LiveBuffers(), "vertex, index and instance buffers")

	require.NoError(t, va.SetInstances([]gpu.Instance{{Model: math.Mat4Identity(), Normal: math.Mat3Identity()}}))

	prog, err := dev.LinkProgram(compileMinimal(t, dev))
	require.NoError(t, err)
	dev.UseProgram(prog)
	va.Draw(1)
	assert.Equal(t, 1, dev.DrawCalls)

	va.Release()
	va.Release()
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Equal(t, 0, dev.LiveVertexArrays())

	_, err = gpu.NewVertexArray(dev, &core.MeshData{})
	assert.Error(t, err)
}

func TestTextureFaceCount(t *testing.T) {
	dev := gputest.New()
	desc := gpu.TextureDesc{Kind: gpu.TextureCube, Format: gpu.FormatRGBA8, Width: 1, Height: 1}
	_, err := gpu.NewTexture(dev, desc, []byte{0, 0, 0, 255})
	assert.Error(t, err)

	tex, err := gpu.NewTexture(dev, desc)
	require.NoError(t, err)
	tex.Release()
	assert.True(t, tex.Released())

	_, err = gpu.NewTexture(dev, gpu.TextureDesc{Width: 0, Height: 4})
	assert.Error(t, err)
}

func TestFramebufferOwnership(t *testing.T) {
	dev := gputest.New()
	shared, err := gpu.NewTexture(dev, gpu.TextureDesc{Format: gpu.FormatDepth24Stencil8, Width: 8, Height: 8})
	require.NoError(t, err)
	colour, err := gpu.NewTexture(dev, gpu.TextureDesc{Format: gpu.FormatRGBA8, Width: 8, Height: 8})
	require.NoError(t, err)

	fb := gpu.NewFramebuffer(dev, 8, 8)
	fb.Attach(0, colour, true)
	fb.AttachDepth(shared, gpu.AttachDepthStencil, gpu.FaceNone, false)
	require.NoError(t, fb.Check())

	fb.Release()
	fb.Release()
	assert.True(t, colour.Released(), "owned attachment released")
	assert.False(t, shared.Released(), "borrowed attachment survives")
	assert.Equal(t, 0, dev.LiveFramebuffers())
}

func TestFramebufferIncomplete(t *testing.T) {
	dev := gputest.New()
	fb := gpu.NewFramebuffer(dev, 4, 4)
	assert.ErrorIs(t, fb.Check(), gpu.ErrFramebufferIncomplete)
	fb.Release()
}

func TestFramebufferClearAndBlit(t *testing.T) {
	dev := gputest.New()
	src := gpu.NewFramebuffer(dev, 4, 4)
	for i := 0; i < 2; i++ {
		tex, err := gpu.NewTexture(dev, gpu.TextureDesc{Format: gpu.FormatRGBA8, Width: 4, Height: 4})
		require.NoError(t, err)
		src.Attach(i, tex, true)
	}
	src.SetDrawColourAttachment(1)
	src.Bind()
	src.ClearColourAll(core.ColorRed)
	assert.Equal(t, []int{1}, src.DrawList(), "draw selection restored after clear")
	assert.Equal(t, core.ColorRed, dev.Texture(src.Colour(0).ID()).Fill)
	assert.Equal(t, core.ColorRed, dev.Texture(src.Colour(1).ID()).Fill)

	src.ClearColour(1, core.ColorBlue)
	assert.Equal(t, core.ColorBlue, dev.Texture(src.Colour(1).ID()).Fill)

	screen := gpu.DefaultFramebuffer(dev, 4, 4)
	src.SetReadColourAttachment(1)
	src.BlitTo(screen, true, false, false)
	assert.Equal(t, core.ColorBlue, dev.Default.Fill)

	screen.Release()
	src.Release()
}

func compileMinimal(t *testing.T, dev *gputest.Device) []uint32 {
	t.Helper()
	vs, err := dev.CompileShader(gpu.StageVertex, []string{"void main() {}"})
	require.NoError(t, err)
	fs, err := dev.CompileShader(gpu.StageFragment, []string{"void main() {}"})
	require.NoError(t, err)
	return []uint32{vs, fs}
}
