// Package gpu wraps GPU objects behind move-only owners and defines the
// narrow Device boundary every draw goes through.
package gpu

import (
	"errors"

	"render-core/core"
)

var (
	ErrFramebufferIncomplete = errors.New("framebuffer incomplete")
	ErrOutOfMemory           = errors.New("out of GPU memory")
)

type Stage uint8

const (
	StageVertex Stage = iota
	StageGeometry
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	}
	return "unknown"
}

type BufferTarget uint8

const (
	ArrayBuffer BufferTarget = iota
	ElementBuffer
)

type BufferUsage uint8

const (
	StaticDraw BufferUsage = iota
	DynamicDraw
)

// VertexAttrib describes one float attribute sourced from a buffer.
type VertexAttrib struct {
	Location uint32
	Size     int32
	Stride   int32
	Offset   int
	Divisor  uint32
}

type TextureKind uint8

const (
	Texture2D TextureKind = iota
	TextureCube
)

type Format uint8

const (
	FormatRGBA8 Format = iota
	FormatRGBA16F
	FormatR16F
	FormatDepth24Stencil8
	FormatDepth32F
)

func (f Format) IsDepth() bool {
	return f == FormatDepth24Stencil8 || f == FormatDepth32F
}

type Filter uint8

const (
	FilterNearest Filter = iota
	FilterLinear
	FilterMipmap
)

type Wrap uint8

const (
	WrapRepeat Wrap = iota
	WrapClampEdge
	// WrapClampBorder samples a white border (depth 1), so lookups outside
	// a shadow map read as lit.
	WrapClampBorder
)

type TextureDesc struct {
	Kind    TextureKind
	Format  Format
	Width   int
	Height  int
	Filter  Filter
	Wrap    Wrap
	Compare bool // depth compare mode for shadow samplers
}

type AttachPoint uint8

const (
	AttachColour AttachPoint = iota
	AttachDepth
	AttachDepthStencil
)

// FaceNone attaches a 2D texture. Cube faces are 0-5 in +X, -X, +Y, -Y, +Z, -Z order.
const FaceNone = -1

type BlitMask uint8

const (
	BlitColour BlitMask = 1 << iota
	BlitDepth
	BlitStencil
)

type CompareFunc uint8

const (
	CompareAlways CompareFunc = iota
	CompareNever
	CompareLess
	CompareLessEqual
	CompareEqual
	CompareNotEqual
	CompareGreater
)

type DepthState struct {
	Test  bool
	Write bool
	Func  CompareFunc
}

type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendAdditive
	BlendAlpha
)

type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// StencilState configures the stencil test. When Write is set, passing
// fragments replace the stored value with Ref.
type StencilState struct {
	Enabled bool
	Func    CompareFunc
	Ref     int32
	Mask    uint32
	Write   bool
}

// UniformInfo mirrors one active uniform. Arrays report their first
// element name ("u_lights[0]") and Size > 1.
type UniformInfo struct {
	Name string
	Kind UniformKind
	Size int
}

// Device is the only path from the engine to the graphics driver. All calls
// must be made on the thread that owns the context.
type Device interface {
	// ── Buffers ──
	CreateBuffer() uint32
	BufferData(id uint32, target BufferTarget, data []byte, usage BufferUsage) error
	BufferSubData(id uint32, target BufferTarget, offset int, data []byte)
	DeleteBuffer(id uint32)

	// ── Vertex arrays ──
	CreateVertexArray() uint32
	VertexAttribs(vao, buffer uint32, attribs []VertexAttrib)
	IndexBuffer(vao, buffer uint32)
	BindVertexArray(vao uint32)
	DeleteVertexArray(id uint32)

	// ── Textures ──
	// CreateTexture allocates storage. faces holds nil, one image for a 2D
	// texture or six for a cube.
	CreateTexture(desc TextureDesc, faces [][]byte) (uint32, error)
	BindTexture(unit int, kind TextureKind, id uint32)
	DeleteTexture(id uint32)

	// ── Framebuffers ──
	CreateFramebuffer() uint32
	AttachTexture(fb uint32, point AttachPoint, index int, tex uint32, face int)
	CheckFramebuffer(fb uint32) error
	BindFramebuffer(fb uint32)
	// DrawBuffers selects colour attachments as draw targets. An empty
	// list disables colour output.
	DrawBuffers(fb uint32, attachments []int)
	// ReadBuffer selects the colour attachment read by blits. -1 reads none.
	ReadBuffer(fb uint32, attachment int)
	ClearColour(drawBuffer int, c core.Color)
	ClearDepthStencil(depth float32, stencil int32)
	Blit(src, dst uint32, srcRect, dstRect [4]int32, mask BlitMask)
	Viewport(x, y, width, height int32)
	ReadPixels(x, y, width, height int32) []core.Color
	DeleteFramebuffer(id uint32)

	// ── Pipeline state ──
	SetDepth(state DepthState)
	SetBlend(mode BlendMode)
	SetCull(mode CullMode)
	SetStencil(state StencilState)

	// ── Programs ──
	CompileShader(stage Stage, sources []string) (uint32, error)
	LinkProgram(shaders []uint32) (uint32, error)
	DeleteShader(id uint32)
	DeleteProgram(id uint32)
	UseProgram(id uint32)
	UniformLocation(prog uint32, name string) int32
	ActiveUniforms(prog uint32) []UniformInfo
	// SetUniform writes to the program in use. Location -1 is ignored.
	SetUniform(loc int32, v UniformValue)
	ReadUniform(prog uint32, loc int32, kind UniformKind) UniformValue

	// ── Draws ──
	DrawElementsInstanced(count, instances int32)
	DrawArraysInstanced(first, count, instances int32)
}

// noCopy makes go vet's copylocks check flag copies of GPU owners.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
