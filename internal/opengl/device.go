// Package opengl implements gpu.Device on an OpenGL 4.1 core context.
package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-core/core"
	"render-core/internal/gpu"
)

// Device issues GL calls. It must be created and used on the thread that
// owns the current context.
type Device struct {
	boundFB uint32
}

var _ gpu.Device = (*Device)(nil)

// New initialises OpenGL.
// Must be called after the window context is made current.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	core.Logger().Info("opengl device",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))

	gl.Enable(gl.TEXTURE_CUBE_MAP_SEAMLESS)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)

	return &Device{}, nil
}

// checkAlloc maps GL_OUT_OF_MEMORY after an allocating call.
func checkAlloc() error {
	var err error
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		if code == gl.OUT_OF_MEMORY {
			err = gpu.ErrOutOfMemory
		} else if err == nil {
			err = fmt.Errorf("gl error 0x%X", code)
		}
	}
	return err
}

// ── Buffers ───────────────────────────────────────────────────────────────────

func bufferTarget(t gpu.BufferTarget) uint32 {
	if t == gpu.ElementBuffer {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func (d *Device) CreateBuffer() uint32 {
	var id uint32
	gl.GenBuffers(1, &id)
	return id
}

func (d *Device) BufferData(id uint32, target gpu.BufferTarget, data []byte, usage gpu.BufferUsage) error {
	glUsage := uint32(gl.STATIC_DRAW)
	if usage == gpu.DynamicDraw {
		glUsage = gl.DYNAMIC_DRAW
	}
	// Element buffer bindings are VAO state; keep them out of whatever VAO is bound.
	gl.BindVertexArray(0)
	t := bufferTarget(target)
	gl.BindBuffer(t, id)
	if len(data) > 0 {
		gl.BufferData(t, len(data), gl.Ptr(data), glUsage)
	} else {
		gl.BufferData(t, 0, nil, glUsage)
	}
	gl.BindBuffer(t, 0)
	return checkAlloc()
}

func (d *Device) BufferSubData(id uint32, target gpu.BufferTarget, offset int, data []byte) {
	gl.BindVertexArray(0)
	t := bufferTarget(target)
	gl.BindBuffer(t, id)
	gl.BufferSubData(t, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(t, 0)
}

func (d *Device) DeleteBuffer(id uint32) {
	gl.DeleteBuffers(1, &id)
}

// ── Vertex arrays ─────────────────────────────────────────────────────────────

func (d *Device) CreateVertexArray() uint32 {
	var id uint32
	gl.GenVertexArrays(1, &id)
	return id
}

func (d *Device) VertexAttribs(vao, buffer uint32, attribs []gpu.VertexAttrib) {
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, buffer)
	for _, a := range attribs {
		gl.EnableVertexAttribArray(a.Location)
		gl.VertexAttribPointer(a.Location, a.Size, gl.FLOAT, false, a.Stride, gl.PtrOffset(a.Offset))
		gl.VertexAttribDivisor(a.Location, a.Divisor)
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (d *Device) IndexBuffer(vao, buffer uint32) {
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, buffer)
	gl.BindVertexArray(0)
}

func (d *Device) BindVertexArray(vao uint32) {
	gl.BindVertexArray(vao)
}

func (d *Device) DeleteVertexArray(id uint32) {
	gl.DeleteVertexArrays(1, &id)
}

// ── Pipeline state ────────────────────────────────────────────────────────────

func compareFunc(f gpu.CompareFunc) uint32 {
	switch f {
	case gpu.CompareNever:
		return gl.NEVER
	case gpu.CompareLess:
		return gl.LESS
	case gpu.CompareLessEqual:
		return gl.LEQUAL
	case gpu.CompareEqual:
		return gl.EQUAL
	case gpu.CompareNotEqual:
		return gl.NOTEQUAL
	case gpu.CompareGreater:
		return gl.GREATER
	}
	return gl.ALWAYS
}

func (d *Device) SetDepth(state gpu.DepthState) {
	if state.Test {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(state.Write)
	gl.DepthFunc(compareFunc(state.Func))
}

func (d *Device) SetBlend(mode gpu.BlendMode) {
	switch mode {
	case gpu.BlendAdditive:
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.ONE, gl.ONE)
	case gpu.BlendAlpha:
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	default:
		gl.Disable(gl.BLEND)
	}
}

func (d *Device) SetCull(mode gpu.CullMode) {
	switch mode {
	case gpu.CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	case gpu.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	default:
		gl.Disable(gl.CULL_FACE)
	}
}

func (d *Device) SetStencil(state gpu.StencilState) {
	if !state.Enabled {
		gl.Disable(gl.STENCIL_TEST)
		return
	}
	gl.Enable(gl.STENCIL_TEST)
	gl.StencilFunc(compareFunc(state.Func), state.Ref, state.Mask)
	if state.Write {
		gl.StencilOp(gl.KEEP, gl.KEEP, gl.REPLACE)
		gl.StencilMask(0xFF)
	} else {
		gl.StencilOp(gl.KEEP, gl.KEEP, gl.KEEP)
		gl.StencilMask(0x00)
	}
}

// ── Draws ─────────────────────────────────────────────────────────────────────

func (d *Device) DrawElementsInstanced(count, instances int32) {
	gl.DrawElementsInstanced(gl.TRIANGLES, count, gl.UNSIGNED_INT, nil, instances)
}

func (d *Device) DrawArraysInstanced(first, count, instances int32) {
	gl.DrawArraysInstanced(gl.TRIANGLES, first, count, instances)
}
