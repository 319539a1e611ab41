package gpu

import (
	"fmt"
	"unsafe"

	"render-core/core"
	"render-core/math"
)

// Instance is the per-instance attribute record: the model matrix at
// locations 6-9 and the normal matrix at 10-12.
type Instance struct {
	Model  math.Mat4
	Normal math.Mat3
}

var instanceLayout Instance

const (
	instanceLocation   = 6
	instanceStride     = int32(unsafe.Sizeof(instanceLayout))
	normalMatrixOffset = int(unsafe.Offsetof(instanceLayout.Normal))
)

// VertexArray owns a vertex buffer, an optional index buffer and the
// per-instance buffer, plus the VAO that ties them together.
type VertexArray struct {
	noCopy noCopy

	dev         Device
	id          uint32
	vertices    *Buffer
	indices     *Buffer
	instances   *Buffer
	vertexCount int32
	indexCount  int32
}

func NewVertexArray(dev Device, mesh *core.MeshData) (*VertexArray, error) {
	if len(mesh.Vertices) == 0 {
		return nil, fmt.Errorf("mesh has no vertices")
	}

	va := &VertexArray{
		dev:         dev,
		id:          dev.CreateVertexArray(),
		vertices:    NewBuffer(dev, ArrayBuffer, StaticDraw),
		instances:   NewBuffer(dev, ArrayBuffer, DynamicDraw),
		vertexCount: int32(len(mesh.Vertices)),
		indexCount:  int32(len(mesh.Indices)),
	}

	if err := va.vertices.Upload(Bytes(mesh.Vertices)); err != nil {
		va.Release()
		return nil, fmt.Errorf("vertex buffer: %w", err)
	}

	stride := int32(unsafe.Sizeof(core.Vertex{}))
	var v core.Vertex
	dev.VertexAttribs(va.id, va.vertices.ID(), []VertexAttrib{
		{Location: 0, Size: 3, Stride: stride, Offset: int(unsafe.Offsetof(v.Position))},
		{Location: 1, Size: 3, Stride: stride, Offset: int(unsafe.Offsetof(v.Normal))},
		{Location: 2, Size: 2, Stride: stride, Offset: int(unsafe.Offsetof(v.UV))},
		{Location: 3, Size: 4, Stride: stride, Offset: int(unsafe.Offsetof(v.Color))},
		{Location: 4, Size: 3, Stride: stride, Offset: int(unsafe.Offsetof(v.Tangent))},
		{Location: 5, Size: 3, Stride: stride, Offset: int(unsafe.Offsetof(v.Bitangent))},
	})

	if len(mesh.Indices) > 0 {
		va.indices = NewBuffer(dev, ElementBuffer, StaticDraw)
		if err := va.indices.Upload(Bytes(mesh.Indices)); err != nil {
			va.Release()
			return nil, fmt.Errorf("index buffer: %w", err)
		}
		dev.IndexBuffer(va.id, va.indices.ID())
	}

	attribs := make([]VertexAttrib, 0, 7)
	for i := 0; i < 4; i++ {
		attribs = append(attribs, VertexAttrib{
			Location: instanceLocation + uint32(i), Size: 4, Stride: instanceStride, Offset: i * 16, Divisor: 1,
		})
	}
	for i := 0; i < 3; i++ {
		attribs = append(attribs, VertexAttrib{
			Location: instanceLocation + 4 + uint32(i), Size: 3, Stride: instanceStride,
			Offset: normalMatrixOffset + i*12, Divisor: 1,
		})
	}
	dev.VertexAttribs(va.id, va.instances.ID(), attribs)

	return va, nil
}

func (va *VertexArray) ID() uint32        { return va.id }
func (va *VertexArray) IndexCount() int32 { return va.indexCount }

// SetInstances streams the per-instance records for the next Draw.
func (va *VertexArray) SetInstances(instances []Instance) error {
	if err := va.instances.Upload(Bytes(instances)); err != nil {
		return fmt.Errorf("instance buffer: %w", err)
	}
	return nil
}

// Draw issues one instanced draw call.
func (va *VertexArray) Draw(instances int) {
	va.dev.BindVertexArray(va.id)
	if va.indexCount > 0 {
		va.dev.DrawElementsInstanced(va.indexCount, int32(instances))
	} else {
		va.dev.DrawArraysInstanced(0, va.vertexCount, int32(instances))
	}
	va.dev.BindVertexArray(0)
}

// Release deletes the VAO and every buffer it owns. Further calls are no-ops.
func (va *VertexArray) Release() {
	if va.id == 0 {
		return
	}
	va.vertices.Release()
	va.instances.Release()
	if va.indices != nil {
		va.indices.Release()
	}
	va.dev.DeleteVertexArray(va.id)
	va.id = 0
}

// EmptyVertexArray is a VAO with no attributes, used for the fullscreen
// triangle generated from gl_VertexID.
type EmptyVertexArray struct {
	noCopy noCopy
	dev    Device
	id     uint32
}

func NewEmptyVertexArray(dev Device) *EmptyVertexArray {
	return &EmptyVertexArray{dev: dev, id: dev.CreateVertexArray()}
}

func (va *EmptyVertexArray) DrawTriangle() {
	va.dev.BindVertexArray(va.id)
	va.dev.DrawArraysInstanced(0, 3, 1)
	va.dev.BindVertexArray(0)
}

func (va *EmptyVertexArray) Release() {
	if va.id == 0 {
		return
	}
	va.dev.DeleteVertexArray(va.id)
	va.id = 0
}
