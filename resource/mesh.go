package resource

import (
	"fmt"

	"render-core/core"
	"render-core/internal/gpu"
	"render-core/math"
)

// Mesh is uploaded geometry plus the material it draws with by default.
type Mesh struct {
	Name     string
	Material string
	// Min and Max bound the vertices in local space.
	Min, Max math.Vec3

	vao *gpu.VertexArray
}

func (m *Mesh) VertexArray() *gpu.VertexArray { return m.vao }

func (m *Mesh) Release() { m.vao.Release() }

// Corners returns the eight corners of the local bounds.
func (m *Mesh) Corners() [8]math.Vec3 {
	var out [8]math.Vec3
	for i := range out {
		out[i] = m.Min
		if i&1 != 0 {
			out[i].X = m.Max.X
		}
		if i&2 != 0 {
			out[i].Y = m.Max.Y
		}
		if i&4 != 0 {
			out[i].Z = m.Max.Z
		}
	}
	return out
}

type MeshManager struct {
	*Registry[*Mesh]
	dev gpu.Device
}

func NewMeshManager(dev gpu.Device) *MeshManager {
	return &MeshManager{
		Registry: NewRegistry[*Mesh]("mesh", PolicyFail),
		dev:      dev,
	}
}

// Make uploads data and registers it under name with a default material.
func (m *MeshManager) Make(name string, data *core.MeshData, material string) (Handle, error) {
	if m.rejects(name) {
		return 0, fmt.Errorf("mesh %q: %w", name, ErrAlreadyExists)
	}
	vao, err := gpu.NewVertexArray(m.dev, data)
	if err != nil {
		return 0, fmt.Errorf("mesh %q: %w", name, err)
	}
	mesh := &Mesh{Name: name, Material: material, vao: vao}
	mesh.Min, mesh.Max = data.Bounds()

	h, err := m.Register(name, mesh)
	if err != nil {
		mesh.Release()
		return 0, err
	}
	return h, nil
}
