package resource

import (
	"render-core/internal/gpu"
	"render-core/shader"
)

// Managers bundles the four resource managers a renderer draws from.
type Managers struct {
	Meshes    *MeshManager
	Materials *MaterialManager
	Shaders   *ShaderManager
	Textures  *TextureManager
}

// NewManagers creates empty managers on dev. shaderDir may be "".
func NewManagers(dev gpu.Device, opts shader.Options, shaderDir string) *Managers {
	return &Managers{
		Meshes:    NewMeshManager(dev),
		Materials: NewMaterialManager(),
		Shaders:   NewShaderManager(dev, opts, shaderDir),
		Textures:  NewTextureManager(dev),
	}
}

// Release frees every resource in every manager.
func (m *Managers) Release() {
	m.Meshes.Clear()
	m.Materials.Clear()
	m.Shaders.Clear()
	m.Textures.Clear()
}
