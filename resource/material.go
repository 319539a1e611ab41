package resource

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"render-core/core"
	"render-core/internal/gpu"
	"render-core/math"
	"render-core/shader"
)

// Path selects the pass a material is drawn in.
type Path int

const (
	PathDeferred Path = iota
	PathForwardOpaque
	PathForwardTransparent
)

func (p Path) String() string {
	switch p {
	case PathDeferred:
		return "deferred"
	case PathForwardOpaque:
		return "forward_opaque"
	case PathForwardTransparent:
		return "forward_transparent"
	}
	return fmt.Sprintf("Path(%d)", int(p))
}

// Material describes surface appearance. Shader and texture names are
// resolved by the renderer every frame, so they may be registered later.
type Material struct {
	Shader string
	Path   Path

	Diffuse           core.Color
	Specular          core.Color
	Gloss             float32
	DisplacementScale float32
	TextureOffset     math.Vec2
	TextureScale      math.Vec2

	// Textures maps a material unit to a texture name.
	Textures map[shader.TextureUnit]string

	CastShadows bool
	// Uniforms are extra values the renderer sets by name.
	Uniforms map[string]gpu.UniformValue
}

// DefaultMaterial is a white matte deferred material.
func DefaultMaterial() Material {
	return Material{
		Shader:       shader.NameGeometry,
		Path:         PathDeferred,
		Diffuse:      core.ColorWhite,
		Specular:     core.Color{R: 0.3, G: 0.3, B: 0.3, A: 1},
		Gloss:        32,
		TextureScale: math.NewVec2(1, 1),
		CastShadows:  true,
	}
}

// NewMaterial is DefaultMaterial with diffuse colour c.
func NewMaterial(c core.Color) Material {
	m := DefaultMaterial()
	m.Diffuse = c
	m.Specular = core.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}
	return m
}

func (*Material) Release() {}

// Params builds the shader parameters for this material. bound lists
// the units whose textures resolved.
func (m *Material) Params(bound shader.TextureSet) shader.MaterialParams {
	return shader.MaterialParams{
		Diffuse:           m.Diffuse,
		Specular:          m.Specular,
		Gloss:             m.Gloss,
		DisplacementScale: m.DisplacementScale,
		TextureOffset:     m.TextureOffset,
		TextureScale:      m.TextureScale,
		Textures:          bound,
		Transparent:       m.Path == PathForwardTransparent,
		Uniforms:          m.Uniforms,
	}
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_.\-/]+$`)

func (m *Material) validate() error {
	if m.Path < PathDeferred || m.Path > PathForwardTransparent {
		return fmt.Errorf("unknown path %d", int(m.Path))
	}
	if !nameRe.MatchString(m.Shader) {
		return fmt.Errorf("invalid shader name %q", m.Shader)
	}
	for unit, tex := range m.Textures {
		if !slices.Contains(shader.MaterialUnits[:], unit) {
			return fmt.Errorf("texture unit %s is not a material unit", unit)
		}
		if tex == "" {
			return fmt.Errorf("empty texture name for unit %s", unit)
		}
	}
	return nil
}

type MaterialManager struct {
	*Registry[*Material]
}

func NewMaterialManager() *MaterialManager {
	return &MaterialManager{Registry: NewRegistry[*Material]("material", PolicyFail)}
}

// Make validates mat and registers a copy of it under name.
func (m *MaterialManager) Make(name string, mat Material) (Handle, error) {
	if err := mat.validate(); err != nil {
		return 0, fmt.Errorf("material %q: %w", name, err)
	}
	mat.Textures = maps.Clone(mat.Textures)
	mat.Uniforms = maps.Clone(mat.Uniforms)
	return m.Register(name, &mat)
}
