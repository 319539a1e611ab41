package shader

// TextureUnit is the fixed sampler unit for each texture role. Every
// program binds its samplers to these units once, at construction.
type TextureUnit int

const (
	UnitDiffuse TextureUnit = iota
	UnitNormal
	UnitSpecular
	UnitGloss
	UnitDisplacement
	UnitSkybox
	UnitFragPosition
	UnitFragNormal
	UnitFragDiffuse
	UnitFragSpecular
	UnitFragGloss
	UnitLightDiffuse
	UnitLightSpecular
	UnitComposite
	UnitDepthStencil
	UnitShadow2D
	UnitShadowCube

	NumTextureUnits
)

var unitNames = [NumTextureUnits]string{
	UnitDiffuse:       "diffuse",
	UnitNormal:        "normal",
	UnitSpecular:      "specular",
	UnitGloss:         "gloss",
	UnitDisplacement:  "displacement",
	UnitSkybox:        "skybox",
	UnitFragPosition:  "frag_position",
	UnitFragNormal:    "frag_normal",
	UnitFragDiffuse:   "frag_diffuse",
	UnitFragSpecular:  "frag_specular",
	UnitFragGloss:     "frag_gloss",
	UnitLightDiffuse:  "light_diffuse",
	UnitLightSpecular: "light_specular",
	UnitComposite:     "composite",
	UnitDepthStencil:  "depth_stencil",
	UnitShadow2D:      "shadow_2d",
	UnitShadowCube:    "shadow_cube",
}

func (u TextureUnit) String() string {
	if u >= 0 && u < NumTextureUnits {
		return unitNames[u]
	}
	return "unknown"
}

// MaterialUnits are the units a material may bind a texture to, in order.
var MaterialUnits = [...]TextureUnit{UnitDiffuse, UnitNormal, UnitSpecular, UnitGloss, UnitDisplacement}

// TextureSet is a bit set of texture units.
type TextureSet uint32

func (s TextureSet) Has(u TextureUnit) bool { return s&(1<<uint(u)) != 0 }

func (s TextureSet) With(u TextureUnit) TextureSet { return s | 1<<uint(u) }
