package shader

import (
	"fmt"
	"strconv"

	"render-core/core"
	"render-core/internal/gpu"
	"render-core/math"
)

// MaxLights is the number of lights one lighting sub-pass can shade.
const MaxLights = 8

// Light modes as encoded in the light uniforms.
const (
	LightPoint       int32 = 0
	LightSpot        int32 = 1
	LightDirectional int32 = 2
)

// Pass identifies the render pass a shader variant is written for.
type Pass int

const (
	PassGeometry Pass = iota
	PassShadow2D
	PassShadowCube
	PassSkybox
	PassLight
	PassForward
	PassPostProcess
)

var passNames = [...]string{
	PassGeometry:    "geometry",
	PassShadow2D:    "shadow_2d",
	PassShadowCube:  "shadow_cubemap",
	PassSkybox:      "skybox",
	PassLight:       "light",
	PassForward:     "forward",
	PassPostProcess: "post_process",
}

func (p Pass) String() string {
	if p >= 0 && int(p) < len(passNames) {
		return passNames[p]
	}
	return "Pass(" + strconv.Itoa(int(p)) + ")"
}

// PassContext carries the per-pass values a variant reads in
// SetPassUniforms. Each variant uses only the fields it declares.
type PassContext struct {
	View        math.Mat4
	Projection  math.Mat4
	InverseView math.Mat4
	// ViewProjection is the camera's, or the light's during a shadow pass.
	ViewProjection math.Mat4

	Near, Far float32
	Viewport  core.Rect
	Ambient   core.Color

	SkyboxColour   core.Color
	SkyboxTextured bool

	// Cube shadow sub-passes.
	FaceViewProjections [6]math.Mat4
	LightPosition       math.Vec3
	ShadowDistance      float32

	Exposure   float32
	FogDensity float32
	FogColour  core.Color

	BloomThreshold float32
	BloomStrength  float32
	SSAORadius     float32
	SSAOBias       float32
}

// MaterialParams are the per-material values shared by the geometry,
// forward and shadow variants.
type MaterialParams struct {
	Diffuse           core.Color
	Specular          core.Color
	Gloss             float32
	DisplacementScale float32
	TextureOffset     math.Vec2
	TextureScale      math.Vec2
	Textures          TextureSet
	Transparent       bool
	// Uniforms are extra values set by name.
	Uniforms map[string]gpu.UniformValue
}

// LightParams describe one light in camera space.
type LightParams struct {
	Mode        int32
	Power       float32
	Colour      core.Color
	Attenuation math.Vec3
	CosInner    float32
	CosOuter    float32
	Position    math.Vec3
	Direction   math.Vec3
}

type ShadowMode int32

const (
	ShadowNone ShadowMode = iota
	Shadow2D
	ShadowCube
)

// ShadowParams describe the shadow map bound for light 0 of a lighting
// sub-pass.
type ShadowParams struct {
	Mode                ShadowMode
	LightViewProjection math.Mat4
	LightPosition       math.Vec3
	Distance            float32
}

// Shader is a compiled variant with its fixed uniform layout.
type Shader interface {
	Name() string
	Pass() Pass
	Program() *Program
	// SetPassUniforms writes the values that are constant across a pass.
	// The program must be in use.
	SetPassUniforms(ctx *PassContext)
	Release()
}

type MaterialShader interface {
	Shader
	SetMaterial(m *MaterialParams)
}

// LightReceiver is a shader that shades with the light arrays.
type LightReceiver interface {
	Shader
	// SetLights uploads up to MaxLights lights starting at lights[first]
	// and returns how many it uploaded.
	SetLights(first int, lights []LightParams) int
}

type LightShader interface {
	LightReceiver
	SetShadow(s ShadowParams)
}

// FaceShader renders a single cube face per draw.
type FaceShader interface {
	MaterialShader
	SetFace(face int)
}

// New compiles sources as a variant for pass.
func New(dev gpu.Device, name string, pass Pass, src Sources, opts Options) (Shader, error) {
	var layout []string
	switch pass {
	case PassGeometry:
		layout = geometryLayout
	case PassShadow2D:
		layout = shadow2DLayout
	case PassShadowCube:
		layout = shadowCubeLayout
	case PassSkybox:
		layout = skyboxLayout
	case PassLight:
		layout = lightLayout
	case PassForward:
		layout = forwardLayout
	case PassPostProcess:
		layout = postLayout
	default:
		return nil, fmt.Errorf("shader %s: unknown pass %d", name, pass)
	}

	prog, err := NewProgram(dev, name, src, layout, opts)
	if err != nil {
		return nil, err
	}
	b := base{prog: prog, pass: pass}

	var s Shader
	switch pass {
	case PassGeometry:
		s = &geometryShader{base: b}
	case PassShadow2D:
		s = &shadow2DShader{base: b}
	case PassShadowCube:
		s = &shadowCubeShader{base: b}
	case PassSkybox:
		s = &skyboxShader{base: b}
	case PassLight:
		s = &lightShader{base: b}
	case PassForward:
		s = &forwardShader{geometryShader{base: b}}
	case PassPostProcess:
		s = &postShader{base: b}
	}
	b.bindSamplers(pass)
	return s, nil
}

type base struct {
	prog *Program
	pass Pass
}

func (b *base) Name() string      { return b.prog.Name() }
func (b *base) Pass() Pass        { return b.pass }
func (b *base) Program() *Program { return b.prog }
func (b *base) Release()          { b.prog.Release() }

// bindSamplers points every sampler slot of the layout at its unit.
func (b *base) bindSamplers(pass Pass) {
	b.prog.Use()
	for slot, unit := range samplerSlots[pass] {
		b.prog.Set(slot, gpu.Sampler(int(unit)))
	}
}

// ── Layouts ──────────────────────────────────────────────────────────────────

// Material slots, shared by the geometry and forward layouts.
const (
	slotView = iota
	slotProjection
	slotTextureOffset
	slotTextureScale
	slotDiffuseColour
	slotSpecularColour
	slotGloss
	slotDisplacementScale
	slotHasDiffuse
	slotHasNormal
	slotHasSpecular
	slotHasGloss
	slotHasDisplacement
	slotTexDiffuse
	slotTexNormal
	slotTexSpecular
	slotTexGloss
	slotTexDisplacement
	numMaterialSlots
)

var geometryLayout = []string{
	slotView:              "u_view",
	slotProjection:        "u_projection",
	slotTextureOffset:     "u_texture_offset",
	slotTextureScale:      "u_texture_scale",
	slotDiffuseColour:     "u_diffuse_colour",
	slotSpecularColour:    "u_specular_colour",
	slotGloss:             "u_gloss",
	slotDisplacementScale: "u_displacement_scale",
	slotHasDiffuse:        "u_has_texture_diffuse",
	slotHasNormal:         "u_has_texture_normal",
	slotHasSpecular:       "u_has_texture_specular",
	slotHasGloss:          "u_has_texture_gloss",
	slotHasDisplacement:   "u_has_texture_displacement",
	slotTexDiffuse:        "u_texture_diffuse",
	slotTexNormal:         "u_texture_normal",
	slotTexSpecular:       "u_texture_specular",
	slotTexGloss:          "u_texture_gloss",
	slotTexDisplacement:   "u_texture_displacement",
}

// Per-light fields, in slot order within one light.
const (
	lightMode = iota
	lightPower
	lightColour
	lightAttenuation
	lightCosInner
	lightCosOuter
	lightPosition
	lightDirection
	numLightFields
)

var lightFieldNames = [numLightFields]string{
	"u_light_mode",
	"u_light_power",
	"u_light_colour",
	"u_light_attenuation",
	"u_light_cos_inner",
	"u_light_cos_outer",
	"u_light_position",
	"u_light_direction",
}

// lightsBlockLayout lists ambient, num_lights and the per-light array
// elements.
func lightsBlockLayout() []string {
	out := []string{"u_ambient", "u_num_lights"}
	for i := 0; i < MaxLights; i++ {
		for _, f := range lightFieldNames {
			out = append(out, f+"["+strconv.Itoa(i)+"]")
		}
	}
	return out
}

// lightSlots addresses a lights block starting at slot first.
type lightSlots int

func (l lightSlots) ambient() int       { return int(l) }
func (l lightSlots) count() int         { return int(l) + 1 }
func (l lightSlots) field(i, f int) int { return int(l) + 2 + i*numLightFields + f }
func (l lightSlots) end() int           { return int(l) + 2 + MaxLights*numLightFields }

var forwardLayout = append(append([]string(nil), geometryLayout...), lightsBlockLayout()...)

const forwardLights = lightSlots(numMaterialSlots)

var lightLayout = func() []string {
	out := lightsBlockLayout()
	return append(out,
		"u_frag_position",
		"u_frag_normal",
		"u_frag_diffuse",
		"u_frag_specular",
		"u_frag_gloss",
		"u_light_diffuse",
		"u_light_specular",
		"u_shadow_mode",
		"u_light_view_projection",
		"u_shadow_light_position",
		"u_shadow_distance",
		"u_inverse_view",
		"u_shadow_map_2d",
		"u_shadow_map_cube",
	)
}()

const lightLights = lightSlots(0)

var (
	slotFragPosition        = lightLights.end()
	slotFragNormal          = slotFragPosition + 1
	slotFragDiffuse         = slotFragPosition + 2
	slotFragSpecular        = slotFragPosition + 3
	slotFragGloss           = slotFragPosition + 4
	slotLightDiffuse        = slotFragPosition + 5
	slotLightSpecular       = slotFragPosition + 6
	slotShadowMode          = slotFragPosition + 7
	slotLightViewProjection = slotFragPosition + 8
	slotShadowLightPosition = slotFragPosition + 9
	slotShadowDistance      = slotFragPosition + 10
	slotInverseView         = slotFragPosition + 11
	slotShadowMap2D         = slotFragPosition + 12
	slotShadowMapCube       = slotFragPosition + 13
)

// Shadow-2D slots.
const (
	s2dViewProjection = iota
	s2dTextureOffset
	s2dTextureScale
	s2dTransparent
	s2dDiffuseColour
	s2dHasDiffuse
	s2dTexDiffuse
)

var shadow2DLayout = []string{
	s2dViewProjection: "u_view_projection",
	s2dTextureOffset:  "u_texture_offset",
	s2dTextureScale:   "u_texture_scale",
	s2dTransparent:    "u_is_transparent",
	s2dDiffuseColour:  "u_diffuse_colour",
	s2dHasDiffuse:     "u_has_texture_diffuse",
	s2dTexDiffuse:     "u_texture_diffuse",
}

// Cube shadow slots. The six face matrices come first.
const (
	scubeFace = 6 + iota
	scubeLightPos
	scubeShadowDistance
	scubeTextureOffset
	scubeTextureScale
	scubeTransparent
	scubeDiffuseColour
	scubeHasDiffuse
	scubeTexDiffuse
)

var shadowCubeLayout = []string{
	"u_view_projection_matrices[0]",
	"u_view_projection_matrices[1]",
	"u_view_projection_matrices[2]",
	"u_view_projection_matrices[3]",
	"u_view_projection_matrices[4]",
	"u_view_projection_matrices[5]",
	scubeFace:           "u_face",
	scubeLightPos:       "u_light_pos",
	scubeShadowDistance: "u_shadow_distance",
	scubeTextureOffset:  "u_texture_offset",
	scubeTextureScale:   "u_texture_scale",
	scubeTransparent:    "u_is_transparent",
	scubeDiffuseColour:  "u_diffuse_colour",
	scubeHasDiffuse:     "u_has_texture_diffuse",
	scubeTexDiffuse:     "u_texture_diffuse",
}

const (
	skyViewProjection = iota
	skyColour
	skyTextured
	skyTexture
)

var skyboxLayout = []string{
	skyViewProjection: "u_view_projection",
	skyColour:         "u_skybox_colour",
	skyTextured:       "u_texture_skybox_enabled",
	skyTexture:        "u_texture_skybox",
}

const (
	postNear = iota
	postFar
	postBottomLeft
	postTopRight
	postFragPosition
	postFragNormal
	postFragDepth
	postComposite
	postExposure
	postFogDensity
	postFogColour
	postProjection
	postBloomThreshold
	postBloomStrength
	postSSAORadius
	postSSAOBias
)

var postLayout = []string{
	postNear:           "u_near",
	postFar:            "u_far",
	postBottomLeft:     "u_bottom_left",
	postTopRight:       "u_top_right",
	postFragPosition:   "u_frag_position",
	postFragNormal:     "u_frag_normal",
	postFragDepth:      "u_frag_depth",
	postComposite:      "u_composite",
	postExposure:       "u_exposure",
	postFogDensity:     "u_fog_density",
	postFogColour:      "u_fog_colour",
	postProjection:     "u_projection",
	postBloomThreshold: "u_bloom_threshold",
	postBloomStrength:  "u_bloom_strength",
	postSSAORadius:     "u_ssao_radius",
	postSSAOBias:       "u_ssao_bias",
}

var materialSamplers = map[int]TextureUnit{
	slotTexDiffuse:      UnitDiffuse,
	slotTexNormal:       UnitNormal,
	slotTexSpecular:     UnitSpecular,
	slotTexGloss:        UnitGloss,
	slotTexDisplacement: UnitDisplacement,
}

// samplerSlots maps each pass's sampler slots to their texture units.
var samplerSlots = map[Pass]map[int]TextureUnit{
	PassGeometry:   materialSamplers,
	PassForward:    materialSamplers,
	PassShadow2D:   {s2dTexDiffuse: UnitDiffuse},
	PassShadowCube: {scubeTexDiffuse: UnitDiffuse},
	PassSkybox:     {skyTexture: UnitSkybox},
	PassLight: {
		slotFragPosition:  UnitFragPosition,
		slotFragNormal:    UnitFragNormal,
		slotFragDiffuse:   UnitFragDiffuse,
		slotFragSpecular:  UnitFragSpecular,
		slotFragGloss:     UnitFragGloss,
		slotLightDiffuse:  UnitLightDiffuse,
		slotLightSpecular: UnitLightSpecular,
		slotShadowMap2D:   UnitShadow2D,
		slotShadowMapCube: UnitShadowCube,
	},
	PassPostProcess: {
		postFragPosition: UnitFragPosition,
		postFragNormal:   UnitFragNormal,
		postFragDepth:    UnitDepthStencil,
		postComposite:    UnitComposite,
	},
}

// ── Geometry ─────────────────────────────────────────────────────────────────

type geometryShader struct {
	base
}

func (s *geometryShader) SetPassUniforms(ctx *PassContext) {
	s.prog.Set(slotView, gpu.Mat4(ctx.View))
	s.prog.Set(slotProjection, gpu.Mat4(ctx.Projection))
}

func (s *geometryShader) SetMaterial(m *MaterialParams) {
	p := s.prog
	p.Set(slotTextureOffset, gpu.Vec2(m.TextureOffset))
	p.Set(slotTextureScale, gpu.Vec2(m.TextureScale))
	p.Set(slotDiffuseColour, gpu.Colour(m.Diffuse))
	p.Set(slotSpecularColour, gpu.Colour(m.Specular))
	p.Set(slotGloss, gpu.Float(m.Gloss))
	p.Set(slotDisplacementScale, gpu.Float(m.DisplacementScale))
	p.Set(slotHasDiffuse, gpu.Bool(m.Textures.Has(UnitDiffuse)))
	p.Set(slotHasNormal, gpu.Bool(m.Textures.Has(UnitNormal)))
	p.Set(slotHasSpecular, gpu.Bool(m.Textures.Has(UnitSpecular)))
	p.Set(slotHasGloss, gpu.Bool(m.Textures.Has(UnitGloss)))
	p.Set(slotHasDisplacement, gpu.Bool(m.Textures.Has(UnitDisplacement)))
	for name, v := range m.Uniforms {
		p.SetByName(name, v)
	}
}

// ── Forward ──────────────────────────────────────────────────────────────────

type forwardShader struct {
	geometryShader
}

func (s *forwardShader) SetPassUniforms(ctx *PassContext) {
	s.geometryShader.SetPassUniforms(ctx)
	s.prog.Set(forwardLights.ambient(), gpu.Colour(ctx.Ambient))
}

func (s *forwardShader) SetLights(first int, lights []LightParams) int {
	return setLights(s.prog, forwardLights, first, lights)
}

func setLights(p *Program, l lightSlots, first int, lights []LightParams) int {
	n := 0
	if first < len(lights) {
		n = min(len(lights)-first, MaxLights)
	}
	for i := 0; i < n; i++ {
		lp := &lights[first+i]
		p.Set(l.field(i, lightMode), gpu.Int(lp.Mode))
		p.Set(l.field(i, lightPower), gpu.Float(lp.Power))
		p.Set(l.field(i, lightColour), gpu.ColourRGB(lp.Colour))
		p.Set(l.field(i, lightAttenuation), gpu.Vec3(lp.Attenuation))
		p.Set(l.field(i, lightCosInner), gpu.Float(lp.CosInner))
		p.Set(l.field(i, lightCosOuter), gpu.Float(lp.CosOuter))
		p.Set(l.field(i, lightPosition), gpu.Vec3(lp.Position))
		p.Set(l.field(i, lightDirection), gpu.Vec3(lp.Direction))
	}
	p.Set(l.count(), gpu.Int(int32(n)))
	return n
}

// ── Lighting ─────────────────────────────────────────────────────────────────

type lightShader struct {
	base
}

func (s *lightShader) SetPassUniforms(ctx *PassContext) {
	s.prog.Set(lightLights.ambient(), gpu.Colour(ctx.Ambient))
	s.prog.Set(slotInverseView, gpu.Mat4(ctx.InverseView))
}

func (s *lightShader) SetLights(first int, lights []LightParams) int {
	return setLights(s.prog, lightLights, first, lights)
}

func (s *lightShader) SetShadow(sh ShadowParams) {
	s.prog.Set(slotShadowMode, gpu.Int(int32(sh.Mode)))
	if sh.Mode == ShadowNone {
		return
	}
	s.prog.Set(slotLightViewProjection, gpu.Mat4(sh.LightViewProjection))
	s.prog.Set(slotShadowLightPosition, gpu.Vec3(sh.LightPosition))
	s.prog.Set(slotShadowDistance, gpu.Float(sh.Distance))
}

// ── Shadows ──────────────────────────────────────────────────────────────────

type shadow2DShader struct {
	base
}

func (s *shadow2DShader) SetPassUniforms(ctx *PassContext) {
	s.prog.Set(s2dViewProjection, gpu.Mat4(ctx.ViewProjection))
}

func (s *shadow2DShader) SetMaterial(m *MaterialParams) {
	p := s.prog
	p.Set(s2dTextureOffset, gpu.Vec2(m.TextureOffset))
	p.Set(s2dTextureScale, gpu.Vec2(m.TextureScale))
	p.Set(s2dTransparent, gpu.Bool(m.Transparent))
	p.Set(s2dDiffuseColour, gpu.Colour(m.Diffuse))
	p.Set(s2dHasDiffuse, gpu.Bool(m.Textures.Has(UnitDiffuse)))
}

type shadowCubeShader struct {
	base
}

func (s *shadowCubeShader) SetPassUniforms(ctx *PassContext) {
	for i, vp := range ctx.FaceViewProjections {
		s.prog.Set(i, gpu.Mat4(vp))
	}
	s.prog.Set(scubeLightPos, gpu.Vec3(ctx.LightPosition))
	s.prog.Set(scubeShadowDistance, gpu.Float(ctx.ShadowDistance))
}

func (s *shadowCubeShader) SetFace(face int) {
	s.prog.Set(scubeFace, gpu.Int(int32(face)))
}

func (s *shadowCubeShader) SetMaterial(m *MaterialParams) {
	p := s.prog
	p.Set(scubeTextureOffset, gpu.Vec2(m.TextureOffset))
	p.Set(scubeTextureScale, gpu.Vec2(m.TextureScale))
	p.Set(scubeTransparent, gpu.Bool(m.Transparent))
	p.Set(scubeDiffuseColour, gpu.Colour(m.Diffuse))
	p.Set(scubeHasDiffuse, gpu.Bool(m.Textures.Has(UnitDiffuse)))
}

// ── Skybox ───────────────────────────────────────────────────────────────────

type skyboxShader struct {
	base
}

// SetPassUniforms strips the translation from the view so the box stays
// centred on the camera.
func (s *skyboxShader) SetPassUniforms(ctx *PassContext) {
	view := ctx.View
	view[3][0], view[3][1], view[3][2] = 0, 0, 0
	s.prog.Set(skyViewProjection, gpu.Mat4(view.Mul(ctx.Projection)))
	s.prog.Set(skyColour, gpu.Colour(ctx.SkyboxColour))
	s.prog.Set(skyTextured, gpu.Bool(ctx.SkyboxTextured))
}

// ── Post-processing ──────────────────────────────────────────────────────────

type postShader struct {
	base
}

func (s *postShader) SetPassUniforms(ctx *PassContext) {
	p := s.prog
	vp := ctx.Viewport
	p.Set(postNear, gpu.Float(ctx.Near))
	p.Set(postFar, gpu.Float(ctx.Far))
	p.Set(postBottomLeft, gpu.Vec2(math.NewVec2(vp.X, vp.Y)))
	p.Set(postTopRight, gpu.Vec2(math.NewVec2(vp.X+vp.Width, vp.Y+vp.Height)))
	p.Set(postExposure, gpu.Float(ctx.Exposure))
	p.Set(postFogDensity, gpu.Float(ctx.FogDensity))
	p.Set(postFogColour, gpu.Colour(ctx.FogColour))
	p.Set(postProjection, gpu.Mat4(ctx.Projection))
	p.Set(postBloomThreshold, gpu.Float(ctx.BloomThreshold))
	p.Set(postBloomStrength, gpu.Float(ctx.BloomStrength))
	p.Set(postSSAORadius, gpu.Float(ctx.SSAORadius))
	p.Set(postSSAOBias, gpu.Float(ctx.SSAOBias))
}
