package renderer

import (
	"fmt"

	"github.com/chewxy/math32"

	"render-core/core"
	"render-core/math"
	"render-core/shader"
	"render-core/shadow"
)

type ProjectionMode int

const (
	Perspective ProjectionMode = iota
	Orthographic
)

// Skybox is drawn behind everything the camera sees. Texture names a
// cubemap in the texture manager; empty draws the flat colour.
type Skybox struct {
	Enabled bool
	Colour  core.Color
	Texture string
}

// Camera holds projection settings. Its placement is the world matrix
// passed to SubmitCamera; it looks down its local -Z.
type Camera struct {
	Mode ProjectionMode
	Near float32
	Far  float32
	// Aspect is width over height. Zero uses the viewport's pixel aspect.
	Aspect    float32
	FOV       float32 // vertical, radians
	OrthoSize float32
	Skybox    Skybox
	// Viewport is the normalised screen rectangle the camera presents to.
	Viewport core.Rect
}

func NewCamera() Camera {
	return Camera{
		Mode:      Perspective,
		Near:      0.5,
		Far:       500,
		Aspect:    16.0 / 9.0,
		FOV:       math32.Pi / 4,
		OrthoSize: 5,
		Skybox:    Skybox{Colour: core.Color{R: 0.4, G: 0.6, B: 0.9, A: 1}},
		Viewport:  core.RectFull,
	}
}

// validate rejects settings that would build a degenerate projection.
func (c *Camera) validate() error {
	if c.Near <= 0 || c.Far <= c.Near {
		return fmt.Errorf("camera clip planes near=%g far=%g: want 0 < near < far", c.Near, c.Far)
	}
	switch c.Mode {
	case Perspective:
		if c.FOV <= 0 || c.FOV >= math32.Pi {
			return fmt.Errorf("camera fov %g out of (0, pi)", c.FOV)
		}
	case Orthographic:
		if c.OrthoSize <= 0 {
			return fmt.Errorf("camera ortho size %g must be positive", c.OrthoSize)
		}
	default:
		return fmt.Errorf("unknown camera mode %d", int(c.Mode))
	}
	return nil
}

func (c *Camera) viewport() core.Rect {
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return core.RectFull
	}
	return c.Viewport
}

func (c *Camera) aspect(w, h int) float32 {
	if c.Aspect > 0 {
		return c.Aspect
	}
	_, _, pw, ph := c.viewport().Pixels(w, h)
	if ph == 0 {
		return 1
	}
	return float32(pw) / float32(ph)
}

// Projection returns the projection matrix at the given aspect ratio.
func (c *Camera) Projection(aspect float32) math.Mat4 {
	if c.Mode == Orthographic {
		h := c.OrthoSize * 0.5
		w := h * aspect
		return math.Mat4Orthographic(-w, w, -h, h, c.Near, c.Far)
	}
	return math.Mat4Perspective(c.FOV, aspect, c.Near, c.Far)
}

func (c *Camera) frustum(world math.Mat4, aspect float32) shadow.CameraFrustum {
	f := shadow.FrustumFromWorld(world)
	f.Near, f.Far = c.Near, c.Far
	f.Aspect = aspect
	f.FOV = c.FOV
	f.OrthoSize = c.OrthoSize
	f.Orthographic = c.Mode == Orthographic
	return f
}

type LightKind int32

const (
	LightPoint       = LightKind(shader.LightPoint)
	LightSpot        = LightKind(shader.LightSpot)
	LightDirectional = LightKind(shader.LightDirectional)
)

func (k LightKind) String() string {
	switch k {
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	case LightDirectional:
		return "directional"
	}
	return "unknown"
}

const (
	minSpotAngle = math32.Pi / 180
	maxSpotAngle = 89 * math32.Pi / 180

	defaultShadowDistance = 50
)

// Light is a point, spot or directional light. Position is row 3 of the
// world matrix passed to SubmitLight and direction is its -Z axis.
type Light struct {
	Kind   LightKind
	Colour core.Color
	Power  float32
	// Attenuation holds the constant, linear and quadratic terms.
	Attenuation    math.Vec3
	CastShadows    bool
	ShadowDistance float32

	inner, outer       float32
	cosInner, cosOuter float32
}

func NewLight(kind LightKind) Light {
	l := Light{
		Kind:           kind,
		Colour:         core.ColorWhite,
		Power:          20,
		Attenuation:    math.NewVec3(1, 1, 1),
		ShadowDistance: defaultShadowDistance,
	}
	l.SetSpotAngles(10*math32.Pi/180, 30*math32.Pi/180)
	return l
}

// SetSpotAngles sets the inner and outer cone half-angles in radians.
// Each is clamped to [1°, 89°] and inner never exceeds outer.
func (l *Light) SetSpotAngles(inner, outer float32) {
	clamp := func(a float32) float32 {
		return math32.Max(minSpotAngle, math32.Min(maxSpotAngle, a))
	}
	l.outer = clamp(outer)
	l.inner = math32.Min(clamp(inner), l.outer)
	l.cosInner = math32.Cos(l.inner)
	l.cosOuter = math32.Cos(l.outer)
}

func (l *Light) InnerAngle() float32 { return l.inner }
func (l *Light) OuterAngle() float32 { return l.outer }

func (l *Light) shadowDistance() float32 {
	if l.ShadowDistance <= 0 {
		return defaultShadowDistance
	}
	return l.ShadowDistance
}

// params converts l at world into camera-space shader parameters.
func (l *Light) params(world, view math.Mat4) shader.LightParams {
	if l.outer == 0 {
		l.SetSpotAngles(l.inner, l.outer)
	}
	att := l.Attenuation.Max(math.Vec3Zero)
	return shader.LightParams{
		Mode:        int32(l.Kind),
		Power:       math32.Max(l.Power, 0),
		Colour:      l.Colour,
		Attenuation: att,
		CosInner:    l.cosInner,
		CosOuter:    l.cosOuter,
		Position:    view.MulPoint(world.Translation()),
		Direction:   view.MulDir(lightDirection(world)).Normalize(),
	}
}

func lightDirection(world math.Mat4) math.Vec3 {
	return world.Row(2).Negate().Normalize()
}
