// Package shadow computes the light-space projections the shadow passes
// render with. Everything is recomputed per frame; nothing is cached.
package shadow

import (
	"github.com/chewxy/math32"

	"render-core/math"
)

// BoundingBox is an axis-aligned box.
type BoundingBox struct {
	Min, Max math.Vec3
}

// EmptyBox returns an inverted box that any Extend call will overwrite.
func EmptyBox() BoundingBox {
	inf := math32.Inf(1)
	return BoundingBox{
		Min: math.NewVec3(inf, inf, inf),
		Max: math.NewVec3(-inf, -inf, -inf),
	}
}

func (b BoundingBox) Extend(p math.Vec3) BoundingBox {
	return BoundingBox{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

func (b BoundingBox) Centre() math.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b BoundingBox) Contains(p math.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Corners returns the 8 corners. Bit 0 of the index selects max X, bit 1
// max Y and bit 2 max Z.
func (b BoundingBox) Corners() [8]math.Vec3 {
	var c [8]math.Vec3
	for i := range c {
		p := b.Min
		if i&1 != 0 {
			p.X = b.Max.X
		}
		if i&2 != 0 {
			p.Y = b.Max.Y
		}
		if i&4 != 0 {
			p.Z = b.Max.Z
		}
		c[i] = p
	}
	return c
}

// Projection is a light's view and projection for one shadow map or cube
// face.
type Projection struct {
	View       math.Mat4
	Projection math.Mat4
}

func (p Projection) ViewProjection() math.Mat4 {
	return p.View.Mul(p.Projection)
}

// CameraFrustum describes the viewing camera in world space. Left, Up and
// Forward are unit axes.
type CameraFrustum struct {
	Position          math.Vec3
	Left, Up, Forward math.Vec3
	Near, Far         float32
	Aspect            float32
	FOV               float32 // vertical, radians
	OrthoSize         float32
	Orthographic      bool
}

// FrustumFromWorld builds a frustum from a camera world matrix. The camera
// looks down its local -Z.
func FrustumFromWorld(world math.Mat4) CameraFrustum {
	return CameraFrustum{
		Position: world.Translation(),
		Left:     world.Row(0).Negate().Normalize(),
		Up:       world.Row(1).Normalize(),
		Forward:  world.Row(2).Negate().Normalize(),
	}
}

// frustumCorners returns the 8 corners of a frustum slice given the half
// extents of its near and far rectangles.
func frustumCorners(c CameraFrustum, near, far float32, nearW, nearH, farW, farH float32) [8]math.Vec3 {
	nc := c.Position.Add(c.Forward.Mul(near))
	fc := c.Position.Add(c.Forward.Mul(far))
	corner := func(centre math.Vec3, w, h float32, sx, sy float32) math.Vec3 {
		return centre.Add(c.Left.Mul(w * sx)).Add(c.Up.Mul(h * sy))
	}
	return [8]math.Vec3{
		corner(nc, nearW, nearH, 1, 1),
		corner(nc, nearW, nearH, -1, 1),
		corner(nc, nearW, nearH, 1, -1),
		corner(nc, nearW, nearH, -1, -1),
		corner(fc, farW, farH, 1, 1),
		corner(fc, farW, farH, -1, 1),
		corner(fc, farW, farH, 1, -1),
		corner(fc, farW, farH, -1, -1),
	}
}

func boundsIn(view math.Mat4, corners [8]math.Vec3) BoundingBox {
	b := EmptyBox()
	for _, p := range corners {
		b = b.Extend(view.MulPoint(p))
	}
	return b
}

// PerspectiveCorners returns the world-space corners of the camera's
// perspective frustum between near and far.
func PerspectiveCorners(c CameraFrustum, near, far float32) [8]math.Vec3 {
	t := math32.Tan(c.FOV * 0.5)
	nearH, farH := near*t, far*t
	return frustumCorners(c, near, far, nearH*c.Aspect, nearH, farH*c.Aspect, farH)
}

// OrthographicCorners returns the world-space corners of the camera's
// orthographic box between near and far.
func OrthographicCorners(c CameraFrustum, near, far float32) [8]math.Vec3 {
	h := c.OrthoSize * 0.5
	w := h * c.Aspect
	return frustumCorners(c, near, far, w, h, w, h)
}

// PerspectiveBounds is the AABB, in the space of lightView, of the
// camera's perspective frustum.
func PerspectiveBounds(lightView math.Mat4, c CameraFrustum) BoundingBox {
	return boundsIn(lightView, PerspectiveCorners(c, c.Near, c.Far))
}

// OrthographicBounds is the AABB, in the space of lightView, of the
// camera's orthographic box.
func OrthographicBounds(lightView math.Mat4, c CameraFrustum) BoundingBox {
	return boundsIn(lightView, OrthographicCorners(c, c.Near, c.Far))
}

// Directional is the shadow box of a directional light over the part of
// the camera frustum nearer than shadowDistance. casterMargin pulls the
// light-side plane back so casters outside the frustum still land in the
// map.
type Directional struct {
	Projection
	// Bounds is the fitted box in light view space.
	Bounds BoundingBox
	// Corners are the world-space frustum corners that were fitted.
	Corners [8]math.Vec3
}

// lightUp picks an up vector that is not parallel to dir.
func lightUp(dir math.Vec3) math.Vec3 {
	if math32.Abs(dir.Dot(math.Vec3Up)) > 0.999 {
		return math.NewVec3(0, 0, 1)
	}
	return math.Vec3Up
}

// DirectionalLight fits an orthographic projection for a light shining
// along dir.
func DirectionalLight(dir math.Vec3, c CameraFrustum, shadowDistance, casterMargin float32) Directional {
	dir = dir.Normalize()
	view := math.Mat4LookAt(math.Vec3Zero, dir, lightUp(dir))

	far := math32.Min(c.Far, shadowDistance)
	near := math32.Min(c.Near, far)
	var corners [8]math.Vec3
	if c.Orthographic {
		corners = OrthographicCorners(c, near, far)
	} else {
		corners = PerspectiveCorners(c, near, far)
	}
	b := boundsIn(view, corners)

	// Light space looks down -Z: the box's max Z faces the light.
	proj := math.Mat4Orthographic(b.Min.X, b.Max.X, b.Min.Y, b.Max.Y, -b.Max.Z-casterMargin, -b.Min.Z)
	return Directional{
		Projection: Projection{View: view, Projection: proj},
		Bounds:     b,
		Corners:    corners,
	}
}

// SpotLight is the perspective projection of a spot light with half-angle
// outer (radians) reaching distance.
func SpotLight(pos, dir math.Vec3, outer, distance float32) Projection {
	dir = dir.Normalize()
	near := math32.Max(distance*0.01, 0.05)
	return Projection{
		View:       math.Mat4LookAt(pos, pos.Add(dir), lightUp(dir)),
		Projection: math.Mat4Perspective(2*outer, 1, near, distance),
	}
}

// Cube face order.
const (
	FacePosX = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

var cubeFaces = [6]struct{ target, up math.Vec3 }{
	FacePosX: {math.NewVec3(1, 0, 0), math.NewVec3(0, -1, 0)},
	FaceNegX: {math.NewVec3(-1, 0, 0), math.NewVec3(0, -1, 0)},
	FacePosY: {math.NewVec3(0, 1, 0), math.NewVec3(0, 0, 1)},
	FaceNegY: {math.NewVec3(0, -1, 0), math.NewVec3(0, 0, -1)},
	FacePosZ: {math.NewVec3(0, 0, 1), math.NewVec3(0, -1, 0)},
	FaceNegZ: {math.NewVec3(0, 0, -1), math.NewVec3(0, -1, 0)},
}

// PointLight returns one 90 degree projection per cube face, in the order
// +X, -X, +Y, -Y, +Z, -Z.
func PointLight(pos math.Vec3, distance float32) [6]Projection {
	near := math32.Max(distance*0.01, 0.05)
	proj := math.Mat4Perspective(math32.Pi/2, 1, near, distance)
	var out [6]Projection
	for i, f := range cubeFaces {
		out[i] = Projection{
			View:       math.Mat4LookAt(pos, pos.Add(f.target), f.up),
			Projection: proj,
		}
	}
	return out
}
