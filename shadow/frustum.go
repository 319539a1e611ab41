package shadow

import "render-core/math"

// Plane is the half-space Normal·p + D >= 0.
type Plane struct {
	Normal math.Vec3
	D      float32
}

// DistanceTo is the signed distance from p, positive on the inside.
func (p Plane) DistanceTo(pt math.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Frustum holds six inward-facing clip planes: left, right, bottom, top,
// near, far.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromViewProjection extracts the clip planes of vp. With row
// vectors clip = p * vp, so each clip coordinate is a column of vp.
func FrustumFromViewProjection(vp math.Mat4) Frustum {
	col := func(j int) math.Vec4 {
		return math.Vec4{X: vp[0][j], Y: vp[1][j], Z: vp[2][j], W: vp[3][j]}
	}
	c0, c1, c2, c3 := col(0), col(1), col(2), col(3)
	plane := func(sign float32, c math.Vec4) Plane {
		return normalizePlane(c3.X+sign*c.X, c3.Y+sign*c.Y, c3.Z+sign*c.Z, c3.W+sign*c.W)
	}

	return Frustum{Planes: [6]Plane{
		plane(1, c0),
		plane(-1, c0),
		plane(1, c1),
		plane(-1, c1),
		plane(1, c2),
		plane(-1, c2),
	}}
}

func normalizePlane(a, b, c, d float32) Plane {
	l := math.NewVec3(a, b, c).Length()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: math.NewVec3(a/l, b/l, c/l), D: d / l}
}

// Intersects reports false only when b lies entirely outside one plane.
// For each plane it tests the corner furthest along the normal.
func (b BoundingBox) Intersects(f *Frustum) bool {
	for _, p := range f.Planes {
		v := b.Max
		if p.Normal.X < 0 {
			v.X = b.Min.X
		}
		if p.Normal.Y < 0 {
			v.Y = b.Min.Y
		}
		if p.Normal.Z < 0 {
			v.Z = b.Min.Z
		}
		if p.DistanceTo(v) < 0 {
			return false
		}
	}
	return true
}

// Transform returns the box enclosing b's corners after m.
func (b BoundingBox) Transform(m math.Mat4) BoundingBox {
	out := EmptyBox()
	for _, c := range b.Corners() {
		out = out.Extend(m.MulPoint(c))
	}
	return out
}
