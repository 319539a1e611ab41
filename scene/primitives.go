// Package scene builds mesh data, textures and materials for the renderer:
// procedural primitives, image decoding and glTF import.
package scene

import (
	"github.com/chewxy/math32"

	"render-core/core"
	"render-core/math"
)

type builder struct {
	data core.MeshData
}

func (b *builder) vertex(pos, normal math.Vec3, uv math.Vec2) uint32 {
	b.data.Vertices = append(b.data.Vertices, core.Vertex{
		Position: pos,
		Normal:   normal,
		UV:       uv,
		Color:    core.ColorWhite,
	})
	return uint32(len(b.data.Vertices) - 1)
}

// triangle appends i0, i1, i2, flipping the winding when needed so the
// face turns counter-clockwise about its vertex normals.
func (b *builder) triangle(i0, i1, i2 uint32) {
	v0, v1, v2 := b.data.Vertices[i0], b.data.Vertices[i1], b.data.Vertices[i2]
	face := v1.Position.Sub(v0.Position).Cross(v2.Position.Sub(v0.Position))
	if face.Dot(v0.Normal.Add(v1.Normal).Add(v2.Normal)) < 0 {
		i1, i2 = i2, i1
	}
	b.data.Indices = append(b.data.Indices, i0, i1, i2)
}

func (b *builder) quad(i0, i1, i2, i3 uint32) {
	b.triangle(i0, i1, i2)
	b.triangle(i0, i2, i3)
}

// grid samples f over a (cols+1) x (rows+1) lattice of u, v in [0,1].
func (b *builder) grid(cols, rows int, f func(u, v float32) (pos, normal math.Vec3)) {
	base := uint32(len(b.data.Vertices))
	for r := 0; r <= rows; r++ {
		v := float32(r) / float32(rows)
		for c := 0; c <= cols; c++ {
			u := float32(c) / float32(cols)
			p, n := f(u, v)
			b.vertex(p, n, math.NewVec2(u, v))
		}
	}
	stride := uint32(cols + 1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := base + uint32(r)*stride + uint32(c)
			b.quad(i, i+1, i+stride+1, i+stride)
		}
	}
}

// fan closes a ring of points around centre with a flat face along normal.
func (b *builder) fan(centre, normal math.Vec3, ring []math.Vec3, radius float32) {
	mid := b.vertex(centre, normal, math.NewVec2(0.5, 0.5))
	first := uint32(len(b.data.Vertices))
	for _, p := range ring {
		d := p.Sub(centre).Mul(0.5 / radius)
		b.vertex(p, normal, math.NewVec2(0.5+d.X, 0.5+d.Z))
	}
	for i := range ring {
		next := (i + 1) % len(ring)
		b.triangle(mid, first+uint32(i), first+uint32(next))
	}
}

func (b *builder) finish() *core.MeshData {
	ComputeTangents(&b.data)
	return &b.data
}

func circle(radius, y float32, segments int) []math.Vec3 {
	ring := make([]math.Vec3, segments)
	for i := range ring {
		theta := float32(i) * 2 * math32.Pi / float32(segments)
		ring[i] = math.NewVec3(math32.Cos(theta)*radius, y, math32.Sin(theta)*radius)
	}
	return ring
}

// Cube is an axis-aligned cube of edge size centred on the origin, with
// four vertices per face.
func Cube(size float32) *core.MeshData {
	h := size / 2
	b := &builder{}
	for _, n := range []math.Vec3{
		math.Vec3Right, math.Vec3Left, math.Vec3Up,
		math.Vec3Down, math.Vec3Front, math.Vec3Back,
	} {
		// Two axes spanning the face.
		u := math.Vec3Up
		if n.Y != 0 {
			u = math.Vec3Front
		}
		v := n.Cross(u)
		centre := n.Mul(h)
		corner := func(su, sv float32, uv math.Vec2) uint32 {
			return b.vertex(centre.Add(u.Mul(su*h)).Add(v.Mul(sv*h)), n, uv)
		}
		b.quad(
			corner(-1, -1, math.NewVec2(0, 0)),
			corner(-1, 1, math.NewVec2(1, 0)),
			corner(1, 1, math.NewVec2(1, 1)),
			corner(1, -1, math.NewVec2(0, 1)),
		)
	}
	return b.finish()
}

// Quad is a width x height rectangle in the XY plane facing +Z.
func Quad(width, height float32) *core.MeshData {
	b := &builder{}
	b.grid(1, 1, func(u, v float32) (math.Vec3, math.Vec3) {
		return math.NewVec3((u-0.5)*width, (v-0.5)*height, 0), math.Vec3Front
	})
	return b.finish()
}

// Plane is a width x depth rectangle in the XZ plane facing +Y, split into
// subdivisions cells along each side.
func Plane(width, depth float32, subdivisions int) *core.MeshData {
	subdivisions = max(subdivisions, 1)
	b := &builder{}
	b.grid(subdivisions, subdivisions, func(u, v float32) (math.Vec3, math.Vec3) {
		return math.NewVec3((u-0.5)*width, 0, (v-0.5)*depth), math.Vec3Up
	})
	return b.finish()
}

// Sphere is a UV sphere.
func Sphere(radius float32, segments, rings int) *core.MeshData {
	segments = max(segments, 3)
	rings = max(rings, 2)
	b := &builder{}
	b.grid(segments, rings, func(u, v float32) (math.Vec3, math.Vec3) {
		theta, phi := u*2*math32.Pi, v*math32.Pi
		n := math.NewVec3(math32.Sin(phi)*math32.Cos(theta), math32.Cos(phi), math32.Sin(phi)*math32.Sin(theta))
		return n.Mul(radius), n
	})
	return b.finish()
}

// Cylinder is a capped cylinder along Y centred on the origin.
func Cylinder(radius, height float32, segments int) *core.MeshData {
	segments = max(segments, 3)
	h := height / 2
	b := &builder{}
	b.grid(segments, 1, func(u, v float32) (math.Vec3, math.Vec3) {
		theta := u * 2 * math32.Pi
		n := math.NewVec3(math32.Cos(theta), 0, math32.Sin(theta))
		return math.NewVec3(n.X*radius, (v-0.5)*height, n.Z*radius), n
	})
	b.fan(math.NewVec3(0, h, 0), math.Vec3Up, circle(radius, h, segments), radius)
	b.fan(math.NewVec3(0, -h, 0), math.Vec3Down, circle(radius, -h, segments), radius)
	return b.finish()
}

// Cone has its base at y = -height/2 and its apex at y = height/2.
func Cone(radius, height float32, segments int) *core.MeshData {
	segments = max(segments, 3)
	h := height / 2
	side := func(t float32) (math.Vec3, math.Vec3) {
		theta := t * 2 * math32.Pi
		c, s := math32.Cos(theta), math32.Sin(theta)
		return math.NewVec3(c*radius, -h, s*radius), math.NewVec3(c*height, radius, s*height).Normalize()
	}
	b := &builder{}
	for i := 0; i < segments; i++ {
		t0 := float32(i) / float32(segments)
		t1 := float32(i+1) / float32(segments)
		p0, n0 := side(t0)
		p1, n1 := side(t1)
		_, mid := side((t0 + t1) / 2)
		b.triangle(
			b.vertex(p0, n0, math.NewVec2(t0, 0)),
			b.vertex(math.NewVec3(0, h, 0), mid, math.NewVec2((t0+t1)/2, 1)),
			b.vertex(p1, n1, math.NewVec2(t1, 0)),
		)
	}
	b.fan(math.NewVec3(0, -h, 0), math.Vec3Down, circle(radius, -h, segments), radius)
	return b.finish()
}

// Torus lies in the XZ plane around the Y axis.
func Torus(majorRadius, minorRadius float32, segments, sides int) *core.MeshData {
	segments = max(segments, 3)
	sides = max(sides, 3)
	b := &builder{}
	b.grid(segments, sides, func(u, v float32) (math.Vec3, math.Vec3) {
		theta, phi := u*2*math32.Pi, v*2*math32.Pi
		centre := math.NewVec3(math32.Cos(theta)*majorRadius, 0, math32.Sin(theta)*majorRadius)
		n := math.NewVec3(math32.Cos(theta)*math32.Cos(phi), math32.Sin(phi), math32.Sin(theta)*math32.Cos(phi))
		return centre.Add(n.Mul(minorRadius)), n
	})
	return b.finish()
}

// Pyramid has a square base of edge base at y = 0 and its apex at height.
func Pyramid(base, height float32) *core.MeshData {
	h := base / 2
	corners := [4]math.Vec3{
		math.NewVec3(-h, 0, -h),
		math.NewVec3(h, 0, -h),
		math.NewVec3(h, 0, h),
		math.NewVec3(-h, 0, h),
	}
	apex := math.NewVec3(0, height, 0)
	b := &builder{}
	for i := range corners {
		p0, p1 := corners[i], corners[(i+1)%4]
		n := p1.Sub(p0).Cross(apex.Sub(p0)).Normalize()
		if n.Dot(p0.Add(p1)) < 0 {
			n = n.Negate()
		}
		b.triangle(
			b.vertex(p0, n, math.NewVec2(0, 0)),
			b.vertex(p1, n, math.NewVec2(1, 0)),
			b.vertex(apex, n, math.NewVec2(0.5, 1)),
		)
	}
	idx := [4]uint32{}
	uvs := [4]math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	for i, p := range corners {
		idx[i] = b.vertex(p, math.Vec3Down, uvs[i])
	}
	b.quad(idx[0], idx[1], idx[2], idx[3])
	return b.finish()
}
