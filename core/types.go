package core

import (
	"render-core/math"
)

type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite  = Color{1, 1, 1, 1}
	ColorBlack  = Color{0, 0, 0, 1}
	ColorRed    = Color{1, 0, 0, 1}
	ColorGreen  = Color{0, 1, 0, 1}
	ColorBlue   = Color{0, 0, 1, 1}
	ColorYellow = Color{1, 1, 0, 1}
)

func (c Color) Vec4() math.Vec4 {
	return math.Vec4{X: c.R, Y: c.G, Z: c.B, W: c.A}
}

func (c Color) Vec3() math.Vec3 {
	return math.Vec3{X: c.R, Y: c.G, Z: c.B}
}

func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s, c.A}
}

// Vertex is the interleaved layout uploaded to every vertex buffer.
// Attribute locations 0-5 follow field order.
type Vertex struct {
	Position  math.Vec3
	Normal    math.Vec3
	UV        math.Vec2
	Color     Color
	Tangent   math.Vec3
	Bitangent math.Vec3
}

type MeshData struct {
	Vertices []Vertex
	Indices  []uint32
}

// Bounds returns the local-space AABB of the vertices.
func (m *MeshData) Bounds() (min, max math.Vec3) {
	if len(m.Vertices) == 0 {
		return math.Vec3Zero, math.Vec3Zero
	}
	min, max = m.Vertices[0].Position, m.Vertices[0].Position
	for _, v := range m.Vertices[1:] {
		min = min.Min(v.Position)
		max = max.Max(v.Position)
	}
	return min, max
}

// Rect is a normalised [0,1] region of the framebuffer.
type Rect struct {
	X, Y, Width, Height float32
}

var RectFull = Rect{0, 0, 1, 1}

// Pixels scales r to a w x h framebuffer.
func (r Rect) Pixels(w, h int) (x, y, width, height int32) {
	return int32(r.X * float32(w)), int32(r.Y * float32(h)),
		int32(r.Width * float32(w)), int32(r.Height * float32(h))
}
