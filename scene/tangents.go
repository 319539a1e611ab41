package scene

import (
	"github.com/chewxy/math32"

	"render-core/core"
	"render-core/math"
)

// ComputeTangents fills the tangent and bitangent of every vertex from the
// UV layout, for normal mapping. Triangles with no UV area contribute
// nothing; vertices left without a tangent get one perpendicular to their
// normal.
func ComputeTangents(data *core.MeshData) {
	vs := data.Vertices
	for i := range vs {
		vs[i].Tangent = math.Vec3Zero
		vs[i].Bitangent = math.Vec3Zero
	}

	add := func(i0, i1, i2 uint32) {
		v0, v1, v2 := vs[i0], vs[i1], vs[i2]
		e1 := v1.Position.Sub(v0.Position)
		e2 := v2.Position.Sub(v0.Position)
		d1 := v1.UV.Sub(v0.UV)
		d2 := v2.UV.Sub(v0.UV)

		det := d1.X*d2.Y - d2.X*d1.Y
		if det == 0 {
			return
		}
		r := 1 / det
		t := e1.Mul(d2.Y * r).Sub(e2.Mul(d1.Y * r))
		b := e2.Mul(d1.X * r).Sub(e1.Mul(d2.X * r))
		for _, i := range [3]uint32{i0, i1, i2} {
			vs[i].Tangent = vs[i].Tangent.Add(t)
			vs[i].Bitangent = vs[i].Bitangent.Add(b)
		}
	}

	if len(data.Indices) > 0 {
		for i := 0; i+2 < len(data.Indices); i += 3 {
			add(data.Indices[i], data.Indices[i+1], data.Indices[i+2])
		}
	} else {
		for i := 0; i+2 < len(vs); i += 3 {
			add(uint32(i), uint32(i+1), uint32(i+2))
		}
	}

	// Gram-Schmidt against the normal.
	for i := range vs {
		n, t := vs[i].Normal, vs[i].Tangent
		t = t.Sub(n.Mul(n.Dot(t)))
		if t.LengthSqr() < 1e-8 {
			axis := math.Vec3Right
			if math32.Abs(n.X) > 0.9 {
				axis = math.Vec3Up
			}
			t = axis.Sub(n.Mul(n.Dot(axis)))
		}
		vs[i].Tangent = t.Normalize()

		b := vs[i].Bitangent
		if b.LengthSqr() < 1e-8 {
			b = n.Cross(vs[i].Tangent)
		}
		vs[i].Bitangent = b.Normalize()
	}
}
