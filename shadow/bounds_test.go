package shadow_test

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-core/math"
	"render-core/shadow"
)

const eps = 1e-3

func camera() shadow.CameraFrustum {
	c := shadow.FrustumFromWorld(math.Mat4Translation(math.NewVec3(0, 2, 10)))
	c.Near, c.Far = 0.5, 500
	c.Aspect = 16.0 / 9.0
	c.FOV = math32.Pi / 4
	c.OrthoSize = 5
	return c
}

func inNDC(t *testing.T, vp math.Mat4, p math.Vec3) {
	t.Helper()
	n := vp.MulPoint(p)
	assert.InDelta(t, 0, n.X, 1+eps, "x of %v", p)
	assert.InDelta(t, 0, n.Y, 1+eps, "y of %v", p)
	assert.InDelta(t, 0, n.Z, 1+eps, "z of %v", p)
}

func TestFrustumFromWorld(t *testing.T) {
	c := shadow.FrustumFromWorld(math.Mat4Identity())
	assert.Equal(t, math.NewVec3(0, 0, -1), c.Forward)
	assert.Equal(t, math.NewVec3(-1, 0, 0), c.Left)
	assert.Equal(t, math.Vec3Up, c.Up)
}

func TestBoundingBox(t *testing.T) {
	b := shadow.EmptyBox().Extend(math.NewVec3(1, -2, 3)).Extend(math.NewVec3(-1, 4, 0))
	assert.Equal(t, math.NewVec3(-1, -2, 0), b.Min)
	assert.Equal(t, math.NewVec3(1, 4, 3), b.Max)
	assert.Equal(t, math.NewVec3(0, 1, 1.5), b.Centre())

	c := b.Corners()
	assert.Equal(t, b.Min, c[0])
	assert.Equal(t, b.Max, c[7])
	assert.Equal(t, math.NewVec3(1, -2, 0), c[1])
	for _, p := range c {
		assert.True(t, b.Contains(p))
	}
	assert.False(t, b.Contains(math.NewVec3(2, 0, 0)))
}

func TestPerspectiveBoundsIdentity(t *testing.T) {
	c := camera()
	c.Position = math.Vec3Zero
	c.Near, c.Far = 1, 10
	c.Aspect = 1
	c.FOV = math32.Pi / 2

	b := shadow.PerspectiveBounds(math.Mat4Identity(), c)
	// tan(45deg) = 1, so the far rectangle spans +-10.
	assert.InDelta(t, -10, b.Min.X, eps)
	assert.InDelta(t, 10, b.Max.X, eps)
	assert.InDelta(t, -10, b.Min.Y, eps)
	assert.InDelta(t, 10, b.Max.Y, eps)
	assert.InDelta(t, -10, b.Min.Z, eps)
	assert.InDelta(t, -1, b.Max.Z, eps)
}

func TestOrthographicBoundsIdentity(t *testing.T) {
	c := camera()
	c.Position = math.Vec3Zero
	c.Near, c.Far = 1, 10
	c.Aspect = 2
	c.OrthoSize = 4

	b := shadow.OrthographicBounds(math.Mat4Identity(), c)
	assert.InDelta(t, -4, b.Min.X, eps)
	assert.InDelta(t, 4, b.Max.X, eps)
	assert.InDelta(t, -2, b.Min.Y, eps)
	assert.InDelta(t, 2, b.Max.Y, eps)
}

func TestDirectionalContainsFrustum(t *testing.T) {
	for _, dir := range []math.Vec3{
		math.NewVec3(-1, -1, -1),
		math.NewVec3(0, -1, 0), // parallel to up
		math.NewVec3(0.3, -0.2, 1),
	} {
		for _, ortho := range []bool{false, true} {
			c := camera()
			c.Orthographic = ortho
			d := shadow.DirectionalLight(dir, c, 50, 20)
			vp := d.ViewProjection()
			for _, p := range d.Corners {
				require.False(t, math32.IsNaN(p.X))
				inNDC(t, vp, p)
			}
		}
	}
}

func TestDirectionalClampsToShadowDistance(t *testing.T) {
	c := camera()
	d := shadow.DirectionalLight(math.NewVec3(0, -1, -0.5), c, 50, 0)
	for _, p := range d.Corners {
		depth := p.Sub(c.Position).Dot(c.Forward)
		assert.LessOrEqual(t, depth, float32(50)+eps)
	}

	// A shadow distance past the far plane changes nothing.
	far := shadow.DirectionalLight(math.NewVec3(0, -1, -0.5), c, 1e6, 0)
	near := shadow.DirectionalLight(math.NewVec3(0, -1, -0.5), c, c.Far, 0)
	assert.Equal(t, near.Corners, far.Corners)
}

func TestDirectionalCasterMargin(t *testing.T) {
	c := camera()
	dir := math.NewVec3(0, -1, 0.2)
	d := shadow.DirectionalLight(dir, c, 30, 25)

	// A caster above the fitted box, towards the light, still lands in the map.
	top := d.Corners[0]
	for _, p := range d.Corners {
		if p.Y > top.Y {
			top = p
		}
	}
	caster := top.Sub(dir.Normalize().Mul(20))
	inNDC(t, d.ViewProjection(), caster)

	tight := shadow.DirectionalLight(dir, c, 30, 0)
	z := tight.ViewProjection().MulPoint(caster).Z
	assert.Less(t, z, float32(-1))
}

func TestSpotLight(t *testing.T) {
	pos := math.NewVec3(0, 5, 0)
	dir := math.NewVec3(0, -1, 0)
	p := shadow.SpotLight(pos, dir, math32.Pi/6, 20)
	vp := p.ViewProjection()

	centre := vp.MulPoint(pos.Add(dir.Mul(10)))
	assert.InDelta(t, 0, centre.X, eps)
	assert.InDelta(t, 0, centre.Y, eps)
	assert.Greater(t, centre.Z, float32(-1))
	assert.Less(t, centre.Z, float32(1))

	// 20 degrees off axis is inside a 30 degree cone, 40 is outside.
	off := func(deg float32) math.Vec3 {
		a := deg * math32.Pi / 180
		return pos.Add(math.NewVec3(math32.Sin(a), -math32.Cos(a), 0).Mul(10))
	}
	inNDC(t, vp, off(20))
	assert.Greater(t, math32.Abs(vp.MulPoint(off(40)).X), float32(1))

	// Beyond the shadow distance is clipped.
	assert.Greater(t, vp.MulPoint(pos.Add(dir.Mul(25))).Z, float32(1))
}

func TestPointLightFaces(t *testing.T) {
	pos := math.NewVec3(1, 2, 3)
	faces := shadow.PointLight(pos, 10)
	axes := [6]math.Vec3{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}

	for i, f := range faces {
		vp := f.ViewProjection()
		n := vp.MulPoint(pos.Add(axes[i].Mul(5)))
		assert.InDelta(t, 0, n.X, eps, "face %d", i)
		assert.InDelta(t, 0, n.Y, eps, "face %d", i)
		assert.Greater(t, n.Z, float32(-1), "face %d", i)
		assert.Less(t, n.Z, float32(1), "face %d", i)

		// The opposite axis is behind the face.
		opposite := axes[i^1]
		clip := vp.MulVec(pos.Add(opposite.Mul(5)).ToVec4(1))
		assert.Less(t, clip.W, float32(0), "face %d", i)
	}

	// +X face: -Y in the world is +Y on the face.
	n := faces[shadow.FacePosX].ViewProjection().MulPoint(pos.Add(math.NewVec3(5, -1, 0)))
	assert.Greater(t, n.Y, float32(0))
}

func TestFrustumCulling(t *testing.T) {
	view, ok := math.Mat4Translation(math.NewVec3(0, 0, 10)).Inverse()
	require.True(t, ok)
	f := shadow.FrustumFromViewProjection(view.Mul(math.Mat4Perspective(math32.Pi/3, 1, 0.5, 100)))

	unit := shadow.BoundingBox{Min: math.NewVec3(-1, -1, -1), Max: math.NewVec3(1, 1, 1)}
	assert.True(t, unit.Intersects(&f))

	behind := unit.Transform(math.Mat4Translation(math.NewVec3(0, 0, 20)))
	assert.False(t, behind.Intersects(&f))
	assert.Equal(t, math.NewVec3(-1, -1, 19), behind.Min)

	beyond := unit.Transform(math.Mat4Translation(math.NewVec3(0, 0, -200)))
	assert.False(t, beyond.Intersects(&f))

	aside := unit.Transform(math.Mat4Translation(math.NewVec3(50, 0, 0)))
	assert.False(t, aside.Intersects(&f))

	// Straddling the left plane still counts.
	edge := unit.Transform(math.Mat4Translation(math.NewVec3(-5.7, 0, 0)))
	assert.True(t, edge.Intersects(&f))
}
