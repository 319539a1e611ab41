package math

import (
	"math"
	"testing"
)

const tolerance = 0.001

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) <= tolerance
}

func nearVec3(a, b Vec3) bool {
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Z, b.Z)
}

func TestVec3Operations(t *testing.T) {
	v1 := NewVec3(1, 2, 3)
	v2 := NewVec3(4, 5, 6)

	result := v1.Add(v2)
	expected := NewVec3(5, 7, 9)
	if result != expected {
		t.Errorf("Add: expected %v, got %v", expected, result)
	}

	result = v2.Sub(v1)
	expected = NewVec3(3, 3, 3)
	if result != expected {
		t.Errorf("Sub: expected %v, got %v", expected, result)
	}

	dot := v1.Dot(v2)
	if dot != 32 { // 1*4 + 2*5 + 3*6
		t.Errorf("Dot: expected 32, got %v", dot)
	}

	// Right x Up = Front in a right-handed system
	cross := Vec3Right.Cross(Vec3Up)
	if cross != Vec3Front {
		t.Errorf("Cross: expected %v, got %v", Vec3Front, cross)
	}

	lo := NewVec3(1, 5, 3).Min(NewVec3(2, 4, 3))
	hi := NewVec3(1, 5, 3).Max(NewVec3(2, 4, 3))
	if lo != NewVec3(1, 4, 3) || hi != NewVec3(2, 5, 3) {
		t.Errorf("Min/Max: got %v / %v", lo, hi)
	}
}

func TestVec3Normalize(t *testing.T) {
	normalized := NewVec3(3, 0, 0).Normalize()
	if normalized != NewVec3(1, 0, 0) {
		t.Errorf("Normalize: expected (1,0,0), got %v", normalized)
	}
	if !near(normalized.Length(), 1) {
		t.Errorf("Normalize: expected length 1, got %v", normalized.Length())
	}

	zero := Vec3Zero.Normalize()
	if zero != Vec3Zero {
		t.Errorf("Normalize: zero vector should stay zero, got %v", zero)
	}
}

func TestMat4Translation(t *testing.T) {
	translation := NewVec3(1, 2, 3)
	m := Mat4Translation(translation)

	if m.Translation() != translation {
		t.Errorf("Translation: expected %v, got %v", translation, m.Translation())
	}
	if p := m.MulPoint(Vec3Zero); p != translation {
		t.Errorf("MulPoint: expected %v, got %v", translation, p)
	}
	if d := m.MulDir(Vec3Up); d != Vec3Up {
		t.Errorf("MulDir: translation must not move directions, got %v", d)
	}
}

func TestMat4Inverse(t *testing.T) {
	m := Mat4TRS(NewVec3(4, -2, 7), QuaternionFromAxisAngle(NewVec3(1, 1, 0), 0.7), NewVec3(2, 3, 0.5))

	inv, ok := m.Inverse()
	if !ok {
		t.Fatal("Inverse: expected an invertible matrix")
	}

	product := m.Mul(inv)
	identity := Mat4Identity()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if !near(product[i][j], identity[i][j]) {
				t.Errorf("Inverse: m * inv [%d][%d] = %v", i, j, product[i][j])
			}
		}
	}

	if _, ok := Mat4Scale(NewVec3(1, 0, 1)).Inverse(); ok {
		t.Error("Inverse: a singular matrix should report false")
	}
}

func TestMat4TRSOrder(t *testing.T) {
	rot := QuaternionFromAxisAngle(Vec3Up, float32(math.Pi/2))
	m := Mat4TRS(NewVec3(10, 0, 0), rot, NewVec3(2, 2, 2))

	// Scale (1,0,0) to (2,0,0), rotate 90 degrees about Y to (0,0,-2), then translate.
	got := m.MulPoint(Vec3Right)
	expected := NewVec3(10, 0, -2)
	if !nearVec3(got, expected) {
		t.Errorf("TRS: expected %v, got %v", expected, got)
	}
}

func TestNormalMatrix(t *testing.T) {
	// Non-uniform scale: normals must scale by the inverse.
	m := Mat4Scale(NewVec3(2, 1, 1))
	n := m.NormalMatrix().MulVec(NewVec3(1, 1, 0))
	if !nearVec3(n, NewVec3(0.5, 1, 0)) {
		t.Errorf("NormalMatrix: expected (0.5,1,0), got %v", n)
	}

	// Pure rotation: the normal matrix equals the rotation.
	rot := QuaternionFromAxisAngle(Vec3Right, 0.3)
	r := rot.ToMat4()
	got := r.NormalMatrix().MulVec(Vec3Up)
	if !nearVec3(got, rot.RotateVector(Vec3Up)) {
		t.Errorf("NormalMatrix: rotation mismatch, got %v", got)
	}
}

func TestQuaternionRotation(t *testing.T) {
	q := QuaternionFromAxisAngle(Vec3Up, float32(math.Pi/2))

	// Rotating +X 90 degrees about Y gives -Z
	result := q.RotateVector(Vec3Right)
	if !nearVec3(result, Vec3Back) {
		t.Errorf("Quaternion rotation: expected approximately (0,0,-1), got %v", result)
	}

	viaMatrix := Vec3Right.ToVec4(0).MulMat(q.ToMat4()).ToVec3()
	if !nearVec3(viaMatrix, result) {
		t.Errorf("ToMat4: expected %v, got %v", result, viaMatrix)
	}
}

func TestMat4Perspective(t *testing.T) {
	near, far := float32(0.5), float32(100)
	m := Mat4Perspective(float32(math.Pi/4), 16.0/9.0, near, far)

	// A point on the near plane lands on NDC z = -1, the far plane on +1.
	if z := m.MulPoint(NewVec3(0, 0, -near)).Z; !nearF(z, -1) {
		t.Errorf("Perspective: near plane z = %v", z)
	}
	if z := m.MulPoint(NewVec3(0, 0, -far)).Z; !nearF(z, 1) {
		t.Errorf("Perspective: far plane z = %v", z)
	}
}

func TestMat4Orthographic(t *testing.T) {
	m := Mat4Orthographic(-2, 6, -1, 3, 1, 11)

	lo := m.MulPoint(NewVec3(-2, -1, -1))
	hi := m.MulPoint(NewVec3(6, 3, -11))
	if !nearVec3(lo, NewVec3(-1, -1, -1)) || !nearVec3(hi, NewVec3(1, 1, 1)) {
		t.Errorf("Orthographic: got %v and %v", lo, hi)
	}
}

func TestMat4LookAt(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	m := Mat4LookAt(eye, Vec3Zero, Vec3Up)

	// The view matrix moves the eye to the origin and the target onto -Z.
	if result := m.MulPoint(eye); !nearVec3(result, Vec3Zero) {
		t.Errorf("LookAt: expected eye at origin, got %v", result)
	}
	if result := m.MulPoint(Vec3Zero); !nearVec3(result, NewVec3(0, 0, -5)) {
		t.Errorf("LookAt: expected target at (0,0,-5), got %v", result)
	}
}

func nearF(a, b float32) bool {
	return math.Abs(float64(a-b)) <= 0.01
}

func BenchmarkMat4Mul(b *testing.B) {
	m1 := Mat4Identity()
	m2 := Mat4Identity()

	for i := 0; i < b.N; i++ {
		_ = m1.Mul(m2)
	}
}

func BenchmarkMat4Inverse(b *testing.B) {
	m := Mat4TRS(NewVec3(1, 2, 3), QuaternionIdentity(), Vec3One)

	for i := 0; i < b.N; i++ {
		_, _ = m.Inverse()
	}
}
