package gpu

import (
	"fmt"
	"slices"

	"render-core/core"
	"render-core/math"
)

type UniformKind uint8

const (
	KindInvalid UniformKind = iota
	KindFloat
	KindVec2
	KindVec3
	KindVec4
	KindInt
	KindIVec2
	KindIVec3
	KindIVec4
	KindUint
	KindUVec2
	KindUVec3
	KindUVec4
	KindBool
	KindBVec2
	KindBVec3
	KindBVec4
	KindMat2
	KindMat3
	KindMat4
	KindMat2x3
	KindMat3x2
	KindMat2x4
	KindMat4x2
	KindMat3x4
	KindMat4x3
	// Sampler kinds are only ever declared. They are set with KindInt.
	KindSampler2D
	KindSampler2DShadow
	KindSamplerCube
	KindSamplerCubeShadow
)

var kindNames = [...]string{
	KindInvalid:           "invalid",
	KindFloat:             "float",
	KindVec2:              "vec2",
	KindVec3:              "vec3",
	KindVec4:              "vec4",
	KindInt:               "int",
	KindIVec2:             "ivec2",
	KindIVec3:             "ivec3",
	KindIVec4:             "ivec4",
	KindUint:              "uint",
	KindUVec2:             "uvec2",
	KindUVec3:             "uvec3",
	KindUVec4:             "uvec4",
	KindBool:              "bool",
	KindBVec2:             "bvec2",
	KindBVec3:             "bvec3",
	KindBVec4:             "bvec4",
	KindMat2:              "mat2",
	KindMat3:              "mat3",
	KindMat4:              "mat4",
	KindMat2x3:            "mat2x3",
	KindMat3x2:            "mat3x2",
	KindMat2x4:            "mat2x4",
	KindMat4x2:            "mat4x2",
	KindMat3x4:            "mat3x4",
	KindMat4x3:            "mat4x3",
	KindSampler2D:         "sampler2D",
	KindSampler2DShadow:   "sampler2DShadow",
	KindSamplerCube:       "samplerCube",
	KindSamplerCubeShadow: "samplerCubeShadow",
}

func (k UniformKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("UniformKind(%d)", uint8(k))
}

// KindByName maps a GLSL type name to its kind.
func KindByName(name string) (UniformKind, bool) {
	for k, n := range kindNames {
		if n == name && k != int(KindInvalid) {
			return UniformKind(k), true
		}
	}
	return KindInvalid, false
}

// Components is the number of scalars a value of kind k carries.
func (k UniformKind) Components() int {
	switch k {
	case KindFloat, KindInt, KindUint, KindBool:
		return 1
	case KindVec2, KindIVec2, KindUVec2, KindBVec2:
		return 2
	case KindVec3, KindIVec3, KindUVec3, KindBVec3:
		return 3
	case KindVec4, KindIVec4, KindUVec4, KindBVec4, KindMat2:
		return 4
	case KindMat2x3, KindMat3x2:
		return 6
	case KindMat2x4, KindMat4x2:
		return 8
	case KindMat3:
		return 9
	case KindMat3x4, KindMat4x3:
		return 12
	case KindMat4:
		return 16
	case KindSampler2D, KindSampler2DShadow, KindSamplerCube, KindSamplerCubeShadow:
		return 1
	}
	return 0
}

func (k UniformKind) IsMatrix() bool {
	return k >= KindMat2 && k <= KindMat4x3
}

func (k UniformKind) IsSampler() bool {
	return k >= KindSampler2D && k <= KindSamplerCubeShadow
}

func (k UniformKind) IsFloat() bool {
	return (k >= KindFloat && k <= KindVec4) || k.IsMatrix()
}

func (k UniformKind) IsUint() bool {
	return k >= KindUint && k <= KindUVec4
}

func (k UniformKind) IsBool() bool {
	return k >= KindBool && k <= KindBVec4
}

// Compatible reports whether a value of kind k may be written to a uniform
// declared as declared. Samplers take ints, bools take bools or same-width
// ints, everything else must match exactly.
func (k UniformKind) Compatible(declared UniformKind) bool {
	switch {
	case declared.IsSampler():
		return k == KindInt
	case declared.IsBool():
		if k == declared {
			return true
		}
		return k >= KindInt && k <= KindIVec4 && k.Components() == declared.Components()
	}
	return k == declared
}

// UniformValue is a tagged union over every uniform shape the driver
// accepts. Float and matrix kinds use F, int and bool kinds use I, unsigned
// kinds use U. Matrices are stored in upload order.
type UniformValue struct {
	Kind      UniformKind
	Transpose bool
	F         [16]float32
	I         [4]int32
	U         [4]uint32
}

func (v UniformValue) Floats() []float32 { return v.F[:v.Kind.Components()] }
func (v UniformValue) Ints() []int32     { return v.I[:v.Kind.Components()] }
func (v UniformValue) Uints() []uint32   { return v.U[:v.Kind.Components()] }

// Equal compares the components that kind v.Kind carries.
func (v UniformValue) Equal(o UniformValue) bool {
	if v.Kind != o.Kind || v.Transpose != o.Transpose {
		return false
	}
	n := v.Kind.Components()
	switch {
	case v.Kind.IsFloat():
		return slices.Equal(v.F[:n], o.F[:n])
	case v.Kind.IsUint():
		return slices.Equal(v.U[:n], o.U[:n])
	}
	return slices.Equal(v.I[:n], o.I[:n])
}

func (v UniformValue) String() string {
	n := v.Kind.Components()
	switch {
	case v.Kind.IsFloat():
		return fmt.Sprintf("%s%v", v.Kind, v.F[:n])
	case v.Kind.IsUint():
		return fmt.Sprintf("%s%v", v.Kind, v.U[:n])
	}
	return fmt.Sprintf("%s%v", v.Kind, v.I[:n])
}

// ── Constructors ─────────────────────────────────────────────────────────────

func Float(x float32) UniformValue {
	v := UniformValue{Kind: KindFloat}
	v.F[0] = x
	return v
}

func Vec2(x math.Vec2) UniformValue {
	v := UniformValue{Kind: KindVec2}
	v.F[0], v.F[1] = x.X, x.Y
	return v
}

func Vec3(x math.Vec3) UniformValue {
	v := UniformValue{Kind: KindVec3}
	v.F[0], v.F[1], v.F[2] = x.X, x.Y, x.Z
	return v
}

func Vec4(x math.Vec4) UniformValue {
	v := UniformValue{Kind: KindVec4}
	v.F[0], v.F[1], v.F[2], v.F[3] = x.X, x.Y, x.Z, x.W
	return v
}

// Colour is c as a vec4.
func Colour(c core.Color) UniformValue {
	return Vec4(c.Vec4())
}

// ColourRGB is c as a vec3, dropping alpha.
func ColourRGB(c core.Color) UniformValue {
	return Vec3(c.Vec3())
}

func Int(x int32) UniformValue {
	v := UniformValue{Kind: KindInt}
	v.I[0] = x
	return v
}

func IVec2(x, y int32) UniformValue {
	return UniformValue{Kind: KindIVec2, I: [4]int32{x, y}}
}

func IVec3(x, y, z int32) UniformValue {
	return UniformValue{Kind: KindIVec3, I: [4]int32{x, y, z}}
}

func IVec4(x, y, z, w int32) UniformValue {
	return UniformValue{Kind: KindIVec4, I: [4]int32{x, y, z, w}}
}

func Uint(x uint32) UniformValue {
	v := UniformValue{Kind: KindUint}
	v.U[0] = x
	return v
}

func UVec2(x, y uint32) UniformValue {
	return UniformValue{Kind: KindUVec2, U: [4]uint32{x, y}}
}

func UVec3(x, y, z uint32) UniformValue {
	return UniformValue{Kind: KindUVec3, U: [4]uint32{x, y, z}}
}

func UVec4(x, y, z, w uint32) UniformValue {
	return UniformValue{Kind: KindUVec4, U: [4]uint32{x, y, z, w}}
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func Bool(b bool) UniformValue {
	return UniformValue{Kind: KindBool, I: [4]int32{b2i(b)}}
}

func BVec2(x, y bool) UniformValue {
	return UniformValue{Kind: KindBVec2, I: [4]int32{b2i(x), b2i(y)}}
}

func BVec3(x, y, z bool) UniformValue {
	return UniformValue{Kind: KindBVec3, I: [4]int32{b2i(x), b2i(y), b2i(z)}}
}

func BVec4(x, y, z, w bool) UniformValue {
	return UniformValue{Kind: KindBVec4, I: [4]int32{b2i(x), b2i(y), b2i(z), b2i(w)}}
}

// Sampler binds a sampler uniform to a texture unit.
func Sampler(unit int) UniformValue {
	return Int(int32(unit))
}

func Mat3(m math.Mat3) UniformValue {
	v := UniformValue{Kind: KindMat3}
	copy(v.F[:], m.Elements())
	return v
}

func Mat4(m math.Mat4) UniformValue {
	v := UniformValue{Kind: KindMat4}
	copy(v.F[:], m.Elements())
	return v
}

// Matrix builds any matrix kind from raw elements in upload order. It
// panics when kind is not a matrix or elems has the wrong length.
func Matrix(kind UniformKind, elems []float32, transpose bool) UniformValue {
	if !kind.IsMatrix() || len(elems) != kind.Components() {
		panic(fmt.Sprintf("gpu: %d elements do not form a %s", len(elems), kind))
	}
	v := UniformValue{Kind: kind, Transpose: transpose}
	copy(v.F[:], elems)
	return v
}
