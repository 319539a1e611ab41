package opengl

import (
	"fmt"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-core/internal/gpu"
)

// ── Shader helpers ────────────────────────────────────────────────────────────

func shaderType(s gpu.Stage) uint32 {
	switch s {
	case gpu.StageGeometry:
		return gl.GEOMETRY_SHADER
	case gpu.StageFragment:
		return gl.FRAGMENT_SHADER
	}
	return gl.VERTEX_SHADER
}

// CompileShader compiles the concatenation of sources as one stage.
func (d *Device) CompileShader(stage gpu.Stage, sources []string) (uint32, error) {
	shader := gl.CreateShader(shaderType(stage))

	terminated := make([]string, len(sources))
	for i, src := range sources {
		terminated[i] = src + "\x00"
	}
	csrc, free := gl.Strs(terminated...)
	gl.ShaderSource(shader, int32(len(terminated)), csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %v", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

func (d *Device) LinkProgram(shaders []uint32) (uint32, error) {
	prog := gl.CreateProgram()
	for _, s := range shaders {
		gl.AttachShader(prog, s)
	}
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("link failed: %v", strings.TrimRight(log, "\x00"))
	}

	for _, s := range shaders {
		gl.DetachShader(prog, s)
	}
	return prog, nil
}

func (d *Device) DeleteShader(id uint32) {
	gl.DeleteShader(id)
}

func (d *Device) DeleteProgram(id uint32) {
	gl.DeleteProgram(id)
}

func (d *Device) UseProgram(id uint32) {
	gl.UseProgram(id)
}

func (d *Device) UniformLocation(prog uint32, name string) int32 {
	return gl.GetUniformLocation(prog, gl.Str(name+"\x00"))
}

// ── Uniform reflection ────────────────────────────────────────────────────────

var glUniformKinds = map[uint32]gpu.UniformKind{
	gl.FLOAT:               gpu.KindFloat,
	gl.FLOAT_VEC2:          gpu.KindVec2,
	gl.FLOAT_VEC3:          gpu.KindVec3,
	gl.FLOAT_VEC4:          gpu.KindVec4,
	gl.INT:                 gpu.KindInt,
	gl.INT_VEC2:            gpu.KindIVec2,
	gl.INT_VEC3:            gpu.KindIVec3,
	gl.INT_VEC4:            gpu.KindIVec4,
	gl.UNSIGNED_INT:        gpu.KindUint,
	gl.UNSIGNED_INT_VEC2:   gpu.KindUVec2,
	gl.UNSIGNED_INT_VEC3:   gpu.KindUVec3,
	gl.UNSIGNED_INT_VEC4:   gpu.KindUVec4,
	gl.BOOL:                gpu.KindBool,
	gl.BOOL_VEC2:           gpu.KindBVec2,
	gl.BOOL_VEC3:           gpu.KindBVec3,
	gl.BOOL_VEC4:           gpu.KindBVec4,
	gl.FLOAT_MAT2:          gpu.KindMat2,
	gl.FLOAT_MAT3:          gpu.KindMat3,
	gl.FLOAT_MAT4:          gpu.KindMat4,
	gl.FLOAT_MAT2x3:        gpu.KindMat2x3,
	gl.FLOAT_MAT3x2:        gpu.KindMat3x2,
	gl.FLOAT_MAT2x4:        gpu.KindMat2x4,
	gl.FLOAT_MAT4x2:        gpu.KindMat4x2,
	gl.FLOAT_MAT3x4:        gpu.KindMat3x4,
	gl.FLOAT_MAT4x3:        gpu.KindMat4x3,
	gl.SAMPLER_2D:          gpu.KindSampler2D,
	gl.SAMPLER_2D_SHADOW:   gpu.KindSampler2DShadow,
	gl.SAMPLER_CUBE:        gpu.KindSamplerCube,
	gl.SAMPLER_CUBE_SHADOW: gpu.KindSamplerCubeShadow,
}

func (d *Device) ActiveUniforms(prog uint32) []gpu.UniformInfo {
	var count, maxLen int32
	gl.GetProgramiv(prog, gl.ACTIVE_UNIFORMS, &count)
	gl.GetProgramiv(prog, gl.ACTIVE_UNIFORM_MAX_LENGTH, &maxLen)

	out := make([]gpu.UniformInfo, 0, count)
	for i := int32(0); i < count; i++ {
		var length, size int32
		var xtype uint32
		buf := strings.Repeat("\x00", int(maxLen+1))
		gl.GetActiveUniform(prog, uint32(i), maxLen, &length, &size, &xtype, gl.Str(buf))
		kind, ok := glUniformKinds[xtype]
		if !ok {
			continue
		}
		out = append(out, gpu.UniformInfo{Name: buf[:length], Kind: kind, Size: int(size)})
	}
	return out
}

// ── Uniform upload ────────────────────────────────────────────────────────────

func (d *Device) SetUniform(loc int32, v gpu.UniformValue) {
	if loc < 0 {
		return
	}
	f, i, u, t := &v.F[0], &v.I[0], &v.U[0], v.Transpose
	switch v.Kind {
	case gpu.KindFloat:
		gl.Uniform1fv(loc, 1, f)
	case gpu.KindVec2:
		gl.Uniform2fv(loc, 1, f)
	case gpu.KindVec3:
		gl.Uniform3fv(loc, 1, f)
	case gpu.KindVec4:
		gl.Uniform4fv(loc, 1, f)
	case gpu.KindInt, gpu.KindBool:
		gl.Uniform1iv(loc, 1, i)
	case gpu.KindIVec2, gpu.KindBVec2:
		gl.Uniform2iv(loc, 1, i)
	case gpu.KindIVec3, gpu.KindBVec3:
		gl.Uniform3iv(loc, 1, i)
	case gpu.KindIVec4, gpu.KindBVec4:
		gl.Uniform4iv(loc, 1, i)
	case gpu.KindUint:
		gl.Uniform1uiv(loc, 1, u)
	case gpu.KindUVec2:
		gl.Uniform2uiv(loc, 1, u)
	case gpu.KindUVec3:
		gl.Uniform3uiv(loc, 1, u)
	case gpu.KindUVec4:
		gl.Uniform4uiv(loc, 1, u)
	case gpu.KindMat2:
		gl.UniformMatrix2fv(loc, 1, t, f)
	case gpu.KindMat3:
		gl.UniformMatrix3fv(loc, 1, t, f)
	case gpu.KindMat4:
		gl.UniformMatrix4fv(loc, 1, t, f)
	case gpu.KindMat2x3:
		gl.UniformMatrix2x3fv(loc, 1, t, f)
	case gpu.KindMat3x2:
		gl.UniformMatrix3x2fv(loc, 1, t, f)
	case gpu.KindMat2x4:
		gl.UniformMatrix2x4fv(loc, 1, t, f)
	case gpu.KindMat4x2:
		gl.UniformMatrix4x2fv(loc, 1, t, f)
	case gpu.KindMat3x4:
		gl.UniformMatrix3x4fv(loc, 1, t, f)
	case gpu.KindMat4x3:
		gl.UniformMatrix4x3fv(loc, 1, t, f)
	default:
		panic(fmt.Sprintf("opengl: cannot upload uniform of kind %s", v.Kind))
	}
}

// ReadUniform reads a uniform back in storage order; transposed uploads
// read back transposed.
func (d *Device) ReadUniform(prog uint32, loc int32, kind gpu.UniformKind) gpu.UniformValue {
	out := gpu.UniformValue{Kind: kind}
	if loc < 0 {
		return out
	}
	switch {
	case kind.IsFloat():
		gl.GetUniformfv(prog, loc, &out.F[0])
	case kind.IsUint():
		gl.GetUniformuiv(prog, loc, &out.U[0])
	default:
		gl.GetUniformiv(prog, loc, &out.I[0])
		if kind.IsSampler() {
			out.Kind = gpu.KindInt
		}
	}
	return out
}
