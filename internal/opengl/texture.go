package opengl

import (
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-core/internal/gpu"
)

// textureFormat returns internal format, pixel format and pixel type.
func textureFormat(f gpu.Format) (int32, uint32, uint32) {
	switch f {
	case gpu.FormatRGBA16F:
		return gl.RGBA16F, gl.RGBA, gl.FLOAT
	case gpu.FormatR16F:
		return gl.R16F, gl.RED, gl.FLOAT
	case gpu.FormatDepth24Stencil8:
		return gl.DEPTH24_STENCIL8, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8
	case gpu.FormatDepth32F:
		return gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT
	}
	return gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE
}

func textureTarget(k gpu.TextureKind) uint32 {
	if k == gpu.TextureCube {
		return gl.TEXTURE_CUBE_MAP
	}
	return gl.TEXTURE_2D
}

func (d *Device) CreateTexture(desc gpu.TextureDesc, faces [][]byte) (uint32, error) {
	target := textureTarget(desc.Kind)
	internal, format, xtype := textureFormat(desc.Format)

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(target, id)

	minFilter, magFilter := int32(gl.LINEAR), int32(gl.LINEAR)
	switch desc.Filter {
	case gpu.FilterNearest:
		minFilter, magFilter = gl.NEAREST, gl.NEAREST
	case gpu.FilterMipmap:
		minFilter = gl.LINEAR_MIPMAP_LINEAR
	}
	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, magFilter)

	wrap := int32(gl.REPEAT)
	switch desc.Wrap {
	case gpu.WrapClampEdge:
		wrap = gl.CLAMP_TO_EDGE
	case gpu.WrapClampBorder:
		wrap = gl.CLAMP_TO_BORDER
		// Fragments outside the shadow map are lit (border depth = 1.0)
		border := [4]float32{1, 1, 1, 1}
		gl.TexParameterfv(target, gl.TEXTURE_BORDER_COLOR, &border[0])
	}
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, wrap)
	if desc.Kind == gpu.TextureCube {
		gl.TexParameteri(target, gl.TEXTURE_WRAP_R, wrap)
	}

	if desc.Compare {
		// Hardware PCF: texture() returns 0.0 or 1.0 based on depth comparison
		gl.TexParameteri(target, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
		gl.TexParameteri(target, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)
	}

	image := func(i int) unsafe.Pointer {
		if i < len(faces) && len(faces[i]) > 0 {
			return gl.Ptr(faces[i])
		}
		return nil
	}

	w, h := int32(desc.Width), int32(desc.Height)
	if desc.Kind == gpu.TextureCube {
		for i := 0; i < 6; i++ {
			gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(i), 0, internal, w, h, 0, format, xtype, image(i))
		}
	} else {
		gl.TexImage2D(gl.TEXTURE_2D, 0, internal, w, h, 0, format, xtype, image(0))
	}
	if desc.Filter == gpu.FilterMipmap {
		gl.GenerateMipmap(target)
	}
	gl.BindTexture(target, 0)

	if err := checkAlloc(); err != nil {
		gl.DeleteTextures(1, &id)
		return 0, err
	}
	return id, nil
}

func (d *Device) BindTexture(unit int, kind gpu.TextureKind, id uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(textureTarget(kind), id)
}

func (d *Device) DeleteTexture(id uint32) {
	gl.DeleteTextures(1, &id)
}
