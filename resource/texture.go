package resource

import (
	"fmt"

	"render-core/core"
	"render-core/internal/gpu"
)

// TextureData is CPU-side RGBA8 pixel data, row-major.
type TextureData struct {
	Width  int
	Height int
	Pixels []byte
}

func (d TextureData) validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", d.Width, d.Height)
	}
	if len(d.Pixels) != d.Width*d.Height*4 {
		return fmt.Errorf("%dx%d RGBA8 needs %d bytes, got %d", d.Width, d.Height, d.Width*d.Height*4, len(d.Pixels))
	}
	return nil
}

// SolidTexture is a 1x1 texture of colour c.
func SolidTexture(c core.Color) TextureData {
	return TextureData{Width: 1, Height: 1, Pixels: []byte{toByte(c.R), toByte(c.G), toByte(c.B), toByte(c.A)}}
}

// CheckerTexture is a size x size checkerboard of 8x8 blocks.
func CheckerTexture(size int, c1, c2 core.Color) TextureData {
	pixels := make([]byte, size*size*4)
	block := max(size/8, 1)
	a := [4]byte{toByte(c1.R), toByte(c1.G), toByte(c1.B), toByte(c1.A)}
	b := [4]byte{toByte(c2.R), toByte(c2.G), toByte(c2.B), toByte(c2.A)}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := b
			if (x/block+y/block)%2 == 0 {
				c = a
			}
			copy(pixels[(y*size+x)*4:], c[:])
		}
	}
	return TextureData{Width: size, Height: size, Pixels: pixels}
}

func toByte(f float32) byte {
	return byte(min(max(f, 0), 1)*255 + 0.5)
}

// TextureManager owns 2D and cube textures by name.
type TextureManager struct {
	*Registry[*gpu.Texture]
	dev gpu.Device
}

func NewTextureManager(dev gpu.Device) *TextureManager {
	return &TextureManager{
		Registry: NewRegistry[*gpu.Texture]("texture", PolicyFail),
		dev:      dev,
	}
}

// Make uploads a mipmapped, repeating 2D texture.
func (m *TextureManager) Make(name string, data TextureData) (Handle, error) {
	if err := data.validate(); err != nil {
		return 0, fmt.Errorf("texture %q: %w", name, err)
	}
	return m.upload(name, gpu.TextureDesc{
		Kind:   gpu.Texture2D,
		Format: gpu.FormatRGBA8,
		Width:  data.Width,
		Height: data.Height,
		Filter: gpu.FilterMipmap,
		Wrap:   gpu.WrapRepeat,
	}, data.Pixels)
}

// MakeSolid uploads a 1x1 texture of colour c.
func (m *TextureManager) MakeSolid(name string, c core.Color) (Handle, error) {
	return m.upload(name, gpu.TextureDesc{
		Kind:   gpu.Texture2D,
		Format: gpu.FormatRGBA8,
		Width:  1,
		Height: 1,
		Filter: gpu.FilterNearest,
		Wrap:   gpu.WrapRepeat,
	}, SolidTexture(c).Pixels)
}

// MakeCubemap uploads six square faces in +X, -X, +Y, -Y, +Z, -Z order.
func (m *TextureManager) MakeCubemap(name string, faces [6]TextureData) (Handle, error) {
	size := faces[0].Width
	pixels := make([][]byte, 6)
	for i, f := range faces {
		if err := f.validate(); err != nil {
			return 0, fmt.Errorf("cubemap %q face %d: %w", name, i, err)
		}
		if f.Width != size || f.Height != size {
			return 0, fmt.Errorf("cubemap %q face %d: %dx%d, want %dx%d", name, i, f.Width, f.Height, size, size)
		}
		pixels[i] = f.Pixels
	}
	return m.upload(name, gpu.TextureDesc{
		Kind:   gpu.TextureCube,
		Format: gpu.FormatRGBA8,
		Width:  size,
		Height: size,
		Filter: gpu.FilterLinear,
		Wrap:   gpu.WrapClampEdge,
	}, pixels...)
}

func (m *TextureManager) upload(name string, desc gpu.TextureDesc, faces ...[]byte) (Handle, error) {
	if m.rejects(name) {
		return 0, fmt.Errorf("texture %q: %w", name, ErrAlreadyExists)
	}
	tex, err := gpu.NewTexture(m.dev, desc, faces...)
	if err != nil {
		return 0, fmt.Errorf("texture %q: %w", name, err)
	}
	h, err := m.Register(name, tex)
	if err != nil {
		tex.Release()
		return 0, err
	}
	return h, nil
}
