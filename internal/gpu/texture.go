package gpu

import "fmt"

// Texture owns one texture object. Its shape is fixed at creation.
type Texture struct {
	noCopy noCopy

	dev  Device
	id   uint32
	desc TextureDesc
}

// NewTexture allocates a texture. faces is empty for render targets, one
// RGBA8 image for a 2D texture or six for a cube.
func NewTexture(dev Device, desc TextureDesc, faces ...[]byte) (*Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	if n := len(faces); n != 0 {
		want := 1
		if desc.Kind == TextureCube {
			want = 6
		}
		if n != want {
			return nil, fmt.Errorf("texture needs %d images, got %d", want, n)
		}
	}
	id, err := dev.CreateTexture(desc, faces)
	if err != nil {
		return nil, fmt.Errorf("create texture %dx%d: %w", desc.Width, desc.Height, err)
	}
	return &Texture{dev: dev, id: id, desc: desc}, nil
}

func (t *Texture) ID() uint32         { return t.id }
func (t *Texture) Desc() TextureDesc  { return t.desc }
func (t *Texture) Kind() TextureKind  { return t.desc.Kind }
func (t *Texture) Size() (int, int)   { return t.desc.Width, t.desc.Height }
func (t *Texture) Released() bool     { return t.id == 0 }

func (t *Texture) Bind(unit int) {
	t.dev.BindTexture(unit, t.desc.Kind, t.id)
}

// Release deletes the texture. Further calls are no-ops.
func (t *Texture) Release() {
	if t.id == 0 {
		return
	}
	t.dev.DeleteTexture(t.id)
	t.id = 0
}
