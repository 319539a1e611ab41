package gpu

import (
	"fmt"

	"render-core/core"
)

// Framebuffer is a set of colour attachments plus an optional depth or
// depth-stencil attachment, with draw and read attachment selection.
// Attachments added with owned=false are borrowed and never released here.
type Framebuffer struct {
	noCopy noCopy

	dev    Device
	id     uint32
	width  int
	height int

	colour     []*Texture
	depth      *Texture
	depthPoint AttachPoint
	owned      map[*Texture]bool

	draw []int
	read int
}

func NewFramebuffer(dev Device, width, height int) *Framebuffer {
	return &Framebuffer{
		dev:    dev,
		id:     dev.CreateFramebuffer(),
		width:  width,
		height: height,
		owned:  make(map[*Texture]bool),
		read:   -1,
	}
}

// DefaultFramebuffer wraps the window's framebuffer. Releasing it does nothing.
func DefaultFramebuffer(dev Device, width, height int) *Framebuffer {
	return &Framebuffer{dev: dev, width: width, height: height, read: 0}
}

func (f *Framebuffer) ID() uint32       { return f.id }
func (f *Framebuffer) Size() (int, int) { return f.width, f.height }
func (f *Framebuffer) NumColour() int   { return len(f.colour) }
func (f *Framebuffer) DrawList() []int  { return append([]int(nil), f.draw...) }
func (f *Framebuffer) ReadIndex() int   { return f.read }

func (f *Framebuffer) Colour(i int) *Texture { return f.colour[i] }
func (f *Framebuffer) DepthStencil() *Texture { return f.depth }

// Attach places tex at colour attachment i, replacing what was there. The
// replaced texture keeps its ownership state.
func (f *Framebuffer) Attach(i int, tex *Texture, owned bool) {
	for len(f.colour) <= i {
		f.colour = append(f.colour, nil)
	}
	f.colour[i] = tex
	if owned {
		f.owned[tex] = true
	}
	f.dev.AttachTexture(f.id, AttachColour, i, tex.ID(), FaceNone)
}

// AttachDepth sets the depth (or depth-stencil) attachment. face selects a
// cube face, or FaceNone for 2D textures.
func (f *Framebuffer) AttachDepth(tex *Texture, point AttachPoint, face int, owned bool) {
	f.depth = tex
	f.depthPoint = point
	if owned {
		f.owned[tex] = true
	}
	f.dev.AttachTexture(f.id, point, 0, tex.ID(), face)
}

// Check validates completeness. On failure the caller releases the buffer.
func (f *Framebuffer) Check() error {
	if err := f.dev.CheckFramebuffer(f.id); err != nil {
		return fmt.Errorf("framebuffer %dx%d: %w", f.width, f.height, err)
	}
	return nil
}

// Bind makes f the render target and sets the viewport to its size.
func (f *Framebuffer) Bind() {
	f.dev.BindFramebuffer(f.id)
	f.dev.Viewport(0, 0, int32(f.width), int32(f.height))
}

func (f *Framebuffer) SetDrawColourAttachment(i int) {
	f.setDraw([]int{i})
}

func (f *Framebuffer) SetDrawColourAttachments(is ...int) {
	f.setDraw(is)
}

func (f *Framebuffer) SetDrawColourAttachmentAll() {
	all := make([]int, len(f.colour))
	for i := range all {
		all[i] = i
	}
	f.setDraw(all)
}

// SetDrawNone disables colour output, as depth-only passes need.
func (f *Framebuffer) SetDrawNone() {
	f.setDraw(nil)
}

func (f *Framebuffer) setDraw(is []int) {
	f.draw = append(f.draw[:0], is...)
	if f.id != 0 {
		f.dev.DrawBuffers(f.id, f.draw)
	}
}

func (f *Framebuffer) SetReadColourAttachment(i int) {
	f.read = i
	f.dev.ReadBuffer(f.id, i)
}

// ClearColour clears colour attachment i. f must be bound.
func (f *Framebuffer) ClearColour(i int, c core.Color) {
	prev := append([]int(nil), f.draw...)
	f.setDraw([]int{i})
	f.dev.ClearColour(0, c)
	f.setDraw(prev)
}

// ClearColourAll clears every colour attachment. f must be bound.
func (f *Framebuffer) ClearColourAll(c core.Color) {
	if f.id == 0 {
		f.dev.ClearColour(0, c)
		return
	}
	prev := append([]int(nil), f.draw...)
	f.SetDrawColourAttachmentAll()
	for i := range f.colour {
		f.dev.ClearColour(i, c)
	}
	f.setDraw(prev)
}

func (f *Framebuffer) ClearDepthStencil(depth float32, stencil int32) {
	f.dev.ClearDepthStencil(depth, stencil)
}

// BlitTo copies the read attachment of f into the draw attachments of dst
// with nearest filtering, scaling to dst's full size.
func (f *Framebuffer) BlitTo(dst *Framebuffer, colour, depth, stencil bool) {
	f.BlitToRect(dst, [4]int32{0, 0, int32(dst.width), int32(dst.height)}, colour, depth, stencil)
}

// BlitToRect copies into the pixel rectangle {x0, y0, x1, y1} of dst.
func (f *Framebuffer) BlitToRect(dst *Framebuffer, rect [4]int32, colour, depth, stencil bool) {
	var mask BlitMask
	if colour {
		mask |= BlitColour
	}
	if depth {
		mask |= BlitDepth
	}
	if stencil {
		mask |= BlitStencil
	}
	f.dev.Blit(f.id, dst.id, [4]int32{0, 0, int32(f.width), int32(f.height)}, rect, mask)
}

// Release deletes the framebuffer and the attachments it owns. Further
// calls are no-ops.
func (f *Framebuffer) Release() {
	if f.id == 0 {
		return
	}
	for tex := range f.owned {
		tex.Release()
	}
	f.owned = nil
	f.dev.DeleteFramebuffer(f.id)
	f.id = 0
	f.colour = nil
	f.depth = nil
}
