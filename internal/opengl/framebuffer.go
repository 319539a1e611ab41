package opengl

import (
	"fmt"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-core/core"
	"render-core/internal/gpu"
)

// withFramebuffer runs fn with fb bound, then restores the render target.
func (d *Device) withFramebuffer(fb uint32, fn func()) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
	fn()
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.boundFB)
}

func (d *Device) CreateFramebuffer() uint32 {
	var id uint32
	gl.GenFramebuffers(1, &id)
	return id
}

func (d *Device) AttachTexture(fb uint32, point gpu.AttachPoint, index int, tex uint32, face int) {
	attachment := uint32(gl.COLOR_ATTACHMENT0 + index)
	switch point {
	case gpu.AttachDepth:
		attachment = gl.DEPTH_ATTACHMENT
	case gpu.AttachDepthStencil:
		attachment = gl.DEPTH_STENCIL_ATTACHMENT
	}
	target := uint32(gl.TEXTURE_2D)
	if face != gpu.FaceNone {
		target = gl.TEXTURE_CUBE_MAP_POSITIVE_X + uint32(face)
	}
	d.withFramebuffer(fb, func() {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, attachment, target, tex, 0)
	})
}

func (d *Device) CheckFramebuffer(fb uint32) error {
	var status uint32
	d.withFramebuffer(fb, func() {
		status = gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	})
	if status != gl.FRAMEBUFFER_COMPLETE {
		core.Logger().Error("framebuffer incomplete", "fbo", fb, "status", fmt.Sprintf("0x%X", status))
		return fmt.Errorf("%w: status=0x%X", gpu.ErrFramebufferIncomplete, status)
	}
	return nil
}

func (d *Device) BindFramebuffer(fb uint32) {
	d.boundFB = fb
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb)
}

func (d *Device) DrawBuffers(fb uint32, attachments []int) {
	d.withFramebuffer(fb, func() {
		if len(attachments) == 0 {
			gl.DrawBuffer(gl.NONE)
			return
		}
		bufs := make([]uint32, len(attachments))
		for i, a := range attachments {
			bufs[i] = gl.COLOR_ATTACHMENT0 + uint32(a)
		}
		gl.DrawBuffers(int32(len(bufs)), &bufs[0])
	})
}

func (d *Device) ReadBuffer(fb uint32, attachment int) {
	d.withFramebuffer(fb, func() {
		switch {
		case fb == 0:
			gl.ReadBuffer(gl.BACK)
		case attachment < 0:
			gl.ReadBuffer(gl.NONE)
		default:
			gl.ReadBuffer(gl.COLOR_ATTACHMENT0 + uint32(attachment))
		}
	})
}

func (d *Device) ClearColour(drawBuffer int, c core.Color) {
	rgba := [4]float32{c.R, c.G, c.B, c.A}
	gl.ClearBufferfv(gl.COLOR, int32(drawBuffer), &rgba[0])
}

func (d *Device) ClearDepthStencil(depth float32, stencil int32) {
	gl.DepthMask(true)
	gl.StencilMask(0xFF)
	gl.ClearBufferfi(gl.DEPTH_STENCIL, 0, depth, stencil)
}

func (d *Device) Blit(src, dst uint32, srcRect, dstRect [4]int32, mask gpu.BlitMask) {
	var bits uint32
	if mask&gpu.BlitColour != 0 {
		bits |= gl.COLOR_BUFFER_BIT
	}
	if mask&gpu.BlitDepth != 0 {
		bits |= gl.DEPTH_BUFFER_BIT
	}
	if mask&gpu.BlitStencil != 0 {
		bits |= gl.STENCIL_BUFFER_BIT
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, src)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, dst)
	gl.BlitFramebuffer(
		srcRect[0], srcRect[1], srcRect[2], srcRect[3],
		dstRect[0], dstRect[1], dstRect[2], dstRect[3],
		bits, gl.NEAREST)
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.boundFB)
}

func (d *Device) Viewport(x, y, width, height int32) {
	gl.Viewport(x, y, width, height)
}

func (d *Device) ReadPixels(x, y, width, height int32) []core.Color {
	out := make([]core.Color, int(width*height))
	if len(out) == 0 {
		return out
	}
	gl.ReadPixels(x, y, width, height, gl.RGBA, gl.FLOAT, unsafe.Pointer(&out[0]))
	return out
}

func (d *Device) DeleteFramebuffer(id uint32) {
	if d.boundFB == id {
		d.BindFramebuffer(0)
	}
	gl.DeleteFramebuffers(1, &id)
}
