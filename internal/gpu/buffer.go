package gpu

import (
	"fmt"
	"unsafe"
)

// Buffer owns one buffer object. Upload grows the storage when the data
// outgrows it and otherwise updates in place.
type Buffer struct {
	noCopy noCopy

	dev      Device
	id       uint32
	target   BufferTarget
	usage    BufferUsage
	capacity int
}

func NewBuffer(dev Device, target BufferTarget, usage BufferUsage) *Buffer {
	return &Buffer{dev: dev, id: dev.CreateBuffer(), target: target, usage: usage}
}

func (b *Buffer) ID() uint32    { return b.id }
func (b *Buffer) Capacity() int { return b.capacity }

func (b *Buffer) Upload(data []byte) error {
	if b.id == 0 {
		return fmt.Errorf("upload to released buffer")
	}
	if len(data) > b.capacity {
		if err := b.dev.BufferData(b.id, b.target, data, b.usage); err != nil {
			return fmt.Errorf("buffer data (%d bytes): %w", len(data), err)
		}
		b.capacity = len(data)
		return nil
	}
	if len(data) > 0 {
		b.dev.BufferSubData(b.id, b.target, 0, data)
	}
	return nil
}

// Release deletes the buffer. Further calls are no-ops.
func (b *Buffer) Release() {
	if b.id == 0 {
		return
	}
	b.dev.DeleteBuffer(b.id)
	b.id = 0
	b.capacity = 0
}

// Bytes reinterprets a slice of plain values as bytes without copying.
func Bytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}
