// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"errors"
	"fmt"

	"github.com/gogpu/scanout/kms"
)

// ChannelOrder is the byte order of the 32-bit pixels a writer produces.
type ChannelOrder int

const (
	// OrderRGBA is bytes R, G, B, A. GPU RGBA8Unorm output has this order.
	OrderRGBA ChannelOrder = iota

	// OrderBGRA is bytes B, G, R, A.
	OrderBGRA
)

func (o ChannelOrder) String() string {
	switch o {
	case OrderRGBA:
		return "RGBA"
	case OrderBGRA:
		return "BGRA"
	default:
		return "unknown"
	}
}

// nativeFormat returns the scanout format whose memory order is o with the
// fourth channel ignored.
func (o ChannelOrder) nativeFormat() uint32 {
	if o == OrderBGRA {
		return kms.FormatXRGB8888
	}
	return kms.FormatXBGR8888
}

// memoryOrder returns the writer order a format stores without swizzle.
func memoryOrder(format uint32) ChannelOrder {
	if format == kms.FormatXRGB8888 {
		return OrderBGRA
	}
	return OrderRGBA
}

// Buffer is one CPU-mapped scanout buffer registered as a framebuffer.
type Buffer struct {
	Width, Height uint32
	Stride        uint32
	Size          uint64

	// Format is the negotiated four-character code.
	Format uint32

	// Legacy is true when the framebuffer was registered with AddFB.
	Legacy bool

	// Swizzle is true when R and B of the writer's pixels must be swapped
	// to match Format. Fixed at allocation.
	Swizzle bool

	Handle uint32
	FBID   uint32

	mem []byte
}

// Bytes returns the whole mapping.
func (b *Buffer) Bytes() []byte { return b.mem }

// Row returns the visible pixels of row y, width*4 bytes, or nil when y is
// out of range.
func (b *Buffer) Row(y int) []byte {
	if y < 0 || y >= int(b.Height) {
		return nil
	}
	off := y * int(b.Stride)
	end := off + int(b.Width)*4
	if end > len(b.mem) {
		return nil
	}
	return b.mem[off:end:end]
}

// API reports the registration call that succeeded.
func (b *Buffer) API() string {
	if b.Legacy {
		return "AddFB"
	}
	return "AddFB2"
}

// createBuffer allocates, registers and maps one dumb buffer. Legacy AddFB
// (depth 24, 32 bpp, always XRGB8888) is tried first; AddFB2 then tries the
// format matching order before the other one.
func createBuffer(dev kms.Device, width, height uint32, order ChannelOrder) (*Buffer, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	db, err := dev.CreateDumb(width, height, 32)
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		Width:  width,
		Height: height,
		Stride: db.Pitch,
		Size:   db.Size,
		Handle: db.Handle,
	}
	if b.Stride < width*4 || b.Size < uint64(b.Stride)*uint64(height) {
		_ = dev.DestroyDumb(b.Handle)
		return nil, fmt.Errorf("display: dumb buffer pitch %d size %d too small for %dx%d", b.Stride, b.Size, width, height)
	}

	if err := register(dev, b, order); err != nil {
		_ = dev.DestroyDumb(b.Handle)
		return nil, err
	}
	b.Swizzle = memoryOrder(b.Format) != order

	offset, err := dev.MapDumb(b.Handle)
	if err == nil {
		b.mem, err = dev.Mmap(offset, int(b.Size))
	}
	if err != nil {
		_ = dev.RmFB(b.FBID)
		_ = dev.DestroyDumb(b.Handle)
		return nil, err
	}
	return b, nil
}

func register(dev kms.Device, b *Buffer, order ChannelOrder) error {
	fb, legacyErr := dev.AddFB(b.Width, b.Height, 24, 32, b.Stride, b.Handle)
	if legacyErr == nil {
		b.FBID = fb
		b.Format = kms.FormatXRGB8888
		b.Legacy = true
		return nil
	}

	native := order.nativeFormat()
	formats := []uint32{native, kms.FormatXRGB8888}
	if native == kms.FormatXRGB8888 {
		formats[1] = kms.FormatXBGR8888
	}
	errs := []error{legacyErr}
	for _, format := range formats {
		req := &kms.FB2{
			Width:       b.Width,
			Height:      b.Height,
			PixelFormat: format,
			Handles:     [4]uint32{b.Handle},
			Pitches:     [4]uint32{b.Stride},
		}
		fb, err := dev.AddFB2(req)
		if err == nil {
			b.FBID = fb
			b.Format = format
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("display: framebuffer registration failed: %w", errors.Join(errs...))
}

// destroyBuffer releases a buffer in reverse order of creation.
func destroyBuffer(dev kms.Device, b *Buffer) error {
	if b == nil {
		return nil
	}
	var errs []error
	if b.mem != nil {
		errs = append(errs, dev.Munmap(b.mem))
		b.mem = nil
	}
	if b.FBID != 0 {
		errs = append(errs, dev.RmFB(b.FBID))
		b.FBID = 0
	}
	if b.Handle != 0 {
		errs = append(errs, dev.DestroyDumb(b.Handle))
		b.Handle = 0
	}
	return errors.Join(errs...)
}
