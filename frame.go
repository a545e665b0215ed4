// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scanout

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scanout/compute"
	"github.com/gogpu/scanout/display"
)

// Frame is one rendered frame: either a GPU texture or CPU pixels.
// It is consumed by exactly one PresentFrame call.
type Frame struct {
	Width, Height int

	// Texture is the renderer's output image. Format must be RGBA8Unorm
	// or BGRA8Unorm.
	Texture hal.Texture
	Format  gputypes.TextureFormat

	// Usage is the usage the renderer leaves Texture in. Zero means
	// RenderAttachment.
	Usage gputypes.TextureUsage

	// Pixels holds RGBA rows Stride bytes apart when Texture is nil.
	Pixels []byte
	Stride int
}

// GPUFrame returns a frame backed by a renderer texture.
func GPUFrame(tex hal.Texture, width, height int, format gputypes.TextureFormat) Frame {
	return Frame{Texture: tex, Width: width, Height: height, Format: format}
}

// CPUFrame returns a frame backed by RGBA pixels in host memory.
func CPUFrame(pixels []byte, width, height, stride int) Frame {
	return Frame{Pixels: pixels, Width: width, Height: height, Stride: stride}
}

// IsGPU reports whether the frame lives on the GPU.
func (f Frame) IsGPU() bool { return f.Texture != nil }

// Empty reports whether the frame has no pixels.
func (f Frame) Empty() bool { return f.Width <= 0 || f.Height <= 0 }

// order returns the byte order of the frame's pixels.
func (f Frame) order() display.ChannelOrder {
	if f.IsGPU() && f.Format == gputypes.TextureFormatBGRA8Unorm {
		return display.OrderBGRA
	}
	return display.OrderRGBA
}

// texture returns the frame as a compute.Texture.
func (f Frame) texture() compute.Texture {
	return compute.Texture{
		Texture: f.Texture,
		Width:   uint32(f.Width),  // #nosec G115 -- validated positive
		Height:  uint32(f.Height), // #nosec G115 -- validated positive
		Usage:   f.Usage,
	}
}

// validate checks a non-empty frame.
func (f Frame) validate() error {
	if f.IsGPU() {
		switch f.Format {
		case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
			return nil
		default:
			return fmt.Errorf("%w: texture format %v", ErrUnsupportedFrame, f.Format)
		}
	}
	rowBytes := f.Width * 4
	if f.Stride < rowBytes {
		return fmt.Errorf("%w: stride %d < width*4 (%d)", ErrInvalidFrame, f.Stride, rowBytes)
	}
	if need := (f.Height-1)*f.Stride + rowBytes; len(f.Pixels) < need {
		return fmt.Errorf("%w: %d pixel bytes, need %d", ErrInvalidFrame, len(f.Pixels), need)
	}
	return nil
}

// FrameProvider is the renderer side of PresentNext.
type FrameProvider interface {
	// NextFrame returns the next rendered frame, or ErrNoFrameAvailable.
	NextFrame() (Frame, error)
}

// FrameProviderFunc adapts a function to FrameProvider.
type FrameProviderFunc func() (Frame, error)

// NextFrame calls f.
func (f FrameProviderFunc) NextFrame() (Frame, error) { return f() }
