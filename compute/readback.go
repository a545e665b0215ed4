// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the row alignment CopyTextureToBuffer requires.
const copyPitchAlignment = 256

// alignedPitch returns the padded byte pitch of a w-pixel 4-byte row.
func alignedPitch(w uint32) uint32 {
	return (w*4 + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// Texture is a renderer-owned 4-byte-per-pixel GPU image.
type Texture struct {
	Texture       hal.Texture
	Width, Height uint32

	// Usage is the usage the renderer leaves the texture in; the copy
	// transitions from it and back. Zero means RenderAttachment.
	Usage gputypes.TextureUsage
}

func (t Texture) usage() gputypes.TextureUsage {
	if t.Usage == 0 {
		return gputypes.TextureUsageRenderAttachment
	}
	return t.Usage
}

// stagingBuffer is a host-readable copy target reused across frames of
// the same size.
type stagingBuffer struct {
	buf   hal.Buffer
	pitch uint32
	rows  uint32
	usage gputypes.BufferUsage
	data  []byte
}

func (s *stagingBuffer) size() uint64 { return uint64(s.pitch) * uint64(s.rows) }

func (s *stagingBuffer) destroy(device hal.Device) {
	if s.buf != nil {
		device.DestroyBuffer(s.buf)
		s.buf = nil
	}
}

// ensureStaging returns a staging buffer for w x h pixels with usage,
// recreating the cached one when the shape changes.
func (c *Context) ensureStaging(w, h uint32, usage gputypes.BufferUsage) (*stagingBuffer, error) {
	pitch := alignedPitch(w)
	if s := c.staging; s != nil && s.pitch == pitch && s.rows == h && s.usage == usage {
		return s, nil
	}
	if c.staging != nil {
		c.staging.destroy(c.device)
		c.staging = nil
	}
	s := &stagingBuffer{pitch: pitch, rows: h, usage: usage}
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "scanout_staging",
		Size:  s.size(),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("compute: create staging buffer: %w", err)
	}
	s.buf = buf
	c.staging = s
	slogger().Debug("compute: staging buffer", "width", w, "height", h, "pitch", pitch)
	return s, nil
}

// encodeCopy records tex into s, transitioning tex to CopySrc and back.
func encodeCopy(encoder hal.CommandEncoder, src Texture, s *stagingBuffer) {
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: src.Texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: src.usage(),
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(src.Texture, s.buf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: s.pitch, RowsPerImage: src.Height},
		TextureBase:  hal.ImageCopyTexture{Texture: src.Texture, MipLevel: 0},
		Size:         hal.Extent3D{Width: src.Width, Height: src.Height, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: src.Texture,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: src.usage(),
		},
	}})
}

// Readback copies src into host memory and returns tightly packed rows of
// Width*4 bytes in the texture's own channel order. The returned slice is
// reused by the next call.
func (c *Context) Readback(src Texture) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if src.Texture == nil || src.Width == 0 || src.Height == 0 {
		return nil, fmt.Errorf("%w: readback %dx%d", ErrInvalidSize, src.Width, src.Height)
	}

	s, err := c.ensureStaging(src.Width, src.Height, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "scanout_readback",
	})
	if err != nil {
		return nil, fmt.Errorf("compute: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("scanout_readback"); err != nil {
		return nil, fmt.Errorf("compute: begin encoding: %w", err)
	}
	encodeCopy(encoder, src, s)
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("compute: end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmd)

	if err := c.submitAndWait(cmd); err != nil {
		return nil, err
	}

	size := s.size()
	if uint64(cap(s.data)) < size {
		s.data = make([]byte, size)
	}
	raw := s.data[:size]
	if err := c.queue.ReadBuffer(s.buf, 0, raw); err != nil {
		return nil, fmt.Errorf("compute: readback: %w", err)
	}

	tight := int(src.Width) * 4
	if int(s.pitch) == tight {
		return raw, nil
	}
	// Strip row padding in place; row y never overlaps a later source row.
	for y := 1; y < int(src.Height); y++ {
		copy(raw[y*tight:(y+1)*tight], raw[y*int(s.pitch):y*int(s.pitch)+tight])
	}
	return raw[:tight*int(src.Height)], nil
}
