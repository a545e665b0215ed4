// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// ModLinear is DRM_FORMAT_MOD_LINEAR.
const ModLinear uint64 = 0

// DmaBuf describes a kernel buffer exported as a DMA-BUF file descriptor.
type DmaBuf struct {
	FD            int
	Width, Height uint32
	Stride        uint32
	Size          uint64

	// Modifier is the memory layout; only ModLinear is importable.
	Modifier uint64
}

// Importer imports DMA-BUF memory as a GPU storage buffer. The importer
// takes ownership of the file descriptor only on success.
type Importer interface {
	ImportDmaBuf(desc DmaBuf) (hal.Buffer, error)
}

// Target is a DMA-BUF imported into the device.
type Target struct {
	Buffer        hal.Buffer
	Width, Height uint32
	Stride        uint32
}

// Import imports desc as a blit destination.
func (c *Context) Import(desc DmaBuf) (*Target, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.importer == nil {
		return nil, ErrExternalMemoryUnsupported
	}
	if desc.Modifier != ModLinear {
		return nil, fmt.Errorf("%w: modifier %#x is not linear", ErrExternalMemoryUnsupported, desc.Modifier)
	}
	if desc.Width == 0 || desc.Height == 0 || desc.Stride < desc.Width*4 || desc.Size < uint64(desc.Stride)*uint64(desc.Height) {
		return nil, fmt.Errorf("%w: dmabuf %dx%d stride %d size %d",
			ErrInvalidSize, desc.Width, desc.Height, desc.Stride, desc.Size)
	}
	buf, err := c.importer.ImportDmaBuf(desc)
	if err != nil {
		return nil, fmt.Errorf("compute: import dmabuf fd %d: %w", desc.FD, err)
	}
	slogger().Debug("compute: dmabuf imported",
		"fd", desc.FD, "width", desc.Width, "height", desc.Height, "stride", desc.Stride)
	return &Target{Buffer: buf, Width: desc.Width, Height: desc.Height, Stride: desc.Stride}, nil
}

// Release destroys an imported target.
func (c *Context) Release(t *Target) {
	if t == nil || t.Buffer == nil || c.closed {
		return
	}
	c.device.DestroyBuffer(t.Buffer)
	t.Buffer = nil
}
