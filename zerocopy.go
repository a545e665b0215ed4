// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scanout

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/gogpu/scanout/compute"
	"github.com/gogpu/scanout/display"
	"github.com/gogpu/scanout/internal/perf"
)

// zeroCopyPath owns the GPU view of the display's buffer pool. No pixel
// data crosses to host memory.
type zeroCopyPath struct {
	blitter *compute.Blitter
	targets []*compute.Target

	// order is the channel order the pool was negotiated for.
	order display.ChannelOrder
}

func (*zeroCopyPath) kind() PathKind { return PathZeroCopy }

// setupZeroCopy allocates the pool at display resolution, exports every
// buffer as a DMA-BUF and imports it into the GPU. Any failure leaves
// nothing imported.
func setupZeroCopy(d *Display, f Frame) (*zeroCopyPath, error) {
	gpu := d.opts.gpu
	if !gpu.CanImport() {
		return nil, compute.ErrExternalMemoryUnsupported
	}

	mode := d.mgr.Mode()
	p := &zeroCopyPath{order: f.order()}
	if err := d.mgr.AllocateBuffers(mode.Width, mode.Height, p.order); err != nil {
		return nil, fmt.Errorf("allocate buffers: %w", err)
	}

	for i := 0; i < display.PoolSize; i++ {
		b := d.mgr.Buffer(i)
		fd, err := d.mgr.Export(i)
		if err != nil {
			_ = p.release(d)
			return nil, fmt.Errorf("export buffer %d: %w", i, err)
		}
		t, err := gpu.Import(compute.DmaBuf{
			FD:       fd,
			Width:    b.Width,
			Height:   b.Height,
			Stride:   b.Stride,
			Size:     b.Size,
			Modifier: compute.ModLinear,
		})
		if err != nil {
			_ = unix.Close(fd)
			_ = p.release(d)
			return nil, fmt.Errorf("import buffer %d: %w", i, err)
		}
		p.targets = append(p.targets, t)
	}

	blitter, err := compute.NewBlitter(gpu)
	if err != nil {
		_ = p.release(d)
		return nil, fmt.Errorf("create blitter: %w", err)
	}
	p.blitter = blitter
	return p, nil
}

func (p *zeroCopyPath) present(d *Display, f Frame, s *perf.Sample) error {
	if !f.IsGPU() {
		return d.presentErr(PathZeroCopy, "frame", ErrUnsupportedFrame)
	}
	i := d.mgr.Back()
	b := d.mgr.Buffer(i)
	if b == nil || i >= len(p.targets) {
		return d.presentErr(PathZeroCopy, "buffer", display.ErrNoBuffers)
	}
	// The pool swizzle is relative to p.order.
	swizzle := b.Swizzle != (f.order() != p.order)

	start := d.monitor.Now()
	if err := p.blitter.Blit(f.texture(), p.targets[i], swizzle); err != nil {
		return d.presentErr(PathZeroCopy, "blit", err)
	}
	s.Stages[perf.StageBlit] = d.monitor.Since(start)

	start = d.monitor.Now()
	if err := d.mgr.Present(i); err != nil {
		return d.presentErr(PathZeroCopy, "present", err)
	}
	s.Stages[perf.StagePresent] = d.monitor.Since(start)
	return nil
}

// release drops the GPU imports. The pool itself stays with the display
// manager.
func (p *zeroCopyPath) release(d *Display) error {
	gpu := d.opts.gpu
	for _, t := range p.targets {
		gpu.Release(t)
	}
	p.targets = nil
	if p.blitter != nil {
		p.blitter.Destroy()
		p.blitter = nil
	}
	return nil
}
