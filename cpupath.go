// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scanout

import (
	"github.com/gogpu/scanout/display"
	"github.com/gogpu/scanout/internal/convert"
	"github.com/gogpu/scanout/internal/perf"
	"github.com/gogpu/scanout/kms"
)

// pairing identifies one source to destination size combination.
type pairing struct {
	srcW, srcH int
	dstW, dstH int
}

// cpuPath reads frames into host memory and scales them into CPU-mapped
// scanout buffers at display resolution.
type cpuPath struct {
	allocated  bool
	srcW, srcH int
	order      display.ChannelOrder

	plan   *convert.Plan
	logged map[pairing]bool
}

func newCPUPath() *cpuPath {
	return &cpuPath{logged: make(map[pairing]bool)}
}

func (*cpuPath) kind() PathKind { return PathCPU }

// ensureBuffers reallocates the pool when the source size or channel
// order changes. Buffers are always at display resolution.
func (p *cpuPath) ensureBuffers(d *Display, w, h int, order display.ChannelOrder) error {
	if p.allocated && p.srcW == w && p.srcH == h && p.order == order {
		return nil
	}
	mode := d.mgr.Mode()
	p.allocated = false
	if err := d.mgr.AllocateBuffers(mode.Width, mode.Height, order); err != nil {
		return &AllocError{Path: PathCPU, Op: "allocate buffers", Err: err, Fatal: true}
	}
	p.allocated = true
	p.srcW, p.srcH, p.order = w, h, order
	slogger().Debug("scanout: cpu buffers for source", "width", w, "height", h, "order", order.String())
	return nil
}

// ensurePlan returns the scaling plan for the current pairing, logging
// each pairing once per session.
func (p *cpuPath) ensurePlan(srcW, srcH, dstW, dstH int, swizzle bool) (*convert.Plan, error) {
	if p.plan.Matches(srcW, srcH, dstW, dstH, swizzle) {
		return p.plan, nil
	}
	plan, err := convert.NewPlan(srcW, srcH, dstW, dstH, swizzle)
	if err != nil {
		return nil, err
	}
	p.plan = plan
	key := pairing{srcW, srcH, dstW, dstH}
	if !p.logged[key] {
		p.logged[key] = true
		slogger().Info("scanout: cpu blit path", "plan", plan.String(), "swizzle", swizzle)
	}
	return plan, nil
}

func (p *cpuPath) present(d *Display, f Frame, s *perf.Sample) error {
	pixels, stride := f.Pixels, f.Stride
	if f.IsGPU() && !d.opts.testPattern {
		start := d.monitor.Now()
		data, err := d.opts.gpu.Readback(f.texture())
		if err != nil {
			return d.presentErr(PathCPU, "readback", err)
		}
		s.Stages[perf.StageReadback] = d.monitor.Since(start)
		pixels, stride = data, f.Width*4
	}

	if err := p.ensureBuffers(d, f.Width, f.Height, f.order()); err != nil {
		return err
	}

	i := d.mgr.Back()
	b := d.mgr.Buffer(i)
	if b == nil {
		return d.presentErr(PathCPU, "buffer", display.ErrNoBuffers)
	}
	dstW, dstH := int(b.Width), int(b.Height)

	start := d.monitor.Now()
	if d.opts.testPattern {
		if err := convert.Pattern(b, dstW, dstH, d.frame, b.Format == kms.FormatXRGB8888); err != nil {
			return d.presentErr(PathCPU, "pattern", err)
		}
	} else {
		plan, err := p.ensurePlan(f.Width, f.Height, dstW, dstH, b.Swizzle)
		if err != nil {
			return d.presentErr(PathCPU, "plan", err)
		}
		if err := plan.ScaleBands(d.bander(), b, pixels, stride); err != nil {
			return d.presentErr(PathCPU, "convert", err)
		}
	}
	s.Stages[perf.StageConvert] = d.monitor.Since(start)

	start = d.monitor.Now()
	if err := d.mgr.Flush(i); err != nil {
		return d.presentErr(PathCPU, "flush", err)
	}
	s.Stages[perf.StageFlush] = d.monitor.Since(start)

	start = d.monitor.Now()
	if err := d.mgr.Present(i); err != nil {
		return d.presentErr(PathCPU, "present", err)
	}
	s.Stages[perf.StagePresent] = d.monitor.Since(start)
	return nil
}

// release forgets the pool; the display manager frees it.
func (p *cpuPath) release(*Display) error {
	p.allocated = false
	p.plan = nil
	return nil
}
