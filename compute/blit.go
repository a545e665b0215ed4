// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	_ "embed"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/blit.wgsl
var blitShaderWGSL string

const (
	blitWorkgroupSize = 8
	blitParamsSize    = 32
)

// blitParams mirrors the WGSL Params struct.
type blitParams struct {
	srcW, srcH uint32
	dstW, dstH uint32
	srcStride  uint32
	dstStride  uint32
	swizzle    uint32
	_          uint32
}

func (p blitParams) bytes() []byte {
	b := make([]byte, blitParamsSize)
	for i, v := range []uint32{p.srcW, p.srcH, p.dstW, p.dstH, p.srcStride, p.dstStride, p.swizzle, 0} {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

// workgroups returns the dispatch size covering n invocations.
func workgroups(n uint32) uint32 {
	return (n + blitWorkgroupSize - 1) / blitWorkgroupSize
}

// Blitter scales a renderer texture into an imported scanout buffer with a
// compute pass.
type Blitter struct {
	ctx *Context

	spirv    []uint32
	module   hal.ShaderModule
	bgLayout hal.BindGroupLayout
	layout   hal.PipelineLayout
	pipeline hal.ComputePipeline
	params   hal.Buffer
}

// NewBlitter compiles the blit shader and creates its pipeline.
func NewBlitter(ctx *Context) (*Blitter, error) {
	if ctx.closed {
		return nil, ErrClosed
	}
	spirvBytes, err := naga.Compile(blitShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("compute: compile blit shader: %w", err)
	}
	b := &Blitter{ctx: ctx, spirv: spirvWords(spirvBytes)}
	if err := b.init(); err != nil {
		b.Destroy()
		return nil, err
	}
	slogger().Info("compute: blit pipeline created", "spirv_words", len(b.spirv))
	return b, nil
}

// spirvWords converts little-endian SPIR-V bytes to words.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

func (b *Blitter) init() error {
	device := b.ctx.device

	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "scanout_blit",
		Source: hal.ShaderSource{SPIRV: b.spirv},
	})
	if err != nil {
		return fmt.Errorf("compute: create shader module: %w", err)
	}
	b.module = module

	bgLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "scanout_blit_bgl",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer: &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: blitParamsSize,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("compute: create bind group layout: %w", err)
	}
	b.bgLayout = bgLayout

	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "scanout_blit_pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		return fmt.Errorf("compute: create pipeline layout: %w", err)
	}
	b.layout = layout

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "scanout_blit",
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("compute: create compute pipeline: %w", err)
	}
	b.pipeline = pipeline

	params, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "scanout_blit_params",
		Size:  blitParamsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("compute: create params buffer: %w", err)
	}
	b.params = params
	return nil
}

// Blit scales src into dst with nearest-neighbour sampling, swapping R and
// B when swizzle is set and clearing the fourth byte. It records one
// submission and returns after its fence signals.
func (b *Blitter) Blit(src Texture, dst *Target, swizzle bool) error {
	c := b.ctx
	if c.closed {
		return ErrClosed
	}
	if src.Texture == nil || src.Width == 0 || src.Height == 0 {
		return fmt.Errorf("%w: blit source %dx%d", ErrInvalidSize, src.Width, src.Height)
	}
	if dst == nil || dst.Buffer == nil || dst.Stride%4 != 0 {
		return fmt.Errorf("%w: blit target", ErrInvalidSize)
	}

	s, err := c.ensureStaging(src.Width, src.Height, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	p := blitParams{
		srcW: src.Width, srcH: src.Height,
		dstW: dst.Width, dstH: dst.Height,
		srcStride: s.pitch / 4,
		dstStride: dst.Stride / 4,
	}
	if swizzle {
		p.swizzle = 1
	}
	c.queue.WriteBuffer(b.params, 0, p.bytes())

	bg, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "scanout_blit_bg",
		Layout: b.bgLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: b.params.NativeHandle(), Size: blitParamsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: s.buf.NativeHandle()}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: dst.Buffer.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("compute: create bind group: %w", err)
	}
	defer c.device.DestroyBindGroup(bg)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "scanout_blit",
	})
	if err != nil {
		return fmt.Errorf("compute: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("scanout_blit"); err != nil {
		return fmt.Errorf("compute: begin encoding: %w", err)
	}

	encodeCopy(encoder, src, s)

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "scanout_blit"})
	pass.SetPipeline(b.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(workgroups(dst.Width), workgroups(dst.Height), 1)
	pass.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("compute: end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmd)

	return c.submitAndWait(cmd)
}

// Destroy releases the pipeline objects.
func (b *Blitter) Destroy() {
	if b == nil || b.ctx.closed {
		return
	}
	device := b.ctx.device
	if b.params != nil {
		device.DestroyBuffer(b.params)
		b.params = nil
	}
	if b.pipeline != nil {
		device.DestroyComputePipeline(b.pipeline)
		b.pipeline = nil
	}
	if b.layout != nil {
		device.DestroyPipelineLayout(b.layout)
		b.layout = nil
	}
	if b.bgLayout != nil {
		device.DestroyBindGroupLayout(b.bgLayout)
		b.bgLayout = nil
	}
	if b.module != nil {
		device.DestroyShaderModule(b.module)
		b.module = nil
	}
}
