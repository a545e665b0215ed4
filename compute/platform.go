// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Platform hands the compute device to a renderer. It reports no surface
// and no windowing-system extensions.
type Platform struct {
	ctx *Context
}

var _ gpucontext.DeviceProvider = (*Platform)(nil)

type platformDevice struct{ ctx *Context }

// Poll is a no-op; every submission waits on its own fence.
func (platformDevice) Poll(bool) {}

// Destroy is a no-op; the device belongs to Context.
func (platformDevice) Destroy() {}

type platformQueue struct{ ctx *Context }

type platformAdapter struct{ ctx *Context }

// Device returns the device handle.
func (p *Platform) Device() gpucontext.Device { return platformDevice{p.ctx} }

// Queue returns the queue handle.
func (p *Platform) Queue() gpucontext.Queue { return platformQueue{p.ctx} }

// Adapter returns the adapter handle.
func (p *Platform) Adapter() gpucontext.Adapter { return platformAdapter{p.ctx} }

// SurfaceFormat is always TextureFormatUndefined: there is no surface.
func (p *Platform) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Surface returns nil.
func (p *Platform) Surface() any { return nil }

// InstanceExtensions returns the windowing-system extensions requested at
// instance creation, which is none.
func (p *Platform) InstanceExtensions() []string { return nil }

// HalDevice returns the hal.Device.
func (p *Platform) HalDevice() any { return p.ctx.device }

// HalQueue returns the hal.Queue.
func (p *Platform) HalQueue() any { return p.ctx.queue }
