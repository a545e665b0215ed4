// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Context is a compute-only GPU device. It never creates a surface and
// never enumerates displays through the GPU API.
type Context struct {
	instance hal.Instance
	adapter  hal.ExposedAdapter
	device   hal.Device
	queue    hal.Queue
	importer Importer
	timeout  time.Duration

	staging *stagingBuffer
	closed  bool
}

// Open loads the GPU API, creates an instance with no windowing-system
// extensions, selects an adapter and opens a device with default limits.
func Open(opts ...Option) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	backend := o.backend
	if backend == nil {
		b, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("%w: vulkan backend not registered", ErrLoaderUnavailable)
		}
		backend = b
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoaderUnavailable, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoCapableDevice
	}
	selected := selectAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceCreateFailed, selected.Info.Name, err)
	}

	c := &Context{
		instance: instance,
		adapter:  *selected,
		device:   openDev.Device,
		queue:    openDev.Queue,
		importer: o.importer,
		timeout:  o.timeout,
	}
	if c.importer == nil {
		if imp, ok := c.device.(Importer); ok {
			c.importer = imp
		}
	}

	slogger().Info("compute: device opened",
		"adapter", selected.Info.Name,
		"adapters", len(adapters),
		"dmabuf", c.importer != nil)
	return c, nil
}

// selectAdapter returns the first hardware adapter, or the first adapter
// when none is a discrete or integrated GPU.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// AdapterName returns the selected adapter's name.
func (c *Context) AdapterName() string { return c.adapter.Info.Name }

// Device returns the HAL device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the HAL queue. It is shared with the renderer; every
// submission made through Context waits on its own fence.
func (c *Context) Queue() hal.Queue { return c.queue }

// Platform returns the renderer-facing view of the device.
func (c *Context) Platform() *Platform { return &Platform{ctx: c} }

// CanImport reports whether DMA-BUF import is available.
func (c *Context) CanImport() bool { return c.importer != nil }

// Close releases the device and instance. It is safe to call twice.
func (c *Context) Close() {
	if c == nil || c.closed {
		return
	}
	c.closed = true
	if c.staging != nil {
		c.staging.destroy(c.device)
		c.staging = nil
	}
	c.device.Destroy()
	c.instance.Destroy()
	slogger().Debug("compute: device closed", "adapter", c.adapter.Info.Name)
}

// submitAndWait submits one command buffer and blocks on its fence.
func (c *Context) submitAndWait(cmd hal.CommandBuffer) error {
	fence, err := c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("compute: create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return fmt.Errorf("compute: submit: %w", err)
	}
	ok, err := c.device.Wait(fence, 1, c.timeout)
	if err != nil {
		return fmt.Errorf("compute: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("compute: GPU timeout after %v", c.timeout)
	}
	return nil
}
