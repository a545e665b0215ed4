// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"time"

	"github.com/gogpu/wgpu/hal"
)

// Backend creates HAL instances. hal.GetBackend results and the noop API
// both satisfy it.
type Backend interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// DefaultFenceTimeout bounds every fence wait.
const DefaultFenceTimeout = 5 * time.Second

type options struct {
	backend  Backend
	importer Importer
	timeout  time.Duration
}

// Option configures Open.
type Option func(*options)

// WithBackend uses b instead of the Vulkan backend.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithImporter sets the DMA-BUF importer. Without it, Open uses the HAL
// device when it implements Importer.
func WithImporter(imp Importer) Option {
	return func(o *options) {
		o.importer = imp
	}
}

// WithFenceTimeout changes the fence wait bound.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func defaultOptions() options {
	return options{timeout: DefaultFenceTimeout}
}
