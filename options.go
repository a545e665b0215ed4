// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scanout

import (
	"time"

	"github.com/gogpu/scanout/compute"
	"github.com/gogpu/scanout/display"
	"github.com/gogpu/scanout/internal/config"
	"github.com/gogpu/scanout/kms"
)

// DefaultFailureThreshold is the number of consecutive dropped frames
// after which the active path is considered broken.
const DefaultFailureThreshold = 3

// Option configures OpenDisplay.
//
// Example:
//
//	gpu, _ := compute.Open()
//	d, err := scanout.OpenDisplay(scanout.WithGPU(gpu))
type Option func(*options)

type options struct {
	devicePath string
	device     kms.Device
	gpu        *compute.Context
	zeroCopy   bool
	threshold  int

	plane       display.PlanePreference
	vblankSync  bool
	forceFlush  bool
	testPattern bool

	workers    int
	clock      func() time.Time
	perfWindow time.Duration
}

// defaultOptions seeds the diagnostics from the process environment. Later
// options override it.
func defaultOptions(flags config.Flags) options {
	o := options{
		devicePath:  kms.DefaultCardPath,
		zeroCopy:    true,
		threshold:   DefaultFailureThreshold,
		plane:       display.PreferPrimary,
		vblankSync:  !flags.NoVBlankSync,
		forceFlush:  flags.ForceFlush,
		testPattern: flags.TestPattern,
		workers:     1,
		clock:       time.Now,
		perfWindow:  time.Second,
	}
	switch {
	case flags.DisablePlane:
		o.plane = display.NoPlane
	case flags.UseOverlay:
		o.plane = display.PreferOverlay
	}
	return o
}

// WithDevicePath sets the DRM node to open. Defaults to /dev/dri/card0.
func WithDevicePath(path string) Option {
	return func(o *options) {
		o.devicePath = path
	}
}

// WithDevice uses an already opened kernel device. The display takes
// ownership and closes it on Close.
func WithDevice(dev kms.Device) Option {
	return func(o *options) {
		o.device = dev
	}
}

// WithGPU sets the compute context GPU frames come from. The caller keeps
// ownership; Close does not close it. Without a context only CPU
// frames can be presented.
func WithGPU(c *compute.Context) Option {
	return func(o *options) {
		o.gpu = c
	}
}

// WithZeroCopy allows or forbids the zero-copy path. Allowed by default;
// it is only attempted when the GPU can import DMA-BUFs.
func WithZeroCopy(enabled bool) Option {
	return func(o *options) {
		o.zeroCopy = enabled
	}
}

// WithFailureThreshold sets how many consecutive dropped frames break a
// path.
func WithFailureThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.threshold = n
		}
	}
}

// WithPlanePreference selects the compositing plane.
func WithPlanePreference(p display.PlanePreference) Option {
	return func(o *options) {
		o.plane = p
	}
}

// WithVBlankSync controls the vertical-blank wait before a busy flip is
// retried.
func WithVBlankSync(enabled bool) Option {
	return func(o *options) {
		o.vblankSync = enabled
	}
}

// WithForceFlush enables an explicit msync of every CPU-written buffer.
func WithForceFlush(enabled bool) Option {
	return func(o *options) {
		o.forceFlush = enabled
	}
}

// WithTestPattern replaces every frame with a generated diagnostic image.
func WithTestPattern(enabled bool) Option {
	return func(o *options) {
		o.testPattern = enabled
	}
}

// WithConvertWorkers splits CPU pixel conversion across n goroutines,
// started by OpenDisplay and stopped by Close. PresentFrame still returns
// only after every row is written. The default of 1 converts on the
// presenting goroutine and starts nothing.
func WithConvertWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithClock sets the clock used for per-stage timings.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithPerfWindow sets the telemetry aggregation window.
func WithPerfWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.perfWindow = d
		}
	}
}

func (o *options) displayOptions() []display.Option {
	opts := []display.Option{
		display.WithDevicePath(o.devicePath),
		display.WithPlanePreference(o.plane),
		display.WithVBlankSync(o.vblankSync),
		display.WithForceFlush(o.forceFlush),
	}
	if o.device != nil {
		opts = append(opts, display.WithDevice(o.device))
	}
	return opts
}
