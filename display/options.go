// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import "github.com/gogpu/scanout/kms"

// PlanePreference selects which compositing plane discovery resolves.
type PlanePreference int

const (
	// PreferPrimary resolves the primary plane, falling back to an overlay.
	PreferPrimary PlanePreference = iota

	// PreferOverlay resolves an overlay plane, falling back to the primary.
	PreferOverlay

	// NoPlane skips plane resolution. Scanout goes through the CRTC alone.
	NoPlane
)

func (p PlanePreference) String() string {
	switch p {
	case PreferPrimary:
		return "primary"
	case PreferOverlay:
		return "overlay"
	case NoPlane:
		return "none"
	default:
		return "unknown"
	}
}

// Option configures a Manager during Open.
type Option func(*options)

type options struct {
	path       string
	device     kms.Device
	plane      PlanePreference
	vblankSync bool
	forceFlush bool
}

func defaultOptions() options {
	return options{
		path:       kms.DefaultCardPath,
		plane:      PreferPrimary,
		vblankSync: true,
	}
}

// WithDevicePath sets the DRM node opened by Open. Ignored with WithDevice.
func WithDevicePath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithDevice uses an already opened device instead of opening a node.
// The Manager takes ownership and closes it on Close.
func WithDevice(dev kms.Device) Option {
	return func(o *options) {
		o.device = dev
	}
}

// WithPlanePreference selects the plane resolved at open.
func WithPlanePreference(p PlanePreference) Option {
	return func(o *options) {
		o.plane = p
	}
}

// WithVBlankSync controls the vertical-blank wait before a busy flip is
// retried. Enabled by default.
func WithVBlankSync(enabled bool) Option {
	return func(o *options) {
		o.vblankSync = enabled
	}
}

// WithForceFlush makes Flush msync CPU-written buffers.
func WithForceFlush(enabled bool) Option {
	return func(o *options) {
		o.forceFlush = enabled
	}
}
