// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config reads the process-start diagnostic switches from the
// environment. They are read once and cached for the process lifetime.
package config

import (
	"log/slog"
	"os"
	"sync"
)

// Environment variables. A variable is on when it is set, non-empty and
// does not start with '0'.
const (
	EnvTestPattern  = "SCANOUT_TEST_PATTERN"
	EnvForceFlush   = "SCANOUT_FORCE_FLUSH"
	EnvDisablePlane = "SCANOUT_DISABLE_PLANE"
	EnvUseOverlay   = "SCANOUT_USE_OVERLAY"
	EnvNoVBlankSync = "SCANOUT_NO_VBLANK_SYNC"
)

// Flags are the diagnostic switches.
type Flags struct {
	// TestPattern replaces every frame with a generated pattern.
	TestPattern bool

	// ForceFlush msyncs CPU-written buffers before each present.
	ForceFlush bool

	// DisablePlane skips compositing plane resolution.
	DisablePlane bool

	// UseOverlay prefers an overlay plane over the primary one.
	UseOverlay bool

	// NoVBlankSync skips the vertical-blank wait before a busy flip retry.
	NoVBlankSync bool
}

var (
	loadOnce sync.Once
	loaded   Flags
)

// Load returns the flags of the current process. The environment is read
// on the first call only.
func Load() Flags {
	loadOnce.Do(func() {
		loaded = Parse(os.Getenv)
	})
	return loaded
}

// Parse reads the flags through getenv.
func Parse(getenv func(string) string) Flags {
	return Flags{
		TestPattern:  on(getenv(EnvTestPattern)),
		ForceFlush:   on(getenv(EnvForceFlush)),
		DisablePlane: on(getenv(EnvDisablePlane)),
		UseOverlay:   on(getenv(EnvUseOverlay)),
		NoVBlankSync: on(getenv(EnvNoVBlankSync)),
	}
}

func on(v string) bool {
	return v != "" && v[0] != '0'
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// LogValue implements slog.LogValuer.
func (f Flags) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("test_pattern", onOff(f.TestPattern)),
		slog.String("force_flush", onOff(f.ForceFlush)),
		slog.String("disable_plane", onOff(f.DisablePlane)),
		slog.String("use_overlay", onOff(f.UseOverlay)),
		slog.String("no_vblank_sync", onOff(f.NoVBlankSync)),
	)
}
