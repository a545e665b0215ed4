// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compute bootstraps a compute-only GPU device and implements the
// GPU side of frame presentation.
//
// Open never creates a surface or asks the GPU API about displays; the
// Platform it hands to renderers reports TextureFormatUndefined and no
// instance extensions. On top of the device the package offers:
//
//   - Readback, a fence-waited copy of a renderer texture into host memory
//   - Import, which turns a DMA-BUF exported by the display driver into a
//     GPU storage buffer when the device implements Importer
//   - Blitter, a WGSL compute pass that scales a texture into an imported
//     buffer with nearest-neighbour sampling
//
// The HAL has no external-memory import, and no device in this module
// implements Importer. Zero-copy presentation therefore needs an Importer
// supplied with WithImporter; without one Import returns
// ErrExternalMemoryUnsupported and frames go through Readback.
//
// Every submission waits on its own fence before returning, so GPU work
// never runs more than one frame ahead of the display.
package compute
