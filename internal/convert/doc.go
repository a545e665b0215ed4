// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package convert scales RGBA8888 frames into 32-bit scanout rows.
//
// Scaling is nearest-neighbor on both axes with the fixed-point selection
//
//	src = dst * srcLen / dstLen   (clamped to srcLen-1)
//
// which covers upscale, downscale and 1:1 with one formula. The source
// alpha channel is always dropped: the ignored byte of every output
// pixel is zero.
//
// A Plan is built once per (source, destination) size pair. It fixes the
// row mapping and the horizontal routine: plain conversion for 1:1, pixel
// replication for exact 2x and 4x, and a per-column lookup for every other
// ratio. The fixed-ratio routines work on 8-pixel lanes held in fixed-size
// arrays, which the compiler keeps in registers and unrolls.
package convert
