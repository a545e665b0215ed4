// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scanout presents rendered frames on a Linux DRM/KMS display
// without a windowing system or GPU surface.
//
// # Overview
//
// A session is opened once with OpenDisplay and fed one frame per video
// tick with PresentFrame or PresentNext. At the first frame the session
// resolves one of two presentation paths and keeps it:
//
//   - zero-copy: the display's dumb buffers are exported as DMA-BUFs,
//     imported into the compute device and written by a GPU blit
//   - cpu: the frame is read back and scaled into CPU-mapped buffers with
//     fixed-point nearest-neighbour row routines
//
// Buffers handed to the display are always at the display mode's
// resolution, so the display controller never scales.
//
// # Quick Start
//
//	gpu, err := compute.Open()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer gpu.Close()
//
//	d, err := scanout.OpenDisplay(scanout.WithGPU(gpu))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	for {
//		tex, w, h := render(gpu.Platform())
//		err := d.PresentFrame(scanout.GPUFrame(tex, w, h, gputypes.TextureFormatRGBA8Unorm))
//		if scanout.IsFatal(err) {
//			log.Fatal(err)
//		}
//	}
//
// # Failure policy
//
// A zero-copy setup failure disables zero-copy for the session and the cpu
// path takes over. After three consecutive dropped frames the zero-copy
// path is treated as broken in the same way; on the cpu path the session
// halts instead, since there is nothing left to fall back to. A cpu buffer
// allocation failure halts immediately.
//
// # Concurrency
//
// PresentFrame runs on the caller's goroutine and returns when the frame
// is on screen or dropped; the session starts no goroutines of its own.
// The one exception is opt-in: WithConvertWorkers(n) with n > 1 keeps n
// conversion goroutines alive until Close. They only run while a
// PresentFrame call waits for them, so the call stays synchronous.
//
// # Environment
//
// OpenDisplay reads these once per process; any non-empty value not
// starting with 0 enables them:
//
//	SCANOUT_TEST_PATTERN    draw a moving diagnostic pattern instead of frames
//	SCANOUT_FORCE_FLUSH     msync every CPU-written buffer
//	SCANOUT_DISABLE_PLANE   do not resolve a compositing plane
//	SCANOUT_USE_OVERLAY     prefer an overlay plane over the primary
//	SCANOUT_NO_VBLANK_SYNC  retry busy flips without a vertical-blank wait
package scanout
