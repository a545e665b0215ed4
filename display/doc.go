// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package display manages a single kernel mode-setting output.
//
// A Manager discovers the first connected connector, its preferred mode,
// a CRTC and a compositing plane, then commits the mode with a zero-filled
// buffer so the pipeline is running before the first frame arrives.
//
// Frames are shown from a pool of two dumb buffers at a fixed size:
//
//	m, err := display.Open()
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	mode := m.Mode()
//	if err := m.AllocateBuffers(mode.Width, mode.Height, display.OrderRGBA); err != nil {
//	    return err
//	}
//	i := m.Back()
//	fill(m.Buffer(i))
//	m.Flush(i)
//	err = m.Present(i)
//
// The first Present performs a full mode commit; every later one queues a
// page flip. A flip answered with EBUSY is retried exactly once after one
// vertical blank.
//
// # Format negotiation
//
// Framebuffers are registered with legacy AddFB (depth 24, 32 bpp) first,
// which always means XRGB8888. Drivers without it get AddFB2 with the
// format that stores the writer's channel order directly, XBGR8888 for
// RGBA writers. Buffer.Swizzle records, once per allocation, whether the
// writer has to swap red and blue.
package display
