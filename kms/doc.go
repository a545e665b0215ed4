// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package kms is a thin binding to the Linux kernel mode-setting (DRM/KMS)
// ioctl interface.
//
// It covers what a single-output scanout client needs: resource and
// connector discovery, plane lookup, dumb buffers, legacy and
// format-aware framebuffer registration, mode commits, page flips,
// vertical blank waits, dirty-framebuffer notification and PRIME export.
//
// The Device interface is the seam between this package and its users.
// Card talks to a real /dev/dri node; kms/kmstest provides an in-memory
// fake with fault injection for tests.
package kms
