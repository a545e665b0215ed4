// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import "errors"

// Bootstrap errors returned by Open.
var (
	// ErrLoaderUnavailable is returned when the GPU API cannot be loaded
	// or refuses to create an instance.
	ErrLoaderUnavailable = errors.New("compute: GPU loader unavailable")

	// ErrNoCapableDevice is returned when no adapter is enumerated.
	ErrNoCapableDevice = errors.New("compute: no compute-capable device")

	// ErrDeviceCreateFailed is returned when opening the logical device fails.
	ErrDeviceCreateFailed = errors.New("compute: device creation failed")
)

var (
	// ErrExternalMemoryUnsupported is returned by Import when the device
	// cannot import DMA-BUF memory.
	ErrExternalMemoryUnsupported = errors.New("compute: external memory import unsupported")

	// ErrClosed is returned by operations on a closed Context.
	ErrClosed = errors.New("compute: context is closed")

	// ErrInvalidSize is returned for zero-sized or mismatched copies.
	ErrInvalidSize = errors.New("compute: invalid size")
)
