// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import "errors"

// Discovery errors. Open wraps one of these when a required display
// resource is missing.
var (
	// ErrNoDevice is returned when the device node cannot be opened or
	// lacks dumb-buffer support.
	ErrNoDevice = errors.New("display: no usable display device")

	// ErrNoConnector is returned when no connected connector has a mode.
	ErrNoConnector = errors.New("display: no connected connector with a mode")

	// ErrNoPipeline is returned when no CRTC can drive the connector.
	ErrNoPipeline = errors.New("display: no CRTC for connector")
)

var (
	// ErrNotOpen is returned by operations on a closed Manager.
	ErrNotOpen = errors.New("display: manager is closed")

	// ErrNoBuffers is returned when presenting before AllocateBuffers.
	ErrNoBuffers = errors.New("display: buffer pool not allocated")

	// ErrBufferBusy is returned when presenting the buffer that is already
	// bound to the CRTC.
	ErrBufferBusy = errors.New("display: buffer is being scanned out")

	// ErrInvalidSize is returned for zero-sized buffer allocations.
	ErrInvalidSize = errors.New("display: invalid buffer size")
)
