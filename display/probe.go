// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

// Capability is the result of probing an optional kernel feature.
type Capability int8

const (
	// Unprobed means the feature has not been tried yet.
	Unprobed Capability = iota
	Supported
	Unsupported
)

func (c Capability) String() string {
	switch c {
	case Unprobed:
		return "unprobed"
	case Supported:
		return "supported"
	case Unsupported:
		return "unsupported"
	default:
		return "invalid"
	}
}

func probed(ok bool) Capability {
	if ok {
		return Supported
	}
	return Unsupported
}

// Capabilities reports the probe results of a Manager.
type Capabilities struct {
	// Master is display-control ownership, tried at open.
	Master Capability

	// DirtyFB is the dirty-framebuffer notification, tried on first present.
	DirtyFB Capability

	// Flush is explicit msync of CPU writes. Supported only when enabled by
	// option and the first msync succeeded.
	Flush Capability
}
