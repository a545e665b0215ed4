// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scanout

// PathKind names a presentation path.
type PathKind int

const (
	// PathNone means no frame has been presented yet.
	PathNone PathKind = iota

	// PathZeroCopy blits on the GPU into imported scanout buffers.
	PathZeroCopy

	// PathCPU reads frames back and scales them on the CPU.
	PathCPU
)

func (k PathKind) String() string {
	switch k {
	case PathNone:
		return "none"
	case PathZeroCopy:
		return "zero-copy"
	case PathCPU:
		return "cpu"
	default:
		return "unknown"
	}
}

// presentationPath is the path a session resolved at its first frame,
// either *zeroCopyPath or *cpuPath. Display matches on the concrete type
// at every present.
type presentationPath interface {
	kind() PathKind
	release(d *Display) error
}

var (
	_ presentationPath = (*zeroCopyPath)(nil)
	_ presentationPath = (*cpuPath)(nil)
)
