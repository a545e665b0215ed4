// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kms

// Device is the subset of the kernel mode-setting API used for scanout.
//
// Every method maps onto one DRM ioctl (or mmap/msync on the device file).
// Errors returned by a real card wrap the kernel errno, so callers can test
// them with errors.Is(err, unix.EBUSY) and friends.
//
// Card is the production implementation; kmstest.Device is an in-memory fake.
type Device interface {
	// Capability queries a DRM_CAP_* value.
	Capability(capability uint64) (uint64, error)

	// SetClientCap requests a DRM_CLIENT_CAP_* capability.
	SetClientCap(capability, value uint64) error

	// SetMaster acquires display-control ownership.
	SetMaster() error

	// DropMaster releases display-control ownership.
	DropMaster() error

	Resources() (*Resources, error)
	Connector(id uint32) (*Connector, error)
	Encoder(id uint32) (*Encoder, error)
	PlaneResources() ([]uint32, error)
	Plane(id uint32) (*Plane, error)
	ObjectProperties(objectID, objectType uint32) (*Properties, error)
	Property(id uint32) (*Property, error)

	// CreateDumb allocates a kernel ("dumb") buffer.
	CreateDumb(width, height, bpp uint32) (*DumbBuffer, error)

	// MapDumb returns the fake mmap offset for a dumb buffer handle.
	MapDumb(handle uint32) (uint64, error)

	// DestroyDumb frees a dumb buffer handle.
	DestroyDumb(handle uint32) error

	// Mmap maps size bytes of the device at offset, read-write and shared.
	Mmap(offset uint64, size int) ([]byte, error)

	// Munmap releases a mapping returned by Mmap.
	Munmap(mem []byte) error

	// Msync flushes CPU writes of a mapping returned by Mmap.
	Msync(mem []byte) error

	// AddFB registers a framebuffer with the legacy depth/bpp form.
	AddFB(width, height uint32, depth, bpp uint8, pitch, handle uint32) (uint32, error)

	// AddFB2 registers a framebuffer with an explicit four-character format.
	AddFB2(fb *FB2) (uint32, error)

	// RmFB unregisters a framebuffer.
	RmFB(id uint32) error

	// SetCrtc performs a full mode commit with fb bound to crtc.
	SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, mode *ModeInfo) error

	// PageFlip queues an asynchronous, vblank-synchronised buffer swap.
	PageFlip(crtcID, fbID, flags uint32, userData uint64) error

	// WaitVBlank blocks until the given number of vertical blanks elapsed.
	WaitVBlank(sequence uint32) error

	// DirtyFB notifies the driver that fb content changed.
	DirtyFB(fbID uint32, clips []ClipRect) error

	// PrimeHandleToFD exports a buffer handle as a DMA-BUF file descriptor.
	PrimeHandleToFD(handle, flags uint32) (int, error)

	// Close closes the device.
	Close() error
}
