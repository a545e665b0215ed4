// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kms

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux _IOC encoding.
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	drmBase = 'd'
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | drmBase<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func io(nr uintptr) uintptr { return ioc(iocNone, nr, 0) }
func iow(nr, size uintptr) uintptr { return ioc(iocWrite, nr, size) }
func iowr(nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, nr, size) }

// Kernel argument structs, laid out as in include/uapi/drm/drm.h and
// drm_mode.h. Pointer fields are u64 addresses of Go slices.
type (
	sysGetCap struct {
		capability uint64
		value      uint64
	}

	sysSetClientCap struct {
		capability uint64
		value      uint64
	}

	sysResources struct {
		fbIDPtr        uint64
		crtcIDPtr      uint64
		connectorIDPtr uint64
		encoderIDPtr   uint64

		countFBs        uint32
		countCRTCs      uint32
		countConnectors uint32
		countEncoders   uint32

		minWidth, maxWidth   uint32
		minHeight, maxHeight uint32
	}

	sysGetConnector struct {
		encodersPtr   uint64
		modesPtr      uint64
		propsPtr      uint64
		propValuesPtr uint64

		countModes    uint32
		countProps    uint32
		countEncoders uint32

		encoderID       uint32
		connectorID     uint32
		connectorType   uint32
		connectorTypeID uint32

		connection        uint32
		mmWidth, mmHeight uint32
		subpixel          uint32
		pad               uint32
	}

	sysGetEncoder struct {
		encoderID      uint32
		encoderType    uint32
		crtcID         uint32
		possibleCRTCs  uint32
		possibleClones uint32
	}

	sysGetPlaneResources struct {
		planeIDPtr  uint64
		countPlanes uint32
	}

	sysGetPlane struct {
		planeID          uint32
		crtcID           uint32
		fbID             uint32
		possibleCRTCs    uint32
		gammaSize        uint32
		countFormatTypes uint32
		formatTypePtr    uint64
	}

	sysObjGetProperties struct {
		propsPtr      uint64
		propValuesPtr uint64
		countProps    uint32
		objID         uint32
		objType       uint32
	}

	sysGetProperty struct {
		valuesPtr      uint64
		enumBlobPtr    uint64
		propID         uint32
		flags          uint32
		name           [32]uint8
		countValues    uint32
		countEnumBlobs uint32
	}

	sysCreateDumb struct {
		height, width uint32
		bpp           uint32
		flags         uint32

		handle uint32
		pitch  uint32
		size   uint64
	}

	sysMapDumb struct {
		handle uint32
		pad    uint32
		offset uint64
	}

	sysDestroyDumb struct {
		handle uint32
	}

	sysFBCmd struct {
		fbID          uint32
		width, height uint32
		pitch         uint32
		bpp           uint32
		depth         uint32
		handle        uint32
	}

	sysFBCmd2 struct {
		fbID          uint32
		width, height uint32
		pixelFormat   uint32
		flags         uint32
		handles       [4]uint32
		pitches       [4]uint32
		offsets       [4]uint32
		modifier      [4]uint64
	}

	sysCrtc struct {
		setConnectorsPtr uint64
		countConnectors  uint32

		crtcID uint32
		fbID   uint32

		x, y uint32

		gammaSize uint32
		modeValid uint32
		mode      ModeInfo
	}

	sysPageFlip struct {
		crtcID   uint32
		fbID     uint32
		flags    uint32
		reserved uint32
		userData uint64
	}

	sysDirtyFB struct {
		fbID     uint32
		flags    uint32
		color    uint32
		numClips uint32
		clipsPtr uint64
	}

	// sysWaitVBlank is union drm_wait_vblank. C long is int on Linux.
	sysWaitVBlank struct {
		typ      uint32
		sequence uint32
		signal   int // reply: tval_sec
		tvalUsec int
	}

	sysPrimeHandle struct {
		handle uint32
		flags  uint32
		fd     int32
	}
)

var (
	ioctlGetCap       = iowr(0x0c, unsafe.Sizeof(sysGetCap{}))
	ioctlSetClientCap = iow(0x0d, unsafe.Sizeof(sysSetClientCap{}))
	ioctlSetMaster    = io(0x1e)
	ioctlDropMaster   = io(0x1f)
	ioctlPrimeToFD    = iowr(0x2d, unsafe.Sizeof(sysPrimeHandle{}))
	ioctlWaitVBlank   = iowr(0x3a, unsafe.Sizeof(sysWaitVBlank{}))

	ioctlModeGetResources = iowr(0xA0, unsafe.Sizeof(sysResources{}))
	ioctlModeSetCrtc      = iowr(0xA2, unsafe.Sizeof(sysCrtc{}))
	ioctlModeGetEncoder   = iowr(0xA6, unsafe.Sizeof(sysGetEncoder{}))
	ioctlModeGetConnector = iowr(0xA7, unsafe.Sizeof(sysGetConnector{}))
	ioctlModeGetProperty  = iowr(0xAA, unsafe.Sizeof(sysGetProperty{}))
	ioctlModeAddFB        = iowr(0xAE, unsafe.Sizeof(sysFBCmd{}))
	ioctlModeRmFB         = iowr(0xAF, unsafe.Sizeof(uint32(0)))
	ioctlModePageFlip     = iowr(0xB0, unsafe.Sizeof(sysPageFlip{}))
	ioctlModeDirtyFB      = iowr(0xB1, unsafe.Sizeof(sysDirtyFB{}))
	ioctlModeCreateDumb   = iowr(0xB2, unsafe.Sizeof(sysCreateDumb{}))
	ioctlModeMapDumb      = iowr(0xB3, unsafe.Sizeof(sysMapDumb{}))
	ioctlModeDestroyDumb  = iowr(0xB4, unsafe.Sizeof(sysDestroyDumb{}))
	ioctlModeGetPlaneRes  = iowr(0xB5, unsafe.Sizeof(sysGetPlaneResources{}))
	ioctlModeGetPlane     = iowr(0xB6, unsafe.Sizeof(sysGetPlane{}))
	ioctlModeAddFB2       = iowr(0xB8, unsafe.Sizeof(sysFBCmd2{}))
	ioctlModeObjGetProps  = iowr(0xB9, unsafe.Sizeof(sysObjGetProperties{}))
)

// doIoctl issues one ioctl, restarting on EINTR and EAGAIN like libdrm's
// drmIoctl. The returned error is a bare unix.Errno.
func doIoctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
}

func ptrTo[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}
