// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kms

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultCardPath is the first DRM card node.
const DefaultCardPath = "/dev/dri/card0"

// Card is a DRM device node opened read-write.
type Card struct {
	file *os.File
}

// Interface compliance check.
var _ Device = (*Card)(nil)

// OpenCard opens the DRM device node at path.
func OpenCard(path string) (*Card, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("kms: open %s: %w", path, err)
	}
	return &Card{file: f}, nil
}

func (c *Card) fd() uintptr { return c.file.Fd() }

// Capability queries a DRM_CAP_* value.
func (c *Card) Capability(capability uint64) (uint64, error) {
	req := &sysGetCap{capability: capability}
	if err := doIoctl(c.fd(), ioctlGetCap, unsafe.Pointer(req)); err != nil {
		return 0, fmt.Errorf("kms: get cap %#x: %w", capability, err)
	}
	return req.value, nil
}

// SetClientCap requests a client capability.
func (c *Card) SetClientCap(capability, value uint64) error {
	req := &sysSetClientCap{capability: capability, value: value}
	if err := doIoctl(c.fd(), ioctlSetClientCap, unsafe.Pointer(req)); err != nil {
		return fmt.Errorf("kms: set client cap %d: %w", capability, err)
	}
	return nil
}

// SetMaster acquires display-control ownership.
func (c *Card) SetMaster() error {
	if err := doIoctl(c.fd(), ioctlSetMaster, nil); err != nil {
		return fmt.Errorf("kms: set master: %w", err)
	}
	return nil
}

// DropMaster releases display-control ownership.
func (c *Card) DropMaster() error {
	if err := doIoctl(c.fd(), ioctlDropMaster, nil); err != nil {
		return fmt.Errorf("kms: drop master: %w", err)
	}
	return nil
}

// Resources lists the card's fbs, CRTCs, connectors and encoders.
// The ioctl is issued twice: once for the counts, once to fill the arrays.
func (c *Card) Resources() (*Resources, error) {
	res := &sysResources{}
	if err := doIoctl(c.fd(), ioctlModeGetResources, unsafe.Pointer(res)); err != nil {
		return nil, fmt.Errorf("kms: get resources: %w", err)
	}

	fbs := make([]uint32, res.countFBs)
	crtcs := make([]uint32, res.countCRTCs)
	connectors := make([]uint32, res.countConnectors)
	encoders := make([]uint32, res.countEncoders)
	res.fbIDPtr = ptrTo(fbs)
	res.crtcIDPtr = ptrTo(crtcs)
	res.connectorIDPtr = ptrTo(connectors)
	res.encoderIDPtr = ptrTo(encoders)

	err := doIoctl(c.fd(), ioctlModeGetResources, unsafe.Pointer(res))
	runtime.KeepAlive(fbs)
	runtime.KeepAlive(crtcs)
	runtime.KeepAlive(connectors)
	runtime.KeepAlive(encoders)
	if err != nil {
		return nil, fmt.Errorf("kms: get resources: %w", err)
	}

	// A hotplug between the two calls can shrink the counts.
	return &Resources{
		FBs:        fbs[:min(len(fbs), int(res.countFBs))],
		CRTCs:      crtcs[:min(len(crtcs), int(res.countCRTCs))],
		Connectors: connectors[:min(len(connectors), int(res.countConnectors))],
		Encoders:   encoders[:min(len(encoders), int(res.countEncoders))],
		MinWidth:   res.minWidth,
		MaxWidth:   res.maxWidth,
		MinHeight:  res.minHeight,
		MaxHeight:  res.maxHeight,
	}, nil
}

// Connector returns the connector with the given id, including its modes.
func (c *Card) Connector(id uint32) (*Connector, error) {
	conn := &sysGetConnector{connectorID: id}
	if err := doIoctl(c.fd(), ioctlModeGetConnector, unsafe.Pointer(conn)); err != nil {
		return nil, fmt.Errorf("kms: get connector %d: %w", id, err)
	}

	modes := make([]ModeInfo, conn.countModes)
	encoders := make([]uint32, conn.countEncoders)
	props := make([]uint32, conn.countProps)
	values := make([]uint64, conn.countProps)
	conn.modesPtr = ptrTo(modes)
	conn.encodersPtr = ptrTo(encoders)
	conn.propsPtr = ptrTo(props)
	conn.propValuesPtr = ptrTo(values)

	err := doIoctl(c.fd(), ioctlModeGetConnector, unsafe.Pointer(conn))
	runtime.KeepAlive(modes)
	runtime.KeepAlive(encoders)
	runtime.KeepAlive(props)
	runtime.KeepAlive(values)
	if err != nil {
		return nil, fmt.Errorf("kms: get connector %d: %w", id, err)
	}

	return &Connector{
		ID:         conn.connectorID,
		EncoderID:  conn.encoderID,
		Type:       conn.connectorType,
		TypeID:     conn.connectorTypeID,
		Connection: conn.connection,
		MMWidth:    conn.mmWidth,
		MMHeight:   conn.mmHeight,
		Subpixel:   conn.subpixel,
		Modes:      modes[:min(len(modes), int(conn.countModes))],
		Encoders:   encoders[:min(len(encoders), int(conn.countEncoders))],
		Props:      props[:min(len(props), int(conn.countProps))],
		PropValues: values[:min(len(values), int(conn.countProps))],
	}, nil
}

// Encoder returns the encoder with the given id.
func (c *Card) Encoder(id uint32) (*Encoder, error) {
	enc := &sysGetEncoder{encoderID: id}
	if err := doIoctl(c.fd(), ioctlModeGetEncoder, unsafe.Pointer(enc)); err != nil {
		return nil, fmt.Errorf("kms: get encoder %d: %w", id, err)
	}
	return &Encoder{
		ID:             enc.encoderID,
		Type:           enc.encoderType,
		CRTCID:         enc.crtcID,
		PossibleCRTCs:  enc.possibleCRTCs,
		PossibleClones: enc.possibleClones,
	}, nil
}

// PlaneResources lists plane ids. Universal planes must be enabled for
// primary and cursor planes to be included.
func (c *Card) PlaneResources() ([]uint32, error) {
	res := &sysGetPlaneResources{}
	if err := doIoctl(c.fd(), ioctlModeGetPlaneRes, unsafe.Pointer(res)); err != nil {
		return nil, fmt.Errorf("kms: get plane resources: %w", err)
	}
	planes := make([]uint32, res.countPlanes)
	res.planeIDPtr = ptrTo(planes)
	err := doIoctl(c.fd(), ioctlModeGetPlaneRes, unsafe.Pointer(res))
	runtime.KeepAlive(planes)
	if err != nil {
		return nil, fmt.Errorf("kms: get plane resources: %w", err)
	}
	return planes[:min(len(planes), int(res.countPlanes))], nil
}

// Plane returns the plane with the given id.
func (c *Card) Plane(id uint32) (*Plane, error) {
	p := &sysGetPlane{planeID: id}
	if err := doIoctl(c.fd(), ioctlModeGetPlane, unsafe.Pointer(p)); err != nil {
		return nil, fmt.Errorf("kms: get plane %d: %w", id, err)
	}
	formats := make([]uint32, p.countFormatTypes)
	p.formatTypePtr = ptrTo(formats)
	err := doIoctl(c.fd(), ioctlModeGetPlane, unsafe.Pointer(p))
	runtime.KeepAlive(formats)
	if err != nil {
		return nil, fmt.Errorf("kms: get plane %d: %w", id, err)
	}
	return &Plane{
		ID:            p.planeID,
		CRTCID:        p.crtcID,
		FBID:          p.fbID,
		PossibleCRTCs: p.possibleCRTCs,
		GammaSize:     p.gammaSize,
		Formats:       formats[:min(len(formats), int(p.countFormatTypes))],
	}, nil
}

// ObjectProperties returns the property ids and values of a mode object.
func (c *Card) ObjectProperties(objectID, objectType uint32) (*Properties, error) {
	req := &sysObjGetProperties{objID: objectID, objType: objectType}
	if err := doIoctl(c.fd(), ioctlModeObjGetProps, unsafe.Pointer(req)); err != nil {
		return nil, fmt.Errorf("kms: get properties of %d: %w", objectID, err)
	}
	props := make([]uint32, req.countProps)
	values := make([]uint64, req.countProps)
	req.propsPtr = ptrTo(props)
	req.propValuesPtr = ptrTo(values)
	err := doIoctl(c.fd(), ioctlModeObjGetProps, unsafe.Pointer(req))
	runtime.KeepAlive(props)
	runtime.KeepAlive(values)
	if err != nil {
		return nil, fmt.Errorf("kms: get properties of %d: %w", objectID, err)
	}
	n := min(len(props), int(req.countProps))
	return &Properties{Props: props[:n], Values: values[:n]}, nil
}

// Property returns the name and value list of a property.
func (c *Card) Property(id uint32) (*Property, error) {
	req := &sysGetProperty{propID: id}
	if err := doIoctl(c.fd(), ioctlModeGetProperty, unsafe.Pointer(req)); err != nil {
		return nil, fmt.Errorf("kms: get property %d: %w", id, err)
	}
	values := make([]uint64, req.countValues)
	req.valuesPtr = ptrTo(values)
	// Enum blobs are not needed; a zero count makes the kernel skip them.
	req.countEnumBlobs = 0
	err := doIoctl(c.fd(), ioctlModeGetProperty, unsafe.Pointer(req))
	runtime.KeepAlive(values)
	if err != nil {
		return nil, fmt.Errorf("kms: get property %d: %w", id, err)
	}
	return &Property{
		ID:     req.propID,
		Flags:  req.flags,
		Name:   string(bytes.TrimRight(req.name[:], "\x00")),
		Values: values[:min(len(values), int(req.countValues))],
	}, nil
}

// CreateDumb allocates a dumb buffer.
func (c *Card) CreateDumb(width, height, bpp uint32) (*DumbBuffer, error) {
	req := &sysCreateDumb{width: width, height: height, bpp: bpp}
	if err := doIoctl(c.fd(), ioctlModeCreateDumb, unsafe.Pointer(req)); err != nil {
		return nil, fmt.Errorf("kms: create dumb %dx%d: %w", width, height, err)
	}
	return &DumbBuffer{Handle: req.handle, Pitch: req.pitch, Size: req.size}, nil
}

// MapDumb prepares a dumb buffer for mmap and returns its offset.
func (c *Card) MapDumb(handle uint32) (uint64, error) {
	req := &sysMapDumb{handle: handle}
	if err := doIoctl(c.fd(), ioctlModeMapDumb, unsafe.Pointer(req)); err != nil {
		return 0, fmt.Errorf("kms: map dumb %d: %w", handle, err)
	}
	return req.offset, nil
}

// DestroyDumb frees a dumb buffer.
func (c *Card) DestroyDumb(handle uint32) error {
	req := &sysDestroyDumb{handle: handle}
	if err := doIoctl(c.fd(), ioctlModeDestroyDumb, unsafe.Pointer(req)); err != nil {
		return fmt.Errorf("kms: destroy dumb %d: %w", handle, err)
	}
	return nil
}

// Mmap maps a dumb buffer into the process.
func (c *Card) Mmap(offset uint64, size int) ([]byte, error) {
	mem, err := unix.Mmap(int(c.fd()), int64(offset), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("kms: mmap %d bytes: %w", size, err)
	}
	return mem, nil
}

// Munmap unmaps memory returned by Mmap.
func (c *Card) Munmap(mem []byte) error {
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("kms: munmap: %w", err)
	}
	return nil
}

// Msync flushes a mapping. The whole mapping is page aligned already
// because it was returned by mmap.
func (c *Card) Msync(mem []byte) error {
	if err := unix.Msync(mem, unix.MS_SYNC); err != nil {
		return fmt.Errorf("kms: msync: %w", err)
	}
	return nil
}

// AddFB registers a framebuffer with the legacy depth/bpp form.
func (c *Card) AddFB(width, height uint32, depth, bpp uint8, pitch, handle uint32) (uint32, error) {
	req := &sysFBCmd{
		width:  width,
		height: height,
		pitch:  pitch,
		bpp:    uint32(bpp),
		depth:  uint32(depth),
		handle: handle,
	}
	if err := doIoctl(c.fd(), ioctlModeAddFB, unsafe.Pointer(req)); err != nil {
		return 0, fmt.Errorf("kms: add fb: %w", err)
	}
	return req.fbID, nil
}

// AddFB2 registers a framebuffer with an explicit pixel format.
func (c *Card) AddFB2(fb *FB2) (uint32, error) {
	req := &sysFBCmd2{
		width:       fb.Width,
		height:      fb.Height,
		pixelFormat: fb.PixelFormat,
		flags:       fb.Flags,
		handles:     fb.Handles,
		pitches:     fb.Pitches,
		offsets:     fb.Offsets,
		modifier:    fb.Modifiers,
	}
	if err := doIoctl(c.fd(), ioctlModeAddFB2, unsafe.Pointer(req)); err != nil {
		return 0, fmt.Errorf("kms: add fb2 %s: %w", FormatName(fb.PixelFormat), err)
	}
	return req.fbID, nil
}

// RmFB unregisters a framebuffer.
func (c *Card) RmFB(id uint32) error {
	fbID := id
	if err := doIoctl(c.fd(), ioctlModeRmFB, unsafe.Pointer(&fbID)); err != nil {
		return fmt.Errorf("kms: rm fb %d: %w", id, err)
	}
	return nil
}

// SetCrtc performs a full mode commit.
func (c *Card) SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, mode *ModeInfo) error {
	req := &sysCrtc{
		setConnectorsPtr: ptrTo(connectors),
		countConnectors:  uint32(len(connectors)),
		crtcID:           crtcID,
		fbID:             fbID,
		x:                x,
		y:                y,
	}
	if mode != nil {
		req.mode = *mode
		req.modeValid = 1
	}
	err := doIoctl(c.fd(), ioctlModeSetCrtc, unsafe.Pointer(req))
	runtime.KeepAlive(connectors)
	if err != nil {
		return fmt.Errorf("kms: set crtc %d: %w", crtcID, err)
	}
	return nil
}

// PageFlip queues a buffer swap for the next vertical blank.
func (c *Card) PageFlip(crtcID, fbID, flags uint32, userData uint64) error {
	req := &sysPageFlip{crtcID: crtcID, fbID: fbID, flags: flags, userData: userData}
	if err := doIoctl(c.fd(), ioctlModePageFlip, unsafe.Pointer(req)); err != nil {
		return fmt.Errorf("kms: page flip: %w", err)
	}
	return nil
}

// WaitVBlank waits for sequence vertical blanks relative to now.
func (c *Card) WaitVBlank(sequence uint32) error {
	req := &sysWaitVBlank{typ: VBlankRelative, sequence: sequence}
	if err := doIoctl(c.fd(), ioctlWaitVBlank, unsafe.Pointer(req)); err != nil {
		return fmt.Errorf("kms: wait vblank: %w", err)
	}
	return nil
}

// DirtyFB notifies the driver of changed framebuffer content. A nil clip
// list marks the whole framebuffer dirty.
func (c *Card) DirtyFB(fbID uint32, clips []ClipRect) error {
	req := &sysDirtyFB{
		fbID:     fbID,
		numClips: uint32(len(clips)),
		clipsPtr: ptrTo(clips),
	}
	err := doIoctl(c.fd(), ioctlModeDirtyFB, unsafe.Pointer(req))
	runtime.KeepAlive(clips)
	if err != nil {
		return fmt.Errorf("kms: dirty fb %d: %w", fbID, err)
	}
	return nil
}

// PrimeHandleToFD exports a GEM handle as a DMA-BUF file descriptor.
func (c *Card) PrimeHandleToFD(handle, flags uint32) (int, error) {
	req := &sysPrimeHandle{handle: handle, flags: flags, fd: -1}
	if err := doIoctl(c.fd(), ioctlPrimeToFD, unsafe.Pointer(req)); err != nil {
		return -1, fmt.Errorf("kms: prime handle %d to fd: %w", handle, err)
	}
	return int(req.fd), nil
}

// Close closes the device node.
func (c *Card) Close() error {
	return c.file.Close()
}
