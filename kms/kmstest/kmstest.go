// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package kmstest provides an in-memory kms.Device for tests.
//
// The fake models one card with a single connector, encoder and CRTC and
// three planes (primary, overlay, cursor). Dumb buffers are plain byte
// slices, so tests can inspect exactly what would have been scanned out.
// Faults can be injected per call and every call is counted.
package kmstest

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gogpu/scanout/kms"
)

// Object ids of the fake topology.
const (
	CRTCID          = 10
	EncoderID       = 20
	ConnectorID     = 30
	PrimaryPlaneID  = 40
	OverlayPlaneID  = 41
	CursorPlaneID   = 42
	PlaneTypePropID = 50
)

const mapShift = 12

// Faults selects failures returned by the fake. A nil error means the call
// succeeds.
type Faults struct {
	SetMaster  error
	AddFB      error // legacy registration
	AddFB2     error
	CreateDumb error
	Prime      error
	SetCrtc    error
	PageFlip   error
	WaitVBlank error
	DirtyFB    error
	Msync      error

	// UnsupportedFormats are rejected by AddFB2 with EINVAL.
	UnsupportedFormats []uint32

	// BusyFlips is the number of upcoming PageFlip calls answered with EBUSY.
	BusyFlips int
}

// Calls counts successful and failed invocations per method.
type Calls struct {
	SetMaster, DropMaster int
	CreateDumb            int
	DestroyDumb           int
	AddFB, AddFB2, RmFB   int
	SetCrtc               int
	PageFlip              int
	BusyFlips             int
	WaitVBlank            int
	DirtyFB               int
	Msync                 int
	Prime                 int
	Close                 int
}

// Framebuffer is a registered framebuffer.
type Framebuffer struct {
	ID, Handle    uint32
	Width, Height uint32
	Pitch         uint32
	Format        uint32
	Legacy        bool
}

type dumb struct {
	buf    kms.DumbBuffer
	mem    []byte
	mapped int
}

// Option configures the fake topology.
type Option func(*Device)

// WithModes replaces the connector's mode list.
func WithModes(modes ...kms.ModeInfo) Option {
	return func(d *Device) {
		d.connector.Modes = modes
	}
}

// WithDisconnected reports the only connector as disconnected.
func WithDisconnected() Option {
	return func(d *Device) {
		d.connector.Connection = kms.Disconnected
	}
}

// WithDetachedEncoder leaves the connector without an active encoder so the
// CRTC must be found through the encoder compatibility mask.
func WithDetachedEncoder() Option {
	return func(d *Device) {
		d.connector.EncoderID = 0
		d.encoder.CRTCID = 0
	}
}

// WithoutCRTC makes the encoder incompatible with every CRTC.
func WithoutCRTC() Option {
	return func(d *Device) {
		d.connector.EncoderID = 0
		d.encoder.CRTCID = 0
		d.encoder.PossibleCRTCs = 0
	}
}

// WithoutPlanes hides all planes.
func WithoutPlanes() Option {
	return func(d *Device) {
		d.planes = nil
	}
}

// WithoutDumbBuffers reports no dumb-buffer support.
func WithoutDumbBuffers() Option {
	return func(d *Device) {
		d.caps[kms.CapDumbBuffer] = 0
	}
}

// Device is a fake kms.Device. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	caps      map[uint64]uint64
	connector kms.Connector
	encoder   kms.Encoder
	planes    map[uint32]uint64 // plane id -> type

	faults Faults
	calls  Calls

	clientCaps map[uint64]uint64
	dumbs      map[uint32]*dumb
	fbs        map[uint32]*Framebuffer
	nextHandle uint32
	nextFB     uint32
	boundFB    uint32
	master     bool
	closed     bool
}

var _ kms.Device = (*Device)(nil)

// Mode builds a mode with the given size and refresh rate.
func Mode(width, height uint16, refresh uint32, preferred bool) kms.ModeInfo {
	m := kms.ModeInfo{
		Hdisplay: width,
		Vdisplay: height,
		Htotal:   width + 160,
		Vtotal:   height + 45,
		Vrefresh: refresh,
		Type:     kms.ModeTypeDriver,
	}
	m.Clock = uint32(m.Htotal) * uint32(m.Vtotal) * refresh / 1000
	if preferred {
		m.Type |= kms.ModeTypePreferred
	}
	copy(m.Name[:], fmt.Sprintf("%dx%d", width, height))
	return m
}

// New returns a fake card with a connected 1280x720 display.
func New(opts ...Option) *Device {
	d := &Device{
		caps: map[uint64]uint64{kms.CapDumbBuffer: 1},
		connector: kms.Connector{
			ID:         ConnectorID,
			EncoderID:  EncoderID,
			Type:       11, // HDMI-A
			TypeID:     1,
			Connection: kms.Connected,
			Modes: []kms.ModeInfo{
				Mode(1280, 720, 60, true),
				Mode(640, 480, 60, false),
			},
			Encoders: []uint32{EncoderID},
		},
		encoder: kms.Encoder{
			ID:            EncoderID,
			Type:          2, // TMDS
			CRTCID:        CRTCID,
			PossibleCRTCs: 1,
		},
		planes: map[uint32]uint64{
			PrimaryPlaneID: kms.PlaneTypePrimary,
			OverlayPlaneID: kms.PlaneTypeOverlay,
			CursorPlaneID:  kms.PlaneTypeCursor,
		},
		clientCaps: make(map[uint64]uint64),
		dumbs:      make(map[uint32]*dumb),
		fbs:        make(map[uint32]*Framebuffer),
		nextHandle: 1,
		nextFB:     100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Inject changes the active faults.
func (d *Device) Inject(fn func(f *Faults)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.faults)
}

// Calls returns a snapshot of the call counters.
func (d *Device) Calls() Calls {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// ClientCap returns the value last set for a client capability.
func (d *Device) ClientCap(capability uint64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clientCaps[capability]
}

// IsMaster reports whether display-control ownership is held.
func (d *Device) IsMaster() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.master
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// LiveDumbs returns the number of allocated dumb buffers.
func (d *Device) LiveDumbs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dumbs)
}

// LiveFBs returns the number of registered framebuffers.
func (d *Device) LiveFBs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fbs)
}

// LiveMappings returns the number of outstanding Mmap calls.
func (d *Device) LiveMappings() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.dumbs {
		n += b.mapped
	}
	return n
}

// Scanout returns the framebuffer bound to the CRTC and a copy of its
// pixels. ok is false when nothing has been committed yet.
func (d *Device) Scanout() (fb Framebuffer, pixels []byte, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, found := d.fbs[d.boundFB]
	if !found {
		return Framebuffer{}, nil, false
	}
	b := d.dumbs[f.Handle]
	if b == nil {
		return *f, nil, true
	}
	return *f, append([]byte(nil), b.mem...), true
}

func (d *Device) check() error {
	if d.closed {
		return unix.EBADF
	}
	return nil
}

func (d *Device) Capability(capability uint64) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, fmt.Errorf("kms: get cap %#x: %w", capability, err)
	}
	v, ok := d.caps[capability]
	if !ok {
		return 0, fmt.Errorf("kms: get cap %#x: %w", capability, unix.EINVAL)
	}
	return v, nil
}

func (d *Device) SetClientCap(capability, value uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return fmt.Errorf("kms: set client cap %d: %w", capability, err)
	}
	d.clientCaps[capability] = value
	return nil
}

func (d *Device) SetMaster() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.SetMaster++
	if d.faults.SetMaster != nil {
		return fmt.Errorf("kms: set master: %w", d.faults.SetMaster)
	}
	d.master = true
	return nil
}

func (d *Device) DropMaster() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.DropMaster++
	if !d.master {
		return fmt.Errorf("kms: drop master: %w", unix.EINVAL)
	}
	d.master = false
	return nil
}

func (d *Device) Resources() (*kms.Resources, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, fmt.Errorf("kms: get resources: %w", err)
	}
	fbs := make([]uint32, 0, len(d.fbs))
	for id := range d.fbs {
		fbs = append(fbs, id)
	}
	return &kms.Resources{
		FBs:        fbs,
		CRTCs:      []uint32{CRTCID},
		Connectors: []uint32{ConnectorID},
		Encoders:   []uint32{EncoderID},
		MaxWidth:   4096,
		MaxHeight:  4096,
	}, nil
}

func (d *Device) Connector(id uint32) (*kms.Connector, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id != ConnectorID {
		return nil, fmt.Errorf("kms: get connector %d: %w", id, unix.ENOENT)
	}
	c := d.connector
	c.Modes = append([]kms.ModeInfo(nil), d.connector.Modes...)
	c.Encoders = append([]uint32(nil), d.connector.Encoders...)
	return &c, nil
}

func (d *Device) Encoder(id uint32) (*kms.Encoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id != EncoderID {
		return nil, fmt.Errorf("kms: get encoder %d: %w", id, unix.ENOENT)
	}
	e := d.encoder
	return &e, nil
}

func (d *Device) PlaneResources() ([]uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uint32, 0, len(d.planes))
	// Universal planes gate primary and cursor planes, as in the kernel.
	universal := d.clientCaps[kms.ClientCapUniversalPlanes] != 0
	for _, id := range []uint32{PrimaryPlaneID, OverlayPlaneID, CursorPlaneID} {
		typ, ok := d.planes[id]
		if !ok {
			continue
		}
		if typ != kms.PlaneTypeOverlay && !universal {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *Device) Plane(id uint32) (*kms.Plane, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.planes[id]; !ok {
		return nil, fmt.Errorf("kms: get plane %d: %w", id, unix.ENOENT)
	}
	return &kms.Plane{
		ID:            id,
		PossibleCRTCs: 1,
		Formats:       []uint32{kms.FormatXRGB8888, kms.FormatXBGR8888},
	}, nil
}

func (d *Device) ObjectProperties(objectID, objectType uint32) (*kms.Properties, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if objectType != kms.ObjectPlane {
		return &kms.Properties{}, nil
	}
	typ, ok := d.planes[objectID]
	if !ok {
		return nil, fmt.Errorf("kms: get properties of %d: %w", objectID, unix.ENOENT)
	}
	return &kms.Properties{Props: []uint32{PlaneTypePropID}, Values: []uint64{typ}}, nil
}

func (d *Device) Property(id uint32) (*kms.Property, error) {
	if id != PlaneTypePropID {
		return nil, fmt.Errorf("kms: get property %d: %w", id, unix.ENOENT)
	}
	return &kms.Property{
		ID:     id,
		Name:   "type",
		Values: []uint64{kms.PlaneTypeOverlay, kms.PlaneTypePrimary, kms.PlaneTypeCursor},
	}, nil
}

func (d *Device) CreateDumb(width, height, bpp uint32) (*kms.DumbBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.CreateDumb++
	if err := d.check(); err != nil {
		return nil, fmt.Errorf("kms: create dumb %dx%d: %w", width, height, err)
	}
	if d.faults.CreateDumb != nil {
		return nil, fmt.Errorf("kms: create dumb %dx%d: %w", width, height, d.faults.CreateDumb)
	}
	if width == 0 || height == 0 || bpp == 0 {
		return nil, fmt.Errorf("kms: create dumb %dx%d: %w", width, height, unix.EINVAL)
	}
	// Pitch is padded to 64 bytes like most display controllers.
	pitch := (width*((bpp+7)/8) + 63) &^ 63
	size := uint64(pitch) * uint64(height)
	b := &dumb{
		buf: kms.DumbBuffer{Handle: d.nextHandle, Pitch: pitch, Size: size},
		mem: make([]byte, size),
	}
	d.dumbs[b.buf.Handle] = b
	d.nextHandle++
	out := b.buf
	return &out, nil
}

func (d *Device) MapDumb(handle uint32) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.dumbs[handle]; !ok {
		return 0, fmt.Errorf("kms: map dumb %d: %w", handle, unix.ENOENT)
	}
	return uint64(handle) << mapShift, nil
}

func (d *Device) DestroyDumb(handle uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.DestroyDumb++
	if _, ok := d.dumbs[handle]; !ok {
		return fmt.Errorf("kms: destroy dumb %d: %w", handle, unix.ENOENT)
	}
	delete(d.dumbs, handle)
	return nil
}

func (d *Device) Mmap(offset uint64, size int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.dumbs[uint32(offset>>mapShift)]
	if !ok || offset&(1<<mapShift-1) != 0 {
		return nil, fmt.Errorf("kms: mmap %d bytes: %w", size, unix.EINVAL)
	}
	if size <= 0 || uint64(size) > b.buf.Size {
		return nil, fmt.Errorf("kms: mmap %d bytes: %w", size, unix.EINVAL)
	}
	b.mapped++
	return b.mem[:size:size], nil
}

func (d *Device) Munmap(mem []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b := d.owner(mem); b != nil && b.mapped > 0 {
		b.mapped--
		return nil
	}
	return fmt.Errorf("kms: munmap: %w", unix.EINVAL)
}

func (d *Device) Msync(mem []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Msync++
	if d.faults.Msync != nil {
		return fmt.Errorf("kms: msync: %w", d.faults.Msync)
	}
	if d.owner(mem) == nil {
		return fmt.Errorf("kms: msync: %w", unix.ENOMEM)
	}
	return nil
}

func (d *Device) owner(mem []byte) *dumb {
	if len(mem) == 0 {
		return nil
	}
	p := unsafe.Pointer(&mem[0])
	for _, b := range d.dumbs {
		if len(b.mem) > 0 && unsafe.Pointer(&b.mem[0]) == p {
			return b
		}
	}
	return nil
}

func (d *Device) AddFB(width, height uint32, depth, bpp uint8, pitch, handle uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.AddFB++
	if d.faults.AddFB != nil {
		return 0, fmt.Errorf("kms: add fb: %w", d.faults.AddFB)
	}
	if depth != 24 || bpp != 32 {
		return 0, fmt.Errorf("kms: add fb: %w", unix.EINVAL)
	}
	return d.register(width, height, pitch, handle, kms.FormatXRGB8888, true)
}

func (d *Device) AddFB2(fb *kms.FB2) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.AddFB2++
	if d.faults.AddFB2 != nil {
		return 0, fmt.Errorf("kms: add fb2 %s: %w", kms.FormatName(fb.PixelFormat), d.faults.AddFB2)
	}
	for _, f := range d.faults.UnsupportedFormats {
		if f == fb.PixelFormat {
			return 0, fmt.Errorf("kms: add fb2 %s: %w", kms.FormatName(fb.PixelFormat), unix.EINVAL)
		}
	}
	if fb.PixelFormat != kms.FormatXRGB8888 && fb.PixelFormat != kms.FormatXBGR8888 {
		return 0, fmt.Errorf("kms: add fb2 %s: %w", kms.FormatName(fb.PixelFormat), unix.EINVAL)
	}
	return d.register(fb.Width, fb.Height, fb.Pitches[0], fb.Handles[0], fb.PixelFormat, false)
}

func (d *Device) register(width, height, pitch, handle, format uint32, legacy bool) (uint32, error) {
	b, ok := d.dumbs[handle]
	if !ok {
		return 0, fmt.Errorf("kms: add fb: %w", unix.ENOENT)
	}
	if width == 0 || height == 0 || pitch < width*4 || uint64(pitch)*uint64(height) > b.buf.Size {
		return 0, fmt.Errorf("kms: add fb: %w", unix.EINVAL)
	}
	fb := &Framebuffer{
		ID:     d.nextFB,
		Handle: handle,
		Width:  width,
		Height: height,
		Pitch:  pitch,
		Format: format,
		Legacy: legacy,
	}
	d.fbs[fb.ID] = fb
	d.nextFB++
	return fb.ID, nil
}

func (d *Device) RmFB(id uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.RmFB++
	if _, ok := d.fbs[id]; !ok {
		return fmt.Errorf("kms: rm fb %d: %w", id, unix.ENOENT)
	}
	delete(d.fbs, id)
	// Removing the scanned-out framebuffer disables the CRTC.
	if d.boundFB == id {
		d.boundFB = 0
	}
	return nil
}

func (d *Device) SetCrtc(crtcID, fbID, x, y uint32, connectors []uint32, mode *kms.ModeInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.SetCrtc++
	if err := d.check(); err != nil {
		return fmt.Errorf("kms: set crtc %d: %w", crtcID, err)
	}
	if d.faults.SetCrtc != nil {
		return fmt.Errorf("kms: set crtc %d: %w", crtcID, d.faults.SetCrtc)
	}
	if crtcID != CRTCID || mode == nil || len(connectors) != 1 || connectors[0] != ConnectorID {
		return fmt.Errorf("kms: set crtc %d: %w", crtcID, unix.EINVAL)
	}
	fb, ok := d.fbs[fbID]
	if !ok {
		return fmt.Errorf("kms: set crtc %d: %w", crtcID, unix.ENOENT)
	}
	if fb.Width < x+uint32(mode.Hdisplay) || fb.Height < y+uint32(mode.Vdisplay) {
		return fmt.Errorf("kms: set crtc %d: %w", crtcID, unix.ENOSPC)
	}
	d.boundFB = fbID
	return nil
}

func (d *Device) PageFlip(crtcID, fbID, flags uint32, userData uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.PageFlip++
	if err := d.check(); err != nil {
		return fmt.Errorf("kms: page flip: %w", err)
	}
	if d.faults.BusyFlips > 0 {
		d.faults.BusyFlips--
		d.calls.BusyFlips++
		return fmt.Errorf("kms: page flip: %w", unix.EBUSY)
	}
	if d.faults.PageFlip != nil {
		return fmt.Errorf("kms: page flip: %w", d.faults.PageFlip)
	}
	if crtcID != CRTCID {
		return fmt.Errorf("kms: page flip: %w", unix.EINVAL)
	}
	// The kernel refuses to flip a CRTC with no framebuffer bound.
	if d.boundFB == 0 {
		return fmt.Errorf("kms: page flip: %w", unix.EBUSY)
	}
	if _, ok := d.fbs[fbID]; !ok {
		return fmt.Errorf("kms: page flip: %w", unix.ENOENT)
	}
	d.boundFB = fbID
	return nil
}

func (d *Device) WaitVBlank(sequence uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.WaitVBlank++
	if d.faults.WaitVBlank != nil {
		return fmt.Errorf("kms: wait vblank: %w", d.faults.WaitVBlank)
	}
	return nil
}

func (d *Device) DirtyFB(fbID uint32, clips []kms.ClipRect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.DirtyFB++
	if d.faults.DirtyFB != nil {
		return fmt.Errorf("kms: dirty fb %d: %w", fbID, d.faults.DirtyFB)
	}
	if _, ok := d.fbs[fbID]; !ok {
		return fmt.Errorf("kms: dirty fb %d: %w", fbID, unix.ENOENT)
	}
	return nil
}

// PrimeHandleToFD exports a memfd sized like the dumb buffer. The caller
// owns the descriptor and closes it like a real DMA-BUF.
func (d *Device) PrimeHandleToFD(handle, flags uint32) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Prime++
	if d.faults.Prime != nil {
		return -1, fmt.Errorf("kms: prime handle %d to fd: %w", handle, d.faults.Prime)
	}
	b, ok := d.dumbs[handle]
	if !ok {
		return -1, fmt.Errorf("kms: prime handle %d to fd: %w", handle, unix.ENOENT)
	}
	fd, err := unix.MemfdCreate(fmt.Sprintf("kmstest-dumb-%d", handle), unix.MFD_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("kms: prime handle %d to fd: %w", handle, err)
	}
	if err := unix.Ftruncate(fd, int64(b.buf.Size)); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("kms: prime handle %d to fd: %w", handle, err)
	}
	return fd, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Close++
	if d.closed {
		return fmt.Errorf("kms: close: %w", unix.EBADF)
	}
	d.closed = true
	d.master = false
	return nil
}
