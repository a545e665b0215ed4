// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/gogpu/scanout/kms"
)

// PoolSize is the number of scanout buffers in the pool.
const PoolSize = 2

// Stats counts display operations since Open.
type Stats struct {
	Allocations  int // pool (re)allocations
	Commits      int // full mode commits carrying a pool buffer
	Flips        int
	FlipRetries  int // busy flips retried after a vblank wait
	FlipFailures int
}

// Manager owns a DRM device, its display mode and a two-buffer scanout
// pool. A Manager is not safe for concurrent use; it is driven from the
// presentation call path only.
type Manager struct {
	dev  kms.Device
	opts options
	mode Mode

	modeBuf *Buffer
	pool    []*Buffer
	back    int
	front   int // index bound to the CRTC, -1 when none

	committed bool
	closed    bool
	caps      Capabilities
	stats     Stats

	flipErrLogged   bool
	vblankErrLogged bool
}

// Open opens the display device, resolves connector, mode, CRTC and plane,
// and commits the mode with a zero-filled buffer.
func Open(opts ...Option) (*Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dev := o.device
	if dev == nil {
		card, err := kms.OpenCard(o.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
		}
		dev = card
	}

	m := &Manager{dev: dev, opts: o, front: -1}
	if err := m.init(); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) init() error {
	dumb, err := m.dev.Capability(kms.CapDumbBuffer)
	if err != nil || dumb == 0 {
		return fmt.Errorf("%w: dumb buffers unsupported", ErrNoDevice)
	}

	if err := m.dev.SetClientCap(kms.ClientCapUniversalPlanes, 1); err != nil {
		slogger().Debug("display: universal planes unavailable", "err", err)
	}

	err = m.dev.SetMaster()
	m.caps.Master = probed(err == nil)
	if err != nil {
		slogger().Warn("display: display ownership not acquired", "err", err)
	}

	mode, _, err := discover(m.dev, m.opts.plane)
	if err != nil {
		return err
	}
	m.mode = mode
	if mode.PlaneID == 0 && m.opts.plane != NoPlane {
		slogger().Warn("display: no usable plane, scanout through CRTC only", "crtc", mode.CRTCID)
	}

	m.modeBuf, err = createBuffer(m.dev, mode.Width, mode.Height, OrderBGRA)
	if err != nil {
		return fmt.Errorf("display: mode-set buffer %dx%d: %w", mode.Width, mode.Height, err)
	}
	clear(m.modeBuf.mem)

	// The mode may already be active, so a failing commit is not fatal.
	if err := m.commit(m.modeBuf); err != nil {
		slogger().Warn("display: initial mode commit failed", "err", err)
	} else {
		slogger().Info("display: mode set", "mode", mode.String())
	}

	if !m.opts.forceFlush {
		m.caps.Flush = Unsupported
	}

	slogger().Info("display: open",
		"connector", mode.ConnectorID,
		"crtc", mode.CRTCID,
		"plane", mode.PlaneID,
		"plane_type", planeTypeName(mode.PlaneType, mode.PlaneID),
		"width", mode.Width,
		"height", mode.Height,
		"refresh", mode.Refresh,
	)
	return nil
}

func planeTypeName(typ uint64, id uint32) string {
	if id == 0 {
		return "none"
	}
	switch typ {
	case kms.PlaneTypePrimary:
		return "primary"
	case kms.PlaneTypeOverlay:
		return "overlay"
	case kms.PlaneTypeCursor:
		return "cursor"
	default:
		return "unknown"
	}
}

func (m *Manager) commit(b *Buffer) error {
	return m.dev.SetCrtc(m.mode.CRTCID, b.FBID, 0, 0, []uint32{m.mode.ConnectorID}, &m.mode.Info)
}

// Mode returns the display mode resolved at Open.
func (m *Manager) Mode() Mode { return m.mode }

// Capabilities returns the current probe results.
func (m *Manager) Capabilities() Capabilities { return m.caps }

// Stats returns the operation counters.
func (m *Manager) Stats() Stats { return m.stats }

// Device returns the underlying kernel device.
func (m *Manager) Device() kms.Device { return m.dev }

// AllocateBuffers replaces the pool with two new buffers of the given size.
// The previous pool is always destroyed first, so on error the pool is
// empty.
func (m *Manager) AllocateBuffers(width, height uint32, order ChannelOrder) error {
	if m.closed {
		return ErrNotOpen
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	m.unbindPool()
	if err := m.releasePool(); err != nil {
		slogger().Warn("display: releasing buffer pool", "err", err)
	}

	pool := make([]*Buffer, 0, PoolSize)
	for i := 0; i < PoolSize; i++ {
		b, err := createBuffer(m.dev, width, height, order)
		if err != nil {
			for _, prev := range pool {
				_ = destroyBuffer(m.dev, prev)
			}
			return fmt.Errorf("display: buffer %d (%dx%d): %w", i, width, height, err)
		}
		pool = append(pool, b)
	}
	m.pool = pool
	m.back = 0
	m.front = -1
	m.stats.Allocations++

	b := pool[0]
	slogger().Info("display: allocated buffers",
		"width", width,
		"height", height,
		"stride", b.Stride,
		"fb_api", b.API(),
		"format", kms.FormatName(b.Format),
		"swizzle", b.Swizzle,
	)
	return nil
}

// unbindPool moves scanout off the pool buffer the CRTC shows, so removing
// that framebuffer never leaves the CRTC without one. The mode-set buffer
// takes its place; if that commit fails the next Present commits again.
func (m *Manager) unbindPool() {
	if m.front < 0 || m.modeBuf == nil {
		return
	}
	if err := m.commit(m.modeBuf); err != nil {
		slogger().Warn("display: rebinding mode-set buffer failed", "err", err)
		m.committed = false
	}
	m.front = -1
}

func (m *Manager) releasePool() error {
	var errs []error
	for _, b := range m.pool {
		errs = append(errs, destroyBuffer(m.dev, b))
	}
	m.pool = nil
	m.front = -1
	return errors.Join(errs...)
}

// Back returns the index of the buffer to write next. It is never the
// buffer bound to the CRTC.
func (m *Manager) Back() int { return m.back }

// Buffer returns pool buffer i, or nil.
func (m *Manager) Buffer(i int) *Buffer {
	if i < 0 || i >= len(m.pool) {
		return nil
	}
	return m.pool[i]
}

// Export returns a DMA-BUF descriptor for pool buffer i. The caller owns
// the descriptor.
func (m *Manager) Export(i int) (int, error) {
	b, err := m.buffer(i)
	if err != nil {
		return -1, err
	}
	return m.dev.PrimeHandleToFD(b.Handle, kms.PrimeCloexec|kms.PrimeRDWR)
}

func (m *Manager) buffer(i int) (*Buffer, error) {
	if m.closed {
		return nil, ErrNotOpen
	}
	if len(m.pool) == 0 {
		return nil, ErrNoBuffers
	}
	if i < 0 || i >= len(m.pool) {
		return nil, fmt.Errorf("display: buffer index %d out of range", i)
	}
	return m.pool[i], nil
}

// Flush makes CPU writes to buffer i visible to the display controller.
// It does nothing unless forced flushing was enabled; the first failing
// msync disables it for the session.
func (m *Manager) Flush(i int) error {
	b, err := m.buffer(i)
	if err != nil {
		return err
	}
	if m.caps.Flush == Unsupported {
		return nil
	}
	err = m.dev.Msync(b.mem)
	switch {
	case m.caps.Flush == Unprobed && err != nil:
		m.caps.Flush = Unsupported
		slogger().Warn("display: msync unsupported", "err", err)
	case m.caps.Flush == Unprobed:
		m.caps.Flush = Supported
		slogger().Info("display: msync flush enabled")
	case err != nil:
		slogger().Debug("display: msync failed", "err", err)
	}
	return nil
}

// Present shows buffer i. The first call performs a full mode commit;
// later calls page flip. A busy flip is retried once after one vertical
// blank. On error the frame is dropped and the bound buffer is unchanged.
func (m *Manager) Present(i int) error {
	b, err := m.buffer(i)
	if err != nil {
		return err
	}
	if i == m.front {
		return ErrBufferBusy
	}

	m.notifyDirty(b)

	if !m.committed {
		if err := m.commit(b); err != nil {
			return fmt.Errorf("display: mode commit: %w", err)
		}
		m.committed = true
		m.stats.Commits++
	} else if err := m.flip(b); err != nil {
		return err
	}

	m.front = i
	m.back = i ^ 1
	return nil
}

func (m *Manager) flip(b *Buffer) error {
	err := m.dev.PageFlip(m.mode.CRTCID, b.FBID, 0, 0)
	if errors.Is(err, unix.EBUSY) {
		m.stats.FlipRetries++
		m.waitVBlank()
		err = m.dev.PageFlip(m.mode.CRTCID, b.FBID, 0, 0)
	}
	if err != nil {
		m.stats.FlipFailures++
		if !m.flipErrLogged {
			slogger().Warn("display: page flip failed", "fb", b.FBID, "err", err)
			m.flipErrLogged = true
		}
		return fmt.Errorf("display: flip fb %d: %w", b.FBID, err)
	}
	m.stats.Flips++
	return nil
}

func (m *Manager) waitVBlank() {
	if !m.opts.vblankSync {
		return
	}
	if err := m.dev.WaitVBlank(1); err != nil && !m.vblankErrLogged {
		slogger().Warn("display: vblank wait failed", "err", err)
		m.vblankErrLogged = true
	}
}

func (m *Manager) notifyDirty(b *Buffer) {
	switch m.caps.DirtyFB {
	case Unprobed:
		err := m.dev.DirtyFB(b.FBID, nil)
		m.caps.DirtyFB = probed(err == nil)
		if err != nil {
			slogger().Info("display: dirty fb unsupported", "err", err)
		} else {
			slogger().Info("display: dirty fb supported")
		}
	case Supported:
		if err := m.dev.DirtyFB(b.FBID, nil); err != nil {
			slogger().Debug("display: dirty fb failed", "fb", b.FBID, "err", err)
		}
	}
}

// Close releases the pool and the mode-set buffer, drops display
// ownership and closes the device. Calling Close again is a no-op.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	errs := []error{m.releasePool(), destroyBuffer(m.dev, m.modeBuf)}
	m.modeBuf = nil
	if m.caps.Master == Supported {
		errs = append(errs, m.dev.DropMaster())
	}
	errs = append(errs, m.dev.Close())
	return errors.Join(errs...)
}
