// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/gogpu/scanout/kms"
	"github.com/gogpu/scanout/kms/kmstest"
)

func openFake(t *testing.T, dev *kmstest.Device, opts ...Option) *Manager {
	t.Helper()
	m, err := Open(append([]Option{WithDevice(dev)}, opts...)...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestOpen(t *testing.T) {
	dev := kmstest.New()
	m := openFake(t, dev)

	mode := m.Mode()
	if mode.Width != 1280 || mode.Height != 720 || mode.Refresh != 60 {
		t.Errorf("mode = %v, want 1280x720@60", mode)
	}
	if mode.ConnectorID != kmstest.ConnectorID {
		t.Errorf("connector = %d, want %d", mode.ConnectorID, kmstest.ConnectorID)
	}
	if mode.CRTCID != kmstest.CRTCID {
		t.Errorf("crtc = %d, want %d", mode.CRTCID, kmstest.CRTCID)
	}
	if mode.PlaneID != kmstest.PrimaryPlaneID || mode.PlaneType != kms.PlaneTypePrimary {
		t.Errorf("plane = %d type %d, want primary %d", mode.PlaneID, mode.PlaneType, kmstest.PrimaryPlaneID)
	}

	if got := dev.ClientCap(kms.ClientCapUniversalPlanes); got != 1 {
		t.Errorf("universal planes cap = %d, want 1", got)
	}
	if !dev.IsMaster() {
		t.Error("display ownership not acquired")
	}
	if got := m.Capabilities().Master; got != Supported {
		t.Errorf("Master = %v, want supported", got)
	}

	calls := dev.Calls()
	if calls.SetCrtc != 1 {
		t.Errorf("SetCrtc calls = %d, want 1", calls.SetCrtc)
	}
	fb, pixels, ok := dev.Scanout()
	if !ok {
		t.Fatal("nothing bound after open")
	}
	if fb.Width != 1280 || fb.Height != 720 {
		t.Errorf("mode-set fb = %dx%d", fb.Width, fb.Height)
	}
	for i, v := range pixels {
		if v != 0 {
			t.Fatalf("mode-set buffer byte %d = %d, want zero", i, v)
		}
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []kmstest.Option
		want error
	}{
		{"disconnected", []kmstest.Option{kmstest.WithDisconnected()}, ErrNoConnector},
		{"no modes", []kmstest.Option{kmstest.WithModes()}, ErrNoConnector},
		{"zero-sized mode", []kmstest.Option{kmstest.WithModes(kmstest.Mode(0, 0, 60, true))}, ErrNoConnector},
		{"no crtc", []kmstest.Option{kmstest.WithoutCRTC()}, ErrNoPipeline},
		{"no dumb buffers", []kmstest.Option{kmstest.WithoutDumbBuffers()}, ErrNoDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := kmstest.New(tt.opts...)
			m, err := Open(WithDevice(dev))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Open error = %v, want %v", err, tt.want)
			}
			if m != nil {
				t.Error("Open returned a manager on error")
			}
			if !dev.Closed() {
				t.Error("device not closed after failed open")
			}
			if n := dev.LiveDumbs(); n != 0 {
				t.Errorf("%d dumb buffers leaked", n)
			}
		})
	}
}

func TestOpenMissingNode(t *testing.T) {
	_, err := Open(WithDevicePath("/nonexistent/dri/card9"))
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("Open error = %v, want ErrNoDevice", err)
	}
}

func TestOpenEveryMode(t *testing.T) {
	modes := []kms.ModeInfo{
		kmstest.Mode(640, 480, 60, false),
		kmstest.Mode(1280, 720, 60, false),
		kmstest.Mode(1920, 1080, 50, false),
		kmstest.Mode(1024, 768, 75, false),
	}
	for _, want := range modes {
		t.Run(want.String(), func(t *testing.T) {
			want.Type |= kms.ModeTypePreferred
			others := []kms.ModeInfo{kmstest.Mode(320, 240, 60, false), want}
			m := openFake(t, kmstest.New(kmstest.WithModes(others...)))
			got := m.Mode()
			if got.Width != uint32(want.Hdisplay) || got.Height != uint32(want.Vdisplay) {
				t.Errorf("mode = %v, want %v", got, want)
			}
			if got.Width == 0 || got.Height == 0 {
				t.Error("zero-sized mode")
			}
		})
	}
}

func TestOpenFirstModeWithoutPreferred(t *testing.T) {
	m := openFake(t, kmstest.New(kmstest.WithModes(
		kmstest.Mode(800, 600, 60, false),
		kmstest.Mode(640, 480, 60, false),
	)))
	if got := m.Mode(); got.Width != 800 || got.Height != 600 {
		t.Errorf("mode = %v, want first advertised 800x600", got)
	}
}

func TestOpenDetachedEncoder(t *testing.T) {
	m := openFake(t, kmstest.New(kmstest.WithDetachedEncoder()))
	if got := m.Mode().CRTCID; got != kmstest.CRTCID {
		t.Errorf("crtc = %d, want %d from possible_crtcs", got, kmstest.CRTCID)
	}
}

func TestPlanePreference(t *testing.T) {
	tests := []struct {
		name     string
		pref     PlanePreference
		devOpts  []kmstest.Option
		wantID   uint32
		wantType uint64
	}{
		{"primary", PreferPrimary, nil, kmstest.PrimaryPlaneID, kms.PlaneTypePrimary},
		{"overlay", PreferOverlay, nil, kmstest.OverlayPlaneID, kms.PlaneTypeOverlay},
		{"disabled", NoPlane, nil, 0, 0},
		{"no planes", PreferPrimary, []kmstest.Option{kmstest.WithoutPlanes()}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := openFake(t, kmstest.New(tt.devOpts...), WithPlanePreference(tt.pref))
			mode := m.Mode()
			if mode.PlaneID != tt.wantID || mode.PlaneType != tt.wantType {
				t.Errorf("plane = %d type %d, want %d type %d", mode.PlaneID, mode.PlaneType, tt.wantID, tt.wantType)
			}
		})
	}
}

func TestOpenWithoutMaster(t *testing.T) {
	dev := kmstest.New()
	dev.Inject(func(f *kmstest.Faults) { f.SetMaster = unix.EACCES })
	m := openFake(t, dev)

	if got := m.Capabilities().Master; got != Unsupported {
		t.Errorf("Master = %v, want unsupported", got)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := dev.Calls().DropMaster; n != 0 {
		t.Errorf("DropMaster calls = %d, want 0 without ownership", n)
	}
}

func TestOpenFailingInitialCommit(t *testing.T) {
	dev := kmstest.New()
	dev.Inject(func(f *kmstest.Faults) { f.SetCrtc = unix.EINVAL })
	m := openFake(t, dev)
	if m.Mode().Width != 1280 {
		t.Errorf("mode = %v", m.Mode())
	}
}

func TestCloseIdempotent(t *testing.T) {
	dev := kmstest.New()
	m, err := Open(WithDevice(dev))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.AllocateBuffers(1280, 720, OrderRGBA); err != nil {
		t.Fatalf("AllocateBuffers: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	calls := dev.Calls()
	if calls.Close != 1 {
		t.Errorf("device closed %d times, want 1", calls.Close)
	}
	if calls.DropMaster != 1 {
		t.Errorf("DropMaster calls = %d, want 1", calls.DropMaster)
	}
	if dev.LiveDumbs() != 0 || dev.LiveFBs() != 0 || dev.LiveMappings() != 0 {
		t.Errorf("leaked: dumbs=%d fbs=%d mappings=%d", dev.LiveDumbs(), dev.LiveFBs(), dev.LiveMappings())
	}
	if err := m.Present(0); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Present after Close = %v, want ErrNotOpen", err)
	}
	if err := m.AllocateBuffers(10, 10, OrderRGBA); !errors.Is(err, ErrNotOpen) {
		t.Errorf("AllocateBuffers after Close = %v, want ErrNotOpen", err)
	}
}
