// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kms

import (
	"bytes"
	"fmt"
)

// Connection states reported by a connector.
const (
	Connected         = 1
	Disconnected      = 2
	UnknownConnection = 3
)

// Mode type flags.
const (
	ModeTypeBuiltin   = 1 << 0
	ModeTypePreferred = 1 << 3
	ModeTypeDefault   = 1 << 4
	ModeTypeUserdef   = 1 << 5
	ModeTypeDriver    = 1 << 6
)

// Capabilities (DRM_CAP_*) and client capabilities (DRM_CLIENT_CAP_*).
const (
	CapDumbBuffer = 0x1

	ClientCapStereo3D        = 1
	ClientCapUniversalPlanes = 2
	ClientCapAtomic          = 3
)

// Object types for property lookup.
const (
	ObjectCRTC      = 0xcccccccc
	ObjectConnector = 0xc0c0c0c0
	ObjectEncoder   = 0xe0e0e0e0
	ObjectPlane     = 0xeeeeeeee
)

// Plane type values of the "type" plane property.
const (
	PlaneTypeOverlay = 0
	PlaneTypePrimary = 1
	PlaneTypeCursor  = 2
)

// Page flip flags.
const (
	PageFlipEvent = 0x01
	PageFlipAsync = 0x02
)

// AddFB2 flags.
const (
	FBModifiers = 1 << 1
)

// Vertical blank request types.
const (
	VBlankAbsolute = 0x0
	VBlankRelative = 0x1
)

// PRIME export flags.
const (
	PrimeCloexec = 0o2000000
	PrimeRDWR    = 0o2
)

// ModeInfo is struct drm_mode_modeinfo.
type ModeInfo struct {
	Clock                                         uint32
	Hdisplay, HsyncStart, HsyncEnd, Htotal, Hskew uint16
	Vdisplay, VsyncStart, VsyncEnd, Vtotal, Vscan uint16

	Vrefresh uint32

	Flags uint32
	Type  uint32
	Name  [32]uint8
}

// ModeName returns the NUL-terminated mode name.
func (m *ModeInfo) ModeName() string {
	return string(bytes.TrimRight(m.Name[:], "\x00"))
}

// Preferred reports whether the driver marked this mode as preferred.
func (m *ModeInfo) Preferred() bool {
	return m.Type&ModeTypePreferred != 0
}

func (m ModeInfo) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Hdisplay, m.Vdisplay, m.Vrefresh)
}

// Resources lists the mode-setting objects of a card.
type Resources struct {
	FBs        []uint32
	CRTCs      []uint32
	Connectors []uint32
	Encoders   []uint32

	MinWidth, MaxWidth   uint32
	MinHeight, MaxHeight uint32
}

// CRTCIndex returns the position of crtcID in CRTCs, or -1.
// possible_crtcs bitmasks are indexed by this position.
func (r *Resources) CRTCIndex(crtcID uint32) int {
	for i, id := range r.CRTCs {
		if id == crtcID {
			return i
		}
	}
	return -1
}

// Connector is a display output.
type Connector struct {
	ID         uint32
	EncoderID  uint32
	Type       uint32
	TypeID     uint32
	Connection uint32

	MMWidth, MMHeight uint32
	Subpixel          uint32

	Modes    []ModeInfo
	Encoders []uint32

	Props      []uint32
	PropValues []uint64
}

// Encoder links connectors to CRTCs.
type Encoder struct {
	ID             uint32
	Type           uint32
	CRTCID         uint32
	PossibleCRTCs  uint32
	PossibleClones uint32
}

// Plane is a hardware compositing layer.
type Plane struct {
	ID            uint32
	CRTCID        uint32
	FBID          uint32
	PossibleCRTCs uint32
	GammaSize     uint32
	Formats       []uint32
}

// Properties are the property ids and values attached to an object.
type Properties struct {
	Props  []uint32
	Values []uint64
}

// Property describes a single property.
type Property struct {
	ID     uint32
	Flags  uint32
	Name   string
	Values []uint64
}

// DumbBuffer is the result of CreateDumb.
type DumbBuffer struct {
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// FB2 is the argument of AddFB2.
type FB2 struct {
	Width, Height uint32
	PixelFormat   uint32
	Flags         uint32
	Handles       [4]uint32
	Pitches       [4]uint32
	Offsets       [4]uint32
	Modifiers     [4]uint64
}

// ClipRect is struct drm_clip_rect.
type ClipRect struct {
	X1, Y1, X2, Y2 uint16
}
