// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"fmt"

	"github.com/gogpu/scanout/kms"
)

// Mode is the display timing and the objects that drive it. It is
// resolved once at Open and never changes afterwards.
type Mode struct {
	Width, Height uint32
	Refresh       uint32

	ConnectorID uint32
	CRTCID      uint32

	// PlaneID is zero when no plane was resolved.
	PlaneID   uint32
	PlaneType uint64

	Info kms.ModeInfo
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Width, m.Height, m.Refresh)
}

// pickConnector returns the first connected connector with a usable mode.
func pickConnector(dev kms.Device, res *kms.Resources) (*kms.Connector, kms.ModeInfo, error) {
	for _, id := range res.Connectors {
		c, err := dev.Connector(id)
		if err != nil {
			slogger().Debug("display: connector query failed", "connector", id, "err", err)
			continue
		}
		if c.Connection != kms.Connected {
			continue
		}
		if mode, ok := pickMode(c); ok {
			return c, mode, nil
		}
	}
	return nil, kms.ModeInfo{}, ErrNoConnector
}

// pickMode returns the preferred mode, or the first one. Zero-sized modes
// are never picked.
func pickMode(c *kms.Connector) (kms.ModeInfo, bool) {
	first := -1
	for i := range c.Modes {
		m := &c.Modes[i]
		if m.Hdisplay == 0 || m.Vdisplay == 0 {
			continue
		}
		if m.Preferred() {
			return *m, true
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return kms.ModeInfo{}, false
	}
	return c.Modes[first], true
}

// pickCRTC prefers the CRTC behind the connector's active encoder, then the
// first CRTC any of its encoders can drive.
func pickCRTC(dev kms.Device, res *kms.Resources, c *kms.Connector) (uint32, error) {
	if c.EncoderID != 0 {
		if enc, err := dev.Encoder(c.EncoderID); err == nil && enc.CRTCID != 0 {
			return enc.CRTCID, nil
		}
	}
	for _, id := range c.Encoders {
		enc, err := dev.Encoder(id)
		if err != nil {
			continue
		}
		for i, crtc := range res.CRTCs {
			if enc.PossibleCRTCs&(1<<uint(i)) != 0 {
				return crtc, nil
			}
		}
	}
	return 0, ErrNoPipeline
}

// findPlane returns the first plane of the given type usable on crtcID.
func findPlane(dev kms.Device, res *kms.Resources, crtcID uint32, planeType uint64) uint32 {
	index := res.CRTCIndex(crtcID)
	if index < 0 {
		return 0
	}
	ids, err := dev.PlaneResources()
	if err != nil {
		return 0
	}
	for _, id := range ids {
		p, err := dev.Plane(id)
		if err != nil || p.PossibleCRTCs&(1<<uint(index)) == 0 {
			continue
		}
		if typ, ok := planeTypeOf(dev, id); ok && typ == planeType {
			return id
		}
	}
	return 0
}

func planeTypeOf(dev kms.Device, planeID uint32) (uint64, bool) {
	props, err := dev.ObjectProperties(planeID, kms.ObjectPlane)
	if err != nil {
		return 0, false
	}
	for i, id := range props.Props {
		prop, err := dev.Property(id)
		if err != nil {
			continue
		}
		if prop.Name == "type" && i < len(props.Values) {
			return props.Values[i], true
		}
	}
	return 0, false
}

func resolvePlane(dev kms.Device, res *kms.Resources, crtcID uint32, pref PlanePreference) (uint32, uint64) {
	order := []uint64{kms.PlaneTypePrimary, kms.PlaneTypeOverlay}
	switch pref {
	case NoPlane:
		return 0, 0
	case PreferOverlay:
		order[0], order[1] = order[1], order[0]
	}
	for _, typ := range order {
		if id := findPlane(dev, res, crtcID, typ); id != 0 {
			return id, typ
		}
	}
	return 0, 0
}

// discover resolves connector, mode, CRTC and plane.
func discover(dev kms.Device, pref PlanePreference) (Mode, *kms.Connector, error) {
	res, err := dev.Resources()
	if err != nil {
		return Mode{}, nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
	}
	conn, info, err := pickConnector(dev, res)
	if err != nil {
		return Mode{}, nil, err
	}
	crtc, err := pickCRTC(dev, res, conn)
	if err != nil {
		return Mode{}, nil, err
	}
	planeID, planeType := resolvePlane(dev, res, crtc, pref)

	return Mode{
		Width:       uint32(info.Hdisplay),
		Height:      uint32(info.Vdisplay),
		Refresh:     info.Vrefresh,
		ConnectorID: conn.ID,
		CRTCID:      crtc,
		PlaneID:     planeID,
		PlaneType:   planeType,
		Info:        info,
	}, conn, nil
}
