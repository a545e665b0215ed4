// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"fmt"

	"github.com/gogpu/scanout/kms"
)

// ConnectorReport describes one connector.
type ConnectorReport struct {
	ID         uint32
	Type       uint32
	Connection uint32
	Modes      []kms.ModeInfo
}

// PlaneReport describes one plane.
type PlaneReport struct {
	ID            uint32
	Type          string
	PossibleCRTCs uint32
	Formats       []string
}

// Report is a read-only view of a card for diagnostics.
type Report struct {
	Connectors []ConnectorReport
	Planes     []PlaneReport

	// Mode is what Open would select. Err is set instead when discovery
	// would fail.
	Mode Mode
	Err  error
}

// Describe inspects dev without committing a mode or allocating buffers.
// Only failures to list resources are returned; discovery failures are
// reported in Report.Err.
func Describe(dev kms.Device, pref PlanePreference) (*Report, error) {
	if err := dev.SetClientCap(kms.ClientCapUniversalPlanes, 1); err != nil {
		slogger().Debug("display: universal planes unavailable", "err", err)
	}
	res, err := dev.Resources()
	if err != nil {
		return nil, fmt.Errorf("display: describe: %w", err)
	}

	r := &Report{}
	for _, id := range res.Connectors {
		c, err := dev.Connector(id)
		if err != nil {
			continue
		}
		r.Connectors = append(r.Connectors, ConnectorReport{
			ID:         c.ID,
			Type:       c.Type,
			Connection: c.Connection,
			Modes:      c.Modes,
		})
	}

	if ids, err := dev.PlaneResources(); err == nil {
		for _, id := range ids {
			p, err := dev.Plane(id)
			if err != nil {
				continue
			}
			typ, ok := planeTypeOf(dev, id)
			name := "unknown"
			if ok {
				name = planeTypeName(typ, id)
			}
			formats := make([]string, len(p.Formats))
			for i, f := range p.Formats {
				formats[i] = kms.FormatName(f)
			}
			r.Planes = append(r.Planes, PlaneReport{
				ID:            id,
				Type:          name,
				PossibleCRTCs: p.PossibleCRTCs,
				Formats:       formats,
			})
		}
	}

	r.Mode, _, r.Err = discover(dev, pref)
	return r, nil
}
