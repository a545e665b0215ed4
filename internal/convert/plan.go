// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package convert

import (
	"errors"
	"fmt"
	"sync"
)

// Errors returned by NewPlan and Plan.Scale.
var (
	ErrInvalidSize = errors.New("convert: invalid size")
	ErrShortSource = errors.New("convert: source buffer too small")
	ErrShortTarget = errors.New("convert: target row too small")
)

// Horizontal is the horizontal routine chosen for a size pair.
type Horizontal int

const (
	HExact   Horizontal = iota // 1:1, convert only
	H2x                        // exact 2x replication
	H4x                        // exact 4x replication
	HGeneric                   // any other ratio, per-column lookup
)

func (h Horizontal) String() string {
	switch h {
	case HExact:
		return "1:1"
	case H2x:
		return "2x"
	case H4x:
		return "4x"
	default:
		return "generic"
	}
}

// Vertical describes the vertical ratio. It does not change the routine;
// every direction uses the same row mapping.
type Vertical int

const (
	VExact Vertical = iota
	VUp
	VDown
)

func (v Vertical) String() string {
	switch v {
	case VExact:
		return "1:1"
	case VUp:
		return "up"
	default:
		return "down"
	}
}

// Target is a destination with bounds-checked rows. display.Buffer
// implements it.
type Target interface {
	// Row returns at least width*4 writable bytes of row y.
	Row(y int) []byte
}

// Plan is the scaling decision for one (source, destination) size pair.
type Plan struct {
	SrcW, SrcH int
	DstW, DstH int

	H       Horizontal
	V       Vertical
	Swizzle bool

	rows []int32 // source row per destination row
	cols []int32 // source column per destination column, HGeneric only
}

// Index maps destination coordinate d to a source coordinate with
// d*srcLen/dstLen, clamped to srcLen-1.
func Index(d, srcLen, dstLen int) int {
	s := int(uint64(d) * uint64(srcLen) / uint64(dstLen))
	if s >= srcLen {
		s = srcLen - 1
	}
	return s
}

// NewPlan builds the plan for scaling srcW x srcH into dstW x dstH.
// swizzle selects XRGB8888 output; otherwise the output is XBGR8888.
func NewPlan(srcW, srcH, dstW, dstH int, swizzle bool) (*Plan, error) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d -> %dx%d", ErrInvalidSize, srcW, srcH, dstW, dstH)
	}
	p := &Plan{
		SrcW:    srcW,
		SrcH:    srcH,
		DstW:    dstW,
		DstH:    dstH,
		Swizzle: swizzle,
	}

	switch dstW {
	case srcW:
		p.H = HExact
	case srcW * 2:
		p.H = H2x
	case srcW * 4:
		p.H = H4x
	default:
		p.H = HGeneric
		p.cols = make([]int32, dstW)
		for x := range p.cols {
			p.cols[x] = int32(Index(x, srcW, dstW)) // #nosec G115 -- bounded by srcW
		}
	}

	switch {
	case srcH == dstH:
		p.V = VExact
	case srcH > dstH:
		p.V = VDown
	default:
		p.V = VUp
	}

	p.rows = make([]int32, dstH)
	for y := range p.rows {
		p.rows[y] = int32(Index(y, srcH, dstH)) // #nosec G115 -- bounded by srcH
	}
	return p, nil
}

// Matches reports whether p was built for the given sizes and swizzle.
func (p *Plan) Matches(srcW, srcH, dstW, dstH int, swizzle bool) bool {
	return p != nil && p.SrcW == srcW && p.SrcH == srcH && p.DstW == dstW && p.DstH == dstH && p.Swizzle == swizzle
}

// String describes the plan as "WxH -> WxH H=<h> V=<v>".
func (p *Plan) String() string {
	return fmt.Sprintf("%dx%d -> %dx%d H=%s V=%s", p.SrcW, p.SrcH, p.DstW, p.DstH, p.H, p.V)
}

// SourceRow returns the source row used for destination row y.
func (p *Plan) SourceRow(y int) int { return int(p.rows[y]) }

// SourceCol returns the source column used for destination column x.
func (p *Plan) SourceCol(x int) int {
	switch p.H {
	case HExact:
		return x
	case H2x:
		return x / 2
	case H4x:
		return x / 4
	default:
		return int(p.cols[x])
	}
}

// Bander runs fn over disjoint row ranges that together cover [0, n) and
// returns when every call has finished. *parallel.Pool implements it.
type Bander interface {
	Bands(n, minRows int, fn func(lo, hi int))
}

// minBandRows keeps bands large enough to amortize the hand-off.
const minBandRows = 32

// Scale writes the scaled source into dst. src holds RGBA8888 rows, stride
// bytes apart. Consecutive destination rows mapped to the same source row
// are copied from the row above instead of converted again.
func (p *Plan) Scale(dst Target, src []byte, stride int) error {
	return p.ScaleBands(nil, dst, src, stride)
}

// ScaleBands is Scale with the destination rows split across b. A nil b
// converts on the caller's goroutine. The output is identical either way.
func (p *Plan) ScaleBands(b Bander, dst Target, src []byte, stride int) error {
	rowBytes := p.SrcW * 4
	if stride < rowBytes {
		return fmt.Errorf("%w: stride %d < %d", ErrShortSource, stride, rowBytes)
	}
	if need := (p.SrcH-1)*stride + rowBytes; len(src) < need {
		return fmt.Errorf("%w: %d bytes, need %d", ErrShortSource, len(src), need)
	}
	if b == nil {
		return p.scaleRows(dst, src, stride, 0, p.DstH)
	}

	var (
		mu    sync.Mutex
		first error
	)
	b.Bands(p.DstH, minBandRows, func(lo, hi int) {
		if err := p.scaleRows(dst, src, stride, lo, hi); err != nil {
			mu.Lock()
			if first == nil {
				first = err
			}
			mu.Unlock()
		}
	})
	return first
}

// scaleRows converts destination rows [lo, hi). The first row of a range is
// always converted so ranges are independent.
func (p *Plan) scaleRows(dst Target, src []byte, stride, lo, hi int) error {
	rowBytes := p.SrcW * 4
	dstBytes := p.DstW * 4
	var prev []byte
	for y := lo; y < hi; y++ {
		out := dst.Row(y)
		if len(out) < dstBytes {
			return fmt.Errorf("%w: row %d has %d bytes, need %d", ErrShortTarget, y, len(out), dstBytes)
		}
		out = out[:dstBytes]

		sy := int(p.rows[y])
		if y > lo && int(p.rows[y-1]) == sy {
			copy(out, prev)
			prev = out
			continue
		}

		in := src[sy*stride : sy*stride+rowBytes]
		switch p.H {
		case HExact:
			rowExact(out, in, p.DstW, p.Swizzle)
		case H2x:
			row2x(out, in, p.SrcW, p.Swizzle)
		case H4x:
			row4x(out, in, p.SrcW, p.Swizzle)
		default:
			rowGeneric(out, in, p.cols, p.Swizzle)
		}
		prev = out
	}
	return nil
}
