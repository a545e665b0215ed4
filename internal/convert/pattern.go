// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package convert

import (
	"encoding/binary"
	"fmt"
)

// Pattern fills a width x height target with a deterministic diagnostic
// image that moves with frame: a colour ramp, white grid lines every 64
// columns and 32 rows, and a 3-pixel red border. swizzle has the same
// meaning as in NewPlan.
func Pattern(dst Target, width, height int, frame uint64, swizzle bool) error {
	phase := uint32(frame*3) & 0xFF
	for y := 0; y < height; y++ {
		out := dst.Row(y)
		if len(out) < width*4 {
			return fmt.Errorf("%w: row %d has %d bytes, need %d", ErrShortTarget, y, len(out), width*4)
		}
		for x := 0; x < width; x++ {
			r := (uint32(x) + phase) & 0xFF
			g := (uint32(y)*2 + phase) & 0xFF
			b := (uint32(x^y) + phase) & 0xFF
			if x%64 == 0 || y%32 == 0 {
				r, g, b = 0xFF, 0xFF, 0xFF
			}
			if x < 3 || y < 3 || x >= width-3 || y >= height-3 {
				r, g, b = 0xFF, 0, 0
			}
			binary.LittleEndian.PutUint32(out[x*4:], pack(r, g, b, swizzle))
		}
	}
	return nil
}

// pack builds a scanout word from 8-bit channels.
func pack(r, g, b uint32, swizzle bool) uint32 {
	if swizzle {
		return r<<16 | g<<8 | b
	}
	return b<<16 | g<<8 | r
}

// Unpack splits a scanout word produced with the given swizzle back into
// 8-bit channels.
func Unpack(v uint32, swizzle bool) (r, g, b uint8) {
	if swizzle {
		return uint8(v >> 16), uint8(v >> 8), uint8(v) // #nosec G115
	}
	return uint8(v), uint8(v >> 8), uint8(v >> 16) // #nosec G115
}
