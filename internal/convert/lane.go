// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package convert

import "encoding/binary"

// laneWidth is the number of pixels processed per lane step.
const laneWidth = 8

// lane holds 8 pixels as little-endian 32-bit words.
type lane [laneWidth]uint32

// load reads 8 RGBA pixels. src must hold at least 32 bytes.
func (l *lane) load(src []byte) {
	_ = src[laneWidth*4-1]
	for i := range l {
		l[i] = binary.LittleEndian.Uint32(src[i*4:])
	}
}

// keep drops alpha, leaving R, G, B in memory order. The result matches
// XBGR8888.
func (l *lane) keep() {
	for i, v := range l {
		l[i] = v & 0x00FFFFFF
	}
}

// swap drops alpha and exchanges R and B. The result matches XRGB8888.
func (l *lane) swap() {
	for i, v := range l {
		l[i] = v>>16&0xFF | v&0xFF00 | (v&0xFF)<<16
	}
}

func (l *lane) convert(swizzle bool) {
	if swizzle {
		l.swap()
	} else {
		l.keep()
	}
}

// store writes 8 pixels. dst must hold at least 32 bytes.
func (l *lane) store(dst []byte) {
	_ = dst[laneWidth*4-1]
	for i, v := range l {
		binary.LittleEndian.PutUint32(dst[i*4:], v)
	}
}

// store2x writes every pixel twice: 16 pixels, 64 bytes.
func (l *lane) store2x(dst []byte) {
	_ = dst[laneWidth*8-1]
	for i, v := range l {
		binary.LittleEndian.PutUint32(dst[i*8:], v)
		binary.LittleEndian.PutUint32(dst[i*8+4:], v)
	}
}

// store4x writes every pixel four times: 32 pixels, 128 bytes.
func (l *lane) store4x(dst []byte) {
	_ = dst[laneWidth*16-1]
	for i, v := range l {
		o := i * 16
		binary.LittleEndian.PutUint32(dst[o:], v)
		binary.LittleEndian.PutUint32(dst[o+4:], v)
		binary.LittleEndian.PutUint32(dst[o+8:], v)
		binary.LittleEndian.PutUint32(dst[o+12:], v)
	}
}

// Pixel converts one RGBA pixel to a scanout word.
func Pixel(p []byte, swizzle bool) uint32 {
	v := binary.LittleEndian.Uint32(p)
	if swizzle {
		return v>>16&0xFF | v&0xFF00 | (v&0xFF)<<16
	}
	return v & 0x00FFFFFF
}
