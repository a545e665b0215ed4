// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package convert

import "encoding/binary"

// rowExact converts n pixels without scaling.
func rowExact(dst, src []byte, n int, swizzle bool) {
	var l lane
	x := 0
	for end := n &^ (laneWidth - 1); x < end; x += laneWidth {
		l.load(src[x*4:])
		l.convert(swizzle)
		l.store(dst[x*4:])
	}
	for ; x < n; x++ {
		binary.LittleEndian.PutUint32(dst[x*4:], Pixel(src[x*4:], swizzle))
	}
}

// row2x converts srcW pixels, writing each twice.
func row2x(dst, src []byte, srcW int, swizzle bool) {
	var l lane
	x := 0
	for end := srcW &^ (laneWidth - 1); x < end; x += laneWidth {
		l.load(src[x*4:])
		l.convert(swizzle)
		l.store2x(dst[x*8:])
	}
	for ; x < srcW; x++ {
		v := Pixel(src[x*4:], swizzle)
		binary.LittleEndian.PutUint32(dst[x*8:], v)
		binary.LittleEndian.PutUint32(dst[x*8+4:], v)
	}
}

// row4x converts srcW pixels, writing each four times.
func row4x(dst, src []byte, srcW int, swizzle bool) {
	var l lane
	x := 0
	for end := srcW &^ (laneWidth - 1); x < end; x += laneWidth {
		l.load(src[x*4:])
		l.convert(swizzle)
		l.store4x(dst[x*16:])
	}
	for ; x < srcW; x++ {
		v := Pixel(src[x*4:], swizzle)
		o := x * 16
		binary.LittleEndian.PutUint32(dst[o:], v)
		binary.LittleEndian.PutUint32(dst[o+4:], v)
		binary.LittleEndian.PutUint32(dst[o+8:], v)
		binary.LittleEndian.PutUint32(dst[o+12:], v)
	}
}

// rowGeneric picks source column cols[x] for every destination pixel.
func rowGeneric(dst, src []byte, cols []int32, swizzle bool) {
	for x, sx := range cols {
		binary.LittleEndian.PutUint32(dst[x*4:], Pixel(src[int(sx)*4:], swizzle))
	}
}
