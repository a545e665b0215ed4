// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package kms

// Fourcc builds a DRM four-character pixel format code.
func Fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// Pixel formats used for scanout. Both are 32 bits per pixel with an
// ignored fourth channel; they differ only in channel order in memory.
var (
	// FormatXRGB8888 is [B, G, R, X] in little-endian memory.
	FormatXRGB8888 = Fourcc('X', 'R', '2', '4')

	// FormatXBGR8888 is [R, G, B, X] in little-endian memory.
	FormatXBGR8888 = Fourcc('X', 'B', '2', '4')
)

// ModifierLinear is DRM_FORMAT_MOD_LINEAR: no tiling.
const ModifierLinear uint64 = 0

// FormatName returns the four characters of a format code.
func FormatName(f uint32) string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}
