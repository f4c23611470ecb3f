// Package binread supplies the fixed-layout primitives the structure parsers
// are built on: little-endian integers, on-disk GUIDs, and padded UTF-16LE
// strings.
package binread

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// U16 reads a little-endian uint16 at off.
func U16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}

// U32 reads a little-endian uint32 at off.
func U32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

// U64 reads a little-endian uint64 at off.
func U64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off:])
}

// GUID decodes the 16 bytes at off in the on-disk GUID layout: the first
// three fields little-endian, the trailing eight bytes verbatim.
func GUID(b []byte, off int) uuid.UUID {
	var g uuid.UUID
	src := b[off : off+16]
	g[0], g[1], g[2], g[3] = src[3], src[2], src[1], src[0]
	g[4], g[5] = src[5], src[4]
	g[6], g[7] = src[7], src[6]
	copy(g[8:], src[8:16])
	return g
}

// UTF16String decodes a fixed-width UTF-16LE field, dropping NUL padding.
func UTF16String(b []byte) (string, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	s, err := dec.Bytes(b)
	if err != nil {
		return "", fmt.Errorf("utf-16 decode: %w", err)
	}
	return strings.TrimRight(string(s), "\x00"), nil
}
