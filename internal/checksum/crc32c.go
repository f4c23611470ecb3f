// Package checksum implements the CRC-32C verification every checksummed
// VHDX structure uses: the stored 4-byte checksum field is zeroed before the
// hash is computed over the structure.
package checksum

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Compute returns the CRC-32C of buf.
func Compute(buf []byte) uint32 {
	return crc32.Checksum(buf, castagnoli)
}

// ComputeZeroed returns the CRC-32C of buf with the four bytes at fieldOffset
// treated as zero. buf is not modified.
func ComputeZeroed(buf []byte, fieldOffset int) uint32 {
	scratch := make([]byte, len(buf))
	copy(scratch, buf)
	scratch[fieldOffset] = 0
	scratch[fieldOffset+1] = 0
	scratch[fieldOffset+2] = 0
	scratch[fieldOffset+3] = 0
	return crc32.Checksum(scratch, castagnoli)
}

// Verify reports whether the CRC-32C of buf, with the checksum field at
// fieldOffset zeroed, equals stored. Side-effect free.
func Verify(buf []byte, fieldOffset int, stored uint32) bool {
	if fieldOffset < 0 || fieldOffset+4 > len(buf) {
		return false
	}
	return ComputeZeroed(buf, fieldOffset) == stored
}
