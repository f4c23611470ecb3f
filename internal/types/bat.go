package types

import "fmt"

// BatState is the closed enumeration of block allocation states carried in
// the low three bits of a BAT entry. Payload blocks and sector bitmap blocks
// share the bit layout but draw from different value sets.
type BatState uint8

const (
	PayloadBlockNotPresent       BatState = 0
	PayloadBlockUndefined        BatState = 1
	PayloadBlockZero             BatState = 2
	PayloadBlockUnmapped         BatState = 3
	PayloadBlockFullyPresent     BatState = 6
	PayloadBlockPartiallyPresent BatState = 7

	SectorBitmapNotPresent BatState = 0
	SectorBitmapPresent    BatState = 6
)

// BAT entry bit layout: state in bits 0..2, bits 3..19 reserved,
// file offset in 1 MiB units in bits 20..63.
const (
	BatStateMask       = 0x7
	BatFileOffsetShift = 20
)

func (s BatState) String() string {
	switch s {
	case PayloadBlockNotPresent:
		return "NOT_PRESENT"
	case PayloadBlockUndefined:
		return "UNDEFINED"
	case PayloadBlockZero:
		return "ZERO"
	case PayloadBlockUnmapped:
		return "UNMAPPED"
	case PayloadBlockFullyPresent:
		return "FULLY_PRESENT"
	case PayloadBlockPartiallyPresent:
		return "PARTIALLY_PRESENT"
	}
	return fmt.Sprintf("BatState(%d)", uint8(s))
}

// BatEntry is one decoded 8-byte BAT record. FileOffsetMB is meaningful only
// for the present states. IsSectorBitmap marks the interleaved sector bitmap
// entries of differencing disks.
type BatEntry struct {
	State          BatState
	FileOffsetMB   uint64
	IsSectorBitmap bool
}

// FileOffset returns the byte offset the entry points at.
func (e BatEntry) FileOffset() uint64 {
	return e.FileOffsetMB * MiB
}

// Present reports whether the entry points at allocated file space.
func (e BatEntry) Present() bool {
	if e.IsSectorBitmap {
		return e.State == SectorBitmapPresent
	}
	return e.State == PayloadBlockFullyPresent || e.State == PayloadBlockPartiallyPresent
}
