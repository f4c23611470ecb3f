package types

import "github.com/google/uuid"

// FileTypeIdentifier is the structure at file offset zero. It is an identity
// marker only and is never mutated after read.
type FileTypeIdentifier struct {
	Signature string
	Creator   string
}

// VhdxHeader is one of the two redundant 4 KiB header copies stored at 64 KiB
// and 128 KiB. Both copies are read-only snapshots from disk; exactly one is
// current per the sequence-number selection rule.
type VhdxHeader struct {
	Signature      string
	Checksum       uint32
	SequenceNumber uint64
	FileWriteGUID  uuid.UUID
	DataWriteGUID  uuid.UUID
	LogGUID        uuid.UUID
	LogVersion     uint16
	Version        uint16
	LogLength      uint32
	LogOffset      uint64
}

// RegionTableEntry names one region of the file by GUID.
type RegionTableEntry struct {
	GUID       uuid.UUID
	FileOffset uint64
	Length     uint32
	Required   bool
}

// RegionTable is one of the two redundant 64 KiB region table copies stored at
// 192 KiB and 256 KiB.
type RegionTable struct {
	Signature  string
	Checksum   uint32
	EntryCount uint32
	Entries    []RegionTableEntry
}

// HeaderCandidate pairs one raw header copy with the outcome of the selection
// rule, so diagnostics keep the loser and its rejection reason instead of
// silently discarding it.
type HeaderCandidate struct {
	Header VhdxHeader
	Valid  bool
	Reason string
}

// RegionTableCandidate is the region table analogue of HeaderCandidate.
type RegionTableCandidate struct {
	Table  RegionTable
	Valid  bool
	Reason string
}

// HeaderSection holds the resolved header pair and region table pair.
// CurrentIndex and ActiveIndex point at the authoritative copies.
type HeaderSection struct {
	FileIdentifier FileTypeIdentifier
	Headers        [2]HeaderCandidate
	CurrentIndex   int
	RegionTables   [2]RegionTableCandidate
	ActiveIndex    int
}

// Current returns the authoritative header copy.
func (h *HeaderSection) Current() *VhdxHeader {
	return &h.Headers[h.CurrentIndex].Header
}

// ActiveRegionTable returns the authoritative region table copy.
func (h *HeaderSection) ActiveRegionTable() *RegionTable {
	return &h.RegionTables[h.ActiveIndex].Table
}

// Region looks up a region by GUID in the active table.
func (h *HeaderSection) Region(guid uuid.UUID) (RegionTableEntry, bool) {
	for _, entry := range h.ActiveRegionTable().Entries {
		if entry.GUID == guid {
			return entry, true
		}
	}
	return RegionTableEntry{}, false
}
