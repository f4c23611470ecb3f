package types

import "github.com/google/uuid"

// MetadataTableHeader is the 32-byte header of the metadata region.
type MetadataTableHeader struct {
	Signature  string
	EntryCount uint16
}

// MetadataEntry is one 32-byte directory record of the metadata table. Offset
// and Length are relative to the metadata region start.
type MetadataEntry struct {
	ItemID        uuid.UUID
	Offset        uint32
	Length        uint32
	IsUser        bool
	IsVirtualDisk bool
	IsRequired    bool
}

// FileParameters is the typed decode of the file parameters item.
type FileParameters struct {
	BlockSize           uint32
	LeaveBlockAllocated bool
	HasParent           bool
}

// ParentLocator is the typed decode of the parent locator item of a
// differencing disk. The locator is retained for reporting; no parent chain
// is opened.
type ParentLocator struct {
	LocatorType uuid.UUID
	Entries     map[string]string
}

// DiskGeometry carries the values derived from the typed metadata that size
// and shape the BAT.
type DiskGeometry struct {
	ChunkRatio                  uint64
	PayloadBlocksCount          uint64
	SectorBitmapsBlocksCount    uint64
	TotalBatEntriesFixedDynamic uint64
	TotalBatEntriesDifferencing uint64
}

// Metadata is the decoded metadata region: the raw directory keyed by item
// GUID, the known items promoted into typed fields, and the derived geometry.
type Metadata struct {
	Header  MetadataTableHeader
	Entries map[uuid.UUID]MetadataEntry

	FileParameters     FileParameters
	VirtualDiskSize    uint64
	VirtualDiskID      uuid.UUID
	LogicalSectorSize  uint32
	PhysicalSectorSize uint32
	ParentLocator      *ParentLocator

	Geometry DiskGeometry
}

// BatEntryCount returns the BAT length this metadata dictates.
func (m *Metadata) BatEntryCount() uint64 {
	if m.FileParameters.HasParent {
		return m.Geometry.TotalBatEntriesDifferencing
	}
	return m.Geometry.TotalBatEntriesFixedDynamic
}
