package types

import "github.com/google/uuid"

// Structure signatures as they appear on disk (little-endian byte order of the
// values published in MS-VHDX).
const (
	SignatureFileIdentifier = "vhdxfile"
	SignatureHeader         = "head"
	SignatureRegionTable    = "regi"
	SignatureLogEntry       = "loge"
	SignatureZeroDescriptor = "zero"
	SignatureDataDescriptor = "desc"
	SignatureDataSector     = "data"
	SignatureMetadataTable  = "metadata"
)

// Fixed offsets of the header section structures. Each structure is aligned to
// a 64 KiB boundary; the first 1 MiB of the file is reserved for them.
const (
	Alignment = 64 * 1024
	MiB       = 1024 * 1024
	KiB       = 1024

	FileIdentifierOffset = 0 * Alignment
	Header1Offset        = 1 * Alignment
	Header2Offset        = 2 * Alignment
	RegionTable1Offset   = 3 * Alignment
	RegionTable2Offset   = 4 * Alignment
)

// Structure sizes.
const (
	FileIdentifierSize   = 64 * KiB
	CreatorSize          = 512
	HeaderSize           = 4 * KiB
	RegionTableSize      = 64 * KiB
	RegionTableEntrySize = 32
	MetadataHeaderSize   = 32
	MetadataEntrySize    = 32
	MetadataItemFloor    = 64 * KiB
	BatEntrySize         = 8

	LogSectorSize     = 4 * KiB
	LogHeaderSize     = 64
	LogDescriptorSize = 32
	LogDataPayload    = 4084

	// Checksum fields sit 4 bytes into their structures.
	ChecksumFieldOffset = 4

	// EntryCount ceilings for the region and metadata tables.
	MaxRegionTableEntries = 2047
	MaxMetadataEntries    = 2047
)

// Region GUIDs from the region table directory.
var (
	BatRegionGUID      = uuid.MustParse("2DC27766-F623-4200-9D64-115E9BFD4A08")
	MetadataRegionGUID = uuid.MustParse("8B7CA206-4790-4B9A-B8FE-575F050F886E")
)

// Metadata item GUIDs.
var (
	FileParametersGUID     = uuid.MustParse("CAA16737-FA36-4D43-B3B6-33F0AA44E76B")
	VirtualDiskSizeGUID    = uuid.MustParse("2FA54224-CD1B-4876-B211-5DBED83BF4B8")
	VirtualDiskIDGUID      = uuid.MustParse("BECA12AB-B2E6-4523-93EF-C309E000C746")
	LogicalSectorSizeGUID  = uuid.MustParse("8141BF1D-A96F-4709-BA47-F233A8FAAB5F")
	PhysicalSectorSizeGUID = uuid.MustParse("CDA348C7-445D-4471-9CC9-E9885251C556")
	ParentLocatorGUID      = uuid.MustParse("A8D35F2D-B30B-454D-ABF7-D3D84834AB0C")

	// The only parent locator type the format defines.
	VhdxParentLocatorGUID = uuid.MustParse("B04AEFB7-D19E-4A81-B789-25B8E9445913")
)

// Supported sector sizes. The format defines no others.
const (
	SectorSize512  = 512
	SectorSize4096 = 4096
)

// File parameter block size bounds (powers of two).
const (
	MinBlockSize = 1 * MiB
	MaxBlockSize = 256 * MiB
)
