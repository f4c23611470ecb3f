// Package metadata decodes the metadata region: the GUID-keyed directory,
// the known typed items, and the geometry derived from them.
package metadata

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-vhdx/internal/binread"
	"github.com/deploymenttheory/go-vhdx/internal/interfaces"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// Items the decoder promotes into typed fields. All but the parent locator
// must be present in every image; the locator only on differencing disks.
var knownItems = map[uuid.UUID]string{
	types.FileParametersGUID:     "file parameters",
	types.VirtualDiskSizeGUID:    "virtual disk size",
	types.VirtualDiskIDGUID:      "virtual disk id",
	types.LogicalSectorSizeGUID:  "logical sector size",
	types.PhysicalSectorSizeGUID: "physical sector size",
	types.ParentLocatorGUID:      "parent locator",
}

// Decoder reads the metadata region through the post-replay file view.
type Decoder struct {
	device interfaces.BlockDevice
	log    *logrus.Entry
}

// NewDecoder creates a Decoder over device.
func NewDecoder(device interfaces.BlockDevice) *Decoder {
	return &Decoder{
		device: device,
		log:    logrus.WithField("component", "metadata"),
	}
}

// Decode reads the table header and directory, promotes known items into
// typed fields, and derives the disk geometry.
func (d *Decoder) Decode(region types.RegionTableEntry) (*types.Metadata, error) {
	headerData, err := d.device.ReadExact(region.FileOffset, types.MetadataHeaderSize)
	if err != nil {
		return nil, err
	}
	header, err := parseTableHeader(headerData, region)
	if err != nil {
		return nil, err
	}

	meta := &types.Metadata{
		Header:  header,
		Entries: make(map[uuid.UUID]types.MetadataEntry, header.EntryCount),
	}
	dirData, err := d.device.ReadExact(region.FileOffset+types.MetadataHeaderSize,
		uint32(header.EntryCount)*types.MetadataEntrySize)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(header.EntryCount); i++ {
		entry := parseEntry(dirData[i*types.MetadataEntrySize:])
		// Item payloads live past the 64 KiB reserved for the directory.
		if entry.Offset < types.MetadataItemFloor {
			return nil, fmt.Errorf("metadata item %s: payload offset %d inside the directory area: %w",
				entry.ItemID, entry.Offset, types.ErrCorruptStructure)
		}
		if uint64(entry.Offset)+uint64(entry.Length) > uint64(region.Length) {
			return nil, fmt.Errorf("metadata item %s: payload [%d, %d) outside region of %d bytes: %w",
				entry.ItemID, entry.Offset, entry.Offset+entry.Length, region.Length,
				types.ErrCorruptStructure)
		}
		if _, known := knownItems[entry.ItemID]; !known && entry.IsRequired {
			return nil, fmt.Errorf("metadata item %s marked required but not recognized: %w",
				entry.ItemID, types.ErrUnsupportedFeature)
		}
		meta.Entries[entry.ItemID] = entry
	}

	if err := d.decodeKnownItems(meta, region); err != nil {
		return nil, err
	}
	if err := deriveGeometry(meta); err != nil {
		return nil, err
	}
	d.log.WithFields(logrus.Fields{
		"blockSize":     meta.FileParameters.BlockSize,
		"diskSize":      meta.VirtualDiskSize,
		"hasParent":     meta.FileParameters.HasParent,
		"payloadBlocks": meta.Geometry.PayloadBlocksCount,
	}).Debug("metadata decoded")
	return meta, nil
}

func parseTableHeader(data []byte, region types.RegionTableEntry) (types.MetadataTableHeader, error) {
	header := types.MetadataTableHeader{
		Signature:  string(data[0:8]),
		EntryCount: binread.U16(data, 10),
	}
	if header.Signature != types.SignatureMetadataTable {
		return header, fmt.Errorf("metadata table at offset %d: signature %q, want %q: %w",
			region.FileOffset, header.Signature, types.SignatureMetadataTable,
			types.ErrCorruptStructure)
	}
	if header.EntryCount > types.MaxMetadataEntries {
		return header, fmt.Errorf("metadata table entry count %d exceeds %d: %w",
			header.EntryCount, types.MaxMetadataEntries, types.ErrCorruptStructure)
	}
	if dirEnd := types.MetadataHeaderSize + uint32(header.EntryCount)*types.MetadataEntrySize; dirEnd > region.Length {
		return header, fmt.Errorf("metadata directory of %d bytes exceeds region of %d bytes: %w",
			dirEnd, region.Length, types.ErrCorruptStructure)
	}
	return header, nil
}

// parseEntry decodes one 32-byte directory record. Flag bits: 0 IsUser,
// 1 IsVirtualDisk, 2 IsRequired.
func parseEntry(data []byte) types.MetadataEntry {
	flags := data[24]
	return types.MetadataEntry{
		ItemID:        binread.GUID(data, 0),
		Offset:        binread.U32(data, 16),
		Length:        binread.U32(data, 20),
		IsUser:        flags&0x1 != 0,
		IsVirtualDisk: flags&0x2 != 0,
		IsRequired:    flags&0x4 != 0,
	}
}

func (d *Decoder) decodeKnownItems(meta *types.Metadata, region types.RegionTableEntry) error {
	payload := func(id uuid.UUID, name string, minLen uint32) ([]byte, error) {
		entry, ok := meta.Entries[id]
		if !ok {
			return nil, fmt.Errorf("required metadata item %s (%s) missing: %w",
				name, id, types.ErrCorruptStructure)
		}
		if entry.Length < minLen {
			return nil, fmt.Errorf("metadata item %s: %d bytes, need %d: %w",
				name, entry.Length, minLen, types.ErrCorruptStructure)
		}
		return d.device.ReadExact(region.FileOffset+uint64(entry.Offset), entry.Length)
	}

	fp, err := payload(types.FileParametersGUID, "file parameters", 8)
	if err != nil {
		return err
	}
	flags := binread.U32(fp, 4)
	meta.FileParameters = types.FileParameters{
		BlockSize:           binread.U32(fp, 0),
		LeaveBlockAllocated: flags&0x1 != 0,
		HasParent:           flags&0x2 != 0,
	}

	size, err := payload(types.VirtualDiskSizeGUID, "virtual disk size", 8)
	if err != nil {
		return err
	}
	meta.VirtualDiskSize = binread.U64(size, 0)

	id, err := payload(types.VirtualDiskIDGUID, "virtual disk id", 16)
	if err != nil {
		return err
	}
	meta.VirtualDiskID = binread.GUID(id, 0)

	lss, err := payload(types.LogicalSectorSizeGUID, "logical sector size", 4)
	if err != nil {
		return err
	}
	meta.LogicalSectorSize = binread.U32(lss, 0)

	pss, err := payload(types.PhysicalSectorSizeGUID, "physical sector size", 4)
	if err != nil {
		return err
	}
	meta.PhysicalSectorSize = binread.U32(pss, 0)

	if meta.FileParameters.HasParent {
		raw, err := payload(types.ParentLocatorGUID, "parent locator", 20)
		if err != nil {
			return err
		}
		locator, err := parseParentLocator(raw)
		if err != nil {
			return err
		}
		meta.ParentLocator = locator
	}
	return nil
}
