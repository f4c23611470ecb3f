// Package bat decodes the block allocation table against metadata-derived
// geometry. No checksum protects the BAT, so structural validation is the
// only corruption defense the format allows here.
package bat

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-vhdx/internal/binread"
	"github.com/deploymenttheory/go-vhdx/internal/interfaces"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// Decoder reads the BAT region through the post-replay file view.
type Decoder struct {
	device interfaces.BlockDevice
	log    *logrus.Entry
}

// NewDecoder creates a Decoder over device.
func NewDecoder(device interfaces.BlockDevice) *Decoder {
	return &Decoder{
		device: device,
		log:    logrus.WithField("component", "bat"),
	}
}

// Decode reads the geometry-dictated number of 8-byte entries sequentially
// from the region and validates each against the closed state enumerations
// and the file bounds.
func (d *Decoder) Decode(region types.RegionTableEntry, meta *types.Metadata) ([]types.BatEntry, error) {
	count := meta.BatEntryCount()
	if count == 0 || count*types.BatEntrySize > uint64(region.Length) {
		return nil, fmt.Errorf("BAT: %d entries need %d bytes, region holds %d: %w",
			count, count*types.BatEntrySize, region.Length, types.ErrGeometry)
	}

	raw, err := d.device.ReadExact(region.FileOffset, uint32(count*types.BatEntrySize))
	if err != nil {
		return nil, err
	}

	// On differencing disks one sector bitmap entry follows every chunkRatio
	// payload entries.
	chunkRatio := meta.Geometry.ChunkRatio
	fileSize := d.device.Size()

	entries := make([]types.BatEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		value := binread.U64(raw, int(i*types.BatEntrySize))
		entry := types.BatEntry{
			State:        types.BatState(value & types.BatStateMask),
			FileOffsetMB: value >> types.BatFileOffsetShift,
		}
		if meta.FileParameters.HasParent && (i+1)%(chunkRatio+1) == 0 {
			entry.IsSectorBitmap = true
		}
		if err := validateEntry(i, entry, meta, fileSize); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	d.log.WithField("entries", len(entries)).Debug("BAT decoded")
	return entries, nil
}

// validateEntry rejects undefined state bit patterns and offsets the file
// cannot contain. Both indicate corruption the format has no checksum to
// catch.
func validateEntry(index uint64, entry types.BatEntry, meta *types.Metadata, fileSize uint64) error {
	if entry.IsSectorBitmap {
		switch entry.State {
		case types.SectorBitmapNotPresent, types.SectorBitmapPresent:
		default:
			return fmt.Errorf("BAT entry %d: undefined sector bitmap state %d: %w",
				index, entry.State, types.ErrGeometry)
		}
	} else {
		switch entry.State {
		case types.PayloadBlockNotPresent, types.PayloadBlockUndefined,
			types.PayloadBlockZero, types.PayloadBlockUnmapped,
			types.PayloadBlockFullyPresent, types.PayloadBlockPartiallyPresent:
		default:
			return fmt.Errorf("BAT entry %d: undefined payload state %d: %w",
				index, entry.State, types.ErrGeometry)
		}
	}
	if !entry.Present() {
		return nil
	}

	offset := entry.FileOffset()
	length := uint64(meta.FileParameters.BlockSize)
	if entry.IsSectorBitmap {
		length = types.MiB
	}
	if offset < types.MiB {
		return fmt.Errorf("BAT entry %d: block offset %d inside the reserved header section: %w",
			index, offset, types.ErrGeometry)
	}
	if offset+length > fileSize {
		return fmt.Errorf("BAT entry %d: block [%d, %d) beyond file size %d: %w",
			index, offset, offset+length, fileSize, types.ErrGeometry)
	}
	return nil
}
