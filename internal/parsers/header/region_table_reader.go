package header

import (
	"fmt"

	"github.com/deploymenttheory/go-vhdx/internal/binread"
	"github.com/deploymenttheory/go-vhdx/internal/checksum"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// parseRegionTable decodes one raw 64 KiB region table copy: a 16-byte header
// (signature, checksum, entry count, reserved) followed by 32-byte entries.
func parseRegionTable(data []byte) (types.RegionTable, error) {
	rt := types.RegionTable{
		Signature:  string(data[0:4]),
		Checksum:   binread.U32(data, 4),
		EntryCount: binread.U32(data, 8),
	}
	if rt.EntryCount > types.MaxRegionTableEntries {
		return rt, fmt.Errorf("region table entry count %d exceeds %d",
			rt.EntryCount, types.MaxRegionTableEntries)
	}
	rt.Entries = make([]types.RegionTableEntry, 0, rt.EntryCount)
	for i := uint32(0); i < rt.EntryCount; i++ {
		off := 16 + int(i)*types.RegionTableEntrySize
		rt.Entries = append(rt.Entries, types.RegionTableEntry{
			GUID:       binread.GUID(data, off),
			FileOffset: binread.U64(data, off+16),
			Length:     binread.U32(data, off+24),
			Required:   binread.U32(data, off+28) != 0,
		})
	}
	return rt, nil
}

// readRegionTableCandidate decodes one region table copy. Region tables carry
// no sequence number, so candidacy is signature plus checksum validity over
// the entire 64 KiB structure.
func readRegionTableCandidate(data []byte, offset uint64) types.RegionTableCandidate {
	if len(data) < types.RegionTableSize {
		return types.RegionTableCandidate{
			Reason: fmt.Sprintf("region table at offset %d: %d bytes, need %d",
				offset, len(data), types.RegionTableSize),
		}
	}
	sig := string(data[0:4])
	if sig != types.SignatureRegionTable {
		return types.RegionTableCandidate{
			Table:  types.RegionTable{Signature: sig},
			Reason: fmt.Sprintf("region table at offset %d: signature %q, want %q", offset, sig, types.SignatureRegionTable),
		}
	}
	stored := binread.U32(data, 4)
	if !checksum.Verify(data[:types.RegionTableSize], types.ChecksumFieldOffset, stored) {
		return types.RegionTableCandidate{
			Table: types.RegionTable{Signature: sig, Checksum: stored},
			Reason: fmt.Sprintf("region table at offset %d: checksum mismatch, stored 0x%08X computed 0x%08X",
				offset, stored, checksum.ComputeZeroed(data[:types.RegionTableSize], types.ChecksumFieldOffset)),
		}
	}
	rt, err := parseRegionTable(data)
	if err != nil {
		return types.RegionTableCandidate{Table: rt, Reason: err.Error()}
	}
	return types.RegionTableCandidate{Table: rt, Valid: true}
}

// selectRegionTable prefers the first valid copy.
func selectRegionTable(candidates *[2]types.RegionTableCandidate) (int, error) {
	switch {
	case candidates[0].Valid:
		if candidates[1].Valid {
			candidates[1].Reason = "table 1 valid and preferred"
		}
		return 0, nil
	case candidates[1].Valid:
		return 1, nil
	}
	return 0, fmt.Errorf("no valid region table: copy 1: %s; copy 2: %s: %w",
		candidates[0].Reason, candidates[1].Reason, types.ErrCorruptStructure)
}

// validateRegions enforces the forward-compatibility contract on the active
// table: every required entry must carry a recognized GUID, and every entry
// must point at 1 MiB-aligned space past the reserved header section.
func validateRegions(rt *types.RegionTable) error {
	for _, entry := range rt.Entries {
		if entry.FileOffset < types.MiB || entry.FileOffset%types.MiB != 0 {
			return fmt.Errorf("region %s: file offset %d not a 1 MiB multiple past the header section: %w",
				entry.GUID, entry.FileOffset, types.ErrCorruptStructure)
		}
		switch entry.GUID {
		case types.BatRegionGUID, types.MetadataRegionGUID:
		default:
			if entry.Required {
				return fmt.Errorf("region %s marked required but not recognized: %w",
					entry.GUID, types.ErrUnsupportedFeature)
			}
		}
	}
	return nil
}
