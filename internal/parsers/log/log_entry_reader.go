// Package log decodes the circular write-ahead log region and replays the
// active entry sequence onto the logical file view.
package log

import (
	"fmt"

	"github.com/deploymenttheory/go-vhdx/internal/binread"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// parseEntryHeader decodes the 64-byte log entry header. Field layout:
//
//	Offset  Size  Description
//	------  ----  --------------------------------
//	 0x00    4    Signature "loge"
//	 0x04    4    Checksum (CRC-32C over EntryLength bytes, field zeroed)
//	 0x08    4    EntryLength (multiple of 4 KiB)
//	 0x0C    4    Tail (ring offset of the head of the sequence)
//	 0x10    8    SequenceNumber
//	 0x18    4    DescriptorCount
//	 0x1C    4    Reserved
//	 0x20   16    LogGuid
//	 0x30    8    FlushedFileOffset
//	 0x38    8    LastFileOffset
func parseEntryHeader(data []byte) types.LogEntryHeader {
	return types.LogEntryHeader{
		Signature:         string(data[0:4]),
		Checksum:          binread.U32(data, 4),
		EntryLength:       binread.U32(data, 8),
		Tail:              binread.U32(data, 12),
		SequenceNumber:    binread.U64(data, 16),
		DescriptorCount:   binread.U32(data, 24),
		LogGUID:           binread.GUID(data, 32),
		FlushedFileOffset: binread.U64(data, 48),
		LastFileOffset:    binread.U64(data, 56),
	}
}

// parseEntry decodes a full entry from its raw bytes: descriptors packed
// after the header, then one 4 KiB data sector per data descriptor starting
// at the next 4 KiB boundary. Returns an error for any internal
// inconsistency; callers treat that as a malformed slot, not a decode
// failure.
func parseEntry(data []byte, hdr types.LogEntryHeader) ([]types.Descriptor, error) {
	descArea := types.LogHeaderSize + int(hdr.DescriptorCount)*types.LogDescriptorSize
	if descArea > len(data) {
		return nil, fmt.Errorf("descriptor area %d bytes exceeds entry length %d", descArea, len(data))
	}
	if hdr.FlushedFileOffset > hdr.LastFileOffset {
		return nil, fmt.Errorf("flushed file offset %d past last file offset %d",
			hdr.FlushedFileOffset, hdr.LastFileOffset)
	}

	descriptors := make([]types.Descriptor, 0, hdr.DescriptorCount)
	dataCount := 0
	for i := 0; i < int(hdr.DescriptorCount); i++ {
		off := types.LogHeaderSize + i*types.LogDescriptorSize
		d := data[off : off+types.LogDescriptorSize]
		switch sig := string(d[0:4]); sig {
		case types.SignatureZeroDescriptor:
			desc := types.Descriptor{
				Kind:           types.DescriptorZero,
				ZeroLength:     binread.U64(d, 8),
				FileOffset:     binread.U64(d, 16),
				SequenceNumber: binread.U64(d, 24),
			}
			if desc.ZeroLength%types.LogSectorSize != 0 || desc.FileOffset%types.LogSectorSize != 0 {
				return nil, fmt.Errorf("zero descriptor %d not 4 KiB aligned", i)
			}
			if err := checkTarget(i, desc.FileOffset, desc.ZeroLength, hdr); err != nil {
				return nil, err
			}
			descriptors = append(descriptors, desc)
		case types.SignatureDataDescriptor:
			desc := types.Descriptor{
				Kind:           types.DescriptorData,
				FileOffset:     binread.U64(d, 16),
				SequenceNumber: binread.U64(d, 24),
			}
			if desc.FileOffset%types.LogSectorSize != 0 {
				return nil, fmt.Errorf("data descriptor %d not 4 KiB aligned", i)
			}
			if err := checkTarget(i, desc.FileOffset, types.LogSectorSize, hdr); err != nil {
				return nil, err
			}
			// Leading and trailing bytes are restored into the page once the
			// data sector arrives.
			desc.Payload = make([]byte, types.LogSectorSize)
			copy(desc.Payload[0:8], d[8:16])
			copy(desc.Payload[types.LogSectorSize-4:], d[4:8])
			descriptors = append(descriptors, desc)
			dataCount++
		default:
			return nil, fmt.Errorf("descriptor %d: unknown signature %q", i, sig)
		}
		if descriptors[i].SequenceNumber != hdr.SequenceNumber {
			return nil, fmt.Errorf("descriptor %d sequence %d does not match entry sequence %d",
				i, descriptors[i].SequenceNumber, hdr.SequenceNumber)
		}
	}

	// Data sectors begin at the next 4 KiB boundary after the descriptors.
	sectorStart := descArea
	if rem := sectorStart % types.LogSectorSize; rem != 0 {
		sectorStart += types.LogSectorSize - rem
	}
	if sectorStart+dataCount*types.LogSectorSize != len(data) {
		return nil, fmt.Errorf("entry length %d does not cover %d data sectors", len(data), dataCount)
	}

	sector := sectorStart
	for i := range descriptors {
		if descriptors[i].Kind != types.DescriptorData {
			continue
		}
		fillDataSector(&descriptors[i], data[sector:sector+types.LogSectorSize], hdr.SequenceNumber)
		sector += types.LogSectorSize
	}
	return descriptors, nil
}

// checkTarget bounds a descriptor's write range by the file size the entry
// itself records: every target must end at or before LastFileOffset. A range
// past it (or one whose end overflows) cannot come from a legitimate flush,
// so the whole slot is malformed.
func checkTarget(index int, offset, length uint64, hdr types.LogEntryHeader) error {
	end := offset + length
	if end < offset || end > hdr.LastFileOffset {
		return fmt.Errorf("descriptor %d: target [%d, %d) past last file offset %d",
			index, offset, end, hdr.LastFileOffset)
	}
	return nil
}

// fillDataSector restores the sector payload into the descriptor's page and
// applies the mandatory tear check: the sector's sequence stamps must match
// the entry's sequence number, otherwise the write was torn and the
// descriptor is excluded from application.
func fillDataSector(desc *types.Descriptor, sector []byte, seq uint64) {
	if string(sector[0:4]) != types.SignatureDataSector {
		desc.Torn = true
		return
	}
	seqHigh := binread.U32(sector, 4)
	seqLow := binread.U32(sector, types.LogSectorSize-4)
	if seqHigh != uint32(seq>>32) || seqLow != uint32(seq) {
		desc.Torn = true
		return
	}
	copy(desc.Payload[8:8+types.LogDataPayload], sector[8:8+types.LogDataPayload])
}
