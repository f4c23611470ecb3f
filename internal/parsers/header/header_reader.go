package header

import (
	"fmt"

	"github.com/deploymenttheory/go-vhdx/internal/binread"
	"github.com/deploymenttheory/go-vhdx/internal/checksum"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// parseHeader decodes one raw 4 KiB header copy. Field layout:
//
//	Offset  Size  Description
//	------  ----  --------------------------------
//	 0x00    4    Signature "head"
//	 0x04    4    Checksum (CRC-32C, field zeroed)
//	 0x08    8    SequenceNumber
//	 0x10   16    FileWriteGuid
//	 0x20   16    DataWriteGuid
//	 0x30   16    LogGuid (zero GUID: no pending log)
//	 0x40    2    LogVersion
//	 0x42    2    Version
//	 0x44    4    LogLength
//	 0x48    8    LogOffset
func parseHeader(data []byte) types.VhdxHeader {
	return types.VhdxHeader{
		Signature:      string(data[0:4]),
		Checksum:       binread.U32(data, 4),
		SequenceNumber: binread.U64(data, 8),
		FileWriteGUID:  binread.GUID(data, 16),
		DataWriteGUID:  binread.GUID(data, 32),
		LogGUID:        binread.GUID(data, 48),
		LogVersion:     binread.U16(data, 64),
		Version:        binread.U16(data, 66),
		LogLength:      binread.U32(data, 68),
		LogOffset:      binread.U64(data, 72),
	}
}

// readHeaderCandidate decodes one header copy and applies the candidacy rule:
// a copy is a candidate iff its signature matches and its checksum verifies
// over the whole 4 KiB structure.
func readHeaderCandidate(data []byte, offset uint64) types.HeaderCandidate {
	if len(data) < types.HeaderSize {
		return types.HeaderCandidate{
			Reason: fmt.Sprintf("header at offset %d: %d bytes, need %d", offset, len(data), types.HeaderSize),
		}
	}
	h := parseHeader(data)
	if h.Signature != types.SignatureHeader {
		return types.HeaderCandidate{
			Header: h,
			Reason: fmt.Sprintf("header at offset %d: signature %q, want %q", offset, h.Signature, types.SignatureHeader),
		}
	}
	if !checksum.Verify(data[:types.HeaderSize], types.ChecksumFieldOffset, h.Checksum) {
		return types.HeaderCandidate{
			Header: h,
			Reason: fmt.Sprintf("header at offset %d: checksum mismatch, stored 0x%08X computed 0x%08X",
				offset, h.Checksum, checksum.ComputeZeroed(data[:types.HeaderSize], types.ChecksumFieldOffset)),
		}
	}
	return types.HeaderCandidate{Header: h, Valid: true}
}

// selectHeader applies the current-header rule to two candidates: among valid
// candidates the strictly greater sequence number wins; a sole valid
// candidate wins; no valid candidate means the file is corrupt. The loser's
// rejection reason is recorded on its candidate.
func selectHeader(candidates *[2]types.HeaderCandidate) (int, error) {
	a, b := &candidates[0], &candidates[1]
	switch {
	case a.Valid && b.Valid:
		if a.Header.SequenceNumber > b.Header.SequenceNumber {
			b.Reason = fmt.Sprintf("sequence number %d not greater than %d",
				b.Header.SequenceNumber, a.Header.SequenceNumber)
			return 0, nil
		}
		a.Reason = fmt.Sprintf("sequence number %d not greater than %d",
			a.Header.SequenceNumber, b.Header.SequenceNumber)
		return 1, nil
	case a.Valid:
		return 0, nil
	case b.Valid:
		return 1, nil
	}
	return 0, fmt.Errorf("no valid header: copy 1: %s; copy 2: %s: %w",
		a.Reason, b.Reason, types.ErrCorruptStructure)
}
