package types

import "github.com/google/uuid"

// LogEntryHeader is the 64-byte header of one 4 KiB-aligned log entry.
type LogEntryHeader struct {
	Signature         string
	Checksum          uint32
	EntryLength       uint32
	Tail              uint32
	SequenceNumber    uint64
	DescriptorCount   uint32
	LogGUID           uuid.UUID
	FlushedFileOffset uint64
	LastFileOffset    uint64
}

// DescriptorKind discriminates the two 32-byte descriptor variants.
type DescriptorKind int

const (
	DescriptorZero DescriptorKind = iota
	DescriptorData
)

// Descriptor is a single log instruction targeting one file region: either a
// zero-fill of ZeroLength bytes or a 4 KiB data write. Data descriptors own
// the payload their data sector carried; the leading and trailing bytes the
// format splits off are restored into Payload before replay.
type Descriptor struct {
	Kind           DescriptorKind
	FileOffset     uint64
	SequenceNumber uint64

	// Zero variant only. A multiple of 4 KiB.
	ZeroLength uint64

	// Data variant only.
	Payload []byte // 4096 bytes, reassembled
	Torn    bool   // data sector sequence stamp mismatched; excluded from replay
}

// LogEntry is one decoded entry: its header plus descriptors in on-disk order.
// Entries exist in the final model only as a replay audit trail; their effects
// are applied to the logical file view during replay.
type LogEntry struct {
	Offset      uint64 // ring offset the entry was found at, relative to the log start
	Header      LogEntryHeader
	Descriptors []Descriptor
}

// Log records the outcome of log replay for diagnostics: the entries of the
// selected run in the order they were applied. Empty when the file carried no
// pending log.
type Log struct {
	Replayed []LogEntry
}
