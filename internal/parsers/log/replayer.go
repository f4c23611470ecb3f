package log

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-vhdx/internal/checksum"
	"github.com/deploymenttheory/go-vhdx/internal/device"
	"github.com/deploymenttheory/go-vhdx/internal/interfaces"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// ring reads the log's reserved byte range as a circular buffer, stitching
// reads across the wrap point with modular offset arithmetic.
type ring struct {
	device interfaces.BlockDevice
	base   uint64
	length uint64
}

// read returns n bytes starting at ring offset off (relative to the log
// start), wrapping modulo the log length.
func (r *ring) read(off uint64, n uint32) ([]byte, error) {
	off %= r.length
	if uint64(n) <= r.length-off {
		return r.device.ReadExact(r.base+off, n)
	}
	first := uint32(r.length - off)
	head, err := r.device.ReadExact(r.base+off, first)
	if err != nil {
		return nil, err
	}
	tail, err := r.device.ReadExact(r.base, n-first)
	if err != nil {
		return nil, err
	}
	return append(head, tail...), nil
}

// Replayer scans the log region and applies the active entry sequence to the
// overlay view. Replay failures downgrade: a discarded run or skipped
// descriptor leaves the file in its already-consistent pre-log state.
type Replayer struct {
	device  interfaces.BlockDevice
	overlay *device.Overlay
	log     *logrus.Entry
}

// NewReplayer creates a Replayer that writes replayed pages into overlay.
func NewReplayer(dev interfaces.BlockDevice, overlay *device.Overlay) *Replayer {
	return &Replayer{
		device:  dev,
		overlay: overlay,
		log:     logrus.WithField("component", "log"),
	}
}

// Replay runs the full state machine: scan, chain discovery, selection,
// apply. A zero logGUID means the file claims no pending log and replay is
// skipped entirely.
func (r *Replayer) Replay(logOffset uint64, logLength uint32, logGUID uuid.UUID) (*types.Log, error) {
	if logGUID == uuid.Nil {
		r.log.Debug("log GUID is zero, no pending log")
		return &types.Log{}, nil
	}
	if logLength == 0 || logLength%types.LogSectorSize != 0 {
		return nil, fmt.Errorf("log length %d is not a multiple of 4 KiB: %w",
			logLength, types.ErrCorruptStructure)
	}

	ring := &ring{device: r.device, base: logOffset, length: uint64(logLength)}
	entries, err := r.scan(ring, logGUID)
	if err != nil {
		return nil, err
	}
	r.log.WithField("entries", len(entries)).Debug("log scan complete")

	run := selectRun(discoverRuns(entries, uint64(logLength)))
	if run == nil {
		r.log.Debug("no valid closed run, nothing to replay")
		return &types.Log{}, nil
	}
	r.log.WithFields(logrus.Fields{
		"entries":  len(run),
		"firstSeq": run[0].Header.SequenceNumber,
		"lastSeq":  run[len(run)-1].Header.SequenceNumber,
	}).Debug("active log sequence selected")

	if err := r.apply(run); err != nil {
		return nil, err
	}
	return &types.Log{Replayed: run}, nil
}

// scan walks every 4 KiB slot of the ring and decodes the well-formed
// entries: signature match, verified checksum over EntryLength bytes, sane
// length, matching log GUID, and internally consistent descriptors.
// Malformed slots are unused or torn log space, skipped without error.
func (r *Replayer) scan(ring *ring, logGUID uuid.UUID) ([]types.LogEntry, error) {
	var entries []types.LogEntry
	for slot := uint64(0); slot < ring.length; slot += types.LogSectorSize {
		head, err := ring.read(slot, types.LogHeaderSize)
		if err != nil {
			return nil, err
		}
		hdr := parseEntryHeader(head)
		if hdr.Signature != types.SignatureLogEntry {
			continue
		}
		if hdr.EntryLength == 0 || hdr.EntryLength%types.LogSectorSize != 0 ||
			uint64(hdr.EntryLength) > ring.length {
			continue
		}
		if hdr.LogGUID != logGUID {
			continue
		}
		raw, err := ring.read(slot, hdr.EntryLength)
		if err != nil {
			return nil, err
		}
		if !checksum.Verify(raw, types.ChecksumFieldOffset, hdr.Checksum) {
			continue
		}
		descriptors, perr := parseEntry(raw, hdr)
		if perr != nil {
			r.log.WithField("slot", slot).WithError(perr).Debug("skipping malformed log entry")
			continue
		}
		entries = append(entries, types.LogEntry{
			Offset:      slot,
			Header:      hdr,
			Descriptors: descriptors,
		})
	}
	return entries, nil
}

// discoverRuns groups well-formed entries into maximal runs: consecutive in
// circular file order with strictly consecutive sequence numbers. A run is
// kept only when its loop closes: the tail recorded by its latest entry must
// point back at its earliest entry.
func discoverRuns(entries []types.LogEntry, ringLength uint64) [][]types.LogEntry {
	if len(entries) == 0 {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })

	byOffset := make(map[uint64]*types.LogEntry, len(entries))
	for i := range entries {
		byOffset[entries[i].Offset] = &entries[i]
	}

	// An entry heads a run when no entry ends exactly at its offset with the
	// preceding sequence number.
	isContinuation := make(map[uint64]bool, len(entries))
	for i := range entries {
		e := &entries[i]
		next := (e.Offset + uint64(e.Header.EntryLength)) % ringLength
		if succ, ok := byOffset[next]; ok &&
			succ.Header.SequenceNumber == e.Header.SequenceNumber+1 {
			isContinuation[next] = true
		}
	}

	var runs [][]types.LogEntry
	for i := range entries {
		head := &entries[i]
		if isContinuation[head.Offset] {
			continue
		}
		run := []types.LogEntry{*head}
		cur := head
		for {
			next := (cur.Offset + uint64(cur.Header.EntryLength)) % ringLength
			succ, ok := byOffset[next]
			if !ok || succ.Header.SequenceNumber != cur.Header.SequenceNumber+1 || succ == head {
				break
			}
			run = append(run, *succ)
			cur = succ
		}
		if closesLoop(run) {
			runs = append(runs, run)
		}
	}
	return runs
}

// closesLoop checks the run's internal self-consistency: the latest entry's
// tail names the ring offset of the earliest entry of its sequence. A lone
// initialization entry points at itself.
func closesLoop(run []types.LogEntry) bool {
	head := run[0]
	last := run[len(run)-1]
	return uint64(last.Header.Tail) == head.Offset
}

// selectRun picks the valid run whose highest sequence number is greatest.
func selectRun(runs [][]types.LogEntry) []types.LogEntry {
	var best []types.LogEntry
	for _, run := range runs {
		if best == nil ||
			run[len(run)-1].Header.SequenceNumber > best[len(best)-1].Header.SequenceNumber {
			best = run
		}
	}
	return best
}

// apply processes the selected run in ascending sequence order, writing each
// descriptor's effect into the overlay. Torn data descriptors were already
// excluded by the sequence stamp check; the rest of the run still applies.
func (r *Replayer) apply(run []types.LogEntry) error {
	for _, entry := range run {
		for i, desc := range entry.Descriptors {
			switch desc.Kind {
			case types.DescriptorZero:
				if err := r.overlay.ZeroRange(desc.FileOffset, desc.ZeroLength); err != nil {
					return err
				}
			case types.DescriptorData:
				if desc.Torn {
					r.log.WithFields(logrus.Fields{
						"sequence":   entry.Header.SequenceNumber,
						"descriptor": i,
					}).Warn("torn data sector, descriptor not applied")
					continue
				}
				if err := r.overlay.WritePage(desc.FileOffset, desc.Payload); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
