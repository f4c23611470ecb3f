package log

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-vhdx/internal/checksum"
	"github.com/deploymenttheory/go-vhdx/internal/device"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

const (
	testLogOffset = 1 * types.MiB
	testLogLength = 64 * types.KiB // 16 slots
	testImageSize = 2 * types.MiB
)

func putGUID(b []byte, off int, g uuid.UUID) {
	b[off+0], b[off+1], b[off+2], b[off+3] = g[3], g[2], g[1], g[0]
	b[off+4], b[off+5] = g[5], g[4]
	b[off+6], b[off+7] = g[7], g[6]
	copy(b[off+8:off+16], g[8:16])
}

// logDesc describes one descriptor of a synthetic log entry.
type logDesc struct {
	zero       bool
	fileOffset uint64
	zeroLength uint64
	page       []byte // full 4 KiB page for data descriptors
	tornSector bool   // mis-stamp the data sector before checksumming
}

// makeLogEntry builds a complete on-disk log entry: 64-byte header, packed
// descriptors, padding to the next 4 KiB boundary, then one data sector per
// data descriptor. The checksum is computed last so a torn stamp still lives
// inside a CRC-valid entry.
func makeLogEntry(t *testing.T, seq uint64, tail uint32, guid uuid.UUID, descs []logDesc) []byte {
	t.Helper()

	descArea := types.LogHeaderSize + len(descs)*types.LogDescriptorSize
	sectorStart := descArea
	if rem := sectorStart % types.LogSectorSize; rem != 0 {
		sectorStart += types.LogSectorSize - rem
	}
	dataCount := 0
	for _, d := range descs {
		if !d.zero {
			dataCount++
		}
	}
	b := make([]byte, sectorStart+dataCount*types.LogSectorSize)

	copy(b[0:4], types.SignatureLogEntry)
	binary.LittleEndian.PutUint32(b[8:], uint32(len(b)))
	binary.LittleEndian.PutUint32(b[12:], tail)
	binary.LittleEndian.PutUint64(b[16:], seq)
	binary.LittleEndian.PutUint32(b[24:], uint32(len(descs)))
	putGUID(b, 32, guid)
	binary.LittleEndian.PutUint64(b[48:], testImageSize) // flushed file offset
	binary.LittleEndian.PutUint64(b[56:], testImageSize) // last file offset

	sector := sectorStart
	for i, d := range descs {
		off := types.LogHeaderSize + i*types.LogDescriptorSize
		if d.zero {
			copy(b[off:], types.SignatureZeroDescriptor)
			binary.LittleEndian.PutUint64(b[off+8:], d.zeroLength)
			binary.LittleEndian.PutUint64(b[off+16:], d.fileOffset)
			binary.LittleEndian.PutUint64(b[off+24:], seq)
			continue
		}
		require.Len(t, d.page, types.LogSectorSize)
		copy(b[off:], types.SignatureDataDescriptor)
		copy(b[off+4:off+8], d.page[types.LogSectorSize-4:]) // trailing bytes
		copy(b[off+8:off+16], d.page[0:8])                   // leading bytes
		binary.LittleEndian.PutUint64(b[off+16:], d.fileOffset)
		binary.LittleEndian.PutUint64(b[off+24:], seq)

		s := b[sector : sector+types.LogSectorSize]
		copy(s[0:4], types.SignatureDataSector)
		binary.LittleEndian.PutUint32(s[4:], uint32(seq>>32))
		copy(s[8:8+types.LogDataPayload], d.page[8:types.LogSectorSize-4])
		low := uint32(seq)
		if d.tornSector {
			low++
		}
		binary.LittleEndian.PutUint32(s[types.LogSectorSize-4:], low)
		sector += types.LogSectorSize
	}

	binary.LittleEndian.PutUint32(b[4:], checksum.ComputeZeroed(b, types.ChecksumFieldOffset))
	return b
}

// writeToRing places entry at ring slot, wrapping across the log end.
func writeToRing(img []byte, slot uint64, entry []byte) {
	for i, v := range entry {
		ringOff := (slot + uint64(i)) % testLogLength
		img[testLogOffset+ringOff] = v
	}
}

func makeImage() []byte {
	img := make([]byte, testImageSize)
	// Payload area prefill so zeroing is observable.
	for i := 0x180000; i < 0x1A0000; i++ {
		img[i] = 0xAA
	}
	return img
}

func patternPage(fill byte) []byte {
	page := make([]byte, types.LogSectorSize)
	for i := range page {
		page[i] = fill ^ byte(i)
	}
	return page
}

func replay(t *testing.T, img []byte, guid uuid.UUID) (*types.Log, *device.Overlay) {
	t.Helper()
	dev := device.NewMemory(img)
	view := device.NewOverlay(dev)
	log, err := NewReplayer(dev, view).Replay(testLogOffset, testLogLength, guid)
	require.NoError(t, err)
	return log, view
}

func TestReplaySkipsWhenLogGUIDIsZero(t *testing.T) {
	log, view := replay(t, makeImage(), uuid.Nil)
	assert.Empty(t, log.Replayed)
	assert.Zero(t, view.Dirty())
}

func TestReplayRejectsUnalignedLogLength(t *testing.T) {
	dev := device.NewMemory(makeImage())
	_, err := NewReplayer(dev, device.NewOverlay(dev)).
		Replay(testLogOffset, testLogLength+1, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCorruptStructure))
}

func TestReplayAppliesClosedRunInOrder(t *testing.T) {
	guid := uuid.New()
	page := patternPage(0x5C)

	e1 := makeLogEntry(t, 10, 0, guid, []logDesc{
		{fileOffset: 0x180000, page: page},
	})
	e2 := makeLogEntry(t, 11, 0, guid, []logDesc{
		{zero: true, fileOffset: 0x190000, zeroLength: 2 * types.LogSectorSize},
	})

	img := makeImage()
	writeToRing(img, 0, e1)
	writeToRing(img, uint64(len(e1)), e2)

	log, view := replay(t, img, guid)
	require.Len(t, log.Replayed, 2)
	assert.Equal(t, uint64(10), log.Replayed[0].Header.SequenceNumber)
	assert.Equal(t, uint64(11), log.Replayed[1].Header.SequenceNumber)

	got, err := view.ReadExact(0x180000, types.LogSectorSize)
	require.NoError(t, err)
	assert.Equal(t, page, got)

	zeroed, err := view.ReadExact(0x190000, 2*types.LogSectorSize)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 2*types.LogSectorSize), zeroed)

	// Past the zeroed range the base prefill is untouched.
	after, err := view.ReadExact(0x192000, 16)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 16), after)
}

func TestReplayExcludesTornDataSector(t *testing.T) {
	guid := uuid.New()
	entry := makeLogEntry(t, 5, 0, guid, []logDesc{
		{fileOffset: 0x180000, page: patternPage(0x33), tornSector: true},
		{zero: true, fileOffset: 0x190000, zeroLength: types.LogSectorSize},
	})
	img := makeImage()
	writeToRing(img, 0, entry)

	log, view := replay(t, img, guid)
	require.Len(t, log.Replayed, 1)
	assert.True(t, log.Replayed[0].Descriptors[0].Torn)

	// The torn page is not applied, the zero descriptor of the same entry is.
	got, err := view.ReadExact(0x180000, 16)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 16), got)

	zeroed, err := view.ReadExact(0x190000, types.LogSectorSize)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, types.LogSectorSize), zeroed)
}

func TestReplaySelectsNewestClosedRun(t *testing.T) {
	guid := uuid.New()

	stale := makeLogEntry(t, 4, 0, guid, []logDesc{
		{zero: true, fileOffset: 0x190000, zeroLength: types.LogSectorSize},
	})
	fresh := makeLogEntry(t, 9, 8*types.LogSectorSize, guid, []logDesc{
		{fileOffset: 0x180000, page: patternPage(0x77)},
	})

	img := makeImage()
	writeToRing(img, 0, stale)
	writeToRing(img, 8*types.LogSectorSize, fresh)

	log, view := replay(t, img, guid)
	require.Len(t, log.Replayed, 1)
	assert.Equal(t, uint64(9), log.Replayed[0].Header.SequenceNumber)

	// Only the newest run was applied.
	got, err := view.ReadExact(0x190000, 16)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 16), got)
}

func TestReplayDiscardsOpenRun(t *testing.T) {
	guid := uuid.New()
	// Tail points elsewhere, so the sequence never closes its loop.
	entry := makeLogEntry(t, 3, types.LogSectorSize, guid, []logDesc{
		{zero: true, fileOffset: 0x190000, zeroLength: types.LogSectorSize},
	})
	img := makeImage()
	writeToRing(img, 0, entry)

	log, view := replay(t, img, guid)
	assert.Empty(t, log.Replayed)
	assert.Zero(t, view.Dirty())
}

func TestReplayIgnoresStaleGUIDEntries(t *testing.T) {
	guid := uuid.New()
	stale := makeLogEntry(t, 20, 4*types.LogSectorSize, uuid.New(), []logDesc{
		{zero: true, fileOffset: 0x190000, zeroLength: types.LogSectorSize},
	})
	live := makeLogEntry(t, 2, 0, guid, []logDesc{
		{fileOffset: 0x180000, page: patternPage(0x11)},
	})

	img := makeImage()
	writeToRing(img, 0, live)
	writeToRing(img, 4*types.LogSectorSize, stale)

	log, _ := replay(t, img, guid)
	require.Len(t, log.Replayed, 1)
	assert.Equal(t, uint64(2), log.Replayed[0].Header.SequenceNumber)
}

func TestReplayEntryWrappingRingEnd(t *testing.T) {
	guid := uuid.New()
	page := patternPage(0xE4)
	slot := uint64(testLogLength - types.LogSectorSize)
	entry := makeLogEntry(t, 6, uint32(slot), guid, []logDesc{
		{fileOffset: 0x180000, page: page},
	})
	require.Len(t, entry, 2*types.LogSectorSize)

	img := makeImage()
	writeToRing(img, slot, entry)

	log, view := replay(t, img, guid)
	require.Len(t, log.Replayed, 1)
	assert.Equal(t, slot, log.Replayed[0].Offset)

	got, err := view.ReadExact(0x180000, types.LogSectorSize)
	require.NoError(t, err)
	assert.Equal(t, page, got)
}

func TestReplaySkipsDescriptorTargetsPastLastFileOffset(t *testing.T) {
	guid := uuid.New()
	tests := []struct {
		name string
		desc logDesc
	}{
		{
			name: "zero length far past the file end",
			desc: logDesc{zero: true, fileOffset: 0x180000, zeroLength: 256 * types.MiB},
		},
		{
			name: "zero length overflowing the offset",
			desc: logDesc{zero: true, fileOffset: 0x180000, zeroLength: ^uint64(0) - types.MiB + 1},
		},
		{
			name: "data page beyond the file end",
			desc: logDesc{fileOffset: 4 * types.MiB, page: patternPage(0x42)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := makeImage()
			writeToRing(img, 0, makeLogEntry(t, 12, 0, guid, []logDesc{tt.desc}))

			// The slot is malformed, so nothing replays and the overlay stays
			// empty instead of ballooning one page per 4 KiB of claimed range.
			log, view := replay(t, img, guid)
			assert.Empty(t, log.Replayed)
			assert.Zero(t, view.Dirty())
		})
	}
}

func TestReplaySkipsCorruptSlot(t *testing.T) {
	guid := uuid.New()
	good := makeLogEntry(t, 8, 0, guid, []logDesc{
		{zero: true, fileOffset: 0x190000, zeroLength: types.LogSectorSize},
	})
	bad := makeLogEntry(t, 9, types.LogSectorSize, guid, nil)
	bad[30] ^= 0xFF // breaks the checksum

	img := makeImage()
	writeToRing(img, 0, good)
	writeToRing(img, types.LogSectorSize, bad)

	log, _ := replay(t, img, guid)
	require.Len(t, log.Replayed, 1)
	assert.Equal(t, uint64(8), log.Replayed[0].Header.SequenceNumber)
}
