package device

import (
	"fmt"
	"io"
)

// MemoryDevice serves reads from a byte slice. Used by tests and by callers
// that already hold the image in memory.
type MemoryDevice struct {
	data []byte
}

// NewMemory wraps data without copying it.
func NewMemory(data []byte) *MemoryDevice {
	return &MemoryDevice{data: data}
}

// ReadExact returns exactly length bytes at offset.
func (d *MemoryDevice) ReadExact(offset uint64, length uint32) ([]byte, error) {
	end := offset + uint64(length)
	if end > uint64(len(d.data)) {
		return nil, fmt.Errorf("read %d bytes at offset %d: beyond device size %d: %w",
			length, offset, len(d.data), io.ErrUnexpectedEOF)
	}
	buf := make([]byte, length)
	copy(buf, d.data[offset:end])
	return buf, nil
}

// Size returns the slice length.
func (d *MemoryDevice) Size() uint64 {
	return uint64(len(d.data))
}
