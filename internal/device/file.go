// Package device implements the byte-source collaborators the decoders read
// through: a file-backed device, an in-memory device, and the overlay view
// that log replay writes into.
package device

import (
	"fmt"
	"io"
	"os"
)

// FileDevice reads an image from the local filesystem.
type FileDevice struct {
	file *os.File
	size uint64
}

// OpenFile opens path read-only.
func OpenFile(path string) (*FileDevice, error) {
	if path == "" {
		return nil, fmt.Errorf("image path cannot be empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}
	return &FileDevice{file: f, size: uint64(info.Size())}, nil
}

// ReadExact returns exactly length bytes at offset.
func (d *FileDevice) ReadExact(offset uint64, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	n, err := d.file.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", length, offset, err)
	}
	if uint32(n) < length {
		return nil, fmt.Errorf("read %d bytes at offset %d: short read of %d bytes: %w",
			length, offset, n, io.ErrUnexpectedEOF)
	}
	return buf, nil
}

// Size returns the file size in bytes.
func (d *FileDevice) Size() uint64 {
	return d.size
}

// Close releases the underlying file handle.
func (d *FileDevice) Close() error {
	return d.file.Close()
}
