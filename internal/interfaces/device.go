package interfaces

// BlockDevice provides bounded, random-access reads from the backing image.
// Implementations wrap I/O failures with the offset and length attempted.
type BlockDevice interface {
	// ReadExact returns exactly length bytes at offset, or an error.
	ReadExact(offset uint64, length uint32) ([]byte, error)

	// Size returns the total byte size of the device.
	Size() uint64
}
