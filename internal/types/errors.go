package types

import "errors"

// Fatal decode failure kinds. Callers wrap these with structure, offset and
// expected/actual context via fmt.Errorf("...: %w", ...), so errors.Is can
// still distinguish the kind.
var (
	// ErrCorruptStructure indicates structural corruption: no valid header,
	// no valid region table, or a required table entry missing.
	ErrCorruptStructure = errors.New("vhdx: corrupt structure")

	// ErrUnsupportedFeature indicates a required region or metadata entry
	// with an identifier this implementation does not recognize. The file
	// uses a newer format feature rather than being corrupt.
	ErrUnsupportedFeature = errors.New("vhdx: unsupported required feature")

	// ErrGeometry indicates a BAT offset outside the file, an entry count
	// overflow, or an out-of-enumeration field value. The format has no
	// checksum covering these, so there is no safe fallback.
	ErrGeometry = errors.New("vhdx: inconsistent geometry")
)
