// Package header decodes the fixed header section of an image: the file type
// identifier, the redundant header pair, and the redundant region table pair.
package header

import (
	"fmt"

	"github.com/deploymenttheory/go-vhdx/internal/binread"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// ParseFileTypeIdentifier decodes the structure at file offset zero. data
// must cover the signature and the 512-byte UTF-16 creator field.
func ParseFileTypeIdentifier(data []byte) (types.FileTypeIdentifier, error) {
	if len(data) < 8+types.CreatorSize {
		return types.FileTypeIdentifier{}, fmt.Errorf(
			"file type identifier: %d bytes, need %d: %w",
			len(data), 8+types.CreatorSize, types.ErrCorruptStructure)
	}
	sig := string(data[0:8])
	if sig != types.SignatureFileIdentifier {
		return types.FileTypeIdentifier{}, fmt.Errorf(
			"file type identifier at offset 0: signature %q, want %q: %w",
			sig, types.SignatureFileIdentifier, types.ErrCorruptStructure)
	}
	creator, err := binread.UTF16String(data[8 : 8+types.CreatorSize])
	if err != nil {
		return types.FileTypeIdentifier{}, fmt.Errorf("file type identifier creator: %w", err)
	}
	return types.FileTypeIdentifier{Signature: sig, Creator: creator}, nil
}
