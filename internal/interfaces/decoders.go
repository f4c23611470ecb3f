package interfaces

import (
	"github.com/google/uuid"

	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// HeaderResolver decodes the file type identifier, the redundant header pair
// and the redundant region table pair, selecting the authoritative copies.
type HeaderResolver interface {
	Resolve() (*types.HeaderSection, error)
}

// LogReplayer scans the circular log region, selects the newest valid closed
// run and applies its descriptors to the logical file view. The zero logGUID
// sentinel skips replay. Replay never fails the decode.
type LogReplayer interface {
	Replay(logOffset uint64, logLength uint32, logGUID uuid.UUID) (*types.Log, error)
}

// MetadataDecoder decodes the metadata region directory, the known typed
// items, and the derived geometry.
type MetadataDecoder interface {
	Decode(region types.RegionTableEntry) (*types.Metadata, error)
}

// BatDecoder decodes the BAT region against metadata-derived geometry.
type BatDecoder interface {
	Decode(region types.RegionTableEntry, meta *types.Metadata) ([]types.BatEntry, error)
}
