package metadata

import (
	"fmt"
	"math/bits"

	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// deriveGeometry validates the typed metadata values against their closed
// enumerations and computes the values that size the BAT.
func deriveGeometry(meta *types.Metadata) error {
	blockSize := uint64(meta.FileParameters.BlockSize)
	if blockSize < types.MinBlockSize || blockSize > types.MaxBlockSize ||
		bits.OnesCount64(blockSize) != 1 {
		return fmt.Errorf("block size %d: must be a power of two in [%d, %d]: %w",
			blockSize, types.MinBlockSize, types.MaxBlockSize, types.ErrGeometry)
	}
	switch meta.LogicalSectorSize {
	case types.SectorSize512, types.SectorSize4096:
	default:
		return fmt.Errorf("logical sector size %d: must be 512 or 4096: %w",
			meta.LogicalSectorSize, types.ErrGeometry)
	}
	switch meta.PhysicalSectorSize {
	case types.SectorSize512, types.SectorSize4096:
	default:
		return fmt.Errorf("physical sector size %d: must be 512 or 4096: %w",
			meta.PhysicalSectorSize, types.ErrGeometry)
	}
	if meta.VirtualDiskSize == 0 || meta.VirtualDiskSize%uint64(meta.LogicalSectorSize) != 0 {
		return fmt.Errorf("virtual disk size %d: must be a nonzero multiple of the logical sector size: %w",
			meta.VirtualDiskSize, types.ErrGeometry)
	}

	g := &meta.Geometry
	// One sector bitmap block describes 2^23 logical sectors worth of
	// payload blocks.
	g.ChunkRatio = (1 << 23) * uint64(meta.LogicalSectorSize) / blockSize
	g.PayloadBlocksCount = (meta.VirtualDiskSize + blockSize - 1) / blockSize
	// Sector bitmap blocks exist only on differencing disks.
	if meta.FileParameters.HasParent {
		g.SectorBitmapsBlocksCount = (g.PayloadBlocksCount + g.ChunkRatio - 1) / g.ChunkRatio
	}
	g.TotalBatEntriesFixedDynamic = g.PayloadBlocksCount
	g.TotalBatEntriesDifferencing = g.PayloadBlocksCount +
		(g.PayloadBlocksCount-1)/g.ChunkRatio + 1
	return nil
}
