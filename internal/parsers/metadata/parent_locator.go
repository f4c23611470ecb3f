package metadata

import (
	"fmt"

	"github.com/deploymenttheory/go-vhdx/internal/binread"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// parseParentLocator decodes the differencing disk's parent locator: a
// header (LocatorType GUID, reserved, KeyValueCount) followed by 12-byte
// key/value offset records pointing at UTF-16LE strings within the item.
// Only the VHDX locator type is defined by the format.
func parseParentLocator(data []byte) (*types.ParentLocator, error) {
	locator := &types.ParentLocator{
		LocatorType: binread.GUID(data, 0),
		Entries:     make(map[string]string),
	}
	if locator.LocatorType != types.VhdxParentLocatorGUID {
		return nil, fmt.Errorf("parent locator type %s not recognized: %w",
			locator.LocatorType, types.ErrUnsupportedFeature)
	}
	count := int(binread.U16(data, 18))
	if 20+count*12 > len(data) {
		return nil, fmt.Errorf("parent locator: %d key/value records exceed item of %d bytes: %w",
			count, len(data), types.ErrCorruptStructure)
	}
	for i := 0; i < count; i++ {
		rec := data[20+i*12:]
		keyOff := binread.U32(rec, 0)
		valOff := binread.U32(rec, 4)
		keyLen := uint32(binread.U16(rec, 8))
		valLen := uint32(binread.U16(rec, 10))
		if uint64(keyOff)+uint64(keyLen) > uint64(len(data)) ||
			uint64(valOff)+uint64(valLen) > uint64(len(data)) {
			return nil, fmt.Errorf("parent locator record %d outside item bounds: %w",
				i, types.ErrCorruptStructure)
		}
		key, err := binread.UTF16String(data[keyOff : keyOff+keyLen])
		if err != nil {
			return nil, fmt.Errorf("parent locator key %d: %w", i, err)
		}
		value, err := binread.UTF16String(data[valOff : valOff+valLen])
		if err != nil {
			return nil, fmt.Errorf("parent locator value for %q: %w", key, err)
		}
		locator.Entries[key] = value
	}
	return locator, nil
}
