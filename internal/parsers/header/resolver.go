package header

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-vhdx/internal/interfaces"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// Resolver reads the header section from a device and selects the
// authoritative header and region table copies.
type Resolver struct {
	device interfaces.BlockDevice
	log    *logrus.Entry
}

// NewResolver creates a Resolver over device.
func NewResolver(device interfaces.BlockDevice) *Resolver {
	return &Resolver{
		device: device,
		log:    logrus.WithField("component", "header"),
	}
}

// Resolve decodes the file type identifier, both header copies and both
// region table copies, selecting the current copies. The rejected copies and
// their reasons stay in the returned section for diagnostics.
func (r *Resolver) Resolve() (*types.HeaderSection, error) {
	section := &types.HeaderSection{}

	ftiData, err := r.device.ReadExact(types.FileIdentifierOffset, 8+types.CreatorSize)
	if err != nil {
		return nil, err
	}
	section.FileIdentifier, err = ParseFileTypeIdentifier(ftiData)
	if err != nil {
		return nil, err
	}
	r.log.WithField("creator", section.FileIdentifier.Creator).Debug("file type identifier verified")

	for i, offset := range [2]uint64{types.Header1Offset, types.Header2Offset} {
		data, err := r.device.ReadExact(offset, types.HeaderSize)
		if err != nil {
			return nil, err
		}
		section.Headers[i] = readHeaderCandidate(data, offset)
	}
	section.CurrentIndex, err = selectHeader(&section.Headers)
	if err != nil {
		return nil, err
	}
	current := section.Current()
	r.log.WithFields(logrus.Fields{
		"index":    section.CurrentIndex + 1,
		"sequence": current.SequenceNumber,
	}).Debug("current header selected")

	if err := validateCurrentHeader(current); err != nil {
		return nil, err
	}

	for i, offset := range [2]uint64{types.RegionTable1Offset, types.RegionTable2Offset} {
		data, err := r.device.ReadExact(offset, types.RegionTableSize)
		if err != nil {
			return nil, err
		}
		section.RegionTables[i] = readRegionTableCandidate(data, offset)
	}
	section.ActiveIndex, err = selectRegionTable(&section.RegionTables)
	if err != nil {
		return nil, err
	}
	active := section.ActiveRegionTable()
	if err := validateRegions(active); err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"index":   section.ActiveIndex + 1,
		"regions": len(active.Entries),
	}).Debug("region table resolved")

	for _, guid := range [2]uuid.UUID{types.MetadataRegionGUID, types.BatRegionGUID} {
		if _, ok := section.Region(guid); !ok {
			return nil, fmt.Errorf("required region %s missing from region table: %w",
				guid, types.ErrCorruptStructure)
		}
	}
	return section, nil
}

// validateCurrentHeader enforces the version constraints on the selected
// copy: the format version must be 1, and a nonzero log version is only
// allowed when the log GUID says there is no log to replay.
func validateCurrentHeader(h *types.VhdxHeader) error {
	if h.Version != 1 {
		return fmt.Errorf("header version %d, only version 1 is defined: %w",
			h.Version, types.ErrUnsupportedFeature)
	}
	if h.LogVersion != 0 && h.LogGUID != uuid.Nil {
		return fmt.Errorf("log version %d with pending log %s: %w",
			h.LogVersion, h.LogGUID, types.ErrUnsupportedFeature)
	}
	return nil
}
