// Package services wires the decode pipeline together in its strict
// data-dependency order: header section, then log replay, then metadata and
// BAT through the replayed file view.
package services

import (
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-vhdx/internal/device"
	"github.com/deploymenttheory/go-vhdx/internal/interfaces"
	"github.com/deploymenttheory/go-vhdx/internal/parsers/bat"
	"github.com/deploymenttheory/go-vhdx/internal/parsers/header"
	logparser "github.com/deploymenttheory/go-vhdx/internal/parsers/log"
	"github.com/deploymenttheory/go-vhdx/internal/parsers/metadata"
	"github.com/deploymenttheory/go-vhdx/internal/types"
)

// VhdxReader decodes one image into its validated model. Each reader is
// independent; decoding many files concurrently needs no coordination.
type VhdxReader struct {
	device interfaces.BlockDevice
	log    *logrus.Entry
}

// NewVhdxReader creates a reader over an already-open device.
func NewVhdxReader(dev interfaces.BlockDevice) *VhdxReader {
	return &VhdxReader{
		device: dev,
		log:    logrus.WithField("component", "vhdx"),
	}
}

// OpenFile decodes the image at path.
func OpenFile(path string) (*types.Vhdx, error) {
	dev, err := device.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer dev.Close()
	return NewVhdxReader(dev).Decode()
}

// Decode runs the full pipeline. The log must be replayed before the
// metadata and BAT regions are read: replay may rewrite the very bytes those
// decoders consume.
func (r *VhdxReader) Decode() (*types.Vhdx, error) {
	section, err := header.NewResolver(r.device).Resolve()
	if err != nil {
		return nil, err
	}
	current := section.Current()

	view := device.NewOverlay(r.device)
	replayed, err := logparser.NewReplayer(r.device, view).Replay(
		current.LogOffset, current.LogLength, current.LogGUID)
	if err != nil {
		return nil, err
	}
	if view.Dirty() > 0 {
		r.log.WithField("pages", view.Dirty()).Debug("log replay rewrote file view")
	}

	metaRegion, _ := section.Region(types.MetadataRegionGUID)
	meta, err := metadata.NewDecoder(view).Decode(metaRegion)
	if err != nil {
		return nil, err
	}

	batRegion, _ := section.Region(types.BatRegionGUID)
	entries, err := bat.NewDecoder(view).Decode(batRegion, meta)
	if err != nil {
		return nil, err
	}

	return &types.Vhdx{
		Header:   *section,
		Log:      *replayed,
		Metadata: *meta,
		Bat:      entries,
		FileSize: r.device.Size(),
	}, nil
}
