package types

// Vhdx is the fully decoded model of one image: the resolved header section,
// the replayed log, the metadata region, and the BAT. All child structures
// are owned exclusively by this root; nothing is shared or mutated after
// decoding completes.
type Vhdx struct {
	Header   HeaderSection
	Log      Log
	Metadata Metadata
	Bat      []BatEntry

	// FileSize of the backing file, recorded for BAT bounds validation and
	// reporting.
	FileSize uint64
}
