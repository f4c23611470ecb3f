package device

import (
	"fmt"

	"github.com/deploymenttheory/go-vhdx/internal/interfaces"
)

// PageSize is the granularity of log replay writes.
const PageSize = 4096

// Overlay is the logical file view produced by log replay: a base device plus
// an in-memory set of replayed 4 KiB pages. Structures decoded after replay
// read through the overlay so they observe the flushed state of the file
// without the image itself being touched.
type Overlay struct {
	base  interfaces.BlockDevice
	pages map[uint64][]byte // keyed by page-aligned byte offset
}

// NewOverlay wraps base with an empty page set.
func NewOverlay(base interfaces.BlockDevice) *Overlay {
	return &Overlay{base: base, pages: make(map[uint64][]byte)}
}

// WritePage installs a replayed 4 KiB page at offset. offset must be page
// aligned and page must be exactly one page long.
func (o *Overlay) WritePage(offset uint64, page []byte) error {
	if offset%PageSize != 0 {
		return fmt.Errorf("overlay write at unaligned offset %d", offset)
	}
	if len(page) != PageSize {
		return fmt.Errorf("overlay write of %d bytes, want %d", len(page), PageSize)
	}
	p := make([]byte, PageSize)
	copy(p, page)
	o.pages[offset] = p
	return nil
}

// ZeroRange installs zero pages across [offset, offset+length). Both bounds
// must be page aligned.
func (o *Overlay) ZeroRange(offset, length uint64) error {
	if offset%PageSize != 0 || length%PageSize != 0 {
		return fmt.Errorf("overlay zero of [%d, %d) not page aligned", offset, offset+length)
	}
	for p := offset; p < offset+length; p += PageSize {
		o.pages[p] = make([]byte, PageSize)
	}
	return nil
}

// Dirty reports how many pages replay has installed.
func (o *Overlay) Dirty() int {
	return len(o.pages)
}

// ReadExact reads from the base device and patches in any overlay pages that
// intersect the range.
func (o *Overlay) ReadExact(offset uint64, length uint32) ([]byte, error) {
	buf, err := o.base.ReadExact(offset, length)
	if err != nil {
		return nil, err
	}
	if len(o.pages) == 0 {
		return buf, nil
	}
	end := offset + uint64(length)
	for page := offset - offset%PageSize; page < end; page += PageSize {
		src, ok := o.pages[page]
		if !ok {
			continue
		}
		// Intersect [page, page+PageSize) with [offset, end).
		from := page
		if from < offset {
			from = offset
		}
		to := page + PageSize
		if to > end {
			to = end
		}
		copy(buf[from-offset:to-offset], src[from-page:to-page])
	}
	return buf, nil
}

// Size returns the base device size.
func (o *Overlay) Size() uint64 {
	return o.base.Size()
}
