// Package handle implements the compressed pointer used throughout the
// collector: a single machine word packing a segment index and an offset
// within that segment.
package handle

import "fmt"

// H is a compressed pointer: (segment index, offset) packed into one word.
type H uint32

// Layout packs and unpacks handles for a given OffBits configuration.
// OffBits must be in [3,6], giving NOff = 1<<OffBits slots per segment.
type Layout struct {
	OffBits uint
	NOff    uint32
	mask    H
}

// NewLayout builds a Layout for the given OffBits, validating it is in [3,6].
func NewLayout(offBits uint) Layout {
	if offBits < 3 || offBits > 6 {
		panic(fmt.Sprintf("handle: OffBits must be in [3,6], got %d", offBits))
	}
	nOff := uint32(1) << offBits
	return Layout{
		OffBits: offBits,
		NOff:    nOff,
		mask:    H(nOff - 1),
	}
}

// Make packs a segment index and offset into a handle. Panics if off is not
// less than NOff.
func (l Layout) Make(seg int32, off uint32) H {
	if off >= l.NOff {
		panic(fmt.Sprintf("handle: offset %d out of range for NOff=%d", off, l.NOff))
	}
	return H(uint32(seg)<<l.OffBits) | H(off)
}

// Seg extracts the segment index from a handle.
func (l Layout) Seg(h H) int32 {
	return int32(uint32(h) >> l.OffBits)
}

// Off extracts the offset from a handle.
func (l Layout) Off(h H) uint32 {
	return uint32(h) & uint32(l.mask)
}

// NoObject is the distinguished "no object" handle for this layout: every
// segment-index bit set, offset zero.
func (l Layout) NoObject() H {
	return H(^uint32(0) &^ uint32(l.mask))
}

// IsNoObject reports whether h is this layout's NoObject value.
func (l Layout) IsNoObject(h H) bool {
	return h == l.NoObject()
}

func (h H) String() string {
	return fmt.Sprintf("0x%08x", uint32(h))
}
