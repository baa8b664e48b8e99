// Package segment implements the segmented set abstraction and the segment
// table: the bitmap-per-segment membership chains linked into per-set
// lists, and the sparse, indexed array of segment descriptors, data blocks,
// and auxiliary arrays. These two are one package because the bitmaps the
// sets operate on live inside the segment descriptor the table owns, the
// same layout a set_segment uses when reached through an application's
// segment table.
package segment

import (
	"fmt"

	"github.com/bearlytools/sggc/gccerr"
	"github.com/bearlytools/sggc/handle"
	"github.com/gostdlib/base/context"
)

// NumChains is the number of independent bitmap lanes a segment carries.
const NumChains = 5

// Chain identifies one of the five bitmap lanes a segment descriptor carries.
type Chain int

const (
	// ChainUnusedFreeNew carries the unused set, the per-kind free-or-new
	// sets, and (by construction, since they're pairwise disjoint) the
	// constants set.
	ChainUnusedFreeNew Chain = iota
	ChainOldGen1
	ChainOldGen2
	ChainOldToNew
	ChainToLookAt
)

const (
	notInChain int32 = -1
	endOfChain int32 = -2
)

// Descriptor is the per-segment metadata: membership bits and list links for
// each chain, plus the kind/type/constant/big classification for the
// segment's objects.
type Descriptor struct {
	Bits [NumChains]uint64
	Next [NumChains]int32

	IsBig     bool
	Kind      uint8
	Type      uint8
	Constant  bool
	MaxChunks uint32
}

func newDescriptor() *Descriptor {
	d := &Descriptor{}
	for c := range d.Next {
		d.Next[c] = notInChain
	}
	return d
}

// Table is the sparse, indexed array of segment descriptors, data blocks,
// and (optional) auxiliary arrays. Capacity is fixed at construction;
// indices [0, Next()) are in use. Segments are never returned to the OS
// during a run: a freed big segment's descriptor moves to the "unused" set
// for reuse by a later big allocation of any type.
type Table struct {
	layout handle.Layout

	desc []*Descriptor
	data [][]byte
	aux1 [][]byte
	aux2 [][]byte
	typ  []uint8

	next int32
	max  int32
}

// NewTable allocates the index arrays sized for max segments. Per-segment
// storage (descriptors, data blocks) is allocated lazily as segments are
// grown.
func NewTable(layout handle.Layout, max int32) (*Table, error) {
	if max <= 0 {
		return nil, gccerr.E(context.Background(), gccerr.CatParameter, gccerr.TypeBadOffBits,
			fmt.Errorf("segment: max segments must be positive, got %d", max))
	}
	return &Table{
		layout: layout,
		desc:   make([]*Descriptor, max),
		data:   make([][]byte, max),
		aux1:   make([][]byte, max),
		aux2:   make([][]byte, max),
		typ:    make([]uint8, max),
		max:    max,
	}, nil
}

// Layout returns the handle layout this table was built with.
func (t *Table) Layout() handle.Layout { return t.layout }

// Next returns the number of segments currently in use.
func (t *Table) Next() int32 { return t.next }

// Max returns the fixed segment capacity.
func (t *Table) Max() int32 { return t.max }

// Full reports whether the table has no room for another segment.
func (t *Table) Full() bool { return t.next >= t.max }

// Grow allocates a new, empty segment descriptor and returns its index, or
// -1 if the table is at capacity.
func (t *Table) Grow() int32 {
	if t.Full() {
		return -1
	}
	idx := t.next
	t.desc[idx] = newDescriptor()
	t.next++
	return idx
}

// Descriptor returns the descriptor for segment idx.
func (t *Table) Descriptor(idx int32) *Descriptor { return t.desc[idx] }

// Data returns the raw data block for segment idx (nil if unallocated).
func (t *Table) Data(idx int32) []byte { return t.data[idx] }

// SetData installs the data block for segment idx.
func (t *Table) SetData(idx int32, b []byte) { t.data[idx] = b }

// Aux1 returns the aux1 block for segment idx (nil if unallocated or unused).
func (t *Table) Aux1(idx int32) []byte { return t.aux1[idx] }

// SetAux1 installs the aux1 block for segment idx.
func (t *Table) SetAux1(idx int32, b []byte) { t.aux1[idx] = b }

// Aux2 returns the aux2 block for segment idx (nil if unallocated or unused).
func (t *Table) Aux2(idx int32) []byte { return t.aux2[idx] }

// SetAux2 installs the aux2 block for segment idx.
func (t *Table) SetAux2(idx int32, b []byte) { t.aux2[idx] = b }

// Type returns the type tag recorded for segment idx.
func (t *Table) Type(idx int32) uint8 { return t.typ[idx] }

// SetType records the type tag for segment idx.
func (t *Table) SetType(idx int32, typ uint8) { t.typ[idx] = typ }

// ObjectType returns the type tag for the object a handle refers to (the
// type is recorded once per segment, since every object within a small
// segment shares the kind it was created for).
func (t *Table) ObjectType(h handle.H) uint8 {
	return t.typ[t.layout.Seg(h)]
}

// ObjectKind returns the kind of the segment containing h.
func (t *Table) ObjectKind(h handle.H) uint8 {
	return t.desc[t.layout.Seg(h)].Kind
}

// IsConstant reports whether the object a handle refers to lives in a
// constant segment.
func (t *Table) IsConstant(h handle.H) bool {
	return t.desc[t.layout.Seg(h)].Constant
}
