// Package listinterp is a small external collaborator for package sggc: a
// two-type toy heap (pairs and integer vectors) with a root-protection stack,
// built the way a host language runtime would actually wire up the
// collector's Client interface. It exists to exercise Alloc, Collect, and
// the write barrier end to end, the way test-interp.c exercises the original
// library.
package listinterp

import (
	"encoding/binary"

	"github.com/bearlytools/sggc"
	"github.com/bearlytools/sggc/handle"
	"github.com/gostdlib/base/context"
)

// Client types. Pair is a small kind holding two handles; Vector is a big
// kind holding a run of int32 values.
const (
	TypePair   uint8 = 1
	TypeVector uint8 = 2
)

const (
	kindPair   uint8 = 0
	kindVector uint8 = 1
)

const chunkSize = 4 // one int32 per chunk

// Heap wraps a *sggc.Collector configured for the pair/vector domain, plus
// the nil object and a root-protection stack modelled on test-interp.c's
// PROT1/PROT2/PROT3 macros.
type Heap struct {
	c   *sggc.Collector
	nil handle.H

	roots []*handle.H
}

// New builds a Heap with room for maxSegments segments.
func New(ctx context.Context, maxSegments int32) (*Heap, error) {
	cfg := sggc.Config{
		OffBits:     6,
		ChunkSize:   chunkSize,
		NTypes:      3,
		KindChunks:  []uint32{2, 0}, // pair: 2 chunks; vector: big
		MaxSegments: maxSegments,
	}
	h := &Heap{}
	c, err := sggc.New(ctx, cfg, h)
	if err != nil {
		return nil, err
	}
	h.c = c
	h.nil = c.Alloc(ctx, TypePair, 0) // the nil object is a zeroed pair
	return h, nil
}

// Collector exposes the underlying collector for direct use (Collect,
// Info, and so on).
func (h *Heap) Collector() *sggc.Collector { return h.c }

// Nil returns the distinguished empty-list handle.
func (h *Heap) Nil() handle.H { return h.nil }

// Protect pushes v onto the root stack, returning a function that pops it.
// Mirrors PROT1/PROT2/PROT3: callers defer the returned func to unwind in
// the right order.
func (h *Heap) Protect(v *handle.H) func() {
	h.roots = append(h.roots, v)
	return func() {
		h.roots = h.roots[:len(h.roots)-1]
	}
}

// Kind implements sggc.Client.
func (h *Heap) Kind(typ uint8, length uint32) uint8 {
	if typ == TypeVector {
		return kindVector
	}
	return kindPair
}

// NChunks implements sggc.Client: a vector of length n occupies n chunks of
// chunkSize bytes (one int32 each), at least one so a zero-length vector
// still has a distinct address.
func (h *Heap) NChunks(typ uint8, length uint32) uint32 {
	if length == 0 {
		return 1
	}
	return length
}

// FindRootPtrs implements sggc.Client: the nil object and every protected
// root are live.
func (h *Heap) FindRootPtrs(c *sggc.Collector) {
	c.LookAt(h.nil)
	for _, r := range h.roots {
		c.LookAt(*r)
	}
}

// FindObjectPtrs implements sggc.Client: only pairs carry outgoing
// references (their two fields); vectors are leaves.
func (h *Heap) FindObjectPtrs(c *sggc.Collector, v handle.H) {
	if c.Type(v) != TypePair {
		return
	}
	x, y := h.PairFields(v)
	if !c.LookAt(x) {
		return
	}
	c.LookAt(y)
}

// NewPair allocates a pair with fields initialized to nil.
func (h *Heap) NewPair(ctx context.Context) handle.H {
	p := h.c.Alloc(ctx, TypePair, 0)
	if p == h.c.NoObject() {
		return p
	}
	h.SetPair(p, h.nil, h.nil)
	return p
}

// NewVector allocates an integer vector and copies data into it (data may
// be shorter than the allocated length; the remainder stays zero).
func (h *Heap) NewVector(ctx context.Context, data []int32) handle.H {
	v := h.c.Alloc(ctx, TypeVector, uint32(len(data)))
	if v == h.c.NoObject() {
		return v
	}
	h.SetVectorData(v, data)
	return v
}

// PairFields returns a pair's two fields.
func (h *Heap) PairFields(p handle.H) (x, y handle.H) {
	b := h.c.Data(p)
	return handle.H(binary.LittleEndian.Uint32(b[0:4])), handle.H(binary.LittleEndian.Uint32(b[4:8]))
}

// SetPair sets both fields of a pair, applying the write barrier for each.
func (h *Heap) SetPair(p, x, y handle.H) {
	if !h.c.YoungestGeneration(p) {
		h.c.OldToNewCheck(p, x)
		h.c.OldToNewCheck(p, y)
	}
	b := h.c.Data(p)
	binary.LittleEndian.PutUint32(b[0:4], uint32(x))
	binary.LittleEndian.PutUint32(b[4:8], uint32(y))
}

// SetPairX sets only the x field, applying the write barrier.
func (h *Heap) SetPairX(p, x handle.H) {
	if !h.c.YoungestGeneration(p) {
		h.c.OldToNewCheck(p, x)
	}
	binary.LittleEndian.PutUint32(h.c.Data(p)[0:4], uint32(x))
}

// SetPairY sets only the y field, applying the write barrier.
func (h *Heap) SetPairY(p, y handle.H) {
	if !h.c.YoungestGeneration(p) {
		h.c.OldToNewCheck(p, y)
	}
	binary.LittleEndian.PutUint32(h.c.Data(p)[4:8], uint32(y))
}

// VectorData returns a copy of a vector's elements.
func (h *Heap) VectorData(v handle.H) []int32 {
	b := h.c.Data(v)
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4*i : 4*i+4]))
	}
	return out
}

// SetVectorData overwrites a vector's elements (vectors hold no references,
// so no write barrier call is needed).
func (h *Heap) SetVectorData(v handle.H, data []int32) {
	b := h.c.Data(v)
	for i, x := range data {
		binary.LittleEndian.PutUint32(b[4*i:4*i+4], uint32(x))
	}
}
