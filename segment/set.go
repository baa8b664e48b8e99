package segment

import (
	"fmt"

	"github.com/bearlytools/sggc/gccerr"
	"github.com/bearlytools/sggc/handle"
	"github.com/bearlytools/sggc/internal/bitops"
	"github.com/gostdlib/base/context"
)

// Set is a membership predicate over handles, realised as one chain plus a
// linked list of the chain's non-empty segments. Membership of a handle h in
// set S is the bit at position Off(h) in segment Seg(h)'s Bits[S.chain]. A
// segment appears in at most one set per chain.
//
// Storing the bitmap in the segment (not in the set) means any set sharing a
// chain can be tested in O(1) per handle, and a mark pass touches at most 64
// bits plus the segment's data, giving good locality. Removal is lazy: the
// list link for an emptied segment is only cleaned up when traversal reaches
// it, except that a segment emptied while at the list head is unlinked
// immediately.
type Set struct {
	t     *Table
	chain Chain
	first int32
}

// NewSet returns an empty set using the given chain. A set must never
// contain elements whose segment index is shared with another set using the
// same chain: a segment's bitmap for a chain is single-owner, so two sets
// sharing a chain must partition segments between them, never objects
// within one.
func NewSet(t *Table, chain Chain) *Set {
	return &Set{t: t, chain: chain, first: endOfChain}
}

// Chain returns the chain this set is linked through.
func (s *Set) Chain() Chain { return s.chain }

func invariantViolation(typ gccerr.Type, format string, args ...any) {
	err := gccerr.E(context.Background(), gccerr.CatInvariant, typ, fmt.Errorf(format, args...), gccerr.WithStackTrace())
	panic(err)
}

// Contains reports whether h is a member of s.
func (s *Set) Contains(h handle.H) bool {
	idx := s.t.layout.Seg(h)
	off := s.t.layout.Off(h)
	d := s.t.desc[idx]
	return bitops.TestBit(d.Bits[s.chain], uint(off))
}

// ChainContains reports whether h is a member of any set using chain,
// without needing a specific Set value: the single bit test answers "is
// this handle new/unused/free" (or whatever the chain represents) directly.
func ChainContains(t *Table, chain Chain, h handle.H) bool {
	idx := t.layout.Seg(h)
	off := t.layout.Off(h)
	d := t.desc[idx]
	return bitops.TestBit(d.Bits[chain], uint(off))
}

// Add makes h a member of s, linking its segment into s's list if this is
// the segment's first member on this chain. Returns true if h was already a
// member.
func (s *Set) Add(h handle.H) bool {
	idx := s.t.layout.Seg(h)
	off := s.t.layout.Off(h)
	d := s.t.desc[idx]

	if bitops.TestBit(d.Bits[s.chain], uint(off)) {
		return true
	}

	if d.Next[s.chain] == notInChain {
		d.Next[s.chain] = s.first
		s.first = idx
	}

	d.Bits[s.chain] = bitops.SetBit(d.Bits[s.chain], uint(off))
	return false
}

// Remove clears h's membership. If the segment becomes empty on this chain
// and sits at the list head, the head advances now; otherwise the stale link
// is cleaned up lazily during the next traversal. Returns true if h had been
// a member.
func (s *Set) Remove(h handle.H) bool {
	idx := s.t.layout.Seg(h)
	off := s.t.layout.Off(h)
	d := s.t.desc[idx]

	if !bitops.TestBit(d.Bits[s.chain], uint(off)) {
		return false
	}

	d.Bits[s.chain] = bitops.ClearBit(d.Bits[s.chain], uint(off))
	if d.Bits[s.chain] == 0 && s.first == idx {
		s.first = d.Next[s.chain]
		d.Next[s.chain] = notInChain
	}

	return true
}

// removeEmptyFront trims any segments at the front of the list whose bits
// are all zero, so future searches don't have to skip over them again.
func (s *Set) removeEmptyFront() {
	for s.first != endOfChain {
		d := s.t.desc[s.first]
		if d.Bits[s.chain] != 0 {
			break
		}
		next := d.Next[s.chain]
		d.Next[s.chain] = notInChain
		s.first = next
	}
}

// First returns some member of s (the first bit set in the first non-empty
// segment of its list), optionally clearing that bit. Returns NoObject if s
// is empty.
func (s *Set) First(remove bool) handle.H {
	s.removeEmptyFront()

	if s.first == endOfChain {
		return s.t.layout.NoObject()
	}

	d := s.t.desc[s.first]
	b := d.Bits[s.chain]
	o := bitops.FirstSetBit(b)

	if remove {
		d.Bits[s.chain] = bitops.ClearBit(b, o)
	}

	return s.t.layout.Make(s.first, uint32(o))
}

// Next returns the member of s following h, scanning the remaining bits in
// h's segment and then following the chain, unlinking any empty segments it
// passes over. h must currently be a member of s; violating that is a fatal
// programming error. Optionally clears h's own bit (without removing the
// returned value). Returns NoObject if there are no further members.
func (s *Set) Next(h handle.H, remove bool) handle.H {
	idx := s.t.layout.Seg(h)
	off := s.t.layout.Off(h)
	d := s.t.desc[idx]

	b := d.Bits[s.chain] >> off
	if b&1 == 0 {
		invariantViolation(gccerr.TypeNotAMember, "segment: Next called with %v which is not a member of chain %d", h, s.chain)
	}
	if remove {
		d.Bits[s.chain] = bitops.ClearBit(d.Bits[s.chain], uint(off))
	}
	off++
	b >>= 1

	if b == 0 {
		for {
			nidx := d.Next[s.chain]
			if nidx == endOfChain {
				return s.t.layout.NoObject()
			}
			nd := s.t.desc[nidx]
			nb := nd.Bits[s.chain]
			if nb != 0 {
				b = nb
				idx = nidx
				break
			}
			d.Next[s.chain] = nd.Next[s.chain]
			nd.Next[s.chain] = notInChain
		}
		off = 0
	}

	off += uint32(bitops.FirstSetBit(b))
	return s.t.layout.Make(idx, off)
}

// Count returns the number of members of s, by full traversal. Intended for
// diagnostics, not the hot path.
func (s *Set) Count() uint {
	var n uint
	noObj := s.t.layout.NoObject()
	h := s.First(false)
	for h != noObj {
		n++
		h = s.Next(h, false)
	}
	return n
}

// FirstBits returns the raw membership mask of the first segment of s's
// list, after trimming empty segments from the front. Returns 0 if s is
// empty.
func (s *Set) FirstBits() uint64 {
	s.removeEmptyFront()
	if s.first == endOfChain {
		return 0
	}
	return s.t.desc[s.first].Bits[s.chain]
}

// SegmentBits returns the membership mask of the segment containing h.
func (s *Set) SegmentBits(h handle.H) uint64 {
	idx := s.t.layout.Seg(h)
	return s.t.desc[idx].Bits[s.chain]
}

// AssignSegmentBits overwrites the membership mask of the segment
// containing h. Used by the allocator to install an "all slots free"
// pattern in one store when a fresh segment is carved up for a kind.
func (s *Set) AssignSegmentBits(h handle.H, bits uint64) {
	idx := s.t.layout.Seg(h)
	d := s.t.desc[idx]
	if bits != 0 && d.Next[s.chain] == notInChain {
		d.Next[s.chain] = s.first
		s.first = idx
	}
	d.Bits[s.chain] = bits
}

// MoveFirst unlinks src's first segment and prepends it to dst. src and dst
// must use the same chain, and src must not be empty; both are fatal
// programming errors if violated.
func MoveFirst(src, dst *Set) {
	if src.chain != dst.chain {
		invariantViolation(gccerr.TypeChainMismatch, "segment: MoveFirst src chain %d != dst chain %d", src.chain, dst.chain)
	}
	if src.first == endOfChain {
		invariantViolation(gccerr.TypeCorruptLinkage, "segment: MoveFirst called on empty src set")
	}

	chain := src.chain
	idx := src.first
	d := src.t.desc[idx]
	if d.Bits[chain] == 0 {
		invariantViolation(gccerr.TypeCorruptLinkage, "segment: MoveFirst src's first segment has no bits set")
	}

	src.first = d.Next[chain]
	d.Next[chain] = dst.first
	dst.first = idx
}
