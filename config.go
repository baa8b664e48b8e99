// Package sggc implements a segmented generational garbage collector: the
// allocator and collector built on top of the segment set and segment table
// abstractions in package segment and the compressed-pointer handle type in
// package handle.
//
// The library owns no goroutines and does no I/O; every exported method
// must be called from a single goroutine, and none of them block.
package sggc

import (
	"fmt"

	"github.com/bearlytools/sggc/handle"
)

// Config is the collector's compile-time configuration surface, expressed
// as runtime values instead of C preprocessor macros.
type Config struct {
	// OffBits selects NOff = 1<<OffBits object slots per small segment.
	// Must be in [3,6].
	OffBits uint

	// ChunkSize is the fixed byte size of one chunk. Must be a power of two.
	ChunkSize uint32

	// NTypes is the number of distinct client type tags.
	NTypes int

	// KindChunks gives the chunk count per kind; 0 marks a big kind. Every
	// non-zero entry must be <= NOff.
	KindChunks []uint32

	// KindUncollected optionally marks kinds whose objects are permanent
	// once allocated: never promoted, never swept, never traced as part of
	// generational bookkeeping. May be nil, meaning no kind is uncollected.
	// If non-nil it must have the same length as KindChunks. Only small kinds
	// honour the flag; it has no effect on a big kind (KindChunks[k] == 0).
	KindUncollected []bool

	// Aux1Size and Aux2Size are the optional per-object auxiliary data
	// sizes. Zero disables the corresponding aux array entirely.
	Aux1Size uint32
	Aux2Size uint32

	// MaxSegments is the fixed segment-table capacity.
	MaxSegments int32
}

// NKinds returns the number of configured kinds.
func (c Config) NKinds() int { return len(c.KindChunks) }

func (c Config) validate() error {
	if c.OffBits < 3 || c.OffBits > 6 {
		return fmt.Errorf("sggc: OffBits must be in [3,6], got %d", c.OffBits)
	}
	if c.ChunkSize == 0 || c.ChunkSize&(c.ChunkSize-1) != 0 {
		return fmt.Errorf("sggc: ChunkSize must be a power of two, got %d", c.ChunkSize)
	}
	if len(c.KindChunks) == 0 {
		return fmt.Errorf("sggc: at least one kind must be configured")
	}
	nOff := uint32(1) << c.OffBits
	for k, n := range c.KindChunks {
		if n > nOff {
			return fmt.Errorf("sggc: kind %d has %d chunks, exceeds NOff=%d", k, n, nOff)
		}
	}
	if c.KindUncollected != nil && len(c.KindUncollected) != len(c.KindChunks) {
		return fmt.Errorf("sggc: KindUncollected length %d must match KindChunks length %d", len(c.KindUncollected), len(c.KindChunks))
	}
	if c.MaxSegments <= 0 {
		return fmt.Errorf("sggc: MaxSegments must be positive, got %d", c.MaxSegments)
	}
	return nil
}

// Client is implemented by the host to supply the callbacks the collector
// needs: how to classify an allocation request, and how to enumerate
// references.
type Client interface {
	// Kind maps a (type, length) allocation request to a kind.
	Kind(typ uint8, length uint32) uint8

	// NChunks returns the number of chunks a big-kind object of (type,
	// length) requires. Only called for kinds with KindChunks[kind] == 0.
	NChunks(typ uint8, length uint32) uint32

	// FindRootPtrs is called once per Collect, and must call
	// Collector.LookAt for every root reference.
	FindRootPtrs(c *Collector)

	// FindObjectPtrs is called once per object visited during marking (and
	// during remembered-set processing), and must call Collector.LookAt for
	// every outgoing reference from h.
	FindObjectPtrs(c *Collector, h handle.H)
}

// Aux1ReadOnlyProvider is an optional Client capability: a kind may
// advertise a read-only aux1 block shared by every segment of that kind,
// never freed, and never suballocated per segment.
type Aux1ReadOnlyProvider interface {
	Aux1ReadOnly(kind uint8) []byte
}

// Aux2ReadOnlyProvider is the aux2 counterpart of Aux1ReadOnlyProvider.
type Aux2ReadOnlyProvider interface {
	Aux2ReadOnly(kind uint8) []byte
}

// AfterMarker is an optional Client capability: invoked after each drain of
// the mark worklist, letting the client implement weak references by
// promoting objects it wants kept alive based on the marks made so far.
type AfterMarker interface {
	AfterMarking(level, rep int)
}

// FreedNotifier is an optional Client capability: invoked for each big
// segment object about to have its data block freed during sweep, so the
// client can release any external resource it attached to that object.
type FreedNotifier interface {
	NewlyFreed(kind uint8, h handle.H)
}
