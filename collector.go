package sggc

import (
	"github.com/bearlytools/sggc/gccerr"
	"github.com/bearlytools/sggc/handle"
	"github.com/bearlytools/sggc/internal/bitops"
	"github.com/bearlytools/sggc/segment"
	"github.com/gostdlib/base/context"
	pkgerrors "github.com/pkg/errors"
)

// Info mirrors sggc_info: space-usage counters kept up to date after Alloc
// and Collect.
type Info struct {
	Gen0Count  uint // newly allocated, not yet surviving a collection
	Gen1Count  uint // survived one collection
	Gen2Count  uint // survived more than one collection
	UncolCount uint // permanently uncollected objects
	BigChunks  uint // chunks in newly allocated big objects this round
}

// Collector owns one segmented generational heap. It is not safe for
// concurrent use: every method must run on a single goroutine.
type Collector struct {
	cfg    Config
	layout handle.Layout
	table  *segment.Table
	client Client
	blocks *blockPools

	unused    *segment.Set
	freeOrNew []*segment.Set
	constants *segment.Set
	oldGen1   *segment.Set
	oldGen2   *segment.Set
	oldToNew  *segment.Set
	toLookAt  *segment.Set

	uncollected []*segment.Set // per kind, only populated where cfg.KindUncollected[k]

	kindFull []uint64 // "all slots free" bit pattern per small kind

	nextFree []handle.H // next_free[k]: allocator cursor into free_or_new[k]

	noReuse bool // debug stress-test knob: never reuse a collected slot

	// check is the remembered-set scan state LookAt consults and updates
	// while processRememberedSet is running; 0 outside of that phase.
	check int

	info Info
}

// New constructs a Collector, validating cfg and allocating the segment
// table and collector sets. The client must not be nil.
func New(ctx context.Context, cfg Config, client Client) (*Collector, error) {
	if err := cfg.validate(); err != nil {
		return nil, gccerr.E(ctx, gccerr.CatParameter, gccerr.TypeBadOffBits, err)
	}
	if client == nil {
		return nil, gccerr.E(ctx, gccerr.CatParameter, gccerr.TypeBadOffBits, pkgerrors.New("sggc: client must not be nil"))
	}

	layout := handle.NewLayout(cfg.OffBits)

	table, err := segment.NewTable(layout, cfg.MaxSegments)
	if err != nil {
		return nil, gccerr.E(ctx, gccerr.CatCapacity, gccerr.TypeSegmentTable, pkgerrors.Wrap(err, "sggc: allocating segment table"))
	}

	nKinds := cfg.NKinds()
	c := &Collector{
		cfg:            cfg,
		layout:         layout,
		table:          table,
		client:         client,
		blocks:         newBlockPools(),
		unused:         segment.NewSet(table, segment.ChainUnusedFreeNew),
		freeOrNew:      make([]*segment.Set, nKinds),
		constants:      segment.NewSet(table, segment.ChainUnusedFreeNew),
		oldGen1:        segment.NewSet(table, segment.ChainOldGen1),
		oldGen2:        segment.NewSet(table, segment.ChainOldGen2),
		oldToNew:       segment.NewSet(table, segment.ChainOldToNew),
		toLookAt:       segment.NewSet(table, segment.ChainToLookAt),
		uncollected: make([]*segment.Set, nKinds),
		kindFull:    make([]uint64, nKinds),
		nextFree:    make([]handle.H, nKinds),
	}

	nOff := uint(layout.NOff)
	for k, chunks := range cfg.KindChunks {
		c.freeOrNew[k] = segment.NewSet(table, segment.ChainUnusedFreeNew)
		c.nextFree[k] = layout.NoObject()

		if chunks == 0 {
			c.kindFull[k] = 1
			continue
		}
		var full uint64
		for off := uint(0); off < nOff; off += uint(chunks) {
			full = bitops.SetBit(full, off)
		}
		c.kindFull[k] = full

		if cfg.KindUncollected != nil && cfg.KindUncollected[k] {
			// Uncollected objects are permanent once allocated: they share
			// the gen2 chain's storage lane, but since an uncollected kind's
			// segments never enter the collector's own gen2 set, the two
			// lists never observe each other (same sharing discipline as
			// the per-kind free_or_new sets above).
			c.uncollected[k] = segment.NewSet(table, segment.ChainOldGen2)
		}
	}

	return c, nil
}

// Info returns a snapshot of the current space-usage counters.
func (c *Collector) Info() Info { return c.info }

// SetNoReuse toggles the debug stress-test mode in which collected small-kind
// slots are never reused: every subsequent small allocation extends a fresh
// segment instead. Big allocations still recycle descriptors from the unused
// set. This maximizes the chance that a missing write-barrier call manifests
// promptly as a dangling reference, rather than by chance reusing the same
// memory.
func (c *Collector) SetNoReuse(enabled bool) { c.noReuse = enabled }

// YoungestGeneration reports whether h is presently in the youngest
// generation (free-or-new or unused), in which case a write barrier call
// from h can be skipped.
func (c *Collector) YoungestGeneration(h handle.H) bool {
	return segment.ChainContains(c.table, segment.ChainUnusedFreeNew, h)
}

// NotMarked reports whether h has not yet been marked reachable in the
// collection currently in progress. Only meaningful from within
// AfterMarker.AfterMarking.
func (c *Collector) NotMarked(h handle.H) bool {
	return segment.ChainContains(c.table, segment.ChainUnusedFreeNew, h)
}

// IsConstant reports whether h refers to a client-registered constant.
func (c *Collector) IsConstant(h handle.H) bool {
	return c.table.IsConstant(h)
}

// IsUncollected reports whether h's kind was configured as permanently
// uncollected.
func (c *Collector) IsUncollected(h handle.H) bool {
	return c.uncollectedSet(c.table.ObjectKind(h)) != nil
}

func (c *Collector) uncollectedSet(kind uint8) *segment.Set {
	if int(kind) >= len(c.uncollected) {
		return nil
	}
	return c.uncollected[kind]
}

// NextUncollectedOfKind returns the uncollected object of the given kind
// following h in the kind's uncollected set (higher offsets in h's segment
// first, then the segments further along the set's list, which holds the
// most recently started segment first), or NoObject if h is the last (or the
// kind has no uncollected set). Used to enumerate a permanent kind's
// population.
func (c *Collector) NextUncollectedOfKind(kind uint8, h handle.H) handle.H {
	s := c.uncollectedSet(kind)
	if s == nil {
		return c.layout.NoObject()
	}
	return s.Next(h, false)
}

// Type returns the client type tag recorded for the object h refers to.
func (c *Collector) Type(h handle.H) uint8 {
	return c.table.ObjectType(h)
}

// Kind returns the segment kind of the object h refers to.
func (c *Collector) Kind(h handle.H) uint8 {
	return c.table.ObjectKind(h)
}

// NoObject is this collector's distinguished "no object" handle.
func (c *Collector) NoObject() handle.H {
	return c.layout.NoObject()
}

// Data returns the raw byte storage for the object h refers to, starting at
// its own offset (for a small object, the slice begins at off*ChunkSize
// bytes into the segment's data block and spans chunks[kind]*ChunkSize
// bytes; for a big object, the whole block).
func (c *Collector) Data(h handle.H) []byte {
	idx := c.layout.Seg(h)
	data := c.table.Data(idx)
	d := c.table.Descriptor(idx)
	if d.IsBig {
		return data
	}
	off := c.layout.Off(h)
	chunks := c.cfg.KindChunks[d.Kind]
	start := int(off) * int(c.cfg.ChunkSize)
	end := start + int(chunks)*int(c.cfg.ChunkSize)
	return data[start:end]
}

// Aux1 returns the aux1 storage for the object h refers to, scoped the same
// way as Data.
func (c *Collector) Aux1(h handle.H) []byte {
	idx := c.layout.Seg(h)
	aux := c.table.Aux1(idx)
	if aux == nil {
		return nil
	}
	d := c.table.Descriptor(idx)
	if d.IsBig {
		return aux
	}
	off := c.layout.Off(h)
	start := int(off) * int(c.cfg.Aux1Size)
	return aux[start : start+int(c.cfg.Aux1Size)]
}
