package sggc

import (
	"github.com/bearlytools/sggc/handle"
	"github.com/bearlytools/sggc/segment"
	"github.com/gostdlib/base/context"
)

// Alloc allocates a new object of the given client type and length,
// returning its handle. Returns NoObject on capacity or memory exhaustion;
// Alloc never triggers a collection itself. Use CollectAndRetry for the
// opt-in auto-retry behavior.
func (c *Collector) Alloc(ctx context.Context, typ uint8, length uint32) handle.H {
	kind := c.client.Kind(typ, length)
	chunks := c.cfg.KindChunks[kind]
	if chunks == 0 {
		return c.allocBig(ctx, typ, kind, length)
	}
	return c.allocSmall(ctx, typ, kind)
}

// allocSmall serves one slot from free_or_new[kind], growing a fresh segment
// when the cursor runs dry.
func (c *Collector) allocSmall(ctx context.Context, typ, kind uint8) handle.H {
	h := c.nextFree[kind]
	noObj := c.layout.NoObject()

	if h == noObj {
		h = c.growSmallSegment(typ, kind)
		if h == noObj {
			return noObj
		}
	}

	fs := c.freeOrNew[kind]
	next := fs.Next(h, true) // consume h's bit, advance cursor

	if c.noReuse {
		c.nextFree[kind] = noObj
	} else {
		c.nextFree[kind] = next
	}

	c.zeroObject(h, kind)
	if s := c.uncollectedSet(kind); s != nil {
		s.Add(h)
		c.info.UncolCount++
		return h
	}
	c.info.Gen0Count++
	return h
}

// growSmallSegment allocates a fresh segment for kind, installs its data
// block and "all slots free" bit pattern, and returns the first handle to
// hand out from it (NoObject on capacity/memory exhaustion).
func (c *Collector) growSmallSegment(typ, kind uint8) handle.H {
	noObj := c.layout.NoObject()
	idx := c.table.Grow()
	if idx < 0 {
		return noObj
	}

	d := c.table.Descriptor(idx)
	d.Kind = kind
	d.IsBig = false
	c.table.SetType(idx, typ)

	chunkSize := int(c.cfg.ChunkSize)
	nOff := int(c.layout.NOff)
	c.table.SetData(idx, c.blocks.get(context.Background(), chunkSize*nOff))

	if c.cfg.Aux1Size > 0 {
		if p, ok := c.client.(Aux1ReadOnlyProvider); ok {
			if ro := p.Aux1ReadOnly(kind); ro != nil {
				c.table.SetAux1(idx, ro)
			}
		}
		if c.table.Aux1(idx) == nil {
			c.table.SetAux1(idx, c.blocks.get(context.Background(), int(c.cfg.Aux1Size)*nOff))
		}
	}
	if c.cfg.Aux2Size > 0 {
		if p, ok := c.client.(Aux2ReadOnlyProvider); ok {
			if ro := p.Aux2ReadOnly(kind); ro != nil {
				c.table.SetAux2(idx, ro)
			}
		}
		if c.table.Aux2(idx) == nil {
			c.table.SetAux2(idx, c.blocks.get(context.Background(), int(c.cfg.Aux2Size)*nOff))
		}
	}

	first := c.layout.Make(idx, 0)
	c.freeOrNew[kind].AssignSegmentBits(first, c.kindFull[kind])
	return first
}

// allocBig serves one dedicated segment, recycling a descriptor from
// unused if available.
func (c *Collector) allocBig(ctx context.Context, typ, kind uint8, length uint32) handle.H {
	noObj := c.layout.NoObject()
	nchunks := c.client.NChunks(typ, length)

	var idx int32
	if c.unused.FirstBits() != 0 {
		h := c.unused.First(false)
		idx = c.layout.Seg(h)
		segment.MoveFirst(c.unused, c.freeOrNew[kind])
	} else {
		idx = c.table.Grow()
		if idx < 0 {
			return noObj
		}
		h := c.layout.Make(idx, 0)
		c.freeOrNew[kind].Add(h)
	}

	d := c.table.Descriptor(idx)
	d.IsBig = true
	d.Kind = kind
	d.MaxChunks = nchunks
	c.table.SetType(idx, typ)

	c.table.SetData(idx, c.blocks.get(ctx, int(nchunks)*int(c.cfg.ChunkSize)))
	if c.cfg.Aux1Size > 0 {
		c.table.SetAux1(idx, c.blocks.get(ctx, int(c.cfg.Aux1Size)))
	}
	if c.cfg.Aux2Size > 0 {
		c.table.SetAux2(idx, c.blocks.get(ctx, int(c.cfg.Aux2Size)))
	}

	c.info.Gen0Count++
	c.info.BigChunks += uint(nchunks)
	return c.layout.Make(idx, 0)
}

// zeroObject clears an object's chunk data in place.
func (c *Collector) zeroObject(h handle.H, kind uint8) {
	idx := c.layout.Seg(h)
	off := c.layout.Off(h)
	chunks := c.cfg.KindChunks[kind]
	data := c.table.Data(idx)
	start := int(off) * int(c.cfg.ChunkSize)
	end := start + int(chunks)*int(c.cfg.ChunkSize)
	if end > len(data) {
		end = len(data)
	}
	clear(data[start:end])
}

// CollectAndRetry calls Alloc; on NoObject it runs a full collection and
// retries once.
func (c *Collector) CollectAndRetry(ctx context.Context, typ uint8, length uint32) handle.H {
	h := c.Alloc(ctx, typ, length)
	if h != c.layout.NoObject() {
		return h
	}
	c.Collect(ctx, 2)
	return c.Alloc(ctx, typ, length)
}

// RegisterConstant pre-registers a segment whose data is supplied by the
// caller; its handle (and every offset marked in bits) is permanent and is
// never swept or traced.
func (c *Collector) RegisterConstant(typ, kind uint8, bits uint64, data, aux1, aux2 []byte) handle.H {
	idx := c.table.Grow()
	if idx < 0 {
		return c.layout.NoObject()
	}
	d := c.table.Descriptor(idx)
	d.Kind = kind
	d.Constant = true
	c.table.SetType(idx, typ)
	c.table.SetData(idx, data)
	if aux1 != nil {
		c.table.SetAux1(idx, aux1)
	}
	if aux2 != nil {
		c.table.SetAux2(idx, aux2)
	}

	first := c.layout.Make(idx, 0)
	c.constants.AssignSegmentBits(first, bits)

	c.info.UncolCount++
	return first
}
