package sggc

import (
	"fmt"

	"github.com/bearlytools/sggc/gccerr"
	"github.com/bearlytools/sggc/handle"
	"github.com/bearlytools/sggc/segment"
	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/telemetry/otel/trace/span"
)

// noCheck is the sentinel "not scanning the remembered set" value of
// Collector.check.
const noCheck = 0

// Collect runs one collection at the given level (0 minor, 1 minor+gen1, 2
// full). It never fails; any violation of the algorithm's entry invariants
// is a fatal programming error.
func (c *Collector) Collect(ctx context.Context, level int) {
	ctx, sp := span.New(ctx, span.WithName("sggc.Collect"))
	defer sp.End()

	if c.toLookAt.FirstBits() != 0 {
		panic(gccerr.E(ctx, gccerr.CatInvariant, gccerr.TypeMarkNotEmpty,
			fmt.Errorf("sggc: Collect called with TO_LOOK_AT non-empty"), gccerr.WithStackTrace()))
	}

	c.restoreCandidates(level)
	c.processRememberedSet(level)

	c.check = noCheck
	c.client.FindRootPtrs(c)

	c.markLoop(level)
	c.sweepAdjust(level)
	c.reclaimBig()
	c.resetCursors()
	c.refreshInfo()
}

// refreshInfo recomputes the generation and uncollected counters by
// traversal and zeroes Gen0Count and BigChunks. Called once per Collect;
// between collections Alloc bumps Gen0Count (and, for big objects,
// BigChunks) incrementally.
func (c *Collector) refreshInfo() {
	c.info.Gen1Count = c.oldGen1.Count()
	c.info.Gen2Count = c.oldGen2.Count()

	uncol := c.constants.Count()
	for _, s := range c.uncollected {
		if s != nil {
			uncol += s.Count()
		}
	}
	c.info.UncolCount = uncol
	c.info.Gen0Count = 0
	c.info.BigChunks = 0
}

// restoreCandidates adds every old-generation member that this level
// examines into free_or_new as well, tentatively treating it as dead until
// marking lifts it back out. Membership in old_gen1/old_gen2 itself is left
// untouched here: promote relies on still being able to observe "v was in
// old_gen1" (via a removing Remove call) once v is confirmed live, which is
// how a level-2 collection tells a once-promoted survivor from a brand new
// one. Draining the old set here instead would erase that signal before
// promote ever sees it, and nothing would ever reach old_gen2.
func (c *Collector) restoreCandidates(level int) {
	if level == 2 {
		c.addAllInto(c.oldGen2, func(v handle.H) *segment.Set { return c.freeOrNew[c.table.ObjectKind(v)] })
	}
	if level >= 1 {
		c.addAllInto(c.oldGen1, func(v handle.H) *segment.Set { return c.freeOrNew[c.table.ObjectKind(v)] })
	}
}

// addAllInto adds every member of src to the set dstFor returns for that
// member, without removing anything from src.
func (c *Collector) addAllInto(src *segment.Set, dstFor func(handle.H) *segment.Set) {
	noObj := c.layout.NoObject()
	var next handle.H
	for v := src.First(false); v != noObj; v = next {
		next = src.Next(v, false)
		dstFor(v).Add(v)
	}
}

// processRememberedSet visits every object recorded as possibly holding a
// reference to something young, discovers whether it actually does, and
// drops it from the remembered set once it no longer needs watching at this
// level.
func (c *Collector) processRememberedSet(level int) {
	noObj := c.layout.NoObject()
	var next handle.H
	for v := c.oldToNew.First(false); v != noObj; v = next {
		next = c.oldToNew.Next(v, false)

		switch {
		case c.oldGen2.Contains(v):
			c.check = 2
		case level == 0:
			c.check = 0
		default:
			c.check = 1
		}

		c.client.FindObjectPtrs(c, v)

		if c.check != noCheck || (c.oldGen1.Contains(v) && level == 0) {
			c.oldToNew.Remove(v)
		}
	}
}

// markLoop drains the to-look-at worklist, promoting and re-scanning each
// object in turn, until nothing remains (including anything an AfterMarker
// callback adds once the worklist first empties).
func (c *Collector) markLoop(level int) {
	noObj := c.layout.NoObject()
	rep := 0
	for {
		v := c.toLookAt.First(true)
		if v == noObj {
			if am, ok := c.client.(AfterMarker); ok {
				am.AfterMarking(level, rep)
			}
			if c.toLookAt.FirstBits() == 0 {
				return
			}
			rep++
			continue
		}

		c.promote(v, level)
		c.check = noCheck
		c.client.FindObjectPtrs(c, v)
	}
}

// promote moves v into the generation its survival at this level earns it.
func (c *Collector) promote(v handle.H, level int) {
	if level >= 1 && c.oldGen1.Remove(v) {
		c.oldGen2.Add(v)
		return
	}
	if level < 2 || !c.oldGen2.Contains(v) {
		c.oldGen1.Add(v)
	}
}

// LookAt is the mark-time helper the Client calls for every reference it
// finds, both from find_root_ptrs and from find_object_ptrs. Returns true to
// continue scanning the containing object, false to permit an early exit.
func (c *Collector) LookAt(h handle.H) bool {
	noObj := c.layout.NoObject()
	if h == noObj {
		return true
	}

	wasYoung := segment.ChainContains(c.table, segment.ChainUnusedFreeNew, h)
	wasGen1 := c.oldGen1.Contains(h)

	// Marking always happens: a reference found during remembered-set
	// scanning is just as live as one found from a root, so it must be
	// pulled out of free_or_new here rather than waiting for some later
	// call to rediscover it.
	kind := c.table.ObjectKind(h)
	if int(kind) < len(c.freeOrNew) && c.freeOrNew[kind].Remove(h) {
		c.toLookAt.Add(h)
	}

	if c.check != noCheck {
		switch {
		case wasYoung:
			c.check = 0
		case wasGen1 && c.check > 1:
			c.check = 1
		}
		return c.check != 0
	}

	return true
}

// sweepAdjust drops anything restored as a candidate this round that never
// got marked reachable again from the generation records and the
// remembered set.
func (c *Collector) sweepAdjust(level int) {
	if level == 2 {
		c.sweepGeneration(c.oldGen2)
	}
	if level >= 1 {
		c.sweepGeneration(c.oldGen1)
	}
}

func (c *Collector) sweepGeneration(gen *segment.Set) {
	noObj := c.layout.NoObject()
	var next handle.H
	for v := gen.First(false); v != noObj; v = next {
		next = gen.Next(v, false)
		kind := c.table.ObjectKind(v)
		if int(kind) < len(c.freeOrNew) && c.freeOrNew[kind].Contains(v) {
			gen.Remove(v)
			c.oldToNew.Remove(v)
		}
	}
}

// reclaimBig returns every surviving-as-free big segment's data block to
// the pool and moves its descriptor to unused for reuse by any type.
func (c *Collector) reclaimBig() {
	for kind := range c.cfg.KindChunks {
		if c.cfg.KindChunks[kind] != 0 {
			continue
		}
		k := uint8(kind)
		noObj := c.layout.NoObject()
		for {
			h := c.freeOrNew[k].First(false)
			if h == noObj {
				break
			}
			idx := c.layout.Seg(h)

			if fn, ok := c.client.(FreedNotifier); ok {
				fn.NewlyFreed(k, h)
			}

			c.blocks.put(context.Background(), c.table.Data(idx))
			c.table.SetData(idx, nil)
			c.table.SetAux1(idx, nil)
			c.table.SetAux2(idx, nil)

			segment.MoveFirst(c.freeOrNew[k], c.unused)
		}
	}
}

// resetCursors points each small kind's allocation cursor at the first
// still-free slot after sweeping (or at NoObject in no-reuse mode).
func (c *Collector) resetCursors() {
	noObj := c.layout.NoObject()
	for k := range c.cfg.KindChunks {
		if c.cfg.KindChunks[k] == 0 || c.noReuse {
			c.nextFree[k] = noObj
			continue
		}
		c.nextFree[k] = c.freeOrNew[k].First(false)
	}
}
