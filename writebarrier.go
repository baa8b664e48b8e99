package sggc

import (
	"github.com/bearlytools/sggc/handle"
	"github.com/bearlytools/sggc/segment"
)

// OldToNewCheck is the write barrier: call it after storing to, or before
// exposing, a reference from 'from' to 'to' whenever 'from' might already be
// old and 'to' might be young. A gen2 object only needs watching when it
// points at something collectible and young; a gen1 object needs watching
// whenever it points at anything young, since a minor collection alone
// might reclaim it. Constants and permanently-uncollected objects never
// need watching as a 'to' target since they're never swept.
func (c *Collector) OldToNewCheck(from, to handle.H) {
	if segment.ChainContains(c.table, segment.ChainUnusedFreeNew, from) {
		return
	}
	if c.oldToNew.Contains(from) {
		return
	}

	if c.oldGen2.Contains(from) {
		if c.oldGen2.Contains(to) || c.IsConstant(to) || c.IsUncollected(to) {
			return
		}
		c.oldToNew.Add(from)
		return
	}

	if c.oldGen1.Contains(from) {
		if !segment.ChainContains(c.table, segment.ChainUnusedFreeNew, to) {
			return
		}
		c.oldToNew.Add(from)
		return
	}

	c.oldToNew.Add(from)
}
