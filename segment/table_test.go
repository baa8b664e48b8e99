package segment

import (
	"testing"

	"github.com/bearlytools/sggc/handle"
)

func TestNewTableRejectsNonPositiveMax(t *testing.T) {
	layout := handle.NewLayout(4)
	if _, err := NewTable(layout, 0); err == nil {
		t.Fatalf("[TestNewTableRejectsNonPositiveMax]: NewTable(0) returned nil error")
	}
	if _, err := NewTable(layout, -1); err == nil {
		t.Fatalf("[TestNewTableRejectsNonPositiveMax]: NewTable(-1) returned nil error")
	}
}

func TestTableGrowAndFull(t *testing.T) {
	layout := handle.NewLayout(4)
	tbl, err := NewTable(layout, 2)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	if tbl.Full() {
		t.Fatalf("[TestTableGrowAndFull]: fresh table reports Full")
	}

	first := tbl.Grow()
	if first != 0 {
		t.Fatalf("[TestTableGrowAndFull]: first Grow returned %d, want 0", first)
	}
	second := tbl.Grow()
	if second != 1 {
		t.Fatalf("[TestTableGrowAndFull]: second Grow returned %d, want 1", second)
	}
	if !tbl.Full() {
		t.Fatalf("[TestTableGrowAndFull]: table at capacity does not report Full")
	}
	if idx := tbl.Grow(); idx != -1 {
		t.Fatalf("[TestTableGrowAndFull]: Grow past capacity returned %d, want -1", idx)
	}
}

func TestTableDescriptorFieldsAndAccessors(t *testing.T) {
	layout := handle.NewLayout(4)
	tbl, err := NewTable(layout, 2)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	idx := tbl.Grow()

	d := tbl.Descriptor(idx)
	d.Kind = 3
	d.IsBig = true
	d.Constant = true
	d.MaxChunks = 7
	tbl.SetType(idx, 9)

	h := layout.Make(idx, 0)
	if got := tbl.ObjectKind(h); got != 3 {
		t.Fatalf("[TestTableDescriptorFieldsAndAccessors]: ObjectKind = %d, want 3", got)
	}
	if got := tbl.ObjectType(h); got != 9 {
		t.Fatalf("[TestTableDescriptorFieldsAndAccessors]: ObjectType = %d, want 9", got)
	}
	if !tbl.IsConstant(h) {
		t.Fatalf("[TestTableDescriptorFieldsAndAccessors]: IsConstant = false, want true")
	}

	data := []byte{1, 2, 3, 4}
	tbl.SetData(idx, data)
	if got := tbl.Data(idx); len(got) != len(data) || got[2] != 3 {
		t.Fatalf("[TestTableDescriptorFieldsAndAccessors]: Data round-trip mismatch: %v", got)
	}

	aux1 := []byte{9, 8}
	tbl.SetAux1(idx, aux1)
	if got := tbl.Aux1(idx); len(got) != 2 || got[0] != 9 {
		t.Fatalf("[TestTableDescriptorFieldsAndAccessors]: Aux1 round-trip mismatch: %v", got)
	}

	aux2 := []byte{5}
	tbl.SetAux2(idx, aux2)
	if got := tbl.Aux2(idx); len(got) != 1 || got[0] != 5 {
		t.Fatalf("[TestTableDescriptorFieldsAndAccessors]: Aux2 round-trip mismatch: %v", got)
	}
}

func TestTableEachSegmentStartsWithFreshDescriptor(t *testing.T) {
	layout := handle.NewLayout(4)
	tbl, err := NewTable(layout, 2)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	idx := tbl.Grow()
	d := tbl.Descriptor(idx)

	for c := Chain(0); int(c) < NumChains; c++ {
		if d.Next[c] != notInChain {
			t.Fatalf("[TestTableEachSegmentStartsWithFreshDescriptor]: chain %d Next = %d, want notInChain", c, d.Next[c])
		}
		if d.Bits[c] != 0 {
			t.Fatalf("[TestTableEachSegmentStartsWithFreshDescriptor]: chain %d Bits = %x, want 0", c, d.Bits[c])
		}
	}
}
