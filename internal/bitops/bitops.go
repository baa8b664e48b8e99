// Package bitops provides small generic bit-packing primitives shared by the
// segment package and the collector. It is adapted from the bit-packing
// helpers used elsewhere in this codebase for wire-format field packing,
// narrowed to the operations the collector actually needs: single-bit
// test/set/clear over an unsigned word type, plus a uint64 lowest-set-bit
// search.
package bitops

import (
	"fmt"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// width returns the number of bits in an instance of U, panicking for any
// type other than the fixed-width unsigned integers.
func width[U constraints.Unsigned](v U) uint {
	switch any(v).(type) {
	case uint8:
		return 8
	case uint16:
		return 16
	case uint32:
		return 32
	case uint64:
		return 64
	default:
		panic(fmt.Sprintf("bitops: unsupported word type %T", v))
	}
}

// TestBit reports whether bit pos of store is set.
func TestBit[U constraints.Unsigned](store U, pos uint) bool {
	if pos >= width(store) {
		panic(fmt.Sprintf("bitops: TestBit position %d out of range for %T", pos, store))
	}
	return store&(U(1)<<pos) != 0
}

// SetBit returns store with bit pos set to 1.
func SetBit[U constraints.Unsigned](store U, pos uint) U {
	if pos >= width(store) {
		panic(fmt.Sprintf("bitops: SetBit position %d out of range for %T", pos, store))
	}
	return store | (U(1) << pos)
}

// ClearBit returns store with bit pos set to 0.
func ClearBit[U constraints.Unsigned](store U, pos uint) U {
	if pos >= width(store) {
		panic(fmt.Sprintf("bitops: ClearBit position %d out of range for %T", pos, store))
	}
	return store &^ (U(1) << pos)
}

// FirstSetBit returns the position of the lowest set bit in store. store
// must not be zero.
func FirstSetBit(store uint64) uint {
	if store == 0 {
		panic("bitops: FirstSetBit called with zero word")
	}
	return uint(bits.TrailingZeros64(store))
}
