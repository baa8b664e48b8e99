// Package gccerr provides the error type used throughout the collector. It is a thin
// wrapper around github.com/gostdlib/base/errors, giving every diagnostic a Category and
// a Type so callers (and logs) can distinguish capacity problems from programming errors.
package gccerr

import (
	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/errors"
)

//go:generate stringer -type=Category -linecomment

// Category is the broad class of an error.
type Category uint32

func (c Category) Category() string {
	return c.String()
}

const (
	// CatUnknown should not be used.
	CatUnknown Category = Category(0) // Unknown
	// CatCapacity represents resource exhaustion; New returns it when the
	// segment table cannot be built. Alloc does not use it: it signals
	// exhaustion by returning NoObject.
	CatCapacity Category = Category(1) // Capacity
	// CatInvariant represents a violated collector invariant (corrupt chain
	// linkage, Next on a non-member, mismatched-chain move, non-empty
	// to-look-at set at Collect entry). These are fatal programming errors;
	// the collector panics with one of these rather than attempting to
	// continue. Removing a non-member is not one of them (Remove reports it
	// by returning false), and a LookAt call outside a collection is not
	// detected.
	CatInvariant Category = Category(2) // Invariant
	// CatParameter represents bad configuration passed to New.
	CatParameter Category = Category(3) // Parameter
)

//go:generate stringer -type=Type -linecomment

// Type narrows a Category to a specific failure.
type Type uint16

func (t Type) Type() string {
	return t.String()
}

const (
	TypeUnknown Type = Type(0) // Unknown

	// Capacity types: which allocation step during New failed.
	TypeSegmentTable Type = Type(100) // SegmentTable
	TypeDataBlock    Type = Type(101) // DataBlock
	TypeAux1Block    Type = Type(102) // Aux1Block
	TypeAux2Block    Type = Type(103) // Aux2Block
	TypeTypeArray    Type = Type(104) // TypeArray
	TypeMaxSegments  Type = Type(105) // MaxSegments

	// Invariant types.
	TypeBadChain        Type = Type(200) // BadChain
	TypeCorruptLinkage  Type = Type(201) // CorruptLinkage
	TypeNotAMember      Type = Type(202) // NotAMember
	TypeChainMismatch   Type = Type(203) // ChainMismatch
	TypeMarkNotEmpty    Type = Type(204) // MarkNotEmpty
	TypeLookAtOutOfMark Type = Type(205) // LookAtOutOfMark
	TypeBadAlignment    Type = Type(206) // BadAlignment

	// Parameter types.
	TypeBadOffBits    Type = Type(300) // BadOffBits
	TypeBadKindChunks Type = Type(301) // BadKindChunks
)

// LogAttrer is implemented by errors that can contribute attributes to a structured log line.
type LogAttrer = errors.LogAttrer

// Error is the error type returned and panicked with by this module.
type Error = errors.Error

// EOption is an optional argument to E.
type EOption = errors.EOption

// WithStackTrace attaches a stack trace to the error. Used only for CatInvariant
// errors, where the trace is the point of the call, not a recurring cost.
func WithStackTrace() EOption {
	return errors.WithStackTrace()
}

// E builds an Error with category c and type t wrapping msg.
func E(ctx context.Context, c Category, t Type, msg error, options ...EOption) Error {
	opts := make([]EOption, 0, len(options)+1)
	opts = append(opts, errors.WithCallNum(2))
	opts = append(opts, options...)
	return errors.E(ctx, errors.Category(c), errors.Type(t), msg, opts...)
}
