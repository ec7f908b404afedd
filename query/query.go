// Package query defines the tagged read/write request types that flow
// through the sharding router and the store facade, plus their response
// shapes and the merge iterator used to recombine sharded range scans.
package query

import (
	"fmt"

	"github.com/kvshard/core/region"
)

// Atom is one key's full value record as stored by the B-tree.
type Atom struct {
	Key     []byte
	Value   []byte
	Flags   uint32
	Exptime uint32
	Cas     uint64
	Recency uint64
}

// GetResult is the outcome of a Get query.
type GetResult struct {
	Atom  Atom
	Found bool
}

// RgetResult is a lazy, ordered, single-owner, non-restartable sequence of
// atoms produced by a range scan. Calling Next after it has returned
// ok=false is undefined; callers must stop there.
type RgetResult interface {
	Next() (atom Atom, ok bool, err error)
}

// Response carries the result of either kind of Read.
type Response struct {
	Kind ReadKind
	Get  GetResult
	Rget RgetResult
}

// ReadKind tags the variant of a Read.
type ReadKind uint8

const (
	ReadGet ReadKind = iota
	ReadRget
)

// Read is the tagged union of the two supported read queries.
type Read struct {
	Kind ReadKind

	// Get
	Key []byte

	// Rget
	LeftBound  region.Bound
	LeftKey    []byte
	RightBound region.Bound
	RightKey   []byte
}

// NewGet builds a Get query for key.
func NewGet(key []byte) Read {
	return Read{Kind: ReadGet, Key: key}
}

// NewRget builds an Rget query over the given half/closed interval.
func NewRget(leftBound region.Bound, leftKey []byte, rightBound region.Bound, rightKey []byte) Read {
	return Read{Kind: ReadRget, LeftBound: leftBound, LeftKey: leftKey, RightBound: rightBound, RightKey: rightKey}
}

// GetRegion returns the key range this read touches.
func (r Read) GetRegion() region.Region {
	switch r.Kind {
	case ReadGet:
		return region.Point(r.Key)
	case ReadRget:
		return region.Region{LeftBound: r.LeftBound, LeftKey: r.LeftKey, RightBound: r.RightBound, RightKey: r.RightKey}
	default:
		panic(fmt.Sprintf("query: unknown read kind %d", r.Kind))
	}
}

// Shard restricts r to sub, which the router guarantees satisfies the
// preconditions documented on each case below. Violations are programming
// errors: each case checks its precondition explicitly and panics when it
// does not hold.
func (r Read) Shard(sub region.Region) Read {
	switch r.Kind {
	case ReadGet:
		if !region.Equals(sub, region.Point(r.Key)) {
			panic(fmt.Sprintf("query: Get may only be sharded onto its own key, got %s", sub))
		}
		return r
	case ReadRget:
		if !region.IsSuperset(r.GetRegion(), sub) {
			panic(fmt.Sprintf("query: Rget may only be sharded onto a subset of %s, got %s", r.GetRegion(), sub))
		}
		out := Read{Kind: ReadRget, LeftBound: region.BoundClosed, LeftKey: sub.LeftKey}
		if sub.RightBound == region.BoundNone {
			out.RightBound = region.BoundNone
		} else {
			out.RightBound = region.BoundOpen
			out.RightKey = sub.RightKey
		}
		return out
	default:
		panic(fmt.Sprintf("query: unknown read kind %d", r.Kind))
	}
}

// Unshard recombines the per-shard responses to sharded copies of r into a
// single response equivalent to running r unsharded.
func (r Read) Unshard(parts []Response) Response {
	switch r.Kind {
	case ReadGet:
		if len(parts) != 1 {
			panic(fmt.Sprintf("query: Get.Unshard requires exactly one part, got %d", len(parts)))
		}
		return parts[0]
	case ReadRget:
		iters := make([]RgetResult, len(parts))
		for i, p := range parts {
			iters[i] = p.Rget
		}
		return Response{Kind: ReadRget, Rget: NewMergeIterator(iters)}
	default:
		panic(fmt.Sprintf("query: unknown read kind %d", r.Kind))
	}
}

// MutationKind tags the variant of a Mutation.
type MutationKind uint8

const (
	MutSet MutationKind = iota
	MutAdd
	MutReplace
	MutCAS
	MutAppend
	MutPrepend
	MutIncr
	MutDecr
	MutDelete
)

// Mutation is the tagged union of all supported write operations. Every
// variant carries Key; ProposedCas is combined with the write's timestamp
// by the store facade to produce the castime stamped on the result.
type Mutation struct {
	Kind MutationKind
	Key  []byte

	Value   []byte // Set/Add/Replace/CAS/Append/Prepend
	Delta   uint64 // Incr/Decr
	Flags   uint32
	Exptime uint32

	ProposedCas uint64 // stamped on success, combined with the write timestamp
	ExpectedCas uint64 // CAS: must match the stored value's Cas, or the op fails
}

// GetRegion returns [key, key] for every mutation variant.
func (m Mutation) GetRegion() region.Region {
	return region.Point(m.Key)
}

// Shard requires sub to equal GetRegion() and returns m unchanged.
func (m Mutation) Shard(sub region.Region) Mutation {
	if !region.Equals(sub, m.GetRegion()) {
		panic(fmt.Sprintf("query: Mutation may only be sharded onto its own key, got %s", sub))
	}
	return m
}

// MutationResult is the outcome of applying a Mutation to the B-tree.
type MutationResult struct {
	Ok    bool // false means the op's precondition failed (Add-exists, Replace/Append/Prepend/CAS/Delete/Incr/Decr-absent, CAS-mismatch)
	Value []byte // resulting value, set for Incr/Decr/Append/Prepend and echoed for Set/Add/Replace/CAS
	Cas   uint64
}

// UnshardMutationResult recombines the single-part result of a sharded
// mutation. len(parts) must be 1.
func UnshardMutationResult(parts []MutationResult) MutationResult {
	if len(parts) != 1 {
		panic(fmt.Sprintf("query: Mutation.Unshard requires exactly one part, got %d", len(parts)))
	}
	return parts[0]
}
