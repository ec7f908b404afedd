package region

import (
	"bytes"
	"fmt"
	"sort"
)

// Entry pairs a sub-region with its tagged value inside a Map.
type Entry[V any] struct {
	Region Region
	Value  V
}

// Map is a finite partition of a domain region into disjoint, gapless
// sub-regions, each tagged with a value of type V. Constructing a Map from
// overlapping or gapped pieces is a ProgrammingError-class failure: it
// panics rather than returning an error, since it indicates a bug in the
// caller rather than a runtime condition.
type Map[V any] struct {
	domain  Region
	entries []Entry[V]// sorted ascending by left edge, tiling domain
}

// NewMap builds a Map from an unordered list of (region, value) pairs. It
// panics if the pieces are not pairwise disjoint or do not exactly tile
// their union.
func NewMap[V any](pieces []Entry[V]) Map[V] {
	if len(pieces) == 0 {
		return Map[V]{domain: Region{LeftBound: BoundClosed, RightBound: BoundClosed}, entries: nil}
	}

	sorted := make([]Entry[V], len(pieces))
	copy(sorted, pieces)
	sort.Slice(sorted, func(i, j int) bool {
		return lessByLeft(sorted[i].Region, sorted[j].Region)
	})

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1].Region, sorted[i].Region
		if !adjoins(prev, cur) {
			panic(fmt.Sprintf("region: overlapping or gapped region map entries: %s then %s", prev, cur))
		}
	}

	domain := Region{
		LeftBound:  sorted[0].Region.LeftBound,
		LeftKey:    sorted[0].Region.LeftKey,
		RightBound: sorted[len(sorted)-1].Region.RightBound,
		RightKey:   sorted[len(sorted)-1].Region.RightKey,
	}

	return Map[V]{domain: domain, entries: sorted}
}

func lessByLeft(a, b Region) bool {
	if a.LeftBound == BoundNone {
		return b.LeftBound != BoundNone
	}
	if b.LeftBound == BoundNone {
		return false
	}
	return bytes.Compare(a.LeftKey, b.LeftKey) < 0
}

// adjoins reports whether cur starts exactly where prev ends, with no gap
// and no overlap (prev's right edge and cur's left edge must disagree on
// inclusivity of the shared boundary key, or there is no shared key).
func adjoins(prev, cur Region) bool {
	if prev.RightBound == BoundNone || cur.LeftBound == BoundNone {
		return false
	}
	cmp := bytes.Compare(prev.RightKey, cur.LeftKey)
	if cmp != 0 {
		return false
	}
	// exactly one of the two edges may include the shared key
	return (prev.RightBound == BoundClosed) != (cur.LeftBound == BoundClosed)
}

// Domain returns the region this map tiles.
func (m Map[V]) Domain() Region {
	return m.domain
}

// Entries returns the map's pieces in ascending key order. The caller must
// not mutate the returned slice.
func (m Map[V]) Entries() []Entry[V] {
	return m.entries
}

// Mask restricts m to the portion of its domain that overlaps sub,
// clipping boundary entries at sub's edges.
func (m Map[V]) Mask(sub Region) Map[V] {
	var out []Entry[V]
	for _, e := range m.entries {
		clipped, ok := Intersect(e.Region, sub)
		if !ok {
			continue
		}
		out = append(out, Entry[V]{Region: clipped, Value: e.Value})
	}
	if len(out) == 0 {
		return Map[V]{domain: sub}
	}
	return Map[V]{domain: sub, entries: out}
}

// Update overwrites m on other's domain with other's entries, preserving m
// elsewhere. The two maps need not share their full domain, but wherever
// they do overlap, other wins.
func (m Map[V]) Update(other Map[V]) Map[V] {
	var pieces []Entry[V]

	for _, e := range m.entries {
		remainder := subtract(e.Region, other.domain)
		for _, r := range remainder {
			pieces = append(pieces, Entry[V]{Region: r, Value: e.Value})
		}
	}
	pieces = append(pieces, other.entries...)

	domain := unionRegion(m.domain, other.domain)
	merged := NewMap(pieces)
	merged.domain = domain
	return merged
}

// subtract returns the pieces of r that fall outside cut, preserving order.
func subtract(r, cut Region) []Region {
	overlap, ok := Intersect(r, cut)
	if !ok {
		return []Region{r}
	}
	var out []Region
	// left remainder: [r.left, overlap.left)
	if left, ok := leftRemainder(r, overlap); ok {
		out = append(out, left)
	}
	// right remainder: (overlap.right, r.right]
	if right, ok := rightRemainder(r, overlap); ok {
		out = append(out, right)
	}
	return out
}

func leftRemainder(r, overlap Region) (Region, bool) {
	if Equals(boundsOnly(r.LeftBound, r.LeftKey), boundsOnly(overlap.LeftBound, overlap.LeftKey)) {
		return Region{}, false
	}
	rightBound := BoundOpen
	if overlap.LeftBound == BoundOpen {
		rightBound = BoundClosed
	}
	out := Region{LeftBound: r.LeftBound, LeftKey: r.LeftKey, RightBound: rightBound, RightKey: overlap.LeftKey}
	if IsEmpty(out) {
		return Region{}, false
	}
	return out, true
}

func rightRemainder(r, overlap Region) (Region, bool) {
	if Equals(boundsOnly(r.RightBound, r.RightKey), boundsOnly(overlap.RightBound, overlap.RightKey)) {
		return Region{}, false
	}
	leftBound := BoundOpen
	if overlap.RightBound == BoundOpen {
		leftBound = BoundClosed
	}
	out := Region{LeftBound: leftBound, LeftKey: overlap.RightKey, RightBound: r.RightBound, RightKey: r.RightKey}
	if IsEmpty(out) {
		return Region{}, false
	}
	return out, true
}

func boundsOnly(b Bound, k []byte) Region {
	return Region{LeftBound: b, LeftKey: k, RightBound: b, RightKey: k}
}

func unionRegion(a, b Region) Region {
	left, leftBound := widerLeft(a.LeftBound, a.LeftKey, b.LeftBound, b.LeftKey)
	right, rightBound := widerRight(a.RightBound, a.RightKey, b.RightBound, b.RightKey)
	return Region{LeftBound: leftBound, LeftKey: left, RightBound: rightBound, RightKey: right}
}

func widerLeft(ab Bound, ak []byte, bb Bound, bk []byte) ([]byte, Bound) {
	if ab == BoundNone || bb == BoundNone {
		return nil, BoundNone
	}
	cmp := bytes.Compare(ak, bk)
	switch {
	case cmp < 0:
		return ak, ab
	case cmp > 0:
		return bk, bb
	default:
		if ab == BoundClosed || bb == BoundClosed {
			return ak, BoundClosed
		}
		return ak, BoundOpen
	}
}

func widerRight(ab Bound, ak []byte, bb Bound, bk []byte) ([]byte, Bound) {
	if ab == BoundNone || bb == BoundNone {
		return nil, BoundNone
	}
	cmp := bytes.Compare(ak, bk)
	switch {
	case cmp > 0:
		return ak, ab
	case cmp < 0:
		return bk, bb
	default:
		if ab == BoundClosed || bb == BoundClosed {
			return ak, BoundClosed
		}
		return ak, BoundOpen
	}
}
