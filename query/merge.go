package query

import "bytes"

// SliceResult is an RgetResult backed by an in-memory, already-sorted
// slice of atoms. It is used by the B-tree's in-process scan and by tests.
type SliceResult struct {
	atoms []Atom
	pos   int
}

// NewSliceResult wraps atoms (which must already be in ascending key order)
// as an RgetResult.
func NewSliceResult(atoms []Atom) *SliceResult {
	return &SliceResult{atoms: atoms}
}

func (s *SliceResult) Next() (Atom, bool, error) {
	if s.pos >= len(s.atoms) {
		return Atom{}, false, nil
	}
	a := s.atoms[s.pos]
	s.pos++
	return a, true, nil
}

// mergeSource tracks one input's current head element, pulled lazily.
type mergeSource struct {
	result  RgetResult
	head    Atom
	hasHead bool
	err     error
	done    bool
}

func (s *mergeSource) fill() {
	if s.hasHead || s.done || s.err != nil {
		return
	}
	a, ok, err := s.result.Next()
	if err != nil {
		s.err = err
		return
	}
	if !ok {
		s.done = true
		return
	}
	s.head, s.hasHead = a, true
}

// mergeIterator is a k-way, lazy, stably-ordered merge of disjoint,
// ascending-key RgetResults. It does not deduplicate: the sharding router
// guarantees its inputs partition the key space, so no key can appear in
// more than one source.
type mergeIterator struct {
	sources []*mergeSource
}

// NewMergeIterator returns an RgetResult that yields the union of parts in
// ascending key order, pulling one element per source on demand.
func NewMergeIterator(parts []RgetResult) RgetResult {
	sources := make([]*mergeSource, 0, len(parts))
	for _, p := range parts {
		if p == nil {
			continue
		}
		sources = append(sources, &mergeSource{result: p})
	}
	return &mergeIterator{sources: sources}
}

func (m *mergeIterator) Next() (Atom, bool, error) {
	best := -1
	for i, s := range m.sources {
		s.fill()
		if s.err != nil {
			return Atom{}, false, s.err
		}
		if !s.hasHead {
			continue
		}
		if best == -1 || bytes.Compare(s.head.Key, m.sources[best].head.Key) < 0 {
			best = i
		}
	}
	if best == -1 {
		return Atom{}, false, nil
	}
	a := m.sources[best].head
	m.sources[best].hasHead = false
	return a, true, nil
}
