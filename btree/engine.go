package btree

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	gbtree "github.com/google/btree"

	"github.com/kvshard/core/internal/rlog"
	"github.com/kvshard/core/pagestore"
	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
)

var logger = rlog.Get("btree")

const (
	dataPrefix  = "d:"
	metaPrefix  = "m:"
	tombPrefix  = "t:"
	btreeDegree = 32
)

// entry is the in-memory ordered-index record for one key. A Deleted
// entry is a tombstone retained so Backfill can report deletions newer
// than a given recency.
type entry struct {
	atom    query.Atom
	deleted bool
}

func (e *entry) Less(than gbtree.Item) bool {
	return bytes.Compare(e.atom.Key, than.(*entry).atom.Key) < 0
}

// rangeTombstone records that a DeleteRange erased region as of seq.
type rangeTombstone struct {
	region region.Region
	seq    uint64
}

// tombKey derives the page-store key a range tombstone is persisted under,
// so that replaying tombPrefix on Open restores it in the order it was
// created.
func tombKey(seq uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return tombPrefix + string(b[:])
}

// Tree is the concrete BTree implementation: an in-memory ordered index
// (google/btree) fronting a durable page-cache (pagestore.Cache), plus a
// superblock whose metainfo entries are kept only in the cache, under the
// meta key prefix, and are read and written there directly.
type Tree struct {
	mu       sync.Mutex // protects index/tombstones; the FIFO gate above already serializes callers, this guards incidental concurrent access (e.g. backfill read running alongside a later write's Commit bookkeeping)
	cache    *pagestore.Cache
	index    *gbtree.BTree
	universe region.Region
	tombs    []rangeTombstone
	seq      uint64
}

// Create initializes a brand-new B-tree over universe, backed by a freshly
// created cache/page store.
func Create(cache *pagestore.Cache, universe region.Region) (*Tree, error) {
	return &Tree{cache: cache, index: gbtree.New(btreeDegree), universe: universe}, nil
}

// Open rebuilds a B-tree's in-memory index from an existing cache/page
// store by replaying every persisted data entry and range tombstone.
// Metainfo entries are not replayed; MetaGet reads them from the cache.
func Open(cache *pagestore.Cache) (*Tree, error) {
	t := &Tree{cache: cache, index: gbtree.New(btreeDegree), universe: region.Universe()}

	var scanErr error
	err := cache.ScanPrefix([]byte(dataPrefix), func(key, value []byte) bool {
		a, deleted, err := decodeEntry(value)
		if err != nil {
			scanErr = err
			return false
		}
		a.Key = append([]byte{}, key[len(dataPrefix):]...)
		t.index.ReplaceOrInsert(&entry{atom: a, deleted: deleted})
		if a.Recency > t.seq {
			t.seq = a.Recency
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("btree: open: replaying data: %w", err)
	}
	if scanErr != nil {
		return nil, fmt.Errorf("btree: open: decoding entry: %w", scanErr)
	}

	err = cache.ScanPrefix([]byte(tombPrefix), func(key, value []byte) bool {
		tomb, err := decodeTombstone(value)
		if err != nil {
			scanErr = err
			return false
		}
		t.tombs = append(t.tombs, tomb)
		if tomb.seq > t.seq {
			t.seq = tomb.seq
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("btree: open: replaying tombstones: %w", err)
	}
	if scanErr != nil {
		return nil, fmt.Errorf("btree: open: decoding tombstone: %w", scanErr)
	}
	return t, nil
}

// -----------------------------------------------------------------------
// Transactions
// -----------------------------------------------------------------------

type txn struct {
	mode TxnMode
}

func (t *txn) Mode() TxnMode   { return t.mode }
func (t *txn) Commit() error   { return nil }
func (t *txn) Rollback() error { return nil }

func (tr *Tree) BeginRead(ctx context.Context) (Txn, error) {
	return &txn{mode: TxnRead}, nil
}

func (tr *Tree) BeginWrite(ctx context.Context, expectedChangeCount int) (Txn, error) {
	// expectedChangeCount is a pre-sizing hint only, per the open question
	// in the design notes; it is intentionally never validated.
	return &txn{mode: TxnWrite}, nil
}

func (tr *Tree) BeginBackfillRead(ctx context.Context) (Txn, error) {
	return &txn{mode: TxnBackfillRead}, nil
}

// -----------------------------------------------------------------------
// Data operations
// -----------------------------------------------------------------------

func (tr *Tree) Get(_ Txn, key []byte) (query.Atom, bool, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	item := tr.index.Get(&entry{atom: query.Atom{Key: key}})
	if item == nil {
		return query.Atom{}, false, nil
	}
	e := item.(*entry)
	if e.deleted {
		return query.Atom{}, false, nil
	}
	return e.atom, true, nil
}

func (tr *Tree) Rget(_ Txn, leftBound region.Bound, leftKey []byte, rightBound region.Bound, rightKey []byte) (query.RgetResult, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	r := region.Region{LeftBound: leftBound, LeftKey: leftKey, RightBound: rightBound, RightKey: rightKey}
	var atoms []query.Atom

	visit := func(i gbtree.Item) bool {
		e := i.(*entry)
		if !e.deleted && region.Contains(r, e.atom.Key) {
			atoms = append(atoms, e.atom)
		}
		return true
	}

	if leftBound == region.BoundNone {
		tr.index.Ascend(visit)
	} else {
		tr.index.AscendGreaterOrEqual(&entry{atom: query.Atom{Key: leftKey}}, visit)
	}

	return query.NewSliceResult(atoms), nil
}

func (tr *Tree) Change(_ Txn, m query.Mutation, castime Castime) (query.MutationResult, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.seq++
	recency := tr.seq

	current, exists := tr.lockedGet(m.Key)

	switch m.Kind {
	case query.MutSet:
		return tr.lockedStore(m.Key, m.Value, m.Flags, m.Exptime, castime.Cas, recency)

	case query.MutAdd:
		if exists {
			return query.MutationResult{Ok: false}, nil
		}
		return tr.lockedStore(m.Key, m.Value, m.Flags, m.Exptime, castime.Cas, recency)

	case query.MutReplace:
		if !exists {
			return query.MutationResult{Ok: false}, nil
		}
		return tr.lockedStore(m.Key, m.Value, m.Flags, m.Exptime, castime.Cas, recency)

	case query.MutCAS:
		if !exists || current.Cas != m.ExpectedCas {
			return query.MutationResult{Ok: false}, nil
		}
		return tr.lockedStore(m.Key, m.Value, m.Flags, m.Exptime, castime.Cas, recency)

	case query.MutAppend:
		if !exists {
			return query.MutationResult{Ok: false}, nil
		}
		merged := append(append([]byte{}, current.Value...), m.Value...)
		return tr.lockedStore(m.Key, merged, current.Flags, current.Exptime, castime.Cas, recency)

	case query.MutPrepend:
		if !exists {
			return query.MutationResult{Ok: false}, nil
		}
		merged := append(append([]byte{}, m.Value...), current.Value...)
		return tr.lockedStore(m.Key, merged, current.Flags, current.Exptime, castime.Cas, recency)

	case query.MutIncr, query.MutDecr:
		if !exists {
			return query.MutationResult{Ok: false}, nil
		}
		n, err := parseUint(current.Value)
		if err != nil {
			return query.MutationResult{Ok: false}, nil
		}
		if m.Kind == query.MutIncr {
			n += m.Delta
		} else if n >= m.Delta {
			n -= m.Delta
		} else {
			n = 0
		}
		newVal := formatUint(n)
		return tr.lockedStore(m.Key, newVal, current.Flags, current.Exptime, castime.Cas, recency)

	case query.MutDelete:
		if !exists {
			return query.MutationResult{Ok: false}, nil
		}
		if err := tr.lockedDelete(m.Key, recency); err != nil {
			return query.MutationResult{}, err
		}
		return query.MutationResult{Ok: true}, nil

	default:
		return query.MutationResult{}, fmt.Errorf("btree: unknown mutation kind %d", m.Kind)
	}
}

func (tr *Tree) lockedGet(key []byte) (query.Atom, bool) {
	item := tr.index.Get(&entry{atom: query.Atom{Key: key}})
	if item == nil {
		return query.Atom{}, false
	}
	e := item.(*entry)
	if e.deleted {
		return query.Atom{}, false
	}
	return e.atom, true
}

func (tr *Tree) lockedStore(key, value []byte, flags, exptime uint32, cas, recency uint64) (query.MutationResult, error) {
	a := query.Atom{Key: append([]byte{}, key...), Value: value, Flags: flags, Exptime: exptime, Cas: cas, Recency: recency}
	tr.index.ReplaceOrInsert(&entry{atom: a})
	if err := tr.cache.Set([]byte(dataPrefix+string(key)), encodeEntry(a, false)); err != nil {
		return query.MutationResult{}, fmt.Errorf("btree: persisting entry: %w", err)
	}
	return query.MutationResult{Ok: true, Value: value, Cas: cas}, nil
}

func (tr *Tree) lockedDelete(key []byte, recency uint64) error {
	a := query.Atom{Key: append([]byte{}, key...), Recency: recency}
	tr.index.ReplaceOrInsert(&entry{atom: a, deleted: true})
	if err := tr.cache.Set([]byte(dataPrefix+string(key)), encodeEntry(a, true)); err != nil {
		return fmt.Errorf("btree: persisting tombstone: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------
// Backfill
// -----------------------------------------------------------------------

func (tr *Tree) Backfill(_ Txn, r region.Region, since uint64, cb BackfillCallback) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	for _, tomb := range tr.tombs {
		if tomb.seq <= since {
			continue
		}
		if overlap, ok := region.Intersect(tomb.region, r); ok {
			if cb.OnDeleteRange != nil {
				if err := cb.OnDeleteRange(overlap); err != nil {
					return err
				}
			}
		}
	}

	var visitErr error
	visit := func(i gbtree.Item) bool {
		e := i.(*entry)
		if !region.Contains(r, e.atom.Key) {
			return true
		}
		if e.atom.Recency <= since {
			return true
		}
		if e.deleted {
			if cb.OnDeletion != nil {
				visitErr = cb.OnDeletion(e.atom.Key, e.atom.Recency)
			}
		} else {
			if cb.OnKeyValue != nil {
				visitErr = cb.OnKeyValue(e.atom)
			}
		}
		return visitErr == nil
	}

	if r.LeftBound == region.BoundNone {
		tr.index.Ascend(visit)
	} else {
		tr.index.AscendGreaterOrEqual(&entry{atom: query.Atom{Key: r.LeftKey}}, visit)
	}
	return visitErr
}

func (tr *Tree) BackfillDeleteRange(_ Txn, r region.Region) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.seq++
	tomb := rangeTombstone{region: r, seq: tr.seq}
	tr.tombs = append(tr.tombs, tomb)
	if err := tr.cache.Set([]byte(tombKey(tomb.seq)), encodeTombstone(tomb)); err != nil {
		return fmt.Errorf("btree: persisting range tombstone: %w", err)
	}

	var toDelete [][]byte
	visit := func(i gbtree.Item) bool {
		e := i.(*entry)
		if region.Contains(r, e.atom.Key) {
			toDelete = append(toDelete, e.atom.Key)
		}
		return true
	}
	tr.index.Ascend(visit)

	for _, k := range toDelete {
		tr.index.Delete(&entry{atom: query.Atom{Key: k}})
		if err := tr.cache.Delete([]byte(dataPrefix + string(k))); err != nil {
			return fmt.Errorf("btree: deleting range member: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------
// Superblock metainfo
// -----------------------------------------------------------------------

func (tr *Tree) MetaGet(_ Txn) (map[string][]byte, error) {
	out := make(map[string][]byte)
	// Unlike the data-prefix scan in Open, this callback only copies bytes
	// into a map; there is no decode step that can fail mid-scan.
	err := tr.cache.ScanPrefix([]byte(metaPrefix), func(key, value []byte) bool {
		regionKey := append([]byte{}, key[len(metaPrefix):]...)
		out[string(regionKey)] = append([]byte{}, value...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("btree: reading metainfo: %w", err)
	}
	return out, nil
}

func (tr *Tree) MetaClear(_ Txn) error {
	current, err := tr.MetaGet(nil)
	if err != nil {
		return err
	}
	for regionKey := range current {
		if err := tr.cache.Delete([]byte(metaPrefix + regionKey)); err != nil {
			return fmt.Errorf("btree: clearing metainfo: %w", err)
		}
	}
	return nil
}

func (tr *Tree) MetaSet(_ Txn, kv map[string][]byte) error {
	for regionKey, blob := range kv {
		if err := tr.cache.Set([]byte(metaPrefix+regionKey), blob); err != nil {
			return fmt.Errorf("btree: writing metainfo: %w", err)
		}
	}
	return nil
}

func (tr *Tree) Close() error {
	logger.Infof("closing b-tree")
	return tr.cache.Close()
}
