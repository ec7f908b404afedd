// Package pagestore implements the durable, byte-keyed page storage that
// backs the B-tree: the concrete rendering of the "PageStore" collaborator
// the storage core treats as opaque, using an embedded LSM engine
// (cockroachdb/pebble) so pages survive a process restart.
package pagestore

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// StaticConfig holds parameters fixed for the lifetime of the on-disk
// store (mirrors PageStore.create's static_config).
type StaticConfig struct {
	// MemTableSize bounds pebble's in-memory write buffer, in bytes. Zero
	// uses pebble's default.
	MemTableSize int
}

// DynamicConfig holds parameters that may change across process restarts
// against the same on-disk store (mirrors PageStore.open's dynamic_config).
type DynamicConfig struct {
	// ReadOnly opens the store without permitting writes.
	ReadOnly bool
}

// PageStore is a durable byte-keyed store of opaque page contents.
type PageStore struct {
	db *pebble.DB
}

// Create initializes a new page store at path. It fails if one already
// exists there.
func Create(path string, cfg StaticConfig) (*PageStore, error) {
	opts := &pebble.Options{}
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	opts.ErrorIfExists = true
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("pagestore: create %s: %w", path, err)
	}
	return &PageStore{db: db}, nil
}

// Open opens an existing page store at path, or creates one if none
// exists yet (pebble itself is idempotent about this; callers that need
// create-vs-open semantics use Create for the former).
func Open(path string, cfg DynamicConfig) (*PageStore, error) {
	opts := &pebble.Options{ReadOnly: cfg.ReadOnly}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s: %w", path, err)
	}
	return &PageStore{db: db}, nil
}

// OpenInMemory returns a page store backed by pebble's in-memory VFS, for
// tests and for shards that opt out of durability.
func OpenInMemory() (*PageStore, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("pagestore: open in-memory: %w", err)
	}
	return &PageStore{db: db}, nil
}

// Get returns the page stored at key.
func (p *PageStore) Get(key []byte) ([]byte, bool, error) {
	v, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pagestore: get: %w", err)
	}
	out := make([]byte, len(v))
	copy(out, v)
	if cerr := closer.Close(); cerr != nil {
		return nil, false, fmt.Errorf("pagestore: closing get handle: %w", cerr)
	}
	return out, true, nil
}

// Set writes a page, overwriting any previous contents at key.
func (p *PageStore) Set(key, value []byte) error {
	if err := p.db.Set(key, value, pebble.Sync); err != nil {
		return fmt.Errorf("pagestore: set: %w", err)
	}
	return nil
}

// Delete removes a page. Deleting a missing key is not an error.
func (p *PageStore) Delete(key []byte) error {
	if err := p.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("pagestore: delete: %w", err)
	}
	return nil
}

// ScanPrefix calls fn for every key with the given prefix, in ascending
// key order, until fn returns false or the range is exhausted.
func (p *PageStore) ScanPrefix(prefix []byte, fn func(key, value []byte) bool) error {
	upper := prefixUpperBound(prefix)
	it := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		key := append([]byte{}, it.Key()...)
		val := append([]byte{}, it.Value()...)
		if !fn(key, val) {
			break
		}
	}
	return it.Error()
}

// DeleteRangeBytes removes every key in [lower, upper).
func (p *PageStore) DeleteRangeBytes(lower, upper []byte) error {
	if err := p.db.DeleteRange(lower, upper, pebble.Sync); err != nil {
		return fmt.Errorf("pagestore: delete range: %w", err)
	}
	return nil
}

// Close releases the underlying pebble handle.
func (p *PageStore) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("pagestore: close: %w", err)
	}
	return nil
}

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded above
}
