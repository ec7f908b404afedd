// Package btree defines the ordered key-value index the storage core
// treats as an external collaborator (per the external interface
// contract) and ships a concrete implementation of it, so the module is
// runnable end to end rather than stopping at the interface boundary.
package btree

import (
	"context"

	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
)

// Castime is the pair stamped onto every mutation: the CAS token the
// caller proposed (or the engine assigned) and the replication timestamp
// of the operation that produced it.
type Castime struct {
	Cas       uint64
	Timestamp uint64
}

// TxnMode tags the access mode a transaction was acquired for.
type TxnMode uint8

const (
	TxnRead TxnMode = iota
	TxnWrite
	TxnBackfillRead
)

// Txn is a transaction handle acquired from a BTree. Every BTree method
// that touches data takes one; Commit or Rollback releases it.
type Txn interface {
	Mode() TxnMode
	Commit() error
	Rollback() error
}

// BackfillCallback receives the events BTree.Backfill emits, in region
// order, for a single backfill scan.
type BackfillCallback struct {
	OnDeleteRange func(r region.Region) error
	OnDeletion    func(key []byte, recency uint64) error
	OnKeyValue    func(a query.Atom) error
}

// BTree is the ordered key-value index the store facade, metadata store,
// and backfill engine operate against. It owns the superblock (the
// region->blob metainfo map) alongside the data.
type BTree interface {
	// BeginRead acquires a non-snapshot read transaction.
	BeginRead(ctx context.Context) (Txn, error)
	// BeginWrite acquires a write transaction. expectedChangeCount is an
	// estimate used for pre-sizing only, never validated against the
	// actual number of changes.
	BeginWrite(ctx context.Context, expectedChangeCount int) (Txn, error)
	// BeginBackfillRead acquires a read transaction sized for scanning,
	// which may offer a broader consistent view than BeginRead.
	BeginBackfillRead(ctx context.Context) (Txn, error)

	// Get looks up a single key.
	Get(txn Txn, key []byte) (query.Atom, bool, error)
	// Rget scans a half/closed key range in ascending order.
	Rget(txn Txn, leftBound region.Bound, leftKey []byte, rightBound region.Bound, rightKey []byte) (query.RgetResult, error)
	// Change applies a mutation, stamping the result with castime.
	Change(txn Txn, m query.Mutation, castime Castime) (query.MutationResult, error)

	// Backfill emits, in region order, every key in r whose recency is
	// strictly newer than since, plus the region-level deletion skeleton
	// needed to recreate sparse deletions.
	Backfill(txn Txn, r region.Region, since uint64, cb BackfillCallback) error
	// BackfillDeleteRange bulk-erases every key in r.
	BackfillDeleteRange(txn Txn, r region.Region) error

	// MetaGet decodes every (region-key, blob) pair held in the
	// superblock's metainfo block.
	MetaGet(txn Txn) (map[string][]byte, error)
	// MetaClear erases the superblock's entire metainfo block.
	MetaClear(txn Txn) error
	// MetaSet writes kv into the superblock's metainfo block. Callers
	// must MetaClear first if they intend a full overwrite.
	MetaSet(txn Txn, kv map[string][]byte) error

	// Close releases the B-tree's underlying cache and page store.
	Close() error
}
