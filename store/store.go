// Package store implements the per-shard storage facade: the public
// operations (read, write, metadata get/set, backfill send/receive,
// reset) that orchestrate the FIFO gate, the B-tree, and the metainfo
// layer underneath them, in the fixed order ticket wait -> transaction
// acquisition -> metadata check -> data access.
//
// Every mutating operation holds its FIFO ticket until its mutation has
// actually landed in the tree, not merely until BeginWrite returns a
// transaction handle: BeginWrite/BeginRead hand back mode markers, not
// real snapshots, so the tree only ever orders concurrent callers through
// its own mutex. Releasing a ticket before the mutation lands would let a
// FIFO-later ticket win that mutex race and observe state out of FIFO
// order. Read-only operations may still release early once they no
// longer need the tree, since they cannot make another caller observe a
// torn write.
package store

import (
	"context"
	"sync/atomic"

	"github.com/kvshard/core/backfill"
	"github.com/kvshard/core/btree"
	"github.com/kvshard/core/fifo"
	"github.com/kvshard/core/internal/debugflag"
	"github.com/kvshard/core/internal/rlog"
	"github.com/kvshard/core/metainfo"
	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
)

var logger = rlog.Get("store")

// Store is the per-shard facade. It is not safe for concurrent use by
// multiple goroutines beyond the single designated worker that owns it;
// see assertThread.
type Store struct {
	tree btree.BTree
	gate *fifo.Gate

	// entered is a debug-only affinity check standing in for a captured
	// goroutine-affinity token: it detects a second operation starting
	// before the first one finished, which would mean this Store is being
	// driven by more than one worker.
	entered atomic.Bool
}

// New wraps tree in a Store with a fresh FIFO gate.
func New(tree btree.BTree) *Store {
	return &Store{tree: tree, gate: fifo.NewGate()}
}

func (s *Store) assertThread() func() {
	if !debugflag.Enabled() {
		return func() {}
	}
	if !s.entered.CompareAndSwap(false, true) {
		panic("store: assert_thread violation: concurrent entry into a single-threaded store")
	}
	return func() { s.entered.Store(false) }
}

// NewReadTicket issues a FIFO read ticket.
func (s *Store) NewReadTicket() *fifo.Ticket {
	return s.gate.Enter(fifo.Read)
}

// NewWriteTicket issues a FIFO write ticket.
func (s *Store) NewWriteTicket() *fifo.Ticket {
	return s.gate.Enter(fifo.Write)
}

// Read awaits ticket, acquires a non-snapshot read transaction, validates
// expected against the query's region (debug-only), and executes q.
func (s *Store) Read(ctx context.Context, expected metainfo.Map, q query.Read, ticket *fifo.Ticket) (query.Response, error) {
	defer s.assertThread()()
	defer ticket.Release()

	if err := ticket.Await(ctx); err != nil {
		return query.Response{}, interrupted(err)
	}

	txn, err := s.tree.BeginRead(ctx)
	if err != nil {
		return query.Response{}, btreeError("begin read", err)
	}
	// The gate slot is held until this read's Get/Rget has actually run
	// against the tree: BeginRead hands back no real snapshot, only a mode
	// marker, so releasing any earlier than that would let a later-ticketed
	// write race this read for tr.mu and land first, which a FIFO reader
	// must never observe.

	if _, err := metainfo.Check(s.tree, txn, expected.Mask(q.GetRegion())); err != nil {
		return query.Response{}, btreeError("check metainfo", err)
	}

	switch q.Kind {
	case query.ReadGet:
		atom, found, err := s.tree.Get(txn, q.Key)
		if err != nil {
			return query.Response{}, btreeError("get", err)
		}
		return query.Response{Kind: query.ReadGet, Get: query.GetResult{Atom: atom, Found: found}}, nil
	case query.ReadRget:
		result, err := s.tree.Rget(txn, q.LeftBound, q.LeftKey, q.RightBound, q.RightKey)
		if err != nil {
			return query.Response{}, btreeError("rget", err)
		}
		return query.Response{Kind: query.ReadRget, Rget: result}, nil
	default:
		panic("store: unknown read kind")
	}
}

// Write awaits ticket, acquires a write transaction, runs a
// check-and-update of metadata, then applies m with castime computed from
// m.ProposedCas and timestamp.
func (s *Store) Write(ctx context.Context, expected, newMeta metainfo.Map, m query.Mutation, timestamp uint64, ticket *fifo.Ticket) (query.MutationResult, error) {
	defer s.assertThread()()
	defer ticket.Release()

	if err := ticket.Await(ctx); err != nil {
		return query.MutationResult{}, interrupted(err)
	}

	txn, err := s.tree.BeginWrite(ctx, 2)
	if err != nil {
		return query.MutationResult{}, btreeError("begin write", err)
	}
	// The gate slot is held through CheckAndUpdate and Change: BeginWrite
	// returns a mode marker, not a transaction that itself orders anything,
	// so the only thing standing between this write and a FIFO-later
	// ticket jumping ahead of it into tr.mu is holding the ticket until the
	// mutation has actually landed.

	if err := metainfo.CheckAndUpdate(s.tree, txn, expected.Mask(m.GetRegion()), newMeta); err != nil {
		return query.MutationResult{}, btreeError("check and update metainfo", err)
	}

	castime := btree.Castime{Cas: m.ProposedCas, Timestamp: timestamp}
	res, err := s.tree.Change(txn, m, castime)
	if err != nil {
		return query.MutationResult{}, btreeError("change", err)
	}
	return res, nil
}

// GetMetainfo awaits ticket and returns the current region->blob map.
func (s *Store) GetMetainfo(ctx context.Context, ticket *fifo.Ticket) (metainfo.Map, error) {
	defer s.assertThread()()
	defer ticket.Release()

	if err := ticket.Await(ctx); err != nil {
		return metainfo.Map{}, interrupted(err)
	}
	txn, err := s.tree.BeginRead(ctx)
	if err != nil {
		return metainfo.Map{}, btreeError("begin read", err)
	}
	m, err := metainfo.Get(s.tree, txn)
	if err != nil {
		return metainfo.Map{}, btreeError("get metainfo", err)
	}
	return m, nil
}

// SetMetainfo awaits ticket and merges new into the current metainfo map.
func (s *Store) SetMetainfo(ctx context.Context, new metainfo.Map, ticket *fifo.Ticket) error {
	defer s.assertThread()()
	defer ticket.Release()

	if err := ticket.Await(ctx); err != nil {
		return interrupted(err)
	}
	txn, err := s.tree.BeginWrite(ctx, len(new.Entries()))
	if err != nil {
		return btreeError("begin write", err)
	}
	if err := metainfo.Set(s.tree, txn, new); err != nil {
		return btreeError("set metainfo", err)
	}
	return nil
}

// SendBackfill awaits ticket, acquires a backfill-sized read view, and
// delegates to the backfill engine's source side. The ticket is released
// as soon as that view is acquired, not held for the scan: the sink
// blocks on backpressure for as long as the caller needs to drain it, and
// a backfill must not stall every other operation on the shard for that
// long. This early release is safe precisely because it is read-only:
// unlike Write/SetMetainfo/ReceiveBackfill/ResetData, nothing here mutates
// the tree, so a FIFO-later ticket racing ahead of this one for tr.mu can
// only ever see committed state, never a torn or missing write.
func (s *Store) SendBackfill(ctx context.Context, startPoint []backfill.StartPointEntry, shouldBackfill backfill.ShouldBackfill, sink backfill.PushFunc, ticket *fifo.Ticket) (bool, error) {
	defer s.assertThread()()
	defer ticket.Release()

	if err := ticket.Await(ctx); err != nil {
		return false, interrupted(err)
	}
	txn, err := s.tree.BeginBackfillRead(ctx)
	if err != nil {
		return false, btreeError("begin backfill read", err)
	}
	ticket.Release()
	ok, err := backfill.Source(ctx, s.tree, txn, startPoint, shouldBackfill, sink)
	if err != nil {
		return false, btreeError("send backfill", err)
	}
	return ok, nil
}

// ReceiveBackfill awaits ticket and applies chunk under its own write
// transaction.
func (s *Store) ReceiveBackfill(ctx context.Context, chunk backfill.Chunk, ticket *fifo.Ticket) error {
	defer s.assertThread()()
	defer ticket.Release()

	if err := ticket.Await(ctx); err != nil {
		return interrupted(err)
	}
	txn, err := s.tree.BeginWrite(ctx, 1)
	if err != nil {
		return btreeError("begin write", err)
	}
	if err := backfill.Sink(s.tree, txn, chunk); err != nil {
		return btreeError("receive backfill", err)
	}
	return nil
}

// ResetData awaits ticket, then atomically updates metadata and erases
// every key in subregion.
func (s *Store) ResetData(ctx context.Context, subregion region.Region, newMetadata metainfo.Map, ticket *fifo.Ticket) error {
	defer s.assertThread()()
	defer ticket.Release()

	if err := ticket.Await(ctx); err != nil {
		return interrupted(err)
	}
	txn, err := s.tree.BeginWrite(ctx, 2)
	if err != nil {
		return btreeError("begin write", err)
	}
	if err := metainfo.Set(s.tree, txn, newMetadata); err != nil {
		return btreeError("reset metainfo", err)
	}
	if err := s.tree.BackfillDeleteRange(txn, subregion); err != nil {
		return btreeError("reset data", err)
	}
	logger.Infof("reset subregion %s", subregion)
	return nil
}

// Close releases the underlying B-tree.
func (s *Store) Close() error {
	return s.tree.Close()
}
