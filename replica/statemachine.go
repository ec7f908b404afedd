// Package replica binds one shard's store.Store to a Dragonboat
// consensus group: a state machine that applies wire.Message commands
// through the same adapter the RPC server uses, plus a client-side Node
// that proposes/reads against a NodeHost instead of dialing a transport.
package replica

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/kvshard/core/backfill"
	"github.com/kvshard/core/btree"
	"github.com/kvshard/core/internal/rlog"
	"github.com/kvshard/core/metainfo"
	"github.com/kvshard/core/region"
	"github.com/kvshard/core/store"
	"github.com/kvshard/core/storeadapter"
	"github.com/kvshard/core/wire"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

var logger = rlog.Get("replica")

// TreeFactory builds the BTree a shard's store runs against. Passed in
// rather than fixed so a replica can be opened against any BTree
// implementation the host process chooses (in particular, a fresh or a
// recovered pagestore-backed tree).
type TreeFactory func() (btree.BTree, error)

// StateMachine adapts a store.Store to Dragonboat's concurrent state
// machine contract. Commands and queries are wire.Message values, encoded
// with the binary serializer, dispatched through the same adapter the RPC
// server's transport handler uses.
type StateMachine struct {
	shardID   uint64
	replicaID uint64

	s          *store.Store
	adapter    storeadapter.Adapter
	serializer wire.Serializer
}

// NewStateMachineFactory returns a factory Dragonboat calls once per
// shard replica it starts locally.
func NewStateMachineFactory(newTree TreeFactory) func(shardID, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID, replicaID uint64) sm.IConcurrentStateMachine {
		tree, err := newTree()
		if err != nil {
			// Dragonboat's factory signature has no error return; a tree
			// that fails to open here is a deployment-time failure no
			// retry inside the factory can fix.
			panic(fmt.Sprintf("replica: opening tree for shard %d replica %d: %v", shardID, replicaID, err))
		}
		return &StateMachine{
			shardID:    shardID,
			replicaID:  replicaID,
			s:          store.New(tree),
			adapter:    storeadapter.New(),
			serializer: wire.NewBinarySerializer(),
		}
	}
}

// Lookup handles a read-only wire.Message query.
func (fsm *StateMachine) Lookup(req interface{}) (interface{}, error) {
	data, ok := req.([]byte)
	if !ok {
		return nil, fmt.Errorf("replica: Lookup: unexpected query type %T", req)
	}
	var msg wire.Message
	if err := fsm.serializer.Deserialize(data, &msg); err != nil {
		return nil, fmt.Errorf("replica: Lookup: decoding query: %w", err)
	}
	resp := fsm.adapter.Handle(context.Background(), &msg, fsm.s)
	return fsm.serializer.Serialize(*resp)
}

// Update applies a batch of wire.Message commands in order.
func (fsm *StateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	start := time.Now()
	for i, e := range entries {
		var msg wire.Message
		if len(e.Cmd) == 0 || fsm.serializer.Deserialize(e.Cmd, &msg) != nil {
			entries[i].Result = sm.Result{Data: wireErrBytes(fsm.serializer, fmt.Errorf("replica: malformed command"))}
			continue
		}
		msg.Timestamp = e.Index
		resp := fsm.adapter.Handle(context.Background(), &msg, fsm.s)
		out, err := fsm.serializer.Serialize(*resp)
		if err != nil {
			out = wireErrBytes(fsm.serializer, err)
		}
		entries[i].Result = sm.Result{Data: out}
	}
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		logger.Infof("shard %d update of %d entries took %s", fsm.shardID, len(entries), elapsed)
	}
	return entries, nil
}

func wireErrBytes(s wire.Serializer, err error) []byte {
	b, _ := s.Serialize(wire.NewError(err))
	return b
}

// PrepareSnapshot takes no extra state beyond what SaveSnapshot reads
// directly from the store, since the B-tree's own MVCC-free backfill scan
// already gives a single consistent pass.
func (fsm *StateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// snapshotFrame prefixes each encoded chunk with its length so
// RecoverFromSnapshot can split the stream back into messages.
func writeSnapshotFrame(w io.Writer, b []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readSnapshotFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// SaveSnapshot streams every chunk of a full-region backfill scan to
// writer, each framed with a length prefix.
func (fsm *StateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, stopc <-chan struct{}) error {
	ticket := fsm.s.NewReadTicket()
	startPoint := []backfill.StartPointEntry{{Region: region.Universe(), Timestamp: 0}}

	sink := func(c backfill.Chunk) error {
		select {
		case <-stopc:
			return fmt.Errorf("replica: snapshot cancelled")
		default:
		}
		msg := wire.NewBackfillChunkMessage(c)
		b, err := fsm.serializer.Serialize(msg)
		if err != nil {
			return err
		}
		return writeSnapshotFrame(writer, b)
	}

	_, err := fsm.s.SendBackfill(context.Background(), startPoint, alwaysBackfill, sink, ticket)
	if err != nil {
		return fmt.Errorf("replica: save snapshot: %w", err)
	}
	return nil
}

func alwaysBackfill(metainfo.Map) bool { return true }

// RecoverFromSnapshot reads the framed chunk stream SaveSnapshot wrote
// and replays each chunk through ReceiveBackfill.
func (fsm *StateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, stopc <-chan struct{}) error {
	for {
		select {
		case <-stopc:
			return fmt.Errorf("replica: snapshot recovery cancelled")
		default:
		}

		b, err := readSnapshotFrame(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replica: recover snapshot: %w", err)
		}
		var msg wire.Message
		if err := fsm.serializer.Deserialize(b, &msg); err != nil {
			return fmt.Errorf("replica: recover snapshot: decoding chunk: %w", err)
		}
		ticket := fsm.s.NewWriteTicket()
		if err := fsm.s.ReceiveBackfill(context.Background(), msg.ToChunk(), ticket); err != nil {
			return fmt.Errorf("replica: recover snapshot: applying chunk: %w", err)
		}
	}
}

// Close releases the underlying store.
func (fsm *StateMachine) Close() error {
	return fsm.s.Close()
}
