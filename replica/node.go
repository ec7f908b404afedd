package replica

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kvshard/core/wire"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
)

const proposeRetries = 5

// Node is a consensus-backed peer of store.Store: every call proposes or
// reads a wire.Message against a shard's replicated state machine instead
// of acting on a local B-tree directly. It implements the same
// request/response shape the RPC transports speak, so it can sit in
// place of a network dial when the caller and the shard share a process.
type Node struct {
	nh         *dragonboat.NodeHost
	shardID    uint64
	cs         *client.Session
	timeout    time.Duration
	serializer wire.Serializer
}

// NewNode wraps nh for shardID's replica group.
func NewNode(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) *Node {
	return &Node{
		nh:         nh,
		shardID:    shardID,
		cs:         nh.GetNoOPSession(shardID),
		timeout:    timeout,
		serializer: wire.NewBinarySerializer(),
	}
}

// Invoke sends req through the consensus group: writes via SyncPropose,
// reads via SyncRead, both linearizable. Callers distinguish the two by
// req.Op; this mirrors the distinction the RPC adapter makes server-side.
func (n *Node) Invoke(ctx context.Context, req wire.Message) (wire.Message, error) {
	data, err := n.serializer.Serialize(req)
	if err != nil {
		return wire.Message{}, fmt.Errorf("replica: encoding request: %w", err)
	}

	if isWrite(req.Op) {
		return n.propose(ctx, data)
	}
	return n.read(ctx, data)
}

func isWrite(op wire.OpCode) bool {
	switch op {
	case wire.OpSet, wire.OpAdd, wire.OpReplace, wire.OpCAS, wire.OpAppend, wire.OpPrepend,
		wire.OpIncr, wire.OpDecr, wire.OpDelete, wire.OpSetMetainfo, wire.OpReceiveBackfill, wire.OpReset:
		return true
	default:
		return false
	}
}

func (n *Node) propose(ctx context.Context, data []byte) (wire.Message, error) {
	for i := 0; i < proposeRetries; i++ {
		proposeCtx, cancel := n.withTimeout(ctx)
		res, err := n.nh.SyncPropose(proposeCtx, n.cs, data)
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			logger.Infof("shard %d propose: system busy, retrying (%d/%d)", n.shardID, i+1, proposeRetries)
			time.Sleep(n.timeout / 10)
			continue
		}
		if err != nil {
			return wire.Message{}, fmt.Errorf("replica: propose: %w", err)
		}
		return n.decode(res.Data)
	}
	return wire.Message{}, fmt.Errorf("replica: propose: exhausted retries")
}

func (n *Node) read(ctx context.Context, data []byte) (wire.Message, error) {
	for i := 0; i < proposeRetries; i++ {
		readCtx, cancel := n.withTimeout(ctx)
		res, err := n.nh.SyncRead(readCtx, n.shardID, data)
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			logger.Infof("shard %d read: system busy, retrying (%d/%d)", n.shardID, i+1, proposeRetries)
			time.Sleep(n.timeout / 10)
			continue
		}
		if err != nil {
			return wire.Message{}, fmt.Errorf("replica: read: %w", err)
		}
		b, ok := res.([]byte)
		if !ok {
			return wire.Message{}, fmt.Errorf("replica: read: unexpected lookup result type %T", res)
		}
		return n.decode(b)
	}
	return wire.Message{}, fmt.Errorf("replica: read: exhausted retries")
}

func (n *Node) decode(b []byte) (wire.Message, error) {
	var msg wire.Message
	if err := n.serializer.Deserialize(b, &msg); err != nil {
		return wire.Message{}, fmt.Errorf("replica: decoding response: %w", err)
	}
	if msg.Op == wire.OpError {
		return wire.Message{}, fmt.Errorf("replica: shard %d: %s", n.shardID, msg.Err)
	}
	return msg, nil
}

func (n *Node) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, n.timeout)
}
