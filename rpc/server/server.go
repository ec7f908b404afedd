package server

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/kvshard/core/btree"
	"github.com/kvshard/core/internal/rlog"
	"github.com/kvshard/core/pagestore"
	"github.com/kvshard/core/region"
	"github.com/kvshard/core/replica"
	"github.com/kvshard/core/rpc/common"
	"github.com/kvshard/core/rpc/transport"
	"github.com/kvshard/core/store"
	"github.com/kvshard/core/storeadapter"
	"github.com/kvshard/core/wire"
	"github.com/lni/dragonboat/v4"
	"github.com/puzpuzpuz/xsync/v3"

	"os/signal"
	"syscall"
)

var logger = rlog.Get("rpc/server")

// shardHandler answers a wire.Message for one shard, whichever storage
// path that shard runs: a local store.Store, or a Dragonboat replica
// group reached through replica.Node.
type shardHandler interface {
	Handle(ctx context.Context, req *wire.Message) *wire.Message
	Close() error
}

// localShard runs a shard directly against its own B-tree, with no
// consensus group: every request is served from this process alone.
type localShard struct {
	store   *store.Store
	adapter storeadapter.Adapter
}

func (h *localShard) Handle(ctx context.Context, req *wire.Message) *wire.Message {
	return h.adapter.Handle(ctx, req, h.store)
}

func (h *localShard) Close() error { return h.store.Close() }

// replicatedShard proxies every request through a Dragonboat consensus
// group instead of touching a local B-tree.
type replicatedShard struct {
	node *replica.Node
}

func (h *replicatedShard) Handle(ctx context.Context, req *wire.Message) *wire.Message {
	resp, err := h.node.Invoke(ctx, *req)
	if err != nil {
		m := wire.NewError(err)
		return &m
	}
	return &resp
}

func (h *replicatedShard) Close() error { return nil }

// NewRPCServer creates a new RPC server for one process's worth of shards.
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(4096, 8),
//		wire.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer wire.Serializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	rlog.InitAll(config.LogLevel)

	logger.Infof("created RPC server")
	logger.Infof(config.String())

	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, shardHandler](),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer wire.Serializer
	shards     *xsync.MapOf[uint64, shardHandler]
	closed     atomic.Bool
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardID uint64, req []byte) []byte {
		start := time.Now()
		var reqMsg wire.Message

		shard, ok := s.shards.Load(shardID)

		var respMsg wire.Message
		if !ok {
			respMsg = wire.NewError(fmt.Errorf("shard %d not found", shardID))
		} else if err := s.serializer.Deserialize(req, &reqMsg); err != nil {
			respMsg = wire.NewError(fmt.Errorf("failed to deserialize request: %w", err))
		} else {
			respMsg = *shard.Handle(context.Background(), &reqMsg)
		}

		recordRequest(shardID, reqMsg.Op, time.Since(start).Seconds(), respMsg.Op != wire.OpError)

		out, err := s.serializer.Serialize(respMsg)
		if err != nil {
			out, _ = s.serializer.Serialize(wire.NewError(fmt.Errorf("failed to serialize response: %w", err)))
		}
		return out
	})
}

// init opens or creates each configured shard's store. Shards whose
// ClusterMembers set has more than one entry run behind the replica seam
// (a Dragonboat-backed consensus group); single-member shards run the
// store directly against the local page store.
func (s *rpcServer) init() error {
	if s.config.DebugEndpoint != "" {
		startDebugServer(s.config.DebugEndpoint)
	}

	var nodeHost *dragonboat.NodeHost
	if s.config.HasReplicatedShard() {
		nh, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		nodeHost = nh
	}

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	for _, shardID := range s.config.Shards {
		if s.config.HasReplicatedShard() {
			factory := replica.NewStateMachineFactory(func() (btree.BTree, error) {
				return s.openShardTree(shardID)
			})
			if err := nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, factory, s.config.ToDragonboatConfig(shardID)); err != nil {
				return fmt.Errorf("starting replica for shard %d: %w", shardID, err)
			}
			s.shards.Store(shardID, &replicatedShard{node: replica.NewNode(nodeHost, shardID, timeout)})
			logger.Infof("started replicated shard %d", shardID)
			continue
		}

		tree, err := s.openShardTree(shardID)
		if err != nil {
			return fmt.Errorf("opening shard %d: %w", shardID, err)
		}
		s.shards.Store(shardID, &localShard{store: store.New(tree), adapter: storeadapter.New()})
		logger.Infof("opened local shard %d at %s", shardID, s.dataDir(shardID))
	}

	logger.Infof("shard setup completed")

	s.registerTransportHandler()

	return nil
}

func (s *rpcServer) dataDir(shardID uint64) string {
	if s.config.DataDir == "" {
		return ""
	}
	return filepath.Join(s.config.DataDir, fmt.Sprintf("shard-%d", shardID))
}

func (s *rpcServer) openShardTree(shardID uint64) (btree.BTree, error) {
	if s.config.DataDir == "" {
		ps, err := pagestore.OpenInMemory()
		if err != nil {
			return nil, err
		}
		cache := pagestore.CreateCache(ps, pagestore.CacheStaticConfig{})
		return btree.Create(cache, region.Universe())
	}

	dir := s.dataDir(shardID)
	ps, err := pagestore.Open(dir, pagestore.DynamicConfig{})
	if err != nil {
		ps, err = pagestore.Create(dir, pagestore.StaticConfig{})
		if err != nil {
			return nil, err
		}
		cache := pagestore.CreateCache(ps, pagestore.CacheStaticConfig{})
		return btree.Create(cache, region.Universe())
	}
	cache := pagestore.OpenCache(ps, pagestore.CacheStaticConfig{})
	return btree.Open(cache)
}

// Serve starts the RPC server: it opens every configured shard and then
// blocks, listening for connections on the configured transport.
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close releases every shard's underlying resources.
func (s *rpcServer) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	s.shards.Range(func(shardID uint64, shard shardHandler) bool {
		if err := shard.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing shard %d: %w", shardID, err)
		}
		return true
	})
	return firstErr
}
