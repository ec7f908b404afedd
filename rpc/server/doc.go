// Package server implements the RPC server side of this storage core: it
// opens the shards a process is configured to run, and routes incoming
// wire.Message requests to each shard's handler, whether that handler is
// a local store.Store or a replica.Node proxying a consensus group.
//
// The package focuses on:
//   - Opening/creating each configured shard's underlying B-tree
//   - Starting a replica.StateMachine instead of a local store for any
//     shard whose ClusterMembers has more than one entry
//   - Routing a decoded wire.Message to the right shard and returning its
//     response through whatever transport delivered the request
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []uint64{100, 200},
//	  DataDir: "/var/lib/shardd",
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	  Transport: common.TransportConfig{Endpoint: "0.0.0.0:8080"},
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(4096, 8),
//	  wire.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent
//	requests across multiple connections. Each shard enforces its own
//	ordering internally (store.Store's FIFO gate, or Raft's log for a
//	replicated shard). The Serve method is not thread-safe and should be
//	called only once.
package server
