// Package rpc provides the network layer of this storage core: the
// communication path between shardd server processes and the peers
// (other shards, the shardctl CLI) that talk to them.
//
// The package is organized into several subpackages:
//
//   - common: configuration structures (ServerConfig, ClientConfig) shared
//     by the server and client, plus the translators into Dragonboat's
//     own config types.
//
//   - transport: pluggable network transports (TCP, Unix sockets)
//     that move raw request/response frames between a client and the
//     shard they address, independent of what those frames contain.
//
//   - server: opens a process's configured shards (local or replicated)
//     and dispatches incoming wire.Message requests to the right one.
//
//   - client: encodes store.Store's public operations as wire.Message
//     requests and decodes the matching responses, over any transport.
//
// The wire format itself (request/response framing, serializers) lives in
// the sibling wire package, shared by both server and client.
package rpc
