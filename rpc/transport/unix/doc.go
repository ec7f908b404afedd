// Package unix is the base package's IClientConnector/IServerConnector
// pair for Unix domain sockets, used when --transport=unix selects it for
// shardd and shardctl talking to a shard on the same machine. See package
// base for the shared framing and pooling logic this package plugs into.
//
// The default read buffer is 64 KB per connection.
package unix
