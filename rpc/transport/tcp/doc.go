// Package tcp is the base package's IClientConnector/IServerConnector pair
// for plain TCP sockets, used when --transport=tcp selects it for shardd
// and shardctl. See package base for the shared framing and pooling logic
// this package plugs into.
//
// The default read buffer is 512 KB per connection.
package tcp
