// Package base implements the connection handling shared by every stream
// transport (tcp, unix): framing wire.Message payloads onto a net.Conn,
// correlating requests with responses by request ID, and dispatching
// server-side work across a bounded worker pool per connection. A
// transport package plugs in by implementing IClientConnector or
// IServerConnector for one net.Dial/net.Listen pairing.
//
// Key components:
//
//   - IClientConnector/IServerConnector: the per-protocol seam. tcp and
//     unix each supply one of these, including the socket-level upgrade
//     step (TCP keepalive/buffers, or a no-op for Unix sockets); everything
//     else here is shared.
//
//   - clientTransport: picks a connection per shardID + retry attempt from
//     a pool of connections per endpoint, so a shard's traffic stays on
//     one socket while it keeps succeeding, and retries with backoff on a
//     fresh connection when one is broken.
//
//   - serverTransport: accepts connections, upgrades each one, and per
//     connection runs requests through a semaphore-bounded worker pool so
//     one slow shard can't starve others sharing the connection.
//
// Frames are shardID (8 bytes) + requestID (8 bytes) + length-prefixed
// payload, capped at maxFrameBytes; see writeFrame/readFrame in util.go.
// The payload itself is opaque to this package.
package base
