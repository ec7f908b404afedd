// Package transport defines the pluggable network layer shardd and
// shardctl talk over: TCP or Unix sockets, chosen by a single --transport
// flag at process start.
//
// A transport moves opaque, already-framed byte payloads between a client
// and the shard it addresses; it never looks inside them. The payloads it
// carries are wire.Message envelopes serialized by a wire.Serializer one
// layer up, in rpc/client and rpc/server. Keeping the transport blind to
// that encoding is what lets the same TCP/Unix implementations serve any
// future wire.Serializer without a change here.
//
// Key components:
//
//   - IRPCClientTransport: dials/connects to a shard's endpoints and sends
//     shard-addressed request payloads, returning the matching response.
//
//   - IRPCServerTransport: accepts connections and dispatches each
//     request payload, tagged with a shard ID, to a registered handler.
//
//   - ServerHandleFunc: the handler signature a server transport invokes
//     per request; rpc/server registers one that fans out by shard ID.
package transport
