package transport

import (
	"github.com/kvshard/core/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc dispatches one serialized wire.Message request, tagged
// with the shard it addresses, and returns the serialized wire.Message
// response. rpc/server registers the handler that looks up the local
// store.Store for shardID and applies the request to it.
type ServerHandleFunc func(shardID uint64, req []byte) (resp []byte)

// IRPCServerTransport listens for connections and hands each request
// payload to the registered ServerHandleFunc, tagged with the shard ID
// the payload addresses.
type IRPCServerTransport interface {
	// RegisterHandler installs the callback invoked for every request this
	// transport receives, before Listen is called.
	RegisterHandler(handler ServerHandleFunc)
	// Listen blocks, accepting connections per config until it fails.
	Listen(config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport sends a serialized wire.Message request to the
// shard identified by shardID and returns the serialized wire.Message
// response, over whichever network protocol it implements.
type IRPCClientTransport interface {
	// Connect dials config's endpoints; Send is only valid afterward.
	Connect(config common.ClientConfig) error
	// Send delivers req to shardID and returns the matching response.
	Send(shardID uint64, req []byte) (resp []byte, err error)
	// Close tears down every connection this transport opened.
	Close() error
}
