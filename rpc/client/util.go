// Package client implements the RPC client side of this storage core: a
// Client that encodes store.Store-shaped operations as wire.Message
// requests, sends them over an IRPCClientTransport, and decodes the
// response back into the domain types the store facade returns.
package client

import (
	"fmt"

	"github.com/kvshard/core/rpc/transport"
	"github.com/kvshard/core/wire"
)

// invokeRPCRequest serializes req, sends it to shardId over t, and decodes
// the response. An OpError response is surfaced as a Go error rather than
// returned to the caller as a Message.
func invokeRPCRequest(shardId uint64, req wire.Message, t transport.IRPCClientTransport, s wire.Serializer) (wire.Message, error) {
	reqBytes, err := s.Serialize(req)
	if err != nil {
		return wire.Message{}, fmt.Errorf("rpc client: encoding request: %w", err)
	}

	respBytes, err := t.Send(shardId, reqBytes)
	if err != nil {
		return wire.Message{}, fmt.Errorf("rpc client: sending request: %w", err)
	}

	var resp wire.Message
	if err := s.Deserialize(respBytes, &resp); err != nil {
		return wire.Message{}, fmt.Errorf("rpc client: decoding response: %w", err)
	}

	if resp.Op == wire.OpError {
		return wire.Message{}, fmt.Errorf("rpc client: shard %d: %s", shardId, resp.Err)
	}
	return resp, nil
}
