package client

import (
	"context"
	"fmt"

	"github.com/kvshard/core/backfill"
	"github.com/kvshard/core/internal/rlog"
	"github.com/kvshard/core/metainfo"
	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
	"github.com/kvshard/core/rpc/common"
	"github.com/kvshard/core/rpc/transport"
	"github.com/kvshard/core/wire"
)

// Logger is the RPC client's logger. The shared tcp/unix transport code in
// rpc/transport/base also logs its response-reader errors through it; the
// rest of that package logs through its own base.Logger.
var Logger = rlog.Get("rpc/client")

// Client is a peer of store.Store reached over a network transport
// instead of a local B-tree: the same read/write/metainfo/backfill
// vocabulary, encoded as wire.Message requests.
type Client struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer wire.Serializer
}

// NewClient dials transport with config and wraps it in a Client.
func NewClient(config common.ClientConfig, transport transport.IRPCClientTransport, serializer wire.Serializer) (*Client, error) {
	if err := transport.Connect(config); err != nil {
		return nil, fmt.Errorf("rpc client: connect: %w", err)
	}
	return &Client{config: config, transport: transport, serializer: serializer}, nil
}

// Close releases the underlying transport connections.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Read sends q to shardID and decodes the matching response.
func (c *Client) Read(ctx context.Context, shardID uint64, expected metainfo.Map, q query.Read) (query.Response, error) {
	req := wire.NewReadRequest(q)
	req.ExpectedMeta = wire.MetaEntriesFrom(expected)
	resp, err := invokeRPCRequest(shardID, req, c.transport, c.serializer)
	if err != nil {
		return query.Response{}, err
	}
	switch q.Kind {
	case query.ReadGet:
		return query.Response{Kind: query.ReadGet, Get: resp.ToGetResult()}, nil
	case query.ReadRget:
		return query.Response{Kind: query.ReadRget, Rget: resp.ToRgetResult()}, nil
	default:
		return query.Response{}, fmt.Errorf("rpc client: unknown read kind %d", q.Kind)
	}
}

// Write sends m to shardID along with the metadata precondition/update
// the store facade checks alongside it.
func (c *Client) Write(ctx context.Context, shardID uint64, expected, newMeta metainfo.Map, m query.Mutation, timestamp uint64) (query.MutationResult, error) {
	req := wire.NewMutationRequest(m, expected, newMeta, timestamp)
	resp, err := invokeRPCRequest(shardID, req, c.transport, c.serializer)
	if err != nil {
		return query.MutationResult{}, err
	}
	return resp.ToMutationResult(), nil
}

// GetMetainfo fetches shardID's current region->blob map.
func (c *Client) GetMetainfo(ctx context.Context, shardID uint64) (metainfo.Map, error) {
	resp, err := invokeRPCRequest(shardID, wire.NewGetMetainfoRequest(), c.transport, c.serializer)
	if err != nil {
		return metainfo.Map{}, err
	}
	return resp.ToMetainfoResult(), nil
}

// SetMetainfo merges new into shardID's metadata map.
func (c *Client) SetMetainfo(ctx context.Context, shardID uint64, new metainfo.Map) error {
	_, err := invokeRPCRequest(shardID, wire.NewSetMetainfoRequest(new), c.transport, c.serializer)
	return err
}

// SendBackfill requests the next batch of chunks shardID has to offer for
// startPoint. This protocol is strictly request/response per frame, so
// the caller gets every chunk the shard produced for this call in one
// round trip rather than a stream.
func (c *Client) SendBackfill(ctx context.Context, shardID uint64, startPoint []backfill.StartPointEntry) (done bool, chunks []backfill.Chunk, err error) {
	resp, err := invokeRPCRequest(shardID, wire.NewSendBackfillRequest(startPoint), c.transport, c.serializer)
	if err != nil {
		return false, nil, err
	}
	done, chunks = resp.ToBackfillResult()
	return done, chunks, nil
}

// ReceiveBackfill pushes a single chunk to shardID.
func (c *Client) ReceiveBackfill(ctx context.Context, shardID uint64, chunk backfill.Chunk) error {
	_, err := invokeRPCRequest(shardID, wire.NewBackfillChunkMessage(chunk), c.transport, c.serializer)
	return err
}

// Reset erases subregion on shardID and installs newMetadata in its place.
func (c *Client) Reset(ctx context.Context, shardID uint64, subregion region.Region, newMetadata metainfo.Map) error {
	_, err := invokeRPCRequest(shardID, wire.NewResetRequest(subregion, newMetadata), c.transport, c.serializer)
	return err
}
