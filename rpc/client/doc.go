// Package client implements the RPC client side of this storage core: a
// Client that encodes the same read/write/metainfo/backfill vocabulary
// store.Store exposes locally as wire.Message requests, sends them over
// a configured transport, and decodes the matching response.
//
// The package focuses on:
//   - Translating domain calls (query.Read/Mutation, metainfo.Map,
//     backfill.Chunk) into wire.Message requests and back
//   - Retrying nothing itself; retry policy belongs to the configured
//     transport (see rpc/transport/base)
//   - Surfacing an OpError response as a Go error rather than a Message
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	  Transport: common.TransportConfig{
//	    Endpoints:  []string{"localhost:8080"},
//	    RetryCount: 3,
//	  },
//	}
//
//	c, err := client.NewClient(config, tcp.NewTCPClientTransport(), wire.NewBinarySerializer())
//	if err != nil {
//	  log.Fatalf("connect: %v", err)
//	}
//	defer c.Close()
//
//	resp, err := c.Read(ctx, shardID, metainfo.Map{}, query.NewGet([]byte("mykey")))
//
// Thread Safety:
//
//	Client is safe for concurrent use by multiple goroutines; each call
//	is an independent request/response round trip over the underlying
//	transport.
package client
