// Package storeadapter dispatches decoded wire.Message requests against a
// shard's store.Store. It sits beneath both the RPC server's transport
// handler and the replica package's consensus state machine, so each can
// apply the same request without creating an import cycle between them.
package storeadapter

import (
	"context"
	"fmt"

	"github.com/kvshard/core/backfill"
	"github.com/kvshard/core/metainfo"
	"github.com/kvshard/core/store"
	"github.com/kvshard/core/wire"
)

// Adapter translates one decoded wire.Message against a shard's
// store.Store and returns the response Message. Implementations must
// never panic on a malformed request; they report it as an OpError
// response instead, mirroring the caller's trust boundary (the network).
type Adapter interface {
	Handle(ctx context.Context, req *wire.Message, s *store.Store) (resp *wire.Message)
}

// New returns the adapter every shard uses: it dispatches a decoded
// Message's Op against the shard's store.Store, translating between the
// wire representation and the query/metainfo/backfill types the store
// facade speaks.
func New() Adapter {
	return &storeAdapter{}
}

type storeAdapter struct{}

func (a *storeAdapter) Handle(ctx context.Context, req *wire.Message, s *store.Store) (resp *wire.Message) {
	if s == nil {
		return errResponse(fmt.Errorf("handler: store is nil"))
	}

	// Malformed requests surface as translation panics (unknown op kinds,
	// region preconditions); turn those into ordinary error responses
	// rather than taking the connection down.
	defer func() {
		if r := recover(); r != nil {
			resp = errResponse(fmt.Errorf("handler: %v", r))
		}
	}()

	switch req.Op {
	case wire.OpGet, wire.OpRget:
		return a.handleRead(ctx, req, s)
	case wire.OpSet, wire.OpAdd, wire.OpReplace, wire.OpCAS, wire.OpAppend, wire.OpPrepend,
		wire.OpIncr, wire.OpDecr, wire.OpDelete:
		return a.handleWrite(ctx, req, s)
	case wire.OpGetMetainfo:
		return a.handleGetMetainfo(ctx, req, s)
	case wire.OpSetMetainfo:
		return a.handleSetMetainfo(ctx, req, s)
	case wire.OpSendBackfill:
		return a.handleSendBackfill(ctx, req, s)
	case wire.OpReceiveBackfill:
		return a.handleReceiveBackfill(ctx, req, s)
	case wire.OpReset:
		return a.handleReset(ctx, req, s)
	default:
		return errResponse(fmt.Errorf("handler: unsupported op %s", req.Op))
	}
}

func (a *storeAdapter) handleRead(ctx context.Context, req *wire.Message, s *store.Store) *wire.Message {
	ticket := s.NewReadTicket()
	resp, err := s.Read(ctx, req.ExpectedMetainfo(), req.ToRead(), ticket)
	if err != nil {
		return errResponse(err)
	}
	if req.Op == wire.OpGet {
		m := wire.NewGetResponse(resp.Get)
		return &m
	}
	m, err := wire.NewRgetResponse(resp.Rget)
	if err != nil {
		return errResponse(err)
	}
	return &m
}

func (a *storeAdapter) handleWrite(ctx context.Context, req *wire.Message, s *store.Store) *wire.Message {
	ticket := s.NewWriteTicket()
	res, err := s.Write(ctx, req.ExpectedMetainfo(), req.NewMetainfo(), req.ToMutation(), req.Timestamp, ticket)
	if err != nil {
		return errResponse(err)
	}
	m := wire.NewMutationResponse(res)
	return &m
}

func (a *storeAdapter) handleGetMetainfo(ctx context.Context, req *wire.Message, s *store.Store) *wire.Message {
	ticket := s.NewReadTicket()
	info, err := s.GetMetainfo(ctx, ticket)
	if err != nil {
		return errResponse(err)
	}
	m := wire.NewMetainfoResponse(info)
	return &m
}

func (a *storeAdapter) handleSetMetainfo(ctx context.Context, req *wire.Message, s *store.Store) *wire.Message {
	ticket := s.NewWriteTicket()
	if err := s.SetMetainfo(ctx, req.ToSetMetainfo(), ticket); err != nil {
		return errResponse(err)
	}
	m := wire.NewOkResponse()
	return &m
}

func (a *storeAdapter) handleSendBackfill(ctx context.Context, req *wire.Message, s *store.Store) *wire.Message {
	ticket := s.NewReadTicket()

	// This protocol is strictly request/response per frame, so the chunks
	// a backfill scan produces are buffered into one response rather than
	// streamed as they're found.
	var chunks []backfill.Chunk
	sink := func(c backfill.Chunk) error {
		chunks = append(chunks, c)
		return nil
	}
	shouldBackfill := func(metainfo.Map) bool { return true }

	done, err := s.SendBackfill(ctx, req.ToStartPoint(), shouldBackfill, sink, ticket)
	if err != nil {
		return errResponse(err)
	}
	m := wire.NewBackfillResultResponse(done, chunks)
	return &m
}

func (a *storeAdapter) handleReceiveBackfill(ctx context.Context, req *wire.Message, s *store.Store) *wire.Message {
	ticket := s.NewWriteTicket()
	if err := s.ReceiveBackfill(ctx, req.ToChunk(), ticket); err != nil {
		return errResponse(err)
	}
	m := wire.NewOkResponse()
	return &m
}

func (a *storeAdapter) handleReset(ctx context.Context, req *wire.Message, s *store.Store) *wire.Message {
	ticket := s.NewWriteTicket()
	if err := s.ResetData(ctx, req.ToRegion(), req.ToSetMetainfo(), ticket); err != nil {
		return errResponse(err)
	}
	m := wire.NewOkResponse()
	return &m
}

func errResponse(err error) *wire.Message {
	m := wire.NewError(err)
	return &m
}
