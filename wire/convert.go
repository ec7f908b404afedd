package wire

import (
	"github.com/kvshard/core/backfill"
	"github.com/kvshard/core/metainfo"
	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
)

// toRegionBound/fromRegionBound translate between the wire's RegionBound
// and region.Bound, which are intentionally kept as separate types so the
// protocol never imports region's byte-key encoding concerns.

func toRegionBound(b RegionBound) region.Bound {
	switch b {
	case BoundClosed:
		return region.BoundClosed
	case BoundOpen:
		return region.BoundOpen
	default:
		return region.BoundNone
	}
}

func fromRegionBound(b region.Bound) RegionBound {
	switch b {
	case region.BoundClosed:
		return BoundClosed
	case region.BoundOpen:
		return BoundOpen
	default:
		return BoundNone
	}
}

// ToRegion reconstructs the region carried by a Message's range fields.
func (m *Message) ToRegion() region.Region {
	return region.Region{
		LeftBound:  toRegionBound(m.LeftBound),
		LeftKey:    m.LeftKey,
		RightBound: toRegionBound(m.RightBound),
		RightKey:   m.RightKey,
	}
}

// SetRegion populates a Message's range fields from r.
func (m *Message) SetRegion(r region.Region) {
	m.LeftBound = fromRegionBound(r.LeftBound)
	m.LeftKey = r.LeftKey
	m.RightBound = fromRegionBound(r.RightBound)
	m.RightKey = r.RightKey
}

func toAtom(a MetaAtom) query.Atom {
	return query.Atom{Key: a.Key, Value: a.Value, Flags: a.Flags, Exptime: a.Exptime, Cas: a.Cas, Recency: a.Recency}
}

func fromAtom(a query.Atom) MetaAtom {
	return MetaAtom{Key: a.Key, Value: a.Value, Flags: a.Flags, Exptime: a.Exptime, Cas: a.Cas, Recency: a.Recency}
}

func toMetaEntries(entries []MetaEntry) []region.Entry[[]byte] {
	out := make([]region.Entry[[]byte], len(entries))
	for i, e := range entries {
		out[i] = region.Entry[[]byte]{
			Region: region.Region{
				LeftBound:  toRegionBound(e.LeftBound),
				LeftKey:    e.LeftKey,
				RightBound: toRegionBound(e.RightBound),
				RightKey:   e.RightKey,
			},
			Value: e.Blob,
		}
	}
	return out
}

func fromMetaEntries(entries []region.Entry[[]byte]) []MetaEntry {
	out := make([]MetaEntry, len(entries))
	for i, e := range entries {
		out[i] = MetaEntry{
			LeftBound:  fromRegionBound(e.Region.LeftBound),
			LeftKey:    e.Region.LeftKey,
			RightBound: fromRegionBound(e.Region.RightBound),
			RightKey:   e.Region.RightKey,
			Blob:       e.Value,
		}
	}
	return out
}

// toMetainfoMap decodes entries into a metainfo.Map. The map's domain is
// derived entirely from entries; callers that only need it masked onto a
// single query's region rely on Store.Read/Write doing that masking, so an
// empty entry list decodes to an empty map rather than a sentinel domain.
func toMetainfoMap(entries []MetaEntry) metainfo.Map {
	return region.NewMap(toMetaEntries(entries))
}

// fromMetainfoMap flattens a metainfo.Map's entries into wire MetaEntries.
func fromMetainfoMap(m metainfo.Map) []MetaEntry {
	return fromMetaEntries(m.Entries())
}

// MetaEntriesFrom flattens a metainfo.Map into wire MetaEntries, for
// callers building a Message's ExpectedMeta/NewMeta/MetaEntries fields
// directly rather than through one of the New*Request constructors.
func MetaEntriesFrom(m metainfo.Map) []MetaEntry {
	return fromMetainfoMap(m)
}

// ToRead reconstructs the query.Read this Message requests.
func (m *Message) ToRead() query.Read {
	switch m.Op {
	case OpGet:
		return query.NewGet(m.Key)
	case OpRget:
		return query.NewRget(toRegionBound(m.LeftBound), m.LeftKey, toRegionBound(m.RightBound), m.RightKey)
	default:
		panic("wire: message op is not a read")
	}
}

// ToMutation reconstructs the query.Mutation this Message requests.
func (m *Message) ToMutation() query.Mutation {
	kind := map[OpCode]query.MutationKind{
		OpSet:     query.MutSet,
		OpAdd:     query.MutAdd,
		OpReplace: query.MutReplace,
		OpCAS:     query.MutCAS,
		OpAppend:  query.MutAppend,
		OpPrepend: query.MutPrepend,
		OpIncr:    query.MutIncr,
		OpDecr:    query.MutDecr,
		OpDelete:  query.MutDelete,
	}[m.Op]
	return query.Mutation{
		Kind:        kind,
		Key:         m.Key,
		Value:       m.Value,
		Delta:       m.Delta,
		Flags:       m.Flags,
		Exptime:     m.Exptime,
		ProposedCas: m.Cas,
		ExpectedCas: m.ExpectedCas,
	}
}

// ExpectedMetainfo decodes the expected-metadata precondition a read or
// write request carries, unmasked; Store.Read/Write mask it to the
// request's region.
func (m *Message) ExpectedMetainfo() metainfo.Map {
	return toMetainfoMap(m.ExpectedMeta)
}

// NewMetainfo decodes the metadata update a write request carries.
func (m *Message) NewMetainfo() metainfo.Map {
	return toMetainfoMap(m.NewMeta)
}

// ToStartPoint decodes a send-backfill request's per-region resume points.
func (m *Message) ToStartPoint() []backfill.StartPointEntry {
	out := make([]backfill.StartPointEntry, len(m.StartPoint))
	for i, e := range m.StartPoint {
		out[i] = backfill.StartPointEntry{
			Region: region.Region{
				LeftBound:  toRegionBound(e.LeftBound),
				LeftKey:    e.LeftKey,
				RightBound: toRegionBound(e.RightBound),
				RightKey:   e.RightKey,
			},
			Timestamp: e.Timestamp,
		}
	}
	return out
}

func fromStartPoint(entries []backfill.StartPointEntry) []BackfillStartPointEntry {
	out := make([]BackfillStartPointEntry, len(entries))
	for i, e := range entries {
		out[i] = BackfillStartPointEntry{
			LeftBound:  fromRegionBound(e.Region.LeftBound),
			LeftKey:    e.Region.LeftKey,
			RightBound: fromRegionBound(e.Region.RightBound),
			RightKey:   e.Region.RightKey,
			Timestamp:  e.Timestamp,
		}
	}
	return out
}

// ToChunk decodes the backfill chunk carried by a receive-backfill request.
func (m *Message) ToChunk() backfill.Chunk {
	kind := backfill.ChunkKind(m.ChunkKind)
	switch kind {
	case backfill.ChunkDeleteRange:
		return backfill.Chunk{Kind: kind, Region: m.ToRegion()}
	case backfill.ChunkDeleteKey:
		return backfill.Chunk{Kind: kind, Key: m.ChunkKey}
	case backfill.ChunkSetKey:
		return backfill.Chunk{Kind: kind, Key: m.ChunkKey, Atom: toAtom(m.ChunkAtom)}
	default:
		panic("wire: unknown chunk kind")
	}
}

// NewBackfillChunkMessage builds an OpReceiveBackfill request carrying chunk.
func NewBackfillChunkMessage(chunk backfill.Chunk) Message {
	msg := Message{Op: OpReceiveBackfill, ChunkKind: ChunkKind(chunk.Kind), ChunkKey: chunk.Key, ChunkAtom: fromAtom(chunk.Atom)}
	msg.SetRegion(chunk.Region)
	return msg
}

func fromChunk(c backfill.Chunk) BackfillChunkEntry {
	e := BackfillChunkEntry{Kind: ChunkKind(c.Kind), Key: c.Key, Atom: fromAtom(c.Atom)}
	e.LeftBound = fromRegionBound(c.Region.LeftBound)
	e.LeftKey = c.Region.LeftKey
	e.RightBound = fromRegionBound(c.Region.RightBound)
	e.RightKey = c.Region.RightKey
	return e
}

func toChunk(e BackfillChunkEntry) backfill.Chunk {
	return backfill.Chunk{
		Kind: backfill.ChunkKind(e.Kind),
		Region: region.Region{
			LeftBound:  toRegionBound(e.LeftBound),
			LeftKey:    e.LeftKey,
			RightBound: toRegionBound(e.RightBound),
			RightKey:   e.RightKey,
		},
		Key:  e.Key,
		Atom: toAtom(e.Atom),
	}
}

// ToChunks decodes a batched send-backfill response's chunks.
func (m *Message) ToChunks() []backfill.Chunk {
	out := make([]backfill.Chunk, len(m.Chunks))
	for i, c := range m.Chunks {
		out[i] = toChunk(c)
	}
	return out
}

// NewReadRequest builds a Get or Rget request from q.
func NewReadRequest(q query.Read) Message {
	switch q.Kind {
	case query.ReadGet:
		return Message{Op: OpGet, Key: q.Key}
	case query.ReadRget:
		msg := Message{Op: OpRget}
		msg.LeftBound = fromRegionBound(q.LeftBound)
		msg.LeftKey = q.LeftKey
		msg.RightBound = fromRegionBound(q.RightBound)
		msg.RightKey = q.RightKey
		return msg
	default:
		panic("wire: unknown read kind")
	}
}

// NewMutationRequest builds a write request for m, carrying the metadata
// precondition/update the store facade checks alongside it.
func NewMutationRequest(m query.Mutation, expected, newMeta metainfo.Map, timestamp uint64) Message {
	op := map[query.MutationKind]OpCode{
		query.MutSet:     OpSet,
		query.MutAdd:     OpAdd,
		query.MutReplace: OpReplace,
		query.MutCAS:     OpCAS,
		query.MutAppend:  OpAppend,
		query.MutPrepend: OpPrepend,
		query.MutIncr:    OpIncr,
		query.MutDecr:    OpDecr,
		query.MutDelete:  OpDelete,
	}[m.Kind]
	return Message{
		Op:           op,
		Key:          m.Key,
		Value:        m.Value,
		Delta:        m.Delta,
		Flags:        m.Flags,
		Exptime:      m.Exptime,
		Cas:          m.ProposedCas,
		ExpectedCas:  m.ExpectedCas,
		Timestamp:    timestamp,
		ExpectedMeta: fromMetainfoMap(expected),
		NewMeta:      fromMetainfoMap(newMeta),
	}
}

// NewGetMetainfoRequest builds an OpGetMetainfo request.
func NewGetMetainfoRequest() Message {
	return Message{Op: OpGetMetainfo}
}

// ToGetResult decodes a Get response.
func (m *Message) ToGetResult() query.GetResult {
	if !m.Found || len(m.Atoms) == 0 {
		return query.GetResult{Found: m.Found}
	}
	return query.GetResult{Atom: toAtom(m.Atoms[0]), Found: true}
}

// sliceRgetResult adapts a decoded atom slice to query.RgetResult.
type sliceRgetResult struct {
	atoms []query.Atom
	pos   int
}

func (s *sliceRgetResult) Next() (query.Atom, bool, error) {
	if s.pos >= len(s.atoms) {
		return query.Atom{}, false, nil
	}
	a := s.atoms[s.pos]
	s.pos++
	return a, true, nil
}

// ToRgetResult decodes an Rget response into a replayable RgetResult.
func (m *Message) ToRgetResult() query.RgetResult {
	atoms := make([]query.Atom, len(m.Atoms))
	for i, a := range m.Atoms {
		atoms[i] = toAtom(a)
	}
	return &sliceRgetResult{atoms: atoms}
}

// ToMutationResult decodes a mutation response.
func (m *Message) ToMutationResult() query.MutationResult {
	var value []byte
	if len(m.Atoms) > 0 {
		value = m.Atoms[0].Value
	}
	return query.MutationResult{Ok: m.Ok, Value: value, Cas: m.Cas}
}

// ToMetainfoResult decodes a GetMetainfo response.
func (m *Message) ToMetainfoResult() metainfo.Map {
	return toMetainfoMap(m.MetaEntries)
}

// ToBackfillResult decodes a send-backfill response.
func (m *Message) ToBackfillResult() (done bool, chunks []backfill.Chunk) {
	return m.Ok, m.ToChunks()
}

// NewGetResponse builds an OpSuccess response carrying a Get result.
func NewGetResponse(res query.GetResult) Message {
	msg := Message{Op: OpSuccess, Found: res.Found}
	if res.Found {
		msg.Atoms = []MetaAtom{fromAtom(res.Atom)}
	}
	return msg
}

// NewRgetResponse drains iter completely into an OpSuccess response
// carrying every matched atom.
func NewRgetResponse(iter query.RgetResult) (Message, error) {
	msg := Message{Op: OpSuccess}
	for {
		atom, ok, err := iter.Next()
		if err != nil {
			return Message{}, err
		}
		if !ok {
			break
		}
		msg.Atoms = append(msg.Atoms, fromAtom(atom))
	}
	return msg, nil
}

// NewMutationResponse builds an OpSuccess response carrying a mutation's
// outcome.
func NewMutationResponse(res query.MutationResult) Message {
	return Message{Op: OpSuccess, Ok: res.Ok, Atoms: []MetaAtom{{Value: res.Value, Cas: res.Cas}}, Cas: res.Cas, Value: res.Value}
}

// NewMetainfoResponse builds an OpSuccess response carrying a metainfo map.
func NewMetainfoResponse(m metainfo.Map) Message {
	return Message{Op: OpSuccess, MetaEntries: fromMetainfoMap(m)}
}

// NewBackfillResultResponse builds an OpSuccess response carrying a
// send-backfill completion flag plus every chunk the source produced.
func NewBackfillResultResponse(done bool, chunks []backfill.Chunk) Message {
	out := make([]BackfillChunkEntry, len(chunks))
	for i, c := range chunks {
		out[i] = fromChunk(c)
	}
	return Message{Op: OpSuccess, Ok: done, Chunks: out}
}

// NewOkResponse builds a bare OpSuccess acknowledgement.
func NewOkResponse() Message {
	return Message{Op: OpSuccess, Ok: true}
}

// NewSetMetainfoRequest builds an OpSetMetainfo request carrying new.
func NewSetMetainfoRequest(new metainfo.Map) Message {
	return Message{Op: OpSetMetainfo, MetaEntries: fromMetainfoMap(new)}
}

// ToSetMetainfo decodes the metainfo map carried by an OpSetMetainfo or
// OpReset request, as is; no mask is applied.
func (m *Message) ToSetMetainfo() metainfo.Map {
	return toMetainfoMap(m.MetaEntries)
}

// NewSendBackfillRequest builds an OpSendBackfill request.
func NewSendBackfillRequest(startPoint []backfill.StartPointEntry) Message {
	return Message{Op: OpSendBackfill, StartPoint: fromStartPoint(startPoint)}
}

// NewResetRequest builds an OpReset request over subregion, carrying the
// metadata that should replace it.
func NewResetRequest(subregion region.Region, newMetadata metainfo.Map) Message {
	msg := Message{Op: OpReset, MetaEntries: fromMetainfoMap(newMetadata)}
	msg.SetRegion(subregion)
	return msg
}
