// Package wire defines the request/response envelope shared by the RPC
// server and client: one Message struct carrying every memcached-style
// operation this storage core exposes, discriminated by OpCode, plus the
// pluggable Serializer contract used to turn it into bytes.
package wire

// OpCode discriminates the operation a Message carries.
type OpCode uint8

const (
	OpUnknown OpCode = iota
	OpSuccess
	OpError

	OpGet
	OpRget
	OpSet
	OpAdd
	OpReplace
	OpCAS
	OpAppend
	OpPrepend
	OpIncr
	OpDecr
	OpDelete

	OpGetMetainfo
	OpSetMetainfo

	OpSendBackfill
	OpReceiveBackfill
	OpReset
)

// String names an OpCode for logging.
func (o OpCode) String() string {
	switch o {
	case OpSuccess:
		return "success"
	case OpError:
		return "error"
	case OpGet:
		return "get"
	case OpRget:
		return "rget"
	case OpSet:
		return "set"
	case OpAdd:
		return "add"
	case OpReplace:
		return "replace"
	case OpCAS:
		return "cas"
	case OpAppend:
		return "append"
	case OpPrepend:
		return "prepend"
	case OpIncr:
		return "incr"
	case OpDecr:
		return "decr"
	case OpDelete:
		return "delete"
	case OpGetMetainfo:
		return "get-metainfo"
	case OpSetMetainfo:
		return "set-metainfo"
	case OpSendBackfill:
		return "send-backfill"
	case OpReceiveBackfill:
		return "receive-backfill"
	case OpReset:
		return "reset"
	default:
		return "unknown"
	}
}

// RegionBound mirrors region.Bound on the wire without importing the
// region package's byte-key encoding concerns into the protocol.
type RegionBound uint8

const (
	BoundNone   RegionBound = 0
	BoundClosed RegionBound = 1
	BoundOpen   RegionBound = 2
)

// MetaEntry is one (region, blob) pair of a metainfo map, flattened for
// transport.
type MetaEntry struct {
	LeftBound  RegionBound
	LeftKey    []byte
	RightBound RegionBound
	RightKey   []byte
	Blob       []byte
}

// BackfillStartPointEntry is one (region, state_timestamp) pair a
// send-backfill request supplies.
type BackfillStartPointEntry struct {
	LeftBound  RegionBound
	LeftKey    []byte
	RightBound RegionBound
	RightKey   []byte
	Timestamp  uint64
}

// ChunkKind mirrors backfill.ChunkKind on the wire.
type ChunkKind uint8

const (
	ChunkDeleteRange ChunkKind = iota
	ChunkDeleteKey
	ChunkSetKey
)

// Message is the single envelope shared by every request and response
// this protocol carries. Fields are grouped by the operation family that
// uses them; a given Message only populates the fields relevant to its Op.
type Message struct {
	Op OpCode

	// Addressing / key-value fields: Get, Set, Add, Replace, CAS, Append,
	// Prepend, Incr, Decr, Delete.
	Key         []byte
	Value       []byte
	Flags       uint32
	Exptime     uint32
	Cas         uint64
	ExpectedCas uint64
	Delta       uint64
	Timestamp   uint64

	// Range fields: Rget request, Reset subregion.
	LeftBound  RegionBound
	LeftKey    []byte
	RightBound RegionBound
	RightKey   []byte

	// Rget / Get response payload: zero or more matched atoms.
	Atoms []MetaAtom

	// Metainfo fields: GetMetainfo response, SetMetainfo request,
	// expected/new metadata carried alongside any write.
	MetaEntries  []MetaEntry
	ExpectedMeta []MetaEntry
	NewMeta      []MetaEntry

	// Backfill fields. StartPoint carries a send-backfill request's resume
	// points; ChunkKind/ChunkKey/ChunkAtom (with the range fields) carry a
	// single chunk for a receive-backfill push; Chunks carries every chunk
	// of a send-backfill response, batched rather than streamed since this
	// protocol is strictly request/response per frame.
	StartPoint []BackfillStartPointEntry
	ChunkKind  ChunkKind
	ChunkKey   []byte
	ChunkAtom  MetaAtom
	Chunks     []BackfillChunkEntry

	// Response-only fields.
	Ok    bool
	Found bool
	Err   string
}

// BackfillChunkEntry is one chunk of a batched send-backfill response.
type BackfillChunkEntry struct {
	Kind       ChunkKind
	LeftBound  RegionBound
	LeftKey    []byte
	RightBound RegionBound
	RightKey   []byte
	Key        []byte
	Atom       MetaAtom
}

// MetaAtom mirrors query.Atom on the wire.
type MetaAtom struct {
	Key     []byte
	Value   []byte
	Flags   uint32
	Exptime uint32
	Cas     uint64
	Recency uint64
}

// NewError builds an OpError response carrying err's message.
func NewError(err error) Message {
	return Message{Op: OpError, Err: err.Error()}
}
