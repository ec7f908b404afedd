package wire

import (
	"encoding/binary"
	"fmt"
)

// NewBinarySerializer returns a Serializer using a custom flag-byte binary
// format, optimized for size over the encoding/gob and encoding/json
// alternatives above.
func NewBinarySerializer() Serializer { return binarySerializer{} }

type binarySerializer struct{}

// Flag bits for the optional scalar fields. List fields (Atoms,
// MetaEntries, ExpectedMeta, NewMeta, StartPoint) are always written with a
// length prefix, including zero, since "absent" and "empty" are the same
// thing for a slice on this wire.
const (
	flagKey         uint32 = 1 << 0
	flagValue       uint32 = 1 << 1
	flagFlags       uint32 = 1 << 2
	flagExptime     uint32 = 1 << 3
	flagCas         uint32 = 1 << 4
	flagExpectedCas uint32 = 1 << 5
	flagDelta       uint32 = 1 << 6
	flagTimestamp   uint32 = 1 << 7
	flagRange       uint32 = 1 << 8
	flagChunk       uint32 = 1 << 9
	flagOk          uint32 = 1 << 10
	flagFound       uint32 = 1 << 11
	flagErr         uint32 = 1 << 12
)

type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *byteWriter) u32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *byteWriter) u64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *byteWriter) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}
func (w *byteWriter) str(s string) { w.bytes([]byte(s)) }

func (w *byteWriter) metaEntry(e MetaEntry) {
	w.u8(uint8(e.LeftBound))
	w.bytes(e.LeftKey)
	w.u8(uint8(e.RightBound))
	w.bytes(e.RightKey)
	w.bytes(e.Blob)
}

func (w *byteWriter) metaEntries(entries []MetaEntry) {
	w.u32(uint32(len(entries)))
	for _, e := range entries {
		w.metaEntry(e)
	}
}

func (w *byteWriter) backfillChunk(c BackfillChunkEntry) {
	w.u8(uint8(c.Kind))
	w.u8(uint8(c.LeftBound))
	w.bytes(c.LeftKey)
	w.u8(uint8(c.RightBound))
	w.bytes(c.RightKey)
	w.bytes(c.Key)
	w.atom(c.Atom)
}

func (w *byteWriter) backfillChunks(chunks []BackfillChunkEntry) {
	w.u32(uint32(len(chunks)))
	for _, c := range chunks {
		w.backfillChunk(c)
	}
}

func (w *byteWriter) atom(a MetaAtom) {
	w.bytes(a.Key)
	w.bytes(a.Value)
	w.u32(a.Flags)
	w.u32(a.Exptime)
	w.u64(a.Cas)
	w.u64(a.Recency)
}

func (b binarySerializer) Serialize(msg Message) ([]byte, error) {
	w := &byteWriter{}
	w.u8(uint8(msg.Op))

	var flags uint32
	if len(msg.Key) > 0 {
		flags |= flagKey
	}
	if len(msg.Value) > 0 {
		flags |= flagValue
	}
	if msg.Flags != 0 {
		flags |= flagFlags
	}
	if msg.Exptime != 0 {
		flags |= flagExptime
	}
	if msg.Cas != 0 {
		flags |= flagCas
	}
	if msg.ExpectedCas != 0 {
		flags |= flagExpectedCas
	}
	if msg.Delta != 0 {
		flags |= flagDelta
	}
	if msg.Timestamp != 0 {
		flags |= flagTimestamp
	}
	if msg.LeftBound != BoundNone || msg.RightBound != BoundNone {
		flags |= flagRange
	}
	if msg.ChunkKind != ChunkDeleteRange || len(msg.ChunkKey) > 0 || len(msg.ChunkAtom.Key) > 0 {
		flags |= flagChunk
	}
	if msg.Ok {
		flags |= flagOk
	}
	if msg.Found {
		flags |= flagFound
	}
	if msg.Err != "" {
		flags |= flagErr
	}
	w.u32(flags)

	if flags&flagKey != 0 {
		w.bytes(msg.Key)
	}
	if flags&flagValue != 0 {
		w.bytes(msg.Value)
	}
	if flags&flagFlags != 0 {
		w.u32(msg.Flags)
	}
	if flags&flagExptime != 0 {
		w.u32(msg.Exptime)
	}
	if flags&flagCas != 0 {
		w.u64(msg.Cas)
	}
	if flags&flagExpectedCas != 0 {
		w.u64(msg.ExpectedCas)
	}
	if flags&flagDelta != 0 {
		w.u64(msg.Delta)
	}
	if flags&flagTimestamp != 0 {
		w.u64(msg.Timestamp)
	}
	if flags&flagRange != 0 {
		w.u8(uint8(msg.LeftBound))
		w.bytes(msg.LeftKey)
		w.u8(uint8(msg.RightBound))
		w.bytes(msg.RightKey)
	}
	if flags&flagChunk != 0 {
		w.u8(uint8(msg.ChunkKind))
		w.bytes(msg.ChunkKey)
		w.atom(msg.ChunkAtom)
	}
	if flags&flagErr != 0 {
		w.str(msg.Err)
	}

	w.u32(uint32(len(msg.Atoms)))
	for _, a := range msg.Atoms {
		w.atom(a)
	}
	w.metaEntries(msg.MetaEntries)
	w.metaEntries(msg.ExpectedMeta)
	w.metaEntries(msg.NewMeta)

	w.u32(uint32(len(msg.StartPoint)))
	for _, e := range msg.StartPoint {
		w.u8(uint8(e.LeftBound))
		w.bytes(e.LeftKey)
		w.u8(uint8(e.RightBound))
		w.bytes(e.RightKey)
		w.u64(e.Timestamp)
	}

	w.backfillChunks(msg.Chunks)

	return w.buf, nil
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("wire: binary message truncated at offset %d, need %d more bytes", r.pos, n)
	}
	return nil
}

func (r *byteReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *byteReader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := append([]byte{}, r.buf[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return out, nil
}

func (r *byteReader) metaEntry() (MetaEntry, error) {
	var e MetaEntry
	lb, err := r.u8()
	if err != nil {
		return e, err
	}
	e.LeftBound = RegionBound(lb)
	if e.LeftKey, err = r.bytes(); err != nil {
		return e, err
	}
	rb, err := r.u8()
	if err != nil {
		return e, err
	}
	e.RightBound = RegionBound(rb)
	if e.RightKey, err = r.bytes(); err != nil {
		return e, err
	}
	if e.Blob, err = r.bytes(); err != nil {
		return e, err
	}
	return e, nil
}

func (r *byteReader) metaEntries() ([]MetaEntry, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]MetaEntry, n)
	for i := range out {
		if out[i], err = r.metaEntry(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *byteReader) atom() (MetaAtom, error) {
	var a MetaAtom
	var err error
	if a.Key, err = r.bytes(); err != nil {
		return a, err
	}
	if a.Value, err = r.bytes(); err != nil {
		return a, err
	}
	if a.Flags, err = r.u32(); err != nil {
		return a, err
	}
	if a.Exptime, err = r.u32(); err != nil {
		return a, err
	}
	if a.Cas, err = r.u64(); err != nil {
		return a, err
	}
	if a.Recency, err = r.u64(); err != nil {
		return a, err
	}
	return a, nil
}

func (r *byteReader) backfillChunk() (BackfillChunkEntry, error) {
	var c BackfillChunkEntry
	kind, err := r.u8()
	if err != nil {
		return c, err
	}
	c.Kind = ChunkKind(kind)
	lb, err := r.u8()
	if err != nil {
		return c, err
	}
	c.LeftBound = RegionBound(lb)
	if c.LeftKey, err = r.bytes(); err != nil {
		return c, err
	}
	rb, err := r.u8()
	if err != nil {
		return c, err
	}
	c.RightBound = RegionBound(rb)
	if c.RightKey, err = r.bytes(); err != nil {
		return c, err
	}
	if c.Key, err = r.bytes(); err != nil {
		return c, err
	}
	if c.Atom, err = r.atom(); err != nil {
		return c, err
	}
	return c, nil
}

func (r *byteReader) backfillChunks() ([]BackfillChunkEntry, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]BackfillChunkEntry, n)
	for i := range out {
		if out[i], err = r.backfillChunk(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b binarySerializer) Deserialize(data []byte, msg *Message) error {
	r := &byteReader{buf: data}

	op, err := r.u8()
	if err != nil {
		return err
	}
	msg.Op = OpCode(op)

	flags, err := r.u32()
	if err != nil {
		return err
	}

	if flags&flagKey != 0 {
		if msg.Key, err = r.bytes(); err != nil {
			return err
		}
	}
	if flags&flagValue != 0 {
		if msg.Value, err = r.bytes(); err != nil {
			return err
		}
	}
	if flags&flagFlags != 0 {
		if msg.Flags, err = r.u32(); err != nil {
			return err
		}
	}
	if flags&flagExptime != 0 {
		if msg.Exptime, err = r.u32(); err != nil {
			return err
		}
	}
	if flags&flagCas != 0 {
		if msg.Cas, err = r.u64(); err != nil {
			return err
		}
	}
	if flags&flagExpectedCas != 0 {
		if msg.ExpectedCas, err = r.u64(); err != nil {
			return err
		}
	}
	if flags&flagDelta != 0 {
		if msg.Delta, err = r.u64(); err != nil {
			return err
		}
	}
	if flags&flagTimestamp != 0 {
		if msg.Timestamp, err = r.u64(); err != nil {
			return err
		}
	}
	if flags&flagRange != 0 {
		lb, err := r.u8()
		if err != nil {
			return err
		}
		msg.LeftBound = RegionBound(lb)
		if msg.LeftKey, err = r.bytes(); err != nil {
			return err
		}
		rb, err := r.u8()
		if err != nil {
			return err
		}
		msg.RightBound = RegionBound(rb)
		if msg.RightKey, err = r.bytes(); err != nil {
			return err
		}
	}
	if flags&flagChunk != 0 {
		ck, err := r.u8()
		if err != nil {
			return err
		}
		msg.ChunkKind = ChunkKind(ck)
		if msg.ChunkKey, err = r.bytes(); err != nil {
			return err
		}
		if msg.ChunkAtom, err = r.atom(); err != nil {
			return err
		}
	}
	if flags&flagOk != 0 {
		msg.Ok = true
	}
	if flags&flagFound != 0 {
		msg.Found = true
	}
	if flags&flagErr != 0 {
		eb, err := r.bytes()
		if err != nil {
			return err
		}
		msg.Err = string(eb)
	}

	nAtoms, err := r.u32()
	if err != nil {
		return err
	}
	if nAtoms > 0 {
		msg.Atoms = make([]MetaAtom, nAtoms)
		for i := range msg.Atoms {
			if msg.Atoms[i], err = r.atom(); err != nil {
				return err
			}
		}
	}

	if msg.MetaEntries, err = r.metaEntries(); err != nil {
		return err
	}
	if msg.ExpectedMeta, err = r.metaEntries(); err != nil {
		return err
	}
	if msg.NewMeta, err = r.metaEntries(); err != nil {
		return err
	}

	nSP, err := r.u32()
	if err != nil {
		return err
	}
	if nSP > 0 {
		msg.StartPoint = make([]BackfillStartPointEntry, nSP)
		for i := range msg.StartPoint {
			lb, err := r.u8()
			if err != nil {
				return err
			}
			msg.StartPoint[i].LeftBound = RegionBound(lb)
			if msg.StartPoint[i].LeftKey, err = r.bytes(); err != nil {
				return err
			}
			rb, err := r.u8()
			if err != nil {
				return err
			}
			msg.StartPoint[i].RightBound = RegionBound(rb)
			if msg.StartPoint[i].RightKey, err = r.bytes(); err != nil {
				return err
			}
			if msg.StartPoint[i].Timestamp, err = r.u64(); err != nil {
				return err
			}
		}
	}

	if msg.Chunks, err = r.backfillChunks(); err != nil {
		return err
	}

	return nil
}
