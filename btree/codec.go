package btree

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/kvshard/core/query"
	"github.com/kvshard/core/region"
)

// encodeEntry serializes an atom (plus its tombstone flag) for the page
// store. The layout is fixed-width header fields followed by the value
// payload; it need not be stable across versions the way region keys are,
// since it is never read by anything outside this package.
func encodeEntry(a query.Atom, deleted bool) []byte {
	buf := make([]byte, 0, 32+len(a.Value))
	var tmp [8]byte

	binary.BigEndian.PutUint32(tmp[:4], a.Flags)
	buf = append(buf, tmp[:4]...)
	binary.BigEndian.PutUint32(tmp[:4], a.Exptime)
	buf = append(buf, tmp[:4]...)
	binary.BigEndian.PutUint64(tmp[:8], a.Cas)
	buf = append(buf, tmp[:8]...)
	binary.BigEndian.PutUint64(tmp[:8], a.Recency)
	buf = append(buf, tmp[:8]...)

	if deleted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = append(buf, a.Value...)
	return buf
}

func decodeEntry(b []byte) (query.Atom, bool, error) {
	const headerLen = 4 + 4 + 8 + 8 + 1
	if len(b) < headerLen {
		return query.Atom{}, false, fmt.Errorf("btree: entry payload too short")
	}
	a := query.Atom{
		Flags:   binary.BigEndian.Uint32(b[0:4]),
		Exptime: binary.BigEndian.Uint32(b[4:8]),
		Cas:     binary.BigEndian.Uint64(b[8:16]),
		Recency: binary.BigEndian.Uint64(b[16:24]),
	}
	deleted := b[24] == 1
	a.Value = append([]byte{}, b[headerLen:]...)
	return a, deleted, nil
}

// encodeTombstone serializes a rangeTombstone so it survives a restart:
// bound bytes, then the key lengths and bytes, then the sequence number.
func encodeTombstone(t rangeTombstone) []byte {
	buf := make([]byte, 0, 2+8+8+len(t.region.LeftKey)+len(t.region.RightKey))
	buf = append(buf, byte(t.region.LeftBound), byte(t.region.RightBound))

	var tmp [8]byte
	binary.BigEndian.PutUint32(tmp[:4], uint32(len(t.region.LeftKey)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, t.region.LeftKey...)
	binary.BigEndian.PutUint32(tmp[:4], uint32(len(t.region.RightKey)))
	buf = append(buf, tmp[:4]...)
	buf = append(buf, t.region.RightKey...)

	binary.BigEndian.PutUint64(tmp[:8], t.seq)
	buf = append(buf, tmp[:8]...)
	return buf
}

func decodeTombstone(b []byte) (rangeTombstone, error) {
	if len(b) < 2+4 {
		return rangeTombstone{}, fmt.Errorf("btree: tombstone payload too short")
	}
	leftBound := region.Bound(b[0])
	rightBound := region.Bound(b[1])
	b = b[2:]

	leftLen := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < leftLen+4 {
		return rangeTombstone{}, fmt.Errorf("btree: tombstone payload truncated")
	}
	leftKey := append([]byte{}, b[:leftLen]...)
	b = b[leftLen:]

	rightLen := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < rightLen+8 {
		return rangeTombstone{}, fmt.Errorf("btree: tombstone payload truncated")
	}
	rightKey := append([]byte{}, b[:rightLen]...)
	b = b[rightLen:]

	seq := binary.BigEndian.Uint64(b[:8])

	return rangeTombstone{
		region: region.Region{LeftBound: leftBound, LeftKey: leftKey, RightBound: rightBound, RightKey: rightKey},
		seq:    seq,
	}, nil
}

func parseUint(b []byte) (uint64, error) {
	return strconv.ParseUint(string(b), 10, 64)
}

func formatUint(n uint64) []byte {
	return []byte(strconv.FormatUint(n, 10))
}
