package region

import (
	"encoding/binary"
	"fmt"
)

// EncodeKey renders r as a stable byte string suitable for use as a
// persistent key in the superblock's metainfo block. The encoding is
// deterministic and must never change shape across versions of this
// package, since it is effectively part of the on-disk format.
func EncodeKey(r Region) []byte {
	buf := make([]byte, 0, 2+len(r.LeftKey)+len(r.RightKey)+10)
	buf = append(buf, byte(r.LeftBound))
	buf = appendVarBytes(buf, r.LeftKey)
	buf = append(buf, byte(r.RightBound))
	buf = appendVarBytes(buf, r.RightKey)
	return buf
}

func appendVarBytes(buf []byte, b []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	buf = append(buf, lenBuf[:n]...)
	return append(buf, b...)
}

// DecodeKey parses bytes produced by EncodeKey. It returns an error rather
// than panicking since malformed superblock contents are a BTreeError-class
// failure (storage corruption), not a programming error.
func DecodeKey(b []byte) (Region, error) {
	if len(b) < 1 {
		return Region{}, fmt.Errorf("region: encoded key too short")
	}
	r := Region{LeftBound: Bound(b[0])}
	rest := b[1:]

	leftKey, rest, err := readVarBytes(rest)
	if err != nil {
		return Region{}, fmt.Errorf("region: decoding left key: %w", err)
	}
	r.LeftKey = leftKey

	if len(rest) < 1 {
		return Region{}, fmt.Errorf("region: encoded key missing right bound")
	}
	r.RightBound = Bound(rest[0])
	rest = rest[1:]

	rightKey, rest, err := readVarBytes(rest)
	if err != nil {
		return Region{}, fmt.Errorf("region: decoding right key: %w", err)
	}
	if len(rest) != 0 {
		return Region{}, fmt.Errorf("region: trailing bytes after encoded key")
	}
	r.RightKey = rightKey

	return r, nil
}

func readVarBytes(b []byte) ([]byte, []byte, error) {
	n, k := binary.Uvarint(b)
	if k <= 0 {
		return nil, nil, fmt.Errorf("invalid varint length prefix")
	}
	b = b[k:]
	if uint64(len(b)) < n {
		return nil, nil, fmt.Errorf("truncated key payload")
	}
	if n == 0 {
		return nil, b, nil
	}
	return b[:n], b[n:], nil
}
