package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// maxFrameBytes bounds the content length a frame header may claim.
// Nothing on the sending side enforces it: a send-backfill response
// batches every chunk its scan produced into one frame, with no size cap
// of its own. readFrame treats a larger claim as a corrupted header or a
// peer speaking a different protocol and refuses to allocate for it.
const maxFrameBytes = 256 * 1024 * 1024

// writeFrame writes one serialized wire.Message (data) to conn as:
//   - 8 bytes: shardID (uint64, big endian) - which shard this addresses
//   - 8 bytes: requestID (uint64, big endian) - correlates request/response
//   - 4 bytes: length of data (uint32, big endian)
//   - N bytes: data itself
func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	header := make([]byte, 20)
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(conn net.Conn, buf []byte) (uint64, uint64, []byte, error) {
	// Check if buffer is large enough for header
	if buf == nil || len(buf) < 20 {
		buf = make([]byte, 20) // create header buffer
	}

	// Read header
	if _, err := io.ReadFull(conn, buf[:20]); err != nil {
		return 0, 0, nil, err
	}

	// Parse header
	shardID := binary.BigEndian.Uint64(buf[:8])
	requestID := binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	if contentLength > maxFrameBytes {
		return 0, 0, nil, fmt.Errorf("frame length %d exceeds maximum of %d bytes", contentLength, maxFrameBytes)
	}

	// If no data, return empty slice
	if contentLength == 0 {
		return shardID, requestID, []byte{}, nil
	}

	// Check if buffer is large enough for data
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	// Read data
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	// Return data
	return shardID, requestID, buf[:contentLength], nil
}
