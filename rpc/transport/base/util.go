package base

import (
	"encoding/binary"
	"io"
	"net"
)

// Frame kinds
const (
	// frameKindCall is a synchronous request expecting an inline response
	frameKindCall byte = iota + 1
	// frameKindCallAsync is an asynchronous request; the outcome arrives
	// later as a completion frame tagged with the same correlation id
	frameKindCallAsync
	// frameKindResponse answers a frameKindCall
	frameKindResponse
	// frameKindCompletion carries the outcome of a frameKindCallAsync
	frameKindCompletion
)

// Frame flags
const (
	// frameFlagCompressed marks an S2-compressed payload
	frameFlagCompressed byte = 1 << 0
)

const frameHeaderSize = 14

// writeFrame writes a frame to the connection with the format:
// - 1 byte:  kind
// - 1 byte:  flags
// - 8 bytes: correlation id (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, kind byte, flags byte, correlationID uint64, data []byte) error {
	header := make([]byte, frameHeaderSize)
	header[0] = kind
	header[1] = flags
	binary.BigEndian.PutUint64(header[2:10], correlationID)
	binary.BigEndian.PutUint32(header[10:14], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(conn net.Conn, buf []byte) (byte, byte, uint64, []byte, error) {
	// Check if buffer is large enough for header
	if buf == nil || len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	// Read header
	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, 0, 0, nil, err
	}

	// Parse header
	kind := buf[0]
	flags := buf[1]
	correlationID := binary.BigEndian.Uint64(buf[2:10])
	contentLength := binary.BigEndian.Uint32(buf[10:14])

	// If no data, return empty slice
	if contentLength == 0 {
		return kind, flags, correlationID, []byte{}, nil
	}

	// Check if buffer is large enough for data
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	// Read data
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, 0, nil, err
	}

	// Return data
	return kind, flags, correlationID, buf[:contentLength], nil
}
