package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

const (
	headerSize = 12

	// maxFrameSize bounds a single payload, larger announcements are treated as corrupt streams
	maxFrameSize = 256 * 1024 * 1024
)

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, requestID uint64, data []byte) error {
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint64(header[:8], requestID)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(data)))

	b := net.Buffers{header}
	if len(data) > 0 {
		b = append(b, data)
	}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one frame from r and returns its request id and payload
func readFrame(r io.Reader) (uint64, []byte, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	requestID := binary.BigEndian.Uint64(header[:8])
	contentLength := binary.BigEndian.Uint32(header[8:12])

	// If no data, return empty slice
	if contentLength == 0 {
		return requestID, []byte{}, nil
	}
	if contentLength > maxFrameSize {
		return 0, nil, fmt.Errorf("frame of %d bytes exceeds limit", contentLength)
	}

	data := make([]byte, contentLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return requestID, data, nil
}
