// Package frame implements the socket framing that multiplexes logical
// channels onto one TCP connection.
//
// Each frame is a big-endian u32 header carrying the last-fragment bit and
// the frame length, then the channel id u32, the minted new-channel id u32,
// a kind byte and the payload. The length covers everything after the
// header.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
)

const (
	// LastFragment marks a header as carrying a complete frame. Fragmented
	// frames are not supported; a clear bit is a protocol violation.
	LastFragment = 0x80000000

	// Overhead is the encoded size of the channel id, new-channel id and
	// kind fields.
	Overhead = 9

	// KindData frames carry one protocol message. KindClose frames announce
	// channel teardown and carry nothing.
	KindData  = 0
	KindClose = 1

	// RootChannelID is pre-opened onto the served root the moment a socket
	// connects. New ids are minted above it.
	RootChannelID = 1
)

// MaxLength bounds what a single frame may carry.
const MaxLength = Overhead + vio.MaxMessage

// Frame is one decoded socket frame.
type Frame struct {
	ChannelID uint32
	NewID     uint32
	Kind      byte
	Payload   []byte
}

// ReadLength decodes a frame header, enforcing the last-fragment bit and the
// length bounds.
func ReadLength(r io.Reader) (uint32, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, err
	}

	raw := binary.BigEndian.Uint32(header[:])
	if raw&LastFragment == 0 {
		return 0, fmt.Errorf("fragmented frames are not supported")
	}

	length := raw & 0x7FFFFFFF
	if length < Overhead || length > MaxLength {
		return 0, fmt.Errorf("frame length %d out of range", length)
	}

	return length, nil
}

// ReadBody reads and splits a frame of the given length.
func ReadBody(r io.Reader, length uint32) (*Frame, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	return &Frame{
		ChannelID: binary.BigEndian.Uint32(buf[0:4]),
		NewID:     binary.BigEndian.Uint32(buf[4:8]),
		Kind:      buf[8],
		Payload:   buf[9:],
	}, nil
}

// Read decodes one whole frame, for callers that need no deadline between
// header and body.
func Read(r io.Reader) (*Frame, error) {
	length, err := ReadLength(r)
	if err != nil {
		return nil, err
	}
	return ReadBody(r, length)
}

// Encode renders a frame, header included.
func Encode(channelID, newID uint32, kind byte, payload []byte) []byte {
	buf := make([]byte, 4+Overhead+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], LastFragment|uint32(Overhead+len(payload)))
	binary.BigEndian.PutUint32(buf[4:8], channelID)
	binary.BigEndian.PutUint32(buf[8:12], newID)
	buf[12] = kind
	copy(buf[13:], payload)
	return buf
}
