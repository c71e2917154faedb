package vio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeOpaque writes variable-length opaque data: a uint32 length prefix,
// the bytes, and zero padding to a 4-byte boundary.
func EncodeOpaque(buf *bytes.Buffer, data []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	buf.Write(data)

	padding := (4 - (len(data) % 4)) % 4
	for i := 0; i < padding; i++ {
		buf.WriteByte(0)
	}
	return nil
}

// DecodeOpaque reads variable-length opaque data written by EncodeOpaque.
// Lengths above MaxMessage are rejected to protect against hostile prefixes.
func DecodeOpaque(reader io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	if length > MaxMessage {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, MaxMessage)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	padding := (4 - (length % 4)) % 4
	if padding > 0 {
		if _, err := io.CopyN(io.Discard, reader, int64(padding)); err != nil {
			return nil, fmt.Errorf("skip padding: %w", err)
		}
	}

	return data, nil
}

// EncodeString writes a string with the same framing as EncodeOpaque.
func EncodeString(buf *bytes.Buffer, s string) error {
	return EncodeOpaque(buf, []byte(s))
}

// DecodeString reads a string written by EncodeString.
func DecodeString(reader io.Reader) (string, error) {
	data, err := DecodeOpaque(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
