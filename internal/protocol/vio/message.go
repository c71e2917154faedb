package vio

import (
	"bytes"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// MessageHeader is the XDR-encoded envelope that starts every message.
type MessageHeader struct {
	XID uint32
	Op  uint32
}

// HeaderSize is the encoded size of a MessageHeader.
const HeaderSize = 8

// Message is a single decoded protocol message: the envelope plus the raw
// operation body. Attached channel ends travel out of band (see pkg/channel).
type Message struct {
	XID  uint32
	Op   uint32
	Body []byte
}

// EventXID is the XID carried by unsolicited events such as OnOpen.
const EventXID = 0

// ParseMessage splits a payload into envelope and body.
func ParseMessage(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("message too short: %d bytes", len(data))
	}

	hdr := &MessageHeader{}
	if _, err := xdr.Unmarshal(bytes.NewReader(data[:HeaderSize]), hdr); err != nil {
		return nil, fmt.Errorf("unmarshal message header: %w", err)
	}

	return &Message{
		XID:  hdr.XID,
		Op:   hdr.Op,
		Body: data[HeaderSize:],
	}, nil
}

// Encode serializes the envelope and appends the body.
func (m *Message) Encode() ([]byte, error) {
	var buf bytes.Buffer

	hdr := MessageHeader{XID: m.XID, Op: m.Op}
	if _, err := xdr.Marshal(&buf, &hdr); err != nil {
		return nil, fmt.Errorf("marshal message header: %w", err)
	}

	buf.Write(m.Body)
	return buf.Bytes(), nil
}

// BodyReader returns a reader over the message body, for the per-operation
// decoders.
func (m *Message) BodyReader() io.Reader {
	return bytes.NewReader(m.Body)
}
