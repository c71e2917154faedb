package vio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// OpenRequest opens an entry reachable from the connection's node. The
// server end of the new connection travels attached to the message; the
// outcome is reported on that end via OnOpen when OpenFlagDescribe is set.
type OpenRequest struct {
	Flags OpenFlags
	Mode  uint32
	Path  string
}

// Encode serializes the request body.
func (req *OpenRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(req.Flags)); err != nil {
		return nil, fmt.Errorf("write flags: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, req.Mode); err != nil {
		return nil, fmt.Errorf("write mode: %w", err)
	}
	if err := EncodeString(&buf, req.Path); err != nil {
		return nil, fmt.Errorf("write path: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeOpenRequest parses an Open request body.
func DecodeOpenRequest(data []byte) (*OpenRequest, error) {
	reader := bytes.NewReader(data)

	req := &OpenRequest{}

	var flags uint32
	if err := binary.Read(reader, binary.BigEndian, &flags); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}
	req.Flags = OpenFlags(flags)

	if err := binary.Read(reader, binary.BigEndian, &req.Mode); err != nil {
		return nil, fmt.Errorf("read mode: %w", err)
	}

	path, err := DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("read path: %w", err)
	}
	req.Path = path

	return req, nil
}

// OnOpenEvent reports the outcome of an Open or Clone on the new connection's
// channel. Info is present only on success, and only when the opener asked
// for a description.
type OnOpenEvent struct {
	Status Status
	Info   *NodeInfo
}

// Encode serializes the event body.
func (ev *OnOpenEvent) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(ev.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	if ev.Info != nil {
		if err := binary.Write(&buf, binary.BigEndian, uint32(1)); err != nil {
			return nil, err
		}
		if err := ev.Info.Encode(&buf); err != nil {
			return nil, err
		}
	} else {
		if err := binary.Write(&buf, binary.BigEndian, uint32(0)); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// DecodeOnOpenEvent parses an OnOpen event body.
func DecodeOnOpenEvent(data []byte) (*OnOpenEvent, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	ev := &OnOpenEvent{Status: Status(status)}

	var present uint32
	if err := binary.Read(reader, binary.BigEndian, &present); err != nil {
		return nil, fmt.Errorf("read info marker: %w", err)
	}
	if present != 0 {
		info, err := DecodeNodeInfo(reader)
		if err != nil {
			return nil, err
		}
		ev.Info = info
	}

	return ev, nil
}
