package vio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// StatusResponse is the body of every response that carries a bare status:
// Close, Sync, SetAttr, SetFlags, Rewind, Link, Unlink, Rename, Watch,
// Truncate and AdvisoryLock.
type StatusResponse struct {
	Status Status
}

// Encode serializes the response body.
func (resp *StatusResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeStatusResponse parses a bare status body.
func DecodeStatusResponse(data []byte) (*StatusResponse, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	return &StatusResponse{Status: Status(status)}, nil
}

// CloneRequest asks for a sibling connection to the same node. The new
// channel end travels attached to the message.
type CloneRequest struct {
	Flags OpenFlags
}

// Encode serializes the request body.
func (req *CloneRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(req.Flags)); err != nil {
		return nil, fmt.Errorf("write flags: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCloneRequest parses a Clone request body.
func DecodeCloneRequest(data []byte) (*CloneRequest, error) {
	reader := bytes.NewReader(data)

	var flags uint32
	if err := binary.Read(reader, binary.BigEndian, &flags); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	return &CloneRequest{Flags: OpenFlags(flags)}, nil
}

// DescribeResponse reports the kind of node behind the connection.
type DescribeResponse struct {
	Info NodeInfo
}

// Encode serializes the response body.
func (resp *DescribeResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := resp.Info.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeDescribeResponse parses a Describe response body.
func DecodeDescribeResponse(data []byte) (*DescribeResponse, error) {
	info, err := DecodeNodeInfo(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &DescribeResponse{Info: *info}, nil
}

// GetAttrResponse carries node attributes. On failure the attribute record
// is still present, zeroed except for the unknown inode marker.
type GetAttrResponse struct {
	Status     Status
	Attributes NodeAttributes
}

// Encode serializes the response body.
func (resp *GetAttrResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	if err := resp.Attributes.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGetAttrResponse parses a GetAttr response body.
func DecodeGetAttrResponse(data []byte) (*GetAttrResponse, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	attr, err := DecodeNodeAttributes(reader)
	if err != nil {
		return nil, err
	}

	return &GetAttrResponse{Status: Status(status), Attributes: *attr}, nil
}

// SetAttrRequest updates the selected attribute fields.
type SetAttrRequest struct {
	Flags      uint32
	Attributes NodeAttributes
}

// Encode serializes the request body.
func (req *SetAttrRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req.Flags); err != nil {
		return nil, fmt.Errorf("write flags: %w", err)
	}
	if err := req.Attributes.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSetAttrRequest parses a SetAttr request body.
func DecodeSetAttrRequest(data []byte) (*SetAttrRequest, error) {
	reader := bytes.NewReader(data)

	req := &SetAttrRequest{}
	if err := binary.Read(reader, binary.BigEndian, &req.Flags); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	attr, err := DecodeNodeAttributes(reader)
	if err != nil {
		return nil, err
	}
	req.Attributes = *attr

	return req, nil
}

// GetFlagsResponse reports the connection's flag word.
type GetFlagsResponse struct {
	Status Status
	Flags  OpenFlags
}

// Encode serializes the response body.
func (resp *GetFlagsResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Flags)); err != nil {
		return nil, fmt.Errorf("write flags: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeGetFlagsResponse parses a GetFlags response body.
func DecodeGetFlagsResponse(data []byte) (*GetFlagsResponse, error) {
	reader := bytes.NewReader(data)

	var status, flags uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &flags); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	return &GetFlagsResponse{Status: Status(status), Flags: OpenFlags(flags)}, nil
}

// SetFlagsRequest replaces the settable bits of the connection's flag word.
type SetFlagsRequest struct {
	Flags OpenFlags
}

// Encode serializes the request body.
func (req *SetFlagsRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(req.Flags)); err != nil {
		return nil, fmt.Errorf("write flags: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSetFlagsRequest parses a SetFlags request body.
func DecodeSetFlagsRequest(data []byte) (*SetFlagsRequest, error) {
	reader := bytes.NewReader(data)

	var flags uint32
	if err := binary.Read(reader, binary.BigEndian, &flags); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	return &SetFlagsRequest{Flags: OpenFlags(flags)}, nil
}
