package vio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ReadRequest reads up to Count bytes from the current seek offset.
type ReadRequest struct {
	Count uint64
}

// Encode serializes the request body.
func (req *ReadRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req.Count); err != nil {
		return nil, fmt.Errorf("write count: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadRequest parses a Read request body.
func DecodeReadRequest(data []byte) (*ReadRequest, error) {
	reader := bytes.NewReader(data)

	req := &ReadRequest{}
	if err := binary.Read(reader, binary.BigEndian, &req.Count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}

	return req, nil
}

// ReadAtRequest reads up to Count bytes from an explicit offset, leaving the
// seek offset alone.
type ReadAtRequest struct {
	Offset uint64
	Count  uint64
}

// Encode serializes the request body.
func (req *ReadAtRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req.Offset); err != nil {
		return nil, fmt.Errorf("write offset: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, req.Count); err != nil {
		return nil, fmt.Errorf("write count: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadAtRequest parses a ReadAt request body.
func DecodeReadAtRequest(data []byte) (*ReadAtRequest, error) {
	reader := bytes.NewReader(data)

	req := &ReadAtRequest{}
	if err := binary.Read(reader, binary.BigEndian, &req.Offset); err != nil {
		return nil, fmt.Errorf("read offset: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &req.Count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}

	return req, nil
}

// ReadResponse carries the bytes produced by Read or ReadAt. A short page
// signals end of file.
type ReadResponse struct {
	Status Status
	Data   []byte
}

// Encode serializes the response body. On a non-OK status only the status is
// written.
func (resp *ReadResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	if resp.Status != StatusOK {
		return buf.Bytes(), nil
	}

	if err := EncodeOpaque(&buf, resp.Data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadResponse parses a Read or ReadAt response body.
func DecodeReadResponse(data []byte) (*ReadResponse, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	resp := &ReadResponse{Status: Status(status)}
	if resp.Status != StatusOK {
		return resp, nil
	}

	payload, err := DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	resp.Data = payload

	return resp, nil
}

// WriteRequest writes at the current seek offset, or at the end when the
// connection is in append mode.
type WriteRequest struct {
	Data []byte
}

// Encode serializes the request body.
func (req *WriteRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeOpaque(&buf, req.Data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWriteRequest parses a Write request body.
func DecodeWriteRequest(data []byte) (*WriteRequest, error) {
	reader := bytes.NewReader(data)

	payload, err := DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	return &WriteRequest{Data: payload}, nil
}

// WriteAtRequest writes at an explicit offset, leaving the seek offset alone.
type WriteAtRequest struct {
	Offset uint64
	Data   []byte
}

// Encode serializes the request body.
func (req *WriteAtRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req.Offset); err != nil {
		return nil, fmt.Errorf("write offset: %w", err)
	}
	if err := EncodeOpaque(&buf, req.Data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWriteAtRequest parses a WriteAt request body.
func DecodeWriteAtRequest(data []byte) (*WriteAtRequest, error) {
	reader := bytes.NewReader(data)

	req := &WriteAtRequest{}
	if err := binary.Read(reader, binary.BigEndian, &req.Offset); err != nil {
		return nil, fmt.Errorf("read offset: %w", err)
	}

	payload, err := DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	req.Data = payload

	return req, nil
}

// WriteResponse reports how many bytes a Write or WriteAt actually moved.
type WriteResponse struct {
	Status Status
	Actual uint64
}

// Encode serializes the response body.
func (resp *WriteResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, resp.Actual); err != nil {
		return nil, fmt.Errorf("write actual: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWriteResponse parses a Write or WriteAt response body.
func DecodeWriteResponse(data []byte) (*WriteResponse, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	resp := &WriteResponse{Status: Status(status)}
	if err := binary.Read(reader, binary.BigEndian, &resp.Actual); err != nil {
		return nil, fmt.Errorf("read actual: %w", err)
	}

	return resp, nil
}

// SeekRequest moves the seek offset relative to the given origin.
type SeekRequest struct {
	Offset int64
	Origin uint32
}

// Encode serializes the request body.
func (req *SeekRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req.Offset); err != nil {
		return nil, fmt.Errorf("write offset: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, req.Origin); err != nil {
		return nil, fmt.Errorf("write origin: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSeekRequest parses a Seek request body.
func DecodeSeekRequest(data []byte) (*SeekRequest, error) {
	reader := bytes.NewReader(data)

	req := &SeekRequest{}
	if err := binary.Read(reader, binary.BigEndian, &req.Offset); err != nil {
		return nil, fmt.Errorf("read offset: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &req.Origin); err != nil {
		return nil, fmt.Errorf("read origin: %w", err)
	}

	return req, nil
}

// SeekResponse reports the seek offset after the request, which is the old
// offset when the request failed.
type SeekResponse struct {
	Status Status
	Offset uint64
}

// Encode serializes the response body.
func (resp *SeekResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, resp.Offset); err != nil {
		return nil, fmt.Errorf("write offset: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSeekResponse parses a Seek response body.
func DecodeSeekResponse(data []byte) (*SeekResponse, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	resp := &SeekResponse{Status: Status(status)}
	if err := binary.Read(reader, binary.BigEndian, &resp.Offset); err != nil {
		return nil, fmt.Errorf("read offset: %w", err)
	}

	return resp, nil
}

// TruncateRequest sets the file length, extending with zeros or discarding
// the tail.
type TruncateRequest struct {
	Length uint64
}

// Encode serializes the request body.
func (req *TruncateRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req.Length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTruncateRequest parses a Truncate request body.
func DecodeTruncateRequest(data []byte) (*TruncateRequest, error) {
	reader := bytes.NewReader(data)

	req := &TruncateRequest{}
	if err := binary.Read(reader, binary.BigEndian, &req.Length); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	return req, nil
}

// GetBufferRequest asks for a byte buffer over the file content with the
// given buffer flags.
type GetBufferRequest struct {
	Flags uint32
}

// Encode serializes the request body.
func (req *GetBufferRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req.Flags); err != nil {
		return nil, fmt.Errorf("write flags: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeGetBufferRequest parses a GetBuffer request body.
func DecodeGetBufferRequest(data []byte) (*GetBufferRequest, error) {
	reader := bytes.NewReader(data)

	req := &GetBufferRequest{}
	if err := binary.Read(reader, binary.BigEndian, &req.Flags); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	return req, nil
}

// Buffer is a byte view over file content, with the content size recorded
// separately because a shared buffer may be larger than the content.
type Buffer struct {
	Size uint64
	Data []byte
}

// GetBufferResponse carries the buffer when the status is OK and the file
// can share its content this way.
type GetBufferResponse struct {
	Status Status
	Buffer *Buffer
}

// Encode serializes the response body.
func (resp *GetBufferResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	if resp.Buffer != nil {
		if err := binary.Write(&buf, binary.BigEndian, uint32(1)); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, resp.Buffer.Size); err != nil {
			return nil, fmt.Errorf("write size: %w", err)
		}
		if err := EncodeOpaque(&buf, resp.Buffer.Data); err != nil {
			return nil, fmt.Errorf("write data: %w", err)
		}
	} else {
		if err := binary.Write(&buf, binary.BigEndian, uint32(0)); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// DecodeGetBufferResponse parses a GetBuffer response body.
func DecodeGetBufferResponse(data []byte) (*GetBufferResponse, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	resp := &GetBufferResponse{Status: Status(status)}

	var present uint32
	if err := binary.Read(reader, binary.BigEndian, &present); err != nil {
		return nil, fmt.Errorf("read buffer marker: %w", err)
	}
	if present != 0 {
		buffer := &Buffer{}
		if err := binary.Read(reader, binary.BigEndian, &buffer.Size); err != nil {
			return nil, fmt.Errorf("read size: %w", err)
		}
		payload, err := DecodeOpaque(reader)
		if err != nil {
			return nil, fmt.Errorf("read data: %w", err)
		}
		buffer.Data = payload
		resp.Buffer = buffer
	}

	return resp, nil
}

// QueryFilesystemResponse carries filesystem-wide information when the node
// belongs to a filesystem that tracks any.
type QueryFilesystemResponse struct {
	Status Status
	Info   *FilesystemInfo
}

// Encode serializes the response body.
func (resp *QueryFilesystemResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	if resp.Info != nil {
		if err := binary.Write(&buf, binary.BigEndian, uint32(1)); err != nil {
			return nil, err
		}
		if err := resp.Info.Encode(&buf); err != nil {
			return nil, err
		}
	} else {
		if err := binary.Write(&buf, binary.BigEndian, uint32(0)); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// DecodeQueryFilesystemResponse parses a QueryFilesystem response body.
func DecodeQueryFilesystemResponse(data []byte) (*QueryFilesystemResponse, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	resp := &QueryFilesystemResponse{Status: Status(status)}

	var present uint32
	if err := binary.Read(reader, binary.BigEndian, &present); err != nil {
		return nil, fmt.Errorf("read info marker: %w", err)
	}
	if present != 0 {
		info, err := DecodeFilesystemInfo(reader)
		if err != nil {
			return nil, err
		}
		resp.Info = info
	}

	return resp, nil
}
