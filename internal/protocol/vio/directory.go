package vio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ReadDirentsRequest asks for the next page of directory entries, at most
// MaxBytes of encoded records.
type ReadDirentsRequest struct {
	MaxBytes uint64
}

// Encode serializes the request body.
func (req *ReadDirentsRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req.MaxBytes); err != nil {
		return nil, fmt.Errorf("write max bytes: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadDirentsRequest parses a ReadDirents request body.
func DecodeReadDirentsRequest(data []byte) (*ReadDirentsRequest, error) {
	reader := bytes.NewReader(data)

	req := &ReadDirentsRequest{}
	if err := binary.Read(reader, binary.BigEndian, &req.MaxBytes); err != nil {
		return nil, fmt.Errorf("read max bytes: %w", err)
	}

	return req, nil
}

// ReadDirentsResponse carries one page of packed dirent records (see
// dirents.go for the record format). The page is empty when the enumeration
// is done or the status is not OK.
type ReadDirentsResponse struct {
	Status Status
	Data   []byte
}

// Encode serializes the response body.
func (resp *ReadDirentsResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	if err := EncodeOpaque(&buf, resp.Data); err != nil {
		return nil, fmt.Errorf("write dirents: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeReadDirentsResponse parses a ReadDirents response body.
func DecodeReadDirentsResponse(data []byte) (*ReadDirentsResponse, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	page, err := DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("read dirents: %w", err)
	}

	return &ReadDirentsResponse{Status: Status(status), Data: page}, nil
}

// GetTokenResponse carries the token minted for the directory. The token is
// empty when the status is not OK.
type GetTokenResponse struct {
	Status Status
	Token  []byte
}

// Encode serializes the response body.
func (resp *GetTokenResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(resp.Status)); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	if err := EncodeOpaque(&buf, resp.Token); err != nil {
		return nil, fmt.Errorf("write token: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeGetTokenResponse parses a GetToken response body.
func DecodeGetTokenResponse(data []byte) (*GetTokenResponse, error) {
	reader := bytes.NewReader(data)

	var status uint32
	if err := binary.Read(reader, binary.BigEndian, &status); err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	token, err := DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	return &GetTokenResponse{Status: Status(status), Token: token}, nil
}

// LinkRequest installs the entry named Src into the directory identified by
// Token, under the name Dst.
type LinkRequest struct {
	Src   string
	Token []byte
	Dst   string
}

// Encode serializes the request body.
func (req *LinkRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeString(&buf, req.Src); err != nil {
		return nil, fmt.Errorf("write src: %w", err)
	}
	if err := EncodeOpaque(&buf, req.Token); err != nil {
		return nil, fmt.Errorf("write token: %w", err)
	}
	if err := EncodeString(&buf, req.Dst); err != nil {
		return nil, fmt.Errorf("write dst: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeLinkRequest parses a Link request body.
func DecodeLinkRequest(data []byte) (*LinkRequest, error) {
	reader := bytes.NewReader(data)

	src, err := DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("read src: %w", err)
	}

	token, err := DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	dst, err := DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("read dst: %w", err)
	}

	return &LinkRequest{Src: src, Token: token, Dst: dst}, nil
}

// RenameRequest moves the entry named Src into the directory identified by
// Token, under the name Dst. The same body layout as Link, kept separate
// because the operations diverge.
type RenameRequest struct {
	Src   string
	Token []byte
	Dst   string
}

// Encode serializes the request body.
func (req *RenameRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeString(&buf, req.Src); err != nil {
		return nil, fmt.Errorf("write src: %w", err)
	}
	if err := EncodeOpaque(&buf, req.Token); err != nil {
		return nil, fmt.Errorf("write token: %w", err)
	}
	if err := EncodeString(&buf, req.Dst); err != nil {
		return nil, fmt.Errorf("write dst: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRenameRequest parses a Rename request body.
func DecodeRenameRequest(data []byte) (*RenameRequest, error) {
	reader := bytes.NewReader(data)

	src, err := DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("read src: %w", err)
	}

	token, err := DecodeOpaque(reader)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	dst, err := DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("read dst: %w", err)
	}

	return &RenameRequest{Src: src, Token: token, Dst: dst}, nil
}

// UnlinkRequest removes the named entry from the directory.
type UnlinkRequest struct {
	Path string
}

// Encode serializes the request body.
func (req *UnlinkRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeString(&buf, req.Path); err != nil {
		return nil, fmt.Errorf("write path: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeUnlinkRequest parses an Unlink request body.
func DecodeUnlinkRequest(data []byte) (*UnlinkRequest, error) {
	reader := bytes.NewReader(data)

	path, err := DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("read path: %w", err)
	}

	return &UnlinkRequest{Path: path}, nil
}

// WatchRequest registers the attached channel end as a watcher for the event
// classes selected by Mask. Options must be zero.
type WatchRequest struct {
	Mask    uint32
	Options uint32
}

// Encode serializes the request body.
func (req *WatchRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, req.Mask); err != nil {
		return nil, fmt.Errorf("write mask: %w", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, req.Options); err != nil {
		return nil, fmt.Errorf("write options: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWatchRequest parses a Watch request body.
func DecodeWatchRequest(data []byte) (*WatchRequest, error) {
	reader := bytes.NewReader(data)

	req := &WatchRequest{}
	if err := binary.Read(reader, binary.BigEndian, &req.Mask); err != nil {
		return nil, fmt.Errorf("read mask: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &req.Options); err != nil {
		return nil, fmt.Errorf("read options: %w", err)
	}

	return req, nil
}
