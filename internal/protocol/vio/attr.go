package vio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// NodeAttributes is the attribute record returned by GetAttr and accepted by
// SetAttr. Times are nanoseconds since the epoch; a node that does not track
// a field reports zero.
type NodeAttributes struct {
	Mode             uint32
	ID               uint64
	ContentSize      uint64
	StorageSize      uint64
	LinkCount        uint64
	CreationTime     uint64
	ModificationTime uint64
}

// SetAttr field selectors. SetAttr requests carry a selector word naming the
// fields the node should actually apply.
const (
	// AttrCreationTime selects NodeAttributes.CreationTime.
	AttrCreationTime = 0x00000001

	// AttrModificationTime selects NodeAttributes.ModificationTime.
	AttrModificationTime = 0x00000002
)

// Encode writes the attribute record in wire order.
func (a *NodeAttributes) Encode(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.BigEndian, a.Mode); err != nil {
		return fmt.Errorf("write mode: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, a.ID); err != nil {
		return fmt.Errorf("write id: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, a.ContentSize); err != nil {
		return fmt.Errorf("write content size: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, a.StorageSize); err != nil {
		return fmt.Errorf("write storage size: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, a.LinkCount); err != nil {
		return fmt.Errorf("write link count: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, a.CreationTime); err != nil {
		return fmt.Errorf("write creation time: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, a.ModificationTime); err != nil {
		return fmt.Errorf("write modification time: %w", err)
	}
	return nil
}

// DecodeNodeAttributes reads an attribute record in wire order.
func DecodeNodeAttributes(reader io.Reader) (*NodeAttributes, error) {
	attr := &NodeAttributes{}
	if err := binary.Read(reader, binary.BigEndian, &attr.Mode); err != nil {
		return nil, fmt.Errorf("read mode: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &attr.ID); err != nil {
		return nil, fmt.Errorf("read id: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &attr.ContentSize); err != nil {
		return nil, fmt.Errorf("read content size: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &attr.StorageSize); err != nil {
		return nil, fmt.Errorf("read storage size: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &attr.LinkCount); err != nil {
		return nil, fmt.Errorf("read link count: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &attr.CreationTime); err != nil {
		return nil, fmt.Errorf("read creation time: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &attr.ModificationTime); err != nil {
		return nil, fmt.Errorf("read modification time: %w", err)
	}
	return attr, nil
}

// UnknownAttributes is the record reported alongside a GetAttr failure:
// everything zeroed except the unknown inode marker.
func UnknownAttributes() *NodeAttributes {
	return &NodeAttributes{ID: InoUnknown}
}

// NodeInfo describes the kind of node behind a connection. It is carried by
// Describe responses and OnOpen events.
type NodeInfo struct {
	Kind uint32
}

// Encode writes the node info record.
func (n *NodeInfo) Encode(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.BigEndian, n.Kind); err != nil {
		return fmt.Errorf("write kind: %w", err)
	}
	return nil
}

// DecodeNodeInfo reads a node info record.
func DecodeNodeInfo(reader io.Reader) (*NodeInfo, error) {
	info := &NodeInfo{}
	if err := binary.Read(reader, binary.BigEndian, &info.Kind); err != nil {
		return nil, fmt.Errorf("read kind: %w", err)
	}
	return info, nil
}

// FilesystemInfo is the record returned by QueryFilesystem.
type FilesystemInfo struct {
	TotalBytes      uint64
	UsedBytes       uint64
	TotalNodes      uint64
	UsedNodes       uint64
	MaxFilenameSize uint32
	Name            string
}

// Encode writes the filesystem info record.
func (f *FilesystemInfo) Encode(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.BigEndian, f.TotalBytes); err != nil {
		return fmt.Errorf("write total bytes: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, f.UsedBytes); err != nil {
		return fmt.Errorf("write used bytes: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, f.TotalNodes); err != nil {
		return fmt.Errorf("write total nodes: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, f.UsedNodes); err != nil {
		return fmt.Errorf("write used nodes: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, f.MaxFilenameSize); err != nil {
		return fmt.Errorf("write max filename size: %w", err)
	}
	if err := EncodeString(buf, f.Name); err != nil {
		return fmt.Errorf("write name: %w", err)
	}
	return nil
}

// DecodeFilesystemInfo reads a filesystem info record.
func DecodeFilesystemInfo(reader io.Reader) (*FilesystemInfo, error) {
	info := &FilesystemInfo{}
	if err := binary.Read(reader, binary.BigEndian, &info.TotalBytes); err != nil {
		return nil, fmt.Errorf("read total bytes: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &info.UsedBytes); err != nil {
		return nil, fmt.Errorf("read used bytes: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &info.TotalNodes); err != nil {
		return nil, fmt.Errorf("read total nodes: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &info.UsedNodes); err != nil {
		return nil, fmt.Errorf("read used nodes: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &info.MaxFilenameSize); err != nil {
		return nil, fmt.Errorf("read max filename size: %w", err)
	}
	name, err := DecodeString(reader)
	if err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}
	info.Name = name
	return info, nil
}
