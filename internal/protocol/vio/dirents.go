package vio

import (
	"encoding/binary"
	"fmt"
)

// Dirent pages use their own packed little-endian record format, denser than
// the rest of the protocol:
//
//	inode       u64 (little-endian)
//	name_len    u8
//	dirent_type u8
//	name        name_len bytes, no terminator, no padding
//
// Records follow each other back to back so a page can be scanned in one
// forward pass.

// DirentHeaderSize is the fixed part of a dirent record.
const DirentHeaderSize = 10

// Dirent is one decoded directory entry record.
type Dirent struct {
	Inode uint64
	Type  uint8
	Name  string
}

// DirentSize returns the encoded size of a record with the given name.
func DirentSize(name string) uint64 {
	return DirentHeaderSize + uint64(len(name))
}

// AppendDirent appends one record to the page, respecting the byte budget.
// When the record would push the page past maxBytes the page is returned
// untouched with ok=false, so the caller can stop and resume later.
//
// Names longer than MaxFilename cannot be represented in the one-byte length
// field; supplying one is a bug in the calling node, not a client error, and
// panics.
func AppendDirent(page []byte, maxBytes uint64, inode uint64, direntType uint8, name string) ([]byte, bool) {
	if len(name) > MaxFilename {
		panic(fmt.Sprintf("dirent name %q exceeds %d bytes", name, MaxFilename))
	}

	size := DirentSize(name)
	if uint64(len(page))+size > maxBytes {
		return page, false
	}

	var header [DirentHeaderSize]byte
	binary.LittleEndian.PutUint64(header[0:8], inode)
	header[8] = uint8(len(name))
	header[9] = direntType

	page = append(page, header[:]...)
	page = append(page, name...)
	return page, true
}

// ParseDirents decodes a full page of records.
func ParseDirents(page []byte) ([]Dirent, error) {
	var entries []Dirent

	for len(page) > 0 {
		if len(page) < DirentHeaderSize {
			return nil, fmt.Errorf("truncated dirent header: %d bytes left", len(page))
		}

		inode := binary.LittleEndian.Uint64(page[0:8])
		nameLen := int(page[8])
		direntType := page[9]
		page = page[DirentHeaderSize:]

		if len(page) < nameLen {
			return nil, fmt.Errorf("truncated dirent name: want %d bytes, have %d", nameLen, len(page))
		}

		entries = append(entries, Dirent{
			Inode: inode,
			Type:  direntType,
			Name:  string(page[:nameLen]),
		})
		page = page[nameLen:]
	}

	return entries, nil
}
