package directory

import (
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/vfs"
)

// Sink accumulates dirent records for one ReadDirents page, enforcing the
// caller's byte budget. A directory fills it entry by entry and seals it
// with the cursor to hand back.
type Sink struct {
	page     []byte
	maxBytes uint64
	rejected bool
}

// NewSink creates a sink with the given byte budget.
func NewSink(maxBytes uint64) *Sink {
	return &Sink{maxBytes: maxBytes}
}

// Append adds one record. It reports false, leaving the page untouched, once
// the record does not fit; the directory should stop and seal.
func (s *Sink) Append(info vfs.EntryInfo, name string) bool {
	page, ok := vio.AppendDirent(s.page, s.maxBytes, info.Inode, info.Type, name)
	if !ok {
		s.rejected = true
		return false
	}
	s.page = page
	return true
}

// Seal finishes the page. The status is OK unless the budget could not hold
// even the first record, which gets its own status so clients can tell
// "done" from "budget too small to make progress".
func (s *Sink) Seal(cursor Cursor) *Done {
	status := vio.StatusOK
	if s.rejected && len(s.page) == 0 {
		status = vio.StatusBufferTooSmall
	}
	return &Done{Status: status, Page: s.page, Cursor: cursor}
}

// Done is a sealed ReadDirents result: the encoded page, the status to
// report, and the cursor the connection stores for the next call.
type Done struct {
	Status vio.Status
	Page   []byte
	Cursor Cursor
}
