// Package file implements file nodes and the connections that serve them:
// right-gated reads and writes against a per-connection seek cursor, append
// and truncate, buffer sharing, and the in-memory Memory file that backs
// the default tree.
package file

import (
	"context"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
)

// File is the backing contract behind file connections. Tree-resident file
// types implement vfs.Entry next to it; the connection itself only needs
// these methods.
//
// Connect and Close bracket a connection's lifetime: Connect runs before
// any other method and may veto the open, Close runs exactly once when the
// connection ends, whether or not the client asked for it. Everything in
// between may run any number of times, from any number of connections
// concurrently.
type File interface {
	Connect(ctx context.Context, flags vio.OpenFlags) error

	// ReadAt fills dst from offset and reports the bytes read. A short or
	// empty read signals end of file, not an error.
	ReadAt(ctx context.Context, offset uint64, dst []byte) (uint64, error)

	// WriteAt stores src at offset, extending the content as needed, and
	// reports the bytes written.
	WriteAt(ctx context.Context, offset uint64, src []byte) (uint64, error)

	// Append atomically stores src at the end of the content, reporting the
	// bytes written and the content end after the write.
	Append(ctx context.Context, src []byte) (written, end uint64, err error)

	// Truncate sets the content length, zero-filling on growth.
	Truncate(ctx context.Context, length uint64) error

	// GetBuffer returns a buffer over the content per bufferFlags, or
	// vio.StatusNotSupported when the file cannot share content this way.
	GetBuffer(ctx context.Context, bufferFlags uint32) (*vio.Buffer, error)

	// GetSize reports the current content length.
	GetSize(ctx context.Context) (uint64, error)

	GetAttrs(ctx context.Context) (*vio.NodeAttributes, error)

	// SetAttrs applies the attribute fields selected by flags.
	SetAttrs(ctx context.Context, flags uint32, attrs *vio.NodeAttributes) error

	Close(ctx context.Context) error

	// Sync flushes buffered state to wherever the file keeps it.
	Sync(ctx context.Context) error
}

// FilesystemQueryer is implemented by files that belong to a filesystem
// with queryable totals. Connections answer QueryFilesystem with
// NotSupported for everything else.
type FilesystemQueryer interface {
	QueryFilesystem() (*vio.FilesystemInfo, error)
}

// Capabilities declares which open modes a backing file can satisfy.
// Validation refuses rights beyond them with AccessDenied, and refuses
// append mode with NotSupported unless Append is set.
type Capabilities struct {
	Read    bool
	Write   bool
	Execute bool
	Append  bool
}
