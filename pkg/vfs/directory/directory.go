// Package directory implements directory nodes and the connections that
// serve them: the shared read surface (Open, Clone, ReadDirents, Link,
// Watch), the mutable extension (Unlink, GetToken, Rename), the in-memory
// Simple pseudo directory, and the filesystem-level rename that keeps
// cross-directory moves deadlock-free.
package directory

import (
	"context"

	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
)

// Directory is the read surface every directory node implements.
type Directory interface {
	vfs.Entry

	// GetEntry returns the named child, or vio.StatusNotFound.
	GetEntry(name string) (vfs.Entry, error)

	// ReadDirents resumes an enumeration from cursor, filling sink until the
	// entries run out or the sink's budget does.
	ReadDirents(ctx context.Context, cursor Cursor, sink *Sink) (*Done, error)

	// RegisterWatcher attaches a watcher channel for the event classes
	// selected by mask. The directory owns the channel from here on and
	// drops it once it stops accepting events.
	RegisterWatcher(scope *vfs.ExecutionScope, mask uint32, watcher *channel.Channel) error

	// UnregisterWatcher detaches and closes a previously registered watcher
	// channel. Unknown channels are ignored.
	UnregisterWatcher(watcher *channel.Channel)
}

// MutableDirectory extends Directory with entry mutation. The rename hooks
// exist so a Filesystem can move entries between two directories while
// honoring the global lock order; connections never call them directly.
type MutableDirectory interface {
	Directory

	// Link installs an entry under name. Occupied names are refused with
	// vio.StatusAlreadyExists.
	Link(name string, entry vfs.Entry) error

	// Unlink removes the named entry, vio.StatusNotFound when absent.
	Unlink(name string) error

	// RemoveEntry removes and returns the named entry; (nil, nil) when
	// absent.
	RemoveEntry(name string) (vfs.Entry, error)

	// RenameFrom removes src after attach has installed it elsewhere. The
	// callee holds its own lock across the callback, so the caller must
	// guarantee this directory orders before the attaching one.
	RenameFrom(src string, attach func(vfs.Entry) error) error

	// RenameTo installs the entry produced by take under dst. The callee
	// holds its own lock across the callback, so the caller must guarantee
	// this directory orders before the taking one.
	RenameTo(dst string, take func() (vfs.Entry, error)) error

	// RenameWithin moves src to dst under a single critical section.
	RenameWithin(src, dst string) error

	// Sequence is the directory's creation-order identity, the global lock
	// order used by Filesystem.Rename.
	Sequence() uint64

	// Filesystem returns the rename authority this directory belongs to.
	Filesystem() Filesystem
}

// Filesystem is the authority for operations spanning two directories.
type Filesystem interface {
	// Rename moves srcDir's entry src to dstDir under dst. The directories
	// arrive as opaque token-registry owners and are checked here.
	Rename(srcDir any, src string, dstDir any, dst string) error
}
