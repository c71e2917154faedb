// Package remote implements mount point entries: nodes that forward open
// requests to whatever serves the remote filesystem. The forwarding is a
// routing callback, so the package does not care whether the remote lives
// across a network bridge or in the same process.
package remote

import (
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
	"github.com/marmos91/pseudofs/pkg/vfs/service"
)

// RoutingFn receives every open request that crosses the mount point. The
// arguments mirror Entry.Open; the callback owns serverEnd from then on.
type RoutingFn func(scope *vfs.ExecutionScope, flags vio.OpenFlags, mode uint32, p path.Path, serverEnd *channel.Channel)

// Remote is an Entry standing in for a node served elsewhere. It does no
// flag validation of its own: the connection that forwarded the request
// already checked what it could, and the remote end owns the rest.
type Remote struct {
	open       RoutingFn
	direntType uint8
}

// New returns a Remote with dirent type Unknown. Use NewWithType when the
// remote's shape is known.
func New(open RoutingFn) *Remote {
	return NewWithType(open, vio.DirentTypeUnknown)
}

// NewWithType returns a Remote advertising the given vio.DirentType* code in
// directory listings.
func NewWithType(open RoutingFn, direntType uint8) *Remote {
	return &Remote{open: open, direntType: direntType}
}

// NewDirectory returns a Remote that forwards every open to entry, which
// stands in for the remote root. Listings advertise a directory.
func NewDirectory(entry vfs.Entry) *Remote {
	return NewWithType(func(scope *vfs.ExecutionScope, flags vio.OpenFlags, mode uint32, p path.Path, serverEnd *channel.Channel) {
		entry.Open(scope, flags, mode, p, serverEnd)
	}, vio.DirentTypeDirectory)
}

// Open forwards to the routing callback, except for node reference opens:
// those ask about the mount point itself, so they are answered locally by a
// stub node connection and never reach the remote.
func (r *Remote) Open(scope *vfs.ExecutionScope, flags vio.OpenFlags, mode uint32, p path.Path, serverEnd *channel.Channel) {
	if flags&(vio.OpenFlagNodeReference|vio.OpenFlagNoRemote) != 0 {
		if !p.IsEmpty() {
			vfs.SendOnOpenError(serverEnd, flags, vio.StatusBadPath)
			return
		}

		// NoRemote means "the mount point, not what is mounted on it",
		// which this close to the node is the same as a node reference.
		if flags&vio.OpenFlagNoRemote != 0 {
			flags &^= vio.OpenFlagNoRemote
			flags |= vio.OpenFlagNodeReference
		}

		service.ServeNode(scope, flags, serverEnd)
		return
	}

	r.open(scope, flags, mode, p, serverEnd)
}

func (r *Remote) EntryInfo() vfs.EntryInfo {
	return vfs.EntryInfo{Inode: vio.InoUnknown, Type: r.direntType}
}

func (r *Remote) CanHardlink() bool {
	return false
}
