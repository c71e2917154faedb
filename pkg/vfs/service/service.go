// Package service implements entries that represent protocol endpoints
// rather than files: opening one hands the new channel straight to a
// connector callback, which speaks its own protocol over it. The package
// also provides the stub node connection used when such an entry is opened
// as a node reference, which is shared with remote forwarders.
package service

import (
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
)

// Connector receives the server end of every plain open of a Service. The
// channel belongs to the connector from that point on, including closing it.
type Connector func(scope *vfs.ExecutionScope, serverEnd *channel.Channel)

// Service is an Entry that forwards opens to a Connector. It has no
// children, no content and no attributes of its own beyond the stub node
// surface.
type Service struct {
	connector Connector
}

func New(connector Connector) *Service {
	return &Service{connector: connector}
}

// Open hands serverEnd to the connector. A non-empty path fails with
// NOT_DIR since a service can have nothing below it; a node reference open
// serves the stub node connection instead of the service protocol.
func (s *Service) Open(scope *vfs.ExecutionScope, flags vio.OpenFlags, mode uint32, p path.Path, serverEnd *channel.Channel) {
	if !p.IsEmpty() {
		vfs.SendOnOpenError(serverEnd, flags, vio.StatusNotDir)
		return
	}

	if flags&vio.OpenFlagNodeReference != 0 {
		ServeNode(scope, flags, serverEnd)
		return
	}

	// The describe event goes out before the hand-off so the opener sees it
	// ahead of anything the service itself sends.
	if flags&vio.OpenFlagDescribe != 0 {
		info := &vio.NodeInfo{Kind: vio.NodeKindService}
		if err := vfs.SendOnOpen(serverEnd, vio.StatusOK, info); err != nil {
			serverEnd.Close()
			return
		}
	}

	s.connector(scope, serverEnd)
}

func (s *Service) EntryInfo() vfs.EntryInfo {
	return vfs.EntryInfo{Inode: vio.InoUnknown, Type: vio.DirentTypeService}
}

func (s *Service) CanHardlink() bool {
	return false
}
