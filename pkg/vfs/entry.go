// Package vfs holds the contracts shared by every node type: the Entry
// interface that directories, files, services and remotes implement, the
// ExecutionScope that owns connection goroutines, and the helpers for
// reporting open outcomes on new connection channels.
package vfs

import (
	"fmt"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
)

// EntryInfo is what a directory advertises about an entry in listings.
type EntryInfo struct {
	// Inode is the entry's identifier, or vio.InoUnknown when the entry has
	// none.
	Inode uint64

	// Type is the vio.DirentType* code for the entry.
	Type uint8
}

// Entry is a node that can live in a directory tree.
//
// Open never returns an error: outcomes are reported on serverEnd, as an
// OnOpen event when flags carries vio.OpenFlagDescribe, and by closing the
// end on failure. The path names a node at or below this entry; an empty
// path means the entry itself.
type Entry interface {
	Open(scope *ExecutionScope, flags vio.OpenFlags, mode uint32, p path.Path, serverEnd *channel.Channel)

	EntryInfo() EntryInfo

	// CanHardlink reports whether the entry may be installed under a second
	// name via Link.
	CanHardlink() bool
}

// Reply sends one response message on a connection channel.
func Reply(ch *channel.Channel, xid, op uint32, body []byte) error {
	data, err := (&vio.Message{XID: xid, Op: op, Body: body}).Encode()
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	if err := ch.Send(channel.Message{Data: data}); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// SendOnOpen delivers an OnOpen event on a new connection's channel.
func SendOnOpen(serverEnd *channel.Channel, status vio.Status, info *vio.NodeInfo) error {
	body, err := (&vio.OnOpenEvent{Status: status, Info: info}).Encode()
	if err != nil {
		return fmt.Errorf("encode on-open: %w", err)
	}
	return Reply(serverEnd, vio.EventXID, vio.OpOnOpen, body)
}

// SendOnOpenError reports a failed open and tears the new end down. The
// event is only sent when the opener asked to be told.
func SendOnOpenError(serverEnd *channel.Channel, flags vio.OpenFlags, status vio.Status) {
	if flags&vio.OpenFlagDescribe != 0 {
		// Best effort: the opener may already be gone.
		_ = SendOnOpen(serverEnd, status, nil)
	}
	serverEnd.Close()
}
