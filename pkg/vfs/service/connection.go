package service

import (
	"context"
	"fmt"

	"github.com/marmos91/pseudofs/internal/logger"
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
)

// Connection is the stub node connection: the surface a client gets when it
// opens a service or a remote forwarder as a node reference. It answers the
// node queries locally and refuses everything that would need content or
// children behind it.
type Connection struct {
	scope *vfs.ExecutionScope
	ch    *channel.Channel
	flags vio.OpenFlags
}

// ServeNode validates flags and starts a stub node connection on serverEnd.
func ServeNode(scope *vfs.ExecutionScope, flags vio.OpenFlags, serverEnd *channel.Channel) {
	validated, err := vio.ValidateNodeConnectionFlags(flags)
	if err != nil {
		// The error event is gated on the flags as requested, not as
		// validated.
		vfs.SendOnOpenError(serverEnd, flags, vio.StatusOf(err))
		return
	}

	conn := &Connection{
		scope: scope,
		ch:    serverEnd,
		flags: validated,
	}

	if validated&vio.OpenFlagDescribe != 0 {
		info := &vio.NodeInfo{Kind: vio.NodeKindService}
		if err := vfs.SendOnOpen(serverEnd, vio.StatusOK, info); err != nil {
			serverEnd.Close()
			return
		}
	}

	if err := scope.Spawn(conn.serve); err != nil {
		serverEnd.Close()
	}
}

func (c *Connection) serve(ctx context.Context) {
	defer c.ch.Close()

	for {
		msg, err := c.ch.Recv(ctx)
		if err != nil {
			return
		}

		request, err := vio.ParseMessage(msg.Data)
		if err != nil {
			logger.Warn("node connection: malformed message: %v", err)
			if msg.Handle != nil {
				msg.Handle.Close()
			}
			return
		}

		closed, err := c.handleRequest(request, msg.Handle)
		if err != nil {
			logger.Warn("node connection: %v", err)
			return
		}
		if closed {
			return
		}
	}
}

// handleRequest dispatches one request. Operations that would need the node
// to actually serve something are answered with NOT_SUPPORTED in the shape
// the caller expects; only malformed traffic is fatal.
func (c *Connection) handleRequest(request *vio.Message, handle *channel.Channel) (bool, error) {
	switch request.Op {
	case vio.OpClone:
		req, err := vio.DecodeCloneRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode clone: %w", err)
		}
		if handle == nil {
			return false, fmt.Errorf("clone without a new channel end")
		}
		c.handleClone(req.Flags, handle)
		return false, nil

	case vio.OpClose:
		err := c.reply(request.XID, request.Op, &vio.StatusResponse{Status: vio.StatusOK})
		return true, err

	case vio.OpDescribe:
		return false, c.reply(request.XID, request.Op, &vio.DescribeResponse{
			Info: vio.NodeInfo{Kind: vio.NodeKindService},
		})

	case vio.OpGetAttr:
		return false, c.reply(request.XID, request.Op, &vio.GetAttrResponse{
			Status: vio.StatusOK,
			Attributes: vio.NodeAttributes{
				Mode:      vio.ModeTypeService | vio.PosixServiceProtection,
				ID:        vio.InoUnknown,
				LinkCount: 1,
			},
		})

	case vio.OpGetFlags:
		return false, c.reply(request.XID, request.Op, &vio.GetFlagsResponse{
			Status: vio.StatusOK,
			Flags:  c.flags,
		})

	case vio.OpWatch:
		if handle != nil {
			handle.Close()
		}
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: vio.StatusNotSupported})

	case vio.OpSync, vio.OpSetAttr, vio.OpSetFlags, vio.OpTruncate, vio.OpRewind,
		vio.OpLink, vio.OpUnlink, vio.OpRename, vio.OpAdvisoryLock:
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: vio.StatusNotSupported})

	case vio.OpRead, vio.OpReadAt:
		return false, c.reply(request.XID, request.Op, &vio.ReadResponse{Status: vio.StatusNotSupported})

	case vio.OpWrite, vio.OpWriteAt:
		return false, c.reply(request.XID, request.Op, &vio.WriteResponse{Status: vio.StatusNotSupported})

	case vio.OpSeek:
		return false, c.reply(request.XID, request.Op, &vio.SeekResponse{Status: vio.StatusNotSupported})

	case vio.OpGetBuffer:
		return false, c.reply(request.XID, request.Op, &vio.GetBufferResponse{Status: vio.StatusNotSupported})

	case vio.OpReadDirents:
		return false, c.reply(request.XID, request.Op, &vio.ReadDirentsResponse{Status: vio.StatusNotSupported})

	case vio.OpGetToken:
		return false, c.reply(request.XID, request.Op, &vio.GetTokenResponse{Status: vio.StatusNotSupported})

	case vio.OpQueryFilesystem:
		return false, c.reply(request.XID, request.Op, &vio.QueryFilesystemResponse{Status: vio.StatusNotSupported})

	default:
		return false, fmt.Errorf("unknown node operation %d", request.Op)
	}
}

// response is any reply body that can encode itself.
type response interface {
	Encode() ([]byte, error)
}

func (c *Connection) reply(xid, op uint32, resp response) error {
	body, err := resp.Encode()
	if err != nil {
		return fmt.Errorf("encode response for op %d: %w", op, err)
	}
	return vfs.Reply(c.ch, xid, op, body)
}

// handleClone starts a sibling stub connection. The clone stays a stub even
// when the request drops the node reference bit: this connection has no way
// back to the entry it came from.
func (c *Connection) handleClone(flags vio.OpenFlags, serverEnd *channel.Channel) {
	childFlags, err := vio.InheritRightsForClone(c.flags, flags)
	if err != nil {
		vfs.SendOnOpenError(serverEnd, flags, vio.StatusOf(err))
		return
	}

	ServeNode(c.scope, childFlags, serverEnd)
}
