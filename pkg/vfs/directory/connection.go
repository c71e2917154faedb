package directory

import (
	"context"
	"fmt"

	"github.com/marmos91/pseudofs/internal/logger"
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
)

// Connection serves the directory protocol for one client channel. Requests
// are handled strictly in arrival order; the serve loop checks the scope for
// shutdown between requests, never in the middle of one.
type Connection struct {
	scope     *vfs.ExecutionScope
	directory Directory

	// mutable is non-nil when this connection may mutate entries. Requests
	// for the mutable surface on an immutable connection fail with
	// NOT_SUPPORTED instead of tearing the connection down.
	mutable MutableDirectory

	ch    *channel.Channel
	flags vio.OpenFlags

	// cursor stores the element returned last by ReadDirents; the next call
	// resumes with the alphabetically following entry.
	cursor Cursor
}

// Serve validates flags and starts an immutable connection to the
// directory. The outcome is reported on serverEnd.
func Serve(scope *vfs.ExecutionScope, dir Directory, flags vio.OpenFlags, serverEnd *channel.Channel) {
	serveConnection(scope, dir, nil, flags, serverEnd)
}

// ServeMutable validates flags and starts a mutable connection to the
// directory.
func ServeMutable(scope *vfs.ExecutionScope, dir MutableDirectory, flags vio.OpenFlags, serverEnd *channel.Channel) {
	serveConnection(scope, dir, dir, flags, serverEnd)
}

func serveConnection(scope *vfs.ExecutionScope, dir Directory, mutable MutableDirectory, flags vio.OpenFlags, serverEnd *channel.Channel) {
	validated, err := vio.ValidateConnectionFlags(flags)
	if err != nil {
		// The error event is gated on the flags as requested, not as
		// validated.
		vfs.SendOnOpenError(serverEnd, flags, vio.StatusOf(err))
		return
	}

	conn := &Connection{
		scope:     scope,
		directory: dir,
		mutable:   mutable,
		ch:        serverEnd,
		flags:     validated,
	}

	if validated&vio.OpenFlagDescribe != 0 {
		info := &vio.NodeInfo{Kind: vio.NodeKindDirectory}
		if err := vfs.SendOnOpen(serverEnd, vio.StatusOK, info); err != nil {
			serverEnd.Close()
			return
		}
	}

	if err := scope.Spawn(conn.serve); err != nil {
		serverEnd.Close()
	}
}

// serve runs the request loop until the client goes away, the scope shuts
// down, or the connection turns out to be broken. Broken connections are
// closed without a parting status: there is no portable way to report one.
func (c *Connection) serve(ctx context.Context) {
	defer c.ch.Close()

	for {
		msg, err := c.ch.Recv(ctx)
		if err != nil {
			return
		}

		request, err := vio.ParseMessage(msg.Data)
		if err != nil {
			logger.Warn("directory connection: malformed message: %v", err)
			if msg.Handle != nil {
				msg.Handle.Close()
			}
			return
		}

		closed, err := c.handleRequest(ctx, request, msg.Handle)
		if err != nil {
			logger.Warn("directory connection: %v", err)
			return
		}
		if closed {
			return
		}
	}
}

// handleRequest dispatches one request. The returned error is protocol
// fatal; per-operation failures are reported to the client instead.
func (c *Connection) handleRequest(ctx context.Context, request *vio.Message, handle *channel.Channel) (bool, error) {
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
			Info: vio.NodeInfo{Kind: vio.NodeKindDirectory},
		})

	case vio.OpSync, vio.OpSetAttr, vio.OpSetFlags:
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: vio.StatusNotSupported})

	case vio.OpGetAttr:
		return false, c.reply(request.XID, request.Op, &vio.GetAttrResponse{
			Status: vio.StatusOK,
			Attributes: vio.NodeAttributes{
				Mode:      vio.ModeTypeDirectory | vio.PosixDirectoryProtection,
				ID:        vio.InoUnknown,
				LinkCount: 1,
			},
		})

	case vio.OpGetFlags:
		return false, c.reply(request.XID, request.Op, &vio.GetFlagsResponse{
			Status: vio.StatusOK,
			Flags:  c.flags,
		})

	case vio.OpOpen:
		req, err := vio.DecodeOpenRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode open: %w", err)
		}
		if handle == nil {
			return false, fmt.Errorf("open without a new channel end")
		}
		c.handleOpen(req, handle)
		return false, nil

	case vio.OpReadDirents:
		req, err := vio.DecodeReadDirentsRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode read dirents: %w", err)
		}
		return false, c.handleReadDirents(ctx, request.XID, req)

	case vio.OpRewind:
		c.cursor = Cursor{}
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: vio.StatusOK})

	case vio.OpLink:
		req, err := vio.DecodeLinkRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode link: %w", err)
		}
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: c.handleLink(req)})

	case vio.OpWatch:
		req, err := vio.DecodeWatchRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode watch: %w", err)
		}
		if handle == nil {
			return false, fmt.Errorf("watch without a watcher channel")
		}
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: c.handleWatch(req, handle)})

	case vio.OpUnlink:
		req, err := vio.DecodeUnlinkRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode unlink: %w", err)
		}
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: c.handleUnlink(req)})

	case vio.OpGetToken:
		status, token := c.handleGetToken()
		return false, c.reply(request.XID, request.Op, &vio.GetTokenResponse{Status: status, Token: token})

	case vio.OpRename:
		req, err := vio.DecodeRenameRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode rename: %w", err)
		}
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: c.handleRename(req)})

	case vio.OpAdvisoryLock:
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: vio.StatusNotSupported})

	case vio.OpQueryFilesystem:
		return false, c.reply(request.XID, request.Op, &vio.QueryFilesystemResponse{Status: vio.StatusNotSupported})

	default:
		return false, fmt.Errorf("unknown directory operation %d", request.Op)
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

// handleClone opens a sibling connection to the same directory, narrowing
// rights per the request.
func (c *Connection) handleClone(flags vio.OpenFlags, serverEnd *channel.Channel) {
	childFlags, err := vio.InheritRightsForClone(c.flags, flags)
	if err != nil {
		vfs.SendOnOpenError(serverEnd, flags, vio.StatusOf(err))
		return
	}

	c.directory.Open(c.scope, childFlags, 0, path.Dot(), serverEnd)
}

// handleOpen resolves a path below this directory. All failures are
// reported on the new connection's end; the serving connection is never
// affected.
func (c *Connection) handleOpen(req *vio.OpenRequest, serverEnd *channel.Channel) {
	if req.Path == "" || req.Path == "/" {
		vfs.SendOnOpenError(serverEnd, req.Flags, vio.StatusBadPath)
		return
	}

	if req.Path == "." || req.Path == "./" {
		c.handleClone(req.Flags, serverEnd)
		return
	}

	p, err := path.Validate(req.Path)
	if err != nil {
		vfs.SendOnOpenError(serverEnd, req.Flags, vio.StatusOf(err))
		return
	}

	mode := req.Mode
	if p.IsDir() {
		mode |= vio.ModeTypeDirectory
	}

	childFlags, childMode, err := vio.CheckChildConnectionFlags(c.flags, req.Flags, mode)
	if err != nil {
		vfs.SendOnOpenError(serverEnd, req.Flags, vio.StatusOf(err))
		return
	}

	c.directory.Open(c.scope, childFlags, childMode, p, serverEnd)
}

func (c *Connection) handleReadDirents(ctx context.Context, xid uint32, req *vio.ReadDirentsRequest) error {
	cursor := c.cursor
	c.cursor = Cursor{}

	done, err := c.directory.ReadDirents(ctx, cursor, NewSink(req.MaxBytes))
	if err != nil {
		return c.reply(xid, vio.OpReadDirents, &vio.ReadDirentsResponse{Status: vio.StatusOf(err)})
	}

	c.cursor = done.Cursor
	return c.reply(xid, vio.OpReadDirents, &vio.ReadDirentsResponse{Status: done.Status, Data: done.Page})
}

// handleLink resolves the two-step hard-link: source entry by name on this
// directory, destination directory by token.
func (c *Connection) handleLink(req *vio.LinkRequest) vio.Status {
	registry := c.scope.TokenRegistry()
	if registry == nil {
		return vio.StatusNotSupported
	}

	entry, err := c.directory.GetEntry(req.Src)
	if err != nil {
		return vio.StatusOf(err)
	}

	if !entry.CanHardlink() {
		return vio.StatusNotFile
	}

	container, err := registry.GetContainer(req.Token)
	if err != nil {
		return vio.StatusOf(err)
	}
	if container == nil {
		return vio.StatusNotFound
	}

	dstParent, ok := container.(MutableDirectory)
	if !ok {
		return vio.StatusInvalidArgs
	}

	return vio.StatusOf(dstParent.Link(req.Dst, entry))
}

func (c *Connection) handleWatch(req *vio.WatchRequest, watcher *channel.Channel) vio.Status {
	if req.Options != 0 {
		watcher.Close()
		return vio.StatusInvalidArgs
	}

	if err := c.directory.RegisterWatcher(c.scope, req.Mask, watcher); err != nil {
		watcher.Close()
		return vio.StatusOf(err)
	}
	return vio.StatusOK
}
