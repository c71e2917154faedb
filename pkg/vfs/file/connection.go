package file

import (
	"context"
	"fmt"
	"math"

	"github.com/marmos91/pseudofs/internal/logger"
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
)

// Connection serves the file protocol for one client channel. Requests are
// handled strictly in arrival order; the seek cursor belongs to the
// connection, not the file.
type Connection struct {
	scope *vfs.ExecutionScope
	file  File
	caps  Capabilities

	ch    *channel.Channel
	flags vio.OpenFlags

	// seek may point past the current content end; writes there leave a
	// zero-filled gap.
	seek uint64

	// closed flips once the backing Close has run, so teardown after an
	// explicit Close does not run it a second time.
	closed bool
}

// Serve validates flags against the file's capabilities and starts a
// connection. The outcome is reported on serverEnd.
func Serve(scope *vfs.ExecutionScope, f File, caps Capabilities, flags vio.OpenFlags, serverEnd *channel.Channel) {
	validated, err := vio.ValidateFileConnectionFlags(flags, caps.Read, caps.Write, caps.Execute, caps.Append)
	if err != nil {
		// The error event is gated on the flags as requested, not as
		// validated.
		vfs.SendOnOpenError(serverEnd, flags, vio.StatusOf(err))
		return
	}

	ctx := scope.Context()

	if err := f.Connect(ctx, validated); err != nil {
		vfs.SendOnOpenError(serverEnd, validated, vio.StatusOf(err))
		return
	}

	conn := &Connection{
		scope: scope,
		file:  f,
		caps:  caps,
		ch:    serverEnd,
		flags: validated,
	}

	// From here on the backing Connect has to be balanced on every failure
	// path.
	if validated&vio.OpenFlagTruncate != 0 {
		if err := f.Truncate(ctx, 0); err != nil {
			conn.closeBacking(ctx)
			vfs.SendOnOpenError(serverEnd, validated, vio.StatusOf(err))
			return
		}
	}

	if validated&vio.OpenFlagDescribe != 0 {
		info := &vio.NodeInfo{Kind: vio.NodeKindFile}
		if err := vfs.SendOnOpen(serverEnd, vio.StatusOK, info); err != nil {
			conn.closeBacking(ctx)
			serverEnd.Close()
			return
		}
	}

	if err := scope.Spawn(conn.serve); err != nil {
		conn.closeBacking(ctx)
		serverEnd.Close()
	}
}

// serve runs the request loop until the client goes away, the scope shuts
// down, or the connection turns out to be broken.
func (c *Connection) serve(ctx context.Context) {
	defer c.teardown()

	for {
		msg, err := c.ch.Recv(ctx)
		if err != nil {
			return
		}

		request, err := vio.ParseMessage(msg.Data)
		if err != nil {
			logger.Warn("file connection: malformed message: %v", err)
			if msg.Handle != nil {
				msg.Handle.Close()
			}
			return
		}

		closed, err := c.handleRequest(ctx, request, msg.Handle)
		if err != nil {
			logger.Warn("file connection: %v", err)
			return
		}
		if closed {
			return
		}
	}
}

// teardown closes the channel and makes sure the backing file sees its
// Close even when the client dropped the connection without one. The
// scope's context may already be gone at this point, so cleanup runs on a
// fresh one.
func (c *Connection) teardown() {
	c.ch.Close()
	c.closeBacking(context.Background())
}

// closeBacking runs the backing Close on the first call and reports OK on
// any later one.
func (c *Connection) closeBacking(ctx context.Context) vio.Status {
	if c.closed {
		return vio.StatusOK
	}
	c.closed = true
	return vio.StatusOf(c.file.Close(ctx))
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
		status := c.closeBacking(ctx)
		err := c.reply(request.XID, request.Op, &vio.StatusResponse{Status: status})
		return true, err

	case vio.OpDescribe:
		return false, c.reply(request.XID, request.Op, &vio.DescribeResponse{
			Info: vio.NodeInfo{Kind: vio.NodeKindFile},
		})

	case vio.OpSync:
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: vio.StatusOf(c.file.Sync(ctx))})

	case vio.OpGetAttr:
		status, attrs := c.handleGetAttr(ctx)
		return false, c.reply(request.XID, request.Op, &vio.GetAttrResponse{Status: status, Attributes: *attrs})

	case vio.OpSetAttr:
		req, err := vio.DecodeSetAttrRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode set attr: %w", err)
		}
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: c.handleSetAttr(ctx, req)})

	case vio.OpGetFlags:
		return false, c.reply(request.XID, request.Op, &vio.GetFlagsResponse{
			Status: vio.StatusOK,
			Flags:  c.flags & vio.FileGetFlagsVisible,
		})

	case vio.OpSetFlags:
		req, err := vio.DecodeSetFlagsRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode set flags: %w", err)
		}
		// Append is the only bit a live connection may change.
		c.flags = (c.flags &^ vio.OpenFlagAppend) | (req.Flags & vio.OpenFlagAppend)
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: vio.StatusOK})

	case vio.OpRead:
		req, err := vio.DecodeReadRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode read: %w", err)
		}
		data, err := c.readAt(ctx, c.seek, req.Count)
		if err != nil {
			return false, c.reply(request.XID, request.Op, &vio.ReadResponse{Status: vio.StatusOf(err)})
		}
		c.seek += uint64(len(data))
		return false, c.reply(request.XID, request.Op, &vio.ReadResponse{Status: vio.StatusOK, Data: data})

	case vio.OpReadAt:
		req, err := vio.DecodeReadAtRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode read at: %w", err)
		}
		data, err := c.readAt(ctx, req.Offset, req.Count)
		if err != nil {
			return false, c.reply(request.XID, request.Op, &vio.ReadResponse{Status: vio.StatusOf(err)})
		}
		return false, c.reply(request.XID, request.Op, &vio.ReadResponse{Status: vio.StatusOK, Data: data})

	case vio.OpWrite:
		req, err := vio.DecodeWriteRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode write: %w", err)
		}
		status, actual := c.handleWrite(ctx, req.Data)
		return false, c.reply(request.XID, request.Op, &vio.WriteResponse{Status: status, Actual: actual})

	case vio.OpWriteAt:
		req, err := vio.DecodeWriteAtRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode write at: %w", err)
		}
		status, actual := c.writeAt(ctx, req.Offset, req.Data)
		return false, c.reply(request.XID, request.Op, &vio.WriteResponse{Status: status, Actual: actual})

	case vio.OpSeek:
		req, err := vio.DecodeSeekRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode seek: %w", err)
		}
		status, seek := c.handleSeek(ctx, req.Offset, req.Origin)
		return false, c.reply(request.XID, request.Op, &vio.SeekResponse{Status: status, Offset: seek})

	case vio.OpTruncate:
		req, err := vio.DecodeTruncateRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode truncate: %w", err)
		}
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: c.handleTruncate(ctx, req.Length)})

	case vio.OpGetBuffer:
		req, err := vio.DecodeGetBufferRequest(request.Body)
		if err != nil {
			return false, fmt.Errorf("decode get buffer: %w", err)
		}
		status, buffer := c.handleGetBuffer(ctx, req.Flags)
		return false, c.reply(request.XID, request.Op, &vio.GetBufferResponse{Status: status, Buffer: buffer})

	case vio.OpAdvisoryLock:
		return false, c.reply(request.XID, request.Op, &vio.StatusResponse{Status: vio.StatusNotSupported})

	case vio.OpQueryFilesystem:
		return false, c.reply(request.XID, request.Op, c.handleQueryFilesystem())

	default:
		return false, fmt.Errorf("unknown file operation %d", request.Op)
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

// handleClone opens a sibling connection to the same file, narrowing rights
// per the request. The new connection starts with a seek of zero.
func (c *Connection) handleClone(flags vio.OpenFlags, serverEnd *channel.Channel) {
	childFlags, err := vio.InheritRightsForClone(c.flags, flags)
	if err != nil {
		vfs.SendOnOpenError(serverEnd, flags, vio.StatusOf(err))
		return
	}

	Serve(c.scope, c.file, c.caps, childFlags, serverEnd)
}

func (c *Connection) handleGetAttr(ctx context.Context) (vio.Status, *vio.NodeAttributes) {
	attrs, err := c.file.GetAttrs(ctx)
	if err != nil {
		return vio.StatusOf(err), vio.UnknownAttributes()
	}
	return vio.StatusOK, attrs
}

func (c *Connection) handleSetAttr(ctx context.Context, req *vio.SetAttrRequest) vio.Status {
	if c.flags&vio.OpenRightWritable == 0 {
		return vio.StatusBadHandle
	}
	return vio.StatusOf(c.file.SetAttrs(ctx, req.Flags, &req.Attributes))
}

// readAt gates one read against the connection rights and the transfer
// limit. Short pages signal end of file.
func (c *Connection) readAt(ctx context.Context, offset, count uint64) ([]byte, error) {
	if c.flags&vio.OpenRightReadable == 0 {
		return nil, vio.StatusBadHandle
	}
	if count > vio.MaxTransfer {
		return nil, vio.StatusOutOfRange
	}

	dst := make([]byte, count)
	read, err := c.file.ReadAt(ctx, offset, dst)
	if err != nil {
		return nil, err
	}
	return dst[:read], nil
}

// handleWrite writes at the seek cursor, or at the end of the file when the
// connection is in append mode. Either way the cursor lands after the
// written bytes.
func (c *Connection) handleWrite(ctx context.Context, data []byte) (vio.Status, uint64) {
	if c.flags&vio.OpenRightWritable == 0 {
		return vio.StatusBadHandle, 0
	}

	if c.flags&vio.OpenFlagAppend != 0 {
		written, end, err := c.file.Append(ctx, data)
		if err != nil {
			return vio.StatusOf(err), 0
		}
		c.seek = end
		return vio.StatusOK, written
	}

	status, actual := c.writeAt(ctx, c.seek, data)
	c.seek += actual
	return status, actual
}

func (c *Connection) writeAt(ctx context.Context, offset uint64, data []byte) (vio.Status, uint64) {
	if c.flags&vio.OpenRightWritable == 0 {
		return vio.StatusBadHandle, 0
	}

	written, err := c.file.WriteAt(ctx, offset, data)
	if err != nil {
		return vio.StatusOf(err), 0
	}
	return vio.StatusOK, written
}

// handleSeek moves the cursor relative to the requested origin. Failures
// leave the stored seek alone and report it back.
func (c *Connection) handleSeek(ctx context.Context, offset int64, origin uint32) (vio.Status, uint64) {
	if c.flags&vio.OpenFlagNodeReference != 0 {
		return vio.StatusBadHandle, 0
	}

	var base uint64
	switch origin {
	case vio.SeekStart:
		base = 0
	case vio.SeekCurrent:
		base = c.seek
	case vio.SeekEnd:
		size, err := c.file.GetSize(ctx)
		if err != nil {
			return vio.StatusOf(err), c.seek
		}
		base = size
	default:
		return vio.StatusInvalidArgs, c.seek
	}

	target, ok := seekTarget(base, offset)
	if !ok {
		return vio.StatusOutOfRange, c.seek
	}

	c.seek = target
	return vio.StatusOK, c.seek
}

// seekTarget resolves base+offset in the unsigned seek domain, reporting
// false when the result would fall outside it on either side.
func seekTarget(base uint64, offset int64) (uint64, bool) {
	if offset < 0 {
		// Negating MinInt64 wraps to itself; the unsigned conversion still
		// yields the right magnitude.
		magnitude := uint64(-offset)
		if magnitude > base {
			return 0, false
		}
		return base - magnitude, true
	}

	if base > math.MaxUint64-uint64(offset) {
		return 0, false
	}
	return base + uint64(offset), true
}

func (c *Connection) handleTruncate(ctx context.Context, length uint64) vio.Status {
	if c.flags&vio.OpenRightWritable == 0 {
		return vio.StatusBadHandle
	}
	return vio.StatusOf(c.file.Truncate(ctx, length))
}

func (c *Connection) handleGetBuffer(ctx context.Context, bufferFlags uint32) (vio.Status, *vio.Buffer) {
	if err := vio.ValidateBufferFlags(bufferFlags, c.flags); err != nil {
		return vio.StatusOf(err), nil
	}

	buffer, err := c.file.GetBuffer(ctx, bufferFlags)
	if err != nil {
		return vio.StatusOf(err), nil
	}
	return vio.StatusOK, buffer
}

func (c *Connection) handleQueryFilesystem() *vio.QueryFilesystemResponse {
	queryer, ok := c.file.(FilesystemQueryer)
	if !ok {
		return &vio.QueryFilesystemResponse{Status: vio.StatusNotSupported}
	}

	info, err := queryer.QueryFilesystem()
	if err != nil {
		return &vio.QueryFilesystemResponse{Status: vio.StatusOf(err)}
	}
	return &vio.QueryFilesystemResponse{Status: vio.StatusOK, Info: info}
}
