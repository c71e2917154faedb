package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/internal/server"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/directory"
	"github.com/marmos91/pseudofs/pkg/vfs/file"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
	"github.com/marmos91/pseudofs/pkg/vfs/remote"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// motdTree returns a mutable root holding one file, "motd".
func motdTree(t *testing.T) vfs.Entry {
	t.Helper()

	root := directory.NewSimpleMutable()
	require.NoError(t, root.AddEntry("motd", file.NewMemoryWith([]byte("hello, world"))))
	return root
}

// startServer brings a server up on a loopback port and returns its address
// together with a stop function that waits for the full teardown.
func startServer(t *testing.T, root vfs.Entry) (string, func()) {
	t.Helper()

	srv := server.New(server.Options{Addr: "127.0.0.1:0"}, root, vio.OpenRightReadable|vio.OpenRightWritable)
	ctx, cancel := context.WithCancel(context.Background())

	var serveErr error
	done := make(chan struct{})
	go func() {
		serveErr = srv.Serve(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return srv.Addr() != nil
	}, 2*time.Second, 10*time.Millisecond, "server never started listening")

	stop := func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("server did not stop")
		}
	}

	t.Cleanup(func() {
		stop()
		assert.NoError(t, serveErr)
	})

	return srv.Addr().String(), stop
}

func dialClient(t *testing.T, addr string) *Client {
	t.Helper()

	c, err := Dial(addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sendMessage(t *testing.T, ch *channel.Channel, xid, op uint32, body []byte) {
	t.Helper()

	data, err := (&vio.Message{XID: xid, Op: op, Body: body}).Encode()
	require.NoError(t, err)
	require.NoError(t, ch.Send(channel.Message{Data: data}))
}

func recvMessage(t *testing.T, ch *channel.Channel) *vio.Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := ch.Recv(ctx)
	require.NoError(t, err, "no reply on channel")

	msg, err := vio.ParseMessage(raw.Data)
	require.NoError(t, err)
	return msg
}

func mustPath(t *testing.T, raw string) path.Path {
	t.Helper()

	p, err := path.Validate(raw)
	require.NoError(t, err)
	return p
}

// openEntry opens raw through the client and returns the end the outcome
// arrives on.
func openEntry(t *testing.T, c *Client, flags vio.OpenFlags, raw string) *channel.Channel {
	t.Helper()

	userEnd, serverEnd := channel.Pipe()
	require.NoError(t, c.Open(flags, 0, raw, serverEnd))
	t.Cleanup(func() { userEnd.Close() })
	return userEnd
}

func expectOnOpen(t *testing.T, ch *channel.Channel, kind uint32) {
	t.Helper()

	event := recvMessage(t, ch)
	require.Equal(t, uint32(vio.EventXID), event.XID)
	require.Equal(t, uint32(vio.OpOnOpen), event.Op)

	onOpen, err := vio.DecodeOnOpenEvent(event.Body)
	require.NoError(t, err)
	require.Equal(t, vio.StatusOK, onOpen.Status)
	require.NotNil(t, onOpen.Info)
	require.Equal(t, kind, onOpen.Info.Kind)
}

// ============================================================================
// Client Tests
// ============================================================================

func TestClientDescribeRoot(t *testing.T) {
	addr, _ := startServer(t, motdTree(t))
	c := dialClient(t, addr)

	sendMessage(t, c.Root(), 1, vio.OpDescribe, nil)

	reply := recvMessage(t, c.Root())
	assert.Equal(t, uint32(1), reply.XID)

	resp, err := vio.DecodeDescribeResponse(reply.Body)
	require.NoError(t, err)
	assert.Equal(t, uint32(vio.NodeKindDirectory), resp.Info.Kind)
}

func TestClientOpenAndRead(t *testing.T) {
	addr, _ := startServer(t, motdTree(t))
	c := dialClient(t, addr)

	motd := openEntry(t, c, vio.OpenRightReadable|vio.OpenFlagDescribe, "motd")
	expectOnOpen(t, motd, uint32(vio.NodeKindFile))

	readBody, err := (&vio.ReadRequest{Count: 64}).Encode()
	require.NoError(t, err)
	sendMessage(t, motd, 1, vio.OpRead, readBody)

	reply := recvMessage(t, motd)
	resp, err := vio.DecodeReadResponse(reply.Body)
	require.NoError(t, err)
	assert.Equal(t, vio.StatusOK, resp.Status)
	assert.Equal(t, []byte("hello, world"), resp.Data)
}

func TestClientOpenMissingEntry(t *testing.T) {
	addr, _ := startServer(t, motdTree(t))
	c := dialClient(t, addr)

	missing := openEntry(t, c, vio.OpenRightReadable|vio.OpenFlagDescribe, "nope")

	event := recvMessage(t, missing)
	onOpen, err := vio.DecodeOnOpenEvent(event.Body)
	require.NoError(t, err)
	assert.Equal(t, vio.StatusNotFound, onOpen.Status)
	assert.Nil(t, onOpen.Info)

	// The failed open's end is torn down behind the event.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, rerr := missing.Recv(ctx)
	require.ErrorIs(t, rerr, channel.ErrPeerClosed)
}

func TestClientServerShutdown(t *testing.T) {
	addr, stop := startServer(t, motdTree(t))
	c := dialClient(t, addr)

	sendMessage(t, c.Root(), 1, vio.OpDescribe, nil)
	recvMessage(t, c.Root())

	stop()

	// The transport failing underneath surfaces as a peer close on every
	// spliced channel.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		if _, err := c.Root().Recv(ctx); err != nil {
			require.ErrorIs(t, err, channel.ErrPeerClosed)
			break
		}
	}

	assert.Eventually(t, c.Closed, 2*time.Second, 10*time.Millisecond)
}

func TestClientOpenAfterClose(t *testing.T) {
	addr, _ := startServer(t, motdTree(t))

	c, err := Dial(addr, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.True(t, c.Closed())

	userEnd, serverEnd := channel.Pipe()
	require.Error(t, c.Open(vio.OpenRightReadable, 0, "motd", serverEnd))

	// The pair is released, not leaked.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, rerr := userEnd.Recv(ctx)
	require.ErrorIs(t, rerr, channel.ErrPeerClosed)
}

// ============================================================================
// Forwarder Tests
// ============================================================================

func TestForwarderTwoHops(t *testing.T) {
	// Server B owns the tree; server A mounts it under "peer" and forwards
	// every open that crosses the mount point.
	addrB, _ := startServer(t, motdTree(t))

	rootA := directory.NewSimpleMutable()
	require.NoError(t, rootA.AddEntry("peer", remote.NewWithType(Forwarder(addrB), vio.DirentTypeDirectory)))
	addrA, _ := startServer(t, rootA)

	c := dialClient(t, addrA)

	motd := openEntry(t, c, vio.OpenRightReadable|vio.OpenFlagDescribe, "peer/motd")
	expectOnOpen(t, motd, uint32(vio.NodeKindFile))

	readBody, err := (&vio.ReadRequest{Count: 64}).Encode()
	require.NoError(t, err)
	sendMessage(t, motd, 1, vio.OpRead, readBody)

	reply := recvMessage(t, motd)
	resp, err := vio.DecodeReadResponse(reply.Body)
	require.NoError(t, err)
	assert.Equal(t, vio.StatusOK, resp.Status)
	assert.Equal(t, []byte("hello, world"), resp.Data)

	// Opening the mount point itself lands on the remote root.
	peer := openEntry(t, c, vio.OpenRightReadable|vio.OpenFlagDescribe, "peer")
	expectOnOpen(t, peer, uint32(vio.NodeKindDirectory))
}

func TestForwarderUnreachable(t *testing.T) {
	// Grab a loopback port that is certainly closed.
	addr, stop := startServer(t, motdTree(t))
	stop()

	route := Forwarder(addr)

	userEnd, serverEnd := channel.Pipe()
	route(vfs.NewExecutionScope(), vio.OpenRightReadable|vio.OpenFlagDescribe, 0, mustPath(t, "motd"), serverEnd)

	event := recvMessage(t, userEnd)
	onOpen, err := vio.DecodeOnOpenEvent(event.Body)
	require.NoError(t, err)
	assert.Equal(t, vio.StatusIO, onOpen.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, rerr := userEnd.Recv(ctx)
	require.ErrorIs(t, rerr, channel.ErrPeerClosed)
}
