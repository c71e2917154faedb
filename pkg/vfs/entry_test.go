package vfs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
)

func recvMessage(t *testing.T, ch *channel.Channel) *vio.Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := ch.Recv(ctx)
	require.NoError(t, err, "no message on channel")

	msg, err := vio.ParseMessage(raw.Data)
	require.NoError(t, err)
	return msg
}

func expectPeerClosed(t *testing.T, ch *channel.Channel) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := ch.Recv(ctx)
	require.ErrorIs(t, err, channel.ErrPeerClosed)
}

func TestReply(t *testing.T) {
	userEnd, serverEnd := channel.Pipe()
	defer userEnd.Close()
	defer serverEnd.Close()

	require.NoError(t, Reply(serverEnd, 7, vio.OpClose, []byte{1, 2, 3}))

	msg := recvMessage(t, userEnd)
	assert.Equal(t, uint32(7), msg.XID)
	assert.Equal(t, uint32(vio.OpClose), msg.Op)
	assert.Equal(t, []byte{1, 2, 3}, msg.Body)
}

func TestSendOnOpen(t *testing.T) {
	userEnd, serverEnd := channel.Pipe()
	defer userEnd.Close()
	defer serverEnd.Close()

	info := &vio.NodeInfo{Kind: vio.NodeKindFile}
	require.NoError(t, SendOnOpen(serverEnd, vio.StatusOK, info))

	msg := recvMessage(t, userEnd)
	assert.Equal(t, uint32(vio.EventXID), msg.XID)
	assert.Equal(t, uint32(vio.OpOnOpen), msg.Op)

	event, err := vio.DecodeOnOpenEvent(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, vio.StatusOK, event.Status)
	require.NotNil(t, event.Info)
	assert.Equal(t, uint32(vio.NodeKindFile), event.Info.Kind)
}

func TestSendOnOpenError(t *testing.T) {
	t.Run("ReportsWhenAsked", func(t *testing.T) {
		userEnd, serverEnd := channel.Pipe()
		defer userEnd.Close()

		SendOnOpenError(serverEnd, vio.OpenFlagDescribe, vio.StatusNotFound)

		msg := recvMessage(t, userEnd)
		event, err := vio.DecodeOnOpenEvent(msg.Body)
		require.NoError(t, err)
		assert.Equal(t, vio.StatusNotFound, event.Status)
		assert.Nil(t, event.Info)

		expectPeerClosed(t, userEnd)
	})

	t.Run("SilentWithoutDescribe", func(t *testing.T) {
		userEnd, serverEnd := channel.Pipe()
		defer userEnd.Close()

		SendOnOpenError(serverEnd, 0, vio.StatusNotFound)

		// No event: the end just goes away.
		expectPeerClosed(t, userEnd)
	})
}
