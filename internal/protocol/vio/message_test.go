package vio

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEnvelope(t *testing.T) {
	t.Run("RoundTripsHeaderAndBody", func(t *testing.T) {
		body, err := (&OpenRequest{
			Flags: OpenRightReadable | OpenFlagDescribe,
			Mode:  ModeTypeFile,
			Path:  "etc/motd",
		}).Encode()
		require.NoError(t, err)

		encoded, err := (&Message{XID: 42, Op: OpOpen, Body: body}).Encode()
		require.NoError(t, err)

		msg, err := ParseMessage(encoded)
		require.NoError(t, err)
		assert.Equal(t, uint32(42), msg.XID)
		assert.Equal(t, uint32(OpOpen), msg.Op)

		req, err := DecodeOpenRequest(msg.Body)
		require.NoError(t, err)
		assert.Equal(t, OpenRightReadable|OpenFlagDescribe, req.Flags)
		assert.Equal(t, uint32(ModeTypeFile), req.Mode)
		assert.Equal(t, "etc/motd", req.Path)
	})

	t.Run("HeaderIsBigEndian", func(t *testing.T) {
		encoded, err := (&Message{XID: 1, Op: OpClose}).Encode()
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, OpClose}, encoded)
	})

	t.Run("RejectsShortPayload", func(t *testing.T) {
		_, err := ParseMessage([]byte{0, 0, 0})
		assert.Error(t, err)
	})
}

func TestRequestBodies(t *testing.T) {
	t.Run("SeekCarriesNegativeOffsets", func(t *testing.T) {
		body, err := (&SeekRequest{Offset: -4, Origin: SeekEnd}).Encode()
		require.NoError(t, err)

		req, err := DecodeSeekRequest(body)
		require.NoError(t, err)
		assert.Equal(t, int64(-4), req.Offset)
		assert.Equal(t, uint32(SeekEnd), req.Origin)
	})

	t.Run("WriteAtCarriesOffsetAndData", func(t *testing.T) {
		body, err := (&WriteAtRequest{Offset: 100, Data: []byte("hello")}).Encode()
		require.NoError(t, err)

		req, err := DecodeWriteAtRequest(body)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), req.Offset)
		assert.Equal(t, []byte("hello"), req.Data)
	})

	t.Run("LinkCarriesNamesAndToken", func(t *testing.T) {
		body, err := (&LinkRequest{Src: "a", Token: []byte("tok-1"), Dst: "b"}).Encode()
		require.NoError(t, err)

		req, err := DecodeLinkRequest(body)
		require.NoError(t, err)
		assert.Equal(t, "a", req.Src)
		assert.Equal(t, []byte("tok-1"), req.Token)
		assert.Equal(t, "b", req.Dst)
	})

	t.Run("SetAttrCarriesSelectorAndRecord", func(t *testing.T) {
		body, err := (&SetAttrRequest{
			Flags:      AttrModificationTime,
			Attributes: NodeAttributes{ModificationTime: 12345},
		}).Encode()
		require.NoError(t, err)

		req, err := DecodeSetAttrRequest(body)
		require.NoError(t, err)
		assert.Equal(t, uint32(AttrModificationTime), req.Flags)
		assert.Equal(t, uint64(12345), req.Attributes.ModificationTime)
	})
}

func TestResponseBodies(t *testing.T) {
	t.Run("ReadResponseOmitsDataOnError", func(t *testing.T) {
		body, err := (&ReadResponse{Status: StatusBadHandle, Data: []byte("ignored")}).Encode()
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, byte(StatusBadHandle)}, body)

		resp, err := DecodeReadResponse(body)
		require.NoError(t, err)
		assert.Equal(t, StatusBadHandle, resp.Status)
		assert.Nil(t, resp.Data)
	})

	t.Run("GetAttrResponseCarriesRecordOnError", func(t *testing.T) {
		body, err := (&GetAttrResponse{
			Status:     StatusIO,
			Attributes: *UnknownAttributes(),
		}).Encode()
		require.NoError(t, err)

		resp, err := DecodeGetAttrResponse(body)
		require.NoError(t, err)
		assert.Equal(t, StatusIO, resp.Status)
		assert.Equal(t, InoUnknown, resp.Attributes.ID)
		assert.Zero(t, resp.Attributes.ContentSize)
	})

	t.Run("OnOpenRoundTripsWithInfo", func(t *testing.T) {
		body, err := (&OnOpenEvent{Status: StatusOK, Info: &NodeInfo{Kind: NodeKindDirectory}}).Encode()
		require.NoError(t, err)

		ev, err := DecodeOnOpenEvent(body)
		require.NoError(t, err)
		assert.Equal(t, StatusOK, ev.Status)
		require.NotNil(t, ev.Info)
		assert.Equal(t, uint32(NodeKindDirectory), ev.Info.Kind)
	})

	t.Run("OnOpenRoundTripsWithoutInfo", func(t *testing.T) {
		body, err := (&OnOpenEvent{Status: StatusNotFound}).Encode()
		require.NoError(t, err)

		ev, err := DecodeOnOpenEvent(body)
		require.NoError(t, err)
		assert.Equal(t, StatusNotFound, ev.Status)
		assert.Nil(t, ev.Info)
	})

	t.Run("QueryFilesystemCarriesOptionalInfo", func(t *testing.T) {
		body, err := (&QueryFilesystemResponse{
			Status: StatusOK,
			Info: &FilesystemInfo{
				TotalBytes:      1 << 20,
				UsedBytes:       512,
				MaxFilenameSize: MaxFilename,
				Name:            "memfs",
			},
		}).Encode()
		require.NoError(t, err)

		resp, err := DecodeQueryFilesystemResponse(body)
		require.NoError(t, err)
		require.NotNil(t, resp.Info)
		assert.Equal(t, uint64(1<<20), resp.Info.TotalBytes)
		assert.Equal(t, "memfs", resp.Info.Name)
	})
}

func TestStatus(t *testing.T) {
	t.Run("StatusOfUnwrapsNestedStatus", func(t *testing.T) {
		err := fmt.Errorf("open child: %w", StatusAccessDenied)
		assert.Equal(t, StatusAccessDenied, StatusOf(err))
	})

	t.Run("StatusOfMapsForeignErrorsToIO", func(t *testing.T) {
		assert.Equal(t, StatusIO, StatusOf(assert.AnError))
	})

	t.Run("StatusOfNilIsOK", func(t *testing.T) {
		assert.Equal(t, StatusOK, StatusOf(nil))
	})

	t.Run("NamesAreStable", func(t *testing.T) {
		assert.Equal(t, "NOT_FILE", StatusNotFile.String())
		assert.Equal(t, "BUFFER_TOO_SMALL", StatusBufferTooSmall.String())
		assert.Equal(t, "STATUS_999", Status(999).String())
	})
}
