package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
)

// ============================================================================
// Content Tests
// ============================================================================

func TestMemoryWriteAt(t *testing.T) {
	ctx := context.Background()

	t.Run("SparseWriteZeroFillsTheGap", func(t *testing.T) {
		m := NewMemory()

		written, err := m.WriteAt(ctx, 4, []byte("data"))
		require.NoError(t, err)
		assert.Equal(t, uint64(4), written)

		size, err := m.GetSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), size)

		dst := make([]byte, 8)
		read, err := m.ReadAt(ctx, 0, dst)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), read)
		assert.Equal(t, []byte{0, 0, 0, 0, 'd', 'a', 't', 'a'}, dst)
	})

	t.Run("OverwriteKeepsTheTail", func(t *testing.T) {
		m := NewMemoryWith([]byte("0123456789"))

		_, err := m.WriteAt(ctx, 2, []byte("xx"))
		require.NoError(t, err)

		dst := make([]byte, 10)
		_, err = m.ReadAt(ctx, 0, dst)
		require.NoError(t, err)
		assert.Equal(t, []byte("01xx456789"), dst)
	})

	t.Run("WrappingOffsetIsRejected", func(t *testing.T) {
		m := NewMemory()

		_, err := m.WriteAt(ctx, ^uint64(0), []byte("xx"))
		require.ErrorIs(t, err, vio.StatusOutOfRange)
	})
}

func TestMemoryAppend(t *testing.T) {
	ctx := context.Background()

	m := NewMemoryWith([]byte("base"))

	written, end, err := m.Append(ctx, []byte("+tail"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), written)
	assert.Equal(t, uint64(9), end)

	dst := make([]byte, 9)
	_, err = m.ReadAt(ctx, 0, dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("base+tail"), dst)
}

func TestMemoryTruncate(t *testing.T) {
	ctx := context.Background()

	t.Run("ShrinkDropsTheTail", func(t *testing.T) {
		m := NewMemoryWith([]byte("0123456789"))

		require.NoError(t, m.Truncate(ctx, 4))

		size, err := m.GetSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), size)
	})

	t.Run("GrowZeroFills", func(t *testing.T) {
		m := NewMemoryWith([]byte("ab"))

		require.NoError(t, m.Truncate(ctx, 4))

		dst := make([]byte, 4)
		read, err := m.ReadAt(ctx, 0, dst)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), read)
		assert.Equal(t, []byte{'a', 'b', 0, 0}, dst)
	})
}

func TestMemoryReadAt(t *testing.T) {
	ctx := context.Background()

	t.Run("PastEndReadsNothing", func(t *testing.T) {
		m := NewMemoryWith([]byte("ab"))

		read, err := m.ReadAt(ctx, 5, make([]byte, 4))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), read)
	})

	t.Run("ShortBufferReadsPrefix", func(t *testing.T) {
		m := NewMemoryWith([]byte("0123456789"))

		dst := make([]byte, 3)
		read, err := m.ReadAt(ctx, 4, dst)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), read)
		assert.Equal(t, []byte("456"), dst)
	})
}

// ============================================================================
// Read-Only Tests
// ============================================================================

func TestMemoryReadOnly(t *testing.T) {
	ctx := context.Background()

	m := NewReadOnly([]byte("fixed"))

	_, err := m.WriteAt(ctx, 0, []byte("x"))
	require.ErrorIs(t, err, vio.StatusAccessDenied)

	_, _, err = m.Append(ctx, []byte("x"))
	require.ErrorIs(t, err, vio.StatusAccessDenied)

	err = m.Truncate(ctx, 0)
	require.ErrorIs(t, err, vio.StatusAccessDenied)

	err = m.SetAttrs(ctx, vio.AttrModificationTime, &vio.NodeAttributes{ModificationTime: 1})
	require.ErrorIs(t, err, vio.StatusAccessDenied)

	dst := make([]byte, 5)
	read, err := m.ReadAt(ctx, 0, dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), read)
	assert.Equal(t, []byte("fixed"), dst)
}

// ============================================================================
// Buffer Sharing Tests
// ============================================================================

func TestMemoryGetBuffer(t *testing.T) {
	ctx := context.Background()

	t.Run("ExactBufferSeesLaterWrites", func(t *testing.T) {
		m := NewMemoryWith([]byte("live"))

		buffer, err := m.GetBuffer(ctx, vio.BufferFlagRead|vio.BufferFlagExact)
		require.NoError(t, err)

		_, err = m.WriteAt(ctx, 0, []byte("L"))
		require.NoError(t, err)
		assert.Equal(t, []byte("Live"), buffer.Data)
	})

	t.Run("DefaultBufferIsACopy", func(t *testing.T) {
		m := NewMemoryWith([]byte("live"))

		buffer, err := m.GetBuffer(ctx, vio.BufferFlagRead)
		require.NoError(t, err)

		_, err = m.WriteAt(ctx, 0, []byte("L"))
		require.NoError(t, err)
		assert.Equal(t, []byte("live"), buffer.Data)
	})
}

// ============================================================================
// Attribute and Entry Tests
// ============================================================================

func TestMemoryAttrs(t *testing.T) {
	ctx := context.Background()

	t.Run("InitialAttributes", func(t *testing.T) {
		m := NewMemoryWith([]byte("abc"))

		attrs, err := m.GetAttrs(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(vio.ModeTypeFile|vio.PosixFileProtection), attrs.Mode)
		assert.Equal(t, uint64(3), attrs.ContentSize)
		assert.Equal(t, uint64(0), attrs.ModificationTime)
	})

	t.Run("SetAttrsStoresTimes", func(t *testing.T) {
		m := NewMemory()

		err := m.SetAttrs(ctx, vio.AttrCreationTime|vio.AttrModificationTime,
			&vio.NodeAttributes{CreationTime: 5, ModificationTime: 6})
		require.NoError(t, err)

		attrs, err := m.GetAttrs(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), attrs.CreationTime)
		assert.Equal(t, uint64(6), attrs.ModificationTime)
	})

	t.Run("UnknownSelectorIsRefused", func(t *testing.T) {
		m := NewMemory()

		err := m.SetAttrs(ctx, 0x80, &vio.NodeAttributes{})
		require.ErrorIs(t, err, vio.StatusNotSupported)
	})
}

func TestMemoryEntry(t *testing.T) {
	m := NewMemory()

	info := m.EntryInfo()
	assert.Equal(t, uint64(vio.InoUnknown), info.Inode)
	assert.Equal(t, uint8(vio.DirentTypeFile), info.Type)

	assert.True(t, m.CanHardlink())
}
