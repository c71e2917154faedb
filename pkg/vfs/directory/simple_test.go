package directory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
)

// ============================================================================
// Entry Management Tests
// ============================================================================

func TestAddEntry(t *testing.T) {
	t.Run("RejectsInvalidNames", func(t *testing.T) {
		dir := NewSimple()

		for _, name := range []string{"", ".", "..", "a/b", strings.Repeat("x", vio.MaxFilename+1)} {
			err := dir.AddEntry(name, stubFile{})
			assert.ErrorIs(t, err, vio.StatusInvalidArgs, "name %q", name)
		}
	})

	t.Run("AcceptsNameAtTheLengthLimit", func(t *testing.T) {
		dir := NewSimple()
		assert.NoError(t, dir.AddEntry(strings.Repeat("x", vio.MaxFilename), stubFile{}))
	})

	t.Run("RefusesDuplicates", func(t *testing.T) {
		dir := NewSimple()
		require.NoError(t, dir.AddEntry("twice", stubFile{}))
		assert.ErrorIs(t, dir.AddEntry("twice", stubFile{}), vio.StatusAlreadyExists)
	})

	t.Run("WorksOnImmutableDirectories", func(t *testing.T) {
		// AddEntry is the server-side build API; client mutability is a
		// separate concern.
		dir := NewSimple()
		assert.NoError(t, dir.AddEntry("fixed", stubFile{}))
	})
}

func TestGetEntry(t *testing.T) {
	dir := NewSimple()
	require.NoError(t, dir.AddEntry("present", stubFile{}))

	entry, err := dir.GetEntry("present")
	require.NoError(t, err)
	assert.Equal(t, uint8(vio.DirentTypeFile), entry.EntryInfo().Type)

	_, err = dir.GetEntry("absent")
	assert.ErrorIs(t, err, vio.StatusNotFound)
}

func TestImmutableDirectoryRefusesMutation(t *testing.T) {
	dir := NewSimple()
	require.NoError(t, dir.AddEntry("fixed", stubFile{}))

	assert.ErrorIs(t, dir.Link("alias", stubFile{}), vio.StatusNotSupported)
	assert.ErrorIs(t, dir.Unlink("fixed"), vio.StatusNotSupported)
	assert.ErrorIs(t, dir.RenameWithin("fixed", "moved"), vio.StatusNotSupported)

	_, err := dir.RemoveEntry("fixed")
	assert.ErrorIs(t, err, vio.StatusNotSupported)

	// The entry is untouched.
	_, err = dir.GetEntry("fixed")
	assert.NoError(t, err)
}

func TestRemoveEntry(t *testing.T) {
	dir := NewSimpleMutable()
	require.NoError(t, dir.AddEntry("present", stubFile{}))

	entry, err := dir.RemoveEntry("present")
	require.NoError(t, err)
	assert.NotNil(t, entry)

	// A second removal reports absence as (nil, nil), the contract the
	// rename take callback relies on.
	entry, err = dir.RemoveEntry("present")
	assert.NoError(t, err)
	assert.Nil(t, entry)
}

// ============================================================================
// ReadDirents Unit Tests
// ============================================================================

func TestSimpleReadDirents(t *testing.T) {
	names := func(t *testing.T, done *Done) []string {
		entries, err := vio.ParseDirents(done.Page)
		require.NoError(t, err)
		return direntNames(entries)
	}

	t.Run("AlphabeticalWithLeadingDot", func(t *testing.T) {
		dir := NewSimple()
		for _, name := range []string{"zeta", "alpha", "mid"} {
			require.NoError(t, dir.AddEntry(name, stubFile{}))
		}

		done, err := dir.ReadDirents(context.Background(), Cursor{}, NewSink(vio.MaxTransfer))
		require.NoError(t, err)
		assert.Equal(t, vio.StatusOK, done.Status)
		assert.Equal(t, []string{".", "alpha", "mid", "zeta"}, names(t, done))
		assert.True(t, done.Cursor.IsEnd())
	})

	t.Run("ResumeAfterCursor", func(t *testing.T) {
		dir := NewSimple()
		for _, name := range []string{"a", "b", "c"} {
			require.NoError(t, dir.AddEntry(name, stubFile{}))
		}

		done, err := dir.ReadDirents(context.Background(), CursorAfter("a"), NewSink(vio.MaxTransfer))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, names(t, done))
	})

	t.Run("EntriesAddedAfterTheEndStayHidden", func(t *testing.T) {
		dir := NewSimpleMutable()
		require.NoError(t, dir.AddEntry("m", stubFile{}))

		done, err := dir.ReadDirents(context.Background(), Cursor{}, NewSink(vio.MaxTransfer))
		require.NoError(t, err)
		require.True(t, done.Cursor.IsEnd())

		// The finished enumeration stays finished, whatever gets added.
		require.NoError(t, dir.AddEntry("a", stubFile{}))
		done, err = dir.ReadDirents(context.Background(), done.Cursor, NewSink(vio.MaxTransfer))
		require.NoError(t, err)
		assert.Empty(t, done.Page)
	})

	t.Run("EntryAddedPastTheCursorShowsUp", func(t *testing.T) {
		dir := NewSimpleMutable()
		require.NoError(t, dir.AddEntry("a", stubFile{}))
		require.NoError(t, dir.AddEntry("m", stubFile{}))

		// 22 bytes holds exactly "." and "a"; the cursor parks after "a".
		done, err := dir.ReadDirents(context.Background(), Cursor{}, NewSink(22))
		require.NoError(t, err)
		assert.Equal(t, []string{".", "a"}, names(t, done))
		require.False(t, done.Cursor.IsEnd())

		require.NoError(t, dir.AddEntry("z", stubFile{}))
		done, err = dir.ReadDirents(context.Background(), done.Cursor, NewSink(vio.MaxTransfer))
		require.NoError(t, err)
		assert.Equal(t, []string{"m", "z"}, names(t, done))
	})

	t.Run("EndCursorStaysEmpty", func(t *testing.T) {
		dir := NewSimple()
		require.NoError(t, dir.AddEntry("a", stubFile{}))

		done, err := dir.ReadDirents(context.Background(), CursorEnd(), NewSink(vio.MaxTransfer))
		require.NoError(t, err)
		assert.Equal(t, vio.StatusOK, done.Status)
		assert.Empty(t, done.Page)
		assert.True(t, done.Cursor.IsEnd())
	})
}

// ============================================================================
// Watcher Registration Tests
// ============================================================================

func TestWatcherLifecycle(t *testing.T) {
	recvEvents := func(t *testing.T, w *channel.Channel) []vio.WatchEvent {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		msg, err := w.Recv(ctx)
		require.NoError(t, err)

		events, err := vio.ParseWatchEvents(msg.Data)
		require.NoError(t, err)
		return events
	}

	t.Run("ExistingOnlyWhenMasked", func(t *testing.T) {
		dir := NewSimpleMutable()
		require.NoError(t, dir.AddEntry("a", stubFile{}))
		scope := vfs.NewExecutionScope()

		clientEnd, serverEnd := channel.Pipe()
		defer clientEnd.Close()
		require.NoError(t, dir.RegisterWatcher(scope, vio.WatchMaskAdded, serverEnd))

		// No Existing or Idle: the first delivery is the next addition.
		require.NoError(t, dir.AddEntry("b", stubFile{}))
		events := recvEvents(t, clientEnd)
		assert.Equal(t, []vio.WatchEvent{{Event: vio.WatchEventAdded, Name: "b"}}, events)
	})

	t.Run("UnregisterClosesTheChannel", func(t *testing.T) {
		dir := NewSimpleMutable()
		scope := vfs.NewExecutionScope()

		clientEnd, serverEnd := channel.Pipe()
		defer clientEnd.Close()
		require.NoError(t, dir.RegisterWatcher(scope, vio.WatchMaskAdded, serverEnd))

		dir.UnregisterWatcher(serverEnd)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := clientEnd.Recv(ctx)
		assert.ErrorIs(t, err, channel.ErrPeerClosed)
	})

	t.Run("DeadWatcherIsPruned", func(t *testing.T) {
		dir := NewSimpleMutable()
		scope := vfs.NewExecutionScope()

		clientEnd, serverEnd := channel.Pipe()
		require.NoError(t, dir.RegisterWatcher(scope, vio.WatchMaskAdded, serverEnd))
		clientEnd.Close()

		// The broadcast hits the closed peer and drops the watcher;
		// later broadcasts must not fail or leak.
		require.NoError(t, dir.AddEntry("a", stubFile{}))
		require.NoError(t, dir.AddEntry("b", stubFile{}))
		assert.True(t, serverEnd.Closed())
	})
}

// ============================================================================
// Rename Tests
// ============================================================================

func TestFilesystemRename(t *testing.T) {
	fs := simpleFilesystem{}

	t.Run("WithinOneDirectory", func(t *testing.T) {
		dir := NewSimpleMutable()
		require.NoError(t, dir.AddEntry("old", stubFile{}))

		require.NoError(t, fs.Rename(dir, "old", dir, "new"))

		_, err := dir.GetEntry("old")
		assert.ErrorIs(t, err, vio.StatusNotFound)
		_, err = dir.GetEntry("new")
		assert.NoError(t, err)
	})

	t.Run("SameNameIsANoOp", func(t *testing.T) {
		dir := NewSimpleMutable()
		require.NoError(t, dir.AddEntry("name", stubFile{}))

		require.NoError(t, fs.Rename(dir, "name", dir, "name"))

		_, err := dir.GetEntry("name")
		assert.NoError(t, err)
	})

	t.Run("OlderToNewerDirectory", func(t *testing.T) {
		older := NewSimpleMutable()
		newer := NewSimpleMutable()
		require.Less(t, older.Sequence(), newer.Sequence())
		require.NoError(t, older.AddEntry("entry", stubFile{}))

		require.NoError(t, fs.Rename(older, "entry", newer, "entry"))

		_, err := older.GetEntry("entry")
		assert.ErrorIs(t, err, vio.StatusNotFound)
		_, err = newer.GetEntry("entry")
		assert.NoError(t, err)
	})

	t.Run("NewerToOlderDirectory", func(t *testing.T) {
		older := NewSimpleMutable()
		newer := NewSimpleMutable()
		require.NoError(t, newer.AddEntry("entry", stubFile{}))

		require.NoError(t, fs.Rename(newer, "entry", older, "entry"))

		_, err := newer.GetEntry("entry")
		assert.ErrorIs(t, err, vio.StatusNotFound)
		_, err = older.GetEntry("entry")
		assert.NoError(t, err)
	})

	t.Run("MissingSource", func(t *testing.T) {
		src := NewSimpleMutable()
		dst := NewSimpleMutable()

		assert.ErrorIs(t, fs.Rename(src, "absent", dst, "x"), vio.StatusNotFound)
		assert.ErrorIs(t, fs.Rename(dst, "absent", src, "x"), vio.StatusNotFound)
	})

	t.Run("OccupiedDestinationLeavesSourceIntact", func(t *testing.T) {
		src := NewSimpleMutable()
		dst := NewSimpleMutable()
		require.NoError(t, src.AddEntry("entry", stubFile{}))
		require.NoError(t, dst.AddEntry("entry", stubFile{}))

		assert.ErrorIs(t, fs.Rename(src, "entry", dst, "entry"), vio.StatusAlreadyExists)
		assert.ErrorIs(t, fs.Rename(dst, "entry", src, "entry"), vio.StatusAlreadyExists)

		_, err := src.GetEntry("entry")
		assert.NoError(t, err)
		_, err = dst.GetEntry("entry")
		assert.NoError(t, err)
	})

	t.Run("ForeignDirectoryRejected", func(t *testing.T) {
		dir := NewSimpleMutable()
		require.NoError(t, dir.AddEntry("entry", stubFile{}))

		assert.ErrorIs(t, fs.Rename("not a directory", "entry", dir, "x"), vio.StatusInvalidArgs)
		assert.ErrorIs(t, fs.Rename(dir, "entry", 42, "x"), vio.StatusInvalidArgs)
	})

	t.Run("InvalidDestinationName", func(t *testing.T) {
		src := NewSimpleMutable()
		dst := NewSimpleMutable()
		require.NoError(t, src.AddEntry("entry", stubFile{}))

		assert.ErrorIs(t, fs.Rename(src, "entry", dst, "bad/name"), vio.StatusInvalidArgs)

		_, err := src.GetEntry("entry")
		assert.NoError(t, err)
	})

	// Two goroutines shuttle entries between the same pair of directories
	// in opposite directions. The sequence-ordered locking must let both
	// finish; a lock cycle would deadlock the test.
	t.Run("OpposingRenamesDoNotDeadlock", func(t *testing.T) {
		a := NewSimpleMutable()
		b := NewSimpleMutable()
		require.NoError(t, a.AddEntry("ping", stubFile{}))
		require.NoError(t, b.AddEntry("pong", stubFile{}))

		const rounds = 200

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_ = fs.Rename(a, "ping", b, "ping")
				_ = fs.Rename(b, "ping", a, "ping")
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_ = fs.Rename(b, "pong", a, "pong")
				_ = fs.Rename(a, "pong", b, "pong")
			}
		}()

		finished := make(chan struct{})
		go func() {
			wg.Wait()
			close(finished)
		}()

		select {
		case <-finished:
		case <-time.After(10 * time.Second):
			t.Fatal("opposing renames did not finish; lock ordering is broken")
		}

		// Both entries survived the shuttling, each in exactly one place.
		countHomes := func(name string) int {
			homes := 0
			if _, err := a.GetEntry(name); err == nil {
				homes++
			}
			if _, err := b.GetEntry(name); err == nil {
				homes++
			}
			return homes
		}
		assert.Equal(t, 1, countHomes("ping"))
		assert.Equal(t, 1, countHomes("pong"))
	})
}
