package directory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
)

// sequence numbers Simple directories in creation order. Cross-directory
// rename locks the lower-numbered directory first, which rules out lock
// cycles between any pair of directories.
var sequence atomic.Uint64

// Simple is an in-memory directory of named entries, ordered alphabetically.
// It is the building block for pseudo trees: entries are added by the server
// with AddEntry, and clients enumerate, open and watch them. A mutable
// Simple additionally accepts Unlink, Rename and Link from clients holding a
// writable connection.
//
// Simple never creates entries on behalf of clients: an Open with the create
// flag for a missing name reports NOT_SUPPORTED.
type Simple struct {
	seq     uint64
	mutable bool

	mu       sync.Mutex
	entries  *btree.Map[string, vfs.Entry]
	watchers watcherSet
}

// NewSimple creates a directory whose entries clients cannot change.
func NewSimple() *Simple {
	return &Simple{
		seq:     sequence.Add(1),
		entries: btree.NewMap[string, vfs.Entry](0),
	}
}

// NewSimpleMutable creates a directory that accepts entry mutation from
// writable client connections.
func NewSimpleMutable() *Simple {
	d := NewSimple()
	d.mutable = true
	return d
}

// Open walks the remaining path one component at a time. An exhausted path
// opens this directory; otherwise the next component is looked up and the
// rest of the walk is delegated to it.
func (d *Simple) Open(scope *vfs.ExecutionScope, flags vio.OpenFlags, mode uint32, p path.Path, serverEnd *channel.Channel) {
	if p.IsEmpty() {
		d.openSelf(scope, flags, serverEnd)
		return
	}

	name, _ := p.Next()

	d.mu.Lock()
	entry, ok := d.entries.Get(name)
	d.mu.Unlock()

	if !ok {
		// Pseudo directories hold what the server put in them; asking to
		// create is distinct from asking for something missing.
		status := vio.StatusNotFound
		if flags&vio.OpenFlagCreate != 0 {
			status = vio.StatusNotSupported
		}
		vfs.SendOnOpenError(serverEnd, flags, status)
		return
	}

	entry.Open(scope, flags, mode, p, serverEnd)
}

func (d *Simple) openSelf(scope *vfs.ExecutionScope, flags vio.OpenFlags, serverEnd *channel.Channel) {
	if d.mutable {
		ServeMutable(scope, d, flags, serverEnd)
	} else {
		Serve(scope, d, flags, serverEnd)
	}
}

// EntryInfo implements vfs.Entry.
func (d *Simple) EntryInfo() vfs.EntryInfo {
	return vfs.EntryInfo{Inode: vio.InoUnknown, Type: vio.DirentTypeDirectory}
}

// CanHardlink implements vfs.Entry. Directories never hard link.
func (d *Simple) CanHardlink() bool {
	return false
}

// GetEntry returns the named child.
func (d *Simple) GetEntry(name string) (vfs.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries.Get(name)
	if !ok {
		return nil, vio.StatusNotFound
	}
	return entry, nil
}

// ReadDirents fills sink with entries, resuming after the cursor. The
// synthetic "." record leads a fresh enumeration; entries added or removed
// between pages appear or vanish according to their name's position relative
// to the cursor.
func (d *Simple) ReadDirents(ctx context.Context, cursor Cursor, sink *Sink) (*Done, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cursor.IsEnd() {
		return sink.Seal(CursorEnd()), nil
	}

	last := cursor.Name()
	if cursor.IsStart() {
		if !sink.Append(d.EntryInfo(), ".") {
			return sink.Seal(Cursor{}), nil
		}
		last = ""
	}

	done := CursorEnd()
	d.entries.Ascend(last, func(name string, entry vfs.Entry) bool {
		if name == last {
			return true
		}
		if !sink.Append(entry.EntryInfo(), name) {
			done = CursorAfter(last)
			return false
		}
		last = name
		return true
	})

	return sink.Seal(done), nil
}

// RegisterWatcher implements Directory. The new watcher is offered the
// current contents as Existing events, then an Idle marker, when its mask
// asks for them.
func (d *Simple) RegisterWatcher(scope *vfs.ExecutionScope, mask uint32, watcher *channel.Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var existing []string
	if mask&vio.WatchMaskExisting != 0 {
		existing = make([]string, 0, d.entries.Len()+1)
		existing = append(existing, ".")
		d.entries.Scan(func(name string, _ vfs.Entry) bool {
			existing = append(existing, name)
			return true
		})
	}

	d.watchers.add(mask, watcher, existing)
	return nil
}

// UnregisterWatcher implements Directory.
func (d *Simple) UnregisterWatcher(watcher *channel.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.watchers.remove(watcher)
}

// AddEntry installs an entry under name. This is the server-side build API:
// it works on immutable directories too, and notifies watchers like any
// other addition.
func (d *Simple) AddEntry(name string, entry vfs.Entry) error {
	if err := validateEntryName(name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries.Get(name); ok {
		return vio.StatusAlreadyExists
	}

	d.entries.Set(name, entry)
	d.watchers.broadcast(vio.WatchEventAdded, name)
	return nil
}

// Link implements MutableDirectory. Occupied names are refused, so a failed
// link never disturbs the directory.
func (d *Simple) Link(name string, entry vfs.Entry) error {
	if !d.mutable {
		return vio.StatusNotSupported
	}
	if err := validateEntryName(name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries.Get(name); ok {
		return vio.StatusAlreadyExists
	}

	d.entries.Set(name, entry)
	d.watchers.broadcast(vio.WatchEventAdded, name)
	return nil
}

// Unlink implements MutableDirectory.
func (d *Simple) Unlink(name string) error {
	if !d.mutable {
		return vio.StatusNotSupported
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries.Delete(name); !ok {
		return vio.StatusNotFound
	}

	d.watchers.broadcast(vio.WatchEventRemoved, name)
	return nil
}

// RemoveEntry implements MutableDirectory.
func (d *Simple) RemoveEntry(name string) (vfs.Entry, error) {
	if !d.mutable {
		return nil, vio.StatusNotSupported
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries.Delete(name)
	if !ok {
		return nil, nil
	}

	d.watchers.broadcast(vio.WatchEventRemoved, name)
	return entry, nil
}

// RenameFrom implements MutableDirectory. The entry stays put unless attach
// succeeds, so a refused destination leaves the source untouched.
func (d *Simple) RenameFrom(src string, attach func(vfs.Entry) error) error {
	if !d.mutable {
		return vio.StatusNotSupported
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries.Get(src)
	if !ok {
		return vio.StatusNotFound
	}

	if err := attach(entry); err != nil {
		return err
	}

	d.entries.Delete(src)
	d.watchers.broadcast(vio.WatchEventRemoved, src)
	return nil
}

// RenameTo implements MutableDirectory. The destination is checked before
// take runs, so a refused rename never removes the source entry.
func (d *Simple) RenameTo(dst string, take func() (vfs.Entry, error)) error {
	if !d.mutable {
		return vio.StatusNotSupported
	}
	if err := validateEntryName(dst); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.entries.Get(dst); ok {
		return vio.StatusAlreadyExists
	}

	entry, err := take()
	if err != nil {
		return err
	}
	if entry == nil {
		return vio.StatusNotFound
	}

	d.entries.Set(dst, entry)
	d.watchers.broadcast(vio.WatchEventAdded, dst)
	return nil
}

// RenameWithin implements MutableDirectory.
func (d *Simple) RenameWithin(src, dst string) error {
	if !d.mutable {
		return vio.StatusNotSupported
	}
	if err := validateEntryName(dst); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.entries.Get(src)
	if !ok {
		return vio.StatusNotFound
	}

	if src == dst {
		return nil
	}

	if _, ok := d.entries.Get(dst); ok {
		return vio.StatusAlreadyExists
	}

	d.entries.Delete(src)
	d.entries.Set(dst, entry)
	d.watchers.broadcast(vio.WatchEventRemoved, src)
	d.watchers.broadcast(vio.WatchEventAdded, dst)
	return nil
}

// Sequence implements MutableDirectory.
func (d *Simple) Sequence() uint64 {
	return d.seq
}

// Filesystem implements MutableDirectory.
func (d *Simple) Filesystem() Filesystem {
	return simpleFilesystem{}
}

// simpleFilesystem coordinates renames between Simple directories. It is
// stateless: all state lives in the two directories, and the creation-order
// sequence decides which one locks first.
type simpleFilesystem struct{}

// Rename moves srcDir's entry src to dstDir under dst. Directories that are
// not Simple cannot take part and fail with INVALID_ARGS.
func (simpleFilesystem) Rename(srcDir any, src string, dstDir any, dst string) error {
	srcSimple, ok := srcDir.(*Simple)
	if !ok {
		return vio.StatusInvalidArgs
	}
	dstSimple, ok := dstDir.(*Simple)
	if !ok {
		return vio.StatusInvalidArgs
	}

	switch {
	case srcSimple == dstSimple:
		return srcSimple.RenameWithin(src, dst)

	case srcSimple.Sequence() < dstSimple.Sequence():
		return srcSimple.RenameFrom(src, func(entry vfs.Entry) error {
			return dstSimple.Link(dst, entry)
		})

	default:
		return dstSimple.RenameTo(dst, func() (vfs.Entry, error) {
			return srcSimple.RemoveEntry(src)
		})
	}
}

// validateEntryName rejects names that cannot live in a directory: empty,
// the dot names, anything with a slash, and names over the protocol limit.
func validateEntryName(name string) error {
	switch name {
	case "", ".", "..":
		return vio.StatusInvalidArgs
	}
	if strings.Contains(name, "/") || len(name) > vio.MaxFilename {
		return vio.StatusInvalidArgs
	}
	return nil
}
