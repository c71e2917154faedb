package file

import (
	"context"
	"sync"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
)

// Memory is a byte-buffer backed file. It implements both the backing File
// contract and vfs.Entry, so it can sit directly in a pseudo directory
// tree.
//
// Characteristics:
//   - Sparse: WriteAt past the end zero-fills the gap
//   - Thread-safe: content access runs under an RWMutex
//   - Volatile: content lives and dies with the process
type Memory struct {
	readOnly bool

	mu       sync.RWMutex
	data     []byte
	creation uint64
	modified uint64
}

// NewMemory returns an empty read-write file.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith returns a read-write file seeded with a copy of content.
func NewMemoryWith(content []byte) *Memory {
	return &Memory{data: append([]byte(nil), content...)}
}

// NewReadOnly returns a file with fixed content: writable opens are refused
// at validation and mutations fail with AccessDenied.
func NewReadOnly(content []byte) *Memory {
	return &Memory{readOnly: true, data: append([]byte(nil), content...)}
}

// Open serves a new connection to the file. The path must be empty: files
// have nothing below them.
func (m *Memory) Open(scope *vfs.ExecutionScope, flags vio.OpenFlags, mode uint32, p path.Path, serverEnd *channel.Channel) {
	if !p.IsEmpty() {
		vfs.SendOnOpenError(serverEnd, flags, vio.StatusNotDir)
		return
	}

	Serve(scope, m, m.capabilities(), flags, serverEnd)
}

func (m *Memory) capabilities() Capabilities {
	return Capabilities{Read: true, Write: !m.readOnly, Append: true}
}

func (m *Memory) EntryInfo() vfs.EntryInfo {
	return vfs.EntryInfo{Inode: vio.InoUnknown, Type: vio.DirentTypeFile}
}

// CanHardlink reports true: a second name shares the content rather than
// copying it.
func (m *Memory) CanHardlink() bool {
	return true
}

// Connect has nothing to prepare; content is ready as soon as the buffer
// exists.
func (m *Memory) Connect(ctx context.Context, flags vio.OpenFlags) error {
	return nil
}

func (m *Memory) ReadAt(ctx context.Context, offset uint64, dst []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if offset >= uint64(len(m.data)) {
		return 0, nil
	}
	return uint64(copy(dst, m.data[offset:])), nil
}

func (m *Memory) WriteAt(ctx context.Context, offset uint64, src []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.readOnly {
		return 0, vio.StatusAccessDenied
	}

	end := offset + uint64(len(src))
	if end < offset {
		return 0, vio.StatusOutOfRange
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if end > uint64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[offset:], src)
	return uint64(len(src)), nil
}

func (m *Memory) Append(ctx context.Context, src []byte) (uint64, uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if m.readOnly {
		return 0, 0, vio.StatusAccessDenied
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = append(m.data, src...)
	return uint64(len(src)), uint64(len(m.data)), nil
}

func (m *Memory) Truncate(ctx context.Context, length uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.readOnly {
		return vio.StatusAccessDenied
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := uint64(len(m.data))
	switch {
	case length < current:
		m.data = m.data[:length]
	case length > current:
		grown := make([]byte, length)
		copy(grown, m.data)
		m.data = grown
	}
	return nil
}

// GetBuffer shares the content per the request: an exact buffer is the live
// byte slice, anything else is a copy taken under the lock.
func (m *Memory) GetBuffer(ctx context.Context, bufferFlags uint32) (*vio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	buffer := &vio.Buffer{Size: uint64(len(m.data))}
	if bufferFlags&vio.BufferFlagExact != 0 {
		buffer.Data = m.data
	} else {
		buffer.Data = append([]byte(nil), m.data...)
	}
	return buffer, nil
}

func (m *Memory) GetSize(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return uint64(len(m.data)), nil
}

func (m *Memory) GetAttrs(ctx context.Context) (*vio.NodeAttributes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	protection := uint32(vio.PosixFileProtection)
	if m.readOnly {
		protection &^= 0o222
	}

	return &vio.NodeAttributes{
		Mode:             vio.ModeTypeFile | protection,
		ID:               vio.InoUnknown,
		ContentSize:      uint64(len(m.data)),
		StorageSize:      uint64(len(m.data)),
		LinkCount:        1,
		CreationTime:     m.creation,
		ModificationTime: m.modified,
	}, nil
}

// SetAttrs stores the selected times. Selector bits beyond the two time
// fields are refused.
func (m *Memory) SetAttrs(ctx context.Context, flags uint32, attrs *vio.NodeAttributes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.readOnly {
		return vio.StatusAccessDenied
	}

	if flags&^(vio.AttrCreationTime|vio.AttrModificationTime) != 0 {
		return vio.StatusNotSupported
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if flags&vio.AttrCreationTime != 0 {
		m.creation = attrs.CreationTime
	}
	if flags&vio.AttrModificationTime != 0 {
		m.modified = attrs.ModificationTime
	}
	return nil
}

// Close and Sync have nothing to flush; content is the buffer itself.
func (m *Memory) Close(ctx context.Context) error {
	return nil
}

func (m *Memory) Sync(ctx context.Context) error {
	return nil
}
