package directory

import (
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
)

// Handlers for the mutable half of the directory protocol. Each one checks
// that the connection actually is mutable and writable before touching the
// directory; immutable connections report NOT_SUPPORTED, read-only ones
// ACCESS_DENIED.

func (c *Connection) handleUnlink(req *vio.UnlinkRequest) vio.Status {
	if c.mutable == nil {
		return vio.StatusNotSupported
	}
	if c.flags&vio.OpenRightWritable == 0 {
		return vio.StatusAccessDenied
	}

	switch req.Path {
	case "", "/", ".", "./":
		return vio.StatusBadPath
	}

	p, err := path.Validate(req.Path)
	if err != nil {
		return vio.StatusOf(err)
	}
	if !p.IsSingleComponent() {
		return vio.StatusBadPath
	}

	name, _ := p.Peek()
	return vio.StatusOf(c.mutable.Unlink(name))
}

func (c *Connection) handleGetToken() (vio.Status, []byte) {
	if c.mutable == nil {
		return vio.StatusNotSupported, nil
	}
	if c.flags&vio.OpenRightWritable == 0 {
		return vio.StatusAccessDenied, nil
	}

	registry := c.scope.TokenRegistry()
	if registry == nil {
		return vio.StatusNotSupported, nil
	}

	token, err := registry.GetToken(c.mutable)
	if err != nil {
		return vio.StatusOf(err), nil
	}
	return vio.StatusOK, token
}

func (c *Connection) handleRename(req *vio.RenameRequest) vio.Status {
	if c.mutable == nil {
		return vio.StatusNotSupported
	}
	if c.flags&vio.OpenRightWritable == 0 {
		return vio.StatusAccessDenied
	}

	registry := c.scope.TokenRegistry()
	if registry == nil {
		return vio.StatusNotSupported
	}

	container, err := registry.GetContainer(req.Token)
	if err != nil {
		return vio.StatusOf(err)
	}
	if container == nil {
		return vio.StatusNotFound
	}

	// Both parents are downcast and ordered inside Rename; the token owner
	// stays opaque here.
	return vio.StatusOf(c.mutable.Filesystem().Rename(c.mutable, req.Src, container, req.Dst))
}
