package client

import (
	"sync"
	"time"

	"github.com/marmos91/pseudofs/internal/logger"
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/pkg/channel"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
	"github.com/marmos91/pseudofs/pkg/vfs/remote"
)

const forwardDialTimeout = 5 * time.Second

// Forwarder returns a routing callback serving a mount point from the server
// at addr. The connection is dialed on first use and redialed after it
// drops; while the server is unreachable, opens fail with an IO error
// instead of wedging the local tree.
func Forwarder(addr string) remote.RoutingFn {
	var mu sync.Mutex
	var conn *Client

	return func(_ *vfs.ExecutionScope, flags vio.OpenFlags, mode uint32, p path.Path, serverEnd *channel.Channel) {
		mu.Lock()
		if conn == nil || conn.Closed() {
			dialed, err := Dial(addr, forwardDialTimeout)
			if err != nil {
				mu.Unlock()
				logger.Warn("client: remote %s unreachable: %v", addr, err)
				vfs.SendOnOpenError(serverEnd, flags, vio.StatusIO)
				return
			}
			conn = dialed
		}
		c := conn
		mu.Unlock()

		// The remaining path crosses the wire as-is; an exhausted one means
		// the remote root itself.
		raw := p.String()
		if raw == "" {
			raw = "."
		}

		if err := c.Open(flags, mode, raw, serverEnd); err != nil {
			logger.Warn("client: forward open %q to %s: %v", raw, addr, err)
		}
	}
}
