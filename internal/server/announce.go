package server

import (
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"

	"github.com/marmos91/pseudofs/internal/logger"
)

// announce registers the listener as a _pseudofs._tcp instance on the local
// network and returns the deregistration function.
func announce(name string, addr net.Addr) (func(), error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("announce: %s is not a TCP address", addr)
	}

	if name == "" {
		name = "pseudofs"
	}

	srv, err := zeroconf.Register(name, "_pseudofs._tcp", "local.", tcp.Port, []string{"proto=vio1"}, nil)
	if err != nil {
		return nil, fmt.Errorf("register mdns service: %w", err)
	}

	logger.Info("server: announcing %q on _pseudofs._tcp port %d", name, tcp.Port)
	return srv.Shutdown, nil
}
