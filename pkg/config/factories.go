package config

import (
	"errors"
	"fmt"

	"github.com/marmos91/pseudofs/internal/logger"
	"github.com/marmos91/pseudofs/internal/protocol/vio"
	"github.com/marmos91/pseudofs/internal/server"
	"github.com/marmos91/pseudofs/pkg/client"
	"github.com/marmos91/pseudofs/pkg/vfs"
	"github.com/marmos91/pseudofs/pkg/vfs/directory"
	"github.com/marmos91/pseudofs/pkg/vfs/file"
	"github.com/marmos91/pseudofs/pkg/vfs/path"
	"github.com/marmos91/pseudofs/pkg/vfs/remote"
)

// LoggerOptions converts the logging section into logger options. Any output
// other than "stdout" is a file path.
func (cfg *LoggingConfig) LoggerOptions() logger.Options {
	opts := logger.Options{
		Level:      cfg.Level,
		MaxSizeMB:  cfg.Rotation.MaxSizeMB,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAgeDays: cfg.Rotation.MaxAgeDays,
	}

	if cfg.Output != "" && cfg.Output != "stdout" {
		opts.File = cfg.Output
		opts.NoStdout = cfg.Quiet
	}

	return opts
}

// ServerOptions converts the server section into server options.
func (cfg *ServerConfig) ServerOptions() server.Options {
	return server.Options{
		Addr:            cfg.Listen,
		MaxConnections:  cfg.MaxConnections,
		IdleTimeout:     cfg.IdleTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Announce:        cfg.Announce.Enabled,
		AnnounceName:    cfg.Announce.Name,
	}
}

// BuildRoot constructs the pseudo tree described by the tree section.
//
// Entries may appear in any order; missing parents are created as mutable
// directories, and an explicit directory entry merges with a parent created
// that way. Remote entries become forwarders that dial their address on
// first use.
func BuildRoot(cfg *Config) (*directory.Simple, error) {
	root := directory.NewSimpleMutable()

	for i := range cfg.Tree {
		node := &cfg.Tree[i]
		if err := addNode(root, node); err != nil {
			return nil, fmt.Errorf("tree[%d] %q: %w", i, node.Path, err)
		}
	}

	return root, nil
}

// addNode walks to the entry's parent, creating directories on the way, and
// attaches the leaf.
func addNode(root *directory.Simple, node *NodeConfig) error {
	p, err := path.Validate(node.Path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	dir := root
	for {
		name, _ := p.Next()
		if p.IsEmpty() {
			return attachLeaf(dir, name, node)
		}

		dir, err = ensureDirectory(dir, name)
		if err != nil {
			return err
		}
	}
}

// ensureDirectory returns the named child directory, creating it if the name
// is free.
func ensureDirectory(dir *directory.Simple, name string) (*directory.Simple, error) {
	entry, err := dir.GetEntry(name)
	if errors.Is(err, vio.StatusNotFound) {
		child := directory.NewSimpleMutable()
		if err := dir.AddEntry(name, child); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", name, err)
		}
		return child, nil
	}
	if err != nil {
		return nil, err
	}

	child, ok := entry.(*directory.Simple)
	if !ok {
		return nil, fmt.Errorf("%q is already taken by a non-directory entry", name)
	}
	return child, nil
}

// attachLeaf installs the configured entry under its final name.
func attachLeaf(dir *directory.Simple, name string, node *NodeConfig) error {
	switch node.Type {
	case "directory", "":
		// The directory may already exist because a deeper entry created
		// it; an explicit listing merges with that.
		if entry, err := dir.GetEntry(name); err == nil {
			if _, ok := entry.(*directory.Simple); ok {
				return nil
			}
			return fmt.Errorf("%q is already taken by a non-directory entry", name)
		}
		return dir.AddEntry(name, directory.NewSimpleMutable())

	case "file":
		var f vfs.Entry
		if node.ReadOnly {
			f = file.NewReadOnly([]byte(node.Content))
		} else {
			f = file.NewMemoryWith([]byte(node.Content))
		}
		return dir.AddEntry(name, f)

	case "remote":
		logger.Debug("config: mounting %s at %q", node.Address, node.Path)
		forwarder := client.Forwarder(node.Address)
		return dir.AddEntry(name, remote.NewWithType(forwarder, vio.DirentTypeDirectory))

	default:
		return fmt.Errorf("unknown entry type %q", node.Type)
	}
}
