package config

import (
	"strings"
	"time"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
)

// Default server settings.
const (
	DefaultListenAddr      = ":9470"
	DefaultReadTimeout     = 5 * time.Minute
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second
	DefaultAnnounceName    = "pseudofs"
)

// DefaultRootRights are the connection rights of the pre-opened root channel
// when the config does not say otherwise.
const DefaultRootRights = vio.OpenRightReadable | vio.OpenRightWritable

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved. An
// empty tree stays empty: a daemon serving a bare root is a valid setup.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyRootDefaults(&cfg.Root)
	applyTreeDefaults(cfg.Tree)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}

	// Rotation zeros stay: the logger applies its own bounds when the
	// output is a file.
}

// applyServerDefaults sets listener defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListenAddr
	}

	// MaxConnections defaults to 0 (unlimited)

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Announce.Name == "" {
		cfg.Announce.Name = DefaultAnnounceName
	}
}

// applyRootDefaults sets root connection defaults.
func applyRootDefaults(cfg *RootConfig) {
	if cfg.Rights == 0 {
		cfg.Rights = DefaultRootRights
	}
}

// applyTreeDefaults sets per-entry defaults.
func applyTreeDefaults(tree []NodeConfig) {
	for i := range tree {
		if tree[i].Type == "" {
			tree[i].Type = "directory"
		}
	}
}

// GetDefaultConfig returns a Config with all default values applied.
//
// Useful for generating sample configuration files and for tests. The tree
// is empty; the daemon serves a bare mutable root.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
