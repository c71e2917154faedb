// Package config loads, validates and applies defaults to the daemon
// configuration, and builds the live pieces (logger options, server options,
// the pseudo tree) out of it.
//
// Configuration sources, highest precedence first:
//  1. Environment variables (PSEUDOFS_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// The tree section describes the served hierarchy declaratively: directories,
// files with inline content, and remote mounts by address. Missing parent
// directories are created on the way to each entry, so a tree of two files
// needs two lines, not five.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/pseudofs/internal/protocol/vio"
)

// Config is the complete daemon configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains the listener settings
	Server ServerConfig `mapstructure:"server"`

	// Root configures the connection every client starts from
	Root RootConfig `mapstructure:"root"`

	// Tree lists the entries of the served hierarchy
	Tree []NodeConfig `mapstructure:"tree" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output is "stdout" or a log file path. A file path enables rotation.
	Output string `mapstructure:"output" validate:"required"`

	// Quiet drops the terminal writer when Output is a file
	Quiet bool `mapstructure:"quiet"`

	// Rotation bounds the log file; zero values use the logger's defaults
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig bounds a rotated log file.
type RotationConfig struct {
	MaxSizeMB  int `mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int `mapstructure:"max_age_days" validate:"min=0"`
}

// ServerConfig contains the listener settings.
type ServerConfig struct {
	// Listen is the TCP listen address, host optional (":9470")
	Listen string `mapstructure:"listen" validate:"required,hostname_port"`

	// MaxConnections caps concurrently served sockets; 0 means no limit
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// ReadTimeout bounds reading the rest of a frame once its header arrived
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds each frame write
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout bounds the wait for the next frame; 0 keeps idle
	// connections open indefinitely
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum wait for connections to drain during
	// graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Announce publishes the listener over mDNS while serving
	Announce AnnounceConfig `mapstructure:"announce"`
}

// AnnounceConfig controls mDNS announcement.
type AnnounceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Name is the advertised instance name
	Name string `mapstructure:"name"`
}

// RootConfig configures the pre-opened root connection.
type RootConfig struct {
	// Rights are the connection rights every client starts with, as a list
	// of names: read, write, execute
	Rights vio.OpenFlags `mapstructure:"rights"`
}

// NodeConfig describes one entry of the served tree.
type NodeConfig struct {
	// Path locates the entry, slash-separated, relative to the root
	Path string `mapstructure:"path" validate:"required"`

	// Type is the entry kind
	// Valid values: directory, file, remote (empty defaults to directory)
	Type string `mapstructure:"type" validate:"omitempty,oneof=directory file remote"`

	// Content is the initial file content; files only
	Content string `mapstructure:"content"`

	// ReadOnly refuses writable opens of the file; files only
	ReadOnly bool `mapstructure:"read_only"`

	// Address is the server to forward opens to; remotes only
	Address string `mapstructure:"address"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath means the default location,
// $XDG_CONFIG_HOME/pseudofs/config.yaml; a missing file there is not an
// error, the defaults serve.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decoderHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// decoderHooks assembles the mapstructure hooks Load decodes with: viper's
// usual duration and list handling plus the rights-name lists of the root
// section.
func decoderHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		openFlagsHookFunc(),
	)
}

// setupViper configures environment variables and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	// Example: PSEUDOFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("PSEUDOFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is acceptable, the defaults serve.
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "pseudofs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "pseudofs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
