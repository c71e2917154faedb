package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is the starter file InitConfig writes. Every value shown is
// the default except the sample tree.
const sampleConfig = `# pseudofs configuration file
#
# Environment variables override any value here: PSEUDOFS_LOGGING_LEVEL,
# PSEUDOFS_SERVER_LISTEN, and so on.

logging:
  level: INFO          # DEBUG, INFO, WARN, ERROR
  output: stdout       # stdout or a log file path
  # quiet: true        # with a file output, skip the terminal
  # rotation:
  #   max_size_mb: 128
  #   max_backups: 5
  #   max_age_days: 16

server:
  listen: ":9470"
  max_connections: 0   # 0 means unlimited
  read_timeout: 5m
  write_timeout: 30s
  idle_timeout: 5m
  shutdown_timeout: 30s
  announce:
    enabled: false
    name: pseudofs

root:
  rights: [read, write]

# The served tree. Parent directories spring into place, so deep entries
# need no scaffolding.
tree:
  - path: docs
    type: directory
  - path: docs/readme.txt
    type: file
    content: "served from memory\n"
    read_only: true
  # - path: mnt/peer
  #   type: remote
  #   address: "192.168.1.20:9470"
`

// InitConfig writes a commented starter configuration file to the default
// location and returns its path. An existing file is only replaced when
// force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the starter configuration to an explicit path,
// creating parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
