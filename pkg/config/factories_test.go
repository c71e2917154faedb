package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/pseudofs/pkg/vfs/directory"
	"github.com/marmos91/pseudofs/pkg/vfs/file"
)

func TestLoggerOptions_Stdout(t *testing.T) {
	cfg := &LoggingConfig{Level: "DEBUG", Output: "stdout"}

	opts := cfg.LoggerOptions()
	if opts.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG', got %q", opts.Level)
	}
	if opts.File != "" {
		t.Errorf("Expected no log file for stdout output, got %q", opts.File)
	}
	if opts.NoStdout {
		t.Error("Expected stdout writer for stdout output")
	}
}

func TestLoggerOptions_File(t *testing.T) {
	cfg := &LoggingConfig{
		Level:  "INFO",
		Output: "/var/log/pseudofs.log",
		Quiet:  true,
		Rotation: RotationConfig{
			MaxSizeMB:  64,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}

	opts := cfg.LoggerOptions()
	if opts.File != "/var/log/pseudofs.log" {
		t.Errorf("Expected log file path, got %q", opts.File)
	}
	if !opts.NoStdout {
		t.Error("Expected quiet to drop the stdout writer")
	}
	if opts.MaxSizeMB != 64 || opts.MaxBackups != 3 || opts.MaxAgeDays != 7 {
		t.Errorf("Expected rotation bounds carried over, got %+v", opts)
	}
}

func TestServerOptions(t *testing.T) {
	cfg := &ServerConfig{
		Listen:          "127.0.0.1:9470",
		MaxConnections:  8,
		ReadTimeout:     time.Minute,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		Announce:        AnnounceConfig{Enabled: true, Name: "study"},
	}

	opts := cfg.ServerOptions()
	if opts.Addr != "127.0.0.1:9470" {
		t.Errorf("Expected addr '127.0.0.1:9470', got %q", opts.Addr)
	}
	if opts.MaxConnections != 8 {
		t.Errorf("Expected max connections 8, got %d", opts.MaxConnections)
	}
	if opts.ReadTimeout != time.Minute {
		t.Errorf("Expected read timeout 1m, got %v", opts.ReadTimeout)
	}
	if opts.WriteTimeout != 10*time.Second {
		t.Errorf("Expected write timeout 10s, got %v", opts.WriteTimeout)
	}
	if opts.IdleTimeout != 2*time.Minute {
		t.Errorf("Expected idle timeout 2m, got %v", opts.IdleTimeout)
	}
	if opts.ShutdownTimeout != 15*time.Second {
		t.Errorf("Expected shutdown timeout 15s, got %v", opts.ShutdownTimeout)
	}
	if !opts.Announce {
		t.Error("Expected announce enabled")
	}
	if opts.AnnounceName != "study" {
		t.Errorf("Expected announce name 'study', got %q", opts.AnnounceName)
	}
}

func TestBuildRoot_EmptyTree(t *testing.T) {
	root, err := BuildRoot(&Config{})
	if err != nil {
		t.Fatalf("BuildRoot failed: %v", err)
	}

	if _, err := root.GetEntry("anything"); err == nil {
		t.Error("Expected an empty root")
	}
}

func TestBuildRoot_NestedFile(t *testing.T) {
	cfg := &Config{Tree: []NodeConfig{
		{Path: "docs/guide/readme.txt", Type: "file", Content: "hello"},
	}}

	root, err := BuildRoot(cfg)
	if err != nil {
		t.Fatalf("BuildRoot failed: %v", err)
	}

	// Parent directories spring into place
	docs := getDirectory(t, root, "docs")
	guide := getDirectory(t, docs, "guide")

	entry, err := guide.GetEntry("readme.txt")
	if err != nil {
		t.Fatalf("Missing readme.txt: %v", err)
	}
	f, ok := entry.(*file.Memory)
	if !ok {
		t.Fatalf("Expected a memory file, got %T", entry)
	}

	buf := make([]byte, 16)
	n, err := f.ReadAt(context.Background(), 0, buf)
	if err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("Expected content 'hello', got %q", string(buf[:n]))
	}
}

func TestBuildRoot_ReadOnlyFile(t *testing.T) {
	cfg := &Config{Tree: []NodeConfig{
		{Path: "motd", Type: "file", Content: "fixed", ReadOnly: true},
	}}

	root, err := BuildRoot(cfg)
	if err != nil {
		t.Fatalf("BuildRoot failed: %v", err)
	}

	entry, err := root.GetEntry("motd")
	if err != nil {
		t.Fatalf("Missing motd: %v", err)
	}
	f, ok := entry.(*file.Memory)
	if !ok {
		t.Fatalf("Expected a memory file, got %T", entry)
	}

	if _, err := f.WriteAt(context.Background(), 0, []byte("x")); err == nil {
		t.Error("Expected write to a read-only file to fail")
	}
}

func TestBuildRoot_ExplicitDirectoryMergesWithImplicit(t *testing.T) {
	// The file entry creates "docs" on the way; the explicit listing for
	// "docs" must merge with it rather than collide.
	cfg := &Config{Tree: []NodeConfig{
		{Path: "docs/readme.txt", Type: "file", Content: "hello"},
		{Path: "docs", Type: "directory"},
	}}

	root, err := BuildRoot(cfg)
	if err != nil {
		t.Fatalf("BuildRoot failed: %v", err)
	}

	docs := getDirectory(t, root, "docs")
	if _, err := docs.GetEntry("readme.txt"); err != nil {
		t.Errorf("Expected readme.txt to survive the merge: %v", err)
	}
}

func TestBuildRoot_FileBlocksDirectory(t *testing.T) {
	cfg := &Config{Tree: []NodeConfig{
		{Path: "docs", Type: "file", Content: "not a directory"},
		{Path: "docs/readme.txt", Type: "file", Content: "hello"},
	}}

	_, err := BuildRoot(cfg)
	if err == nil {
		t.Fatal("Expected error for a file blocking a directory path")
	}
	if !strings.Contains(err.Error(), "non-directory") {
		t.Errorf("Expected 'non-directory' error, got: %v", err)
	}
}

func TestBuildRoot_RemoteEntry(t *testing.T) {
	cfg := &Config{Tree: []NodeConfig{
		{Path: "mnt/peer", Type: "remote", Address: "127.0.0.1:9470"},
	}}

	// Nothing is dialed at build time; the entry just has to be in place.
	root, err := BuildRoot(cfg)
	if err != nil {
		t.Fatalf("BuildRoot failed: %v", err)
	}

	mnt := getDirectory(t, root, "mnt")
	if _, err := mnt.GetEntry("peer"); err != nil {
		t.Fatalf("Missing peer mount: %v", err)
	}
}

// getDirectory resolves a child entry and asserts it is a directory.
func getDirectory(t *testing.T, dir *directory.Simple, name string) *directory.Simple {
	t.Helper()

	entry, err := dir.GetEntry(name)
	if err != nil {
		t.Fatalf("Missing directory %q: %v", name, err)
	}
	child, ok := entry.(*directory.Simple)
	if !ok {
		t.Fatalf("Expected %q to be a directory, got %T", name, entry)
	}
	return child
}
