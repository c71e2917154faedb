package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/pseudofs/internal/logger"
	"github.com/marmos91/pseudofs/internal/server"
	"github.com/marmos91/pseudofs/pkg/config"
)

func main() {
	// Configuration flags
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/pseudofs/config.yaml)")
	initConfig := flag.Bool("init", false, "Write a starter config file and exit")
	force := flag.Bool("force", false, "With -init, overwrite an existing config file")

	// Override flags; these win over the config file
	listen := flag.String("listen", "", "Listen address override (e.g. :9470)")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")

	flag.Parse()

	if *initConfig {
		runInit(*configPath, *force)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flag overrides land after Load, so validate again.
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Configure logger
	logger.Configure(cfg.Logging.LoggerOptions())

	fmt.Println("pseudofs - Pseudo Filesystem Server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Build the served tree from the config
	root, err := config.BuildRoot(cfg)
	if err != nil {
		log.Fatalf("Failed to build tree: %v", err)
	}
	logger.Info("Tree built: %d configured entries", len(cfg.Tree))

	serverOpts := cfg.Server.ServerOptions()

	// Log server configuration
	logger.Info("Server configuration:")
	logger.Info("  Listen: %s", serverOpts.Addr)
	if serverOpts.MaxConnections > 0 {
		logger.Info("  Max connections: %d", serverOpts.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Read timeout: %v", serverOpts.ReadTimeout)
	logger.Info("  Write timeout: %v", serverOpts.WriteTimeout)
	logger.Info("  Idle timeout: %v", serverOpts.IdleTimeout)
	logger.Info("  Shutdown timeout: %v", serverOpts.ShutdownTimeout)

	if serverOpts.Announce {
		logger.Info("  Announce: %q over mDNS", serverOpts.AnnounceName)
	} else {
		logger.Info("  Announce: disabled")
	}

	srv := server.New(serverOpts, root, cfg.Root.Rights)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running on %s. Press Ctrl+C to stop.", serverOpts.Addr)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel() // Cancel context to initiate shutdown

		// Wait for server to shut down gracefully
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}

// runInit writes the starter config, at the explicit path when one was given.
func runInit(path string, force bool) {
	if path != "" {
		if err := config.InitConfigToPath(path, force); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Configuration written to %s\n", path)
		return
	}

	written, err := config.InitConfig(force)
	if err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	fmt.Printf("Configuration written to %s\n", written)
}
