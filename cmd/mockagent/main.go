// Package main provides the glances-mockagent CLI binary.
// It serves a Glances-compatible API from live host stats for local testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmagar/glances-mcp/internal/logging"
	"github.com/jmagar/glances-mcp/internal/mockagent"
)

func main() {
	addr := flag.String("addr", ":61208", "HTTP server address")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.New(*logLevel, false)

	cfg := mockagent.DefaultConfig()
	cfg.Addr = *addr

	agent := mockagent.New(cfg, logger)
	if err := agent.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting mock agent: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mock Glances agent listening on %s\n", agent.Addr())
	fmt.Printf("API endpoint: %s/api/3\n", agent.URL())
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	agent.Stop(ctx)
	fmt.Println("Mock agent stopped")
}
