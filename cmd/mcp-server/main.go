// Package main implements the tasksync MCP server.
//
// The server exposes the configured owner's task list as tools and
// communicates via stdio JSON-RPC (Model Context Protocol). Configuration is
// read the same way as the tasksync CLI.
package main

import (
	"context"
	"log"
	"os"

	"github.com/JamesPrial/tasksync/internal/cli"
	"github.com/JamesPrial/tasksync/internal/config"
)

func run() int {
	errLogger := log.New(os.Stderr, "[mcp-server] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		errLogger.Printf("Failed to load config: %v", err)
		return 1
	}

	if err := cli.ServeMCP(context.Background(), cfg, errLogger); err != nil {
		errLogger.Printf("Server error: %v", err)
		return 1
	}

	return 0
}

func main() {
	os.Exit(run())
}
