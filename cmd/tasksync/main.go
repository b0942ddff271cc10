// Package main implements the tasksync command line.
//
// Each task command opens a session for the configured owner, waits for the
// first sync and applies one change. serve and mcp keep the session running
// behind the HTTP API or the stdio MCP server.
//
// Exit codes:
//   - 0: Success
//   - 1: Error (bad flags, configuration, or a failed operation)
package main

import (
	"os"

	"github.com/JamesPrial/tasksync/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
