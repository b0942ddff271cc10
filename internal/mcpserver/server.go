package mcpserver

import (
	"errors"

	"github.com/mark3labs/mcp-go/server"

	"github.com/JamesPrial/tasksync/internal/session"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// NewServer creates an MCP server with every task tool registered against sess.
func NewServer(sess *session.Session) (*server.MCPServer, error) {
	if sess == nil {
		return nil, errors.New("mcp server requires a session")
	}
	h := NewHandlers(sess)

	s := server.NewMCPServer(
		"tasksync",
		Version,
		server.WithToolCapabilities(true),
	)

	// Queries
	s.AddTool(listTasksTool(), h.HandleListTasks)
	s.AddTool(taskProgressTool(), h.HandleTaskProgress)
	s.AddTool(syncStatusTool(), h.HandleSyncStatus)

	// Intents
	s.AddTool(addTaskTool(), h.HandleAddTask)
	s.AddTool(updateTaskTool(), h.HandleUpdateTask)
	s.AddTool(toggleTaskTool(), h.HandleToggleTask)
	s.AddTool(deleteTaskTool(), h.HandleDeleteTask)

	return s, nil
}
