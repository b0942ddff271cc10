package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JamesPrial/tasksync/internal/session"
	"github.com/JamesPrial/tasksync/internal/syncengine"
	"github.com/JamesPrial/tasksync/internal/task"
)

// Handlers serves the task tools for one session.
type Handlers struct {
	sess *session.Session
}

// NewHandlers returns handlers bound to sess.
func NewHandlers(sess *session.Session) *Handlers {
	return &Handlers{sess: sess}
}

// toolError turns an engine error into a tool error the client can show.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(syncengine.Describe(err))
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// optionalString returns the named argument, or nil when it is absent.
func optionalString(args map[string]any, key string) (*string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("parameter %s must be a string", key)
	}
	return &s, nil
}

// HandleListTasks returns the visible task list.
// Parameters:
//   - status (string, optional): "pending" or "completed"
func (h *Handlers) HandleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.sess.OwnerID() == "" {
		return toolError(syncengine.ErrNotAuthenticated), nil
	}

	status := task.Status(request.GetString("status", ""))
	if status != "" && !status.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid status: %s", status)), nil
	}

	tasks := h.sess.Engine().CurrentTasks()
	if status != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Status == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return jsonResult(tasks)
}

// HandleAddTask creates a task.
// Parameters:
//   - title (string, required)
//   - description, priority, due_date (string, optional)
//
// Returns the task as first shown, which may still carry a temporary id.
func (h *Handlers) HandleAddTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: title"), nil
	}

	draft := task.Draft{
		Title:       title,
		Description: request.GetString("description", ""),
		Priority:    task.Priority(request.GetString("priority", "")),
		DueDate:     task.Date(request.GetString("due_date", "")),
	}

	created, err := h.sess.Engine().AddTask(ctx, draft)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(created)
}

// HandleUpdateTask changes the given fields of a task.
// Parameters:
//   - id (string, required)
//   - title, description, status, priority, due_date (string, optional)
func (h *Handlers) HandleUpdateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	fields, err := fieldsFromArgs(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	updated, err := h.sess.Engine().UpdateTask(ctx, id, fields)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(updated)
}

func fieldsFromArgs(args map[string]any) (task.Fields, error) {
	var f task.Fields
	var err error

	if f.Title, err = optionalString(args, "title"); err != nil {
		return f, err
	}
	if f.Description, err = optionalString(args, "description"); err != nil {
		return f, err
	}

	status, err := optionalString(args, "status")
	if err != nil {
		return f, err
	}
	if status != nil {
		s := task.Status(*status)
		f.Status = &s
	}

	priority, err := optionalString(args, "priority")
	if err != nil {
		return f, err
	}
	if priority != nil {
		p := task.Priority(*priority)
		f.Priority = &p
	}

	due, err := optionalString(args, "due_date")
	if err != nil {
		return f, err
	}
	if due != nil {
		d := task.Date(*due)
		f.DueDate = &d
	}
	return f, nil
}

// HandleToggleTask flips a task between pending and completed.
// Parameters:
//   - id (string, required)
func (h *Handlers) HandleToggleTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	toggled, err := h.sess.Engine().ToggleStatus(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(toggled)
}

// HandleDeleteTask deletes a task.
// Parameters:
//   - id (string, required)
func (h *Handlers) HandleDeleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	if err := h.sess.Engine().DeleteTask(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted task %s", id)), nil
}

// HandleTaskProgress returns today's progress report.
func (h *Handlers) HandleTaskProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := h.sess.Progress(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(report)
}

// HandleSyncStatus reports the engine's sync state.
func (h *Handlers) HandleSyncStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.sess.OwnerID() == "" {
		return toolError(syncengine.ErrNotAuthenticated), nil
	}
	return jsonResult(h.sess.Engine().Status())
}
