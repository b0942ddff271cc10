// Package mcpserver exposes a tasksync session as Model Context Protocol tools.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// listTasksTool returns a tool definition for listing the owner's tasks.
func listTasksTool() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription("List the signed-in user's tasks in display order, including changes that are still being saved."),
		mcp.WithString("status",
			mcp.Description("Only return tasks with this status"),
			mcp.Enum("pending", "completed")),
	)
}

// addTaskTool returns a tool definition for creating a task.
func addTaskTool() mcp.Tool {
	return mcp.NewTool("add_task",
		mcp.WithDescription("Create a task. Titles must be unique, ignoring case and surrounding whitespace."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Task title")),
		mcp.WithString("description",
			mcp.Description("Optional free text")),
		mcp.WithString("priority",
			mcp.Description("Task priority (defaults to medium)"),
			mcp.Enum("high", "medium", "low")),
		mcp.WithString("due_date",
			mcp.Description("Due date as YYYY-MM-DD")),
	)
}

// updateTaskTool returns a tool definition for editing a task.
func updateTaskTool() mcp.Tool {
	return mcp.NewTool("update_task",
		mcp.WithDescription("Change one or more fields of a task. Omitted fields are left unchanged."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Task id")),
		mcp.WithString("title",
			mcp.Description("New title")),
		mcp.WithString("description",
			mcp.Description("New description")),
		mcp.WithString("status",
			mcp.Description("New status"),
			mcp.Enum("pending", "completed")),
		mcp.WithString("priority",
			mcp.Description("New priority"),
			mcp.Enum("high", "medium", "low")),
		mcp.WithString("due_date",
			mcp.Description("New due date as YYYY-MM-DD, or an empty string to clear it")),
	)
}

// toggleTaskTool returns a tool definition for flipping a task's status.
func toggleTaskTool() mcp.Tool {
	return mcp.NewTool("toggle_task",
		mcp.WithDescription("Mark a pending task completed, or a completed task pending."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Task id")),
	)
}

// deleteTaskTool returns a tool definition for deleting a task.
func deleteTaskTool() mcp.Tool {
	return mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Task id")),
	)
}

// taskProgressTool returns a tool definition for the progress summary.
func taskProgressTool() mcp.Tool {
	return mcp.NewTool("task_progress",
		mcp.WithDescription("Summarize today's progress: tasks due today, completion rates, progress toward the daily goal and recent tasks."),
	)
}

// syncStatusTool returns a tool definition for the sync state.
func syncStatusTool() mcp.Tool {
	return mcp.NewTool("sync_status",
		mcp.WithDescription("Report whether the task list is in sync with the remote store and how many changes are still being saved."),
	)
}
