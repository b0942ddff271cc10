package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JamesPrial/tasksync/internal/progress"
	"github.com/JamesPrial/tasksync/internal/remote"
	"github.com/JamesPrial/tasksync/internal/session"
	"github.com/JamesPrial/tasksync/internal/syncengine"
	"github.com/JamesPrial/tasksync/internal/task"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

// startHandlers runs a session for alice against store and returns its handlers.
func startHandlers(t *testing.T, store *remote.MemoryStore) *Handlers {
	t.Helper()
	sess, err := session.New(session.StaticIdentity("alice"), session.Options{
		Store:    store,
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sess.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = sess.Close()
	})

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := sess.WaitSynced(waitCtx); err != nil {
		t.Fatalf("WaitSynced: %v", err)
	}
	return NewHandlers(sess)
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the text of the first content element.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no Content elements")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("result.Content[0] is %T, want mcp.TextContent", result.Content[0])
	}
	return tc.Text
}

// decodeResult unmarshals a successful JSON result into v.
func decodeResult(t *testing.T, result *mcp.CallToolResult, err error, v any) {
	t.Helper()
	if err != nil {
		t.Fatalf("handler returned Go error: %v", err)
	}
	text := resultText(t, result)
	if result.IsError {
		t.Fatalf("tool error: %s", text)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, text)
	}
}

// assertToolError checks that the result is a tool error mentioning want.
func assertToolError(t *testing.T, result *mcp.CallToolResult, err error, want string) {
	t.Helper()
	if err != nil {
		t.Fatalf("handler returned Go error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("result is not an error: %s", resultText(t, result))
	}
	if text := resultText(t, result); !strings.Contains(text, want) {
		t.Errorf("error text = %q, want it to contain %q", text, want)
	}
}

func seed(store *remote.MemoryStore, title string, status task.Status) string {
	return store.Seed(task.Task{
		Title:     title,
		Status:    status,
		Priority:  task.PriorityMedium,
		DueDate:   task.DateOf(fixedNow),
		CreatedAt: fixedNow,
		OwnerID:   "alice",
	})
}

// ---------------------------------------------------------------------------
// list_tasks
// ---------------------------------------------------------------------------

func Test_HandleListTasks_FiltersByStatus(t *testing.T) {
	t.Parallel()
	store := remote.NewMemoryStore()
	seed(store, "open", task.StatusPending)
	seed(store, "done", task.StatusCompleted)
	h := startHandlers(t, store)
	ctx := context.Background()

	var all []task.Task
	result, err := h.HandleListTasks(ctx, callTool("list_tasks", nil))
	decodeResult(t, result, err, &all)
	if len(all) != 2 {
		t.Errorf("list_tasks returned %d tasks, want 2", len(all))
	}

	var done []task.Task
	result, err = h.HandleListTasks(ctx, callTool("list_tasks", map[string]any{"status": "completed"}))
	decodeResult(t, result, err, &done)
	if len(done) != 1 || done[0].Title != "done" {
		t.Errorf("completed tasks = %+v", done)
	}

	result, err = h.HandleListTasks(ctx, callTool("list_tasks", map[string]any{"status": "archived"}))
	assertToolError(t, result, err, "Invalid status")
}

func Test_HandleListTasks_EmptyListIsArray(t *testing.T) {
	t.Parallel()
	h := startHandlers(t, remote.NewMemoryStore())

	result, err := h.HandleListTasks(context.Background(), callTool("list_tasks", nil))
	if err != nil {
		t.Fatalf("HandleListTasks: %v", err)
	}
	if text := resultText(t, result); text != "[]" {
		t.Errorf("empty list rendered as %q, want []", text)
	}
}

// ---------------------------------------------------------------------------
// add_task / update_task / toggle_task / delete_task
// ---------------------------------------------------------------------------

func Test_HandleAddTask_CreatesAndRejectsDuplicate(t *testing.T) {
	t.Parallel()
	store := remote.NewMemoryStore()
	h := startHandlers(t, store)
	ctx := context.Background()

	var created task.Task
	result, err := h.HandleAddTask(ctx, callTool("add_task", map[string]any{
		"title":    "Write report",
		"priority": "high",
		"due_date": "2024-06-01",
	}))
	decodeResult(t, result, err, &created)
	if created.Title != "Write report" || created.Priority != task.PriorityHigh || created.Status != task.StatusPending {
		t.Errorf("created = %+v", created)
	}
	if got := store.Snapshot("alice").Tasks; len(got) != 1 {
		t.Errorf("store holds %d tasks, want 1", len(got))
	}

	result, err = h.HandleAddTask(ctx, callTool("add_task", map[string]any{"title": "  write REPORT "}))
	assertToolError(t, result, err, "already exists")
}

func Test_HandleAddTask_Validation(t *testing.T) {
	t.Parallel()
	h := startHandlers(t, remote.NewMemoryStore())
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing title", map[string]any{}, "Missing required parameter: title"},
		{"blank title", map[string]any{"title": "   "}, "title is empty"},
		{"bad priority", map[string]any{"title": "x", "priority": "urgent"}, "unknown priority"},
		{"bad date", map[string]any{"title": "x", "due_date": "June 1"}, "Invalid task"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleAddTask(ctx, callTool("add_task", tt.args))
			assertToolError(t, result, err, tt.want)
		})
	}
}

func Test_HandleAddTask_RemoteFailureRollsBack(t *testing.T) {
	t.Parallel()
	store := remote.NewMemoryStore()
	store.FailNext(remote.OpCreate, errors.New("quota exceeded"))
	h := startHandlers(t, store)
	ctx := context.Background()

	result, err := h.HandleAddTask(ctx, callTool("add_task", map[string]any{"title": "lost"}))
	assertToolError(t, result, err, "was undone")

	var all []task.Task
	result, err = h.HandleListTasks(ctx, callTool("list_tasks", nil))
	decodeResult(t, result, err, &all)
	if len(all) != 0 {
		t.Errorf("rolled back task still listed: %+v", all)
	}
}

func Test_HandleUpdateTask_PartialFields(t *testing.T) {
	t.Parallel()
	store := remote.NewMemoryStore()
	id := seed(store, "draft", task.StatusPending)
	h := startHandlers(t, store)
	ctx := context.Background()

	var updated task.Task
	result, err := h.HandleUpdateTask(ctx, callTool("update_task", map[string]any{
		"id":          id,
		"description": "now with details",
		"due_date":    "",
	}))
	decodeResult(t, result, err, &updated)
	if updated.Title != "draft" || updated.Description != "now with details" || !updated.DueDate.IsZero() {
		t.Errorf("updated = %+v", updated)
	}

	result, err = h.HandleUpdateTask(ctx, callTool("update_task", map[string]any{"id": id}))
	assertToolError(t, result, err, "no fields")

	result, err = h.HandleUpdateTask(ctx, callTool("update_task", map[string]any{"id": id, "title": 42}))
	assertToolError(t, result, err, "must be a string")

	result, err = h.HandleUpdateTask(ctx, callTool("update_task", map[string]any{"id": "missing", "title": "x"}))
	assertToolError(t, result, err, "not found")
}

func Test_HandleToggleTask_FlipsStatus(t *testing.T) {
	t.Parallel()
	store := remote.NewMemoryStore()
	id := seed(store, "flip me", task.StatusPending)
	h := startHandlers(t, store)
	ctx := context.Background()

	var toggled task.Task
	result, err := h.HandleToggleTask(ctx, callTool("toggle_task", map[string]any{"id": id}))
	decodeResult(t, result, err, &toggled)
	if toggled.Status != task.StatusCompleted {
		t.Errorf("status = %q, want completed", toggled.Status)
	}

	result, err = h.HandleToggleTask(ctx, callTool("toggle_task", map[string]any{}))
	assertToolError(t, result, err, "Missing required parameter: id")
}

func Test_HandleDeleteTask_RemovesTask(t *testing.T) {
	t.Parallel()
	store := remote.NewMemoryStore()
	id := seed(store, "obsolete", task.StatusPending)
	h := startHandlers(t, store)
	ctx := context.Background()

	result, err := h.HandleDeleteTask(ctx, callTool("delete_task", map[string]any{"id": id}))
	if err != nil || result.IsError {
		t.Fatalf("delete_task failed: %v %s", err, resultText(t, result))
	}
	if got := store.Snapshot("alice").Tasks; len(got) != 0 {
		t.Errorf("store still holds %+v", got)
	}

	result, err = h.HandleDeleteTask(ctx, callTool("delete_task", map[string]any{"id": id}))
	assertToolError(t, result, err, "not found")
}

// ---------------------------------------------------------------------------
// task_progress / sync_status
// ---------------------------------------------------------------------------

func Test_HandleTaskProgress_SummarizesToday(t *testing.T) {
	t.Parallel()
	store := remote.NewMemoryStore()
	seed(store, "one", task.StatusCompleted)
	seed(store, "two", task.StatusPending)
	h := startHandlers(t, store)

	var report progress.Report
	result, err := h.HandleTaskProgress(context.Background(), callTool("task_progress", nil))
	decodeResult(t, result, err, &report)
	if report.TotalToday != 2 || report.CompletedToday != 1 {
		t.Errorf("today = %d/%d, want 1/2", report.CompletedToday, report.TotalToday)
	}
	if report.TodayRate != 0.5 {
		t.Errorf("TodayRate = %v, want 0.5", report.TodayRate)
	}
}

func Test_HandleSyncStatus_ReportsSynced(t *testing.T) {
	t.Parallel()
	h := startHandlers(t, remote.NewMemoryStore())

	var status map[string]any
	result, err := h.HandleSyncStatus(context.Background(), callTool("sync_status", nil))
	decodeResult(t, result, err, &status)
	if status["synced"] != true || status["ownerId"] != "alice" {
		t.Errorf("status = %v", status)
	}
	if _, ok := status["subscriptionError"]; ok {
		t.Errorf("healthy status reported a subscription error: %v", status)
	}
}

func Test_Handlers_NotAuthenticated(t *testing.T) {
	t.Parallel()
	sess, err := session.New(session.StaticIdentity(""), session.Options{Store: remote.NewMemoryStore()})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	h := NewHandlers(sess)
	ctx := context.Background()
	want := syncengine.Describe(syncengine.ErrNotAuthenticated)

	calls := map[string]func() (*mcp.CallToolResult, error){
		"list_tasks":    func() (*mcp.CallToolResult, error) { return h.HandleListTasks(ctx, callTool("list_tasks", nil)) },
		"add_task":      func() (*mcp.CallToolResult, error) { return h.HandleAddTask(ctx, callTool("add_task", map[string]any{"title": "x"})) },
		"task_progress": func() (*mcp.CallToolResult, error) { return h.HandleTaskProgress(ctx, callTool("task_progress", nil)) },
		"sync_status":   func() (*mcp.CallToolResult, error) { return h.HandleSyncStatus(ctx, callTool("sync_status", nil)) },
	}
	for name, call := range calls {
		result, err := call()
		if err != nil || !result.IsError || resultText(t, result) != want {
			t.Errorf("%s: result = %+v, err = %v", name, result, err)
		}
	}
}
