// Package hook reads coding-agent tool events and turns the plans they
// carry into task drafts.
//
// Two tool payloads are understood: a TodoWrite call, which carries the
// agent's whole todo list, and a TaskCreate call, which carries one task.
// Any other tool is ignored.
package hook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/JamesPrial/tasksync/internal/task"
)

const (
	ToolTodoWrite  = "TodoWrite"
	ToolTaskCreate = "TaskCreate"
)

// Event is the JSON payload an agent hook receives on stdin.
type Event struct {
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
	SessionID string          `json:"session_id"`
	Cwd       string          `json:"cwd"`
}

// Item is one imported task. Completed items are added and then toggled.
type Item struct {
	Draft     task.Draft
	Completed bool
}

// ReadEvent decodes one event from r.
//
// Returns (nil, nil) when the event is not a tool this package handles.
func ReadEvent(r io.Reader) (*Event, error) {
	var ev Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, fmt.Errorf("failed to decode hook input: %w", err)
	}

	switch ev.ToolName {
	case ToolTodoWrite, ToolTaskCreate:
		return &ev, nil
	default:
		return nil, nil
	}
}

// Items extracts the tasks carried by the event. Entries without a title
// are dropped.
func (e *Event) Items() ([]Item, error) {
	if len(e.ToolInput) == 0 {
		return []Item{}, nil
	}

	switch e.ToolName {
	case ToolTodoWrite:
		return todoItems(e.ToolInput)
	case ToolTaskCreate:
		return taskCreateItems(e.ToolInput)
	default:
		return nil, fmt.Errorf("unsupported tool %q", e.ToolName)
	}
}

func todoItems(raw json.RawMessage) ([]Item, error) {
	var input struct {
		Todos []map[string]any `json:"todos"`
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to decode todos: %w", err)
	}

	items := make([]Item, 0, len(input.Todos))
	for _, todo := range input.Todos {
		title := stringField(todo, "content")
		if title == "" {
			continue
		}
		items = append(items, Item{
			Draft: task.Draft{
				Title:    title,
				Priority: priorityField(todo),
			},
			Completed: stringField(todo, "status") == string(task.StatusCompleted),
		})
	}
	return items, nil
}

func taskCreateItems(raw json.RawMessage) ([]Item, error) {
	var input struct {
		Subject     string `json:"subject"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	if strings.TrimSpace(input.Subject) == "" {
		return []Item{}, nil
	}
	return []Item{{Draft: task.Draft{
		Title:       strings.TrimSpace(input.Subject),
		Description: input.Description,
	}}}, nil
}

// stringField returns m[key] as trimmed text. Non-string values are
// formatted with %v.
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

// priorityField keeps a recognised priority and drops anything else.
func priorityField(m map[string]any) task.Priority {
	p := task.Priority(strings.ToLower(stringField(m, "priority")))
	if p.Valid() {
		return p
	}
	return ""
}
