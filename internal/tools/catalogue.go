package tools

import (
	"fmt"
	"strings"
)

// Tool names.
const (
	CreateTask  = "create_task"
	UpdateTask  = "update_task"
	ListTasks   = "list_tasks"
	AppendDiary = "append_diary"
	SetReminder = "set_reminder"
)

// Spec describes one tool for prompting and validation.
type Spec struct {
	Name        string
	Description string
	// Schema is a JSON Schema for the parameters object. It checks value types only;
	// required fields are enforced by the handlers.
	Schema string
}

var catalogue = []Spec{
	{
		Name:        CreateTask,
		Description: "Create a new task. 创建一个新的任务。",
		Schema: `{
  "type": "object",
  "properties": {
    "title": {"type": "string", "description": "task title (required)"},
    "description": {"type": ["string", "null"], "description": "task description (optional)"},
    "dueDate": {"type": ["string", "null"], "description": "due date, YYYY-MM-DD (optional)"}
  }
}`,
	},
	{
		Name:        UpdateTask,
		Description: "Update the status or description of an existing task. 更新现有任务的状态或信息。",
		Schema: `{
  "type": "object",
  "properties": {
    "taskId": {"type": ["string", "number"], "description": "task id (required)"},
    "status": {"type": ["string", "null"], "description": "pending, in_progress or completed (optional)"},
    "description": {"type": ["string", "null"], "description": "new description (optional)"}
  }
}`,
	},
	{
		Name:        ListTasks,
		Description: "List the user's tasks. 获取用户的任务列表。",
		Schema: `{
  "type": "object",
  "properties": {
    "status": {"type": ["string", "null"], "description": "filter by status (optional)"},
    "limit": {"type": ["number", "string", "null"], "description": "maximum number of tasks, default 10 (optional)"}
  }
}`,
	},
	{
		Name:        AppendDiary,
		Description: "Write text to today's diary. 写入今天的日记。",
		Schema: `{
  "type": "object",
  "properties": {
    "title": {"type": ["string", "null"], "description": "optional title"},
    "content": {"type": ["string", "null"], "description": "content (required)"},
    "mood": {"type": ["string", "null"], "description": "optional mood"}
  }
}`,
	},
	{
		Name:        SetReminder,
		Description: "Set a reminder for a future event or task. 为未来的事件或任务设置提醒。",
		Schema: `{
  "type": "object",
  "properties": {
    "task_id": {"type": ["string", "number", "null"], "description": "associated task id (optional)"},
    "reminder_time": {"type": "string", "description": "reminder time, YYYY-MM-DDTHH:mm:ss (required)"},
    "description": {"type": ["string", "null"], "description": "short description (optional)"}
  }
}`,
	},
}

// Catalogue returns the tool specs in a stable order.
func Catalogue() []Spec {
	out := make([]Spec, len(catalogue))
	copy(out, catalogue)
	return out
}

// Names returns the known tool names.
func Names() []string {
	names := make([]string, 0, len(catalogue))
	for _, s := range catalogue {
		names = append(names, s.Name)
	}
	return names
}

// RenderCatalogue formats the catalogue for inclusion in a system prompt.
func RenderCatalogue() string {
	var b strings.Builder
	for _, s := range catalogue {
		fmt.Fprintf(&b, "- %s: %s\n  parameters: %s\n", s.Name, s.Description, compactJSON(s.Schema))
	}
	return b.String()
}

func compactJSON(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
