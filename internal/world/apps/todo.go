package apps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/signalnine/worldbench/internal/world"
)

type Todo struct {
	ID       string `yaml:"id" json:"id"`
	Title    string `yaml:"title" json:"title"`
	Project  string `yaml:"project" json:"project"`
	Priority string `yaml:"priority" json:"priority"`
	DueDate  string `yaml:"due_date" json:"due_date"`
	Status   string `yaml:"status" json:"status"`
}

var (
	todoStatuses   = []string{"pending", "in_progress", "completed"}
	todoPriorities = []string{"low", "medium", "high"}
)

type TodoApp struct {
	mu    sync.Mutex
	todos map[string]*Todo
	now   func() time.Time
}

func NewTodoApp(seed []Todo, now func() time.Time) *TodoApp {
	a := &TodoApp{todos: make(map[string]*Todo, len(seed)), now: now}
	for i := range seed {
		t := seed[i]
		if t.Status == "" {
			t.Status = "pending"
		}
		if t.Priority == "" {
			t.Priority = "medium"
		}
		a.todos[t.ID] = &t
	}
	return a
}

func (a *TodoApp) Name() string { return "todo" }

func (a *TodoApp) Operations() []world.Operation {
	idParam := world.Param{Name: "task_id", Type: world.TypeString, Required: true}
	return []world.Operation{
		{
			Name:        "list_tasks",
			Description: "List tasks sorted by due date, optionally filtered.",
			Params: []world.Param{
				{Name: "project", Type: world.TypeString},
				{Name: "status", Type: world.TypeString, Enum: todoStatuses},
				{Name: "priority", Type: world.TypeString, Enum: todoPriorities},
			},
			Handler: a.listTasks,
		},
		{
			Name:        "get_task",
			Description: "Get a task by ID.",
			Params:      []world.Param{idParam},
			Handler:     a.getTask,
		},
		{
			Name:        "create_task",
			Description: "Create a task.",
			Params: []world.Param{
				{Name: "title", Type: world.TypeString, Required: true},
				{Name: "project", Type: world.TypeString, Required: true},
				{Name: "priority", Type: world.TypeString, Default: "medium", Enum: todoPriorities},
				{Name: "due_date", Type: world.TypeString},
				{Name: "status", Type: world.TypeString, Default: "pending", Enum: todoStatuses},
			},
			Handler: a.createTask,
		},
		{
			Name:        "update_task",
			Description: "Update fields on a task. Omitted fields are unchanged.",
			Params: []world.Param{
				idParam,
				{Name: "title", Type: world.TypeString},
				{Name: "status", Type: world.TypeString, Enum: todoStatuses},
				{Name: "project", Type: world.TypeString},
				{Name: "priority", Type: world.TypeString, Enum: todoPriorities},
				{Name: "due_date", Type: world.TypeString},
			},
			Handler: a.updateTask,
		},
	}
}

func (a *TodoApp) listTasks(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	project, status, priority := args.String("project"), args.String("status"), args.String("priority")
	out := []Todo{}
	for _, t := range a.todos {
		if project != "" && !strings.EqualFold(t.Project, project) {
			continue
		}
		if status != "" && !strings.EqualFold(t.Status, status) {
			continue
		}
		if priority != "" && !strings.EqualFold(t.Priority, priority) {
			continue
		}
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DueDate == out[j].DueDate {
			return out[i].ID < out[j].ID
		}
		return out[i].DueDate < out[j].DueDate
	})
	return out, nil
}

func (a *TodoApp) getTask(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := args.String("task_id")
	t, ok := a.todos[id]
	if !ok {
		return nil, fmt.Errorf("Task '%s' not found.", id)
	}
	return *t, nil
}

func (a *TodoApp) createTask(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.todos) + 1
	id := fmt.Sprintf("t%03d", n)
	for a.todos[id] != nil {
		n++
		id = fmt.Sprintf("t%03d", n)
	}
	t := &Todo{
		ID:       id,
		Title:    args.String("title"),
		Project:  args.String("project"),
		Priority: args.String("priority"),
		DueDate:  args.String("due_date"),
		Status:   args.String("status"),
	}
	if t.DueDate == "" {
		t.DueDate = a.now().UTC().Format(time.RFC3339)
	}
	a.todos[id] = t
	return map[string]any{"id": id, "status": "created", "task": *t}, nil
}

func (a *TodoApp) updateTask(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := args.String("task_id")
	t, ok := a.todos[id]
	if !ok {
		return nil, fmt.Errorf("Task '%s' not found.", id)
	}
	for name, field := range map[string]*string{
		"title":    &t.Title,
		"status":   &t.Status,
		"project":  &t.Project,
		"priority": &t.Priority,
		"due_date": &t.DueDate,
	} {
		if args.Has(name) {
			*field = args.String(name)
		}
	}
	return map[string]any{"id": id, "status": "updated", "task": *t}, nil
}
