package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is being worked on.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was skipped because a
	// dependency failed permanently.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// ToolCall is one intended tool invocation for a task.
type ToolCall struct {
	// Tool is the registered tool name (shell, file_read, file_write, search).
	Tool string `json:"tool"`
	// Args are the arguments passed to the tool.
	Args map[string]string `json:"args,omitempty"`
}

// Task represents one atomic unit of work in a plan.
type Task struct {
	// ID is the unique identifier for this task, stable for the plan's lifetime.
	ID string `json:"id"`
	// Description is the human-readable intent of the task.
	Description string `json:"description"`
	// Dependencies lists task IDs that must complete before this task starts.
	Dependencies []string `json:"dependencies,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// RetryCount is the number of times this task has been retried.
	RetryCount int `json:"retry_count,omitempty"`
	// MaxRetries is the retry ceiling before the task fails permanently.
	MaxRetries int `json:"max_retries"`
	// Timeout is the maximum duration allowed before the task is treated
	// as failed by timeout.
	Timeout time.Duration `json:"timeout"`
	// ToolCalls are the tool invocations the task intends to make.
	// Populated at decomposition time; recovery may amend them.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// Error contains the failure reason if the task failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DependsOn returns true if the task lists the given ID as a dependency.
func (t *Task) DependsOn(id string) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// RemoveDependency deletes the given ID from the task's dependency set.
// It is a no-op if the ID is not present.
func (t *Task) RemoveDependency(id string) {
	for i, dep := range t.Dependencies {
		if dep == id {
			t.Dependencies = append(t.Dependencies[:i], t.Dependencies[i+1:]...)
			return
		}
	}
}

// AddDependency appends the given ID to the task's dependency set if it is
// not already present and is not the task's own ID.
func (t *Task) AddDependency(id string) {
	if id == t.ID || t.DependsOn(id) {
		return
	}
	t.Dependencies = append(t.Dependencies, id)
}

// Terminal returns true if the task is in a final state.
func (t *Task) Terminal() bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}
