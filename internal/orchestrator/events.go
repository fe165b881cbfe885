package orchestrator

import (
	"time"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventPlanCreated indicates a plan has been built for a request.
	EventPlanCreated EventType = "plan_created"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed permanently.
	EventTaskFailed EventType = "task_failed"
	// EventTaskRetrying indicates a failed task is being retried.
	EventTaskRetrying EventType = "task_retrying"
	// EventTaskSkipped indicates a task was skipped because a dependency
	// failed permanently.
	EventTaskSkipped EventType = "task_skipped"
	// EventRunDone indicates the entire run is complete.
	EventRunDone EventType = "run_done"
)

// Event represents a typed event emitted by the orchestrator. Consumers
// (CLI display, TUI, history recorder) subscribe to the event channel
// without the engine depending on their representation.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// Description is the related task's description, if applicable.
	Description string
	// PlanID is the ID of the plan being executed.
	PlanID string
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err error
	// Attempt is the attempt number for retry events.
	Attempt int
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
