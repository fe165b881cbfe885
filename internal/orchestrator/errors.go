package orchestrator

import (
	"errors"
	"fmt"
)

// ErrCycleDetected indicates a circular dependency survived resolution.
// It is internal bookkeeping: cycles are always auto-resolved and this
// error never reaches callers of the planner or orchestrator.
var ErrCycleDetected = errors.New("circular dependency detected")

// DecompositionError indicates a request could not be decomposed into any
// tasks. It is the only error that fails a whole run at planning time.
type DecompositionError struct {
	Request string
	Reason  string
}

func (e *DecompositionError) Error() string {
	return fmt.Sprintf("decomposition failed: %s", e.Reason)
}

// TaskExecutionError wraps a tool failure, timeout, or cancellation for
// one task attempt. It is routed through the recovery manager and never
// unwinds the plan on its own.
type TaskExecutionError struct {
	TaskID  string
	Attempt int
	Err     error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s attempt %d: %v", e.TaskID, e.Attempt, e.Err)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}

// RecoveryExhaustedError indicates a task exceeded its retry budget and
// is permanently failed. The plan continues for independent branches.
type RecoveryExhaustedError struct {
	TaskID   string
	Attempts int
	LastErr  error
}

func (e *RecoveryExhaustedError) Error() string {
	return fmt.Sprintf("task %s failed permanently after %d attempts: %v", e.TaskID, e.Attempts, e.LastErr)
}

func (e *RecoveryExhaustedError) Unwrap() error {
	return e.LastErr
}
