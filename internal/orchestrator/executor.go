package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/weft/internal/tool"
	"github.com/ShayCichocki/weft/pkg/models"
)

// Executor runs tasks against the tool boundary, applying the recovery
// manager on failure. It executes a plan group by group: tasks within a
// parallel group run concurrently, a task never starts before its
// dependencies complete, and the outputs of completed dependencies are
// handed to dependents through the execution context.
//
// The executor's only global state is the active-task cancellation
// bookkeeping, cleared as tasks finish.
type Executor struct {
	invoker   tool.Invoker
	recovery  *RecoveryManager
	scheduler *Scheduler

	// emit publishes task lifecycle events. Optional; nil means silent.
	emit func(Event)
	// gate is called before each task dispatch. The orchestrator uses it
	// to hold dispatch while paused. Optional.
	gate func(ctx context.Context) error

	// cancels maps active task IDs to their cancellation functions.
	cancels map[string]context.CancelFunc
	// cancelled marks tasks cancelled by request. Cancelling only the
	// attempt context is not enough: the resulting error would route
	// through recovery and the task could be retried. Execute checks the
	// mark and fails the task terminally instead.
	cancelled map[string]bool
	mu        sync.Mutex
}

// NewExecutor creates an Executor over the given tool invoker and
// recovery manager.
func NewExecutor(invoker tool.Invoker, recovery *RecoveryManager) *Executor {
	return &Executor{
		invoker:   invoker,
		recovery:  recovery,
		scheduler: NewScheduler(),
		cancels:   make(map[string]context.CancelFunc),
		cancelled: make(map[string]bool),
	}
}

// SetEmitter sets the event sink for task lifecycle events.
func (e *Executor) SetEmitter(emit func(Event)) {
	e.emit = emit
}

// SetDispatchGate sets a function called before each task dispatch,
// used by the orchestrator to hold new dispatches while paused.
func (e *Executor) SetDispatchGate(gate func(ctx context.Context) error) {
	e.gate = gate
}

// Cancel cancels the execution of the given task. The task terminates
// as failed with a cancellation reason and is never retried; a task
// cancelled before its first attempt fails without executing at all.
func (e *Executor) Cancel(taskID string) {
	e.mu.Lock()
	e.cancelled[taskID] = true
	cancel, ok := e.cancels[taskID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// CancelAll cancels every in-flight task execution.
func (e *Executor) CancelAll() {
	e.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.cancels))
	for id, cancel := range e.cancels {
		e.cancelled[id] = true
		cancels = append(cancels, cancel)
	}
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// takeCancelled reports whether the task was cancelled by request and
// clears the mark.
func (e *Executor) takeCancelled(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.cancelled[taskID] {
		return false
	}
	delete(e.cancelled, taskID)
	return true
}

// ActiveCount returns the number of tasks currently executing.
func (e *Executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cancels)
}

// ExecutePlan runs every task in the plan. Parallel groups run
// worker-per-task; tasks whose dependencies failed or were skipped are
// marked skipped without executing. The returned results are in plan
// order and cover every task.
func (e *Executor) ExecutePlan(ctx context.Context, plan *models.Plan) []*models.TaskResult {
	groups := e.scheduler.ParallelGroups(plan.Tasks)

	outputs := make(map[string]string, len(plan.Tasks))
	unrunnable := make(map[string]bool)
	results := make(map[string]*models.TaskResult, len(plan.Tasks))
	var stateMu sync.Mutex

	for _, group := range groups {
		if ctx.Err() != nil {
			break
		}

		var wg sync.WaitGroup
		for _, task := range group {
			stateMu.Lock()
			blockedBy := ""
			for _, dep := range task.Dependencies {
				if unrunnable[dep] {
					blockedBy = dep
					break
				}
			}
			stateMu.Unlock()

			if blockedBy != "" {
				e.skipTask(task, blockedBy, results, unrunnable, &stateMu)
				continue
			}

			if e.gate != nil {
				if err := e.gate(ctx); err != nil {
					e.skipTask(task, "", results, unrunnable, &stateMu)
					continue
				}
			}

			stateMu.Lock()
			ectx := &ExecutionContext{
				TaskID:          task.ID,
				Attempt:         1,
				StartTime:       time.Now(),
				Timeout:         task.Timeout,
				PreviousResults: dependencyOutputs(task, outputs),
			}
			stateMu.Unlock()

			wg.Add(1)
			go func(task *models.Task, ectx *ExecutionContext) {
				defer wg.Done()
				result := e.Execute(ctx, task, ectx)

				stateMu.Lock()
				results[task.ID] = result
				if result.Success {
					outputs[task.ID] = result.Output
				} else {
					unrunnable[task.ID] = true
				}
				stateMu.Unlock()
			}(task, ectx)
		}
		wg.Wait()
	}

	// Anything never reached (context cancelled mid-plan, or dropped by
	// a residual cycle) is recorded as skipped.
	ordered := make([]*models.TaskResult, 0, len(plan.Tasks))
	for _, task := range plan.Tasks {
		if r, ok := results[task.ID]; ok {
			ordered = append(ordered, r)
			continue
		}
		if task.Status == models.TaskStatusPending {
			task.Status = models.TaskStatusSkipped
		}
		ordered = append(ordered, &models.TaskResult{
			TaskID: task.ID,
			Error:  "not executed",
		})
	}
	return ordered
}

// skipTask marks a task skipped because a dependency failed (or dispatch
// was aborted) and records the result.
func (e *Executor) skipTask(task *models.Task, failedDep string, results map[string]*models.TaskResult, unrunnable map[string]bool, mu *sync.Mutex) {
	task.Status = models.TaskStatusSkipped
	reason := "dispatch aborted"
	if failedDep != "" {
		reason = "dependency " + failedDep + " failed"
	}

	mu.Lock()
	results[task.ID] = &models.TaskResult{TaskID: task.ID, Error: "skipped: " + reason}
	unrunnable[task.ID] = true
	mu.Unlock()

	if e.emit != nil {
		e.emit(Event{
			Type:        EventTaskSkipped,
			TaskID:      task.ID,
			Description: task.Description,
			Message:     reason,
		})
	}
}

// Execute runs one task to a terminal state: it attempts the task's tool
// calls, routes failures through the recovery manager, and keeps going
// until the task completes, escalates, or exhausts its retry budget.
func (e *Executor) Execute(ctx context.Context, task *models.Task, ectx *ExecutionContext) *models.TaskResult {
	start := time.Now()
	task.Status = models.TaskStatusRunning
	e.emitEvent(Event{Type: EventTaskStarted, TaskID: task.ID, Description: task.Description})

	timeout := ectx.Timeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	attempt := ectx.Attempt
	var lastErr error

	for {
		if err := ctx.Err(); err != nil {
			return e.failTask(task, start, attempt, fmt.Errorf("cancelled: %w", err))
		}
		if e.takeCancelled(task.ID) {
			return e.failTask(task, start, attempt, errors.New("cancelled: cancellation requested"))
		}

		output, err := e.attempt(ctx, task, timeout, ectx.PreviousResults)

		// Per-task cancellation is terminal regardless of how the attempt
		// ended; without this check the context error would route through
		// recovery and the cancelled task could be retried.
		if e.takeCancelled(task.ID) {
			return e.failTask(task, start, attempt, errors.New("cancelled: cancellation requested"))
		}
		if err == nil {
			return e.completeTask(task, start, attempt, output)
		}
		lastErr = &TaskExecutionError{TaskID: task.ID, Attempt: attempt, Err: err}
		debugLog("[executor] %v", lastErr)

		// A cancelled parent context is terminal; recovery only applies
		// to failures of the attempt itself.
		if ctx.Err() != nil {
			return e.failTask(task, start, attempt, fmt.Errorf("cancelled: %w", ctx.Err()))
		}

		action := e.recovery.ApplyRecovery(err.Error(), task, &ExecutionContext{
			TaskID:          task.ID,
			Attempt:         attempt,
			StartTime:       start,
			Timeout:         timeout,
			PreviousResults: ectx.PreviousResults,
		})

		switch action.Type {
		case models.RecoveryRetry:
			task.RetryCount++
			if task.RetryCount > task.MaxRetries {
				return e.failTask(task, start, attempt,
					&RecoveryExhaustedError{TaskID: task.ID, Attempts: attempt, LastErr: lastErr})
			}
			if action.Timeout > 0 {
				timeout = action.Timeout
			}
			if action.Delay > 0 {
				select {
				case <-time.After(action.Delay):
				case <-ctx.Done():
					return e.failTask(task, start, attempt, fmt.Errorf("cancelled: %w", ctx.Err()))
				}
			}
			attempt++
			e.emitEvent(Event{Type: EventTaskRetrying, TaskID: task.ID, Description: task.Description, Attempt: attempt})

		case models.RecoveryDecompose:
			task.RetryCount++
			if task.RetryCount > task.MaxRetries {
				return e.failTask(task, start, attempt,
					&RecoveryExhaustedError{TaskID: task.ID, Attempts: attempt, LastErr: lastErr})
			}
			return e.executeReplacements(ctx, task, action.Subtasks, ectx, start, attempt)

		case models.RecoverySubstitute:
			task.RetryCount++
			if task.RetryCount > task.MaxRetries {
				return e.failTask(task, start, attempt,
					&RecoveryExhaustedError{TaskID: task.ID, Attempts: attempt, LastErr: lastErr})
			}
			return e.executeReplacements(ctx, task, []*models.Task{action.Substitute}, ectx, start, attempt)

		case models.RecoveryEscalate:
			return e.failTask(task, start, attempt,
				fmt.Errorf("escalated: %s: %w", action.Reason, lastErr))

		default:
			return e.failTask(task, start, attempt, lastErr)
		}
	}
}

// executeReplacements runs recovery-produced replacement tasks
// sequentially in dependency order. The original task completes if every
// replacement does.
func (e *Executor) executeReplacements(ctx context.Context, task *models.Task, replacements []*models.Task, ectx *ExecutionContext, start time.Time, attempt int) *models.TaskResult {
	ordered := e.scheduler.OptimizeOrder(replacements)

	outputs := make(map[string]string, len(ordered)+len(ectx.PreviousResults))
	for id, out := range ectx.PreviousResults {
		outputs[id] = out
	}

	var combined strings.Builder
	for _, sub := range ordered {
		subCtx := &ExecutionContext{
			TaskID:          sub.ID,
			Attempt:         1,
			StartTime:       time.Now(),
			Timeout:         sub.Timeout,
			PreviousResults: dependencyOutputs(sub, outputs),
		}
		result := e.Execute(ctx, sub, subCtx)
		if !result.Success {
			return e.failTask(task, start, attempt,
				fmt.Errorf("recovery task %s failed: %s", sub.ID, result.Error))
		}
		outputs[sub.ID] = result.Output
		if combined.Len() > 0 {
			combined.WriteString("\n")
		}
		combined.WriteString(result.Output)
	}

	return e.completeTask(task, start, attempt, combined.String())
}

// attempt runs one timed attempt of the task's tool calls in order,
// registering the attempt in the cancellation map for its duration.
func (e *Executor) attempt(ctx context.Context, task *models.Task, timeout time.Duration, previous map[string]string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.mu.Lock()
	e.cancels[task.ID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, task.ID)
		e.mu.Unlock()
	}()

	calls := task.ToolCalls
	if len(calls) == 0 {
		calls = []models.ToolCall{{Tool: "shell", Args: map[string]string{"target": task.Description}}}
	}

	var output strings.Builder
	for _, call := range calls {
		args := call.Args
		if len(previous) > 0 {
			// Dependents compose on their dependencies' outputs.
			args = make(map[string]string, len(call.Args)+1)
			for k, v := range call.Args {
				args[k] = v
			}
			args["previous"] = joinOutputs(previous)
		}

		out, err := e.invoker.Invoke(attemptCtx, call.Tool, args)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return output.String(), fmt.Errorf("tool %s timed out after %s", call.Tool, timeout)
			}
			return output.String(), err
		}
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString(out)
	}
	return output.String(), nil
}

// completeTask marks a task completed and returns its result.
func (e *Executor) completeTask(task *models.Task, start time.Time, attempt int, output string) *models.TaskResult {
	now := time.Now()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	task.Error = ""

	e.emitEvent(Event{Type: EventTaskCompleted, TaskID: task.ID, Description: task.Description})
	return &models.TaskResult{
		TaskID:   task.ID,
		Success:  true,
		Output:   output,
		Attempts: attempt,
		Duration: now.Sub(start),
	}
}

// failTask marks a task permanently failed and returns its result. The
// failure is surfaced in the result, never swallowed.
func (e *Executor) failTask(task *models.Task, start time.Time, attempt int, err error) *models.TaskResult {
	now := time.Now()
	task.Status = models.TaskStatusFailed
	task.CompletedAt = &now
	task.Error = err.Error()

	e.emitEvent(Event{Type: EventTaskFailed, TaskID: task.ID, Description: task.Description, Err: err})
	return &models.TaskResult{
		TaskID:   task.ID,
		Error:    err.Error(),
		Attempts: attempt,
		Duration: now.Sub(start),
	}
}

// emitEvent publishes an event if a sink is configured.
func (e *Executor) emitEvent(event Event) {
	if e.emit != nil {
		e.emit(event)
	}
}

// dependencyOutputs extracts the outputs of a task's dependencies from
// the completed-output map.
func dependencyOutputs(task *models.Task, outputs map[string]string) map[string]string {
	deps := make(map[string]string, len(task.Dependencies))
	for _, dep := range task.Dependencies {
		if out, ok := outputs[dep]; ok {
			deps[dep] = out
		}
	}
	return deps
}

// joinOutputs flattens dependency outputs into one string for tool args.
func joinOutputs(outputs map[string]string) string {
	parts := make([]string, 0, len(outputs))
	for id, out := range outputs {
		parts = append(parts, id+": "+out)
	}
	sort.Strings(parts)
	return strings.Join(parts, "\n")
}
