package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/weft/internal/tool"
	"github.com/ShayCichocki/weft/pkg/models"
)

// eventBufferSize is the emitter buffer for one orchestrator instance.
const eventBufferSize = 100

// State is the orchestrator's lifecycle state.
type State string

const (
	// StateIdle means no request is being processed.
	StateIdle State = "idle"
	// StatePlanning means a plan is being built for a request.
	StatePlanning State = "planning"
	// StateExecuting means the plan is being executed.
	StateExecuting State = "executing"
	// StateCompleted means the run finished with every task completed.
	StateCompleted State = "completed"
	// StateFailed means the run finished with at least one permanent
	// failure, or failed at planning time.
	StateFailed State = "failed"
)

// Config contains construction options for an Orchestrator.
type Config struct {
	// Invoker is the tool boundary tasks execute against. Required.
	Invoker tool.Invoker
	// Decomposer overrides the heuristic decomposer, e.g. with the
	// model-backed one. Optional.
	Decomposer TaskDecomposer
	// Logger is the debug logger. Optional; nil means no debug logging.
	Logger *DebugLogger
}

// Orchestrator coordinates one request end to end: planner -> executor
// -> recovery, reporting progress through typed events. A single task's
// permanent failure never aborts the plan; independent branches run to
// completion and dependents of the failure are skipped.
type Orchestrator struct {
	id        string
	planner   *Planner
	executor  *Executor
	recovery  *RecoveryManager
	emitter   *EventEmitter
	pauseCtrl *PauseController
	logger    *DebugLogger

	// state is the lifecycle state, guarded by mu.
	state State
	// abort cancels the active run, if any.
	abort context.CancelFunc
	mu    sync.RWMutex
}

// New creates an Orchestrator from the given config.
func New(cfg Config) *Orchestrator {
	if cfg.Logger != nil {
		SetDebugLogger(cfg.Logger)
	}

	decomposer := cfg.Decomposer
	if decomposer == nil {
		decomposer = NewDecomposer()
	}

	recovery := NewRecoveryManager()
	executor := NewExecutor(cfg.Invoker, recovery)

	o := &Orchestrator{
		id:        "orch-" + uuid.New().String()[:8],
		planner:   NewPlannerWithDecomposer(decomposer),
		executor:  executor,
		recovery:  recovery,
		emitter:   NewEventEmitter(eventBufferSize),
		pauseCtrl: NewPauseController(),
		logger:    cfg.Logger,
		state:     StateIdle,
	}

	executor.SetEmitter(o.emitter.Emit)
	executor.SetDispatchGate(o.pauseCtrl.WaitIfPaused)
	return o
}

// ID returns the orchestrator's unique identifier.
func (o *Orchestrator) ID() string {
	return o.id
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Events returns the channel of progress events for subscribers.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// DroppedEventCount returns the number of events dropped due to a slow
// subscriber.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.emitter.DroppedCount()
}

// CreatePlan builds a plan for the request without executing it.
func (o *Orchestrator) CreatePlan(ctx context.Context, request string) (*models.Plan, error) {
	return o.planner.CreatePlan(ctx, request)
}

// Run processes a request end to end and returns the outcome summary.
// Only a request-level error (decomposition producing zero tasks, or the
// run being aborted before execution) returns a non-nil error; per-task
// failures are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, request string) (*models.OutcomeSummary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.state == StatePlanning || o.state == StateExecuting {
		o.mu.Unlock()
		return nil, fmt.Errorf("orchestrator %s is already running", o.id)
	}
	o.state = StatePlanning
	o.abort = cancel
	o.mu.Unlock()
	o.pauseCtrl.Reset()

	plan, err := o.planner.CreatePlan(runCtx, request)
	if err != nil {
		o.setState(StateFailed)
		return nil, fmt.Errorf("create plan: %w", err)
	}

	return o.runPlan(runCtx, plan)
}

// RunPlan executes an already-built plan. Callers that need the plan
// itself (for recording or display) build it with CreatePlan first.
func (o *Orchestrator) RunPlan(ctx context.Context, plan *models.Plan) (*models.OutcomeSummary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.state == StatePlanning || o.state == StateExecuting {
		o.mu.Unlock()
		return nil, fmt.Errorf("orchestrator %s is already running", o.id)
	}
	o.abort = cancel
	o.mu.Unlock()
	o.pauseCtrl.Reset()

	return o.runPlan(runCtx, plan)
}

func (o *Orchestrator) runPlan(runCtx context.Context, plan *models.Plan) (*models.OutcomeSummary, error) {
	start := time.Now()

	o.emitter.Emit(Event{
		Type:    EventPlanCreated,
		PlanID:  plan.ID,
		Message: fmt.Sprintf("%d tasks, complexity %s, estimate %s", len(plan.Tasks), plan.Complexity, plan.TotalEstimatedTime),
	})
	debugLog("[orchestrator] %s executing plan %s (%d tasks)", o.id, plan.ID, len(plan.Tasks))

	o.setState(StateExecuting)
	results := o.executor.ExecutePlan(runCtx, plan)
	summary := summarize(plan, results, time.Since(start))

	if summary.Succeeded() {
		o.setState(StateCompleted)
	} else {
		o.setState(StateFailed)
	}

	o.emitter.Emit(Event{
		Type:   EventRunDone,
		PlanID: plan.ID,
		Message: fmt.Sprintf("%d completed, %d failed, %d skipped",
			summary.SuccessCount, summary.FailCount, summary.SkippedCount),
	})
	return summary, nil
}

// Pause holds new task dispatch; in-flight tasks run to completion.
func (o *Orchestrator) Pause() {
	o.pauseCtrl.Pause()
}

// Resume releases a pause.
func (o *Orchestrator) Resume() {
	o.pauseCtrl.Resume()
}

// IsPaused returns whether dispatch is currently held.
func (o *Orchestrator) IsPaused() bool {
	return o.pauseCtrl.IsPaused()
}

// Abort cancels all running tasks and prevents any not-yet-started task
// in the active plan from starting. The orchestrator stays usable: a
// subsequent Run or RunPlan clears the stop and dispatches normally.
func (o *Orchestrator) Abort() {
	o.mu.Lock()
	cancel := o.abort
	o.mu.Unlock()

	o.pauseCtrl.Stop()
	if cancel != nil {
		cancel()
	}
	o.executor.CancelAll()
	debugLog("[orchestrator] %s aborted", o.id)
}

// CancelTask cancels one in-flight task by ID.
func (o *Orchestrator) CancelTask(taskID string) {
	o.executor.Cancel(taskID)
}

// Close releases the orchestrator's event channel. Call after the final
// Run has returned and subscribers have drained.
func (o *Orchestrator) Close() {
	o.emitter.Close()
	if o.logger != nil {
		o.logger.Close()
	}
}

// setState transitions the lifecycle state.
func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// summarize folds per-task results into an outcome summary. Successes
// and permanent failures are both enumerated; partial success is a
// distinct, clearly reported outcome.
func summarize(plan *models.Plan, results []*models.TaskResult, elapsed time.Duration) *models.OutcomeSummary {
	summary := &models.OutcomeSummary{
		PlanID:   plan.ID,
		Results:  results,
		Duration: elapsed,
	}
	for _, r := range results {
		task := plan.Task(r.TaskID)
		switch {
		case r.Success:
			summary.SuccessCount++
		case task != nil && task.Status == models.TaskStatusSkipped:
			summary.SkippedCount++
		default:
			summary.FailCount++
		}
	}
	return summary
}
