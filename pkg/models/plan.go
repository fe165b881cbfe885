package models

import "time"

// Complexity classifies how involved a request is.
type Complexity string

const (
	// ComplexitySimple indicates a request answerable with a single task.
	ComplexitySimple Complexity = "simple"
	// ComplexityModerate indicates a request needing a few coordinated tasks.
	ComplexityModerate Complexity = "moderate"
	// ComplexityComplex indicates a multi-step request with ordering concerns.
	ComplexityComplex Complexity = "complex"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	default:
		return false
	}
}

// Plan is the decomposition result for one request: an ordered, acyclic
// task graph. After scheduling, Tasks is a valid topological order and
// every dependency ID resolves to another task in the same plan.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id" yaml:"id"`
	// OriginalRequest is the request string the plan was built from.
	OriginalRequest string `json:"original_request" yaml:"original_request"`
	// Tasks is the ordered task sequence.
	Tasks []*Task `json:"tasks" yaml:"tasks"`
	// Complexity is the classified complexity of the request.
	Complexity Complexity `json:"complexity" yaml:"complexity"`
	// Parallelizable indicates whether any two tasks can run concurrently.
	Parallelizable bool `json:"parallelizable" yaml:"parallelizable"`
	// TotalEstimatedTime is the estimated wall-clock time assuming
	// per-group parallelism.
	TotalEstimatedTime time.Duration `json:"total_estimated_time" yaml:"total_estimated_time"`
	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Task returns the task with the given ID, or nil if not present.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// TaskResult is the outcome of one task's execution.
type TaskResult struct {
	// TaskID is the ID of the task this result belongs to.
	TaskID string `json:"task_id"`
	// Success indicates whether the task completed.
	Success bool `json:"success"`
	// Output is the aggregated tool output for the task.
	Output string `json:"output,omitempty"`
	// Error is the failure reason, if any.
	Error string `json:"error,omitempty"`
	// Attempts is how many attempts the task took, including the first.
	Attempts int `json:"attempts"`
	// Duration is the task's wall-clock execution time.
	Duration time.Duration `json:"duration"`
}

// OutcomeSummary is the aggregate result of running a plan. Partial
// success is a valid outcome: both successes and permanent failures are
// enumerated with their reasons.
type OutcomeSummary struct {
	// PlanID is the ID of the executed plan.
	PlanID string `json:"plan_id"`
	// SuccessCount is the number of tasks that completed.
	SuccessCount int `json:"success_count"`
	// FailCount is the number of tasks that failed permanently.
	FailCount int `json:"fail_count"`
	// SkippedCount is the number of tasks skipped due to failed dependencies.
	SkippedCount int `json:"skipped_count"`
	// Results holds the per-task results in plan order.
	Results []*TaskResult `json:"results"`
	// Duration is the total wall-clock time for the run.
	Duration time.Duration `json:"duration"`
}

// Succeeded returns true if every task in the run completed.
func (s *OutcomeSummary) Succeeded() bool {
	return s.FailCount == 0 && s.SkippedCount == 0
}
