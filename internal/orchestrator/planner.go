package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/weft/pkg/models"
)

// Planner composes the planning pipeline into a single call:
// complexity analysis, decomposition, dependency inference, cycle
// resolution, and scheduling.
type Planner struct {
	analyzer   *ComplexityAnalyzer
	decomposer TaskDecomposer
	deps       *DependencyAnalyzer
	cycles     *CycleResolver
	scheduler  *Scheduler
}

// NewPlanner creates a Planner using the heuristic decomposer.
func NewPlanner() *Planner {
	return NewPlannerWithDecomposer(NewDecomposer())
}

// NewPlannerWithDecomposer creates a Planner with a custom decomposer,
// such as the model-backed one. Scheduling, recovery, and concurrency
// are untouched by the swap.
func NewPlannerWithDecomposer(d TaskDecomposer) *Planner {
	return &Planner{
		analyzer:   NewComplexityAnalyzer(),
		decomposer: d,
		deps:       NewDependencyAnalyzer(),
		cycles:     NewCycleResolver(),
		scheduler:  NewScheduler(),
	}
}

// CreatePlan turns a request into an ordered, acyclic plan. A request
// that decomposes into zero tasks is a DecompositionError; everything
// downstream of decomposition cannot fail (cycles are auto-resolved).
func (p *Planner) CreatePlan(ctx context.Context, request string) (*models.Plan, error) {
	complexity := p.analyzer.Analyze(request)
	debugLog("[planner] request classified as %s (score %d)", complexity, p.analyzer.Score(request))

	tasks, err := p.decomposer.Decompose(ctx, request, complexity)
	if err != nil {
		return nil, fmt.Errorf("decompose request: %w", err)
	}
	if len(tasks) == 0 {
		return nil, &DecompositionError{Request: request, Reason: "request produced no tasks"}
	}

	p.deps.IdentifyDependencies(tasks)
	tasks = p.cycles.Resolve(tasks)
	ordered := p.scheduler.OptimizeOrder(tasks)

	plan := &models.Plan{
		ID:                 "plan-" + uuid.New().String()[:8],
		OriginalRequest:    request,
		Tasks:              ordered,
		Complexity:         complexity,
		Parallelizable:     p.scheduler.CanParallelize(ordered),
		TotalEstimatedTime: p.scheduler.EstimateTotalTime(ordered),
		CreatedAt:          time.Now(),
	}

	debugLog("[planner] plan %s: %d tasks, parallelizable=%v, estimate=%s",
		plan.ID, len(plan.Tasks), plan.Parallelizable, plan.TotalEstimatedTime)
	return plan, nil
}

// Scheduler exposes the planner's scheduler so the orchestrator can
// compute parallel groups from a finished plan.
func (p *Planner) Scheduler() *Scheduler {
	return p.scheduler
}
