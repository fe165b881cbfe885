package orchestrator

import (
	"time"

	"github.com/ShayCichocki/weft/pkg/models"
)

// Scheduler orders an acyclic task set for execution: topological sort,
// parallel-group computation, and wall-clock estimation under per-group
// parallelism. It reads tasks but never mutates them.
type Scheduler struct{}

// NewScheduler creates a Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// OptimizeOrder returns the tasks in a valid topological order: every
// task appears after all of its dependencies. Uses DFS post-order,
// visiting dependencies before the task itself. A task revisited while
// mid-visit indicates a residual cycle, which should not occur after the
// cycle resolver has run; it is logged and the edge skipped rather than
// crashing.
func (s *Scheduler) OptimizeOrder(tasks []*models.Task) []*models.Task {
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	// Color states: 0 unvisited, 1 mid-visit, 2 done.
	colors := make(map[string]int, len(tasks))
	ordered := make([]*models.Task, 0, len(tasks))

	var visit func(id string)
	visit = func(id string) {
		colors[id] = 1

		task := byID[id]
		for _, dep := range task.Dependencies {
			depTask, known := byID[dep]
			if !known {
				continue
			}
			switch colors[dep] {
			case 1:
				debugLog("[scheduler] residual cycle at edge %s -> %s, skipping", id, dep)
			case 0:
				visit(depTask.ID)
			}
		}

		colors[id] = 2
		ordered = append(ordered, task)
	}

	for _, t := range tasks {
		if colors[t.ID] == 0 {
			visit(t.ID)
		}
	}

	return ordered
}

// EstimateTotalTime models dependency chains as sequential and
// independent branches as parallel: a task's start time is the max over
// its dependencies of their start plus their timeout, and the total is
// the max over all tasks of start plus timeout.
func (s *Scheduler) EstimateTotalTime(tasks []*models.Task) time.Duration {
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	starts := make(map[string]time.Duration, len(tasks))

	var startOf func(id string, depth int) time.Duration
	startOf = func(id string, depth int) time.Duration {
		if start, ok := starts[id]; ok {
			return start
		}
		// Depth bound guards against residual cycles in the estimate.
		if depth > len(tasks) {
			return 0
		}

		var start time.Duration
		task := byID[id]
		for _, dep := range task.Dependencies {
			depTask, known := byID[dep]
			if !known {
				continue
			}
			if finish := startOf(dep, depth+1) + depTask.Timeout; finish > start {
				start = finish
			}
		}
		starts[id] = start
		return start
	}

	var total time.Duration
	for _, t := range tasks {
		if finish := startOf(t.ID, 0) + t.Timeout; finish > total {
			total = finish
		}
	}
	return total
}

// ParallelGroups partitions the tasks into groups executable
// concurrently: each round extracts every not-yet-scheduled task whose
// dependencies are all already scheduled. The concatenation of groups in
// order is a valid topological order. If a round makes no progress the
// graph still has a cycle; the remaining tasks are dropped with a
// warning rather than looping forever.
func (s *Scheduler) ParallelGroups(tasks []*models.Task) [][]*models.Task {
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	scheduled := make(map[string]bool, len(tasks))
	var groups [][]*models.Task

	for len(scheduled) < len(tasks) {
		var group []*models.Task
		for _, t := range tasks {
			if scheduled[t.ID] {
				continue
			}
			ready := true
			for _, dep := range t.Dependencies {
				if _, known := byID[dep]; known && !scheduled[dep] {
					ready = false
					break
				}
			}
			if ready {
				group = append(group, t)
			}
		}

		if len(group) == 0 {
			debugLog("[scheduler] WARNING: no schedulable tasks remain (%d unscheduled), residual cycle suspected",
				len(tasks)-len(scheduled))
			break
		}

		for _, t := range group {
			scheduled[t.ID] = true
		}
		groups = append(groups, group)
	}

	return groups
}

// CanParallelize returns true iff more than one task has no dependencies,
// meaning at least two tasks can start concurrently.
func (s *Scheduler) CanParallelize(tasks []*models.Task) bool {
	roots := 0
	for _, t := range tasks {
		if len(t.Dependencies) == 0 {
			roots++
			if roots > 1 {
				return true
			}
		}
	}
	return false
}
