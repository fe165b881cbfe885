package orchestrator

import (
	"github.com/ShayCichocki/weft/pkg/models"
)

// maxResolvePasses bounds the resolve loop. Each pass removes at least
// one edge per detected cycle, so the loop terminates well before this;
// the bound guards against a bookkeeping bug turning into a hang.
const maxResolvePasses = 100

// CycleResolver detects dependency cycles with a depth-first search and
// removes one edge per cycle until the task graph is acyclic. Cycles are
// an expected artifact of the lexical dependency heuristics, so they are
// resolved silently (logged, never surfaced as errors).
type CycleResolver struct{}

// NewCycleResolver creates a CycleResolver.
func NewCycleResolver() *CycleResolver {
	return &CycleResolver{}
}

// Resolve removes dependency edges until the graph is acyclic and
// returns the same task slice. Self-loops are stripped first. For each
// detected cycle the break point is the first edge whose source task has
// at least one other dependency, so removing it does not isolate the
// task; if no such edge exists, the first edge in the cycle goes.
// Disjoint cycles are resolved independently within one pass.
func (r *CycleResolver) Resolve(tasks []*models.Task) []*models.Task {
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	for _, t := range tasks {
		if t.DependsOn(t.ID) {
			t.RemoveDependency(t.ID)
			debugLog("[cycles] removed self-loop on task %s", t.ID)
		}
	}

	for pass := 0; pass < maxResolvePasses; pass++ {
		cycles := findCycles(tasks)
		if len(cycles) == 0 {
			return tasks
		}
		for _, cycle := range cycles {
			r.breakCycle(cycle, byID)
		}
	}

	debugLog("[cycles] WARNING: resolve pass limit reached, graph may still contain cycles")
	return tasks
}

// breakCycle removes one dependency edge from the given cycle. The cycle
// is a list of task IDs where each task depends on the next, and the last
// depends on the first.
func (r *CycleResolver) breakCycle(cycle []string, byID map[string]*models.Task) {
	n := len(cycle)
	if n == 0 {
		return
	}

	// Prefer an edge whose source still has another dependency left.
	for i := 0; i < n; i++ {
		from := byID[cycle[i]]
		to := cycle[(i+1)%n]
		if from == nil || !from.DependsOn(to) {
			continue
		}
		if len(from.Dependencies) > 1 {
			from.RemoveDependency(to)
			debugLog("[cycles] broke cycle by removing edge %s -> %s", from.ID, to)
			return
		}
	}

	// Fallback: remove the first edge in the cycle.
	if from := byID[cycle[0]]; from != nil && n > 1 {
		to := cycle[1]
		from.RemoveDependency(to)
		debugLog("[cycles] broke cycle by removing first edge %s -> %s", from.ID, to)
	}
}

// findCycles runs a DFS from every unvisited task, maintaining the
// recursion stack and the current path. Revisiting a task already on the
// stack records the path slice from its first occurrence to the current
// task as a cycle.
func findCycles(tasks []*models.Task) [][]string {
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		task := byID[id]
		if task != nil {
			for _, dep := range task.Dependencies {
				if _, known := byID[dep]; !known {
					continue
				}
				if onStack[dep] {
					// Slice the current path from the dependency's first
					// occurrence through the current task.
					for i, p := range path {
						if p == dep {
							cycle := make([]string, len(path)-i)
							copy(cycle, path[i:])
							cycles = append(cycles, cycle)
							break
						}
					}
					continue
				}
				if !visited[dep] {
					visit(dep)
				}
			}
		}

		onStack[id] = false
		path = path[:len(path)-1]
	}

	for _, t := range tasks {
		if !visited[t.ID] {
			visit(t.ID)
		}
	}

	return cycles
}
