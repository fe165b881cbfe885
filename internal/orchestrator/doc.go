// Package orchestrator is the task orchestration engine: it decomposes a
// free-form request into a dependency graph of atomic tasks, resolves
// execution order (breaking cycles where the heuristics produce them),
// executes tasks concurrently in parallel groups, and recovers from
// individual task failures with pattern-matched strategies.
//
// The pipeline for one request is:
//
//	Analyzer -> Decomposer -> DependencyAnalyzer -> CycleResolver -> Scheduler
//
// composed by the Planner into a models.Plan, which the Orchestrator
// drives through the Executor. Tool invocations and the language model
// are external collaborators consumed through narrow interfaces; the
// engine holds no I/O of its own beyond debug logging.
package orchestrator
