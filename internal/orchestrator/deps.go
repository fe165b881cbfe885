package orchestrator

import (
	"regexp"
	"strings"

	"github.com/ShayCichocki/weft/pkg/models"
)

// filenameToken matches a filename-shaped token (name.ext) in a task
// description. Used to tie write/edit tasks to reads of the same file.
var filenameToken = regexp.MustCompile(`[\w./-]+\.\w{1,5}`)

// DependencyAnalyzer adds dependency edges between decomposed tasks based
// on lexical heuristics. This is a best-effort layer, not semantic
// analysis: it can miss true dependencies and invent false ones on
// ambiguous phrasing. Callers must treat the edges as advisory ordering,
// and the cycle resolver cleans up any contradictions it produces.
type DependencyAnalyzer struct{}

// NewDependencyAnalyzer creates a DependencyAnalyzer.
func NewDependencyAnalyzer() *DependencyAnalyzer {
	return &DependencyAnalyzer{}
}

// IdentifyDependencies mutates each task's dependency set in place.
// For each task at index i it scans all earlier tasks, applying in order:
//  1. a "test" task depends on any earlier "create"/"implement" task
//  2. a "deploy" task depends on any earlier "test" task
//  3. a "write"/"edit" task on file X depends on any earlier "read" of X
//
// O(n²) over the task count, which decomposition bounds at ~10 tasks.
func (a *DependencyAnalyzer) IdentifyDependencies(tasks []*models.Task) {
	for i, task := range tasks {
		desc := strings.ToLower(task.Description)

		for j := 0; j < i; j++ {
			earlier := tasks[j]
			earlierDesc := strings.ToLower(earlier.Description)

			if denotesTest(desc) && denotesCreate(earlierDesc) {
				task.AddDependency(earlier.ID)
			}
			if denotesDeploy(desc) && denotesTest(earlierDesc) {
				task.AddDependency(earlier.ID)
			}
			if denotesWrite(desc) && denotesRead(earlierDesc) {
				if file := extractFilename(desc); file != "" && file == extractFilename(earlierDesc) {
					task.AddDependency(earlier.ID)
				}
			}
		}
	}
}

func denotesTest(desc string) bool {
	return strings.Contains(desc, "test") || strings.Contains(desc, "verify")
}

func denotesCreate(desc string) bool {
	return strings.Contains(desc, "create") || strings.Contains(desc, "implement")
}

func denotesDeploy(desc string) bool {
	return strings.Contains(desc, "deploy") || strings.Contains(desc, "release") || strings.Contains(desc, "publish")
}

func denotesWrite(desc string) bool {
	return strings.Contains(desc, "write") || strings.Contains(desc, "edit")
}

func denotesRead(desc string) bool {
	return strings.Contains(desc, "read")
}

// extractFilename returns the first filename-shaped token in a
// description, or "" if none is present.
func extractFilename(desc string) string {
	return filenameToken.FindString(desc)
}
