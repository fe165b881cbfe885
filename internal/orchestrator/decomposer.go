package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/weft/pkg/models"
)

// defaultMaxRetries is the retry budget given to decomposed tasks.
const defaultMaxRetries = 2

// defaultTaskTimeout is the timeout for tasks whose verb has no rule.
const defaultTaskTimeout = 10 * time.Second

// maxFallbackDescription bounds the description length of the fallback
// single task when no rule matches.
const maxFallbackDescription = 120

// TaskDecomposer turns a request into an initial unordered set of tasks.
// The heuristic Decomposer is the default implementation; llm.Decomposer
// provides a model-backed one behind the same interface.
type TaskDecomposer interface {
	Decompose(ctx context.Context, request string, complexity models.Complexity) ([]*models.Task, error)
}

// Decomposer breaks a request into tasks by matching an ordered rule
// table against the request text. Rule order is part of the contract:
// the first rule to match a span wins, and later rules never reuse a
// claimed span, so decomposition is reproducible for a given rule set.
type Decomposer struct {
	rules []Rule
}

// NewDecomposer creates a Decomposer with the built-in rule table.
func NewDecomposer() *Decomposer {
	return &Decomposer{rules: defaultRules()}
}

// NewDecomposerWithRules creates a Decomposer with a custom rule table,
// typically the built-in table extended by project overrides.
func NewDecomposerWithRules(rules []Rule) *Decomposer {
	return &Decomposer{rules: rules}
}

// Decompose turns a request into tasks according to its complexity.
// Simple requests yield exactly one task wrapping the whole request.
// Moderate and complex requests run the rule table; if nothing matches,
// the whole request becomes a single bounded-description task.
func (d *Decomposer) Decompose(ctx context.Context, request string, complexity models.Complexity) ([]*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	request = strings.TrimSpace(request)
	if request == "" {
		return nil, &DecompositionError{Request: request, Reason: "empty request"}
	}

	if complexity == models.ComplexitySimple {
		return []*models.Task{newTask(request, defaultTaskTimeout, "shell", request)}, nil
	}

	tasks := d.applyRules(request)
	if len(tasks) == 0 {
		desc := request
		if len(desc) > maxFallbackDescription {
			desc = desc[:maxFallbackDescription]
		}
		tasks = []*models.Task{newTask(desc, defaultTaskTimeout, "shell", request)}
	}

	return tasks, nil
}

// applyRules runs the rule table over the request in order. Each match
// claims its span; overlapping later matches are discarded, as are tasks
// whose templated description duplicates an earlier one.
func (d *Decomposer) applyRules(request string) []*models.Task {
	type span struct{ start, end int }
	var claimed []span

	overlaps := func(start, end int) bool {
		for _, s := range claimed {
			if start < s.end && end > s.start {
				return true
			}
		}
		return false
	}

	type match struct {
		start int
		task  *models.Task
	}
	var matches []match
	seen := make(map[string]bool)

	for _, rule := range d.rules {
		locs := rule.Pattern.FindAllStringSubmatchIndex(request, -1)
		for _, loc := range locs {
			start, end := loc[0], loc[1]
			if overlaps(start, end) {
				continue
			}

			target := ""
			if len(loc) >= 4 && loc[2] >= 0 {
				target = strings.TrimSpace(request[loc[2]:loc[3]])
			}

			desc := rule.Template
			if strings.Contains(rule.Template, "%s") {
				desc = fmt.Sprintf(rule.Template, target)
			}
			desc = strings.TrimSpace(desc)
			if seen[desc] {
				// Duplicate description: suppress, but still claim the
				// span so later rules cannot rematch it.
				claimed = append(claimed, span{start, end})
				continue
			}
			seen[desc] = true
			claimed = append(claimed, span{start, end})

			task := newTask(desc, rule.Timeout, rule.Tool, target)
			matches = append(matches, match{start: start, task: task})
		}
	}

	// Present tasks in the order their spans appear in the request, not
	// in rule order, so the plan reads like the request.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	tasks := make([]*models.Task, 0, len(matches))
	for _, m := range matches {
		tasks = append(tasks, m.task)
	}
	return tasks
}

// newTask builds a pending task with a fresh ID and default retry budget.
func newTask(description string, timeout time.Duration, tool, target string) *models.Task {
	args := map[string]string{}
	if target != "" {
		args["target"] = target
	}
	return &models.Task{
		ID:          "task-" + uuid.New().String()[:8],
		Description: description,
		Status:      models.TaskStatusPending,
		MaxRetries:  defaultMaxRetries,
		Timeout:     timeout,
		ToolCalls:   []models.ToolCall{{Tool: tool, Args: args}},
		CreatedAt:   time.Now(),
	}
}

// Verify Decomposer implements TaskDecomposer at compile time.
var _ TaskDecomposer = (*Decomposer)(nil)
