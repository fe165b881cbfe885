package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ShayCichocki/weft/pkg/models"
)

// Backoff parameters for transient network failures.
const (
	networkBackoffBase = 1 * time.Second
	networkBackoffMax  = 10 * time.Second
	networkMaxAttempts = 3
)

// ExecutionContext carries the state of one task attempt: which attempt
// this is, when it started, its timeout, and the outputs of completed
// dependencies so a task can compose on its dependencies' results.
type ExecutionContext struct {
	// TaskID is the task being attempted.
	TaskID string
	// Attempt is the attempt number, 1-indexed.
	Attempt int
	// StartTime is when the attempt started.
	StartTime time.Time
	// Timeout is the attempt's timeout budget.
	Timeout time.Duration
	// PreviousResults maps completed dependency task IDs to their output.
	PreviousResults map[string]string
}

// RecoveryStrategy maps an error signature to a corrective action.
type RecoveryStrategy struct {
	// Name identifies the strategy in logs and events.
	Name string
	// Description explains what the strategy does.
	Description string
	// Condition reports whether this strategy handles the given error text.
	Condition func(errText string) bool
	// Apply produces the recovery action for a matched failure.
	Apply func(task *models.Task, ectx *ExecutionContext) *models.RecoveryAction
}

// RecoveryManager maps task failures to recovery actions. Strategies are
// evaluated in registration order; the first whose condition matches the
// error text wins. A strategy that panics degrades to the default
// retry-then-escalate policy instead of crashing the orchestrator.
type RecoveryManager struct {
	strategies []RecoveryStrategy
}

// NewRecoveryManager creates a RecoveryManager with the built-in
// strategy set registered in its documented order.
func NewRecoveryManager() *RecoveryManager {
	m := &RecoveryManager{}
	m.Register(missingResourceStrategy())
	m.Register(permissionDeniedStrategy())
	m.Register(commandNotFoundStrategy())
	m.Register(timeoutStrategy())
	m.Register(networkStrategy())
	m.Register(syntaxStrategy())
	return m
}

// Register appends a strategy to the evaluation order.
func (m *RecoveryManager) Register(s RecoveryStrategy) {
	m.strategies = append(m.strategies, s)
}

// FindStrategy returns the first registered strategy whose condition
// matches the error text, or nil if none does.
func (m *RecoveryManager) FindStrategy(errText string) *RecoveryStrategy {
	lower := strings.ToLower(errText)
	for i := range m.strategies {
		if m.strategies[i].Condition(lower) {
			return &m.strategies[i]
		}
	}
	return nil
}

// ApplyRecovery maps a failure to a recovery action. If no strategy
// matches, the default is a retry with the timeout doubled, which still
// respects the task's retry budget: once MaxRetries is exhausted the
// action becomes an escalation.
func (m *RecoveryManager) ApplyRecovery(errText string, task *models.Task, ectx *ExecutionContext) *models.RecoveryAction {
	if s := m.FindStrategy(errText); s != nil {
		if action := m.applyStrategy(s, task, ectx); action != nil {
			debugLog("[recovery] strategy %q -> %s for task %s", s.Name, action.Type, task.ID)
			return action
		}
	}
	return m.defaultAction(task)
}

// applyStrategy runs a strategy, converting a panic inside it into a nil
// action so the caller degrades to the default policy.
func (m *RecoveryManager) applyStrategy(s *RecoveryStrategy, task *models.Task, ectx *ExecutionContext) (action *models.RecoveryAction) {
	defer func() {
		if r := recover(); r != nil {
			debugLog("[recovery] strategy %q panicked: %v, degrading to default policy", s.Name, r)
			action = nil
		}
	}()
	return s.Apply(task, ectx)
}

// defaultAction is the fallback when no strategy matches: retry with the
// timeout doubled until the retry budget is spent, then escalate.
func (m *RecoveryManager) defaultAction(task *models.Task) *models.RecoveryAction {
	if task.RetryCount >= task.MaxRetries {
		return &models.RecoveryAction{
			Type:   models.RecoveryEscalate,
			Reason: fmt.Sprintf("retry budget exhausted (%d/%d)", task.RetryCount, task.MaxRetries),
		}
	}
	return &models.RecoveryAction{
		Type:    models.RecoveryRetry,
		Timeout: task.Timeout * 2,
	}
}

// missingResourceStrategy handles failures caused by a missing file or
// resource: it creates a prerequisite task to produce the resource and
// re-runs the original afterwards, rather than retrying blind.
func missingResourceStrategy() RecoveryStrategy {
	return RecoveryStrategy{
		Name:        "missing_resource",
		Description: "create the missing resource, then retry the original task",
		Condition: func(errText string) bool {
			if strings.Contains(errText, "command not found") {
				return false
			}
			return strings.Contains(errText, "no such file") ||
				strings.Contains(errText, "file not found") ||
				strings.Contains(errText, "does not exist")
		},
		Apply: func(task *models.Task, _ *ExecutionContext) *models.RecoveryAction {
			resource := missingResourceName(task)
			prereq := newTask("Create missing resource "+resource, defaultTaskTimeout, "file_write", resource)

			retry := *task
			retry.ID = task.ID + "-retry"
			retry.Status = models.TaskStatusPending
			retry.Dependencies = []string{prereq.ID}
			retry.RetryCount = task.RetryCount + 1

			return &models.RecoveryAction{
				Type:     models.RecoveryDecompose,
				Subtasks: []*models.Task{prereq, &retry},
			}
		},
	}
}

// permissionDeniedStrategy substitutes a task using an elevated
// invocation of the same tool calls.
func permissionDeniedStrategy() RecoveryStrategy {
	return RecoveryStrategy{
		Name:        "permission_denied",
		Description: "substitute an elevated invocation",
		Condition: func(errText string) bool {
			return strings.Contains(errText, "permission denied") ||
				strings.Contains(errText, "operation not permitted")
		},
		Apply: func(task *models.Task, _ *ExecutionContext) *models.RecoveryAction {
			sub := *task
			sub.ID = task.ID + "-elevated"
			sub.Description = "Retry with elevated permissions: " + task.Description
			sub.Status = models.TaskStatusPending
			sub.RetryCount = task.RetryCount + 1
			sub.ToolCalls = elevateToolCalls(task.ToolCalls)

			return &models.RecoveryAction{
				Type:       models.RecoverySubstitute,
				Substitute: &sub,
			}
		},
	}
}

// commandAlternatives maps a missing command to a substitute invocation.
var commandAlternatives = map[string]string{
	"npm":    "yarn",
	"yarn":   "npm",
	"pip":    "pip3",
	"python": "python3",
	"node":   "nodejs",
	"vim":    "vi",
}

// commandNotFoundStrategy substitutes a known alternative command; with
// no known alternative, it escalates.
func commandNotFoundStrategy() RecoveryStrategy {
	return RecoveryStrategy{
		Name:        "command_not_found",
		Description: "substitute an alternative command or escalate",
		Condition: func(errText string) bool {
			return strings.Contains(errText, "command not found") ||
				strings.Contains(errText, "executable file not found")
		},
		Apply: func(task *models.Task, _ *ExecutionContext) *models.RecoveryAction {
			missing := missingCommandName(task)
			alt, ok := commandAlternatives[missing]
			if !ok {
				return &models.RecoveryAction{
					Type:   models.RecoveryEscalate,
					Reason: fmt.Sprintf("command %q not found and no alternative known", missing),
				}
			}

			sub := *task
			sub.ID = task.ID + "-alt"
			sub.Description = strings.Replace(task.Description, missing, alt, 1)
			sub.Status = models.TaskStatusPending
			sub.RetryCount = task.RetryCount + 1
			sub.ToolCalls = substituteCommand(task.ToolCalls, missing, alt)

			return &models.RecoveryAction{
				Type:       models.RecoverySubstitute,
				Substitute: &sub,
			}
		},
	}
}

// timeoutStrategy decomposes a timed-out task into smaller subtasks
// split on conjunction words. A description with nothing to split on
// retries with a doubled timeout instead.
func timeoutStrategy() RecoveryStrategy {
	return RecoveryStrategy{
		Name:        "timeout",
		Description: "split the task on conjunctions into smaller subtasks",
		Condition: func(errText string) bool {
			return strings.Contains(errText, "timeout") ||
				strings.Contains(errText, "timed out") ||
				strings.Contains(errText, "deadline exceeded")
		},
		Apply: func(task *models.Task, _ *ExecutionContext) *models.RecoveryAction {
			parts := splitOnConjunctions(task.Description)
			if len(parts) < 2 {
				return &models.RecoveryAction{
					Type:    models.RecoveryRetry,
					Timeout: task.Timeout * 2,
				}
			}

			subtasks := make([]*models.Task, 0, len(parts))
			var prev *models.Task
			for _, part := range parts {
				sub := newTask(part, task.Timeout, taskTool(task), part)
				sub.RetryCount = task.RetryCount + 1
				sub.MaxRetries = task.MaxRetries
				if prev != nil {
					// Conjunction order is execution order.
					sub.AddDependency(prev.ID)
				}
				subtasks = append(subtasks, sub)
				prev = sub
			}

			return &models.RecoveryAction{
				Type:     models.RecoveryDecompose,
				Subtasks: subtasks,
			}
		},
	}
}

// networkStrategy retries transient network failures with exponential
// backoff: base 1s, doubling per attempt, capped at 10s and 3 attempts.
func networkStrategy() RecoveryStrategy {
	return RecoveryStrategy{
		Name:        "network",
		Description: "retry with exponential backoff",
		Condition: func(errText string) bool {
			return strings.Contains(errText, "connection refused") ||
				strings.Contains(errText, "connection reset") ||
				strings.Contains(errText, "network is unreachable") ||
				strings.Contains(errText, "temporary failure in name resolution")
		},
		Apply: func(task *models.Task, ectx *ExecutionContext) *models.RecoveryAction {
			attempt := 1
			if ectx != nil {
				attempt = ectx.Attempt
			}
			if attempt >= networkMaxAttempts {
				return &models.RecoveryAction{
					Type:   models.RecoveryEscalate,
					Reason: fmt.Sprintf("network failure persisted across %d attempts", attempt),
				}
			}

			delay := networkBackoffBase << (attempt - 1)
			if delay > networkBackoffMax {
				delay = networkBackoffMax
			}
			return &models.RecoveryAction{
				Type:    models.RecoveryRetry,
				Timeout: task.Timeout,
				Delay:   delay,
			}
		},
	}
}

// syntaxStrategy escalates malformed-input failures with a structured
// diagnostic; there is no automatic fix for these.
func syntaxStrategy() RecoveryStrategy {
	return RecoveryStrategy{
		Name:        "syntax",
		Description: "escalate with a diagnostic",
		Condition: func(errText string) bool {
			return strings.Contains(errText, "syntax error") ||
				strings.Contains(errText, "parse error") ||
				strings.Contains(errText, "invalid syntax") ||
				strings.Contains(errText, "malformed")
		},
		Apply: func(task *models.Task, ectx *ExecutionContext) *models.RecoveryAction {
			attempt := 1
			if ectx != nil {
				attempt = ectx.Attempt
			}
			return &models.RecoveryAction{
				Type: models.RecoveryEscalate,
				Reason: fmt.Sprintf("malformed input in task %s (attempt %d): %s",
					task.ID, attempt, task.Description),
			}
		},
	}
}

// conjunctionSplit matches the conjunction words a timed-out task is
// split on.
var conjunctionSplit = regexp.MustCompile(`(?i)\s+(?:and|then|after|next)\s+`)

// splitOnConjunctions splits a description on conjunction words,
// dropping empty fragments.
func splitOnConjunctions(desc string) []string {
	parts := conjunctionSplit.Split(desc, -1)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// missingResourceName guesses the missing resource from the task's tool
// call target or a filename token in its description.
func missingResourceName(task *models.Task) string {
	for _, tc := range task.ToolCalls {
		if target := tc.Args["target"]; target != "" {
			return target
		}
	}
	if file := extractFilename(strings.ToLower(task.Description)); file != "" {
		return file
	}
	return task.Description
}

// missingCommandName guesses the missing command: the first word of the
// shell tool's target, falling back to the first word of the description.
func missingCommandName(task *models.Task) string {
	for _, tc := range task.ToolCalls {
		if tc.Tool == "shell" {
			if fields := strings.Fields(tc.Args["target"]); len(fields) > 0 {
				return fields[0]
			}
		}
	}
	if fields := strings.Fields(strings.ToLower(task.Description)); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// elevateToolCalls prefixes shell invocations with sudo.
func elevateToolCalls(calls []models.ToolCall) []models.ToolCall {
	out := make([]models.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = tc
		if tc.Tool == "shell" {
			args := make(map[string]string, len(tc.Args))
			for k, v := range tc.Args {
				args[k] = v
			}
			if target := args["target"]; target != "" && !strings.HasPrefix(target, "sudo ") {
				args["target"] = "sudo " + target
			}
			out[i].Args = args
		}
	}
	return out
}

// substituteCommand replaces the leading command word in shell tool calls.
func substituteCommand(calls []models.ToolCall, from, to string) []models.ToolCall {
	out := make([]models.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = tc
		if tc.Tool == "shell" {
			args := make(map[string]string, len(tc.Args))
			for k, v := range tc.Args {
				args[k] = v
			}
			if target := args["target"]; strings.HasPrefix(target, from) {
				args["target"] = to + strings.TrimPrefix(target, from)
			}
			out[i].Args = args
		}
	}
	return out
}

// taskTool returns the first tool a task intends to call, defaulting to shell.
func taskTool(task *models.Task) string {
	if len(task.ToolCalls) > 0 {
		return task.ToolCalls[0].Tool
	}
	return "shell"
}
