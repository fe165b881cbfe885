package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/weft/pkg/models"
)

// Completer is the slice of Client the decomposer needs. Tests supply
// a canned implementation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const decomposeSystemPrompt = `You are a task planner. Break the user's request into small, independently executable tasks.

Return ONLY a JSON array (no other text) where each element has:
- "description": what the task does, one sentence
- "tool": one of "shell", "file_read", "file_write", "search"
- "target": the command, file path, or search term the tool operates on
- "depends_on": array of zero-based indexes of tasks that must finish first
- "timeout_seconds": integer estimate

Keep the list short: only tasks the request actually needs.`

// Decomposer asks a Claude model to break requests into tasks. It
// satisfies the planner's decomposition contract, so a plan built from
// model output flows through dependency analysis and scheduling the
// same way rule-based plans do.
type Decomposer struct {
	completer Completer
}

// NewDecomposer creates a model-backed decomposer.
func NewDecomposer(completer Completer) *Decomposer {
	return &Decomposer{completer: completer}
}

// decomposedTask is the JSON shape the model returns per task.
type decomposedTask struct {
	Description    string `json:"description"`
	Tool           string `json:"tool"`
	Target         string `json:"target"`
	DependsOn      []int  `json:"depends_on"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Decompose sends the request to the model and converts the returned
// JSON array into tasks. Complexity steers the prompt: simple requests
// ask for a single task.
func (d *Decomposer) Decompose(ctx context.Context, request string, complexity models.Complexity) ([]*models.Task, error) {
	userPrompt := fmt.Sprintf("Request: %s", request)
	if complexity == models.ComplexitySimple {
		userPrompt += "\n\nThis is a simple request: return a single task."
	}

	response, err := d.completer.Complete(ctx, decomposeSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	decomposed, err := parseTaskArray(response)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	return buildTasks(decomposed)
}

// parseTaskArray extracts the first JSON array from a model response.
// Models sometimes wrap JSON in prose or code fences.
func parseTaskArray(response string) ([]decomposedTask, error) {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no valid JSON array found in response: %s", truncate(response, 200))
	}

	var decomposed []decomposedTask
	jsonStr := response[jsonStart : jsonEnd+1]
	if err := json.Unmarshal([]byte(jsonStr), &decomposed); err != nil {
		return nil, fmt.Errorf("parse JSON: %w (response: %s)", err, truncate(jsonStr, 200))
	}

	if len(decomposed) == 0 {
		return nil, fmt.Errorf("empty task list returned")
	}

	return decomposed, nil
}

// buildTasks converts parsed entries into tasks, mapping index-based
// depends_on references to generated task IDs.
func buildTasks(decomposed []decomposedTask) ([]*models.Task, error) {
	ids := make([]string, len(decomposed))
	for i := range decomposed {
		ids[i] = "task-" + uuid.New().String()[:8]
	}

	tasks := make([]*models.Task, 0, len(decomposed))
	for i, dt := range decomposed {
		if strings.TrimSpace(dt.Description) == "" {
			return nil, fmt.Errorf("task %d has no description", i)
		}

		timeout := time.Duration(dt.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}

		task := &models.Task{
			ID:          ids[i],
			Description: dt.Description,
			Status:      models.TaskStatusPending,
			MaxRetries:  2,
			Timeout:     timeout,
			CreatedAt:   time.Now(),
		}

		tool := dt.Tool
		if tool == "" {
			tool = "shell"
		}
		target := dt.Target
		if target == "" {
			target = dt.Description
		}
		task.ToolCalls = []models.ToolCall{
			{Tool: tool, Args: map[string]string{"target": target}},
		}

		for _, dep := range dt.DependsOn {
			if dep < 0 || dep >= len(decomposed) {
				return nil, fmt.Errorf("task %d depends on out-of-range index %d", i, dep)
			}
			if dep == i {
				return nil, fmt.Errorf("task %d depends on itself", i)
			}
			task.AddDependency(ids[dep])
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
