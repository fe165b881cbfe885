package orchestrator

import (
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/weft/pkg/models"
)

func failingTask(desc, tool, target string) *models.Task {
	task := newTask(desc, 10*time.Second, tool, target)
	task.Status = models.TaskStatusRunning
	return task
}

func TestRecoveryMissingResource(t *testing.T) {
	m := NewRecoveryManager()
	task := failingTask("Write file report.txt", "file_write", "report.txt")

	action := m.ApplyRecovery("open report.txt: no such file or directory", task, nil)

	if action.Type != models.RecoveryDecompose {
		t.Fatalf("action = %s, want decompose", action.Type)
	}
	if len(action.Subtasks) != 2 {
		t.Fatalf("got %d subtasks, want prerequisite plus retry", len(action.Subtasks))
	}

	prereq, retry := action.Subtasks[0], action.Subtasks[1]
	if !strings.Contains(prereq.Description, "report.txt") {
		t.Errorf("prerequisite %q does not name the missing resource", prereq.Description)
	}
	if retry.ID != task.ID+"-retry" {
		t.Errorf("retry ID = %s, want %s-retry", retry.ID, task.ID)
	}
	if !retry.DependsOn(prereq.ID) {
		t.Error("retry does not depend on the prerequisite")
	}
	if retry.RetryCount != task.RetryCount+1 {
		t.Errorf("retry count = %d, want %d", retry.RetryCount, task.RetryCount+1)
	}
}

func TestRecoveryCommandNotFoundIsNotMissingResource(t *testing.T) {
	// "command not found" mentions "not found" but must route to the
	// command strategy, not resource creation.
	m := NewRecoveryManager()
	task := failingTask("npm install", "shell", "npm install")

	action := m.ApplyRecovery("bash: npm: command not found", task, nil)

	if action.Type != models.RecoverySubstitute {
		t.Fatalf("action = %s, want substitute", action.Type)
	}
	if got := action.Substitute.ToolCalls[0].Args["target"]; got != "yarn install" {
		t.Errorf("substitute target = %q, want %q", got, "yarn install")
	}
	if !strings.Contains(action.Substitute.Description, "yarn") {
		t.Errorf("substitute description %q does not name the alternative", action.Substitute.Description)
	}
}

func TestRecoveryCommandAlternatives(t *testing.T) {
	tests := []struct {
		missing string
		alt     string
	}{
		{"npm", "yarn"},
		{"yarn", "npm"},
		{"pip", "pip3"},
		{"python", "python3"},
		{"node", "nodejs"},
		{"vim", "vi"},
	}

	m := NewRecoveryManager()
	for _, tt := range tests {
		t.Run(tt.missing, func(t *testing.T) {
			task := failingTask(tt.missing+" run", "shell", tt.missing+" run")
			action := m.ApplyRecovery(tt.missing+": command not found", task, nil)

			if action.Type != models.RecoverySubstitute {
				t.Fatalf("action = %s, want substitute", action.Type)
			}
			if got := action.Substitute.ToolCalls[0].Args["target"]; got != tt.alt+" run" {
				t.Errorf("target = %q, want %q", got, tt.alt+" run")
			}
		})
	}
}

func TestRecoveryUnknownCommandEscalates(t *testing.T) {
	m := NewRecoveryManager()
	task := failingTask("terraform apply", "shell", "terraform apply")

	action := m.ApplyRecovery("terraform: command not found", task, nil)

	if action.Type != models.RecoveryEscalate {
		t.Fatalf("action = %s, want escalate", action.Type)
	}
	if !strings.Contains(action.Reason, "terraform") {
		t.Errorf("reason %q does not name the command", action.Reason)
	}
}

func TestRecoveryPermissionDenied(t *testing.T) {
	m := NewRecoveryManager()
	task := failingTask("rm /var/log/old.log", "shell", "rm /var/log/old.log")

	action := m.ApplyRecovery("rm: /var/log/old.log: Permission denied", task, nil)

	if action.Type != models.RecoverySubstitute {
		t.Fatalf("action = %s, want substitute", action.Type)
	}
	sub := action.Substitute
	if sub.ID != task.ID+"-elevated" {
		t.Errorf("substitute ID = %s, want %s-elevated", sub.ID, task.ID)
	}
	if got := sub.ToolCalls[0].Args["target"]; got != "sudo rm /var/log/old.log" {
		t.Errorf("target = %q, want sudo prefix", got)
	}
	// The original task's tool calls must stay untouched.
	if got := task.ToolCalls[0].Args["target"]; got != "rm /var/log/old.log" {
		t.Errorf("original task mutated: %q", got)
	}
}

func TestRecoveryTimeoutSplitsOnConjunctions(t *testing.T) {
	m := NewRecoveryManager()
	task := failingTask("Build the project and run the suite then package it", "shell", "")
	task.RetryCount = 1

	action := m.ApplyRecovery("tool shell timed out after 10s", task, nil)

	if action.Type != models.RecoveryDecompose {
		t.Fatalf("action = %s, want decompose", action.Type)
	}
	if len(action.Subtasks) != 3 {
		t.Fatalf("got %d subtasks, want 3", len(action.Subtasks))
	}
	wantDescs := []string{"Build the project", "run the suite", "package it"}
	for i, sub := range action.Subtasks {
		if sub.Description != wantDescs[i] {
			t.Errorf("subtask %d = %q, want %q", i, sub.Description, wantDescs[i])
		}
		if sub.RetryCount != 2 {
			t.Errorf("subtask %d retry count = %d, want 2", i, sub.RetryCount)
		}
		if i > 0 && !sub.DependsOn(action.Subtasks[i-1].ID) {
			t.Errorf("subtask %d does not depend on its predecessor", i)
		}
	}
}

func TestRecoveryTimeoutWithoutConjunctionsRetriesDoubled(t *testing.T) {
	m := NewRecoveryManager()
	task := failingTask("Compile everything", "shell", "")

	action := m.ApplyRecovery("context deadline exceeded", task, nil)

	if action.Type != models.RecoveryRetry {
		t.Fatalf("action = %s, want retry", action.Type)
	}
	if action.Timeout != 20*time.Second {
		t.Errorf("timeout = %s, want doubled 20s", action.Timeout)
	}
}

func TestRecoveryNetworkBackoff(t *testing.T) {
	tests := []struct {
		attempt   int
		wantDelay time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
	}

	m := NewRecoveryManager()
	task := failingTask("Fetch the registry index", "shell", "")
	for _, tt := range tests {
		ectx := &ExecutionContext{TaskID: task.ID, Attempt: tt.attempt}
		action := m.ApplyRecovery("dial tcp: connection refused", task, ectx)

		if action.Type != models.RecoveryRetry {
			t.Fatalf("attempt %d: action = %s, want retry", tt.attempt, action.Type)
		}
		if action.Delay != tt.wantDelay {
			t.Errorf("attempt %d: delay = %s, want %s", tt.attempt, action.Delay, tt.wantDelay)
		}
	}
}

func TestRecoveryNetworkEscalatesAfterMaxAttempts(t *testing.T) {
	m := NewRecoveryManager()
	task := failingTask("Fetch the registry index", "shell", "")
	ectx := &ExecutionContext{TaskID: task.ID, Attempt: 3}

	action := m.ApplyRecovery("read: connection reset by peer", task, ectx)

	if action.Type != models.RecoveryEscalate {
		t.Errorf("action = %s, want escalate after %d attempts", action.Type, networkMaxAttempts)
	}
}

func TestRecoverySyntaxEscalates(t *testing.T) {
	m := NewRecoveryManager()
	task := failingTask("Apply the migration", "shell", "")

	action := m.ApplyRecovery("parse error near line 3", task, nil)

	if action.Type != models.RecoveryEscalate {
		t.Fatalf("action = %s, want escalate", action.Type)
	}
	if !strings.Contains(action.Reason, task.ID) {
		t.Errorf("reason %q does not identify the task", action.Reason)
	}
}

func TestRecoveryDefaultRetryThenEscalate(t *testing.T) {
	m := NewRecoveryManager()
	task := failingTask("Do the thing", "shell", "")
	task.MaxRetries = 2

	action := m.ApplyRecovery("exit status 1", task, nil)
	if action.Type != models.RecoveryRetry {
		t.Fatalf("action = %s, want retry for unrecognized error", action.Type)
	}
	if action.Timeout != 20*time.Second {
		t.Errorf("timeout = %s, want doubled 20s", action.Timeout)
	}

	task.RetryCount = 2
	action = m.ApplyRecovery("exit status 1", task, nil)
	if action.Type != models.RecoveryEscalate {
		t.Errorf("action = %s, want escalate once the retry budget is spent", action.Type)
	}
}

func TestRecoveryCaseInsensitive(t *testing.T) {
	m := NewRecoveryManager()
	task := failingTask("Touch the socket", "shell", "touch /run/weft.sock")

	action := m.ApplyRecovery("touch: PERMISSION DENIED", task, nil)

	if action.Type != models.RecoverySubstitute {
		t.Errorf("action = %s, want substitute regardless of error casing", action.Type)
	}
}

func TestRecoveryPanickingStrategyDegrades(t *testing.T) {
	m := NewRecoveryManager()
	m.strategies = append([]RecoveryStrategy{{
		Name:      "broken",
		Condition: func(string) bool { return true },
		Apply: func(*models.Task, *ExecutionContext) *models.RecoveryAction {
			panic("boom")
		},
	}}, m.strategies...)

	task := failingTask("Do the thing", "shell", "")
	task.MaxRetries = 2

	action := m.ApplyRecovery("exit status 1", task, nil)

	if action == nil || action.Type != models.RecoveryRetry {
		t.Errorf("got %+v, want default retry after strategy panic", action)
	}
}

func TestSplitOnConjunctions(t *testing.T) {
	tests := []struct {
		desc string
		want []string
	}{
		{"build and test", []string{"build", "test"}},
		{"migrate then verify then announce", []string{"migrate", "verify", "announce"}},
		{"standalone task", []string{"standalone task"}},
		{"restart AND check", []string{"restart", "check"}},
		{"command line", []string{"command line"}},
	}

	for _, tt := range tests {
		got := splitOnConjunctions(tt.desc)
		if len(got) != len(tt.want) {
			t.Errorf("split(%q) = %v, want %v", tt.desc, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("split(%q)[%d] = %q, want %q", tt.desc, i, got[i], tt.want[i])
			}
		}
	}
}
