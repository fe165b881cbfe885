package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/weft/pkg/models"
)

func TestDecomposeSimpleSingleTask(t *testing.T) {
	d := NewDecomposer()

	tasks, err := d.Decompose(context.Background(), "say hello", models.ComplexitySimple)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].Description != "say hello" {
		t.Errorf("description = %q, want the full request", tasks[0].Description)
	}
	if tasks[0].Status != models.TaskStatusPending {
		t.Errorf("status = %s, want pending", tasks[0].Status)
	}
	if tasks[0].MaxRetries != defaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", tasks[0].MaxRetries, defaultMaxRetries)
	}
}

func TestDecomposeRuleMatching(t *testing.T) {
	d := NewDecomposer()

	tests := []struct {
		name      string
		request   string
		wantDescs []string
		wantTools []string
	}{
		{
			name:      "read then write",
			request:   "read config.yaml then write output.txt",
			wantDescs: []string{"Read file config.yaml", "Write file output.txt"},
			wantTools: []string{"file_read", "file_write"},
		},
		{
			name:      "install and test",
			request:   "install the dependencies, test the build",
			wantDescs: []string{"Install the dependencies", "Test the build"},
			wantTools: []string{"shell", "shell"},
		},
		{
			name:      "search claim beats create",
			request:   "search for create handlers",
			wantDescs: []string{"Search for create handlers"},
			wantTools: []string{"search"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := d.Decompose(context.Background(), tt.request, models.ComplexityModerate)
			if err != nil {
				t.Fatalf("Decompose: %v", err)
			}
			if len(tasks) != len(tt.wantDescs) {
				for _, task := range tasks {
					t.Logf("  got task: %q (%s)", task.Description, task.ToolCalls[0].Tool)
				}
				t.Fatalf("got %d tasks, want %d", len(tasks), len(tt.wantDescs))
			}
			for i, task := range tasks {
				if task.Description != tt.wantDescs[i] {
					t.Errorf("task %d description = %q, want %q", i, task.Description, tt.wantDescs[i])
				}
				if got := task.ToolCalls[0].Tool; got != tt.wantTools[i] {
					t.Errorf("task %d tool = %q, want %q", i, got, tt.wantTools[i])
				}
			}
		})
	}
}

func TestDecomposeTimeoutsPerVerb(t *testing.T) {
	d := NewDecomposer()

	tasks, err := d.Decompose(context.Background(),
		"read notes.txt, install golang, deploy the service", models.ComplexityComplex)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	want := map[string]time.Duration{
		"Read file notes.txt": 5 * time.Second,
		"Install golang":      30 * time.Second,
		"Deploy the service":  60 * time.Second,
	}
	for _, task := range tasks {
		if timeout, ok := want[task.Description]; ok {
			if task.Timeout != timeout {
				t.Errorf("%q timeout = %v, want %v", task.Description, task.Timeout, timeout)
			}
			delete(want, task.Description)
		}
	}
	for desc := range want {
		t.Errorf("missing task %q", desc)
	}
}

func TestDecomposeNoMatchFallsBack(t *testing.T) {
	d := NewDecomposer()

	request := "do something entirely unmatchable " + strings.Repeat("x", 200)
	tasks, err := d.Decompose(context.Background(), request, models.ComplexityModerate)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1 fallback task", len(tasks))
	}
	if len(tasks[0].Description) > maxFallbackDescription {
		t.Errorf("fallback description length = %d, want <= %d", len(tasks[0].Description), maxFallbackDescription)
	}
	// The tool target still carries the full request.
	if got := tasks[0].ToolCalls[0].Args["target"]; got != request {
		t.Errorf("fallback target truncated")
	}
}

func TestDecomposeEmptyRequest(t *testing.T) {
	d := NewDecomposer()

	_, err := d.Decompose(context.Background(), "   ", models.ComplexitySimple)
	if err == nil {
		t.Fatal("expected error for empty request")
	}
	if _, ok := err.(*DecompositionError); !ok {
		t.Errorf("err = %T, want *DecompositionError", err)
	}
}

func TestDecomposeDuplicateDescriptionsSuppressed(t *testing.T) {
	d := NewDecomposer()

	tasks, err := d.Decompose(context.Background(),
		"install golang, install golang", models.ComplexityModerate)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	if len(tasks) != 1 {
		for _, task := range tasks {
			t.Logf("  got task: %q", task.Description)
		}
		t.Fatalf("got %d tasks, want 1 after duplicate suppression", len(tasks))
	}
	if tasks[0].Description != "Install golang" {
		t.Errorf("description = %q, want %q", tasks[0].Description, "Install golang")
	}
}

func TestDecomposeUniqueIDs(t *testing.T) {
	d := NewDecomposer()

	tasks, err := d.Decompose(context.Background(),
		"read a.txt then write b.txt then install deps then test everything", models.ComplexityComplex)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	ids := map[string]bool{}
	for _, task := range tasks {
		if ids[task.ID] {
			t.Errorf("duplicate task ID %s", task.ID)
		}
		ids[task.ID] = true
		if !strings.HasPrefix(task.ID, "task-") {
			t.Errorf("task ID %q missing prefix", task.ID)
		}
	}
}

func TestLoadProjectRules(t *testing.T) {
	dir := t.TempDir()
	weftDir := filepath.Join(dir, ".weft")
	if err := os.MkdirAll(weftDir, 0755); err != nil {
		t.Fatal(err)
	}

	content := `rules:
  - pattern: 'migrate (\S+)'
    description: 'Run migration %s'
    tool: shell
    timeout: 2m
`
	if err := os.WriteFile(filepath.Join(weftDir, "rules.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadProjectRules(dir)
	if err != nil {
		t.Fatalf("LoadProjectRules: %v", err)
	}
	if len(rules) != len(defaultRules())+1 {
		t.Fatalf("got %d rules, want builtin + 1", len(rules))
	}

	// Project rules come first so they win span claiming.
	first := rules[0]
	if first.Timeout != 2*time.Minute || first.Tool != "shell" {
		t.Errorf("project rule = timeout %v tool %q", first.Timeout, first.Tool)
	}

	d := NewDecomposerWithRules(rules)
	tasks, err := d.Decompose(context.Background(), "migrate users_table", models.ComplexityModerate)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Description != "Run migration users_table" {
		t.Errorf("tasks = %+v, want single migration task", tasks)
	}
}

func TestLoadProjectRulesMissingFile(t *testing.T) {
	rules, err := LoadProjectRules(t.TempDir())
	if err != nil {
		t.Fatalf("LoadProjectRules: %v", err)
	}
	if len(rules) != len(defaultRules()) {
		t.Errorf("got %d rules, want the builtin table", len(rules))
	}
}

func TestLoadProjectRulesMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad pattern", "rules:\n  - pattern: '['\n    description: x\n"},
		{"bad timeout", "rules:\n  - pattern: 'ok'\n    description: x\n    timeout: soon\n"},
		{"bad yaml", "rules: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			weftDir := filepath.Join(dir, ".weft")
			if err := os.MkdirAll(weftDir, 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(weftDir, "rules.yaml"), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadProjectRules(dir); err == nil {
				t.Error("expected error for malformed rules file")
			}
		})
	}
}
