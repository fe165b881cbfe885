package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/weft/pkg/models"
)

func findTaskByDesc(tasks []*models.Task, fragment string) *models.Task {
	for _, task := range tasks {
		if strings.Contains(strings.ToLower(task.Description), fragment) {
			return task
		}
	}
	return nil
}

func TestCreatePlanSimpleRequest(t *testing.T) {
	plan, err := NewPlanner().CreatePlan(context.Background(), "say hello")
	if err != nil {
		t.Fatal(err)
	}

	if plan.Complexity != models.ComplexitySimple {
		t.Errorf("complexity = %s, want simple", plan.Complexity)
	}
	if len(plan.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1 for a simple request", len(plan.Tasks))
	}
	if plan.Tasks[0].Description != "say hello" {
		t.Errorf("task description = %q", plan.Tasks[0].Description)
	}
	if !strings.HasPrefix(plan.ID, "plan-") {
		t.Errorf("plan ID = %q, want plan- prefix", plan.ID)
	}
}

func TestCreatePlanModerateRequest(t *testing.T) {
	request := "Read config.yaml, implement the parser, test the parser, deploy the service"
	plan, err := NewPlanner().CreatePlan(context.Background(), request)
	if err != nil {
		t.Fatal(err)
	}

	if plan.Complexity != models.ComplexityModerate {
		t.Errorf("complexity = %s, want moderate", plan.Complexity)
	}
	if len(plan.Tasks) < 3 {
		t.Fatalf("got %d tasks, want the request split into steps", len(plan.Tasks))
	}
	if plan.OriginalRequest != request {
		t.Errorf("original request not preserved: %q", plan.OriginalRequest)
	}
	if plan.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if plan.TotalEstimatedTime <= 0 {
		t.Errorf("estimate = %s, want positive", plan.TotalEstimatedTime)
	}

	implement := findTaskByDesc(plan.Tasks, "implement")
	verify := findTaskByDesc(plan.Tasks, "test")
	deploy := findTaskByDesc(plan.Tasks, "deploy")
	if implement == nil || verify == nil || deploy == nil {
		t.Fatalf("missing expected steps in %v", describeAll(plan.Tasks))
	}
	if !verify.DependsOn(implement.ID) {
		t.Error("test step does not depend on the implement step")
	}
	if !deploy.DependsOn(verify.ID) {
		t.Error("deploy step does not depend on the test step")
	}
}

func TestCreatePlanOrderIsTopological(t *testing.T) {
	plan, err := NewPlanner().CreatePlan(context.Background(),
		"Read config.yaml, implement the parser, test the parser, deploy the service")
	if err != nil {
		t.Fatal(err)
	}

	assertTopological(t, plan.Tasks)
}

func TestCreatePlanUniqueTaskIDs(t *testing.T) {
	plan, err := NewPlanner().CreatePlan(context.Background(),
		"install the dependencies, test the build, deploy the artifact")
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool, len(plan.Tasks))
	for _, task := range plan.Tasks {
		if seen[task.ID] {
			t.Errorf("duplicate task ID %s", task.ID)
		}
		seen[task.ID] = true
		if !strings.HasPrefix(task.ID, "task-") {
			t.Errorf("task ID = %q, want task- prefix", task.ID)
		}
	}
}

func TestCreatePlanEmptyRequest(t *testing.T) {
	_, err := NewPlanner().CreatePlan(context.Background(), "   ")
	if err == nil {
		t.Fatal("expected error for empty request")
	}
	var derr *DecompositionError
	if !errors.As(err, &derr) {
		t.Errorf("error type = %T, want *DecompositionError", err)
	}
}

func TestCreatePlanParallelizableFlag(t *testing.T) {
	// Two independent file reads can start together.
	plan, err := NewPlanner().CreatePlan(context.Background(),
		"read alpha.txt, read beta.txt, install the toolchain")
	if err != nil {
		t.Fatal(err)
	}

	if !plan.Parallelizable {
		t.Errorf("plan with independent roots not marked parallelizable: %v", describeAll(plan.Tasks))
	}
}

func describeAll(tasks []*models.Task) []string {
	descs := make([]string, len(tasks))
	for i, task := range tasks {
		descs[i] = task.Description
	}
	return descs
}
