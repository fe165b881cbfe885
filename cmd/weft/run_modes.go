package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/ShayCichocki/weft/internal/orchestrator"
	"github.com/ShayCichocki/weft/internal/tui"
	"github.com/ShayCichocki/weft/pkg/models"
)

// executeWithDisplay runs the plan in either plain or TUI mode.
func executeWithDisplay(ctx context.Context, orch *orchestrator.Orchestrator, plan *models.Plan, request string) (*models.OutcomeSummary, error) {
	if runPlain {
		return executePlain(ctx, orch, plan)
	}
	return executeTUI(ctx, orch, plan, request)
}

// executePlain prints one line per event while the plan runs.
func executePlain(ctx context.Context, orch *orchestrator.Orchestrator, plan *models.Plan) (*models.OutcomeSummary, error) {
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for event := range orch.Events() {
			printEvent(event)
			if event.Type == orchestrator.EventRunDone {
				return
			}
		}
	}()

	summary, err := orch.RunPlan(ctx, plan)

	select {
	case <-printerDone:
	case <-time.After(time.Second):
	}

	if summary != nil {
		printSummary(summary)
	}
	return summary, err
}

// executeTUI drives the bubbletea app off the orchestrator event stream.
func executeTUI(ctx context.Context, orch *orchestrator.Orchestrator, plan *models.Plan, request string) (*models.OutcomeSummary, error) {
	done := make(chan tui.DoneMsg, 1)
	app := tui.New(request, orch.Events(), done)
	program := tea.NewProgram(app)

	go func() {
		summary, err := orch.RunPlan(ctx, plan)
		done <- tui.DoneMsg{Summary: summary, Err: err}
	}()

	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("run TUI: %w", err)
	}

	// The user may quit the TUI mid-run; abort and wait for the outcome.
	finalApp, ok := final.(*tui.App)
	if !ok {
		return nil, fmt.Errorf("unexpected TUI model type %T", final)
	}
	summary, runErr := finalApp.Summary()
	if summary == nil && runErr == nil {
		orch.Abort()
		result := <-done
		return result.Summary, result.Err
	}
	return summary, runErr
}

func printEvent(event orchestrator.Event) {
	switch event.Type {
	case orchestrator.EventPlanCreated:
		fmt.Printf("plan %s: %s\n", event.PlanID, event.Message)
	case orchestrator.EventTaskStarted:
		fmt.Printf("  start   %s  %s\n", event.TaskID, event.Description)
	case orchestrator.EventTaskCompleted:
		color.Green("  done    %s", event.TaskID)
	case orchestrator.EventTaskFailed:
		color.Red("  failed  %s  %v", event.TaskID, event.Err)
	case orchestrator.EventTaskRetrying:
		color.Yellow("  retry   %s  attempt %d", event.TaskID, event.Attempt)
	case orchestrator.EventTaskSkipped:
		fmt.Printf("  skipped %s  %s\n", event.TaskID, event.Message)
	}
}

func printSummary(summary *models.OutcomeSummary) {
	line := fmt.Sprintf("%d succeeded, %d failed, %d skipped in %s",
		summary.SuccessCount, summary.FailCount, summary.SkippedCount,
		summary.Duration.Round(time.Millisecond))
	if summary.Succeeded() {
		color.Green("%s", line)
	} else {
		color.Red("%s", line)
	}
}
