package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/weft/internal/orchestrator"
	"github.com/ShayCichocki/weft/pkg/models"
)

func newTestApp() *App {
	events := make(chan orchestrator.Event)
	done := make(chan DoneMsg)
	return New("install and test", events, done)
}

func TestApplyEventTracksTaskLifecycle(t *testing.T) {
	app := newTestApp()

	app.applyEvent(orchestrator.Event{
		Type:        orchestrator.EventTaskStarted,
		TaskID:      "task-1",
		Description: "install dependencies",
	})
	app.applyEvent(orchestrator.Event{
		Type:        orchestrator.EventTaskStarted,
		TaskID:      "task-2",
		Description: "run tests",
	})
	app.applyEvent(orchestrator.Event{
		Type:   orchestrator.EventTaskCompleted,
		TaskID: "task-1",
	})
	app.applyEvent(orchestrator.Event{
		Type:    orchestrator.EventTaskRetrying,
		TaskID:  "task-2",
		Attempt: 2,
	})

	if len(app.rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(app.rows))
	}
	if app.rows[0].status != models.TaskStatusCompleted {
		t.Errorf("task-1 status = %s, want completed", app.rows[0].status)
	}
	if app.rows[1].status != models.TaskStatusRunning || app.rows[1].attempt != 2 {
		t.Errorf("task-2 = %s attempt %d, want running attempt 2", app.rows[1].status, app.rows[1].attempt)
	}
	// Completion without a description must not wipe the stored one.
	if app.rows[0].description != "install dependencies" {
		t.Errorf("task-1 description = %q", app.rows[0].description)
	}
}

func TestApplyEventFailureLogsError(t *testing.T) {
	app := newTestApp()

	app.applyEvent(orchestrator.Event{
		Type:      orchestrator.EventTaskFailed,
		TaskID:    "task-1",
		Err:       errors.New("exit status 1"),
		Timestamp: time.Now(),
	})

	if len(app.logs) != 1 {
		t.Fatalf("got %d log entries, want 1", len(app.logs))
	}
	if !strings.Contains(app.logs[0].Message, "exit status 1") {
		t.Errorf("log = %q, want error detail", app.logs[0].Message)
	}
}

func TestLogTailBounded(t *testing.T) {
	app := newTestApp()

	for i := 0; i < maxLogLines*2; i++ {
		app.log(time.Now(), "entry")
	}
	if len(app.logs) != maxLogLines {
		t.Errorf("got %d log entries, want %d", len(app.logs), maxLogLines)
	}
}

func TestViewShowsSummary(t *testing.T) {
	app := newTestApp()
	app.finished = true
	app.summary = &models.OutcomeSummary{
		SuccessCount: 2,
		FailCount:    1,
		Duration:     1500 * time.Millisecond,
	}

	view := app.View()
	if !strings.Contains(view, "2 succeeded") || !strings.Contains(view, "1 failed") {
		t.Errorf("view missing summary counts:\n%s", view)
	}
}

func TestTruncateLine(t *testing.T) {
	if got := truncateLine("short", 80); got != "short" {
		t.Errorf("truncateLine(short) = %q", got)
	}
	got := truncateLine(strings.Repeat("x", 100), 10)
	if len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncateLine long = %q", got)
	}
}
